package models

// User is an account record. Name is globally unique among live users
// (case-sensitive exact match); Chats holds chat ids as an ordered
// multiset.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Chats []string `json:"chats,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// Clone returns a deep copy of the user and its chat link set.
func (u User) Clone() User {
	out := u
	if u.Chats != nil {
		out.Chats = append([]string(nil), u.Chats...)
	}
	return out
}
