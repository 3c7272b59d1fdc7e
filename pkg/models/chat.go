package models

// Chat groups messages by reference. Messages holds message ids as an
// ordered multiset: the same id may appear more than once and each
// occurrence is tracked independently.
type Chat struct {
	ID       string   `json:"id"`
	Messages []string `json:"messages,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// Clone returns a deep copy of the chat and its message link set.
func (c Chat) Clone() Chat {
	out := c
	if c.Messages != nil {
		out.Messages = append([]string(nil), c.Messages...)
	}
	return out
}
