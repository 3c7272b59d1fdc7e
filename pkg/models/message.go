package models

// Message is a single chat utterance. Body and Role are optional; the
// store stamps TS (ns) at creation when the caller leaves it zero, and
// the value is immutable afterwards unless an update explicitly
// overwrites it.
type Message struct {
	ID   string `json:"id"`
	Body string `json:"body,omitempty"`
	// Role is the speaker kind (user, assistant, system).
	Role string `json:"role,omitempty"`
	// Sources is a multi-valued property: duplicates are allowed and
	// insertion order is preserved.
	Sources []string `json:"sources,omitempty"`
	TS      int64    `json:"ts"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// aliasing the stored Sources slice.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = append([]string(nil), m.Sources...)
	}
	return out
}
