package domain

// Entity is anything the fan-out coordinator can address with a remote action.
type Entity interface {
	EntityID() string
}

// Conversation is an opaque handle to a workspace conversation. Nothing beyond
// the ID is tracked; it only addresses subsequent remote calls.
type Conversation struct {
	ID string
}

func (c Conversation) EntityID() string { return c.ID }

// MessageRef identifies one message by its conversation and timestamp. The
// timestamp is an opaque server-issued string and is never parsed, only
// passed back on deletion.
type MessageRef struct {
	Channel   string
	Timestamp string
}

func (m MessageRef) EntityID() string { return m.Channel + "/" + m.Timestamp }

// User is an opaque handle to a workspace member.
type User struct {
	ID string
}

func (u User) EntityID() string { return u.ID }
