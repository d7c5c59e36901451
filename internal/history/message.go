package history

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single dialogue turn in a Window.
//
// Everything except Active is immutable after insertion. Tokens is the
// caller-supplied token count; the window trusts it as-is. Messages are
// owned exclusively by the Window that created them.
type Message struct {
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens"`
	Timestamp time.Time `json:"timestamp"`
	Active    bool      `json:"active"`
}

// Entry is the role/content projection handed to the generation call.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
