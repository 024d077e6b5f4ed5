package domain

// Role is the author of a conversation message.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a session's history.
type Message struct {
	Role    Role
	Content string
}
