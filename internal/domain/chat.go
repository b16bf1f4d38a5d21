package domain

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a conversation about sources.
type ChatMessage struct {
	Role    ChatRole `json:"role" binding:"required,oneof=user assistant"`
	Content string   `json:"content" binding:"required"`
}

// SuggestedQuestion is an LLM-proposed question about a source.
type SuggestedQuestion struct {
	SourceID string `json:"source_id"`
	Question string `json:"question"`
}
