package models

// Message roles. The conversation only ever contains these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation, oldest first. The conversation
// is owned by the caller; each turn receives a copy and returns an updated one.
type Message struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// AskRequest is the payload for the streaming chat endpoint. The full
// conversation history is sent on every turn.
type AskRequest struct {
	Messages []Message `json:"messages"`
}

// GenerateTitleRequest asks for a short conversation title based on the
// user's first message.
type GenerateTitleRequest struct {
	Message string `json:"message"`
}

// GenerateTitleResponse carries the generated title.
type GenerateTitleResponse struct {
	Title string `json:"title"`
}
