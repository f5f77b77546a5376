package models

// ChatTurn is one prior exchange in a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Question string     `json:"question"`
	History  []ChatTurn `json:"history,omitempty"`
	Source   string     `json:"source,omitempty"`
	TopK     int        `json:"top_k,omitempty"`
	Expand   *bool      `json:"expand,omitempty"`
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
