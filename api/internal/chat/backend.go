package chat

import "context"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message — элемент истории в формате чат-бэкенда.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
}

// Reply — ответ бэкенда. Fallback=true значит, что запрошенная модель
// недоступна и ответ дала UsedModel.
type Reply struct {
	Text      string `json:"text"`
	Fallback  bool   `json:"fallback,omitempty"`
	UsedModel string `json:"usedModel,omitempty"`
	Note      string `json:"note,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Backend interface {
	Chat(ctx context.Context, req Request) (Reply, error)
}
