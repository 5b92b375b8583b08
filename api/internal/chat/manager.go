package chat

import "sync"

// Manager держит отдельный диалог на каждый чат (Telegram chat id, HTTP-сессия).
type Manager struct {
	newConv func() *Conversation
	m       sync.Map // chatID -> *Conversation
}

func NewManager(newConv func() *Conversation) *Manager {
	return &Manager{newConv: newConv}
}

func (m *Manager) Get(chatID int64) *Conversation {
	if v, ok := m.m.Load(chatID); ok {
		return v.(*Conversation)
	}
	v, _ := m.m.LoadOrStore(chatID, m.newConv())
	return v.(*Conversation)
}

func (m *Manager) Drop(chatID int64) {
	m.m.Delete(chatID)
}
