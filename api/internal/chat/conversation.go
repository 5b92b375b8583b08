package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"neuro-scan/api/internal/vision"
)

var (
	ErrEmptyMessage = errors.New("chat: empty message")
	ErrBusy         = errors.New("chat: message already in flight")
)

const (
	DefaultModel       = "gemini-2.5-pro"
	DefaultTemperature = 0.7
	ErrorPlaceholder   = "(error)"
	FallbackBanner     = "Fallback applied"
)

// Models — варианты для выбора модели.
var Models = []string{"gemini-2.5-pro", "gemini-1.5-flash", "gemini-1.5-pro"}

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Turn — реплика транскрипта. SentText (со скрытым префиксом) наружу не отдаётся.
type Turn struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	VisibleText string `json:"text"`
	SentText    string `json:"-"`
}

// Snapshot — последний результат скана, только чтение.
type Snapshot interface {
	Components() []vision.Component
}

type Outcome struct {
	Reply    Turn   `json:"reply"`
	Banner   string `json:"banner,omitempty"`
	Model    string `json:"model"`
	Fallback bool   `json:"fallback,omitempty"`
}

type Conversation struct {
	backend Backend
	snap    Snapshot
	sending atomic.Bool

	mu     sync.Mutex
	turns  []Turn
	model  string
	temp   float64
	banner string
}

func NewConversation(backend Backend, snap Snapshot, model string, temperature float64) *Conversation {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Conversation{
		backend: backend,
		snap:    snap,
		model:   model,
		temp:    clampTemp(temperature),
	}
}

// Send добавляет реплику пользователя, отправляет всю историю и дописывает ответ.
// Ошибки бэкенда не возвращаются: они попадают в баннер, а в историю — заглушка.
// История никогда не откатывается.
func (c *Conversation) Send(ctx context.Context, text string) (Outcome, error) {
	visible := strings.TrimSpace(text)
	if visible == "" {
		return Outcome{}, ErrEmptyMessage
	}
	if !c.sending.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer c.sending.Store(false)

	var last []vision.Component
	if c.snap != nil {
		last = c.snap.Components()
	}
	user := Turn{ID: uuid.NewString(), Role: User, VisibleText: visible, SentText: ComposeOutgoing(visible, last)}

	c.mu.Lock()
	c.turns = append(c.turns, user)
	req := Request{Messages: toMessages(c.turns), Model: c.model, Temperature: c.temp}
	c.banner = ""
	c.mu.Unlock()

	reply, err := c.backend.Chat(ctx, req)

	replyText := reply.Text
	if err != nil || replyText == "" {
		replyText = ErrorPlaceholder
	}
	assistant := Turn{ID: uuid.NewString(), Role: Assistant, VisibleText: replyText, SentText: replyText}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, assistant)
	switch {
	case err != nil:
		log.Printf("chat: backend %s: %v", req.Model, err)
		c.banner = err.Error()
	case reply.Fallback:
		c.model = reply.UsedModel
		if c.model == "" {
			c.model = DefaultModel
		}
		c.banner = reply.Note
		if c.banner == "" {
			c.banner = FallbackBanner
		}
		log.Printf("chat: fallback %s -> %s", req.Model, c.model)
	case reply.Error != "":
		c.banner = replyText
	}
	return Outcome{Reply: assistant, Banner: c.banner, Model: c.model, Fallback: reply.Fallback}, nil
}

func toMessages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.Role == User {
			out = append(out, Message{Role: RoleUser, Content: t.SentText})
			continue
		}
		out = append(out, Message{Role: RoleModel, Content: t.VisibleText})
	}
	return out
}

// Transcript — то, что видит пользователь (без скрытых префиксов).
func (c *Conversation) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		t.SentText = ""
		out[i] = t
	}
	return out
}

func (c *Conversation) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

func (c *Conversation) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *Conversation) SetModel(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

func (c *Conversation) Temperature() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.temp
}

func (c *Conversation) SetTemperature(t float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.temp = clampTemp(t)
	return c.temp
}

// Reset очищает историю; модель и температура сохраняются.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.turns = nil
	c.banner = ""
	c.mu.Unlock()
}

func clampTemp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
