package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"neuro-scan/api/internal/chat"
	"neuro-scan/api/internal/vision"
)

// sendFunc — один запрос к модели: история + последнее сообщение -> текст ответа.
type sendFunc func(ctx context.Context, model string, temperature float64, history []chat.Message, last chat.Message) (string, error)

// Backend — чат на genai ChatSession. Если запрошенная модель недоступна,
// делается одна попытка на FallbackModel.
type Backend struct {
	APIKey        string
	FallbackModel string
	send          sendFunc
}

func New(apiKey, fallbackModel string) *Backend {
	b := &Backend{
		APIKey:        strings.TrimSpace(apiKey),
		FallbackModel: strings.TrimSpace(fallbackModel),
	}
	if b.FallbackModel == "" {
		b.FallbackModel = chat.DefaultModel
	}
	b.send = b.sendGenAI
	return b
}

func (b *Backend) Chat(ctx context.Context, req chat.Request) (chat.Reply, error) {
	if b.APIKey == "" {
		return chat.Reply{Text: vision.MsgCredentialMissing, Error: vision.MsgCredentialMissing}, nil
	}
	if len(req.Messages) == 0 {
		return chat.Reply{}, errors.New("gemini chat: no messages")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = chat.DefaultModel
	}
	history := req.Messages[:len(req.Messages)-1]
	last := req.Messages[len(req.Messages)-1]

	start := time.Now()
	text, err := b.send(ctx, model, req.Temperature, history, last)
	log.Printf("chat: gemini %s msgs=%d time=%dms err=%v", model, len(req.Messages), time.Since(start).Milliseconds(), err)
	if err == nil {
		return chat.Reply{Text: text}, nil
	}
	if !isModelUnavailable(err) || b.FallbackModel == model {
		return chat.Reply{}, fmt.Errorf("gemini chat: %w", err)
	}

	text, ferr := b.send(ctx, b.FallbackModel, req.Temperature, history, last)
	if ferr != nil {
		return chat.Reply{}, fmt.Errorf("gemini chat: fallback %s: %w", b.FallbackModel, ferr)
	}
	return chat.Reply{
		Text:      text,
		Fallback:  true,
		UsedModel: b.FallbackModel,
		Note:      fmt.Sprintf("Model %s unavailable, switched to %s", model, b.FallbackModel),
	}, nil
}

func (b *Backend) sendGenAI(ctx context.Context, model string, temperature float64, history []chat.Message, last chat.Message) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(b.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.SetTemperature(float32(temperature))

	cs := m.StartChat()
	cs.History = toContents(history)

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

func toContents(msgs []chat.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := chat.RoleUser
		if m.Role == chat.RoleModel {
			role = chat.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

// isModelUnavailable: 404 от API или текст ошибки про неизвестную/неподдерживаемую модель.
func isModelUnavailable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not found") || strings.Contains(s, "not supported")
}
