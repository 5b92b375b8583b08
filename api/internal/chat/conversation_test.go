package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"neuro-scan/api/internal/vision"
)

func count(f float64) *float64 { return &f }

type staticSnapshot []vision.Component

func (s staticSnapshot) Components() []vision.Component { return s }

type fakeBackend struct {
	mu       sync.Mutex
	requests []Request
	reply    Reply
	err      error
	gate     chan struct{}
	started  chan struct{}
}

func (b *fakeBackend) Chat(ctx context.Context, req Request) (Reply, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.gate != nil {
		<-b.gate
	}
	return b.reply, b.err
}

func TestComposeOutgoingScenarioE(t *testing.T) {
	sent := ComposeOutgoing("how do I wire this?", []vision.Component{{Name: "Arduino", Count: count(1)}})
	wantPrefix := "Scanned components:\n- Arduino x 1\n\n"
	if !strings.HasPrefix(sent, wantPrefix) {
		t.Fatalf("sent %q must start with %q", sent, wantPrefix)
	}
	if want := wantPrefix + Instruction + "\n\nhow do I wire this?"; sent != want {
		t.Errorf("got %q\nwant %q", sent, want)
	}
}

func TestComposeOutgoing(t *testing.T) {
	tests := []struct {
		name string
		last []vision.Component
		want string
	}{
		{
			name: "no scan",
			want: Instruction + "\n\nhi",
		},
		{
			name: "null count omitted",
			last: []vision.Component{{Name: "Breadboard"}, {Name: "Resistor", Count: count(4)}, {Name: "Wire", Count: count(2.5)}},
			want: "Scanned components:\n- Breadboard\n- Resistor x 4\n- Wire x 2.5\n\n" + Instruction + "\n\nhi",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposeOutgoing("hi", tt.last); got != tt.want {
				t.Errorf("got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestSendHidesPrefix(t *testing.T) {
	be := &fakeBackend{reply: Reply{Text: "Connect 5V to VCC."}}
	c := NewConversation(be, staticSnapshot{{Name: "Arduino", Count: count(1)}}, "", DefaultTemperature)

	out, err := c.Send(context.Background(), "  how do I wire this?  ")
	if err != nil {
		t.Fatal(err)
	}
	if out.Reply.VisibleText != "Connect 5V to VCC." || out.Banner != "" {
		t.Errorf("unexpected outcome %+v", out)
	}

	tr := c.Transcript()
	if len(tr) != 2 || tr[0].VisibleText != "how do I wire this?" || tr[0].Role != User || tr[1].Role != Assistant {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	for _, turn := range tr {
		if strings.Contains(turn.VisibleText, "Scanned components") || turn.SentText != "" {
			t.Errorf("hidden prefix leaked into transcript: %+v", turn)
		}
	}

	req := be.requests[0]
	if req.Model != DefaultModel || req.Temperature != 0.7 {
		t.Errorf("unexpected request settings %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser ||
		!strings.HasPrefix(req.Messages[0].Content, "Scanned components:\n- Arduino x 1\n\n") ||
		!strings.HasSuffix(req.Messages[0].Content, "how do I wire this?") {
		t.Errorf("unexpected messages %+v", req.Messages)
	}

	// вторая реплика несёт всю историю, ответы модели — с ролью model
	if _, err := c.Send(context.Background(), "and the LED?"); err != nil {
		t.Fatal(err)
	}
	msgs := be.requests[1].Messages
	if len(msgs) != 3 || msgs[1].Role != RoleModel || msgs[1].Content != "Connect 5V to VCC." {
		t.Errorf("unexpected history %+v", msgs)
	}
}

func TestSendEmpty(t *testing.T) {
	c := NewConversation(&fakeBackend{}, nil, "", 0.5)
	if _, err := c.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if len(c.Transcript()) != 0 {
		t.Error("empty message must not be recorded")
	}
}

func TestSendFallback(t *testing.T) {
	tests := []struct {
		name       string
		reply      Reply
		wantModel  string
		wantBanner string
	}{
		{"with note", Reply{Text: "ok", Fallback: true, UsedModel: "gemini-1.5-flash", Note: "switched"}, "gemini-1.5-flash", "switched"},
		{"bare", Reply{Text: "ok", Fallback: true}, DefaultModel, FallbackBanner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation(&fakeBackend{reply: tt.reply}, nil, "gemini-1.5-pro", 0.2)
			out, err := c.Send(context.Background(), "hello")
			if err != nil {
				t.Fatal(err)
			}
			if c.Model() != tt.wantModel || out.Model != tt.wantModel {
				t.Errorf("model %q, want %q", c.Model(), tt.wantModel)
			}
			if out.Banner != tt.wantBanner || c.Banner() != tt.wantBanner {
				t.Errorf("banner %q, want %q", out.Banner, tt.wantBanner)
			}
			if len(c.Transcript()) != 2 {
				t.Error("fallback must keep the conversation")
			}
		})
	}
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name       string
		reply      Reply
		err        error
		wantText   string
		wantBanner string
	}{
		{"transport error", Reply{}, errors.New("connection refused"), ErrorPlaceholder, "connection refused"},
		{"empty reply", Reply{}, nil, ErrorPlaceholder, ""},
		{"error reply", Reply{Text: "quota exceeded", Error: "429"}, nil, "quota exceeded", "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation(&fakeBackend{reply: tt.reply, err: tt.err}, nil, "", 0.7)
			out, err := c.Send(context.Background(), "hello")
			if err != nil {
				t.Fatalf("backend failures must not surface as errors: %v", err)
			}
			if out.Reply.VisibleText != tt.wantText {
				t.Errorf("reply %q, want %q", out.Reply.VisibleText, tt.wantText)
			}
			if out.Banner != tt.wantBanner {
				t.Errorf("banner %q, want %q", out.Banner, tt.wantBanner)
			}
			tr := c.Transcript()
			if len(tr) != 2 || tr[0].VisibleText != "hello" {
				t.Errorf("transcript must not roll back: %+v", tr)
			}
		})
	}
}

func TestSendBusy(t *testing.T) {
	be := &fakeBackend{reply: Reply{Text: "ok"}, gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewConversation(be, nil, "", 0.7)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first")
		done <- err
	}()
	<-be.started

	if _, err := c.Send(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	close(be.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := len(c.Transcript()); n != 2 {
		t.Errorf("transcript len %d, want 2", n)
	}
}

func TestSettings(t *testing.T) {
	c := NewConversation(&fakeBackend{}, nil, "", 3)
	if c.Temperature() != 1 {
		t.Errorf("temperature must be clamped, got %v", c.Temperature())
	}
	if got := c.SetTemperature(-0.5); got != 0 {
		t.Errorf("clamp low: %v", got)
	}
	c.SetModel("gemini-1.5-flash")
	c.SetModel("  ")
	if c.Model() != "gemini-1.5-flash" {
		t.Errorf("model %q", c.Model())
	}
}

func TestManager(t *testing.T) {
	m := NewManager(func() *Conversation { return NewConversation(&fakeBackend{}, nil, "", 0.7) })
	a := m.Get(1)
	if m.Get(1) != a {
		t.Error("same chat must reuse conversation")
	}
	if m.Get(2) == a {
		t.Error("different chats must not share conversation")
	}
	m.Drop(1)
	if m.Get(1) == a {
		t.Error("drop must forget conversation")
	}
}
