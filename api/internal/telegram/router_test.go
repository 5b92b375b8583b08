package telegram

import (
	"context"
	"encoding/json"
	"image"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"neuro-scan/api/internal/capture"
	"neuro-scan/api/internal/catalog"
	"neuro-scan/api/internal/chat"
	"neuro-scan/api/internal/overlay"
	"neuro-scan/api/internal/session"
	"neuro-scan/api/internal/vision"
)

// fakeTelegram — минимальный Bot API: отвечает ok и запоминает вызовы.
type fakeTelegram struct {
	mu    sync.Mutex
	calls []sent
}

type sent struct {
	method string
	text   string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		_ = r.ParseMultipartForm(1 << 20)
	} else {
		_ = r.ParseForm()
	}
	text := r.FormValue("text")
	if text == "" {
		text = r.FormValue("caption")
	}
	f.mu.Lock()
	f.calls = append(f.calls, sent{method: method, text: text})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"scanner","username":"scanner_bot"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
}

func (f *fakeTelegram) texts(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c.text)
		}
	}
	return out
}

type stubDevice struct{}

func (stubDevice) Resolution() (int, int)      { return 16, 16 }
func (stubDevice) Frame() (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil }
func (stubDevice) Close() error                { return nil }

type stubCamera struct{}

func (stubCamera) Open(context.Context) (capture.Device, error) { return stubDevice{}, nil }

type stubRecognizer struct{}

func (stubRecognizer) Name() string     { return "stub" }
func (stubRecognizer) GetModel() string { return "stub" }
func (stubRecognizer) Recognize(context.Context, []byte, string) vision.Result {
	n := 2.0
	return vision.Success([]vision.Component{{Name: "Resistor", Count: &n}, {Name: "Buzzer"}})
}

type stubSource struct{}

func (stubSource) Load(context.Context) (catalog.Catalog, error) {
	return catalog.Catalog{"resistor": "resistor.png", "led": "led.png"}, nil
}

type echoBackend struct{}

func (echoBackend) Chat(_ context.Context, req chat.Request) (chat.Reply, error) {
	return chat.Reply{Text: "echo " + req.Model}, nil
}

func newTestRouter(t *testing.T) (*Router, *fakeTelegram) {
	t.Helper()
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	provider := catalog.NewProvider(stubSource{})
	if _, err := provider.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	board := overlay.NewBoard(provider, rand.New(rand.NewSource(7)))
	snap := session.NewRecognition()
	ctrl := capture.New(stubCamera{}, stubRecognizer{}, board, snap)
	ctrl.After = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	return &Router{
		Bot:        bot,
		Controller: ctrl,
		Board:      board,
		Catalog:    provider,
		Chats: chat.NewManager(func() *chat.Conversation {
			return chat.NewConversation(echoBackend{}, snap, "", chat.DefaultTemperature)
		}),
		Diagram: image.NewRGBA(image.Rect(0, 0, 64, 64)),
	}, fake
}

func command(chatID int64, text string) tgbotapi.Update {
	cmd := text
	if i := strings.IndexByte(text, ' '); i > 0 {
		cmd = text[:i]
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func TestTempAndModelCommands(t *testing.T) {
	r, fake := newTestRouter(t)

	r.HandleCommand(command(42, "/temp 0,3"))
	r.HandleCommand(command(42, "/temp hot"))
	r.HandleCommand(command(42, "/model gemini-1.5-flash"))

	conv := r.Chats.Get(42)
	if conv.Temperature() != 0.3 || conv.Model() != "gemini-1.5-flash" {
		t.Errorf("settings not applied: %v %s", conv.Temperature(), conv.Model())
	}
	if r.Chats.Get(7).Model() != chat.DefaultModel {
		t.Error("settings must be per chat")
	}

	msgs := fake.texts("sendMessage")
	if len(msgs) != 3 || !strings.Contains(msgs[1], "between 0 and 1") {
		t.Errorf("unexpected replies %q", msgs)
	}
}

func TestCatalogCommand(t *testing.T) {
	r, fake := newTestRouter(t)
	r.HandleCommand(command(42, "/catalog"))
	msgs := fake.texts("sendMessage")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "led, resistor") {
		t.Errorf("unexpected replies %q", msgs)
	}
}

func TestRunScanSendsResultAndOverlay(t *testing.T) {
	r, fake := newTestRouter(t)
	r.runScan(42)

	msgs := fake.texts("sendMessage")
	if len(msgs) != 2 {
		t.Fatalf("unexpected replies %q", msgs)
	}
	if !strings.Contains(msgs[1], "Resistor — 2") || !strings.Contains(msgs[1], "Buzzer — ?") {
		t.Errorf("result message %q", msgs[1])
	}
	photos := fake.texts("sendPhoto")
	if len(photos) != 1 || photos[0] != "1 component(s) placed" {
		t.Errorf("overlay photo %q", photos)
	}
}

func TestConverseUsesScanContext(t *testing.T) {
	r, fake := newTestRouter(t)
	r.runScan(42)
	r.converse(42, "what is the buzzer for?")

	tr := r.Chats.Get(42).Transcript()
	if len(tr) != 2 || tr[0].VisibleText != "what is the buzzer for?" {
		t.Fatalf("transcript %+v", tr)
	}
	msgs := fake.texts("sendMessage")
	if last := msgs[len(msgs)-1]; last != "echo "+chat.DefaultModel {
		t.Errorf("reply %q", last)
	}

	r.HandleCommand(command(42, "/reset"))
	if len(r.Chats.Get(42).Transcript()) != 0 {
		t.Error("reset must drop the conversation")
	}
}

func TestFormatResult(t *testing.T) {
	if got := formatResult(vision.Failure(vision.KindUnparsableResponse, vision.MsgNoStructuredJSON, json.RawMessage(`"x"`))); got != "❌ "+vision.MsgNoStructuredJSON {
		t.Errorf("got %q", got)
	}
	if got := formatResult(vision.Success(nil)); got != "No components recognized." {
		t.Errorf("got %q", got)
	}
}

func TestModelKeyboardMarksCurrent(t *testing.T) {
	kb := makeModelKeyboard(chat.Models[0])
	if len(kb.InlineKeyboard) != len(chat.Models) {
		t.Fatalf("rows %d", len(kb.InlineKeyboard))
	}
	first := kb.InlineKeyboard[0][0]
	if !strings.HasPrefix(first.Text, "✓ ") || *first.CallbackData != cbModelPrefix+chat.Models[0] {
		t.Errorf("button %+v", first)
	}
}
