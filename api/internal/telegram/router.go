package telegram

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"neuro-scan/api/internal/capture"
	"neuro-scan/api/internal/catalog"
	"neuro-scan/api/internal/chat"
	"neuro-scan/api/internal/overlay"
	"neuro-scan/api/internal/util"
	"neuro-scan/api/internal/vision"
)

const (
	scanTimeout = 180 * time.Second
	chatTimeout = 120 * time.Second

	// лимит Telegram 4096 символов, оставляем запас
	maxMessageLen = 3900
)

type Router struct {
	Bot        *tgbotapi.BotAPI
	Controller *capture.Controller
	Board      *overlay.Board
	Catalog    *catalog.Provider
	Chats      *chat.Manager

	// схема для отрисовки оверлеев; nil — картинка не отправляется
	Diagram image.Image
	Icons   overlay.IconLoader
}

const helpText = "Send a photo of your breadboard or use /scan to capture from the camera.\n" +
	"Then ask questions about the components in plain text.\n" +
	"Commands: /scan, /model [name], /temp [0..1], /catalog, /reset"

func (r *Router) HandleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	args := strings.TrimSpace(upd.Message.CommandArguments())
	switch upd.Message.Command() {
	case "start", "help":
		msg := tgbotapi.NewMessage(cid, helpText)
		msg.ReplyMarkup = makeScanKeyboard()
		_, _ = r.Bot.Send(msg)
	case "scan":
		go r.runScan(cid)
	case "model":
		r.handleModelCommand(cid, args)
	case "temp":
		r.handleTempCommand(cid, args)
	case "catalog":
		cat, err := r.Catalog.Get(context.Background())
		if err != nil {
			r.SendError(cid, err)
			return
		}
		names := cat.Names()
		if len(names) == 0 {
			r.send(cid, "Catalog is empty.")
			return
		}
		r.send(cid, "Known components:\n"+strings.Join(names, ", "))
	case "reset":
		r.Chats.Drop(cid)
		r.send(cid, "Conversation cleared.")
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	// callback-кнопки
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	cid := upd.Message.Chat.ID

	if upd.Message.IsCommand() {
		r.HandleCommand(upd)
		return
	}

	// фото
	if len(upd.Message.Photo) > 0 {
		go r.acceptPhoto(*upd.Message)
		return
	}

	if text := strings.TrimSpace(upd.Message.Text); text != "" {
		go r.converse(cid, text)
	}
}

// handleModelCommand: без аргумента — клавиатура выбора, иначе переключение.
func (r *Router) handleModelCommand(chatID int64, arg string) {
	conv := r.Chats.Get(chatID)
	if arg == "" {
		msg := tgbotapi.NewMessage(chatID, "Current model: "+conv.Model())
		msg.ReplyMarkup = makeModelKeyboard(conv.Model())
		_, _ = r.Bot.Send(msg)
		return
	}
	conv.SetModel(arg)
	r.send(chatID, "✅ Model: "+conv.Model())
}

func (r *Router) handleTempCommand(chatID int64, arg string) {
	conv := r.Chats.Get(chatID)
	if arg == "" {
		r.send(chatID, fmt.Sprintf("Temperature: %.1f\nUsage: /temp 0.3", conv.Temperature()))
		return
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(arg, ",", "."), 64)
	if err != nil {
		r.send(chatID, "Temperature must be a number between 0 and 1")
		return
	}
	r.send(chatID, fmt.Sprintf("✅ Temperature: %.1f", conv.SetTemperature(v)))
}

func (r *Router) runScan(chatID int64) {
	r.send(chatID, fmt.Sprintf("📷 Scanning in %d...", r.Controller.Countdown))

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	res, err := r.Controller.Scan(ctx)
	if errors.Is(err, capture.ErrBusy) {
		r.send(chatID, "A scan is already in progress, please wait.")
		return
	}
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.SendResult(chatID, res)
}

func (r *Router) converse(chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = r.Bot.Request(typing)

	out, err := r.Chats.Get(chatID).Send(ctx, text)
	switch {
	case errors.Is(err, chat.ErrBusy):
		r.send(chatID, "Still answering the previous message...")
		return
	case err != nil:
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, out.Reply.VisibleText)
	if out.Banner != "" {
		r.send(chatID, "⚠️ "+out.Banner)
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, util.Truncate(text, maxMessageLen))
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

// SendResult — список компонентов и, если есть схема, картинка с оверлеями.
func (r *Router) SendResult(chatID int64, res vision.Result) {
	r.send(chatID, formatResult(res))
	if res.Failed() || r.Diagram == nil {
		return
	}
	entries := r.Board.Entries()
	if len(entries) == 0 {
		return
	}
	png, err := overlay.Render(r.Diagram, entries, r.Icons)
	if err != nil {
		log.Printf("telegram: render overlay: %v", err)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "overlay.png", Bytes: png})
	photo.Caption = fmt.Sprintf("%d component(s) placed", len(entries))
	if _, err := r.Bot.Send(photo); err != nil {
		log.Printf("telegram: send overlay to %d: %v", chatID, err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Error: %v", err))
}

func formatResult(res vision.Result) string {
	if res.Failed() {
		return "❌ " + res.Error
	}
	if len(res.Components) == 0 {
		return "No components recognized."
	}
	var b strings.Builder
	b.WriteString("🔎 Components:\n")
	for _, l := range vision.Labels(res.Components) {
		b.WriteString("• ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("\nAsk me anything about them.")
	return b.String()
}
