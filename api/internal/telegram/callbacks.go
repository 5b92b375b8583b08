package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	data := cb.Data
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	switch {
	case data == cbScan:
		go r.runScan(cid)
	case strings.HasPrefix(data, cbModelPrefix):
		r.onModelPicked(cid, cb.Message.MessageID, strings.TrimPrefix(data, cbModelPrefix))
	}
}

func (r *Router) onModelPicked(chatID int64, msgID int, model string) {
	conv := r.Chats.Get(chatID)
	conv.SetModel(model)
	// убрать клавиатуру
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = r.Bot.Send(edit)
	r.send(chatID, "✅ Model: "+conv.Model())
}
