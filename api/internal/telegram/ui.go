package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"neuro-scan/api/internal/chat"
)

const (
	cbScan        = "scan"
	cbModelPrefix = "model:"
)

func makeScanKeyboard() tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData("Scan", cbScan)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(btn))
}

// Кнопки выбора модели, текущая отмечена галочкой
func makeModelKeyboard(current string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(chat.Models))
	for _, m := range chat.Models {
		label := m
		if m == current {
			label = "✓ " + m
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, cbModelPrefix+m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
