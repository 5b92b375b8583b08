package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"neuro-scan/api/internal/capture"
)

// acceptPhoto берёт самое большое превью и отправляет его на распознавание.
func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1]
	url, err := r.Bot.GetFileDirectURL(ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	imgBytes, err := download(url)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	r.send(cid, "Photo received. Processing...")
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()
	res, err := r.Controller.Submit(ctx, imgBytes)
	if errors.Is(err, capture.ErrBusy) {
		r.send(cid, "A scan is already in progress, please wait.")
		return
	}
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.SendResult(cid, res)
}

func download(url string) ([]byte, error) {
	resp, err := httpClient().Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
