package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"neuro-scan/api/internal/chat"
)

const chatDeadline = 120 * time.Second

// Chat — прямой вызов чат-бэкенда: {messages, model, temperature} -> {text, fallback?, ...}.
func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(r, chatDeadline))
	defer cancel()

	reply, err := h.Backend.Chat(ctx, req)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "chat error: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type SendRequest struct {
	Text string `json:"text"`
}

func (h *Handle) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(r, chatDeadline))
	defer cancel()

	out, err := h.Conversation.Send(ctx, req.Text)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty message"})
		return
	case errors.Is(err, chat.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "message already in flight"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handle) Transcript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"turns":       h.Conversation.Transcript(),
		"model":       h.Conversation.Model(),
		"temperature": h.Conversation.Temperature(),
		"banner":      h.Conversation.Banner(),
		"models":      chat.Models,
	})
}

func (h *Handle) ResetConversation(w http.ResponseWriter, r *http.Request) {
	h.Conversation.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type SettingsRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

func (h *Handle) Settings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return
	}
	h.Conversation.SetModel(req.Model)
	if req.Temperature != nil {
		h.Conversation.SetTemperature(*req.Temperature)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":       h.Conversation.Model(),
		"temperature": h.Conversation.Temperature(),
	})
}
