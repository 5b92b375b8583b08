package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"neuro-scan/api/internal/capture"
	"neuro-scan/api/internal/overlay"
	"neuro-scan/api/internal/util"
	"neuro-scan/api/internal/vision"
)

const scanDeadline = 180 * time.Second

type ScanResponse struct {
	vision.Result
	Labels  []string        `json:"labels"`
	Overlay []overlay.Entry `json:"overlay"`
}

type RecognizeRequest struct {
	ImageB64 string `json:"image_b64"`
}

func (h *Handle) scanResponse(res vision.Result) ScanResponse {
	return ScanResponse{Result: res, Labels: vision.Labels(res.Components), Overlay: h.Board.Entries()}
}

func (h *Handle) Status(w http.ResponseWriter, r *http.Request) {
	ev := h.Controller.Last()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  h.Controller.State().String(),
		"busy":   h.Controller.Busy(),
		"status": capture.StatusText(ev),
	})
}

func (h *Handle) Scan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(r, scanDeadline))
	defer cancel()

	res, err := h.Controller.Scan(ctx)
	if errors.Is(err, capture.ErrBusy) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "scan already in progress"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "scan cancelled: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.scanResponse(res))
}

func (h *Handle) Recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return
	}
	img, _, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(img) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad image_b64"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(r, scanDeadline))
	defer cancel()

	res, err := h.Controller.Submit(ctx, img)
	switch {
	case errors.Is(err, capture.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "scan already in progress"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.scanResponse(res))
}

func (h *Handle) Overlay(w http.ResponseWriter, r *http.Request) {
	res, at := h.Snapshot.Last()
	out := map[string]any{
		"entries": h.Board.Entries(),
		"labels":  vision.Labels(res.Components),
	}
	if res.Failed() {
		out["error"] = res.Error
	}
	if !at.IsZero() {
		out["scannedAt"] = at
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handle) OverlayPNG(w http.ResponseWriter, r *http.Request) {
	if h.Diagram == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "diagram not configured"})
		return
	}
	png, err := overlay.Render(h.Diagram, h.Board.Entries(), h.Icons)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
