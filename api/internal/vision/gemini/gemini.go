package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"neuro-scan/api/internal/util"
	"neuro-scan/api/internal/vision"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tests).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Recognize отправляет кадр в generateContent и сводит ответ к vision.Result.
// Ровно один исходящий запрос, без ретраев; паники и ошибки превращаются в Failure.
func (e *Engine) Recognize(ctx context.Context, image []byte, encoding string) (res vision.Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("vision: gemini recognize panic: %v", p)
			res = vision.Failure(vision.KindTransportFailure, fmt.Sprint(p), nil)
		}
	}()

	if e.APIKey == "" {
		return vision.Failure(vision.KindCredentialMissing, vision.MsgCredentialMissing, nil)
	}

	payload, err := json.Marshal(e.requestBody(image, encoding))
	if err != nil {
		return vision.Failure(vision.KindTransportFailure, err.Error(), nil)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(e.BaseURL, "/"), e.Model, url.QueryEscape(e.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return vision.Failure(vision.KindTransportFailure, err.Error(), nil)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.httpc.Do(req)
	if err != nil {
		return vision.Failure(vision.KindTransportFailure, redactKey(err.Error(), e.APIKey), nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	log.Printf("vision: gemini %s status=%d bytes=%d time=%dms", e.Model, resp.StatusCode, len(raw), time.Since(start).Milliseconds())
	if err != nil {
		return vision.Failure(vision.KindTransportFailure, err.Error(), nil)
	}
	if !json.Valid(raw) {
		return vision.Failure(vision.KindTransportFailure,
			fmt.Sprintf("gemini %d: response is not JSON: %s", resp.StatusCode, truncateBytes(raw, 256)), nil)
	}

	// Неверная форма конверта (например, тело ошибки API) — не фатально:
	// цепочка разбора ничего не найдёт и вернёт отказ с raw.
	var env vision.Envelope
	_ = json.Unmarshal(raw, &env)

	out := vision.Reduce(env, raw)
	if out.Failed() {
		log.Printf("vision: gemini %s reduce failed kind=%s status=%d", e.Model, out.Kind, resp.StatusCode)
	}
	return out
}

func (e *Engine) requestBody(image []byte, encoding string) map[string]any {
	return map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{"text": vision.Instruction},
					map[string]any{"inline_data": map[string]any{
						"mime_type": mimeFor(encoding, image),
						"data":      base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   vision.ResponseSchema(),
		},
	}
}

func mimeFor(encoding string, image []byte) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "png", "":
		return "image/png"
	case "jpeg", "jpg":
		return "image/jpeg"
	}
	return util.SniffMimeHTTP(image)
}

// ключ уходит в query-параметре, поэтому вычищаем его из текстов ошибок net/http
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "***")
	return strings.ReplaceAll(msg, key, "***")
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
