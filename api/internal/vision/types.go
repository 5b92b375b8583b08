package vision

import (
	"context"
	"encoding/json"
	"strconv"
)

// Component — один распознанный элемент макетной платы.
// Count == nil, если модель не уверена в количестве или не указала его.
type Component struct {
	Name  string   `json:"name"`
	Count *float64 `json:"count"`
}

// CountString форматирует количество без хвостовых нулей ("4", "2.5"); пусто для nil.
func (c Component) CountString() string {
	if c.Count == nil {
		return ""
	}
	return strconv.FormatFloat(*c.Count, 'f', -1, 64)
}

// Label — строка списка результатов: "Resistor — 4", "Arduino — ?".
func (c Component) Label() string {
	if c.Count == nil {
		return c.Name + " — ?"
	}
	return c.Name + " — " + c.CountString()
}

// Labels — список всех компонентов, включая отсутствующие в каталоге.
func Labels(components []Component) []string {
	out := make([]string, 0, len(components))
	for _, c := range components {
		out = append(out, c.Label())
	}
	return out
}

// Kind — класс отказа; в JSON не попадает, нужен для логов и веток в вызывающем коде.
type Kind string

const (
	KindNone                      Kind = ""
	KindCredentialMissing         Kind = "credential_missing"
	KindDeviceAcquisitionDenied   Kind = "device_acquisition_denied"
	KindCaptureSurfaceUnavailable Kind = "capture_surface_unavailable"
	KindTransportFailure          Kind = "transport_failure"
	KindSchemaViolation           Kind = "schema_violation"
	KindUnparsableResponse        Kind = "unparsable_response"
)

const (
	MsgNoStructuredJSON  = "Structured JSON not received"
	MsgCredentialMissing = "GEMINI_API_KEY not set (env or src/.env)"
	MsgCameraDenied      = "Camera access denied"
	MsgSurfaceMissing    = "Canvas context unavailable"
	MsgRequestFailed     = "Gemini request failed"
)

// Result — либо {components}, либо {error, components: [], raw?}. Смешанной формы не бывает.
type Result struct {
	Error      string          `json:"error,omitempty"`
	Components []Component     `json:"components"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	Kind       Kind            `json:"-"`
}

func (r Result) Failed() bool { return r.Error != "" }

// Success собирает успешный результат; nil превращается в пустой список.
func Success(components []Component) Result {
	if components == nil {
		components = []Component{}
	}
	return Result{Components: components}
}

// Failure собирает результат-ошибку с пустым списком компонентов.
func Failure(kind Kind, msg string, raw json.RawMessage) Result {
	if msg == "" {
		msg = MsgRequestFailed
	}
	return Result{Error: msg, Components: []Component{}, Raw: raw, Kind: kind}
}

// Recognizer — граница Inference Gateway. Реализации никогда не возвращают ошибку:
// все отказы приходят в виде Result.Failed().
type Recognizer interface {
	Name() string
	GetModel() string
	Recognize(ctx context.Context, image []byte, encoding string) Result
}
