package vision

import (
	"encoding/json"
	"regexp"
	"strings"

	"neuro-scan/api/internal/util"
)

// Envelope — минимально необходимая часть ответа generateContent.
type Envelope struct {
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Content Content `json:"content"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// extractor пробует достать JSON-значение из ответа; ok=false — передать следующему.
type extractor func(env Envelope) (any, bool)

// chain — порядок важен: первый успешный разбор завершает цепочку.
var chain = []extractor{
	firstPartJSON,
	joinedPartsJSON,
	trailingObjectJSON,
}

var trailingObjectRe = regexp.MustCompile(`(?s)\{.*\}\s*$`)

// Reduce сводит ответ модели к Result. raw прикладывается к отказу для диагностики.
func Reduce(env Envelope, raw json.RawMessage) Result {
	var parsed any
	for _, ex := range chain {
		if v, ok := ex(env); ok {
			parsed = v
			break
		}
	}
	if parsed == nil {
		return Failure(KindUnparsableResponse, MsgNoStructuredJSON, raw)
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return Failure(KindSchemaViolation, MsgNoStructuredJSON, raw)
	}
	items, ok := obj["components"].([]any)
	if !ok {
		return Failure(KindSchemaViolation, MsgNoStructuredJSON, raw)
	}
	return Success(Normalize(items))
}

// ReduceText — то же для уже извлечённого текста (один text-part).
func ReduceText(text string) Result {
	env := Envelope{Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: text}}}}}}
	raw, _ := json.Marshal(env)
	return Reduce(env, raw)
}

func firstPartJSON(env Envelope) (any, bool) {
	if len(env.Candidates) == 0 || len(env.Candidates[0].Content.Parts) == 0 {
		return nil, false
	}
	txt := env.Candidates[0].Content.Parts[0].Text
	if txt == "" {
		return nil, false
	}
	return parseJSON(txt)
}

func joinedPartsJSON(env Envelope) (any, bool) {
	return parseJSON(joinedText(env))
}

// trailingObjectJSON — последний шанс: жадный {...} до конца строки.
func trailingObjectJSON(env Envelope) (any, bool) {
	txt := util.StripCodeFences(joinedText(env))
	m := trailingObjectRe.FindString(txt)
	if m == "" {
		return nil, false
	}
	return parseJSON(strings.TrimSpace(m))
}

func joinedText(env Envelope) string {
	if len(env.Candidates) == 0 {
		return ""
	}
	parts := env.Candidates[0].Content.Parts
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

func parseJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}
