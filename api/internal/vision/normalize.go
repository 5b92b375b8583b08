package vision

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize приводит сырые элементы массива components к []Component.
// Применяется всегда, даже если модель вернула корректные типы.
func Normalize(items []any) []Component {
	out := make([]Component, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		out = append(out, Component{
			Name:  nameString(m["name"]),
			Count: coerceCount(m["count"]),
		})
	}
	return out
}

// NormalizeComponents — повторная нормализация уже типизированного списка
// (идемпотентна: Normalize(Normalize(x)) == Normalize(x)).
func NormalizeComponents(in []Component) []Component {
	out := make([]Component, 0, len(in))
	for _, c := range in {
		var cnt any
		if c.Count != nil {
			cnt = *c.Count
		}
		out = append(out, Component{Name: nameString(c.Name), Count: coerceCount(cnt)})
	}
	return out
}

func nameString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return strings.TrimSpace(x.String())
	case bool:
		if x {
			return "true"
		}
	}
	return ""
}

// coerceCount: nil, нечисловые значения и не-конечные числа дают nil.
func coerceCount(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case int:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return nil
		}
		f = p
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
