package chat

import (
	"strings"

	"neuro-scan/api/internal/vision"
)

// Instruction добавляется к каждому исходящему сообщению пользователя и в транскрипт не попадает.
const Instruction = "Answer briefly (under ~120 words). Include pinouts for any component with pins as compact bullets (Pin: Function). No extra commentary."

// ComposeOutgoing собирает текст, уходящий в модель:
// [список компонентов последнего скана] + инструкция + текст пользователя.
func ComposeOutgoing(visible string, last []vision.Component) string {
	var b strings.Builder
	if len(last) > 0 {
		b.WriteString("Scanned components:\n")
		for i, c := range last {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- ")
			b.WriteString(c.Name)
			if c.Count != nil {
				b.WriteString(" x ")
				b.WriteString(c.CountString())
			}
		}
		b.WriteString("\n\n")
	}
	b.WriteString(Instruction)
	b.WriteString("\n\n")
	b.WriteString(visible)
	return b.String()
}
