package capture

import (
	"fmt"
	"time"

	"neuro-scan/api/internal/vision"
)

type State int

const (
	Idle State = iota
	Acquiring
	CountingDown
	Capturing
	Sending
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case CountingDown:
		return "counting_down"
	case Capturing:
		return "capturing"
	case Sending:
		return "sending"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event — переход контроллера. Remaining значим только для CountingDown,
// Result — только для перехода в Idle/Failed по итогам скана.
type Event struct {
	State     State          `json:"-"`
	StateName string         `json:"state"`
	Remaining int            `json:"remaining"`
	Result    *vision.Result `json:"result,omitempty"`
	At        time.Time      `json:"at"`
}

// StatusText — подпись кнопки скана для текущего события.
func StatusText(ev Event) string {
	switch ev.State {
	case CountingDown:
		if ev.Remaining > 0 {
			return fmt.Sprintf("Scanning in %d", ev.Remaining)
		}
		return "Processing..."
	case Acquiring, Capturing, Sending:
		return "Processing..."
	}
	return "Scan"
}
