package session

import (
	"sync"
	"time"

	"neuro-scan/api/internal/vision"
)

// Recognition — последний результат скана, общий для сканера и чата.
// Пишет только контроллер (как Sink), чат читает.
type Recognition struct {
	mu     sync.RWMutex
	result vision.Result
	at     time.Time
}

func NewRecognition() *Recognition {
	return &Recognition{result: vision.Success(nil)}
}

func (r *Recognition) Reset() {
	r.mu.Lock()
	r.result = vision.Success(nil)
	r.at = time.Time{}
	r.mu.Unlock()
}

func (r *Recognition) Deliver(res vision.Result) {
	comps := make([]vision.Component, len(res.Components))
	copy(comps, res.Components)
	res.Components = comps

	r.mu.Lock()
	r.result = res
	r.at = time.Now()
	r.mu.Unlock()
}

// Components — копия списка; пусто до первого скана и после отказа.
func (r *Recognition) Components() []vision.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]vision.Component, len(r.result.Components))
	copy(out, r.result.Components)
	return out
}

func (r *Recognition) Last() (vision.Result, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result, r.at
}
