package capture

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"neuro-scan/api/internal/vision"
)

// Dispatcher связывает каждый запрос к Recognizer с одноразовым слушателем
// по correlation id. Слушатель снимается после первой доставки; поздние
// и повторные ответы отбрасываются.
type Dispatcher struct {
	rec vision.Recognizer

	mu      sync.Mutex
	pending map[string]chan vision.Result
}

func NewDispatcher(rec vision.Recognizer) *Dispatcher {
	return &Dispatcher{rec: rec, pending: make(map[string]chan vision.Result)}
}

// Register заводит слушателя до отправки запроса.
func (d *Dispatcher) Register() (string, <-chan vision.Result) {
	id := uuid.NewString()
	ch := make(chan vision.Result, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	return id, ch
}

// Dispatch отправляет кадр; ответ придёт в канал, выданный Register.
func (d *Dispatcher) Dispatch(ctx context.Context, id string, image []byte) {
	go func() {
		res := d.rec.Recognize(ctx, image, "png")
		d.Deliver(id, res)
	}()
}

// Deliver возвращает false, если слушателя уже нет.
func (d *Dispatcher) Deliver(id string, res vision.Result) bool {
	d.mu.Lock()
	ch, ok := d.pending[id]
	delete(d.pending, id)
	d.mu.Unlock()
	if !ok {
		log.Printf("capture: dropped response for %s", id)
		return false
	}
	ch <- res
	return true
}

func (d *Dispatcher) Cancel(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Roundtrip: register → dispatch → ждём ответ или отмену ctx.
func (d *Dispatcher) Roundtrip(ctx context.Context, image []byte) vision.Result {
	id, ch := d.Register()
	d.Dispatch(ctx, id, image)
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		d.Cancel(id)
		return vision.Failure(vision.KindTransportFailure, ctx.Err().Error(), nil)
	}
}
