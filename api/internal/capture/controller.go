package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"neuro-scan/api/internal/util"
	"neuro-scan/api/internal/vision"
)

var ErrBusy = errors.New("capture: scan already in progress")

const (
	DefaultCountdown = 2
	fallbackWidth    = 640
	fallbackHeight   = 480
	msgFrameMissing  = "Camera frame unavailable"
)

// Sink получает Reset в начале скана и Deliver с итогом.
type Sink interface {
	Reset()
	Deliver(res vision.Result)
}

// SurfaceFunc выдаёт внеэкранный растр под кадр.
type SurfaceFunc func(width, height int) (draw.Image, error)

func NewRGBASurface(width, height int) (draw.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

type Controller struct {
	cam   Camera
	disp  *Dispatcher
	sinks []Sink

	Countdown int
	After     func(time.Duration) <-chan time.Time
	Surface   SurfaceFunc

	busy  atomic.Bool
	mu    sync.RWMutex
	state State
	last  Event
	subs  map[int]chan Event
	subID int
}

func New(cam Camera, rec vision.Recognizer, sinks ...Sink) *Controller {
	return &Controller{
		cam:       cam,
		disp:      NewDispatcher(rec),
		sinks:     sinks,
		Countdown: DefaultCountdown,
		After:     time.After,
		Surface:   NewRGBASurface,
		subs:      make(map[int]chan Event),
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Last — последнее опубликованное событие (для подписи кнопки).
func (c *Controller) Last() Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Controller) Busy() bool { return c.busy.Load() }

// Subscribe возвращает канал событий и функцию отписки.
// Медленный подписчик теряет события, контроллер не ждёт.
func (c *Controller) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	c.mu.Lock()
	id := c.subID
	c.subID++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
		c.mu.Unlock()
	}
}

func (c *Controller) publish(st State, remaining int, res *vision.Result) {
	ev := Event{State: st, StateName: st.String(), Remaining: remaining, Result: res, At: time.Now()}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
	c.last = ev
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Scan выполняет полный цикл: камера → отсчёт → кадр → распознавание.
// Ошибка возвращается только при занятости контроллера или отмене ctx;
// все остальные отказы приходят как Result.Failed().
func (c *Controller) Scan(ctx context.Context) (vision.Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return vision.Result{}, ErrBusy
	}
	defer c.busy.Store(false)

	c.resetSinks()
	c.publish(Acquiring, 0, nil)

	guard, err := Acquire(ctx, c.cam)
	if err != nil {
		log.Printf("capture: camera open failed: %v", err)
		return c.finish(Failed, vision.Failure(vision.KindDeviceAcquisitionDenied, vision.MsgCameraDenied, nil)), nil
	}
	defer guard.Release()

	if err := c.countdown(ctx); err != nil {
		_ = guard.Release()
		c.publish(Idle, 0, nil)
		return vision.Result{}, err
	}

	c.publish(Capturing, 0, nil)
	frame, fail := c.grab(guard.Device())
	// устройство не должно оставаться открытым на время запроса
	if err := guard.Release(); err != nil {
		log.Printf("capture: camera release: %v", err)
	}
	if fail != nil {
		return c.finish(Failed, *fail), nil
	}

	c.publish(Sending, 0, nil)
	res := c.disp.Roundtrip(ctx, frame)
	return c.finish(Idle, res), nil
}

// Submit распознаёт готовое изображение (загрузка фото) под тем же single-flight.
func (c *Controller) Submit(ctx context.Context, img []byte) (vision.Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return vision.Result{}, ErrBusy
	}
	defer c.busy.Store(false)

	frame, err := util.ToPNG(img)
	if err != nil {
		return vision.Result{}, fmt.Errorf("capture: submit: %w", err)
	}

	c.resetSinks()
	c.publish(Sending, 0, nil)
	res := c.disp.Roundtrip(ctx, frame)
	return c.finish(Idle, res), nil
}

func (c *Controller) countdown(ctx context.Context) error {
	for n := c.Countdown; ; n-- {
		c.publish(CountingDown, n, nil)
		if n <= 0 {
			return nil
		}
		select {
		case <-c.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// grab рисует текущий кадр в растр размера потока и кодирует PNG.
func (c *Controller) grab(dev Device) ([]byte, *vision.Result) {
	w, h := dev.Resolution()
	if w <= 0 || h <= 0 {
		w, h = fallbackWidth, fallbackHeight
	}

	surface, err := c.Surface(w, h)
	if err != nil || surface == nil {
		log.Printf("capture: surface %dx%d: %v", w, h, err)
		r := vision.Failure(vision.KindCaptureSurfaceUnavailable, vision.MsgSurfaceMissing, nil)
		return nil, &r
	}

	frame, err := dev.Frame()
	if err != nil || frame == nil {
		log.Printf("capture: read frame: %v", err)
		r := vision.Failure(vision.KindCaptureSurfaceUnavailable, msgFrameMissing, nil)
		return nil, &r
	}
	drawScaled(surface, frame)

	var out bytes.Buffer
	if err := png.Encode(&out, surface); err != nil {
		r := vision.Failure(vision.KindCaptureSurfaceUnavailable, err.Error(), nil)
		return nil, &r
	}
	return out.Bytes(), nil
}

func (c *Controller) finish(st State, res vision.Result) vision.Result {
	for _, s := range c.sinks {
		s.Deliver(res)
	}
	if res.Failed() {
		log.Printf("capture: scan failed kind=%s: %s", res.Kind, res.Error)
	} else {
		log.Printf("capture: scan done, components=%d", len(res.Components))
	}
	c.publish(st, 0, &res)
	return res
}

func (c *Controller) resetSinks() {
	for _, s := range c.sinks {
		s.Reset()
	}
}

// drawScaled — nearest-neighbor, растр целиком покрывается кадром.
func drawScaled(dst draw.Image, src image.Image) {
	db := dst.Bounds()
	sb := src.Bounds()
	if db.Dx() == sb.Dx() && db.Dy() == sb.Dy() {
		draw.Draw(dst, db, src, sb.Min, draw.Src)
		return
	}
	srcW, srcH := sb.Dx(), sb.Dy()
	newW, newH := db.Dx(), db.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(db.Min.X+x, db.Min.Y+y, src.At(sx, sy))
		}
	}
}
