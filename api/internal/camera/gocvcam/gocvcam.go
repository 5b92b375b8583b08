package gocvcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"neuro-scan/api/internal/capture"
)

// Camera открывает веб-камеру через OpenCV. Поток читается в фоне с момента
// Open, чтобы к концу отсчёта кадр был «живым».
type Camera struct {
	DeviceID    int
	WarmupLimit time.Duration
}

func New(deviceID int) *Camera {
	return &Camera{DeviceID: deviceID, WarmupLimit: 3 * time.Second}
}

func (c *Camera) Open(ctx context.Context) (capture.Device, error) {
	vc, err := gocv.OpenVideoCapture(c.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("gocvcam: open device %d: %w", c.DeviceID, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("gocvcam: device %d not opened", c.DeviceID)
	}

	d := &device{
		vc:     vc,
		width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		first:  make(chan struct{}),
	}
	go d.loop()

	// ждём первый кадр, иначе считаем устройство недоступным
	select {
	case <-d.first:
		return d, nil
	case <-ctx.Done():
		_ = d.Close()
		return nil, ctx.Err()
	case <-time.After(c.WarmupLimit):
		_ = d.Close()
		return nil, fmt.Errorf("gocvcam: device %d: no frames in %v", c.DeviceID, c.WarmupLimit)
	}
}

type device struct {
	vc *gocv.VideoCapture
	// размер читается до старта фонового цикла: VideoCapture не потокобезопасен
	width, height int

	mu     sync.RWMutex
	latest image.Image

	stop      chan struct{}
	done      chan struct{}
	first     chan struct{}
	firstOnce sync.Once
	closeOnce sync.Once
}

func (d *device) loop() {
	defer close(d.done)
	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-d.stop:
			return
		default:
		}
		if ok := d.vc.Read(&mat); !ok || mat.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		img, err := mat.ToImage()
		if err != nil {
			log.Printf("gocvcam: convert frame: %v", err)
			continue
		}
		d.mu.Lock()
		d.latest = img
		d.mu.Unlock()
		d.firstOnce.Do(func() { close(d.first) })
		time.Sleep(33 * time.Millisecond) // ~30 FPS
	}
}

func (d *device) Resolution() (int, int) { return d.width, d.height }

func (d *device) Frame() (image.Image, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return nil, errors.New("gocvcam: no frame yet")
	}
	return d.latest, nil
}

func (d *device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.stop)
		<-d.done
		err = d.vc.Close()
	})
	return err
}
