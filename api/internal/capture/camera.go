package capture

import (
	"context"
	"image"
	"sync"
)

// Camera выдаёт устройство захвата. Open блокируется до готовности потока.
type Camera interface {
	Open(ctx context.Context) (Device, error)
}

// Device — открытый поток кадров. Resolution может вернуть 0x0, если размер неизвестен.
type Device interface {
	Resolution() (width, height int)
	Frame() (image.Image, error)
	Close() error
}

// Guard владеет устройством на время скана; Release идемпотентен
// и вызывается на каждом пути выхода.
type Guard struct {
	dev  Device
	once sync.Once
	err  error
}

func Acquire(ctx context.Context, cam Camera) (*Guard, error) {
	dev, err := cam.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &Guard{dev: dev}, nil
}

func (g *Guard) Device() Device { return g.dev }

func (g *Guard) Release() error {
	g.once.Do(func() {
		g.err = g.dev.Close()
	})
	return g.err
}
