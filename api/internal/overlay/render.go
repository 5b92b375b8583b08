package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// iconShare — ширина иконки относительно ширины схемы.
const iconShare = 0.12

var markerColor = color.RGBA{R: 0x3d, G: 0xa5, B: 0xff, A: 0xff}

// IconLoader достаёт картинку иконки по ссылке из каталога.
type IconLoader interface {
	Icon(ref string) (image.Image, error)
}

// FileIcons: относительные ссылки — файлы в Dir, http(s) — скачиваются.
// Декодированные иконки кэшируются.
type FileIcons struct {
	Dir    string
	client *http.Client

	mu    sync.Mutex
	cache map[string]image.Image
}

func NewFileIcons(dir string) *FileIcons {
	return &FileIcons{Dir: dir, client: &http.Client{Timeout: 30 * time.Second}, cache: map[string]image.Image{}}
}

func (f *FileIcons) Icon(ref string) (image.Image, error) {
	f.mu.Lock()
	img, ok := f.cache[ref]
	f.mu.Unlock()
	if ok {
		return img, nil
	}
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, err = f.download(ref)
	} else {
		data, err = os.ReadFile(filepath.Join(f.Dir, filepath.Base(ref)))
	}
	if err != nil {
		return nil, err
	}
	img, _, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("overlay: decode icon %s: %w", ref, err)
	}
	f.mu.Lock()
	f.cache[ref] = img
	f.mu.Unlock()
	return img, nil
}

func (f *FileIcons) download(url string) ([]byte, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// LoadImage читает схему с диска.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("overlay: decode %s: %w", path, err)
	}
	return img, nil
}

// Render накладывает иконки на схему и кодирует PNG. Иконку, которую не удалось
// загрузить (например, svg), заменяет цветной маркер.
func Render(diagram image.Image, entries []Entry, icons IconLoader) ([]byte, error) {
	if diagram == nil {
		return nil, fmt.Errorf("overlay: no diagram")
	}
	db := diagram.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, db.Dx(), db.Dy()))
	draw.Draw(dst, dst.Bounds(), diagram, db.Min, draw.Src)

	side := int(float64(db.Dx()) * iconShare)
	if side < 8 {
		side = 8
	}
	for _, e := range entries {
		cx := int(e.Position.X / 100 * float64(db.Dx()))
		cy := int(e.Position.Y / 100 * float64(db.Dy()))

		var icon image.Image
		if icons != nil {
			if img, err := icons.Icon(e.AssetRef); err == nil {
				icon = img
			}
		}
		if icon == nil {
			rect := image.Rect(cx-side/4, cy-side/4, cx+side/4, cy+side/4)
			draw.Draw(dst, rect, &image.Uniform{C: markerColor}, image.Point{}, draw.Over)
			continue
		}

		ib := icon.Bounds()
		h := side
		if ib.Dx() > 0 {
			h = side * ib.Dy() / ib.Dx()
		}
		if h < 1 {
			h = 1
		}
		scaled := scaleNN(icon, side, h)
		rect := image.Rect(cx-side/2, cy-h/2, cx-side/2+side, cy-h/2+h)
		draw.Draw(dst, rect, scaled, image.Point{}, draw.Over)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func scaleNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
