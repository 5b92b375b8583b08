package overlay

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"neuro-scan/api/internal/catalog"
	"neuro-scan/api/internal/vision"
)

const (
	bandMin = 10.0
	bandMax = 90.0
)

// Position — координаты центра иконки в процентах от размеров схемы.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Entry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	AssetRef string   `json:"asset"`
	Position Position `json:"position"`
	Count    *float64 `json:"count"`
}

// Place оставляет только компоненты из каталога и раскладывает их случайно
// в полосе 10–90% по каждой оси. Пересечения допустимы.
func Place(components []vision.Component, cat catalog.Catalog, rng *rand.Rand) []Entry {
	out := make([]Entry, 0, len(components))
	for _, c := range components {
		ref, ok := cat.Lookup(c.Name)
		if !ok {
			continue
		}
		out = append(out, Entry{
			ID:       uuid.NewString(),
			Name:     c.Name,
			AssetRef: ref,
			Position: Position{X: randBand(rng), Y: randBand(rng)},
			Count:    c.Count,
		})
	}
	return out
}

func randBand(rng *rand.Rand) float64 {
	return bandMin + rng.Float64()*(bandMax-bandMin)
}

// CatalogSource — откуда Board берёт каталог в момент доставки результата.
type CatalogSource interface {
	Current() catalog.Catalog
}

// Board хранит текущий набор оверлеев; набор заменяется целиком.
type Board struct {
	cat CatalogSource

	mu      sync.RWMutex
	rng     *rand.Rand
	entries []Entry
}

func NewBoard(cat CatalogSource, rng *rand.Rand) *Board {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Board{cat: cat, rng: rng, entries: []Entry{}}
}

func (b *Board) Reset() {
	b.mu.Lock()
	b.entries = []Entry{}
	b.mu.Unlock()
}

// Deliver ставит оверлеи по результату скана; отказ даёт пустой набор.
func (b *Board) Deliver(res vision.Result) {
	cat := b.cat.Current()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = Place(res.Components, cat, b.rng)
}

func (b *Board) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}
