package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Catalog: идентификатор компонента в нижнем регистре -> ссылка на иконку
// (имя файла в каталоге ассетов или URL).
type Catalog map[string]string

func Key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (c Catalog) Has(name string) bool {
	_, ok := c[Key(name)]
	return ok
}

func (c Catalog) Lookup(name string) (string, bool) {
	ref, ok := c[Key(name)]
	return ref, ok
}

func (c Catalog) Names() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Source interface {
	Load(ctx context.Context) (Catalog, error)
}

var iconExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true}

// DirSource — каталог иконок: resistor.png -> "resistor".
type DirSource struct {
	Dir string
}

func (s DirSource) Load(ctx context.Context) (Catalog, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", s.Dir, err)
	}
	out := make(Catalog, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !iconExt[ext] {
			continue
		}
		key := Key(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if key == "" {
			continue
		}
		// при дублях (resistor.png и resistor.svg) побеждает первый по алфавиту
		if _, dup := out[key]; !dup {
			out[key] = e.Name()
		}
	}
	return out, nil
}

// Lister — табличный источник (store.AssetRepo).
type Lister interface {
	List(ctx context.Context) (map[string]string, error)
}

type DBSource struct {
	Repo Lister
}

func (s DBSource) Load(ctx context.Context) (Catalog, error) {
	rows, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: db: %w", err)
	}
	out := make(Catalog, len(rows))
	for name, ref := range rows {
		if k := Key(name); k != "" {
			out[k] = ref
		}
	}
	return out, nil
}

// Provider кэширует каталог; перечитывается только по Refresh.
type Provider struct {
	src Source

	mu     sync.RWMutex
	cur    Catalog
	loaded bool
}

func NewProvider(src Source) *Provider {
	return &Provider{src: src, cur: Catalog{}}
}

// Get отдаёт кэш, при первом обращении загружает.
func (p *Provider) Get(ctx context.Context) (Catalog, error) {
	p.mu.RLock()
	if p.loaded {
		c := p.cur
		p.mu.RUnlock()
		return c, nil
	}
	p.mu.RUnlock()
	return p.Refresh(ctx)
}

func (p *Provider) Refresh(ctx context.Context) (Catalog, error) {
	c, err := p.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.cur = c
	p.loaded = true
	p.mu.Unlock()
	log.Printf("catalog: loaded %d identifiers", len(c))
	return c, nil
}

// Current — последний загруженный каталог без обращения к источнику (пустой до первой загрузки).
func (p *Provider) Current() Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur
}

// Upserter — приёмник синхронизации (store.AssetRepo).
type Upserter interface {
	Upsert(ctx context.Context, name, ref string) error
}

// Sync переносит каталог источника в таблицу.
func Sync(ctx context.Context, src Source, dst Upserter) (int, error) {
	c, err := src.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range c.Names() {
		if err := dst.Upsert(ctx, name, c[name]); err != nil {
			return n, fmt.Errorf("catalog: sync %q: %w", name, err)
		}
		n++
	}
	return n, nil
}
