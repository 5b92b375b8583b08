package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"neuro-scan/api/internal/catalog"
	"neuro-scan/api/internal/vision"
)

func cnt(f float64) *float64 { return &f }

type staticCatalog catalog.Catalog

func (s staticCatalog) Current() catalog.Catalog { return catalog.Catalog(s) }

func TestPlaceFiltersByCatalog(t *testing.T) {
	cat := catalog.Catalog{"resistor": "resistor.png"}
	comps := []vision.Component{
		{Name: "Resistor", Count: cnt(2)},
		{Name: "LED", Count: cnt(1)},
	}
	got := Place(comps, cat, rand.New(rand.NewSource(1)))
	if len(got) != 1 {
		t.Fatalf("expected exactly one entry, got %+v", got)
	}
	e := got[0]
	if e.Name != "Resistor" || e.AssetRef != "resistor.png" || *e.Count != 2 || e.ID == "" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestPlaceNeverEmitsUnknown(t *testing.T) {
	cat := catalog.Catalog{"arduino": "a.png", "led": "l.png"}
	comps := []vision.Component{{Name: "ARDUINO"}, {Name: "Servo"}, {Name: ""}, {Name: "led "}, {Name: "L E D"}}
	for _, e := range Place(comps, cat, rand.New(rand.NewSource(7))) {
		if !cat.Has(e.Name) {
			t.Errorf("entry for unknown component %q", e.Name)
		}
	}
}

func TestPlaceBounds(t *testing.T) {
	cat := catalog.Catalog{"resistor": "r.png"}
	comps := make([]vision.Component, 500)
	for i := range comps {
		comps[i] = vision.Component{Name: "resistor"}
	}
	for _, e := range Place(comps, cat, rand.New(rand.NewSource(42))) {
		if e.Position.X < 10 || e.Position.X >= 90 || e.Position.Y < 10 || e.Position.Y >= 90 {
			t.Fatalf("position out of band: %+v", e.Position)
		}
	}
}

func TestPlaceDeterministicWithSeed(t *testing.T) {
	cat := catalog.Catalog{"resistor": "r.png"}
	comps := []vision.Component{{Name: "Resistor"}}
	a := Place(comps, cat, rand.New(rand.NewSource(3)))
	b := Place(comps, cat, rand.New(rand.NewSource(3)))
	if a[0].Position != b[0].Position {
		t.Errorf("same seed must give same layout: %v vs %v", a[0].Position, b[0].Position)
	}
}

func TestPlaceEmpty(t *testing.T) {
	got := Place(nil, catalog.Catalog{"resistor": "r.png"}, rand.New(rand.NewSource(1)))
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil set, got %#v", got)
	}
}

func TestBoardLifecycle(t *testing.T) {
	b := NewBoard(staticCatalog{"resistor": "r.png", "led": "l.png"}, rand.New(rand.NewSource(1)))

	b.Deliver(vision.Success([]vision.Component{{Name: "Resistor"}, {Name: "LED"}}))
	if len(b.Entries()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.Entries()))
	}

	// новый скан очищает оверлеи до прихода результата
	b.Reset()
	if len(b.Entries()) != 0 {
		t.Error("reset must clear entries")
	}

	b.Deliver(vision.Success([]vision.Component{{Name: "LED"}}))
	b.Deliver(vision.Failure(vision.KindTransportFailure, "boom", nil))
	if len(b.Entries()) != 0 {
		t.Error("failure must leave an empty overlay set")
	}
}

func TestRender(t *testing.T) {
	diagram := image.NewRGBA(image.Rect(0, 0, 200, 100))
	dir := t.TempDir()

	icon := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range icon.Pix {
		icon.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, icon)
	if err := os.WriteFile(filepath.Join(dir, "r.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	entries := []Entry{
		{Name: "Resistor", AssetRef: "r.png", Position: Position{X: 50, Y: 50}},
		{Name: "Chip", AssetRef: "chip.svg", Position: Position{X: 20, Y: 20}},
	}
	out, err := Render(diagram, entries, NewFileIcons(dir))
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
	if c := color.RGBAModel.Convert(img.At(100, 50)).(color.RGBA); c.R != 0xff || c.A != 0xff {
		t.Errorf("icon not drawn at center: %v", c)
	}
	if c := color.RGBAModel.Convert(img.At(40, 20)).(color.RGBA); c != markerColor {
		t.Errorf("missing icon must fall back to marker, got %v", c)
	}

	if _, err := Render(nil, nil, nil); err == nil {
		t.Error("expected error without diagram")
	}
}
