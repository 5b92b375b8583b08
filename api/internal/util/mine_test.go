package util

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encoded(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := enc(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestToPNG(t *testing.T) {
	pngBytes := encoded(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })
	jpgBytes := encoded(t, func(b *bytes.Buffer, m image.Image) error { return jpeg.Encode(b, m, nil) })

	out, err := ToPNG(pngBytes)
	if err != nil || !bytes.Equal(out, pngBytes) {
		t.Errorf("png must pass through unchanged: %v", err)
	}

	out, err = ToPNG(jpgBytes)
	if err != nil || !IsPNG(out) {
		t.Errorf("jpeg must be transcoded: %v", err)
	}

	if _, err := ToPNG([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0x01}
	b64 := base64.StdEncoding.EncodeToString(raw)

	b, mime, err := DecodeBase64MaybeDataURL("data:image/jpeg;base64," + b64)
	if err != nil || mime != "image/jpeg" || !bytes.Equal(b, raw) {
		t.Errorf("data url: %v %q %v", b, mime, err)
	}
	if SniffMimeHTTP(b) != "image/jpeg" {
		t.Errorf("sniff %q", SniffMimeHTTP(b))
	}

	b, mime, err = DecodeBase64MaybeDataURL("  " + b64 + " ")
	if err != nil || mime != "" || !bytes.Equal(b, raw) {
		t.Errorf("bare base64: %v %q %v", b, mime, err)
	}

	if _, _, err := DecodeBase64MaybeDataURL("%%%"); err == nil {
		t.Error("expected error")
	}
}
