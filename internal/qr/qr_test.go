package qr

import (
	"bytes"
	"image/png"
	"testing"
)

func TestEncodeProducesPNG(t *testing.T) {
	e := NewEncoder(256)
	data, err := e.Encode("http://localhost:3001/abcdefghij012345")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Fatalf("image is %dx%d, want 256x256", b.Dx(), b.Dy())
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if _, err := NewEncoder(0).Encode(""); err == nil {
		t.Fatal("expected error for empty content")
	}
}
