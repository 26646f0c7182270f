// Package qr renders view URLs into QR code PNG images.
package qr

import (
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// Encoder renders black-on-white PNG QR codes at a fixed size.
type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

// NewEncoder returns an Encoder producing size x size images.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// Encode returns the PNG bytes of a QR code for content.
func (e *Encoder) Encode(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr: empty content")
	}
	png, err := goqrcode.Encode(content, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}
