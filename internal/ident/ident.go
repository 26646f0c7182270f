// Package ident generates resource identifiers: short, URL-safe tokens that
// name an asset's files and double as its public share secret.
package ident

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
)

const (
	// Alphabet is the identifier symbol set.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// Length gives 36^16 (about 2^83) possible identifiers.
	Length = 16

	// Bytes >= maxUnbiased are rejected so each symbol is uniform.
	maxUnbiased = 256 - 256%len(Alphabet)
)

// Generator draws identifiers from an entropy source.
type Generator struct {
	mu  sync.Mutex
	src io.Reader
	buf []byte
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return NewGenerator(rand.Reader)
}

// NewGenerator returns a Generator reading from src. Anything other than
// crypto/rand.Reader is only suitable for tests.
func NewGenerator(src io.Reader) *Generator {
	return &Generator{src: src, buf: make([]byte, Length*2)}
}

// New returns a fresh identifier. It panics if the entropy source fails.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]byte, 0, Length)
	for len(out) < Length {
		if _, err := io.ReadFull(g.src, g.buf); err != nil {
			panic(fmt.Sprintf("ident: read entropy: %v", err))
		}
		for _, b := range g.buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out)
}

// Valid reports whether s has the shape of a generated identifier.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
