package ident

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"
)

// seeded returns a deterministic entropy stream for repeatable runs.
func seeded(seed byte) *rand.ChaCha8 {
	var key [32]byte
	key[0] = seed
	return rand.NewChaCha8(key)
}

func TestGeneratorShape(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		id := g.New()
		if len(id) != Length {
			t.Fatalf("len(%q) = %d, want %d", id, len(id), Length)
		}
		for _, c := range id {
			if !strings.ContainsRune(Alphabet, c) {
				t.Fatalf("identifier %q contains %q outside the alphabet", id, c)
			}
		}
		if !Valid(id) {
			t.Fatalf("Valid(%q) = false", id)
		}
	}
}

func TestGeneratorUniqueAcrossTenThousand(t *testing.T) {
	g := NewGenerator(seeded(7))
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := g.New()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier %q after %d generations", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	a := NewGenerator(seeded(42))
	b := NewGenerator(seeded(42))
	for i := 0; i < 5; i++ {
		if x, y := a.New(), b.New(); x != y {
			t.Fatalf("generation %d differs: %q vs %q", i, x, y)
		}
	}
}

func TestGeneratorRejectsBiasedBytes(t *testing.T) {
	// 0xff is above maxUnbiased and must be skipped; 0x01 maps to 'b'.
	src := bytes.NewReader(append(bytes.Repeat([]byte{0xff, 0x01}, Length*2), bytes.Repeat([]byte{0x01}, Length*4)...))
	g := NewGenerator(src)
	if got, want := g.New(), strings.Repeat("b", Length); got != want {
		t.Fatalf("New() = %q, want %q", got, want)
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"abcdefghij012345":   true,
		"ABCDEFGHIJ012345":   false,
		"abc":                false,
		"abcdefghij01234-":   false,
		"' OR '1'='1":        false,
		"abcdefghij0123456x": false,
	}
	for in, want := range cases {
		if got := Valid(in); got != want {
			t.Errorf("Valid(%q) = %v, want %v", in, got, want)
		}
	}
}
