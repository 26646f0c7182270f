package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dharsanguruparan/ModelDrop/internal/storage"
)

type failingCleaner struct {
	err   error
	calls int
}

func (f *failingCleaner) Cleanup(context.Context, string, []string) error {
	f.calls++
	return f.err
}

func TestFallbackCleanerUsesSecondaryWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := "assets/zzzzzzzzzzzzzzzz.glb"
	if err := f.blobs.Put(ctx, key, strings.NewReader("glTF"), 4, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	primary := &failingCleaner{err: errors.New("redis down")}
	cleaner := FallbackCleaner{
		Primary:   primary,
		Secondary: NewInlineCleaner(f.store, f.blobs, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if err := cleaner.Cleanup(ctx, "zzzzzzzzzzzzzzzz", []string{key}); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if primary.calls != 1 {
		t.Fatalf("primary called %d times, want 1", primary.calls)
	}
	if _, err := f.blobs.Open(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Open after fallback cleanup: err = %v, want ErrNotFound", err)
	}
}

func TestFallbackCleanerSkipsSecondaryOnSuccess(t *testing.T) {
	primary := &failingCleaner{}
	secondary := &failingCleaner{err: errors.New("should not run")}
	cleaner := FallbackCleaner{Primary: primary, Secondary: secondary}
	if err := cleaner.Cleanup(context.Background(), "zzzzzzzzzzzzzzzz", []string{"assets/zzzzzzzzzzzzzzzz.glb"}); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestFallbackCleanerJoinsErrors(t *testing.T) {
	errQueue := errors.New("redis down")
	errDisk := errors.New("disk gone")
	cleaner := FallbackCleaner{
		Primary:   &failingCleaner{err: errQueue},
		Secondary: &failingCleaner{err: errDisk},
	}
	err := cleaner.Cleanup(context.Background(), "zzzzzzzzzzzzzzzz", nil)
	if !errors.Is(err, errQueue) || !errors.Is(err, errDisk) {
		t.Fatalf("err = %v, want both failures", err)
	}
}
