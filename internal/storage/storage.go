// Package storage persists model binaries and QR images under slash-separated
// keys such as "assets/{id}.glb" and "uploads/qrcodes/{id}.png".
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a key has no object.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that would escape the store.
var ErrInvalidKey = errors.New("invalid object key")

// ErrSizeMismatch is returned by Put when the body length differs from the
// declared size.
var ErrSizeMismatch = errors.New("object size mismatch")

// Object is an open stored blob. Callers must close Body.
type Object struct {
	Body        io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// ObjectInfo describes a stored blob without opening it.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// BlobStore is implemented by FileStore and S3Store.
type BlobStore interface {
	// Put stores r under key. size is the expected length or -1 if unknown.
	// A failed Put leaves nothing under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ContentTypeFor maps a key's extension to the content type served for it.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".glb":
		return "model/gltf-binary"
	case ".gltf":
		return "model/gltf+json"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
