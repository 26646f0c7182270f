// Package model contains the struct definitions shared across packages.
package model

import (
	"path"
	"strings"
	"time"
)

// Storage key prefixes. Keys double as the relative paths stored in the
// assets table and as the URL paths of the static mounts.
const (
	ModelPrefix = "assets/"
	QRPrefix    = "uploads/qrcodes/"
)

// Asset is one uploaded 3D model plus its metadata and QR image.
type Asset struct {
	// ID is the store-assigned surrogate key; it only orders listings.
	ID int64 `json:"-"`
	// FilePath is the model's storage key, "assets/{resource_path}{ext}".
	FilePath     string    `json:"file_path"`
	UserID       string    `json:"user_id"`
	ResourcePath string    `json:"resource_path"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	QRPath       string    `json:"qr_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssetSummary is the public listing shape of an Asset.
type AssetSummary struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ResourcePath string `json:"resource_path"`
	QRPath       string `json:"qr_path"`
}

// Summary strips an Asset down to its public fields.
func (a *Asset) Summary() AssetSummary {
	return AssetSummary{
		Name:         a.Name,
		Description:  a.Description,
		ResourcePath: a.ResourcePath,
		QRPath:       a.QRPath,
	}
}

// ModelKey is the storage key of a model binary.
func ModelKey(resourcePath, ext string) string {
	return ModelPrefix + resourcePath + strings.ToLower(ext)
}

// QRKey is the storage key of an asset's QR image.
func QRKey(resourcePath string) string {
	return QRPrefix + resourcePath + ".png"
}

// Stem returns the file name of key without directory or extension.
func Stem(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
