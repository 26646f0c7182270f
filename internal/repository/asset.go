// Package repository persists asset records. Every statement binds request
// data as $n parameters; nothing from a client is ever spliced into SQL text.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/ModelDrop/internal/model"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("asset not found")
	// ErrConflict is returned when resource_path is already taken.
	ErrConflict = errors.New("resource path already exists")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx. The pool acquires a
// connection per statement and releases it when the statement (or the
// returned rows) completes, including on error paths.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AssetRepository wraps the SQL used by the API and the worker.
type AssetRepository struct {
	db DBTX
}

// NewAssetRepository constructs a repository.
func NewAssetRepository(db DBTX) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts asset and fills its surrogate id and creation time.
func (r *AssetRepository) Create(ctx context.Context, asset *model.Asset) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO assets (file_path, user_id, resource_path, name, description, qr_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, asset.FilePath, asset.UserID, asset.ResourcePath, asset.Name, asset.Description, asset.QRPath).
		Scan(&asset.ID, &asset.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert asset %s: %w", asset.ResourcePath, ErrConflict)
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByResourcePath returns the asset whose resource_path equals id exactly.
func (r *AssetRepository) GetByResourcePath(ctx context.Context, id string) (*model.Asset, error) {
	var asset model.Asset
	row := r.db.QueryRow(ctx, `
		SELECT id, file_path, user_id, resource_path, name, description, qr_path, created_at
		FROM assets WHERE resource_path = $1
	`, id)
	if err := row.Scan(&asset.ID, &asset.FilePath, &asset.UserID, &asset.ResourcePath,
		&asset.Name, &asset.Description, &asset.QRPath, &asset.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select asset: %w", err)
	}
	return &asset, nil
}

// ExistsByResourcePath reports whether a record owns id.
func (r *AssetRepository) ExistsByResourcePath(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assets WHERE resource_path = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check asset: %w", err)
	}
	return exists, nil
}

// List returns every asset, most recent first.
func (r *AssetRepository) List(ctx context.Context) ([]*model.Asset, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, file_path, user_id, resource_path, name, description, qr_path, created_at
		FROM assets ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Asset, 0)
	for rows.Next() {
		asset := &model.Asset{}
		if err := rows.Scan(&asset.ID, &asset.FilePath, &asset.UserID, &asset.ResourcePath,
			&asset.Name, &asset.Description, &asset.QRPath, &asset.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
