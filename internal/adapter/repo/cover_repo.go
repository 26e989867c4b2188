package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/genfinity/covergen/internal/branding"
	"github.com/genfinity/covergen/internal/sqlinline"
	"github.com/genfinity/covergen/internal/storage"
)

// CoverRepositoryPG is the PostgreSQL-backed storage collaborator: image
// bytes go to the file store, metadata rows and the client→branding-asset
// mapping live in the database.
type CoverRepositoryPG struct {
	pool  *pgxpool.Pool
	files *storage.FileStore
}

// NewCoverRepository creates a cover repository backed by PostgreSQL and a
// file store for the image bytes.
func NewCoverRepository(pool *pgxpool.Pool, files *storage.FileStore) *CoverRepositoryPG {
	return &CoverRepositoryPG{pool: pool, files: files}
}

// SaveCover persists the artifact and records its metadata. The storage key
// of the image doubles as the durable result reference.
func (r *CoverRepositoryPG) SaveCover(ctx context.Context, cover storage.Cover) (string, error) {
	key, err := r.files.SaveCover(ctx, cover)
	if err != nil {
		return "", err
	}
	params, err := json.Marshal(cover.Params)
	if err != nil {
		return "", fmt.Errorf("repo: marshal generation params: %w", err)
	}
	_, err = r.pool.Exec(ctx, sqlinline.QInsertCover,
		uuid.NewString(),
		key,
		cover.Title,
		cover.Subtitle,
		cover.ClientID,
		cover.Width,
		cover.Height,
		params,
	)
	if err != nil {
		return "", fmt.Errorf("repo: insert cover: %w", err)
	}
	return key, nil
}

// BrandingAliases loads the read-only client→branding-asset mapping. Each
// row is one alias; several aliases may point at the same asset.
func (r *CoverRepositoryPG) BrandingAliases(ctx context.Context) (map[string]branding.Descriptor, error) {
	rows, err := r.pool.Query(ctx, sqlinline.QListBrandingAliases)
	if err != nil {
		return nil, fmt.Errorf("repo: load branding aliases: %w", err)
	}
	defer rows.Close()

	table := make(map[string]branding.Descriptor)
	for rows.Next() {
		var alias, assetName string
		var weight float64
		if err := rows.Scan(&alias, &assetName, &weight); err != nil {
			return nil, fmt.Errorf("repo: scan branding alias: %w", err)
		}
		table[alias] = branding.Descriptor{AssetName: assetName, BlendWeight: weight}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
