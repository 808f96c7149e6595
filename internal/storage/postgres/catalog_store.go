package postgres

import (
	"context"
	"fmt"

	"github.com/navhub/navhub/internal/directory"
)

// CatalogStore persists published entries in the web_navigation table.
type CatalogStore struct {
	pool querier
}

// NewCatalogStore constructs a store from an existing pool.
func NewCatalogStore(pool querier) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CatalogStore{pool: pool}, nil
}

// Insert writes one catalog entry. Image URLs may be NULL; text fields are
// expected to already carry the pipeline's defaults.
func (s *CatalogStore) Insert(ctx context.Context, entry directory.CatalogEntry) error {
	query := `
INSERT INTO web_navigation (
	name,
	title,
	content,
	detail,
	url,
	image_url,
	thumbnail_url,
	collection_time,
	category_name,
	star_rating
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		entry.Name,
		entry.Title,
		entry.Content,
		entry.Detail,
		entry.URL,
		nullIfEmpty(entry.ImageURL),
		nullIfEmpty(entry.ThumbnailURL),
		entry.CollectionTime,
		entry.CategoryName,
		entry.StarRating,
	)
	if err != nil {
		return fmt.Errorf("insert catalog entry: %w", err)
	}
	return nil
}

// List returns catalog entries, newest first.
func (s *CatalogStore) List(ctx context.Context) ([]directory.CatalogEntry, error) {
	query := `
SELECT name, title, content, detail, url, image_url, thumbnail_url, collection_time, category_name, star_rating
FROM web_navigation
ORDER BY collection_time DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	defer rows.Close()

	var out []directory.CatalogEntry
	for rows.Next() {
		var entry directory.CatalogEntry
		var imageURL, thumbnailURL *string
		if err := rows.Scan(
			&entry.Name,
			&entry.Title,
			&entry.Content,
			&entry.Detail,
			&entry.URL,
			&imageURL,
			&thumbnailURL,
			&entry.CollectionTime,
			&entry.CategoryName,
			&entry.StarRating,
		); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		if imageURL != nil {
			entry.ImageURL = *imageURL
		}
		if thumbnailURL != nil {
			entry.ThumbnailURL = *thumbnailURL
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return out, nil
}

// CategoryStore reads the navigation_category taxonomy.
type CategoryStore struct {
	pool querier
}

// NewCategoryStore constructs a store from an existing pool.
func NewCategoryStore(pool querier) (*CategoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CategoryStore{pool: pool}, nil
}

// List returns every taxonomy label.
func (s *CategoryStore) List(ctx context.Context) ([]directory.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM navigation_category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []directory.Category
	for rows.Next() {
		var cat directory.Category
		if err := rows.Scan(&cat.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}
