package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/twin/internal/preview"
)

// LoadPreview returns a persisted link preview and when it was fetched.
// A missing row yields a nil preview and no error.
func (db *DB) LoadPreview(ctx context.Context, url string) (*preview.Preview, time.Time, error) {
	var (
		p         preview.Preview
		platform  string
		embedURL  string
		fetchedAt int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT url, title, description, image_url, canonical_url, embed_platform, embed_url, fetched_at
		FROM previews WHERE url = ?`, url).
		Scan(&p.URL, &p.Title, &p.Description, &p.ImageURL, &p.CanonicalURL, &platform, &embedURL, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	if platform != "" {
		p.Embed = &preview.Embed{Platform: platform, URL: embedURL}
	}
	return &p, time.UnixMilli(fetchedAt), nil
}

// SavePreview persists a fetched link preview.
func (db *DB) SavePreview(ctx context.Context, p *preview.Preview) error {
	if p == nil {
		return nil
	}
	var platform, embedURL string
	if p.Embed != nil {
		platform, embedURL = p.Embed.Platform, p.Embed.URL
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO previews (url, title, description, image_url, canonical_url, embed_platform, embed_url, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			image_url = excluded.image_url,
			canonical_url = excluded.canonical_url,
			embed_platform = excluded.embed_platform,
			embed_url = excluded.embed_url,
			fetched_at = excluded.fetched_at`,
		p.URL, p.Title, p.Description, p.ImageURL, p.CanonicalURL, platform, embedURL, time.Now().UnixMilli())
	return err
}

var _ preview.Persister = (*DB)(nil)
