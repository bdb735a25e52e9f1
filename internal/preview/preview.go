// Package preview resolves link previews for chat entries. Lookups never fail:
// any problem yields a nil preview.
package preview

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/matheus3301/twin/internal/metrics"
	"github.com/matheus3301/twin/internal/ogmeta"
)

// Preview is the display data attached to an entry.
type Preview struct {
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	Embed        *Embed `json:"embed,omitempty"`
}

// Fetcher retrieves raw metadata for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*ogmeta.Metadata, error)
}

// Persister stores successful previews across daemon restarts.
type Persister interface {
	LoadPreview(ctx context.Context, rawURL string) (*Preview, time.Time, error)
	SavePreview(ctx context.Context, p *Preview) error
}

// Options configures a Previewer.
type Options struct {
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	Persister Persister
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// Previewer caches previews and coalesces concurrent lookups of one URL.
type Previewer struct {
	fetcher   Fetcher
	opts      Options
	cache     *lru
	group     singleflight.Group
	logger    *zap.Logger
	persister Persister
}

// New creates a Previewer backed by f.
func New(f Fetcher, opts Options) *Previewer {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Previewer{
		fetcher:   f,
		opts:      opts,
		cache:     newLRU(opts.CacheSize, opts.CacheTTL, opts.Now),
		logger:    logger,
		persister: opts.Persister,
	}
}

// Fetch returns the preview for rawURL, or nil when there is none. It returns
// early with nil if ctx ends, while the shared upstream fetch keeps running
// under its own timeout for other waiters.
func (p *Previewer) Fetch(ctx context.Context, rawURL string) *Preview {
	if rawURL == "" || p == nil {
		return nil
	}
	if v, ok := p.cache.get(rawURL); ok {
		p.opts.Metrics.PreviewResult("hit")
		return v
	}

	ch := p.group.DoChan(rawURL, func() (any, error) {
		return p.resolve(context.WithoutCancel(ctx), rawURL)
	})
	select {
	case <-ctx.Done():
		return nil
	case res := <-ch:
		if res.Err != nil {
			return nil
		}
		v, _ := res.Val.(*Preview)
		return v
	}
}

// Cached reports the number of cached previews.
func (p *Previewer) Cached() int {
	return p.cache.len()
}

func (p *Previewer) resolve(ctx context.Context, rawURL string) (out *Preview, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("preview fetcher panicked", zap.String("url", rawURL), zap.Any("panic", r))
			out, err = nil, fmt.Errorf("fetcher panic: %v", r)
		}
	}()

	if v := p.loadPersisted(ctx, rawURL); v != nil {
		p.cache.put(rawURL, v)
		p.opts.Metrics.PreviewResult("hit")
		return v, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := p.opts.Now()
	md, err := p.fetcher.Fetch(ctx, rawURL)
	p.opts.Metrics.ObservePreviewFetch(p.opts.Now().Sub(start).Seconds())
	if err != nil {
		p.opts.Metrics.PreviewResult("error")
		p.logger.Debug("preview fetch failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	p.opts.Metrics.PreviewResult("miss")

	v := build(rawURL, md)
	if v == nil {
		return nil, nil
	}
	p.cache.put(rawURL, v)
	if p.persister != nil {
		if err := p.persister.SavePreview(ctx, v); err != nil {
			p.logger.Debug("persist preview", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return v, nil
}

func (p *Previewer) loadPersisted(ctx context.Context, rawURL string) *Preview {
	if p.persister == nil {
		return nil
	}
	v, fetchedAt, err := p.persister.LoadPreview(ctx, rawURL)
	if err != nil || v == nil {
		return nil
	}
	if p.opts.Now().Sub(fetchedAt) >= p.opts.CacheTTL {
		return nil
	}
	return v
}

func build(rawURL string, md *ogmeta.Metadata) *Preview {
	if md.Empty() {
		return nil
	}
	canonical := md.OgURL
	if canonical == "" {
		canonical = rawURL
	}
	return &Preview{
		URL:          rawURL,
		Title:        md.OgTitle,
		Description:  md.OgDescription,
		ImageURL:     md.ImageURL(),
		CanonicalURL: canonical,
		Embed:        Classify(rawURL),
	}
}
