package ogmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const maxPageBytes = 2 << 20

// browserHeaders make metadata requests look like a desktop browser; several
// sites refuse or strip Open Graph tags for unknown agents.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
}

// Scraper fetches pages directly and extracts their metadata.
type Scraper struct {
	client    *http.Client
	oembedURL string
	logger    *zap.Logger
}

// ScraperOption customizes a Scraper.
type ScraperOption func(*Scraper)

// WithOEmbedURL overrides the YouTube oEmbed endpoint.
func WithOEmbedURL(u string) ScraperOption {
	return func(s *Scraper) { s.oembedURL = u }
}

// NewScraper creates a scraper. A nil client uses http.DefaultClient.
func NewScraper(client *http.Client, logger *zap.Logger, opts ...ScraperOption) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scraper{client: client, oembedURL: defaultOEmbedURL, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Fetch scrapes rawURL. YouTube links get an oEmbed title and thumbnail when the
// page lacks them, and a fixed fallback when the page cannot be fetched at all.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*Metadata, error) {
	if rawURL == "" {
		return nil, errors.New("url is required")
	}
	md, err := s.fetchPage(ctx, rawURL)
	if err != nil {
		if IsYouTube(rawURL) {
			s.logger.Debug("page fetch failed, using youtube fallback", zap.String("url", rawURL), zap.Error(err))
			return &Metadata{
				OgTitle: fallbackTitle,
				OgImage: Images{{URL: fmt.Sprintf(thumbnailFormat, YouTubeID(rawURL))}},
				OgURL:   rawURL,
			}, nil
		}
		return nil, err
	}
	md.OgURL = rawURL

	if IsYouTube(rawURL) && (md.OgTitle == "" || md.ImageURL() == "") {
		id := YouTubeID(rawURL)
		title, oerr := s.oembedTitle(ctx, id)
		if oerr != nil {
			s.logger.Debug("oembed fallback failed", zap.String("url", rawURL), zap.Error(oerr))
		} else {
			if md.OgTitle == "" {
				md.OgTitle = title
			}
			if md.ImageURL() == "" {
				md.OgImage = Images{{URL: fmt.Sprintf(thumbnailFormat, id)}}
			}
		}
	}
	return md, nil
}

func (s *Scraper) fetchPage(ctx context.Context, rawURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: status %d", rawURL, resp.StatusCode)
	}
	md, err := Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return &md, nil
}

func (s *Scraper) oembedTitle(ctx context.Context, id string) (string, error) {
	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+id)
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.oembedURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed status %d", resp.StatusCode)
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode oembed: %w", err)
	}
	return body.Title, nil
}
