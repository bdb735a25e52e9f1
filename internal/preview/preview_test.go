package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/twin/internal/ogmeta"
)

type fakeFetcher struct {
	calls   atomic.Int32
	md      *ogmeta.Metadata
	err     error
	release chan struct{}
	panics  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string) (*ogmeta.Metadata, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.md, f.err
}

func meta(title string) *ogmeta.Metadata {
	return &ogmeta.Metadata{OgTitle: title, OgImage: ogmeta.Images{{URL: "https://img/x.png"}}}
}

func TestFetchBuildsPreview(t *testing.T) {
	p := New(&fakeFetcher{md: meta("Hello")}, Options{})
	got := p.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.NotNil(t, got)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "https://img/x.png", got.ImageURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", got.CanonicalURL)
	require.NotNil(t, got.Embed)
	assert.Equal(t, PlatformYouTube, got.Embed.Platform)
}

func TestFetchFailuresYieldNil(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeFetcher
	}{
		{"error", &fakeFetcher{err: errors.New("down")}},
		{"empty metadata", &fakeFetcher{md: &ogmeta.Metadata{OgURL: "x"}}},
		{"nil metadata", &fakeFetcher{}},
		{"panic", &fakeFetcher{panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.f, Options{})
			assert.Nil(t, p.Fetch(context.Background(), "https://x.io"))
			assert.Equal(t, 0, p.Cached(), "failures are not cached")
		})
	}
	assert.Nil(t, New(&fakeFetcher{}, Options{}).Fetch(context.Background(), ""))
}

func TestFetchTimeout(t *testing.T) {
	f := &fakeFetcher{md: meta("slow"), release: make(chan struct{})}
	p := New(f, Options{Timeout: 20 * time.Millisecond})
	start := time.Now()
	assert.Nil(t, p.Fetch(context.Background(), "https://slow.io"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCallerCancellation(t *testing.T) {
	f := &fakeFetcher{md: meta("slow"), release: make(chan struct{})}
	defer close(f.release)
	p := New(f, Options{Timeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, p.Fetch(ctx, "https://slow.io"))
}

func TestCacheHitSkipsUpstream(t *testing.T) {
	f := &fakeFetcher{md: meta("Hello")}
	p := New(f, Options{})
	first := p.Fetch(context.Background(), "https://x.io")
	second := p.Fetch(context.Background(), "https://x.io")
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestConcurrentFetchesCoalesce(t *testing.T) {
	f := &fakeFetcher{md: meta("Hello"), release: make(chan struct{})}
	p := New(f, Options{})

	var wg sync.WaitGroup
	results := make([]*Preview, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Fetch(context.Background(), "https://x.io")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "Hello", r.Title)
	}
}

func TestCacheTTLAndBound(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	f := &fakeFetcher{md: meta("Hello")}
	p := New(f, Options{CacheSize: 2, CacheTTL: time.Minute, Now: clock})

	p.Fetch(context.Background(), "https://a.io")
	p.Fetch(context.Background(), "https://b.io")
	p.Fetch(context.Background(), "https://c.io")
	assert.Equal(t, 2, p.Cached())

	p.Fetch(context.Background(), "https://a.io")
	assert.EqualValues(t, 4, f.calls.Load(), "evicted entry is fetched again")

	now = now.Add(2 * time.Minute)
	p.Fetch(context.Background(), "https://a.io")
	assert.EqualValues(t, 5, f.calls.Load(), "expired entry is fetched again")
}

type memPersister struct {
	mu    sync.Mutex
	saved map[string]*Preview
	at    time.Time
}

func (m *memPersister) LoadPreview(_ context.Context, u string) (*Preview, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[u], m.at, nil
}

func (m *memPersister) SavePreview(_ context.Context, p *Preview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[p.URL] = p
	return nil
}

func TestPersisterWarmStart(t *testing.T) {
	store := &memPersister{saved: map[string]*Preview{}, at: time.Now()}
	first := New(&fakeFetcher{md: meta("Stored")}, Options{Persister: store})
	require.NotNil(t, first.Fetch(context.Background(), "https://x.io"))

	f := &fakeFetcher{err: errors.New("offline")}
	second := New(f, Options{Persister: store})
	got := second.Fetch(context.Background(), "https://x.io")
	require.NotNil(t, got)
	assert.Equal(t, "Stored", got.Title)
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestEndpointFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ogTitle":"T","ogImage":[{"url":"https://i/1.png"}],"ogUrl":"https://x.io"}`))
	}))
	defer srv.Close()

	md, err := NewEndpointFetcher(srv.URL, srv.Client()).Fetch(context.Background(), "https://x.io")
	require.NoError(t, err)
	assert.Equal(t, "T", md.OgTitle)
	assert.Equal(t, "https://i/1.png", md.ImageURL())
}

func TestEndpointFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad-json" {
			_, _ = w.Write([]byte(`{"ogTitle":`))
			return
		}
		http.Error(w, `{"errorMessage":"x"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewEndpointFetcher(srv.URL, srv.Client())
	_, err := f.Fetch(context.Background(), "https://x.io")
	assert.Error(t, err)

	_, err = NewEndpointFetcher(srv.URL+"/bad-json", srv.Client()).Fetch(context.Background(), "https://x.io")
	assert.Error(t, err)
}
