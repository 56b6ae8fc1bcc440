package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"fortio.org/log"

	"idol-vr/internal/loader"
)

// Fetcher loads sources on background goroutines and hands results back
// through a channel drained by the game loop.
type Fetcher struct {
	client   *http.Client
	results  chan loader.Result
	decoders map[loader.Resource]DecodeFunc
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for http and https sources.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithDecoder replaces the decoder for one resource kind.
func WithDecoder(res loader.Resource, fn DecodeFunc) Option {
	return func(f *Fetcher) { f.decoders[res] = fn }
}

// NewFetcher creates a Fetcher with the default decoders.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  http.DefaultClient,
		results: make(chan loader.Result, 2*loader.TotalResources),
		decoders: map[loader.Resource]DecodeFunc{
			loader.Panorama: DecodePanorama,
			loader.Model:    DecodeModel,
			loader.Audio:    DecodeTrack,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements loader.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req loader.Request) {
	go f.run(ctx, req)
}

// Results is the channel results are posted on.
func (f *Fetcher) Results() <-chan loader.Result {
	return f.results
}

// Drain passes every result that is ready to fn without blocking.
func (f *Fetcher) Drain(fn func(loader.Result)) int {
	n := 0
	for {
		select {
		case r := <-f.results:
			fn(r)
			n++
		default:
			return n
		}
	}
}

func (f *Fetcher) run(ctx context.Context, req loader.Request) {
	res := loader.Result{Attempt: req.Attempt, Resource: req.Resource, Tier: req.Tier}

	data, err := f.read(ctx, req.Source)
	if err == nil {
		decode, ok := f.decoders[req.Resource]
		if !ok {
			err = fmt.Errorf("no decoder for %s", req.Resource)
		} else {
			res.Asset, err = decode(req.Source, data)
		}
	}
	res.Err = err

	if ctx.Err() != nil {
		log.LogVf("Dropping %s %s result, attempt %d already settled", req.Resource, req.Tier, req.Attempt)
		return
	}
	select {
	case f.results <- res:
	case <-ctx.Done():
	}
}

func (f *Fetcher) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.get(ctx, source)
	}
	data, err := os.ReadFile(source)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", source, loader.ErrResourceNotFound)
	}
	return data, err
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: %s: %w", url, resp.Status, loader.ErrResourceNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
