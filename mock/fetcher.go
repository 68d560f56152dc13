package mock

import (
	"context"

	"github.com/fwojciec/sitemd"
)

var (
	_ sitemd.Fetcher      = (*Fetcher)(nil)
	_ sitemd.AssetFetcher = (*AssetFetcher)(nil)
)

// Fetcher is a mock implementation of sitemd.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

// AssetFetcher is a mock implementation of sitemd.AssetFetcher.
type AssetFetcher struct {
	FetchBytesFn func(ctx context.Context, url string) (*sitemd.Image, error)
}

func (f *AssetFetcher) FetchBytes(ctx context.Context, url string) (*sitemd.Image, error) {
	return f.FetchBytesFn(ctx, url)
}
