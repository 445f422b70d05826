package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/storage/memory"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]catalog.FetchResponse
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]catalog.FetchResponse{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) page(url, body string) {
	f.pages[url] = catalog.FetchResponse{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	if err, ok := f.errs[req.URL]; ok {
		return catalog.FetchResponse{}, err
	}
	if resp, ok := f.pages[req.URL]; ok {
		return resp, nil
	}
	return catalog.FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// keyFailStore fails Put or Get for one key and delegates everything else.
type keyFailStore struct {
	*memory.BlobStore
	putFail string
	getFail string
}

func (s keyFailStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if key == s.putFail {
		return "", errors.New("write denied")
	}
	return s.BlobStore.Put(ctx, key, contentType, data)
}

func (s keyFailStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.getFail {
		return nil, errors.New("read denied")
	}
	return s.BlobStore.Get(ctx, key)
}

// flakyItemStore rejects upserts for selected program URLs.
type flakyItemStore struct {
	*memory.ProgramStore
	reject map[string]bool
}

func (s flakyItemStore) Upsert(ctx context.Context, rec catalog.ProgramRecord) error {
	if s.reject[rec.ProgramURL] {
		return errors.New("throughput exceeded")
	}
	return s.ProgramStore.Upsert(ctx, rec)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}
