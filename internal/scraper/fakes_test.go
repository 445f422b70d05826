package scraper

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/JakeFAU/program-catalog/internal/catalog"
)

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]catalog.FetchResponse
	errs     map[string]error
	requests []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]catalog.FetchResponse{},
		errs:  map[string]error{},
	}
}

func (f *fakeFetcher) page(url, body string) {
	f.pages[url] = catalog.FetchResponse{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.URL)
	if err, ok := f.errs[req.URL]; ok {
		return catalog.FetchResponse{}, err
	}
	if resp, ok := f.pages[req.URL]; ok {
		return resp, nil
	}
	return catalog.FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound}, nil
}

type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingBlobStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("bucket unavailable")
}

func (failingBlobStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("bucket unavailable")
}

func (failingBlobStore) Locator(key string) string { return key }
