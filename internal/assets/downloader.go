// Package assets downloads program brochures and attaches their storage locators.
package assets

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/metrics"
	"github.com/JakeFAU/program-catalog/internal/storage"
)

// Outcome labels a download attempt.
type Outcome string

// Download outcomes.
const (
	Stored   Outcome = "stored"
	Missing  Outcome = "missing"
	Failed   Outcome = "failed"
	Rejected Outcome = "rejected"
)

// Downloader fetches the companion PDF of each program and archives it.
type Downloader struct {
	fetcher catalog.Fetcher
	blobs   catalog.BlobStore
	layout  storage.Layout
	logger  *zap.Logger
}

// NewDownloader wires a Downloader.
func NewDownloader(fetcher catalog.Fetcher, blobs catalog.BlobStore, layout storage.Layout, logger *zap.Logger) (*Downloader, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{fetcher: fetcher, blobs: blobs, layout: layout, logger: logger.Named("pdf")}, nil
}

// Download tries <programUrl>/<slug>.pdf and stores it on HTTP 200.
// It never mutates the record and never returns an error; the outcome is logged and reported.
func (d *Downloader) Download(ctx context.Context, rec *catalog.ProgramRecord) Outcome {
	slug := catalog.Slug(rec.ProgramURL)
	pdfURL := catalog.PDFURL(rec.ProgramURL)
	logger := d.logger.With(zap.String("program_url", rec.ProgramURL), zap.String("pdf_url", pdfURL))

	outcome := d.download(ctx, pdfURL, d.layout.PDFKey(slug), logger)
	metrics.ObservePDF(string(outcome))
	return outcome
}

func (d *Downloader) download(ctx context.Context, pdfURL, key string, logger *zap.Logger) Outcome {
	resp, err := d.fetcher.Fetch(ctx, catalog.FetchRequest{URL: pdfURL})
	if err != nil {
		logger.Warn("pdf fetch failed", zap.Error(err))
		return Failed
	}
	if resp.StatusCode != http.StatusOK {
		logger.Info("pdf not found", zap.Int("status", resp.StatusCode))
		return Missing
	}
	if _, err := d.blobs.Put(ctx, key, storage.ContentTypePDF, resp.Body); err != nil {
		logger.Warn("pdf upload failed", zap.String("key", key), zap.Error(err))
		return Rejected
	}
	logger.Info("pdf uploaded", zap.String("key", key), zap.Int("bytes", len(resp.Body)))
	return Stored
}
