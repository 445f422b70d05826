package assets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/storage"
)

// LocatorAttacher sets ProgramS3URI for programs whose brochure is archived.
type LocatorAttacher struct {
	blobs  catalog.BlobStore
	layout storage.Layout
	logger *zap.Logger
}

// NewLocatorAttacher wires a LocatorAttacher.
func NewLocatorAttacher(blobs catalog.BlobStore, layout storage.Layout, logger *zap.Logger) (*LocatorAttacher, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocatorAttacher{blobs: blobs, layout: layout, logger: logger.Named("locator")}, nil
}

// Attach probes the archive for every record. A missing object or a probe error leaves "".
// It returns how many records received a locator.
func (a *LocatorAttacher) Attach(ctx context.Context, records []*catalog.ProgramRecord) int {
	attached := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		rec.ProgramS3URI = a.locate(ctx, rec)
		if rec.ProgramS3URI != "" {
			attached++
		}
	}
	return attached
}

func (a *LocatorAttacher) locate(ctx context.Context, rec *catalog.ProgramRecord) string {
	key := a.layout.PDFKey(catalog.Slug(rec.ProgramURL))
	ok, err := a.blobs.Exists(ctx, key)
	if err != nil {
		a.logger.Warn("pdf probe failed", zap.String("program_url", rec.ProgramURL), zap.String("key", key), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return a.blobs.Locator(key)
}
