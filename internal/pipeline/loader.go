package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/metrics"
	"github.com/JakeFAU/program-catalog/internal/storage"
)

// ErrCatalogUnavailable reports that the published catalog could not be read or decoded.
var ErrCatalogUnavailable = errors.New("published catalog unavailable")

// requiredKeys must be present on every record; their values may be empty.
var requiredKeys = []string{"programTitle", "department"}

// Loader reads the published catalog back and upserts each record into the item store.
type Loader struct {
	blobs  catalog.BlobStore
	items  catalog.ItemStore
	layout storage.Layout
	logger *zap.Logger
}

// NewLoader wires a Loader.
func NewLoader(blobs catalog.BlobStore, items catalog.ItemStore, layout storage.Layout, logger *zap.Logger) (*Loader, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{blobs: blobs, items: items, layout: layout, logger: logger.Named("loader")}, nil
}

// Load reads the catalog object and loads every record.
// Read and decode failures wrap ErrCatalogUnavailable.
func (l *Loader) Load(ctx context.Context) (catalog.LoadResult, error) {
	key := l.layout.CatalogKey()
	data, err := l.blobs.Get(ctx, key)
	if err != nil {
		return catalog.LoadResult{}, fmt.Errorf("%w: read %s: %w", ErrCatalogUnavailable, key, err)
	}
	raw, err := DecodeCatalog(data)
	if err != nil {
		return catalog.LoadResult{}, err
	}
	result := l.LoadRecords(ctx, raw)
	l.logger.Info("catalog loaded",
		zap.String("key", key),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// DecodeCatalog splits a catalog payload into its raw records.
// A top-level null carries no data and is treated like an unreadable catalog.
func DecodeCatalog(data []byte) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrCatalogUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: catalog is null", ErrCatalogUnavailable)
	}
	return raw, nil
}

// LoadRecords validates and upserts each record in order.
// Records missing a required key are counted as failed but not collected;
// store errors are counted and collected. Nothing is retried.
func (l *Loader) LoadRecords(ctx context.Context, raw []json.RawMessage) catalog.LoadResult {
	result := catalog.LoadResult{FailedItems: []catalog.ProgramRecord{}}
	for i, item := range raw {
		rec, err := validateRecord(item)
		if err != nil {
			l.logger.Warn("skipping record", zap.Int("index", i), zap.Error(err))
			result.Failed++
			metrics.ObserveLoad("skipped", 1)
			continue
		}
		if rec.Department == "" {
			rec.Department = catalog.DepartmentNotProvided
		}
		if err := l.items.Upsert(ctx, rec); err != nil {
			l.logger.Warn("upsert failed", zap.String("program_url", rec.ProgramURL), zap.Error(err))
			result.Failed++
			result.FailedItems = append(result.FailedItems, rec)
			metrics.ObserveLoad("failed", 1)
			continue
		}
		result.Succeeded++
		metrics.ObserveLoad("succeeded", 1)
	}
	return result
}

func validateRecord(item json.RawMessage) (catalog.ProgramRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return catalog.ProgramRecord{}, fmt.Errorf("record is not an object: %w", err)
	}
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return catalog.ProgramRecord{}, fmt.Errorf("missing key %q", key)
		}
	}
	var rec catalog.ProgramRecord
	if err := json.Unmarshal(item, &rec); err != nil {
		return catalog.ProgramRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
