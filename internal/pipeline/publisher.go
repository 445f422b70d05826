package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/storage"
)

// PublishResult describes the catalog object written by Publish.
type PublishResult struct {
	Key     string `json:"key"`
	Locator string `json:"locator"`
	Bytes   int    `json:"bytes"`
	SHA256  string `json:"sha256"`
}

// Publisher serializes the program collection and writes it with a single put.
type Publisher struct {
	blobs  catalog.BlobStore
	layout storage.Layout
	hasher catalog.Hasher
	logger *zap.Logger
}

// NewPublisher wires a Publisher.
func NewPublisher(blobs catalog.BlobStore, layout storage.Layout, hasher catalog.Hasher, logger *zap.Logger) (*Publisher, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{blobs: blobs, layout: layout, hasher: hasher, logger: logger.Named("publisher")}, nil
}

// Publish writes records to the catalog key. Any error is fatal for the run.
func (p *Publisher) Publish(ctx context.Context, records []*catalog.ProgramRecord) (PublishResult, error) {
	payload, err := EncodeCatalog(records)
	if err != nil {
		return PublishResult{}, err
	}
	digest, err := p.hasher.Hash(payload)
	if err != nil {
		return PublishResult{}, fmt.Errorf("hash catalog: %w", err)
	}

	key := p.layout.CatalogKey()
	locator, err := p.blobs.Put(ctx, key, storage.ContentTypeJSON, payload)
	if err != nil {
		return PublishResult{}, fmt.Errorf("put catalog %s: %w", key, err)
	}

	p.logger.Info("catalog published",
		zap.String("locator", locator),
		zap.Int("programs", len(records)),
		zap.Int("bytes", len(payload)),
	)
	return PublishResult{Key: key, Locator: locator, Bytes: len(payload), SHA256: digest}, nil
}

// EncodeCatalog renders records as a 2-space indented JSON array without HTML escaping.
// A nil collection encodes as [].
func EncodeCatalog(records []*catalog.ProgramRecord) ([]byte, error) {
	if records == nil {
		records = []*catalog.ProgramRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
