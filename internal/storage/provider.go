// Package storage holds the blob key layout and errors shared by every blob store backend.
// Backends live in sub-packages (memory, local, gcs, s3); item stores live in postgres and dynamo.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned (wrapped) when a blob does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Content types written by the pipeline.
const (
	ContentTypeHTML = "text/html"
	ContentTypePDF  = "application/pdf"
	ContentTypeJSON = "application/json"
)

// Layout maps pipeline artifacts to blob keys under fixed prefixes.
type Layout struct {
	RawPrefix    string
	PDFPrefix    string
	OutputPrefix string
	CatalogName  string
}

// DefaultLayout mirrors the bucket layout the catalog has always been published under.
func DefaultLayout() Layout {
	return Layout{
		RawPrefix:    "Program_Catalog_Pipeline/raw/",
		PDFPrefix:    "Program_Catalog_Pipeline/program_pdfs/",
		OutputPrefix: "Program_Catalog_Pipeline/output/",
		CatalogName:  "allprograms.json",
	}
}

// RawKey is the archive key for a program's detail-page HTML.
func (l Layout) RawKey(slug string) string {
	return fmt.Sprintf("%s%s.html", ensureSlash(l.RawPrefix), slug)
}

// PDFKey is the archive key for a program's brochure.
func (l Layout) PDFKey(slug string) string {
	return fmt.Sprintf("%s%s.pdf", ensureSlash(l.PDFPrefix), slug)
}

// CatalogKey is the well-known key of the published catalog.
func (l Layout) CatalogKey() string {
	name := l.CatalogName
	if name == "" {
		name = "allprograms.json"
	}
	return ensureSlash(l.OutputPrefix) + name
}

func ensureSlash(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
