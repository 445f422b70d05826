package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/courses"
	"github.com/JakeFAU/program-catalog/internal/metrics"
	"github.com/JakeFAU/program-catalog/internal/storage"
)

const (
	tabsSelector         = "#tabs"
	tabItemSelector      = "#tabs li[role='presentation']"
	requirementsSelector = "#requirementstextcontainer"
	textSelector         = "#textcontainer"
	departmentSelector   = "#breadcrumb ul li:nth-of-type(4) a"
)

// DetailPage is the structured content derived from one detail page.
type DetailPage struct {
	Department string
	Tabs       map[string]catalog.ContentSection
	Mode       catalog.TabMode
}

// Enrichment reports how a record was enriched. Err is set when the record fell back to empty fields.
type Enrichment struct {
	Mode catalog.TabMode
	Err  error
}

// DetailEnricher fetches detail pages, archives them and fills in department and tabs.
type DetailEnricher struct {
	fetcher catalog.Fetcher
	blobs   catalog.BlobStore
	layout  storage.Layout
	logger  *zap.Logger
}

// NewDetailEnricher wires an enricher.
func NewDetailEnricher(
	fetcher catalog.Fetcher,
	blobs catalog.BlobStore,
	layout storage.Layout,
	logger *zap.Logger,
) (*DetailEnricher, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailEnricher{
		fetcher: fetcher,
		blobs:   blobs,
		layout:  layout,
		logger:  logger.Named("enricher"),
	}, nil
}

// Enrich mutates rec in place. Failures never propagate: the record keeps going
// with an empty department and no tabs.
func (e *DetailEnricher) Enrich(ctx context.Context, rec *catalog.ProgramRecord) Enrichment {
	page, err := e.fetchAndParse(ctx, rec.ProgramURL)
	if err != nil {
		e.logger.Warn("detail enrichment failed",
			zap.String("program_title", rec.ProgramTitle),
			zap.String("program_url", rec.ProgramURL),
			zap.Error(err),
		)
		rec.Department = ""
		rec.Tabs = map[string]catalog.ContentSection{}
		metrics.ObserveEnrichment(string(catalog.EmptyMode), "error")
		return Enrichment{Mode: catalog.EmptyMode, Err: err}
	}

	rec.Department = page.Department
	rec.Tabs = page.Tabs
	metrics.ObserveEnrichment(string(page.Mode), "ok")
	e.logger.Debug("detail enriched",
		zap.String("program_url", rec.ProgramURL),
		zap.String("mode", string(page.Mode)),
		zap.Int("sections", len(page.Tabs)),
	)
	return Enrichment{Mode: page.Mode}
}

func (e *DetailEnricher) fetchAndParse(ctx context.Context, programURL string) (DetailPage, error) {
	resp, err := e.fetcher.Fetch(ctx, catalog.FetchRequest{URL: programURL})
	if err != nil {
		return DetailPage{}, fmt.Errorf("fetch detail: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DetailPage{}, fmt.Errorf("fetch detail: unexpected status %d", resp.StatusCode)
	}

	html := catalog.NormalizeSpaces(string(resp.Body))
	key := e.layout.RawKey(catalog.Slug(programURL))
	if _, err := e.blobs.Put(ctx, key, storage.ContentTypeHTML, []byte(html)); err != nil {
		return DetailPage{}, fmt.Errorf("archive detail %s: %w", key, err)
	}
	return ParseDetail(html)
}

// ParseDetail derives department and tabs from a detail page.
func ParseDetail(html string) (DetailPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return DetailPage{}, fmt.Errorf("parse detail: %w", err)
	}

	page := DetailPage{
		Department: cleanText(doc.Find(departmentSelector).First().Text()),
		Mode:       SelectTabMode(doc),
	}
	switch page.Mode {
	case catalog.TabbedMode:
		page.Tabs, err = buildTabbed(doc)
	case catalog.RequirementsMode:
		page.Tabs, err = buildExtracted(doc.Find(requirementsSelector).First(), catalog.RequirementsSection)
	case catalog.DefaultMode:
		page.Tabs, err = buildDefault(doc.Find(textSelector).First())
	default:
		page.Tabs = map[string]catalog.ContentSection{}
	}
	if err != nil {
		return DetailPage{}, err
	}
	return page, nil
}

// SelectTabMode picks the first layout tier present in doc.
func SelectTabMode(doc *goquery.Document) catalog.TabMode {
	switch {
	case doc.Find(tabsSelector).Length() > 0:
		return catalog.TabbedMode
	case doc.Find(requirementsSelector).Length() > 0:
		return catalog.RequirementsMode
	case doc.Find(textSelector).Length() > 0:
		return catalog.DefaultMode
	default:
		return catalog.EmptyMode
	}
}

// buildTabbed keys each tab panel by its label. Tabs without a resolvable panel are skipped.
func buildTabbed(doc *goquery.Document) (map[string]catalog.ContentSection, error) {
	tabs := map[string]catalog.ContentSection{}
	var buildErr error
	doc.Find(tabItemSelector).EachWithBreak(func(_ int, tab *goquery.Selection) bool {
		href, ok := tab.Find("a").First().Attr("href")
		if !ok {
			return true
		}
		panel := findByID(doc, strings.ReplaceAll(href, "#", ""))
		if panel == nil {
			return true
		}
		section, err := extractSection(panel)
		if err != nil {
			buildErr = err
			return false
		}
		tabs[tabLabel(tab.Text())] = section
		return true
	})
	if buildErr != nil {
		return nil, buildErr
	}
	return tabs, nil
}

// tabLabel collapses whitespace runs so labels split across child elements read as one line.
func tabLabel(s string) string {
	return strings.Join(strings.Fields(catalog.NormalizeSpaces(s)), " ")
}

func buildExtracted(sel *goquery.Selection, name string) (map[string]catalog.ContentSection, error) {
	section, err := extractSection(sel)
	if err != nil {
		return nil, err
	}
	return map[string]catalog.ContentSection{name: section}, nil
}

// buildDefault keeps the bare text container without course extraction.
func buildDefault(sel *goquery.Selection) (map[string]catalog.ContentSection, error) {
	html, err := outerHTML(sel)
	if err != nil {
		return nil, err
	}
	return map[string]catalog.ContentSection{catalog.DefaultSection: {Content: html}}, nil
}

func extractSection(sel *goquery.Selection) (catalog.ContentSection, error) {
	html, err := outerHTML(sel)
	if err != nil {
		return catalog.ContentSection{}, err
	}
	cleaned := courses.StripLevelRanges(html)
	return catalog.ContentSection{Content: cleaned, Courses: courses.Extract(cleaned)}, nil
}

func outerHTML(sel *goquery.Selection) (string, error) {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", fmt.Errorf("render section: %w", err)
	}
	return catalog.NormalizeSpaces(html), nil
}

func findByID(doc *goquery.Document, id string) *goquery.Selection {
	if id == "" {
		return nil
	}
	match := doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
	if match.Length() == 0 {
		return nil
	}
	return match
}
