package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/storage"
	"github.com/JakeFAU/program-catalog/internal/storage/memory"
)

const breadcrumb = `<div id="breadcrumb"><ul>
<li><a href="/">Home</a></li>
<li><a href="/programs/">Programs</a></li>
<li><a href="/programs/sciences/">College of Sciences</a></li>
<li><a href="/programs/sciences/biology/">Biological{nbsp}Sciences</a></li>
</ul></div>`

const tabbedPage = `<html><body>` + breadcrumb + `
<div id="tabs"><ul>
<li role="presentation"><a href="#overviewtextcontainer">Overview</a></li>
<li role="presentation"><a href="#requirementstexttab">Degree{nbsp}Requirements</a></li>
<li role="presentation"><a href="#missingpanel">Missing</a></li>
<li role="presentation">No anchor</li>
</ul></div>
<div id="overviewtextcontainer"><p>Study life.</p></div>
<div id="requirementstexttab"><p>BIOL 121N and CHEM 123 plus any BIOL 300-level course or CS 350/450-level work. BIOL 121N again.</p></div>
<div id="requirementstextcontainer"><p>MATH 211</p></div>
</body></html>`

const requirementsPage = `<html><body>
<div id="requirementstextcontainer"><p>Take ENGL 110 and any ENGL 200-level course.</p></div>
<div id="textcontainer"><p>HIST 101</p></div>
</body></html>`

const defaultPage = `<html><body><div id="textcontainer"><p>ENGL 110{nbsp}only</p></div></body></html>`

const emptyPage = `<html><body><p>Nothing structured.</p></body></html>`

func withNBSP(s string) string {
	return strings.ReplaceAll(s, "{nbsp}", "\u00a0")
}

func TestParseDetailTabbedTakesPrecedence(t *testing.T) {
	t.Parallel()

	page, err := ParseDetail(withNBSP(tabbedPage))
	require.NoError(t, err)
	require.Equal(t, catalog.TabbedMode, page.Mode)
	require.Equal(t, "Biological Sciences", page.Department)

	require.Len(t, page.Tabs, 2)
	require.NotContains(t, page.Tabs, catalog.RequirementsSection)

	overview := page.Tabs["Overview"]
	require.Contains(t, overview.Content, `id="overviewtextcontainer"`)
	require.NotNil(t, overview.Courses)
	require.Empty(t, overview.Courses)

	reqs, ok := page.Tabs["Degree Requirements"]
	require.True(t, ok)
	require.Equal(t, []string{"BIOL 121N", "CHEM 123"}, reqs.Courses)
	require.NotContains(t, reqs.Content, "BIOL 300-level")
	require.Contains(t, reqs.Content, "CS 350/450-level")
}

func TestParseDetailCollapsesTabLabelWhitespace(t *testing.T) {
	t.Parallel()

	page, err := ParseDetail(`<html><body>
<div id="tabs"><ul>
<li role="presentation"><a href="#requirementstexttab">
          <span>Degree</span>
          <span>Requirements</span>
        </a></li>
</ul></div>
<div id="requirementstexttab"><p>BIOL 121N</p></div>
</body></html>`)
	require.NoError(t, err)
	require.Equal(t, catalog.TabbedMode, page.Mode)
	require.Len(t, page.Tabs, 1)

	reqs, ok := page.Tabs["Degree Requirements"]
	require.True(t, ok, "tabs: %v", page.Tabs)
	require.Equal(t, []string{"BIOL 121N"}, reqs.Courses)
}

func TestParseDetailRequirementsMode(t *testing.T) {
	t.Parallel()

	page, err := ParseDetail(requirementsPage)
	require.NoError(t, err)
	require.Equal(t, catalog.RequirementsMode, page.Mode)
	require.Empty(t, page.Department)
	require.Len(t, page.Tabs, 1)

	section := page.Tabs[catalog.RequirementsSection]
	require.Equal(t, []string{"ENGL 110"}, section.Courses)
	require.True(t, strings.HasPrefix(section.Content, `<div id="requirementstextcontainer">`))
	require.NotContains(t, section.Content, "HIST 101")
}

func TestParseDetailDefaultMode(t *testing.T) {
	t.Parallel()

	page, err := ParseDetail(withNBSP(defaultPage))
	require.NoError(t, err)
	require.Equal(t, catalog.DefaultMode, page.Mode)

	section := page.Tabs[catalog.DefaultSection]
	require.Nil(t, section.Courses)
	require.Contains(t, section.Content, "ENGL 110 only")
	require.NotContains(t, section.Content, "\u00a0")
}

func TestParseDetailEmptyMode(t *testing.T) {
	t.Parallel()

	page, err := ParseDetail(emptyPage)
	require.NoError(t, err)
	require.Equal(t, catalog.EmptyMode, page.Mode)
	require.NotNil(t, page.Tabs)
	require.Empty(t, page.Tabs)
}

func TestDetailEnricherArchivesAndEnriches(t *testing.T) {
	t.Parallel()

	const programURL = "https://catalog.odu.edu/programs/undergraduate/biology-bs/"
	fetcher := newFakeFetcher()
	fetcher.page(programURL, withNBSP(tabbedPage))
	blobs := memory.NewBlobStore()

	enricher, err := NewDetailEnricher(fetcher, blobs, storage.DefaultLayout(), nil)
	require.NoError(t, err)

	rec := &catalog.ProgramRecord{ProgramTitle: "Biology BS", ProgramURL: programURL}
	result := enricher.Enrich(context.Background(), rec)
	require.NoError(t, result.Err)
	require.Equal(t, catalog.TabbedMode, result.Mode)
	require.Equal(t, "Biological Sciences", rec.Department)
	require.Len(t, rec.Tabs, 2)

	key := "Program_Catalog_Pipeline/raw/biology-bs.html"
	raw, err := blobs.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, storage.ContentTypeHTML, blobs.ContentType(key))
	require.NotContains(t, string(raw), "\u00a0")
	require.Contains(t, string(raw), "Biological Sciences")
}

func TestDetailEnricherFailuresDegradeToEmpty(t *testing.T) {
	t.Parallel()

	const (
		downURL    = "https://catalog.odu.edu/programs/down/"
		missingURL = "https://catalog.odu.edu/programs/missing/"
		okURL      = "https://catalog.odu.edu/programs/ok/"
	)
	fetcher := newFakeFetcher()
	fetcher.errs[downURL] = errors.New("timeout")
	fetcher.page(okURL, requirementsPage)

	tests := []struct {
		name  string
		url   string
		blobs catalog.BlobStore
	}{
		{name: "fetch error", url: downURL, blobs: memory.NewBlobStore()},
		{name: "not found", url: missingURL, blobs: memory.NewBlobStore()},
		{name: "archive error", url: okURL, blobs: failingBlobStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enricher, err := NewDetailEnricher(fetcher, tt.blobs, storage.DefaultLayout(), nil)
			require.NoError(t, err)

			rec := &catalog.ProgramRecord{ProgramURL: tt.url, Department: "stale", Tabs: map[string]catalog.ContentSection{"x": {}}}
			result := enricher.Enrich(context.Background(), rec)
			require.Error(t, result.Err)
			require.Equal(t, catalog.EmptyMode, result.Mode)
			require.Empty(t, rec.Department)
			require.NotNil(t, rec.Tabs)
			require.Empty(t, rec.Tabs)
		})
	}
}

func TestNewDetailEnricherValidation(t *testing.T) {
	t.Parallel()

	_, err := NewDetailEnricher(nil, memory.NewBlobStore(), storage.DefaultLayout(), nil)
	require.Error(t, err)
	_, err = NewDetailEnricher(newFakeFetcher(), nil, storage.DefaultLayout(), nil)
	require.Error(t, err)
}
