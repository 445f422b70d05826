// Package catalog defines the program records and collaborator interfaces shared across the pipeline.
package catalog

import (
	"encoding/json"
	"net/http"
	"time"
)

// DepartmentNotProvided replaces an empty department when records are loaded into the item store.
const DepartmentNotProvided = "Not Provided"

// Fixed section keys used by the non-tabbed resolution tiers.
const (
	RequirementsSection = "Requirements"
	DefaultSection      = "default"
)

// ProgramRecord is one academic program as published in the catalog.
type ProgramRecord struct {
	ProgramTitle       string                    `json:"programTitle"`
	ProgramURL         string                    `json:"programUrl"`
	AcademicLevel      string                    `json:"academicLevel"`
	ProgramType        string                    `json:"programType"`
	AcademicInterests  string                    `json:"academicInterests"`
	CollegesAndSchools string                    `json:"collegesAndSchools"`
	Department         string                    `json:"department"`
	Tabs               map[string]ContentSection `json:"tabs"`
	ProgramS3URI       string                    `json:"ProgramS3uri"`
}

// ContentSection is one tab or requirement block of a detail page.
//
// Courses is nil when course extraction did not run for the section (the bare-text
// fallback); in that case courseExtractedFromText is omitted from the JSON form.
type ContentSection struct {
	Content string   `json:"content"`
	Courses []string `json:"courseExtractedFromText"`
}

// MarshalJSON emits courseExtractedFromText only when extraction ran. HTML escaping is
// left to the outer encoder; EncodeCatalog disables it.
func (s ContentSection) MarshalJSON() ([]byte, error) {
	if s.Courses == nil {
		return json.Marshal(struct {
			Content string `json:"content"`
		}{Content: s.Content})
	}
	return json.Marshal(struct {
		Content string   `json:"content"`
		Courses []string `json:"courseExtractedFromText"`
	}{Content: s.Content, Courses: s.Courses})
}

// TabMode names the resolution tier that populated a record's tabs.
type TabMode string

// Tab resolution tiers in precedence order.
const (
	TabbedMode       TabMode = "tabs"
	RequirementsMode TabMode = "requirements"
	DefaultMode      TabMode = "default"
	EmptyMode        TabMode = "empty"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
//
// Non-2xx responses are returned with their status code rather than as errors.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// LoadResult summarizes one Store Loader run.
type LoadResult struct {
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	FailedItems []ProgramRecord `json:"failed_records"`
}

// CatalogPublished is the notification payload sent after a successful publish.
type CatalogPublished struct {
	RunID        string    `json:"run_id"`
	Locator      string    `json:"locator"`
	ProgramCount int       `json:"program_count"`
	SHA256       string    `json:"sha256"`
	PublishedAt  time.Time `json:"published_at"`
}
