// Package scraper turns catalog listing and detail pages into program records.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/metrics"
)

const (
	// DefaultOrigin resolves relative program links.
	DefaultOrigin = "https://catalog.odu.edu"
	// DefaultFilter is used when a listing URL carries no filter fragment.
	DefaultFilter = ".filter_2"
)

// maxKeywords is the number of keyword tags mapped onto a record.
const maxKeywords = 4

var filterClass = regexp.MustCompile(`^\.[A-Za-z0-9_-]+$`)

// ListingConfig controls listing parsing.
type ListingConfig struct {
	Origin        string
	DefaultFilter string
}

// ListingScraper fetches a listing page and parses its program items.
type ListingScraper struct {
	fetcher       catalog.Fetcher
	origin        *url.URL
	defaultFilter string
	logger        *zap.Logger
}

// NewListingScraper validates cfg and returns a scraper.
func NewListingScraper(fetcher catalog.Fetcher, cfg ListingConfig, logger *zap.Logger) (*ListingScraper, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rawOrigin := cfg.Origin
	if rawOrigin == "" {
		rawOrigin = DefaultOrigin
	}
	origin, err := url.Parse(rawOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid listing origin %q", rawOrigin)
	}
	fallback := cfg.DefaultFilter
	if fallback == "" {
		fallback = DefaultFilter
	}
	if !filterClass.MatchString(fallback) {
		return nil, fmt.Errorf("invalid default filter %q", fallback)
	}
	return &ListingScraper{
		fetcher:       fetcher,
		origin:        origin,
		defaultFilter: fallback,
		logger:        logger.Named("listing"),
	}, nil
}

// Scrape fetches listingURL and returns the program stubs in document order.
// Transport errors and non-200 responses are returned to the caller.
func (s *ListingScraper) Scrape(ctx context.Context, listingURL string) ([]*catalog.ProgramRecord, error) {
	filter := FilterFromURL(listingURL, s.defaultFilter)
	resp, err := s.fetcher.Fetch(ctx, catalog.FetchRequest{URL: listingURL})
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", listingURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing %s: unexpected status %d", listingURL, resp.StatusCode)
	}

	programs, err := ParseListing(resp.Body, filter, s.origin)
	if err != nil {
		return nil, err
	}
	metrics.ObserveListing(listingURL, filter, len(programs))
	s.logger.Info("listing parsed",
		zap.String("listing_url", listingURL),
		zap.String("filter", filter),
		zap.Int("programs", len(programs)),
	)
	return programs, nil
}

// FilterFromURL returns the class named by a "#filter=<class>" fragment, or fallback.
func FilterFromURL(listingURL, fallback string) string {
	u, err := url.Parse(listingURL)
	if err != nil {
		return fallback
	}
	for _, part := range strings.Split(u.Fragment, "&") {
		value, ok := strings.CutPrefix(part, "filter=")
		if ok && filterClass.MatchString(value) {
			return value
		}
	}
	return fallback
}

// ParseListing extracts program stubs from items matching li.item<filter>.
// Items without a title or a link are skipped.
func ParseListing(body []byte, filter string, origin *url.URL) ([]*catalog.ProgramRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var programs []*catalog.ProgramRecord
	doc.Find("li.item" + filter).Each(func(_ int, item *goquery.Selection) {
		title := item.Find("span.title").First()
		link := item.Find("a").First()
		if title.Length() == 0 || link.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		programURL, ok := resolveLink(origin, strings.TrimSpace(href))
		if !ok {
			return
		}

		var keywords [maxKeywords]string
		item.Find("span.keyword").EachWithBreak(func(i int, kw *goquery.Selection) bool {
			if i >= maxKeywords {
				return false
			}
			keywords[i] = cleanText(kw.Text())
			return true
		})

		programs = append(programs, &catalog.ProgramRecord{
			ProgramTitle:       cleanText(title.Text()),
			ProgramURL:         programURL,
			AcademicLevel:      strings.ToLower(keywords[0]),
			ProgramType:        keywords[1],
			AcademicInterests:  keywords[2],
			CollegesAndSchools: keywords[3],
		})
	})
	return programs, nil
}

func resolveLink(origin *url.URL, href string) (string, bool) {
	if strings.HasPrefix(href, "http") {
		return href, true
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return origin.ResolveReference(ref).String(), true
}

func cleanText(s string) string {
	return strings.TrimSpace(catalog.NormalizeSpaces(s))
}
