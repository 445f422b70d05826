// Package courses recognizes course codes such as "ENGL 110" or "AB101A" inside HTML fragments.
//
// A code is 2-4 uppercase letters, an optional whitespace character, three digits and an
// optional trailing uppercase letter. Codes that describe a level range ("ENGL 110-level",
// "CS 350/450-level") are not courses and are rejected.
package courses

import (
	"regexp"
	"sort"
	"strings"
)

var (
	codePattern       = regexp.MustCompile(`\b[A-Z]{2,4}\s?\d{3}[A-Z]?\b`)
	levelRangePattern = regexp.MustCompile(`\b[A-Z]{2,4}\s?\d{3}[A-Z]?-level\b`)
	compoundLevel     = regexp.MustCompile(`^/\d{3}-level`)
)

const levelSuffix = "-level"

// Extract returns the unique course codes found in fragment, sorted.
// The result is never nil so callers can distinguish "extraction ran" from "not attempted".
func Extract(fragment string) []string {
	seen := make(map[string]struct{})
	for _, loc := range codePattern.FindAllStringIndex(fragment, -1) {
		if isLevelQualified(fragment[loc[1]:]) {
			continue
		}
		seen[fragment[loc[0]:loc[1]]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// StripLevelRanges removes "CODE-level" tokens so they cannot leak into extraction.
func StripLevelRanges(fragment string) string {
	return levelRangePattern.ReplaceAllString(fragment, "")
}

// isLevelQualified reports whether the text right after a candidate code marks it as a level range.
func isLevelQualified(rest string) bool {
	return strings.HasPrefix(rest, levelSuffix) || compoundLevel.MatchString(rest)
}
