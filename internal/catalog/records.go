package catalog

import "strings"

const nbsp = "\u00a0"

// NormalizeSpaces replaces non-breaking spaces with regular spaces.
func NormalizeSpaces(s string) string {
	return strings.ReplaceAll(s, nbsp, " ")
}

// Slug returns the last non-empty path segment of a program URL.
func Slug(programURL string) string {
	trimmed := strings.TrimRight(programURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// PDFURL returns the companion brochure URL for a program detail page.
func PDFURL(programURL string) string {
	return strings.TrimRight(programURL, "/") + "/" + Slug(programURL) + ".pdf"
}

// Dedupe merges listing outputs, keeping the first record seen for each program URL.
func Dedupe(sources ...[]*ProgramRecord) []*ProgramRecord {
	seen := make(map[string]struct{})
	var out []*ProgramRecord
	for _, source := range sources {
		for _, rec := range source {
			if rec == nil {
				continue
			}
			if _, ok := seen[rec.ProgramURL]; ok {
				continue
			}
			seen[rec.ProgramURL] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

// Sanitize normalizes non-breaking spaces in every top-level string field.
// Tab content is left alone; it is normalized when the detail page is fetched.
func Sanitize(records []*ProgramRecord) {
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, field := range []*string{
			&rec.ProgramTitle,
			&rec.ProgramURL,
			&rec.AcademicLevel,
			&rec.ProgramType,
			&rec.AcademicInterests,
			&rec.CollegesAndSchools,
			&rec.Department,
			&rec.ProgramS3URI,
		} {
			*field = NormalizeSpaces(*field)
		}
	}
}
