package filter

import (
	"strings"

	"github.com/amishk599/shiftalert/internal/model"
)

// CityAndTitleFilter narrows the upstream board before classification.
// Matching is case-insensitive substring. Empty include lists match all.
type CityAndTitleFilter struct {
	cities        []string
	excludeCities []string
	titleKeywords []string
}

// NewCityAndTitleFilter returns a filter requiring a city match, no excluded
// city, and a title keyword match.
func NewCityAndTitleFilter(cities, excludeCities, titleKeywords []string) *CityAndTitleFilter {
	return &CityAndTitleFilter{
		cities:        lowerAll(cities),
		excludeCities: lowerAll(excludeCities),
		titleKeywords: lowerAll(titleKeywords),
	}
}

// Match reports whether rec passes the filter.
func (f *CityAndTitleFilter) Match(rec model.JobRecord) bool {
	city := strings.ToLower(rec.City)
	title := strings.ToLower(rec.Title)

	if containsAny(city, f.excludeCities) {
		return false
	}
	if len(f.cities) > 0 && !containsAny(city, f.cities) {
		return false
	}
	if len(f.titleKeywords) > 0 && !containsAny(title, f.titleKeywords) {
		return false
	}
	return true
}

// Apply returns the records that match, preserving order.
// A nil filter passes everything through.
func (f *CityAndTitleFilter) Apply(records []model.JobRecord) []model.JobRecord {
	if f == nil || f.IsEmpty() {
		return records
	}
	out := make([]model.JobRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// IsEmpty reports whether the filter has no criteria at all.
func (f *CityAndTitleFilter) IsEmpty() bool {
	return len(f.cities) == 0 && len(f.excludeCities) == 0 && len(f.titleKeywords) == 0
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
