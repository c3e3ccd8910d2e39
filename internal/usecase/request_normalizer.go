package usecase

import (
	"regexp"
	"strings"

	"github.com/sitelens/backend/internal/domain"
)

// Compiled patterns for request normalization
var (
	// Runs of whitespace, hyphens and underscores separate words of a category
	categorySeparatorPattern = regexp.MustCompile(`[\s\-_]+`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)

	// Segment labels written as decades: "30's", "30 s", "30S"
	decadeSegmentPattern = regexp.MustCompile(`^(\d{2})\s*'?\s*s(\+?)$`)
)

// categoryAliases maps common names to registered categories.
// Only names that unambiguously denote a built-in category belong here.
var categoryAliases = map[domain.Category]domain.Category{
	"coffee":         "cafe",
	"coffee_shop":    "cafe",
	"coffeehouse":    "cafe",
	"cafeteria":      "restaurant",
	"diner":          "restaurant",
	"pub":            "bar",
	"gym":            "fitness",
	"fitness_center": "fitness",
	"health_club":    "fitness",
	"convenience":    "convenience_store",
	"corner_store":   "convenience_store",
	"shop":           "retail",
	"store":          "retail",
	"retail_store":   "retail",
	"patisserie":     "bakery",
}

// NormalizeCategory canonicalizes a category label: lowercase, words joined by
// "_", then resolved through the alias table. Unknown labels are returned
// normalized but otherwise unchanged so validation can reject them.
func NormalizeCategory(category domain.Category) domain.Category {
	c := strings.ToLower(strings.TrimSpace(string(category)))
	c = categorySeparatorPattern.ReplaceAllString(c, "_")
	c = strings.Trim(c, "_")

	normalized := domain.Category(c)
	if canonical, ok := categoryAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeArea canonicalizes an area identifier. Areas are lowercase slugs;
// an empty result means every area.
func NormalizeArea(area string) string {
	a := strings.ToLower(strings.TrimSpace(area))
	return multiSpacePattern.ReplaceAllString(a, " ")
}

// NormalizeSegment canonicalizes a demographic segment label.
// Decade labels are folded to the "30s" / "50s+" form used by datasets;
// anything else is only trimmed and lowercased.
func NormalizeSegment(segment string) string {
	s := strings.ToLower(strings.TrimSpace(segment))
	if m := decadeSegmentPattern.FindStringSubmatch(s); m != nil {
		return m[1] + "s" + m[2]
	}
	return s
}
