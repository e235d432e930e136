package cli

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// slugRegex matches characters that should be replaced with hyphens
	slugRegex = regexp.MustCompile(`[^a-z0-9]+`)
	// multiHyphenRegex matches multiple consecutive hyphens
	multiHyphenRegex = regexp.MustCompile(`-+`)
)

// maxSlugLen bounds the title part of generated run names.
const maxSlugLen = 40

// Slugify converts a workflow title into a name-friendly slug.
//
// Examples:
//
//	"Species Distribution Modelling" -> "species-distribution-modelling"
//	"ENM: step #2!" -> "enm-step-2"
func Slugify(title string) string {
	if title == "" {
		return ""
	}

	caser := cases.Lower(language.English)
	result := caser.String(strings.TrimSpace(title))

	result = slugRegex.ReplaceAllString(result, "-")
	result = multiHyphenRegex.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > maxSlugLen {
		// Cut at the last hyphen so a word is not split
		cutoff := maxSlugLen
		if idx := strings.LastIndex(result[:cutoff], "-"); idx > 0 {
			cutoff = idx
		}
		result = result[:cutoff]
	}

	return result
}

// DefaultRunName derives a run name from a workflow title with a short
// random suffix, e.g. "species-distribution-1f3a9c2e".
func DefaultRunName(title string) string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	slug := Slugify(title)
	if slug == "" {
		slug = "run"
	}
	return slug + "-" + suffix
}
