package parser

import (
	"regexp"
	"strings"
)

var (
	// The overview section runs from its heading to the next known section
	// marker, or the end of the document.
	overviewSectionRe = regexp.MustCompile(`(?is)Ingredients overview\s*\n+(.+?)(?:\n\s*(?:Read more|Save to list|Highlights|Key Ingredients|#)|\z)`)

	mdLinkRe          = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	strayBracketRe    = regexp.MustCompile(`\\?\[|\\?\]`)
	gluedMoreLessRe   = regexp.MustCompile(`\b(?:more|less)([A-Z])`)
	bareMoreLessRe    = regexp.MustCompile(`\b(?:more|less)\b`)
	ingredientPathTag = "/ingredients/"
)

// ExtractOverview returns the product's short ingredient list, in page order.
// Names are taken from links to ingredient-detail pages when present (exact
// names); otherwise the section text is cleaned of link syntax and toggle
// artifacts and comma-split.
func ExtractOverview(src *Source) []string {
	m := overviewSectionRe.FindStringSubmatch(src.Markdown)
	if m == nil {
		return nil
	}
	span := m[1]

	if names := ingredientLinkNames(span); len(names) > 0 {
		return names
	}
	return CleanOverviewSpan(span)
}

// JoinOverview rejoins a cleaned overview list into the displayed string, so
// the stored count always matches what is shown.
func JoinOverview(names []string) string {
	return strings.Join(names, ", ")
}

func ingredientLinkNames(span string) []string {
	var names []string
	for _, m := range mdLinkRe.FindAllStringSubmatch(span, -1) {
		text, target := strings.TrimSpace(m[1]), m[2]
		if text == "" || !strings.Contains(target, ingredientPathTag) {
			continue
		}
		lower := strings.ToLower(text)
		if lower == "more" || lower == "less" {
			continue
		}
		names = append(names, text)
	}
	return names
}

// CleanOverviewSpan normalizes a raw overview text span into individual
// ingredient names. It is idempotent: running it over its own comma-joined
// output yields the same list.
func CleanOverviewSpan(span string) []string {
	text := mdLinkRe.ReplaceAllString(span, "$1")
	text = strayBracketRe.ReplaceAllString(text, "")
	// "more"/"less" are expand-toggle labels that bleed into the captured
	// text, sometimes glued to the next ingredient ("moreAcrylates").
	text = gluedMoreLessRe.ReplaceAllString(text, "$1")
	text = bareMoreLessRe.ReplaceAllString(text, "")
	text = collapseWhitespace(text)

	var names []string
	for _, part := range strings.Split(text, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
