package parser

import (
	"regexp"
	"strings"

	"github.com/viniciusgf/go-scrape-inci/models"
)

var (
	keySectionRe   = regexp.MustCompile(`(?is)Key Ingredients\s*\n+(.+?)(?:\n\s*(?:Show all ingredients|Other Ingredients|##)|\z)`)
	otherSectionRe = regexp.MustCompile(`(?is)Other Ingredients\s*\n+(.+?)(?:\n\s*(?:Skim through|##)|\z)`)

	linkedCategoryRe = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)\s*:\s*(.+)`)
	boldCategoryRe   = regexp.MustCompile(`\*\*([^*:]+):\*\*\s*(.+)`)
	linkedNameRe     = regexp.MustCompile(`\[([^\]]+)\][^,]*`)
)

// ExtractKeyIngredients parses the "Key Ingredients" section into functional
// categories with their ingredient names.
func ExtractKeyIngredients(src *Source) []models.IngredientCategory {
	return categoriesFromSection(src.Markdown, keySectionRe)
}

// ExtractOtherIngredients parses the "Other Ingredients" section the same way.
func ExtractOtherIngredients(src *Source) []models.IngredientCategory {
	return categoriesFromSection(src.Markdown, otherSectionRe)
}

// categoriesFromSection walks the section line by line. A category line is
// either a linked heading "[Category](url): ingredients" or a bold heading
// "**Category:** ingredients"; anything else is ignored. Categories that
// yield no ingredient names drop.
func categoriesFromSection(markdown string, sectionRe *regexp.Regexp) []models.IngredientCategory {
	m := sectionRe.FindStringSubmatch(markdown)
	if m == nil {
		return nil
	}

	var categories []models.IngredientCategory
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var category, rest string
		if cm := linkedCategoryRe.FindStringSubmatch(line); cm != nil {
			category, rest = cm[1], cm[2]
		} else if bm := boldCategoryRe.FindStringSubmatch(line); bm != nil {
			category, rest = bm[1], bm[2]
		} else {
			continue
		}

		names := categoryIngredientNames(rest)
		if len(names) == 0 {
			continue
		}
		categories = append(categories, models.IngredientCategory{
			Category:    strings.TrimSpace(category),
			Ingredients: names,
		})
	}
	return categories
}

// categoryIngredientNames prefers the exact names carried by ingredient
// links; a link-less line is comma-split instead. Single characters and
// expand-toggle labels drop.
func categoryIngredientNames(text string) []string {
	var names []string
	for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if len(name) < 2 || strings.Contains(strings.ToLower(name), "more") {
			continue
		}
		names = append(names, name)
	}
	if names != nil {
		return names
	}

	for _, part := range strings.Split(text, ",") {
		cleaned := strings.TrimSpace(linkedNameRe.ReplaceAllString(part, "$1"))
		if len(cleaned) < 2 {
			continue
		}
		names = append(names, cleaned)
	}
	return names
}
