package parser

import (
	"strings"
	"unicode"

	"github.com/viniciusgf/go-scrape-inci/models"
)

// BrandLinks filters a captured link list down to brand pages, in order and
// URL-deduplicated. The index page itself and query-string variants drop.
func BrandLinks(links []string) []models.BrandRef {
	seen := make(map[string]bool)
	var brands []models.BrandRef
	for _, link := range links {
		if !strings.Contains(link, "/brands/") ||
			strings.HasSuffix(link, "/brands") ||
			strings.Contains(link, "?") {
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		brands = append(brands, models.BrandRef{
			Name: TitleCaseSlug(slugAfter(link, "/brands/")),
			URL:  link,
		})
	}
	return brands
}

// ProductLinks filters a captured link list down to product pages, in order
// and URL-deduplicated.
func ProductLinks(links []string) []models.ProductRef {
	seen := make(map[string]bool)
	var products []models.ProductRef
	for _, link := range links {
		if !strings.Contains(link, "/products/") || strings.Contains(link, "?") {
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		products = append(products, models.ProductRef{
			Name: TitleCaseSlug(slugAfter(link, "/products/")),
			URL:  link,
		})
	}
	return products
}

func slugAfter(link, marker string) string {
	_, slug, ok := strings.Cut(link, marker)
	if !ok {
		return ""
	}
	return strings.Trim(slug, "/")
}

// TitleCaseSlug turns a hyphenated URL slug into a display name:
// "the-ordinary" becomes "The Ordinary".
func TitleCaseSlug(slug string) string {
	if slug == "" {
		return UnknownBrand
	}
	words := strings.Split(slug, "-")
	for i, word := range words {
		runes := []rune(word)
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
