package parser

import (
	"regexp"
	"strings"
)

const (
	// UnknownBrand and UnknownProduct are the terminal fallbacks when every
	// extraction strategy comes up empty.
	UnknownBrand   = "Unknown"
	UnknownProduct = "Unknown Product"

	explainedSuffix = " ingredients (Explained)"
	siteSuffix      = " | INCIDecoder"
)

var (
	brandSlugRe = regexp.MustCompile(`/brands/([A-Za-z0-9-]+)`)
	headingRe   = regexp.MustCompile(`(?m)^#\s*(.+?)\s*$`)
)

// ExtractBrand pulls the product's brand out of a capture. Strategies, most
// reliable first: the labeled brand-title element, any anchor to a brand
// page, then a title-cased brand slug found in the page URL or HTML.
func ExtractBrand(src *Source) string {
	doc := src.Doc()

	if brand := collapseWhitespace(doc.Find("span#product-brand-title a").First().Text()); brand != "" {
		return brand
	}

	if brand := collapseWhitespace(doc.Find(`a[href*="/brands/"]`).First().Text()); brand != "" {
		return brand
	}

	if m := brandSlugRe.FindStringSubmatch(src.URL); m != nil {
		return TitleCaseSlug(m[1])
	}
	if m := brandSlugRe.FindStringSubmatch(src.HTML); m != nil {
		return TitleCaseSlug(m[1])
	}

	return UnknownBrand
}

// ExtractName pulls the product name. Strategies: metadata title with known
// site suffixes stripped, the labeled title element prefixed with the brand,
// the first markdown heading, then a literal placeholder.
func ExtractName(src *Source, brand string) string {
	if title := src.MetaTitle(); title != "" {
		title = strings.TrimSuffix(title, explainedSuffix)
		title = strings.TrimSuffix(title, siteSuffix)
		// The suffixes stack on some pages ("Name ingredients (Explained) | INCIDecoder").
		title = strings.TrimSuffix(strings.TrimSpace(title), explainedSuffix)
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}

	if title := collapseWhitespace(src.Doc().Find("span#product-title").First().Text()); title != "" {
		if brand != "" && brand != UnknownBrand {
			return brand + " " + title
		}
		return title
	}

	if m := headingRe.FindStringSubmatch(src.Markdown); m != nil {
		if heading := strings.TrimSpace(m[1]); heading != "" {
			return heading
		}
	}

	return UnknownProduct
}

// ExtractDescription pulls the short marketing description: the labeled
// details element first, else the first emphasized span, else empty.
func ExtractDescription(src *Source) string {
	doc := src.Doc()

	if details := strings.TrimSpace(doc.Find("span#product-details").First().Text()); details != "" {
		return strings.Trim(details, "\"'“” \t\n")
	}

	return collapseWhitespace(doc.Find("em").First().Text())
}
