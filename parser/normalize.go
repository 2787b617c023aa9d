package parser

import (
	"strings"

	"github.com/viniciusgf/go-scrape-inci/models"
)

// BuildProduct runs every field extractor over a capture and merges the
// results into one canonical record. Overview names missing from the detail
// table are appended as placeholder rows, so the detail table is always a
// superset of the overview list; original table order is preserved and
// placeholders follow in overview order.
func BuildProduct(src *Source) models.ScrapedProduct {
	brand := ExtractBrand(src)
	name := ExtractName(src, brand)
	description := ExtractDescription(src)
	overview := ExtractOverview(src)
	keyIngredients := ExtractKeyIngredients(src)
	otherIngredients := ExtractOtherIngredients(src)
	skim := ExtractSkinThrough(src)

	index := make(map[string]bool, len(skim))
	for _, row := range skim {
		index[normalizeName(row.Name)] = true
	}
	for _, ingredient := range overview {
		key := normalizeName(ingredient)
		if index[key] {
			continue
		}
		index[key] = true
		skim = append(skim, models.IngredientDetail{
			Name:           ingredient,
			WhatItDoes:     NotRated,
			Irritancy:      NotRated,
			Comedogenicity: NotRated,
			IDRating:       NotRated,
		})
	}

	skimNames := make([]string, len(skim))
	for i, row := range skim {
		skimNames[i] = row.Name
	}

	return models.ScrapedProduct{
		Name:                       name,
		URL:                        src.URL,
		Brand:                      brand,
		Description:                description,
		IngredientsOverview:        JoinOverview(overview),
		IngredientsOverviewCount:   len(overview),
		KeyIngredients:             keyIngredients,
		OtherIngredients:           otherIngredients,
		SkinThrough:                skim,
		SkinThroughIngredientNames: skimNames,
		SkinThroughCount:           len(skim),
	}
}

// normalizeName is the case/whitespace-insensitive identity used to match
// overview names against detail rows.
func normalizeName(name string) string {
	return strings.ToLower(collapseWhitespace(name))
}
