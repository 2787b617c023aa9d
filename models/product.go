// Package models defines data structures for the scraper.
package models

// BrandRef points at one brand page discovered on the paginated brand index.
type BrandRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProductRef points at one product page discovered on a brand page. It is the
// unit of work for product scraping.
type ProductRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// IngredientDetail is one row of the per-ingredient "skim through" table.
// Irritancy and Comedogenicity hold a small integer or "-" when the source
// site has not rated the ingredient. IDRating is one of Superstar, Goodie,
// Average, Badie, or "-".
type IngredientDetail struct {
	Name           string `json:"name"`
	WhatItDoes     string `json:"whatItDoes"`
	Irritancy      string `json:"irritancy"`
	Comedogenicity string `json:"comedogenicity"`
	IDRating       string `json:"idRating"`
}

// IngredientCategory groups ingredient names under one functional category
// heading, as listed in the "Key Ingredients" and "Other Ingredients"
// sections of a product page.
type IngredientCategory struct {
	Category    string   `json:"category"`
	Ingredients []string `json:"ingredients"`
}

// ScrapedProduct is the terminal artifact of scraping one product page.
// SkinThroughCount always equals len(SkinThrough) and
// len(SkinThroughIngredientNames); every overview-list name is present among
// the SkinThrough rows, as an all-"-" placeholder when the detail table did
// not mention it.
type ScrapedProduct struct {
	Name                       string               `json:"name"`
	URL                        string               `json:"url"`
	Brand                      string               `json:"brand"`
	Description                string               `json:"description"`
	IngredientsOverview        string               `json:"ingredientsOverview"`
	IngredientsOverviewCount   int                  `json:"ingredientsOverviewCount"`
	KeyIngredients             []IngredientCategory `json:"keyIngredients"`
	OtherIngredients           []IngredientCategory `json:"otherIngredients"`
	SkinThrough                []IngredientDetail   `json:"skinThrough"`
	SkinThroughIngredientNames []string             `json:"skinThroughIngredientNames"`
	SkinThroughCount           int                  `json:"skinThroughCount"`
}
