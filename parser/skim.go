package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/viniciusgf/go-scrape-inci/models"
)

var (
	skimSectionRe = regexp.MustCompile(`(?is)Skim through\s*\n+(.+?)(?:\n\s*(?:\[more\]|##)|\z)`)
	separatorRe   = regexp.MustCompile(`^\s*\|?[\s|:-]*-[\s|:-]*\|?\s*$`)
	brTagRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTagRe      = regexp.MustCompile(`<[^>]+>`)
	commaRunRe    = regexp.MustCompile(`\s*,[\s,]*`)
)

// ExtractSkinThrough parses the per-ingredient detail table. The HTML table
// is the primary strategy; when it yields zero rows, the markdown
// "Skim through" pipe table is parsed instead.
func ExtractSkinThrough(src *Source) []models.IngredientDetail {
	if rows := skimFromHTML(src.Doc()); len(rows) > 0 {
		return rows
	}
	return skimFromMarkdown(src.Markdown)
}

func skimFromHTML(doc *goquery.Document) []models.IngredientDetail {
	var rows []models.IngredientDetail
	doc.Find(`table[class*="ingredtable"] tr`).Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("th").Length() > 0 {
			return
		}
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td))
		})
		if len(cells) < 2 {
			return
		}
		if strings.Contains(strings.ToLower(cells[0]), "ingredient name") {
			return
		}
		rows = append(rows, detailFromCells(cells))
	})
	return rows
}

// cellText flattens one table cell: anchors resolve to their link text,
// line-break tags become ", ", remaining tags are stripped, and whitespace
// and duplicate commas are collapsed.
func cellText(td *goquery.Selection) string {
	raw, err := td.Html()
	if err != nil {
		return collapseWhitespace(td.Text())
	}
	text := brTagRe.ReplaceAllString(raw, ", ")
	text = anyTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = collapseWhitespace(text)
	text = commaRunRe.ReplaceAllString(text, ", ")
	return strings.Trim(text, " ,")
}

func skimFromMarkdown(markdown string) []models.IngredientDetail {
	m := skimSectionRe.FindStringSubmatch(markdown)
	if m == nil {
		return nil
	}

	var rows []models.IngredientDetail
	for _, line := range strings.Split(m[1], "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		if separatorRe.MatchString(line) {
			continue
		}
		cells := splitPipeRow(line)
		if len(cells) < 2 {
			continue
		}
		if strings.Contains(strings.ToLower(cells[0]), "ingredient") {
			continue
		}
		for i, cell := range cells {
			cells[i] = cleanMarkdownCell(cell)
		}
		if cells[0] == "" {
			continue
		}
		rows = append(rows, detailFromCells(cells))
	}
	return rows
}

// splitPipeRow splits a markdown table row on "|" without discarding blank
// interior segments, so an empty cell does not shift the columns after it.
// Only the empty outer segments produced by leading/trailing pipes drop.
func splitPipeRow(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func cleanMarkdownCell(cell string) string {
	text := mdLinkRe.ReplaceAllString(cell, "$1")
	text = brTagRe.ReplaceAllString(text, ", ")
	text = strayBracketRe.ReplaceAllString(text, "")
	text = collapseWhitespace(text)
	return strings.Trim(text, " ,")
}

// detailFromCells maps positional columns onto a detail row. A 3-cell row is
// ambiguous: the last cell is either the rating or the combined irr/com
// field, decided by whether it matches a known rating label.
func detailFromCells(cells []string) models.IngredientDetail {
	d := models.IngredientDetail{
		Name:           cells[0],
		Irritancy:      NotRated,
		Comedogenicity: NotRated,
		IDRating:       NotRated,
	}
	if len(cells) > 1 {
		d.WhatItDoes = cells[1]
	}
	switch {
	case len(cells) >= 4:
		d.Irritancy, d.Comedogenicity = SplitIrrCom(cells[2])
		d.IDRating = NormalizeIDRating(cells[3])
	case len(cells) == 3:
		if isRatingLabel(cells[2]) {
			d.IDRating = NormalizeIDRating(cells[2])
		} else {
			d.Irritancy, d.Comedogenicity = SplitIrrCom(cells[2])
		}
	}
	return d
}
