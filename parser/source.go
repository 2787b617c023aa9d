// Package parser converts semi-structured markdown/HTML page captures into
// typed product records. The source site's layout is uncontrolled, so every
// field is extracted by an ordered chain of heuristics: the primary strategy
// first, then strictly less reliable fallbacks. An extractor that finds
// nothing returns an empty value; that is never an error.
package parser

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Source is one captured page handed to the field extractors.
type Source struct {
	Markdown string
	HTML     string
	Metadata map[string]any
	URL      string

	docOnce sync.Once
	doc     *goquery.Document
}

// NewSource wraps a page capture for extraction.
func NewSource(markdown, html string, metadata map[string]any, url string) *Source {
	return &Source{
		Markdown: markdown,
		HTML:     html,
		Metadata: metadata,
		URL:      url,
	}
}

// Doc parses the HTML once and memoizes the document.
func (s *Source) Doc() *goquery.Document {
	s.docOnce.Do(func() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
		if err != nil {
			doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
		}
		s.doc = doc
	})
	return s.doc
}

// MetaTitle returns the page metadata title, if the capture carried one.
func (s *Source) MetaTitle() string {
	if s.Metadata == nil {
		return ""
	}
	title, _ := s.Metadata["title"].(string)
	return strings.TrimSpace(title)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
