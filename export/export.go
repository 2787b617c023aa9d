// Package export serializes scraped records to downloadable JSON documents.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/viniciusgf/go-scrape-inci/models"
)

// AllFilename names a full-run export for the given date.
func AllFilename(t time.Time) string {
	return fmt.Sprintf("inci-products-%s.json", t.Format("2006-01-02"))
}

// PageFilename names a single-page export for the given offset and date.
func PageFilename(offset int, t time.Time) string {
	return fmt.Sprintf("inci-products-page-%d-%s.json", offset, t.Format("2006-01-02"))
}

// WriteAll encodes the full product collection to w.
func WriteAll(w io.Writer, products []models.ScrapedProduct) error {
	if products == nil {
		products = []models.ScrapedProduct{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(products); err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	return nil
}

// WritePage encodes one page bucket to w.
func WritePage(w io.Writer, bucket models.PageBucket) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(bucket); err != nil {
		return fmt.Errorf("encode page bucket: %w", err)
	}
	return nil
}

// SaveAll writes a dated full-run export into dir and returns its path.
func SaveAll(dir string, products []models.ScrapedProduct, t time.Time) (string, error) {
	path := filepath.Join(dir, AllFilename(t))
	if err := writeFile(path, func(w io.Writer) error {
		return WriteAll(w, products)
	}); err != nil {
		return "", err
	}
	return path, nil
}

// SavePage writes a dated single-page export into dir and returns its path.
func SavePage(dir string, bucket models.PageBucket, t time.Time) (string, error) {
	path := filepath.Join(dir, PageFilename(bucket.Offset, t))
	if err := writeFile(path, func(w io.Writer) error {
		return WritePage(w, bucket)
	}); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
