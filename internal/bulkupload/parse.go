// Package bulkupload turns spreadsheet exports and pasted tables into product
// drafts and submits them to the catalogue backend.
package bulkupload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Format string

const (
	// FormatCSV is a comma separated file with optional quoting.
	FormatCSV Format = "csv"
	// FormatPasted is text copied from a spreadsheet: tab separated when the
	// header row contains a tab, comma separated otherwise.
	FormatPasted Format = "paste"
)

var (
	ErrNoData         = errors.New("no data found")
	ErrMissingColumns = errors.New("could not identify name and price columns")
	ErrShortRow       = errors.New("row is missing the name or price column")
	ErrUnknownFormat  = errors.New("unknown bulk upload format")
)

var defaultSizes = []string{"S", "M", "L"}

var (
	nonPrice = regexp.MustCompile(`[^0-9.]`)
	nonSlug  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Product is one parsed row. Price is invalid (encoded as null) when the cell
// holds no number.
type Product struct {
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Price       domain.Price `json:"price"`
	Description string       `json:"description"`
	Sizes       []string     `json:"sizes"`
	Category    *int64       `json:"category"`
}

type columns struct {
	name, price, desc, size int
}

func findColumns(header []string) (columns, error) {
	cols := columns{name: -1, price: -1, desc: -1, size: -1}
	for i, h := range header {
		h = strings.ToLower(h)
		if cols.name < 0 && (strings.Contains(h, "name") || strings.Contains(h, "product")) {
			cols.name = i
		}
		if cols.price < 0 && strings.Contains(h, "price") {
			cols.price = i
		}
		if cols.desc < 0 && strings.Contains(h, "desc") {
			cols.desc = i
		}
		if cols.size < 0 && strings.Contains(h, "size") {
			cols.size = i
		}
	}
	if cols.name < 0 || cols.price < 0 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

// Parse reads a header row followed by one product per row. Columns are
// found by header name: name (or product), price, desc and size. Blank rows
// and rows with a single cell are skipped.
func Parse(r io.Reader, format Format) ([]Product, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(raw)

	var comma rune
	switch format {
	case FormatCSV:
		comma = ','
	case FormatPasted:
		comma = ','
		if first := firstLine(text); strings.Contains(first, "\t") {
			comma = '\t'
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		cols     columns
		haveHead bool
		products []Product
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", format, err)
		}
		if blank(record) {
			continue
		}

		if !haveHead {
			if cols, err = findColumns(record); err != nil {
				return nil, err
			}
			haveHead = true
			continue
		}

		if len(record) <= 1 {
			continue
		}
		if len(record) <= max(cols.name, cols.price) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, ErrShortRow)
		}
		products = append(products, productFrom(record, cols))
	}

	if !haveHead {
		return nil, ErrNoData
	}
	return products, nil
}

func productFrom(record []string, cols columns) Product {
	name := strings.TrimSpace(record[cols.name])
	p := Product{
		Name:  name,
		Slug:  Slugify(name),
		Price: ParsePrice(record[cols.price]),
		Sizes: append([]string{}, defaultSizes...),
	}
	if cols.desc >= 0 && cols.desc < len(record) {
		p.Description = strings.TrimSpace(record[cols.desc])
	}
	if cols.size >= 0 && cols.size < len(record) {
		if sizes := splitSizes(record[cols.size]); len(sizes) > 0 {
			p.Sizes = sizes
		}
	}
	return p
}

// ParsePrice drops everything but digits and dots, so "$1,299.00" reads as 1299.
func ParsePrice(cell string) domain.Price {
	return domain.PriceFromString(nonPrice.ReplaceAllString(cell, ""))
}

func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func splitSizes(cell string) []string {
	var sizes []string
	for _, s := range strings.Split(cell, "/") {
		if s = strings.TrimSpace(s); s != "" {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
