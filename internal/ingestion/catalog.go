package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSampleSize is how much of the catalog is inspected to pick a delimiter.
const sniffSampleSize = 2048

// delimiterCandidates lists the delimiters considered by SniffDelimiter,
// in order of preference on ties.
var delimiterCandidates = []rune{';', ',', '|', '\t'}

// Field names a canonical product attribute and the column headers that may
// carry it, tried in order.
type Field struct {
	Name    string
	Aliases []string
}

// Canonical product fields and their accepted column headers.
var (
	FieldName        = Field{"name", []string{"nome", "Nome", "name", "Name", "Título", "titulo"}}
	FieldSKU         = Field{"sku", []string{"sku", "SKU", "codigo", "Código", "code", "Code"}}
	FieldPrice       = Field{"price", []string{"preco", "preço", "price", "Price"}}
	FieldDescription = Field{"description", []string{"descricao", "Descrição", "description", "Description"}}
	FieldCategory    = Field{"category", []string{"categoria", "Categoria", "categoria1", "Categoria1"}}
	FieldStock       = Field{"stock", []string{"estoque", "Estoque", "stock", "Stock"}}
)

// Resolve returns the cleaned value of the first alias present in row with
// a non-empty value, or "" when none matches.
func Resolve(row map[string]string, field Field) string {
	for _, alias := range field.Aliases {
		if v := Normalize(row[alias]); v != "" {
			return v
		}
	}
	return ""
}

// Product is a catalog row resolved to canonical fields.
type Product struct {
	Name        string
	SKU         string
	Price       string
	Description string
	Category    string
	Stock       string
}

// ProductFromRow resolves every canonical field of row.
func ProductFromRow(row map[string]string) Product {
	return Product{
		Name:        Resolve(row, FieldName),
		SKU:         Resolve(row, FieldSKU),
		Price:       Resolve(row, FieldPrice),
		Description: Resolve(row, FieldDescription),
		Category:    Resolve(row, FieldCategory),
		Stock:       Resolve(row, FieldStock),
	}
}

// Empty reports whether the product has neither a name nor a description,
// in which case it carries nothing worth indexing.
func (p Product) Empty() bool {
	return p.Name == "" && p.Description == ""
}

// Document renders the text that is embedded for the product.
func (p Product) Document() string {
	var b strings.Builder
	b.WriteString("PRODUTO\n")
	b.WriteString("Nome: " + p.Name + "\n")
	b.WriteString("SKU: " + p.SKU + "\n")
	b.WriteString("Preço: " + p.Price + "\n")
	b.WriteString("Categoria: " + p.Category + "\n")
	b.WriteString("Estoque: " + p.Stock + "\n")
	b.WriteString("Descrição: " + p.Description)
	return b.String()
}

// SniffDelimiter picks the delimiter of a CSV sample. Each candidate that
// occurs in the header line is scored by how many complete lines split into
// the same number of fields as the header; the best score wins, then the
// higher field count, then candidate order. It falls back to comma.
func SniffDelimiter(sample []byte) rune {
	lines := strings.Split(string(sample), "\n")
	// A full-size sample may end mid-line.
	if len(sample) >= sniffSampleSize && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}

	var kept []string
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return ','
	}

	best, bestAgree, bestCount := ',', 0, 0
	for _, cand := range delimiterCandidates {
		n := countUnquoted(kept[0], cand)
		if n == 0 {
			continue
		}
		agree := 0
		for _, l := range kept {
			if countUnquoted(l, cand) == n {
				agree++
			}
		}
		if agree > bestAgree || (agree == bestAgree && n > bestCount) {
			best, bestAgree, bestCount = cand, agree, n
		}
	}
	return best
}

// countUnquoted counts occurrences of r outside double-quoted sections.
func countUnquoted(line string, r rune) int {
	n, quoted := 0, false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == r && !quoted:
			n++
		}
	}
	return n
}

// CatalogRow is one data row keyed by header, with its 1-based position
// among data rows.
type CatalogRow struct {
	Number int
	Fields map[string]string
}

// ReadCatalog decodes a CSV catalog: an optional UTF-8 BOM is dropped, the
// delimiter is sniffed from the first 2048 bytes and the first record is the
// header. Short rows leave missing columns empty; extra cells are ignored.
func ReadCatalog(r io.Reader) ([]CatalogRow, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, fmt.Errorf("ingestion: read catalog: %w", err)
	}

	sample := data
	if len(sample) > sniffSampleSize {
		sample = sample[:sniffSampleSize]
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = SniffDelimiter(sample)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingestion: read catalog header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []CatalogRow
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingestion: read catalog row %d: %w", n, err)
		}
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				fields[h] = rec[i]
			} else {
				fields[h] = ""
			}
		}
		rows = append(rows, CatalogRow{Number: n, Fields: fields})
	}
	return rows, nil
}
