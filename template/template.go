// Package template renders YAML workbook templates through the xlbuild
// session API. A template declares sheets, columns, named ranges, and rows;
// cell values and formulas may embed ${...} expressions evaluated against
// caller data, and rows may repeat over collections. Because rendering
// drives a regular Session, every templated cell passes the same reference
// and cycle validation as direct API use.
package template

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Template is the root of a workbook template document.
type Template struct {
	Title       string          `yaml:"title,omitempty"`
	Author      string          `yaml:"author,omitempty"`
	Subject     string          `yaml:"subject,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Category    string          `yaml:"category,omitempty"`
	Sheets      []SheetTemplate `yaml:"sheets"`
}

// SheetTemplate declares one sheet. The name may embed expressions, so a
// single template can produce data-dependent sheet names.
type SheetTemplate struct {
	Name        string               `yaml:"name"`
	Columns     []ColumnTemplate     `yaml:"columns,omitempty"`
	NamedRanges []NamedRangeTemplate `yaml:"named_ranges,omitempty"`
	Rows        []RowTemplate        `yaml:"rows"`
}

// ColumnTemplate configures width and style for one 0-based column.
type ColumnTemplate struct {
	Col   int     `yaml:"col"`
	Width float64 `yaml:"width,omitempty"`
	Style string  `yaml:"style,omitempty"`
}

// NamedRangeTemplate binds a name to an A1-notation range like "B2:B10" or
// "Data!A1:C4". Unqualified ranges bind to the declaring sheet.
type NamedRangeTemplate struct {
	Name  string `yaml:"name"`
	Range string `yaml:"range"`
}

// RowTemplate declares one row, or, when Repeat is set, one row per item of
// a collection. When holds an optional boolean expression; a row whose
// condition is false renders nothing, repeat included.
type RowTemplate struct {
	When   string         `yaml:"when,omitempty"`
	Height float64        `yaml:"height,omitempty"`
	Style  string         `yaml:"style,omitempty"`
	Repeat *RepeatSpec    `yaml:"repeat,omitempty"`
	Cells  []CellTemplate `yaml:"cells"`
}

// RepeatSpec repeats a row over the collection the items expression yields.
// Var names the per-item loop variable, Index optionally names the 0-based
// position variable. Where filters items by a boolean expression evaluated
// with the loop variable set. OrderBy sorts by fields of the loop variable,
// like "e.Name ASC, e.Amount DESC".
type RepeatSpec struct {
	Items   string `yaml:"items"`
	Var     string `yaml:"var"`
	Index   string `yaml:"index,omitempty"`
	Where   string `yaml:"where,omitempty"`
	OrderBy string `yaml:"order_by,omitempty"`
}

// CellTemplate declares one cell. Cells occupy consecutive columns in list
// order unless Col pins an explicit 0-based column; later cells continue
// from there. Value and Formula are mutually exclusive. String values
// containing ${...} are evaluated: a value that is exactly one expression
// keeps the result's type, mixed content renders to a string. Formula text
// is evaluated the same way and then attached as a formula, so its cell and
// range references are tracked.
type CellTemplate struct {
	Col     *int   `yaml:"col,omitempty"`
	Value   any    `yaml:"value,omitempty"`
	Formula string `yaml:"formula,omitempty"`
	Style   string `yaml:"style,omitempty"`
}

// Load reads a YAML template. Unknown fields are rejected, so typos in
// field names fail at load rather than rendering empty output.
func Load(r io.Reader) (*Template, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var t Template
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &t, nil
}

// LoadFile reads a YAML template from a file.
func LoadFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return t, nil
}
