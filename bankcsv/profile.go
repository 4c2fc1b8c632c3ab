// Package bankcsv imports bank account CSV exports into a builder session.
// Export formats differ per bank: delimiter, preamble lines before the
// header, column layout, date layout and decimal separator are all declared
// in a Profile, which is loadable from TOML so formats ship as data files
// rather than code.
package bankcsv

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

var (
	// ErrProfile reports an unusable format profile.
	ErrProfile = errors.New("invalid import profile")

	// ErrData reports input that cannot be imported under the profile:
	// empty files, rows the declared column kinds cannot parse.
	ErrData = errors.New("bad import data")
)

// Column kinds accepted in a profile. Auto picks per value: date, then
// number, then boolean, then text.
const (
	KindAuto   = "auto"
	KindText   = "text"
	KindNumber = "number"
	KindBool   = "bool"
	KindDate   = "date"
)

// ColumnMap places one source CSV column into the output sheet.
type ColumnMap struct {
	// Source is the 0-based column index in the CSV record.
	Source int `toml:"source"`

	// Title labels the output column. Empty falls back to the source
	// header when the input has one, else to the column letter.
	Title string `toml:"title"`

	// Kind selects the coercion: auto, text, number, bool or date.
	// Empty means auto.
	Kind string `toml:"kind"`

	// Style names the cell style applied to this column's data cells.
	// Resolution happens at write time.
	Style string `toml:"style"`
}

// Profile describes one bank's CSV export format.
type Profile struct {
	// Name identifies the profile in errors and CLI output.
	Name string `toml:"name"`

	// Delimiter is the field separator, one rune. German bank exports
	// mostly use ";".
	Delimiter string `toml:"delimiter"`

	// Comment, when set, makes lines starting with this rune skipped.
	Comment string `toml:"comment"`

	// SkipRows drops this many records before the header. Bank exports
	// often lead with account metadata lines.
	SkipRows int `toml:"skip_rows"`

	// Header marks the first record after SkipRows as column labels.
	Header bool `toml:"header"`

	// LazyQuotes tolerates stray quotes inside fields, which preamble
	// lines in real exports tend to contain.
	LazyQuotes bool `toml:"lazy_quotes"`

	// DateLayout parses date columns, in Go reference-time notation.
	// Empty tries a set of common layouts.
	DateLayout string `toml:"date_layout"`

	// DecimalComma reads numbers in continental notation: "." and spaces
	// group thousands, "," marks the decimal.
	DecimalComma bool `toml:"decimal_comma"`

	// HeaderStyle names the row style for the emitted header row.
	HeaderStyle string `toml:"header_style"`

	// Columns maps source columns into the sheet. Empty passes every
	// source column through in order with auto coercion.
	Columns []ColumnMap `toml:"columns"`
}

// DefaultProfile reads a plain comma-separated file with a header row and
// auto-coerced columns.
func DefaultProfile() Profile {
	return Profile{
		Name:      "default",
		Delimiter: ",",
		Header:    true,
	}
}

// ParseProfile decodes a TOML profile. Keys absent from the document keep
// the DefaultProfile values, so a profile states only what differs.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrProfile, err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfile reads and decodes a TOML profile file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p *Profile) validate() error {
	if _, err := p.delimiter(); err != nil {
		return err
	}
	if p.Comment != "" && utf8.RuneCountInString(p.Comment) != 1 {
		return fmt.Errorf("%w: comment %q must be a single character", ErrProfile, p.Comment)
	}
	if p.SkipRows < 0 {
		return fmt.Errorf("%w: negative skip_rows %d", ErrProfile, p.SkipRows)
	}
	for i, col := range p.Columns {
		if col.Source < 0 {
			return fmt.Errorf("%w: column %d has negative source index %d", ErrProfile, i, col.Source)
		}
		switch col.Kind {
		case "", KindAuto, KindText, KindNumber, KindBool, KindDate:
		default:
			return fmt.Errorf("%w: column %d has unknown kind %q", ErrProfile, i, col.Kind)
		}
	}
	return nil
}

// delimiter returns the separator as a rune, defaulting to ','.
func (p *Profile) delimiter() (rune, error) {
	if p.Delimiter == "" {
		return ',', nil
	}
	if utf8.RuneCountInString(p.Delimiter) != 1 {
		return 0, fmt.Errorf("%w: delimiter %q must be a single character", ErrProfile, p.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(p.Delimiter)
	return r, nil
}

// comment returns the comment rune, 0 when unset.
func (p *Profile) comment() rune {
	if p.Comment == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.Comment)
	return r
}
