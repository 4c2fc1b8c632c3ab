package bankcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/javajack/xlbuild"
)

// Layouts tried for date columns when the profile declares none.
var fallbackDateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-Jan-2006",
	time.RFC3339,
}

// Summary reports what one import produced.
type Summary struct {
	Sheet   string
	Rows    int // data rows written, header excluded
	Columns int
	Headers []string // output column labels, empty when no header row was written
}

// Importer reads CSV exports shaped by one Profile into builder sessions.
type Importer struct {
	profile Profile
	sep     rune
}

// NewImporter validates the profile once so Import calls cannot fail on
// configuration.
func NewImporter(p Profile) (*Importer, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	sep, _ := p.delimiter()
	return &Importer{profile: p, sep: sep}, nil
}

// Import reads one CSV export and writes it as a new sheet on the session.
// The sheet gets a header row when the profile declares source headers or
// maps columns with titles, then one row per data record with values
// coerced per column kind. Import leaves the session selecting the new
// sheet, so callers may append summary rows behind the data.
func (im *Importer) Import(r io.Reader, sess *xlbuild.Session, sheet string) (*Summary, error) {
	records, err := im.read(r)
	if err != nil {
		return nil, err
	}
	if im.profile.SkipRows >= len(records) {
		return nil, fmt.Errorf("%w: only %d records, skip_rows is %d", ErrData, len(records), im.profile.SkipRows)
	}
	records = records[im.profile.SkipRows:]

	var source []string // source header labels, nil without one
	if im.profile.Header {
		source = trimAll(records[0])
		records = records[1:]
	}

	cols := im.outputColumns(source, records)
	if err := sess.AddSheet(sheet); err != nil {
		return nil, err
	}

	sum := &Summary{Sheet: sheet, Columns: len(cols)}
	if headers := headerLabels(cols); headers != nil {
		var opts []xlbuild.RowOption
		if im.profile.HeaderStyle != "" {
			opts = append(opts, xlbuild.WithRowStyle(im.profile.HeaderStyle))
		}
		if err := sess.AddRow(opts...); err != nil {
			return nil, err
		}
		for i, label := range headers {
			if err := sess.SetCell(i, label); err != nil {
				return nil, err
			}
		}
		sum.Headers = headers
	}

	for ri, rec := range records {
		if blankRecord(rec) {
			continue
		}
		if err := sess.AddRow(); err != nil {
			return nil, err
		}
		for i, col := range cols {
			raw := ""
			if col.Source < len(rec) {
				raw = strings.TrimSpace(rec[col.Source])
			}
			value, err := im.coerce(raw, col.Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d, column %q: %v", ErrData, ri+1, labelOf(col, i), err)
			}
			var opts []xlbuild.CellOption
			if col.Style != "" {
				opts = append(opts, xlbuild.WithCellStyle(col.Style))
			}
			if err := sess.SetCell(i, value, opts...); err != nil {
				return nil, err
			}
		}
		sum.Rows++
	}

	if sum.Rows == 0 && sum.Headers == nil {
		return nil, fmt.Errorf("%w: no rows in input", ErrData)
	}
	return sum, nil
}

// ImportFile imports a CSV file. An empty sheet name derives one from the
// file name, sanitized to the sheet naming rules.
func (im *Importer) ImportFile(path string, sess *xlbuild.Session, sheet string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		base := filepath.Base(path)
		sheet = xlbuild.SafeSheetName(strings.TrimSuffix(base, filepath.Ext(base)))
	}
	sum, err := im.Import(f, sess, sheet)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return sum, nil
}

func (im *Importer) read(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = im.sep
	cr.Comment = im.profile.comment()
	cr.LazyQuotes = im.profile.LazyQuotes
	cr.FieldsPerRecord = -1 // bank exports are ragged, preambles included
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no rows in input", ErrData)
	}
	return records, nil
}

// outputColumns resolves the profile mapping against the source header,
// filling empty titles from the header labels. An empty mapping passes all
// source columns through with auto coercion; without a header either, the
// width comes from the widest record.
func (im *Importer) outputColumns(source []string, records [][]string) []ColumnMap {
	if len(im.profile.Columns) > 0 {
		cols := append([]ColumnMap(nil), im.profile.Columns...)
		for i := range cols {
			if cols[i].Title == "" && cols[i].Source < len(source) {
				cols[i].Title = source[cols[i].Source]
			}
		}
		return cols
	}

	width := len(source)
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}
	cols := make([]ColumnMap, width)
	for i := range cols {
		cols[i] = ColumnMap{Source: i}
		if i < len(source) {
			cols[i].Title = source[i]
		}
	}
	return cols
}

// headerLabels resolves one label per output column, or nil when neither
// the mapping nor the source provides any.
func headerLabels(cols []ColumnMap) []string {
	any := false
	for _, col := range cols {
		if col.Title != "" {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	labels := make([]string, len(cols))
	for i, col := range cols {
		labels[i] = labelOf(col, i)
	}
	return labels
}

func labelOf(col ColumnMap, out int) string {
	if col.Title != "" {
		return col.Title
	}
	return xlbuild.ColToName(out)
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, f := range rec {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// coerce turns one raw field into a typed cell value. Empty fields become
// blank cells for every kind.
func (im *Importer) coerce(raw, kind string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch kind {
	case KindText:
		return raw, nil
	case KindNumber:
		n, ok := im.parseNumber(raw)
		if !ok {
			return nil, fmt.Errorf("cannot parse %q as a number", raw)
		}
		return n, nil
	case KindBool:
		b, ok := parseBool(raw)
		if !ok {
			return nil, fmt.Errorf("cannot parse %q as a boolean", raw)
		}
		return b, nil
	case KindDate:
		t, ok := im.parseDate(raw)
		if !ok {
			return nil, fmt.Errorf("cannot parse %q as a date", raw)
		}
		return t, nil
	default: // KindAuto
		// Dates go first: layouts match exactly, while the number parser
		// strips grouping dots and would swallow "15.01.2024" under a
		// decimal-comma profile.
		if t, ok := im.parseDate(raw); ok {
			return t, nil
		}
		if n, ok := im.parseNumber(raw); ok {
			return n, nil
		}
		if b, ok := parseBool(raw); ok {
			return b, nil
		}
		return raw, nil
	}
}

// parseNumber reads amounts the way bank exports print them: optional
// parentheses for negatives, grouping separators, and either decimal
// notation depending on the profile.
func (im *Importer) parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		negative = true
	}
	if im.profile.DecimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, " ", "")
	}
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "ja", "on":
		return true, true
	case "false", "0", "no", "n", "nein", "off":
		return false, true
	}
	return false, false
}

func (im *Importer) parseDate(raw string) (time.Time, bool) {
	if im.profile.DateLayout != "" {
		t, err := time.Parse(im.profile.DateLayout, raw)
		return t, err == nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
