package xlbuild

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// excelize names the initial sheet of a new file Sheet1.
const defaultSheetName = "Sheet1"

// WriterOptions holds configuration for a Writer.
type WriterOptions struct {
	styles            map[string]*excelize.Style
	preWrite          func(*excelize.File) error
	recalculateOnOpen bool
	autoRowHeights    bool
}

// WriterOption configures a Writer.
type WriterOption func(*WriterOptions)

// WithStyle registers a style under a name cells, rows, and columns can
// carry. Writing a workbook that names an unregistered style fails.
func WithStyle(name string, style *excelize.Style) WriterOption {
	return func(o *WriterOptions) {
		if o.styles == nil {
			o.styles = make(map[string]*excelize.Style)
		}
		o.styles[name] = style
	}
}

// WithStyles registers a whole style set at once.
func WithStyles(styles map[string]*excelize.Style) WriterOption {
	return func(o *WriterOptions) {
		if o.styles == nil {
			o.styles = make(map[string]*excelize.Style, len(styles))
		}
		for name, style := range styles {
			o.styles[name] = style
		}
	}
}

// WithPreWrite sets a callback executed on the excelize file after all
// content is rendered and before it is written out. Use it for anything the
// builder does not model: merged cells, charts, panes.
func WithPreWrite(fn func(*excelize.File) error) WriterOption {
	return func(o *WriterOptions) { o.preWrite = fn }
}

// WithRecalculateOnOpen tells the spreadsheet application to recalculate
// all formulas when the file is opened.
func WithRecalculateOnOpen(recalc bool) WriterOption {
	return func(o *WriterOptions) { o.recalculateOnOpen = recalc }
}

// WithAutoRowHeights sizes rows without an explicit height to fit line
// breaks embedded in their text cells. Rows with a set height keep it.
func WithAutoRowHeights(enabled bool) WriterOption {
	return func(o *WriterOptions) { o.autoRowHeights = enabled }
}

// DefaultStyles returns a small general-purpose style set under the names
// the bundled tools use: "header", "total", "currency", "percent", "date",
// and "muted". Register it with WithStyles and override freely.
func DefaultStyles() map[string]*excelize.Style {
	currencyFmt := "#,##0.00"
	return map[string]*excelize.Style{
		"header": {
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		},
		"total": {
			Font:   &excelize.Font{Bold: true},
			Border: []excelize.Border{{Type: "top", Style: 1, Color: "000000"}},
		},
		"currency": {CustomNumFmt: &currencyFmt},
		"percent":  {NumFmt: 10},
		"date":     {NumFmt: 14},
		"muted":    {Font: &excelize.Font{Italic: true, Color: "808080"}},
	}
}

// Writer renders built workbooks to xlsx through excelize. A Writer is
// stateless apart from its options and may be reused across workbooks.
type Writer struct {
	opts WriterOptions
}

// NewWriter creates a writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{}
	for _, opt := range opts {
		opt(&w.opts)
	}
	return w
}

// Write renders the workbook into out as an xlsx document.
func (w *Writer) Write(wb *Workbook, out io.Writer) error {
	if wb == nil || len(wb.Sheets) == 0 {
		return fmt.Errorf("%w: nothing to write", ErrBuilder)
	}

	f := excelize.NewFile()
	defer f.Close()

	styleIDs := make(map[string]int)
	styleID := func(name string) (int, error) {
		if id, ok := styleIDs[name]; ok {
			return id, nil
		}
		style, ok := w.opts.styles[name]
		if !ok {
			return 0, fmt.Errorf("%w: style %q is not registered", ErrBuilder, name)
		}
		id, err := f.NewStyle(style)
		if err != nil {
			return 0, fmt.Errorf("style %q: %w", name, err)
		}
		styleIDs[name] = id
		return id, nil
	}

	for i := range wb.Sheets {
		sh := &wb.Sheets[i]
		if i == 0 {
			if sh.Name != defaultSheetName {
				if err := f.SetSheetName(defaultSheetName, sh.Name); err != nil {
					return fmt.Errorf("rename sheet to %q: %w", sh.Name, err)
				}
			}
		} else {
			if _, err := f.NewSheet(sh.Name); err != nil {
				return fmt.Errorf("add sheet %q: %w", sh.Name, err)
			}
		}
		if err := w.renderSheet(f, sh, styleID); err != nil {
			return err
		}
	}

	if err := w.renderProps(f, wb.Props); err != nil {
		return err
	}
	if w.opts.recalculateOnOpen {
		on := true
		if err := f.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &on}); err != nil {
			return fmt.Errorf("calc properties: %w", err)
		}
	}
	if w.opts.preWrite != nil {
		if err := w.opts.preWrite(f); err != nil {
			return fmt.Errorf("pre-write callback: %w", err)
		}
	}
	return f.Write(out)
}

func (w *Writer) renderSheet(f *excelize.File, sh *Sheet, styleID func(string) (int, error)) error {
	for _, col := range sh.Columns {
		name := ColToName(col.Index)
		if col.Width > 0 {
			if err := f.SetColWidth(sh.Name, name, name, col.Width); err != nil {
				return fmt.Errorf("column %s!%s width: %w", sh.Name, name, err)
			}
		}
		if col.Style != "" {
			id, err := styleID(col.Style)
			if err != nil {
				return err
			}
			if err := f.SetColStyle(sh.Name, name, id); err != nil {
				return fmt.Errorf("column %s!%s style: %w", sh.Name, name, err)
			}
		}
	}

	for _, row := range sh.Rows {
		rowNum := row.Index + 1
		height := row.Height
		if height <= 0 && w.opts.autoRowHeights {
			height = fitRowHeight(row)
		}
		if height > 0 {
			if err := f.SetRowHeight(sh.Name, rowNum, height); err != nil {
				return fmt.Errorf("row %s!%d height: %w", sh.Name, rowNum, err)
			}
		}
		if row.Style != "" {
			id, err := styleID(row.Style)
			if err != nil {
				return err
			}
			if err := f.SetRowStyle(sh.Name, rowNum, rowNum, id); err != nil {
				return fmt.Errorf("row %s!%d style: %w", sh.Name, rowNum, err)
			}
		}
		for _, cell := range row.Cells {
			if err := w.renderCell(f, sh.Name, cell, styleID); err != nil {
				return err
			}
		}
	}

	for _, nr := range sh.Names {
		if err := f.SetDefinedName(&excelize.DefinedName{
			Name:     nr.Name,
			RefersTo: refersTo(nr.Range),
			Scope:    nr.Sheet,
		}); err != nil {
			return fmt.Errorf("defined name %q: %w", nr.Name, err)
		}
	}
	return nil
}

func (w *Writer) renderCell(f *excelize.File, sheet string, cell Cell, styleID func(string) (int, error)) error {
	axis := cell.Ref.CellName()
	switch cell.Type {
	case CellBlank:
		// style only
	case CellFormula:
		if err := f.SetCellFormula(sheet, axis, cell.Formula); err != nil {
			return fmt.Errorf("cell %s formula: %w", cell.Ref, err)
		}
	case CellBoolean:
		b, _ := cell.Value.(bool)
		if err := f.SetCellBool(sheet, axis, b); err != nil {
			return fmt.Errorf("cell %s: %w", cell.Ref, err)
		}
	default:
		value := cell.Value
		if link, ok := value.(Hyperlink); ok {
			if err := f.SetCellHyperLink(sheet, axis, link.URL, "External"); err != nil {
				return fmt.Errorf("cell %s hyperlink: %w", cell.Ref, err)
			}
			value = link.String()
		}
		if err := f.SetCellValue(sheet, axis, value); err != nil {
			return fmt.Errorf("cell %s: %w", cell.Ref, err)
		}
	}
	if cell.Style != "" {
		id, err := styleID(cell.Style)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, axis, axis, id); err != nil {
			return fmt.Errorf("cell %s style: %w", cell.Ref, err)
		}
	}
	return nil
}

func (w *Writer) renderProps(f *excelize.File, p Properties) error {
	props := &excelize.DocProperties{
		Title:       p.Title,
		Creator:     p.Author,
		Subject:     p.Subject,
		Description: p.Description,
		Category:    p.Category,
		Identifier:  p.Identifier,
	}
	if !p.Created.IsZero() {
		props.Created = p.Created.Format(time.RFC3339)
	}
	if err := f.SetDocProps(props); err != nil {
		return fmt.Errorf("doc properties: %w", err)
	}
	return nil
}

// defaultRowHeight matches the spreadsheet default in points.
const defaultRowHeight = 15.0

// fitRowHeight returns a height fitting the tallest multi-line text cell
// in the row, or 0 when every cell is single-line.
func fitRowHeight(row Row) float64 {
	lines := 1
	for _, cell := range row.Cells {
		s, ok := cell.Value.(string)
		if !ok {
			continue
		}
		if n := strings.Count(s, "\n") + 1; n > lines {
			lines = n
		}
	}
	if lines == 1 {
		return 0
	}
	return float64(lines) * defaultRowHeight
}

// refersTo renders a range in the absolute form defined names use, like
// "Budget!$B$2:$B$10".
func refersTo(r RangeRef) string {
	return fmt.Sprintf("%s!$%s$%d:$%s$%d",
		quoteSheet(r.First.Sheet),
		ColToName(r.First.Col), r.First.Row+1,
		ColToName(r.Last.Col), r.Last.Row+1)
}

// WriteFile renders the workbook to a file at path. On render failure the
// partial file is removed.
func (w *Writer) WriteFile(wb *Workbook, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", path, err)
	}
	defer out.Close()

	if err := w.Write(wb, out); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Bytes renders the workbook and returns the xlsx document as bytes.
func (w *Writer) Bytes(wb *Workbook) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(wb, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
