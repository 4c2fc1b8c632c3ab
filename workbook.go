package xlbuild

import "time"

// Properties carries workbook document metadata. Zero-value fields are
// defaulted at Build: Created becomes the build time and Identifier a fresh
// UUID.
type Properties struct {
	Title       string
	Author      string
	Subject     string
	Description string
	Category    string
	Identifier  string
	Created     time.Time
}

// Cell is one frozen cell of a built workbook.
type Cell struct {
	Ref     CellRef
	Type    CellType
	Value   any    // string, float64, bool, or time.Time; nil for blank and formula cells
	Formula string // formula text without the leading "=", set when Type is CellFormula
	Style   string // style name, resolved by the writer
}

// Row is one frozen row: its cells in ascending column order plus row-level
// presentation.
type Row struct {
	Index  int // 0-based row index within the sheet
	Cells  []Cell
	Height float64 // points; 0 = sheet default
	Style  string
}

// Column carries column-level presentation for one 0-based column index.
type Column struct {
	Index int
	Width float64 // character units; 0 = sheet default
	Style string
}

// NamedRange is a frozen name binding: the identifier, the range it resolves
// to, and the sheet that owned the definition.
type NamedRange struct {
	Name  string
	Range RangeRef
	Sheet string
}

// Sheet is one frozen sheet of a built workbook.
type Sheet struct {
	Name    string
	Rows    []Row
	Columns []Column
	Names   []NamedRange
}

// Cell finds a cell by its 0-based row and column. The second result is
// false for positions that were never set.
func (s *Sheet) Cell(row, col int) (Cell, bool) {
	for i := range s.Rows {
		if s.Rows[i].Index != row {
			continue
		}
		for _, c := range s.Rows[i].Cells {
			if c.Ref.Col == col {
				return c, true
			}
		}
		return Cell{}, false
	}
	return Cell{}, false
}

// Workbook is the frozen result of Session.Build. It holds plain data only;
// nothing here mutates, so a Workbook may be read from any number of
// goroutines and handed to writers freely.
type Workbook struct {
	Props  Properties
	Sheets []Sheet
}

// Sheet finds a sheet by name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for i := range w.Sheets {
		if w.Sheets[i].Name == name {
			return &w.Sheets[i], true
		}
	}
	return nil, false
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i := range w.Sheets {
		names[i] = w.Sheets[i].Name
	}
	return names
}

// Lookup finds a cell by a sheet-qualified reference. Unqualified refs
// resolve against the first sheet.
func (w *Workbook) Lookup(ref CellRef) (Cell, bool) {
	if len(w.Sheets) == 0 {
		return Cell{}, false
	}
	sheet := &w.Sheets[0]
	if ref.Sheet != "" {
		s, ok := w.Sheet(ref.Sheet)
		if !ok {
			return Cell{}, false
		}
		sheet = s
	}
	return sheet.Cell(ref.Row, ref.Col)
}

// Names returns every name binding across all sheets, in sheet then
// definition order.
func (w *Workbook) Names() []NamedRange {
	var all []NamedRange
	for i := range w.Sheets {
		all = append(all, w.Sheets[i].Names...)
	}
	return all
}
