package xlbuild

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type cellDraft struct {
	typ     CellType
	value   any
	formula string
	deps    []Ref // edges currently registered for this cell
	style   string
}

type rowDraft struct {
	cells  map[int]*cellDraft
	height float64
	style  string
}

type columnDraft struct {
	width float64
	style string
}

type sheetDraft struct {
	name  string
	rows  []*rowDraft
	cols  map[int]columnDraft
	names []string // named ranges owned by this sheet, in definition order
}

func (sh *sheetDraft) removeName(name string) {
	for i, n := range sh.names {
		if n == name {
			sh.names = append(sh.names[:i], sh.names[i+1:]...)
			return
		}
	}
}

type namedBinding struct {
	sheet string
	rng   RangeRef
}

// Session accumulates a workbook under construction. Mutations follow a
// cursor discipline: AddSheet selects a sheet, AddRow appends a row to it
// and selects that row, SetCell writes into the selected row. Operations
// issued out of order fail immediately with ErrNoSheetSelected or
// ErrNoRowSelected rather than corrupting state.
//
// Every mutation validates synchronously. Formula writes are checked
// against the session's dependency graph and rolled back when they would
// close a reference cycle, so the session never holds a circular workbook.
//
// Build freezes the accumulated state into an immutable Workbook and closes
// the session; further mutations fail with ErrBuilder.
//
// A Session is not safe for concurrent use. For concurrent construction,
// build independent sessions per sheet and combine them with Merge or
// BuildParallel.
type Session struct {
	opts   *Options
	graph  *DepGraph
	sheets []*sheetDraft
	byName map[string]*sheetDraft
	names  map[string]namedBinding
	cur    *sheetDraft
	curRow *rowDraft
	closed bool
}

// NewSession creates an empty session.
func NewSession(opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Session{
		opts:   o,
		graph:  NewDepGraph(),
		byName: make(map[string]*sheetDraft),
		names:  make(map[string]namedBinding),
	}
}

func (s *Session) active() error {
	if s.closed {
		return fmt.Errorf("%w: session already built", ErrBuilder)
	}
	return nil
}

// AddSheet appends a sheet and selects it. The row cursor resets, so the
// next SetCell needs an AddRow first. Sheet names must be unique within the
// session and valid per sheet naming rules.
func (s *Session) AddSheet(name string) error {
	if err := s.active(); err != nil {
		return err
	}
	if err := validateSheetName(name); err != nil {
		return err
	}
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSheet, name)
	}
	sh := &sheetDraft{name: name, cols: make(map[int]columnDraft)}
	s.sheets = append(s.sheets, sh)
	s.byName[name] = sh
	s.cur = sh
	s.curRow = nil
	return nil
}

// AddRow appends a row to the selected sheet and selects it.
func (s *Session) AddRow(opts ...RowOption) error {
	if err := s.active(); err != nil {
		return err
	}
	if s.cur == nil {
		return fmt.Errorf("%w: call AddSheet before adding rows", ErrNoSheetSelected)
	}
	var cfg rowConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	row := &rowDraft{cells: make(map[int]*cellDraft), height: cfg.height, style: cfg.style}
	s.cur.rows = append(s.cur.rows, row)
	s.curRow = row
	return nil
}

// SetCell writes a value into the given column of the selected row.
// Accepted values:
//
//   - nil: a blank cell
//   - string: text, or a raw formula when prefixed with "=" (its cell,
//     range, and named references are extracted and tracked)
//   - int, int32, int64, float32, float64: a number
//   - bool: a boolean
//   - time.Time: a date
//   - Hyperlink: display text plus a clickable link
//   - Formula: a built formula with its captured references
//   - *FormulaBuilder: built here, bound to this session first
//
// Writing the same position twice replaces the previous content; a formula
// overwritten by a plain value gives up its dependency edges. Formula
// writes that would close a reference cycle fail with a *CycleError and
// leave the session exactly as it was.
func (s *Session) SetCell(col int, value any, opts ...CellOption) error {
	if err := s.active(); err != nil {
		return err
	}
	if s.curRow == nil {
		return fmt.Errorf("%w: call AddRow before setting cells", ErrNoRowSelected)
	}
	if col < 0 {
		return fmt.Errorf("%w: negative column index %d", ErrInvalidRef, col)
	}
	var cfg cellConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ref := CellRef{Sheet: s.cur.name, Row: len(s.cur.rows) - 1, Col: col}

	switch v := value.(type) {
	case nil:
		return s.putValue(ref, col, CellBlank, nil, cfg)
	case string:
		if strings.HasPrefix(v, "=") {
			text := strings.TrimPrefix(v, "=")
			return s.putFormula(ref, col, text, extractFormulaRefs(text, s.lookupName), cfg)
		}
		return s.putValue(ref, col, CellString, v, cfg)
	case int:
		return s.putValue(ref, col, CellNumber, float64(v), cfg)
	case int32:
		return s.putValue(ref, col, CellNumber, float64(v), cfg)
	case int64:
		return s.putValue(ref, col, CellNumber, float64(v), cfg)
	case float32:
		return s.putValue(ref, col, CellNumber, float64(v), cfg)
	case float64:
		return s.putValue(ref, col, CellNumber, v, cfg)
	case bool:
		return s.putValue(ref, col, CellBoolean, v, cfg)
	case time.Time:
		return s.putValue(ref, col, CellDate, v, cfg)
	case Hyperlink:
		return s.putValue(ref, col, CellString, v, cfg)
	case Formula:
		return s.putFormula(ref, col, v.text, v.deps, cfg)
	case *FormulaBuilder:
		if v == nil {
			return fmt.Errorf("%w: nil formula builder", ErrBuilder)
		}
		v.bind(s.opts.catalog, s.lookupName, s.opts.strictFunctions)
		f, err := v.Build()
		if err != nil {
			return err
		}
		return s.putFormula(ref, col, f.text, f.deps, cfg)
	default:
		return fmt.Errorf("%w: unsupported cell value type %T", ErrBuilder, value)
	}
}

func (s *Session) cellDraftAt(col int) *cellDraft {
	cd, ok := s.curRow.cells[col]
	if !ok {
		cd = &cellDraft{}
		s.curRow.cells[col] = cd
	}
	return cd
}

func (s *Session) putValue(ref CellRef, col int, typ CellType, value any, cfg cellConfig) error {
	cd := s.cellDraftAt(col)
	for _, d := range cd.deps {
		s.graph.RemoveEdge(ref, d)
	}
	cd.deps = nil
	cd.typ = typ
	cd.value = value
	cd.formula = ""
	if cfg.style != "" {
		cd.style = cfg.style
	}
	return nil
}

func (s *Session) putFormula(ref CellRef, col int, text string, deps []Ref, cfg cellConfig) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty formula", ErrBuilder)
	}

	// qualify sheet-local refs with the formula's home sheet, then dedupe:
	// distinct spellings can collapse to the same reference once qualified
	qualified := make([]Ref, 0, len(deps))
	seen := make(map[refKey]struct{}, len(deps))
	for _, d := range deps {
		q := qualifyRef(d, ref.Sheet)
		k := q.refKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		qualified = append(qualified, q)
	}

	cd := s.cellDraftAt(col)
	old := cd.deps
	for _, d := range old {
		s.graph.RemoveEdge(ref, d)
	}
	var added []Ref
	for _, d := range qualified {
		if s.graph.AddEdge(ref, d) {
			added = append(added, d)
		}
	}
	if cycle := s.graph.FindCycle(); cycle != nil {
		for _, d := range added {
			s.graph.RemoveEdge(ref, d)
		}
		for _, d := range old {
			s.graph.AddEdge(ref, d)
		}
		return fmt.Errorf("cell %s: %w", ref, &CycleError{Cycle: cycle})
	}

	cd.typ = CellFormula
	cd.value = nil
	cd.formula = text
	cd.deps = qualified
	if cfg.style != "" {
		cd.style = cfg.style
	}
	return nil
}

// qualifyRef fills in the home sheet on sheet-local references. Qualified
// references and captured named geometries pass through unchanged.
func qualifyRef(r Ref, sheet string) Ref {
	switch v := r.(type) {
	case CellRef:
		if v.Sheet == "" {
			v.Sheet = sheet
		}
		return v
	case RangeRef:
		if v.First.Sheet == "" {
			return v.OnSheet(sheet)
		}
		return v
	case NamedRef:
		if v.Range.First.Sheet == "" {
			v.Range = v.Range.OnSheet(sheet)
		}
		return v
	default:
		return r
	}
}

// AddNamedRange defines (or redefines) a named range from A1-notation text
// like "B2:B10" or "Data!A1:C4". Unqualified ranges bind to the selected
// sheet. Names are session-wide: redefining one moves its ownership to the
// selected sheet and changes what later formulas capture, but never what
// already-built formulas captured.
func (s *Session) AddNamedRange(name, rangeText string) error {
	if err := s.active(); err != nil {
		return err
	}
	if s.cur == nil {
		return fmt.Errorf("%w: call AddSheet before defining named ranges", ErrNoSheetSelected)
	}
	r, err := ParseRangeRef(rangeText)
	if err != nil {
		return fmt.Errorf("named range %q: %w", name, err)
	}
	return s.defineName(name, r)
}

// AddNamedRangeRef is AddNamedRange for an already-parsed range.
func (s *Session) AddNamedRangeRef(name string, r RangeRef) error {
	if err := s.active(); err != nil {
		return err
	}
	if s.cur == nil {
		return fmt.Errorf("%w: call AddSheet before defining named ranges", ErrNoSheetSelected)
	}
	return s.defineName(name, NewRangeRef(r.First, r.Last))
}

func (s *Session) defineName(name string, r RangeRef) error {
	if err := validateRangeName(name); err != nil {
		return err
	}
	if s.opts.strictRanges && r.SingleCell() {
		return fmt.Errorf("%w: named range %q collapses to a single cell (%s)", ErrInvalidRange, name, r.String())
	}
	if r.SheetName() == "" {
		r = r.OnSheet(s.cur.name)
	}
	if old, exists := s.names[name]; exists {
		if old.sheet != s.cur.name {
			if prev, ok := s.byName[old.sheet]; ok {
				prev.removeName(name)
			}
			s.cur.names = append(s.cur.names, name)
		}
	} else {
		s.cur.names = append(s.cur.names, name)
	}
	s.names[name] = namedBinding{sheet: s.cur.name, rng: r}
	return nil
}

func (s *Session) lookupName(name string) (NamedRef, bool) {
	b, ok := s.names[name]
	if !ok {
		return NamedRef{}, false
	}
	return NamedRef{Name: name, Range: b.rng}, true
}

// NamedRangeOf returns the current binding of a named range.
func (s *Session) NamedRangeOf(name string) (RangeRef, bool) {
	b, ok := s.names[name]
	if !ok {
		return RangeRef{}, false
	}
	return b.rng, true
}

// SetColumn configures column width and style on the selected sheet.
// Columns may be configured at any point after AddSheet; configuring the
// same column again merges the settings.
func (s *Session) SetColumn(col int, opts ...ColOption) error {
	if err := s.active(); err != nil {
		return err
	}
	if s.cur == nil {
		return fmt.Errorf("%w: call AddSheet before configuring columns", ErrNoSheetSelected)
	}
	if col < 0 {
		return fmt.Errorf("%w: negative column index %d", ErrInvalidRef, col)
	}
	var cfg colConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	c := s.cur.cols[col]
	if cfg.width > 0 {
		c.width = cfg.width
	}
	if cfg.style != "" {
		c.style = cfg.style
	}
	s.cur.cols[col] = c
	return nil
}

// Formula starts a formula builder bound to this session's catalog and name
// table. The result is handed back through SetCell, either pre-built or as
// the builder itself.
func (s *Session) Formula(name string) *FormulaBuilder {
	fb := NewFormula(name)
	fb.bind(s.opts.catalog, s.lookupName, s.opts.strictFunctions)
	return fb
}

// SheetName returns the name of the selected sheet.
func (s *Session) SheetName() (string, bool) {
	if s.cur == nil {
		return "", false
	}
	return s.cur.name, true
}

// RowIndex returns the 0-based index of the selected row on the selected
// sheet. Useful when constructing ranges over rows appended in a loop.
func (s *Session) RowIndex() (int, bool) {
	if s.cur == nil || s.curRow == nil {
		return 0, false
	}
	return len(s.cur.rows) - 1, true
}

// RowCount returns the number of rows added to the selected sheet so far.
func (s *Session) RowCount() int {
	if s.cur == nil {
		return 0
	}
	return len(s.cur.rows)
}

// Build validates the accumulated state, freezes it into an immutable
// Workbook, and closes the session. Every sheet must contain at least one
// row. Zero-value document properties are defaulted: Created to the build
// time, Identifier to a fresh UUID.
func (s *Session) Build() (*Workbook, error) {
	if err := s.active(); err != nil {
		return nil, err
	}
	if len(s.sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrBuilder)
	}
	for _, sh := range s.sheets {
		if len(sh.rows) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptySheet, sh.name)
		}
	}

	wb := &Workbook{Props: s.opts.props, Sheets: make([]Sheet, 0, len(s.sheets))}
	if wb.Props.Created.IsZero() {
		wb.Props.Created = time.Now()
	}
	if wb.Props.Identifier == "" {
		wb.Props.Identifier = uuid.NewString()
	}
	for _, sh := range s.sheets {
		wb.Sheets = append(wb.Sheets, s.freezeSheet(sh))
	}

	s.closed = true
	s.graph = nil
	s.sheets = nil
	s.byName = nil
	s.names = nil
	s.cur = nil
	s.curRow = nil
	return wb, nil
}

func (s *Session) freezeSheet(sh *sheetDraft) Sheet {
	out := Sheet{Name: sh.name, Rows: make([]Row, 0, len(sh.rows))}
	for ri, rd := range sh.rows {
		row := Row{Index: ri, Height: rd.height, Style: rd.style}
		cols := make([]int, 0, len(rd.cells))
		for c := range rd.cells {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		row.Cells = make([]Cell, 0, len(cols))
		for _, c := range cols {
			cd := rd.cells[c]
			row.Cells = append(row.Cells, Cell{
				Ref:     CellRef{Sheet: sh.name, Row: ri, Col: c},
				Type:    cd.typ,
				Value:   cd.value,
				Formula: cd.formula,
				Style:   cd.style,
			})
		}
		out.Rows = append(out.Rows, row)
	}

	colIdx := make([]int, 0, len(sh.cols))
	for c := range sh.cols {
		colIdx = append(colIdx, c)
	}
	sort.Ints(colIdx)
	for _, c := range colIdx {
		cd := sh.cols[c]
		out.Columns = append(out.Columns, Column{Index: c, Width: cd.width, Style: cd.style})
	}

	for _, name := range sh.names {
		b := s.names[name]
		out.Names = append(out.Names, NamedRange{Name: name, Range: b.rng, Sheet: sh.name})
	}
	return out
}
