package xlbuild

import (
	"fmt"
	"strings"
)

// CellRef identifies a single cell. Row and Col are 0-based; the textual form
// ("A1", "Sheet1!B5") is 1-based for rows, per spreadsheet convention.
type CellRef struct {
	Sheet string // sheet name (empty = sheet-local reference)
	Row   int    // 0-based row index
	Col   int    // 0-based column index
}

// NewCellRef creates a CellRef with explicit sheet, row, col.
func NewCellRef(sheet string, row, col int) CellRef {
	return CellRef{Sheet: sheet, Row: row, Col: col}
}

// ParseCellRef parses a cell reference string like "A1", "Sheet1!B5",
// "'My Sheet'!B5", or "$A$1". Absolute markers ($) are accepted and
// discarded. Failures wrap ErrInvalidRef.
func ParseCellRef(s string) (CellRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CellRef{}, fmt.Errorf("%w: empty reference", ErrInvalidRef)
	}

	var sheet string
	cellPart := s

	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = strings.Trim(s[:idx], "'")
		if sheet == "" {
			return CellRef{}, fmt.Errorf("%w: empty sheet qualifier in %q", ErrInvalidRef, s)
		}
		cellPart = s[idx+1:]
	}

	cellPart = strings.ReplaceAll(cellPart, "$", "")
	if cellPart == "" {
		return CellRef{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}

	col, row, err := parseCellName(cellPart)
	if err != nil {
		return CellRef{}, fmt.Errorf("%w: %q: %v", ErrInvalidRef, s, err)
	}

	return CellRef{Sheet: sheet, Row: row, Col: col}, nil
}

// parseCellName parses "A1" into col=0, row=0.
func parseCellName(name string) (col, row int, err error) {
	if len(name) == 0 {
		return 0, 0, fmt.Errorf("empty cell name")
	}

	i := 0
	for i < len(name) && isAlpha(name[i]) {
		i++
	}
	if i == 0 || i == len(name) {
		return 0, 0, fmt.Errorf("invalid cell name: %q", name)
	}

	col, err = NameToCol(name[:i])
	if err != nil {
		return 0, 0, err
	}

	rowNum := 0
	for _, ch := range name[i:] {
		if ch < '0' || ch > '9' {
			return 0, 0, fmt.Errorf("invalid row in cell name: %q", name)
		}
		rowNum = rowNum*10 + int(ch-'0')
	}
	if rowNum < 1 {
		return 0, 0, fmt.Errorf("invalid row number in cell name: %q", name)
	}

	return col, rowNum - 1, nil // textual rows are 1-based
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// String formats the reference as "Sheet1!A1", "'My Sheet'!A1", or "A1" when
// unqualified. Sheet names needing quotes are quoted, so the output parses
// back to an equal CellRef.
func (c CellRef) String() string {
	if c.Sheet != "" {
		return quoteSheet(c.Sheet) + "!" + c.CellName()
	}
	return c.CellName()
}

// CellName returns just the cell part like "A1" without the sheet qualifier.
func (c CellRef) CellName() string {
	return ColToName(c.Col) + fmt.Sprintf("%d", c.Row+1)
}

// OnSheet returns a copy of the reference qualified with the given sheet.
func (c CellRef) OnSheet(sheet string) CellRef {
	c.Sheet = sheet
	return c
}

func (c CellRef) refKey() refKey {
	return refKey{kind: refCell, sheet: c.Sheet, r1: c.Row, c1: c.Col, r2: c.Row, c2: c.Col}
}

// ColToName converts a 0-based column index to a column name.
// 0→"A", 25→"Z", 26→"AA", 702→"AAA"
func ColToName(col int) string {
	result := ""
	col++ // convert to 1-based for the algorithm
	for col > 0 {
		col-- // adjust for 0-indexed letter
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// NameToCol converts a column name to a 0-based column index.
// "A"→0, "Z"→25, "AA"→26
func NameToCol(name string) (int, error) {
	name = strings.ToUpper(name)
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	col := 0
	for _, ch := range name {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column name: %q", name)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// RangeRef is a rectangular cell range. After construction through
// NewRangeRef or ParseRangeRef, First is the top-left and Last the
// bottom-right corner regardless of the order the corners were given in.
type RangeRef struct {
	First CellRef
	Last  CellRef
}

// NewRangeRef creates a normalized RangeRef from two corner cells. When only
// one corner carries a sheet qualifier, both corners inherit it.
func NewRangeRef(a, b CellRef) RangeRef {
	sheet := a.Sheet
	if sheet == "" {
		sheet = b.Sheet
	}
	r1, r2 := a.Row, b.Row
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	c1, c2 := a.Col, b.Col
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	return RangeRef{
		First: CellRef{Sheet: sheet, Row: r1, Col: c1},
		Last:  CellRef{Sheet: sheet, Row: r2, Col: c2},
	}
}

// ParseRangeRef parses a range string like "A1:C5", "Sheet1!A1:C5", or
// "C5:A1" (corners in any order). Failures wrap ErrInvalidRange.
func ParseRangeRef(s string) (RangeRef, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RangeRef{}, fmt.Errorf("%w: missing ':' in %q", ErrInvalidRange, s)
	}

	first, err := ParseCellRef(parts[0])
	if err != nil {
		return RangeRef{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}

	last, err := ParseCellRef(parts[1])
	if err != nil {
		return RangeRef{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}

	if last.Sheet != "" && first.Sheet != "" && last.Sheet != first.Sheet {
		return RangeRef{}, fmt.Errorf("%w: %q spans two sheets", ErrInvalidRange, s)
	}

	return NewRangeRef(first, last), nil
}

// String formats the range as "Sheet1!A1:C5" or "A1:C5".
func (r RangeRef) String() string {
	if r.First.Sheet != "" {
		return quoteSheet(r.First.Sheet) + "!" + r.First.CellName() + ":" + r.Last.CellName()
	}
	return r.First.CellName() + ":" + r.Last.CellName()
}

// OnSheet returns a copy of the range with both corners qualified with the
// given sheet.
func (r RangeRef) OnSheet(sheet string) RangeRef {
	r.First.Sheet = sheet
	r.Last.Sheet = sheet
	return r
}

// Width returns the number of columns the range covers.
func (r RangeRef) Width() int { return r.Last.Col - r.First.Col + 1 }

// Height returns the number of rows the range covers.
func (r RangeRef) Height() int { return r.Last.Row - r.First.Row + 1 }

// CellCount returns the total number of cells the range covers.
func (r RangeRef) CellCount() int { return r.Width() * r.Height() }

// SingleCell reports whether the range collapses to one cell.
func (r RangeRef) SingleCell() bool {
	return r.First.Row == r.Last.Row && r.First.Col == r.Last.Col
}

// Contains reports whether the given cell lies within the range. An
// unqualified range contains matching positions on any sheet.
func (r RangeRef) Contains(ref CellRef) bool {
	if r.First.Sheet != "" && r.First.Sheet != ref.Sheet {
		return false
	}
	return ref.Row >= r.First.Row && ref.Row <= r.Last.Row &&
		ref.Col >= r.First.Col && ref.Col <= r.Last.Col
}

// Overlaps reports whether two ranges share at least one cell. Ranges
// qualified with different sheets never overlap.
func (r RangeRef) Overlaps(o RangeRef) bool {
	if r.First.Sheet != "" && o.First.Sheet != "" && r.First.Sheet != o.First.Sheet {
		return false
	}
	return r.First.Col <= o.Last.Col && o.First.Col <= r.Last.Col &&
		r.First.Row <= o.Last.Row && o.First.Row <= r.Last.Row
}

// SheetName returns the sheet qualifier of the range.
func (r RangeRef) SheetName() string { return r.First.Sheet }

func (r RangeRef) refKey() refKey {
	return refKey{
		kind:  refRange,
		sheet: r.First.Sheet,
		r1:    r.First.Row, c1: r.First.Col,
		r2: r.Last.Row, c2: r.Last.Col,
	}
}

// NamedRef is a named-range reference as a formula captured it: the
// identifier plus the range geometry it was bound to at capture time.
// Redefining the name in the session later does not change refs already
// captured.
type NamedRef struct {
	Name  string
	Range RangeRef
}

// String returns the bare identifier, which is how the name appears in
// formula text.
func (n NamedRef) String() string { return n.Name }

func (n NamedRef) refKey() refKey {
	k := n.Range.refKey()
	k.kind = refName
	k.name = n.Name
	return k
}

// Ref is anything a formula can depend on: a CellRef, a RangeRef, or a
// NamedRef. The interface is sealed; the three reference types are the only
// implementations.
type Ref interface {
	// String renders the reference the way it appears in formula text.
	String() string

	refKey() refKey
}

type refKind uint8

const (
	refCell refKind = iota
	refRange
	refName
)

// refKey is the comparable identity of a Ref inside a dependency graph.
// Named refs keep their captured geometry in the key, so re-capturing a
// redefined name produces a distinct node.
type refKey struct {
	kind           refKind
	sheet          string
	name           string
	r1, c1, r2, c2 int
}

func (k refKey) contains(other refKey) bool {
	if other.kind != refCell {
		return false
	}
	return k.sheet == other.sheet &&
		other.r1 >= k.r1 && other.r1 <= k.r2 &&
		other.c1 >= k.c1 && other.c1 <= k.c2
}

// quoteSheet wraps a sheet name in single quotes when the A1 grammar
// requires it (spaces, punctuation, or a leading digit).
func quoteSheet(name string) string {
	if sheetNeedsQuoting(name) {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func sheetNeedsQuoting(name string) bool {
	if name == "" {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return true
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return true
		}
	}
	return false
}

// SafeSheetName sanitizes a string for use as a sheet name. It replaces
// forbidden characters ([]*?/\:) with underscore and truncates to 31 chars.
func SafeSheetName(name string) string {
	forbidden := []rune{'/', '\\', ':', '*', '?', '[', ']'}
	runes := []rune(name)
	for i, r := range runes {
		for _, f := range forbidden {
			if r == f {
				runes[i] = '_'
				break
			}
		}
	}
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}

// validateSheetName rejects names SafeSheetName would have to rewrite, plus
// empty and overlong ones. Failures wrap ErrBuilder.
func validateSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty sheet name", ErrBuilder)
	}
	if len([]rune(name)) > 31 {
		return fmt.Errorf("%w: sheet name %q exceeds 31 characters", ErrBuilder, name)
	}
	if strings.ContainsAny(name, `/\:*?[]`) {
		return fmt.Errorf("%w: sheet name %q contains a forbidden character", ErrBuilder, name)
	}
	return nil
}

// validateRangeName enforces named-range identifier rules: a letter or
// underscore followed by letters, digits, underscores or periods, not
// TRUE/FALSE, and not something that already reads as an A1 reference
// (so "Q3" or "R1C1"-lookalikes cannot shadow cells). Failures wrap
// ErrBuilder.
func validateRangeName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty range name", ErrBuilder)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: range name %q exceeds 255 characters", ErrBuilder, name)
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		switch {
		case isAlpha(b), b == '_':
		case b >= '0' && b <= '9', b == '.':
			if i == 0 {
				return fmt.Errorf("%w: range name %q must start with a letter or underscore", ErrBuilder, name)
			}
		default:
			return fmt.Errorf("%w: range name %q contains an invalid character", ErrBuilder, name)
		}
	}
	switch strings.ToUpper(name) {
	case "TRUE", "FALSE":
		return fmt.Errorf("%w: range name %q is reserved", ErrBuilder, name)
	}
	if _, err := ParseCellRef(name); err == nil {
		return fmt.Errorf("%w: range name %q reads as a cell reference", ErrBuilder, name)
	}
	return nil
}
