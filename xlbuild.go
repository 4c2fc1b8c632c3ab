// Package xlbuild constructs spreadsheet workbooks programmatically through
// a validating builder session.
//
// A Session accumulates sheets, rows, and cells under a cursor discipline
// and validates every mutation as it happens: reference notation is parsed
// eagerly, structural preconditions are enforced before any state changes,
// and formulas are tracked in a dependency graph that rejects circular
// references at the moment they are introduced. Build freezes the result
// into an immutable Workbook, which a Writer renders to xlsx:
//
//	sess := xlbuild.NewSession(xlbuild.WithTitle("Budget"))
//	sess.AddSheet("Budget")
//	sess.AddRow()
//	sess.SetCell(0, "Rent")
//	sess.SetCell(1, 1250.0)
//	sess.AddRow()
//	sess.SetCell(0, "Total")
//	sess.SetCell(1, sess.Formula("SUM").Range(xlbuild.RangeRef{
//		First: xlbuild.CellRef{Row: 0, Col: 1},
//		Last:  xlbuild.CellRef{Row: 0, Col: 1},
//	}))
//	wb, err := sess.Build()
//	if err != nil {
//		// handle
//	}
//	err = xlbuild.WriteFile(wb, "budget.xlsx")
package xlbuild

import "io"

// Write renders a built workbook to out as an xlsx document.
func Write(wb *Workbook, out io.Writer, opts ...WriterOption) error {
	return NewWriter(opts...).Write(wb, out)
}

// WriteFile renders a built workbook to a file at path.
func WriteFile(wb *Workbook, path string, opts ...WriterOption) error {
	return NewWriter(opts...).WriteFile(wb, path)
}

// Bytes renders a built workbook and returns the document bytes.
func Bytes(wb *Workbook, opts ...WriterOption) ([]byte, error) {
	return NewWriter(opts...).Bytes(wb)
}
