package xlbuild

import (
	"fmt"
	"strings"
)

// Describe returns a human-readable outline of the workbook: per sheet its
// row, cell, and formula counts, the column setup, named ranges, and every
// formula with its location. Useful for debugging builders and templates
// during development.
func (wb *Workbook) Describe() string {
	var b strings.Builder
	b.WriteString("Workbook")
	if wb.Props.Title != "" {
		b.WriteString(": ")
		b.WriteString(wb.Props.Title)
	}
	fmt.Fprintf(&b, " (%s)\n", plural(len(wb.Sheets), "sheet"))

	for i := range wb.Sheets {
		describeSheet(&b, &wb.Sheets[i])
	}
	return b.String()
}

func describeSheet(b *strings.Builder, sh *Sheet) {
	cells, formulas := 0, 0
	for _, row := range sh.Rows {
		cells += len(row.Cells)
		for _, cell := range row.Cells {
			if cell.Type == CellFormula {
				formulas++
			}
		}
	}
	fmt.Fprintf(b, "%s (%s, %s, %s)\n",
		sh.Name, plural(len(sh.Rows), "row"), plural(cells, "cell"), plural(formulas, "formula"))

	if len(sh.Columns) > 0 {
		b.WriteString("  Columns:\n")
		for _, col := range sh.Columns {
			fmt.Fprintf(b, "    %s", ColToName(col.Index))
			if col.Width > 0 {
				fmt.Fprintf(b, " width %g", col.Width)
			}
			if col.Style != "" {
				fmt.Fprintf(b, " style %q", col.Style)
			}
			b.WriteByte('\n')
		}
	}

	if len(sh.Names) > 0 {
		b.WriteString("  Names:\n")
		for _, nr := range sh.Names {
			fmt.Fprintf(b, "    %s = %s\n", nr.Name, nr.Range)
		}
	}

	if formulas > 0 {
		b.WriteString("  Formulas:\n")
		for _, row := range sh.Rows {
			for _, cell := range row.Cells {
				if cell.Type == CellFormula {
					fmt.Fprintf(b, "    %s: =%s\n", cell.Ref.CellName(), cell.Formula)
				}
			}
		}
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
