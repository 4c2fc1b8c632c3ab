package xlbuild

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Merge combines built workbooks into one, appending sheets in argument
// order. Document properties come from the first workbook. Sheet names must
// not collide across inputs.
func Merge(workbooks ...*Workbook) (*Workbook, error) {
	if len(workbooks) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", ErrBuilder)
	}
	merged := &Workbook{}
	seen := make(map[string]struct{})
	for i, wb := range workbooks {
		if wb == nil {
			return nil, fmt.Errorf("%w: workbook %d is nil", ErrBuilder, i)
		}
		if i == 0 {
			merged.Props = wb.Props
		}
		for _, sh := range wb.Sheets {
			if _, dup := seen[sh.Name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateSheet, sh.Name)
			}
			seen[sh.Name] = struct{}{}
			merged.Sheets = append(merged.Sheets, sh)
		}
	}
	return merged, nil
}

// SheetSpec names one sheet and the function that fills it.
type SheetSpec struct {
	Name string
	Fill func(*Session) error
}

// BuildParallel builds one single-sheet workbook per spec concurrently,
// each in its own session, then merges them in spec order. Sessions are
// single-goroutine objects; this is the supported way to spread workbook
// construction across goroutines.
//
// Cycle checking stays local to each sheet's session. Formulas referencing
// other sheets render fine, but loops that span sessions go undetected;
// keep interdependent formulas in one session when whole-workbook cycle
// detection matters.
func BuildParallel(specs []SheetSpec, opts ...Option) (*Workbook, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no sheets to build", ErrBuilder)
	}
	var g errgroup.Group
	results := make([]*Workbook, len(specs))
	for i, spec := range specs {
		g.Go(func() error {
			if spec.Fill == nil {
				return fmt.Errorf("%w: sheet %q has no fill function", ErrBuilder, spec.Name)
			}
			sess := NewSession(opts...)
			if err := sess.AddSheet(spec.Name); err != nil {
				return err
			}
			if err := spec.Fill(sess); err != nil {
				return fmt.Errorf("sheet %q: %w", spec.Name, err)
			}
			wb, err := sess.Build()
			if err != nil {
				return err
			}
			results[i] = wb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(results...)
}
