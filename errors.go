package xlbuild

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned (wrapped) by session and formula operations.
// Callers match them with errors.Is; the wrapping message carries the
// offending sheet, row, column or reference text.
var (
	// ErrInvalidRef reports malformed cell reference notation or a negative
	// column index.
	ErrInvalidRef = errors.New("invalid cell reference")

	// ErrInvalidRange reports malformed range notation, or a range rejected
	// by the session's range policy.
	ErrInvalidRange = errors.New("invalid range reference")

	// ErrNoSheetSelected reports a sheet-scoped operation issued before any
	// sheet was added.
	ErrNoSheetSelected = errors.New("no sheet selected")

	// ErrNoRowSelected reports a cell write issued before any row was added
	// to the current sheet.
	ErrNoRowSelected = errors.New("no row selected")

	// ErrDuplicateSheet reports a sheet name that already exists in the
	// session.
	ErrDuplicateSheet = errors.New("duplicate sheet name")

	// ErrEmptySheet reports a Build over a session containing a sheet with
	// no rows.
	ErrEmptySheet = errors.New("sheet has no rows")

	// ErrNoFunction reports a formula builder constructed without a function
	// name.
	ErrNoFunction = errors.New("missing function name")

	// ErrUnknownFunction reports a function name absent from the session
	// catalog while strict function checking is enabled.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrCircularRef is the sentinel behind *CycleError. errors.Is(err,
	// ErrCircularRef) matches any rejected circular formula.
	ErrCircularRef = errors.New("circular reference")

	// ErrBuilder covers structural misuse not named by a more specific
	// sentinel: reusing a built session or formula builder, invalid named
	// range identifiers, unsupported cell values.
	ErrBuilder = errors.New("builder error")
)

// CycleError rejects a formula whose references close a dependency loop.
// Cycle is the loop in dependency order starting at the first node the
// detector entered; the last element refers back to the first. A
// self-referencing cell yields a one-element cycle.
type CycleError struct {
	Cycle []Ref
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "circular reference"
	}
	parts := make([]string, 0, len(e.Cycle)+1)
	for _, r := range e.Cycle {
		parts = append(parts, r.String())
	}
	parts = append(parts, e.Cycle[0].String())
	return fmt.Sprintf("circular reference: %s", strings.Join(parts, " -> "))
}

// Unwrap makes errors.Is(err, ErrCircularRef) hold for every *CycleError.
func (e *CycleError) Unwrap() error { return ErrCircularRef }
