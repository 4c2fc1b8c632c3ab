package xlbuild

import (
	"fmt"
	"strings"
)

// ArgKind classifies what a function accepts at one argument position.
// Kinds constrain literal arguments only: a reference, named range, or
// nested formula satisfies every kind, since its value is unknown until the
// spreadsheet application evaluates it.
type ArgKind int

const (
	ArgAny ArgKind = iota
	ArgNumber
	ArgText
	ArgBool
)

// String returns a human-readable name for the ArgKind.
func (k ArgKind) String() string {
	switch k {
	case ArgAny:
		return "any"
	case ArgNumber:
		return "number"
	case ArgText:
		return "text"
	case ArgBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Variadic marks a FuncSpec with no upper argument bound.
const Variadic = -1

// FuncSpec describes one catalog function: the name it is called by, its
// arity bounds, and optionally the kinds of its arguments. Specs describe
// signatures only; nothing here evaluates.
type FuncSpec struct {
	Name    string
	MinArgs int
	MaxArgs int // Variadic = unbounded

	// Kinds holds per-position argument kinds. When a function takes more
	// arguments than Kinds lists, the last kind repeats for the tail. An
	// empty slice means every position accepts any kind.
	Kinds []ArgKind
}

// kindAt returns the expected kind for the i-th argument.
func (s FuncSpec) kindAt(i int) ArgKind {
	if len(s.Kinds) == 0 {
		return ArgAny
	}
	if i >= len(s.Kinds) {
		return s.Kinds[len(s.Kinds)-1]
	}
	return s.Kinds[i]
}

// checkArity validates an argument count against the spec's bounds.
func (s FuncSpec) checkArity(n int) error {
	if n < s.MinArgs {
		return fmt.Errorf("%w: %s takes at least %d argument(s), got %d", ErrBuilder, s.Name, s.MinArgs, n)
	}
	if s.MaxArgs != Variadic && n > s.MaxArgs {
		return fmt.Errorf("%w: %s takes at most %d argument(s), got %d", ErrBuilder, s.Name, s.MaxArgs, n)
	}
	return nil
}

// Catalog maps function names to their specs. Lookups are case-insensitive,
// matching how spreadsheet applications treat function names.
type Catalog struct {
	funcs map[string]FuncSpec
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{funcs: make(map[string]FuncSpec)}
}

// Register adds or replaces a function spec. The empty name is ignored.
func (c *Catalog) Register(spec FuncSpec) {
	spec.Name = strings.ToUpper(strings.TrimSpace(spec.Name))
	if spec.Name == "" {
		return
	}
	c.funcs[spec.Name] = spec
}

// Lookup finds a spec by name, case-insensitively.
func (c *Catalog) Lookup(name string) (FuncSpec, bool) {
	spec, ok := c.funcs[strings.ToUpper(strings.TrimSpace(name))]
	return spec, ok
}

// Names returns the registered function names, unsorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered functions.
func (c *Catalog) Len() int { return len(c.funcs) }

// DefaultCatalog creates a fresh catalog preloaded with the common math,
// aggregate, logical, text, date, lookup, and financial functions. Callers
// may Register on top of it without affecting other sessions.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, spec := range builtinFuncs {
		c.Register(spec)
	}
	return c
}

// Excel caps variadic argument lists at 255.
const maxVariadicArgs = 255

var builtinFuncs = []FuncSpec{
	// Aggregates.
	{Name: "SUM", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "AVERAGE", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "MIN", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "MAX", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "COUNT", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "COUNTA", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "COUNTIF", MinArgs: 2, MaxArgs: 2},
	{Name: "SUMIF", MinArgs: 2, MaxArgs: 3},
	{Name: "AVERAGEIF", MinArgs: 2, MaxArgs: 3},
	{Name: "SUBTOTAL", MinArgs: 2, MaxArgs: maxVariadicArgs, Kinds: []ArgKind{ArgNumber, ArgAny}},

	// Math.
	{Name: "ABS", MinArgs: 1, MaxArgs: 1, Kinds: []ArgKind{ArgNumber}},
	{Name: "ROUND", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgNumber, ArgNumber}},
	{Name: "ROUNDUP", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgNumber, ArgNumber}},
	{Name: "ROUNDDOWN", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgNumber, ArgNumber}},
	{Name: "SQRT", MinArgs: 1, MaxArgs: 1, Kinds: []ArgKind{ArgNumber}},
	{Name: "POWER", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgNumber, ArgNumber}},
	{Name: "MOD", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgNumber, ArgNumber}},
	{Name: "INT", MinArgs: 1, MaxArgs: 1, Kinds: []ArgKind{ArgNumber}},
	{Name: "PRODUCT", MinArgs: 1, MaxArgs: maxVariadicArgs},

	// Logical.
	{Name: "IF", MinArgs: 2, MaxArgs: 3},
	{Name: "IFERROR", MinArgs: 2, MaxArgs: 2},
	{Name: "AND", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "OR", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "NOT", MinArgs: 1, MaxArgs: 1},

	// Text.
	{Name: "CONCATENATE", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "CONCAT", MinArgs: 1, MaxArgs: maxVariadicArgs},
	{Name: "TEXT", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgAny, ArgText}},
	{Name: "LEFT", MinArgs: 1, MaxArgs: 2, Kinds: []ArgKind{ArgAny, ArgNumber}},
	{Name: "RIGHT", MinArgs: 1, MaxArgs: 2, Kinds: []ArgKind{ArgAny, ArgNumber}},
	{Name: "MID", MinArgs: 3, MaxArgs: 3, Kinds: []ArgKind{ArgAny, ArgNumber, ArgNumber}},
	{Name: "LEN", MinArgs: 1, MaxArgs: 1},
	{Name: "UPPER", MinArgs: 1, MaxArgs: 1},
	{Name: "LOWER", MinArgs: 1, MaxArgs: 1},
	{Name: "TRIM", MinArgs: 1, MaxArgs: 1},

	// Dates.
	{Name: "TODAY", MinArgs: 0, MaxArgs: 0},
	{Name: "NOW", MinArgs: 0, MaxArgs: 0},
	{Name: "DATE", MinArgs: 3, MaxArgs: 3, Kinds: []ArgKind{ArgNumber, ArgNumber, ArgNumber}},
	{Name: "YEAR", MinArgs: 1, MaxArgs: 1},
	{Name: "MONTH", MinArgs: 1, MaxArgs: 1},
	{Name: "DAY", MinArgs: 1, MaxArgs: 1},
	{Name: "EOMONTH", MinArgs: 2, MaxArgs: 2, Kinds: []ArgKind{ArgAny, ArgNumber}},

	// Lookup.
	{Name: "VLOOKUP", MinArgs: 3, MaxArgs: 4},
	{Name: "HLOOKUP", MinArgs: 3, MaxArgs: 4},
	{Name: "INDEX", MinArgs: 2, MaxArgs: 3},
	{Name: "MATCH", MinArgs: 2, MaxArgs: 3},

	// Financial.
	{Name: "NPV", MinArgs: 2, MaxArgs: maxVariadicArgs, Kinds: []ArgKind{ArgNumber, ArgAny}},
	{Name: "IRR", MinArgs: 1, MaxArgs: 2},
	{Name: "PMT", MinArgs: 3, MaxArgs: 5, Kinds: []ArgKind{ArgNumber}},
	{Name: "FV", MinArgs: 3, MaxArgs: 5, Kinds: []ArgKind{ArgNumber}},
	{Name: "PV", MinArgs: 3, MaxArgs: 5, Kinds: []ArgKind{ArgNumber}},
	{Name: "RATE", MinArgs: 3, MaxArgs: 6, Kinds: []ArgKind{ArgNumber}},
	{Name: "SLN", MinArgs: 3, MaxArgs: 3, Kinds: []ArgKind{ArgNumber, ArgNumber, ArgNumber}},
}
