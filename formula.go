package xlbuild

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Formula is a built, immutable formula: its text (without the leading "=")
// and the references it captured at build time.
type Formula struct {
	text string
	deps []Ref
}

// Text returns the formula text without the leading "=".
func (f Formula) Text() string { return f.text }

// String returns the formula as it would appear in a cell, "=" included.
func (f Formula) String() string { return "=" + f.text }

// Refs returns a copy of the references the formula captured, nested
// formulas flattened in, duplicates removed, in first-mention order.
func (f Formula) Refs() []Ref {
	return append([]Ref(nil), f.deps...)
}

type argClass int

const (
	classRefArg argClass = iota
	classNumber
	classText
	classBool
)

func (c argClass) String() string {
	switch c {
	case classRefArg:
		return "reference"
	case classNumber:
		return "number"
	case classText:
		return "text"
	case classBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// classSatisfies reports whether an argument class meets an expected kind.
// References always satisfy; their value is unknown until evaluation.
func classSatisfies(c argClass, k ArgKind) bool {
	if k == ArgAny || c == classRefArg {
		return true
	}
	switch k {
	case ArgNumber:
		return c == classNumber
	case ArgText:
		return c == classText
	case ArgBool:
		return c == classBool
	}
	return false
}

type formulaArg struct {
	text   string
	class  argClass
	deps   []Ref
	named  string          // resolved against the session name table at Build
	nested *FormulaBuilder // built recursively at Build
}

// FormulaBuilder accumulates one function call: a name and an ordered
// argument list. Arguments may be literals, references, named ranges, or
// nested builders. Build validates against the bound catalog, renders the
// text, and flattens the captured references.
//
// Builders are single-use: after a successful Build the builder is spent and
// further use fails with ErrBuilder. The first recording error sticks; later
// calls pass it through, so chains can defer checking to Build.
//
// Builders created through Session.Formula are bound to that session's
// catalog and name table. NewFormula creates an unbound builder: no catalog
// validation runs and Named arguments cannot resolve until the builder is
// handed to Session.SetCell, which binds it before building.
type FormulaBuilder struct {
	fname    string
	args     []formulaArg
	catalog  *Catalog
	lookup   func(string) (NamedRef, bool)
	strict   bool
	err      error
	spent    bool
	building bool
}

// NewFormula starts a builder for the named function. The name is
// normalized to upper case. An empty name fails at Build with ErrNoFunction.
func NewFormula(name string) *FormulaBuilder {
	fb := &FormulaBuilder{fname: strings.ToUpper(strings.TrimSpace(name))}
	if fb.fname == "" {
		fb.err = ErrNoFunction
		return fb
	}
	for i := 0; i < len(fb.fname); i++ {
		b := fb.fname[i]
		if isAlpha(b) || b == '_' || b == '.' || (b >= '0' && b <= '9' && i > 0) {
			continue
		}
		fb.err = fmt.Errorf("%w: malformed function name %q", ErrBuilder, name)
		break
	}
	return fb
}

func (fb *FormulaBuilder) fail(err error) *FormulaBuilder {
	if fb.err == nil {
		fb.err = err
	}
	return fb
}

func (fb *FormulaBuilder) arg(a formulaArg) *FormulaBuilder {
	if fb.err != nil {
		return fb
	}
	if fb.spent {
		return fb.fail(fmt.Errorf("%w: formula builder already used", ErrBuilder))
	}
	fb.args = append(fb.args, a)
	return fb
}

// Cell appends a single-cell reference argument.
func (fb *FormulaBuilder) Cell(ref CellRef) *FormulaBuilder {
	return fb.arg(formulaArg{text: ref.String(), class: classRefArg, deps: []Ref{ref}})
}

// Range appends a range reference argument. The range is normalized, so
// corners may be given in any order.
func (fb *FormulaBuilder) Range(r RangeRef) *FormulaBuilder {
	r = NewRangeRef(r.First, r.Last)
	return fb.arg(formulaArg{text: r.String(), class: classRefArg, deps: []Ref{r}})
}

// Named appends a named-range argument. The identifier is validated now;
// its binding is captured from the session name table at Build time.
func (fb *FormulaBuilder) Named(name string) *FormulaBuilder {
	if fb.err == nil && !fb.spent {
		if err := validateRangeName(name); err != nil {
			return fb.fail(err)
		}
	}
	return fb.arg(formulaArg{text: name, class: classRefArg, named: name})
}

// Ref appends any reference argument. A NamedRef given here keeps the
// geometry it already carries instead of resolving through the session.
func (fb *FormulaBuilder) Ref(ref Ref) *FormulaBuilder {
	switch r := ref.(type) {
	case CellRef:
		return fb.Cell(r)
	case RangeRef:
		return fb.Range(r)
	case NamedRef:
		return fb.arg(formulaArg{text: r.Name, class: classRefArg, deps: []Ref{r}})
	case nil:
		return fb.fail(fmt.Errorf("%w: nil reference argument", ErrBuilder))
	default:
		return fb.fail(fmt.Errorf("%w: unsupported reference type %T", ErrBuilder, ref))
	}
}

// Number appends a numeric literal argument.
func (fb *FormulaBuilder) Number(v float64) *FormulaBuilder {
	return fb.arg(formulaArg{text: strconv.FormatFloat(v, 'f', -1, 64), class: classNumber})
}

// Int appends an integer literal argument.
func (fb *FormulaBuilder) Int(n int) *FormulaBuilder {
	return fb.arg(formulaArg{text: strconv.Itoa(n), class: classNumber})
}

// Text appends a string literal argument, quoted and escaped.
func (fb *FormulaBuilder) Text(s string) *FormulaBuilder {
	return fb.arg(formulaArg{text: `"` + strings.ReplaceAll(s, `"`, `""`) + `"`, class: classText})
}

// Bool appends a TRUE/FALSE literal argument.
func (fb *FormulaBuilder) Bool(b bool) *FormulaBuilder {
	text := "FALSE"
	if b {
		text = "TRUE"
	}
	return fb.arg(formulaArg{text: text, class: classBool})
}

// Fn appends a nested formula argument. The nested builder is built when
// the outer one is, inheriting its catalog and name table, and its captured
// references flatten into the outer formula's.
func (fb *FormulaBuilder) Fn(nested *FormulaBuilder) *FormulaBuilder {
	if nested == nil {
		return fb.fail(fmt.Errorf("%w: nil nested formula", ErrBuilder))
	}
	if nested == fb {
		return fb.fail(fmt.Errorf("%w: formula builder nested inside itself", ErrBuilder))
	}
	return fb.arg(formulaArg{class: classRefArg, nested: nested})
}

// bind attaches session facilities to an unbound builder. Already-bound
// builders keep what they have.
func (fb *FormulaBuilder) bind(catalog *Catalog, lookup func(string) (NamedRef, bool), strict bool) {
	if fb.catalog == nil {
		fb.catalog = catalog
		fb.strict = strict
	}
	if fb.lookup == nil {
		fb.lookup = lookup
	}
}

// Build validates the call against the bound catalog, renders the formula
// text, and captures the flattened reference set. The builder is spent
// afterwards.
func (fb *FormulaBuilder) Build() (Formula, error) {
	if fb.err != nil {
		return Formula{}, fb.err
	}
	if fb.spent {
		return Formula{}, fmt.Errorf("%w: formula builder already used", ErrBuilder)
	}
	if fb.building {
		return Formula{}, fmt.Errorf("%w: formula builder nested inside itself", ErrBuilder)
	}
	fb.building = true
	defer func() { fb.building = false }()

	if fb.catalog != nil {
		if spec, known := fb.catalog.Lookup(fb.fname); known {
			if err := spec.checkArity(len(fb.args)); err != nil {
				fb.err = err
				return Formula{}, err
			}
			for i, a := range fb.args {
				want := spec.kindAt(i)
				if !classSatisfies(a.class, want) {
					err := fmt.Errorf("%w: %s argument %d must be %s, got %s",
						ErrBuilder, fb.fname, i+1, want, a.class)
					fb.err = err
					return Formula{}, err
				}
			}
		} else if fb.strict {
			err := fmt.Errorf("%w: %q", ErrUnknownFunction, fb.fname)
			fb.err = err
			return Formula{}, err
		}
	}

	texts := make([]string, len(fb.args))
	var deps []Ref
	seen := make(map[refKey]struct{})
	capture := func(r Ref) {
		k := r.refKey()
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		deps = append(deps, r)
	}

	for i, a := range fb.args {
		switch {
		case a.nested != nil:
			a.nested.bind(fb.catalog, fb.lookup, fb.strict)
			nf, err := a.nested.Build()
			if err != nil {
				fb.err = err
				return Formula{}, err
			}
			texts[i] = nf.text
			for _, d := range nf.deps {
				capture(d)
			}
		case a.named != "":
			if fb.lookup == nil {
				err := fmt.Errorf("%w: named range %q used outside a session", ErrBuilder, a.named)
				fb.err = err
				return Formula{}, err
			}
			nr, ok := fb.lookup(a.named)
			if !ok {
				err := fmt.Errorf("%w: named range %q is not defined", ErrBuilder, a.named)
				fb.err = err
				return Formula{}, err
			}
			texts[i] = a.text
			capture(nr)
		default:
			texts[i] = a.text
			for _, d := range a.deps {
				capture(d)
			}
		}
	}

	fb.spent = true
	return Formula{text: fb.fname + "(" + strings.Join(texts, ",") + ")", deps: deps}, nil
}

// Raw formula scanning. The patterns follow A1 grammar: an optional sheet
// qualifier (quoted or bare) followed by up to three column letters and a
// row number. Ranges are matched before single cells so the cell pattern
// cannot eat a range corner.
var (
	rawRangeRe = regexp.MustCompile(`(?:(?:'[^']+'|[A-Za-z_][A-Za-z0-9_.]*)!)?\$?[A-Z]{1,3}\$?[0-9]+:\$?[A-Z]{1,3}\$?[0-9]+`)
	rawCellRe  = regexp.MustCompile(`(?:(?:'[^']+'|[A-Za-z_][A-Za-z0-9_.]*)!)?\$?[A-Z]{1,3}\$?[0-9]+`)
	rawIdentRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)
)

// extractFormulaRefs scans raw formula text for the references it mentions:
// ranges first, then cells outside them, then bare identifiers resolved
// through lookup. Content inside double-quoted string literals is ignored,
// as are identifiers immediately followed by "(" (function calls) and the
// TRUE/FALSE constants. Identifiers that do not resolve are skipped. The
// result is deduped in first-mention order.
func extractFormulaRefs(text string, lookup func(string) (NamedRef, bool)) []Ref {
	masked := maskQuoted(text)

	var spans [][2]int
	covered := func(s, e int) bool {
		for _, sp := range spans {
			if s < sp[1] && sp[0] < e {
				return true
			}
		}
		return false
	}
	wordAt := func(i int) bool {
		if i < 0 || i >= len(text) {
			return false
		}
		b := text[i]
		return isAlpha(b) || (b >= '0' && b <= '9') || b == '_' || b == '.'
	}

	var refs []Ref
	seen := make(map[refKey]struct{})
	capture := func(r Ref) {
		k := r.refKey()
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		refs = append(refs, r)
	}

	for _, m := range rawRangeRe.FindAllStringIndex(text, -1) {
		if masked[m[0]] || wordAt(m[0]-1) || wordAt(m[1]) {
			continue
		}
		r, err := ParseRangeRef(text[m[0]:m[1]])
		if err != nil {
			continue
		}
		spans = append(spans, [2]int{m[0], m[1]})
		capture(r)
	}

	for _, m := range rawCellRe.FindAllStringIndex(text, -1) {
		if masked[m[0]] || covered(m[0], m[1]) || wordAt(m[0]-1) || wordAt(m[1]) {
			continue
		}
		c, err := ParseCellRef(text[m[0]:m[1]])
		if err != nil {
			continue
		}
		spans = append(spans, [2]int{m[0], m[1]})
		capture(c)
	}

	if lookup == nil {
		return refs
	}

	for _, m := range rawIdentRe.FindAllStringIndex(text, -1) {
		if masked[m[0]] || covered(m[0], m[1]) || wordAt(m[0]-1) {
			continue
		}
		// function call: next non-space char is an open paren
		rest := strings.TrimLeft(text[m[1]:], " ")
		if strings.HasPrefix(rest, "(") {
			continue
		}
		word := text[m[0]:m[1]]
		switch strings.ToUpper(word) {
		case "TRUE", "FALSE":
			continue
		}
		if nr, ok := lookup(word); ok {
			capture(nr)
		}
	}

	return refs
}

// maskQuoted marks the bytes of text lying inside double-quoted string
// literals. Doubled quotes ("") escape; the simple toggle still covers every
// in-string byte.
func maskQuoted(text string) []bool {
	masked := make([]bool, len(text))
	in := false
	for i := 0; i < len(text); i++ {
		if text[i] == '"' {
			in = !in
			masked[i] = true
			continue
		}
		masked[i] = in
	}
	return masked
}
