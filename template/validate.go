package template

import (
	"fmt"
	"strings"

	"github.com/javajack/xlbuild"
)

// Severity classifies a validation issue.
type Severity int

const (
	// SeverityError marks templates that will fail to render.
	SeverityError Severity = iota
	// SeverityWarning marks constructs that render but rarely mean what
	// the author intended.
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARN"
	}
	return "ERROR"
}

// Issue is one problem found during static validation. Location addresses
// the template document ("sheets[0].rows[2].cells[1]"), not rendered cells,
// since repeats shift rendered positions by data.
type Issue struct {
	Severity Severity
	Location string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Location, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate statically checks a template with a one-off renderer.
func Validate(t *Template, opts ...Option) []Issue {
	return NewRenderer(opts...).Validate(t)
}

// ValidateFile loads and statically checks a template file. A non-nil
// error means the file could not be read or parsed at all.
func ValidateFile(path string, opts ...Option) ([]Issue, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRenderer(opts...).Validate(t), nil
}

// Validate checks everything checkable without data: expression syntax,
// sheet naming rules, duplicate literal sheet names, named range syntax,
// repeat declarations. Style names resolve at write time and are not
// checked here.
func (r *Renderer) Validate(t *Template) []Issue {
	if t == nil {
		return []Issue{{Severity: SeverityError, Location: "template", Message: "template is nil"}}
	}
	begin, end := r.opts.notationBegin, r.opts.notationEnd
	if begin == "" || end == "" {
		begin, end = defaultNotationBegin, defaultNotationEnd
	}

	var issues []Issue
	if len(t.Sheets) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Location: "sheets", Message: "template has no sheets"})
	}

	literalNames := make(map[string]int)
	for si := range t.Sheets {
		issues = append(issues, r.validateSheet(&t.Sheets[si], si, literalNames, begin, end)...)
	}
	return issues
}

func (r *Renderer) validateSheet(sh *SheetTemplate, si int, literalNames map[string]int, begin, end string) []Issue {
	loc := fmt.Sprintf("sheets[%d]", si)
	var issues []Issue

	// probe session exercises the real sheet and range naming rules
	probe := xlbuild.NewSession(r.opts.session...)

	switch {
	case sh.Name == "":
		issues = append(issues, Issue{Severity: SeverityError, Location: loc, Message: "sheet has no name"})
		_ = probe.AddSheet("probe")
	case hasExpression(sh.Name, begin, end):
		// computed at render time; only the expressions are checkable
		issues = append(issues, checkText(loc+".name", sh.Name, begin, end)...)
		_ = probe.AddSheet("probe")
	default:
		if first, dup := literalNames[sh.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc,
				Message:  fmt.Sprintf("duplicate sheet name %q (first declared at sheets[%d])", sh.Name, first),
			})
		} else {
			literalNames[sh.Name] = si
		}
		if err := probe.AddSheet(sh.Name); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Location: loc, Message: err.Error()})
			_ = probe.AddSheet("probe")
		}
	}

	for ci, col := range sh.Columns {
		if col.Col < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: fmt.Sprintf("%s.columns[%d]", loc, ci),
				Message:  fmt.Sprintf("negative column index %d", col.Col),
			})
		}
		if col.Width < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: fmt.Sprintf("%s.columns[%d]", loc, ci),
				Message:  fmt.Sprintf("negative width %v", col.Width),
			})
		}
	}

	for ni, nr := range sh.NamedRanges {
		if err := probe.AddNamedRange(nr.Name, nr.Range); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: fmt.Sprintf("%s.named_ranges[%d]", loc, ni),
				Message:  err.Error(),
			})
		}
	}

	if len(sh.Rows) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Location: loc, Message: "sheet has no rows"})
	}
	for ri := range sh.Rows {
		issues = append(issues, validateRow(&sh.Rows[ri], fmt.Sprintf("%s.rows[%d]", loc, ri), begin, end)...)
	}
	return issues
}

func validateRow(row *RowTemplate, loc, begin, end string) []Issue {
	var issues []Issue
	if row.When != "" {
		if err := checkSyntax(row.When); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc + ".when",
				Message:  fmt.Sprintf("invalid when expression %q: %v", row.When, err),
			})
		}
	}
	if rep := row.Repeat; rep != nil {
		if rep.Items == "" {
			issues = append(issues, Issue{Severity: SeverityError, Location: loc + ".repeat", Message: "repeat is missing items"})
		} else if err := checkSyntax(rep.Items); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc + ".repeat",
				Message:  fmt.Sprintf("invalid items expression %q: %v", rep.Items, err),
			})
		}
		if rep.Var == "" {
			issues = append(issues, Issue{Severity: SeverityError, Location: loc + ".repeat", Message: "repeat is missing var"})
		} else if !isIdentifier(rep.Var) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc + ".repeat",
				Message:  fmt.Sprintf("var %q is not a valid identifier", rep.Var),
			})
		}
		if rep.Index != "" && !isIdentifier(rep.Index) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc + ".repeat",
				Message:  fmt.Sprintf("index %q is not a valid identifier", rep.Index),
			})
		}
		if rep.Where != "" {
			if err := checkSyntax(rep.Where); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Location: loc + ".repeat",
					Message:  fmt.Sprintf("invalid where expression %q: %v", rep.Where, err),
				})
			}
		}
	}

	for ci := range row.Cells {
		issues = append(issues, validateCell(&row.Cells[ci], fmt.Sprintf("%s.cells[%d]", loc, ci), begin, end)...)
	}
	return issues
}

func validateCell(c *CellTemplate, loc, begin, end string) []Issue {
	var issues []Issue
	if c.Col != nil && *c.Col < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Location: loc,
			Message:  fmt.Sprintf("negative column index %d", *c.Col),
		})
	}
	if c.Formula != "" && c.Value != nil {
		issues = append(issues, Issue{Severity: SeverityError, Location: loc, Message: "cell declares both value and formula"})
	}
	if c.Formula != "" {
		issues = append(issues, checkText(loc+".formula", c.Formula, begin, end)...)
	}
	if s, ok := c.Value.(string); ok {
		issues = append(issues, checkText(loc+".value", s, begin, end)...)
	}
	return issues
}

// checkText compiles every embedded expression for syntax and warns about
// an unterminated begin delimiter left in the literal tail.
func checkText(loc, value, begin, end string) []Issue {
	var issues []Issue
	segs := splitSegments(value, begin, end)
	for _, seg := range segs {
		if !seg.expr {
			continue
		}
		if err := checkSyntax(seg.text); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc,
				Message:  fmt.Sprintf("invalid expression %q: %v", seg.text, err),
			})
		}
	}
	if n := len(segs); n > 0 && !segs[n-1].expr && strings.Contains(segs[n-1].text, begin) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Location: loc,
			Message:  fmt.Sprintf("unterminated %s is rendered as literal text", begin),
		})
	}
	return issues
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
