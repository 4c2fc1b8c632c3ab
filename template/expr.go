package template

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Default expression delimiters.
const (
	defaultNotationBegin = "${"
	defaultNotationEnd   = "}"
)

// evaluator compiles and runs template expressions, caching compiled
// programs by expression text. Safe for concurrent use.
type evaluator struct {
	cache sync.Map // expression string → *vm.Program
}

func (e *evaluator) eval(expression string, env map[string]any) (any, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := e.compile(expression, env)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

// truthy evaluates a boolean condition. nil counts as false; any other
// non-bool result is an error.
func (e *evaluator) truthy(condition string, env map[string]any) (bool, error) {
	result, err := e.eval(condition, env)
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, expected bool", condition, result)
	}
	return b, nil
}

func (e *evaluator) compile(expression string, env map[string]any) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// checkSyntax compiles an expression for syntax only, without caching.
func checkSyntax(expression string) error {
	_, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	return err
}

// segment is a run of literal text or the content of one embedded
// expression (without its delimiters).
type segment struct {
	expr bool
	text string
}

// splitSegments splits a value into literal and expression segments.
// "Total: ${sum}" becomes [{literal "Total: "}, {expr "sum"}]. An
// unterminated begin delimiter is left in the literal tail.
func splitSegments(value, begin, end string) []segment {
	var segments []segment
	remaining := value
	for {
		start := strings.Index(remaining, begin)
		if start < 0 {
			break
		}
		searchFrom := start + len(begin)
		stop := findMatchingEnd(remaining[searchFrom:], begin, end)
		if stop < 0 {
			break
		}
		stop += searchFrom

		if start > 0 {
			segments = append(segments, segment{text: remaining[:start]})
		}
		segments = append(segments, segment{expr: true, text: remaining[start+len(begin) : stop]})
		remaining = remaining[stop+len(end):]
	}
	if remaining != "" {
		segments = append(segments, segment{text: remaining})
	}
	return segments
}

// findMatchingEnd locates the end delimiter matching an already-consumed
// begin, skipping nested begin/end pairs.
func findMatchingEnd(s, begin, end string) int {
	depth := 0
	for i := 0; i <= len(s)-len(end); i++ {
		if strings.HasPrefix(s[i:], begin) {
			depth++
		} else if strings.HasPrefix(s[i:], end) {
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// singleExpression reports whether the value is exactly one expression with
// no surrounding text, and returns its content. Single expressions keep the
// evaluated result's type instead of rendering to a string.
func singleExpression(value, begin, end string) (string, bool) {
	segs := splitSegments(strings.TrimSpace(value), begin, end)
	if len(segs) == 1 && segs[0].expr {
		return segs[0].text, true
	}
	return "", false
}

// hasExpression reports whether the value embeds at least one complete
// expression.
func hasExpression(value, begin, end string) bool {
	for _, seg := range splitSegments(value, begin, end) {
		if seg.expr {
			return true
		}
	}
	return false
}
