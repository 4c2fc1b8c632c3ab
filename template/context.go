package template

import (
	"fmt"
	"strings"

	"github.com/javajack/xlbuild"
)

// builtins are functions available to every template expression. Data keys
// of the same name shadow them.
var builtins = map[string]any{
	"hyperlink": func(url, display string) xlbuild.Hyperlink {
		return xlbuild.Hyperlink{URL: url, Display: display}
	},
}

// renderContext carries caller data plus loop variables through one render.
// Loop variables shadow data keys; the merged environment handed to the
// evaluator is cached and rebuilt only when a variable changes.
type renderContext struct {
	data   map[string]any
	vars   map[string]any
	eval   *evaluator
	begin  string
	end    string
	merged map[string]any
}

func newRenderContext(data map[string]any, eval *evaluator, begin, end string) *renderContext {
	if data == nil {
		data = make(map[string]any)
	}
	if begin == "" || end == "" {
		begin = defaultNotationBegin
		end = defaultNotationEnd
	}
	return &renderContext{
		data:  data,
		vars:  make(map[string]any),
		eval:  eval,
		begin: begin,
		end:   end,
	}
}

func (c *renderContext) env() map[string]any {
	if c.merged != nil {
		return c.merged
	}
	m := make(map[string]any, len(builtins)+len(c.data)+len(c.vars))
	for k, v := range builtins {
		m[k] = v
	}
	for k, v := range c.data {
		m[k] = v
	}
	for k, v := range c.vars {
		m[k] = v
	}
	c.merged = m
	return m
}

func (c *renderContext) setVar(name string, value any) {
	c.vars[name] = value
	c.merged = nil
}

func (c *renderContext) clearVar(name string) {
	delete(c.vars, name)
	c.merged = nil
}

func (c *renderContext) evaluate(expression string) (any, error) {
	return c.eval.eval(expression, c.env())
}

func (c *renderContext) truthy(condition string) (bool, error) {
	return c.eval.truthy(condition, c.env())
}

// renderValue evaluates a templated cell value. A value that is exactly one
// expression keeps the result's type; mixed content always renders to a
// string, with nil expression results rendering as nothing.
func (c *renderContext) renderValue(value string) (any, error) {
	if exprText, ok := singleExpression(value, c.begin, c.end); ok {
		result, err := c.evaluate(exprText)
		if err != nil {
			return nil, fmt.Errorf("render %q: %w", value, err)
		}
		return result, nil
	}
	return c.renderString(value)
}

// renderString evaluates embedded expressions and always returns a string.
// Used for sheet names and formula text, which are textual by nature.
func (c *renderContext) renderString(value string) (string, error) {
	segments := splitSegments(value, c.begin, c.end)
	var b strings.Builder
	for _, seg := range segments {
		if !seg.expr {
			b.WriteString(seg.text)
			continue
		}
		result, err := c.evaluate(seg.text)
		if err != nil {
			return "", fmt.Errorf("render expression %q in %q: %w", seg.text, value, err)
		}
		if result != nil {
			fmt.Fprintf(&b, "%v", result)
		}
	}
	return b.String(), nil
}

// loopVar scopes one repeat iteration variable (and optional index
// variable), restoring any shadowed outer values when the repeat finishes.
type loopVar struct {
	ctx     *renderContext
	name    string
	idxName string
	outer   any
	hadOut  bool
	outIdx  any
	hadIdx  bool
}

func pushLoopVar(ctx *renderContext, name, idxName string) *loopVar {
	lv := &loopVar{ctx: ctx, name: name, idxName: idxName}
	if old, ok := ctx.vars[name]; ok {
		lv.outer = old
		lv.hadOut = true
	}
	if idxName != "" {
		if old, ok := ctx.vars[idxName]; ok {
			lv.outIdx = old
			lv.hadIdx = true
		}
	}
	return lv
}

func (lv *loopVar) set(value any, index int) {
	lv.ctx.setVar(lv.name, value)
	if lv.idxName != "" {
		lv.ctx.setVar(lv.idxName, index)
	}
}

// restore puts back whatever the variables held before the repeat. Designed
// for use with defer.
func (lv *loopVar) restore() {
	if lv.hadOut {
		lv.ctx.setVar(lv.name, lv.outer)
	} else {
		lv.ctx.clearVar(lv.name)
	}
	if lv.idxName != "" {
		if lv.hadIdx {
			lv.ctx.setVar(lv.idxName, lv.outIdx)
		} else {
			lv.ctx.clearVar(lv.idxName)
		}
	}
}
