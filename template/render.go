package template

import (
	"fmt"

	"github.com/javajack/xlbuild"
)

// Options configures rendering and validation.
type Options struct {
	notationBegin string
	notationEnd   string
	session       []xlbuild.Option
	safeNames     bool
}

// Option configures a Renderer.
type Option func(*Options)

// WithNotation overrides the ${ } expression delimiters.
func WithNotation(begin, end string) Option {
	return func(o *Options) {
		o.notationBegin = begin
		o.notationEnd = end
	}
}

// WithSessionOptions passes builder options (catalog, strictness, document
// properties) to the session each render creates. Template-level properties
// override properties set this way.
func WithSessionOptions(opts ...xlbuild.Option) Option {
	return func(o *Options) {
		o.session = append(o.session, opts...)
	}
}

// WithSafeSheetNames sanitizes rendered sheet names instead of failing on
// characters the format forbids. Useful when names come from data.
func WithSafeSheetNames(enabled bool) Option {
	return func(o *Options) {
		o.safeNames = enabled
	}
}

// Renderer renders templates against data. The compiled-expression cache
// lives on the Renderer, so reuse one across renders of the same template.
type Renderer struct {
	opts Options
	eval *evaluator
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{eval: &evaluator{}}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// Render renders a template with a one-off renderer.
func Render(t *Template, data map[string]any, opts ...Option) (*xlbuild.Workbook, error) {
	return NewRenderer(opts...).Render(t, data)
}

// RenderFile loads a template file and renders it.
func RenderFile(path string, data map[string]any, opts ...Option) (*xlbuild.Workbook, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRenderer(opts...).Render(t, data)
}

// Render drives a builder session through the template and freezes the
// result. Any reference or cycle violation a hand-written session would hit
// fails the render the same way, located by sheet and row.
func (r *Renderer) Render(t *Template, data map[string]any) (*xlbuild.Workbook, error) {
	if t == nil {
		return nil, fmt.Errorf("nil template")
	}
	ctx := newRenderContext(data, r.eval, r.opts.notationBegin, r.opts.notationEnd)

	sessOpts := append([]xlbuild.Option(nil), r.opts.session...)
	if props, ok, err := r.renderProps(t, ctx); err != nil {
		return nil, err
	} else if ok {
		sessOpts = append(sessOpts, xlbuild.WithProperties(props))
	}
	sess := xlbuild.NewSession(sessOpts...)

	for i := range t.Sheets {
		if err := r.renderSheet(sess, ctx, &t.Sheets[i], i); err != nil {
			return nil, err
		}
	}
	return sess.Build()
}

func (r *Renderer) renderProps(t *Template, ctx *renderContext) (xlbuild.Properties, bool, error) {
	if t.Title == "" && t.Author == "" && t.Subject == "" && t.Description == "" && t.Category == "" {
		return xlbuild.Properties{}, false, nil
	}
	var p xlbuild.Properties
	var err error
	render := func(name, src string) string {
		if err != nil {
			return ""
		}
		out, renderErr := ctx.renderString(src)
		if renderErr != nil {
			err = fmt.Errorf("%s: %w", name, renderErr)
		}
		return out
	}
	p.Title = render("title", t.Title)
	p.Author = render("author", t.Author)
	p.Subject = render("subject", t.Subject)
	p.Description = render("description", t.Description)
	p.Category = render("category", t.Category)
	if err != nil {
		return xlbuild.Properties{}, false, err
	}
	return p, true, nil
}

func (r *Renderer) renderSheet(sess *xlbuild.Session, ctx *renderContext, sh *SheetTemplate, idx int) error {
	if sh.Name == "" {
		return fmt.Errorf("sheet %d: missing name", idx+1)
	}
	name, err := ctx.renderString(sh.Name)
	if err != nil {
		return fmt.Errorf("sheet %d name: %w", idx+1, err)
	}
	if r.opts.safeNames {
		name = xlbuild.SafeSheetName(name)
	}
	if err := sess.AddSheet(name); err != nil {
		return err
	}

	for _, col := range sh.Columns {
		var opts []xlbuild.ColOption
		if col.Width > 0 {
			opts = append(opts, xlbuild.WithColWidth(col.Width))
		}
		if col.Style != "" {
			opts = append(opts, xlbuild.WithColStyle(col.Style))
		}
		if len(opts) == 0 {
			continue
		}
		if err := sess.SetColumn(col.Col, opts...); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}

	for _, nr := range sh.NamedRanges {
		if err := sess.AddNamedRange(nr.Name, nr.Range); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}

	for ri := range sh.Rows {
		row := &sh.Rows[ri]
		if row.When != "" {
			ok, err := ctx.truthy(row.When)
			if err != nil {
				return fmt.Errorf("sheet %q row %d: when %q: %w", name, ri+1, row.When, err)
			}
			if !ok {
				continue
			}
		}
		if row.Repeat != nil {
			err = r.renderRepeat(sess, ctx, row)
		} else {
			err = r.renderRow(sess, ctx, row)
		}
		if err != nil {
			return fmt.Errorf("sheet %q row %d: %w", name, ri+1, err)
		}
	}
	return nil
}

// renderRepeat renders the row once per item. Zero items render zero rows;
// a sheet fed only by an empty collection fails at Build like any empty
// sheet.
func (r *Renderer) renderRepeat(sess *xlbuild.Session, ctx *renderContext, row *RowTemplate) error {
	rep := row.Repeat
	if rep.Items == "" {
		return fmt.Errorf("repeat is missing items")
	}
	if rep.Var == "" {
		return fmt.Errorf("repeat is missing var")
	}

	itemsVal, err := ctx.evaluate(rep.Items)
	if err != nil {
		return fmt.Errorf("repeat items %q: %w", rep.Items, err)
	}
	items, err := toSlice(itemsVal)
	if err != nil {
		return fmt.Errorf("repeat items %q: %w", rep.Items, err)
	}
	if rep.Where != "" {
		if items, err = filterItems(items, ctx, rep.Var, rep.Where); err != nil {
			return err
		}
	}
	if keys := parseOrderBy(rep.OrderBy, rep.Var); len(keys) > 0 {
		sortItems(items, keys)
	}

	lv := pushLoopVar(ctx, rep.Var, rep.Index)
	defer lv.restore()
	for i, item := range items {
		lv.set(item, i)
		if err := r.renderRow(sess, ctx, row); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *Renderer) renderRow(sess *xlbuild.Session, ctx *renderContext, row *RowTemplate) error {
	var opts []xlbuild.RowOption
	if row.Height > 0 {
		opts = append(opts, xlbuild.WithRowHeight(row.Height))
	}
	if row.Style != "" {
		opts = append(opts, xlbuild.WithRowStyle(row.Style))
	}
	if err := sess.AddRow(opts...); err != nil {
		return err
	}

	next := 0
	for _, c := range row.Cells {
		col := next
		if c.Col != nil {
			col = *c.Col
		}
		next = col + 1
		if err := r.renderCell(sess, ctx, col, c); err != nil {
			return fmt.Errorf("cell %s: %w", xlbuild.ColToName(col), err)
		}
	}
	return nil
}

func (r *Renderer) renderCell(sess *xlbuild.Session, ctx *renderContext, col int, c CellTemplate) error {
	var opts []xlbuild.CellOption
	if c.Style != "" {
		opts = append(opts, xlbuild.WithCellStyle(c.Style))
	}

	if c.Formula != "" {
		if c.Value != nil {
			return fmt.Errorf("cell declares both value and formula")
		}
		text, err := ctx.renderString(c.Formula)
		if err != nil {
			return err
		}
		return sess.SetCell(col, "="+text, opts...)
	}

	switch v := c.Value.(type) {
	case nil:
		return sess.SetCell(col, nil, opts...)
	case string:
		out, err := ctx.renderValue(v)
		if err != nil {
			return err
		}
		return sess.SetCell(col, coerce(out), opts...)
	default:
		return sess.SetCell(col, coerce(v), opts...)
	}
}

// coerce widens numeric types YAML or the evaluator can produce into the
// forms SetCell accepts.
func coerce(v any) any {
	switch n := v.(type) {
	case int8:
		return int(n)
	case int16:
		return int(n)
	case uint:
		return float64(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int64(n)
	case uint64:
		return float64(n)
	}
	return v
}
