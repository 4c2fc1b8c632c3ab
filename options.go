package xlbuild

// Options holds session configuration.
type Options struct {
	props           Properties
	catalog         *Catalog
	strictRanges    bool
	strictFunctions bool
}

func defaultOptions() *Options {
	return &Options{
		catalog: DefaultCatalog(),
	}
}

// Option configures a Session.
type Option func(*Options)

// WithProperties sets the workbook document properties. Zero-value fields
// are defaulted at Build.
func WithProperties(p Properties) Option {
	return func(o *Options) { o.props = p }
}

// WithTitle sets just the workbook title.
func WithTitle(title string) Option {
	return func(o *Options) { o.props.Title = title }
}

// WithAuthor sets just the workbook author.
func WithAuthor(author string) Option {
	return func(o *Options) { o.props.Author = author }
}

// WithCatalog replaces the function catalog (default: DefaultCatalog).
func WithCatalog(c *Catalog) Option {
	return func(o *Options) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithStrictRanges rejects single-cell named ranges like "B2:B2" (default:
// they are allowed).
func WithStrictRanges(strict bool) Option {
	return func(o *Options) { o.strictRanges = strict }
}

// WithStrictFunctions rejects built formulas whose function name is absent
// from the catalog (default: unknown names pass through unvalidated).
func WithStrictFunctions(strict bool) Option {
	return func(o *Options) { o.strictFunctions = strict }
}

type rowConfig struct {
	height float64
	style  string
}

// RowOption configures one added row.
type RowOption func(*rowConfig)

// WithRowHeight sets the row height in points.
func WithRowHeight(points float64) RowOption {
	return func(c *rowConfig) { c.height = points }
}

// WithRowStyle sets the row's style name.
func WithRowStyle(name string) RowOption {
	return func(c *rowConfig) { c.style = name }
}

type cellConfig struct {
	style string
}

// CellOption configures one written cell.
type CellOption func(*cellConfig)

// WithCellStyle sets the cell's style name.
func WithCellStyle(name string) CellOption {
	return func(c *cellConfig) { c.style = name }
}

type colConfig struct {
	width float64
	style string
}

// ColOption configures one column.
type ColOption func(*colConfig)

// WithColWidth sets the column width in character units.
func WithColWidth(width float64) ColOption {
	return func(c *colConfig) { c.width = width }
}

// WithColStyle sets the column's style name.
func WithColStyle(name string) ColOption {
	return func(c *colConfig) { c.style = name }
}
