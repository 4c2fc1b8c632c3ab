package xlbuild

// Hyperlink is a cell value carrying a clickable link along with its
// display text. SetCell accepts it like any scalar; the writer emits the
// display text and attaches the link to the cell. Template expressions
// build one with hyperlink(url, display).
type Hyperlink struct {
	URL     string
	Display string
}

// String returns the display text, falling back to the URL.
func (h Hyperlink) String() string {
	if h.Display != "" {
		return h.Display
	}
	return h.URL
}
