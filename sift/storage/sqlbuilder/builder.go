package sqlbuilder

import "strconv"

// PlaceholderStyle selects the parameter syntax of the target backend.
type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota // sqlite: ?
	PlaceholderDollar                           // postgres: $1, $2, ...
)

// Builder allocates placeholders and collects their bound arguments in
// order.
type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0)}
}

// Arg binds a value and returns the placeholder that refers to it.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	switch b.Style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(len(b.args))
	default:
		return "?"
	}
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }
