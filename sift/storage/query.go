package storage

import (
	"strings"

	"github.com/siftql/sift/sift/storage/sqlbuilder"
)

// Query accumulates the predicates for one SELECT over a single table.
// Fragments added through And are conjoined; grouped disjunctions and
// relationship constraints arrive as single parenthesized fragments, so the
// clause composes correctly at any nesting level.
type Query struct {
	table string
	alias string
	conds []string
	b     *sqlbuilder.Builder
}

func NewQuery(table, alias string, style sqlbuilder.PlaceholderStyle) *Query {
	return &Query{table: table, alias: alias, b: sqlbuilder.New(style)}
}

func (q *Query) Table() string { return q.table }
func (q *Query) Alias() string { return q.alias }

// Arg binds a value and returns its placeholder.
func (q *Query) Arg(v any) string { return q.b.Arg(v) }

// Args returns the bound arguments in placeholder order.
func (q *Query) Args() []any { return q.b.Args() }

// And appends one conjunctive predicate fragment.
func (q *Query) And(cond string) {
	if cond != "" {
		q.conds = append(q.conds, cond)
	}
}

// WhereSQL renders the WHERE clause, or "" when no predicates were added.
func (q *Query) WhereSQL() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// SelectSQL renders the full SELECT for the given column list.
func (q *Query) SelectSQL(cols string) string {
	return "SELECT " + cols + " FROM " + q.table + " " + q.alias + q.WhereSQL()
}

// CountSQL renders a COUNT(*) form of the query.
func (q *Query) CountSQL() string {
	return q.SelectSQL("COUNT(*)")
}
