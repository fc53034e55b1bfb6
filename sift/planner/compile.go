package planner

import (
	"fmt"
	"strings"

	"github.com/siftql/sift/sift"
	"github.com/siftql/sift/sift/filter"
	"github.com/siftql/sift/sift/storage"
)

// Output reports what the compiler added to the query.
type Output struct {
	ExplainSteps []string
}

// Compiler walks a validated filter tree and turns each node into a
// predicate fragment on the query handle.
type Compiler struct {
	reg          sift.Registry
	q            *storage.Query
	aliasCounter int
	explainSteps []string
}

// Compile appends the tree's predicates to q for the named resource. The
// tree is assumed schema-valid and within budget (Build guarantees both), so
// Compile performs no further validation; store errors surface later from
// execution, unwrapped.
func Compile(reg sift.Registry, resource string, tree filter.Node, q *storage.Query) (*Output, error) {
	schema, ok := reg.Get(resource)
	if !ok {
		return nil, sift.SchemaError(fmt.Sprintf("unregistered resource %q", resource))
	}
	c := &Compiler{reg: reg, q: q}
	if err := c.compileRoot(tree, scope{schema: schema, alias: q.Alias()}); err != nil {
		return nil, err
	}
	return &Output{ExplainSteps: c.explainSteps}, nil
}

// scope carries the table alias and schema a node compiles against; it
// changes when the compiler descends into a relation.
type scope struct {
	schema sift.Schema
	alias  string
}

func (c *Compiler) nextAlias() string {
	c.aliasCounter++
	return fmt.Sprintf("t%d", c.aliasCounter)
}

func (c *Compiler) explain(format string, args ...any) {
	c.explainSteps = append(c.explainSteps, fmt.Sprintf(format, args...))
}

// compileRoot flattens a top-level AND into separate conjuncts; an empty one
// contributes nothing, matching everything.
func (c *Compiler) compileRoot(node filter.Node, sc scope) error {
	if g, ok := node.(filter.Group); ok && g.Kind == filter.GroupAnd {
		for _, child := range g.Children {
			frag, err := c.compileNode(child, sc)
			if err != nil {
				return err
			}
			c.q.And(frag)
		}
		return nil
	}
	frag, err := c.compileNode(node, sc)
	if err != nil {
		return err
	}
	c.q.And(frag)
	return nil
}

func (c *Compiler) compileNode(node filter.Node, sc scope) (string, error) {
	switch n := node.(type) {
	case filter.Leaf:
		return c.compileLeaf(n, sc), nil
	case filter.Group:
		return c.compileGroup(n, sc)
	case filter.Rel:
		return c.compileRel(n, sc)
	default:
		return "", fmt.Errorf("unknown filter node type %T", node)
	}
}

func (c *Compiler) compileGroup(g filter.Group, sc scope) (string, error) {
	if len(g.Children) == 0 {
		return "1=1", nil
	}
	parts := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		frag, err := c.compileNode(child, sc)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	sep := " AND "
	if g.Kind == filter.GroupOr {
		sep = " OR "
	}
	c.explain("GROUP %s (%d children)", strings.ToUpper(g.Kind.String()), len(parts))
	// The group is parenthesized as a unit so it composes with sibling
	// predicates at the outer level.
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *Compiler) compileLeaf(leaf filter.Leaf, sc scope) string {
	col := sc.alias + "." + leaf.Column
	c.explain("LEAF %s %s", leaf.Field, leaf.Op)

	switch leaf.Op {
	case sift.OpIs:
		return fmt.Sprintf("%s = %s", col, c.q.Arg(leaf.Value))
	case sift.OpNot:
		return fmt.Sprintf("%s <> %s", col, c.q.Arg(leaf.Value))
	case sift.OpGT:
		return fmt.Sprintf("%s > %s", col, c.q.Arg(leaf.Value))
	case sift.OpGTE:
		return fmt.Sprintf("%s >= %s", col, c.q.Arg(leaf.Value))
	case sift.OpLT:
		return fmt.Sprintf("%s < %s", col, c.q.Arg(leaf.Value))
	case sift.OpLTE:
		return fmt.Sprintf("%s <= %s", col, c.q.Arg(leaf.Value))
	case sift.OpBegins:
		return c.likeFrag(col, escapeLike(foldPattern(leaf.Value))+"%")
	case sift.OpContains:
		return c.likeFrag(col, "%"+escapeLike(foldPattern(leaf.Value))+"%")
	case sift.OpEnds:
		return c.likeFrag(col, "%"+escapeLike(foldPattern(leaf.Value)))
	}
	// Build rejects any other operator.
	return "1=0"
}

// likeFrag folds both sides so pattern matching is case-insensitive on every
// backend; sqlite's LIKE already is, postgres's is not.
func (c *Compiler) likeFrag(col, pattern string) string {
	return fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, col, c.q.Arg(pattern))
}

func foldPattern(v any) string {
	return strings.ToLower(v.(string))
}

func (c *Compiler) compileRel(rel filter.Rel, sc scope) (string, error) {
	child, ok := c.reg.Get(rel.Resource)
	if !ok {
		return "", sift.SchemaError(fmt.Sprintf("unregistered resource %q", rel.Resource))
	}
	sub := c.nextAlias()
	c.explain("EXISTS %s AS %s", child.Table, sub)
	frag, err := c.compileNode(rel.Filter, scope{schema: child, alias: sub})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
		child.Table, sub, sub, rel.ForeignKey, sc.alias, sc.schema.Key, frag), nil
}
