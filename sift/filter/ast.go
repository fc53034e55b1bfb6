package filter

import "github.com/siftql/sift/sift"

// Node is the recursive unit of a filter tree.
type Node interface {
	isNode()
}

// GroupKind is the boolean combinator of a Group.
type GroupKind int

const (
	GroupAnd GroupKind = iota
	GroupOr
)

func (k GroupKind) String() string {
	if k == GroupOr {
		return "or"
	}
	return "and"
}

// Leaf is a single field comparison. Value has already been coerced to the
// field's domain: string, float64, bool, or int64 (dates and integral ids).
type Leaf struct {
	Field  string
	Column string
	Type   sift.FieldType
	Op     sift.Operator
	Value  any
}

func (Leaf) isNode() {}

// Group combines child nodes with AND or OR. Child order is preserved so
// compiled output is deterministic.
type Group struct {
	Kind     GroupKind
	Children []Node
}

func (Group) isNode() {}

// Rel constrains a related resource: the node matches when some related row
// satisfies Filter. ForeignKey is the related table's column referencing the
// parent resource's key.
type Rel struct {
	Field      string
	Resource   string
	ForeignKey string
	Filter     Node
}

func (Rel) isNode() {}
