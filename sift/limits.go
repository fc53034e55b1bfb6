package sift

// Default budgets for a single filter build.
const (
	DefaultMaxDepth = 10
	DefaultMaxNodes = 100
)

// Limits bounds the structural complexity of a filter tree. A zero or
// negative budget disables that check.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

func DefaultLimits() Limits {
	return Limits{MaxDepth: DefaultMaxDepth, MaxNodes: DefaultMaxNodes}
}

// LimitKind identifies which budget a filter exceeded.
type LimitKind string

const (
	LimitDepth LimitKind = "depth"
	LimitNodes LimitKind = "nodes"
)

// Check reports the first exceeded budget for a tree of the given depth and
// node count. The builder calls it at every node it constructs.
func (l Limits) Check(depth, nodes int) (LimitKind, bool) {
	if l.MaxDepth > 0 && depth > l.MaxDepth {
		return LimitDepth, true
	}
	if l.MaxNodes > 0 && nodes > l.MaxNodes {
		return LimitNodes, true
	}
	return "", false
}
