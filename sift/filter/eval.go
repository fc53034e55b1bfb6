package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/siftql/sift/sift"
)

// Match reports whether a decoded record satisfies the filter tree. It is
// the in-memory reference evaluator with the same semantics as the compiled
// SQL: pattern values match literally and case-insensitively, absent or
// mistyped record values never match, and an empty AND group matches
// everything. Relation fields
// read a slice of nested records under the field's name.
func Match(node Node, record map[string]any) bool {
	switch n := node.(type) {
	case Group:
		if n.Kind == GroupOr {
			for _, child := range n.Children {
				if Match(child, record) {
					return true
				}
			}
			return false
		}
		for _, child := range n.Children {
			if !Match(child, record) {
				return false
			}
		}
		return true

	case Leaf:
		return matchLeaf(n, record)

	case Rel:
		for _, rel := range relatedRecords(record[n.Field]) {
			if Match(n.Filter, rel) {
				return true
			}
		}
		return false
	}

	return false
}

func relatedRecords(v any) []map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func matchLeaf(leaf Leaf, record map[string]any) bool {
	raw, ok := record[leaf.Field]
	if !ok || raw == nil {
		return false
	}

	switch leaf.Type {
	case sift.FieldString:
		s, ok := raw.(string)
		if !ok {
			return false
		}
		want := leaf.Value.(string)
		switch leaf.Op {
		case sift.OpIs:
			return s == want
		case sift.OpNot:
			return s != want
		}
		// Pattern operators match case-insensitively, like the compiled LIKE.
		have, pat := strings.ToLower(s), strings.ToLower(want)
		switch leaf.Op {
		case sift.OpBegins:
			return strings.HasPrefix(have, pat)
		case sift.OpContains:
			return strings.Contains(have, pat)
		case sift.OpEnds:
			return strings.HasSuffix(have, pat)
		}

	case sift.FieldNumber:
		have, ok := toFloat(raw)
		if !ok {
			return false
		}
		return compareOrdered(leaf.Op, have, leaf.Value.(float64))

	case sift.FieldDate:
		have, ok := toEpochMS(raw)
		if !ok {
			return false
		}
		return compareOrdered(leaf.Op, float64(have), float64(leaf.Value.(int64)))

	case sift.FieldBool:
		have, ok := toBool(raw)
		if !ok {
			return false
		}
		want := leaf.Value.(bool)
		if leaf.Op == sift.OpNot {
			return have != want
		}
		return have == want

	case sift.FieldID:
		have, want := idString(raw), idString(leaf.Value)
		if leaf.Op == sift.OpNot {
			return have != want
		}
		return have == want
	}

	return false
}

func compareOrdered(op sift.Operator, have, want float64) bool {
	switch op {
	case sift.OpIs:
		return have == want
	case sift.OpNot:
		return have != want
	case sift.OpGT:
		return have > want
	case sift.OpGTE:
		return have >= want
	case sift.OpLT:
		return have < want
	case sift.OpLTE:
		return have <= want
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toEpochMS(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		ms, err := parseDateToEpochMS(x)
		return ms, err == nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		return int64(f), true
	}
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	default:
		// Stores represent booleans as 0/1.
		f, ok := toFloat(v)
		if !ok {
			return false, false
		}
		return f != 0, true
	}
}

// idString folds identifiers to a canonical string so int64(7), float64(7)
// and "7" compare equal.
func idString(v any) string {
	if f, ok := toFloat(v); ok && f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
