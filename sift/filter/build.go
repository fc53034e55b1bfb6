package filter

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/siftql/sift/sift"
)

// Build parses a decoded JSON filter mapping into a validated tree for the
// named resource. Shapes:
//
//	{"and"|"or": [ <node>, ... ]}               composite, at least one child
//	{"<field>": {"value": v, "operator": op}}   leaf comparison
//	{"<relation field>": { ... }}               nested filter on the related resource
//
// A mapping with several keys is an implicit AND over its entries, visited
// in sorted key order so trees are deterministic. An empty top-level mapping
// builds an empty AND group, which matches everything. Depth and node
// budgets are enforced while parsing; the first violation aborts the build.
func Build(raw map[string]any, resource string, reg sift.Registry, limits sift.Limits) (Node, error) {
	schema, ok := reg.Get(resource)
	if !ok {
		return nil, sift.SchemaError(fmt.Sprintf("unregistered resource %q", resource))
	}
	b := &builder{reg: reg, limits: limits}
	return b.buildMap(raw, schema, 1)
}

// builder threads the shared node counter and current path through the
// recursive descent. One builder per Build call; never shared.
type builder struct {
	reg    sift.Registry
	limits sift.Limits
	nodes  int
	path   []string
}

// enter accounts for one constructed node and checks both budgets.
func (b *builder) enter(name string, depth int) error {
	b.path = append(b.path, name)
	b.nodes++
	if kind, exceeded := b.limits.Check(depth, b.nodes); exceeded {
		return b.limitError(kind)
	}
	return nil
}

func (b *builder) leave() {
	b.path = b.path[:len(b.path)-1]
}

func (b *builder) limitError(kind sift.LimitKind) error {
	var msg string
	switch kind {
	case sift.LimitDepth:
		msg = fmt.Sprintf("filter depth exceeds %d", b.limits.MaxDepth)
	case sift.LimitNodes:
		msg = fmt.Sprintf("filter node count exceeds %d", b.limits.MaxNodes)
	}
	return &sift.Error{
		Kind:    sift.ErrLimitExceeded,
		Message: msg,
		Limit:   kind,
		Path:    append([]string(nil), b.path...),
	}
}

func (b *builder) buildMap(raw map[string]any, schema sift.Schema, depth int) (Node, error) {
	switch len(raw) {
	case 0:
		if depth > 1 {
			return nil, sift.MalformedError("empty filter node")
		}
		if err := b.enter("and", depth); err != nil {
			return nil, err
		}
		b.leave()
		return Group{Kind: GroupAnd}, nil
	case 1:
		for key, val := range raw {
			return b.buildEntry(key, val, schema, depth)
		}
	}

	// Implicit AND over the entries.
	if err := b.enter("and", depth); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	children := make([]Node, 0, len(keys))
	for _, key := range keys {
		child, err := b.buildEntry(key, raw[key], schema, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	b.leave()
	return Group{Kind: GroupAnd, Children: children}, nil
}

func (b *builder) buildEntry(key string, val any, schema sift.Schema, depth int) (Node, error) {
	switch key {
	case "and":
		return b.buildGroup(GroupAnd, val, schema, depth)
	case "or":
		return b.buildGroup(GroupOr, val, schema, depth)
	}

	spec, ok := schema.Get(key)
	if !ok {
		return nil, sift.UnknownFieldError(key)
	}
	if spec.Type == sift.FieldRelation {
		return b.buildRel(key, spec, val, depth)
	}
	return b.buildLeaf(key, spec, val, depth)
}

func (b *builder) buildGroup(kind GroupKind, val any, schema sift.Schema, depth int) (Node, error) {
	if err := b.enter(kind.String(), depth); err != nil {
		return nil, err
	}
	items, ok := val.([]any)
	if !ok {
		return nil, sift.MalformedError(fmt.Sprintf("%q expects a list of filter nodes", kind))
	}
	if len(items) == 0 {
		return nil, sift.MalformedError(fmt.Sprintf("%q requires at least one child", kind))
	}
	children := make([]Node, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, sift.MalformedError(fmt.Sprintf("%q children must be mappings", kind))
		}
		child, err := b.buildMap(m, schema, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	b.leave()
	return Group{Kind: kind, Children: children}, nil
}

func (b *builder) buildLeaf(field string, spec sift.FieldSpec, val any, depth int) (Node, error) {
	if err := b.enter(field, depth); err != nil {
		return nil, err
	}
	m, ok := val.(map[string]any)
	if !ok {
		return nil, sift.MalformedError(fmt.Sprintf("field %q expects {value, operator}", field))
	}

	rawOp, ok := m["operator"]
	if !ok {
		return nil, &sift.Error{Kind: sift.ErrMalformed, Message: "missing operator", Field: field}
	}
	opName, ok := rawOp.(string)
	if !ok {
		return nil, &sift.Error{Kind: sift.ErrMalformed, Message: "operator must be a string", Field: field}
	}
	op, ok := sift.ParseOperator(opName)
	if !ok {
		return nil, sift.InvalidOperatorError(field, fmt.Sprintf("unknown operator %q", opName))
	}
	if !spec.Type.Allows(op) {
		return nil, sift.InvalidOperatorError(field, fmt.Sprintf("operator %q not valid for %s fields", op, spec.Type))
	}

	rawVal, ok := m["value"]
	if !ok {
		return nil, &sift.Error{Kind: sift.ErrMalformed, Message: "missing value", Field: field}
	}
	value, err := coerceValue(spec.Type, rawVal)
	if err != nil {
		return nil, sift.InvalidValueError(field, err.Error())
	}

	b.leave()
	return Leaf{Field: field, Column: spec.Column, Type: spec.Type, Op: op, Value: value}, nil
}

func (b *builder) buildRel(field string, spec sift.FieldSpec, val any, depth int) (Node, error) {
	if err := b.enter(field, depth); err != nil {
		return nil, err
	}
	m, ok := val.(map[string]any)
	if !ok {
		return nil, sift.MalformedError(fmt.Sprintf("relation field %q expects a nested filter", field))
	}
	child, ok := b.reg.Get(spec.Relation.Resource)
	if !ok {
		return nil, sift.SchemaError(fmt.Sprintf("relation field %q references unregistered resource %q", field, spec.Relation.Resource))
	}
	sub, err := b.buildMap(m, child, depth+1)
	if err != nil {
		return nil, err
	}
	b.leave()
	return Rel{Field: field, Resource: child.Resource, ForeignKey: spec.Relation.ForeignKey, Filter: sub}, nil
}

// coerceValue converts a decoded JSON value into the field domain's
// in-memory representation.
func coerceValue(t sift.FieldType, v any) (any, error) {
	switch t {
	case sift.FieldString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		return s, nil

	case sift.FieldNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected a number, got %T", v)

	case sift.FieldBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if x == "true" {
				return true, nil
			}
			if x == "false" {
				return false, nil
			}
		}
		return nil, fmt.Errorf("expected a boolean, got %v", v)

	case sift.FieldDate:
		switch x := v.(type) {
		case string:
			return parseDateToEpochMS(x)
		case float64:
			return int64(x), nil
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		}
		return nil, fmt.Errorf("expected a date, got %T", v)

	case sift.FieldID:
		switch x := v.(type) {
		case string:
			if x == "" {
				return nil, fmt.Errorf("identifier cannot be empty")
			}
			return x, nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("identifier must be integral, got %v", x)
			}
			return int64(x), nil
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		}
		return nil, fmt.Errorf("expected an identifier, got %T", v)
	}

	return nil, fmt.Errorf("unsupported field type %q", t)
}

// parseDateToEpochMS parses a date string to epoch milliseconds.
func parseDateToEpochMS(s string) (int64, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid date format: %s", s)
}
