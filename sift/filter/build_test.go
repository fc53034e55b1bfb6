package filter

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/siftql/sift/sift"
)

func testRegistry(t *testing.T) sift.Registry {
	t.Helper()
	reg, err := sift.NewRegistry(
		sift.Schema{
			Resource: "people",
			Table:    "people",
			Fields: map[string]sift.FieldSpec{
				"name":    {Type: sift.FieldString},
				"age":     {Type: sift.FieldNumber},
				"active":  {Type: sift.FieldBool},
				"joined":  {Type: sift.FieldDate, Column: "joined_at"},
				"team_id": {Type: sift.FieldID},
				"posts":   {Type: sift.FieldRelation, Relation: &sift.Relation{Resource: "posts", ForeignKey: "person_id"}},
			},
		},
		sift.Schema{
			Resource: "posts",
			Table:    "posts",
			Fields: map[string]sift.FieldSpec{
				"title": {Type: sift.FieldString},
				"stars": {Type: sift.FieldNumber},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", s, err)
	}
	return m
}

func build(t *testing.T, s string, limits sift.Limits) (Node, error) {
	t.Helper()
	return Build(decode(t, s), "people", testRegistry(t), limits)
}

func mustBuild(t *testing.T, s string) Node {
	t.Helper()
	node, err := build(t, s, sift.DefaultLimits())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return node
}

func TestBuildLeaf(t *testing.T) {
	node := mustBuild(t, `{"name":{"value":"john","operator":"begins"}}`)
	leaf, ok := node.(Leaf)
	if !ok {
		t.Fatalf("expected Leaf, got %T", node)
	}
	if leaf.Field != "name" || leaf.Column != "name" || leaf.Op != sift.OpBegins || leaf.Value != "john" {
		t.Errorf("unexpected leaf: %+v", leaf)
	}
}

func TestBuildComposite(t *testing.T) {
	node := mustBuild(t, `{"and":[
		{"name":{"value":"john","operator":"begins"}},
		{"name":{"value":" sm","operator":"contains"}}
	]}`)
	g, ok := node.(Group)
	if !ok {
		t.Fatalf("expected Group, got %T", node)
	}
	if g.Kind != GroupAnd || len(g.Children) != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}
	first := g.Children[0].(Leaf)
	second := g.Children[1].(Leaf)
	if first.Op != sift.OpBegins || second.Op != sift.OpContains {
		t.Error("child order must be preserved")
	}
}

func TestBuildImplicitAnd(t *testing.T) {
	node := mustBuild(t, `{
		"name":{"value":"john","operator":"is"},
		"age":{"value":30,"operator":"gte"}
	}`)
	g, ok := node.(Group)
	if !ok {
		t.Fatalf("expected implicit Group, got %T", node)
	}
	if g.Kind != GroupAnd || len(g.Children) != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}
	// Entries are visited in sorted key order.
	if g.Children[0].(Leaf).Field != "age" || g.Children[1].(Leaf).Field != "name" {
		t.Errorf("expected sorted fields, got %v then %v",
			g.Children[0].(Leaf).Field, g.Children[1].(Leaf).Field)
	}
}

func TestBuildEmptyFilter(t *testing.T) {
	node := mustBuild(t, `{}`)
	g, ok := node.(Group)
	if !ok {
		t.Fatalf("expected Group, got %T", node)
	}
	if g.Kind != GroupAnd || len(g.Children) != 0 {
		t.Errorf("empty input should build an empty AND group, got %+v", g)
	}
}

func TestBuildDuplicateFieldsAtSameLevel(t *testing.T) {
	node := mustBuild(t, `{"and":[
		{"name":{"value":"john","operator":"begins"}},
		{"name":{"value":"th","operator":"ends"}}
	]}`)
	g := node.(Group)
	if len(g.Children) != 2 {
		t.Errorf("duplicate fields in a composite are permitted, got %+v", g)
	}
}

func TestBuildUnknownField(t *testing.T) {
	_, err := build(t, `{"salary":{"value":1,"operator":"is"}}`, sift.DefaultLimits())
	if !sift.IsKind(err, sift.ErrUnknownField) {
		t.Fatalf("expected unknown_field, got %v", err)
	}
	var e *sift.Error
	if ok := errors.As(err, &e); !ok || e.Field != "salary" {
		t.Errorf("error should carry the field name, got %v", err)
	}
}

func TestBuildUnknownOperator(t *testing.T) {
	_, err := build(t, `{"name":{"value":"x","operator":"regex"}}`, sift.DefaultLimits())
	if !sift.IsKind(err, sift.ErrInvalidOperator) {
		t.Errorf("expected invalid_operator, got %v", err)
	}
}

func TestBuildOperatorDomainMismatch(t *testing.T) {
	_, err := build(t, `{"age":{"value":30,"operator":"contains"}}`, sift.DefaultLimits())
	if !sift.IsKind(err, sift.ErrInvalidOperator) {
		t.Errorf("expected invalid_operator, got %v", err)
	}
}

func TestBuildInvalidValue(t *testing.T) {
	_, err := build(t, `{"age":{"value":"thirty","operator":"is"}}`, sift.DefaultLimits())
	if !sift.IsKind(err, sift.ErrInvalidValue) {
		t.Errorf("expected invalid_value, got %v", err)
	}
}

func TestBuildMalformedShapes(t *testing.T) {
	cases := []string{
		`{"name":"john"}`,                      // leaf value is not a mapping
		`{"name":{"operator":"is"}}`,           // missing value
		`{"name":{"value":"x"}}`,               // missing operator
		`{"and":{"name":{"value":"x","operator":"is"}}}`, // composite value not a list
		`{"and":[]}`,                           // composite needs at least one child
		`{"and":["name"]}`,                     // child not a mapping
		`{"and":[{}]}`,                         // empty nested node
	}
	for _, c := range cases {
		if _, err := build(t, c, sift.DefaultLimits()); !sift.IsKind(err, sift.ErrMalformed) {
			t.Errorf("%s: expected malformed, got %v", c, err)
		}
	}
}

func TestBuildDateCoercion(t *testing.T) {
	node := mustBuild(t, `{"joined":{"value":"2024-01-15","operator":"gte"}}`)
	leaf := node.(Leaf)
	ms, ok := leaf.Value.(int64)
	if !ok || ms <= 0 {
		t.Fatalf("expected epoch ms, got %#v", leaf.Value)
	}
	if leaf.Column != "joined_at" {
		t.Errorf("expected schema column joined_at, got %q", leaf.Column)
	}
}

func TestBuildRelation(t *testing.T) {
	node := mustBuild(t, `{"posts":{"title":{"value":"go","operator":"contains"}}}`)
	rel, ok := node.(Rel)
	if !ok {
		t.Fatalf("expected Rel, got %T", node)
	}
	if rel.Resource != "posts" || rel.ForeignKey != "person_id" {
		t.Errorf("unexpected relation: %+v", rel)
	}
	leaf, ok := rel.Filter.(Leaf)
	if !ok || leaf.Field != "title" {
		t.Errorf("unexpected sub-filter: %+v", rel.Filter)
	}
}

// nestedAnd wraps a single leaf in depth-1 layers of {"and":[...]}.
func nestedAnd(depth int) map[string]any {
	node := map[string]any{"name": map[string]any{"value": "x", "operator": "is"}}
	for i := 1; i < depth; i++ {
		node = map[string]any{"and": []any{node}}
	}
	return node
}

func TestBuildDepthBoundary(t *testing.T) {
	reg := testRegistry(t)
	limits := sift.Limits{MaxDepth: 5, MaxNodes: 100}

	if _, err := Build(nestedAnd(5), "people", reg, limits); err != nil {
		t.Fatalf("depth == MaxDepth must build: %v", err)
	}

	_, err := Build(nestedAnd(6), "people", reg, limits)
	if !sift.IsKind(err, sift.ErrLimitExceeded) {
		t.Fatalf("expected limit_exceeded, got %v", err)
	}
	var e *sift.Error
	if ok := errors.As(err, &e); !ok || e.Limit != sift.LimitDepth {
		t.Errorf("expected depth limit, got %+v", e)
	}
	if len(e.Path) == 0 {
		t.Error("limit error should carry the offending path")
	}
}

func wideAnd(leaves int) map[string]any {
	children := make([]any, 0, leaves)
	for i := 0; i < leaves; i++ {
		children = append(children, map[string]any{"name": map[string]any{"value": "x", "operator": "is"}})
	}
	return map[string]any{"and": children}
}

func TestBuildNodeBoundary(t *testing.T) {
	reg := testRegistry(t)
	limits := sift.Limits{MaxDepth: 10, MaxNodes: 10}

	// 1 group + 9 leaves = 10 nodes, exactly the budget.
	if _, err := Build(wideAnd(9), "people", reg, limits); err != nil {
		t.Fatalf("node count == MaxNodes must build: %v", err)
	}

	_, err := Build(wideAnd(10), "people", reg, limits)
	if !sift.IsKind(err, sift.ErrLimitExceeded) {
		t.Fatalf("expected limit_exceeded, got %v", err)
	}
	var e *sift.Error
	if ok := errors.As(err, &e); !ok || e.Limit != sift.LimitNodes {
		t.Errorf("expected node limit, got %+v", e)
	}
}

func TestBuildLimitPath(t *testing.T) {
	reg := testRegistry(t)
	limits := sift.Limits{MaxDepth: 10, MaxNodes: 2}

	_, err := Build(decode(t, `{"and":[
		{"name":{"value":"a","operator":"is"}},
		{"age":{"value":1,"operator":"is"}}
	]}`), "people", reg, limits)
	var e *sift.Error
	if ok := errors.As(err, &e); !ok || e.Kind != sift.ErrLimitExceeded {
		t.Fatalf("expected limit_exceeded, got %v", err)
	}
	if !reflect.DeepEqual(e.Path, []string{"and", "age"}) {
		t.Errorf("expected path [and age], got %v", e.Path)
	}
}

func TestBuildRelationSharesBudget(t *testing.T) {
	reg := testRegistry(t)
	limits := sift.Limits{MaxDepth: 2, MaxNodes: 100}

	// posts (depth 1) -> title (depth 2) fits; one more level does not.
	if _, err := Build(decode(t, `{"posts":{"title":{"value":"x","operator":"is"}}}`), "people", reg, limits); err != nil {
		t.Fatalf("relation leaf within depth budget: %v", err)
	}
	_, err := Build(decode(t, `{"posts":{"and":[{"title":{"value":"x","operator":"is"}}]}}`), "people", reg, limits)
	if !sift.IsKind(err, sift.ErrLimitExceeded) {
		t.Errorf("expected limit_exceeded across the relation boundary, got %v", err)
	}
}
