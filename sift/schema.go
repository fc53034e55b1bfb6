package sift

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// FieldType specifies the value domain of a filterable field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldBool     FieldType = "bool"
	FieldDate     FieldType = "date"
	FieldID       FieldType = "id"
	FieldRelation FieldType = "relation"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpIs       Operator = "is"
	OpNot      Operator = "not"
	OpBegins   Operator = "begins"
	OpContains Operator = "contains"
	OpEnds     Operator = "ends"
	OpGT       Operator = "gt"
	OpGTE      Operator = "gte"
	OpLT       Operator = "lt"
	OpLTE      Operator = "lte"
)

// ParseOperator maps a wire-format operator name to an Operator.
func ParseOperator(s string) (Operator, bool) {
	switch Operator(s) {
	case OpIs, OpNot, OpBegins, OpContains, OpEnds, OpGT, OpGTE, OpLT, OpLTE:
		return Operator(s), true
	}
	return "", false
}

// Allows reports whether op is valid for fields of this type. Pattern
// operators are string-only; ordered comparisons need an ordered domain;
// relation fields take a nested filter instead of an operator.
func (t FieldType) Allows(op Operator) bool {
	switch t {
	case FieldString:
		switch op {
		case OpIs, OpNot, OpBegins, OpContains, OpEnds:
			return true
		}
	case FieldNumber, FieldDate:
		switch op {
		case OpIs, OpNot, OpGT, OpGTE, OpLT, OpLTE:
			return true
		}
	case FieldBool, FieldID:
		switch op {
		case OpIs, OpNot:
			return true
		}
	}
	return false
}

// Relation points a relation field at another registered resource.
// ForeignKey is the column on the related table referencing this
// resource's key column.
type Relation struct {
	Resource   string `json:"resource"`
	ForeignKey string `json:"foreign_key"`
}

// FieldSpec defines one filterable field.
type FieldSpec struct {
	Type     FieldType `json:"type"`
	Column   string    `json:"column,omitempty"` // defaults to the field name
	Relation *Relation `json:"relation,omitempty"`
}

// Schema defines the filterable surface of one resource. Built once at
// startup and immutable afterwards; safe for concurrent reads.
type Schema struct {
	Resource string               `json:"resource"`
	Table    string               `json:"table"`
	Key      string               `json:"key,omitempty"` // defaults to "id"
	Fields   map[string]FieldSpec `json:"fields"`
}

var validIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the schema in isolation; relation targets are checked
// against the registry in NewRegistry.
func (s Schema) Validate() error {
	if !validIdentRe.MatchString(s.Resource) {
		return SchemaError(fmt.Sprintf("invalid resource name %q", s.Resource))
	}
	if !validIdentRe.MatchString(s.Table) {
		return SchemaError(fmt.Sprintf("resource %s: invalid table name %q", s.Resource, s.Table))
	}
	if !validIdentRe.MatchString(s.Key) {
		return SchemaError(fmt.Sprintf("resource %s: invalid key column %q", s.Resource, s.Key))
	}
	if len(s.Fields) == 0 {
		return SchemaError(fmt.Sprintf("resource %s: schema must have at least one field", s.Resource))
	}

	for name, spec := range s.Fields {
		if !validIdentRe.MatchString(name) {
			return SchemaError(fmt.Sprintf("resource %s: invalid field name %q", s.Resource, name))
		}
		switch spec.Type {
		case FieldString, FieldNumber, FieldBool, FieldDate, FieldID, FieldRelation:
			// valid
		default:
			return SchemaError(fmt.Sprintf("resource %s: unknown field type %q for field %q", s.Resource, spec.Type, name))
		}

		if spec.Type == FieldRelation {
			if spec.Relation == nil {
				return SchemaError(fmt.Sprintf("resource %s: relation field %q needs a relation", s.Resource, name))
			}
			if !validIdentRe.MatchString(spec.Relation.Resource) {
				return SchemaError(fmt.Sprintf("resource %s: field %q: invalid relation resource %q", s.Resource, name, spec.Relation.Resource))
			}
			if !validIdentRe.MatchString(spec.Relation.ForeignKey) {
				return SchemaError(fmt.Sprintf("resource %s: field %q: invalid foreign key %q", s.Resource, name, spec.Relation.ForeignKey))
			}
		} else {
			if spec.Relation != nil {
				return SchemaError(fmt.Sprintf("resource %s: field %q: relation only valid on relation fields", s.Resource, name))
			}
			if !validIdentRe.MatchString(spec.Column) {
				return SchemaError(fmt.Sprintf("resource %s: field %q: invalid column %q", s.Resource, name, spec.Column))
			}
		}
	}

	return nil
}

// Get retrieves a field spec by name.
func (s Schema) Get(name string) (FieldSpec, bool) {
	spec, ok := s.Fields[name]
	return spec, ok
}

// normalize fills in the defaults: key column "id" and per-field columns
// named after the field.
func (s Schema) normalize() Schema {
	if s.Key == "" {
		s.Key = "id"
	}
	fields := make(map[string]FieldSpec, len(s.Fields))
	for name, spec := range s.Fields {
		if spec.Column == "" && spec.Type != FieldRelation {
			spec.Column = name
		}
		fields[name] = spec
	}
	s.Fields = fields
	return s
}

// Registry maps resource names to their schemas. Built once at startup.
type Registry map[string]Schema

// NewRegistry normalizes and validates the given schemas and cross-checks
// every relation field against the set of registered resources.
func NewRegistry(schemas ...Schema) (Registry, error) {
	reg := make(Registry, len(schemas))
	for _, s := range schemas {
		s = s.normalize()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := reg[s.Resource]; dup {
			return nil, SchemaError(fmt.Sprintf("duplicate resource %q", s.Resource))
		}
		reg[s.Resource] = s
	}

	for _, s := range reg {
		for name, spec := range s.Fields {
			if spec.Type != FieldRelation {
				continue
			}
			if _, ok := reg[spec.Relation.Resource]; !ok {
				return nil, SchemaError(fmt.Sprintf("resource %s: field %q references unregistered resource %q",
					s.Resource, name, spec.Relation.Resource))
			}
		}
	}

	return reg, nil
}

// Get retrieves a schema by resource name.
func (r Registry) Get(resource string) (Schema, bool) {
	s, ok := r[resource]
	return s, ok
}

// RegistryFromJSON builds a registry from a JSON array of schemas.
func RegistryFromJSON(b []byte) (Registry, error) {
	var schemas []Schema
	if err := json.Unmarshal(b, &schemas); err != nil {
		return nil, Wrap(ErrSchema, "invalid schema JSON", err)
	}
	return NewRegistry(schemas...)
}
