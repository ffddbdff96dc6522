// Package schema implements the port/schema/chunk data model: the
// typed descriptors that every port declares and every chunk is
// validated against.
package schema

import (
	"fmt"
	"sort"
)

// Kind is the top-level classification of a schema: whether the port
// it describes carries a single latched value or an unbounded sequence
// of chunks.
type Kind string

const (
	KindStreaming Kind = "streaming"
	KindValue     Kind = "value"
)

// Tag is an atomic payload shape.
type Tag string

const (
	TagString  Tag = "string"
	TagInteger Tag = "integer"
	TagFloat   Tag = "float"
	TagBoolean Tag = "boolean"
	TagBytes   Tag = "bytes"
	TagDict    Tag = "dict"
	TagList    Tag = "list"
	TagAny     Tag = "any"
)

var atomicPredicates = map[Tag]func(any) bool{
	TagString:  func(v any) bool { _, ok := v.(string); return ok },
	TagInteger: isInteger,
	TagFloat:   isFloat,
	TagBoolean: func(v any) bool { _, ok := v.(bool); return ok },
	TagBytes:   func(v any) bool { _, ok := v.([]byte); return ok },
	TagDict:    func(v any) bool { _, ok := v.(map[string]any); return ok },
	TagList:    isList,
	TagAny:     func(any) bool { return true },
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

func isList(v any) bool {
	switch v.(type) {
	case []any:
		return true
	}
	// Any other slice type also counts as an ordered sequence.
	return sliceOfSomething(v)
}

func sliceOfSomething(v any) bool {
	switch v.(type) {
	case []string, []int, []float64, []bool, [][]byte, []map[string]any:
		return true
	default:
		return false
	}
}

// Shape describes the payload structure of a schema: either a single
// atomic tag, or an unordered mapping from field name to atomic tag.
type Shape struct {
	Atomic Tag
	Fields map[string]Tag // non-nil iff this is a structured shape
}

// AtomicShape builds a Shape wrapping a single atomic tag.
func AtomicShape(tag Tag) Shape {
	return Shape{Atomic: tag}
}

// StructShape builds a structured Shape from a field-name -> tag map.
func StructShape(fields map[string]Tag) Shape {
	cp := make(map[string]Tag, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Shape{Fields: cp}
}

// IsStruct reports whether s is a structured (field-map) shape.
func (s Shape) IsStruct() bool {
	return s.Fields != nil
}

// Schema is the (kind, shape) pair declared by a port.
type Schema struct {
	Kind  Kind
	Shape Shape
}

// New builds a Schema of the given kind and atomic shape.
func New(kind Kind, tag Tag) Schema {
	return Schema{Kind: kind, Shape: AtomicShape(tag)}
}

// NewStruct builds a Schema of the given kind and structured shape.
func NewStruct(kind Kind, fields map[string]Tag) Schema {
	return Schema{Kind: kind, Shape: StructShape(fields)}
}

// Equal is the schema-equality predicate from the data model: kinds
// must match exactly, and shapes must be structurally equal, with
// TagAny acting as a wildcard against any atomic tag on the other side.
func Equal(a, b Schema) bool {
	if a.Kind != b.Kind {
		return false
	}
	return shapesEqual(a.Shape, b.Shape)
}

func shapesEqual(a, b Shape) bool {
	if a.IsStruct() != b.IsStruct() {
		return false
	}
	if !a.IsStruct() {
		return tagsEqual(a.Atomic, b.Atomic)
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for name, at := range a.Fields {
		bt, ok := b.Fields[name]
		if !ok || !tagsEqual(at, bt) {
			return false
		}
	}
	return true
}

func tagsEqual(a, b Tag) bool {
	if a == TagAny || b == TagAny {
		return true
	}
	return a == b
}

// Validate checks payload against s, returning a descriptive error on
// mismatch. Structured shapes require every declared field to be
// present with a matching tag; extra fields are rejected.
func (s Schema) Validate(payload any) error {
	if !s.Shape.IsStruct() {
		pred, ok := atomicPredicates[s.Shape.Atomic]
		if !ok {
			return fmt.Errorf("schema: unknown atomic tag %q", s.Shape.Atomic)
		}
		if !pred(payload) {
			return fmt.Errorf("schema: payload %v does not match tag %q", payload, s.Shape.Atomic)
		}
		return nil
	}

	dict, ok := payload.(map[string]any)
	if !ok {
		return fmt.Errorf("schema: structured payload must be a map, got %T", payload)
	}
	for name, tag := range s.Shape.Fields {
		v, present := dict[name]
		if !present {
			return fmt.Errorf("schema: missing field %q (expected %q)", name, tag)
		}
		pred, ok := atomicPredicates[tag]
		if !ok {
			return fmt.Errorf("schema: unknown atomic tag %q for field %q", tag, name)
		}
		if !pred(v) {
			return fmt.Errorf("schema: field %q value %v does not match tag %q", name, v, tag)
		}
	}
	for name := range dict {
		if _, declared := s.Shape.Fields[name]; !declared {
			return fmt.Errorf("schema: unexpected field %q", name)
		}
	}
	return nil
}

// String renders a schema for inclusion in error messages — used
// verbatim in schema-mismatch load errors.
func (s Schema) String() string {
	if !s.Shape.IsStruct() {
		return fmt.Sprintf("%s:%s", s.Kind, s.Shape.Atomic)
	}
	names := make([]string, 0, len(s.Shape.Fields))
	for name := range s.Shape.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s:%s", name, s.Shape.Fields[name])
	}
	return fmt.Sprintf("%s:{%v}", s.Kind, parts)
}
