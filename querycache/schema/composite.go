package schema

import (
	"sort"
	"strings"
)

// Fields is the field map produced by an object/entity/extend's reification
// thunk: field name -> schema (wrap with Optional/Nullable as needed).
type Fields map[string]Schema

// Thunk produces a composite schema's fields. It runs at most once.
type Thunk func() Fields

// ObjectSchema is a plain structural object (no identity, no union dispatch).
type ObjectSchema struct {
	reifyState
	thunk  Thunk
	fields Fields
}

// Object declares a lazily-reified plain object schema.
func Object(thunk Thunk) *ObjectSchema {
	return &ObjectSchema{thunk: thunk}
}

func (o *ObjectSchema) Kind() Kind { return KindObject }

func (o *ObjectSchema) Reify() error {
	return o.runOnce(func() error {
		o.fields = o.thunk()
		return nil
	})
}

// FieldsMap returns the reified field map. Reify must have succeeded first.
func (o *ObjectSchema) FieldsMap() Fields { return o.fields }

func (o *ObjectSchema) ShapeKey() (uint32, error) {
	if err := o.Reify(); err != nil {
		return 0, err
	}
	return o.computeShapeKeyOnce("object", func() (uint32, error) {
		return shapeKeyOfFields("object", o.fields)
	})
}

func (o *ObjectSchema) TypeString() string {
	_ = o.Reify()
	return describeFields(o.fields)
}

// RecordSchema is a map[string]ValueSchema — arbitrary keys, uniform value shape.
type RecordSchema struct {
	Value Schema
}

// Record declares a schema for an object whose keys are arbitrary strings
// and whose values all conform to valueSchema.
func Record(valueSchema Schema) *RecordSchema { return &RecordSchema{Value: valueSchema} }

func (r *RecordSchema) Kind() Kind      { return KindRecord }
func (r *RecordSchema) TypeString() string { return "Record<string, " + r.Value.TypeString() + ">" }

// ArraySchema validates a JSON array; on parse, failing elements are
// filtered rather than failing the whole array.
type ArraySchema struct {
	Element Schema
}

// Array declares an array-of-element schema.
func Array(element Schema) *ArraySchema { return &ArraySchema{Element: element} }

func (a *ArraySchema) Kind() Kind      { return KindArray }
func (a *ArraySchema) TypeString() string { return a.Element.TypeString() + "[]" }

// ---- shared helpers for composite shape keys / descriptions ----

// shapeKeyOfFields digests (tag, sorted field names, each field's shape
// description) — this is the canonical structural description a shape key
// must be stable over, and changes whenever a field is added, removed, or
// retyped.
func shapeKeyOfFields(tag string, fields Fields) (uint32, error) {
	names := sortedFieldNames(fields)

	parts := []string{tag}
	for _, name := range names {
		fieldDigest, err := fieldShapeDescriptor(fields[name])
		if err != nil {
			return 0, err
		}
		parts = append(parts, name, fieldDigest)
	}
	return digestParts(parts), nil
}

// fieldShapeDescriptor returns a stable structural description of a single
// field's schema, recursing into child shape keys for composite schemas.
func fieldShapeDescriptor(s Schema) (string, error) {
	inner, optional, nullable := Unwrap(s)

	desc := inner.Kind().String()
	if r, ok := inner.(Reifier); ok {
		key, err := r.ShapeKey()
		if err != nil {
			return "", err
		}
		desc = desc + ":" + uint32ToHex(key)
	} else if arr, ok := inner.(*ArraySchema); ok {
		elemDesc, err := fieldShapeDescriptor(arr.Element)
		if err != nil {
			return "", err
		}
		desc = "array:" + elemDesc
	} else if rec, ok := inner.(*RecordSchema); ok {
		valDesc, err := fieldShapeDescriptor(rec.Value)
		if err != nil {
			return "", err
		}
		desc = "record:" + valDesc
	} else if e, ok := inner.(*EnumSchema); ok {
		desc = "enum:" + strings.Join(e.Members(), ",")
	} else if c, ok := inner.(*ConstSchema); ok {
		desc = "const:" + c.TypeString()
	} else if f, ok := inner.(*FormatSchema); ok {
		desc = "format:" + f.Of.String()
	}

	if optional {
		desc += "?"
	}
	if nullable {
		desc += "|null"
	}
	return desc, nil
}

func sortedFieldNames(fields Fields) []string {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func describeFields(fields Fields) string {
	names := sortedFieldNames(fields)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + fields[n].TypeString()
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}
