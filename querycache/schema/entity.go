package schema

import "fmt"

// EntitySchema declares a normalizable entity: a record identified by the
// pair (__typename, id) that is extracted into the Entity Map during
// parsing and replaced by a reference placeholder everywhere else it
// appears.
type EntitySchema struct {
	reifyState
	Typename string
	thunk    Thunk
	fields   Fields
}

// Entity declares a lazily-reified entity schema. __typename and id are
// implicit and must not be redeclared by thunk; doing so raises the same
// "Cannot extend" InvariantViolation as extend collisions, since an
// entity's base fields behave like an implicit first extension layer.
func Entity(typename string, thunk Thunk) *EntitySchema {
	return &EntitySchema{Typename: typename, thunk: thunk}
}

func (e *EntitySchema) Kind() Kind { return KindEntity }

func (e *EntitySchema) Reify() error {
	return e.runOnce(func() error {
		fields := e.thunk()
		for _, reserved := range []string{"__typename", "id"} {
			if _, collides := fields[reserved]; collides {
				return &InvariantViolationError{
					Message: fmt.Sprintf("Cannot extend: field '%s' already exists", reserved),
				}
			}
		}
		e.fields = fields
		return nil
	})
}

// FieldsMap returns the reified declared fields (excluding __typename/id,
// which are implicit on every entity). Reify must have succeeded first.
func (e *EntitySchema) FieldsMap() Fields { return e.fields }

func (e *EntitySchema) ShapeKey() (uint32, error) {
	if err := e.Reify(); err != nil {
		return 0, err
	}
	return e.computeShapeKeyOnce("entity:"+e.Typename, func() (uint32, error) {
		return shapeKeyOfFields("entity:"+e.Typename, e.fields)
	})
}

func (e *EntitySchema) TypeString() string {
	_ = e.Reify()
	return e.Typename
}

// Extend produces a new schema carrying parent's fields plus the fields
// produced by thunk. Any collision — including with __typename/id — raises
// "Cannot extend: field 'X' already exists" on reification.
func Extend(parent Reifier, thunk Thunk) *ExtendSchema {
	return &ExtendSchema{parent: parent, thunk: thunk}
}

// ExtendSchema is the result of schema.Extend: parent's fields plus new ones.
type ExtendSchema struct {
	reifyState
	parent Reifier
	thunk  Thunk
	fields Fields
}

func (x *ExtendSchema) Kind() Kind { return x.parent.Kind() }

func (x *ExtendSchema) Reify() error {
	return x.runOnce(func() error {
		if err := x.parent.Reify(); err != nil {
			return err
		}

		parentFields := parentFieldsOf(x.parent)
		merged := make(Fields, len(parentFields))
		for k, v := range parentFields {
			merged[k] = v
		}

		for name, s := range x.thunk() {
			if _, collides := merged[name]; collides {
				return &InvariantViolationError{
					Message: fmt.Sprintf("Cannot extend: field '%s' already exists", name),
				}
			}
			merged[name] = s
		}
		x.fields = merged
		return nil
	})
}

func (x *ExtendSchema) FieldsMap() Fields { return x.fields }

func (x *ExtendSchema) ShapeKey() (uint32, error) {
	if err := x.Reify(); err != nil {
		return 0, err
	}
	tag := "extend:" + x.Kind().String()
	if ent, ok := x.parent.(*EntitySchema); ok {
		tag = "entity:" + ent.Typename
	}
	return x.computeShapeKeyOnce(tag, func() (uint32, error) {
		return shapeKeyOfFields(tag, x.fields)
	})
}

func (x *ExtendSchema) TypeString() string {
	_ = x.Reify()
	return describeFields(x.fields)
}

// Typename exposes the extended entity's typename when the parent chain
// bottoms out at an EntitySchema; "" for a plain object extension.
func (x *ExtendSchema) Typename() string {
	if ent, ok := x.parent.(*EntitySchema); ok {
		return ent.Typename
	}
	if parentExt, ok := x.parent.(*ExtendSchema); ok {
		return parentExt.Typename()
	}
	return ""
}

func parentFieldsOf(parent Reifier) Fields {
	switch p := parent.(type) {
	case *EntitySchema:
		return p.FieldsMap()
	case *ObjectSchema:
		return p.FieldsMap()
	case *ExtendSchema:
		return p.FieldsMap()
	default:
		return nil
	}
}
