package schema

// OptionalSchema marks a field as allowed to be absent from the wire
// payload; a failed parse of the inner schema degrades to undefined with a
// warn-log instead of propagating.
type OptionalSchema struct{ Inner Schema }

// Optional wraps inner so the field may be missing from the wire payload.
func Optional(inner Schema) *OptionalSchema { return &OptionalSchema{Inner: inner} }

func (o *OptionalSchema) Kind() Kind      { return KindOptional }
func (o *OptionalSchema) TypeString() string { return o.Inner.TypeString() + " | undefined" }

// NullableSchema marks a field as allowed to be JSON null in addition to the
// inner schema's shape.
type NullableSchema struct{ Inner Schema }

// Nullable wraps inner so the field may be JSON null.
func Nullable(inner Schema) *NullableSchema { return &NullableSchema{Inner: inner} }

func (n *NullableSchema) Kind() Kind      { return KindNullable }
func (n *NullableSchema) TypeString() string { return n.Inner.TypeString() + " | null" }

// Unwrap strips Optional/Nullable wrappers, reporting whether either was
// present, and returns the innermost required schema.
func Unwrap(s Schema) (inner Schema, optional, nullable bool) {
	for {
		switch t := s.(type) {
		case *OptionalSchema:
			optional = true
			s = t.Inner
		case *NullableSchema:
			nullable = true
			s = t.Inner
		default:
			return s, optional, nullable
		}
	}
}
