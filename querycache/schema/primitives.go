package schema

import "fmt"

// primitive is the stateless schema for string/number/boolean leaves.
type primitive struct{ kind Kind }

func (p primitive) Kind() Kind { return p.kind }

func (p primitive) TypeString() string {
	return p.kind.String()
}

var (
	stringSchema = primitive{KindString}
	numberSchema = primitive{KindNumber}
	boolSchema   = primitive{KindBool}
)

// String declares a required string field.
func String() Schema { return stringSchema }

// Number declares a required numeric field (Go float64 on the wire).
func Number() Schema { return numberSchema }

// Bool declares a required boolean field.
func Bool() Schema { return boolSchema }

// ConstSchema only accepts one exact literal value.
type ConstSchema struct {
	Value any
}

// Const declares a field that must equal value exactly.
func Const(value any) *ConstSchema { return &ConstSchema{Value: value} }

func (c *ConstSchema) Kind() Kind { return KindConst }

// TypeString renders the literal the way it would appear in JSON.
func (c *ConstSchema) TypeString() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", c.Value)
}
