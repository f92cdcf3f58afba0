// Package schema implements the lazy, self-describing structural type
// system used to declare query path/search/body/response shapes.
//
// A schema is a small tagged value: primitives are stateless singletons,
// object, entity and extend composites hold their fields behind a one-shot
// thunk so that mutually-referencing entity schemas can be declared in any
// order; record, array and union take their child schemas directly. Reification happens at most once per schema, on
// first touch, mirroring pkg/container's lazy-singleton resolution (resolve
// once, cache forever) — here applied to a schema's field map instead of a
// service instance.
package schema

import (
	"fmt"
	"sync"

	"github.com/shashiranjanraj/qcache/querycache/digest"
)

// Kind tags the structural shape of a Schema.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindConst
	KindEnum
	KindUnion
	KindObject
	KindRecord
	KindArray
	KindFormat
	KindOptional
	KindNullable
	KindEntity
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindConst:
		return "const"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	case KindObject:
		return "object"
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	case KindFormat:
		return "format"
	case KindOptional:
		return "optional"
	case KindNullable:
		return "nullable"
	case KindEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Schema is implemented by every schema value. Composite schemas additionally
// implement Reifier, below.
type Schema interface {
	Kind() Kind
	// TypeString renders the schema the way ValidationError messages do,
	// e.g. `"Active" | "Inactive" | "Pending"` for an enum.
	TypeString() string
}

// Reifier is implemented by schemas whose structure is produced lazily by a
// thunk (object, entity, extend). Reify runs the thunk at
// most once; the error from a failed reification is cached and returned on
// every subsequent call.
type Reifier interface {
	Schema
	Reify() error
	// ShapeKey returns the structural digest, computing it on first call.
	// Reify is always invoked first.
	ShapeKey() (uint32, error)
}

// reifyState is embedded by every lazy composite schema.
type reifyState struct {
	mu   sync.Mutex
	once bool
	err  error

	shapeKeyState shapeKeyState
	shapeKey      uint32
}

type shapeKeyState int

const (
	shapeKeyNotStarted shapeKeyState = iota
	shapeKeyComputing
	shapeKeyDone
)

// runOnce executes fn at most once, caching any error. While fn is running
// (i.e. a mutually-recursive schema calls back into Reify on this same
// schema), runOnce returns nil immediately without re-entering fn — the
// placeholder is simply "already in progress, assume success for now".
func (s *reifyState) runOnce(fn func() error) error {
	s.mu.Lock()
	if s.once {
		err := s.err
		s.mu.Unlock()
		return err
	}
	// Mark as entered before running fn so a recursive call sees `once`
	// already set to the in-progress (not-yet-committed) state.
	s.once = true
	s.mu.Unlock()

	err := fn()

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// computeShapeKeyOnce runs fn to compute this schema's own shape key exactly
// once, short-circuiting recursive re-entry (self-referencing entities) with
// a stable placeholder digest so the overall computation terminates.
func (s *reifyState) computeShapeKeyOnce(placeholder string, fn func() (uint32, error)) (uint32, error) {
	s.mu.Lock()
	switch s.shapeKeyState {
	case shapeKeyDone:
		k := s.shapeKey
		s.mu.Unlock()
		return k, nil
	case shapeKeyComputing:
		s.mu.Unlock()
		return digest.Of("cycle:" + placeholder), nil
	}
	s.shapeKeyState = shapeKeyComputing
	s.mu.Unlock()

	k, err := fn()

	s.mu.Lock()
	if err == nil {
		s.shapeKey = k
		s.shapeKeyState = shapeKeyDone
	} else {
		s.shapeKeyState = shapeKeyNotStarted
	}
	s.mu.Unlock()
	return k, err
}

// ValidationError reports that wire data did not match a schema at a
// required position.
type ValidationError struct {
	Path     string
	Expected string
	Got      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation error at %s: expected %s, got %s", e.Path, e.Expected, e.Got)
}

// InvariantViolationError reports an extension field collision or a
// duplicate case-insensitive enum member — surfaced on first access to the
// offending schema.
type InvariantViolationError struct {
	Message string
}

func (e *InvariantViolationError) Error() string { return e.Message }
