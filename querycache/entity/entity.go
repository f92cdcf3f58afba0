// Package entity implements the Entity Map: an in-memory identity map from
// (typename, id) to a mutable backing record, giving every proxy over the
// same logical entity reference equality, plus a lazily-built, reactively-
// memoized methods table per entity.
package entity

import (
	"sync"

	"github.com/shashiranjanraj/qcache/querycache/reactive"
)

// Key identifies an entity by its (typename, id) pair.
type Key struct {
	Typename string
	ID       string
}

func (k Key) String() string { return k.Typename + ":" + k.ID }

// Method is a schema-declared entity method: called with the entity's
// current field map and the call's arguments.
type Method func(fields map[string]any, args []any) (any, error)

// Record is the mutable backing object an Entity Map holds per identity. It
// is shared by reference across every proxy that resolves to it.
type Record struct {
	mu       sync.RWMutex
	key      Key
	shapeKey uint32
	fields   map[string]any
	methods  map[string]Method
	calls    *reactive.MethodCache
}

// Fields returns a snapshot copy of the record's current field map.
func (r *Record) Fields() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Merge applies a later observation's fields on top of the existing ones,
// replacing matching keys and adding new ones.
func (r *Record) Merge(fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range fields {
		r.fields[k] = v
	}
}

// Key returns the entity's (typename, id) identity.
func (r *Record) Key() Key { return r.key }

// ShapeKey returns the schema shape key this record was stored under.
func (r *Record) ShapeKey() uint32 { return r.shapeKey }

// Call invokes a declared method by name, memoized per (entity, method name,
// argsKey) via a reactive.MethodCache.
func (r *Record) Call(name string, argsKey string, args []any) (any, error) {
	r.mu.RLock()
	method, ok := r.methods[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownMethodError{Typename: r.key.Typename, Method: name}
	}
	return r.calls.Call(name+"\x1f"+argsKey, func() (any, error) {
		return method(r.Fields(), args)
	})
}

// UnknownMethodError reports a call to a method name the entity's schema
// never declared.
type UnknownMethodError struct {
	Typename string
	Method   string
}

func (e *UnknownMethodError) Error() string {
	return "entity: " + e.Typename + " has no method " + e.Method
}

// Map is the process-lifetime Entity Map: a single live Record per identity.
type Map struct {
	mu      sync.RWMutex
	records map[Key]*Record
	onWrite map[Key][]func()
}

// New creates an empty Entity Map.
func New() *Map {
	return &Map{
		records: make(map[Key]*Record),
		onWrite: make(map[Key][]func()),
	}
}

// Upsert creates the backing record on first observation, or merges fields
// into the existing one, firing any registered invalidation callbacks for
// this key afterward. methods, if non-nil, seeds the record's method table
// on first creation only — later observations never replace an
// already-bound methods table.
func (m *Map) Upsert(key Key, shapeKey uint32, fields map[string]any, methods map[string]Method) *Record {
	m.mu.Lock()
	rec, ok := m.records[key]
	if !ok {
		rec = &Record{
			key:      key,
			shapeKey: shapeKey,
			fields:   make(map[string]any, len(fields)),
			methods:  methods,
			calls:    reactive.NewMethodCache(),
		}
		for k, v := range fields {
			rec.fields[k] = v
		}
		m.records[key] = rec
		callbacks := append([]func(){}, m.onWrite[key]...)
		m.mu.Unlock()
		for _, cb := range callbacks {
			cb()
		}
		return rec
	}
	m.mu.Unlock()

	rec.Merge(fields)
	rec.calls.InvalidateAll()

	m.mu.RLock()
	callbacks := append([]func(){}, m.onWrite[key]...)
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb()
	}
	return rec
}

// Get returns the live record for key, if one exists.
func (m *Map) Get(key Key) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok
}

// Delete removes key's backing record.
func (m *Map) Delete(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
}

// OnInvalidate registers a callback fired every time key's record is
// created or merged — the hook reactive computed/memo nodes use to
// invalidate their own cached results.
func (m *Map) OnInvalidate(key Key, cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite[key] = append(m.onWrite[key], cb)
}

// Len reports the number of live entity records (diagnostic use only).
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
