package parser

import (
	"sync"

	"github.com/shashiranjanraj/qcache/querycache/entity"
)

// EntityRef is the normalized-form placeholder for an entity reference. It
// is never surfaced to callers through a Proxy — Materialize always
// resolves it to an EntityProxy first.
type EntityRef struct {
	Key uint32
}

// MarshalJSON renders the placeholder as `{"__entityRef": N}`, so a saved
// document's JSON is interchangeable with hand-written fixtures.
func (r EntityRef) MarshalJSON() ([]byte, error) {
	return []byte(`{"__entityRef":` + uitoa(r.Key) + `}`), nil
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// entityRefKey reports whether v is a decoded `{"__entityRef": N}` map, as
// it appears after json.Unmarshal-ing a document loaded back from the KV
// store (where it is plain JSON, not a live EntityRef value).
func entityRefKey(v any) (uint32, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return 0, false
	}
	raw, ok := m["__entityRef"]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return uint32(n), true
	case uint32:
		return n, true
	}
	return 0, false
}

// IsEntityRef reports whether v is an entity reference placeholder — either
// a live EntityRef value, or its decoded `{"__entityRef": N}` JSON form —
// and if so returns its digest key. Exposed for callers outside this
// package (the query package's cache-load corruption check) that need to
// detect refs without re-walking via Materialize.
func IsEntityRef(v any) (uint32, bool) {
	if ref, ok := v.(EntityRef); ok {
		return ref.Key, true
	}
	return entityRefKey(v)
}

// Registry maps an entity's digest key (as embedded in EntityRef/refIds)
// back to its (typename, id) identity, so a normalized value loaded from
// storage can be re-joined against the live Entity Map without re-parsing
// wire JSON. Entries are populated as entities are parsed; it is process-
// lifetime like the Entity Map itself.
type Registry struct {
	mu       sync.RWMutex
	byDigest map[uint32]entity.Key
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byDigest: make(map[uint32]entity.Key)}
}

// Register records that digestKey identifies key.
func (r *Registry) Register(digestKey uint32, key entity.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDigest[digestKey] = key
}

// Lookup resolves a digest key to its (typename, id) identity.
func (r *Registry) Lookup(digestKey uint32) (entity.Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byDigest[digestKey]
	return key, ok
}

// Materialize walks a normalized value (maps/slices/primitives, with entity
// refs either as live EntityRef values or as decoded `{"__entityRef":N}`
// maps) and replaces every entity reference with a live EntityProxy that
// transparently resolves through reg and entities, materializing stored
// records back into live proxies that transparently resolve
// nested references.
func Materialize(v any, reg *Registry, entities *entity.Map) any {
	switch t := v.(type) {
	case EntityRef:
		return resolveRef(t.Key, reg, entities)
	case map[string]any:
		if k, ok := entityRefKey(t); ok {
			return resolveRef(k, reg, entities)
		}
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Materialize(vv, reg, entities)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Materialize(vv, reg, entities)
		}
		return out
	default:
		return v
	}
}

func resolveRef(digestKey uint32, reg *Registry, entities *entity.Map) any {
	key, ok := reg.Lookup(digestKey)
	if !ok {
		return nil
	}
	rec, ok := entities.Get(key)
	if !ok {
		return nil
	}
	return &EntityProxy{record: rec, reg: reg, entities: entities}
}

// EntityProxy is a live view over an entity.Record: field access resolves
// nested entity refs on demand against the same Entity Map, so two proxies
// reached via different queries share the same underlying record and
// observe the same in-place updates.
type EntityProxy struct {
	record   *entity.Record
	reg      *Registry
	entities *entity.Map
}

// Typename returns the proxied entity's `__typename`.
func (p *EntityProxy) Typename() string { return p.record.Key().Typename }

// ID returns the proxied entity's id.
func (p *EntityProxy) ID() string { return p.record.Key().ID }

// Get resolves a single declared field, materializing any nested entity
// reference into its own live proxy.
func (p *EntityProxy) Get(field string) any {
	fields := p.record.Fields()
	v, ok := fields[field]
	if !ok {
		return nil
	}
	return Materialize(v, p.reg, p.entities)
}

// Fields materializes every declared field at once.
func (p *EntityProxy) Fields() map[string]any {
	raw := p.record.Fields()
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = Materialize(v, p.reg, p.entities)
	}
	return out
}

// Call invokes a declared, reactively-memoized method.
func (p *EntityProxy) Call(method string, argsKey string, args []any) (any, error) {
	return p.record.Call(method, argsKey, args)
}

// Clone recursively deep-clones a materialized value tree — plain maps,
// slices, and entity proxies are all copied into fresh containers — so
// external code relying on structural reference-equality for memoization
// observes a distinct object on every update. time.Time values are
// immutable and returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case *EntityProxy:
		out := make(map[string]any, 8)
		for k, fv := range t.Fields() {
			out[k] = Clone(fv)
		}
		out["__typename"] = t.Typename()
		out["id"] = t.ID()
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	default:
		return v
	}
}
