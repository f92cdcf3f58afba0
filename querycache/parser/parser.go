// Package parser implements the parser/proxy layer: it validates and
// coerces wire JSON against a schema.Schema, extracting entities into the
// Entity Map and Store Façade as it goes, and applies the resilience policy
// (required-field failures propagate, optional/array failures are filtered
// with a warn-log).
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/shashiranjanraj/qcache/pkg/logger"
	"github.com/shashiranjanraj/qcache/querycache/entity"
	"github.com/shashiranjanraj/qcache/querycache/schema"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

// undefinedType is the sentinel an optional field's failed parse produces;
// the enclosing object/array builder omits the key/element entirely rather
// than storing a Go nil.
type undefinedType struct{}

// Undefined marks a field whose value could not be parsed but whose schema
// permitted that (optional; a nullable field's null yields nil instead);
// callers never see this value directly
// since object/array/record builders drop it before returning.
var Undefined = undefinedType{}

// ParseContext carries everything a Parse call needs beyond the schema and
// raw value: where entities land, how to resolve an entity ref placeholder
// back to its (typename,id) later, where to persist normalized documents,
// and the declared methods table per entity typename.
type ParseContext struct {
	Entities *entity.Map
	Registry *Registry
	Store    *store.Facade
	Methods  map[string]map[string]entity.Method

	// Warn receives (path, message) for every resilience fallback; nil
	// routes through pkg/logger instead of silently dropping.
	Warn func(path, message string)
}

// NewParseContext builds a ParseContext wired to the given Entity Map,
// ref registry, and (optional) Store Façade for persistence during parse.
func NewParseContext(entities *entity.Map, registry *Registry, sf *store.Facade) *ParseContext {
	return &ParseContext{
		Entities: entities,
		Registry: registry,
		Store:    sf,
		Methods:  make(map[string]map[string]entity.Method),
	}
}

// RegisterMethods declares the reactive method table for every entity of
// the given typename, bound to new records the next time they are upserted.
func (pc *ParseContext) RegisterMethods(typename string, methods map[string]entity.Method) {
	pc.Methods[typename] = methods
}

func (pc *ParseContext) warnf(path, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if pc.Warn != nil {
		pc.Warn(path, msg)
		return
	}
	logger.Warn("parser: resilience fallback", "path", path, "reason", msg)
}

// Parse validates raw against s, extracting and persisting any entities
// encountered, and returns the normalized value (entities replaced by
// EntityRef placeholders).
func Parse(ctx context.Context, s schema.Schema, raw any, pc *ParseContext) (any, error) {
	return parseValue(ctx, s, raw, true, "$", pc)
}

func parseValue(ctx context.Context, s schema.Schema, raw any, present bool, path string, pc *ParseContext) (any, error) {
	inner, optional, nullable := schema.Unwrap(s)

	if !present {
		raw = nil
	}
	if raw == nil {
		switch {
		case nullable:
			return nil, nil
		case optional:
			pc.warnf(path, "expected %s, got null", inner.TypeString())
			return Undefined, nil
		default:
			return nil, &schema.ValidationError{Path: path, Expected: inner.TypeString(), Got: "null"}
		}
	}

	switch v := inner.(type) {
	case *schema.ExtendSchema:
		if typename := v.Typename(); typename != "" {
			return parseEntity(ctx, v, typename, v.FieldsMap, v, raw, path, pc)
		}
		return parseObjectFields(ctx, v, v.FieldsMap, raw, path, pc)
	case *schema.EntitySchema:
		return parseEntity(ctx, v, v.Typename, v.FieldsMap, v, raw, path, pc)
	case *schema.ObjectSchema:
		return parseObjectFields(ctx, v, v.FieldsMap, raw, path, pc)
	case *schema.ArraySchema:
		return parseArray(ctx, v, raw, path, pc)
	case *schema.RecordSchema:
		return parseRecord(ctx, v, raw, path, pc)
	case *schema.UnionSchema:
		return parseUnion(ctx, v, raw, path, pc)
	case *schema.EnumSchema:
		str, ok := raw.(string)
		if !ok {
			return failOrUndefined(pc, optional, path, v, raw)
		}
		canon, ok := v.Has(str)
		if !ok {
			return failOrUndefined(pc, optional, path, v, raw)
		}
		return canon, nil
	case *schema.ConstSchema:
		if raw != v.Value {
			return failOrUndefined(pc, optional, path, v, raw)
		}
		return raw, nil
	case *schema.FormatSchema:
		str, ok := raw.(string)
		if !ok {
			return failOrUndefined(pc, optional, path, v, raw)
		}
		value, err := parseFormat(v.Of, str)
		if err != nil {
			return failOrUndefined(pc, optional, path, v, raw)
		}
		return value, nil
	default:
		switch inner.Kind() {
		case schema.KindString:
			str, ok := raw.(string)
			if !ok {
				return failOrUndefined(pc, optional, path, inner, raw)
			}
			return str, nil
		case schema.KindNumber:
			num, ok := raw.(float64)
			if !ok {
				return failOrUndefined(pc, optional, path, inner, raw)
			}
			return num, nil
		case schema.KindBool:
			b, ok := raw.(bool)
			if !ok {
				return failOrUndefined(pc, optional, path, inner, raw)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("parser: unsupported schema kind %v at %s", inner.Kind(), path)
		}
	}
}

func failOrUndefined(pc *ParseContext, optional bool, path string, s schema.Schema, raw any) (any, error) {
	if optional {
		pc.warnf(path, "expected %s, got %s", s.TypeString(), goTypeName(raw))
		return Undefined, nil
	}
	return nil, &schema.ValidationError{Path: path, Expected: s.TypeString(), Got: goTypeName(raw)}
}

func parseArray(ctx context.Context, a *schema.ArraySchema, raw any, path string, pc *ParseContext) (any, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, &schema.ValidationError{Path: path, Expected: a.TypeString(), Got: goTypeName(raw)}
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		v, err := parseValue(ctx, a.Element, item, true, fmt.Sprintf("%s[%d]", path, i), pc)
		if err != nil {
			pc.warnf(path, "element at index %d filtered: %v", i, err)
			continue
		}
		if v == any(Undefined) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func parseRecord(ctx context.Context, r *schema.RecordSchema, raw any, path string, pc *ParseContext) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &schema.ValidationError{Path: path, Expected: r.TypeString(), Got: goTypeName(raw)}
	}
	out := make(map[string]any, len(m))
	for key, val := range m {
		v, err := parseValue(ctx, r.Value, val, true, path+"."+key, pc)
		if err != nil {
			pc.warnf(path, "record value %q filtered: %v", key, err)
			continue
		}
		if v == any(Undefined) {
			continue
		}
		out[key] = v
	}
	return out, nil
}

func parseUnion(ctx context.Context, u *schema.UnionSchema, raw any, path string, pc *ParseContext) (any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &schema.ValidationError{Path: path, Expected: u.TypeString(), Got: goTypeName(raw)}
	}
	typename, _ := m["__typename"].(string)
	variant, ok := u.Variant(typename)
	if !ok {
		return nil, &schema.ValidationError{Path: path, Expected: u.TypeString(), Got: typename}
	}
	return parseValue(ctx, variant, raw, true, path, pc)
}

func parseObjectFields(ctx context.Context, reifier schema.Reifier, fieldsFn func() schema.Fields, raw any, path string, pc *ParseContext) (any, error) {
	if err := reifier.Reify(); err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &schema.ValidationError{Path: path, Expected: reifier.TypeString(), Got: goTypeName(raw)}
	}

	fields := fieldsFn()
	out := make(map[string]any, len(fields))
	for name, fieldSchema := range fields {
		fv, present := m[name]
		v, err := parseValue(ctx, fieldSchema, fv, present, path+"."+name, pc)
		if err != nil {
			return nil, err
		}
		if v == any(Undefined) {
			continue
		}
		out[name] = v
	}
	return out, nil
}

// parseEntity handles EntitySchema and entity-rooted ExtendSchema alike:
// reify, require a non-null id, recurse into declared fields (nested
// entities resolve to refs before this entity is itself upserted), then
// upsert into the Entity Map and persist via the Store Façade, returning an
// EntityRef placeholder.
func parseEntity(ctx context.Context, reifier schema.Reifier, typename string, fieldsFn func() schema.Fields, shapeKeyer schema.Reifier, raw any, path string, pc *ParseContext) (any, error) {
	if err := reifier.Reify(); err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &schema.ValidationError{Path: path, Expected: typename, Got: goTypeName(raw)}
	}

	idRaw, hasID := m["id"]
	if !hasID || idRaw == nil {
		return nil, &schema.ValidationError{Path: path + ".id", Expected: "entity id", Got: "missing"}
	}
	id := fmt.Sprint(idRaw)

	fields := fieldsFn()
	parsed := make(map[string]any, len(fields))
	for name, fieldSchema := range fields {
		fv, present := m[name]
		v, err := parseValue(ctx, fieldSchema, fv, present, path+"."+name, pc)
		if err != nil {
			return nil, err
		}
		if v == any(Undefined) {
			continue
		}
		parsed[name] = v
	}

	shapeKey, err := shapeKeyer.ShapeKey()
	if err != nil {
		return nil, err
	}

	key := entity.Key{Typename: typename, ID: id}
	digestKey := store.EntityKey(typename, id, shapeKey)
	refIds := CollectRefs(parsed)

	pc.Entities.Upsert(key, shapeKey, parsed, pc.Methods[typename])
	if pc.Registry != nil {
		pc.Registry.Register(digestKey, key)
	}

	if pc.Store != nil {
		payload, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("parser: marshal entity %s: %w", key, err)
		}
		if err := pc.Store.SaveDocument(ctx, digestKey, string(payload), refIds); err != nil {
			return nil, fmt.Errorf("parser: save entity %s: %w", key, err)
		}
	}

	return EntityRef{Key: digestKey}, nil
}

// CollectRefs walks a normalized value tree and returns the deduplicated
// set of entity keys referenced anywhere within it — the refIds argument
// SaveDocument/SaveQuery need.
func CollectRefs(v any) []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case EntityRef:
			if !seen[t.Key] {
				seen[t.Key] = true
				out = append(out, t.Key)
			}
		case map[string]any:
			for _, vv := range t {
				walk(vv)
			}
		case []any:
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	walk(v)
	return out
}

func goTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	uuidRe  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

func parseFormat(kind schema.FormatKind, raw string) (any, error) {
	switch kind {
	case schema.FormatDate:
		return time.Parse("2006-01-02", raw)
	case schema.FormatDateTime:
		return time.Parse(time.RFC3339, raw)
	case schema.FormatURI:
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, err
		}
		return raw, nil
	case schema.FormatEmail:
		if !emailRe.MatchString(raw) {
			return nil, fmt.Errorf("parser: %q is not a valid email", raw)
		}
		return raw, nil
	case schema.FormatUUID:
		if !uuidRe.MatchString(raw) {
			return nil, fmt.Errorf("parser: %q is not a valid uuid", raw)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("parser: unknown format kind %v", kind)
	}
}
