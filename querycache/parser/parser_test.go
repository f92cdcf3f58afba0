package parser_test

import (
	"context"
	"testing"

	"github.com/shashiranjanraj/qcache/querycache/entity"
	"github.com/shashiranjanraj/qcache/querycache/kv"
	"github.com/shashiranjanraj/qcache/querycache/parser"
	"github.com/shashiranjanraj/qcache/querycache/schema"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

func newTestContext() (*parser.ParseContext, *store.Facade) {
	mem := kv.NewMemStore()
	sf := store.New(mem, mem)
	pc := parser.NewParseContext(entity.New(), parser.NewRegistry(), sf)
	return pc, sf
}

var userSchema = schema.Entity("User", func() schema.Fields {
	return schema.Fields{
		"name": schema.String(),
		"age":  schema.Optional(schema.Number()),
	}
})

func TestParseRequiredFieldMismatchFails(t *testing.T) {
	pc, _ := newTestContext()
	objSchema := schema.Object(func() schema.Fields {
		return schema.Fields{"name": schema.String()}
	})

	_, err := parser.Parse(context.Background(), objSchema, map[string]any{"name": 42.0}, pc)
	if err == nil {
		t.Fatal("expected ValidationError for required field type mismatch")
	}
	if _, ok := err.(*schema.ValidationError); !ok {
		t.Fatalf("expected *schema.ValidationError, got %T", err)
	}
}

func TestParseOptionalFieldMismatchBecomesUndefined(t *testing.T) {
	pc, _ := newTestContext()
	raw := map[string]any{"id": 1.0, "name": "Alice", "age": "not-a-number"}

	v, err := parser.Parse(context.Background(), userSchema, raw, pc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref, ok := v.(parser.EntityRef)
	if !ok {
		t.Fatalf("expected EntityRef, got %T", v)
	}

	key, ok := pc.Registry.Lookup(ref.Key)
	if !ok {
		t.Fatal("expected registry entry for parsed entity")
	}
	rec, ok := pc.Entities.Get(key)
	if !ok {
		t.Fatal("expected entity record to exist")
	}
	if _, hasAge := rec.Fields()["age"]; hasAge {
		t.Fatal("expected optional mismatched field to be omitted (undefined)")
	}
}

func TestParseArrayFiltersFailingElements(t *testing.T) {
	pc, _ := newTestContext()
	arr := schema.Array(schema.Number())

	v, err := parser.Parse(context.Background(), arr, []any{1.0, "bad", 2.0, "also-bad", 3.0}, pc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := v.([]any)
	if !ok {
		t.Fatalf("expected []any, got %T", v)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 surviving elements, got %d: %v", len(out), out)
	}
}

func TestParseEntityNormalizesAndPersists(t *testing.T) {
	pc, sf := newTestContext()
	ctx := context.Background()

	raw := map[string]any{
		"user": map[string]any{"__typename": "User", "id": 1.0, "name": "Alice"},
	}
	respSchema := schema.Object(func() schema.Fields {
		return schema.Fields{"user": userSchema}
	})

	v, err := parser.Parse(ctx, respSchema, raw, pc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := v.(map[string]any)
	ref, ok := m["user"].(parser.EntityRef)
	if !ok {
		t.Fatalf("expected user field to be an EntityRef, got %T", m["user"])
	}

	doc, ok, err := sf.LoadQuery(ctx, ref.Key)
	if err != nil {
		t.Fatalf("LoadQuery: %v", err)
	}
	if !ok {
		t.Fatal("expected entity document to be persisted by the store façade")
	}
	if doc.Value == "" {
		t.Fatal("expected a non-empty persisted entity value")
	}
}

func TestParseUnionDispatchesByTypename(t *testing.T) {
	pc, _ := newTestContext()
	dogSchema := schema.Entity("Dog", func() schema.Fields {
		return schema.Fields{"breed": schema.String()}
	})
	union := schema.Union(map[string]schema.Schema{
		"User": userSchema,
		"Dog":  dogSchema,
	})

	v, err := parser.Parse(context.Background(), union, map[string]any{
		"__typename": "Dog", "id": 5.0, "breed": "Husky",
	}, pc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := v.(parser.EntityRef); !ok {
		t.Fatalf("expected EntityRef from union dispatch, got %T", v)
	}
}

func TestProxyResolvesSharedEntityIdentity(t *testing.T) {
	pc, _ := newTestContext()
	ctx := context.Background()

	respSchema := schema.Object(func() schema.Fields {
		return schema.Fields{"user": userSchema}
	})

	raw1 := map[string]any{"user": map[string]any{"__typename": "User", "id": 1.0, "name": "Alice"}}
	raw2 := map[string]any{"user": map[string]any{"__typename": "User", "id": 1.0, "name": "Alice"}}

	v1, err := parser.Parse(ctx, respSchema, raw1, pc)
	if err != nil {
		t.Fatalf("parse 1: %v", err)
	}
	v2, err := parser.Parse(ctx, respSchema, raw2, pc)
	if err != nil {
		t.Fatalf("parse 2: %v", err)
	}

	ref1 := v1.(map[string]any)["user"].(parser.EntityRef)
	ref2 := v2.(map[string]any)["user"].(parser.EntityRef)

	p1 := parser.Materialize(ref1, pc.Registry, pc.Entities).(*parser.EntityProxy)
	p2 := parser.Materialize(ref2, pc.Registry, pc.Entities).(*parser.EntityProxy)

	if p1.Get("name") != "Alice" || p2.Get("name") != "Alice" {
		t.Fatal("expected both proxies to resolve to Alice")
	}

	// Mutate through the entity map directly (simulating a later
	// observation merging new fields) and confirm both proxies see it.
	key, _ := pc.Registry.Lookup(ref1.Key)
	pc.Entities.Upsert(key, 1, map[string]any{"name": "Alicia"}, nil)

	if p1.Get("name") != "Alicia" || p2.Get("name") != "Alicia" {
		t.Fatal("expected both proxies to observe the merged update (identity invariant)")
	}
}
