package entity_test

import (
	"testing"

	"github.com/shashiranjanraj/qcache/querycache/entity"
)

func TestUpsertCreatesThenMerges(t *testing.T) {
	m := entity.New()
	key := entity.Key{Typename: "User", ID: "1"}

	rec1 := m.Upsert(key, 1, map[string]any{"name": "Alice", "age": 30}, nil)
	rec2 := m.Upsert(key, 1, map[string]any{"age": 31}, nil)

	if rec1 != rec2 {
		t.Fatal("expected the same backing record across observations (identity invariant)")
	}
	fields := rec2.Fields()
	if fields["name"] != "Alice" || fields["age"] != 31 {
		t.Fatalf("expected merged fields, got %+v", fields)
	}
}

func TestDistinctIdentitiesGetDistinctRecords(t *testing.T) {
	m := entity.New()
	a := m.Upsert(entity.Key{Typename: "User", ID: "1"}, 1, map[string]any{"name": "Alice"}, nil)
	b := m.Upsert(entity.Key{Typename: "User", ID: "2"}, 1, map[string]any{"name": "Bob"}, nil)
	if a == b {
		t.Fatal("expected distinct records for distinct ids")
	}
}

func TestInvalidateCallbackFiresOnUpsert(t *testing.T) {
	m := entity.New()
	key := entity.Key{Typename: "User", ID: "1"}
	fired := 0
	m.OnInvalidate(key, func() { fired++ })

	m.Upsert(key, 1, map[string]any{"name": "Alice"}, nil)
	m.Upsert(key, 1, map[string]any{"name": "Alicia"}, nil)

	if fired != 2 {
		t.Fatalf("expected 2 invalidation callbacks (create + merge), got %d", fired)
	}
}

func TestCallMemoizesByArgsKey(t *testing.T) {
	m := entity.New()
	key := entity.Key{Typename: "User", ID: "1"}
	calls := 0
	methods := map[string]entity.Method{
		"fullName": func(fields map[string]any, args []any) (any, error) {
			calls++
			return fields["name"].(string) + " Doe", nil
		},
	}
	rec := m.Upsert(key, 1, map[string]any{"name": "Alice"}, methods)

	v1, err := rec.Call("fullName", "", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	v2, err := rec.Call("fullName", "", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v1 != v2 || calls != 1 {
		t.Fatalf("expected memoized call, got calls=%d v1=%v v2=%v", calls, v1, v2)
	}
}

func TestCallUnknownMethod(t *testing.T) {
	m := entity.New()
	key := entity.Key{Typename: "User", ID: "1"}
	rec := m.Upsert(key, 1, map[string]any{"name": "Alice"}, nil)

	if _, err := rec.Call("missing", "", nil); err == nil {
		t.Fatal("expected UnknownMethodError")
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	m := entity.New()
	key := entity.Key{Typename: "User", ID: "1"}
	m.Upsert(key, 1, map[string]any{"name": "Alice"}, nil)
	m.Delete(key)

	if _, ok := m.Get(key); ok {
		t.Fatal("expected record to be gone after Delete")
	}
}
