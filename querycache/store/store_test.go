package store_test

import (
	"context"
	"testing"

	"github.com/shashiranjanraj/qcache/querycache/kv"
	"github.com/shashiranjanraj/qcache/querycache/store"
)

func newFacade() *store.Facade {
	mem := kv.NewMemStore()
	return store.New(mem, mem)
}

func TestSaveDocumentWritesNoValueForReferencedKey(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	const queryKey, entityKey uint32 = 100, 200

	if err := f.SaveDocument(ctx, queryKey, `{"ref":true}`, []uint32{entityKey}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	doc, ok, err := f.LoadQuery(ctx, entityKey)
	if err == nil && ok {
		t.Fatalf("entity key should have no value document of its own, got %+v", doc)
	}
}

func TestCascadeDeleteOnZeroRefCount(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	const queryKey, entityKey uint32 = 1, 2

	if err := f.SaveDocument(ctx, queryKey, `{"a":1}`, []uint32{entityKey}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if err := f.SaveDocument(ctx, entityKey, `{"name":"Alice"}`, nil); err != nil {
		t.Fatalf("SaveDocument entity: %v", err)
	}

	if err := f.DeleteDocument(ctx, queryKey); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	_, ok, err := f.LoadQuery(ctx, entityKey)
	if err != nil {
		t.Fatalf("LoadQuery entity: %v", err)
	}
	if ok {
		t.Fatal("expected entity to be cascade-deleted once refCount reached zero")
	}
}

func TestSaveDocumentDropsStaleRefs(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	const queryKey, oldEntity, newEntity uint32 = 1, 2, 3

	if err := f.SaveDocument(ctx, queryKey, `{"v":1}`, []uint32{oldEntity}); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if err := f.SaveDocument(ctx, oldEntity, `{"name":"old"}`, nil); err != nil {
		t.Fatalf("save old entity: %v", err)
	}

	// Re-save the query now pointing at a different entity; oldEntity's
	// refCount should drop to zero and be cascade-deleted.
	if err := f.SaveDocument(ctx, queryKey, `{"v":2}`, []uint32{newEntity}); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	_, ok, err := f.LoadQuery(ctx, oldEntity)
	if err != nil {
		t.Fatalf("LoadQuery oldEntity: %v", err)
	}
	if ok {
		t.Fatal("expected stale ref's entity to be cascade-deleted")
	}
}

func TestActivateQueryEvictsOverCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	const defId = "getUser"
	const k1, k2 uint32 = 11, 22

	if err := f.SaveDocument(ctx, k1, `{"id":1}`, nil); err != nil {
		t.Fatalf("save k1: %v", err)
	}
	if err := f.ActivateQuery(ctx, defId, k1, 1, nil); err != nil {
		t.Fatalf("activate k1: %v", err)
	}

	if err := f.SaveDocument(ctx, k2, `{"id":2}`, nil); err != nil {
		t.Fatalf("save k2: %v", err)
	}
	if err := f.ActivateQuery(ctx, defId, k2, 1, nil); err != nil {
		t.Fatalf("activate k2: %v", err)
	}

	_, ok, err := f.LoadQuery(ctx, k1)
	if err != nil {
		t.Fatalf("LoadQuery k1: %v", err)
	}
	if ok {
		t.Fatal("expected k1 to be evicted once the per-definition LRU exceeded maxCount")
	}

	_, ok, err = f.LoadQuery(ctx, k2)
	if err != nil {
		t.Fatalf("LoadQuery k2: %v", err)
	}
	if !ok {
		t.Fatal("expected k2 (most recently activated) to remain")
	}
}

func TestActivateQuerySkipsExcludedKeys(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	const defId = "getUser"
	const k1, k2 uint32 = 11, 22

	if err := f.SaveDocument(ctx, k1, `{"id":1}`, nil); err != nil {
		t.Fatalf("save k1: %v", err)
	}
	if err := f.ActivateQuery(ctx, defId, k1, 1, nil); err != nil {
		t.Fatalf("activate k1: %v", err)
	}
	if err := f.SaveDocument(ctx, k2, `{"id":2}`, nil); err != nil {
		t.Fatalf("save k2: %v", err)
	}

	active := map[string]bool{"11": true}
	if err := f.ActivateQuery(ctx, defId, k2, 1, active); err != nil {
		t.Fatalf("activate k2: %v", err)
	}

	_, ok, err := f.LoadQuery(ctx, k1)
	if err != nil {
		t.Fatalf("LoadQuery k1: %v", err)
	}
	if !ok {
		t.Fatal("expected k1 to survive eviction because it was excluded (currently activated)")
	}
}
