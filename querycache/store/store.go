// Package store implements the Store Façade: it turns the KV substrate's
// flat string/number/buffer keyspace into a semantic document store with a
// reference-counted, cascade-deleting key scheme, plus the per-query-
// definition LRU used by the Client to bound on-disk growth.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shashiranjanraj/qcache/pkg/logger"
	"github.com/shashiranjanraj/qcache/querycache/digest"
)

// Substrate is the narrow slice of kv.Substrate the façade depends on,
// declared locally so store never imports the kv package concretely — the
// same bridge-interface pattern pkg/orm uses for its Cacher dependency, to
// keep package-dependency edges pointing one way.
type Substrate interface {
	Has(ctx context.Context, key string) (bool, error)
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key string, value string) error
	GetBuffer(ctx context.Context, key string) ([]uint32, bool, error)
	SetBuffer(ctx context.Context, key string, value []uint32) error
	Delete(ctx context.Context, key string) error
}

// OrderedSet is the narrow slice of kv.OrderedSet the façade's LRU needs.
type OrderedSet interface {
	Touch(ctx context.Context, setKey, member string) error
	Oldest(ctx context.Context, setKey string, excluding map[string]bool) (string, bool, error)
	Remove(ctx context.Context, setKey, member string) error
	Len(ctx context.Context, setKey string) (int, error)
}

// Facade is the Store Façade: it owns the KV key derivation scheme and the
// ref-count/cascade protocol on top of a Substrate.
type Facade struct {
	sub Substrate
	lru OrderedSet
}

// New builds a Facade over the given substrate and ordered-set (LRU) store.
// Both are usually the same concrete kv adapter implementing both contracts.
func New(sub Substrate, lru OrderedSet) *Facade {
	return &Facade{sub: sub, lru: lru}
}

func valueKey(k uint32) string     { return "value:" + keyStr(k) }
func refIdsKey(k uint32) string    { return "refIds:" + keyStr(k) }
func refCountKey(k uint32) string  { return "refCount:" + keyStr(k) }
func updatedAtKey(k uint32) string { return "updatedAt:" + keyStr(k) }

func keyStr(k uint32) string { return strconv.FormatUint(uint64(k), 10) }

// Document is the (value, refIds) pair a base key K resolves to.
type Document struct {
	Value     string
	RefIds    []uint32
	UpdatedAt int64 // milliseconds since epoch; zero for non-query documents
}

// SaveDocument writes value:K and refIds:K, then reconciles refCount:r for
// every entity key added or dropped from the ref set, recursively
// cascading deletes for any key whose refCount reaches zero.
func (f *Facade) SaveDocument(ctx context.Context, k uint32, jsonValue string, refIds []uint32) error {
	prev, _, err := f.sub.GetBuffer(ctx, refIdsKey(k))
	if err != nil {
		return fmt.Errorf("store: read prior refIds for %d: %w", k, err)
	}

	if err := f.sub.SetString(ctx, valueKey(k), jsonValue); err != nil {
		return fmt.Errorf("store: write value:%d: %w", k, err)
	}

	if len(refIds) == 0 {
		if err := f.sub.Delete(ctx, refIdsKey(k)); err != nil {
			return fmt.Errorf("store: clear refIds:%d: %w", k, err)
		}
	} else if err := f.sub.SetBuffer(ctx, refIdsKey(k), dedupe(refIds)); err != nil {
		return fmt.Errorf("store: write refIds:%d: %w", k, err)
	}

	prevSet := toSet(prev)
	nextSet := toSet(refIds)

	for r := range prevSet {
		if nextSet[r] {
			continue
		}
		if err := f.decrementRefCount(ctx, r); err != nil {
			return err
		}
	}
	for r := range nextSet {
		if prevSet[r] {
			continue
		}
		if err := f.incrementRefCount(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// SaveQuery is SaveDocument plus the query-only updatedAt co-key.
func (f *Facade) SaveQuery(ctx context.Context, k uint32, jsonValue string, refIds []uint32, updatedAt int64) error {
	if err := f.SaveDocument(ctx, k, jsonValue, refIds); err != nil {
		return err
	}
	return f.sub.SetString(ctx, updatedAtKey(k), strconv.FormatInt(updatedAt, 10))
}

// DeleteDocument deletes all four co-keys and recursively cascades
// refCount decrements to every entry in refIds:K.
func (f *Facade) DeleteDocument(ctx context.Context, k uint32) error {
	refIds, _, err := f.sub.GetBuffer(ctx, refIdsKey(k))
	if err != nil {
		return fmt.Errorf("store: read refIds for delete %d: %w", k, err)
	}

	for _, key := range []string{valueKey(k), refIdsKey(k), refCountKey(k), updatedAtKey(k)} {
		if err := f.sub.Delete(ctx, key); err != nil {
			return fmt.Errorf("store: delete %s: %w", key, err)
		}
	}

	for _, r := range refIds {
		if err := f.decrementRefCount(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *Facade) incrementRefCount(ctx context.Context, k uint32) error {
	cur, err := f.refCount(ctx, k)
	if err != nil {
		return err
	}
	return f.sub.SetString(ctx, refCountKey(k), strconv.Itoa(cur+1))
}

func (f *Facade) decrementRefCount(ctx context.Context, k uint32) error {
	cur, err := f.refCount(ctx, k)
	if err != nil {
		return err
	}
	if cur <= 1 {
		if err := f.sub.Delete(ctx, refCountKey(k)); err != nil {
			return fmt.Errorf("store: clear refCount:%d: %w", k, err)
		}
		return f.DeleteDocument(ctx, k)
	}
	return f.sub.SetString(ctx, refCountKey(k), strconv.Itoa(cur-1))
}

func (f *Facade) refCount(ctx context.Context, k uint32) (int, error) {
	raw, ok, err := f.sub.GetString(ctx, refCountKey(k))
	if err != nil {
		return 0, fmt.Errorf("store: read refCount:%d: %w", k, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("store: refCount:%d not numeric: %w", k, err)
	}
	return n, nil
}

// LoadQuery returns the document plus updatedAt, or ok=false on a miss. On
// corruption (unparsable updatedAt) LoadQuery deletes the document itself
// and reports ok=false, the same as a clean miss.
func (f *Facade) LoadQuery(ctx context.Context, k uint32) (Document, bool, error) {
	value, ok, err := f.sub.GetString(ctx, valueKey(k))
	if err != nil {
		return Document{}, false, fmt.Errorf("store: read value:%d: %w", k, err)
	}
	if !ok {
		return Document{}, false, nil
	}

	refIds, _, err := f.sub.GetBuffer(ctx, refIdsKey(k))
	if err != nil {
		return Document{}, false, fmt.Errorf("store: read refIds:%d: %w", k, err)
	}

	updatedRaw, _, err := f.sub.GetString(ctx, updatedAtKey(k))
	if err != nil {
		return Document{}, false, fmt.Errorf("store: read updatedAt:%d: %w", k, err)
	}
	var updatedAt int64
	if updatedRaw != "" {
		updatedAt, err = strconv.ParseInt(updatedRaw, 10, 64)
		if err != nil {
			logger.Warn("store: corrupted updatedAt, treating as cache miss", "key", k)
			if err := f.DeleteDocument(ctx, k); err != nil {
				return Document{}, false, err
			}
			return Document{}, false, nil
		}
	}

	return Document{Value: value, RefIds: refIds, UpdatedAt: updatedAt}, true, nil
}

// ActivateQuery records K as most-recent in defId's LRU set, then evicts the
// least-recently-used member (excluding currently-activated keys) if the set
// exceeds maxCount, cascading its deletion through DeleteDocument.
//
// maxCount <= 0 means unbounded: no eviction is attempted.
func (f *Facade) ActivateQuery(ctx context.Context, defId string, k uint32, maxCount int, activeKeys map[string]bool) error {
	member := keyStr(k)
	if err := f.lru.Touch(ctx, defId, member); err != nil {
		return fmt.Errorf("store: lru touch %s/%s: %w", defId, member, err)
	}
	if maxCount <= 0 {
		return nil
	}
	_, err := f.evictExcess(ctx, defId, maxCount, activeKeys)
	return err
}

// LRUSize reports defId's current on-disk LRU set size, with no eviction
// side effect — used by the Client's sweep loop to refresh its per-definition
// size gauge without paying Inspect's per-member ref-count/updatedAt reads.
func (f *Facade) LRUSize(ctx context.Context, defId string) (int, error) {
	return f.lru.Len(ctx, defId)
}

// Sweep forcibly evicts defId's LRU set down to maxCount members, cascading
// each eviction through DeleteDocument, and reports how many were evicted.
// Unlike ActivateQuery's eviction — run on every cache write, excluding
// currently-subscribed keys the in-process Client knows about — Sweep has no
// notion of "currently active": it is meant for an out-of-process operator
// tool (cmd/querycache gc-sweep) pointed at a KV store with no live Client
// attached, so every member is eligible.
func (f *Facade) Sweep(ctx context.Context, defId string, maxCount int) (int, error) {
	return f.evictExcess(ctx, defId, maxCount, nil)
}

func (f *Facade) evictExcess(ctx context.Context, defId string, maxCount int, excluding map[string]bool) (int, error) {
	n, err := f.lru.Len(ctx, defId)
	if err != nil {
		return 0, fmt.Errorf("store: lru len %s: %w", defId, err)
	}
	evicted := 0
	for n > maxCount {
		oldest, ok, err := f.lru.Oldest(ctx, defId, excluding)
		if err != nil {
			return evicted, fmt.Errorf("store: lru oldest %s: %w", defId, err)
		}
		if !ok {
			break
		}
		if err := f.lru.Remove(ctx, defId, oldest); err != nil {
			return evicted, fmt.Errorf("store: lru remove %s/%s: %w", defId, oldest, err)
		}
		evictKey, err := strconv.ParseUint(oldest, 10, 32)
		if err != nil {
			return evicted, fmt.Errorf("store: lru member %q not a key: %w", oldest, err)
		}
		if err := f.DeleteDocument(ctx, uint32(evictKey)); err != nil {
			return evicted, fmt.Errorf("store: cascade evict %s: %w", oldest, err)
		}
		evicted++
		n--
	}
	return evicted, nil
}

// MemberInfo is one LRU member's diagnostic snapshot (cmd/querycache inspect).
type MemberInfo struct {
	Key       uint32
	RefCount  int
	UpdatedAt int64
}

// Inspect returns defId's LRU set size plus up to limit of its
// least-recently-used members (oldest first), each annotated with its
// current ref count and, for query documents, last-updated timestamp.
func (f *Facade) Inspect(ctx context.Context, defId string, limit int) ([]MemberInfo, int, error) {
	total, err := f.lru.Len(ctx, defId)
	if err != nil {
		return nil, 0, fmt.Errorf("store: lru len %s: %w", defId, err)
	}

	seen := make(map[string]bool)
	var out []MemberInfo
	for len(out) < limit {
		member, ok, err := f.lru.Oldest(ctx, defId, seen)
		if err != nil {
			return nil, total, fmt.Errorf("store: lru oldest %s: %w", defId, err)
		}
		if !ok {
			break
		}
		seen[member] = true

		k, err := strconv.ParseUint(member, 10, 32)
		if err != nil {
			continue
		}
		key := uint32(k)

		rc, err := f.refCount(ctx, key)
		if err != nil {
			return nil, total, err
		}
		updatedRaw, _, err := f.sub.GetString(ctx, updatedAtKey(key))
		if err != nil {
			return nil, total, fmt.Errorf("store: read updatedAt:%d: %w", key, err)
		}
		var updatedAt int64
		if updatedRaw != "" {
			updatedAt, _ = strconv.ParseInt(updatedRaw, 10, 64)
		}
		out = append(out, MemberInfo{Key: key, RefCount: rc, UpdatedAt: updatedAt})
	}
	return out, total, nil
}

func dedupe(ids []uint32) []uint32 {
	seen := make(map[uint32]bool, len(ids))
	out := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toSet(ids []uint32) map[uint32]bool {
	s := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// EntityKey derives the KV key for an entity identified by typename, id, and
// its schema's shapeKey.
func EntityKey(typename string, id string, shapeKey uint32) uint32 {
	return digest.OfParts(typename, id, strconv.FormatUint(uint64(shapeKey), 10))
}

// QueryKey derives the KV key for a query identified by its definition id
// and a canonicalized argument fingerprint.
func QueryKey(defId string, argsFingerprint string) uint32 {
	return digest.OfParts(defId, argsFingerprint)
}

// NowMillis returns the current wall-clock time in Unix milliseconds; SaveQuery
// callers use it to stamp updatedAt. It is a plain function, so tests cannot
// substitute a fixed clock for it.
func NowMillis() int64 { return time.Now().UnixMilli() }
