package reactive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shashiranjanraj/qcache/querycache/reactive"
)

func TestSignalNotifiesSubscribers(t *testing.T) {
	sig := reactive.NewSignal(1)

	var got int
	unsub := sig.Subscribe(func(v int) { got = v })
	defer unsub()

	sig.Set(42)
	if got != 42 {
		t.Fatalf("got = %d; want 42", got)
	}

	unsub()
	sig.Set(7)
	if got != 42 {
		t.Fatalf("subscriber fired after unsubscribe: got = %d", got)
	}
}

func TestMemoComputesOnce(t *testing.T) {
	calls := 0
	m := reactive.NewMemo(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	})

	v1, _ := m.Get(context.Background())
	v2, _ := m.Get(context.Background())
	if v1 != v2 || calls != 1 {
		t.Fatalf("expected single computation, got calls=%d v1=%d v2=%d", calls, v1, v2)
	}

	m.Invalidate()
	v3, _ := m.Get(context.Background())
	if v3 != 2 || calls != 2 {
		t.Fatalf("expected recompute after Invalidate, got calls=%d v3=%d", calls, v3)
	}
}

func TestMethodCacheMemoizesByArgsKey(t *testing.T) {
	mc := reactive.NewMethodCache()
	calls := 0
	fn := func() (any, error) {
		calls++
		return calls, nil
	}

	v1, _ := mc.Call("a=1", fn)
	v2, _ := mc.Call("a=1", fn)
	v3, _ := mc.Call("a=2", fn)

	if v1 != v2 {
		t.Fatalf("same args key should be memoized: v1=%v v2=%v", v1, v2)
	}
	if v3 == v1 {
		t.Fatalf("different args key should not share cache")
	}
	if calls != 2 {
		t.Fatalf("expected 2 underlying calls, got %d", calls)
	}

	mc.InvalidateAll()
	v4, _ := mc.Call("a=1", fn)
	if v4 == v1 {
		t.Fatalf("InvalidateAll should force recompute")
	}
}

type countingHook struct {
	activated   int
	deactivated int
}

func (h *countingHook) OnActivated(string)   { h.activated++ }
func (h *countingHook) OnDeactivated(string) { h.deactivated++ }

func TestRelayActivationLifecycle(t *testing.T) {
	teardownCalled := false
	relay := reactive.NewRelay[string]("q1", func() func() {
		return func() { teardownCalled = true }
	})

	hook := &countingHook{}
	relay.SetActivationHook(hook)

	relay.IncRef()
	relay.IncRef()
	if hook.activated != 1 {
		t.Fatalf("expected a single activation for first subscriber, got %d", hook.activated)
	}

	relay.Resolve("hello")
	state, value, err := relay.Snapshot()
	if state != reactive.RelayResolved || value != "hello" || err != nil {
		t.Fatalf("unexpected snapshot: %v %v %v", state, value, err)
	}

	relay.DecRef()
	if teardownCalled {
		t.Fatal("teardown should not run until last unsubscribe")
	}
	relay.DecRef()
	if !teardownCalled || hook.deactivated != 1 {
		t.Fatalf("expected teardown + deactivation after last unsubscribe")
	}
}

func TestRelayReject(t *testing.T) {
	relay := reactive.NewRelay[int]("q2", nil)
	relay.Reject(errors.New("boom"))
	state, _, err := relay.Snapshot()
	if state != reactive.RelayRejected || err == nil {
		t.Fatalf("expected rejected state with error, got %v %v", state, err)
	}
}
