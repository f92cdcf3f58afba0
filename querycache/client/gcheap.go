package client

import "time"

// gcEntry is one pending in-memory eviction, ordered by deadline.
type gcEntry struct {
	key      uint32
	defID    string
	deadline time.Time
	index    int
}

// gcHeap is a container/heap.Interface min-heap over gcEntry.deadline, letting
// the sweep always pop the soonest-due instance without scanning every live
// entry.
type gcHeap []*gcEntry

func (h gcHeap) Len() int            { return len(h) }
func (h gcHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h gcHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *gcHeap) Push(x any) {
	ge := x.(*gcEntry)
	ge.index = len(*h)
	*h = append(*h, ge)
}

func (h *gcHeap) Pop() any {
	old := *h
	n := len(old)
	ge := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ge
}
