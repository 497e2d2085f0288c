package queue

import "time"

// node is one heap slot. An entry may own several nodes over its lifetime
// (each priority update inserts a fresh one); only the node whose handle
// matches the live slot is current, every other one is tombstoned.
type node struct {
	handle   uint64
	entryID  string
	priority float64
	checkIn  time.Time
	seq      uint64
}

// before reports whether a is served ahead of b: higher priority first,
// then earlier check-in, then earlier arrival in this queue.
func before(a, b *node) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if !a.checkIn.Equal(b.checkIn) {
		return a.checkIn.Before(b.checkIn)
	}
	return a.seq < b.seq
}

// nodeHeap implements container/heap.Interface
type nodeHeap []*node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return before(h[i], h[j]) }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(*node))
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
