// Package queue holds the waiting-room priority queues.
//
// A PriorityQueue is a binary heap with lazy deletion: removing or re-prioritizing
// an entry never restructures the heap. The superseded heap node's handle goes
// into an explicit removed set and is discarded when it reaches the top, which
// keeps remove and update at O(log n) amortized.
package queue

import (
	"container/heap"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

var (
	// ErrDuplicateEntry is returned when pushing an id that is already live
	ErrDuplicateEntry = errors.New("entry already queued")
	// ErrMissingEntryID is returned when pushing an entry without an id
	ErrMissingEntryID = errors.New("entry id is required")
)

// compactMinTombstones avoids rebuilding tiny heaps over and over
const compactMinTombstones = 64

// PriorityUpdate lists the signals to change; nil fields keep their current value
type PriorityUpdate struct {
	Severity     *int
	AgeFactor    *float64
	ChronicBoost *float64
	IsEmergency  *bool
	WaitMinutes  *float64
}

// Reprioritized describes an entry before and after an update
type Reprioritized struct {
	Before           entities.QueueEntry
	After            entities.QueueEntry
	PreviousPosition int
	NewPosition      int
}

type slot struct {
	entry  entities.QueueEntry
	handle uint64
	seq    uint64
}

// PriorityQueue is a mutex-guarded indexed max-heap of queue entries
type PriorityQueue struct {
	mu      sync.Mutex
	weights Weights
	heap    nodeHeap
	live    map[string]*slot
	removed map[uint64]struct{}

	nextHandle uint64
	nextSeq    uint64
	now        func() time.Time
}

// Option configures a PriorityQueue or Board
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock injects the clock used for missing check-in times
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewPriorityQueue creates an empty queue
func NewPriorityQueue(weights Weights, opts ...Option) *PriorityQueue {
	o := buildOptions(opts)
	return &PriorityQueue{
		weights: weights,
		live:    make(map[string]*slot),
		removed: make(map[uint64]struct{}),
		now:     o.now,
	}
}

// Push computes the entry's priority at zero wait and inserts it
func (pq *PriorityQueue) Push(entry entities.QueueEntry) (float64, error) {
	if entry.ID == "" {
		return 0, ErrMissingEntryID
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	if _, exists := pq.live[entry.ID]; exists {
		return 0, ErrDuplicateEntry
	}
	if entry.CheckInTime.IsZero() {
		entry.CheckInTime = pq.now().UTC()
	}
	entry.WaitMinutes = 0
	entry.CompositePriority = pq.weights.Priority(signalsOf(entry))

	pq.nextSeq++
	s := &slot{entry: entry, seq: pq.nextSeq}
	pq.live[entry.ID] = s
	pq.insertNode(s)
	return entry.CompositePriority, nil
}

// PopHighest removes and returns the live entry with the greatest priority
func (pq *PriorityQueue) PopHighest() (entities.QueueEntry, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if !pq.evictDeadTop() {
		return entities.QueueEntry{}, false
	}
	n := heap.Pop(&pq.heap).(*node)
	s := pq.live[n.entryID]
	delete(pq.live, n.entryID)
	return s.entry, true
}

// PeekHighest returns the live entry with the greatest priority without removing it
func (pq *PriorityQueue) PeekHighest() (entities.QueueEntry, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if !pq.evictDeadTop() {
		return entities.QueueEntry{}, false
	}
	return pq.live[pq.heap[0].entryID].entry, true
}

// Remove tombstones a live entry. It returns false when the id is not live.
func (pq *PriorityQueue) Remove(entryID string) bool {
	_, ok := pq.Take(entryID)
	return ok
}

// Take removes a live entry and returns it
func (pq *PriorityQueue) Take(entryID string) (entities.QueueEntry, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	s, ok := pq.live[entryID]
	if !ok {
		return entities.QueueEntry{}, false
	}
	pq.removed[s.handle] = struct{}{}
	delete(pq.live, entryID)
	pq.maybeCompact()
	return s.entry, true
}

// UpdatePriority recomputes an entry's priority from the updated signals and
// reinserts it under its original check-in time
func (pq *PriorityQueue) UpdatePriority(entryID string, upd PriorityUpdate) (float64, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	s, ok := pq.live[entryID]
	if !ok {
		return 0, false
	}
	pq.reinsert(s, upd)
	return s.entry.CompositePriority, true
}

// Reprioritize is UpdatePriority that also reports the entry's position before
// and after, observed atomically
func (pq *PriorityQueue) Reprioritize(entryID string, upd PriorityUpdate) (Reprioritized, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	s, ok := pq.live[entryID]
	if !ok {
		return Reprioritized{}, false
	}

	res := Reprioritized{Before: s.entry, PreviousPosition: pq.positionOf(s)}
	pq.reinsert(s, upd)
	res.After = s.entry
	res.NewPosition = pq.positionOf(s)
	return res, true
}

// RecalculateAll recomputes every live entry with wait = now - check-in and
// rebuilds the heap. It returns the number of entries recalculated.
func (pq *PriorityQueue) RecalculateAll(now time.Time) int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.heap = make(nodeHeap, 0, len(pq.live))
	pq.removed = make(map[uint64]struct{})
	for _, s := range pq.live {
		s.entry.WaitMinutes = s.entry.WaitedFor(now).Minutes()
		s.entry.CompositePriority = pq.weights.Priority(signalsOf(s.entry))
		pq.nextHandle++
		s.handle = pq.nextHandle
		pq.heap = append(pq.heap, pq.nodeFor(s))
	}
	heap.Init(&pq.heap)
	return len(pq.live)
}

// SnapshotOrdered returns every live entry in service order with 1-based positions
func (pq *PriorityQueue) SnapshotOrdered() []entities.QueuePosition {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	nodes := pq.liveNodes()
	sort.Slice(nodes, func(i, j int) bool { return before(nodes[i], nodes[j]) })

	out := make([]entities.QueuePosition, len(nodes))
	for i, n := range nodes {
		out[i] = entities.QueuePosition{Position: i + 1, Entry: pq.live[n.entryID].entry}
	}
	return out
}

// Position returns the 1-based position of a live entry
func (pq *PriorityQueue) Position(entryID string) (int, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	s, ok := pq.live[entryID]
	if !ok {
		return 0, false
	}
	return pq.positionOf(s), true
}

// Get returns a live entry
func (pq *PriorityQueue) Get(entryID string) (entities.QueueEntry, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	s, ok := pq.live[entryID]
	if !ok {
		return entities.QueueEntry{}, false
	}
	return s.entry, true
}

// Len returns the number of live entries
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.live)
}

// Clear drops every entry and returns how many were live
func (pq *PriorityQueue) Clear() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	n := len(pq.live)
	pq.heap = nil
	pq.live = make(map[string]*slot)
	pq.removed = make(map[uint64]struct{})
	return n
}

// tombstones reports the removed-set size and the physical heap size
func (pq *PriorityQueue) tombstones() (int, int) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.removed), len(pq.heap)
}

func (pq *PriorityQueue) reinsert(s *slot, upd PriorityUpdate) {
	pq.removed[s.handle] = struct{}{}
	applyUpdate(&s.entry, upd)
	s.entry.CompositePriority = pq.weights.Priority(signalsOf(s.entry))
	pq.insertNode(s)
	pq.maybeCompact()
}

func (pq *PriorityQueue) insertNode(s *slot) {
	pq.nextHandle++
	s.handle = pq.nextHandle
	heap.Push(&pq.heap, pq.nodeFor(s))
}

func (pq *PriorityQueue) nodeFor(s *slot) *node {
	return &node{
		handle:   s.handle,
		entryID:  s.entry.ID,
		priority: s.entry.CompositePriority,
		checkIn:  s.entry.CheckInTime,
		seq:      s.seq,
	}
}

// evictDeadTop pops tombstoned nodes off the top and reports whether a live
// node remains
func (pq *PriorityQueue) evictDeadTop() bool {
	for pq.heap.Len() > 0 {
		top := pq.heap[0]
		if _, dead := pq.removed[top.handle]; !dead {
			return true
		}
		heap.Pop(&pq.heap)
		delete(pq.removed, top.handle)
	}
	return false
}

// maybeCompact rebuilds the heap once tombstones outnumber live entries
func (pq *PriorityQueue) maybeCompact() {
	if len(pq.removed) < compactMinTombstones || len(pq.removed) <= len(pq.live) {
		return
	}
	kept := pq.heap[:0]
	for _, n := range pq.heap {
		if _, dead := pq.removed[n.handle]; !dead {
			kept = append(kept, n)
		}
	}
	for i := len(kept); i < len(pq.heap); i++ {
		pq.heap[i] = nil
	}
	pq.heap = kept
	pq.removed = make(map[uint64]struct{})
	heap.Init(&pq.heap)
}

func (pq *PriorityQueue) liveNodes() []*node {
	nodes := make([]*node, 0, len(pq.live))
	for _, s := range pq.live {
		nodes = append(nodes, pq.nodeFor(s))
	}
	return nodes
}

func (pq *PriorityQueue) positionOf(target *slot) int {
	t := pq.nodeFor(target)
	pos := 1
	for _, s := range pq.live {
		if s != target && before(pq.nodeFor(s), t) {
			pos++
		}
	}
	return pos
}

func applyUpdate(e *entities.QueueEntry, upd PriorityUpdate) {
	if upd.Severity != nil {
		e.SeverityScore = clampSeverity(*upd.Severity)
	}
	if upd.AgeFactor != nil {
		e.AgeFactor = *upd.AgeFactor
	}
	if upd.ChronicBoost != nil {
		e.ChronicBoost = *upd.ChronicBoost
	}
	if upd.IsEmergency != nil {
		e.IsEmergency = *upd.IsEmergency
	}
	if upd.WaitMinutes != nil && *upd.WaitMinutes >= 0 {
		e.WaitMinutes = *upd.WaitMinutes
	}
}

func signalsOf(e entities.QueueEntry) Signals {
	return Signals{
		Severity:     e.SeverityScore,
		WaitMinutes:  e.WaitMinutes,
		AgeFactor:    e.AgeFactor,
		ChronicBoost: e.ChronicBoost,
		IsEmergency:  e.IsEmergency,
	}
}

func clampSeverity(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}
