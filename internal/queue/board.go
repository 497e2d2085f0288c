package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

// ErrUnknownDepartment is returned for departments the board was not built with
var ErrUnknownDepartment = errors.New("unknown department")

// Board holds one PriorityQueue per department plus an entry index so callers
// can address entries by id alone. Board.mu is always taken before a queue's
// own lock.
type Board struct {
	mu     sync.RWMutex
	queues map[string]*PriorityQueue
	index  map[string]string
	order  []string
}

// NewBoard creates an empty queue for each department
func NewBoard(departments []string, weights Weights, opts ...Option) *Board {
	b := &Board{
		queues: make(map[string]*PriorityQueue, len(departments)),
		index:  make(map[string]string),
	}
	for _, d := range departments {
		d = entities.NormalizeDepartment(d)
		if _, ok := b.queues[d]; ok {
			continue
		}
		b.queues[d] = NewPriorityQueue(weights, opts...)
		b.order = append(b.order, d)
	}
	return b
}

// Departments returns the department names in roster order
func (b *Board) Departments() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Has reports whether the board has a queue for the department
func (b *Board) Has(department string) bool {
	_, ok := b.queues[entities.NormalizeDepartment(department)]
	return ok
}

// Push adds an entry to its department's queue
func (b *Board) Push(entry entities.QueueEntry) (entities.QueueEntry, error) {
	dept := entities.NormalizeDepartment(entry.Department)
	q, ok := b.queues[dept]
	if !ok {
		return entities.QueueEntry{}, ErrUnknownDepartment
	}
	entry.Department = dept

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.index[entry.ID]; exists {
		return entities.QueueEntry{}, ErrDuplicateEntry
	}
	if _, err := q.Push(entry); err != nil {
		return entities.QueueEntry{}, err
	}
	b.index[entry.ID] = dept
	stored, _ := q.Get(entry.ID)
	return stored, nil
}

// Pop removes the highest-priority entry of a department
func (b *Board) Pop(department string) (entities.QueueEntry, bool, error) {
	q, err := b.queue(department)
	if err != nil {
		return entities.QueueEntry{}, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := q.PopHighest()
	if ok {
		delete(b.index, e.ID)
	}
	return e, ok, nil
}

// Peek returns the highest-priority entry of a department without removing it
func (b *Board) Peek(department string) (entities.QueueEntry, bool, error) {
	q, err := b.queue(department)
	if err != nil {
		return entities.QueueEntry{}, false, err
	}
	e, ok := q.PeekHighest()
	return e, ok, nil
}

// Remove takes an entry out of whichever queue holds it
func (b *Board) Remove(entryID string) (entities.QueueEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dept, ok := b.index[entryID]
	if !ok {
		return entities.QueueEntry{}, false
	}
	e, ok := b.queues[dept].Take(entryID)
	delete(b.index, entryID)
	return e, ok
}

// Find returns a live entry by id
func (b *Board) Find(entryID string) (entities.QueueEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dept, ok := b.index[entryID]
	if !ok {
		return entities.QueueEntry{}, false
	}
	return b.queues[dept].Get(entryID)
}

// Position returns an entry's 1-based position within its department
func (b *Board) Position(entryID string) (entities.QueuePosition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dept, ok := b.index[entryID]
	if !ok {
		return entities.QueuePosition{}, false
	}
	q := b.queues[dept]
	pos, ok := q.Position(entryID)
	if !ok {
		return entities.QueuePosition{}, false
	}
	e, _ := q.Get(entryID)
	return entities.QueuePosition{Position: pos, Entry: e}, true
}

// Reprioritize updates an entry's signals in place
func (b *Board) Reprioritize(entryID string, upd PriorityUpdate) (Reprioritized, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dept, ok := b.index[entryID]
	if !ok {
		return Reprioritized{}, false
	}
	return b.queues[dept].Reprioritize(entryID, upd)
}

// Snapshot returns a department's entries in service order
func (b *Board) Snapshot(department string) ([]entities.QueuePosition, error) {
	q, err := b.queue(department)
	if err != nil {
		return nil, err
	}
	return q.SnapshotOrdered(), nil
}

// SnapshotAll returns every department's ordered entries
func (b *Board) SnapshotAll() map[string][]entities.QueuePosition {
	out := make(map[string][]entities.QueuePosition, len(b.order))
	for _, d := range b.order {
		out[d] = b.queues[d].SnapshotOrdered()
	}
	return out
}

// RecalculateAll refreshes wait-dependent priorities across every department
func (b *Board) RecalculateAll(now time.Time) int {
	n := 0
	for _, d := range b.order {
		n += b.queues[d].RecalculateAll(now)
	}
	return n
}

// Depths returns the live entry count per department
func (b *Board) Depths() map[string]int {
	out := make(map[string]int, len(b.order))
	for _, d := range b.order {
		out[d] = b.queues[d].Len()
	}
	return out
}

// Depth returns one department's live entry count
func (b *Board) Depth(department string) int {
	q, err := b.queue(department)
	if err != nil {
		return 0
	}
	return q.Len()
}

// Total returns the live entry count across all departments
func (b *Board) Total() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

// Clear empties every queue and returns how many entries were dropped
func (b *Board) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, d := range b.order {
		n += b.queues[d].Clear()
	}
	b.index = make(map[string]string)
	return n
}

// BusiestFirst returns department names sorted by depth descending
func (b *Board) BusiestFirst() []string {
	depths := b.Depths()
	out := b.Departments()
	sort.SliceStable(out, func(i, j int) bool { return depths[out[i]] > depths[out[j]] })
	return out
}

func (b *Board) queue(department string) (*PriorityQueue, error) {
	q, ok := b.queues[entities.NormalizeDepartment(department)]
	if !ok {
		return nil, ErrUnknownDepartment
	}
	return q, nil
}
