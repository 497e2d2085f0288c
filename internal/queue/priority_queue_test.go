package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newEntry(id string, severity int, checkIn time.Time) entities.QueueEntry {
	return entities.QueueEntry{
		ID:            id,
		PatientID:     "p-" + id,
		Department:    "general",
		SeverityScore: severity,
		AgeFactor:     1.0,
		CheckInTime:   checkIn,
	}
}

func ids(snapshot []entities.QueuePosition) []string {
	out := make([]string, len(snapshot))
	for i, p := range snapshot {
		out[i] = p.Entry.ID
	}
	return out
}

func TestPriority_Weights(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name string
		in   Signals
		want float64
	}{
		{"severity only", Signals{Severity: 5}, 0.2},
		{"full wait", Signals{Severity: 5, WaitMinutes: 400}, 0.45},
		{"half wait", Signals{Severity: 5, WaitMinutes: 90}, 0.325},
		{"age capped", Signals{Severity: 10, AgeFactor: 3}, 0.55},
		{"chronic", Signals{Severity: 10, ChronicBoost: 0.5}, 0.45},
		{"emergency bonus", Signals{Severity: 1, IsEmergency: true}, 10.14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, w.Priority(tt.in), 1e-9)
		})
	}
}

func TestPriority_EmergencyAlwaysAhead(t *testing.T) {
	w := DefaultWeights()
	worstEmergency := w.Priority(Signals{Severity: 1, IsEmergency: true})
	bestRegular := w.Priority(Signals{Severity: 10, WaitMinutes: 1000, AgeFactor: 1.5, ChronicBoost: 1})
	assert.Greater(t, worstEmergency, bestRegular)
}

func TestPriorityQueue_TieBrokenByCheckIn(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())

	b := newEntry("B", 5, t0.Add(time.Minute))
	a := newEntry("A", 5, t0)
	_, err := pq.Push(b)
	require.NoError(t, err)
	_, err = pq.Push(a)
	require.NoError(t, err)

	snap := pq.SnapshotOrdered()
	require.Len(t, snap, 2)
	assert.Equal(t, snap[0].Entry.CompositePriority, snap[1].Entry.CompositePriority)
	assert.Equal(t, []string{"A", "B"}, ids(snap))
	assert.Equal(t, 1, snap[0].Position)

	top, ok := pq.PopHighest()
	require.True(t, ok)
	assert.Equal(t, "A", top.ID)
}

func TestPriorityQueue_PushComputesAtZeroWait(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights(), WithClock(fixedClock(t0)))

	e := newEntry("x", 8, time.Time{})
	e.WaitMinutes = 500
	p, err := pq.Push(e)
	require.NoError(t, err)

	stored, ok := pq.Get("x")
	require.True(t, ok)
	assert.Equal(t, t0, stored.CheckInTime)
	assert.Zero(t, stored.WaitMinutes)
	assert.Equal(t, p, stored.CompositePriority)
	assert.InDelta(t, 0.32+0.1, p, 1e-9)
}

func TestPriorityQueue_PushRejects(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())

	_, err := pq.Push(entities.QueueEntry{})
	assert.ErrorIs(t, err, ErrMissingEntryID)

	_, err = pq.Push(newEntry("dup", 4, t0))
	require.NoError(t, err)
	_, err = pq.Push(newEntry("dup", 9, t0))
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.Equal(t, 1, pq.Len())
}

func TestPriorityQueue_PopOrder(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	for i, sev := range []int{3, 9, 1, 7, 5} {
		_, err := pq.Push(newEntry(fmt.Sprintf("e%d", sev), sev, t0.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	var got []string
	for {
		e, ok := pq.PopHighest()
		if !ok {
			break
		}
		got = append(got, e.ID)
	}
	assert.Equal(t, []string{"e9", "e7", "e5", "e3", "e1"}, got)

	_, ok := pq.PeekHighest()
	assert.False(t, ok)
}

func TestPriorityQueue_RemovedEntriesNeverReturned(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	for _, id := range []string{"a", "b", "c"} {
		_, err := pq.Push(newEntry(id, 5, t0))
		require.NoError(t, err)
	}
	_, err := pq.Push(newEntry("top", 10, t0))
	require.NoError(t, err)

	assert.True(t, pq.Remove("top"))
	assert.False(t, pq.Remove("top"))
	assert.False(t, pq.Remove("never-queued"))

	removed, physical := pq.tombstones()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 4, physical)

	peek, ok := pq.PeekHighest()
	require.True(t, ok)
	assert.Equal(t, "a", peek.ID)

	removed, physical = pq.tombstones()
	assert.Zero(t, removed)
	assert.Equal(t, 3, physical)

	_, ok = pq.Position("top")
	assert.False(t, ok)
	assert.NotContains(t, ids(pq.SnapshotOrdered()), "top")
}

func TestPriorityQueue_ReaddAfterRemove(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	_, err := pq.Push(newEntry("x", 9, t0))
	require.NoError(t, err)
	require.True(t, pq.Remove("x"))

	_, err = pq.Push(newEntry("x", 2, t0))
	require.NoError(t, err)

	e, ok := pq.PopHighest()
	require.True(t, ok)
	assert.Equal(t, 2, e.SeverityScore)
	_, ok = pq.PopHighest()
	assert.False(t, ok)
}

func TestPriorityQueue_UpdatePriorityKeepsSingleLiveNode(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	_, err := pq.Push(newEntry("x", 3, t0))
	require.NoError(t, err)
	_, err = pq.Push(newEntry("y", 6, t0.Add(time.Second)))
	require.NoError(t, err)

	sev := 9
	p, ok := pq.UpdatePriority("x", PriorityUpdate{Severity: &sev})
	require.True(t, ok)
	assert.InDelta(t, 0.36+0.1, p, 1e-9)

	sev = 2
	_, ok = pq.UpdatePriority("x", PriorityUpdate{Severity: &sev})
	require.True(t, ok)

	assert.Equal(t, 2, pq.Len())
	first, _ := pq.PopHighest()
	second, _ := pq.PopHighest()
	assert.Equal(t, "y", first.ID)
	assert.Equal(t, "x", second.ID)
	assert.Equal(t, 2, second.SeverityScore)
	_, ok = pq.PopHighest()
	assert.False(t, ok)

	_, ok = pq.UpdatePriority("missing", PriorityUpdate{Severity: &sev})
	assert.False(t, ok)
}

func TestPriorityQueue_EscalationReachesFront(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	for i := 0; i < 5; i++ {
		_, err := pq.Push(newEntry(fmt.Sprintf("crit%d", i), 10, t0))
		require.NoError(t, err)
	}
	_, err := pq.Push(newEntry("late", 2, t0.Add(time.Hour)))
	require.NoError(t, err)

	sev, emergency := 10, true
	res, ok := pq.Reprioritize("late", PriorityUpdate{Severity: &sev, IsEmergency: &emergency})
	require.True(t, ok)

	assert.Equal(t, 6, res.PreviousPosition)
	assert.Equal(t, 1, res.NewPosition)
	assert.Equal(t, 2, res.Before.SeverityScore)
	assert.Equal(t, 10, res.After.SeverityScore)
	assert.Greater(t, res.After.CompositePriority, res.Before.CompositePriority)

	top, _ := pq.PeekHighest()
	assert.Equal(t, "late", top.ID)
}

func TestPriorityQueue_RecalculateAll(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	_, err := pq.Push(newEntry("old", 5, t0))
	require.NoError(t, err)
	_, err = pq.Push(newEntry("new", 5, t0.Add(90*time.Minute)))
	require.NoError(t, err)
	_, err = pq.Push(newEntry("gone", 9, t0))
	require.NoError(t, err)
	require.True(t, pq.Remove("gone"))

	now := t0.Add(180 * time.Minute)
	assert.Equal(t, 2, pq.RecalculateAll(now))

	removed, physical := pq.tombstones()
	assert.Zero(t, removed)
	assert.Equal(t, 2, physical)

	old, _ := pq.Get("old")
	assert.InDelta(t, 180, old.WaitMinutes, 1e-9)
	assert.InDelta(t, 0.2+0.25+0.1, old.CompositePriority, 1e-9)

	newer, _ := pq.Get("new")
	assert.InDelta(t, 90, newer.WaitMinutes, 1e-9)

	first := ids(pq.SnapshotOrdered())
	assert.Equal(t, []string{"old", "new"}, first)

	pq.RecalculateAll(now)
	assert.Equal(t, first, ids(pq.SnapshotOrdered()))
	assert.Equal(t, 2, pq.Len())
}

func TestPriorityQueue_CompactsTombstones(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	for i := 0; i < 200; i++ {
		_, err := pq.Push(newEntry(fmt.Sprintf("e%03d", i), 1+i%10, t0))
		require.NoError(t, err)
	}
	for i := 0; i < 190; i++ {
		require.True(t, pq.Remove(fmt.Sprintf("e%03d", i)))
	}

	removed, physical := pq.tombstones()
	assert.LessOrEqual(t, removed, compactMinTombstones+10)
	assert.Equal(t, 10+removed, physical)
	assert.Equal(t, 10, pq.Len())

	snap := pq.SnapshotOrdered()
	assert.Len(t, snap, 10)
	for i := 1; i < len(snap); i++ {
		assert.GreaterOrEqual(t, snap[i-1].Entry.CompositePriority, snap[i].Entry.CompositePriority)
	}
}

func TestPriorityQueue_Clear(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())
	_, _ = pq.Push(newEntry("a", 5, t0))
	_, _ = pq.Push(newEntry("b", 5, t0))

	assert.Equal(t, 2, pq.Clear())
	assert.Zero(t, pq.Len())
	_, ok := pq.PopHighest()
	assert.False(t, ok)
}

func TestPriorityQueue_ConcurrentAccess(t *testing.T) {
	pq := NewPriorityQueue(DefaultWeights())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, err := pq.Push(newEntry(id, 1+i%10, t0))
				assert.NoError(t, err)
				if i%3 == 0 {
					sev := 10
					pq.UpdatePriority(id, PriorityUpdate{Severity: &sev})
				}
			}
		}(w)
	}
	wg.Wait()
	require.Equal(t, 400, pq.Len())

	seen := make(map[string]bool)
	var mu sync.Mutex
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, ok := pq.PopHighest()
				if !ok {
					return
				}
				mu.Lock()
				assert.False(t, seen[e.ID], "popped twice: %s", e.ID)
				seen[e.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 400)
}
