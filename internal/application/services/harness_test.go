package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/queue"
	"github.com/zatekoja/smartcare/backend/pkg/config"
)

// peakMorning is a Monday 10:00 UTC, inside the first peak window
var peakMorning = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type harness struct {
	now       time.Time
	cfg       *config.Config
	board     *queue.Board
	roster    *DepartmentRoster
	pool      *SpareDoctorPool
	tracker   *LoadTracker
	activity  *ActivityLogger
	allocator *DoctorAllocator
	protector *WaitTimeProtector
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{now: peakMorning, cfg: config.Defaults()}
	clock := func() time.Time { return h.now }

	h.roster = NewDepartmentRoster(entities.DefaultDepartments(), h.cfg.Queue.DefaultDoctors)
	h.board = queue.NewBoard(h.roster.Names(), queue.DefaultWeights(), queue.WithClock(clock))
	h.activity = NewActivityLogger(h.cfg.Archive.MaxEntries)
	h.activity.SetClock(clock)
	h.pool = NewSpareDoctorPool(DemoSpareDoctors(), h.cfg.Pool.MaxPerDepartment, h.cfg.Pool.MaxPatients)
	h.pool.SetClock(clock)
	h.pool.SetActivityLogger(h.activity)
	h.tracker = NewLoadTracker(h.cfg.Allocator.HistoryWindow)
	h.tracker.SetClock(clock)
	h.allocator = NewDoctorAllocator(h.cfg.Allocator, h.board, h.pool, h.roster, h.tracker, h.activity)
	h.allocator.SetClock(clock)
	h.protector = NewWaitTimeProtector(h.allocator, h.cfg.Queue.ConsultationMinutes)
	return h
}

// fill queues n patients in a department, the first `critical` of them at
// severity 10, all checked in `waited` ago
func (h *harness) fill(t *testing.T, dept string, n, critical int, waited time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		sev := 4
		if i < critical {
			sev = 10
		}
		_, err := h.board.Push(entities.QueueEntry{
			ID:            fmt.Sprintf("%s-%d", dept, i),
			PatientID:     fmt.Sprintf("P%s%d", dept, i),
			Department:    dept,
			SeverityScore: sev,
			AgeFactor:     1.0,
			CheckInTime:   h.now.Add(-waited),
		})
		require.NoError(t, err)
	}
}

// growTrend records rising samples over the last few minutes
func (h *harness) growTrend(dept string, lengths ...int) {
	for i, n := range lengths {
		h.tracker.Record(dept, n, h.now.Add(time.Duration(i-len(lengths))*time.Minute))
	}
}
