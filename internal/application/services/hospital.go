package services

import (
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/internal/queue"
	"github.com/zatekoja/smartcare/backend/internal/triage"
	"github.com/zatekoja/smartcare/backend/pkg/config"
	"github.com/zatekoja/smartcare/backend/pkg/utils"
)

// Hospital bundles the in-memory state of one hospital and the services
// operating on it. Every service shares the same board, roster and pool.
type Hospital struct {
	Engine    *triage.Engine
	Board     *queue.Board
	Roster    *DepartmentRoster
	Pool      *SpareDoctorPool
	Tracker   *LoadTracker
	Activity  *ActivityLogger
	Allocator *DoctorAllocator
	Protector *WaitTimeProtector
	Overrides *EmergencyOverrideService
	Crowd     *CrowdService
	Queue     *QueueService
	Demo      *DemoService
}

// NewHospital wires the services for the default departments and the demo
// spare doctor roster. normalizer may be nil.
func NewHospital(cfg *config.Config, normalizer *utils.SymptomNormalizer) *Hospital {
	h := &Hospital{}
	h.Engine = triage.NewEngine(cfg.Triage, normalizer)
	h.Roster = NewDepartmentRoster(entities.DefaultDepartments(), cfg.Queue.DefaultDoctors)
	weights := queue.DefaultWeights()
	if cfg.Queue.MaxWaitMinutes > 0 {
		weights.MaxWaitMinutes = cfg.Queue.MaxWaitMinutes
	}
	h.Board = queue.NewBoard(h.Roster.Names(), weights)
	h.Activity = NewActivityLogger(cfg.Archive.MaxEntries)

	h.Pool = NewSpareDoctorPool(DemoSpareDoctors(), cfg.Pool.MaxPerDepartment, cfg.Pool.MaxPatients)
	h.Pool.SetActivityLogger(h.Activity)

	h.Tracker = NewLoadTracker(cfg.Allocator.HistoryWindow)
	h.Allocator = NewDoctorAllocator(cfg.Allocator, h.Board, h.Pool, h.Roster, h.Tracker, h.Activity)
	h.Protector = NewWaitTimeProtector(h.Allocator, cfg.Queue.ConsultationMinutes)
	h.Overrides = NewEmergencyOverrideService(h.Board, h.Activity)
	h.Crowd = NewCrowdService(h.Board, h.Roster, h.Pool, cfg.Queue.ConsultationMinutes, cfg.Triage.TeleconsultMaxScore)

	h.Queue = NewQueueService(h.Engine, h.Board, h.Roster, h.Pool, h.Tracker, h.Allocator, h.Protector, h.Crowd, h.Activity)
	h.Queue.SetAutoAllocate(cfg.Allocator.AutoOnCheckIn)

	h.Demo = NewDemoService(h.Queue, h.Crowd, h.Roster, h.Pool, h.Tracker, h.Allocator, h.Activity)
	return h
}

// SetMetrics attaches business instruments to every service that records them
func (h *Hospital) SetMetrics(m *observability.Metrics) {
	h.Queue.SetMetrics(m)
	h.Allocator.SetMetrics(m)
	h.Overrides.SetMetrics(m)
}

// SetEventEmitter routes queue events from every producer to e
func (h *Hospital) SetEventEmitter(e EventEmitter) {
	h.Queue.SetEventEmitter(e)
	h.Allocator.SetEventEmitter(e)
	h.Overrides.SetEventEmitter(e)
	h.Demo.SetEventEmitter(e)
}

// SetArchive forwards activity and override records to an archive sink
func (h *Hospital) SetArchive(f *ArchiveForwarder) {
	h.Activity.SetSink(f)
	h.Overrides.SetSink(f)
}
