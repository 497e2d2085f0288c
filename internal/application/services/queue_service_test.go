package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/triage"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("cache miss")
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

type stubDirectory struct {
	records map[string]*entities.PatientRecord
}

func (d *stubDirectory) GetByID(_ context.Context, id string) (*entities.PatientRecord, error) {
	rec, ok := d.records[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	return rec, nil
}

func (d *stubDirectory) Upsert(_ context.Context, rec *entities.PatientRecord) error {
	d.records[rec.ID] = rec
	return nil
}

func newQueueHarness(t *testing.T) (*harness, *QueueService, *recordingEmitter) {
	t.Helper()
	h := newHarness(t)
	clock := func() time.Time { return h.now }

	crowd := NewCrowdService(h.board, h.roster, h.pool, h.cfg.Queue.ConsultationMinutes, h.cfg.Triage.TeleconsultMaxScore)
	crowd.SetClock(clock)
	svc := NewQueueService(
		triage.NewEngine(h.cfg.Triage, nil),
		h.board, h.roster, h.pool, h.tracker, h.allocator, h.protector, crowd, h.activity,
	)
	svc.SetClock(clock)
	emitter := &recordingEmitter{}
	svc.SetEventEmitter(emitter)
	return h, svc, emitter
}

var (
	chestPainRequest = CheckInRequest{
		PatientID:         "P-100",
		PatientName:       "Rajesh Kumar",
		Age:               72,
		Symptoms:          []string{"chest pain"},
		ChronicConditions: []string{"heart disease", "diabetes"},
		DurationHours:     1,
		SelfSeverity:      9,
		Department:        "Cardiology",
	}
	runnyNoseRequest = CheckInRequest{
		PatientID:     "P-200",
		PatientName:   "Ada Obi",
		Age:           30,
		Symptoms:      []string{"runny nose"},
		DurationHours: 1,
		SelfSeverity:  3,
		Department:    "general",
	}
)

func TestQueueService_CheckInCriticalPatient(t *testing.T) {
	h, svc, emitter := newQueueHarness(t)
	h.fill(t, "cardiology", 3, 0, 10*time.Minute)

	res, err := svc.CheckIn(context.Background(), chestPainRequest)
	require.NoError(t, err)

	assert.Equal(t, "cardiology", res.Department)
	assert.Equal(t, 10, res.Triage.Score)
	assert.Equal(t, "CRITICAL", res.Triage.SeverityLevel)
	assert.Equal(t, 1, res.Position)
	assert.Regexp(t, `^CAR-[0-9A-F]{6}$`, res.Token)
	assert.False(t, res.Teleconsult.Eligible)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.WaitProtection)
	assert.Equal(t, "cardiology", res.WaitProtection.Department)
	assert.Nil(t, res.Allocation)

	entry, ok := h.board.Find(res.EntryID)
	require.True(t, ok)
	assert.InDelta(t, triage.AgeRiskFactor(72), entry.AgeFactor, 1e-9)
	assert.Equal(t, "Rajesh Kumar", entry.DisplayInfo().Name)
	assert.Equal(t, peakMorning, entry.CheckInTime)

	assert.Len(t, emitter.ofType(entities.QueueEventCheckIn), 1)
	logs := h.activity.Logs(entities.ActivityFilter{Type: entities.ActivityPatientCheckIn})
	require.Len(t, logs, 1)
	assert.Equal(t, "cardiology", logs[0].Department)
	assert.Len(t, h.tracker.History("cardiology"), 1)
}

func TestQueueService_CheckInResolvesDepartmentAndTeleconsult(t *testing.T) {
	_, svc, _ := newQueueHarness(t)

	req := runnyNoseRequest
	req.Department = "Podiatry"
	res, err := svc.CheckIn(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "general", res.Department)
	assert.Equal(t, 4, res.Triage.Score)
	assert.True(t, res.Teleconsult.Eligible)
	assert.False(t, res.Teleconsult.Recommended)
	assert.Nil(t, res.WaitProtection)
	assert.Equal(t, 1, res.WaitEstimate.Position)
}

func TestQueueService_CheckInRequiresPatientID(t *testing.T) {
	h, svc, _ := newQueueHarness(t)

	req := runnyNoseRequest
	req.PatientID = "  "
	_, err := svc.CheckIn(context.Background(), req)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Zero(t, h.board.Total())
}

func TestQueueService_IdempotentCheckIn(t *testing.T) {
	h, svc, _ := newQueueHarness(t)
	cache := newMemoryCache()
	svc.SetCache(cache)

	req := runnyNoseRequest
	req.IdempotencyKey = "kiosk-7-0001"

	var wg sync.WaitGroup
	results := make([]*CheckInResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.CheckIn(context.Background(), req)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.board.Total())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].EntryID, r.EntryID)
	}

	again, err := svc.CheckIn(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, results[0].EntryID, again.EntryID)
	assert.Equal(t, 1, h.board.Total())
	assert.Equal(t, 1, cache.sets)

	req.IdempotencyKey = "kiosk-7-0002"
	_, err = svc.CheckIn(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, h.board.Total())
}

func TestQueueService_CheckInUsesPatientDirectory(t *testing.T) {
	h, svc, _ := newQueueHarness(t)
	svc.SetPatientDirectory(&stubDirectory{records: map[string]*entities.PatientRecord{
		"P-300": {ID: "P-300", Name: "Grace Eze", Age: 81, ChronicConditions: []string{"hypertension"}},
	}})

	res, err := svc.CheckIn(context.Background(), CheckInRequest{PatientID: "P-300", Symptoms: []string{"headache"}})
	require.NoError(t, err)
	entry, _ := h.board.Find(res.EntryID)
	assert.Equal(t, "Grace Eze", entry.DisplayInfo().Name)
	assert.Equal(t, 81, entry.DisplayInfo().Age)
	assert.Greater(t, entry.ChronicBoost, 0.0)

	res, err = svc.CheckIn(context.Background(), CheckInRequest{PatientID: "P-404", Symptoms: []string{"headache"}})
	require.NoError(t, err)
	entry, _ = h.board.Find(res.EntryID)
	assert.Equal(t, "Patient P-404", entry.DisplayInfo().Name)
}

func TestQueueService_AutoAllocateOnCheckIn(t *testing.T) {
	h, svc, _ := newQueueHarness(t)
	svc.SetAutoAllocate(true)
	h.fill(t, "emergency", 17, 2, 40*time.Minute)
	h.growTrend("emergency", 10, 12, 14, 17)

	req := runnyNoseRequest
	req.Department = "emergency"
	res, err := svc.CheckIn(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Allocation)
	assert.Equal(t, entities.AllocationActionAssign, res.Allocation.Action)
	assert.True(t, res.Allocation.Executed)
}

func TestQueueService_CallNextAndComplete(t *testing.T) {
	h, svc, emitter := newQueueHarness(t)
	ctx := context.Background()

	low, err := svc.CheckIn(ctx, runnyNoseRequest)
	require.NoError(t, err)
	h.now = h.now.Add(5 * time.Minute)
	crit := chestPainRequest
	crit.Department = "general"
	high, err := svc.CheckIn(ctx, crit)
	require.NoError(t, err)
	assert.Equal(t, 1, high.Position)

	h.now = h.now.Add(7 * time.Minute)
	cur, err := svc.CallNext(ctx, "General", 0)
	require.NoError(t, err)
	assert.Equal(t, high.EntryID, cur.Entry.ID)
	assert.Equal(t, 7.0, cur.WaitedMinutes)
	assert.False(t, cur.SpareDoctor)

	_, err = svc.CallNext(ctx, "general", 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	got, ok := svc.Current("general")
	require.True(t, ok)
	assert.Equal(t, high.EntryID, got.Entry.ID)

	done, err := svc.Complete(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, high.EntryID, done.Entry.ID)
	_, err = svc.Complete(ctx, "general")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	cur, err = svc.CallNext(ctx, "general", 0)
	require.NoError(t, err)
	assert.Equal(t, low.EntryID, cur.Entry.ID)
	_, err = svc.Complete(ctx, "general")
	require.NoError(t, err)

	_, err = svc.CallNext(ctx, "general", 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	assert.Len(t, emitter.ofType(entities.QueueEventCalled), 2)
	assert.Len(t, emitter.ofType(entities.QueueEventCompleted), 2)
}

func TestQueueService_CallNextBySpareDoctor(t *testing.T) {
	h, svc, _ := newQueueHarness(t)
	ctx := context.Background()
	h.pool = NewSpareDoctorPool(DemoSpareDoctors(), 3, 1)
	svc.pool = h.pool

	_, err := h.pool.Assign(1001, "general", "surge", "tester")
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, runnyNoseRequest)
	require.NoError(t, err)

	cur, err := svc.CallNext(ctx, "general", 1001)
	require.NoError(t, err)
	assert.True(t, cur.SpareDoctor)
	assert.True(t, cur.AutoReleased)
	assert.Equal(t, "Dr. Sarah Wilson", cur.DoctorName)

	doc, err := h.pool.GetDoctor(1001)
	require.NoError(t, err)
	assert.Equal(t, entities.DoctorStatusAvailable, doc.Status)

	stored, ok := svc.Current("general")
	require.True(t, ok)
	assert.Equal(t, "Dr. Sarah Wilson", stored.DoctorName)
}

func TestQueueService_ListAndPosition(t *testing.T) {
	h, svc, _ := newQueueHarness(t)
	h.fill(t, "general", 3, 1, 10*time.Minute)
	h.fill(t, "neurology", 2, 0, 10*time.Minute)

	all, err := svc.List("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	gen, err := svc.List("General", 2)
	require.NoError(t, err)
	require.Len(t, gen, 2)
	assert.Equal(t, "general-0", gen[0].Entry.ID)
	assert.Equal(t, 1, gen[0].Position)
	assert.False(t, gen[0].TeleconsultEligible)
	assert.True(t, gen[1].TeleconsultEligible)

	_, err = svc.List("radiology", 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	pos, err := svc.Position("neurology-1")
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Position)
	assert.Equal(t, 2, pos.ExpectedWait.Position)

	_, err = svc.Position("missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestQueueService_RemoveAndRedirect(t *testing.T) {
	h, svc, emitter := newQueueHarness(t)
	ctx := context.Background()
	h.fill(t, "dermatology", 3, 0, 10*time.Minute)

	removed, err := svc.Remove(ctx, "dermatology-0")
	require.NoError(t, err)
	assert.Equal(t, "dermatology-0", removed.ID)
	_, err = svc.Remove(ctx, "dermatology-0")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	tc, err := svc.RedirectToTeleconsult(ctx, "dermatology-1")
	require.NoError(t, err)
	assert.Equal(t, "Pdermatology1", tc.PatientID)
	assert.Equal(t, "Patient Pdermatology1", tc.PatientName)
	assert.Equal(t, "dermatology", tc.FromDepartment)
	assert.Equal(t, 1, tc.Position)

	assert.Equal(t, 1, h.board.Depth("dermatology"))
	assert.Len(t, emitter.ofType(entities.QueueEventRemoved), 2)
}

func TestQueueService_StatusAndRecalculate(t *testing.T) {
	h, svc, emitter := newQueueHarness(t)
	h.fill(t, "general", 4, 1, 10*time.Minute)
	h.fill(t, "pediatrics", 2, 2, 10*time.Minute)

	st := svc.Status()
	assert.Equal(t, 6, st.TotalInQueue)
	assert.Equal(t, 3, st.CriticalPatients)
	assert.Equal(t, 3, st.BySeverity["critical"])
	assert.Equal(t, 3, st.BySeverity["low"])
	assert.Equal(t, 16, st.TotalDoctors)
	assert.Equal(t, 8, st.SpareDoctorsAvailable)
	assert.Equal(t, 5.6, st.AvgWaitMinutes)
	require.Len(t, st.Departments, 8)
	assert.Equal(t, 4, st.Departments[0].QueueCount)
	assert.Equal(t, 30.0, st.Departments[0].AvgWaitMinutes)

	h.now = h.now.Add(5 * time.Minute)
	assert.Equal(t, 6, svc.Recalculate(context.Background()))
	assert.Len(t, emitter.ofType(entities.QueueEventRecalculate), 1)
	entry, _ := h.board.Find("general-3")
	assert.Equal(t, 15.0, entry.WaitMinutes)
}

func TestQueueService_RunStopsWithContext(t *testing.T) {
	_, svc, _ := newQueueHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestQueueService_Reset(t *testing.T) {
	h, svc, _ := newQueueHarness(t)
	h.fill(t, "general", 2, 0, time.Minute)
	_, err := svc.CallNext(context.Background(), "general", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Reset())
	_, ok := svc.Current("general")
	assert.False(t, ok)
	assert.Zero(t, h.board.Total())
}

func TestQueueService_MissingSelfSeverityDefaultsToFive(t *testing.T) {
	_, svc, _ := newQueueHarness(t)
	base := CheckInRequest{
		PatientID:         "P-500",
		Age:               30,
		Symptoms:          []string{"cough"},
		ChronicConditions: []string{"hypertension"},
		DurationHours:     5,
	}

	omitted, err := svc.CheckIn(context.Background(), base)
	require.NoError(t, err)
	rated := base
	rated.PatientID = "P-501"
	rated.SelfSeverity = triage.DefaultSelfSeverity
	explicit, err := svc.CheckIn(context.Background(), rated)
	require.NoError(t, err)

	// 6 + 0.3 + 0.2 + 0.25 rounds to 7 either way
	assert.Equal(t, 7, omitted.Triage.Score)
	assert.Equal(t, explicit.Triage.Score, omitted.Triage.Score)
	assert.InDelta(t, 0.25, omitted.Triage.Breakdown.SelfReportContribution, 1e-9)

	assessed := svc.Assess(triage.Input{Symptoms: base.Symptoms, Age: 30, ChronicConditions: base.ChronicConditions, DurationHours: 5})
	assert.Equal(t, 7, assessed.Score)
}

func TestQueueService_TokenUsesDepartmentCode(t *testing.T) {
	_, svc, _ := newQueueHarness(t)

	req := runnyNoseRequest
	req.Department = "Emergency"
	res, err := svc.CheckIn(context.Background(), req)
	require.NoError(t, err)
	assert.Regexp(t, `^EMR-[0-9A-F]{6}$`, res.Token)

	req.Department = "dermatology"
	res, err = svc.CheckIn(context.Background(), req)
	require.NoError(t, err)
	assert.Regexp(t, `^DRM-[0-9A-F]{6}$`, res.Token)
}
