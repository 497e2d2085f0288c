package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/internal/queue"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

const (
	minBoost             = 1
	maxBoost             = 3
	defaultOverrideLimit = 100
)

// overrideRoles lists the roles allowed to perform each override type
var overrideRoles = map[entities.OverrideType][]entities.ActorRole{
	entities.OverrideEmergencyEscalate:  {entities.ActorRoleDoctor, entities.ActorRoleAdmin},
	entities.OverridePriorityBoost:      {entities.ActorRoleDoctor, entities.ActorRoleAdmin, entities.ActorRoleNurse},
	entities.OverrideImmediateAttention: {entities.ActorRoleDoctor},
	entities.OverrideTransferCritical:   {entities.ActorRoleDoctor, entities.ActorRoleAdmin},
	entities.OverrideSkipTriage:         {entities.ActorRoleDoctor},
}

// OverrideQueue is the part of the queue board overrides mutate
type OverrideQueue interface {
	Find(entryID string) (entities.QueueEntry, bool)
	Reprioritize(entryID string, upd queue.PriorityUpdate) (queue.Reprioritized, bool)
}

// OverrideSink receives a copy of every override record. Implementations must
// not block.
type OverrideSink interface {
	ForwardOverride(entry entities.OverrideLogEntry)
}

// EmergencyOverrideService applies staff overrides to queue priority and keeps
// an append-only, hash-chained audit log of every attempt
type EmergencyOverrideService struct {
	queues   OverrideQueue
	activity *ActivityLogger
	metrics  *observability.Metrics
	events   EventEmitter
	sink     OverrideSink

	mu      sync.Mutex
	logs    []entities.OverrideLogEntry
	counter int
	now     func() time.Time
}

// NewEmergencyOverrideService creates an override service over the queue board
func NewEmergencyOverrideService(queues OverrideQueue, activity *ActivityLogger) *EmergencyOverrideService {
	return &EmergencyOverrideService{
		queues:   queues,
		activity: activity,
		now:      time.Now,
	}
}

// SetMetrics attaches business metrics
func (s *EmergencyOverrideService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetEventEmitter attaches the queue event stream
func (s *EmergencyOverrideService) SetEventEmitter(e EventEmitter) {
	s.events = e
}

// SetSink attaches the archive forwarder
func (s *EmergencyOverrideService) SetSink(sink OverrideSink) {
	s.sink = sink
}

// SetClock replaces the time source used for ids and timestamps
func (s *EmergencyOverrideService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AllowedRoles returns the roles that may perform an override type
func AllowedRoles(t entities.OverrideType) []entities.ActorRole {
	roles := overrideRoles[t]
	out := make([]entities.ActorRole, len(roles))
	copy(out, roles)
	return out
}

// Authorize checks the actor's identity and role against the override matrix
func Authorize(t entities.OverrideType, actor entities.Actor) error {
	if strings.TrimSpace(actor.ID) == "" || actor.Role == "" {
		return apperrors.NewUnauthorizedError("actor identity is required for overrides")
	}
	role := entities.ActorRole(strings.ToLower(string(actor.Role)))
	allowed := overrideRoles[t]
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return apperrors.NewForbiddenError(fmt.Sprintf("only %s can perform %s", strings.Join(names, ", "), t))
}

// Escalate flags an entry as an emergency, moving it ahead of every
// non-emergency patient
func (s *EmergencyOverrideService) Escalate(ctx context.Context, req entities.OverrideRequest) (entities.OverrideResult, error) {
	emergency := true
	escalate := func(entities.QueueEntry) queue.PriorityUpdate {
		return queue.PriorityUpdate{IsEmergency: &emergency}
	}
	return s.apply(ctx, entities.OverrideEmergencyEscalate, req, escalate, "")
}

// Boost raises an entry's severity by 1 to 3 points, capped at 10. Amounts
// outside that range are clamped.
func (s *EmergencyOverrideService) Boost(ctx context.Context, req entities.OverrideRequest) (entities.OverrideResult, error) {
	amount := min(max(req.Amount, minBoost), maxBoost)
	req.Notes = strings.TrimSpace(fmt.Sprintf("Boost amount: +%d. %s", amount, req.Notes))

	boost := func(current entities.QueueEntry) queue.PriorityUpdate {
		sev := min(current.SeverityScore+amount, entities.MaxSeverity)
		return queue.PriorityUpdate{Severity: &sev}
	}
	return s.apply(ctx, entities.OverridePriorityBoost, req, boost, fmt.Sprintf("boosted by %d", amount))
}

func (s *EmergencyOverrideService) apply(
	ctx context.Context,
	t entities.OverrideType,
	req entities.OverrideRequest,
	update func(entities.QueueEntry) queue.PriorityUpdate,
	verb string,
) (entities.OverrideResult, error) {
	ctx, span := observability.StartSpan(ctx, "override."+strings.ToLower(string(t)))
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	rec := entities.OverrideLogEntry{
		Actor:   req.Actor,
		Type:    t,
		EntryID: req.EntryID,
		Reason:  entities.ParseOverrideReason(string(req.Reason)),
		Notes:   req.Notes,
	}
	rec.Actor.Role = entities.ActorRole(strings.ToLower(string(req.Actor.Role)))

	var patientName string
	var err error

	s.mu.Lock()
	before, found := s.queues.Find(req.EntryID)
	if found {
		rec.PatientID = before.PatientID
		rec.Department = before.Department
		rec.PreviousSeverity = before.SeverityScore
		rec.NewSeverity = before.SeverityScore
		patientName = before.DisplayInfo().Name
	}

	if err = Authorize(t, req.Actor); err == nil {
		if strings.TrimSpace(req.EntryID) == "" {
			err = apperrors.NewValidationError("entry_id is required")
		} else if !found {
			err = apperrors.NewNotFoundError(fmt.Sprintf("queue entry %s not found", req.EntryID))
		} else if res, ok := s.queues.Reprioritize(req.EntryID, update(before)); !ok {
			err = apperrors.NewNotFoundError(fmt.Sprintf("queue entry %s not found", req.EntryID))
		} else {
			rec.PreviousPriority = res.Before.CompositePriority
			rec.NewPriority = res.After.CompositePriority
			rec.PreviousPosition = res.PreviousPosition
			rec.NewPosition = res.NewPosition
			rec.PreviousSeverity = res.Before.SeverityScore
			rec.NewSeverity = res.After.SeverityScore
			rec.Success = true
		}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	rec = s.appendLocked(rec)
	s.mu.Unlock()

	if patientName == "" {
		patientName = "entry " + req.EntryID
	}
	s.metrics.RecordOverride(ctx, string(t), string(rec.Actor.Role), rec.Success)
	if s.activity != nil {
		s.activity.LogOverride(rec, patientName)
	}
	if s.sink != nil {
		s.sink.ForwardOverride(rec)
	}

	result := entities.OverrideResult{
		Success:          rec.Success,
		LogID:            rec.ID,
		PreviousPosition: rec.PreviousPosition,
		NewPosition:      rec.NewPosition,
		PreviousPriority: rec.PreviousPriority,
		NewPriority:      rec.NewPriority,
		AuditLog:         rec,
	}

	if err != nil {
		observability.RecordError(span, err)
		logger.Warn().Err(err).
			Str("override_id", rec.ID).
			Str("override_type", string(t)).
			Str("entry_id", req.EntryID).
			Str("actor_id", req.Actor.ID).
			Str("actor_role", string(rec.Actor.Role)).
			Msg("Override rejected")
		result.Message = err.Error()
		return result, err
	}

	if rec.NewSeverity != rec.PreviousSeverity {
		result.SeverityChange = fmt.Sprintf("%d → %d", rec.PreviousSeverity, rec.NewSeverity)
	}
	if verb == "" {
		result.Message = fmt.Sprintf("%s moved to position %d", patientName, rec.NewPosition)
	} else {
		result.Message = fmt.Sprintf("%s priority %s, now at position %d", patientName, verb, rec.NewPosition)
	}

	logger.Info().
		Str("override_id", rec.ID).
		Str("override_type", string(t)).
		Str("entry_id", req.EntryID).
		Str("actor_id", req.Actor.ID).
		Int("previous_position", rec.PreviousPosition).
		Int("new_position", rec.NewPosition).
		Msg("Override applied")

	if s.events != nil {
		ev := entities.NewQueueEvent(entities.QueueEventOverride, rec.Department)
		ev.EntryID = rec.EntryID
		ev.PatientID = rec.PatientID
		ev.Position = rec.NewPosition
		ev.Priority = rec.NewPriority
		ev.Data = map[string]interface{}{
			"override_type":     t,
			"previous_position": rec.PreviousPosition,
			"actor":             rec.Actor.Name,
		}
		s.events.Emit(ev)
	}
	return result, nil
}

// appendLocked assigns the id, timestamp and chain hash and stores the record
func (s *EmergencyOverrideService) appendLocked(rec entities.OverrideLogEntry) entities.OverrideLogEntry {
	now := s.now().UTC()
	s.counter++
	rec.ID = fmt.Sprintf("OVR-%s-%05d", now.Format("20060102"), s.counter)
	rec.Timestamp = now
	if n := len(s.logs); n > 0 {
		rec.PrevHash = s.logs[n-1].Hash
	}
	rec.Hash = chainHash(rec)
	s.logs = append(s.logs, rec)
	return rec
}

// Logs returns matching override records newest first
func (s *EmergencyOverrideService) Logs(filter entities.OverrideLogFilter) []entities.OverrideLogEntry {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOverrideLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entities.OverrideLogEntry, 0, min(limit, len(s.logs)))
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.logs[i]
		if filter.PatientID != "" && rec.PatientID != filter.PatientID {
			continue
		}
		if filter.ActorID != "" && rec.Actor.ID != filter.ActorID {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Stats aggregates every override attempt. An empty log reports a 100% success rate.
func (s *EmergencyOverrideService) Stats() entities.OverrideStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := entities.OverrideStats{
		Total:       len(s.logs),
		SuccessRate: 100,
		ByType:      make(map[string]int),
		ByRole:      make(map[string]int),
	}
	for _, rec := range s.logs {
		st.ByType[string(rec.Type)]++
		st.ByRole[string(rec.Actor.Role)]++
		if rec.Success {
			st.Successful++
		} else {
			st.Failed++
		}
	}
	if st.Total > 0 {
		st.SuccessRate = round1(float64(st.Successful) / float64(st.Total) * 100)
		last := s.logs[len(s.logs)-1]
		st.Last = &last
	}
	return st
}

// VerifyChain recomputes every record hash and checks each link
func (s *EmergencyOverrideService) VerifyChain() entities.ChainVerification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return verifyOverrideChain(s.logs)
}

func verifyOverrideChain(logs []entities.OverrideLogEntry) entities.ChainVerification {
	v := entities.ChainVerification{Valid: true, Entries: len(logs)}
	prev := ""
	for _, rec := range logs {
		if rec.PrevHash != prev || chainHash(rec) != rec.Hash {
			v.Valid = false
			v.BrokenAt = rec.ID
			return v
		}
		prev = rec.Hash
	}
	v.Head = prev
	return v
}

// chainHash is the SHA-256 of the record's JSON form with Hash left empty
func chainHash(rec entities.OverrideLogEntry) string {
	rec.Hash = ""
	b, _ := json.Marshal(rec)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
