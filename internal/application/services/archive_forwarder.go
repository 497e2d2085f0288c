package services

import (
	"context"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/repositories"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

const (
	archiveBatchSize     = 50
	archiveFlushInterval = time.Second
	archiveWriteTimeout  = 5 * time.Second
)

// ArchiveForwarder copies activity and override records into the audit
// archive in the background. Forward calls never block; when the buffer is
// full the record is dropped and counted.
type ArchiveForwarder struct {
	archive   repositories.AuditArchive
	metrics   *observability.Metrics
	activity  chan entities.ActivityLogEntry
	overrides chan entities.OverrideLogEntry
}

// NewArchiveForwarder creates a forwarder with bufferSize slots per record kind
func NewArchiveForwarder(archive repositories.AuditArchive, bufferSize int) *ArchiveForwarder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ArchiveForwarder{
		archive:   archive,
		activity:  make(chan entities.ActivityLogEntry, bufferSize),
		overrides: make(chan entities.OverrideLogEntry, bufferSize),
	}
}

// SetMetrics attaches the drop counter
func (f *ArchiveForwarder) SetMetrics(m *observability.Metrics) {
	f.metrics = m
}

// ForwardActivity queues an activity entry for archival
func (f *ArchiveForwarder) ForwardActivity(entry entities.ActivityLogEntry) {
	select {
	case f.activity <- entry:
	default:
		f.dropped("archive_activity", entry.ID)
	}
}

// ForwardOverride queues an override record for archival
func (f *ArchiveForwarder) ForwardOverride(entry entities.OverrideLogEntry) {
	select {
	case f.overrides <- entry:
	default:
		f.dropped("archive_override", entry.ID)
	}
}

func (f *ArchiveForwarder) dropped(pipeline, id string) {
	f.metrics.RecordDropped(context.Background(), pipeline)
	observability.GetLogger().Warn().Str("pipeline", pipeline).Str("record_id", id).Msg("Archive buffer full, dropping record")
}

// Run drains the buffers into the archive until ctx is done, then flushes
// whatever is still buffered
func (f *ArchiveForwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(archiveFlushInterval)
	defer ticker.Stop()

	var acts []entities.ActivityLogEntry
	var ovrs []entities.OverrideLogEntry
	flush := func(ctx context.Context) {
		if len(acts) > 0 {
			f.saveActivities(ctx, acts)
			acts = nil
		}
		if len(ovrs) > 0 {
			f.saveOverrides(ctx, ovrs)
			ovrs = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			f.drain(&acts, &ovrs)
			flush(context.WithoutCancel(ctx))
			return nil
		case e := <-f.activity:
			acts = append(acts, e)
			if len(acts) >= archiveBatchSize {
				flush(ctx)
			}
		case e := <-f.overrides:
			ovrs = append(ovrs, e)
			if len(ovrs) >= archiveBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (f *ArchiveForwarder) drain(acts *[]entities.ActivityLogEntry, ovrs *[]entities.OverrideLogEntry) {
	for {
		select {
		case e := <-f.activity:
			*acts = append(*acts, e)
		case e := <-f.overrides:
			*ovrs = append(*ovrs, e)
		default:
			return
		}
	}
}

func (f *ArchiveForwarder) saveActivities(ctx context.Context, batch []entities.ActivityLogEntry) {
	ctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()
	if err := f.archive.SaveActivities(ctx, batch); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Int("records", len(batch)).Msg("Failed to archive activity entries")
	}
}

func (f *ArchiveForwarder) saveOverrides(ctx context.Context, batch []entities.OverrideLogEntry) {
	ctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()
	if err := f.archive.SaveOverrides(ctx, batch); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Int("records", len(batch)).Msg("Failed to archive override records")
	}
}
