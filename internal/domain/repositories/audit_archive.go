package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

// AuditArchive persists copies of the in-memory activity and override logs
type AuditArchive interface {
	// SaveActivities inserts activity entries, ignoring ids already stored
	SaveActivities(ctx context.Context, entries []entities.ActivityLogEntry) error

	// SaveOverrides inserts override records, ignoring ids already stored
	SaveOverrides(ctx context.Context, entries []entities.OverrideLogEntry) error

	// ListOverrides returns archived override records newest first
	ListOverrides(ctx context.Context, since time.Time, limit int) ([]entities.OverrideLogEntry, error)
}
