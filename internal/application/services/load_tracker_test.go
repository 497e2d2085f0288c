package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

func TestLoadTracker_Trend(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
		want    entities.LoadTrend
	}{
		{name: "too few samples", lengths: []int{1, 9}, want: entities.LoadTrendStable},
		{name: "growing", lengths: []int{2, 4, 6}, want: entities.LoadTrendIncreasing},
		{name: "shrinking", lengths: []int{12, 9, 7, 4}, want: entities.LoadTrendDecreasing},
		{name: "flat", lengths: []int{5, 5, 6, 5}, want: entities.LoadTrendStable},
		{name: "only the last five count", lengths: []int{0, 20, 20, 20, 20, 20}, want: entities.LoadTrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := peakMorning
			tr := NewLoadTracker(0)
			tr.SetClock(func() time.Time { return now })
			for i, n := range tt.lengths {
				tr.Record("Cardiology", n, now.Add(time.Duration(i-len(tt.lengths))*time.Minute))
			}
			assert.Equal(t, tt.want, tr.Trend("cardiology"))
		})
	}
}

func TestLoadTracker_WindowPrunesOldSamples(t *testing.T) {
	now := peakMorning
	tr := NewLoadTracker(30 * time.Minute)
	tr.SetClock(func() time.Time { return now })

	tr.Record("general", 1, now.Add(-45*time.Minute))
	tr.Record("general", 2, now.Add(-40*time.Minute))
	tr.Record("general", 3, now.Add(-5*time.Minute))
	require.Len(t, tr.History("general"), 1)

	now = now.Add(10 * time.Minute)
	tr.Record("general", 4, now)
	hist := tr.History("general")
	require.Len(t, hist, 2)
	assert.Equal(t, 3, hist[0].QueueLength)

	now = now.Add(time.Hour)
	assert.Empty(t, tr.History("general"))

	tr.Record("general", 4, now)
	tr.Reset()
	assert.Empty(t, tr.History("general"))
}

func TestPredictQueue(t *testing.T) {
	assert.Equal(t, 14, PredictQueue(entities.LoadTrendIncreasing, 10))
	assert.Equal(t, 7, PredictQueue(entities.LoadTrendDecreasing, 10))
	assert.Equal(t, 0, PredictQueue(entities.LoadTrendDecreasing, 2))
	assert.Equal(t, 10, PredictQueue(entities.LoadTrendStable, 10))
}

func TestDepartmentRoster(t *testing.T) {
	r := NewDepartmentRoster(entities.DefaultDepartments(), 0)

	assert.Len(t, r.Names(), 8)
	assert.Equal(t, "general", r.Names()[0])
	assert.Equal(t, "cardiology", r.Resolve(" CARDIOLOGY "))
	assert.Equal(t, "general", r.Resolve("radiology"))
	assert.Equal(t, 15, r.Capacity("cardiology"))
	assert.Equal(t, 2, r.ActiveDoctors("cardiology"))

	require.NoError(t, r.SetActiveDoctors("Cardiology", 5))
	assert.Equal(t, 5, r.ActiveDoctors("cardiology"))

	err := r.SetActiveDoctors("radiology", 3)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	err = r.SetActiveDoctors("cardiology", -1)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	r.Reset()
	assert.Equal(t, 2, r.ActiveDoctors("cardiology"))
}
