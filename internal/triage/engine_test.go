package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/pkg/config"
)

func newTestEngine() *Engine {
	return NewEngine(config.Defaults().Triage, nil)
}

func TestScore_CriticalElderlyPatient(t *testing.T) {
	e := newTestEngine()

	res := e.Score(Input{
		Symptoms:          []string{"chest pain"},
		Age:               72,
		ChronicConditions: []string{"heart disease", "diabetes"},
		DurationHours:     1,
		SelfSeverity:      9,
	})

	assert.Equal(t, 10, res.Score)
	assert.Equal(t, "CRITICAL", res.SeverityLevel)
	assert.False(t, res.TeleconsultEligible)
	assert.Equal(t, TierCritical, res.Breakdown.MatchedTier)
	assert.Equal(t, 10, res.Breakdown.BaseScore)
	assert.InDelta(t, 1.4, res.Breakdown.AgeFactor, 1e-9)
	assert.InDelta(t, 0.5, res.Breakdown.ChronicBoost, 1e-9)
	assert.InDelta(t, 12.25, res.Breakdown.RawScore, 1e-9)
	assert.Equal(t, 0, res.EstimatedWaitMinutes)
	assert.Contains(t, res.Explanation, "Raw score 12.25 clamped to 10")
}

func TestScore_LowSeverityTeleconsult(t *testing.T) {
	e := newTestEngine()

	res := e.Score(Input{
		Symptoms:      []string{"runny nose"},
		Age:           30,
		DurationHours: 1,
		SelfSeverity:  3,
	})

	assert.Equal(t, TierLow, res.Breakdown.MatchedTier)
	assert.Equal(t, 4, res.Breakdown.BaseScore)
	assert.GreaterOrEqual(t, res.Score, 3)
	assert.LessOrEqual(t, res.Score, 5)
	assert.Equal(t, 4, res.Score)
	assert.True(t, res.TeleconsultEligible)
}

func TestScore_IsPure(t *testing.T) {
	e := newTestEngine()
	in := Input{
		Symptoms:          []string{"high_fever", "Cough"},
		Description:       "started after travel, some dizziness",
		Age:               4,
		ChronicConditions: []string{"Asthma", "copd"},
		DurationHours:     30,
		SelfSeverity:      6,
	}

	first := e.Score(in)
	second := e.Score(in)
	assert.Equal(t, first, second)
}

func TestScore_AlwaysInRangeWithExplanation(t *testing.T) {
	e := newTestEngine()
	inputs := []Input{
		{},
		{Symptoms: []string{"prescription refill"}, Age: 35},
		{Symptoms: []string{"cardiac arrest"}, Age: 90, ChronicConditions: []string{"cancer", "heart disease", "copd", "kidney disease"}, DurationHours: 200, IsEmergency: true, SelfSeverity: 10},
		{Symptoms: []string{"checkup"}, Age: -4, SelfSeverity: -20},
		{Description: "nothing in particular", Age: 200, SelfSeverity: 99},
	}

	for _, in := range inputs {
		res := e.Score(in)
		assert.GreaterOrEqual(t, res.Score, 1)
		assert.LessOrEqual(t, res.Score, 10)
		assert.NotEmpty(t, res.Explanation)
	}
}

func TestScore_TierPrecedence(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		symptoms []string
		tier     Tier
		base     int
	}{
		{"critical beats urgent", []string{"high fever", "seizure"}, TierCritical, 10},
		{"urgent beats moderate", []string{"cough", "fracture"}, TierUrgent, 8},
		{"moderate", []string{"sore throat"}, TierModerate, 6},
		{"low", []string{"sneezing"}, TierLow, 4},
		{"routine", []string{"vaccination"}, TierRoutine, 2},
		{"no match", []string{"itchy elbow"}, TierNone, DefaultScore},
		{"underscores normalized", []string{"difficulty_breathing"}, TierCritical, 10},
		{"abbreviation expanded", []string{"SOB"}, TierUrgent, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Score(Input{Symptoms: tt.symptoms, Age: 30})
			assert.Equal(t, tt.tier, res.Breakdown.MatchedTier)
			assert.Equal(t, tt.base, res.Breakdown.BaseScore)
		})
	}
}

func TestScore_DescriptionMatches(t *testing.T) {
	e := newTestEngine()
	res := e.Score(Input{Description: "Patient reports Severe Bleeding from the arm", Age: 40})
	assert.Equal(t, TierCritical, res.Breakdown.MatchedTier)
	assert.Equal(t, []string{"severe bleeding"}, res.Breakdown.MatchedKeywords)
}

func TestScore_Contributions(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		in       Input
		duration float64
		self     float64
		emerg    float64
	}{
		{"recent onset", Input{DurationHours: 1.5}, 0, 0, 0},
		{"same day", Input{DurationHours: 2}, 0.2, 0, 0},
		{"couple of days", Input{DurationHours: 48}, 0.5, 0, 0},
		{"long standing", Input{DurationHours: 72}, 0.8, 0, 0},
		{"self report", Input{SelfSeverity: 10}, 0, 0.5, 0},
		{"self report clamped", Input{SelfSeverity: 15}, 0, 0.5, 0},
		{"emergency", Input{IsEmergency: true}, 0, 0, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Age = 30
			res := e.Score(tt.in)
			assert.InDelta(t, tt.duration, res.Breakdown.DurationAdjustment, 1e-9)
			assert.InDelta(t, tt.self, res.Breakdown.SelfReportContribution, 1e-9)
			assert.InDelta(t, tt.emerg, res.Breakdown.EmergencyContribution, 1e-9)
		})
	}
}

func TestScore_EmergencyFlagBlocksTeleconsult(t *testing.T) {
	e := newTestEngine()
	res := e.Score(Input{Symptoms: []string{"vaccination"}, Age: 30, IsEmergency: true})
	assert.Equal(t, 4, res.Score)
	assert.False(t, res.TeleconsultEligible)
}

func TestChronicBoost_CappedAndCountedOnce(t *testing.T) {
	e := newTestEngine()

	assert.InDelta(t, 0.0, e.ChronicBoost(nil), 1e-9)
	assert.InDelta(t, 0.2, e.ChronicBoost([]string{"Diabetes", "type 2 diabetes"}), 1e-9)
	assert.InDelta(t, 1.0, e.ChronicBoost([]string{"cancer", "heart_disease", "copd", "kidney disease", "immunocompromised"}), 1e-9)
}

func TestAgeRiskFactor(t *testing.T) {
	tests := []struct {
		age  int
		want float64
	}{
		{0, 1.5}, {2, 1.5}, {3, 1.3}, {5, 1.3}, {6, 1.1}, {12, 1.1},
		{13, 1.0}, {45, 1.0}, {60, 1.0}, {61, 1.3}, {70, 1.3}, {71, 1.4},
		{80, 1.4}, {81, 1.5}, {104, 1.5}, {-1, 1.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AgeRiskFactor(tt.age), "age %d", tt.age)
	}
}

func TestDescribeSeverity(t *testing.T) {
	assert.Equal(t, "CRITICAL", DescribeSeverity(9).Level)
	assert.Equal(t, "URGENT", DescribeSeverity(7).Level)
	assert.Equal(t, "MODERATE", DescribeSeverity(5).Level)
	assert.Equal(t, "LOW", DescribeSeverity(3).Level)
	assert.Equal(t, "MINIMAL", DescribeSeverity(0).Level)
	assert.Equal(t, "CRITICAL", DescribeSeverity(42).Level)
	assert.Equal(t, 70, BaseWaitMinutes(4))
}

func TestScore_CustomHeuristics(t *testing.T) {
	cfg := config.Defaults().Triage
	cfg.SelfReportWeight = 2.0
	cfg.LongDurationBoost = 1.0
	e := NewEngine(cfg, nil)

	res := e.Score(Input{Symptoms: []string{"tired"}, Age: 30, DurationHours: 100, SelfSeverity: 10})
	require.Equal(t, TierLow, res.Breakdown.MatchedTier)
	assert.InDelta(t, 2.0, res.Breakdown.SelfReportContribution, 1e-9)
	assert.InDelta(t, 1.0, res.Breakdown.DurationAdjustment, 1e-9)
	assert.Equal(t, 7, res.Score)
}

func TestIntakeSelfSeverity(t *testing.T) {
	assert.Equal(t, DefaultSelfSeverity, IntakeSelfSeverity(0))
	assert.Equal(t, 1, IntakeSelfSeverity(1))
	assert.Equal(t, 10, IntakeSelfSeverity(10))
	// non-zero out-of-range ratings are left for Score to clamp
	assert.Equal(t, -3, IntakeSelfSeverity(-3))
}
