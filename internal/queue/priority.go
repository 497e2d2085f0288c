package queue

import "math"

// Weights configures the composite priority. The weighted part is bounded by
// 1.0, so EmergencyBonus > 1 puts every emergency above every non-emergency.
type Weights struct {
	Severity       float64 `json:"severity"`
	Wait           float64 `json:"wait_time"`
	Age            float64 `json:"age"`
	Chronic        float64 `json:"chronic"`
	Emergency      float64 `json:"emergency"`
	EmergencyBonus float64 `json:"emergency_bonus"`
	MaxWaitMinutes float64 `json:"max_wait_minutes"`
	MaxAgeFactor   float64 `json:"max_age_factor"`
}

// DefaultWeights returns the production weighting
func DefaultWeights() Weights {
	return Weights{
		Severity:       0.40,
		Wait:           0.25,
		Age:            0.15,
		Chronic:        0.10,
		Emergency:      0.10,
		EmergencyBonus: 10.0,
		MaxWaitMinutes: 180,
		MaxAgeFactor:   1.5,
	}
}

// Signals are the raw inputs of the composite priority
type Signals struct {
	Severity     int
	WaitMinutes  float64
	AgeFactor    float64
	ChronicBoost float64
	IsEmergency  bool
}

// Priority computes the composite priority, rounded to 4 decimals
func (w Weights) Priority(s Signals) float64 {
	severity := float64(s.Severity) / 10
	wait := 0.0
	if w.MaxWaitMinutes > 0 && s.WaitMinutes > 0 {
		wait = math.Min(s.WaitMinutes/w.MaxWaitMinutes, 1.0)
	}
	age := 0.0
	if w.MaxAgeFactor > 0 {
		age = math.Min(s.AgeFactor/w.MaxAgeFactor, 1.0)
	}
	chronic := math.Min(math.Max(s.ChronicBoost, 0), 1.0)
	emergency := 0.0
	if s.IsEmergency {
		emergency = 1.0
	}

	p := severity*w.Severity +
		wait*w.Wait +
		age*w.Age +
		chronic*w.Chronic +
		emergency*w.Emergency
	if s.IsEmergency {
		p += w.EmergencyBonus
	}
	return math.Round(p*10000) / 10000
}
