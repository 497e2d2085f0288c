// Package triage implements the rule-based severity scoring used at check-in.
// Scoring is a pure function of its input: the same input always produces the
// same score and the same explanation, line for line.
package triage

import (
	"fmt"
	"math"
	"strings"

	"github.com/zatekoja/smartcare/backend/pkg/config"
	"github.com/zatekoja/smartcare/backend/pkg/utils"
)

// DefaultSelfSeverity is assumed at intake when a patient gives no rating
const DefaultSelfSeverity = 5

// IntakeSelfSeverity fills in DefaultSelfSeverity for a missing (zero) rating
func IntakeSelfSeverity(v int) int {
	if v == 0 {
		return DefaultSelfSeverity
	}
	return v
}

// Input is everything the engine looks at
type Input struct {
	Symptoms          []string `json:"symptoms"`
	Description       string   `json:"description"`
	Age               int      `json:"age"`
	ChronicConditions []string `json:"chronic_conditions"`
	DurationHours     float64  `json:"duration_hours"`
	IsEmergency       bool     `json:"is_emergency"`
	// SelfSeverity is 1-10; 0 means not reported and contributes nothing here.
	// Intake paths substitute IntakeSelfSeverity first. Out-of-range values are clamped.
	SelfSeverity int `json:"self_severity"`
}

// Breakdown lists every contribution to the raw score
type Breakdown struct {
	MatchedTier            Tier     `json:"matched_tier"`
	MatchedKeywords        []string `json:"matched_keywords"`
	BaseScore              int      `json:"base_score"`
	AgeFactor              float64  `json:"age_factor"`
	AgeContribution        float64  `json:"age_contribution"`
	ChronicBoost           float64  `json:"chronic_boost"`
	ChronicMatched         []string `json:"chronic_matched"`
	ChronicContribution    float64  `json:"chronic_contribution"`
	DurationAdjustment     float64  `json:"duration_adjustment"`
	EmergencyContribution  float64  `json:"emergency_contribution"`
	SelfReportContribution float64  `json:"self_report_contribution"`
	RawScore               float64  `json:"raw_score"`
}

// Result is the engine's verdict
type Result struct {
	Score                int       `json:"triage_score"`
	SeverityLevel        string    `json:"severity_level"`
	Color                string    `json:"color"`
	RecommendedAction    string    `json:"recommended_action"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	TeleconsultEligible  bool      `json:"teleconsult_eligible"`
	Explanation          []string  `json:"explanation"`
	Breakdown            Breakdown `json:"breakdown"`
}

// Engine scores patients. It holds only read-only configuration and is safe for
// concurrent use.
type Engine struct {
	cfg        config.TriageConfig
	normalizer *utils.SymptomNormalizer
}

// NewEngine creates an engine. A nil normalizer uses the built-in vocabulary.
func NewEngine(cfg config.TriageConfig, normalizer *utils.SymptomNormalizer) *Engine {
	if normalizer == nil {
		normalizer = utils.NewSymptomNormalizerFromVocabulary(utils.DefaultSymptomVocabulary())
	}
	return &Engine{cfg: cfg, normalizer: normalizer}
}

// Score runs the full scoring pipeline
func (e *Engine) Score(in Input) Result {
	var b Breakdown
	var explain []string

	// 1. keyword tiers
	symptoms := e.normalizer.NormalizeAll(in.Symptoms)
	text := strings.TrimSpace(strings.Join(symptoms, " ") + " " + e.normalizer.Normalize(in.Description))
	b.MatchedTier, b.BaseScore, b.MatchedKeywords = matchTier(text)
	if b.MatchedTier == TierNone {
		explain = append(explain, fmt.Sprintf("No recognised symptom keywords: default score %d", DefaultScore))
	} else {
		explain = append(explain, fmt.Sprintf("%s: %s (base score %d)",
			tierLabel(b.MatchedTier), strings.Join(b.MatchedKeywords, ", "), b.BaseScore))
	}
	raw := float64(b.BaseScore)

	// 2. age
	factor, band := lookupAgeBand(in.Age)
	b.AgeFactor = factor
	b.AgeContribution = (factor - 1.0) * 2
	if b.AgeContribution != 0 {
		explain = append(explain, fmt.Sprintf("Age %d (%s): risk factor %.2f (%+.2f)", in.Age, band, factor, b.AgeContribution))
	}
	raw += b.AgeContribution

	// 3. chronic conditions
	b.ChronicBoost, b.ChronicMatched = e.chronicBoost(in.ChronicConditions)
	b.ChronicContribution = b.ChronicBoost * 2
	if b.ChronicContribution > 0 {
		explain = append(explain, fmt.Sprintf("Chronic conditions: %s (%+.2f)", strings.Join(b.ChronicMatched, ", "), b.ChronicContribution))
	}
	raw += b.ChronicContribution

	// 4. duration
	adj, note := e.durationAdjustment(in.DurationHours)
	b.DurationAdjustment = adj
	if in.DurationHours > 0 {
		explain = append(explain, fmt.Sprintf("Symptom duration %.1fh: %s (%+.2f)", in.DurationHours, note, adj))
	}
	raw += adj

	// 5. manual emergency flag
	if in.IsEmergency {
		b.EmergencyContribution = e.cfg.EmergencyFlagBoost
		explain = append(explain, fmt.Sprintf("Emergency flag set (%+.2f)", b.EmergencyContribution))
	}
	raw += b.EmergencyContribution

	// 6. self report
	if in.SelfSeverity != 0 {
		s := clampScore(in.SelfSeverity)
		b.SelfReportContribution = float64(s) / 10 * e.cfg.SelfReportWeight
		explain = append(explain, fmt.Sprintf("Self-reported severity %d/10 (%+.2f)", s, b.SelfReportContribution))
	}
	raw += b.SelfReportContribution

	// 7. round and clamp
	b.RawScore = math.Round(raw*100) / 100
	score := clampScore(int(math.RoundToEven(raw)))
	desc := DescribeSeverity(score)
	if float64(score) != math.RoundToEven(raw) {
		explain = append(explain, fmt.Sprintf("Raw score %.2f clamped to %d", b.RawScore, score))
	}
	explain = append(explain, fmt.Sprintf("Final triage score %d/10 (%s): %s", score, desc.Level, desc.Action))

	return Result{
		Score:                score,
		SeverityLevel:        desc.Level,
		Color:                desc.Color,
		RecommendedAction:    desc.Action,
		EstimatedWaitMinutes: BaseWaitMinutes(score),
		TeleconsultEligible:  score <= e.cfg.TeleconsultMaxScore && !in.IsEmergency,
		Explanation:          explain,
		Breakdown:            b,
	}
}

// ChronicBoost returns the capped chronic boost used by queue priority
func (e *Engine) ChronicBoost(conditions []string) float64 {
	boost, _ := e.chronicBoost(conditions)
	return boost
}

func (e *Engine) chronicBoost(conditions []string) (float64, []string) {
	normalized := e.normalizer.NormalizeAll(conditions)
	matched := []string{}
	total := 0.0
	for _, cw := range chronicWeights {
		for _, c := range normalized {
			if strings.Contains(c, cw.condition) {
				total += cw.weight
				matched = append(matched, cw.condition)
				break
			}
		}
	}
	if total > MaxChronicBoost {
		total = MaxChronicBoost
	}
	return math.Round(total*100) / 100, matched
}

func (e *Engine) durationAdjustment(hours float64) (float64, string) {
	switch {
	case hours < e.cfg.RecentOnsetHours:
		return 0, "recent onset"
	case hours < e.cfg.ShortDurationHours:
		return e.cfg.ShortDurationBoost, "under a day"
	case hours < e.cfg.MediumDurationHours:
		return e.cfg.MediumDurationBoost, "one to three days"
	default:
		return e.cfg.LongDurationBoost, "persisting over three days"
	}
}

func matchTier(text string) (Tier, int, []string) {
	if text == "" {
		return TierNone, DefaultScore, []string{}
	}
	for _, kt := range keywordTiers {
		var found []string
		for _, kw := range kt.keywords {
			if strings.Contains(text, kw) {
				found = append(found, kw)
			}
		}
		if len(found) > 0 {
			return kt.tier, kt.score, found
		}
	}
	return TierNone, DefaultScore, []string{}
}

func tierLabel(t Tier) string {
	for _, kt := range keywordTiers {
		if kt.tier == t {
			return kt.label
		}
	}
	return string(t)
}
