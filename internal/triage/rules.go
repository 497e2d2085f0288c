package triage

// Tier is a keyword severity tier
type Tier string

const (
	TierCritical Tier = "critical"
	TierUrgent   Tier = "urgent"
	TierModerate Tier = "moderate"
	TierLow      Tier = "low"
	TierRoutine  Tier = "routine"
	TierNone     Tier = "none"
)

type keywordTier struct {
	tier     Tier
	score    int
	label    string
	keywords []string
}

// DefaultScore applies when no keyword matches: below moderate, above routine.
const DefaultScore = 3

// keywordTiers is checked in order; the first tier with any match wins.
var keywordTiers = []keywordTier{
	{
		tier: TierCritical, score: 10, label: "Critical symptom detected",
		keywords: []string{
			"chest pain", "difficulty breathing", "severe bleeding", "unconscious",
			"stroke", "heart attack", "seizure", "anaphylaxis", "severe allergic",
			"cannot breathe", "cardiac arrest", "major trauma", "not breathing",
			"choking", "overdose", "severe trauma",
		},
	},
	{
		tier: TierUrgent, score: 8, label: "Urgent symptoms",
		keywords: []string{
			"high fever", "severe pain", "vomiting blood", "confusion", "severe headache",
			"abdominal pain", "broken bone", "fracture", "deep cut", "burns",
			"blood in urine", "fainting", "severe vomiting", "stomach pain", "abdomen pain",
			"intense pain", "heavy bleeding", "accident", "injury", "breathing problem",
			"shortness of breath",
		},
	},
	{
		tier: TierModerate, score: 6, label: "Moderate symptoms",
		keywords: []string{
			"fever", "persistent cough", "moderate pain", "infection", "rash", "ear pain",
			"sore throat", "sprain", "minor burns", "dizziness", "nausea", "cough",
			"headache", "body ache", "joint pain", "vomiting", "diarrhea", "back pain",
			"neck pain", "swelling", "weakness", "pain",
		},
	},
	{
		tier: TierLow, score: 4, label: "Mild symptoms",
		keywords: []string{
			"cold", "mild headache", "runny nose", "minor pain", "mild cough", "fatigue",
			"minor injury", "skin irritation", "allergies", "sneezing", "congestion",
			"mild fever", "tired",
		},
	},
	{
		tier: TierRoutine, score: 2, label: "Routine visit",
		keywords: []string{
			"prescription refill", "follow up", "checkup", "vaccination",
			"health certificate", "routine exam", "consultation", "general checkup",
		},
	},
}

type ageBand struct {
	maxAge int
	factor float64
	label  string
}

// ageBands are inclusive upper bounds; anything past the last band uses ageFactorOldest.
var ageBands = []ageBand{
	{2, 1.5, "infant"},
	{5, 1.3, "toddler"},
	{12, 1.1, "child"},
	{60, 1.0, "adult"},
	{70, 1.3, "senior"},
	{80, 1.4, "elderly"},
}

const (
	ageFactorOldest = 1.5
	ageLabelOldest  = "very elderly"
)

type chronicWeight struct {
	condition string
	weight    float64
}

var chronicWeights = []chronicWeight{
	{"diabetes", 0.2},
	{"heart disease", 0.3},
	{"hypertension", 0.15},
	{"asthma", 0.2},
	{"copd", 0.25},
	{"cancer", 0.3},
	{"kidney disease", 0.25},
	{"liver disease", 0.2},
	{"immunocompromised", 0.3},
	{"pregnancy", 0.2},
}

// MaxChronicBoost caps the summed chronic condition weights
const MaxChronicBoost = 1.0

// SeverityDescription is the display label and recommended action for a score
type SeverityDescription struct {
	Level  string `json:"level"`
	Color  string `json:"color"`
	Action string `json:"action"`
}

var severityDescriptions = map[int]SeverityDescription{
	10: {"CRITICAL", "red", "Immediate attention required"},
	9:  {"CRITICAL", "red", "Immediate attention required"},
	8:  {"URGENT", "orange", "Needs prompt medical attention"},
	7:  {"URGENT", "orange", "Needs attention within 30 minutes"},
	6:  {"MODERATE", "yellow", "Should be seen within 1 hour"},
	5:  {"MODERATE", "yellow", "Should be seen within 1-2 hours"},
	4:  {"LOW", "green", "Can wait up to 2 hours"},
	3:  {"LOW", "green", "Can wait up to 4 hours"},
	2:  {"MINIMAL", "blue", "Teleconsultation recommended"},
	1:  {"MINIMAL", "blue", "Teleconsultation or scheduled visit"},
}

// baseWaitMinutes is the target maximum wait per score
var baseWaitMinutes = map[int]int{
	10: 0, 9: 5, 8: 10, 7: 20, 6: 35, 5: 50, 4: 70, 3: 90, 2: 110, 1: 120,
}

// DescribeSeverity returns the label for a score, clamping out-of-range scores
func DescribeSeverity(score int) SeverityDescription {
	return severityDescriptions[clampScore(score)]
}

// BaseWaitMinutes returns the target maximum wait for a score
func BaseWaitMinutes(score int) int {
	return baseWaitMinutes[clampScore(score)]
}

// AgeRiskFactor returns the age multiplier used by both scoring and queue priority
func AgeRiskFactor(age int) float64 {
	f, _ := lookupAgeBand(age)
	return f
}

func lookupAgeBand(age int) (float64, string) {
	if age < 0 {
		age = 0
	}
	for _, b := range ageBands {
		if age <= b.maxAge {
			return b.factor, b.label
		}
	}
	return ageFactorOldest, ageLabelOldest
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
