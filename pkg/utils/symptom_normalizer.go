package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// SymptomVocabulary holds clinical shorthand and common misspellings seen at intake
type SymptomVocabulary struct {
	Abbreviations map[string]string `json:"abbreviations"`
	Typos         map[string]string `json:"typos"`
}

// SymptomNormalizer rewrites free-form symptom text into the phrasing the triage
// keyword tables use ("chest_pain" -> "chest pain", "SOB" -> "shortness of breath").
type SymptomNormalizer struct {
	rules []rewriteRule
}

type rewriteRule struct {
	re   *regexp.Regexp
	with string
}

var (
	separatorRe  = regexp.MustCompile(`[_\-/]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// DefaultSymptomVocabulary is used when no vocabulary file is configured
func DefaultSymptomVocabulary() SymptomVocabulary {
	return SymptomVocabulary{
		Abbreviations: map[string]string{
			"sob":  "shortness of breath",
			"cp":   "chest pain",
			"loc":  "unconscious",
			"mi":   "heart attack",
			"cva":  "stroke",
			"sz":   "seizure",
			"od":   "overdose",
			"abd":  "abdominal",
			"n/v":  "nausea vomiting",
			"uri":  "runny nose congestion",
			"ha":   "headache",
			"fx":   "fracture",
			"lac":  "deep cut",
			"dib":  "difficulty breathing",
			"rx":   "prescription",
			"f/u":  "follow-up",
			"gsw":  "major trauma",
			"mva":  "accident",
		},
		Typos: map[string]string{
			"diarrhoea":  "diarrhea",
			"diarhea":    "diarrhea",
			"feaver":     "fever",
			"fevor":      "fever",
			"headake":    "headache",
			"seizur":     "seizure",
			"sezure":     "seizure",
			"breathin":   "breathing",
			"bleading":   "bleeding",
			"vomitting":  "vomiting",
			"unconcious": "unconscious",
			"diabetis":   "diabetes",
		},
	}
}

// NewSymptomNormalizer loads a vocabulary from a JSON file
func NewSymptomNormalizer(path string) (*SymptomNormalizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symptom vocabulary: %w", err)
	}

	var vocab SymptomVocabulary
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse symptom vocabulary: %w", err)
	}

	return NewSymptomNormalizerFromVocabulary(vocab), nil
}

// NewSymptomNormalizerFromVocabulary builds a normalizer from an in-memory vocabulary
func NewSymptomNormalizerFromVocabulary(vocab SymptomVocabulary) *SymptomNormalizer {
	sn := &SymptomNormalizer{}
	// typos first so corrected words can still hit an abbreviation
	sn.rules = append(sn.rules, compileRules(vocab.Typos)...)
	sn.rules = append(sn.rules, compileRules(vocab.Abbreviations)...)
	return sn
}

// compileRules orders terms longest first so "n/v" wins over "v"; map
// iteration order must not leak into the output.
func compileRules(terms map[string]string) []rewriteRule {
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	rules := make([]rewriteRule, 0, len(keys))
	for _, k := range keys {
		term := strings.ToLower(strings.TrimSpace(k))
		if term == "" {
			continue
		}
		rules = append(rules, rewriteRule{
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(Canonical(term)) + `\b`),
			with: Canonical(terms[k]),
		})
	}
	return rules
}

// Normalize lower-cases text, turns separators into spaces, corrects known typos
// and expands abbreviations.
func (sn *SymptomNormalizer) Normalize(text string) string {
	out := Canonical(text)
	if out == "" {
		return ""
	}
	for _, r := range sn.rules {
		out = r.re.ReplaceAllLiteralString(out, r.with)
	}
	return out
}

// NormalizeAll normalizes every item and drops empty ones
func (sn *SymptomNormalizer) NormalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if n := sn.Normalize(item); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Canonical lower-cases s, maps separators to spaces and collapses whitespace
func Canonical(s string) string {
	s = separatorRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
