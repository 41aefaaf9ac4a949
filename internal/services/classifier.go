package services

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"healthbridge/internal/config"
	"healthbridge/internal/models"
)

// Task category keys. These match the task identifiers of the external
// multi-agent runner's configuration.
const (
	TaskSymptomChecker     = "symptom_checker_task"
	TaskTreatmentGuideline = "treatment_guideline_task"
	TaskMedicalHistory     = "medical_history_task"
	TaskAppointmentBooking = "appointment_booking_task"
	TaskGeneralMedical     = "general_medical_task"
)

// fallbackConfidence is the fixed score assigned when no category clears the
// floor threshold and the general task is selected instead.
const fallbackConfidence = 0.5

// TaskPattern is one category's weighted keyword list.
type TaskPattern struct {
	Key      string
	Keywords []string
	Weight   float64
}

// defaultTaskPatterns returns the reference keyword tables. Declaration order
// matters: ties are broken by the first declared category.
func defaultTaskPatterns() []TaskPattern {
	return []TaskPattern{
		{
			Key: TaskSymptomChecker,
			Keywords: []string{
				"symptom", "pain", "ache", "feel", "hurt", "unwell", "nausea",
				"dizziness", "fever", "headache", "cough", "shortness of breath",
				"rash", "swelling", "fatigue", "weakness", "what does", "what could",
			},
			Weight: 1.0,
		},
		{
			Key: TaskTreatmentGuideline,
			Keywords: []string{
				"treatment", "medication", "therapy", "prescription", "drug",
				"how to treat", "cure", "remedy", "management", "intervention",
				"dosage", "medicate", "what medicine", "what drug", "should i take",
			},
			Weight: 1.0,
		},
		{
			Key: TaskMedicalHistory,
			Keywords: []string{
				"history", "record", "previous", "past", "diagnosis", "chronic",
				"condition", "allergy", "allergic", "family history", "medical background",
				"have had", "suffered from", "been diagnosed",
			},
			Weight: 1.0,
		},
		{
			Key: TaskAppointmentBooking,
			Keywords: []string{
				"appointment", "schedule", "booking", "visit", "availability",
				"book a", "book an", "make an appointment", "when can i", "doctor available",
			},
			Weight: 1.0,
		},
		{
			Key: TaskGeneralMedical,
			Keywords: []string{
				"what is", "explain", "define", "information about", "tell me about",
				"overview of", "understanding", "education about",
			},
			Weight: 0.8,
		},
	}
}

var interrogatives = []string{"what", "how", "why", "when", "where"}

// TaskClassifier scores queries against task categories using weighted
// keyword and fuzzy matching. Pure and deterministic for fixed tables.
type TaskClassifier struct {
	patterns []TaskPattern
	policy   config.ClassifierConfig
}

// NewTaskClassifier creates a classifier with the reference keyword tables
// and the given scoring policy.
func NewTaskClassifier(policy config.ClassifierConfig) *TaskClassifier {
	return &TaskClassifier{
		patterns: defaultTaskPatterns(),
		policy:   policy,
	}
}

// AvailableTaskKeys lists the task categories in declaration order.
func AvailableTaskKeys() []string {
	patterns := defaultTaskPatterns()
	keys := make([]string, 0, len(patterns))
	for _, p := range patterns {
		keys = append(keys, p.Key)
	}
	return keys
}

// NewTaskClassifierWithPatterns creates a classifier with custom tables.
func NewTaskClassifierWithPatterns(patterns []TaskPattern, policy config.ClassifierConfig) *TaskClassifier {
	return &TaskClassifier{
		patterns: patterns,
		policy:   policy,
	}
}

// Classify scores the query against every category and selects the best
// match. Role adjusts category weights: treatment guidance is boosted for
// doctors, symptom checking for patients.
func (c *TaskClassifier) Classify(query string, role string) models.TaskClassification {
	queryLower := strings.ToLower(query)
	tokens := strings.FieldsFunc(queryLower, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '.' || r == '?' || r == '!'
	})

	scores := make(map[string]float64, len(c.patterns))
	for _, pattern := range c.patterns {
		weight := c.roleAdjustedWeight(pattern, role)

		var score float64
		for _, keyword := range pattern.Keywords {
			if strings.Contains(queryLower, keyword) {
				score += weight
				if containsWholeWord(queryLower, keyword) {
					score += c.policy.WordBoundaryBonus
				}
			} else if c.policy.FuzzyEnabled && fuzzyTokenMatch(keyword, tokens, c.policy.FuzzyThreshold) {
				score += weight * c.policy.FuzzyDiscount
			}
		}
		scores[pattern.Key] = score
	}

	if strings.Contains(query, "?") && containsAny(queryLower, interrogatives) {
		scores[TaskGeneralMedical] += c.policy.QuestionBonus
	}

	// Maximum score wins; ties go to the first declared category.
	selectedKey := c.patterns[0].Key
	selectedScore := scores[selectedKey]
	for _, pattern := range c.patterns[1:] {
		if scores[pattern.Key] > selectedScore {
			selectedKey = pattern.Key
			selectedScore = scores[pattern.Key]
		}
	}

	if selectedScore < c.policy.FloorThreshold {
		selectedKey = TaskGeneralMedical
		selectedScore = fallbackConfidence * 3.0 // confidence normalizes back to 0.5
	}

	confidence := math.Min(selectedScore/3.0, 1.0)
	confidence = math.Round(confidence*100) / 100

	return models.TaskClassification{
		TaskKey:    selectedKey,
		Confidence: confidence,
		Scores:     scores,
	}
}

func (c *TaskClassifier) roleAdjustedWeight(pattern TaskPattern, role string) float64 {
	if role == models.RoleDoctor {
		switch pattern.Key {
		case TaskTreatmentGuideline:
			return 1.2
		case TaskGeneralMedical:
			return 0.6
		}
		return pattern.Weight
	}

	// Patient (and unknown roles) lean toward symptom checking and general
	// information.
	switch pattern.Key {
	case TaskSymptomChecker:
		return 1.2
	case TaskGeneralMedical:
		return 1.0
	}
	return pattern.Weight
}

// containsWholeWord reports whether keyword occurs in text bounded by
// non-alphanumeric runes on both sides.
func containsWholeWord(text, keyword string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start

		leftOK := idx == 0 || !isWordRune(rune(text[idx-1]))
		end := idx + len(keyword)
		rightOK := end == len(text) || !isWordRune(rune(text[end]))
		if leftOK && rightOK {
			return true
		}

		start = idx + 1
		if start >= len(text) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fuzzyTokenMatch reports whether any query token is within the similarity
// threshold of the keyword. Multi-word keywords are skipped; substring
// matching already covers them.
func fuzzyTokenMatch(keyword string, tokens []string, threshold float64) bool {
	if strings.ContainsRune(keyword, ' ') {
		return false
	}
	for _, token := range tokens {
		if tokenSimilarity(keyword, token) >= threshold {
			return true
		}
	}
	return false
}

// tokenSimilarity is a normalized Levenshtein similarity in [0,1].
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
