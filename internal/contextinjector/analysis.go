package contextinjector

import (
	"regexp"
	"strings"
)

// QuestionType is a closed classification of the shape of the question,
// used to pick between stage-specific phrasing.
type QuestionType string

const (
	QuestionFactual      QuestionType = "Factual"
	QuestionExplanatory  QuestionType = "Explanatory"
	QuestionProcedural   QuestionType = "Procedural"
	QuestionComparative  QuestionType = "Comparative"
	QuestionCreative     QuestionType = "Creative"
	QuestionAnalytical   QuestionType = "Analytical"
)

// TemporalFocus classifies whether the question is about the past, present,
// future, or something timeless.
type TemporalFocus string

const (
	TemporalHistorical TemporalFocus = "Historical"
	TemporalCurrent    TemporalFocus = "Current"
	TemporalFuture     TemporalFocus = "Future"
	TemporalTimeless   TemporalFocus = "Timeless"
)

// QuestionAnalysis is the output of analyzing a raw question.
type QuestionAnalysis struct {
	KeyConcepts      []string
	Entities         []string
	QuestionType     QuestionType
	TemporalFocus    TemporalFocus
	ComplexityScore  float64
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "with": true, "and": true, "or": true,
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "do": true, "does": true, "did": true,
	"can": true, "could": true, "would": true, "should": true, "will": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
}

var wordRegex = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_'-]*`)

var capitalizedEntityRegex = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:[A-Z][a-zA-Z0-9]*)*\b`)

// analyzeQuestion extracts key concepts, entities, question type, temporal
// focus and a complexity score by deterministic heuristics. An empty
// question produces empty concepts/entities rather than an error.
func analyzeQuestion(question string) QuestionAnalysis {
	if strings.TrimSpace(question) == "" {
		return QuestionAnalysis{QuestionType: QuestionFactual, TemporalFocus: TemporalTimeless}
	}

	words := wordRegex.FindAllString(question, -1)
	concepts := make([]string, 0, len(words))
	seenConcept := make(map[string]bool)
	for _, w := range words {
		lw := strings.ToLower(w)
		if stopwords[lw] || len(lw) < 3 {
			continue
		}
		if !seenConcept[lw] {
			seenConcept[lw] = true
			concepts = append(concepts, lw)
		}
	}

	entities := make([]string, 0)
	seenEntity := make(map[string]bool)
	for _, m := range capitalizedEntityRegex.FindAllString(question, -1) {
		if !seenEntity[m] {
			seenEntity[m] = true
			entities = append(entities, m)
		}
	}

	return QuestionAnalysis{
		KeyConcepts:     concepts,
		Entities:        entities,
		QuestionType:    classifyQuestionType(question),
		TemporalFocus:   classifyTemporalFocus(question),
		ComplexityScore: complexityScore(words),
	}
}

func classifyQuestionType(question string) QuestionType {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "compare") || strings.Contains(lower, "versus") || strings.Contains(lower, " vs "):
		return QuestionComparative
	case strings.Contains(lower, "how do i") || strings.Contains(lower, "how to") || strings.Contains(lower, "steps to"):
		return QuestionProcedural
	case strings.Contains(lower, "create") || strings.Contains(lower, "design") || strings.Contains(lower, "imagine") || strings.Contains(lower, "write a"):
		return QuestionCreative
	case strings.Contains(lower, "analyze") || strings.Contains(lower, "evaluate") || strings.Contains(lower, "assess"):
		return QuestionAnalytical
	case strings.HasPrefix(lower, "why") || strings.HasPrefix(lower, "explain"):
		return QuestionExplanatory
	default:
		return QuestionFactual
	}
}

func classifyTemporalFocus(question string) TemporalFocus {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "will") || strings.Contains(lower, "future") || strings.Contains(lower, "upcoming") || strings.Contains(lower, "plan to"):
		return TemporalFuture
	case strings.Contains(lower, "history") || strings.Contains(lower, "historically") || strings.Contains(lower, "used to") || strings.Contains(lower, "previously"):
		return TemporalHistorical
	case strings.Contains(lower, "now") || strings.Contains(lower, "currently") || strings.Contains(lower, "today") || strings.Contains(lower, "latest"):
		return TemporalCurrent
	default:
		return TemporalTimeless
	}
}

// complexityScore normalizes word count into [0,1]: short questions score
// near 0, questions at or beyond 40 words score 1.
func complexityScore(words []string) float64 {
	const saturationWordCount = 40
	score := float64(len(words)) / float64(saturationWordCount)
	if score > 1 {
		return 1
	}
	return score
}
