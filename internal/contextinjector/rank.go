package contextinjector

import (
	"strings"
	"time"

	"consensuscore/internal/store"
)

// RankedFact pairs a stored fact with its computed relevance to one
// question/stage pair.
type RankedFact struct {
	Fact      store.Fact
	Relevance float64
}

// relevanceWeights blend the three component scores. Equal thirds is the
// simplest convex combination that treats no stream as privileged over the
// others; nothing about the temporal/thematic/entity signals argues for
// weighting one more heavily than the rest.
const (
	temporalWeight = 1.0 / 3.0
	thematicWeight = 1.0 / 3.0
	entityWeight   = 1.0 / 3.0
)

func scoreFact(f store.Fact, analysis QuestionAnalysis, windowDays int, now time.Time) float64 {
	temporal := temporalRelevance(f, analysis, windowDays, now)
	thematic := thematicRelevance(f, analysis)
	entity := entityRelevance(f, analysis)
	return temporal*temporalWeight + thematic*thematicWeight + entity*entityWeight
}

// temporalRelevance is max(0, 1 - age_days/window_days) when the question's
// temporal focus is Current, else a flat 0.5.
func temporalRelevance(f store.Fact, analysis QuestionAnalysis, windowDays int, now time.Time) float64 {
	if analysis.TemporalFocus != TemporalCurrent {
		return 0.5
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	ageDays := now.Sub(f.CreatedAt).Hours() / 24
	rel := 1 - ageDays/float64(windowDays)
	if rel < 0 {
		return 0
	}
	return rel
}

// thematicRelevance is the fraction of the question's key concepts that
// appear in the fact's content.
func thematicRelevance(f store.Fact, analysis QuestionAnalysis) float64 {
	if len(analysis.KeyConcepts) == 0 {
		return 0
	}
	content := strings.ToLower(f.Content)
	hits := 0
	for _, concept := range analysis.KeyConcepts {
		if strings.Contains(content, concept) {
			hits++
		}
	}
	return float64(hits) / float64(len(analysis.KeyConcepts))
}

// entityRelevance is the fraction of the question's entities that appear
// in the fact's content.
func entityRelevance(f store.Fact, analysis QuestionAnalysis) float64 {
	if len(analysis.Entities) == 0 {
		return 0
	}
	content := strings.ToLower(f.Content)
	hits := 0
	for _, e := range analysis.Entities {
		if strings.Contains(content, strings.ToLower(e)) {
			hits++
		}
	}
	return float64(hits) / float64(len(analysis.Entities))
}
