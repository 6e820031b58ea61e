// Package curation turns a finished consensus run's Curator answer into a
// stored knowledge fact. It is the only write path into the knowledge
// store: facts are created here or not at all.
package curation

import (
	"context"
	"regexp"
	"strings"

	"consensuscore/internal/logging"
	"consensuscore/internal/store"
)

// Curator distills curated answers into Facts and stores them through the
// knowledge store. Storage is idempotent on the fact fingerprint, so
// re-curating the same answer is a no-op.
type Curator struct {
	ks         *store.KnowledgeStore
	confidence float64
}

// New builds a Curator over ks. Curated facts carry a fixed confidence:
// they already survived all four consensus stages.
func New(ks *store.KnowledgeStore) *Curator {
	return &Curator{ks: ks, confidence: 0.9}
}

var entityPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_-]{2,}\b`)

const maxEntities = 8

// RecordCurated stores the curated answer as a fact keyed to its source
// question. Implements the pipeline's FactSink hook.
func (c *Curator) RecordCurated(ctx context.Context, conversationID, question, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil
	}

	fact := store.Fact{
		Content:    answer,
		Topic:      topicOf(question),
		Entities:   entitiesOf(answer),
		Source:     question,
		Confidence: c.confidence,
	}
	id, err := c.ks.StoreFact(ctx, fact)
	if err != nil {
		return err
	}
	logging.Knowledge("curated fact %d stored for conversation %s", id, conversationID)
	return nil
}

var topicStopwords = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "does": true, "the": true, "this": true,
	"that": true, "with": true, "about": true, "are": true, "is": true,
	"was": true, "were": true, "can": true, "could": true, "should": true,
}

// topicOf picks the first substantive word of the question as the fact's
// topic bucket.
func topicOf(question string) string {
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) >= 4 && !topicStopwords[w] {
			return w
		}
	}
	return "general"
}

// entitiesOf extracts up to maxEntities capitalized tokens from the answer.
func entitiesOf(answer string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range entityPattern.FindAllString(answer, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if len(out) == maxEntities {
			break
		}
	}
	return out
}
