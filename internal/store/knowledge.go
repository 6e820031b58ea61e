package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"consensuscore/internal/embedding"
	"consensuscore/internal/errs"
	"consensuscore/internal/logging"
)

// KnowledgeStore is C2: a fingerprint-deduplicated fact store. It keeps an
// in-memory index over the facts persisted through Actor so dedup checks
// and topic/entity lookups never have to round-trip to SQLite, while the
// actor remains the single source of truth for durability.
type KnowledgeStore struct {
	actor    *Actor
	embedder embedding.EmbeddingEngine

	mu          sync.RWMutex
	byFP        map[string]int64   // fingerprint -> fact id
	byTopic     map[string][]int64 // topic -> fact ids
	byEntity    map[string][]int64 // entity -> fact ids
	loadedCount int
}

// NewKnowledgeStore builds a KnowledgeStore over actor and hydrates its
// secondary indexes from every fact already on disk.
func NewKnowledgeStore(ctx context.Context, actor *Actor) (*KnowledgeStore, error) {
	ks := &KnowledgeStore{
		actor:    actor,
		byFP:     make(map[string]int64),
		byTopic:  make(map[string][]int64),
		byEntity: make(map[string][]int64),
	}
	facts, err := actor.GetAllFactsSortedByDate(ctx)
	if err != nil {
		return nil, err
	}
	ks.mu.Lock()
	for _, f := range facts {
		ks.index(f)
	}
	ks.loadedCount = len(facts)
	ks.mu.Unlock()
	logging.Knowledge("knowledge store hydrated: %d facts indexed", ks.loadedCount)
	return ks, nil
}

func (ks *KnowledgeStore) index(f Fact) {
	ks.byFP[f.Fingerprint] = f.ID
	topic := strings.ToLower(f.Topic)
	ks.byTopic[topic] = append(ks.byTopic[topic], f.ID)
	for _, e := range f.Entities {
		key := strings.ToLower(e)
		ks.byEntity[key] = append(ks.byEntity[key], f.ID)
	}
}

// AttachEmbedder wires an embedding engine into the store. Once attached,
// every stored fact is embedded into the vector index and FindSimilarFacts
// blends vector hits into its keyword candidates. Call before any StoreFact;
// facts stored earlier keep working, they just have no vector entry.
func (ks *KnowledgeStore) AttachEmbedder(e embedding.EmbeddingEngine) {
	ks.embedder = e
}

// StoreFact dedups against the in-memory fingerprint index before touching
// the actor, so a known-duplicate fact never reaches SQLite at all. Storing
// a duplicate is a success and leaves the store unchanged: a duplicate
// found in the in-memory index returns the id of the fact already stored,
// while one detected only by the database's unique constraint returns 0.
func (ks *KnowledgeStore) StoreFact(ctx context.Context, f Fact) (int64, error) {
	if f.Fingerprint == "" {
		f.Fingerprint = ComputeFingerprint(f.Topic, f.Content)
	}

	ks.mu.RLock()
	existing, dup := ks.byFP[f.Fingerprint]
	ks.mu.RUnlock()
	if dup {
		logging.KnowledgeDebug("duplicate fact %s ignored", f.Fingerprint)
		return existing, nil
	}

	id, err := ks.actor.StoreFact(ctx, f)
	if errors.Is(err, errs.ErrConflict) {
		// The index missed a fact already on disk (another writer raced
		// us there); the insert was a no-op, which is what we wanted.
		logging.KnowledgeDebug("duplicate fact %s already on disk", f.Fingerprint)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	f.ID = id

	ks.mu.Lock()
	ks.index(f)
	ks.mu.Unlock()

	ks.embedFact(ctx, f)
	return id, nil
}

// embedFact writes f's embedding into the vector index. Best effort: a
// missing embedder or a failed embedding call degrades similarity search
// back to the keyword path, it never fails the store.
func (ks *KnowledgeStore) embedFact(ctx context.Context, f Fact) {
	if ks.embedder == nil {
		return
	}
	vec, err := ks.embedder.Embed(ctx, f.Content)
	if err != nil {
		logging.KnowledgeWarn("embedding fact %d failed: %v", f.ID, err)
		return
	}
	if err := ks.actor.StoreEmbedding(ctx, f.ID, vec); err != nil {
		logging.KnowledgeWarn("storing embedding for fact %d failed: %v", f.ID, err)
	}
}

// CheckFactExists answers from the in-memory index — O(1), no actor round trip.
func (ks *KnowledgeStore) CheckFactExists(fingerprint string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, ok := ks.byFP[fingerprint]
	return ok
}

// FindByTopic returns the ids of facts indexed under topic.
func (ks *KnowledgeStore) FindByTopic(topic string) []int64 {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return append([]int64(nil), ks.byTopic[strings.ToLower(topic)]...)
}

// FindByEntities returns the union of fact ids indexed under any of entities.
func (ks *KnowledgeStore) FindByEntities(entities []string) []int64 {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	seen := make(map[int64]struct{})
	var out []int64
	for _, e := range entities {
		for _, id := range ks.byEntity[strings.ToLower(e)] {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// GetFactsByIDs resolves fact ids to full Fact rows via the actor.
func (ks *KnowledgeStore) GetFactsByIDs(ctx context.Context, ids []int64) ([]Fact, error) {
	return ks.actor.GetFactsByIDs(ctx, ids)
}

// LoadRecentFacts delegates to the actor — temporal filtering is cheap
// enough in SQLite that no secondary index is needed for it.
func (ks *KnowledgeStore) LoadRecentFacts(ctx context.Context, cutoff time.Time) ([]Fact, error) {
	return ks.actor.LoadRecentFacts(ctx, cutoff)
}

// FindSimilarFacts runs the actor's keyword pass and, when an embedding
// engine is attached, blends in vector-index hits: keyword matches keep
// their position, vector-only matches fill the remaining slots in
// similarity order.
func (ks *KnowledgeStore) FindSimilarFacts(ctx context.Context, content string, limit int) ([]Fact, error) {
	keyword, err := ks.actor.FindSimilarFacts(ctx, content, limit)
	if err != nil {
		return nil, err
	}
	if ks.embedder == nil || len(keyword) >= limit {
		return keyword, nil
	}

	vec, err := ks.embedder.Embed(ctx, content)
	if err != nil {
		logging.KnowledgeWarn("query embedding failed, keyword results only: %v", err)
		return keyword, nil
	}
	matches, err := ks.actor.SearchSimilar(ctx, vec, limit)
	if err != nil {
		logging.KnowledgeWarn("vector search failed, keyword results only: %v", err)
		return keyword, nil
	}

	seen := make(map[int64]bool, len(keyword))
	for _, f := range keyword {
		seen[f.ID] = true
	}
	var extraIDs []int64
	for _, m := range matches {
		if !seen[m.FactID] {
			seen[m.FactID] = true
			extraIDs = append(extraIDs, m.FactID)
		}
	}
	if len(extraIDs) == 0 {
		return keyword, nil
	}
	extra, err := ks.actor.GetFactsByIDs(ctx, extraIDs)
	if err != nil {
		logging.KnowledgeWarn("resolving vector matches failed: %v", err)
		return keyword, nil
	}
	// GetFactsByIDs returns rows in table order; restore similarity order.
	byID := make(map[int64]Fact, len(extra))
	for _, f := range extra {
		byID[f.ID] = f
	}
	out := keyword
	for _, id := range extraIDs {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordAccess bumps a fact's access bookkeeping.
func (ks *KnowledgeStore) RecordAccess(ctx context.Context, id int64) error {
	return ks.actor.RecordFactAccess(ctx, id)
}

// AllFactsSortedByDate delegates to the actor.
func (ks *KnowledgeStore) AllFactsSortedByDate(ctx context.Context) ([]Fact, error) {
	return ks.actor.GetAllFactsSortedByDate(ctx)
}

// Size returns the number of facts currently indexed in memory.
func (ks *KnowledgeStore) Size() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.byFP)
}
