// Package contextinjector implements the context injector (C7): for a
// (question, stage) pair it retrieves candidate facts from the knowledge
// store along three concurrent streams, ranks them, and formats a
// stage-specific context block.
package contextinjector

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"consensuscore/internal/config"
	"consensuscore/internal/consensus"
	"consensuscore/internal/learner"
	"consensuscore/internal/logging"
	"consensuscore/internal/store"
)

// LearnedSource is the slice of the continuous learner the injector pulls
// on request: warnings and strategies from past runs, appended after the
// fact block. Optional; events only ever flow pipeline -> learner, the
// learner's output is pulled from here, never pushed into a running stage.
type LearnedSource interface {
	GetLearnedContext(question, stage string, limit int) learner.LearnedContext
}

// Injector is C7.
type Injector struct {
	ks  *store.KnowledgeStore
	cfg config.ContextInjectorConfig

	// Learned is pulled once per Inject when non-nil.
	Learned LearnedSource
}

// NewInjector builds an Injector over ks using cfg.
func NewInjector(ks *store.KnowledgeStore, cfg config.ContextInjectorConfig) *Injector {
	if cfg.MaxFactsPerStage <= 0 {
		cfg.MaxFactsPerStage = 10
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = 0.7
	}
	return &Injector{ks: ks, cfg: cfg}
}

// Result is what Inject returns: the formatted context block plus the
// ranked facts that went into it (Inject has already recorded an access
// for each), so the caller can surface relevance scores in analytics.
type Result struct {
	FormattedContext string
	Facts             []RankedFact
}

// Inject retrieves, ranks, caps and formats the context for one
// (question, stage) pair.
func (inj *Injector) Inject(ctx context.Context, question string, stage consensus.Stage) (Result, error) {
	timer := logging.StartTimer(logging.CategoryContext, "Inject")
	defer timer.Stop()

	analysis := analyzeQuestion(question)
	if question == "" {
		logging.ContextDebug("empty question: returning empty context for stage=%s", stage)
		return Result{}, nil
	}

	candidates, err := inj.retrieve(ctx, analysis)
	if err != nil {
		return Result{}, err
	}

	now := time.Now()
	ranked := make([]RankedFact, 0, len(candidates))
	for _, f := range candidates {
		rel := scoreFact(f, analysis, inj.cfg.TemporalWindowDays, now)
		if rel < inj.cfg.RelevanceThreshold {
			continue
		}
		ranked = append(ranked, RankedFact{Fact: f, Relevance: rel})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Relevance > ranked[j].Relevance })

	stageLimit := inj.stageCap(stage)
	if len(ranked) > stageLimit {
		ranked = ranked[:stageLimit]
	}

	for _, rf := range ranked {
		if err := inj.ks.RecordAccess(ctx, rf.Fact.ID); err != nil {
			logging.ContextWarn("record access failed for fact %d: %v", rf.Fact.ID, err)
		}
	}

	logging.Context("stage=%s: %d candidates, %d surfaced after threshold+cap", stage, len(candidates), len(ranked))

	formatted := formatContext(stage, question, ranked)
	if inj.Learned != nil {
		formatted = appendLearnedSection(formatted, inj.Learned.GetLearnedContext(question, stage.String(), 5))
	}
	return Result{FormattedContext: formatted, Facts: ranked}, nil
}

// stageCap applies per-stage caps: Generator gets the full configured cap,
// Refiner/Validator get half, Curator gets the full cap.
func (inj *Injector) stageCap(stage consensus.Stage) int {
	switch stage {
	case consensus.StageRefiner, consensus.StageValidator:
		half := inj.cfg.MaxFactsPerStage / 2
		if half < 1 {
			half = 1
		}
		return half
	default:
		return inj.cfg.MaxFactsPerStage
	}
}

// retrieve runs the three retrieval streams concurrently via errgroup and
// deduplicates the union by fact id.
func (inj *Injector) retrieve(ctx context.Context, analysis QuestionAnalysis) ([]store.Fact, error) {
	var temporal, thematic []store.Fact
	var entityIDs []int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cutoff := time.Now().AddDate(0, 0, -windowDaysOrDefault(inj.cfg.TemporalWindowDays))
		facts, err := inj.ks.LoadRecentFacts(gctx, cutoff)
		if err != nil {
			logging.ContextWarn("temporal retrieval failed: %v", err)
			return nil
		}
		temporal = facts
		return nil
	})

	g.Go(func() error {
		seen := make(map[int64]bool)
		for _, concept := range analysis.KeyConcepts {
			facts, err := inj.ks.FindSimilarFacts(gctx, concept, inj.cfg.MaxFactsPerStage)
			if err != nil {
				logging.ContextWarn("thematic retrieval failed for concept %q: %v", concept, err)
				continue
			}
			for _, f := range facts {
				if !seen[f.ID] {
					seen[f.ID] = true
					thematic = append(thematic, f)
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		entityIDs = inj.ks.FindByEntities(analysis.Entities)
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var entityFacts []store.Fact
	if len(entityIDs) > 0 {
		facts, err := inj.ks.GetFactsByIDs(ctx, entityIDs)
		if err != nil {
			logging.ContextWarn("entity retrieval failed: %v", err)
		} else {
			entityFacts = facts
		}
	}

	return dedupeFacts(temporal, thematic, entityFacts), nil
}

func dedupeFacts(streams ...[]store.Fact) []store.Fact {
	seen := make(map[int64]bool)
	var out []store.Fact
	for _, stream := range streams {
		for _, f := range stream {
			if !seen[f.ID] {
				seen[f.ID] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func windowDaysOrDefault(days int) int {
	if days <= 0 {
		return 30
	}
	return days
}
