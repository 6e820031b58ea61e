package preprocessor

import (
	"context"

	"consensuscore/internal/config"
	"consensuscore/internal/events"
	"consensuscore/internal/logging"
	"consensuscore/internal/repofacts"

	"golang.org/x/sync/errgroup"
)

// DirectResponder is the declared extension point for the "simple-fact
// intent with context" path. Nil by default: the direct-response path is
// wired for hosts that want it, but PreProcessor doesn't assume one
// exists, and routes to the consensus pipeline when it doesn't.
type DirectResponder interface {
	Respond(ctx context.Context, question, context string) (string, error)
}

// PreProcessor is C12.
type PreProcessor struct {
	Classifier IntentClassifier
	Searcher   CodeSearcher
	Memory     MemoryAccessor
	Temporal   TemporalStore
	Security   *SecurityPolicy
	Precedent  PrecedentAnalyzer
	Sink       events.Sink
	Facts      *repofacts.Facts

	// DirectResponder is nil unless a caller explicitly wires one in.
	DirectResponder DirectResponder

	cfg config.PreProcessorConfig
}

// New builds a PreProcessor. cfg's zero value defaults the routing
// threshold to 0.7.
func New(cfg config.PreProcessorConfig) *PreProcessor {
	if cfg.ComplexityRouteThreshold <= 0 {
		cfg.ComplexityRouteThreshold = 0.7
	}
	return &PreProcessor{Classifier: HeuristicClassifier{}, Sink: events.NoopSink{}, cfg: cfg}
}

// Process classifies intent, derives and runs actions in parallel, then
// decides whether to route to the consensus pipeline or answer directly.
func (p *PreProcessor) Process(ctx context.Context, conversationID, question string, relatedFiles []string) Result {
	classifier := p.Classifier
	if classifier == nil {
		classifier = HeuristicClassifier{}
	}

	intent, err := classifier.Classify(ctx, question)
	if err != nil {
		logging.AutonomyWarn("intent classification failed for conversation=%s: %v", conversationID, err)
		intent = classifyHeuristically(question)
	}

	actions := selectActions(intent, relatedFiles)
	outcomes := p.runActions(ctx, conversationID, question, actions)

	var gatheredContext string
	anyContext := false
	for i, o := range outcomes {
		if i > 0 {
			gatheredContext += "\n"
		}
		gatheredContext += o.Note
		if o.Err == nil {
			anyContext = true
		}
	}

	result := Result{Intent: intent, Actions: outcomes, AggregatedContext: gatheredContext}

	// Route to consensus if the intent is complex, or if nothing useful
	// was gathered.
	if intent.Complexity > p.cfg.ComplexityRouteThreshold || !anyContext {
		result.RouteToConsensus = true
		return result
	}

	if intent.PrimaryIntent == "simple_fact" && p.DirectResponder != nil {
		answer, err := p.DirectResponder.Respond(ctx, question, gatheredContext)
		if err != nil {
			logging.AutonomyWarn("direct responder failed for conversation=%s: %v", conversationID, err)
			result.RouteToConsensus = true
			return result
		}
		result.DirectAnswer = answer
		return result
	}

	// No direct responder wired, or the intent isn't a clean simple-fact
	// case: fall back to routing rather than guessing an answer.
	result.RouteToConsensus = true
	return result
}

// runActions executes every selected action concurrently via an errgroup
// fan-out. A failed action degrades to a note rather than aborting the
// request.
func (p *PreProcessor) runActions(ctx context.Context, conversationID, question string, actions []Action) []ActionOutcome {
	outcomes := make([]ActionOutcome, len(actions))
	g, gctx := errgroup.WithContext(ctx)
	for i, action := range actions {
		i, action := i, action
		g.Go(func() error {
			outcomes[i] = p.executeAction(gctx, conversationID, question, action)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
