// Package pipeline implements the consensus pipeline (C9): the
// single-writer state machine that drives a question through the four
// fixed stages, streaming tokens from a model gateway, fact-checking and
// quality-gating each stage's answer, and recording cost/usage.
package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"consensuscore/internal/approval"
	"consensuscore/internal/config"
	"consensuscore/internal/consensus"
	"consensuscore/internal/contextinjector"
	"consensuscore/internal/events"
	"consensuscore/internal/factcheck"
	"consensuscore/internal/logging"
	"consensuscore/internal/modelgateway"
	"consensuscore/internal/promptbuilder"
	"consensuscore/internal/quality"
	"consensuscore/internal/repofacts"
)

// Learner is the minimal view the pipeline needs of the continuous learner:
// notify-only, never blocking or failing the pipeline — a slow or broken
// learner must never turn into a failed user request.
type Learner interface {
	NotifyStageCompleted(ctx context.Context, conversationID string, result consensus.StageResult)
}

// NoopLearner discards every notification; the default until C10 is wired in.
type NoopLearner struct{}

// NotifyStageCompleted implements Learner.
func (NoopLearner) NotifyStageCompleted(context.Context, string, consensus.StageResult) {}

// FileReader supplies the Generator's file-aware mode with a fixed set of
// critical files from an open repository. Optional; nil disables
// file-aware mode.
type FileReader interface {
	ReadCriticalFiles(ctx context.Context) []promptbuilder.FileContent
}

// UsageRecorder persists conversation and per-stage accounting. Optional;
// nil disables persistence. Recorder errors are logged, never surfaced;
// accounting must not fail a user request.
type UsageRecorder interface {
	BeginConversation(ctx context.Context, conversationID, question string) error
	RecordStageUsage(ctx context.Context, conversationID string, result consensus.StageResult) error
	CompleteConversation(ctx context.Context, result consensus.ConsensusResult) error
}

// FactSink receives the final curated answer after a fully successful run,
// turning it into stored knowledge. Optional; nil disables curation.
type FactSink interface {
	RecordCurated(ctx context.Context, conversationID, question, answer string) error
}

// Pipeline is C9.
type Pipeline struct {
	Gateway    modelgateway.Gateway
	Injector   *contextinjector.Injector
	Gate       quality.Evaluator
	ApprovalWF approval.Workflow
	Sink       events.Sink
	Learner    Learner
	FileReader FileReader
	Recorder   UsageRecorder
	Curator    FactSink
	Retry      config.RetryPolicy

	facts    atomic.Pointer[repofacts.Facts]
	tol      float64
	rlMu     sync.Mutex
	lastCall time.Time
}

// New builds a Pipeline. tolerance is the fact checker's tolerance
// (default 0.2 — see factcheck.NewChecker).
func New(gateway modelgateway.Gateway, injector *contextinjector.Injector, retry config.RetryPolicy, tolerance float64) *Pipeline {
	p := &Pipeline{
		Gateway:    gateway,
		Injector:   injector,
		Gate:       quality.NoopEvaluator{},
		ApprovalWF: approval.AutoReject{},
		Sink:       events.NoopSink{},
		Learner:    NoopLearner{},
		Retry:      retry,
		tol:        tolerance,
	}
	return p
}

// SetFacts replaces the current RepositoryFacts snapshot. Readers see
// either the old or new snapshot atomically; there's no lock to contend
// for on the hot read path.
func (p *Pipeline) SetFacts(facts *repofacts.Facts) {
	p.facts.Store(facts)
}

func (p *Pipeline) currentFacts() *repofacts.Facts {
	f := p.facts.Load()
	if f == nil {
		return &repofacts.Facts{}
	}
	return f
}

// Run drives conversationID's question through all four stages in order.
// It returns a ConsensusResult whose Success is true only if all four
// stages completed and passed fact-check/quality-gate evaluation.
func (p *Pipeline) Run(ctx context.Context, conversationID string, question string, profile config.ConsensusProfile) consensus.ConsensusResult {
	timer := logging.StartTimer(logging.CategoryConsensus, "Run")
	defer timer.Stop()

	start := time.Now()
	checker := factcheck.NewChecker(p.currentFacts(), config.FactCheckConfig{Tolerance: p.tol})

	// Accounting and curation outlive a cancelled request: the tokens
	// already streamed were already paid for.
	persistCtx := context.WithoutCancel(ctx)
	if p.Recorder != nil {
		if err := p.Recorder.BeginConversation(persistCtx, conversationID, question); err != nil {
			logging.ConsensusWarn("conversation persistence failed: %v", err)
		}
	}

	var stages []consensus.StageResult
	var priorAnswer string
	var files []promptbuilder.FileContent
	allOK := true

	for _, stage := range consensus.Stages {
		if ctx.Err() != nil {
			allOK = false
			break
		}

		result, files2, ok := p.runStage(ctx, conversationID, question, stage, profile, priorAnswer, files, checker)
		if files2 != nil {
			files = files2
		}
		if result != nil {
			// A cancelled stage's partial answer stays visible in Stages;
			// a stage that failed outright did not complete and is kept
			// out of the list, so Stages holds four entries only for a
			// fully successful (or cancelled-at-the-wire) run. Usage is
			// recorded either way: the tokens were spent.
			if ok || ctx.Err() != nil {
				stages = append(stages, *result)
				priorAnswer = result.Answer
			}
			if ok {
				p.Learner.NotifyStageCompleted(ctx, conversationID, *result)
			}
			if p.Recorder != nil {
				if err := p.Recorder.RecordStageUsage(persistCtx, conversationID, *result); err != nil {
					logging.ConsensusWarn("stage usage persistence failed for stage=%s: %v", result.StageName, err)
				}
			}
		}
		if !ok || result == nil {
			allOK = false
			break
		}
	}

	success := allOK && len(stages) == len(consensus.Stages)
	var totalCost float64
	for _, s := range stages {
		totalCost += s.Analytics.Cost
	}

	res := consensus.ConsensusResult{
		Success:        success,
		Stages:         stages,
		ConversationID: conversationID,
		TotalDuration:  time.Since(start),
		TotalCost:      totalCost,
	}
	if success {
		res.Answer = priorAnswer
		if p.Curator != nil {
			if err := p.Curator.RecordCurated(persistCtx, conversationID, question, priorAnswer); err != nil {
				logging.ConsensusWarn("curated fact storage failed: %v", err)
			}
		}
		p.Sink.Emit(events.Event{Kind: events.KindConsensusCompleted, ConversationID: conversationID, Success: true, Answer: priorAnswer})
	} else {
		res.Error = "consensus pipeline did not complete all stages"
		p.Sink.Emit(events.Event{Kind: events.KindConsensusCompleted, ConversationID: conversationID, Success: false})
	}
	if p.Recorder != nil {
		if err := p.Recorder.CompleteConversation(persistCtx, res); err != nil {
			logging.ConsensusWarn("conversation completion persistence failed: %v", err)
		}
	}
	return res
}

// runStage runs one stage to completion, including its own fact-check and
// quality-gate retry loop. It returns the stage's result (partial on
// failure or cancellation), the Generator's critical files if they were
// (re)read, and whether the stage completed and passed. False halts the
// run, whether the cause was cancellation, an exhausted retry budget, a
// terminal gateway error, a rejected approval, or a blocking gate.
func (p *Pipeline) runStage(
	ctx context.Context,
	conversationID, question string,
	stage consensus.Stage,
	profile config.ConsensusProfile,
	priorAnswer string,
	files []promptbuilder.FileContent,
	checker *factcheck.Checker,
) (*consensus.StageResult, []promptbuilder.FileContent, bool) {
	if stage == consensus.StageGenerator && files == nil && p.FileReader != nil {
		files = p.FileReader.ReadCriticalFiles(ctx)
	}

	p.Sink.Emit(events.Event{Kind: events.KindStageStarted, ConversationID: conversationID, StageName: stage.String()})

	var retryCount, errorCount int
	enriched := false

	for {
		inj, err := p.Injector.Inject(ctx, question, stage)
		if err != nil {
			logging.ConsensusWarn("context injection failed for stage=%s: %v", stage, err)
		}
		injectedContext := inj.FormattedContext
		if enriched && injectedContext != "" {
			injectedContext = injectedContext + "\n\nThe previous attempt at this stage was rejected; address the issues above explicitly."
		}

		messages := promptbuilder.Build(stage, question, promptbuilder.Options{
			InjectedContext: injectedContext,
			PriorAnswer:     priorAnswer,
			Files:           files,
		})

		modelID := modelFor(profile, stage)
		startTime := time.Now()
		answer, usage, cost, provider, fallbackUsed, rateLimitHit, streamErr, cancelled := p.streamStage(ctx, conversationID, stage, modelID, messages)
		endTime := time.Now()

		if streamErr != nil {
			errorCount++
			// cancelled also covers a PerCallTimeout expiry on the derived
			// context; only a cancellation of the run's own context ends
			// the stage, a timeout falls through to the retry check.
			if cancelled && ctx.Err() != nil {
				return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
			}
			if isRetryable(streamErr) && retryCount < p.Retry.MaxRetries {
				retryCount++
				if !p.sleepBackoff(ctx, retryCount) {
					return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
				}
				continue
			}
			return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
		}

		fc := checker.Evaluate(stage.String(), answer)
		if !fc.Passed {
			switch fc.RecommendedAction {
			case factcheck.ActionRejectAndRetry, factcheck.ActionRetryWithEnhancedContext:
				p.Sink.Emit(events.Event{Kind: events.KindFactCheckFailed, ConversationID: conversationID, StageName: stage.String(), Contradictions: len(fc.Contradictions)})
				if retryCount < p.Retry.MaxRetries {
					retryCount++
					enriched = true
					if !p.sleepBackoff(ctx, retryCount) {
						return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
					}
					continue
				}
				return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
			case factcheck.ActionManualReview:
				decision, err := p.requestApproval(ctx, stage, conversationID, "fact-check manual review")
				if err != nil || decision != approval.DecisionApproved {
					return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
				}
			}
		}

		metrics := quality.Metrics{Accuracy: fc.Confidence, ResponseLength: float64(len(answer))}
		verdict := p.Gate.Evaluate(stage.String(), metrics)
		if !verdict.Passed {
			switch verdict.Action {
			case quality.ActionBlock:
				return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
			case quality.ActionRequestApproval:
				decision, err := p.requestApproval(ctx, stage, conversationID, "quality gate")
				if err != nil || decision != approval.DecisionApproved {
					return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
				}
			case quality.ActionRemediate:
				if retryCount < p.Retry.MaxRetries {
					retryCount++
					if !p.sleepBackoff(ctx, retryCount) {
						return partialResult(stage, question, answer, modelID, conversationID, startTime, endTime, usage, cost, provider, errorCount, retryCount, fallbackUsed, rateLimitHit), files, false
					}
					continue
				}
			}
		}

		result := &consensus.StageResult{
			StageID:        int(stage),
			StageName:      stage.String(),
			Question:       question,
			Answer:         answer,
			Model:          modelID,
			ConversationID: conversationID,
			Timestamp:      endTime,
			Usage:          usage,
			Analytics: consensus.Analytics{
				Duration:     endTime.Sub(startTime),
				Cost:         cost,
				Provider:     provider,
				QualityScore: fc.Confidence,
				ErrorCount:   errorCount,
				FallbackUsed: fallbackUsed,
				RateLimitHit: rateLimitHit,
				RetryCount:   retryCount,
				StartTime:    startTime,
				EndTime:      endTime,
			},
		}
		p.Sink.Emit(events.Event{Kind: events.KindStageCompleted, ConversationID: conversationID, StageName: stage.String()})
		return result, files, true
	}
}

func (p *Pipeline) requestApproval(ctx context.Context, stage consensus.Stage, conversationID, summary string) (approval.Decision, error) {
	p.Sink.Emit(events.Event{Kind: events.KindApprovalRequested, ConversationID: conversationID, StageName: stage.String()})
	return p.ApprovalWF.RequestApproval(ctx, approval.Request{
		GateID:            summary,
		Stage:             stage.String(),
		ViolationsSummary: summary,
		Expiry:            time.Now().Add(5 * time.Minute),
	})
}

// waitForRateLimitSlot blocks until at least Retry.RateLimitDelay has
// elapsed since the previous call started, so no two calls made through
// this Pipeline start back to back, whichever model they target. No-op
// when RateLimitDelay is zero.
func (p *Pipeline) waitForRateLimitSlot(ctx context.Context) bool {
	if p.Retry.RateLimitDelay <= 0 {
		return true
	}

	p.rlMu.Lock()
	wait := p.Retry.RateLimitDelay - time.Since(p.lastCall)
	if wait < 0 {
		wait = 0
	}
	p.lastCall = time.Now().Add(wait)
	p.rlMu.Unlock()

	if wait <= 0 {
		return true
	}
	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

// streamStage reads modelgateway events for one attempt, forwarding
// StageToken events and accumulating the final answer. It honors
// cancellation at token boundaries, enforces the configured minimum
// spacing between upstream calls, and bounds the whole attempt by
// Retry.PerCallTimeout when one is set.
func (p *Pipeline) streamStage(
	ctx context.Context,
	conversationID string,
	stage consensus.Stage,
	modelID string,
	messages []promptbuilder.Message,
) (answer string, usage consensus.Usage, cost float64, provider string, fallbackUsed, rateLimitHit bool, err error, cancelled bool) {
	if !p.waitForRateLimitSlot(ctx) {
		return "", usage, 0, "", false, false, ctx.Err(), true
	}

	if p.Retry.PerCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Retry.PerCallTimeout)
		defer cancel()
	}

	ch := p.Gateway.Stream(ctx, modelID, messages)
	var b []byte

	for {
		select {
		case <-ctx.Done():
			return string(b), usage, cost, provider, fallbackUsed, rateLimitHit, ctx.Err(), true
		case ev, ok := <-ch:
			if !ok {
				return string(b), usage, cost, provider, fallbackUsed, rateLimitHit, nil, false
			}
			if ev.Err != nil {
				return string(b), usage, cost, provider, fallbackUsed, rateLimitHit, ev.Err, false
			}
			if ev.Token != "" {
				b = append(b, ev.Token...)
				p.Sink.Emit(events.Event{Kind: events.KindStageToken, ConversationID: conversationID, StageName: stage.String(), Token: ev.Token})
			}
			if ev.Done {
				usage = consensus.Usage{
					PromptTokens:     ev.Usage.PromptTokens,
					CompletionTokens: ev.Usage.CompletionTokens,
					TotalTokens:      ev.Usage.TotalTokens,
				}
				return string(b), usage, ev.Cost, ev.Provider, ev.FallbackUsed, ev.RateLimitHit, nil, false
			}
		}
	}
}

func partialResult(
	stage consensus.Stage,
	question, answer, modelID, conversationID string,
	startTime, endTime time.Time,
	usage consensus.Usage,
	cost float64,
	provider string,
	errorCount, retryCount int,
	fallbackUsed, rateLimitHit bool,
) *consensus.StageResult {
	return &consensus.StageResult{
		StageID:        int(stage),
		StageName:      stage.String(),
		Question:       question,
		Answer:         answer,
		Model:          modelID,
		ConversationID: conversationID,
		Timestamp:      endTime,
		Usage:          usage,
		Analytics: consensus.Analytics{
			Duration:     endTime.Sub(startTime),
			Cost:         cost,
			Provider:     provider,
			ErrorCount:   errorCount,
			RetryCount:   retryCount,
			FallbackUsed: fallbackUsed,
			RateLimitHit: rateLimitHit,
			StartTime:    startTime,
			EndTime:      endTime,
		},
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if gwErr, ok := err.(*modelgateway.GatewayError); ok {
		return gwErr.Class == modelgateway.ErrorClassRetryable
	}
	return false
}

// sleepBackoff waits the exponential-backoff delay for attempt N, using
// Retry's configured base/cap, returning false if ctx is cancelled first.
func (p *Pipeline) sleepBackoff(ctx context.Context, attempt int) bool {
	delay := float64(p.Retry.InitialDelayMs) * math.Pow(p.Retry.ExponentialBase, float64(attempt-1))
	if maxDelay := float64(p.Retry.MaxDelayMs); maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	select {
	case <-time.After(time.Duration(delay) * time.Millisecond):
		return true
	case <-ctx.Done():
		return false
	}
}
