package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"consensuscore/internal/config"
	"consensuscore/internal/consensus"
	"consensuscore/internal/contextinjector"
	"consensuscore/internal/modelgateway"
	"consensuscore/internal/promptbuilder"
	"consensuscore/internal/store"
)

// scriptedGateway replays a fixed sequence of per-call behaviors, keyed by
// call count, so tests can script rate-limit-then-success (S5) and
// mid-stream cancellation (S6) without a real model.
type scriptedGateway struct {
	calls     int
	behaviors []func(ctx context.Context, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent
}

func (g *scriptedGateway) Stream(ctx context.Context, modelID string, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
	idx := g.calls
	g.calls++
	if idx >= len(g.behaviors) {
		idx = len(g.behaviors) - 1
	}
	return g.behaviors[idx](ctx, messages)
}

func echoGateway() *scriptedGateway {
	behavior := func(ctx context.Context, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
		ch := make(chan modelgateway.StreamEvent, 4)
		ch <- modelgateway.StreamEvent{Token: "answer "}
		ch <- modelgateway.StreamEvent{Token: "text", Done: true, Usage: modelgateway.Usage{TotalTokens: 10}, Cost: 0.01, Provider: "mock"}
		close(ch)
		return ch
	}
	return &scriptedGateway{behaviors: []func(context.Context, []promptbuilder.Message) <-chan modelgateway.StreamEvent{behavior}}
}

func newTestPipeline(t *testing.T, gw modelgateway.Gateway) *Pipeline {
	t.Helper()
	actor, err := store.NewActor(filepath.Join(t.TempDir(), "test.db"), 16)
	if err != nil {
		t.Fatalf("NewActor: %v", err)
	}
	t.Cleanup(func() { actor.Close() })
	ks, err := store.NewKnowledgeStore(context.Background(), actor)
	if err != nil {
		t.Fatalf("NewKnowledgeStore: %v", err)
	}
	injector := contextinjector.NewInjector(ks, config.ContextInjectorConfig{MaxFactsPerStage: 10, RelevanceThreshold: 0.9})

	retry := config.RetryPolicy{InitialDelayMs: 1, MaxDelayMs: 5, ExponentialBase: 2, MaxRetries: 3}
	return New(gw, injector, retry, 0.2)
}

func testProfile() config.ConsensusProfile {
	return config.ConsensusProfile{
		ID: "default", Name: "default",
		GeneratorModel: "gen-model", RefinerModel: "ref-model",
		ValidatorModel: "val-model", CuratorModel: "cur-model",
		IsActive: true,
	}
}

func TestRun_HappyPathEmitsFourStagesInOrder(t *testing.T) {
	p := newTestPipeline(t, echoGateway())
	result := p.Run(context.Background(), "conv-1", "What is X?", testProfile())

	if !result.Success {
		t.Fatalf("expected success, got error=%q", result.Error)
	}
	if len(result.Stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(result.Stages))
	}
	for i, want := range []string{"generator", "refiner", "validator", "curator"} {
		if result.Stages[i].StageName != want {
			t.Errorf("stage %d = %s, want %s", i, result.Stages[i].StageName, want)
		}
	}
}

func TestRun_RetriesOnRateLimitTwiceThenSucceeds(t *testing.T) {
	rateLimited := func(ctx context.Context, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
		ch := make(chan modelgateway.StreamEvent, 1)
		ch <- modelgateway.StreamEvent{Err: &modelgateway.GatewayError{Class: modelgateway.ErrorClassRetryable, Message: "rate limited"}}
		close(ch)
		return ch
	}
	success := func(ctx context.Context, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
		ch := make(chan modelgateway.StreamEvent, 2)
		ch <- modelgateway.StreamEvent{Token: "ok"}
		ch <- modelgateway.StreamEvent{Done: true, Cost: 0.01, Provider: "mock"}
		close(ch)
		return ch
	}
	gw := &scriptedGateway{behaviors: []func(context.Context, []promptbuilder.Message) <-chan modelgateway.StreamEvent{
		rateLimited, rateLimited, success,
		success, success, success, success, success, success, success, success, success,
	}}

	p := newTestPipeline(t, gw)
	result := p.Run(context.Background(), "conv-2", "What is X?", testProfile())

	if !result.Success {
		t.Fatalf("expected success, got error=%q", result.Error)
	}
	gen := result.Stages[0]
	if gen.Analytics.RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2", gen.Analytics.RetryCount)
	}
	if gen.Analytics.ErrorCount != 2 {
		t.Errorf("error_count = %d, want 2", gen.Analytics.ErrorCount)
	}
	if gen.Analytics.FallbackUsed {
		t.Errorf("expected fallback_used = false")
	}
}

func TestRun_CancellationMidStreamReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	behavior := func(ctx context.Context, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
		callCount++
		ch := make(chan modelgateway.StreamEvent)
		if callCount == 2 {
			// Deliver one token, then cancel only after the pipeline has
			// had a chance to receive it, so the select in streamStage
			// observes the token before (or instead of racing) ctx.Done.
			go func() {
				ch <- modelgateway.StreamEvent{Token: "partial"}
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
		} else {
			go func() {
				ch <- modelgateway.StreamEvent{Token: "answer"}
				ch <- modelgateway.StreamEvent{Done: true, Cost: 0.01, Provider: "mock"}
				close(ch)
			}()
		}
		return ch
	}
	gw := &scriptedGateway{behaviors: []func(context.Context, []promptbuilder.Message) <-chan modelgateway.StreamEvent{behavior}}

	p := newTestPipeline(t, gw)
	result := p.Run(ctx, "conv-3", "What is X?", testProfile())

	if result.Success {
		t.Fatalf("expected success = false after cancellation")
	}
	if len(result.Stages) != 2 {
		t.Fatalf("expected 2 stages (generator complete, refiner partial), got %d", len(result.Stages))
	}
	if result.Stages[1].Answer != "partial" {
		t.Errorf("expected refiner's partial answer to be recorded, got %q", result.Stages[1].Answer)
	}
}

func TestRun_EmptyQuestionStillCompletesAllStages(t *testing.T) {
	p := newTestPipeline(t, echoGateway())
	result := p.Run(context.Background(), "conv-4", "", testProfile())
	if !result.Success {
		t.Fatalf("expected pipeline to still complete with only prior-stage context, got error=%q", result.Error)
	}
}

// recordingHooks captures every UsageRecorder and FactSink call the
// pipeline makes.
type recordingHooks struct {
	began       []string
	stageUsages []string
	completed   []string
	curated     []string
}

func (h *recordingHooks) BeginConversation(_ context.Context, conversationID, _ string) error {
	h.began = append(h.began, conversationID)
	return nil
}

func (h *recordingHooks) RecordStageUsage(_ context.Context, _ string, result consensus.StageResult) error {
	h.stageUsages = append(h.stageUsages, result.StageName)
	return nil
}

func (h *recordingHooks) CompleteConversation(_ context.Context, result consensus.ConsensusResult) error {
	h.completed = append(h.completed, result.ConversationID)
	return nil
}

func (h *recordingHooks) RecordCurated(_ context.Context, conversationID, _, answer string) error {
	h.curated = append(h.curated, answer)
	return nil
}

func TestRun_PersistsUsageAndCuratesOnSuccess(t *testing.T) {
	p := newTestPipeline(t, echoGateway())
	hooks := &recordingHooks{}
	p.Recorder = hooks
	p.Curator = hooks

	result := p.Run(context.Background(), "conv-persist", "What is X?", testProfile())
	if !result.Success {
		t.Fatalf("expected success, got error=%q", result.Error)
	}

	if len(hooks.began) != 1 || hooks.began[0] != "conv-persist" {
		t.Errorf("began = %v, want one conv-persist entry", hooks.began)
	}
	wantStages := []string{"generator", "refiner", "validator", "curator"}
	if len(hooks.stageUsages) != len(wantStages) {
		t.Fatalf("stage usage rows = %v, want %v", hooks.stageUsages, wantStages)
	}
	for i, want := range wantStages {
		if hooks.stageUsages[i] != want {
			t.Errorf("stage usage %d = %s, want %s", i, hooks.stageUsages[i], want)
		}
	}
	if len(hooks.completed) != 1 {
		t.Errorf("completed = %v, want exactly one entry", hooks.completed)
	}
	if len(hooks.curated) != 1 || hooks.curated[0] != result.Answer {
		t.Errorf("curated = %v, want the final answer %q", hooks.curated, result.Answer)
	}
}

func TestRun_NoCurationOnFailedRun(t *testing.T) {
	failing := func(ctx context.Context, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
		ch := make(chan modelgateway.StreamEvent, 1)
		ch <- modelgateway.StreamEvent{Err: &modelgateway.GatewayError{Class: modelgateway.ErrorClassTerminal, Message: "invalid model"}}
		close(ch)
		return ch
	}
	gw := &scriptedGateway{behaviors: []func(context.Context, []promptbuilder.Message) <-chan modelgateway.StreamEvent{failing}}

	p := newTestPipeline(t, gw)
	hooks := &recordingHooks{}
	p.Recorder = hooks
	p.Curator = hooks

	result := p.Run(context.Background(), "conv-fail", "What is X?", testProfile())
	if result.Success {
		t.Fatal("expected failure on a terminal gateway error")
	}
	if len(result.Stages) != 0 {
		t.Errorf("stages = %d, want the failed stage excluded from the result", len(result.Stages))
	}
	if len(hooks.stageUsages) != 1 || hooks.stageUsages[0] != "generator" {
		t.Errorf("stage usage rows = %v, want the failed generator's usage still recorded", hooks.stageUsages)
	}
	if len(hooks.curated) != 0 {
		t.Errorf("curated = %v, want none for a failed run", hooks.curated)
	}
	if len(hooks.completed) != 1 {
		t.Errorf("completed = %v, want the failed run still recorded", hooks.completed)
	}
}

func TestIsRetryable(t *testing.T) {
	if !isRetryable(context.DeadlineExceeded) {
		t.Error("a per-call timeout must be retryable")
	}
	if !isRetryable(&modelgateway.GatewayError{Class: modelgateway.ErrorClassRetryable, Message: "rate limited"}) {
		t.Error("a retryable gateway error must be retryable")
	}
	if isRetryable(&modelgateway.GatewayError{Class: modelgateway.ErrorClassTerminal, Message: "invalid model"}) {
		t.Error("a terminal gateway error must not be retryable")
	}
	if isRetryable(context.Canceled) {
		t.Error("cancellation must not be retryable")
	}
}
