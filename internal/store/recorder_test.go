package store

import (
	"context"
	"testing"
	"time"

	"consensuscore/internal/consensus"
)

func TestConsensusRecorder_PersistsFullRunAccounting(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()
	r := NewConsensusRecorder(a, "profile-1")

	if err := r.BeginConversation(ctx, "conv-1", "What is X?"); err != nil {
		t.Fatalf("BeginConversation: %v", err)
	}

	stage := consensus.StageResult{
		StageName:      "generator",
		Model:          "gen-model",
		ConversationID: "conv-1",
		Usage:          consensus.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		Analytics: consensus.Analytics{
			Duration:   250 * time.Millisecond,
			Cost:       0.01,
			RetryCount: 1,
		},
	}
	if err := r.RecordStageUsage(ctx, "conv-1", stage); err != nil {
		t.Fatalf("RecordStageUsage: %v", err)
	}

	res := consensus.ConsensusResult{
		Success:        true,
		Answer:         "the final answer",
		Stages:         []consensus.StageResult{stage},
		ConversationID: "conv-1",
		TotalCost:      0.01,
	}
	if err := r.CompleteConversation(ctx, res); err != nil {
		t.Fatalf("CompleteConversation: %v", err)
	}

	var answer string
	var cost float64
	var tokens int64
	err := a.db.QueryRow(
		`SELECT final_answer, total_cost_usd, total_tokens FROM conversations WHERE id = ?`, "conv-1",
	).Scan(&answer, &cost, &tokens)
	if err != nil {
		t.Fatalf("reading conversation row: %v", err)
	}
	if answer != "the final answer" {
		t.Errorf("final_answer = %q", answer)
	}
	if cost != 0.01 {
		t.Errorf("total_cost_usd = %v, want 0.01", cost)
	}
	if tokens != 150 {
		t.Errorf("total_tokens = %d, want 150", tokens)
	}

	var stageName string
	var latency, retries int64
	err = a.db.QueryRow(
		`SELECT stage, latency_ms, retries FROM stage_usage WHERE conversation_id = ?`, "conv-1",
	).Scan(&stageName, &latency, &retries)
	if err != nil {
		t.Fatalf("reading stage_usage row: %v", err)
	}
	if stageName != "generator" || latency != 250 || retries != 1 {
		t.Errorf("stage_usage row = (%s, %d, %d), want (generator, 250, 1)", stageName, latency, retries)
	}
}
