package store

import (
	"context"
	"time"

	"consensuscore/internal/consensus"
)

// ConsensusRecorder persists a consensus run's accounting through the
// actor: one conversations row per run, one stage_usage row per completed
// stage, and a final cost/answer update when the run finishes. It is the
// store-side implementation of the pipeline's UsageRecorder hook.
type ConsensusRecorder struct {
	actor     *Actor
	profileID string
}

// NewConsensusRecorder builds a recorder that attributes conversations to
// profileID.
func NewConsensusRecorder(actor *Actor, profileID string) *ConsensusRecorder {
	return &ConsensusRecorder{actor: actor, profileID: profileID}
}

// BeginConversation inserts the conversation row before any stage runs, so
// stage_usage rows always have a parent even if the run dies mid-stage.
func (r *ConsensusRecorder) BeginConversation(ctx context.Context, conversationID, question string) error {
	return r.actor.StoreConversation(ctx, Conversation{
		ID:        conversationID,
		ProfileID: r.profileID,
		Question:  question,
		CreatedAt: time.Now(),
	})
}

// RecordStageUsage writes one stage's cost/latency accounting row.
func (r *ConsensusRecorder) RecordStageUsage(ctx context.Context, conversationID string, s consensus.StageResult) error {
	return r.actor.StoreStageUsage(ctx, StageUsage{
		ConversationID:   conversationID,
		Stage:            s.StageName,
		Model:            s.Model,
		PromptTokens:     int64(s.Usage.PromptTokens),
		CompletionTokens: int64(s.Usage.CompletionTokens),
		CostUSD:          s.Analytics.Cost,
		LatencyMS:        s.Analytics.Duration.Milliseconds(),
		Retries:          s.Analytics.RetryCount,
	})
}

// CompleteConversation folds the run's totals and final answer back into
// the conversation row.
func (r *ConsensusRecorder) CompleteConversation(ctx context.Context, res consensus.ConsensusResult) error {
	var tokens int64
	for _, s := range res.Stages {
		tokens += int64(s.Usage.TotalTokens)
	}
	return r.actor.UpdateConversationCost(ctx, res.ConversationID, res.TotalCost, tokens, res.Answer)
}
