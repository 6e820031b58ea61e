package main

import (
	"context"
	"fmt"
	"strings"

	"consensuscore/internal/modelgateway"
	"consensuscore/internal/promptbuilder"
)

// mockGateway is an in-memory stand-in for a real provider client, used by
// `run` for local smoke-testing without an API key. It echoes back a short
// canned answer derived from the last user message, streamed one word at a
// time, so the full pipeline (fact-check, quality gates, learning) runs
// end to end against deterministic output.
type mockGateway struct{}

func (mockGateway) Stream(ctx context.Context, modelID string, messages []promptbuilder.Message) <-chan modelgateway.StreamEvent {
	ch := make(chan modelgateway.StreamEvent, 8)

	go func() {
		defer close(ch)

		answer := mockAnswer(modelID, messages)
		words := strings.Fields(answer)
		for i, w := range words {
			token := w
			if i < len(words)-1 {
				token += " "
			}
			select {
			case ch <- modelgateway.StreamEvent{Token: token}:
			case <-ctx.Done():
				ch <- modelgateway.StreamEvent{Err: ctx.Err()}
				return
			}
		}

		ch <- modelgateway.StreamEvent{
			Done: true,
			Usage: modelgateway.Usage{
				PromptTokens:     len(messages) * 20,
				CompletionTokens: len(words),
				TotalTokens:      len(messages)*20 + len(words),
			},
			Cost:     0.0001 * float64(len(words)),
			Provider: "mock",
		}
	}()

	return ch
}

func mockAnswer(modelID string, messages []promptbuilder.Message) string {
	var question string
	for _, m := range messages {
		if m.Role == promptbuilder.RoleUser {
			question = m.Content
		}
	}
	return fmt.Sprintf("Based on the available context, here is a mock answer from %s to: %s", modelID, strings.TrimSpace(question))
}
