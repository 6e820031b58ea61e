// Package modelgateway defines the host-provided model completion
// collaborator: the consensus pipeline drives stages against it but never
// implements it directly. A Gateway is expected to wrap whatever remote
// LLM provider client the host wires in (a ZAI, OpenAI, or Anthropic
// client, for instance).
package modelgateway

import (
	"context"

	"consensuscore/internal/promptbuilder"
)

// StreamEvent is one item pulled off the channel Stream returns: either a
// token, a terminal error, or a done marker carrying final usage/cost.
type StreamEvent struct {
	Token string
	Done  bool
	Err   error

	// Populated only on the event with Done == true. FallbackUsed and
	// RateLimitHit reflect decisions the gateway made internally (e.g.
	// switching provider after a terminal error); the pipeline only
	// records what it's told, it never picks a fallback model itself.
	Usage        Usage
	Cost         float64
	Provider     string
	FallbackUsed bool
	RateLimitHit bool
}

// Usage mirrors consensus.StageResult's usage shape.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ErrorClass distinguishes retryable transport errors from terminal
// provider errors. The pipeline retries only the former; a terminal error
// fails the stage, and no fallback model is tried.
type ErrorClass int

const (
	ErrorClassUnknown ErrorClass = iota
	ErrorClassRetryable
	ErrorClassTerminal
)

// GatewayError is the error variant a Gateway reports for a failed or
// degraded completion, carrying the class the pipeline uses to decide
// whether to retry.
type GatewayError struct {
	Class   ErrorClass
	Message string
}

func (e *GatewayError) Error() string { return e.Message }

// Gateway is the async model-completion collaborator: it turns
// (model_id, messages) into a streamed (final_answer, usage, cost,
// provider), expressed as a Go pull-style channel rather than a push
// callback so the pipeline can select over it alongside context
// cancellation.
type Gateway interface {
	// Stream issues model_id with messages and returns a channel of
	// StreamEvent in arrival order, terminated by exactly one event with
	// Done == true (carrying final usage/cost/provider) or Err != nil.
	Stream(ctx context.Context, modelID string, messages []promptbuilder.Message) <-chan StreamEvent
}
