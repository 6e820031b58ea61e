// Package approval defines the host-provided approval-workflow
// collaborator used by the quality gate evaluator when a gate's failure
// action is RequestApproval.
package approval

import (
	"context"
	"time"
)

// Request carries everything a host UI needs to render an approval
// prompt for one gate violation.
type Request struct {
	GateID            string
	Stage             string
	ViolationsSummary string
	Expiry            time.Time
}

// Decision is the host's answer to a Request.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
	DecisionExpired  Decision = "Expired"
)

// Workflow is the host collaborator: request_approval(request) ->
// ApprovalDecision.
type Workflow interface {
	RequestApproval(ctx context.Context, req Request) (Decision, error)
}

// AutoReject is a zero-dependency Workflow used when the host wires in no
// real approval UI: every request is rejected immediately rather than the
// pipeline hanging on an approval that will never arrive.
type AutoReject struct{}

// RequestApproval implements Workflow.
func (AutoReject) RequestApproval(context.Context, Request) (Decision, error) {
	return DecisionRejected, nil
}
