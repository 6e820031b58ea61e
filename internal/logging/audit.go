// Package logging also provides audit logging of UI events emitted by the
// consensus pipeline toward the host-facing event sink. Audit entries are
// append-only JSON lines under .consensus/logs/.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType is the closed set of UI events the core emits toward the
// host (desktop/TUI layer). The host consumes these best-effort; drops are
// acceptable.
type AuditEventType string

const (
	AuditNavigateToPath    AuditEventType = "navigate_to_path"
	AuditOpenFile          AuditEventType = "open_file"
	AuditCreateFile        AuditEventType = "create_file"
	AuditStageStarted      AuditEventType = "stage_started"
	AuditStageToken        AuditEventType = "stage_token"
	AuditStageCompleted    AuditEventType = "stage_completed"
	AuditConsensusComplete AuditEventType = "consensus_completed"
	AuditFactCheckFailed   AuditEventType = "fact_check_failed"
	AuditApprovalRequested AuditEventType = "approval_requested"
)

// AuditEvent is a single structured audit line.
type AuditEvent struct {
	Timestamp      int64                  `json:"ts"`
	EventType      AuditEventType         `json:"event"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Stage          string                 `json:"stage,omitempty"`
	Target         string                 `json:"target,omitempty"`
	Success        bool                   `json:"success"`
	DurationMs     int64                  `json:"dur_ms,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Message        string                 `json:"msg,omitempty"`
	Fields         map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes audit events, optionally scoped to a conversation.
type AuditLogger struct {
	conversationID string
}

// InitAudit opens the audit log file. No-op in production mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the unscoped global audit logger.
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithConversation scopes an audit logger to one conversation.
func AuditWithConversation(conversationID string) *AuditLogger {
	return &AuditLogger{conversationID: conversationID}
}

// Log writes an audit event, filling in defaults from the logger's scope.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.ConversationID == "" && a.conversationID != "" {
		event.ConversationID = a.conversationID
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// StageStarted logs the start of a consensus stage.
func (a *AuditLogger) StageStarted(stage string) {
	a.Log(AuditEvent{EventType: AuditStageStarted, Stage: stage, Success: true,
		Message: fmt.Sprintf("stage started: %s", stage)})
}

// StageToken logs a streamed token (debug-granularity; callers should rate-limit).
func (a *AuditLogger) StageToken(stage string, tokenLen int) {
	a.Log(AuditEvent{EventType: AuditStageToken, Stage: stage, Success: true,
		Fields: map[string]interface{}{"token_len": tokenLen}})
}

// StageCompleted logs a stage's completion.
func (a *AuditLogger) StageCompleted(stage string, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditStageCompleted, Stage: stage, Success: success,
		DurationMs: durationMs, Error: errMsg,
		Message: fmt.Sprintf("stage completed: %s (success=%v, %dms)", stage, success, durationMs),
	})
}

// ConsensusCompleted logs the end of a full consensus run.
func (a *AuditLogger) ConsensusCompleted(success bool, totalDurationMs int64, totalCost float64) {
	a.Log(AuditEvent{
		EventType: AuditConsensusComplete, Success: success, DurationMs: totalDurationMs,
		Fields:  map[string]interface{}{"total_cost": totalCost},
		Message: fmt.Sprintf("consensus completed (success=%v, %dms, cost=%.4f)", success, totalDurationMs, totalCost),
	})
}

// FactCheckFailed logs a fact-check rejection.
func (a *AuditLogger) FactCheckFailed(stage string, contradictionCount int, action string) {
	a.Log(AuditEvent{
		EventType: AuditFactCheckFailed, Stage: stage, Success: false,
		Fields:  map[string]interface{}{"contradictions": contradictionCount, "action": action},
		Message: fmt.Sprintf("fact check failed at %s: %d contradictions, action=%s", stage, contradictionCount, action),
	})
}

// ApprovalRequested logs a quality-gate approval request.
func (a *AuditLogger) ApprovalRequested(stage, gateID string) {
	a.Log(AuditEvent{
		EventType: AuditApprovalRequested, Stage: stage, Target: gateID, Success: true,
		Message: fmt.Sprintf("approval requested: gate=%s stage=%s", gateID, stage),
	})
}

// NavigateToPath logs a filesystem navigation UI event (emitted by C12).
func (a *AuditLogger) NavigateToPath(path, reason string) {
	a.Log(AuditEvent{
		EventType: AuditNavigateToPath, Target: path, Success: true,
		Fields:  map[string]interface{}{"reason": reason},
		Message: fmt.Sprintf("navigate: %s (%s)", path, reason),
	})
}

// OpenFile logs a file-open UI event.
func (a *AuditLogger) OpenFile(path string) {
	a.Log(AuditEvent{EventType: AuditOpenFile, Target: path, Success: true,
		Message: fmt.Sprintf("open file: %s", path)})
}

// CreateFile logs a file-create UI event.
func (a *AuditLogger) CreateFile(path string, size int, openAfter bool) {
	a.Log(AuditEvent{
		EventType: AuditCreateFile, Target: path, Success: true,
		Fields:  map[string]interface{}{"size": size, "open_after_create": openAfter},
		Message: fmt.Sprintf("create file: %s (%d bytes)", path, size),
	})
}
