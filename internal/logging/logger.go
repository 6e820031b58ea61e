// Package logging provides config-driven categorized file-based logging for
// the consensus core. Logs are written to .consensus/logs/ with one file per
// category. Logging is controlled by debug_mode in .consensus/config.json -
// when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // process startup / wiring
	CategoryDBActor   Category = "db_actor"  // C1: persistent store actor
	CategoryKnowledge Category = "knowledge" // C2: knowledge store
	CategoryVector    Category = "vector"    // C3: vector store
	CategoryEmbedding Category = "embedding" // C4: embedding/model service
	CategoryRepoFacts Category = "repofacts" // C5: repository fact extractor
	CategoryFactCheck Category = "factcheck" // C6: fact checker
	CategoryContext   Category = "context"   // C7: context injector
	CategoryPrompt    Category = "prompt"    // C8: stage prompt builder
	CategoryConsensus Category = "consensus" // C9: consensus pipeline
	CategoryLearning  Category = "learning"  // C10: continuous learner
	CategoryPrecedent Category = "precedent" // C11: operation precedent analyzer
	CategoryAutonomy  Category = "autonomy"  // C12: autonomous pre-processor
	CategoryQuality   Category = "quality"   // C13: quality gate evaluator
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type loggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

type configFile struct {
	Logging loggingConfig `json:"logging"`
}

// StructuredLogEntry is a JSON log entry, one per line.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	RequestID string                 `json:"req,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	workspace    string
	config       loggingConfig
	configLoaded bool
	configMu     sync.RWMutex
	logLevel     int
)

const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config. Call once at
// process startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".consensus", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	if !config.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== consensus core logging initialized ===")
	boot.Info("workspace: %s", workspace)
	boot.Info("logs directory: %s", logsDir)
	boot.Info("debug mode: %v", config.DebugMode)
	boot.Info("log level: %s", config.Level)

	return nil
}

func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".consensus", "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			config.DebugMode = false
			configLoaded = true
			return nil
		}
		return err
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config = cf.Logging
	configLoaded = true

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// ReloadConfig reloads the config from disk.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. Returns a no-op
// logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}
	if logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// StructuredLog writes a fully structured log entry with custom fields.
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	if config.JSONFormat {
		data, err := json.Marshal(entry)
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// Convenience functions - one Info/Debug/Warn/Error set per category.
// =============================================================================

func Boot(format string, args ...interface{})     { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func DBActor(format string, args ...interface{})     { Get(CategoryDBActor).Info(format, args...) }
func DBActorDebug(format string, args ...interface{}) { Get(CategoryDBActor).Debug(format, args...) }
func DBActorWarn(format string, args ...interface{})  { Get(CategoryDBActor).Warn(format, args...) }
func DBActorError(format string, args ...interface{}) { Get(CategoryDBActor).Error(format, args...) }

func Knowledge(format string, args ...interface{})     { Get(CategoryKnowledge).Info(format, args...) }
func KnowledgeDebug(format string, args ...interface{}) { Get(CategoryKnowledge).Debug(format, args...) }
func KnowledgeWarn(format string, args ...interface{})  { Get(CategoryKnowledge).Warn(format, args...) }
func KnowledgeError(format string, args ...interface{}) { Get(CategoryKnowledge).Error(format, args...) }

func Vector(format string, args ...interface{})     { Get(CategoryVector).Info(format, args...) }
func VectorDebug(format string, args ...interface{}) { Get(CategoryVector).Debug(format, args...) }
func VectorWarn(format string, args ...interface{})  { Get(CategoryVector).Warn(format, args...) }
func VectorError(format string, args ...interface{}) { Get(CategoryVector).Error(format, args...) }

func Embedding(format string, args ...interface{})     { Get(CategoryEmbedding).Info(format, args...) }
func EmbeddingDebug(format string, args ...interface{}) { Get(CategoryEmbedding).Debug(format, args...) }
func EmbeddingWarn(format string, args ...interface{})  { Get(CategoryEmbedding).Warn(format, args...) }
func EmbeddingError(format string, args ...interface{}) { Get(CategoryEmbedding).Error(format, args...) }

func RepoFacts(format string, args ...interface{})     { Get(CategoryRepoFacts).Info(format, args...) }
func RepoFactsDebug(format string, args ...interface{}) { Get(CategoryRepoFacts).Debug(format, args...) }
func RepoFactsWarn(format string, args ...interface{})  { Get(CategoryRepoFacts).Warn(format, args...) }
func RepoFactsError(format string, args ...interface{}) { Get(CategoryRepoFacts).Error(format, args...) }

func FactCheck(format string, args ...interface{})     { Get(CategoryFactCheck).Info(format, args...) }
func FactCheckDebug(format string, args ...interface{}) { Get(CategoryFactCheck).Debug(format, args...) }
func FactCheckWarn(format string, args ...interface{})  { Get(CategoryFactCheck).Warn(format, args...) }
func FactCheckError(format string, args ...interface{}) { Get(CategoryFactCheck).Error(format, args...) }

func Context(format string, args ...interface{})     { Get(CategoryContext).Info(format, args...) }
func ContextDebug(format string, args ...interface{}) { Get(CategoryContext).Debug(format, args...) }
func ContextWarn(format string, args ...interface{})  { Get(CategoryContext).Warn(format, args...) }
func ContextError(format string, args ...interface{}) { Get(CategoryContext).Error(format, args...) }

func Prompt(format string, args ...interface{})     { Get(CategoryPrompt).Info(format, args...) }
func PromptDebug(format string, args ...interface{}) { Get(CategoryPrompt).Debug(format, args...) }
func PromptWarn(format string, args ...interface{})  { Get(CategoryPrompt).Warn(format, args...) }
func PromptError(format string, args ...interface{}) { Get(CategoryPrompt).Error(format, args...) }

func Consensus(format string, args ...interface{})     { Get(CategoryConsensus).Info(format, args...) }
func ConsensusDebug(format string, args ...interface{}) { Get(CategoryConsensus).Debug(format, args...) }
func ConsensusWarn(format string, args ...interface{})  { Get(CategoryConsensus).Warn(format, args...) }
func ConsensusError(format string, args ...interface{}) { Get(CategoryConsensus).Error(format, args...) }

func Learning(format string, args ...interface{})     { Get(CategoryLearning).Info(format, args...) }
func LearningDebug(format string, args ...interface{}) { Get(CategoryLearning).Debug(format, args...) }
func LearningWarn(format string, args ...interface{})  { Get(CategoryLearning).Warn(format, args...) }
func LearningError(format string, args ...interface{}) { Get(CategoryLearning).Error(format, args...) }

func Precedent(format string, args ...interface{})     { Get(CategoryPrecedent).Info(format, args...) }
func PrecedentDebug(format string, args ...interface{}) { Get(CategoryPrecedent).Debug(format, args...) }
func PrecedentWarn(format string, args ...interface{})  { Get(CategoryPrecedent).Warn(format, args...) }
func PrecedentError(format string, args ...interface{}) { Get(CategoryPrecedent).Error(format, args...) }

func Autonomy(format string, args ...interface{})     { Get(CategoryAutonomy).Info(format, args...) }
func AutonomyDebug(format string, args ...interface{}) { Get(CategoryAutonomy).Debug(format, args...) }
func AutonomyWarn(format string, args ...interface{})  { Get(CategoryAutonomy).Warn(format, args...) }
func AutonomyError(format string, args ...interface{}) { Get(CategoryAutonomy).Error(format, args...) }

func Quality(format string, args ...interface{})     { Get(CategoryQuality).Info(format, args...) }
func QualityDebug(format string, args ...interface{}) { Get(CategoryQuality).Debug(format, args...) }
func QualityWarn(format string, args ...interface{})  { Get(CategoryQuality).Warn(format, args...) }
func QualityError(format string, args ...interface{}) { Get(CategoryQuality).Error(format, args...) }

// =============================================================================
// Request-scoped logging, for correlating a conversation's log lines.
// =============================================================================

// RequestLogger provides request-scoped logging with a correlation ID.
type RequestLogger struct {
	logger    *Logger
	requestID string
	fields    map[string]interface{}
}

// WithRequestID creates a request-scoped logger for distributed tracing.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Get(category),
		requestID: requestID,
		fields:    make(map[string]interface{}),
	}
}

func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	r.fields[key] = value
	return r
}

func (r *RequestLogger) formatMsg(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if len(r.fields) > 0 {
		return fmt.Sprintf("[req:%s] %s | %v", r.requestID, msg, r.fields)
	}
	return fmt.Sprintf("[req:%s] %s", r.requestID, msg)
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelDebug {
		return
	}
	r.logger.logger.Printf("[DEBUG] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelInfo {
		return
	}
	r.logger.logger.Printf("[INFO] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelWarn {
		return
	}
	r.logger.logger.Printf("[WARN] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	if r.logger.logger == nil {
		return
	}
	r.logger.logger.Printf("[ERROR] %s", r.formatMsg(format, args...))
}

// =============================================================================
// Timing helpers.
// =============================================================================

// Timer measures an operation's duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs the duration at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
