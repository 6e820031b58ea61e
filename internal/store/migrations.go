// Package store implements the persistence layer for the consensus core:
// a command-queue DB actor (C1), a fingerprint-deduplicated knowledge store
// (C2), and a vector store with ANN search and a brute-force fallback (C3).
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"consensuscore/internal/logging"
)

// CurrentSchemaVersion tracks schema evolution. v1 is the initial
// consensus-core schema; bump and add a migration below when columns change.
const CurrentSchemaVersion = 1

const schemaFacts = `
CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	topic TEXT,
	entities TEXT,
	source TEXT,
	confidence REAL DEFAULT 1.0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_accessed DATETIME DEFAULT CURRENT_TIMESTAMP,
	access_count INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_facts_topic ON facts(topic);
CREATE INDEX IF NOT EXISTS idx_facts_created_at ON facts(created_at);
`

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS consensus_profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	generator_model TEXT NOT NULL,
	refiner_model TEXT NOT NULL,
	validator_model TEXT NOT NULL,
	curator_model TEXT NOT NULL,
	is_active BOOLEAN DEFAULT FALSE
);
`

const schemaConversations = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	question TEXT NOT NULL,
	final_answer TEXT,
	total_cost_usd REAL DEFAULT 0,
	total_tokens INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_conversations_profile ON conversations(profile_id);
`

const schemaStageUsage = `
CREATE TABLE IF NOT EXISTS stage_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER DEFAULT 0,
	completion_tokens INTEGER DEFAULT 0,
	cost_usd REAL DEFAULT 0,
	latency_ms INTEGER DEFAULT 0,
	retries INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_stage_usage_conversation ON stage_usage(conversation_id);
`

const schemaLicense = `
CREATE TABLE IF NOT EXISTS license (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	key TEXT NOT NULL
);
`

const schemaVectors = `
CREATE TABLE IF NOT EXISTS vectors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fact_id INTEGER NOT NULL,
	embedding BLOB NOT NULL,
	dims INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(fact_id) REFERENCES facts(id)
);
CREATE INDEX IF NOT EXISTS idx_vectors_fact ON vectors(fact_id);
`

const schemaLearnedKnowledge = `
CREATE TABLE IF NOT EXISTS learned_knowledge (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_kind TEXT NOT NULL,
	event_json TEXT NOT NULL,
	embedding BLOB,
	patterns TEXT,
	confidence REAL DEFAULT 0.5,
	application_count INTEGER DEFAULT 0,
	success_rate REAL DEFAULT 0.5,
	learned_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_learned_knowledge_kind ON learned_knowledge(event_kind);
CREATE INDEX IF NOT EXISTS idx_learned_knowledge_learned_at ON learned_knowledge(learned_at);
`

const schemaOperationHistory = `
CREATE TABLE IF NOT EXISTS operation_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	operation_hash TEXT NOT NULL,
	context_hash TEXT NOT NULL,
	operation_json TEXT NOT NULL,
	context_json TEXT NOT NULL,
	outcome TEXT NOT NULL,
	user_satisfaction REAL,
	indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_operation_history_op_hash ON operation_history(operation_hash);
CREATE INDEX IF NOT EXISTS idx_operation_history_indexed_at ON operation_history(indexed_at);
`

// runMigrations creates every table the consensus core needs. Each statement
// is idempotent (CREATE TABLE/INDEX IF NOT EXISTS), so this is safe to call
// on every boot rather than threading schema-version checks through callers.
func runMigrations(db *sql.DB) error {
	for _, stmt := range []string{
		schemaFacts,
		schemaProfiles,
		schemaConversations,
		schemaStageUsage,
		schemaLicense,
		schemaVectors,
		schemaLearnedKnowledge,
		schemaOperationHistory,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	logging.DBActor("schema migrations applied (version=%d)", CurrentSchemaVersion)
	return nil
}

// ComputeFingerprint derives the semantic dedup key for a fact: a SHA-256
// digest over its topic and content. Two facts with the same topic+content
// collapse to the same fingerprint regardless of source or timing.
func ComputeFingerprint(topic, content string) string {
	h := sha256.Sum256([]byte(topic + "::" + content))
	return hex.EncodeToString(h[:])
}
