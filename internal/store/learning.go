package store

import (
	"context"
	"database/sql"

	"consensuscore/internal/errs"
)

// StoreLearnedKnowledge inserts one C10 learned-knowledge row and returns
// its id.
func (a *Actor) StoreLearnedKnowledge(ctx context.Context, row LearnedKnowledgeRow) (int64, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		res, err := db.Exec(
			`INSERT INTO learned_knowledge (event_kind, event_json, embedding, patterns, confidence, application_count, success_rate)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.EventKind, row.EventJSON, encodeFloat32(row.Embedding), row.PatternsJSON,
			row.Confidence, row.ApplicationCount, row.SuccessRate,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return res.LastInsertId()
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// UpdateLearnedKnowledgeFeedback rewrites confidence, success_rate and
// application_count for one row after apply_feedback runs.
func (a *Actor) UpdateLearnedKnowledgeFeedback(ctx context.Context, id int64, confidence, successRate float64, applicationCount int64) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(
			`UPDATE learned_knowledge SET confidence = ?, success_rate = ?, application_count = ? WHERE id = ?`,
			confidence, successRate, applicationCount, id,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// LoadRecentLearnedKnowledge returns the most recently learned rows, newest
// first, capped at limit — the persistent mirror of C10's bounded
// recent-cache ring buffer.
func (a *Actor) LoadRecentLearnedKnowledge(ctx context.Context, limit int) ([]LearnedKnowledgeRow, error) {
	if limit <= 0 {
		limit = 100
	}
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query(
			`SELECT id, event_kind, event_json, embedding, patterns, confidence, application_count, success_rate, learned_at
			 FROM learned_knowledge ORDER BY learned_at DESC LIMIT ?`, limit,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanLearnedKnowledge(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]LearnedKnowledgeRow), nil
}

func scanLearnedKnowledge(rows *sql.Rows) ([]LearnedKnowledgeRow, error) {
	var out []LearnedKnowledgeRow
	for rows.Next() {
		var r LearnedKnowledgeRow
		var embedding []byte
		if err := rows.Scan(&r.ID, &r.EventKind, &r.EventJSON, &embedding, &r.PatternsJSON,
			&r.Confidence, &r.ApplicationCount, &r.SuccessRate, &r.LearnedAt); err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		if len(embedding) > 0 {
			r.Embedding = decodeFloat32(embedding)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StoreOperationOutcome inserts one C11 operation-history row.
func (a *Actor) StoreOperationOutcome(ctx context.Context, row OperationHistoryRow) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(
			`INSERT INTO operation_history (operation_hash, context_hash, operation_json, context_json, outcome, user_satisfaction)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			row.OperationHash, row.ContextHash, row.OperationJSON, row.ContextJSON, row.Outcome, row.UserSatisfaction,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// FindOperationsByHash returns every recorded outcome for operationHash,
// oldest first.
func (a *Actor) FindOperationsByHash(ctx context.Context, operationHash string) ([]OperationHistoryRow, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query(
			`SELECT id, operation_hash, context_hash, operation_json, context_json, outcome, user_satisfaction, indexed_at
			 FROM operation_history WHERE operation_hash = ? ORDER BY indexed_at ASC`, operationHash,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanOperationHistory(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]OperationHistoryRow), nil
}

// GetAllOperationOutcomes returns every recorded outcome, oldest first, for
// trend analysis (C11's analyze_success_trend).
func (a *Actor) GetAllOperationOutcomes(ctx context.Context) ([]OperationHistoryRow, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query(
			`SELECT id, operation_hash, context_hash, operation_json, context_json, outcome, user_satisfaction, indexed_at
			 FROM operation_history ORDER BY indexed_at ASC`,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanOperationHistory(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]OperationHistoryRow), nil
}

func scanOperationHistory(rows *sql.Rows) ([]OperationHistoryRow, error) {
	var out []OperationHistoryRow
	for rows.Next() {
		var r OperationHistoryRow
		if err := rows.Scan(&r.ID, &r.OperationHash, &r.ContextHash, &r.OperationJSON, &r.ContextJSON,
			&r.Outcome, &r.UserSatisfaction, &r.IndexedAt); err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
