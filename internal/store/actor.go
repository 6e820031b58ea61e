package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"consensuscore/internal/config"
	"consensuscore/internal/errs"
)

// command is a unit of work submitted to the actor's run loop. Every public
// Actor method builds one of these and blocks on reply, so the *sql.DB
// handle — which modernc/mattn's embedded driver does not guarantee is safe
// for concurrent use the way a real client/server driver is — is only ever
// touched by the single goroutine running Actor.run.
type command struct {
	exec  func(db *sql.DB) (any, error)
	reply chan result
}

type result struct {
	val any
	err error
}

// Actor owns the database handle and serializes every operation against it
// through a bounded queue (spec's C1 DB Actor). Callers never see *sql.DB.
type Actor struct {
	db        *sql.DB
	vectorExt bool
	queue     chan command
	done      chan struct{}
	closed    chan struct{}
}

// NewActor opens the database at path and starts its single-owner run loop.
// queueCapacity bounds how many in-flight commands may queue before callers
// block, providing backpressure instead of unbounded memory growth.
func NewActor(path string, queueCapacity int) (*Actor, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	a := &Actor{
		db:        db,
		vectorExt: detectVecExtension(db),
		queue:     make(chan command, queueCapacity),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go a.run()
	return a, nil
}

func (a *Actor) run() {
	defer close(a.closed)
	for {
		select {
		case cmd := <-a.queue:
			val, err := cmd.exec(a.db)
			cmd.reply <- result{val: val, err: err}
		case <-a.done:
			// Drain anything already queued before exiting so callers
			// blocked on reply don't hang.
			for {
				select {
				case cmd := <-a.queue:
					val, err := cmd.exec(a.db)
					cmd.reply <- result{val: val, err: err}
				default:
					return
				}
			}
		}
	}
}

// Close stops the run loop and closes the database handle. Blocks until
// in-flight and queued commands drain.
func (a *Actor) Close() error {
	close(a.done)
	<-a.closed
	return a.db.Close()
}

// submit enqueues exec and blocks for its result, respecting ctx
// cancellation both while queueing and while waiting for the reply.
func (a *Actor) submit(ctx context.Context, exec func(db *sql.DB) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.WrapErr(errs.ErrCancelled, err)
	}
	cmd := command{exec: exec, reply: make(chan result, 1)}
	select {
	case a.queue <- cmd:
	case <-ctx.Done():
		return nil, errs.WrapErr(errs.ErrCancelled, ctx.Err())
	case <-a.closed:
		return nil, errs.Wrap(errs.ErrInternal, "actor is closed")
	}
	select {
	case r := <-cmd.reply:
		return r.val, r.err
	case <-ctx.Done():
		return nil, errs.WrapErr(errs.ErrCancelled, ctx.Err())
	}
}

// StoreFact inserts a fact, returning errs.ErrConflict if its fingerprint
// already exists.
func (a *Actor) StoreFact(ctx context.Context, f Fact) (int64, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		res, err := db.Exec(
			`INSERT INTO facts (fingerprint, content, topic, entities, source, confidence) VALUES (?, ?, ?, ?, ?, ?)`,
			f.Fingerprint, f.Content, f.Topic, joinEntities(f.Entities), f.Source, f.Confidence,
		)
		if err != nil {
			if isUniqueConstraintErr(err) {
				return nil, errs.Wrap(errs.ErrConflict, "fact with fingerprint %s already exists", f.Fingerprint)
			}
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return res.LastInsertId()
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// LoadRecentFacts returns facts created at or after cutoff, newest first.
func (a *Actor) LoadRecentFacts(ctx context.Context, cutoff time.Time) ([]Fact, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query(
			`SELECT id, fingerprint, content, topic, entities, source, confidence, created_at, last_accessed, access_count
			 FROM facts WHERE created_at >= ? ORDER BY created_at DESC`,
			cutoff,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanFacts(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Fact), nil
}

// FindSimilarFacts does a keyword (LIKE) pass over content/topic; semantic
// ranking on top of this result set is C2's job, not the actor's.
func (a *Actor) FindSimilarFacts(ctx context.Context, content string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 10
	}
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		like := "%" + content + "%"
		rows, err := db.Query(
			`SELECT id, fingerprint, content, topic, entities, source, confidence, created_at, last_accessed, access_count
			 FROM facts WHERE content LIKE ? OR topic LIKE ? ORDER BY created_at DESC LIMIT ?`,
			like, like, limit,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanFacts(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Fact), nil
}

// GetFactsByIDs resolves a set of fact ids (as produced by KnowledgeStore's
// topic/entity index lookups) to their full Fact rows.
func (a *Actor) GetFactsByIDs(ctx context.Context, ids []int64) ([]Fact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		placeholders := strings.Repeat("?,", len(ids))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		rows, err := db.Query(
			`SELECT id, fingerprint, content, topic, entities, source, confidence, created_at, last_accessed, access_count
			 FROM facts WHERE id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanFacts(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Fact), nil
}

// CheckFactExists reports whether a fact with the given fingerprint exists.
func (a *Actor) CheckFactExists(ctx context.Context, fingerprint string) (bool, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM facts WHERE fingerprint = ?`, fingerprint).Scan(&n); err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// RecordFactAccess bumps access_count and last_accessed for a fact, used by
// the context injector every time it surfaces a fact to a stage prompt.
func (a *Actor) RecordFactAccess(ctx context.Context, id int64) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(
			`UPDATE facts SET access_count = access_count + 1, last_accessed = CURRENT_TIMESTAMP WHERE id = ?`,
			id,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// GetAllFactsSortedByDate returns every fact, oldest first, for bulk
// operations such as KnowledgeStore hydration (C2) and the pre-processor's
// temporal context (C12).
func (a *Actor) GetAllFactsSortedByDate(ctx context.Context) ([]Fact, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		rows, err := db.Query(
			`SELECT id, fingerprint, content, topic, entities, source, confidence, created_at, last_accessed, access_count
			 FROM facts ORDER BY created_at ASC`,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		defer rows.Close()
		return scanFacts(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Fact), nil
}

// GetActiveProfile returns the consensus profile currently flagged active.
func (a *Actor) GetActiveProfile(ctx context.Context) (config.ConsensusProfile, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		return queryProfile(db, `SELECT id, name, generator_model, refiner_model, validator_model, curator_model, is_active
			FROM consensus_profiles WHERE is_active = TRUE LIMIT 1`)
	})
	if err != nil {
		return config.ConsensusProfile{}, err
	}
	return v.(config.ConsensusProfile), nil
}

// SetActiveProfile flips id to active and clears the flag on every other
// profile, so exactly one profile is ever active.
func (a *Actor) SetActiveProfile(ctx context.Context, id string) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		tx, err := db.Begin()
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		if _, err := tx.Exec(`UPDATE consensus_profiles SET is_active = FALSE`); err != nil {
			tx.Rollback()
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		res, err := tx.Exec(`UPDATE consensus_profiles SET is_active = TRUE WHERE id = ?`, id)
		if err != nil {
			tx.Rollback()
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			tx.Rollback()
			return nil, errs.Wrap(errs.ErrNotFound, "profile %s not found", id)
		}
		return nil, tx.Commit()
	})
	return err
}

// GetProfileByName looks up a profile by its human-readable name.
func (a *Actor) GetProfileByName(ctx context.Context, name string) (config.ConsensusProfile, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		return queryProfile(db, `SELECT id, name, generator_model, refiner_model, validator_model, curator_model, is_active
			FROM consensus_profiles WHERE name = ?`, name)
	})
	if err != nil {
		return config.ConsensusProfile{}, err
	}
	return v.(config.ConsensusProfile), nil
}

// UpsertProfile creates or replaces a consensus profile definition.
func (a *Actor) UpsertProfile(ctx context.Context, p config.ConsensusProfile) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(
			`INSERT INTO consensus_profiles (id, name, generator_model, refiner_model, validator_model, curator_model, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name=excluded.name, generator_model=excluded.generator_model,
			   refiner_model=excluded.refiner_model, validator_model=excluded.validator_model,
			   curator_model=excluded.curator_model, is_active=excluded.is_active`,
			p.ID, p.Name, p.GeneratorModel, p.RefinerModel, p.ValidatorModel, p.CuratorModel, p.IsActive,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// StoreConversation persists a new consensus conversation record.
func (a *Actor) StoreConversation(ctx context.Context, c Conversation) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(
			`INSERT INTO conversations (id, profile_id, question, final_answer, total_cost_usd, total_tokens) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.ProfileID, c.Question, c.FinalAnswer, c.TotalCostUSD, c.TotalTokens,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// UpdateConversationCost adds incremental cost/token accounting to a
// conversation and optionally marks it complete when finalAnswer is non-empty.
func (a *Actor) UpdateConversationCost(ctx context.Context, id string, addCostUSD float64, addTokens int64, finalAnswer string) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		if finalAnswer != "" {
			_, err := db.Exec(
				`UPDATE conversations SET total_cost_usd = total_cost_usd + ?, total_tokens = total_tokens + ?,
				 final_answer = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
				addCostUSD, addTokens, finalAnswer, id,
			)
			if err != nil {
				return nil, errs.WrapErr(errs.ErrInternal, err)
			}
			return nil, nil
		}
		_, err := db.Exec(
			`UPDATE conversations SET total_cost_usd = total_cost_usd + ?, total_tokens = total_tokens + ? WHERE id = ?`,
			addCostUSD, addTokens, id,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// GetLicenseKey returns the stored license key, or errs.ErrNotFound if unset.
func (a *Actor) GetLicenseKey(ctx context.Context) (string, error) {
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		var key string
		if err := db.QueryRow(`SELECT key FROM license WHERE id = 1`).Scan(&key); err != nil {
			if err == sql.ErrNoRows {
				return nil, errs.Wrap(errs.ErrNotFound, "no license key configured")
			}
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetLicenseKey stores or replaces the license key.
func (a *Actor) SetLicenseKey(ctx context.Context, key string) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(`INSERT INTO license (id, key) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET key = excluded.key`, key)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// StoreStageUsage records one stage's cost/latency accounting row.
func (a *Actor) StoreStageUsage(ctx context.Context, u StageUsage) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		_, err := db.Exec(
			`INSERT INTO stage_usage (conversation_id, stage, model, prompt_tokens, completion_tokens, cost_usd, latency_ms, retries)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ConversationID, u.Stage, u.Model, u.PromptTokens, u.CompletionTokens, u.CostUSD, u.LatencyMS, u.Retries,
		)
		if err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		return nil, nil
	})
	return err
}

// HealthCheck verifies the database handle still answers a trivial query.
func (a *Actor) HealthCheck(ctx context.Context) error {
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		var one int
		if err := db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
			return nil, errs.WrapErr(errs.ErrUpstreamUnavailable, err)
		}
		return nil, nil
	})
	return err
}

func queryProfile(db *sql.DB, query string, args ...any) (config.ConsensusProfile, error) {
	var p config.ConsensusProfile
	row := db.QueryRow(query, args...)
	if err := row.Scan(&p.ID, &p.Name, &p.GeneratorModel, &p.RefinerModel, &p.ValidatorModel, &p.CuratorModel, &p.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return config.ConsensusProfile{}, errs.Wrap(errs.ErrNotFound, "consensus profile not found")
		}
		return config.ConsensusProfile{}, errs.WrapErr(errs.ErrInternal, err)
	}
	return p, nil
}

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var facts []Fact
	for rows.Next() {
		var f Fact
		var entities string
		if err := rows.Scan(&f.ID, &f.Fingerprint, &f.Content, &f.Topic, &entities, &f.Source,
			&f.Confidence, &f.CreatedAt, &f.LastAccessed, &f.AccessCount); err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		f.Entities = splitEntities(entities)
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.WrapErr(errs.ErrInternal, err)
	}
	return facts, nil
}

func joinEntities(entities []string) string {
	out := ""
	for i, e := range entities {
		if i > 0 {
			out += "\x1f"
		}
		out += e
	}
	return out
}

func splitEntities(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1f' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "unique constraint")
}
