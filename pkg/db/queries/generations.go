package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/quota"
	log "github.com/sirupsen/logrus"
)

const generationColumns = `id, user_id, engine, type, status, prompt, params, result_url, result_meta, raw_response, error, created_at, updated_at`

// reserveUsageQuery counts one generation against a free profile only while
// it is under the limit. Paid profiles match without being incremented.
const reserveUsageQuery = `
	UPDATE profiles
	SET used_generations = CASE WHEN plan = 'paid' THEN used_generations ELSE used_generations + 1 END,
	    updated_at = NOW()
	WHERE id = $1 AND (plan = 'paid' OR used_generations < $2)
	RETURNING plan, used_generations`

// CreateGenerationWithJob reserves quota, inserts the generation in queued
// status and enqueues its completion job in a single transaction. Returns
// ErrQuotaExhausted, and changes nothing, when the reservation fails.
func (s *Store) CreateGenerationWithJob(ctx context.Context, g *db.Generation, runAt time.Time) (*db.Generation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Errorf("Error starting generation transaction: %v", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	var reserved struct {
		Plan            string `db:"plan"`
		UsedGenerations int    `db:"used_generations"`
	}
	if err := tx.GetContext(ctx, &reserved, reserveUsageQuery, g.UserID, quota.FreeLimit); err != nil {
		if err == sql.ErrNoRows {
			log.Infof("Generation quota exhausted for user %s.", g.UserID.String())
			return nil, ErrQuotaExhausted
		}
		log.Errorf("Error reserving usage for user '%s': %v", g.UserID.String(), err)
		return nil, fmt.Errorf("failed to reserve usage: %w", err)
	}

	params := g.Params
	if len(params) == 0 {
		params = types.JSONText(`{}`)
	}

	created := &db.Generation{}
	insertGeneration := `
		INSERT INTO generations (user_id, engine, type, status, prompt, params)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + generationColumns
	if err := tx.GetContext(ctx, created, insertGeneration, g.UserID, g.Engine, g.Type, g.Status, g.Prompt, string(params)); err != nil {
		log.Errorf("Error creating generation: %v", err)
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}

	insertJob := `INSERT INTO generation_jobs (generation_id, status, run_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insertJob, created.ID, db.JobPending, runAt); err != nil {
		log.Errorf("Error enqueuing job for generation '%s': %v", created.ID.String(), err)
		return nil, fmt.Errorf("failed to enqueue generation job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		log.Errorf("Error committing generation '%s': %v", created.ID.String(), err)
		return nil, fmt.Errorf("failed to commit generation: %w", err)
	}

	log.Infof("Generation %s queued for user %s (plan %s, used %d).",
		created.ID.String(), g.UserID.String(), reserved.Plan, reserved.UsedGenerations)
	return created, nil
}

// FindGeneration returns the generation only if it belongs to userID.
// Returns nil, nil otherwise.
func (s *Store) FindGeneration(ctx context.Context, id, userID uuid.UUID) (*db.Generation, error) {
	g := &db.Generation{}
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1 AND user_id = $2`
	err := s.db.GetContext(ctx, g, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debugf("Generation '%s' not found for user '%s'.", id.String(), userID.String())
			return nil, nil
		}
		log.Errorf("Error finding generation '%s': %v", id.String(), err)
		return nil, fmt.Errorf("error finding generation: %w", err)
	}
	return g, nil
}

// FindGenerationByID looks a generation up without an ownership check.
// Only the completion path uses it.
func (s *Store) FindGenerationByID(ctx context.Context, id uuid.UUID) (*db.Generation, error) {
	g := &db.Generation{}
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1`
	err := s.db.GetContext(ctx, g, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		log.Errorf("Error finding generation '%s': %v", id.String(), err)
		return nil, fmt.Errorf("error finding generation: %w", err)
	}
	return g, nil
}

// ListGenerations returns one page of the user's generations, newest first,
// and the user's total count.
func (s *Store) ListGenerations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]db.Generation, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM generations WHERE user_id = $1`, userID); err != nil {
		log.Errorf("Error counting generations for user '%s': %v", userID.String(), err)
		return nil, 0, fmt.Errorf("error counting generations: %w", err)
	}

	generations := []db.Generation{}
	query := `SELECT ` + generationColumns + ` FROM generations WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	if err := s.db.SelectContext(ctx, &generations, query, userID, limit, offset); err != nil {
		log.Errorf("Error listing generations for user '%s': %v", userID.String(), err)
		return nil, 0, fmt.Errorf("error listing generations: %w", err)
	}
	return generations, total, nil
}

// MarkGenerationRunning moves a queued generation to running. Reports
// whether a row changed.
func (s *Store) MarkGenerationRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE generations SET status = 'running', updated_at = NOW() WHERE id = $1 AND status = 'queued'`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Errorf("Error marking generation '%s' running: %v", id.String(), err)
		return false, fmt.Errorf("failed to mark generation running: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Completion is the terminal write applied to a generation.
type Completion struct {
	Status      string
	ResultURL   sql.NullString
	ResultMeta  types.NullJSONText
	RawResponse types.NullJSONText
	Error       sql.NullString
}

// CompleteGeneration writes a terminal status and result. Only rows that are
// still queued or running match, so the first completion wins. Returns
// nil, nil when nothing matched.
func (s *Store) CompleteGeneration(ctx context.Context, id uuid.UUID, c Completion) (*db.Generation, error) {
	g := &db.Generation{}
	query := `
		UPDATE generations
		SET status = $2, result_url = $3, result_meta = $4, raw_response = $5, error = $6, updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'running')
		RETURNING ` + generationColumns
	err := s.db.GetContext(ctx, g, query, id, c.Status, c.ResultURL, c.ResultMeta, c.RawResponse, c.Error)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debugf("Generation '%s' already terminal or missing; completion ignored.", id.String())
			return nil, nil
		}
		log.Errorf("Error completing generation '%s': %v", id.String(), err)
		return nil, fmt.Errorf("failed to complete generation: %w", err)
	}

	log.Infof("Generation %s completed with status '%s'.", id.String(), g.Status)
	return g, nil
}
