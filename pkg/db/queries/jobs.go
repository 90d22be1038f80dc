package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/db"
	log "github.com/sirupsen/logrus"
)

const jobColumns = `id, generation_id, status, attempts, run_at, locked_at, last_error, created_at, updated_at`

// claimJobQuery picks one due pending job, or a running job whose lock went
// stale because its worker died, and marks it running.
const claimJobQuery = `
	WITH next AS (
		SELECT id FROM generation_jobs
		WHERE (status = 'pending' AND run_at <= NOW())
		   OR (status = 'running' AND locked_at < NOW() - ($1 * INTERVAL '1 second'))
		ORDER BY run_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE generation_jobs j
	SET status = 'running', attempts = j.attempts + 1, locked_at = NOW(), updated_at = NOW()
	FROM next
	WHERE j.id = next.id
	RETURNING j.id, j.generation_id, j.status, j.attempts, j.run_at, j.locked_at, j.last_error, j.created_at, j.updated_at`

// ClaimNextJob returns nil, nil when no job is due.
func (s *Store) ClaimNextJob(ctx context.Context, staleAfter time.Duration) (*db.GenerationJob, error) {
	job := &db.GenerationJob{}
	err := s.db.GetContext(ctx, job, claimJobQuery, staleAfter.Seconds())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	log.Debugf("Claimed job %s for generation %s (attempt %d).", job.ID.String(), job.GenerationID.String(), job.Attempts)
	return job, nil
}

// FinishJob marks a job done.
func (s *Store) FinishJob(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE generation_jobs SET status = 'done', locked_at = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		log.Errorf("Error finishing job '%s': %v", id.String(), err)
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

// RetryJob puts a job back to pending, due at runAt.
func (s *Store) RetryJob(ctx context.Context, id uuid.UUID, cause string, runAt time.Time) error {
	query := `
		UPDATE generation_jobs
		SET status = 'pending', last_error = $2, run_at = $3, locked_at = NULL, updated_at = NOW()
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, cause, runAt); err != nil {
		log.Errorf("Error rescheduling job '%s': %v", id.String(), err)
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// FailJob gives up on a job for good.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, cause string) error {
	query := `UPDATE generation_jobs SET status = 'failed', last_error = $2, locked_at = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, cause); err != nil {
		log.Errorf("Error failing job '%s': %v", id.String(), err)
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// FindJobByGeneration returns nil, nil when the generation has no job.
func (s *Store) FindJobByGeneration(ctx context.Context, generationID uuid.UUID) (*db.GenerationJob, error) {
	job := &db.GenerationJob{}
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE generation_id = $1`
	err := s.db.GetContext(ctx, job, query, generationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding job: %w", err)
	}
	return job, nil
}
