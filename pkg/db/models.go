package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"` // unique, lower-cased
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Profile tracks plan tier and usage. One row per user, keyed by the user id.
type Profile struct {
	ID              uuid.UUID `db:"id"`
	Email           string    `db:"email"`
	Plan            string    `db:"plan"`             // "free" or "paid"
	UsedGenerations int       `db:"used_generations"` // never decreases
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type Generation struct {
	ID          uuid.UUID          `db:"id"`
	UserID      uuid.UUID          `db:"user_id"`
	Engine      string             `db:"engine"`
	Type        string             `db:"type"`
	Status      string             `db:"status"`
	Prompt      string             `db:"prompt"`
	Params      types.JSONText     `db:"params"` // json, not jsonb, so the submitted bytes survive
	ResultURL   sql.NullString     `db:"result_url"`
	ResultMeta  types.NullJSONText `db:"result_meta"`
	RawResponse types.NullJSONText `db:"raw_response"`
	Error       sql.NullString     `db:"error"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

// GenerationJob is the outbox row that drives a queued generation to completion.
type GenerationJob struct {
	ID           uuid.UUID      `db:"id"`
	GenerationID uuid.UUID      `db:"generation_id"`
	Status       string         `db:"status"` // pending, running, done, failed
	Attempts     int            `db:"attempts"`
	RunAt        time.Time      `db:"run_at"`
	LockedAt     sql.NullTime   `db:"locked_at"`
	LastError    sql.NullString `db:"last_error"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Job statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// EngineConnection records the connection status a user set for an engine.
// Display only; generation logic never reads it.
type EngineConnection struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	EngineKey string    `db:"engine_key"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
