package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
)

// ProfileStore is the profile persistence used by ProfileService.
type ProfileStore interface {
	FindProfile(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
	InsertProfile(ctx context.Context, userID uuid.UUID, email string) (*db.Profile, error)
	SetPlan(ctx context.Context, userID uuid.UUID, plan string) (*db.Profile, error)
}

// GenerationStore is the generation persistence used by GenerationService.
type GenerationStore interface {
	CreateGenerationWithJob(ctx context.Context, g *db.Generation, runAt time.Time) (*db.Generation, error)
	FindGeneration(ctx context.Context, id, userID uuid.UUID) (*db.Generation, error)
	FindGenerationByID(ctx context.Context, id uuid.UUID) (*db.Generation, error)
	ListGenerations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]db.Generation, int, error)
	MarkGenerationRunning(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteGeneration(ctx context.Context, id uuid.UUID, c queries.Completion) (*db.Generation, error)
}

// ConnectionStore persists per-user engine connection status.
type ConnectionStore interface {
	UpsertEngineConnection(ctx context.Context, userID uuid.UUID, engineKey, status string) (*db.EngineConnection, error)
	ListEngineConnections(ctx context.Context, userID uuid.UUID) ([]db.EngineConnection, error)
}

// UserStore backs registration and login.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*db.User, error)
	FindUserByEmail(ctx context.Context, email string) (*db.User, error)
}

var (
	_ ProfileStore    = (*queries.Store)(nil)
	_ GenerationStore = (*queries.Store)(nil)
	_ ConnectionStore = (*queries.Store)(nil)
	_ UserStore       = (*queries.Store)(nil)
)
