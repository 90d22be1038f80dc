package queries

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/db"
	log "github.com/sirupsen/logrus"
)

const connectionColumns = `id, user_id, engine_key, status, created_at, updated_at`

// UpsertEngineConnection sets the status for (userID, engineKey), creating the row if needed.
func (s *Store) UpsertEngineConnection(ctx context.Context, userID uuid.UUID, engineKey, status string) (*db.EngineConnection, error) {
	conn := &db.EngineConnection{}
	query := `
		INSERT INTO engine_connections (user_id, engine_key, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, engine_key)
		DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
		RETURNING ` + connectionColumns
	if err := s.db.GetContext(ctx, conn, query, userID, engineKey, status); err != nil {
		log.Errorf("Error upserting engine connection %s for user '%s': %v", engineKey, userID.String(), err)
		return nil, fmt.Errorf("failed to upsert engine connection: %w", err)
	}
	return conn, nil
}

// ListEngineConnections returns every connection row of the user.
func (s *Store) ListEngineConnections(ctx context.Context, userID uuid.UUID) ([]db.EngineConnection, error) {
	conns := []db.EngineConnection{}
	query := `SELECT ` + connectionColumns + ` FROM engine_connections WHERE user_id = $1 ORDER BY engine_key ASC`
	if err := s.db.SelectContext(ctx, &conns, query, userID); err != nil {
		log.Errorf("Error listing engine connections for user '%s': %v", userID.String(), err)
		return nil, fmt.Errorf("failed to list engine connections: %w", err)
	}
	return conns, nil
}
