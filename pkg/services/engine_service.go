package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/engines"
)

// Connection statuses shown to clients.
const (
	ConnectionConnected    = "connected"
	ConnectionNotConnected = "not_connected"
)

// EngineView is a registry entry annotated with the caller's connection status.
type EngineView struct {
	engines.Descriptor
	Connection string `json:"connection"`
}

// EngineService lists engines and records per-user connection status.
// Connection status is informational and never gates generation.
type EngineService struct {
	store ConnectionStore
}

func NewEngineService(store ConnectionStore) *EngineService {
	return &EngineService{store: store}
}

// ListEngines returns every registered engine in display order.
func (s *EngineService) ListEngines(ctx context.Context, userID uuid.UUID) ([]EngineView, error) {
	conns, err := s.store.ListEngineConnections(ctx, userID)
	if err != nil {
		return nil, apperrors.DB("Failed to fetch engine connections")
	}
	status := make(map[string]string, len(conns))
	for _, c := range conns {
		status[c.EngineKey] = c.Status
	}

	all := engines.All()
	views := make([]EngineView, len(all))
	for i, d := range all {
		views[i] = EngineView{Descriptor: d, Connection: normalizeConnection(status[d.Key])}
	}
	return views, nil
}

// Connections returns the user's stored connection rows.
func (s *EngineService) Connections(ctx context.Context, userID uuid.UUID) ([]db.EngineConnection, error) {
	conns, err := s.store.ListEngineConnections(ctx, userID)
	if err != nil {
		return nil, apperrors.DB("Failed to fetch engine connections")
	}
	return conns, nil
}

// Connect upserts the connection status of one engine for the user.
// Status is matched case-insensitively and stored in its canonical form.
func (s *EngineService) Connect(ctx context.Context, userID uuid.UUID, engineKey, status string) (*db.EngineConnection, error) {
	engineKey = strings.TrimSpace(engineKey)
	status = strings.ToLower(strings.TrimSpace(status))
	if engineKey == "" || status == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("Missing required fields: engineKey, status")
	}
	if _, ok := engines.Lookup(engineKey); !ok {
		return nil, apperrors.ErrInvalidEngine.WithMessage(
			fmt.Sprintf("Invalid engine. Valid options: %s", strings.Join(engines.Keys(), ", ")))
	}
	if status != ConnectionConnected && status != ConnectionNotConnected {
		return nil, apperrors.ErrInvalidRequest.WithMessage(
			fmt.Sprintf("Invalid status. Valid options: %s, %s", ConnectionConnected, ConnectionNotConnected))
	}
	conn, err := s.store.UpsertEngineConnection(ctx, userID, engineKey, status)
	if err != nil {
		return nil, apperrors.DB("Failed to save engine connection")
	}
	return conn, nil
}

func normalizeConnection(status string) string {
	if strings.EqualFold(strings.TrimSpace(status), ConnectionConnected) {
		return ConnectionConnected
	}
	return ConnectionNotConnected
}
