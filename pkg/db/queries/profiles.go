package queries

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/db"
	log "github.com/sirupsen/logrus"
)

const profileColumns = `id, email, plan, used_generations, created_at, updated_at`

// FindProfile returns nil, nil when the user has no profile yet.
func (s *Store) FindProfile(ctx context.Context, userID uuid.UUID) (*db.Profile, error) {
	profile := &db.Profile{}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	err := s.db.GetContext(ctx, profile, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		log.Errorf("Error finding profile for user '%s': %v", userID.String(), err)
		return nil, fmt.Errorf("error finding profile: %w", err)
	}
	return profile, nil
}

// InsertProfile creates a free-plan profile with zero usage.
// Returns ErrDuplicate if another request created the row first.
func (s *Store) InsertProfile(ctx context.Context, userID uuid.UUID, email string) (*db.Profile, error) {
	profile := &db.Profile{}
	query := `
		INSERT INTO profiles (id, email, plan, used_generations)
		VALUES ($1, $2, 'free', 0)
		RETURNING ` + profileColumns
	err := s.db.GetContext(ctx, profile, query, userID, email)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		log.Errorf("Error creating profile for user '%s': %v", userID.String(), err)
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Infof("Profile created for user %s.", userID.String())
	return profile, nil
}

// SetPlan changes the plan and leaves used_generations untouched.
// Returns nil, nil when the profile does not exist.
func (s *Store) SetPlan(ctx context.Context, userID uuid.UUID, plan string) (*db.Profile, error) {
	profile := &db.Profile{}
	query := `
		UPDATE profiles SET plan = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	err := s.db.GetContext(ctx, profile, query, userID, plan)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warnf("No profile found with ID '%s' for plan update.", userID.String())
			return nil, nil
		}
		log.Errorf("Error updating plan for user '%s': %v", userID.String(), err)
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	log.Infof("Profile %s moved to plan '%s'.", userID.String(), plan)
	return profile, nil
}
