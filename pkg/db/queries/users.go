package queries

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/db"
	log "github.com/sirupsen/logrus"
)

const userColumns = `id, email, password_hash, created_at, updated_at`

// CreateUser inserts a user and returns it with the generated fields.
// Returns ErrDuplicate when the email is taken.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*db.User, error) {
	user := &db.User{}
	query := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING ` + userColumns
	err := s.db.GetContext(ctx, user, query, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			log.Debugf("User with email '%s' already exists.", email)
			return nil, ErrDuplicate
		}
		log.Errorf("Error creating user: %v", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Infof("User %s created with ID: %s", user.Email, user.ID.String())
	return user, nil
}

// FindUserByEmail returns nil, nil when no user has that email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*db.User, error) {
	user := &db.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	err := s.db.GetContext(ctx, user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debugf("User with email '%s' not found.", email)
			return nil, nil
		}
		log.Errorf("Error finding user by email '%s': %v", email, err)
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}
	return user, nil
}

// FindUserByID returns nil, nil when the user does not exist.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	user := &db.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := s.db.GetContext(ctx, user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debugf("User with ID '%s' not found.", id.String())
			return nil, nil
		}
		log.Errorf("Error finding user by ID '%s': %v", id.String(), err)
		return nil, fmt.Errorf("error finding user by ID: %w", err)
	}
	return user, nil
}
