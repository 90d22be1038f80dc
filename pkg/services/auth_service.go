package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthService registers users and exchanges credentials for tokens.
type AuthService struct {
	users  UserStore
	tokens *TokenService
	cost   int
}

func NewAuthService(users UserStore, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Register creates a user. Emails are stored lower-cased.
func (s *AuthService) Register(ctx context.Context, email, password string) (*db.User, string, error) {
	email = normalizeEmail(email)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		log.Errorf("Register: Failed to hash password for %s: %v", email, err)
		return nil, "", apperrors.ErrInternal
	}

	user, err := s.users.CreateUser(ctx, email, string(hashedPassword))
	if err != nil {
		if errors.Is(err, queries.ErrDuplicate) {
			return nil, "", apperrors.ErrConflict.WithMessage("User with this email already exists")
		}
		return nil, "", apperrors.DB("Failed to create user")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", apperrors.ErrInternal.WithMessage("Failed to generate token")
	}
	return user, token, nil
}

// Login verifies the password and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*db.User, string, error) {
	email = normalizeEmail(email)

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", apperrors.DB("Failed to fetch user")
	}
	if user == nil {
		log.Debugf("Login: User not found: %s", email)
		return nil, "", apperrors.ErrUnauthorized.WithMessage("Invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Debugf("Login: Password mismatch for user: %s", email)
		return nil, "", apperrors.ErrUnauthorized.WithMessage("Invalid email or password")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", apperrors.ErrInternal.WithMessage("Failed to generate token")
	}
	return user, token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
