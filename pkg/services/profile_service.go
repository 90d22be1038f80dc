package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
	"github.com/sparklab/sparklab-api/pkg/quota"
	log "github.com/sirupsen/logrus"
)

// ProfileService owns profile creation and plan changes.
type ProfileService struct {
	store ProfileStore
}

func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{store: store}
}

// GetOrCreate returns the user's profile, creating a free one on first
// access. Two concurrent first calls both end up with the single row the
// uniqueness constraint let through.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID uuid.UUID, email string) (*db.Profile, error) {
	profile, err := s.store.FindProfile(ctx, userID)
	if err != nil {
		return nil, apperrors.DB("Failed to fetch user profile")
	}
	if profile != nil {
		return profile, nil
	}

	log.Infof("Profile not found, creating for user: %s", userID.String())
	profile, err = s.store.InsertProfile(ctx, userID, email)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, queries.ErrDuplicate) {
		return nil, apperrors.DB("Failed to create user profile")
	}

	log.Infof("Profile for user %s already exists (concurrent create), re-reading it.", userID.String())
	profile, err = s.store.FindProfile(ctx, userID)
	if err != nil || profile == nil {
		log.Errorf("Failed to fetch existing profile for user %s after duplicate insert: %v", userID.String(), err)
		return nil, apperrors.DB("Failed to fetch user profile")
	}
	return profile, nil
}

// Upgrade moves the user to the paid plan. No payment is verified.
func (s *ProfileService) Upgrade(ctx context.Context, userID uuid.UUID, email string) (*db.Profile, error) {
	if _, err := s.GetOrCreate(ctx, userID, email); err != nil {
		return nil, err
	}
	profile, err := s.store.SetPlan(ctx, userID, string(quota.PlanPaid))
	if err != nil {
		return nil, apperrors.DB("Failed to upgrade plan")
	}
	if profile == nil {
		return nil, apperrors.NotFound("User profile")
	}
	return profile, nil
}

// ProfileView is the client representation of a profile.
type ProfileView struct {
	ID                   uuid.UUID `json:"id"`
	Email                string    `json:"email"`
	Plan                 string    `json:"plan"`
	UsedGenerations      int       `json:"usedGenerations"`
	RemainingGenerations any       `json:"remainingGenerations"` // int, or "unlimited"
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func NewProfileView(p *db.Profile) ProfileView {
	return ProfileView{
		ID:                   p.ID,
		Email:                p.Email,
		Plan:                 p.Plan,
		UsedGenerations:      p.UsedGenerations,
		RemainingGenerations: quota.Remaining(quota.Plan(p.Plan), p.UsedGenerations),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}
