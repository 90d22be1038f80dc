package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
	"github.com/sparklab/sparklab-api/pkg/generation"
	"github.com/sparklab/sparklab-api/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProfileStore struct {
	mock.Mock
}

func (m *mockProfileStore) FindProfile(ctx context.Context, userID uuid.UUID) (*db.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*db.Profile)
	return p, args.Error(1)
}

func (m *mockProfileStore) InsertProfile(ctx context.Context, userID uuid.UUID, email string) (*db.Profile, error) {
	args := m.Called(ctx, userID, email)
	p, _ := args.Get(0).(*db.Profile)
	return p, args.Error(1)
}

func (m *mockProfileStore) SetPlan(ctx context.Context, userID uuid.UUID, plan string) (*db.Profile, error) {
	args := m.Called(ctx, userID, plan)
	p, _ := args.Get(0).(*db.Profile)
	return p, args.Error(1)
}

func newServices(store *testutil.MemStore) (*ProfileService, *GenerationService) {
	profiles := NewProfileService(store)
	return profiles, NewGenerationService(store, profiles)
}

func imageInput(prompt string) CreateInput {
	return CreateInput{EngineKey: "image_engine_a", Type: "image", Prompt: prompt}
}

func TestGetOrCreateRereadsOnDuplicate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	existing := &db.Profile{ID: userID, Email: "a@example.com", Plan: "free", UsedGenerations: 2}

	store := new(mockProfileStore)
	store.On("FindProfile", ctx, userID).Return(nil, nil).Once()
	store.On("InsertProfile", ctx, userID, "a@example.com").Return(nil, queries.ErrDuplicate).Once()
	store.On("FindProfile", ctx, userID).Return(existing, nil).Once()

	profile, err := NewProfileService(store).GetOrCreate(ctx, userID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, existing, profile)
	store.AssertExpectations(t)
}

func TestGetOrCreateStorageFailure(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	store := new(mockProfileStore)
	store.On("FindProfile", ctx, userID).Return(nil, errors.New("connection refused"))

	_, err := NewProfileService(store).GetOrCreate(ctx, userID, "a@example.com")
	assert.ErrorIs(t, err, apperrors.ErrDB)
}

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	store := testutil.NewMemStore()
	profiles := NewProfileService(store)
	userID := uuid.New()

	var wg sync.WaitGroup
	results := make([]*db.Profile, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := profiles.GetOrCreate(context.Background(), userID, "a@example.com")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.ProfileInserts)
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, userID, p.ID)
	}
}

func TestUpgradeKeepsUsage(t *testing.T) {
	store := testutil.NewMemStore()
	profiles := NewProfileService(store)
	ctx := context.Background()
	userID := uuid.New()

	_, err := profiles.GetOrCreate(ctx, userID, "a@example.com")
	require.NoError(t, err)
	store.SetUsage(userID, 5)

	p, err := profiles.Upgrade(ctx, userID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "paid", p.Plan)
	assert.Equal(t, 5, p.UsedGenerations)

	view := NewProfileView(p)
	assert.Equal(t, "unlimited", view.RemainingGenerations)
}

func TestCreateQueuesGeneration(t *testing.T) {
	store := testutil.NewMemStore()
	_, gens := newServices(store)
	userID := uuid.New()

	in := imageInput("  a cat  ")
	in.Params = json.RawMessage(`{"outputCount": 3, "style":"noir"}`)
	g, err := gens.Create(context.Background(), userID, "a@example.com", in)
	require.NoError(t, err)

	assert.Equal(t, "queued", g.Status)
	assert.Equal(t, "  a cat  ", g.Prompt)
	assert.Equal(t, `{"outputCount": 3, "style":"noir"}`, string(g.Params))

	job := store.JobFor(g.ID)
	require.NotNil(t, job)
	assert.Equal(t, db.JobPending, job.Status)
}

func TestCreateThenGetReturnsInputVerbatim(t *testing.T) {
	store := testutil.NewMemStore()
	_, gens := newServices(store)
	ctx := context.Background()
	owner := uuid.New()

	in := CreateInput{
		EngineKey: "image_engine_c",
		Type:      "image",
		Prompt:    "\n  a cat in the rain  \t",
		Params:    json.RawMessage(`{ "outputCount" : -2, "steps": 500, "custom": [1, 2] }`),
	}
	g, err := gens.Create(ctx, owner, "a@example.com", in)
	require.NoError(t, err)

	got, err := gens.Get(ctx, g.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, in.EngineKey, got.Engine)
	assert.Equal(t, in.Type, got.Type)
	assert.Equal(t, in.Prompt, got.Prompt)
	assert.Equal(t, string(in.Params), string(got.Params))
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
		code string
	}{
		{"missing engine", CreateInput{Type: "image", Prompt: "x"}, "INVALID_REQUEST"},
		{"missing type", CreateInput{EngineKey: "image_engine_a", Prompt: "x"}, "INVALID_REQUEST"},
		{"blank prompt", imageInput("   "), "INVALID_REQUEST"},
		{"long prompt", imageInput(strings.Repeat("a", 1001)), "INVALID_REQUEST"},
		{"unknown engine", CreateInput{EngineKey: "dall-e", Type: "image", Prompt: "x"}, "INVALID_ENGINE"},
		{"type mismatch", CreateInput{EngineKey: "video_engine_a", Type: "image", Prompt: "x"}, "INVALID_TYPE"},
		{"params not object", CreateInput{EngineKey: "image_engine_a", Type: "image", Prompt: "x", Params: json.RawMessage(`[1]`)}, "INVALID_PARAMS"},
		{"unknown engine before bad params", CreateInput{EngineKey: "dall-e", Type: "image", Prompt: "x", Params: json.RawMessage(`{"aspectRatio":"wide"}`)}, "INVALID_ENGINE"},
		{"type mismatch before bad params", CreateInput{EngineKey: "video_engine_a", Type: "image", Prompt: "x", Params: json.RawMessage(`[1]`)}, "INVALID_TYPE"},
		{"padded long prompt", imageInput(" " + strings.Repeat("a", 1001) + " "), "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemStore()
			_, gens := newServices(store)

			_, err := gens.Create(context.Background(), uuid.New(), "a@example.com", tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.As(err).Code)
			assert.Zero(t, store.GenerationCount())
		})
	}
}

func TestCreateEnforcesFreeLimit(t *testing.T) {
	store := testutil.NewMemStore()
	profiles, gens := newServices(store)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := gens.Create(ctx, userID, "a@example.com", imageInput("a cat"))
		require.NoError(t, err)
	}

	_, err := gens.Create(ctx, userID, "a@example.com", imageInput("a cat"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLimitReached)

	p, err := profiles.GetOrCreate(ctx, userID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, p.UsedGenerations)
	assert.Equal(t, 0, NewProfileView(p).RemainingGenerations)
	assert.Equal(t, 5, store.GenerationCount())
}

func TestCreateConcurrentReservationNeverOvershoots(t *testing.T) {
	store := testutil.NewMemStore()
	profiles, gens := newServices(store)
	ctx := context.Background()
	userID := uuid.New()
	_, err := profiles.GetOrCreate(ctx, userID, "a@example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = gens.Create(ctx, userID, "a@example.com", imageInput("a cat"))
		}()
	}
	wg.Wait()

	p, err := profiles.GetOrCreate(ctx, userID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, p.UsedGenerations)
	assert.Equal(t, 5, store.GenerationCount())
}

func TestCreatePaidDoesNotCount(t *testing.T) {
	store := testutil.NewMemStore()
	profiles, gens := newServices(store)
	ctx := context.Background()
	userID := uuid.New()

	_, err := profiles.Upgrade(ctx, userID, "a@example.com")
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		_, err := gens.Create(ctx, userID, "a@example.com", imageInput("a cat"))
		require.NoError(t, err)
	}

	p, err := profiles.GetOrCreate(ctx, userID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UsedGenerations)
}

func TestGetScopedToOwner(t *testing.T) {
	store := testutil.NewMemStore()
	_, gens := newServices(store)
	ctx := context.Background()
	owner := uuid.New()

	g, err := gens.Create(ctx, owner, "a@example.com", imageInput("a cat"))
	require.NoError(t, err)

	_, err = gens.Get(ctx, g.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := gens.Get(ctx, g.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
}

func TestListPagination(t *testing.T) {
	store := testutil.NewMemStore()
	profiles, gens := newServices(store)
	ctx := context.Background()
	owner := uuid.New()
	_, err := profiles.Upgrade(ctx, owner, "a@example.com")
	require.NoError(t, err)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		g, err := gens.Create(ctx, owner, "a@example.com", imageInput("a cat"))
		require.NoError(t, err)
		ids = append(ids, g.ID)
	}

	page, err := gens.List(ctx, owner, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[4], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)

	page, err = gens.List(ctx, owner, 2, 4)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Len(t, page.Items, 1)

	page, err = gens.List(ctx, owner, 0, -3)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Limit)
	assert.Equal(t, 0, page.Offset)

	page, err = gens.List(ctx, owner, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Limit)
}

func TestCompleteIsIdempotent(t *testing.T) {
	store := testutil.NewMemStore()
	_, gens := newServices(store)
	ctx := context.Background()

	g, err := gens.Create(ctx, uuid.New(), "a@example.com", imageInput("a cat"))
	require.NoError(t, err)
	require.NoError(t, gens.Start(ctx, g))

	done, err := gens.Complete(ctx, g.ID, Outcome{
		Status: generation.StatusSuccess,
		URL:    "https://example.com/fake.jpg",
		Meta:   map[string]any{"outputCount": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "success", done.Status)
	assert.Equal(t, "https://example.com/fake.jpg", done.ResultURL.String)
	assert.JSONEq(t, `{"outputCount":1}`, string(done.ResultMeta.JSONText))

	again, err := gens.Complete(ctx, g.ID, Outcome{Status: generation.StatusFailed, Error: "late"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, "success", again.Status)
	assert.False(t, again.Error.Valid)
}

func TestCompleteRejectsIllegalTransitions(t *testing.T) {
	store := testutil.NewMemStore()
	_, gens := newServices(store)
	ctx := context.Background()

	g, err := gens.Create(ctx, uuid.New(), "a@example.com", imageInput("a cat"))
	require.NoError(t, err)

	_, err = gens.Complete(ctx, g.ID, Outcome{Status: generation.StatusSuccess})
	assert.ErrorIs(t, err, generation.ErrIllegalTransition)

	_, err = gens.Complete(ctx, g.ID, Outcome{Status: generation.StatusRunning})
	assert.ErrorIs(t, err, generation.ErrIllegalTransition)

	failed, err := gens.Complete(ctx, g.ID, Outcome{Status: generation.StatusFailed, Error: "gave up"})
	require.NoError(t, err)
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, "gave up", failed.Error.String)
}

func TestStartAfterCompletion(t *testing.T) {
	store := testutil.NewMemStore()
	_, gens := newServices(store)
	ctx := context.Background()

	g, err := gens.Create(ctx, uuid.New(), "a@example.com", imageInput("a cat"))
	require.NoError(t, err)
	_, err = gens.Complete(ctx, g.ID, Outcome{Status: generation.StatusFailed, Error: "x"})
	require.NoError(t, err)

	loaded, err := gens.Load(ctx, g.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, gens.Start(ctx, loaded), ErrAlreadyCompleted)
}

func TestEngineConnections(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewEngineService(store)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Connect(ctx, userID, "nope", "connected")
	assert.ErrorIs(t, err, apperrors.ErrInvalidEngine)

	_, err = svc.Connect(ctx, userID, "image_engine_a", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	assert.Equal(t, "Missing required fields: engineKey, status", apperrors.As(err).Message)

	_, err = svc.Connect(ctx, userID, "", "connected")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = svc.Connect(ctx, userID, "image_engine_a", "maybe")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	conn, err := svc.Connect(ctx, userID, "image_engine_b", " Connected ")
	require.NoError(t, err)
	assert.Equal(t, ConnectionConnected, conn.Status)

	views, err := svc.ListEngines(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 4)
	for _, v := range views {
		if v.Key == "image_engine_b" {
			assert.Equal(t, ConnectionConnected, v.Connection)
		} else {
			assert.Equal(t, ConnectionNotConnected, v.Connection)
		}
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	store := testutil.NewMemStore()
	tokens := NewTokenService("secret", time.Hour)
	auth := NewAuthService(store, tokens)
	auth.cost = 4
	ctx := context.Background()

	user, token, err := auth.Register(ctx, " Ada@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = auth.Register(ctx, "ada@example.com", "other")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, _, err = auth.Login(ctx, "ADA@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, token, err = auth.Login(ctx, "ADA@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokenService("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	tokens.now = func() time.Time { return issued }
	token, err := tokens.GenerateToken(uuid.New(), "a@example.com")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.ValidateToken(token)
	assert.Error(t, err)

	_, err = NewTokenService("other", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}
