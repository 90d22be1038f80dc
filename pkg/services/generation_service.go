package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/db/queries"
	"github.com/sparklab/sparklab-api/pkg/engines"
	"github.com/sparklab/sparklab-api/pkg/generation"
	"github.com/sparklab/sparklab-api/pkg/metrics"
	"github.com/sparklab/sparklab-api/pkg/quota"
	log "github.com/sirupsen/logrus"
)

// Paging bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ErrAlreadyCompleted is returned by Complete when the generation already
// reached a terminal status. Callers driving completion treat it as success.
var ErrAlreadyCompleted = errors.New("ALREADY_COMPLETED")

// CreateInput is a create request as submitted by the client.
type CreateInput struct {
	EngineKey string
	Type      string
	Prompt    string
	Params    json.RawMessage
}

// Outcome is what an engine run produced for a generation.
type Outcome struct {
	Status generation.Status
	URL    string
	Meta   map[string]any
	Raw    map[string]any
	Error  string
}

// Page is one page of a user's generations.
type Page struct {
	Items   []db.Generation
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// GenerationService drives a generation from submission to a terminal status.
type GenerationService struct {
	store    GenerationStore
	profiles *ProfileService
	now      func() time.Time
}

func NewGenerationService(store GenerationStore, profiles *ProfileService) *GenerationService {
	return &GenerationService{store: store, profiles: profiles, now: time.Now}
}

// Create validates the request, reserves one unit of quota and persists the
// generation in queued status together with its completion job.
func (s *GenerationService) Create(ctx context.Context, owner uuid.UUID, email string, in CreateInput) (*db.Generation, error) {
	engineKey := strings.TrimSpace(in.EngineKey)
	if engineKey == "" || strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Prompt) == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("Missing required fields: engineKey, type, prompt")
	}

	// The length rule applies to the trimmed prompt; the row keeps it as sent.
	if _, err := generation.ValidatePrompt(in.Prompt); err != nil {
		return nil, apperrors.ErrInvalidRequest.WithMessage(err.Error())
	}

	desc, err := engines.Resolve(engineKey, generation.Type(in.Type))
	if err != nil {
		return nil, err
	}

	params, err := generation.ParseParams(in.Params)
	if err != nil {
		return nil, apperrors.ErrInvalidParams.WithMessage(err.Error())
	}
	if err := params.Validate(); err != nil {
		return nil, apperrors.ErrInvalidParams.WithMessage(err.Error())
	}
	if err := desc.Supports(params); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetOrCreate(ctx, owner, email)
	if err != nil {
		return nil, err
	}
	if decision := quota.Evaluate(quota.Plan(profile.Plan), profile.UsedGenerations); !decision.Allowed {
		log.Infof("Free tier limit reached for user: %s", owner.String())
		metrics.RecordQuotaDenial()
		return nil, apperrors.ErrLimitReached
	}

	raw := types.JSONText(`{}`)
	if len(in.Params) > 0 && string(in.Params) != "null" {
		raw = types.JSONText(in.Params)
	}

	g := &db.Generation{
		UserID: owner,
		Engine: desc.Key,
		Type:   string(desc.Type),
		Status: string(generation.StatusQueued),
		Prompt: in.Prompt,
		Params: raw,
	}
	created, err := s.store.CreateGenerationWithJob(ctx, g, s.now())
	if err != nil {
		if errors.Is(err, queries.ErrQuotaExhausted) {
			metrics.RecordQuotaDenial()
			return nil, apperrors.ErrLimitReached
		}
		return nil, apperrors.DB("Failed to create generation")
	}
	metrics.RecordGenerationCreated(created.Engine)
	return created, nil
}

// Get returns the generation when it exists and belongs to owner.
func (s *GenerationService) Get(ctx context.Context, id, owner uuid.UUID) (*db.Generation, error) {
	g, err := s.store.FindGeneration(ctx, id, owner)
	if err != nil {
		return nil, apperrors.DB("Failed to fetch generation")
	}
	if g == nil {
		return nil, apperrors.NotFound("Generation")
	}
	return g, nil
}

// List returns a page of the owner's generations, newest first.
func (s *GenerationService) List(ctx context.Context, owner uuid.UUID, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.store.ListGenerations(ctx, owner, limit, offset)
	if err != nil {
		return nil, apperrors.DB("Failed to fetch generations")
	}
	return &Page{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}, nil
}

// Load returns a generation without an ownership check, for the worker.
func (s *GenerationService) Load(ctx context.Context, id uuid.UUID) (*db.Generation, error) {
	g, err := s.store.FindGenerationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFound("Generation")
	}
	return g, nil
}

// Start moves a queued generation to running. A generation that is already
// running, because a stale job was reclaimed, is left as it is.
func (s *GenerationService) Start(ctx context.Context, g *db.Generation) error {
	current := generation.Status(g.Status)
	if current == generation.StatusRunning {
		return nil
	}
	if _, err := generation.Transition(current, generation.StatusRunning); err != nil {
		if current.IsTerminal() {
			return ErrAlreadyCompleted
		}
		return err
	}
	if _, err := s.store.MarkGenerationRunning(ctx, g.ID); err != nil {
		return err
	}
	g.Status = string(generation.StatusRunning)
	return nil
}

// Complete writes the terminal outcome. Only the first completion of a
// generation takes effect; later calls return ErrAlreadyCompleted.
func (s *GenerationService) Complete(ctx context.Context, id uuid.UUID, out Outcome) (*db.Generation, error) {
	if !out.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is not terminal", generation.ErrIllegalTransition, out.Status)
	}

	current, err := s.store.FindGenerationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("Generation")
	}
	if _, err := generation.Transition(generation.Status(current.Status), out.Status); err != nil {
		if generation.Status(current.Status).IsTerminal() {
			return current, ErrAlreadyCompleted
		}
		return nil, err
	}

	c := queries.Completion{Status: string(out.Status)}
	if out.URL != "" {
		c.ResultURL = sql.NullString{String: out.URL, Valid: true}
	}
	if out.Error != "" {
		c.Error = sql.NullString{String: out.Error, Valid: true}
	}
	if c.ResultMeta, err = nullJSON(out.Meta); err != nil {
		return nil, err
	}
	if c.RawResponse, err = nullJSON(out.Raw); err != nil {
		return nil, err
	}

	updated, err := s.store.CompleteGeneration(ctx, id, c)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost the race against another completion.
		return nil, ErrAlreadyCompleted
	}
	metrics.RecordGenerationCompleted(updated.Engine, updated.Status)
	return updated, nil
}

func nullJSON(v map[string]any) (types.NullJSONText, error) {
	if v == nil {
		return types.NullJSONText{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return types.NullJSONText{}, fmt.Errorf("failed to encode result: %w", err)
	}
	return types.NullJSONText{JSONText: types.JSONText(b), Valid: true}, nil
}
