package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/sparklab/sparklab-api/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// CreateGenerationRequest is the create body. engine is accepted as an
// alias of engineKey.
type CreateGenerationRequest struct {
	EngineKey string          `json:"engineKey"`
	Engine    string          `json:"engine"`
	Type      string          `json:"type"`
	Prompt    string          `json:"prompt"`
	Params    json.RawMessage `json:"params"`
}

// GenerationResponse is the client view of a generation.
type GenerationResponse struct {
	ID        uuid.UUID       `json:"id"`
	Engine    string          `json:"engine"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	URL       *string         `json:"url"`
	Meta      json.RawMessage `json:"meta"`
	Prompt    string          `json:"prompt"`
	Params    json.RawMessage `json:"params"`
	Error     *string         `json:"error"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateGenerationResponse adds the user-facing status message.
type CreateGenerationResponse struct {
	GenerationResponse
	Message string `json:"message"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type ListGenerationsResponse struct {
	Items      []GenerationResponse `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

func newGenerationResponse(g *db.Generation) GenerationResponse {
	resp := GenerationResponse{
		ID:        g.ID,
		Engine:    g.Engine,
		Type:      g.Type,
		Status:    g.Status,
		Meta:      json.RawMessage("null"),
		Prompt:    g.Prompt,
		Params:    json.RawMessage(g.Params),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if len(resp.Params) == 0 {
		resp.Params = json.RawMessage("{}")
	}
	if g.ResultURL.Valid {
		resp.URL = &g.ResultURL.String
	}
	if g.ResultMeta.Valid && len(g.ResultMeta.JSONText) > 0 {
		resp.Meta = json.RawMessage(g.ResultMeta.JSONText)
	}
	if g.Error.Valid {
		resp.Error = &g.Error.String
	}
	return resp
}

// CreateGeneration queues a generation. POST /api/generations
func (h *Handlers) CreateGeneration(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "CreateGeneration")
	if !ok {
		return
	}

	var req CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("CreateGeneration: Invalid request body: %v", err)
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("Invalid request body"))
		return
	}

	engineKey := req.EngineKey
	if engineKey == "" {
		engineKey = req.Engine
	}

	g, err := h.Generations.Create(c.Request.Context(), claims.UserID, claims.Email, services.CreateInput{
		EngineKey: engineKey,
		Type:      req.Type,
		Prompt:    req.Prompt,
		Params:    req.Params,
	})
	if err != nil {
		log.Debugf("CreateGeneration: Rejected for user %s: %v", claims.UserID.String(), err)
		utils.ResponseWithAppError(c, err)
		return
	}

	log.Infof("CreateGeneration: Generation %s queued for user %s.", g.ID.String(), claims.UserID.String())
	utils.ResponseWithSuccess(c, http.StatusCreated, "Generation queued", CreateGenerationResponse{
		GenerationResponse: newGenerationResponse(g),
		Message:            "Generation started. Check back in a few seconds.",
	})
}

// GetGeneration returns one of the caller's generations. GET /api/generations/:id
func (h *Handlers) GetGeneration(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "GetGeneration")
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Debugf("GetGeneration: Invalid generation ID format: %s", c.Param("id"))
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("Invalid generation ID"))
		return
	}

	g, err := h.Generations.Get(c.Request.Context(), id, claims.UserID)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Generation retrieved", newGenerationResponse(g))
}

// ListGenerations pages through the caller's history. GET /api/generations?limit=&offset=
func (h *Handlers) ListGenerations(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "ListGenerations")
	if !ok {
		return
	}

	limit, err := queryInt(c, "limit", services.DefaultPageSize)
	if err != nil {
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("limit must be an integer"))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("offset must be an integer"))
		return
	}

	page, err := h.Generations.List(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}

	items := make([]GenerationResponse, len(page.Items))
	for i := range page.Items {
		items[i] = newGenerationResponse(&page.Items[i])
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Generations retrieved", ListGenerationsResponse{
		Items: items,
		Pagination: Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
