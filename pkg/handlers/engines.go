package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/db"
	"github.com/sparklab/sparklab-api/pkg/utils"
	log "github.com/sirupsen/logrus"
)

type EngineConnectionRequest struct {
	EngineKey string `json:"engineKey"`
	Status    string `json:"status"`
}

type EngineConnectionResponse struct {
	EngineKey string    `json:"engine_key"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newEngineConnectionResponse(conn db.EngineConnection) EngineConnectionResponse {
	return EngineConnectionResponse{EngineKey: conn.EngineKey, Status: conn.Status, UpdatedAt: conn.UpdatedAt}
}

// ListEngines returns the registry with the caller's connection status.
func (h *Handlers) ListEngines(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "ListEngines")
	if !ok {
		return
	}
	views, err := h.Engines.ListEngines(c.Request.Context(), claims.UserID)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Engines retrieved", gin.H{"engines": views})
}

// ListEngineConnections returns the caller's stored connection rows.
func (h *Handlers) ListEngineConnections(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "ListEngineConnections")
	if !ok {
		return
	}
	conns, err := h.Engines.Connections(c.Request.Context(), claims.UserID)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}
	out := make([]EngineConnectionResponse, len(conns))
	for i, conn := range conns {
		out[i] = newEngineConnectionResponse(conn)
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Engine connections retrieved", gin.H{"connections": out})
}

// UpsertEngineConnection records a connection status for one engine.
func (h *Handlers) UpsertEngineConnection(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "UpsertEngineConnection")
	if !ok {
		return
	}

	var req EngineConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("UpsertEngineConnection: Invalid request body: %v", err)
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("Invalid request body"))
		return
	}

	conn, err := h.Engines.Connect(c.Request.Context(), claims.UserID, req.EngineKey, req.Status)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Engine connection saved", newEngineConnectionResponse(*conn))
}
