package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/sparklab/sparklab-api/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// GetProfile returns the caller's profile, creating it on first access.
func (h *Handlers) GetProfile(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "GetProfile")
	if !ok {
		return
	}

	profile, err := h.Profiles.GetOrCreate(c.Request.Context(), claims.UserID, claims.Email)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Profile retrieved", services.NewProfileView(profile))
}

// UpgradePlan moves the caller to the paid plan.
func (h *Handlers) UpgradePlan(c *gin.Context) {
	claims, ok := claimsOrAbort(c, "UpgradePlan")
	if !ok {
		return
	}

	profile, err := h.Profiles.Upgrade(c.Request.Context(), claims.UserID, claims.Email)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}
	log.Infof("UpgradePlan: User %s upgraded to %s.", claims.UserID.String(), profile.Plan)
	utils.ResponseWithSuccess(c, http.StatusOK, "Plan upgraded", services.NewProfileView(profile))
}
