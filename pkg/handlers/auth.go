package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/apperrors"
	"github.com/sparklab/sparklab-api/pkg/utils"
	log "github.com/sirupsen/logrus"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

func (h *Handlers) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("RegisterUser: Invalid request body: %v", err)
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("Invalid request body").WithDetails(err.Error()))
		return
	}

	user, token, err := h.Auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}

	log.Infof("User with ID '%s' created.", user.ID.String())
	utils.ResponseWithSuccess(c, http.StatusCreated, "User created successfully", AuthResponse{
		Token:  token,
		UserID: user.ID,
		Email:  user.Email,
	})
}

func (h *Handlers) LoginUser(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugf("LoginUser: Invalid request body: %v", err)
		utils.ResponseWithAppError(c, apperrors.ErrInvalidRequest.WithMessage("Invalid request body").WithDetails(err.Error()))
		return
	}

	user, token, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.ResponseWithAppError(c, err)
		return
	}

	log.Infof("User %s logged in successfully.", user.Email)
	utils.ResponseWithSuccess(c, http.StatusOK, "Login successful", AuthResponse{
		Token:  token,
		UserID: user.ID,
		Email:  user.Email,
	})
}
