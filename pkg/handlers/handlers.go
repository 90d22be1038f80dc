package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparklab/sparklab-api/pkg/middleware"
	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/sparklab/sparklab-api/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// Handlers holds the services the HTTP layer calls into.
type Handlers struct {
	Auth        *services.AuthService
	Profiles    *services.ProfileService
	Generations *services.GenerationService
	Engines     *services.EngineService
}

// NewHandlers creates a new instance of Handlers
func NewHandlers(auth *services.AuthService, profiles *services.ProfileService, generations *services.GenerationService, engineSvc *services.EngineService) *Handlers {
	return &Handlers{
		Auth:        auth,
		Profiles:    profiles,
		Generations: generations,
		Engines:     engineSvc,
	}
}

// RegisterRoutes mounts every endpoint on router. The create route is rate
// limited when limiter is non-nil.
func (h *Handlers) RegisterRoutes(router gin.IRouter, tokens middleware.TokenValidator, limiter middleware.Limiter) {
	router.GET("/health", HealthCheck)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.LoginUser)
	}

	protectedRoutes := router.Group("/api")
	protectedRoutes.Use(middleware.AuthMiddleware(tokens))
	{
		protectedRoutes.GET("/profile", h.GetProfile)
		protectedRoutes.POST("/profile/upgrade", h.UpgradePlan)

		generationRoutes := protectedRoutes.Group("/generations")
		{
			generationRoutes.POST("", middleware.RateLimit(limiter), h.CreateGeneration) // POST /api/generations
			generationRoutes.GET("", h.ListGenerations)                                 // GET /api/generations
			generationRoutes.GET("/:id", h.GetGeneration)                               // GET /api/generations/:id
		}

		protectedRoutes.GET("/engines", h.ListEngines)
		protectedRoutes.GET("/engine-connections", h.ListEngineConnections)
		protectedRoutes.POST("/engine-connections", h.UpsertEngineConnection)
	}
}

// claimsOrAbort returns the authenticated caller or writes a 401.
func claimsOrAbort(c *gin.Context, handlerName string) (*services.Claims, bool) {
	claims, ok := middleware.GetUserClaimsFromContext(c)
	if !ok {
		log.Errorf("%s: User claims not found in context.", handlerName)
		utils.ResponseWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return nil, false
	}
	return claims, true
}
