package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"auth_api/internal/auth"
	"auth_api/internal/images"
	"auth_api/internal/models"
	"auth_api/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxImageSize = 5 << 20

type Handler struct {
	serviceLayer service.Service
	tokens       *auth.TokenIssuer
	images       images.Store
	log          *slog.Logger
	metrics      *metrics

	maxImageSize int64
	corsOrigins  []string
	mediaRoot    string
	ping         func(ctx context.Context) error
}

type Option func(*Handler)

func WithMaxImageSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxImageSize = n
		}
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

// WithMediaRoot serves files from dir at /media/images.
func WithMediaRoot(dir string) Option {
	return func(h *Handler) { h.mediaRoot = dir }
}

func WithHealthCheck(ping func(ctx context.Context) error) Option {
	return func(h *Handler) { h.ping = ping }
}

// response is the envelope of every JSON reply.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, response{Success: false, Message: errMessage})
}

func newResponse(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, response{Success: true, Message: message, Data: data})
}

// bindJSON decodes the body into req and validates its binding tags. A
// missing required field is answered with missingMsg, anything else that
// fails to decode with "Invalid request body".
func bindJSON(c *gin.Context, log *slog.Logger, req any, missingMsg string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	log.Debug("failed to bind request body", slog.Any("error", err))

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && missingMsg != "" {
		newErrorResponse(c, http.StatusBadRequest, missingMsg)

		return false
	}

	newErrorResponse(c, http.StatusBadRequest, "Invalid request body")

	return false
}

func NewHandler(srvc service.Service, tokens *auth.TokenIssuer, imgs images.Store, lgr *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		serviceLayer: srvc,
		tokens:       tokens,
		images:       imgs,
		log:          lgr,
		metrics:      newMetrics(),
		maxImageSize: defaultMaxImageSize,
		corsOrigins:  []string{"*"},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.observe(), cors.New(h.corsConfig()))

	// multipart bodies above this spill to temp files
	router.MaxMultipartMemory = h.maxImageSize

	router.GET("/", OptionalAuth(h.tokens), h.Welcome)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{})))

	if h.mediaRoot != "" {
		router.Static("/media/images", h.mediaRoot)
	}

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh-token", h.RefreshToken)

		protected := authGroup.Group("")
		protected.Use(RequireAuth(h.tokens))
		protected.POST("/logout", h.Logout)
		protected.GET("/profile", h.GetProfile)
		protected.PUT("/profile", h.UpdateProfile)
		protected.PUT("/change-password", h.ChangePassword)
		protected.POST("/upload-image", h.UploadImage)
		protected.DELETE("/delete-image", h.DeleteImage)
	}

	admin := router.Group("/admin")
	admin.Use(RequireAuth(h.tokens))
	{
		admin.GET("/users", IsAdmin(), h.GetAllUsers)

		users := admin.Group("/users/:id")
		users.Use(RequireRole(models.RoleAdmin))
		{
			users.PUT("/role", h.AssignRole)
			users.PUT("/status", h.SetStatus)
		}
	}

	return router
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}

	if len(h.corsOrigins) == 0 || slices.Contains(h.corsOrigins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = h.corsOrigins
	cfg.AllowCredentials = true

	return cfg
}

// writeServiceError maps service and image errors onto status codes. Anything
// unrecognized is logged and reported as a 500 without details.
func (h *Handler) writeServiceError(c *gin.Context, log *slog.Logger, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		status, message = http.StatusBadRequest, "Email already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, service.ErrAccountDeactivated):
		status, message = http.StatusForbidden, "Account is deactivated"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		status, message = http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, service.ErrIncorrectPassword):
		status, message = http.StatusBadRequest, "Current password is incorrect"
	case errors.Is(err, service.ErrUserNotFound):
		status, message = http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrInvalidRole):
		status, message = http.StatusBadRequest, "Invalid role"
	case errors.Is(err, images.ErrInvalidType):
		status, message = http.StatusBadRequest, "Only image files are allowed! (jpeg, jpg, png, gif, webp)"
	case errors.Is(err, images.ErrTooLarge):
		status, message = http.StatusBadRequest, "File is too large. Maximum size is 5MB"
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	} else {
		log.Debug("request rejected", slog.Any("error", err))
	}

	newErrorResponse(c, status, message)
}

// GET /
func (h *Handler) Welcome(c *gin.Context) {
	data := gin.H{"version": "1.0.0"}
	if identity, ok := identityFrom(c); ok {
		data["user"] = identity
	}

	newResponse(c, http.StatusOK, "Welcome to the auth API", data)
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	const op = "handler.Health"

	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			h.log.Error("health check failed", slog.String("op", op), slog.Any("error", err))

			newErrorResponse(c, http.StatusServiceUnavailable, "Database unavailable")

			return
		}
	}

	newResponse(c, http.StatusOK, "API is running", gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)})
}
