// internal/auth/handlers.go
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handlers provides HTTP handlers for authentication endpoints
type Handlers struct {
	manager *Manager
}

// NewHandlers creates new auth handlers
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// SetupRoutes sets up authentication routes
func (h *Handlers) SetupRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", h.manager.Middleware(), h.GetCurrentUser)
	r.GET("/auth/status", h.GetAuthStatus)

	admin := r.Group("/admin")
	admin.Use(h.manager.Middleware(), h.manager.RequireRole("admin"))
	{
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.GET("/rate-limit-stats", h.GetRateLimitStats)
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      *User  `json:"user"`
}

// Login handles user login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.manager.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.manager.CreateJWTToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.manager.config.JWTExpiry).Format(time.RFC3339),
		User:      user,
	})
}

// GetCurrentUser returns the current authenticated user
func (h *Handlers) GetCurrentUser(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetAuthStatus returns authentication status and configuration
func (h *Handlers) GetAuthStatus(c *gin.Context) {
	status := gin.H{
		"authentication_enabled": true,
		"rate_limit":             h.manager.config.RateLimit,
		"jwt_expiry":             h.manager.config.JWTExpiry.String(),
	}

	if user, exists := GetCurrentUser(c); exists {
		status["authenticated"] = true
		status["user"] = user
	} else {
		status["authenticated"] = false
	}

	c.JSON(http.StatusOK, status)
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles"`
}

// CreateUser creates a new user (admin only)
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Roles) == 0 {
		req.Roles = []string{"user"}
	}

	user, err := h.manager.CreateUser(req.Username, req.Password, req.Roles)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// ListUsers returns all users (admin only)
func (h *Handlers) ListUsers(c *gin.Context) {
	users := h.manager.ListUsers()
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetRateLimitStats returns rate limiting statistics (admin only)
func (h *Handlers) GetRateLimitStats(c *gin.Context) {
	stats := GetRateLimitStats()
	c.JSON(http.StatusOK, stats)
}
