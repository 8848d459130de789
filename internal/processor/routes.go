package processor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newsense/telemetry-ai/internal/errors"
	"github.com/newsense/telemetry-ai/internal/knowledge"
	"github.com/newsense/telemetry-ai/internal/newsense"
	"github.com/newsense/telemetry-ai/internal/observability"
)

// AuthMiddleware is an interface for authentication middleware
type AuthMiddleware interface {
	Middleware() gin.HandlerFunc
}

// SetupRoutes configures HTTP routes with optional authentication
func (p *Processor) SetupRoutes(authMiddleware AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(observability.RequestLoggingMiddleware(p.logger))
	r.Use(observability.RecoveryMiddleware(p.logger))

	// Public health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if p.healthChecker != nil {
			response := p.healthChecker.GetHealthResponse(c.Request.Context())
			statusCode := http.StatusOK
			if response.Status == observability.HealthStatusUnhealthy {
				statusCode = http.StatusServiceUnavailable
			}
			c.JSON(statusCode, response)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "telemetry-ai",
		})
	})

	// Protected API routes (require authentication)
	api := r.Group("/api/v1")
	if authMiddleware != nil {
		api.Use(authMiddleware.Middleware())
	}
	{
		// Main chat endpoint
		api.POST("/chat", p.handleChat)

		// Standalone analysis over already-fetched series
		api.POST("/analyze", p.handleAnalyze)

		// Query history
		api.GET("/history", p.handleGetHistory)

		// Device directory and availability
		api.GET("/devices", p.handleGetDevices)
		api.GET("/devices/:id/keys", p.handleGetDeviceKeys)
		api.GET("/devices/:id/availability", p.handleGetAvailability)

		// Knowledge base editor
		api.GET("/knowledge", p.handleGetKnowledge)
		api.PUT("/knowledge", p.handlePutKnowledge)

		// Session lifecycle
		api.POST("/sessions", p.handleCreateSession)
		api.GET("/sessions/:id", p.handleGetSession)
		api.DELETE("/sessions/:id", p.handleDeleteSession)
	}

	return r
}

func (p *Processor) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := errors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	response, err := p.ProcessQuery(c.Request.Context(), &req)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

// AnalyzeRequest carries series the caller already holds, for re-analysis
// without a fresh fetch.
type AnalyzeRequest struct {
	Query  string            `json:"query" binding:"required"`
	Series []newsense.Series `json:"series" binding:"required"`
}

func (p *Processor) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := errors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	analysis := p.summarizer.Analyze(c.Request.Context(), req.Query, req.Series)
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (p *Processor) handleCreateSession(c *gin.Context) {
	sess, err := p.sessions.GetOrCreate(c.Request.Context(), "", p.loadDeviceDirectory)
	if err != nil {
		enhancedErr := errors.NewSessionCreationError(err)
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusCreated, sess)
}

func (p *Processor) handleGetHistory(c *gin.Context) {
	entries, err := p.history.Search(c.Query("q"))
	if err != nil {
		enhancedErr := errors.Wrap(err, errors.ErrCodeHistoryWrite, "Failed to read query history")
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (p *Processor) handleGetDevices(c *gin.Context) {
	devices, err := p.devices.ListDevices(c.Request.Context())
	if err != nil {
		enhancedErr := errors.Wrap(err, errors.ErrCodePlatformFetch, "Failed to list devices")
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusOK, devices)
}

func (p *Processor) handleGetDeviceKeys(c *gin.Context) {
	keys, err := p.devices.ListKeys(c.Request.Context(), c.Param("id"))
	if err != nil {
		enhancedErr := errors.Wrap(err, errors.ErrCodePlatformFetch, "Failed to list telemetry keys")
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusOK, keys)
}

func (p *Processor) handleGetAvailability(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Param("id")

	keys, err := p.devices.ListKeys(ctx, deviceID)
	if err != nil {
		enhancedErr := errors.Wrap(err, errors.ErrCodePlatformFetch, "Failed to list telemetry keys")
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	report, err := p.devices.CheckDataAvailability(ctx, deviceID, keys)
	if err != nil {
		enhancedErr := errors.Wrap(err, errors.ErrCodePlatformFetch, "Failed to check data availability")
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusOK, report)
}

func (p *Processor) handleGetKnowledge(c *gin.Context) {
	rows, err := p.knowledge.Rows()
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (p *Processor) handlePutKnowledge(c *gin.Context) {
	var rows []knowledge.Row
	if err := c.ShouldBindJSON(&rows); err != nil {
		enhancedErr := errors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	if err := p.knowledge.Save(rows); err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(rows)})
}

func (p *Processor) handleGetSession(c *gin.Context) {
	sess, err := p.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		enhancedErr := errors.New(errors.ErrCodeInvalidInput, "Session not found").
			WithMetadata("session_id", c.Param("id"))
		c.JSON(http.StatusNotFound, formatErrorResponse(enhancedErr))
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (p *Processor) handleDeleteSession(c *gin.Context) {
	if err := p.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		enhancedErr := errors.Wrap(err, errors.ErrCodeCacheWrite, "Failed to delete session")
		c.JSON(http.StatusInternalServerError, formatErrorResponse(enhancedErr))
		return
	}

	c.Status(http.StatusNoContent)
}

// formatErrorResponse formats an error into a user-friendly response
func formatErrorResponse(err error) gin.H {
	if enhancedErr, ok := err.(*errors.EnhancedError); ok {
		response := gin.H{
			"error": gin.H{
				"code":    enhancedErr.Code,
				"message": enhancedErr.Message,
			},
		}

		if enhancedErr.Details != "" {
			response["error"].(gin.H)["details"] = enhancedErr.Details
		}

		if enhancedErr.Suggestion != "" {
			response["error"].(gin.H)["suggestion"] = enhancedErr.Suggestion
		}

		if len(enhancedErr.Metadata) > 0 {
			response["error"].(gin.H)["metadata"] = enhancedErr.Metadata
		}

		return response
	}

	return gin.H{
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	}
}

// getErrorStatusCode returns the appropriate HTTP status code for an error
func getErrorStatusCode(err error) int {
	if enhancedErr, ok := err.(*errors.EnhancedError); ok {
		switch enhancedErr.Code {
		case errors.ErrCodeInvalidInput, errors.ErrCodeMissingRequired, errors.ErrCodeMalformedDate:
			return http.StatusBadRequest
		case errors.ErrCodeInvalidCredentials, errors.ErrCodeNotAuthenticated:
			return http.StatusUnauthorized
		case errors.ErrCodeUnresolvedReference:
			return http.StatusNotFound
		case errors.ErrCodeExtractionParse:
			return http.StatusUnprocessableEntity
		case errors.ErrCodeGeneration, errors.ErrCodePlatformFetch:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
