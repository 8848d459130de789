package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation error(s):\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate performs comprehensive validation on the configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateNewsense()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateGemini()...)
	errors = append(errors, c.validateFetch()...)
	errors = append(errors, c.validateChat()...)
	errors = append(errors, c.validateAuth()...)
	errors = append(errors, c.validateServer()...)

	if errors.HasErrors() {
		return errors
	}

	return nil
}

func (c *Config) validateNewsense() []ValidationError {
	var errors []ValidationError

	if c.Newsense.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "Newsense.BaseURL",
			Message: "telemetry platform base URL is required",
		})
	}

	if c.Newsense.Username == "" {
		errors = append(errors, ValidationError{
			Field:   "Newsense.Username",
			Message: "telemetry platform username is required",
		})
	}

	if c.Newsense.Password == "" {
		errors = append(errors, ValidationError{
			Field:   "Newsense.Password",
			Message: "telemetry platform password is required",
		})
	}

	if c.Newsense.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Newsense.Timeout",
			Message: "telemetry platform timeout must be positive",
		})
	}

	return errors
}

func (c *Config) validateRedis() []ValidationError {
	var errors []ValidationError

	if c.Redis.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "Redis.Addr",
			Message: "redis address is required",
		})
	}

	return errors
}

func (c *Config) validateGemini() []ValidationError {
	var errors []ValidationError

	if c.Gemini.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "Gemini.APIKey",
			Message: "Gemini API key is required",
		})
	}

	if c.Gemini.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "Gemini.Model",
			Message: "Gemini model is required",
		})
	}

	if c.Gemini.MaxOutputTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Gemini.MaxOutputTokens",
			Message: "max output tokens must be positive",
		})
	}

	return errors
}

func (c *Config) validateFetch() []ValidationError {
	var errors []ValidationError

	if c.Fetch.Workers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Fetch.Workers",
			Message: "fetch worker count must be positive",
		})
	}

	return errors
}

func (c *Config) validateChat() []ValidationError {
	var errors []ValidationError

	if c.Chat.HistoryWindow < 0 {
		errors = append(errors, ValidationError{
			Field:   "Chat.HistoryWindow",
			Message: "history window must be non-negative",
		})
	}

	if c.Chat.CacheTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "Chat.CacheTTL",
			Message: "cache TTL must be non-negative",
		})
	}

	if c.Chat.SessionExpiry <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Chat.SessionExpiry",
			Message: "session expiry must be positive",
		})
	}

	return errors
}

func (c *Config) validateAuth() []ValidationError {
	var errors []ValidationError

	if c.Auth.JWTSecret == "" {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret is required",
		})
	}

	if c.Auth.JWTExpiry <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTExpiry",
			Message: "JWT expiry must be positive",
		})
	}

	if c.Auth.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.RateLimit",
			Message: "rate limit must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port == "" {
		errors = append(errors, ValidationError{
			Field:   "Server.Port",
			Message: "server port is required",
		})
	}

	validModes := []string{"debug", "release", "test"}
	isValid := false
	for _, mode := range validModes {
		if c.Server.GinMode == mode {
			isValid = true
			break
		}
	}
	if !isValid {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: fmt.Sprintf("invalid gin mode: %s (must be 'debug', 'release', or 'test')", c.Server.GinMode),
		})
	}

	return errors
}

// ValidateProduction performs additional validation for production environments
// It checks for insecure default values that should not be used in production
func (c *Config) ValidateProduction() error {
	var errors ValidationErrors

	if c.Redis.Password == "" || c.Redis.Password == "changeme" {
		errors = append(errors, ValidationError{
			Field:   "Redis.Password",
			Message: "production deployment must not use default or empty Redis password",
		})
	}

	insecureJWTSecrets := []string{
		"",
		"your-secret-key-change-in-production",
		"change-this-in-production",
		"secret",
		"jwt-secret",
	}
	for _, insecure := range insecureJWTSecrets {
		if c.Auth.JWTSecret == insecure {
			errors = append(errors, ValidationError{
				Field:   "Auth.JWTSecret",
				Message: "production deployment must not use default or insecure JWT secret",
			})
			break
		}
	}

	if len(c.Auth.JWTSecret) < 32 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret should be at least 32 characters for production use",
		})
	}

	if c.Auth.AdminPassword == "" || c.Auth.AdminPassword == "changeme" {
		errors = append(errors, ValidationError{
			Field:   "Auth.AdminPassword",
			Message: "production deployment must not use default or empty admin password",
		})
	}

	if c.Gemini.APIKey == "your-api-key-here" || c.Gemini.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "Gemini.APIKey",
			Message: "production deployment requires a valid Gemini API key",
		})
	}

	if c.Server.GinMode != "release" {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: "production deployment should use 'release' mode",
		})
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// IsProduction determines if the current environment is production
// based on the GinMode setting
func (c *Config) IsProduction() bool {
	return c.Server.GinMode == "release"
}

// ValidateWithContext validates configuration and runs production checks if appropriate
func (c *Config) ValidateWithContext() error {
	// Always run basic validation
	if err := c.Validate(); err != nil {
		return err
	}

	// Run production validation if in production mode
	if c.IsProduction() {
		if err := c.ValidateProduction(); err != nil {
			return fmt.Errorf("production validation failed: %w", err)
		}
	}

	return nil
}
