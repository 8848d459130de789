// internal/auth/manager.go
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/newsense/telemetry-ai/internal/errors"
)

// User represents a user in the system
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"` // Never expose password hash in JSON
	Roles        []string `json:"roles"`
	Active       bool     `json:"active"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	JWTSecret     string
	JWTExpiry     time.Duration
	RateLimit     int
	AdminUsername string
	AdminPassword string
}

// Manager handles authentication and user management
type Manager struct {
	config         Config
	users          map[string]*User // userID -> User
	userByUsername map[string]*User // username -> User
	mu             sync.RWMutex
}

// NewManager creates a new authentication manager and seeds the admin
// account from config.
func NewManager(config Config) (*Manager, error) {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	if config.RateLimit == 0 {
		config.RateLimit = 100
	}
	if config.JWTSecret == "" {
		config.JWTSecret = generateRandomString(32)
	}
	if config.AdminUsername == "" {
		config.AdminUsername = "admin"
	}

	m := &Manager{
		config:         config,
		users:          make(map[string]*User),
		userByUsername: make(map[string]*User),
	}

	if _, err := m.CreateUser(config.AdminUsername, config.AdminPassword, []string{"admin", "user"}); err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	return m, nil
}

// CreateUser creates a new user with a bcrypt-hashed password
func (m *Manager) CreateUser(username, password string, roles []string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.userByUsername[username]; exists {
		return nil, fmt.Errorf("user already exists: %s", username)
	}

	var passwordHash string
	if password != "" {
		hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hashedBytes)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Roles:        roles,
		Active:       true,
	}

	m.users[user.ID] = user
	m.userByUsername[username] = user

	return user, nil
}

// Authenticate validates a username/password pair and returns the user
func (m *Manager) Authenticate(username, password string) (*User, error) {
	m.mu.RLock()
	user, exists := m.userByUsername[username]
	m.mu.RUnlock()

	if !exists || !user.Active {
		return nil, errors.NewInvalidCredentialsError()
	}

	if user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, errors.NewInvalidCredentialsError()
		}
	}

	return user, nil
}

// GetUser retrieves a user by ID
func (m *Manager) GetUser(userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, fmt.Errorf("user not found: %s", userID)
	}

	return user, nil
}

// GetUserByUsername retrieves a user by username
func (m *Manager) GetUserByUsername(username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.userByUsername[username]
	if !exists {
		return nil, fmt.Errorf("user not found: %s", username)
	}

	return user, nil
}

// CreateJWTToken creates a JWT token for a user
func (m *Manager) CreateJWTToken(user *User) (string, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.JWTExpiry)

	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "telemetry-ai",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.config.JWTSecret))
	if err != nil {
		return "", errors.NewTokenCreationError(err)
	}

	return tokenString, nil
}

// ValidateJWTToken validates a JWT token and returns the claims
func (m *Manager) ValidateJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	m.mu.RLock()
	user, exists := m.users[claims.UserID]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("user not found")
	}

	if !user.Active {
		return nil, fmt.Errorf("user is inactive")
	}

	return claims, nil
}

// ListUsers returns all users (admin only)
func (m *Manager) ListUsers() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}

	return users
}

// generateRandomString generates a random hex string of the given byte length
func generateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}
