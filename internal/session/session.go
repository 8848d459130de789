// Package session keeps per-conversation chat state in Redis: the running
// turn transcript and the device directory cached at session start.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionPrefix = "chat:session:"
	sessionIDLen  = 32
)

// Turn is one conversation message.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Session is the chat state for one conversation. Devices is the name-to-id
// directory cached when the session was created.
type Session struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	Conversation []Turn            `json:"conversation"`
	Devices      map[string]string `json:"devices"`
}

// Append adds a turn to the transcript.
func (s *Session) Append(role, content string) {
	s.Conversation = append(s.Conversation, Turn{Role: role, Content: content})
}

// Window returns the most recent n turns.
func (s *Session) Window(n int) []Turn {
	if n <= 0 || n >= len(s.Conversation) {
		return s.Conversation
	}
	return s.Conversation[len(s.Conversation)-n:]
}

// Manager handles session storage and retrieval
type Manager struct {
	redis  *redis.Client
	expiry time.Duration
}

// NewManager creates a new session manager
func NewManager(redisClient *redis.Client, expiry time.Duration) *Manager {
	return &Manager{
		redis:  redisClient,
		expiry: expiry,
	}
}

// GetOrCreate loads the session with the given ID, or creates a fresh one
// when the ID is empty or unknown. The loadDevices callback populates the
// device directory for new sessions only.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string, loadDevices func(context.Context) (map[string]string, error)) (*Session, error) {
	if sessionID != "" {
		sess, err := m.Get(ctx, sessionID)
		if err == nil {
			return sess, nil
		}
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	devices := map[string]string{}
	if loadDevices != nil {
		devices, err = loadDevices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load device directory: %w", err)
		}
	}

	sess := &Session{
		ID:           id,
		CreatedAt:    time.Now(),
		Conversation: []Turn{},
		Devices:      devices,
	}

	if err := m.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := sessionPrefix + sessionID
	data, err := m.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &sess, nil
}

// Save writes the session back and resets its expiry.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionPrefix + sess.ID
	if err := m.redis.Set(ctx, key, data, m.expiry).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete removes a session
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	key := sessionPrefix + sessionID
	return m.redis.Del(ctx, key).Err()
}

// Refresh extends the session expiry
func (m *Manager) Refresh(ctx context.Context, sessionID string) error {
	key := sessionPrefix + sessionID
	return m.redis.Expire(ctx, key, m.expiry).Err()
}

// generateSessionID generates a cryptographically secure random session ID
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
