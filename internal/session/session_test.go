package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewManager(client, time.Hour), mr
}

func staticDevices(devices map[string]string) func(context.Context) (map[string]string, error) {
	return func(context.Context) (map[string]string, error) {
		return devices, nil
	}
}

func TestGetOrCreateNewSession(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.GetOrCreate(context.Background(), "", staticDevices(map[string]string{"PUMP-01": "dev-1"}))
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.Conversation)
	assert.Equal(t, "dev-1", sess.Devices["PUMP-01"])
}

func TestGetOrCreateExistingSessionKeepsDevices(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.GetOrCreate(context.Background(), "", staticDevices(map[string]string{"PUMP-01": "dev-1"}))
	require.NoError(t, err)

	// Second lookup must not re-run device loading.
	loaded, err := m.GetOrCreate(context.Background(), created.ID, func(context.Context) (map[string]string, error) {
		t.Fatal("device loader called for existing session")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, created.Devices, loaded.Devices)
}

func TestGetOrCreateUnknownIDCreatesFresh(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.GetOrCreate(context.Background(), "no-such-session", staticDevices(nil))
	require.NoError(t, err)
	assert.NotEqual(t, "no-such-session", sess.ID)
}

func TestSaveRoundTripsConversation(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.GetOrCreate(context.Background(), "", staticDevices(nil))
	require.NoError(t, err)

	sess.Append("user", "nhiệt độ hôm nay")
	sess.Append("assistant", "26.5 độ")
	require.NoError(t, m.Save(context.Background(), sess))

	loaded, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Conversation, 2)
	assert.Equal(t, Turn{Role: "user", Content: "nhiệt độ hôm nay"}, loaded.Conversation[0])
}

func TestWindow(t *testing.T) {
	sess := &Session{}
	for i := 0; i < 5; i++ {
		sess.Append("user", "q")
		sess.Append("assistant", "a")
	}

	assert.Len(t, sess.Window(4), 4)
	assert.Len(t, sess.Window(0), 10)
	assert.Len(t, sess.Window(100), 10)
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.GetOrCreate(context.Background(), "", staticDevices(nil))
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), sess.ID))

	_, err = m.Get(context.Background(), sess.ID)
	assert.Error(t, err)
}

func TestSessionExpiry(t *testing.T) {
	m, mr := newTestManager(t)

	sess, err := m.GetOrCreate(context.Background(), "", staticDevices(nil))
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = m.Get(context.Background(), sess.ID)
	assert.Error(t, err)
}
