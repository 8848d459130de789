package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of the Client interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func TestCircuitBreakerClient_Success(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Generate", mock.Anything, "test prompt", mock.Anything).Return(`{"Device": []}`, nil)

	cbClient := NewCircuitBreakerClient(mockClient, "test-cb", DefaultCircuitBreakerConfig)

	response, err := cbClient.Generate(context.Background(), "test prompt", GenerateOptions{})

	assert.NoError(t, err)
	assert.Equal(t, `{"Device": []}`, response)
	assert.Equal(t, gobreaker.StateClosed, cbClient.State())
	mockClient.AssertExpectations(t)
}

func TestCircuitBreakerClient_OpensAfterFailures(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Generate", mock.Anything, "test prompt", mock.Anything).Return("", errors.New("service unavailable"))

	// Lower threshold for testing
	config := CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    1 * time.Second,
		Timeout:     100 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			t.Logf("State changed from %s to %s", from, to)
		},
	}

	cbClient := NewCircuitBreakerClient(mockClient, "test-cb", config)

	for i := 0; i < 3; i++ {
		_, err := cbClient.Generate(context.Background(), "test prompt", GenerateOptions{})
		assert.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, cbClient.State())

	// Next request should fail immediately without calling the client
	_, err := cbClient.Generate(context.Background(), "test prompt", GenerateOptions{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestCircuitBreakerClient_HalfOpenRecovery(t *testing.T) {
	mockClient := new(MockClient)

	// First 3 calls fail, then succeed
	mockClient.On("Generate", mock.Anything, "test prompt", mock.Anything).Return("", errors.New("service unavailable")).Times(3)
	mockClient.On("Generate", mock.Anything, "test prompt", mock.Anything).Return("ok", nil).Once()

	config := CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    1 * time.Second,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			t.Logf("State changed from %s to %s", from, to)
		},
	}

	cbClient := NewCircuitBreakerClient(mockClient, "test-cb", config)

	for i := 0; i < 3; i++ {
		_, err := cbClient.Generate(context.Background(), "test prompt", GenerateOptions{})
		assert.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, cbClient.State())

	// Wait for timeout to transition to half-open
	time.Sleep(100 * time.Millisecond)

	response, err := cbClient.Generate(context.Background(), "test prompt", GenerateOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "ok", response)

	assert.Equal(t, gobreaker.StateClosed, cbClient.State())
}

func TestCircuitBreakerCounts(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Generate", mock.Anything, "test prompt", mock.Anything).Return("ok", nil)

	cbClient := NewCircuitBreakerClient(mockClient, "test-cb", DefaultCircuitBreakerConfig)

	for i := 0; i < 5; i++ {
		_, err := cbClient.Generate(context.Background(), "test prompt", GenerateOptions{})
		assert.NoError(t, err)
	}

	counts := cbClient.Counts()
	assert.Equal(t, uint32(5), counts.Requests)
	assert.Equal(t, uint32(0), counts.TotalFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveFailures)
}
