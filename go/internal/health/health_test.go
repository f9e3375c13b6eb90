package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestChecker_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured is healthy", func(t *testing.T) {
		status := NewChecker(Dependencies{}).Check(ctx)
		assert.True(t, status.Healthy)
		assert.Nil(t, status.DatabaseConnected)
		assert.Nil(t, status.NATSConnected)
		assert.Empty(t, status.Errors)
	})

	t.Run("reports counters", func(t *testing.T) {
		status := NewChecker(Dependencies{
			Sessions:  func() int { return 3 },
			Publisher: func() (uint64, uint64, uint64) { return 10, 1, 2 },
		}).Check(ctx)
		assert.True(t, status.Healthy)
		assert.Equal(t, 3, status.ActiveSessions)
		assert.Equal(t, uint64(10), status.EventsPublished)
		assert.Equal(t, uint64(2), status.EventsDropped)
		assert.Len(t, status.Errors, 1)
	})

	t.Run("database down", func(t *testing.T) {
		status := NewChecker(Dependencies{
			Database: pingFunc(func(context.Context) error { return errors.New("refused") }),
			NATS:     func() bool { return true },
		}).Check(ctx)
		assert.False(t, status.Healthy)
		require.NotNil(t, status.DatabaseConnected)
		assert.False(t, *status.DatabaseConnected)
		require.NotNil(t, status.NATSConnected)
		assert.True(t, *status.NATSConnected)
	})

	t.Run("nats down", func(t *testing.T) {
		status := NewChecker(Dependencies{NATS: func() bool { return false }}).Check(ctx)
		assert.False(t, status.Healthy)
		assert.Contains(t, status.Errors, "NATS disconnected")
	})
}

func TestChecker_ServeHTTP(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		want      int
	}{
		{name: "healthy", connected: true, want: http.StatusOK},
		{name: "unhealthy", connected: false, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(Dependencies{NATS: func() bool { return tt.connected }})
			rec := httptest.NewRecorder()
			checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.want, rec.Code)
			var body HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.connected, body.Healthy)
		})
	}
}
