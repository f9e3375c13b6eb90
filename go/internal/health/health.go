package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	ActiveSessions    int      `json:"active_sessions"`
	EventsPublished   uint64   `json:"events_published"`
	EventsFailed      uint64   `json:"events_failed"`
	EventsDropped     uint64   `json:"events_dropped"`
	DatabaseConnected *bool    `json:"database_connected,omitempty"`
	NATSConnected     *bool    `json:"nats_connected,omitempty"`
	Errors            []string `json:"errors"`
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Pinger is satisfied by *pgxpool.Pool and *archive.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies the checker inspects. Nil fields are skipped.
type Dependencies struct {
	Database  Pinger
	NATS      func() bool
	Sessions  func() int
	Publisher func() (published, failed, dropped uint64)
}

type Checker struct {
	deps    Dependencies
	timeout time.Duration
}

func NewChecker(deps Dependencies) *Checker {
	return &Checker{deps: deps, timeout: 5 * time.Second}
}

func (h *Checker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if h.deps.Sessions != nil {
		status.ActiveSessions = h.deps.Sessions()
	}
	if h.deps.Publisher != nil {
		status.EventsPublished, status.EventsFailed, status.EventsDropped = h.deps.Publisher()
		if status.EventsDropped > 0 {
			status.Errors = append(status.Errors, fmt.Sprintf("%d lifecycle events dropped", status.EventsDropped))
		}
	}

	// Check database connection
	if h.deps.Database != nil {
		connected := true
		if err := h.deps.Database.Ping(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	// Check NATS connection
	if h.deps.NATS != nil {
		connected := h.deps.NATS()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	return status
}

// ServeHTTP reports 200 when healthy and 503 otherwise.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}
