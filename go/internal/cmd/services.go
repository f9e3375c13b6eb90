package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/trivia/go/internal/api"
	"github.com/mcdev12/trivia/go/internal/archive"
	"github.com/mcdev12/trivia/go/internal/arena"
	"github.com/mcdev12/trivia/go/internal/gateway"
	"github.com/mcdev12/trivia/go/internal/health"
	"github.com/mcdev12/trivia/go/internal/match"
	"github.com/mcdev12/trivia/go/internal/metrics"
	"github.com/mcdev12/trivia/go/internal/publish"
	"github.com/mcdev12/trivia/go/internal/questions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Arena       *arena.Arena
	Dispatcher  *publish.Dispatcher
	Connections *gateway.ConnectionManager
	WebSocket   *gateway.WebSocketHandler
	API         *api.Handler
	Health      *health.Checker
	Metrics     *metrics.Prometheus
}

// setupServices wires the dependency chain:
// question supply → publishers → dispatcher → arena → transports.
// database and jetStream may be nil.
func setupServices(ctx context.Context, cfg *Config, database *Database, jetStream *publish.JetStreamPublisher) (*Services, error) {
	clock := clockwork.NewRealClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewPrometheus(reg)

	// Questions
	selector, err := setupQuestions(ctx, cfg, database)
	if err != nil {
		return nil, err
	}

	// Lifecycle events
	publishers := publish.MultiPublisher{publish.LogPublisher{}}
	var archiveStore *archive.Store
	if database != nil {
		archiveStore = archive.NewStore(database.DB)
		if err := archiveStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		publishers = append(publishers, archiveStore)
	}
	if jetStream != nil {
		publishers = append(publishers, jetStream)
	}
	dispatcher := publish.NewDispatcher(
		publish.NewMetricPublisher(publishers, prom, clock),
		cfg.dispatcherConfig(),
		clock,
	)

	// Sessions
	ar := arena.New(cfg.arenaConfig(), arena.Deps{
		Clock:     clock,
		Questions: selector,
		Events:    dispatcher,
		Metrics:   prom,
	})

	// Transports
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), gateway.ArenaLookup(ar), prom)

	var history api.History
	healthDeps := health.Dependencies{
		Sessions:  ar.Count,
		Publisher: dispatcher.Stats,
	}
	if archiveStore != nil {
		history = archiveStore
		healthDeps.Database = archiveStore
	}
	if jetStream != nil {
		healthDeps.NATS = jetStream.Connected
	}

	return &Services{
		Arena:       ar,
		Dispatcher:  dispatcher,
		Connections: connections,
		WebSocket:   gateway.NewWebSocketHandler(connections),
		API:         api.NewHandler(ar, history),
		Health:      health.NewChecker(healthDeps),
		Metrics:     prom,
	}, nil
}

func setupQuestions(ctx context.Context, cfg *Config, database *Database) (match.QuestionSelector, error) {
	if database != nil {
		store := questions.NewPGStore(database.Pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info().Msg("serving questions from Postgres")
		return store, nil
	}

	var (
		bank *questions.Bank
		err  error
	)
	if path := cfg.Questions.BankPath; path != "" {
		bank, err = questions.LoadBank(path, nil)
	} else {
		bank, err = questions.DefaultBank(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question bank: %w", err)
	}
	log.Info().Int("questions", bank.Len()).Msg("serving questions from in-memory bank")
	return bank, nil
}
