package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/aide/config"
	"github.com/mohammad-safakhou/aide/internal/agent"
	"github.com/mohammad-safakhou/aide/internal/identity"
	"github.com/mohammad-safakhou/aide/internal/llm"
	"github.com/mohammad-safakhou/aide/internal/logging"
	"github.com/mohammad-safakhou/aide/internal/orchestrator"
	"github.com/mohammad-safakhou/aide/internal/session"
	"github.com/mohammad-safakhou/aide/internal/store"
	"github.com/mohammad-safakhou/aide/internal/telemetry"
)

// app holds the dependencies every command shares.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	db       *sql.DB
	rdb      *redis.Client
	orch     *orchestrator.Orchestrator
	closers  []func() error
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.General.LogLevel
	if cfg.General.Debug {
		level = "debug"
	}
	return logging.New(os.Stderr, level, cfg.General.LogFormat)
}

// build wires storage, agents and the orchestrator from cfg. Nothing here
// fails because a backend is down: an unreachable primary routes to the
// fallback and an unreachable session store degrades to in-process memory.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: newLogger(cfg), registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	usePrimary := cfg.Storage.Primary == "postgres"
	if usePrimary {
		a.db = a.openPrimary()
	}
	routers, err := store.NewRouterSet(store.Options{
		UsePrimary:     usePrimary,
		DB:             a.db,
		PrimaryTimeout: cfg.Storage.Postgres.Timeout,
		DataDir:        cfg.Storage.File.DataDir,
		LockTimeout:    cfg.Storage.File.LockTimeout,
		Logger:         a.logger,
		Metrics:        store.NewMetrics(a.registry),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	mem, err := session.New(ctx, cfg.Session)
	if err != nil {
		a.logger.Warn().Err(err).Msg("session store unavailable, keeping conversation memory in process")
		mem = session.NewInMemory(cfg.Session.MaxTurns, cfg.Session.TTL)
	}
	if r, ok := mem.(*session.Redis); ok {
		a.rdb = r.Client()
		a.closers = append(a.closers, r.Close)
	}

	tel := telemetry.New(a.registry)
	// a nil *llm.OpenAI must not become a non-nil Completer
	var completer llm.Completer
	if c := llm.New(cfg.LLM); c != nil {
		completer = tel.Instrument(c)
	}
	interp := agent.NewInterpreter(completer, nil)
	agents := agent.NewSet(routers, interp, a.logger, nil).WithTelemetry(tel)

	var classifier orchestrator.Classifier = &orchestrator.KeywordClassifier{}
	if completer != nil {
		profiles := make([]agent.Profile, 0, len(agent.Domains()))
		for _, d := range agent.Domains() {
			profiles = append(profiles, d.Profile())
		}
		classifier = orchestrator.Fallback{
			Primary:   &orchestrator.LLMClassifier{LLM: completer, Domains: profiles},
			Secondary: &orchestrator.KeywordClassifier{},
		}
	}

	a.orch = orchestrator.New(orchestrator.Options{
		Agents:       agents,
		Identity:     identity.New(cfg.Identity.DefaultUser),
		Strict:       cfg.Identity.Strict,
		Classifier:   classifier,
		Memory:       mem,
		Threshold:    cfg.Orchestrator.ConfidenceThreshold,
		HistoryTurns: cfg.Session.MaxTurns,
		Logger:       a.logger,
	})
	a.logger.Debug().Bool("primary", usePrimary).Bool("primary_connected", a.db != nil).Bool("llm", completer != nil).
		Str("session", cfg.Session.Backend).Msg("assistant ready")
	return a, nil
}

// openPrimary returns nil when the primary is unconfigured or unreachable.
func (a *app) openPrimary() *sql.DB {
	pg := a.cfg.Storage.Postgres
	if !pg.Configured() {
		a.logger.Warn().Msg("postgres primary is not configured, serving from the local fallback")
		return nil
	}
	db, err := store.OpenPostgres(pg.DSN(), pg.MaxOpenConns, pg.ConnMaxLifetime)
	if err != nil {
		a.logger.Warn().Err(err).Msg("postgres primary unavailable, serving from the local fallback")
		return nil
	}
	a.closers = append(a.closers, db.Close)
	return db
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug().Err(err).Msg("close")
		}
	}
}
