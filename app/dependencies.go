package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/config"
	"github.com/upb/semantic-retrieval/middleware"
	"github.com/upb/semantic-retrieval/services/backends"
	"github.com/upb/semantic-retrieval/services/backends/procedural"
	"github.com/upb/semantic-retrieval/services/backends/structured"
	"github.com/upb/semantic-retrieval/services/retrieval"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *sql.DB
	Logger *zap.Logger

	// Retrieval
	BackendRegistry *backends.Registry
	Cache           *retrieval.ResponseCache
	Retrieval       *retrieval.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	cleanupStop chan struct{}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initBackends(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize retrieval backends: %w", err)
	}

	deps.initCache(cfg)
	deps.initRetrieval(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initBackends connects the protocol clients and registers them. The
// structured protocol is primary when its connection string is configured;
// the procedural protocol is always registered and serves as fallback.
func (d *Dependencies) initBackends(ctx context.Context, cfg *config.Config) error {
	primary := backends.ProtocolProcedural
	if cfg.Backend.Structured.DSN != "" {
		primary = backends.ProtocolStructured
	}

	registry := backends.NewRegistry(primary)

	if cfg.Backend.Structured.DSN != "" {
		db, err := sql.Open("postgres", cfg.Backend.Structured.DSN)
		if err != nil {
			return fmt.Errorf("failed to open structured backend connection: %w", err)
		}
		db.SetMaxOpenConns(cfg.Backend.Structured.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Backend.Structured.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Backend.Structured.ConnMaxLifetime)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("structured backend ping failed: %w", err)
		}

		d.DB = db

		client := structured.NewClient(db, structured.Config{
			Timeout:    cfg.Backend.Structured.Timeout,
			Preordered: cfg.Backend.Structured.Preordered,
		}, d.Logger)
		if err := registry.Register(client); err != nil {
			return err
		}

		d.Logger.Info("structured backend connected",
			zap.String("connection", cfg.Backend.Structured.LogString()))
	} else {
		d.Logger.Warn("structured backend not configured, procedural protocol only")
	}

	proceduralClient := procedural.NewClient(procedural.Config{
		BaseURL:    cfg.Backend.Procedural.BaseURL,
		Capability: cfg.Backend.Procedural.Capability,
		Timeout:    cfg.Backend.Procedural.Timeout,
		MaxRetries: cfg.Backend.Procedural.MaxRetries,
		RetryDelay: cfg.Backend.Procedural.RetryDelay,
	}, d.Logger)
	if err := registry.Register(proceduralClient); err != nil {
		return err
	}

	d.BackendRegistry = registry

	d.Logger.Info("retrieval backends registered",
		zap.String("primary", string(primary)),
		zap.Int("count", registry.Count()))
	return nil
}

// initCache creates the response cache and starts its cleanup worker
func (d *Dependencies) initCache(cfg *config.Config) {
	d.Cache = retrieval.NewResponseCache(cfg.Cache.MaxEntries)
	d.cleanupStop = make(chan struct{})

	go d.Cache.StartCleanupWorker(cfg.Cache.CleanupInterval, d.cleanupStop)

	d.Logger.Info("response cache initialized",
		zap.Int("max_entries", cfg.Cache.MaxEntries),
		zap.Duration("structured_ttl", cfg.Cache.StructuredTTL),
		zap.Duration("procedural_ttl", cfg.Cache.ProceduralTTL))
}

// initRetrieval wires the normalizer, grounding validator, explainability
// composer and orchestrator
func (d *Dependencies) initRetrieval(cfg *config.Config) {
	normalizer := retrieval.NewNormalizer(map[backends.Protocol]bool{
		backends.ProtocolStructured: cfg.Backend.Structured.Preordered,
		backends.ProtocolProcedural: true,
	}, d.Logger)

	validator := retrieval.NewValidator(cfg.Retrieval.GroundingBaseline)
	composer := retrieval.NewComposer(cfg.Retrieval.StopWordsEnabled)

	d.Retrieval = retrieval.NewService(
		d.BackendRegistry,
		d.Cache,
		normalizer,
		validator,
		composer,
		retrieval.ServiceConfig{
			DefaultLimit:     cfg.Retrieval.DefaultLimit,
			DefaultThreshold: cfg.Retrieval.DefaultThreshold,
			TTLs: map[backends.Protocol]time.Duration{
				backends.ProtocolStructured: cfg.Cache.StructuredTTL,
				backends.ProtocolProcedural: cfg.Cache.ProceduralTTL,
			},
		},
		d.Logger,
	)
}

// initAuth wires the tenant authentication middleware
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.TokenSecret == "" {
		d.Logger.Warn("auth token secret not configured, accepting tenant header")
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(
		cfg.Auth.TokenSecret, cfg.Auth.TokenIssuer, d.Logger)
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.cleanupStop != nil {
		close(d.cleanupStop)
	}
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
