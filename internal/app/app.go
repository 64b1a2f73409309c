// Package app wires the stores, services, enforcer coordinator, bus, and
// outbox into one running application. The command handlers registered here
// implement the mutation contract: store write, then enforcer reload, then
// event emission.
package app

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/authz"
	"github.com/authplane/authplane/internal/authz/bunadapter"
	"github.com/authplane/authplane/internal/config"
	"github.com/authplane/authplane/internal/cqrs"
	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/outbox"
	"github.com/authplane/authplane/internal/repository"
	"github.com/authplane/authplane/internal/rolecache"
	"github.com/authplane/authplane/internal/services/modelcfg"
	"github.com/authplane/authplane/internal/services/policy"
	"github.com/authplane/authplane/internal/services/token"
	"github.com/authplane/authplane/internal/telemetry"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	DB     *bun.DB

	Rules        repository.RuleRepository
	ModelConfigs repository.ModelConfigRepository
	Users        repository.UserRepository
	Tokens       repository.TokenRepository
	OutboxRepo   repository.OutboxRepository

	PolicySvc *policy.Service
	ModelSvc  *modelcfg.Service
	TokenSvc  *token.Service

	Coordinator *authz.Coordinator
	Cache       rolecache.Cache
	Signer      *token.Signer
	Bus         *cqrs.Bus
	Outbox      *outbox.Outbox
	Relay       *outbox.Relay
	Metrics     *telemetry.DispatchMetrics
}

// New connects the database and assembles every component. The enforcer gets
// an initial Reload so a published model is live before the first request;
// with nothing published the coordinator simply stays empty.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	cache, err := newRoleCache(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a, err := Assemble(db, cfg, cache)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Coordinator.Reload(ctx)
	return a, nil
}

// Assemble builds the application on an existing database handle and cache.
// Tests use it directly with in-memory stores.
func Assemble(db *bun.DB, cfg *config.Config, cache rolecache.Cache) (*App, error) {
	rules := repository.NewBunRuleRepository(db)
	modelConfigs := repository.NewBunModelConfigRepository(db)
	users := repository.NewBunUserRepository(db)
	tokens := repository.NewBunTokenRepository(db)
	outboxRepo := repository.NewBunOutboxRepository(db)

	signer := token.NewSigner(cfg.JWT)
	coordinator := authz.NewCoordinator(modelConfigs, bunadapter.NewAdapter(db))
	ob := outbox.New(outboxRepo)

	metrics, err := telemetry.NewDispatchMetrics()
	if err != nil {
		return nil, fmt.Errorf("create dispatch metrics: %w", err)
	}

	a := &App{
		Config:       cfg,
		DB:           db,
		Rules:        rules,
		ModelConfigs: modelConfigs,
		Users:        users,
		Tokens:       tokens,
		OutboxRepo:   outboxRepo,
		PolicySvc:    policy.NewService(rules),
		ModelSvc:     modelcfg.NewService(modelConfigs),
		TokenSvc:     token.NewService(users, tokens, rules, cache, signer, cfg.JWT.AccessTTL),
		Coordinator:  coordinator,
		Cache:        cache,
		Signer:       signer,
		Bus:          cqrs.NewBus(),
		Outbox:       ob,
		Relay:        outbox.NewRelay(outboxRepo, cfg.OutboxRelayInterval, outbox.LoginAuditLog{}, outbox.OperationAuditLog{}),
		Metrics:      metrics,
	}

	a.Bus.SetObserver(metrics)
	if err := a.registerHandlers(); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	if closer, ok := a.Cache.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	return a.DB.Close()
}

func newRoleCache(ctx context.Context, cfg *config.Config) (rolecache.Cache, error) {
	if cfg.RoleCache.RedisURL != "" {
		cache, err := rolecache.NewRedisCache(ctx, cfg.RoleCache.RedisURL, cfg.RoleCache.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect role cache: %w", err)
		}
		return cache, nil
	}
	cache, err := rolecache.NewMemoryCache(cfg.RoleCache.KeyPrefix, cfg.RoleCache.Size)
	if err != nil {
		return nil, fmt.Errorf("create role cache: %w", err)
	}
	return cache, nil
}
