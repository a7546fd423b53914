package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/physio-api/internal/app"
	"github.com/jwalitptl/physio-api/internal/config"
	"github.com/jwalitptl/physio-api/internal/repository/postgres"
	redisrepo "github.com/jwalitptl/physio-api/internal/repository/redis"
	"github.com/jwalitptl/physio-api/pkg/messaging/redis"
	"github.com/jwalitptl/physio-api/pkg/security"
)

type infra struct {
	db    *sqlx.DB
	redis *goredis.Client
	repos app.Repositories
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// connect opens the database pool and the Redis client used for token revocation.
func connect(ctx context.Context, cfg *config.Config) (*infra, error) {
	db, err := postgres.NewDB(ctx, cfg.Database.ToPostgresConfig())
	if err != nil {
		return nil, err
	}

	client, err := redis.NewClient(cfg.Redis.ToBrokerConfig())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	enc, err := security.NewAESEncryptorFromHex(cfg.Security.EncryptionKey)
	if err != nil {
		_ = client.Close()
		_ = db.Close()
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	return &infra{
		db:    db,
		redis: client,
		repos: app.PostgresRepositories(db, enc, redisrepo.NewTokenStore(client)),
	}, nil
}

func options(cfg *config.Config) app.Options {
	return app.Options{
		JWT:          cfg.JWT.ToAuthConfig(),
		BcryptCost:   cfg.Security.BcryptCost,
		CatalogTTL:   cfg.Catalog.CacheTTL,
		Letterhead:   cfg.Clinic.ToLetterhead(),
		Namespace:    "physio",
		RouterConfig: cfg.ToRouterConfig(),
	}
}
