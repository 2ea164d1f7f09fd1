package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/jacentio/strata/backend/dynamo"
	"github.com/jacentio/strata/backend/sqlstore"
	"github.com/jacentio/strata/backend/textstore"
	"github.com/jacentio/strata/internal/config"
	"github.com/jacentio/strata/store"
)

// openBackend builds the configured backend. The returned func releases its
// resources.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendDynamo:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Dynamo.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Dynamo.Region))
		}
		if cfg.Dynamo.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Dynamo.Profile))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Dynamo.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Dynamo.Endpoint)
			}
		})
		dcfg := dynamo.DefaultConfig()
		dcfg.TTLAttribute = cfg.Dynamo.TTL
		return dynamo.New(client, dcfg), noop, nil

	case config.BackendSQL:
		// modernc registers "sqlite", pgx/stdlib registers "pgx"
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("connect %s: %w", cfg.SQL.Driver, err)
		}
		placeholder := sqlstore.Question
		if cfg.SQL.Driver == "pgx" {
			placeholder = sqlstore.Dollar
		}
		return sqlstore.New(db, sqlstore.Config{Placeholder: placeholder, Logger: logger}), db.Close, nil

	case config.BackendText:
		b, err := textstore.New(textstore.Config{
			Dir:       cfg.Text.Dir,
			NumShards: cfg.Text.Shards,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, noop, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
}
