// Package app wires the workspace database, config and stores used by both
// the portal server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"talentline/internal/config"
	"talentline/internal/db"
	"talentline/internal/draft"
	"talentline/internal/engine"
	"talentline/internal/events"
	"talentline/internal/migrate"
	"talentline/internal/repo"
	"talentline/internal/storage"
	"talentline/internal/wizard"
)

// Secrets come from the environment, never from talentline.yml.
type Secrets struct {
	MinIOAccessKey string
	MinIOSecretKey string
	RedisPassword  string
}

// App is an opened workspace.
type App struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Repo      repo.Repo
	Ledger    events.Ledger

	closers []func() error
}

// Open opens and migrates the workspace database and loads its config,
// falling back to defaults when talentline.yml is absent.
func Open(ctx context.Context, workspace string) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a := &App{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Repo:      repo.Repo{DB: conn},
		Ledger:    events.NewLedger(conn),
	}
	a.closers = append(a.closers, conn.Close)
	return a, nil
}

// Close releases everything opened through a.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Blobs returns the attachment store selected by storage.kind.
func (a *App) Blobs(ctx context.Context, sec Secrets) (storage.Store, error) {
	sc := a.Config.Storage
	switch sc.Kind {
	case config.StorageMinIO:
		return storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:        sc.MinIO.Endpoint,
			AccessKeyID:     sec.MinIOAccessKey,
			SecretAccessKey: sec.MinIOSecretKey,
			Bucket:          sc.MinIO.Bucket,
			Region:          sc.MinIO.Region,
			UseSSL:          sc.MinIO.UseSSL,
		})
	case config.StorageFS, "":
		dir := sc.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(a.Workspace, dir)
		}
		return storage.NewFS(dir)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", sc.Kind)
	}
}

// Drafts returns the wizard draft store selected by drafts.kind.
func (a *App) Drafts(ctx context.Context, sec Secrets) (wizard.DraftStore, error) {
	dc := a.Config.Drafts
	switch dc.Kind {
	case config.DraftsRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     dc.Redis.Addr,
			Password: sec.RedisPassword,
			DB:       dc.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", dc.Redis.Addr, err)
		}
		a.closers = append(a.closers, client.Close)
		return draft.NewRedis(client, dc.Redis.Prefix, dc.TTL), nil
	case config.DraftsMemory:
		return draft.NewMemory(), nil
	case config.DraftsSQLite, "":
		return draft.SQLite{Repo: a.Repo}, nil
	default:
		return nil, fmt.Errorf("unknown drafts kind %q", dc.Kind)
	}
}

// Engine builds the portal engine over the workspace database.
func (a *App) Engine(ctx context.Context, sec Secrets) (engine.Engine, error) {
	blobs, err := a.Blobs(ctx, sec)
	if err != nil {
		return engine.Engine{}, fmt.Errorf("open blob store: %w", err)
	}
	return engine.New(a.DB, a.Config, blobs), nil
}
