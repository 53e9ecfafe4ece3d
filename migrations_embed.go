package main

import (
	"context"
	"embed"
	"fmt"

	"go.uber.org/zap"

	"food-whatsapp/config"
	"food-whatsapp/db"
)

// Embed migrations into the binary so `food-whatsapp migrate` works
// regardless of the current working directory.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrate applies the embedded goose migrations and exits. Only the postgres driver keeps
// a schema; mongo indexes are created on connect.
func runMigrate(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("migrate needs STORE_DRIVER=%s, got %q", config.StorePostgres, cfg.StoreDriver)
	}
	pg, err := db.OpenPostgres(ctx, cfg.DB.DSN(), nil)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := db.Migrate(ctx, pg.Pool(), migrationsFS); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
