package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/kiranahub/kiranahub-backend/pkg/config"
	"github.com/kiranahub/kiranahub-backend/pkg/db"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date at boot when
// KIRANAHUB_AUTO_MIGRATE is set. Postgres runs the goose migrations; sqlite
// gets the mirrored schema since the migrations use Postgres-only DDL.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Driver()})

	if client.Driver() == config.DriverSQLite {
		if err := db.ApplySQLiteSchema(ctx, client.DB()); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
		logg.Info(ctx, "dev schema applied")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	if err := ValidateDir(DefaultDir); err != nil {
		return err
	}
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return err
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "dev migrations applied")
	return nil
}
