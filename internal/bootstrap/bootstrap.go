// Package bootstrap wires the record store, domain services, and renderer
// from a Config. Both the server and the CLI start here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/config"
	"seva-invoicing/internal/core"
	"seva-invoicing/internal/db"
	"seva-invoicing/internal/logger"
	"seva-invoicing/internal/render"
	"seva-invoicing/internal/store"
	"seva-invoicing/migrations"
)

// ErrNoDatabase is returned by Migrate when the process runs on the file store.
var ErrNoDatabase = errors.New("DATABASE_URL is not set; the file store needs no migrations")

// Runtime is a fully wired application.
type Runtime struct {
	Config  *config.Config
	Service app.ApplicationService
	pool    *pgxpool.Pool
}

// Open builds the runtime for cfg. Without DATABASE_URL invoices are kept in
// the JSON file at MOCK_STORE_PATH. With it, pending migrations run first
// unless skipMigrations is set.
func Open(ctx context.Context, cfg *config.Config, skipMigrations bool) (*Runtime, error) {
	log := logger.WithComponent("bootstrap")
	rt := &Runtime{Config: cfg}

	var records core.RecordStore
	if cfg.MockMode() {
		fileStore, err := store.NewFile(cfg.Store.MockPath)
		if err != nil {
			return nil, err
		}
		log.Warn().Str("path", cfg.Store.MockPath).Msg("DATABASE_URL not set, using the local file store")
		records = fileStore
	} else {
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		if !skipMigrations {
			if _, err := rt.Migrate(ctx); err != nil {
				pool.Close()
				return nil, err
			}
		}
		records = store.NewPostgres(pool)
	}

	format, err := core.ParseNumberFormat(cfg.Invoice.NumberFormat)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("invalid invoice number format: %w", err)
	}
	loc := cfg.Location()

	if !cfg.AuthConfigured() {
		log.Warn().Msg("ADMIN_EMAIL and ADMIN_PASSWORD are not set; logins will fail")
	}

	renderer := render.New(render.Company{
		Name:    cfg.Company.Name,
		Tagline: cfg.Company.Tagline,
		Address: cfg.Company.Address,
		Phone:   cfg.Company.Phone,
		Email:   cfg.Company.Email,
		Logo:    cfg.Company.Logo,
	}, cfg.AssetTimeout())

	rt.Service = app.NewAppService(
		core.NewInvoiceService(records, core.NewSequencer(records, format), loc),
		core.NewReportingService(records, loc),
		renderer,
		app.Options{
			Credentials: app.AdminCredentials{
				Email:        cfg.Auth.AdminEmail,
				Password:     cfg.Auth.AdminPassword,
				PasswordHash: cfg.Auth.AdminPasswordHash,
			},
			SessionTTL:   cfg.SessionTTL(),
			Location:     loc,
			NumberFormat: format,
			MockMode:     cfg.MockMode(),
		},
	)
	return rt, nil
}

// Migrate applies pending schema migrations and returns their names.
func (rt *Runtime) Migrate(ctx context.Context) ([]string, error) {
	if rt.pool == nil {
		return nil, ErrNoDatabase
	}
	applied, err := migrations.Apply(ctx, rt.pool)
	if err != nil {
		return applied, err
	}
	if len(applied) > 0 {
		log := logger.WithComponent("bootstrap")
		log.Info().Strs("migrations", applied).Msg("schema migrated")
	}
	return applied, nil
}

// Close releases the database pool, if any.
func (rt *Runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}
