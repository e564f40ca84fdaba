// import-file is a one-shot tool that copies invoices kept by the local file
// store into PostgreSQL. Run it once when moving off mock mode. Invoices whose
// number and date already exist in the database are skipped, so it is safe to
// re-run. Imported invoices keep their original created_at.
//
// Usage: go run ./cmd/import-file [path/to/invoices.json]
package main

import (
	"context"
	"os"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"seva-invoicing/internal/config"
	"seva-invoicing/internal/core"
	"seva-invoicing/internal/db"
	"seva-invoicing/internal/logger"
	"seva-invoicing/internal/store"
	"seva-invoicing/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("logger")
	}

	path := cfg.Store.MockPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer pool.Close()

	if _, err := migrations.Apply(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate")
	}

	source, err := store.NewFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open file store")
	}
	target := store.NewPostgres(pool)

	all := core.NewQuery().Order("created_at", true)
	res, err := source.Select(ctx, all)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read file store")
	}

	existing, err := target.Select(ctx, core.NewQuery().Select("invoice_number", "invoice_date"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read database")
	}
	seen := make(map[string]bool, len(existing.Rows))
	for _, inv := range existing.Rows {
		seen[inv.InvoiceNumber+"|"+inv.InvoiceDate] = true
	}

	var pending []core.Invoice
	for _, inv := range res.Rows {
		if seen[inv.InvoiceNumber+"|"+inv.InvoiceDate] {
			log.Info().Str("invoice_number", inv.InvoiceNumber).Msg("already imported, skipping")
			continue
		}
		core.Normalize(&inv)
		if err := core.Validate(inv); err != nil {
			log.Warn().Err(err).Str("invoice_number", inv.InvoiceNumber).Msg("invalid invoice, skipping")
			continue
		}
		pending = append(pending, inv)
	}

	if len(pending) == 0 {
		log.Info().Str("path", path).Msg("nothing to import")
		return
	}

	inserted, err := target.Insert(ctx, pending)
	if err != nil {
		log.Fatal().Err(err).Msg("import failed, nothing was written")
	}
	log.Info().Int("imported", len(inserted)).Int("skipped", len(res.Rows)-len(inserted)).Str("path", path).Msg("import complete")
}
