// Command import-emails runs a mailbox export through the processing
// pipeline without the HTTP server. Useful for the initial backfill of a
// large archive.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"jobtrack/internal/config"
	"jobtrack/internal/database"
	"jobtrack/internal/emails"
	"jobtrack/internal/extract"
	"jobtrack/internal/match"
	"jobtrack/internal/models"
	"jobtrack/internal/pipeline"
)

func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger()

	var (
		path    = flag.String("path", cfg.ImportPath, "EML file, MBOX file or directory of .eml files")
		format  = flag.String("format", "", "mbox, eml or dir (default: guess from path)")
		ownerID = flag.Int64("owner", 1, "owner ID to import under")
	)
	flag.Parse()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	if err := database.CreateTables(db); err != nil {
		logger.Fatal().Err(err).Msg("Schema setup failed")
	}
	store := database.NewStore(db)

	var oracle extract.Oracle
	if o := extract.NewOpenAIOracle(cfg); o != nil {
		oracle = o
	}
	extractor := extract.New(oracle, logger)
	matcher := match.New(cfg.FuzzyThreshold, cfg.SubjectThreshold, cfg.ReviewThreshold, cfg.MatchWindowDays)
	pipe := pipeline.New(store, extractor, matcher, logger, cfg.BatchWorkers)

	ctx := context.Background()
	kind := *format
	if kind == "" {
		kind = guessFormat(*path)
	}

	var total pipeline.BatchResult
	switch kind {
	case "mbox":
		err = emails.ParseMBOXFileStreaming(*path, *ownerID, 100, logger,
			func(batch []models.RawEmail, progress emails.MBOXProgress) error {
				result := pipe.ProcessBatch(ctx, batch)
				accumulate(&total, result)
				logger.Info().Int("emails", progress.EmailsProcessed).
					Float64("percent", progress.PercentComplete).Msg("import progress")
				return nil
			})
	case "eml":
		var raw *models.RawEmail
		raw, err = emails.ParseEMLFile(*path, *ownerID)
		if err == nil {
			total = pipe.ProcessBatch(ctx, []models.RawEmail{*raw})
		}
	default:
		var raws []models.RawEmail
		raws, err = emails.ParseDirectory(*path, *ownerID, logger)
		if err == nil {
			total = pipe.ProcessBatch(ctx, raws)
		}
	}
	if err != nil {
		logger.Fatal().Err(err).Str("path", *path).Msg("Import failed")
	}

	logger.Info().
		Int("total", total.Total).
		Int("created", total.Created).
		Int("linked", total.Linked).
		Int("review", total.Review).
		Int("skipped", total.Skipped).
		Int("ignored", total.Ignored).
		Int("failed", total.Failed).
		Msg("Import complete")
}

func guessFormat(path string) string {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return "dir"
	}
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".mbox"):
		return "mbox"
	case strings.HasSuffix(strings.ToLower(path), ".eml"):
		return "eml"
	}
	return "dir"
}

func accumulate(total *pipeline.BatchResult, r pipeline.BatchResult) {
	total.Created += r.Created
	total.Linked += r.Linked
	total.Review += r.Review
	total.Skipped += r.Skipped
	total.Ignored += r.Ignored
	total.Failed += r.Failed
	total.Total += r.Total
}
