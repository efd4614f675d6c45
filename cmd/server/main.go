package main

import (
	"jobtrack/internal/config"
	"jobtrack/internal/database"
	"jobtrack/internal/extract"
	"jobtrack/internal/match"
	"jobtrack/internal/pipeline"
	"jobtrack/internal/review"
	"jobtrack/internal/server"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}
	logger.Info().Msg("Database connection established successfully")

	if err := database.CreateTables(db); err != nil {
		logger.Fatal().Err(err).Msg("Schema setup failed")
	}

	store := database.NewStore(db)

	// Optional LLM fallback for low-confidence extractions
	var oracle extract.Oracle
	if o := extract.NewOpenAIOracle(cfg); o != nil {
		oracle = o
		logger.Info().Msg("Extraction oracle enabled")
	}

	extractor := extract.New(oracle, logger)
	matcher := match.New(cfg.FuzzyThreshold, cfg.SubjectThreshold, cfg.ReviewThreshold, cfg.MatchWindowDays)
	pipe := pipeline.New(store, extractor, matcher, logger, cfg.BatchWorkers)
	resolver := review.New(store, pipe, logger)

	// Create and initialize server
	srv := server.New(cfg, db, store, pipe, resolver, logger)
	srv.Initialize()

	// Start server
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
