package container

import (
	"context"
	"fmt"

	"goencode/adapters/excel"
	"goencode/adapters/memory"
	"goencode/adapters/postgres"
	"goencode/adapters/rng"
	"goencode/adapters/weights"
	"goencode/app"
	"goencode/domain/encoding"
	domainInference "goencode/domain/inference"
	"goencode/internal"
	"goencode/internal/config"
	"goencode/internal/errors"
	"goencode/internal/inference"
	"goencode/internal/migration"
	"goencode/internal/report"
	"goencode/internal/ridge"
	"goencode/internal/search"
	"goencode/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB     *sqlx.DB
	Ledger ports.LedgerPort
	RNG    ports.RNGPort

	// Data sources
	Features  ports.FeatureSource
	Responses ports.ResponseSource
	Weights   ports.WeightSource
	Scores    ports.ScoreSource
	// EncodedScores reads subject scores from encodings in the ledger
	EncodedScores ports.ScoreSource

	// Analysis components
	Grid         encoding.PenaltyGrid
	Timeline     domainInference.Timeline
	Searcher     *search.Searcher
	Bootstrapper inference.Bootstrapper
	Tester       inference.PermutationTester

	// Services
	SearchService      *app.SearchService
	BootstrapService   *app.BootstrapService
	PermutationService *app.PermutationService
	Reports            *report.Builder
}

// New creates a container backed by the in-memory ledger
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	c := &Container{
		Config: cfg,
		Logger: logger,
		Ledger: memory.NewLedgerAdapter(),
		RNG:    rng.NewSeededAdapter(cfg.Inference.AllowZeroSeed),
	}

	strategy, err := ridge.ParseStrategy(cfg.Search.Solver)
	if err != nil {
		return nil, err
	}
	grid, err := encoding.NewLogspaceGrid(cfg.Search.GridStart, cfg.Search.GridStop, cfg.Search.GridCount)
	if err != nil {
		return nil, err
	}
	tail, err := domainInference.ParseTail(cfg.Inference.Tail)
	if err != nil {
		return nil, err
	}
	c.Grid = grid
	c.Timeline = domainInference.Timeline{StartMs: cfg.Inference.TimelineStartMs, StepMs: cfg.Inference.TimelineStepMs}
	c.Searcher = &search.Searcher{
		Solver:  ridge.Solver{Strategy: strategy, Intercept: cfg.Search.Intercept, Logger: logger.With("ridge")},
		Workers: cfg.Search.Workers,
		Logger:  logger.With("search"),
	}
	c.Bootstrapper = inference.Bootstrapper{NPerm: cfg.Inference.NPerm, Timeline: c.Timeline}
	c.Tester = inference.PermutationTester{NPerm: cfg.Inference.NPerm, Tail: tail, Alpha: cfg.Inference.Alpha}

	paths := excel.Config{
		FeaturesDir:  cfg.Paths.FeaturesDir,
		ResponsesDir: cfg.Paths.ResponsesDir,
		ScoresDir:    cfg.Paths.ScoresDir,
	}
	c.Features, c.Responses, c.Scores = paths.Sources(logger.With("excel"))
	c.Weights = weights.NewExplainedVarianceReader(cfg.Paths.WeightsDir, logger.With("weights"))

	c.wireServices()
	return c, nil
}

// wireServices (re)builds the services over the current ledger
func (c *Container) wireServices() {
	workers := c.Config.Search.FeatureWorkers
	c.EncodedScores = app.NewEncodedScoreSource(c.Ledger)
	c.SearchService = app.NewSearchService(c.Searcher, c.Features, c.Responses, c.Weights, c.Ledger, workers, c.Logger)
	c.BootstrapService = app.NewBootstrapService(c.Scores, c.Ledger, c.RNG, c.Bootstrapper, workers, c.Logger)
	c.PermutationService = app.NewPermutationService(c.Scores, c.Ledger, c.RNG, c.Tester, workers, c.Logger)
	c.Reports = report.NewBuilder(c.Ledger, c.Timeline)
}

// InitWithDatabase connects to PostgreSQL and switches every service to the
// PostgreSQL ledger. The schema is created by Migrate.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	db, err := migration.Connect(ctx, c.Config.Database)
	if err != nil {
		return err
	}

	c.DB = db
	c.Ledger = postgres.NewArtifactLedger(db)
	c.wireServices()
	c.Logger.Info("using PostgreSQL artifact ledger")
	return nil
}

// Migrate creates the ledger schema
func (c *Container) Migrate(ctx context.Context) error {
	if c.DB == nil {
		return errors.ConfigInvalid("migrations need DATABASE_URL")
	}
	runner := migration.NewRunner()
	if err := runner.Run(ctx, c.DB); err != nil {
		return err
	}
	c.Logger.Info("ledger schema at version %s", runner.Version())
	return nil
}

// Close releases the database handle, if any
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
