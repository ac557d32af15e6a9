package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate
	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/audit"
	"github.com/ekaya-inc/herbtrace/pkg/config"
	"github.com/ekaya-inc/herbtrace/pkg/database"
	"github.com/ekaya-inc/herbtrace/pkg/locator"
	"github.com/ekaya-inc/herbtrace/pkg/logging"
	"github.com/ekaya-inc/herbtrace/pkg/observability"
	"github.com/ekaya-inc/herbtrace/pkg/repositories"
	"github.com/ekaya-inc/herbtrace/pkg/services"
)

// app is the fully wired service graph shared by every command.
type app struct {
	db         *database.DB
	registry   services.RegistryService
	collection services.CollectionService
	batches    services.BatchService
	processing services.ProcessingService
	quality    services.QualityService
	provenance services.ProvenanceService
	dashboard  services.DashboardService
}

func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	connStr := cfg.Database.ConnectionString()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:              connStr,
		MaxConnections:   cfg.Database.MaxConnections,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		logger.Error("Failed to connect to database",
			zap.String("dsn", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	return db, nil
}

// openSQL opens the database/sql handle golang-migrate needs.
func openSQL(cfg *config.Config) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	return sqlDB, nil
}

func newApp(cfg *config.Config, db *database.DB, metrics *observability.Metrics, logger *zap.Logger) (*app, error) {
	gen, err := locator.NewGenerator(cfg.BaseURL, cfg.Locator.SizePx)
	if err != nil {
		return nil, err
	}

	collectorRepo := repositories.NewCollectorRepository()
	speciesRepo := repositories.NewSpeciesRepository()
	eventRepo := repositories.NewCollectionEventRepository()
	batchRepo := repositories.NewBatchRepository()
	stepRepo := repositories.NewProcessingStepRepository()
	testRepo := repositories.NewQualityTestRepository()
	transitionRepo := repositories.NewStatusTransitionRepository()

	registry := services.NewRegistryService(collectorRepo, speciesRepo, logger)
	batches := services.NewBatchService(db, batchRepo, gen, cfg.Locator.MaxRetries, metrics, logger)

	return &app{
		db:         db,
		registry:   registry,
		collection: services.NewCollectionService(db, registry, eventRepo, metrics, logger),
		batches:    batches,
		processing: services.NewProcessingService(db, batches, stepRepo, logger),
		quality: services.NewQualityService(db, batchRepo, testRepo, transitionRepo,
			services.NewTransitionPolicy(cfg.Quality.TerminalLock), metrics, audit.NewLedgerAuditor(logger), logger),
		provenance: services.NewProvenanceService(db, batchRepo, eventRepo, stepRepo, testRepo, logger),
		dashboard:  services.NewDashboardService(db, collectorRepo, eventRepo, batchRepo, logger),
	}, nil
}
