package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/queryforge/queryforge-engine/pkg/adapters/datasource"
	mssqlexec "github.com/queryforge/queryforge-engine/pkg/adapters/datasource/mssql"
	pgexec "github.com/queryforge/queryforge-engine/pkg/adapters/datasource/postgres"
	"github.com/queryforge/queryforge-engine/pkg/config"
	"github.com/queryforge/queryforge-engine/pkg/database"
	"github.com/queryforge/queryforge-engine/pkg/handlers"
	"github.com/queryforge/queryforge-engine/pkg/llm"
	"github.com/queryforge/queryforge-engine/pkg/logging"
	"github.com/queryforge/queryforge-engine/pkg/mcp"
	"github.com/queryforge/queryforge-engine/pkg/mcp/tools"
	"github.com/queryforge/queryforge-engine/pkg/repositories"
	"github.com/queryforge/queryforge-engine/pkg/services"
	"github.com/queryforge/queryforge-engine/pkg/vector"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	llmClient, embedder, err := llm.NewFromConfig(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM clients", zap.Error(err))
	}

	lexicon, err := services.LoadLexicon(cfg.KeywordsPath)
	if err != nil {
		logger.Fatal("Failed to load keyword tables", zap.Error(err))
	}

	schemaRepo := repositories.NewSchemaRepository(db)
	embeddingRepo := repositories.NewEmbeddingRepository(db)
	historyRepo := repositories.NewQueryHistoryRepository(db)
	store := vector.NewPostgresStore(embedder, embeddingRepo)

	executor := newExecutor(logger)
	defer func() { _ = executor.Close() }()

	linker := services.NewSchemaLinker(schemaRepo, store, cfg.Retrieval, logger)
	trainer := services.NewSchemaTrainer(schemaRepo, store, logger)
	graphBuilder := services.NewSchemaGraphBuilder(schemaRepo, logger)
	validator := services.NewResultValidator(lexicon)
	optimizer := services.NewFeedbackOptimizer(executor, llmClient, validator, cfg.Optimizer, logger)
	conversation := services.NewConversationContext(lexicon, cfg.Context.MaxTurns, logger)
	pipeline := services.NewQueryPipeline(linker, optimizer, conversation, llmClient, historyRepo, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(pipeline, linker, graphBuilder, conversation, historyRepo, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(trainer, logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer("queryforge-engine", cfg.Version, logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)
	tools.RegisterQueryTools(mcpServer.MCP(), &tools.QueryToolDeps{
		Pipeline:     pipeline,
		Linker:       linker,
		Conversation: conversation,
		Logger:       logger,
	})
	mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting queryforge-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// runMigrations applies pending metadata-store migrations over a short-lived
// database/sql handle.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, "migrations", logger)
}

// newExecutor picks the datasource dialect. Postgres is the default;
// set DATASOURCE_DIALECT=mssql for SQL Server datasources.
func newExecutor(logger *zap.Logger) datasource.Executor {
	if strings.EqualFold(os.Getenv("DATASOURCE_DIALECT"), "mssql") {
		return mssqlexec.NewExecutor(resolveDatasourceDSN, logger)
	}
	return pgexec.NewExecutor(resolveDatasourceDSN, logger)
}

// resolveDatasourceDSN maps a connection id to its DSN via environment
// variables: DATASOURCE_URL_<ID> first, then DATASOURCE_URL as a catch-all.
func resolveDatasourceDSN(connectionID string) (string, error) {
	key := "DATASOURCE_URL_" + strings.ToUpper(strings.ReplaceAll(connectionID, "-", "_"))
	if dsn := os.Getenv(key); dsn != "" {
		return dsn, nil
	}
	if dsn := os.Getenv("DATASOURCE_URL"); dsn != "" {
		return dsn, nil
	}
	return "", fmt.Errorf("no datasource configured for connection %s (set %s or DATASOURCE_URL)", connectionID, key)
}

var _ datasource.DSNResolver = resolveDatasourceDSN
