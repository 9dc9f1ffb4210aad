package main

import (
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gocorr/adapters/llm"
	"gocorr/adapters/loader"
	"gocorr/api"
	"gocorr/internal"
	"gocorr/internal/analysis"
	"gocorr/internal/config"
	"gocorr/internal/derive"
	"gocorr/internal/mapping"
)

func main() {
	// .env is optional; real deployments use environment variables
	if err := godotenv.Load(); err == nil {
		log.Printf("[Server] loaded configuration from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] invalid configuration: %v", err)
	}

	logger := internal.NewDefaultLogger()

	var db *sqlx.DB
	if cfg.Database.URL != "" {
		db, err = sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("[Server] database connection failed: %v", err)
		}
		defer db.Close()
		logger.Info("[Server] database connected")
	}

	client, err := llm.NewOpenAIClient(cfg.AI)
	if err != nil {
		log.Fatalf("[Server] LLM client setup failed: %v", err)
	}
	resolver := mapping.NewResolver(client, cfg.AI.MaxRetries, logger)
	deriveEngine := derive.NewEngine(logger)
	dataLoader := loader.NewLoader(cfg.Analysis.MaxFileSizeMB, db, logger)
	service := analysis.NewService(dataLoader, resolver, deriveEngine, cfg.Analysis, logger)

	app := api.NewApp(service, logger)

	addr := ":" + cfg.Server.Port
	logger.Info("[Server] listening on %s (model=%s)", addr, cfg.AI.Model)
	if err := http.ListenAndServe(addr, app.Router()); err != nil {
		log.Fatalf("[Server] server stopped: %v", err)
	}
}
