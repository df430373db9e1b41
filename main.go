package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"gidipos/m/internal/api"
	"gidipos/m/internal/assistant"
	"gidipos/m/internal/config"
	"gidipos/m/internal/database"
	"gidipos/m/internal/migrations"
	"gidipos/m/internal/seed"
	"gidipos/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	st := store.New(db)
	if err := seed.EnsureDefaults(st); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	if cfg.CatalogCSV != "" {
		seed.ImportCatalog(st, cfg.CatalogCSV)
	}

	ai := assistant.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout)
	handler := api.New(st, ai, cfg.Secret, cfg.TokenTTL)

	log.Printf("GiDi POS server starting on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
