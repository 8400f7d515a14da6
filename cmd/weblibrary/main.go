// cmd/weblibrary/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"weblibrary/internal/config"
	"weblibrary/internal/persistence"
	"weblibrary/internal/web"
)

func main() {
	cfg := config.FromEnv()

	store, err := persistence.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	if err := store.CreateTables(context.Background()); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	handler := web.NewHandler(store, cfg)

	log.Printf("weblibrary listening on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, handler.Routes()))
}
