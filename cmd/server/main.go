package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	webAdapter "tradebooks/internal/adapters/web"
	"tradebooks/internal/app"
	"tradebooks/internal/config"
	"tradebooks/internal/db"
	"tradebooks/internal/obs"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	obs.Init()

	svc := app.NewAppService(pool, cfg.Settings)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins)

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := http.ListenAndServe(":"+cfg.ServerPort, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
