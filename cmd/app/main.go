package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"tradebooks/internal/adapters/cli"
	"tradebooks/internal/app"
	"tradebooks/internal/config"
	"tradebooks/internal/db"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatal("Usage: app <command> [args]\nRun 'app help' for the command list.")
	}

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

	svc := app.NewAppService(pool, cfg.Settings)
	cli.Run(ctx, svc, os.Args[1:])
}
