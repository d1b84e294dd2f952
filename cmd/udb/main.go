package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"udb/internal/app"
	"udb/internal/config"
)

// Exit codes: 0 normal, 1 startup or runtime failure, 2 argument parse
// failure.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment")
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Error("application terminated", "error", err)
		os.Exit(1)
	}
}
