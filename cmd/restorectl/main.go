// Command restorectl validates and restores archived BI assets from the
// command line, using the same configuration as the server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/assetkeeper/internal/application"
	"github.com/JonMunkholm/assetkeeper/internal/config"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
)

func main() {
	// Unlike the server, existing environment variables win over .env.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd(loadApp)
	err := root.ExecuteContext(ctx)
	stop()

	reportError(os.Stderr, err)
	os.Exit(exitCode(err))
}

// loadApp builds the application from the environment.
func loadApp(ctx context.Context, logLevel string) (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}
	logging.SetupWriter(os.Stderr, logLevel, cfg.Logging.Format)
	return application.New(ctx, cfg)
}
