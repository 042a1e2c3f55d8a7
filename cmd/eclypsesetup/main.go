// Eclypse Setup - interactive creation of controller config entries
//
// eclypsesetup walks through the same steps as the HTTP setup wizard from a
// terminal: controller address and login, object selection, then property
// selection. The resulting entry is stored in the bridge's database and is
// picked up by eclypsebridge on its next start.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/database"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
	"github.com/nerrad567/eclypse-bridge/migrations"
)

const defaultConfigPath = "configs/config.yaml"

var errNotTerminal = errors.New("eclypsesetup needs an interactive terminal")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errNotTerminal
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, "setup")

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	mgr, err := wizard.NewManager(wizard.ManagerOptions{
		Factory: wizard.ClientFactory(eclypse.ClientOptions{
			Timeout:   cfg.GetRequestTimeout(),
			VerifyTLS: cfg.Controller.VerifyTLS,
			Retry: eclypse.RetryPolicy{
				MaxAttempts:    cfg.Controller.Retry.MaxAttempts,
				InitialBackoff: cfg.GetRetryInitialBackoff(),
				MaxBackoff:     cfg.GetRetryMaxBackoff(),
			},
			Logger: log.Component("eclypse-client"),
		}),
		Store: entry.NewSQLiteRepository(db.DB),
	})
	if err != nil {
		return err
	}

	s := &setup{
		ui:  newTerminalUI(),
		mgr: mgr,
		defaults: wizard.Credentials{
			Host:       cfg.Controller.Host,
			Username:   cfg.Controller.Username,
			DeviceName: cfg.Controller.DeviceName,
		},
	}
	e, err := s.run(ctx)
	if err != nil {
		return err
	}

	s.ui.Printf("\nStored config entry %s for %s (%d objects).\n", e.ID, e.Host, len(e.Objects))
	if cfg.Controller.Host == "" && cfg.Controller.EntryID == "" {
		s.ui.Printf("Set controller.entry_id to %s if more than one entry is stored.\n", e.ID)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ECLYPSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ECLYPSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
