package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/tdc/internal/api"
	"github.com/tgienger/tdc/internal/config"
	"github.com/tgienger/tdc/internal/db"
	"github.com/tgienger/tdc/internal/logging"
	"github.com/tgienger/tdc/internal/ui"
	"github.com/tgienger/tdc/internal/ui/views"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("tdc %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.Open(logging.Options{
		Path:      cfg.LogFile,
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Prefix:    config.AppName,
		Timestamp: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	// Initialize database
	database, err := db.New(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// Input history belongs to the server it was typed against
	previous, changed, err := database.RememberAPIURL(cfg.APIURL)
	if err != nil {
		logger.Warn("Failed to save API URL", "err", err)
	} else if changed {
		logger.Info("Task server changed, input history cleared", "previous", previous, "api", cfg.APIURL)
	}

	client, err := api.New(cfg.APIURL,
		api.WithToken(cfg.APIToken),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating API client: %v\n", err)
		os.Exit(1)
	}

	// Validated by config.Load
	schedule, _ := cfg.Schedule()

	logger.Info("Starting", "version", version, "api", client.BaseURL(), "config", cfg.File)

	todos := views.NewTodoListView(client, views.Options{
		ErrorBannerTimeout:   cfg.ErrorBannerTimeout,
		SuccessBannerTimeout: cfg.SuccessBannerTimeout,
		Logger:               logger,
		History:              database,
		HistorySize:          cfg.HistorySize,
	})

	// Create and run the application
	app := ui.NewApp(todos, schedule)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}
