package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/app"
	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/discovery"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	discover := flag.Bool("discover", false, "Browse the network for WLED devices and exit")
	discoverTimeout := flag.Duration("discover-timeout", 5*time.Second, "How long to browse with -discover")
	forgetEntities := flag.Bool("forget-entities", false, "Clear the persisted entity registry on startup")
	forgetEntity := flag.String("forget-entity", "", "Comma-separated entity ids to drop from the persisted registry on startup")
	flag.Parse()

	if *discover {
		setupLogging("info", false, true)
		runDiscovery(*discoverTimeout)
		return
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

	log.Info().Str("config", configPath).Msg("Starting wledd")

	// Create application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *forgetEntities {
		log.Info().Msg("Clearing entity registry (--forget-entities)")
		if err := application.ForgetEntities(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear entity registry")
		}
	}
	if ids := splitIDs(*forgetEntity); len(ids) > 0 && !*forgetEntities {
		log.Info().Strs("entities", ids).Msg("Dropping entity records (--forget-entity)")
		if err := application.ForgetEntities(ids...); err != nil {
			log.Warn().Err(err).Msg("Failed to drop entity records")
		}
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	// Start the application
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for shutdown
	application.Wait()

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func runDiscovery(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(app.SignalContext(), timeout+time.Second)
	defer cancel()

	log.Info().Dur("timeout", timeout).Str("service", discovery.Service).Msg("Browsing for WLED devices")
	devices, err := discovery.Browse(ctx, timeout)
	if err != nil {
		log.Error().Err(err).Msg("mDNS query failed")
	}
	if len(devices) == 0 {
		log.Warn().Msg("No WLED devices found")
		return
	}
	for _, d := range devices {
		fmt.Printf("%-24s %s\n", d.Name, d.Address())
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func splitIDs(list string) []string {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
