package config

import (
	"fmt"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// Initialize loads configuration and sets up global logger
func Initialize() (*Config, *logger.Logger, error) {
	cfg, err := Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Log.Level),
		Environment: cfg.Log.Environment,
		Encoding:    cfg.Log.Encoding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.SetGlobalLogger(appLogger)

	appLogger.WithFields(map[string]interface{}{
		"environment":      cfg.Server.Environment,
		"server_port":      cfg.Server.Port,
		"store_backend":    cfg.Store.Backend,
		"durability_level": cfg.Store.Durability.Level,
		"events_enabled":   cfg.Events.Enabled,
		"log_level":        cfg.Log.Level,
	}).Info("Configuration and logger initialized successfully")

	return cfg, appLogger, nil
}
