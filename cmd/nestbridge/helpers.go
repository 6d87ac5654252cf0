package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/germanamz/nestbridge/pkg/engine"
)

const defaultConfigPath = "nestbridge.yaml"

type commonFlags struct {
	config   *string
	env      *string
	logLevel *string
	trace    *bool
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:   fs.String("config", "", "path to configuration file (default: nestbridge.yaml if present)"),
		env:      fs.String("env", ".env", "path to .env file (ignored if missing)"),
		logLevel: fs.String("log-level", "", "log level: debug, info, warn or error (overrides config)"),
		trace:    fs.Bool("trace", false, "log every interpreter command and fault to stderr"),
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath returns the config file to use. Priority:
//  1. explicit path (from --config flag)
//  2. nestbridge.yaml in the working directory, if it exists
//
// An empty result means no file: the built-in defaults apply.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// loadConfig resolves, loads and adjusts the configuration from the flags.
func loadConfig(common *commonFlags) (engine.Config, error) {
	var cfg engine.Config
	if path := resolveConfigPath(*common.config); path != "" {
		var err error
		if cfg, err = engine.LoadConfig(path); err != nil {
			return engine.Config{}, err
		}
	}
	if *common.logLevel != "" {
		cfg.Log.Level = *common.logLevel
	}
	if *common.trace {
		cfg.Log.Trace = true
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	l, err := engine.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// startEngine loads .env and the configuration, then starts the engine.
// Logs go to stderr so stdout stays free for command output and protocols.
func startEngine(ctx context.Context, common *commonFlags) (*engine.Engine, *slog.Logger, error) {
	if err := loadDotEnv(*common.env); err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return nil, nil, err
	}

	log, err := newLogger(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return eng, log, nil
}
