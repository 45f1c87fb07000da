package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Domenick1991/concertseats/config"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// LoadConfig reads .env when present, then the YAML file named by --config,
// CONFIG_PATH or config.yaml, in that order.
func LoadConfig(name string, args []string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := flags.String("config", "", "path to the YAML config file")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfgPath := *path
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	return config.LoadConfig(cfgPath)
}

// NewLogger builds the JSON logger the binaries use and installs it as the
// slog default.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
