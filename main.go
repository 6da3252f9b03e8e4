package main

import (
	"fmt"
	"log/slog"
	"os"

	app "github.com/rocketscienceinc/gomoku-backend/internal"
	"github.com/rocketscienceinc/gomoku-backend/internal/config"
)

const defaultConfigPath = "config.yml"

func main() {
	conf := config.MustLoad(configPath())

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.SlogLevel()}))

	if err := app.RunApp(logger, conf); err != nil {
		fmt.Fprintf(os.Stderr, "app run failed: %v\n", err)
		os.Exit(1)
	}
}

// configPath resolves the config file: CONFIG_PATH when set, otherwise
// config.yml in the working directory.
func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	return defaultConfigPath
}
