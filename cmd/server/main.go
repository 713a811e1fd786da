package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"arena/server/internal/app"
	"arena/server/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a configuration file (toml, yaml or json)")
	printConfig := flag.Bool("print-config", false, "print the effective configuration as TOML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *printConfig {
		if err := config.WriteTOML(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := app.NewLogger(cfg.Log.Level)
	if err := app.Run(ctx, app.Options{Config: cfg, Logger: &logger}); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
