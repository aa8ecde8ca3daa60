package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"npcchat/internal/config"
	"npcchat/internal/dispatch"
	"npcchat/internal/logger"
	"npcchat/internal/metrics"
	"npcchat/internal/provider/openrouter"
	"npcchat/internal/server"
)

const serveUsage = `Usage:
  npcchat serve --config <path> [--port <port>]

Flags:
  --config string   Path to YAML configuration file (required)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("serve command requires --config <path>")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	if !cfg.OpenRouter.Enabled {
		logger.Warnf("openrouter is disabled; queries will return the not-configured reply")
	}
	if cfg.OpenRouter.APIKey == "" {
		logger.Warnf("no OpenRouter API key configured")
	}

	querier := openrouter.New(cfg.OpenRouter, openrouter.NewHTTPClient())

	dispatcher := dispatch.New(querier, cfg.OpenRouter.MaxConcurrentQueries)
	dispatcher.Start()
	defer dispatcher.Close()

	srv, err := server.New(cfg, dispatcher)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
