package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"caisse/internal/app"
	"caisse/internal/config"
	"caisse/internal/excel"
	"caisse/internal/logging"
)

type options struct {
	path    string
	dryRun  bool
	timeout time.Duration
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg, opts, logger); err != nil {
		logger.Error("catalog import failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.path, "file", "", "catalog file to import (.xlsx or .csv)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse the file and print the row count without writing")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall import timeout")
	flag.Parse()
	if opts.path == "" && flag.NArg() > 0 {
		opts.path = flag.Arg(0)
	}
	return opts
}

func run(cfg config.Config, opts options, logger *slog.Logger) error {
	if opts.path == "" {
		return errors.New("missing -file")
	}
	file, err := os.Open(opts.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.path, err)
	}
	defer file.Close()

	rows, err := excel.ParseCatalog(filepath.Base(opts.path), file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", opts.path, err)
	}
	if opts.dryRun {
		fmt.Printf("%s: %d rows ready to import\n", opts.path, len(rows))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Service.ImportCatalog(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Printf("%s: created=%d updated=%d skipped=%d\n", opts.path, result.Created, result.Updated, result.Skipped)
	return nil
}
