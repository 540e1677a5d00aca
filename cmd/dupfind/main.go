package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/triageworks/dupfind/internal"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	if tryExternalCommand(ctx) {
		return
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dupfind: %v\n", err)
		os.Exit(1)
	}

	rootCmd := NewRootCmd(version, app)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "dupfind %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

type app struct {
	cfg      *internal.Config
	registry *internal.Registry
	pipeline *internal.Pipeline
	searcher *internal.Searcher
}

func newApp() (*app, error) {
	cfg, err := internal.LoadConfig(configPath())
	if err != nil {
		return nil, err
	}
	return newAppFromConfig(context.Background(), cfg)
}

func newAppFromConfig(ctx context.Context, cfg *internal.Config) (*app, error) {
	models, err := internal.LoadModels(cfg)
	if err != nil {
		return nil, err
	}

	var remote internal.RemoteStore
	if cfg.Cache.Enabled {
		remote, err = internal.NewS3Remote(ctx, cfg.Cache.S3)
		if err != nil {
			return nil, fmt.Errorf("connect remote cache: %w", err)
		}
	}

	registry := internal.NewRegistry(cfg.ResolveDataDir(), cfg.Index.Trees)

	return &app{
		cfg:      cfg,
		registry: registry,
		pipeline: internal.NewPipeline(registry, models, remote, cfg),
		searcher: internal.NewSearcher(registry, models, cfg.Search),
	}, nil
}

func configPath() string {
	if p := os.Getenv("DUPFIND_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dupfind", "config.yaml")
}
