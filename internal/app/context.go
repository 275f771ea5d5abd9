package app

import (
	"context"
	"errors"
	"fmt"

	"nag/internal/config"
	"nag/internal/repo"
)

// ResolveSettings returns the effective configuration for a workspace. The
// settings row in the database is authoritative; when it is missing (first
// run) the workspace nag.yml seeds it, or the built-in defaults when no file
// exists either.
func ResolveSettings(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetSettings(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg, err = config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Path(workspace), err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := r.UpsertSettings(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return cfg, nil
}

// ImportSettings reads a YAML config file and persists it as the active
// settings, replacing whatever was stored before.
func ImportSettings(ctx context.Context, path string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	if err := r.UpsertSettings(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
