// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/pflag"
	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/mapview"
	"github.com/touristsafety/safemap/tracking"
)

const defaultDbPath = "data/safemap.duckdb"

// dbOptions locates the DuckDB file.
type dbOptions struct {
	Path string
}

func (o *dbOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(
		&o.Path,
		"db",
		envOr("SAFEMAP_DB_PATH", defaultDbPath),
		"DuckDB database file (env SAFEMAP_DB_PATH)",
	)
}

// open opens the database, creating its directory and the schema if needed.
func (o *dbOptions) open(ctx context.Context) (*sql.DB, tracking.Repository, error) {
	if dir := filepath.Dir(o.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", o.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := tracking.NewRepository(db)
	if err := repo.CreateSchema(ctx); err != nil {
		db.Close()

		return nil, nil, err
	}

	return db, repo, nil
}

// mapOptions holds the flags describing the map a command draws on.
type mapOptions struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	Width, Height  float64
	Threshold      float64
	Linkage        string
}

func (o *mapOptions) bind(flags *pflag.FlagSet) {
	def := mapview.DefaultConfig()

	flags.Float64Var(&o.MinLat, "min-lat", def.Bounds.MinLat, "southern edge of the map")
	flags.Float64Var(&o.MaxLat, "max-lat", def.Bounds.MaxLat, "northern edge of the map")
	flags.Float64Var(&o.MinLng, "min-lng", def.Bounds.MinLng, "western edge of the map")
	flags.Float64Var(&o.MaxLng, "max-lng", def.Bounds.MaxLng, "eastern edge of the map")
	flags.Float64Var(&o.Width, "width", def.Canvas.Width, "canvas width in pixels")
	flags.Float64Var(&o.Height, "height", def.Canvas.Height, "canvas height in pixels")
	flags.Float64Var(&o.Threshold, "threshold", def.Threshold, "cluster distance threshold in degrees")
	flags.StringVar(&o.Linkage, "linkage", def.Linkage.String(), "cluster linkage: representative or single")
}

// config builds and validates the map configuration.
func (o *mapOptions) config() (mapview.Config, error) {
	linkage, err := cluster.ParseLinkage(o.Linkage)
	if err != nil {
		return mapview.Config{}, err
	}

	cfg := mapview.DefaultConfig()
	cfg.Bounds.MinLat, cfg.Bounds.MaxLat = o.MinLat, o.MaxLat
	cfg.Bounds.MinLng, cfg.Bounds.MaxLng = o.MinLng, o.MaxLng
	cfg.Canvas.Width, cfg.Canvas.Height = o.Width, o.Height
	cfg.Threshold = o.Threshold
	cfg.Linkage = linkage

	if err := cfg.Validate(); err != nil {
		return mapview.Config{}, fmt.Errorf("invalid map configuration: %w", err)
	}

	return cfg, nil
}
