// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/touristsafety/safemap/server"
	"github.com/touristsafety/safemap/tracking"
)

type serveOptions struct {
	Addr          string
	MaxConns      int
	Buffer        int
	RedisAddr     string
	RedisPassword string
	RedisChannel  string
}

var (
	serveDb   = &dbOptions{}
	serveMap  = &mapOptions{}
	serveOpts = &serveOptions{}
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking API and live map server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	cfg, err := serveMap.config()
	if err != nil {
		return err
	}

	db, repo, err := serveDb.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}

	log.Printf("Opened %s with %d tourists", serveDb.Path, n)

	hub := tracking.NewHub(serveOpts.Buffer)
	opts := []server.Option{server.WithMapConfig(cfg)}

	if rdb := tracking.OpenRedis(serveOpts.RedisAddr, serveOpts.RedisPassword); rdb != nil {
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", serveOpts.RedisAddr, err)
		}

		relay := tracking.NewRedisRelay(rdb, serveOpts.RedisChannel, hub)
		opts = append(opts, server.WithPublisher(relay))

		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Printf("Redis relay stopped, delivering updates locally only: %v", err)
			}
		}()

		log.Printf("Relaying updates through redis %s", serveOpts.RedisAddr)
	}

	return server.NewServer(repo, hub, opts...).Run(ctx, serveOpts.Addr, serveOpts.MaxConns)
}

func init() {
	serveDb.bind(serveCmd.Flags())
	serveMap.bind(serveCmd.Flags())

	serveCmd.Flags().StringVar(
		&serveOpts.Addr,
		"addr",
		envOr("SAFEMAP_ADDR", server.DefaultAddr),
		"address to listen on (env SAFEMAP_ADDR)",
	)
	serveCmd.Flags().IntVar(
		&serveOpts.MaxConns,
		"max-conns",
		512,
		"maximum simultaneous connections, 0 for no limit",
	)
	serveCmd.Flags().IntVar(
		&serveOpts.Buffer,
		"ws-buffer",
		32,
		"updates buffered per websocket client before it is dropped",
	)
	serveCmd.Flags().StringVar(
		&serveOpts.RedisAddr,
		"redis-addr",
		os.Getenv("REDIS_ADDR"),
		"share live updates through this redis server (env REDIS_ADDR)",
	)
	serveCmd.Flags().StringVar(
		&serveOpts.RedisPassword,
		"redis-password",
		os.Getenv("REDIS_PASSWORD"),
		"redis password (env REDIS_PASSWORD)",
	)
	serveCmd.Flags().StringVar(
		&serveOpts.RedisChannel,
		"redis-channel",
		envOr("REDIS_CHANNEL", tracking.DefaultChannel),
		"redis pub/sub channel (env REDIS_CHANNEL)",
	)

	rootCmd.AddCommand(serveCmd)
}
