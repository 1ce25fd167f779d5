// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/touristsafety/safemap/api"
	"github.com/touristsafety/safemap/tracking"
)

const seedBatchSize = 100

var (
	seedDb    = &dbOptions{}
	seedFresh bool
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Registers the tourists listed in a JSON file",
	Long: `Registers every tourist in FILE, a JSON array of /register request bodies.
Names that are already registered are left untouched. See cmd/testdata/tourists.json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedFresh {
			// remove old db if it exists
			_ = os.Remove(seedDb.Path)
			_ = os.Remove(seedDb.Path + ".wal")
		}

		added, total, err := seedFile(cmd.Context(), seedDb, args[0])
		if err != nil {
			return err
		}

		log.Printf("Registered %d new tourists out of %d in %s", added, total, args[0])

		return nil
	},
}

func init() {
	seedDb.bind(seedCmd.Flags())
	seedCmd.Flags().BoolVar(&seedFresh, "fresh", false, "delete the database before seeding")

	rootCmd.AddCommand(seedCmd)
}

// readTourists decodes a JSON array of registration bodies.
func readTourists(r io.Reader) ([]*tracking.Tourist, error) {
	var reqs []api.RegisterRequest
	if err := json.NewDecoder(r).Decode(&reqs); err != nil {
		return nil, fmt.Errorf("decoding tourists: %w", err)
	}

	tourists := make([]*tracking.Tourist, 0, len(reqs))

	for i, req := range reqs {
		t, err := req.Tourist()
		if err != nil {
			return nil, fmt.Errorf("tourist #%d (%q): %w", i+1, req.Name, err)
		}

		tourists = append(tourists, t)
	}

	return tourists, nil
}

func readTouristsFile(path string) ([]*tracking.Tourist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return readTourists(f)
}

func seedFile(ctx context.Context, opts *dbOptions, path string) (added, total int, err error) {
	tourists, err := readTouristsFile(path)
	if err != nil {
		return 0, 0, err
	}

	db, repo, err := opts.open(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer db.Close()

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(tourists),
			progressbar.OptionSetDescription("Registering tourists"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for start := 0; start < len(tourists); start += seedBatchSize {
		end := min(start+seedBatchSize, len(tourists))

		n, err := repo.BulkRegister(ctx, tourists[start:end])
		if err != nil {
			return added, len(tourists), fmt.Errorf("registering tourists %d-%d: %w", start+1, end, err)
		}

		added += n

		if bar != nil {
			_ = bar.Add(end - start)
		}
	}

	return added, len(tourists), nil
}
