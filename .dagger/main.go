// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

// CI pipeline for the safemap CLI and server
package main

import (
	"context"
	"dagger/safemap/internal/dagger"
	"fmt"
)

type Safemap struct{}

// Runs the unit tests
func (s *Safemap) Test(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build"]
	src *dagger.Directory,
) (string, error) {
	return s.BuildCliBase(ctx, src).
		WithExec([]string{"go", "test", "-race", "-count=1", "./..."}).
		Stdout(ctx)
}

// Validates, tests and packages the CLI. Used by the pull request checks.
func (s *Safemap) Ci(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build"]
	src *dagger.Directory,
) error {
	if _, err := s.BuildCliValidate(ctx, src).Sync(ctx); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.Test(ctx, src); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}

	if _, err := s.BuildCli(ctx, src).Sync(ctx); err != nil {
		return fmt.Errorf("packaging failed: %w", err)
	}

	return nil
}
