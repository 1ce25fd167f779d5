// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

// Builds the safemap binary and its runtime image
package main

import (
	"context"
	"dagger/safemap/internal/dagger"
)

const (
	builderUser    = "builder"
	distrolessUser = "65532" // nonroot in distroless
	serverPort     = 8000
)

// tools installed for BuildCliValidate
var validateTools = []string{
	"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
	"golang.org/x/vuln/cmd/govulncheck@latest",
	"github.com/google/addlicense@latest",
}

// withGoCaches mounts the module and build caches owned by builderUser.
func withGoCaches(c *dagger.Container) *dagger.Container {
	home := "/home/" + builderUser
	owned := dagger.ContainerWithMountedCacheOpts{Owner: builderUser}

	return c.
		WithMountedCache("/go/pkg", dag.CacheVolume("safemap-go-pkg"), owned).
		WithMountedCache(home+"/.cache", dag.CacheVolume("safemap-go-build"), owned).
		WithEnvVariable("GOCACHE", home+"/.cache/go-build")
}

// Compiles safemap inside a debian based Go image
func (s *Safemap) BuildCliBase(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build"]
	src *dagger.Directory,
) *dagger.Container {
	// duckdb bindings do not link against musl
	base := dag.Container().
		From("golang:1.25.5-bookworm").
		WithExec([]string{"useradd", "-m", "-u", "1000", builderUser}).
		WithWorkdir("/src")

	// modules are downloaded before the sources are copied so edits keep the cache
	deps := withGoCaches(base).
		WithFile("go.mod", src.File("go.mod")).
		WithFile("go.sum", src.File("go.sum")).
		WithExec([]string{"chown", "-R", builderUser, "/src", "/home/" + builderUser}).
		WithUser(builderUser).
		WithExec([]string{"go", "mod", "download"})

	return deps.
		WithUser("root").
		WithDirectory("/src", src).
		WithExec([]string{"chown", "-R", builderUser, "/src"}).
		WithUser(builderUser).
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"go", "build", "-o", "build/safemap", "."})
}

// Lints the sources and checks license headers
func (s *Safemap) BuildCliValidate(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build"]
	src *dagger.Directory,
) *dagger.Container {
	c := s.BuildCliBase(ctx, src)
	for _, tool := range validateTools {
		c = c.WithExec([]string{"go", "install", tool})
	}

	return c.
		WithExec([]string{"golangci-lint", "run", "--timeout", "5m", "./..."}).
		WithExec([]string{"govulncheck", "./..."}).
		WithExec([]string{
			"addlicense", "--check",
			"-c", "The SafeMap Authors",
			"-l", "apache",
			"-s=only",
			"--ignore", "build/**",
			"--ignore", ".dagger/internal/**",
			"--ignore", "_examples/**",
			".",
		})
}

// Packages safemap serve as a distroless image
func (s *Safemap) BuildCli(
	ctx context.Context,
	// +defaultPath="/"
	// +ignore=["data", "build"]
	src *dagger.Directory,
) *dagger.Container {
	binary := s.BuildCliBase(ctx, src).File("/src/build/safemap")

	return dag.Container().
		From("gcr.io/distroless/cc-debian12").
		WithWorkdir("/app").
		WithFile("/app/safemap", binary).
		WithEnvVariable("SAFEMAP_DB_PATH", "/app/data/safemap.duckdb").
		WithEnvVariable("SAFEMAP_ADDR", "0.0.0.0:8000").
		WithExposedPort(serverPort).
		WithEntrypoint([]string{"/app/safemap"}).
		WithDefaultArgs([]string{"serve"}).
		WithUser(distrolessUser)
}
