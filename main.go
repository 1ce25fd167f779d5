// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/touristsafety/safemap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
