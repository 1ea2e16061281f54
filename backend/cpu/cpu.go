// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/chronosynth/internal/backend/cpu"
	"github.com/born-ml/chronosynth/internal/parallel"
	"github.com/born-ml/chronosynth/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Config controls how kernels are split across goroutines.
type Config = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using all available CPUs.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
//
// Example:
//
//	cfg := cpu.DefaultConfig()
//	cfg.NumWorkers = 4
//	backend := cpu.NewWithConfig(cfg)
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultConfig returns the configuration New uses.
func DefaultConfig() Config {
	return parallel.DefaultConfig()
}
