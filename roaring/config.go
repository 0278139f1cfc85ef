// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import (
	"github.com/molecula/roaring32/errors"
)

const (
	// ArrayMaxSize is the default largest cardinality an array container
	// may hold before it is converted to a bitmap.
	ArrayMaxSize = 4096

	// RunMaxSize is the default largest number of intervals a run
	// container may hold before it is converted to an array or bitmap.
	RunMaxSize = 2048
)

// ErrInvalidConfig is returned by Config.Validate.
const ErrInvalidConfig errors.Code = "InvalidConfig"

// Config holds the tunables for container conversions.
type Config struct {
	// ArrayMaxSize is the cardinality above which array containers become
	// bitmaps, and at or below which bitmaps become arrays on removal.
	ArrayMaxSize int `toml:"array-max-size" yaml:"array-max-size"`

	// RunMaxSize is the interval count above which run containers are
	// converted to a denser encoding.
	RunMaxSize int `toml:"run-max-size" yaml:"run-max-size"`

	// OptimizeOnRemoveRange re-encodes the containers touched by
	// RemoveRange in their smallest form.
	OptimizeOnRemoveRange bool `toml:"optimize-on-remove-range" yaml:"optimize-on-remove-range"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ArrayMaxSize: ArrayMaxSize,
		RunMaxSize:   RunMaxSize,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.ArrayMaxSize < 1 || c.ArrayMaxSize >= maxContainerN {
		return errors.Newf(ErrInvalidConfig, "array-max-size must be in [1, %d): %d", maxContainerN, c.ArrayMaxSize)
	}
	if c.RunMaxSize < 1 || c.RunMaxSize > maxContainerN/2 {
		return errors.Newf(ErrInvalidConfig, "run-max-size must be in [1, %d]: %d", maxContainerN/2, c.RunMaxSize)
	}
	return nil
}

// policy is the per-bitmap form of a Config which containers consult when
// deciding whether to convert.
type policy struct {
	arrayMaxSize          int32
	runMaxSize            int32
	optimizeOnRemoveRange bool
}

func (c Config) policy() *policy {
	return &policy{
		arrayMaxSize:          int32(c.ArrayMaxSize),
		runMaxSize:            int32(c.RunMaxSize),
		optimizeOnRemoveRange: c.OptimizeOnRemoveRange,
	}
}

var defaultPolicy = DefaultConfig().policy()
