// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package config reads and writes roaring.Config as TOML or YAML.
//
// A file only needs to name the settings it changes:
//
//	array-max-size = 4096
//	run-max-size = 2048
//	optimize-on-remove-range = false
//
// Unnamed settings keep their defaults, and unknown keys are rejected.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml"
	"gopkg.in/yaml.v2"

	"github.com/molecula/roaring32/errors"
	"github.com/molecula/roaring32/logger"
	"github.com/molecula/roaring32/roaring"
)

// Load reads the file at path and parses it. Files ending in .yaml or .yml
// are read as YAML, anything else as TOML. Problems are logged to log,
// which may be nil.
func Load(path string, log logger.Logger) (roaring.Config, error) {
	if log == nil {
		log = logger.NopLogger
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return roaring.Config{}, errors.Wrap(err, "reading config")
	}
	parse := Parse
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parse = ParseYAML
	}
	cfg, err := parse(data)
	if err != nil {
		log.Errorf("config: %s: %v", path, err)
		return roaring.Config{}, errors.Wrapf(err, "loading %s", path)
	}
	log.Infof("config: loaded %s: array-max-size=%d run-max-size=%d optimize-on-remove-range=%v",
		path, cfg.ArrayMaxSize, cfg.RunMaxSize, cfg.OptimizeOnRemoveRange)
	return cfg, nil
}

// Parse decodes TOML on top of roaring.DefaultConfig and validates the
// result. On error the defaults are returned.
func Parse(data []byte) (roaring.Config, error) {
	cfg := roaring.DefaultConfig()
	if err := toml.NewDecoder(bytes.NewReader(data)).Strict(true).Decode(&cfg); err != nil {
		return roaring.DefaultConfig(), errors.Newf(roaring.ErrInvalidConfig, "decoding toml: %v", err)
	}
	return validated(cfg)
}

// ParseYAML is Parse for YAML input.
func ParseYAML(data []byte) (roaring.Config, error) {
	cfg := roaring.DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return roaring.DefaultConfig(), errors.Newf(roaring.ErrInvalidConfig, "decoding yaml: %v", err)
	}
	return validated(cfg)
}

func validated(cfg roaring.Config) (roaring.Config, error) {
	if err := cfg.Validate(); err != nil {
		return roaring.DefaultConfig(), err
	}
	return cfg, nil
}

// Marshal encodes cfg as TOML which Parse accepts.
func Marshal(cfg roaring.Config) ([]byte, error) {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling config")
	}
	return buf, nil
}

// MarshalYAML encodes cfg as YAML which ParseYAML accepts.
func MarshalYAML(cfg roaring.Config) ([]byte, error) {
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling config")
	}
	return buf, nil
}
