// Package config loads the launcher's JSON configuration file: the program to run,
// its default arguments, and the group-wide deadlock-detection/compression knobs.
// Uses jsoniter rather than encoding/json for decoding.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Launcher is the external launch contract, expressed as config
// rather than flags: the program to fork, its default argv, and the two group-wide
// knobs every forked rank must agree on.
type Launcher struct {
	Program           string   `json:"program"`
	Args              []string `json:"args"`
	DeadlockDetection bool     `json:"deadlock_detection"`
	Compression       bool     `json:"compression"`
}

// Load decodes a Launcher config from path.
func Load(path string) (*Launcher, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	cfg := &Launcher{DeadlockDetection: true}
	if err := jsonAPI.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	if cfg.Program == "" {
		return nil, errors.Errorf("config: %s: missing required \"program\"", path)
	}
	return cfg, nil
}
