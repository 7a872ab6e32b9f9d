// Copyright 2022 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matrixorigin/cubeclient/metric"
	"github.com/matrixorigin/cubeclient/util/typeutil"
)

var (
	// DefaultMaxBufferSize default batch buffer cap
	DefaultMaxBufferSize = typeutil.ByteSize(7 * 1024 * 1024)
	// DefaultFlushTimeout default flush timeout
	DefaultFlushTimeout = time.Minute
)

// Config cubeclient configuration
type Config struct {
	// AllowFollowerReads group follower-safe reads as consistent-prefix
	// reads served by any replica
	AllowFollowerReads bool `toml:"allow-follower-reads"`
	// CombineBatchErrors combine per-op failures into the terminal batch
	// status instead of reporting a generic failure
	CombineBatchErrors bool `toml:"combine-batch-errors"`
	// MaxBufferSize cap on the bytes buffered by one batch, used by the
	// session layer to back-pressure Add
	MaxBufferSize typeutil.ByteSize `toml:"max-buffer-size"`
	// FlushTimeout deadline applied to a whole flush
	FlushTimeout typeutil.Duration `toml:"flush-timeout"`

	Metric metric.Cfg `toml:"metric"`
}

// Load load the configuration from a toml file
func Load(file string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(file, cfg); err != nil {
		return nil, err
	}
	cfg.Adjust()
	return cfg, nil
}

// Adjust fill the default values
func (c *Config) Adjust() {
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.FlushTimeout.Duration == 0 {
		c.FlushTimeout = typeutil.NewDuration(DefaultFlushTimeout)
	}
}
