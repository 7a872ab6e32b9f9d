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
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/matrixorigin/cubeclient/util/typeutil"
	"github.com/stretchr/testify/assert"
)

func TestAdjust(t *testing.T) {
	cfg := &Config{}
	cfg.Adjust()
	assert.Equal(t, DefaultMaxBufferSize, cfg.MaxBufferSize)
	assert.Equal(t, DefaultFlushTimeout, cfg.FlushTimeout.Duration)
}

func TestLoad(t *testing.T) {
	data := `
allow-follower-reads = true
combine-batch-errors = true
max-buffer-size = "16MiB"
flush-timeout = "30s"

[metric]
addr = "127.0.0.1:9091"
interval = 10
job = "cubeclient"
`
	file := filepath.Join(t.TempDir(), "cfg.toml")
	assert.NoError(t, ioutil.WriteFile(file, []byte(data), 0644))

	cfg, err := Load(file)
	assert.NoError(t, err)
	assert.True(t, cfg.AllowFollowerReads)
	assert.True(t, cfg.CombineBatchErrors)
	assert.Equal(t, typeutil.ByteSize(16*1024*1024), cfg.MaxBufferSize)
	assert.Equal(t, time.Second*30, cfg.FlushTimeout.Duration)
	assert.Equal(t, "127.0.0.1:9091", cfg.Metric.Addr)
	assert.Equal(t, 10, cfg.Metric.Interval)
}
