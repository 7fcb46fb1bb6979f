// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/logutil"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/aggexec"
)

const (
	ExchangeMemory = "memory"
	ExchangePebble = "pebble"
)

// Config of a decsum run.
type Config struct {
	Log      logutil.LogConfig  `toml:"log"`
	Sum      SumParameters      `toml:"sum"`
	Exchange ExchangeParameters `toml:"exchange"`
}

// SumParameters of the partial aggregation.
type SumParameters struct {
	// ChunkSize is the number of groups in one storage chunk.
	ChunkSize int `toml:"chunk-size"`

	// Workers is the number of partial aggregations run at once.
	Workers int `toml:"workers"`

	// MPoolCap limits the bytes of one worker's pool, 0 is unlimited.
	MPoolCap int64 `toml:"mpool-cap"`

	// Compress partial states with lz4 before the exchange.
	Compress bool `toml:"compress"`
}

// ExchangeParameters tell where partial states wait for the reducer.
type ExchangeParameters struct {
	Backend string `toml:"backend"`

	// Dir of the pebble store. Empty means an in-memory filesystem.
	Dir string `toml:"dir"`
}

// SetDefaultValues fills the zero fields.
func (c *Config) SetDefaultValues() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Sum.ChunkSize == 0 {
		c.Sum.ChunkSize = aggexec.AggBatchSize
	}
	if c.Sum.Workers == 0 {
		c.Sum.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Exchange.Backend == "" {
		c.Exchange.Backend = ExchangeMemory
	}
}

func (c *Config) Validate() error {
	if c.Sum.ChunkSize <= 0 || c.Sum.ChunkSize > aggexec.MaxChunkSize {
		return moerr.NewBadConfigNoCtx("sum.chunk-size %d", c.Sum.ChunkSize)
	}
	if c.Sum.Workers <= 0 {
		return moerr.NewBadConfigNoCtx("sum.workers %d", c.Sum.Workers)
	}
	if c.Sum.MPoolCap < 0 {
		return moerr.NewBadConfigNoCtx("sum.mpool-cap %d", c.Sum.MPoolCap)
	}
	switch c.Exchange.Backend {
	case ExchangeMemory, ExchangePebble:
	default:
		return moerr.NewBadConfigNoCtx("exchange.backend '%s'", c.Exchange.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return moerr.NewBadConfigNoCtx("log.format '%s'", c.Log.Format)
	}
	return nil
}

// ParseConfigFromFile reads a toml file, fills defaults and validates.
func ParseConfigFromFile(file string) (*Config, error) {
	if file == "" {
		return nil, moerr.NewBadConfigNoCtx("toml config file not set")
	}
	if _, err := os.Stat(file); err != nil {
		return nil, moerr.NewBadConfigNoCtx("config file %s: %v", file, err)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(file, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("config file %s: %v", file, err)
	}
	return finish(cfg)
}

// ParseConfig is ParseConfigFromFile over toml text.
func ParseConfig(data string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("%v", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.SetDefaultValues()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
