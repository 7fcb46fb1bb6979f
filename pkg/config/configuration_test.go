// Copyright 2022 Matrix Origin
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
	"path/filepath"
	"runtime"
	"testing"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/aggexec"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(`
[log]
level = "debug"
format = "json"

[sum]
chunk-size = 1024
workers = 3
mpool-cap = 1048576
compress = true

[exchange]
backend = "pebble"
dir = "/tmp/decsum-x"
`)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, SumParameters{ChunkSize: 1024, Workers: 3, MPoolCap: 1 << 20, Compress: true}, cfg.Sum)
	require.Equal(t, ExchangeParameters{Backend: ExchangePebble, Dir: "/tmp/decsum-x"}, cfg.Exchange)
}

func TestSetDefaultValues(t *testing.T) {
	cfg, err := ParseConfig("")
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, aggexec.AggBatchSize, cfg.Sum.ChunkSize)
	require.Equal(t, runtime.GOMAXPROCS(0), cfg.Sum.Workers)
	require.Equal(t, ExchangeMemory, cfg.Exchange.Backend)
}

func TestValidate(t *testing.T) {
	kases := []string{
		"[sum]\nworkers = -1",
		"[sum]\nchunk-size = -8",
		"[sum]\nchunk-size = 65537",
		"[sum]\nmpool-cap = -1",
		"[exchange]\nbackend = \"kafka\"",
		"[log]\nformat = \"xml\"",
		"[sum\n",
	}
	for _, k := range kases {
		_, err := ParseConfig(k)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), k)
	}
}

func TestParseConfigFromFile(t *testing.T) {
	_, err := ParseConfigFromFile("")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	dir := t.TempDir()
	_, err = ParseConfigFromFile(filepath.Join(dir, "missing.toml"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	file := filepath.Join(dir, "decsum.toml")
	require.NoError(t, os.WriteFile(file, []byte("[sum]\nworkers = 2\n"), 0o644))
	cfg, err := ParseConfigFromFile(file)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Sum.Workers)
}
