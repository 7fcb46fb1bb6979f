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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/matrixorigin/decsum/pkg/config"
	"github.com/matrixorigin/decsum/pkg/logutil"
)

var (
	configFile = flag.String("cfg", "", "toml configuration of the run, defaults are used when empty")
	inputFile  = flag.String("input", "-", "csv input of group,value lines, - for stdin")
	scale      = flag.Int("scale", 2, "decimal scale of the values")
	precision  = flag.Int("precision", 38, "decimal precision of the values, up to 18 sums the compact form")
	exact      = flag.Bool("exact", false, "print the exact sum of a group that does not fit decimal128 instead of failing")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	setupLogger(cfg)

	in, err := openInput(*inputFile)
	if err != nil {
		logutil.Fatal("open input failed", zap.String("input", *inputFile), zap.Error(err))
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts := runOptions{
		scale:     int32(*scale),
		precision: int32(*precision),
		exact:     *exact,
	}
	if err = run(ctx, cfg, opts, in, os.Stdout); err != nil {
		logutil.Error("decsum failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(file string) (*config.Config, error) {
	if file == "" {
		return config.ParseConfig("")
	}
	return config.ParseConfigFromFile(file)
}

// stdout carries the sums, logs go to stderr unless a file is set.
func setupLogger(cfg *config.Config) {
	if cfg.Log.Filename == "" {
		cfg.Log.Filename = "stderr"
	}
	logutil.SetupMOLogger(&cfg.Log)
}

func openInput(name string) (io.ReadCloser, error) {
	if name == "-" || name == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}
