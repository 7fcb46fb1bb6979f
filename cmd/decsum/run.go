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
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/config"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/matrixorigin/decsum/pkg/logutil"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/mergegroup"
	"github.com/matrixorigin/decsum/pkg/vectorize/sum"
)

type runOptions struct {
	scale     int32
	precision int32
	exact     bool
}

func (opts runOptions) argType() (types.Type, error) {
	if opts.precision <= 0 || opts.precision > types.MaxDecimal128Precision {
		return types.Type{}, moerr.NewInvalidArgNoCtx("precision", opts.precision)
	}
	if opts.scale < 0 || opts.scale > opts.precision {
		return types.Type{}, moerr.NewInvalidArgNoCtx("scale", opts.scale)
	}
	if opts.precision <= types.MaxDecimal64Precision {
		return types.New(types.T_decimal64, opts.precision, opts.scale), nil
	}
	return types.New(types.T_decimal128, opts.precision, opts.scale), nil
}

// run sums the values of in by group and writes group,sum lines to out in
// group order.
func run(ctx context.Context, cfg *config.Config, opts runOptions, in io.Reader, out io.Writer) error {
	argType, err := opts.argType()
	if err != nil {
		return err
	}
	input, err := readInput(ctx, in, argType)
	if err != nil {
		return err
	}

	mg, err := mergegroup.NewMergeGroup(cfg, argType)
	if err != nil {
		return err
	}
	defer func() {
		if err := mg.Close(); err != nil {
			logutil.Warn("close merge group failed", zap.Error(err))
		}
	}()

	result, err := mg.Run(ctx, input.batches, input.groups.Len())
	if err != nil {
		return err
	}
	rows, exchanged := mg.Stats()
	logutil.Info("sum done",
		zap.Int64("rows", rows),
		zap.Int("groups", input.groups.Len()),
		zap.Int64("exchanged-bytes", exchanged))
	return writeResult(out, input.groups, result, argType.Scale, opts.exact)
}

func writeResult(w io.Writer, groups *groupDict, result *aggexec.DecimalSumExec, scale int32, exact bool) error {
	bw := bufio.NewWriter(w)
	var err error
	groups.ascend(func(key string, idx int) bool {
		var s string
		if result.IsEmpty(idx) {
			s = "NULL"
		} else if v, e := result.Output(idx); e == nil {
			s = v.Format(scale)
		} else {
			x, k := result.OutputWide(idx)
			logutil.Warn("decimal sum overflow",
				zap.String("group", key),
				zap.Int64("overflow", k))
			if !exact {
				err = e
				return false
			}
			s = types.FormatBigDecimal(sum.Decimal128OverflowToBigInt(x, k), scale)
		}
		_, err = fmt.Fprintf(bw, "%s,%s\n", key, s)
		return err == nil
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}
