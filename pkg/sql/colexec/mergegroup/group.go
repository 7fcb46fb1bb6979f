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

package mergegroup

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/config"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/matrixorigin/decsum/pkg/logutil"
	"github.com/matrixorigin/decsum/pkg/logutil/logutil2"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/aggexec"
)

const releaseTimeout = 5 * time.Second

func NewMergeGroup(cfg *config.Config, argType types.Type) (*MergeGroup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !argType.Oid.IsDecimal() {
		return nil, moerr.NewInvalidArgNoCtx("sum argument type", argType)
	}
	mp, err := mpool.NewMPool("decsum-reduce", 0, 0)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.Sum.Workers)
	if err != nil {
		return nil, err
	}
	exchange, err := newExchange(cfg.Exchange)
	if err != nil {
		pool.Release()
		return nil, err
	}
	return &MergeGroup{
		param:    cfg.Sum,
		argType:  argType,
		pool:     pool,
		exchange: exchange,
		stats:    make([]workerStats, cfg.Sum.Workers),
		ctr:      container{mp: mp},
	}, nil
}

func (mergeGroup *MergeGroup) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("%s: sum(%s) workers=%d chunk=%d", mergeGroup.TypeName(),
		mergeGroup.argType, mergeGroup.param.Workers, mergeGroup.param.ChunkSize))
}

// Run sums batches over at most param.Workers partial aggregations and
// reduces them in worker order. The result belongs to mergeGroup and stays
// valid until the next Run or Close. It holds at least groupCount groups.
func (mergeGroup *MergeGroup) Run(ctx context.Context, batches []Batch, groupCount int) (*aggexec.DecimalSumExec, error) {
	return mergeGroup.RunInOrder(ctx, batches, groupCount, nil)
}

// RunInOrder is Run with the partial states combined in the given order of
// worker ids. The result does not depend on the order.
func (mergeGroup *MergeGroup) RunInOrder(ctx context.Context, batches []Batch, groupCount int, order []int) (*aggexec.DecimalSumExec, error) {
	mergeGroup.ctr.free()

	for i := range batches {
		if err := checkBatch(&batches[i]); err != nil {
			return nil, err
		}
	}
	workers := mergeGroup.param.Workers
	if workers > len(batches) {
		workers = len(batches)
	}
	if order == nil {
		order = make([]int, workers)
		for i := range order {
			order[i] = i
		}
	} else if !isPermutation(order, workers) {
		return nil, moerr.NewInvalidArgNoCtx("combine order", order)
	}

	stage := mergeGroup.stage.Add(1)
	ctx = logutil.ContextWithFields(ctx, zap.Uint32("stage", stage))

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		if err := mergeGroup.pool.Submit(func() {
			defer wg.Done()
			errs[w] = mergeGroup.partial(ctx, stage, w, workers, batches)
		}); err != nil {
			errs[w] = err
			wg.Done()
		}
	}
	wg.Wait()

	var err error
	if ctx.Err() != nil {
		err = moerr.NewQueryInterrupted(ctx)
	} else {
		for _, e := range errs {
			if e != nil {
				err = e
				break
			}
		}
	}
	if err != nil {
		var done []int
		for w, e := range errs {
			if e == nil {
				done = append(done, w)
			}
		}
		mergeGroup.drain(stage, done)
		return nil, err
	}

	result, err := mergeGroup.reduce(ctx, stage, order)
	if err != nil {
		return nil, err
	}
	if more := groupCount - result.GroupCount(); more > 0 {
		if err = result.GroupGrow(more); err != nil {
			result.Free()
			return nil, err
		}
	}
	mergeGroup.ctr.result = result
	logutil2.Info(ctx, "merge group done",
		zap.Int("partials", workers),
		zap.Int("groups", result.GroupCount()),
		zap.Int64("bytes", result.Size()))
	return result, nil
}

// partial is the work of one worker, it owns its exec and pool alone.
func (mergeGroup *MergeGroup) partial(ctx context.Context, stage uint32, w, workers int, batches []Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = moerr.ConvertPanicError(ctx, r)
		}
	}()
	ctx = logutil.ContextWithFields(ctx, zap.Int("worker", w))

	mp, err := mpool.NewMPool(fmt.Sprintf("decsum-%d-%d", stage, w), mergeGroup.param.MPoolCap, 0)
	if err != nil {
		return err
	}
	exec, err := makeSumExec(mp, mergeGroup.argType, mergeGroup.param.ChunkSize)
	if err != nil {
		return err
	}
	defer exec.Free()

	st := &mergeGroup.stats[w]
	for i := w; i < len(batches); i += workers {
		if ctx.Err() != nil {
			return moerr.NewQueryInterrupted(ctx)
		}
		bat := &batches[i]
		if bat.Compact != nil {
			err = exec.BatchAddCompact(bat.Groups, bat.Compact)
		} else {
			err = exec.BatchAddWide(bat.Groups, bat.Wide)
		}
		if err != nil {
			return err
		}
		st.rows.Add(int64(bat.rowCount()))
	}

	data, err := aggexec.MarshalDecimalSumExec(exec, mergeGroup.param.Compress)
	if err != nil {
		return err
	}
	st.bytes.Add(int64(len(data)))
	logutil2.Debug(ctx, "partial sum done",
		zap.Int("groups", exec.GroupCount()),
		zap.Int("bytes", len(data)),
		zap.String("mpool", mp.Report()))
	return mergeGroup.exchange.Put(ctx, stage, uint32(w), data)
}

func (mergeGroup *MergeGroup) reduce(ctx context.Context, stage uint32, order []int) (*aggexec.DecimalSumExec, error) {
	result, err := makeSumExec(mergeGroup.ctr.mp, mergeGroup.argType, mergeGroup.param.ChunkSize)
	if err != nil {
		return nil, err
	}
	for i, w := range order {
		if err = mergeGroup.combineOne(ctx, stage, w, result); err != nil {
			result.Free()
			mergeGroup.drain(stage, order[i+1:])
			return nil, err
		}
	}
	return result, nil
}

func (mergeGroup *MergeGroup) combineOne(ctx context.Context, stage uint32, w int, result *aggexec.DecimalSumExec) error {
	if ctx.Err() != nil {
		return moerr.NewQueryInterrupted(ctx)
	}
	data, err := mergeGroup.exchange.Get(ctx, stage, uint32(w))
	if err != nil {
		return err
	}
	part, err := aggexec.UnmarshalDecimalSumExec(mergeGroup.ctr.mp, data)
	if err != nil {
		return err
	}
	defer part.Free()
	return result.CombineStates(part)
}

// drain drops partial states nobody will combine.
func (mergeGroup *MergeGroup) drain(stage uint32, workers []int) {
	for _, w := range workers {
		if _, err := mergeGroup.exchange.Get(context.Background(), stage, uint32(w)); err != nil {
			logutil.Warn("drop partial state failed",
				zap.Uint32("stage", stage),
				zap.Int("worker", w),
				zap.Error(err))
		}
	}
}

// Stats returns the rows summed and the partial state bytes exchanged by
// all runs so far.
func (mergeGroup *MergeGroup) Stats() (rows, bytes int64) {
	for i := range mergeGroup.stats {
		rows += mergeGroup.stats[i].rows.Load()
		bytes += mergeGroup.stats[i].bytes.Load()
	}
	return
}

// ReduceMemory returns the bytes held by the reduced result.
func (mergeGroup *MergeGroup) ReduceMemory() int64 {
	return mergeGroup.ctr.mp.CurrNB()
}

func (mergeGroup *MergeGroup) Close() error {
	mergeGroup.ctr.free()
	err := mergeGroup.pool.ReleaseTimeout(releaseTimeout)
	if e := mergeGroup.exchange.Close(); err == nil {
		err = e
	}
	return err
}

func makeSumExec(mp *mpool.MPool, argType types.Type, chunkSize int) (*aggexec.DecimalSumExec, error) {
	exec, err := aggexec.MakeAgg(mp, aggexec.AggIdOfDecimalSum, argType, chunkSize)
	if err != nil {
		return nil, err
	}
	return exec.(*aggexec.DecimalSumExec), nil
}

func checkBatch(bat *Batch) error {
	switch {
	case bat.Compact != nil && bat.Wide != nil:
		return moerr.NewInvalidInputNoCtx("batch has both compact and wide values")
	case bat.Compact == nil && bat.Wide == nil && len(bat.Groups) > 0:
		return moerr.NewInvalidInputNoCtx("batch of %d rows has no values", len(bat.Groups))
	}
	return nil
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, w := range order {
		if w < 0 || w >= n || seen[w] {
			return false
		}
		seen[w] = true
	}
	return true
}
