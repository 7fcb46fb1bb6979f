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
	"context"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sys/cpu"

	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/config"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/aggexec"
)

const (
	thisOperatorName = "merge_group"
)

// Batch is a run of rows of one decimal column. Exactly one of Compact and
// Wide is set, Groups follows the aggexec convention (0 means no group).
type Batch struct {
	Groups  []uint64
	Compact []types.Decimal64
	Wide    []types.Decimal128
}

func (bat *Batch) rowCount() int {
	return len(bat.Groups)
}

// Exchange carries a marshaled partial state from a worker to the reducer.
// Get hands back what Put stored under the same (stage, worker) and forgets
// it.
type Exchange interface {
	Put(ctx context.Context, stage, worker uint32, data []byte) error
	Get(ctx context.Context, stage, worker uint32) ([]byte, error)
	Close() error
}

// newExchange is replaced in tests.
var newExchange = func(cfg config.ExchangeParameters) (Exchange, error) {
	switch cfg.Backend {
	case config.ExchangePebble:
		return NewPebbleExchange(cfg.Dir)
	default:
		return NewMemExchange(), nil
	}
}

// workerStats is written by one worker only.
type workerStats struct {
	_     cpu.CacheLinePad
	rows  atomic.Int64
	bytes atomic.Int64
	_     cpu.CacheLinePad
}

// MergeGroup sums one decimal column per group with parallel partial
// aggregations and a single reducer.
type MergeGroup struct {
	param   config.SumParameters
	argType types.Type

	pool     *ants.Pool
	exchange Exchange
	stage    atomic.Uint32
	stats    []workerStats

	ctr container
}

type container struct {
	// mp of the reduced result.
	mp     *mpool.MPool
	result *aggexec.DecimalSumExec
}

func (ctr *container) free() {
	if ctr.result != nil {
		ctr.result.Free()
		ctr.result = nil
	}
}

func (mergeGroup *MergeGroup) TypeName() string {
	return thisOperatorName
}
