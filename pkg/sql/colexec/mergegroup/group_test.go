// Copyright 2024 Matrix Origin
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
	"math/big"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/lni/goutils/leaktest"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/config"
	"github.com/matrixorigin/decsum/pkg/container/types"
	mock_mergegroup "github.com/matrixorigin/decsum/pkg/sql/colexec/mergegroup/test"
	"github.com/matrixorigin/decsum/pkg/vectorize/sum"
)

func pow2(n uint) types.Decimal128 {
	if n < 64 {
		return types.Decimal128{B0_63: 1 << n}
	}
	return types.Decimal128{B64_127: 1 << (n - 64)}
}

func testConfig(t *testing.T, workers int, backend string) *config.Config {
	cfg, err := config.ParseConfig("")
	require.NoError(t, err)
	cfg.Sum.Workers = workers
	cfg.Sum.ChunkSize = 16
	cfg.Exchange.Backend = backend
	return cfg
}

// makeBatches returns random batches over groupCount groups and the exact
// sum of every group.
func makeBatches(r *rand.Rand, n, rows, groupCount int) ([]Batch, []*big.Int) {
	exact := make([]*big.Int, groupCount)
	for i := range exact {
		exact[i] = new(big.Int)
	}
	batches := make([]Batch, n)
	for b := range batches {
		bat := Batch{Groups: make([]uint64, rows)}
		wide := b%2 == 1
		if wide {
			bat.Wide = make([]types.Decimal128, rows)
		} else {
			bat.Compact = make([]types.Decimal64, rows)
		}
		for i := 0; i < rows; i++ {
			g := uint64(r.Intn(groupCount + 1))
			bat.Groups[i] = g
			var v *big.Int
			if wide {
				bat.Wide[i] = types.Decimal128{B0_63: r.Uint64(), B64_127: r.Uint64()}
				v = bat.Wide[i].ToBigInt()
			} else {
				bat.Compact[i] = types.Decimal64(r.Uint64())
				v = big.NewInt(int64(bat.Compact[i]))
			}
			if g != 0 {
				exact[g-1].Add(exact[g-1], v)
			}
		}
		batches[b] = bat
	}
	return batches, exact
}

func TestMergeGroup_RunMemory(t *testing.T) {
	defer leaktest.AfterTest(t)()
	testMergeGroupRun(t, config.ExchangeMemory)
}

func TestMergeGroup_RunPebble(t *testing.T) {
	testMergeGroupRun(t, config.ExchangePebble)
}

func testMergeGroupRun(t *testing.T, backend string) {
	r := rand.New(rand.NewSource(1))
	batches, exact := makeBatches(r, 9, 300, 40)

	cfg := testConfig(t, 4, backend)
	cfg.Sum.Compress = backend == config.ExchangePebble
	mg, err := NewMergeGroup(cfg, types.New(types.T_decimal128, 38, 2))
	require.NoError(t, err)

	result, err := mg.Run(context.Background(), batches, 50)
	require.NoError(t, err)
	require.Equal(t, 50, result.GroupCount())
	type pair struct {
		x types.Decimal128
		k int64
	}
	want := make([]pair, 50)
	for g := 0; g < 50; g++ {
		want[g].x, want[g].k = result.OutputWide(g)
		if g < len(exact) {
			require.Equal(t, 0, exact[g].Cmp(sum.Decimal128OverflowToBigInt(want[g].x, want[g].k)), "group %d", g)
		} else {
			require.True(t, result.IsEmpty(g))
		}
	}

	for _, order := range [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}} {
		result, err = mg.RunInOrder(context.Background(), batches, 50, order)
		require.NoError(t, err)
		for g := 0; g < 50; g++ {
			x, k := result.OutputWide(g)
			require.Equal(t, want[g].x, x)
			require.Equal(t, want[g].k, k)
		}
	}

	rows, size := mg.Stats()
	require.Equal(t, int64(3*9*300), rows)
	require.Greater(t, size, int64(0))
	require.Greater(t, mg.ReduceMemory(), int64(0))

	var buf bytes.Buffer
	mg.String(&buf)
	require.Contains(t, buf.String(), "merge_group")
	require.NoError(t, mg.Close())
}

func TestMergeGroup_OverflowAcrossWorkers(t *testing.T) {
	defer leaktest.AfterTest(t)()

	batches := []Batch{
		{Groups: []uint64{1, 1}, Wide: []types.Decimal128{pow2(125), pow2(126)}},
		{Groups: []uint64{1, 1}, Wide: []types.Decimal128{pow2(125), pow2(126)}},
	}
	mg, err := NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_decimal128.ToType())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, mg.Close())
	}()

	result, err := mg.Run(context.Background(), batches, 1)
	require.NoError(t, err)
	x, k := result.OutputWide(0)
	require.Equal(t, pow2(126), x)
	require.Equal(t, int64(1), k)
	_, err = result.Output(0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrDecimalSumOverflow))
}

func TestMergeGroup_Empty(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mg, err := NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_decimal64.ToType())
	require.NoError(t, err)
	result, err := mg.Run(context.Background(), nil, 3)
	require.NoError(t, err)
	rs, empties, err := result.Flush()
	require.NoError(t, err)
	require.Len(t, rs, 3)
	require.Equal(t, uint64(3), empties.GetCardinality())
	require.NoError(t, mg.Close())
}

func TestMergeGroup_Cancel(t *testing.T) {
	defer leaktest.AfterTest(t)()

	r := rand.New(rand.NewSource(2))
	batches, _ := makeBatches(r, 4, 10, 5)
	mg, err := NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_decimal128.ToType())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mg.Run(ctx, batches, 5)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted))
	require.Empty(t, mg.exchange.(*memExchange).states)
	require.Equal(t, int64(0), mg.ReduceMemory())
	require.NoError(t, mg.Close())
}

func TestMergeGroup_BadInput(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mg, err := NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_decimal128.ToType())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, mg.Close())
	}()

	_, err = mg.Run(context.Background(), []Batch{{Groups: []uint64{1}}}, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	_, err = mg.Run(context.Background(), []Batch{{
		Groups:  []uint64{1},
		Compact: []types.Decimal64{1},
		Wide:    []types.Decimal128{{}},
	}}, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	// the length mismatch is found by a worker, its sibling's state is dropped.
	_, err = mg.Run(context.Background(), []Batch{
		{Groups: []uint64{1}, Compact: []types.Decimal64{1}},
		{Groups: []uint64{1, 2}, Compact: []types.Decimal64{1}},
	}, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	require.Empty(t, mg.exchange.(*memExchange).states)

	batches := []Batch{{Groups: []uint64{1}, Compact: []types.Decimal64{1}}}
	_, err = mg.RunInOrder(context.Background(), batches, 1, []int{1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_int64.ToType())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
	cfg := testConfig(t, 2, config.ExchangeMemory)
	cfg.Sum.Workers = 0
	_, err = NewMergeGroup(cfg, types.T_decimal128.ToType())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestMergeGroup_ExchangeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	exchange := mock_mergegroup.NewMockExchange(ctrl)
	exchange.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	// one Get by the reducer, one by drain for the other worker.
	exchange.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, moerr.NewInternalErrorNoCtx("exchange lost")).Times(2)
	exchange.EXPECT().Close().Return(nil).Times(1)

	stubs := gostub.Stub(&newExchange, func(config.ExchangeParameters) (Exchange, error) {
		return exchange, nil
	})
	defer stubs.Reset()

	mg, err := NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_decimal128.ToType())
	require.NoError(t, err)
	batches := []Batch{
		{Groups: []uint64{1}, Compact: []types.Decimal64{1}},
		{Groups: []uint64{1}, Compact: []types.Decimal64{2}},
	}
	_, err = mg.Run(context.Background(), batches, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	require.NoError(t, mg.Close())
}

func TestMergeGroup_NewExchangeFailure(t *testing.T) {
	defer leaktest.AfterTest(t)()

	stubs := gostub.Stub(&newExchange, func(config.ExchangeParameters) (Exchange, error) {
		return nil, moerr.NewBadConfigNoCtx("no exchange")
	})
	defer stubs.Reset()

	_, err := NewMergeGroup(testConfig(t, 2, config.ExchangeMemory), types.T_decimal128.ToType())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}
