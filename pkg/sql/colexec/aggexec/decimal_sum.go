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

package aggexec

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/matrixorigin/decsum/pkg/vectorize/sum"
)

// DecimalSumExec is sum(decimal) over many groups. Every group accumulates
// in the wide form with an overflow counter, so adds and merges never fail
// and only Output reports a sum that does not fit decimal128.
type DecimalSumExec struct {
	mp *mpool.MPool
	aggInfo
	state decimalSumState
}

// NewDecimalSumExec returns an exec for argument type argOid (T_decimal64
// or T_decimal128) whose values are already aligned to scale.
func NewDecimalSumExec(mp *mpool.MPool, argOid types.T, scale int32, chunkSize int) (*DecimalSumExec, error) {
	if !argOid.IsDecimal() {
		return nil, moerr.NewInvalidArgNoCtx("sum argument type", argOid)
	}
	if scale < 0 || scale > types.MaxDecimal128Precision {
		return nil, moerr.NewInvalidArgNoCtx("sum scale", scale)
	}
	if chunkSize > MaxChunkSize {
		return nil, moerr.NewInvalidArgNoCtx("sum chunk size", chunkSize)
	}
	exec := &DecimalSumExec{
		mp:      mp,
		aggInfo: newAggInfo(argOid, scale),
	}
	exec.state.init(chunkSize)
	return exec, nil
}

func (exec *DecimalSumExec) Scale() int32 {
	return exec.retType.Scale
}

func (exec *DecimalSumExec) ChunkSize() int {
	return exec.state.chunkSize
}

func (exec *DecimalSumExec) GroupGrow(more int) error {
	return exec.state.grow(exec.mp, more)
}

func (exec *DecimalSumExec) GroupCount() int {
	return exec.state.length
}

func (exec *DecimalSumExec) AddCompact(groupIdx int, v types.Decimal64) error {
	return exec.AddWide(groupIdx, types.Decimal128FromDecimal64(v))
}

func (exec *DecimalSumExec) AddWide(groupIdx int, v types.Decimal128) error {
	if err := exec.state.ensureCapacity(exec.mp, groupIdx); err != nil {
		return err
	}
	x, k := exec.state.slotFor(groupIdx)
	x, k = sum.Decimal128AddWithOverflow(x, k, v)
	exec.state.setSlot(groupIdx, x, k)
	return nil
}

func (exec *DecimalSumExec) BatchAddCompact(groups []uint64, vs []types.Decimal64) error {
	if len(groups) != len(vs) {
		return moerr.NewInvalidInputNoCtx("%d groups for %d values", len(groups), len(vs))
	}
	for i, g := range groups {
		if g == GroupNotMatched {
			continue
		}
		if err := exec.AddWide(int(g-1), types.Decimal128FromDecimal64(vs[i])); err != nil {
			return err
		}
	}
	return nil
}

func (exec *DecimalSumExec) BatchAddWide(groups []uint64, vs []types.Decimal128) error {
	if len(groups) != len(vs) {
		return moerr.NewInvalidInputNoCtx("%d groups for %d values", len(groups), len(vs))
	}
	for i, g := range groups {
		if g == GroupNotMatched {
			continue
		}
		if err := exec.AddWide(int(g-1), vs[i]); err != nil {
			return err
		}
	}
	return nil
}

// BulkAddCompact adds a whole column to one group, through sels when it is
// not nil.
func (exec *DecimalSumExec) BulkAddCompact(groupIdx int, vs []types.Decimal64, sels []int64) error {
	if err := exec.state.ensureCapacity(exec.mp, groupIdx); err != nil {
		return err
	}
	x, k := exec.state.slotFor(groupIdx)
	if sels == nil {
		x, k = sum.Decimal64SumWithOverflow(vs, x, k)
	} else {
		x, k = sum.Decimal64SumSelsWithOverflow(vs, sels, x, k)
	}
	exec.state.setSlot(groupIdx, x, k)
	return nil
}

func (exec *DecimalSumExec) BulkAddWide(groupIdx int, vs []types.Decimal128, sels []int64) error {
	if err := exec.state.ensureCapacity(exec.mp, groupIdx); err != nil {
		return err
	}
	x, k := exec.state.slotFor(groupIdx)
	if sels == nil {
		x, k = sum.Decimal128SumWithOverflow(vs, x, k)
	} else {
		x, k = sum.Decimal128SumSelsWithOverflow(vs, sels, x, k)
	}
	exec.state.setSlot(groupIdx, x, k)
	return nil
}

func (exec *DecimalSumExec) checkPeer(next AggFuncExec) (*DecimalSumExec, error) {
	other, ok := next.(*DecimalSumExec)
	if !ok {
		return nil, moerr.NewInvalidArgNoCtx("merge source", "not a decimal sum")
	}
	if other.Scale() != exec.Scale() {
		return nil, moerr.NewInvalidArgNoCtx("merge source scale", other.Scale())
	}
	return other, nil
}

func (exec *DecimalSumExec) Merge(next AggFuncExec, groupIdx1, groupIdx2 int) error {
	other, err := exec.checkPeer(next)
	if err != nil {
		return err
	}
	if other.state.isEmpty(groupIdx2) {
		return nil
	}
	if err = exec.state.ensureCapacity(exec.mp, groupIdx1); err != nil {
		return err
	}
	x1, k1 := exec.state.slotFor(groupIdx1)
	x2, k2 := other.state.slotFor(groupIdx2)
	x1, k1 = sum.Decimal128CombineWithOverflow(x1, k1, x2, k2)
	exec.state.setSlot(groupIdx1, x1, k1)
	return nil
}

// CombineStates merges every non-empty group of source into the same group
// of exec. source is only read.
func (exec *DecimalSumExec) CombineStates(source AggFuncExec) error {
	other, err := exec.checkPeer(source)
	if err != nil {
		return err
	}
	if err = exec.state.reserve(other.state.length); err != nil {
		return err
	}
	it := other.state.present.Iterator()
	for it.HasNext() {
		g := int(it.Next())
		if err = exec.state.ensureCapacity(exec.mp, g); err != nil {
			return err
		}
		x1, k1 := exec.state.slotFor(g)
		x2, k2 := other.state.slotFor(g)
		x1, k1 = sum.Decimal128CombineWithOverflow(x1, k1, x2, k2)
		exec.state.setSlot(g, x1, k1)
	}
	return nil
}

// Output returns the sum of one group, zero for a group that never got a
// value. A group with a non-zero overflow counter fails with a decimal sum
// overflow error and is left as it is.
func (exec *DecimalSumExec) Output(groupIdx int) (types.Decimal128, error) {
	if groupIdx < 0 {
		return types.Decimal128{}, moerr.NewInvalidArgNoCtx("group index", groupIdx)
	}
	x, k := exec.state.slotFor(groupIdx)
	if k != 0 {
		return types.Decimal128{}, moerr.NewDecimalSumOverflowNoCtx(groupIdx, k)
	}
	return x, nil
}

// OutputWide returns the exact pair of one group, zero outside the groups.
func (exec *DecimalSumExec) OutputWide(groupIdx int) (types.Decimal128, int64) {
	return exec.state.slotFor(groupIdx)
}

func (exec *DecimalSumExec) IsEmpty(groupIdx int) bool {
	return exec.state.isEmpty(groupIdx)
}

func (exec *DecimalSumExec) Flush() ([]types.Decimal128, *roaring.Bitmap, error) {
	n := exec.state.length
	rs := make([]types.Decimal128, n)
	empties := roaring.New()
	for i := 0; i < n; i++ {
		if exec.state.isEmpty(i) {
			empties.Add(uint32(i))
			continue
		}
		v, err := exec.Output(i)
		if err != nil {
			return nil, nil, err
		}
		rs[i] = v
	}
	return rs, empties, nil
}

func (exec *DecimalSumExec) Size() int64 {
	return exec.state.size()
}

func (exec *DecimalSumExec) Free() {
	exec.state.free(exec.mp)
}
