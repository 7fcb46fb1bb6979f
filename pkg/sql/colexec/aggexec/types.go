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
	"github.com/matrixorigin/decsum/pkg/container/types"
)

const (
	// GroupNotMatched marks a row that belongs to no group in the groups
	// slice of a batch call. Any other value v means group v-1.
	GroupNotMatched uint64 = 0

	AggBatchSize = 8192
	// MaxChunkSize bounds the slots of one storage chunk.
	MaxChunkSize = 1 << 16
)

// AggFuncExec is the life cycle of one aggregation over many groups.
// An exec is owned by a single goroutine, nothing inside is synchronized.
type AggFuncExec interface {
	// TypesInfo return the argument types and return type of the function.
	TypesInfo() ([]types.Type, types.Type)

	// GroupGrow makes room for more groups, new groups start from zero.
	GroupGrow(more int) error
	// GroupCount returns how many groups the exec holds.
	GroupCount() int

	// Merge combines group groupIdx2 of next into group groupIdx1.
	Merge(next AggFuncExec, groupIdx1, groupIdx2 int) error

	// Flush return the aggregation result of every group, and a bitmap of
	// groups that never received a value.
	Flush() ([]types.Decimal128, *roaring.Bitmap, error)

	// Size returns the bytes held by the exec.
	Size() int64

	// Free free the aggregation.
	Free()
}

// DecimalSumInput is the pair of typed entry points of a decimal sum. The
// caller knows which encoding a column uses and picks one statically.
type DecimalSumInput interface {
	AddCompact(groupIdx int, v types.Decimal64) error
	AddWide(groupIdx int, v types.Decimal128) error
	BatchAddCompact(groups []uint64, vs []types.Decimal64) error
	BatchAddWide(groups []uint64, vs []types.Decimal128) error
}

var (
	_ AggFuncExec     = (*DecimalSumExec)(nil)
	_ DecimalSumInput = (*DecimalSumExec)(nil)
)

type aggInfo struct {
	argType types.Type
	retType types.Type
}

func (a *aggInfo) TypesInfo() ([]types.Type, types.Type) {
	return []types.Type{a.argType}, a.retType
}

func newAggInfo(argOid types.T, scale int32) aggInfo {
	width := types.MaxDecimal128Precision
	if argOid == types.T_decimal64 {
		width = types.MaxDecimal64Precision
	}
	return aggInfo{
		argType: types.New(argOid, width, scale),
		retType: types.New(types.T_decimal128, types.MaxDecimal128Precision, scale),
	}
}
