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
	"fmt"
	"sync"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/container/types"
)

/*
	methods to register the aggregation function.
	after registered, the function `MakeAgg` can make the aggregation function executor.
*/

// AggIdOfDecimalSum is the id sum(decimal) is registered under by default.
const AggIdOfDecimalSum int64 = 1

type aggMaker func(mp *mpool.MPool, argType types.Type, chunkSize int) (AggFuncExec, error)

type aggKey string

func generateKeyOfSingleColumnAgg(aggID int64, argOid types.T) aggKey {
	return aggKey(fmt.Sprintf("s_%d_%d", aggID, argOid))
}

var (
	registerMu sync.RWMutex
	singleAgg  = make(map[aggKey]aggMaker)
)

func init() {
	RegisterDecimalSum(AggIdOfDecimalSum)
}

// RegisterDecimalSum registers sum over both decimal encodings under id.
func RegisterDecimalSum(id int64) {
	maker := func(mp *mpool.MPool, argType types.Type, chunkSize int) (AggFuncExec, error) {
		return NewDecimalSumExec(mp, argType.Oid, argType.Scale, chunkSize)
	}
	registerMu.Lock()
	defer registerMu.Unlock()
	singleAgg[generateKeyOfSingleColumnAgg(id, types.T_decimal64)] = maker
	singleAgg[generateKeyOfSingleColumnAgg(id, types.T_decimal128)] = maker
}

// MakeAgg makes the executor of a registered aggregation.
func MakeAgg(mp *mpool.MPool, aggID int64, argType types.Type, chunkSize int) (AggFuncExec, error) {
	registerMu.RLock()
	maker, ok := singleAgg[generateKeyOfSingleColumnAgg(aggID, argType.Oid)]
	registerMu.RUnlock()
	if !ok {
		return nil, moerr.NewNotSupported(moerr.Context(), "aggregation %d over %s", aggID, argType)
	}
	return maker(mp, argType, chunkSize)
}
