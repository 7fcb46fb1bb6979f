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
	"testing"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func TestMakeAgg(t *testing.T) {
	mp := mpool.MustNewZero()

	exec, err := MakeAgg(mp, AggIdOfDecimalSum, types.New(types.T_decimal64, 18, 2), 0)
	require.NoError(t, err)
	in, ok := exec.(DecimalSumInput)
	require.True(t, ok)
	require.NoError(t, in.AddCompact(0, 3))
	require.Equal(t, 1, exec.GroupCount())
	_, ret := exec.TypesInfo()
	require.Equal(t, types.T_decimal128, ret.Oid)
	exec.Free()

	_, err = MakeAgg(mp, AggIdOfDecimalSum, types.T_int64.ToType(), 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	_, err = MakeAgg(mp, 100, types.T_decimal128.ToType(), 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))

	RegisterDecimalSum(100)
	exec, err = MakeAgg(mp, 100, types.T_decimal128.ToType(), 0)
	require.NoError(t, err)
	exec.Free()
}
