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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
)

func testExchange(t *testing.T, ex Exchange) {
	ctx := context.Background()
	data := []byte("partial")
	require.NoError(t, ex.Put(ctx, 1, 0, data))
	require.NoError(t, ex.Put(ctx, 1, 1, []byte("other")))
	data[0] = 'P'

	got, err := ex.Get(ctx, 1, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("partial"), got)

	_, err = ex.Get(ctx, 1, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
	_, err = ex.Get(ctx, 2, 1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	got, err = ex.Get(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("other"), got)
}

func TestMemExchange(t *testing.T) {
	ex := NewMemExchange()
	testExchange(t, ex)
	require.NoError(t, ex.Close())
	require.True(t, moerr.IsMoErrCode(ex.Put(context.Background(), 1, 0, nil), moerr.ErrInvalidState))
}

func TestPebbleExchange(t *testing.T) {
	for _, dir := range []string{"", t.TempDir()} {
		ex, err := NewPebbleExchange(dir)
		require.NoError(t, err)
		testExchange(t, ex)
		require.NoError(t, ex.Close())
	}
}

func TestExchangeKey(t *testing.T) {
	require.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2}, exchangeKey(1, 2))
	require.Less(t, string(exchangeKey(1, 9)), string(exchangeKey(2, 0)))
}
