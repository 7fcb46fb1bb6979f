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

package moerr

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMoErrCode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		code     uint16
		expected bool
	}{
		{
			name:     "nil error is ok",
			err:      nil,
			code:     Ok,
			expected: true,
		},
		{
			name:     "nil error is not internal",
			err:      nil,
			code:     ErrInternal,
			expected: false,
		},
		{
			name:     "out of range",
			err:      NewOutOfRange(ctx, "decimal128", "too big"),
			code:     ErrOutOfRange,
			expected: true,
		},
		{
			name:     "sum overflow has its own code",
			err:      NewDecimalSumOverflow(ctx, 3, -1),
			code:     ErrDecimalSumOverflow,
			expected: true,
		},
		{
			name:     "sum overflow is not a plain out of range",
			err:      NewDecimalSumOverflow(ctx, 3, -1),
			code:     ErrOutOfRange,
			expected: false,
		},
		{
			name:     "out of range is not a sum overflow",
			err:      NewOutOfRange(ctx, "decimal128", "too big"),
			code:     ErrDecimalSumOverflow,
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("some error"),
			code:     ErrInternal,
			expected: false,
		},
		{
			name:     "code mismatch",
			err:      NewInvalidInputNoCtx("bad"),
			code:     ErrBadConfig,
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMoErrCode(tt.err, tt.code))
		})
	}
}

func TestDecimalSumOverflowMessage(t *testing.T) {
	err := NewDecimalSumOverflowNoCtx(7, 2)
	require.Equal(t, ErrDecimalSumOverflow, err.ErrorCode())
	require.Equal(t, ER_DATA_OUT_OF_RANGE, err.MySQLCode())
	require.Equal(t, "22003", err.SqlState())
	require.Equal(t,
		"data out of range: data type decimal128, sum of group 7 overflowed (overflow count 2)",
		err.Error())
}

func TestErrorMarshalBinary(t *testing.T) {
	src := NewInvalidArgNoCtx("scale", 3).WithDetail("scale mismatch")
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst := &Error{}
	require.NoError(t, dst.UnmarshalBinary(data))
	require.Equal(t, src.ErrorCode(), dst.ErrorCode())
	require.Equal(t, src.MySQLCode(), dst.MySQLCode())
	require.Equal(t, src.Error(), dst.Error())
	require.Equal(t, src.SqlState(), dst.SqlState())
	require.Equal(t, "invalid argument scale, bad value 3: scale mismatch", dst.Display())

	require.Error(t, dst.UnmarshalBinary(data[:len(data)-1]))
}

func TestConvertGoError(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, ConvertGoError(ctx, nil))

	oom := NewOOM(ctx)
	require.Equal(t, error(oom), ConvertGoError(ctx, oom))

	require.True(t, IsMoErrCode(ConvertGoError(ctx, io.EOF), ErrUnexpectedEOF))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, errors.New("x")), ErrInternal))
}

func TestConvertPanicError(t *testing.T) {
	ctx := context.Background()
	e := NewQueryInterrupted(ctx)
	require.Equal(t, e, ConvertPanicError(ctx, e))
	require.True(t, IsMoErrCode(ConvertPanicError(ctx, "boom"), ErrInternal))
	require.True(t, GetOkExpectedEOF().Succeeded())
	require.False(t, e.Succeeded())
}
