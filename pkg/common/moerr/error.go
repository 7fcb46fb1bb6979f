// Copyright 2021 - 2022 Matrix Origin
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
	"encoding"
	"fmt"
	"io"

	"github.com/gogo/protobuf/proto"
)

const MySQLDefaultSqlState = "HY000"

const (
	// 0 - 99 is OK.  They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok            uint16 = 0
	OkExpectedEOF uint16 = 2 // Expected End Of File

	OkMax uint16 = 99

	// Group 1: Internal errors
	ErrStart            uint16 = 20100
	ErrInternal         uint16 = 20101
	ErrOOM              uint16 = 20103
	ErrQueryInterrupted uint16 = 20104
	ErrNotSupported     uint16 = 20105

	// Group 2: numeric and functions
	ErrOutOfRange uint16 = 20201
	ErrInvalidArg uint16 = 20203
	// ErrDecimalSumOverflow is a decimal sum whose exact value does not fit
	// the 128-bit result.
	ErrDecimalSumOverflow uint16 = 20204

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state and io errors
	ErrInvalidState  uint16 = 20400
	ErrUnexpectedEOF uint16 = 20407

	// Group End: max value of MOErrorCode
	ErrEnd uint16 = 65535
)

// mysql error codes returned alongside the mo codes.
const (
	ER_OUTOFMEMORY         uint16 = 1037
	ER_UNKNOWN_ERROR       uint16 = 1105
	ER_WRONG_ARGUMENTS     uint16 = 1210
	ER_WRONG_VALUE_FOR_VAR uint16 = 1231
	ER_NOT_SUPPORTED_YET   uint16 = 1235
	ER_QUERY_INTERRUPTED   uint16 = 1317
	ER_DATA_OUT_OF_RANGE   uint16 = 1690
)

type moErrorMsgItem struct {
	mysqlCode        uint16
	sqlStates        []string
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	Ok:            {0, []string{"00000"}, "ok"},
	OkExpectedEOF: {0, []string{"00000"}, "ExpectedEOF"},

	// Group 1: Internal errors
	ErrStart:            {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: error code start"},
	ErrInternal:         {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: %s"},
	ErrOOM:              {ER_OUTOFMEMORY, []string{MySQLDefaultSqlState}, "error: out of memory"},
	ErrQueryInterrupted: {ER_QUERY_INTERRUPTED, []string{MySQLDefaultSqlState}, "query interrupted"},
	ErrNotSupported:     {ER_NOT_SUPPORTED_YET, []string{MySQLDefaultSqlState}, "not supported: %s"},

	// Group 2: numeric and functions
	ErrOutOfRange:         {ER_DATA_OUT_OF_RANGE, []string{"22003"}, "data out of range: data type %s, %s"},
	ErrInvalidArg:         {ER_WRONG_ARGUMENTS, []string{MySQLDefaultSqlState}, "invalid argument %s, bad value %s"},
	ErrDecimalSumOverflow: {ER_DATA_OUT_OF_RANGE, []string{"22003"}, "data out of range: data type decimal128, sum of group %d overflowed (overflow count %d)"},

	// Group 3: invalid input
	ErrBadConfig:    {ER_WRONG_VALUE_FOR_VAR, []string{MySQLDefaultSqlState}, "invalid configuration: %s"},
	ErrInvalidInput: {ER_WRONG_ARGUMENTS, []string{MySQLDefaultSqlState}, "invalid input: %s"},

	// Group 4: unexpected state and io errors
	ErrInvalidState:  {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "invalid state %s"},
	ErrUnexpectedEOF: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "unexpected end of file %s"},

	// Group End: max value of MOErrorCode
	ErrEnd: {ER_UNKNOWN_ERROR, []string{MySQLDefaultSqlState}, "internal error: end of errcode code"},
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	var err *Error
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist MOErrorCode: %d", code))
	}
	if len(args) == 0 {
		err = &Error{
			code:      code,
			mysqlCode: item.mysqlCode,
			message:   item.errorMsgOrFormat,
			sqlState:  item.sqlStates[0],
		}
	} else {
		err = &Error{
			code:      code,
			mysqlCode: item.mysqlCode,
			message:   fmt.Sprintf(item.errorMsgOrFormat, args...),
			sqlState:  item.sqlStates[0],
		}
	}
	return err
}

type Error struct {
	code      uint16
	mysqlCode uint16
	message   string
	sqlState  string
	detail    string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Detail() string {
	return e.detail
}

func (e *Error) Display() string {
	if len(e.detail) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) MySQLCode() uint16 {
	return e.mysqlCode
}

func (e *Error) SqlState() string {
	return e.sqlState
}

var _ encoding.BinaryMarshaler = new(Error)

// MarshalBinary encodes the error so it can travel with a partial
// aggregation state across an exchange.
func (e *Error) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if err := buf.EncodeVarint(uint64(e.code)); err != nil {
		return nil, ConvertGoError(Context(), err)
	}
	if err := buf.EncodeVarint(uint64(e.mysqlCode)); err != nil {
		return nil, ConvertGoError(Context(), err)
	}
	if err := buf.EncodeStringBytes(e.message); err != nil {
		return nil, ConvertGoError(Context(), err)
	}
	if err := buf.EncodeStringBytes(e.sqlState); err != nil {
		return nil, ConvertGoError(Context(), err)
	}
	if err := buf.EncodeStringBytes(e.detail); err != nil {
		return nil, ConvertGoError(Context(), err)
	}
	return buf.Bytes(), nil
}

var _ encoding.BinaryUnmarshaler = new(Error)

func (e *Error) UnmarshalBinary(data []byte) error {
	buf := proto.NewBuffer(data)
	code, err := buf.DecodeVarint()
	if err != nil {
		return ConvertGoError(Context(), err)
	}
	mysqlCode, err := buf.DecodeVarint()
	if err != nil {
		return ConvertGoError(Context(), err)
	}
	message, err := buf.DecodeStringBytes()
	if err != nil {
		return ConvertGoError(Context(), err)
	}
	sqlState, err := buf.DecodeStringBytes()
	if err != nil {
		return ConvertGoError(Context(), err)
	}
	detail, err := buf.DecodeStringBytes()
	if err != nil {
		return ConvertGoError(Context(), err)
	}
	e.code = uint16(code)
	e.mysqlCode = uint16(mysqlCode)
	e.message = message
	e.sqlState = sqlState
	e.detail = detail
	return nil
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	me, ok := e.(*Error)
	if !ok {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return newError(ctx, ErrInternal, fmt.Sprintf("panic %v", v))
}

// ConvertGoError converts a go error into mo error.
// Note here we must return error, because nil error
// is the same as nil *Error -- Go strangeness.
func ConvertGoError(ctx context.Context, err error) error {
	// nil is nil
	if err == nil {
		return err
	}

	// already a moerr, return it as is
	if _, ok := err.(*Error); ok {
		return err
	}

	// Convert a few well known os/go error.
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// if io.EOF reaches here, we believe it is not expected.
		return NewUnexpectedEOF(ctx, err.Error())
	}

	return NewInternalError(ctx, "convert go error to mo error %v", err)
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

// WithDetail returns a copy of e carrying detail, used when the message
// format is shared but the caller has extra context to attach.
func (e *Error) WithDetail(detail string) *Error {
	ne := *e
	ne.detail = detail
	return &ne
}

var errOkExpectedEOF = Error{OkExpectedEOF, 0, "ExpectedEOF", "00000", ""}

func GetOkExpectedEOF() *Error {
	return &errOkExpectedEOF
}

func Context() context.Context {
	return context.Background()
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNotSupported, xmsg)
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewQueryInterrupted(ctx context.Context) *Error {
	return newError(ctx, ErrQueryInterrupted)
}

func NewOutOfRange(ctx context.Context, typ string, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrOutOfRange, typ, xmsg)
}

// NewDecimalSumOverflow reports a decimal sum whose exact value does not fit
// the 128-bit result. overflow is the number of 2^127 units left over.
func NewDecimalSumOverflow(ctx context.Context, group int, overflow int64) *Error {
	return newError(ctx, ErrDecimalSumOverflow, group, overflow)
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewUnexpectedEOF(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrUnexpectedEOF, xmsg)
}
