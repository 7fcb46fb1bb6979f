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

package types

import "fmt"

type T uint8

const (
	// any family
	T_any T = 0

	// numeric family
	T_int64 T = 25

	// decimal family, 64 bits for precision up to 18, 128 bits up to 38.
	T_decimal64  T = 32
	T_decimal128 T = 33
)

const (
	Decimal64Size  int = 8
	Decimal128Size int = 16

	MaxDecimal64Precision  int32 = 18
	MaxDecimal128Precision int32 = 38
)

type Type struct {
	Oid T

	// Size is the fixed width of one value in bytes.
	Size int32
	// Width means max Display width for float and double, char and varchar
	// todo: need to add new attribute DisplayWidth ?
	Width int32
	// Scale means number of fractional digits for decimal, timestamp, float, etc.
	Scale int32
}

func New(oid T, width, scale int32) Type {
	return Type{
		Oid:   oid,
		Size:  int32(oid.TypeLen()),
		Width: width,
		Scale: scale,
	}
}

func (t T) ToType() Type {
	typ := Type{Oid: t, Size: int32(t.TypeLen())}
	switch t {
	case T_decimal64:
		typ.Width = MaxDecimal64Precision
	case T_decimal128:
		typ.Width = MaxDecimal128Precision
	}
	return typ
}

func (t T) TypeLen() int {
	switch t {
	case T_int64, T_decimal64:
		return Decimal64Size
	case T_decimal128:
		return Decimal128Size
	}
	return 0
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_int64:
		return "BIGINT"
	case T_decimal64:
		return "DECIMAL64"
	case T_decimal128:
		return "DECIMAL128"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

func (t Type) String() string {
	switch t.Oid {
	case T_decimal64, T_decimal128:
		return fmt.Sprintf("%s(%d,%d)", t.Oid, t.Width, t.Scale)
	}
	return t.Oid.String()
}

func (t Type) Eq(b Type) bool {
	return t.Oid == b.Oid && t.Width == b.Width && t.Scale == b.Scale
}

// IsDecimal reports whether values of t are unscaled decimal integers.
func (t T) IsDecimal() bool {
	return t == T_decimal64 || t == T_decimal128
}
