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

import (
	"math/big"
	"math/bits"
	"strings"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/util"
)

// maxQuotedLiteral bounds how much of a bad literal an error message repeats.
const maxQuotedLiteral = 64

// Decimal64 and Decimal128 hold the unscaled integer of a decimal value in
// two's complement. The scale lives in the column Type, never in the value.
type Decimal64 uint64

type Decimal128 struct {
	B0_63   uint64
	B64_127 uint64
}

var (
	Decimal128Max  = Decimal128{^uint64(0), ^uint64(0) >> 1}
	Decimal128Min  = Decimal128{0, 1 << 63}
	Decimal128Zero = Decimal128{}

	bigTwo64  = new(big.Int).Lsh(big.NewInt(1), 64)
	bigTwo127 = new(big.Int).Lsh(big.NewInt(1), 127)
	bigTwo128 = new(big.Int).Lsh(big.NewInt(1), 128)
	bigMask64 = new(big.Int).Sub(bigTwo64, big.NewInt(1))
)

func (x Decimal64) Sign() bool {
	return x>>63 == 1
}

func (x Decimal64) Minus() Decimal64 {
	return ^x + 1
}

func (x Decimal128) Sign() bool {
	return x.B64_127>>63 == 1
}

func (x Decimal128) IsZero() bool {
	return x.B0_63 == 0 && x.B64_127 == 0
}

func (x Decimal128) Minus() Decimal128 {
	x.B0_63 = ^x.B0_63
	x.B64_127 = ^x.B64_127
	var carry uint64
	x.B0_63, carry = bits.Add64(x.B0_63, 1, 0)
	x.B64_127 += carry
	return x
}

// Add128 returns x+y, or an out of range error when the signed result does
// not fit 128 bits.
func (x Decimal128) Add128(y Decimal128) (Decimal128, error) {
	signX, signY := x.Sign(), y.Sign()
	var carry uint64
	x.B0_63, carry = bits.Add64(x.B0_63, y.B0_63, 0)
	x.B64_127, _ = bits.Add64(x.B64_127, y.B64_127, carry)
	if signX == signY && x.Sign() != signX {
		return x, moerr.NewOutOfRangeNoCtx("decimal128", "decimal Add overflow")
	}
	return x, nil
}

func (x Decimal128) Sub128(y Decimal128) (Decimal128, error) {
	signX, signY := x.Sign(), y.Sign()
	var borrow uint64
	x.B0_63, borrow = bits.Sub64(x.B0_63, y.B0_63, 0)
	x.B64_127, _ = bits.Sub64(x.B64_127, y.B64_127, borrow)
	if signX != signY && x.Sign() != signX {
		return x, moerr.NewOutOfRangeNoCtx("decimal128", "decimal Sub overflow")
	}
	return x, nil
}

func (x Decimal128) Compare(y Decimal128) int {
	return CompareDecimal128(x, y)
}

func CompareDecimal64(x, y Decimal64) int {
	switch {
	case int64(x) < int64(y):
		return -1
	case int64(x) > int64(y):
		return 1
	}
	return 0
}

func CompareDecimal128(x, y Decimal128) int {
	if x.B64_127 != y.B64_127 {
		if int64(x.B64_127) < int64(y.B64_127) {
			return -1
		}
		return 1
	}
	if x.B0_63 != y.B0_63 {
		if x.B0_63 < y.B0_63 {
			return -1
		}
		return 1
	}
	return 0
}

// Decimal128FromDecimal64 sign extends x.
func Decimal128FromDecimal64(x Decimal64) Decimal128 {
	y := Decimal128{B0_63: uint64(x)}
	if x.Sign() {
		y.B64_127 = ^uint64(0)
	}
	return y
}

func Decimal128FromInt64(v int64) Decimal128 {
	return Decimal128FromDecimal64(Decimal64(v))
}

func (x Decimal128) ToBigInt() *big.Int {
	v := big.NewInt(int64(x.B64_127))
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(x.B0_63))
}

// Decimal128FromBigInt accepts values in [-2^127, 2^127).
func Decimal128FromBigInt(v *big.Int) (Decimal128, error) {
	if v.Cmp(bigTwo127) >= 0 || v.CmpAbs(bigTwo127) > 0 {
		return Decimal128{}, moerr.NewOutOfRangeNoCtx("decimal128", "value %s", v.String())
	}
	m := new(big.Int).Set(v)
	if m.Sign() < 0 {
		m.Add(m, bigTwo128)
	}
	lo := new(big.Int).And(m, bigMask64).Uint64()
	hi := m.Rsh(m, 64).Uint64()
	return Decimal128{B0_63: lo, B64_127: hi}, nil
}

func (x Decimal64) Format(scale int32) string {
	return formatUnscaled(big.NewInt(int64(x)), scale)
}

func (x Decimal128) Format(scale int32) string {
	return formatUnscaled(x.ToBigInt(), scale)
}

// FormatBigDecimal renders an unscaled integer of any magnitude, used for
// exact sums that no longer fit 128 bits.
func FormatBigDecimal(v *big.Int, scale int32) string {
	return formatUnscaled(v, scale)
}

func formatUnscaled(v *big.Int, scale int32) string {
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if scale > 0 {
		if pad := int(scale) + 1 - len(digits); pad > 0 {
			digits = strings.Repeat("0", pad) + digits
		}
		p := len(digits) - int(scale)
		digits = digits[:p] + "." + digits[p:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// ParseDecimal64 is ParseDecimal128 limited to 18 digits, a width of zero
// or less means 18.
func ParseDecimal64(s string, width, scale int32) (Decimal64, error) {
	if width <= 0 || width > MaxDecimal64Precision {
		width = MaxDecimal64Precision
	}
	x, err := ParseDecimal128(s, width, scale)
	if err != nil {
		return 0, err
	}
	return Decimal64(x.B0_63), nil
}

// ParseDecimal128 reads a plain decimal literal into an unscaled value with
// the given scale. Extra fractional digits round half away from zero.
func ParseDecimal128(s string, width, scale int32) (Decimal128, error) {
	if width <= 0 || width > MaxDecimal128Precision {
		width = MaxDecimal128Precision
	}
	if scale < 0 || scale > width {
		return Decimal128{}, moerr.NewInvalidArgNoCtx("decimal scale", scale)
	}
	str := strings.TrimSpace(s)
	neg := false
	if len(str) > 0 && (str[0] == '-' || str[0] == '+') {
		neg = str[0] == '-'
		str = str[1:]
	}
	intPart, fracPart, _ := strings.Cut(str, ".")
	if len(intPart)+len(fracPart) == 0 || !allDigits(intPart) || !allDigits(fracPart) {
		return Decimal128{}, moerr.NewInvalidInputNoCtx("invalid decimal string '%s'", util.Abbreviate(s, maxQuotedLiteral))
	}
	roundUp := false
	if len(fracPart) > int(scale) {
		roundUp = fracPart[scale] >= '5'
		fracPart = fracPart[:scale]
	} else {
		fracPart += strings.Repeat("0", int(scale)-len(fracPart))
	}
	v, _ := new(big.Int).SetString("0"+intPart+fracPart, 10)
	if roundUp {
		v.Add(v, big.NewInt(1))
	}
	if v.Sign() != 0 && int32(len(v.String())) > width {
		return Decimal128{}, moerr.NewOutOfRangeNoCtx("decimal128", "value '%s' exceeds precision %d", util.Abbreviate(s, maxQuotedLiteral), width)
	}
	if neg {
		v.Neg(v)
	}
	return Decimal128FromBigInt(v)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
