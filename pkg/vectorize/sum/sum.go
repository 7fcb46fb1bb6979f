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

package sum

import (
	"math/big"
	"math/bits"

	"github.com/matrixorigin/decsum/pkg/container/types"
)

// A wide sum is kept as a pair (x, overflow) whose exact value is
// overflow*2^127 + x. After every operation in this package the pair is
// canonical: overflow is the exact value divided by 2^127 and truncated
// toward zero, x holds the remainder, and x never has the opposite sign of
// overflow. Equal values therefore always have equal pairs.

const (
	bit127 = uint64(1) << 63
	low127 = bit127 - 1
)

var (
	decimal64SumWithOverflow      func([]types.Decimal64, types.Decimal128, int64) (types.Decimal128, int64)
	decimal64SumSelsWithOverflow  func([]types.Decimal64, []int64, types.Decimal128, int64) (types.Decimal128, int64)
	decimal128SumWithOverflow     func([]types.Decimal128, types.Decimal128, int64) (types.Decimal128, int64)
	decimal128SumSelsWithOverflow func([]types.Decimal128, []int64, types.Decimal128, int64) (types.Decimal128, int64)
)

func init() {
	decimal64SumWithOverflow = decimal64SumWithOverflowPure
	decimal64SumSelsWithOverflow = decimal64SumSelsWithOverflowPure
	decimal128SumWithOverflow = decimal128SumWithOverflowPure
	decimal128SumSelsWithOverflow = decimal128SumSelsWithOverflowPure
}

// Decimal128AddWithOverflow adds y into the wide sum (x, overflow).
func Decimal128AddWithOverflow(x types.Decimal128, overflow int64, y types.Decimal128) (types.Decimal128, int64) {
	// 192 bit sum of the sign extended operands, it lies in [-2^128, 2^128).
	s0, c := bits.Add64(x.B0_63, y.B0_63, 0)
	s1, c := bits.Add64(x.B64_127, y.B64_127, c)
	s2, _ := bits.Add64(signExt(x), signExt(y), c)

	// floor split s = a*2^127 + b with 0 <= b < 2^127, a in [-2, 1].
	a := int64(s2)*2 + int64(s1>>63)
	b := types.Decimal128{B0_63: s0, B64_127: s1 & low127}

	// move to truncated form.
	if a < 0 && !b.IsZero() {
		a++
		b.B64_127 |= bit127
	}

	k := overflow + a
	switch {
	case k > 0 && b.Sign():
		k--
		b.B64_127 &= low127
	case k < 0 && !b.Sign() && !b.IsZero():
		k++
		b.B64_127 |= bit127
	}
	return b, k
}

// Decimal128CombineWithOverflow merges two wide sums.
func Decimal128CombineWithOverflow(x1 types.Decimal128, overflow1 int64, x2 types.Decimal128, overflow2 int64) (types.Decimal128, int64) {
	return Decimal128AddWithOverflow(x1, overflow1+overflow2, x2)
}

// Decimal128OverflowToBigInt returns the exact value of a wide sum.
func Decimal128OverflowToBigInt(x types.Decimal128, overflow int64) *big.Int {
	v := big.NewInt(overflow)
	v.Lsh(v, 127)
	return v.Add(v, x.ToBigInt())
}

func signExt(x types.Decimal128) uint64 {
	return uint64(int64(x.B64_127) >> 63)
}

func Decimal64SumWithOverflow(xs []types.Decimal64, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	return decimal64SumWithOverflow(xs, x, overflow)
}

// 64 bit inputs are first summed into a plain 128 bit partial, which cannot
// wrap for fewer than 2^63 values.
func decimal64SumWithOverflowPure(xs []types.Decimal64, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	var part types.Decimal128
	var c uint64
	for _, v := range xs {
		part.B0_63, c = bits.Add64(part.B0_63, uint64(v), 0)
		part.B64_127 += uint64(int64(v)>>63) + c
	}
	return Decimal128AddWithOverflow(x, overflow, part)
}

func Decimal64SumSelsWithOverflow(xs []types.Decimal64, sels []int64, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	return decimal64SumSelsWithOverflow(xs, sels, x, overflow)
}

func decimal64SumSelsWithOverflowPure(xs []types.Decimal64, sels []int64, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	var part types.Decimal128
	var c uint64
	for _, sel := range sels {
		v := xs[sel]
		part.B0_63, c = bits.Add64(part.B0_63, uint64(v), 0)
		part.B64_127 += uint64(int64(v)>>63) + c
	}
	return Decimal128AddWithOverflow(x, overflow, part)
}

func Decimal128SumWithOverflow(xs []types.Decimal128, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	return decimal128SumWithOverflow(xs, x, overflow)
}

func decimal128SumWithOverflowPure(xs []types.Decimal128, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	for _, v := range xs {
		x, overflow = Decimal128AddWithOverflow(x, overflow, v)
	}
	return x, overflow
}

func Decimal128SumSelsWithOverflow(xs []types.Decimal128, sels []int64, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	return decimal128SumSelsWithOverflow(xs, sels, x, overflow)
}

func decimal128SumSelsWithOverflowPure(xs []types.Decimal128, sels []int64, x types.Decimal128, overflow int64) (types.Decimal128, int64) {
	for _, sel := range sels {
		x, overflow = Decimal128AddWithOverflow(x, overflow, xs[sel])
	}
	return x, overflow
}
