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
	"math"
	"unsafe"

	"github.com/RoaringBitmap/roaring"
	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/common/util"
	"github.com/matrixorigin/decsum/pkg/container/types"
)

// sumSlot is the fixed width record of one group.
type sumSlot struct {
	sum      types.Decimal128
	overflow int64
}

const sumSlotSize = int(unsafe.Sizeof(sumSlot{}))

// maxGroupIdx is the largest group id the present bitmap can hold.
const maxGroupIdx = math.MaxUint32

// decimalSumState keeps one sumSlot per group in chunks of chunkSize slots.
// Chunks are allocated zeroed from the pool and never moved, growing only
// appends chunks. A chunk added by reserve stays nil until one of its slots
// is written and reads as zero until then.
type decimalSumState struct {
	chunkSize int
	length    int
	chunks    [][]byte
	// groups that received at least one value.
	present *roaring.Bitmap
}

func (s *decimalSumState) init(chunkSize int) {
	if chunkSize <= 0 {
		chunkSize = AggBatchSize
	}
	s.chunkSize = chunkSize
	s.length = 0
	s.chunks = nil
	s.present = roaring.New()
}

func (s *decimalSumState) capacity() int {
	return len(s.chunks) * s.chunkSize
}

// ensureCapacity makes sure group groupIdx has a writable slot.
func (s *decimalSumState) ensureCapacity(mp *mpool.MPool, groupIdx int) error {
	if groupIdx < 0 || int64(groupIdx) > maxGroupIdx {
		return moerr.NewInvalidArgNoCtx("group index", groupIdx)
	}
	if groupIdx >= s.length {
		if err := s.grow(mp, groupIdx+1-s.length); err != nil {
			return err
		}
	}
	return s.materialize(mp, groupIdx/s.chunkSize)
}

func (s *decimalSumState) grow(mp *mpool.MPool, more int) error {
	if more < 0 || int64(s.length)+int64(more) > maxGroupIdx+1 {
		return moerr.NewInvalidArgNoCtx("group grow", more)
	}
	target := s.length + more
	for s.capacity() < target {
		bs, err := mp.Alloc(s.chunkSize*sumSlotSize, true)
		if err != nil {
			return err
		}
		s.chunks = append(s.chunks, bs)
	}
	s.length = target
	return nil
}

// reserve extends the state to n groups without allocating any chunk.
func (s *decimalSumState) reserve(n int) error {
	if n < 0 || int64(n) > maxGroupIdx+1 {
		return moerr.NewInvalidArgNoCtx("group count", n)
	}
	for s.capacity() < n {
		s.chunks = append(s.chunks, nil)
	}
	if n > s.length {
		s.length = n
	}
	return nil
}

func (s *decimalSumState) materialize(mp *mpool.MPool, x int) error {
	if s.chunks[x] != nil {
		return nil
	}
	bs, err := mp.Alloc(s.chunkSize*sumSlotSize, true)
	if err != nil {
		return err
	}
	s.chunks[x] = bs
	return nil
}

func (s *decimalSumState) getChunkSlots(x int) []sumSlot {
	return util.UnsafeSliceCast[sumSlot](s.chunks[x])
}

func (s *decimalSumState) slot(groupIdx int) *sumSlot {
	if groupIdx < 0 || groupIdx >= s.length {
		panic(moerr.NewInternalErrorNoCtx("group index %d out of range [0, %d)", groupIdx, s.length))
	}
	if s.chunks[groupIdx/s.chunkSize] == nil {
		panic(moerr.NewInternalErrorNoCtx("group index %d has no chunk", groupIdx))
	}
	return &s.getChunkSlots(groupIdx / s.chunkSize)[groupIdx%s.chunkSize]
}

// slotFor reads a group, a group past length or in an unallocated chunk
// is zero.
func (s *decimalSumState) slotFor(groupIdx int) (types.Decimal128, int64) {
	if groupIdx < 0 || groupIdx >= s.length || s.chunks[groupIdx/s.chunkSize] == nil {
		return types.Decimal128{}, 0
	}
	sl := s.slot(groupIdx)
	return sl.sum, sl.overflow
}

func (s *decimalSumState) setSlot(groupIdx int, x types.Decimal128, overflow int64) {
	sl := s.slot(groupIdx)
	sl.sum, sl.overflow = x, overflow
	s.present.Add(uint32(groupIdx))
}

func (s *decimalSumState) isEmpty(groupIdx int) bool {
	if groupIdx < 0 || int64(groupIdx) > maxGroupIdx {
		return true
	}
	return !s.present.Contains(uint32(groupIdx))
}

func (s *decimalSumState) size() int64 {
	n := int64(0)
	for _, c := range s.chunks {
		if c != nil {
			n += int64(len(c))
		}
	}
	return n + int64(s.present.GetSizeInBytes())
}

func (s *decimalSumState) free(mp *mpool.MPool) {
	for _, c := range s.chunks {
		if c != nil {
			mp.Free(c)
		}
	}
	s.chunks = nil
	s.length = 0
	if s.present != nil {
		s.present.Clear()
	}
}
