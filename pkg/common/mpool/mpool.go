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

package mpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
)

const (
	// NoFixed disables reuse of freed buffers.
	NoFixed = 1 << iota
)

// maxCachedPerSize bounds the free list kept for each buffer size.
const maxCachedPerSize = 16

type MPoolStats struct {
	NumAlloc      atomic.Int64
	NumFree       atomic.Int64
	NumCurrBytes  atomic.Int64
	HighWaterMark atomic.Int64
}

func (s *MPoolStats) recordAlloc(sz int64) {
	s.NumAlloc.Add(1)
	curr := s.NumCurrBytes.Add(sz)
	for {
		hw := s.HighWaterMark.Load()
		if curr <= hw || s.HighWaterMark.CompareAndSwap(hw, curr) {
			return
		}
	}
}

func (s *MPoolStats) recordFree(sz int64) {
	s.NumFree.Add(1)
	s.NumCurrBytes.Add(-sz)
}

// MPool accounts the memory held by one operator. Buffers of the same size
// are recycled through a small free list, which matters for the fixed-size
// chunks of aggregation states.
type MPool struct {
	tag   string
	cap   int64
	flag  int
	stats MPoolStats

	mu    sync.Mutex
	cache map[int][][]byte
}

// NewMPool creates a pool. cap 0 means unlimited.
func NewMPool(tag string, cap int64, flag int) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewBadConfigNoCtx("mpool %s capacity %d", tag, cap)
	}
	return &MPool{
		tag:   tag,
		cap:   cap,
		flag:  flag,
		cache: make(map[int][][]byte),
	}, nil
}

func MustNew(tag string) *MPool {
	mp, err := NewMPool(tag, 0, 0)
	if err != nil {
		panic(err)
	}
	return mp
}

func MustNewZero() *MPool {
	return MustNew("zero")
}

func (mp *MPool) Tag() string {
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

func (mp *MPool) Stats() *MPoolStats {
	return &mp.stats
}

func (mp *MPool) CurrNB() int64 {
	return mp.stats.NumCurrBytes.Load()
}

// Alloc returns a buffer of sz bytes. A recycled buffer is cleared only
// when zero is set; a fresh one is always zero.
func (mp *MPool) Alloc(sz int, zero bool) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInternalErrorNoCtx("mpool %s alloc negative size %d", mp.tag, sz)
	}
	if sz == 0 {
		return nil, nil
	}
	if mp.cap > 0 && mp.CurrNB()+int64(sz) > mp.cap {
		return nil, moerr.NewOOMNoCtx()
	}

	bs := mp.fromCache(sz)
	if bs == nil {
		bs = make([]byte, sz)
	} else if zero {
		clear(bs)
	}
	mp.stats.recordAlloc(int64(sz))
	return bs, nil
}

// Free gives bs back to the pool. bs must come from Alloc of the same pool.
func (mp *MPool) Free(bs []byte) {
	if cap(bs) == 0 {
		return
	}
	bs = bs[:cap(bs)]
	mp.stats.recordFree(int64(len(bs)))
	if mp.flag&NoFixed != 0 {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if list := mp.cache[len(bs)]; len(list) < maxCachedPerSize {
		mp.cache[len(bs)] = append(list, bs)
	}
}

func (mp *MPool) fromCache(sz int) []byte {
	if mp.flag&NoFixed != 0 {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	list := mp.cache[sz]
	if len(list) == 0 {
		return nil
	}
	bs := list[len(list)-1]
	mp.cache[sz] = list[:len(list)-1]
	return bs
}

func (mp *MPool) Report() string {
	return fmt.Sprintf("mpool %s: cap %d, curr %d, high water %d, alloc %d, free %d",
		mp.tag, mp.cap, mp.CurrNB(), mp.stats.HighWaterMark.Load(),
		mp.stats.NumAlloc.Load(), mp.stats.NumFree.Load())
}
