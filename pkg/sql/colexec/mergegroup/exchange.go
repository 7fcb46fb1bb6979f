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
	"encoding/binary"
	"sync"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/util"
)

// exchangeKey orders partial states by stage, then worker.
func exchangeKey(stage, worker uint32) []byte {
	var k [8]byte
	binary.BigEndian.PutUint32(k[:4], stage)
	binary.BigEndian.PutUint32(k[4:], worker)
	return k[:]
}

func partialNotFound(ctx context.Context, stage, worker uint32) error {
	return moerr.NewInvalidState(ctx, "partial state of stage %d worker %d not found", stage, worker)
}

type memExchange struct {
	sync.Mutex
	closed bool
	states map[string][]byte
}

// NewMemExchange keeps partial states in memory.
func NewMemExchange() Exchange {
	return &memExchange{states: make(map[string][]byte)}
}

func (m *memExchange) Put(ctx context.Context, stage, worker uint32, data []byte) error {
	m.Lock()
	defer m.Unlock()
	if m.closed {
		return moerr.NewInvalidState(ctx, "exchange closed")
	}
	m.states[util.UnsafeBytesToString(exchangeKey(stage, worker))] = util.CloneBytes(data)
	return nil
}

func (m *memExchange) Get(ctx context.Context, stage, worker uint32) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	key := string(exchangeKey(stage, worker))
	data, ok := m.states[key]
	if !ok {
		return nil, partialNotFound(ctx, stage, worker)
	}
	delete(m.states, key)
	return data, nil
}

func (m *memExchange) Close() error {
	m.Lock()
	defer m.Unlock()
	m.closed = true
	m.states = nil
	return nil
}
