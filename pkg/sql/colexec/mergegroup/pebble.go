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

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type pebbleExchange struct {
	db *pebble.DB
}

// NewPebbleExchange keeps partial states in a pebble store under dir, or
// in an in-memory filesystem when dir is empty.
func NewPebbleExchange(dir string) (Exchange, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &pebbleExchange{db: db}, nil
}

func (p *pebbleExchange) Put(_ context.Context, stage, worker uint32, data []byte) error {
	return p.db.Set(exchangeKey(stage, worker), data, pebble.NoSync)
}

func (p *pebbleExchange) Get(ctx context.Context, stage, worker uint32) ([]byte, error) {
	key := exchangeKey(stage, worker)
	v, c, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, partialNotFound(ctx, stage, worker)
	}
	if err != nil {
		return nil, err
	}
	r := make([]byte, len(v))
	copy(r, v)
	if err = c.Close(); err != nil {
		return nil, err
	}
	if err = p.db.Delete(key, pebble.NoSync); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *pebbleExchange) Close() error {
	return p.db.Close()
}
