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

package main

import (
	"context"
	"io"

	"github.com/google/btree"
	"github.com/matrixorigin/simdcsv"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/decsum/pkg/sql/colexec/mergegroup"
)

// batchRows is both the csv read size and the rows of one batch.
const batchRows = aggexec.AggBatchSize

type groupKey struct {
	key string
	idx int
}

func (g groupKey) Less(than btree.Item) bool {
	return g.key < than.(groupKey).key
}

// groupDict numbers group keys in the order they first appear and walks
// them in key order.
type groupDict struct {
	tree *btree.BTree
}

func newGroupDict() *groupDict {
	return &groupDict{tree: btree.New(32)}
}

func (d *groupDict) index(key string) int {
	if it := d.tree.Get(groupKey{key: key}); it != nil {
		return it.(groupKey).idx
	}
	idx := d.tree.Len()
	d.tree.ReplaceOrInsert(groupKey{key: key, idx: idx})
	return idx
}

func (d *groupDict) Len() int {
	return d.tree.Len()
}

func (d *groupDict) ascend(fn func(key string, idx int) bool) {
	d.tree.Ascend(func(it btree.Item) bool {
		g := it.(groupKey)
		return fn(g.key, g.idx)
	})
}

type input struct {
	groups  *groupDict
	batches []mergegroup.Batch
	rows    int
}

// readInput parses group,value records. Lines starting with # are skipped.
func readInput(ctx context.Context, r io.Reader, argType types.Type) (*input, error) {
	reader := simdcsv.NewReaderWithOptions(r, ',', '#', false, true)
	records := make([][]string, batchRows)
	in := &input{groups: newGroupDict()}
	for {
		var cnt int
		var err error
		records, cnt, err = reader.Read(batchRows, ctx, records)
		if err != nil && err != io.EOF {
			return nil, moerr.NewInvalidInput(ctx, "read csv: %v", err)
		}
		if cnt > 0 {
			if err := in.appendBatch(ctx, records[:cnt], argType); err != nil {
				return nil, err
			}
		}
		if cnt < batchRows || err == io.EOF {
			return in, nil
		}
	}
}

func (in *input) appendBatch(ctx context.Context, records [][]string, argType types.Type) error {
	bat := mergegroup.Batch{Groups: make([]uint64, len(records))}
	compact := argType.Oid == types.T_decimal64
	if compact {
		bat.Compact = make([]types.Decimal64, len(records))
	} else {
		bat.Wide = make([]types.Decimal128, len(records))
	}
	for i, rec := range records {
		line := in.rows + i + 1
		if len(rec) != 2 {
			return moerr.NewInvalidInput(ctx, "record %d: want group,value but got %d fields", line, len(rec))
		}
		var err error
		if compact {
			bat.Compact[i], err = types.ParseDecimal64(rec[1], argType.Width, argType.Scale)
		} else {
			bat.Wide[i], err = types.ParseDecimal128(rec[1], argType.Width, argType.Scale)
		}
		if err != nil {
			return moerr.NewInvalidInput(ctx, "record %d: %v", line, err)
		}
		bat.Groups[i] = uint64(in.groups.index(rec[0])) + 1
	}
	in.rows += len(records)
	in.batches = append(in.batches, bat)
	return nil
}
