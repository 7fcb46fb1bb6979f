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
	"bytes"
	"io"

	"github.com/RoaringBitmap/roaring"
	"github.com/gogo/protobuf/proto"
	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/common/mpool"
	"github.com/matrixorigin/decsum/pkg/container/types"
	"github.com/matrixorigin/decsum/pkg/vectorize/sum"
	"github.com/pierrec/lz4/v4"
)

const (
	decimalSumVersion = 1

	flagPlain byte = 0
	flagLZ4   byte = 1

	// maxWireChunks bounds the chunks a decoded group count may span.
	maxWireChunks = 1 << 20
	// minSlotWireSize is two fixed64 words and a one byte zigzag.
	minSlotWireSize = 17
)

// MarshalDecimalSumExec encodes the partial state of exec so that another
// exec can CombineStates it. Only non-empty groups are written.
//
//	flag | version | scale | chunk size | group count | present bitmap |
//	(lo fixed64, hi fixed64, overflow zigzag) for every present group
func MarshalDecimalSumExec(exec *DecimalSumExec, compress bool) ([]byte, error) {
	st := &exec.state
	bitmap, err := st.present.ToBytes()
	if err != nil {
		return nil, err
	}

	buf := proto.NewBuffer(make([]byte, 0, len(bitmap)+int(st.present.GetCardinality())*26+32))
	if err = buf.EncodeVarint(decimalSumVersion); err != nil {
		return nil, err
	}
	if err = buf.EncodeVarint(uint64(exec.argType.Oid)); err != nil {
		return nil, err
	}
	if err = buf.EncodeZigzag64(uint64(exec.Scale())); err != nil {
		return nil, err
	}
	if err = buf.EncodeVarint(uint64(st.chunkSize)); err != nil {
		return nil, err
	}
	if err = buf.EncodeVarint(uint64(st.length)); err != nil {
		return nil, err
	}
	if err = buf.EncodeRawBytes(bitmap); err != nil {
		return nil, err
	}
	it := st.present.Iterator()
	for it.HasNext() {
		x, k := st.slotFor(int(it.Next()))
		if err = buf.EncodeFixed64(x.B0_63); err != nil {
			return nil, err
		}
		if err = buf.EncodeFixed64(x.B64_127); err != nil {
			return nil, err
		}
		if err = buf.EncodeZigzag64(uint64(k)); err != nil {
			return nil, err
		}
	}

	if !compress {
		return append([]byte{flagPlain}, buf.Bytes()...), nil
	}
	var out bytes.Buffer
	out.WriteByte(flagLZ4)
	zw := lz4.NewWriter(&out)
	if _, err = zw.Write(buf.Bytes()); err != nil {
		return nil, err
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// UnmarshalDecimalSumExec decodes a partial state into a new exec allocated
// from mp. Slots are normalized again on the way in. Only the chunks that
// hold a present group are allocated.
func UnmarshalDecimalSumExec(mp *mpool.MPool, data []byte) (*DecimalSumExec, error) {
	if len(data) == 0 {
		return nil, moerr.NewUnexpectedEOFNoCtx("decimal sum state")
	}
	payload := data[1:]
	switch data[0] {
	case flagPlain:
	case flagLZ4:
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, moerr.NewInvalidInputNoCtx("decimal sum state: %v", err)
		}
		payload = raw
	default:
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state flag %d", data[0])
	}

	buf := proto.NewBuffer(payload)
	version, err := buf.DecodeVarint()
	if err != nil {
		return nil, truncated(err)
	}
	if version != decimalSumVersion {
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state version %d", version)
	}
	oid, err := buf.DecodeVarint()
	if err != nil {
		return nil, truncated(err)
	}
	scale, err := buf.DecodeZigzag64()
	if err != nil {
		return nil, truncated(err)
	}
	if s := int64(scale); s < 0 || s > int64(types.MaxDecimal128Precision) {
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state scale %d", s)
	}
	chunkSize, err := buf.DecodeVarint()
	if err != nil {
		return nil, truncated(err)
	}
	if chunkSize == 0 || chunkSize > MaxChunkSize {
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state chunk size %d", chunkSize)
	}
	length, err := buf.DecodeVarint()
	if err != nil {
		return nil, truncated(err)
	}
	if length > maxGroupIdx+1 || (length+chunkSize-1)/chunkSize > maxWireChunks {
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state of %d groups in chunks of %d", length, chunkSize)
	}
	bitmap, err := buf.DecodeRawBytes(false)
	if err != nil {
		return nil, truncated(err)
	}
	present := roaring.New()
	if err = present.UnmarshalBinary(bitmap); err != nil {
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state bitmap: %v", err)
	}
	if !present.IsEmpty() && uint64(present.Maximum()) >= length {
		return nil, moerr.NewInvalidInputNoCtx("decimal sum state group %d beyond %d groups", present.Maximum(), length)
	}
	if present.GetCardinality() > uint64(len(payload))/minSlotWireSize {
		return nil, moerr.NewUnexpectedEOFNoCtx("decimal sum state")
	}

	exec, err := NewDecimalSumExec(mp, types.T(oid), int32(int64(scale)), int(chunkSize))
	if err != nil {
		return nil, err
	}
	if err = exec.state.reserve(int(length)); err != nil {
		exec.Free()
		return nil, err
	}
	it := present.Iterator()
	for it.HasNext() {
		g := int(it.Next())
		if err = exec.state.ensureCapacity(mp, g); err != nil {
			exec.Free()
			return nil, err
		}
		var x types.Decimal128
		var k uint64
		if x.B0_63, err = buf.DecodeFixed64(); err == nil {
			if x.B64_127, err = buf.DecodeFixed64(); err == nil {
				k, err = buf.DecodeZigzag64()
			}
		}
		if err != nil {
			exec.Free()
			return nil, truncated(err)
		}
		nx, nk := sum.Decimal128AddWithOverflow(types.Decimal128{}, int64(k), x)
		exec.state.setSlot(g, nx, nk)
	}
	return exec, nil
}

func truncated(err error) error {
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return moerr.NewUnexpectedEOFNoCtx("decimal sum state")
	}
	return moerr.NewInvalidInputNoCtx("decimal sum state: %v", err)
}
