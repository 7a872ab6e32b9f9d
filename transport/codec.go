// Copyright 2022 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/fagongzi/goetty/buf"
	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/rpcpb"
)

const (
	msgWriteRequest  = byte(0)
	msgReadRequest   = byte(1)
	msgWriteResponse = byte(2)
	msgReadResponse  = byte(3)
)

var (
	errUnknownMessage = errors.New("unknown message")
	errCorruptedData  = errors.New("corrupted message data")
)

// rpcCodec encodes the command structs into length-field framed messages.
// The same codec serves both sides, the client encodes requests and decodes
// responses.
type rpcCodec struct {
}

func (c *rpcCodec) Encode(data interface{}, out *buf.ByteBuf) error {
	v, err := marshal(data)
	if err != nil {
		return err
	}

	idx := out.GetWriteIndex()
	out.Expansion(len(v))
	copy(out.RawBuf()[idx:idx+len(v)], v)
	out.SetWriterIndex(idx + len(v))
	return nil
}

func (c *rpcCodec) Decode(in *buf.ByteBuf) (bool, interface{}, error) {
	data := in.GetMarkedRemindData()
	msg, err := unmarshal(data)
	in.MarkedBytesReaded()
	if err != nil {
		return true, nil, err
	}
	return true, msg, nil
}

func marshal(msg interface{}) ([]byte, error) {
	switch m := msg.(type) {
	case *rpcpb.WriteRequest:
		v := []byte{msgWriteRequest}
		v = appendBytes(v, m.ID)
		v = appendUint64(v, m.ShardID)
		v = appendUint64(v, m.Epoch)
		v = appendBool(v, m.NeedConsistentRead)
		v = appendBytes(v, m.TxnMetadata)
		v = appendByteSlices(v, m.Rows)
		return v, nil
	case *rpcpb.ReadRequest:
		v := []byte{msgReadRequest}
		v = appendBytes(v, m.ID)
		v = appendUint64(v, m.ShardID)
		v = appendUint64(v, m.Epoch)
		v = appendUint64(v, uint64(m.Consistency))
		v = appendBool(v, m.NeedConsistentRead)
		v = appendBytes(v, m.TxnMetadata)
		v = appendByteSlices(v, m.Rows)
		return v, nil
	case *rpcpb.WriteResponse:
		v := []byte{msgWriteResponse}
		v = appendBytes(v, m.ID)
		v = appendUint64(v, m.ShardID)
		v = appendUint64(v, uint64(m.PropagatedHybridTime))
		v = appendBytes(v, []byte(m.Error))
		v = appendUint64(v, uint64(len(m.PerRowErrors)))
		for _, rowErr := range m.PerRowErrors {
			v = appendUint64(v, uint64(rowErr.RowIndex))
			v = appendBytes(v, []byte(rowErr.Message))
		}
		return v, nil
	case *rpcpb.ReadResponse:
		v := []byte{msgReadResponse}
		v = appendBytes(v, m.ID)
		v = appendUint64(v, m.ShardID)
		v = appendUint64(v, uint64(m.PropagatedHybridTime))
		v = appendUint64(v, uint64(m.UsedReadTime))
		v = appendBytes(v, []byte(m.Error))
		v = appendByteSlices(v, m.Sidecars)
		return v, nil
	}
	return nil, errors.Wrapf(errUnknownMessage, "%T", msg)
}

func unmarshal(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, errCorruptedData
	}

	r := &reader{data: data[1:]}
	switch data[0] {
	case msgWriteRequest:
		m := &rpcpb.WriteRequest{}
		m.ID = r.readBytes()
		m.ShardID = r.readUint64()
		m.Epoch = r.readUint64()
		m.NeedConsistentRead = r.readBool()
		m.TxnMetadata = r.readBytes()
		m.Rows = r.readByteSlices()
		return m, r.err()
	case msgReadRequest:
		m := &rpcpb.ReadRequest{}
		m.ID = r.readBytes()
		m.ShardID = r.readUint64()
		m.Epoch = r.readUint64()
		m.Consistency = rpcpb.ConsistencyLevel(r.readUint64())
		m.NeedConsistentRead = r.readBool()
		m.TxnMetadata = r.readBytes()
		m.Rows = r.readByteSlices()
		return m, r.err()
	case msgWriteResponse:
		m := &rpcpb.WriteResponse{}
		m.ID = r.readBytes()
		m.ShardID = r.readUint64()
		m.PropagatedHybridTime = hlc.HybridTime(r.readUint64())
		m.Error = string(r.readBytes())
		n := r.readUint64()
		for i := uint64(0); i < n && r.failure == nil; i++ {
			m.PerRowErrors = append(m.PerRowErrors, rpcpb.PerRowError{
				RowIndex: uint32(r.readUint64()),
				Message:  string(r.readBytes()),
			})
		}
		return m, r.err()
	case msgReadResponse:
		m := &rpcpb.ReadResponse{}
		m.ID = r.readBytes()
		m.ShardID = r.readUint64()
		m.PropagatedHybridTime = hlc.HybridTime(r.readUint64())
		m.UsedReadTime = hlc.HybridTime(r.readUint64())
		m.Error = string(r.readBytes())
		m.Sidecars = r.readByteSlices()
		return m, r.err()
	}
	return nil, errors.Wrapf(errUnknownMessage, "tag %d", data[0])
}

func appendUint64(v []byte, value uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], value)
	return append(v, b[:]...)
}

func appendBool(v []byte, value bool) []byte {
	if value {
		return append(v, 1)
	}
	return append(v, 0)
}

func appendBytes(v, data []byte) []byte {
	v = appendUint64(v, uint64(len(data)))
	return append(v, data...)
}

func appendByteSlices(v []byte, values [][]byte) []byte {
	v = appendUint64(v, uint64(len(values)))
	for _, value := range values {
		v = appendBytes(v, value)
	}
	return v
}

type reader struct {
	data    []byte
	failure error
}

func (r *reader) err() error { return r.failure }

func (r *reader) readUint64() uint64 {
	if r.failure != nil {
		return 0
	}
	if len(r.data) < 8 {
		r.failure = errCorruptedData
		return 0
	}
	v := binary.BigEndian.Uint64(r.data)
	r.data = r.data[8:]
	return v
}

func (r *reader) readBool() bool {
	if r.failure != nil {
		return false
	}
	if len(r.data) < 1 {
		r.failure = errCorruptedData
		return false
	}
	v := r.data[0] == 1
	r.data = r.data[1:]
	return v
}

func (r *reader) readBytes() []byte {
	n := r.readUint64()
	if r.failure != nil {
		return nil
	}
	if uint64(len(r.data)) < n {
		r.failure = errCorruptedData
		return nil
	}
	if n == 0 {
		return nil
	}
	v := r.data[:n:n]
	r.data = r.data[n:]
	return v
}

func (r *reader) readByteSlices() [][]byte {
	n := r.readUint64()
	if r.failure != nil {
		return nil
	}
	var values [][]byte
	for i := uint64(0); i < n && r.failure == nil; i++ {
		values = append(values, r.readBytes())
	}
	return values
}
