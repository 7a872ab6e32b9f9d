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
	"testing"

	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWriteRequest(t *testing.T) {
	msg := &rpcpb.WriteRequest{
		ID:                 []byte("req-1"),
		ShardID:            7,
		Epoch:              3,
		Rows:               [][]byte{[]byte("r1"), []byte("r2")},
		NeedConsistentRead: true,
		TxnMetadata:        []byte("txn"),
	}

	data, err := marshal(msg)
	require.NoError(t, err)
	decoded, err := unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestMarshalReadRequest(t *testing.T) {
	msg := &rpcpb.ReadRequest{
		ID:          []byte("req-2"),
		ShardID:     7,
		Consistency: rpcpb.ConsistentPrefix,
		Rows:        [][]byte{[]byte("r1")},
	}

	data, err := marshal(msg)
	require.NoError(t, err)
	decoded, err := unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestMarshalWriteResponse(t *testing.T) {
	msg := &rpcpb.WriteResponse{
		ID:                   []byte("req-1"),
		ShardID:              7,
		PropagatedHybridTime: hlc.HybridTime(4096),
		PerRowErrors: []rpcpb.PerRowError{
			{RowIndex: 1, Message: "duplicate key"},
			{RowIndex: 3, Message: "bad row"},
		},
		Error: "partial failure",
	}

	data, err := marshal(msg)
	require.NoError(t, err)
	decoded, err := unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestMarshalReadResponse(t *testing.T) {
	msg := &rpcpb.ReadResponse{
		ID:                   []byte("req-2"),
		ShardID:              7,
		PropagatedHybridTime: hlc.HybridTime(4096),
		UsedReadTime:         hlc.HybridTime(2048),
		Sidecars:             [][]byte{[]byte("row1"), nil, []byte("row3")},
	}

	data, err := marshal(msg)
	require.NoError(t, err)
	decoded, err := unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestUnmarshalCorrupted(t *testing.T) {
	_, err := unmarshal(nil)
	assert.Error(t, err)

	_, err = unmarshal([]byte{42})
	assert.Error(t, err)

	// truncated write request
	_, err = unmarshal([]byte{msgWriteRequest, 0, 0, 0})
	assert.Error(t, err)
}

func TestMarshalUnknownMessage(t *testing.T) {
	_, err := marshal("not a message")
	assert.Error(t, err)
}
