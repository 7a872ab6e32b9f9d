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

package client

import (
	"testing"

	"github.com/matrixorigin/cubeclient/rpcpb"
	"github.com/stretchr/testify/assert"
)

func TestGetOpGroup(t *testing.T) {
	tests := []struct {
		readOnly           bool
		followerOK         bool
		consistency        rpcpb.ConsistencyLevel
		allowFollowerReads bool
		expect             OpGroup
	}{
		{false, false, rpcpb.Strong, false, OpWrite},
		{false, true, rpcpb.ConsistentPrefix, true, OpWrite},
		{true, false, rpcpb.Strong, false, OpLeaderRead},
		{true, true, rpcpb.Strong, false, OpLeaderRead},
		{true, true, rpcpb.Strong, true, OpConsistentPrefixRead},
		{true, false, rpcpb.ConsistentPrefix, false, OpConsistentPrefixRead},
		{true, false, rpcpb.ConsistentPrefix, true, OpConsistentPrefixRead},
	}

	for _, tt := range tests {
		op := &testOp{
			table:       &Table{Name: "test"},
			readOnly:    tt.readOnly,
			followerOK:  tt.followerOK,
			consistency: tt.consistency,
		}
		assert.Equal(t, tt.expect, GetOpGroup(op, tt.allowFollowerReads))
	}
}

func TestDecodeHashValue(t *testing.T) {
	assert.Equal(t, uint32(0x0102), DecodeHashValue([]byte{1, 2, 3}))
	assert.Equal(t, uint32(0), DecodeHashValue([]byte{1}))
	assert.Equal(t, uint32(0), DecodeHashValue(nil))
}

func TestMaybeSetHashCode(t *testing.T) {
	table := &Table{Name: "test", HashPartitioned: true}

	write := &testOp{table: table}
	maybeSetHashCode(write, []byte{1, 2})
	assert.True(t, write.hashCodeSet)
	assert.Equal(t, uint32(0x0102), write.hashCode)

	// reads with an empty partition key target the whole table
	read := &testOp{table: table, readOnly: true}
	maybeSetHashCode(read, nil)
	assert.False(t, read.hashCodeSet)

	// range partitioned tables carry no hash code
	rangeOp := &testOp{table: &Table{Name: "test"}}
	maybeSetHashCode(rangeOp, []byte{1, 2})
	assert.False(t, rangeOp.hashCodeSet)
}
