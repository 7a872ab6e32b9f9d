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
	"encoding/binary"

	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/rpcpb"
)

// Table describes the logical table an operation targets.
type Table struct {
	// Name table name
	Name string
	// Group the shard group that holds the table data
	Group uint64
	// HashPartitioned true if the table uses hash partitioning. The hash
	// code of the partition key is recorded onto ops that carry one.
	HashPartitioned bool
}

// Op is a single-row operation admitted into a batch. The op value is
// opaque to the batcher except for the routing and grouping attributes
// exposed here.
type Op interface {
	// Table returns the logical table the op targets
	Table() *Table
	// PartitionKey returns the bytes used to route the op to a shard
	PartitionKey() ([]byte, error)
	// ReadOnly returns true for read operations
	ReadOnly() bool
	// ReturnsSidecar returns true if executing the op produces a row-wise
	// result carried in a response sidecar
	ReturnsSidecar() bool
	// Payload returns the serialized row operation carried inside the
	// consolidated command
	Payload() []byte
	// String used by logging
	String() string
}

// HashCodeSetter is implemented by ops of hash-partitioned tables that
// record the decoded hash value of their partition key.
type HashCodeSetter interface {
	SetHashCode(uint32)
}

// FollowerReadOp is implemented by read ops that may be served by a
// follower replica, cache-style reads typically opt in.
type FollowerReadOp interface {
	AllowFollowerRead() bool
}

// ConsistencyAwareOp is implemented by read ops that carry an explicit
// consistency level.
type ConsistencyAwareOp interface {
	Consistency() rpcpb.ConsistencyLevel
}

// ShardBound is implemented by ops that already carry a resolved shard, the
// lookup step is skipped for them.
type ShardBound interface {
	BoundShard() *meta.Shard
}

// OpGroup selects both the rpc type and the consistency of a dispatched
// run. The declaration order is the dispatch order of runs within a shard.
type OpGroup int8

const (
	// OpWrite write operations sent to the shard leader
	OpWrite = OpGroup(0)
	// OpLeaderRead reads that must be served by the shard leader
	OpLeaderRead = OpGroup(1)
	// OpConsistentPrefixRead reads that any replica with a consistent
	// prefix of the log may serve
	OpConsistentPrefixRead = OpGroup(2)
)

// String implements fmt.Stringer
func (g OpGroup) String() string {
	switch g {
	case OpWrite:
		return "write"
	case OpLeaderRead:
		return "leader-read"
	case OpConsistentPrefixRead:
		return "consistent-prefix-read"
	}
	return "unknown"
}

// GetOpGroup returns the group of an op. allowFollowerReads moves
// follower-safe reads into the consistent-prefix group.
func GetOpGroup(op Op, allowFollowerReads bool) OpGroup {
	if !op.ReadOnly() {
		return OpWrite
	}
	if allowFollowerReads {
		if v, ok := op.(FollowerReadOp); ok && v.AllowFollowerRead() {
			return OpConsistentPrefixRead
		}
	}
	if v, ok := op.(ConsistencyAwareOp); ok && v.Consistency() == rpcpb.ConsistentPrefix {
		return OpConsistentPrefixRead
	}
	return OpLeaderRead
}

// DecodeHashValue decodes the multi-column hash value stored in the first
// two bytes of a partition key.
func DecodeHashValue(partitionKey []byte) uint32 {
	if len(partitionKey) < 2 {
		return 0
	}
	return uint32(binary.BigEndian.Uint16(partitionKey))
}

func maybeSetHashCode(op Op, partitionKey []byte) {
	if !op.Table().HashPartitioned {
		return
	}
	setter, ok := op.(HashCodeSetter)
	if !ok {
		return
	}
	// reads of hash-partitioned tables may target the whole table with an
	// empty partition key
	if op.ReadOnly() && len(partitionKey) == 0 {
		return
	}
	setter.SetHashCode(DecodeHashValue(partitionKey))
}
