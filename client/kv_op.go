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
	"fmt"

	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/rpcpb"
)

type baseKVOp struct {
	table      *Table
	key        []byte
	payload    []byte
	hashCode   uint32
	boundShard *meta.Shard
}

func (o *baseKVOp) Table() *Table                 { return o.table }
func (o *baseKVOp) PartitionKey() ([]byte, error) { return o.key, nil }
func (o *baseKVOp) Payload() []byte               { return o.payload }
func (o *baseKVOp) SetHashCode(v uint32)          { o.hashCode = v }

// HashCode returns the decoded hash value of the partition key, only set
// for hash-partitioned tables.
func (o *baseKVOp) HashCode() uint32 { return o.hashCode }

// BindShard attach an already resolved shard, the batcher skips the lookup
// step for a bound op.
func (o *baseKVOp) BindShard(shard *meta.Shard) { o.boundShard = shard }

func (o *baseKVOp) BoundShard() *meta.Shard { return o.boundShard }

// KVWriteOp a single-row write operation.
type KVWriteOp struct {
	baseKVOp
}

// NewKVWrite creates a single-row write op on the table.
func NewKVWrite(table *Table, key, payload []byte) *KVWriteOp {
	return &KVWriteOp{baseKVOp{table: table, key: key, payload: payload}}
}

func (o *KVWriteOp) ReadOnly() bool       { return false }
func (o *KVWriteOp) ReturnsSidecar() bool { return false }

func (o *KVWriteOp) String() string {
	return fmt.Sprintf("write %s/%x", o.table.Name, o.key)
}

// KVReadOp a single-row read operation. Reads are served by the shard
// leader unless a weaker consistency is requested.
type KVReadOp struct {
	baseKVOp
	consistency   rpcpb.ConsistencyLevel
	followerRead  bool
	returnSidecar bool
}

// NewKVRead creates a single-row read op on the table.
func NewKVRead(table *Table, key, payload []byte) *KVReadOp {
	return &KVReadOp{
		baseKVOp:      baseKVOp{table: table, key: key, payload: payload},
		returnSidecar: true,
	}
}

func (o *KVReadOp) ReadOnly() bool       { return true }
func (o *KVReadOp) ReturnsSidecar() bool { return o.returnSidecar }

// SetConsistency request an explicit consistency level for the read.
func (o *KVReadOp) SetConsistency(level rpcpb.ConsistencyLevel) {
	o.consistency = level
}

// Consistency implements ConsistencyAwareOp
func (o *KVReadOp) Consistency() rpcpb.ConsistencyLevel { return o.consistency }

// SetAllowFollowerRead mark the read as safe to serve from a follower
// replica when the client enables follower reads.
func (o *KVReadOp) SetAllowFollowerRead(value bool) { o.followerRead = value }

// AllowFollowerRead implements FollowerReadOp
func (o *KVReadOp) AllowFollowerRead() bool { return o.followerRead }

func (o *KVReadOp) String() string {
	return fmt.Sprintf("read %s/%x", o.table.Name, o.key)
}
