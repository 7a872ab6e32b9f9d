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
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/rpcpb"
)

// AsyncRpcData everything needed to build one consolidated rpc covering a
// run of ops on a single shard. The rpc keeps a reference to the batcher so
// a batch cannot be released while rpcs are outstanding.
type AsyncRpcData struct {
	Batcher *Batcher
	Shard   *meta.Shard
	// AllowLocal the ops may be executed synchronously on the calling
	// thread, only set for the final run of a flush
	AllowLocal bool
	// NeedConsistentRead the run must be executed at a consistent read
	// point, set when the batch spans multiple commands or a transaction
	// forced it
	NeedConsistentRead bool
	Ops                []*InFlightOp
}

// AsyncRpc a consolidated rpc. The rpc owns its ops from SendRpc until the
// completion path hands them back through the batcher's response
// processing.
type AsyncRpc interface {
	// SendRpc submits the rpc. Failures before the send are reported
	// through the same completion path as rpc-level failures.
	SendRpc()
	// Ops returns the ops owned by the rpc.
	Ops() []*InFlightOp
	// Shard returns the destination shard.
	Shard() *meta.Shard
}

// RpcTransport builds consolidated write and read rpcs and submits them to
// shard replicas. Completed rpcs must invoke ProcessWriteResponse or
// ProcessReadResponse on the batcher carried in the rpc data.
type RpcTransport interface {
	// WriteRpc creates the rpc for a run of write ops.
	WriteRpc(data *AsyncRpcData) AsyncRpc
	// ReadRpc creates the rpc for a run of read ops with the given
	// consistency.
	ReadRpc(data *AsyncRpcData, consistency rpcpb.ConsistencyLevel) AsyncRpc
	// MaxSidecarSlices the max number of sidecar-returning ops a single
	// rpc can carry.
	MaxSidecarSlices() int
}
