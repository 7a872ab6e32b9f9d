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
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubeclient/client"
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"github.com/matrixorigin/cubeclient/util/uuid"
)

var (
	followerSeq uint64
)

// writeRpc a consolidated write command sent to the shard leader.
type writeRpc struct {
	transport *Transport
	data      *client.AsyncRpcData
	req       *rpcpb.WriteRequest
}

func newWriteRpc(t *Transport, data *client.AsyncRpcData) *writeRpc {
	metadata, _ := data.Batcher.TransactionMetadata()
	return &writeRpc{
		transport: t,
		data:      data,
		req: &rpcpb.WriteRequest{
			ID:                 uuid.NewV4().Bytes(),
			ShardID:            data.Shard.ID,
			Epoch:              data.Shard.Epoch.Version,
			Rows:               opRows(data.Ops),
			NeedConsistentRead: data.NeedConsistentRead,
			TxnMetadata:        metadata.Marshal(),
		},
	}
}

func (r *writeRpc) SendRpc() {
	r.transport.dispatch(r.req.ID,
		r.data.Shard.Leader.ClientAddress,
		r.req,
		r.data.AllowLocal,
		r.finish)
}

func (r *writeRpc) Ops() []*client.InFlightOp { return r.data.Ops }
func (r *writeRpc) Shard() *meta.Shard        { return r.data.Shard }

func (r *writeRpc) finish(msg interface{}, err error) {
	var resp rpcpb.WriteResponse
	if err == nil {
		v, ok := msg.(*rpcpb.WriteResponse)
		if !ok {
			err = errors.Newf("unexpected response %T", msg)
		} else {
			resp = *v
		}
	}
	r.data.Batcher.ProcessWriteResponse(r, resp, err)
}

// readRpc a consolidated read command. Strong reads target the shard
// leader, consistent-prefix reads may target any replica.
type readRpc struct {
	transport   *Transport
	data        *client.AsyncRpcData
	consistency rpcpb.ConsistencyLevel
	req         *rpcpb.ReadRequest
}

func newReadRpc(t *Transport, data *client.AsyncRpcData, consistency rpcpb.ConsistencyLevel) *readRpc {
	metadata, _ := data.Batcher.TransactionMetadata()
	return &readRpc{
		transport:   t,
		data:        data,
		consistency: consistency,
		req: &rpcpb.ReadRequest{
			ID:                 uuid.NewV4().Bytes(),
			ShardID:            data.Shard.ID,
			Epoch:              data.Shard.Epoch.Version,
			Consistency:        consistency,
			NeedConsistentRead: data.NeedConsistentRead,
			TxnMetadata:        metadata.Marshal(),
			Rows:               opRows(data.Ops),
		},
	}
}

func (r *readRpc) SendRpc() {
	r.transport.dispatch(r.req.ID,
		selectStore(r.data.Shard, r.consistency),
		r.req,
		r.data.AllowLocal,
		r.finish)
}

func (r *readRpc) Ops() []*client.InFlightOp { return r.data.Ops }
func (r *readRpc) Shard() *meta.Shard        { return r.data.Shard }

func (r *readRpc) finish(msg interface{}, err error) {
	var resp rpcpb.ReadResponse
	if err == nil {
		v, ok := msg.(*rpcpb.ReadResponse)
		if !ok {
			err = errors.Newf("unexpected response %T", msg)
		} else {
			resp = *v
		}
	}
	r.data.Batcher.ProcessReadResponse(r, resp, err)
}

func opRows(ops []*client.InFlightOp) [][]byte {
	rows := make([][]byte, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, op.Op().Payload())
	}
	return rows
}

// selectStore returns the client address serving the command.
// Consistent-prefix reads rotate over the follower replicas.
func selectStore(shard *meta.Shard, consistency rpcpb.ConsistencyLevel) string {
	if consistency == rpcpb.ConsistentPrefix && len(shard.Followers) > 0 {
		n := atomic.AddUint64(&followerSeq, 1)
		return shard.Followers[n%uint64(len(shard.Followers))].ClientAddress
	}
	return shard.Leader.ClientAddress
}
