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
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/metric"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"go.uber.org/zap"
)

// ProcessWriteResponse the completion path of a write rpc, invoked by the
// transport with the rpc and its result. Maps per-row errors back onto the
// ops the rpc carried, then settles the rpc.
func (b *Batcher) ProcessWriteResponse(rpc AsyncRpc, resp rpcpb.WriteResponse, err error) {
	if err == nil && resp.HasError() {
		err = errors.Wrapf(ErrRpcFailed, "%s", resp.Error)
	}
	b.processRpcStatus(rpc, err)

	if err == nil {
		ops := rpc.Ops()
		for _, rowErr := range resp.PerRowErrors {
			if int(rowErr.RowIndex) >= len(ops) {
				b.logger.Error("per-row error with out-of-bound row index",
					log.RowIndexField(rowErr.RowIndex),
					log.OpCountField(len(ops)),
					log.ShardIDField(resp.ShardID))
				continue
			}

			op := ops[rowErr.RowIndex]
			if ce := b.logger.Check(zap.DebugLevel, "row operation failed"); ce != nil {
				ce.Write(zap.String("op", op.String()),
					zap.String("cause", rowErr.Message))
			}
			b.mu.Lock()
			op.setStateLocked(OpFailed)
			b.combineErrorLocked(op, errors.Wrapf(ErrRowFailure, "%s", rowErr.Message))
			b.mu.Unlock()
			metric.IncOpsFailed("row")
		}
	}

	b.finishRpc(rpc, 0, resp.PropagatedHybridTime, err)
}

// ProcessReadResponse the completion path of a read rpc. Reads carry no
// row-level errors to map back at this layer.
func (b *Batcher) ProcessReadResponse(rpc AsyncRpc, resp rpcpb.ReadResponse, err error) {
	if err == nil && resp.HasError() {
		err = errors.Wrapf(ErrRpcFailed, "%s", resp.Error)
	}
	b.processRpcStatus(rpc, err)
	b.finishRpc(rpc, resp.UsedReadTime, resp.PropagatedHybridTime, err)
}

// processRpcStatus records an rpc-level failure against every op the rpc
// carried.
func (b *Batcher) processRpcStatus(rpc AsyncRpc, err error) {
	if err == nil {
		return
	}

	b.mu.Lock()
	for _, op := range rpc.Ops() {
		op.setStateLocked(OpFailed)
		b.combineErrorLocked(op, err)
	}
	b.mu.Unlock()
}

// finishRpc the common tail of every rpc completion: hand the ops back,
// notify the transaction, advance the read point and check whether the
// flush has drained.
func (b *Batcher) finishRpc(rpc AsyncRpc, usedReadTime, propagated hlc.HybridTime, err error) {
	ops := rpc.Ops()

	b.mu.Lock()
	for _, op := range ops {
		if _, ok := b.mu.ops[op]; !ok {
			b.logger.Fatal("fail to remove op from in-flight set",
				zap.String("op", op.String()))
		}
		delete(b.mu.ops, op)

		op.mu.Lock()
		if op.state != OpFailed {
			op.state = OpCompleted
		}
		op.mu.Unlock()
	}
	b.mu.Unlock()
	metric.AddInflightOps(-int64(len(ops)))

	// the transaction and the read point are notified outside the lock,
	// they may chain back into user code
	if b.opts.txn != nil {
		b.opts.txn.Flushed(ops, usedReadTime, err)
	}
	if err == nil && b.opts.readPoint != nil {
		b.opts.readPoint.Update(propagated)
	}

	atomic.AddInt32(&b.pendingRpcs, -1)
	metric.AddPendingRpcs(-1)

	b.checkForFinishedFlush()
}
