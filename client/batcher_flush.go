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
	"sort"
	"sync/atomic"

	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/metric"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"go.uber.org/zap"
)

// flushBuffersIfReady dispatches the gathered ops. The batch is only ready
// once FlushAsync was called and every outstanding lookup settled; flushing
// earlier would dispatch ops one by one as their lookups finish.
func (b *Batcher) flushBuffersIfReady() {
	var ops []*InFlightOp

	b.mu.Lock()
	forceConsistentRead := b.opts.forceConsistentRead
	if b.mu.state != Flushing {
		if ce := b.logger.Check(zap.DebugLevel, "batcher not yet in flushing state"); ce != nil {
			ce.Write(zap.String("state", b.mu.state.String()))
		}
		b.mu.Unlock()
		return
	}
	if b.mu.outstandingLookups != 0 {
		if ce := b.logger.Check(zap.DebugLevel, "ops still in lookup"); ce != nil {
			ce.Write(zap.Int("outstanding-lookups", b.mu.outstandingLookups))
		}
		b.mu.Unlock()
		return
	}

	if b.opts.txn != nil {
		// a batch executed in the context of a transaction must read at a
		// consistent point, and the transaction initializes the metadata
		// carried by the rpcs. When the transaction is not ready yet it
		// reenters the flush through transactionReady.
		forceConsistentRead = true
		if !b.prepareTransactionLocked() {
			b.mu.Unlock()
			return
		}
	}

	ops = b.mu.readyOps
	b.mu.readyOps = nil
	b.mu.Unlock()

	if len(ops) == 0 {
		return
	}

	sort.Slice(ops, func(i, j int) bool {
		lhs, rhs := ops[i], ops[j]
		if lhs.shard.ID == rhs.shard.ID {
			lgroup := GetOpGroup(lhs.op, b.opts.allowFollowerReads)
			rgroup := GetOpGroup(rhs.op, b.opts.allowFollowerReads)
			if lgroup != rgroup {
				return lgroup < rgroup
			}
			return lhs.sequence < rhs.sequence
		}
		return lhs.shard.ID < rhs.shard.ID
	})

	metric.ObserveBatchSize(len(ops))

	// flush the ops as adjacent runs, a run ends at the next shard or
	// group, or when it already holds as many sidecar-returning ops as
	// one rpc can carry
	maxSidecars := b.transport.MaxSidecarSlices()
	start := 0
	startGroup := GetOpGroup(ops[0].op, b.opts.allowFollowerReads)
	numSidecars := 0
	for i := 0; i < len(ops); i++ {
		group := GetOpGroup(ops[i].op, b.opts.allowFollowerReads)
		if ops[i].shard.ID != ops[start].shard.ID ||
			group != startGroup ||
			numSidecars >= maxSidecars {
			// the batch spans multiple commands, every run before the last
			// one reads at a consistent point
			b.flushBuffer(ops[start:i], startGroup, false, true)
			start = i
			startGroup = group
			numSidecars = 0
		}
		if ops[i].op.ReturnsSidecar() {
			numSidecars++
		}
	}

	// consistent read is not required when the whole batch fits into one
	// command
	needConsistentRead := forceConsistentRead || start != 0
	b.flushBuffer(ops[start:], startGroup, b.opts.allowLocalCalls, needConsistentRead)
}

// prepareTransactionLocked asks the attached transaction to prepare the
// batch. Returns false when the transaction deferred; it reenters the
// dispatch through transactionReady once ready.
func (b *Batcher) prepareTransactionLocked() bool {
	ops := make([]*InFlightOp, 0, len(b.mu.ops))
	for op := range b.mu.ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].sequence < ops[j].sequence
	})

	metadata, mayHaveMetadata, ready := b.opts.txn.Prepare(ops,
		b.opts.forceConsistentRead,
		b.transactionReady)
	if !ready {
		return false
	}
	b.mu.txnMetadata = metadata
	b.mu.mayHaveTxnMetadata = mayHaveMetadata
	return true
}

// transactionReady the readiness callback handed to the transaction at
// prepare.
func (b *Batcher) transactionReady(err error) {
	if err == nil {
		b.flushBuffersIfReady()
		return
	}
	b.Abort(err)
}

// flushBuffer turns one run into an rpc and sends it. The rpc takes
// custody of the ops for the duration of the call.
func (b *Batcher) flushBuffer(run []*InFlightOp, group OpGroup, allowLocal bool, needConsistentRead bool) {
	if len(run) == 0 {
		b.logger.Fatal("BUG: empty run")
	}

	b.mu.Lock()
	for _, op := range run {
		op.setStateLocked(OpDispatched)
	}
	b.mu.Unlock()

	data := &AsyncRpcData{
		Batcher:            b,
		Shard:              run[0].shard,
		AllowLocal:         allowLocal,
		NeedConsistentRead: needConsistentRead,
		Ops:                run,
	}

	var rpc AsyncRpc
	switch group {
	case OpWrite:
		rpc = b.transport.WriteRpc(data)
		metric.IncRpcSent("write")
	case OpLeaderRead:
		rpc = b.transport.ReadRpc(data, rpcpb.Strong)
		metric.IncRpcSent("read")
	case OpConsistentPrefixRead:
		rpc = b.transport.ReadRpc(data, rpcpb.ConsistentPrefix)
		metric.IncRpcSent("read-consistent-prefix")
	default:
		b.logger.Fatal("BUG: unknown op group",
			zap.String("group", group.String()))
	}

	atomic.AddInt32(&b.pendingRpcs, 1)
	metric.AddPendingRpcs(1)

	if ce := b.logger.Check(zap.DebugLevel, "flushing run"); ce != nil {
		ce.Write(log.ShardField("shard", data.Shard),
			zap.String("group", group.String()),
			log.OpCountField(len(run)),
			zap.Bool("allow-local", allowLocal),
			zap.Bool("need-consistent-read", needConsistentRead))
	}

	rpc.SendRpc()
}
