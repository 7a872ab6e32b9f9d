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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// About lock ordering in this package:
// the locks must be acquired in the following order:
//   - Batcher.mu
//   - InFlightOp.mu
// All locks must be released before running a user callback or chaining to
// another async API, since that may chain directly back into the batcher.
// The locks are non-reentrant.

var (
	defaultFlushTimeout = time.Second * 60

	// writing with no timeout set is almost always a bug at the calling
	// layer, warn about it without flooding the log
	noTimeoutWarnLimiter = rate.NewLimiter(rate.Every(time.Minute), 1)
)

// State batch lifecycle state. The state only advances forward, Flushed and
// Aborted are terminal.
type State int32

const (
	// Gathering the batch accepts ops
	Gathering = State(0)
	// Flushing FlushAsync was called, the batch waits for lookups and rpcs
	// to settle
	Flushing = State(1)
	// Flushed every op settled, the terminal callback has run
	Flushed = State(2)
	// Aborted the batch was aborted
	Aborted = State(3)
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Gathering:
		return "gathering"
	case Flushing:
		return "flushing"
	case Flushed:
		return "flushed"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Batcher accepts a stream of single-row operations, groups them by
// destination shard and op group, and dispatches them as consolidated rpcs.
// A batcher is shared across the goroutines that service shard lookups and
// rpc completions.
type Batcher struct {
	logger    *zap.Logger
	locator   ShardLocator
	transport RpcTransport
	opts      options

	pendingRpcs int32

	mu struct {
		sync.Mutex

		state              State
		ops                map[*InFlightOp]struct{}
		readyOps           []*InFlightOp
		outstandingLookups int
		nextSequence       int
		timeout            time.Duration
		deadline           time.Time
		flushCallback      func(error)
		callbackDone       bool
		combinedErr        error
		hadErrors          bool
		txnMetadata        TransactionMetadata
		mayHaveTxnMetadata bool
		bufferBytesUsed    uint64
		flushStart         time.Time
	}
}

// NewBatcher creates a batcher over the given locator and transport. The
// batcher owns exactly one batch: once flushed or aborted it cannot be
// reused.
func NewBatcher(locator ShardLocator, transport RpcTransport, opts ...Option) *Batcher {
	b := &Batcher{
		locator:   locator,
		transport: transport,
	}
	b.opts.allowLocalCalls = true
	for _, opt := range opts {
		opt(&b.opts)
	}
	b.opts.adjust()
	b.logger = b.opts.logger

	b.mu.state = Gathering
	b.mu.ops = make(map[*InFlightOp]struct{})
	return b
}

// Add admits one operation into the batch and starts its shard lookup, so
// that by the time the user calls FlushAsync the batch is ready to go.
// Returns ErrBadKey if the partition key cannot be extracted and
// ErrInvalidState if the batch is no longer gathering.
func (b *Batcher) Add(op Op) error {
	partitionKey, err := op.PartitionKey()
	if err != nil {
		return errors.Wrapf(ErrBadKey, "%s", err)
	}

	maybeSetHashCode(op, partitionKey)
	ifo := newInFlightOp(op, partitionKey)

	var deadline time.Time
	b.mu.Lock()
	if b.mu.state != Gathering {
		state := b.mu.state
		b.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "state is %s", state)
	}
	ifo.sequence = b.mu.nextSequence
	b.mu.nextSequence++
	b.mu.ops[ifo] = struct{}{}
	b.mu.outstandingLookups++
	b.mu.bufferBytesUsed += uint64(len(partitionKey) + len(op.Payload()))
	// the flush deadline is set in FlushAsync after all Add calls are
	// done, lookups started before that use an ad-hoc deadline
	deadline = b.mu.deadline
	if deadline.IsZero() {
		deadline = b.computeDeadlineLocked()
	}
	b.mu.Unlock()

	metric.IncOpsAdded()
	metric.AddInflightOps(1)

	if ce := b.logger.Check(zap.DebugLevel, "looking up shard"); ce != nil {
		ce.Write(zap.String("op", op.String()),
			log.SequenceField(ifo.sequence))
	}

	if bound, ok := op.(ShardBound); ok && bound.BoundShard() != nil {
		b.shardLookupFinished(ifo, bound.BoundShard(), nil)
		return nil
	}

	b.locator.LookupByKey(op.Table(), partitionKey, deadline, func(shard *meta.Shard, err error) {
		b.shardLookupFinished(ifo, shard, err)
	})
	return nil
}

// SetTimeout set the timeout used to derive the flush deadline.
func (b *Batcher) SetTimeout(timeout time.Duration) {
	if timeout < 0 {
		b.logger.Fatal("negative batcher timeout",
			zap.Duration("timeout", timeout))
	}
	b.mu.Lock()
	b.mu.timeout = timeout
	b.mu.Unlock()
}

// FlushAsync seals the batch and dispatches it. The callback fires exactly
// once, when every dispatched rpc settled or when the batch is aborted. In
// the case that nothing is buffered the callback fires immediately.
// Returns ErrInvalidState if the batch is not gathering.
func (b *Batcher) FlushAsync(callback func(error)) error {
	b.mu.Lock()
	if b.mu.state != Gathering {
		state := b.mu.state
		b.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "state is %s", state)
	}
	b.mu.state = Flushing
	b.mu.flushCallback = callback
	b.mu.flushStart = time.Now()
	b.mu.deadline = b.computeDeadlineLocked()
	b.mu.Unlock()

	b.checkForFinishedFlush()

	// Trigger flushing of the gathered ops. If some lookups are still in
	// flight the ops are dispatched when the last lookup settles, since
	// the state is now Flushing.
	b.flushBuffersIfReady()
	return nil
}

// Abort aborts the batch. Ops whose lookup settled but that were not yet
// handed to an rpc fail with the given status; rpcs already in flight run
// to completion and are accounted normally on return.
func (b *Batcher) Abort(status error) {
	var toAbort []*InFlightOp
	b.mu.Lock()
	if b.mu.state == Flushed || b.mu.state == Aborted {
		b.mu.Unlock()
		return
	}
	b.mu.state = Aborted

	for op := range b.mu.ops {
		op.mu.Lock()
		if op.state == OpReadyToDispatch {
			toAbort = append(toAbort, op)
		}
		op.mu.Unlock()
	}

	for _, op := range toAbort {
		if ce := b.logger.Check(zap.DebugLevel, "aborting op"); ce != nil {
			ce.Write(zap.String("op", op.String()))
		}
		b.markInFlightOpFailedLocked(op, status)
	}
	b.mu.readyOps = nil

	run := b.mu.flushCallback != nil && !b.mu.callbackDone
	if run {
		b.mu.callbackDone = true
	}
	callback := b.mu.flushCallback
	b.mu.Unlock()

	metric.IncFlushAborted()
	if run {
		b.runCallback(callback, status)
	}
}

// HasPendingOperations returns true while any admitted op has not settled.
func (b *Batcher) HasPendingOperations() bool {
	b.mu.Lock()
	v := len(b.mu.ops) > 0
	b.mu.Unlock()
	return v
}

// CountBufferedOperations returns the number of buffered ops; once the
// flush has begun the ops are no longer considered buffered.
func (b *Batcher) CountBufferedOperations() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mu.state == Gathering {
		return len(b.mu.ops)
	}
	return 0
}

// BufferBytesUsed returns the bytes buffered by the batch so far.
func (b *Batcher) BufferBytesUsed() uint64 {
	b.mu.Lock()
	v := b.mu.bufferBytesUsed
	b.mu.Unlock()
	return v
}

// MaxBufferSize returns the buffer cap the session layer back-pressures
// against.
func (b *Batcher) MaxBufferSize() uint64 {
	return b.opts.maxBufferSize
}

// State returns the batch state.
func (b *Batcher) State() State {
	b.mu.Lock()
	v := b.mu.state
	b.mu.Unlock()
	return v
}

// PendingRpcs returns the number of rpcs awaiting responses.
func (b *Batcher) PendingRpcs() int {
	return int(atomic.LoadInt32(&b.pendingRpcs))
}

// TransactionMetadata returns the metadata supplied by the transaction at
// prepare, valid once the flush is past the transaction gate.
func (b *Batcher) TransactionMetadata() (TransactionMetadata, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mu.txnMetadata, b.mu.mayHaveTxnMetadata
}

// shardLookupFinished the completion path of a shard lookup. The batcher
// lock is taken first to atomically test for abort and change the op
// state.
func (b *Batcher) shardLookupFinished(op *InFlightOp, shard *meta.Shard, err error) {
	lookupFailed := false

	b.mu.Lock()
	if err == nil {
		op.mu.Lock()
		op.shard = shard
		op.mu.Unlock()
	}
	b.mu.outstandingLookups--

	if b.mu.state == Aborted {
		if ce := b.logger.Check(zap.DebugLevel, "lookup settled on aborted batch"); ce != nil {
			ce.Write(zap.String("op", op.String()))
		}
		b.markInFlightOpFailedLocked(op, ErrAborted)
		b.mu.Unlock()
		return
	}

	if ce := b.logger.Check(zap.DebugLevel, "shard lookup finished"); ce != nil {
		ce.Write(zap.String("op", op.String()),
			log.ShardField("shard", shard),
			zap.Error(err),
			zap.Int("outstanding-lookups", b.mu.outstandingLookups))
	}

	if err == nil {
		op.mu.Lock()
		if op.state != OpLookingUpShard {
			b.logger.Fatal("lookup settled for op in unexpected state",
				zap.String("op", op.String()))
		}
		op.state = OpReadyToDispatch
		op.mu.Unlock()
		b.mu.readyOps = append(b.mu.readyOps, op)
	} else {
		lookupFailed = true
		b.markInFlightOpFailedLocked(op, err)
	}
	b.mu.Unlock()

	if lookupFailed {
		b.checkForFinishedFlush()
	}
	b.flushBuffersIfReady()
}

// markInFlightOpFailedLocked removes the op from the in-flight set and
// records the failure. Callers hold the batcher lock.
func (b *Batcher) markInFlightOpFailedLocked(op *InFlightOp, err error) {
	if _, ok := b.mu.ops[op]; !ok {
		b.logger.Fatal("fail to remove op from in-flight set",
			zap.String("op", op.String()))
	}
	delete(b.mu.ops, op)
	op.setStateLocked(OpFailed)
	b.combineErrorLocked(op, err)

	metric.IncOpsFailed(errorReason(err))
	metric.AddInflightOps(-1)
}

// combineErrorLocked records the failure in the error sink and folds it
// into the terminal batch status. Callers hold the batcher lock.
func (b *Batcher) combineErrorLocked(op *InFlightOp, err error) {
	b.opts.sink.AddError(op.op, err)
	if b.opts.combineErrors {
		if b.mu.combinedErr == nil {
			b.mu.combinedErr = err
		} else if !errors.Is(b.mu.combinedErr, ErrCombined) &&
			errorKind(b.mu.combinedErr) != errorKind(err) {
			b.mu.combinedErr = ErrCombined
		}
	}
	b.mu.hadErrors = true
}

// checkForFinishedFlush fires the terminal callback when the flush has
// drained. Safe to call at any time, only the call that observes the empty
// in-flight set in the Flushing state runs the callback.
func (b *Batcher) checkForFinishedFlush() {
	b.mu.Lock()
	if b.mu.state != Flushing || len(b.mu.ops) != 0 {
		b.mu.Unlock()
		return
	}
	b.mu.state = Flushed

	var status error
	if b.mu.combinedErr != nil {
		status = b.mu.combinedErr
	} else if b.mu.hadErrors {
		// in the general case the user is responsible for fetching the
		// per-op causes from the error sink
		status = ErrServerError
	}

	run := b.mu.flushCallback != nil && !b.mu.callbackDone
	if run {
		b.mu.callbackDone = true
	}
	callback := b.mu.flushCallback
	start := b.mu.flushStart
	b.mu.Unlock()

	metric.ObserveFlushDuration(start)
	if status == nil {
		metric.IncFlushCompleted()
	} else {
		metric.IncFlushFailed()
	}

	if run {
		b.runCallback(callback, status)
	}
}

// runCallback hands the terminal callback off to the callback executor,
// falling back to running it inline on the completing goroutine.
func (b *Batcher) runCallback(callback func(error), status error) {
	if b.opts.executor != nil {
		if err := b.opts.executor.RunNamedTask("flush-callback", func(ctx context.Context) {
			callback(status)
		}); err == nil {
			return
		}
	}
	callback(status)
}

func (b *Batcher) computeDeadlineLocked() time.Time {
	timeout := b.mu.timeout
	if timeout == 0 {
		if noTimeoutWarnLimiter.Allow() {
			b.logger.Warn("client writing with no timeout set, using 60 seconds")
		}
		timeout = defaultFlushTimeout
	}
	return time.Now().Add(timeout)
}
