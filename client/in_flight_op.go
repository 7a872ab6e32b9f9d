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
	"sync"

	"github.com/matrixorigin/cubeclient/meta"
)

// OpState the lifecycle state of an in-flight op.
type OpState int32

const (
	// OpLookingUpShard the shard lookup has been started and has not
	// settled yet
	OpLookingUpShard = OpState(0)
	// OpReadyToDispatch the lookup settled, the op waits in the ready
	// queue for dispatch
	OpReadyToDispatch = OpState(1)
	// OpDispatched custody of the op has been transferred to an rpc
	OpDispatched = OpState(2)
	// OpCompleted the rpc carrying the op settled without a failure for it
	OpCompleted = OpState(3)
	// OpFailed the op failed and has been reported to the error sink
	OpFailed = OpState(4)
)

// String implements fmt.Stringer
func (s OpState) String() string {
	switch s {
	case OpLookingUpShard:
		return "looking-up-shard"
	case OpReadyToDispatch:
		return "ready-to-dispatch"
	case OpDispatched:
		return "dispatched"
	case OpCompleted:
		return "completed"
	case OpFailed:
		return "failed"
	}
	return "unknown"
}

// InFlightOp tracks one admitted operation from admission until the flush
// settles. The mutex protects the mutable fields against lookup-callback
// and dispatch interleavings; the batcher changes the op while holding its
// own mutex first, the Shard, State and String accessors acquire it alone.
type InFlightOp struct {
	mu sync.Mutex

	op           Op
	partitionKey []byte
	shard        *meta.Shard
	sequence     int
	state        OpState
}

func newInFlightOp(op Op, partitionKey []byte) *InFlightOp {
	return &InFlightOp{
		op:           op,
		partitionKey: partitionKey,
		state:        OpLookingUpShard,
	}
}

// Op returns the user operation.
func (o *InFlightOp) Op() Op { return o.op }

// PartitionKey returns the partition key extracted at admission.
func (o *InFlightOp) PartitionKey() []byte { return o.partitionKey }

// Shard returns the resolved shard, nil until the lookup settles.
func (o *InFlightOp) Shard() *meta.Shard {
	o.mu.Lock()
	v := o.shard
	o.mu.Unlock()
	return v
}

// SequenceNumber returns the dense admission sequence number used as the
// within-shard ordering tiebreaker.
func (o *InFlightOp) SequenceNumber() int { return o.sequence }

// State returns the current lifecycle state.
func (o *InFlightOp) State() OpState {
	o.mu.Lock()
	v := o.state
	o.mu.Unlock()
	return v
}

func (o *InFlightOp) setStateLocked(state OpState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

// String implements fmt.Stringer
func (o *InFlightOp) String() string {
	shardID := uint64(0)
	o.mu.Lock()
	if o.shard != nil {
		shardID = o.shard.ID
	}
	state := o.state
	o.mu.Unlock()
	return fmt.Sprintf("%s, sequence %d, state %s, shard %d",
		o.op.String(), o.sequence, state, shardID)
}
