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

	"github.com/matrixorigin/cubeclient/hlc"
)

// TransactionMetadata metadata the transaction layer attaches to the rpcs
// of a flushed batch.
type TransactionMetadata struct {
	ID       []byte
	Priority uint64
}

// IsEmpty returns true if no metadata is attached.
func (m TransactionMetadata) IsEmpty() bool {
	return len(m.ID) == 0
}

// Marshal encodes the metadata for the rpc carrier.
func (m TransactionMetadata) Marshal() []byte {
	if m.IsEmpty() {
		return nil
	}
	v := make([]byte, 8+len(m.ID))
	binary.BigEndian.PutUint64(v, m.Priority)
	copy(v[8:], m.ID)
	return v
}

// Transaction interposes distributed-transaction preparation on batch
// flushes.
type Transaction interface {
	// Prepare is called with every in-flight op of the batch before the
	// first rpc is dispatched, while the batcher mutex is held; it must not
	// reenter the batcher synchronously. When the transaction is
	// immediately ready it returns the rpc metadata, whether rpcs may
	// carry it, and ready=true. When it returns ready=false the flush is
	// suspended until the transaction invokes fn; a nil error resumes the
	// flush, a non-nil error aborts the batch with it.
	Prepare(ops []*InFlightOp, forceConsistentRead bool, fn func(error)) (metadata TransactionMetadata, mayHaveMetadata bool, ready bool)

	// Flushed is called once per settled rpc with the ops it carried, the
	// read time used and the rpc result.
	Flushed(ops []*InFlightOp, usedReadTime hlc.HybridTime, result error)
}
