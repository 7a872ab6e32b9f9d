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
	"time"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/rpcpb"
)

type testOp struct {
	table       *Table
	key         []byte
	keyErr      error
	payload     []byte
	readOnly    bool
	sidecar     bool
	followerOK  bool
	consistency rpcpb.ConsistencyLevel
	hashCode    uint32
	hashCodeSet bool
	bound       *meta.Shard
}

func newTestWrite(key []byte) *testOp {
	return &testOp{table: &Table{Name: "test", Group: 1}, key: key, payload: key}
}

func newTestRead(key []byte) *testOp {
	return &testOp{table: &Table{Name: "test", Group: 1}, key: key, payload: key,
		readOnly: true, sidecar: true}
}

func (o *testOp) Table() *Table                       { return o.table }
func (o *testOp) PartitionKey() ([]byte, error)       { return o.key, o.keyErr }
func (o *testOp) ReadOnly() bool                      { return o.readOnly }
func (o *testOp) ReturnsSidecar() bool                { return o.sidecar }
func (o *testOp) Payload() []byte                     { return o.payload }
func (o *testOp) SetHashCode(v uint32)                { o.hashCode = v; o.hashCodeSet = true }
func (o *testOp) AllowFollowerRead() bool             { return o.followerOK }
func (o *testOp) Consistency() rpcpb.ConsistencyLevel { return o.consistency }
func (o *testOp) BoundShard() *meta.Shard             { return o.bound }

func (o *testOp) String() string {
	return fmt.Sprintf("test-op %x", o.key)
}

type pendingLookup struct {
	key []byte
	fn  func(*meta.Shard, error)
}

// mockLocator resolves keys against a static table, either synchronously or
// under manual control of the test.
type mockLocator struct {
	sync.Mutex

	auto    bool
	shards  map[string]*meta.Shard
	pending []pendingLookup
}

func newMockLocator(auto bool) *mockLocator {
	return &mockLocator{auto: auto, shards: make(map[string]*meta.Shard)}
}

func (l *mockLocator) addShard(key []byte, shard *meta.Shard) {
	l.Lock()
	l.shards[string(key)] = shard
	l.Unlock()
}

func (l *mockLocator) LookupByKey(table *Table, key []byte, deadline time.Time, fn func(*meta.Shard, error)) {
	if l.auto {
		fn(l.resolve(key))
		return
	}

	l.Lock()
	l.pending = append(l.pending, pendingLookup{key: key, fn: fn})
	l.Unlock()
}

func (l *mockLocator) resolve(key []byte) (*meta.Shard, error) {
	l.Lock()
	shard, ok := l.shards[string(key)]
	l.Unlock()
	if !ok {
		return nil, errors.Newf("no shard for key %x", key)
	}
	return shard, nil
}

func (l *mockLocator) pendingCount() int {
	l.Lock()
	defer l.Unlock()
	return len(l.pending)
}

// completeNext settle the oldest pending lookup against the shard table.
func (l *mockLocator) completeNext() {
	l.Lock()
	p := l.pending[0]
	l.pending = l.pending[1:]
	l.Unlock()

	p.fn(l.resolve(p.key))
}

// failNext settle the oldest pending lookup with the given error.
func (l *mockLocator) failNext(err error) {
	l.Lock()
	p := l.pending[0]
	l.pending = l.pending[1:]
	l.Unlock()

	p.fn(nil, err)
}

func (l *mockLocator) completeAll() {
	for l.pendingCount() > 0 {
		l.completeNext()
	}
}

type mockRpc struct {
	transport   *mockTransport
	data        *AsyncRpcData
	write       bool
	consistency rpcpb.ConsistencyLevel
}

func (r *mockRpc) SendRpc() {
	r.transport.Lock()
	r.transport.sent = append(r.transport.sent, r)
	auto := r.transport.auto
	r.transport.Unlock()

	if auto {
		r.complete(nil)
	}
}

func (r *mockRpc) Ops() []*InFlightOp { return r.data.Ops }
func (r *mockRpc) Shard() *meta.Shard { return r.data.Shard }

// complete settle the rpc with no response payload.
func (r *mockRpc) complete(err error) {
	if r.write {
		r.data.Batcher.ProcessWriteResponse(r, rpcpb.WriteResponse{ShardID: r.data.Shard.ID}, err)
		return
	}
	r.data.Batcher.ProcessReadResponse(r, rpcpb.ReadResponse{ShardID: r.data.Shard.ID}, err)
}

func (r *mockRpc) completeWrite(resp rpcpb.WriteResponse, err error) {
	r.data.Batcher.ProcessWriteResponse(r, resp, err)
}

func (r *mockRpc) completeRead(resp rpcpb.ReadResponse, err error) {
	r.data.Batcher.ProcessReadResponse(r, resp, err)
}

// mockTransport records the rpcs built by the batcher, optionally settling
// every rpc with success the moment it is sent.
type mockTransport struct {
	sync.Mutex

	auto        bool
	maxSidecars int
	sent        []*mockRpc
}

func newMockTransport(auto bool) *mockTransport {
	return &mockTransport{auto: auto, maxSidecars: 16}
}

func (t *mockTransport) WriteRpc(data *AsyncRpcData) AsyncRpc {
	return &mockRpc{transport: t, data: data, write: true}
}

func (t *mockTransport) ReadRpc(data *AsyncRpcData, consistency rpcpb.ConsistencyLevel) AsyncRpc {
	return &mockRpc{transport: t, data: data, consistency: consistency}
}

func (t *mockTransport) MaxSidecarSlices() int { return t.maxSidecars }

func (t *mockTransport) sentRpcs() []*mockRpc {
	t.Lock()
	defer t.Unlock()
	return append([]*mockRpc(nil), t.sent...)
}

// mockTransaction a transaction gate under manual control of the test.
type mockTransaction struct {
	sync.Mutex

	ready    bool
	metadata TransactionMetadata
	readyFn  func(error)

	prepared  int
	flushed   [][]*InFlightOp
	usedTimes []hlc.HybridTime
	results   []error
}

func (t *mockTransaction) Prepare(ops []*InFlightOp, forceConsistentRead bool, fn func(error)) (TransactionMetadata, bool, bool) {
	t.Lock()
	defer t.Unlock()

	t.prepared++
	if !t.ready {
		t.readyFn = fn
		return TransactionMetadata{}, false, false
	}
	return t.metadata, !t.metadata.IsEmpty(), true
}

func (t *mockTransaction) Flushed(ops []*InFlightOp, usedReadTime hlc.HybridTime, result error) {
	t.Lock()
	defer t.Unlock()

	t.flushed = append(t.flushed, ops)
	t.usedTimes = append(t.usedTimes, usedReadTime)
	t.results = append(t.results, result)
}

// markReady flip the gate open and fire the captured readiness callback.
func (t *mockTransaction) markReady(err error) {
	t.Lock()
	t.ready = true
	fn := t.readyFn
	t.Unlock()

	if fn != nil {
		fn(err)
	}
}

func newTestShard(id uint64) *meta.Shard {
	return &meta.Shard{
		ID:     id,
		Group:  1,
		Leader: meta.Store{ID: id * 100, ClientAddress: fmt.Sprintf("store-%d", id)},
	}
}
