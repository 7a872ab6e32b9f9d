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
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubeclient/client"
	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"github.com/matrixorigin/cubeclient/util/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticLocator resolves every key to one shard, synchronously
type staticLocator struct {
	shard *meta.Shard
}

func (l *staticLocator) LookupByKey(table *client.Table, key []byte, deadline time.Time, fn func(*meta.Shard, error)) {
	fn(l.shard, nil)
}

func TestSelectStore(t *testing.T) {
	shard := &meta.Shard{
		Leader: meta.Store{ClientAddress: "leader"},
		Followers: []meta.Store{
			{ClientAddress: "f1"},
			{ClientAddress: "f2"},
		},
	}

	assert.Equal(t, "leader", selectStore(shard, rpcpb.Strong))

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		addr := selectStore(shard, rpcpb.ConsistentPrefix)
		assert.NotEqual(t, "leader", addr)
		seen[addr] = true
	}
	assert.True(t, seen["f1"])
	assert.True(t, seen["f2"])

	// no followers falls back to the leader
	shard.Followers = nil
	assert.Equal(t, "leader", selectStore(shard, rpcpb.ConsistentPrefix))
}

// a run allowed to execute locally settles synchronously through the local
// handler
func TestLocalStoreDispatch(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var received *rpcpb.WriteRequest
	tr := NewTransport(WithLocalStore("local", func(msg interface{}) (interface{}, error) {
		req := msg.(*rpcpb.WriteRequest)
		received = req
		return &rpcpb.WriteResponse{
			ID:                   req.ID,
			ShardID:              req.ShardID,
			PropagatedHybridTime: hlc.HybridTime(8192),
		}, nil
	}))
	defer tr.Stop()

	shard := &meta.Shard{ID: 1, Group: 1, Leader: meta.Store{ID: 100, ClientAddress: "local"}}
	locator := &staticLocator{shard: shard}
	readPoint := hlc.NewReadPoint()
	b := client.NewBatcher(locator, tr, client.WithReadPoint(readPoint))

	table := &client.Table{Name: "test", Group: 1}
	require.NoError(t, b.Add(client.NewKVWrite(table, []byte("k"), []byte("v"))))

	c := make(chan error, 1)
	require.NoError(t, b.FlushAsync(func(err error) {
		c <- err
	}))

	select {
	case err := <-c:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "flush not settled")
	}

	require.NotNil(t, received)
	assert.Equal(t, uint64(1), received.ShardID)
	assert.Equal(t, [][]byte{[]byte("v")}, received.Rows)
	assert.Equal(t, hlc.HybridTime(8192), readPoint.Now())
}

// a shard with no known leader fails before the send and the failure flows
// through the normal completion path
func TestDispatchWithoutStore(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tr := NewTransport()
	defer tr.Stop()

	shard := &meta.Shard{ID: 1, Group: 1}
	locator := &staticLocator{shard: shard}
	sink := client.NewErrorCollector()
	b := client.NewBatcher(locator, tr, client.WithErrorSink(sink))

	table := &client.Table{Name: "test", Group: 1}
	require.NoError(t, b.Add(client.NewKVWrite(table, []byte("k"), []byte("v"))))

	c := make(chan error, 1)
	require.NoError(t, b.FlushAsync(func(err error) {
		c <- err
	}))

	select {
	case err := <-c:
		assert.Error(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "flush not settled")
	}

	opErrors := sink.Errors()
	require.Equal(t, 1, len(opErrors))
	assert.True(t, errors.Is(opErrors[0].Err, ErrNoAvailableStore))
}

func TestLocalStoreError(t *testing.T) {
	defer leaktest.AfterTest(t)()

	handlerErr := errors.New("store overloaded")
	tr := NewTransport(WithLocalStore("local", func(msg interface{}) (interface{}, error) {
		return nil, handlerErr
	}))
	defer tr.Stop()

	shard := &meta.Shard{ID: 1, Group: 1, Leader: meta.Store{ClientAddress: "local"}}
	sink := client.NewErrorCollector()
	b := client.NewBatcher(&staticLocator{shard: shard}, tr, client.WithErrorSink(sink))

	table := &client.Table{Name: "test", Group: 1}
	require.NoError(t, b.Add(client.NewKVRead(table, []byte("k"), []byte("v"))))

	c := make(chan error, 1)
	require.NoError(t, b.FlushAsync(func(err error) {
		c <- err
	}))

	select {
	case err := <-c:
		assert.Error(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "flush not settled")
	}

	opErrors := sink.Errors()
	require.Equal(t, 1, len(opErrors))
	assert.True(t, errors.Is(opErrors[0].Err, handlerErr))
}
