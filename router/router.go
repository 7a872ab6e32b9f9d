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

package router

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/matrixorigin/cubeclient/client"
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/util/stop"
	"go.uber.org/zap"
)

var (
	// ErrNoShard no shard covers the key
	ErrNoShard = errors.New("no shard for key")
	// ErrDeadlineExceeded the lookup settled past its deadline
	ErrDeadlineExceeded = errors.New("lookup deadline exceeded")
)

// Router a client-side shard route cache. Routes are fed by the placement
// watcher of the surrounding layer through UpsertShard and UpdateLeader;
// lookups resolve against the cached routes. Router implements
// client.ShardLocator, lookups settle asynchronously on the router's
// stopper the way remote route resolution does.
type Router struct {
	logger  *zap.Logger
	stopper *stop.Stopper

	mu struct {
		sync.RWMutex
		trees  map[uint64]*ShardTree // group -> shard tree
		shards map[uint64]*meta.Shard
	}
}

// NewRouter create a shard route cache
func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		logger:  log.Adjust(logger).Named("router"),
		stopper: stop.NewStopper("router", stop.WithLogger(logger)),
	}
	r.mu.trees = make(map[uint64]*ShardTree)
	r.mu.shards = make(map[uint64]*meta.Shard)
	return r
}

// Stop stop the router's background lookups
func (r *Router) Stop() {
	r.stopper.Stop()
}

// UpsertShard add or replace the route of a shard. The inserted handle is
// shared with every later lookup result.
func (r *Router) UpsertShard(shard meta.Shard) {
	v := &shard

	r.mu.Lock()
	tree, ok := r.mu.trees[shard.Group]
	if !ok {
		tree = NewShardTree()
		r.mu.trees[shard.Group] = tree
	}
	r.mu.shards[shard.ID] = v
	r.mu.Unlock()

	tree.Update(v)

	if ce := r.logger.Check(zap.DebugLevel, "shard route updated"); ce != nil {
		ce.Write(log.ShardField("shard", v))
	}
}

// UpdateLeader update the leader store of a shard, a no-op for unknown
// shards.
func (r *Router) UpdateLeader(shardID uint64, leader meta.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	shard, ok := r.mu.shards[shardID]
	if !ok {
		return
	}

	updated := *shard
	updated.Leader = leader
	r.mu.shards[shardID] = &updated

	tree, ok := r.mu.trees[shard.Group]
	if ok {
		tree.Update(&updated)
	}
}

// GetShard returns the cached shard handle, nil for unknown shards.
func (r *Router) GetShard(shardID uint64) *meta.Shard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mu.shards[shardID]
}

// SelectShard returns the shard covering the key in the group.
func (r *Router) SelectShard(group uint64, key []byte) (*meta.Shard, error) {
	r.mu.RLock()
	tree, ok := r.mu.trees[group]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNoShard, "group %d", group)
	}

	shard := tree.Search(key)
	if shard == nil {
		return nil, errors.Wrapf(ErrNoShard, "group %d, key %x", group, key)
	}
	return shard, nil
}

// LookupByKey implements client.ShardLocator. The lookup settles on a
// router task, out of the caller's goroutine, mirroring how remote route
// resolution behaves. Lookups completing after the deadline fail with
// ErrDeadlineExceeded.
func (r *Router) LookupByKey(table *client.Table, partitionKey []byte, deadline time.Time, fn func(*meta.Shard, error)) {
	group := uint64(0)
	if table != nil {
		group = table.Group
	}

	if err := r.stopper.RunNamedTask("lookup", func(ctx context.Context) {
		select {
		case <-ctx.Done():
			fn(nil, stop.ErrUnavailable)
			return
		default:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			fn(nil, errors.Wrapf(ErrDeadlineExceeded, "key %x", partitionKey))
			return
		}

		fn(r.SelectShard(group, partitionKey))
	}); err != nil {
		fn(nil, err)
	}
}
