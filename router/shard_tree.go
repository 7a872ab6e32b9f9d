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
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/matrixorigin/cubeclient/meta"
)

const (
	defaultBTreeDegree = 64
)

var (
	itemPool sync.Pool
)

func acquireItem() *shardItem {
	v := itemPool.Get()
	if v == nil {
		return &shardItem{}
	}
	return v.(*shardItem)
}

func releaseItem(item *shardItem) {
	item.shard = nil
	itemPool.Put(item)
}

// shardItem is the shard btree item
type shardItem struct {
	shard *meta.Shard
}

// Less returns true if the shard start key is greater than the other.
// So we will sort the shards with start key reversely.
func (r *shardItem) Less(other btree.Item) bool {
	left := r.shard.Start
	right := other.(*shardItem).shard.Start
	return bytes.Compare(left, right) > 0
}

// ShardTree is the btree for shards, keyed by shard range. The stored shard
// handles are shared with every lookup result, so handle identity is stable
// between cache updates.
type ShardTree struct {
	sync.RWMutex
	tree *btree.BTree
}

// NewShardTree returns a default shard btree
func NewShardTree() *ShardTree {
	return &ShardTree{
		tree: btree.New(defaultBTreeDegree),
	}
}

// Length returns the count of shards in the tree
func (t *ShardTree) Length() int {
	t.RLock()
	v := t.tree.Len()
	t.RUnlock()
	return v
}

// Update updates the tree with the shard.
// It finds and deletes all the overlapped shards first, and then
// inserts the shard.
func (t *ShardTree) Update(shard *meta.Shard) {
	t.Lock()
	item := &shardItem{shard: shard}

	result := t.find(shard.Start)
	if result == nil {
		result = item
	}

	var overlaps []*shardItem

	// iterate from the found shard until all.min > shard.max
	t.tree.DescendLessOrEqual(result, func(i btree.Item) bool {
		over := i.(*shardItem)
		// shard.max <= i.start means shard and i have no overlaps
		if len(shard.End) > 0 && bytes.Compare(shard.End, over.shard.Start) <= 0 {
			return false
		}
		overlaps = append(overlaps, over)
		return true
	})

	for _, over := range overlaps {
		t.tree.Delete(over)
	}

	t.tree.ReplaceOrInsert(item)
	t.Unlock()
}

// Remove removes a shard if the shard is in the tree.
// It will do nothing if it cannot find the shard or the found shard
// is not the same with the shard.
func (t *ShardTree) Remove(shard *meta.Shard) bool {
	t.Lock()

	result := t.find(shard.Start)
	if result == nil || result.shard.ID != shard.ID {
		t.Unlock()
		return false
	}

	t.tree.Delete(result)
	t.Unlock()
	return true
}

// Ascend asc iterator the tree until fn returns false
func (t *ShardTree) Ascend(fn func(shard *meta.Shard) bool) {
	t.RLock()
	t.tree.Descend(func(item btree.Item) bool {
		return fn(item.(*shardItem).shard)
	})
	t.RUnlock()
}

// Search returns the shard that contains the key, nil for uncovered keys.
func (t *ShardTree) Search(key []byte) *meta.Shard {
	t.RLock()
	result := t.find(key)
	t.RUnlock()

	if result == nil {
		return nil
	}
	return result.shard
}

func (t *ShardTree) find(key []byte) *shardItem {
	item := acquireItem()
	item.shard = &meta.Shard{Start: key}

	var result *shardItem
	t.tree.AscendGreaterOrEqual(item, func(i btree.Item) bool {
		result = i.(*shardItem)
		return false
	})

	releaseItem(item)

	if result == nil || !result.shard.Contains(key) {
		return nil
	}

	return result
}
