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
	"testing"

	"github.com/matrixorigin/cubeclient/meta"
	"github.com/stretchr/testify/assert"
)

func newShard(id uint64, start, end []byte) *meta.Shard {
	return &meta.Shard{ID: id, Start: start, End: end}
}

func TestSearch(t *testing.T) {
	tree := NewShardTree()
	tree.Update(newShard(1, nil, []byte("b")))
	tree.Update(newShard(2, []byte("b"), []byte("d")))
	tree.Update(newShard(3, []byte("d"), nil))
	assert.Equal(t, 3, tree.Length())

	tests := []struct {
		key    string
		expect uint64
	}{
		{"", 1},
		{"a", 1},
		{"b", 2},
		{"c", 2},
		{"d", 3},
		{"z", 3},
	}
	for _, tt := range tests {
		shard := tree.Search([]byte(tt.key))
		assert.NotNil(t, shard, "key %q", tt.key)
		assert.Equal(t, tt.expect, shard.ID, "key %q", tt.key)
	}
}

func TestSearchUncoveredKey(t *testing.T) {
	tree := NewShardTree()
	tree.Update(newShard(1, []byte("b"), []byte("d")))

	assert.Nil(t, tree.Search([]byte("a")))
	assert.Nil(t, tree.Search([]byte("d")))
	assert.NotNil(t, tree.Search([]byte("b")))
}

func TestUpdateReplacesOverlapped(t *testing.T) {
	tree := NewShardTree()
	tree.Update(newShard(1, nil, nil))
	assert.Equal(t, 1, tree.Length())

	// a split replaces the single covering shard
	tree.Update(newShard(2, nil, []byte("m")))
	tree.Update(newShard(3, []byte("m"), nil))
	assert.Equal(t, 2, tree.Length())

	assert.Equal(t, uint64(2), tree.Search([]byte("a")).ID)
	assert.Equal(t, uint64(3), tree.Search([]byte("x")).ID)
}

func TestRemove(t *testing.T) {
	tree := NewShardTree()
	shard := newShard(1, []byte("a"), []byte("b"))
	tree.Update(shard)

	// a different shard with the same range is not removed
	assert.False(t, tree.Remove(newShard(2, []byte("a"), []byte("b"))))
	assert.True(t, tree.Remove(shard))
	assert.Equal(t, 0, tree.Length())
}

func TestAscend(t *testing.T) {
	tree := NewShardTree()
	tree.Update(newShard(1, nil, []byte("b")))
	tree.Update(newShard(2, []byte("b"), nil))

	var ids []uint64
	tree.Ascend(func(shard *meta.Shard) bool {
		ids = append(ids, shard.ID)
		return true
	})
	assert.Equal(t, []uint64{1, 2}, ids)
}
