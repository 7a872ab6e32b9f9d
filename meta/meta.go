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

package meta

import (
	"bytes"
)

// ShardEpoch shard metadata version. ConfVer is changed when the replica
// membership changes, Version is changed when the shard range changes.
type ShardEpoch struct {
	ConfVer uint64
	Version uint64
}

// Store a node that serves replicas of shards.
type Store struct {
	ID            uint64
	ClientAddress string
}

// Shard is a contiguous partition of the keyspace served by a replicated
// group. A shard handle is shared by every operation routed to it within a
// batch, so handle identity can be used to group operations by destination.
type Shard struct {
	ID        uint64
	Group     uint64
	Start     []byte
	End       []byte
	Epoch     ShardEpoch
	Leader    Store
	Followers []Store
}

// Contains returns true if the key is in the shard's range [Start, End).
// An empty End means positive infinity.
func (s *Shard) Contains(key []byte) bool {
	return bytes.Compare(key, s.Start) >= 0 &&
		(len(s.End) == 0 || bytes.Compare(key, s.End) < 0)
}

// EpochMatch returns true if the two epochs are identical.
func EpochMatch(a, b ShardEpoch) bool {
	return a.ConfVer == b.ConfVer && a.Version == b.Version
}
