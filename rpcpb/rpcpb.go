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

// Package rpcpb holds the in-memory carriers of the consolidated write and
// read commands exchanged with shard servers. The wire encoding of these
// values is owned by the transport codec.
package rpcpb

import (
	"github.com/matrixorigin/cubeclient/hlc"
)

// ConsistencyLevel read consistency level
type ConsistencyLevel int32

const (
	// Strong reads are served by the shard leader
	Strong = ConsistencyLevel(0)
	// ConsistentPrefix reads may be served by any replica that has a
	// consistent prefix of the log
	ConsistentPrefix = ConsistencyLevel(1)
)

// String implements fmt.Stringer
func (c ConsistencyLevel) String() string {
	switch c {
	case Strong:
		return "strong"
	case ConsistentPrefix:
		return "consistent-prefix"
	}
	return "unknown"
}

// WriteRequest a consolidated write command covering a run of row
// operations on a single shard.
type WriteRequest struct {
	ID                 []byte
	ShardID            uint64
	Epoch              uint64
	Rows               [][]byte
	NeedConsistentRead bool
	TxnMetadata        []byte
}

// PerRowError the failure of a single row operation inside a write command.
// RowIndex is the position of the row in the request.
type PerRowError struct {
	RowIndex uint32
	Message  string
}

// WriteResponse the response of a WriteRequest.
type WriteResponse struct {
	ID                   []byte
	ShardID              uint64
	PropagatedHybridTime hlc.HybridTime
	PerRowErrors         []PerRowError
	Error                string
}

// ReadRequest a consolidated read command covering a run of row operations
// on a single shard.
type ReadRequest struct {
	ID                 []byte
	ShardID            uint64
	Epoch              uint64
	Rows               [][]byte
	Consistency        ConsistencyLevel
	NeedConsistentRead bool
	TxnMetadata        []byte
}

// ReadResponse the response of a ReadRequest. Sidecars carry the row-wise
// results out of band, one slice per sidecar-returning row operation.
type ReadResponse struct {
	ID                   []byte
	ShardID              uint64
	PropagatedHybridTime hlc.HybridTime
	UsedReadTime         hlc.HybridTime
	Sidecars             [][]byte
	Error                string
}

// HasError returns true if the response carries a command-level error.
func (m *WriteResponse) HasError() bool { return m.Error != "" }

// HasError returns true if the response carries a command-level error.
func (m *ReadResponse) HasError() bool { return m.Error != "" }
