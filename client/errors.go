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
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidState the batcher is not gathering ops
	ErrInvalidState = errors.New("batcher is not gathering ops")
	// ErrBadKey partition key extraction failed
	ErrBadKey = errors.New("fail to extract partition key")
	// ErrAborted the batch has been aborted
	ErrAborted = errors.New("batch aborted")
	// ErrRpcFailed a consolidated rpc failed as a whole
	ErrRpcFailed = errors.New("rpc failed")
	// ErrRowFailure a single row operation inside a write command failed
	ErrRowFailure = errors.New("row operation failed")
	// ErrServerError the generic terminal flush status when any op failed,
	// the per-op causes are in the error sink
	ErrServerError = errors.New("errors occurred while reaching out to the shard servers")
	// ErrCombined the terminal flush status when ops failed for more than
	// one kind of reason and error combining is enabled
	ErrCombined = errors.New("multiple failures")
)

var errorKinds = []error{
	ErrInvalidState,
	ErrBadKey,
	ErrAborted,
	ErrRpcFailed,
	ErrRowFailure,
	ErrServerError,
	ErrCombined,
}

// errorKind maps an error to the index of the sentinel it wraps, len of
// errorKinds for errors outside the taxonomy.
func errorKind(err error) int {
	for i, kind := range errorKinds {
		if errors.Is(err, kind) {
			return i
		}
	}
	return len(errorKinds)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrAborted):
		return "aborted"
	case errors.Is(err, ErrRpcFailed):
		return "rpc"
	case errors.Is(err, ErrRowFailure):
		return "row"
	default:
		return "lookup"
	}
}
