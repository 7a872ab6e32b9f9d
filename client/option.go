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
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/util/stop"
	"go.uber.org/zap"
)

const (
	defaultMaxBufferSize = 7 * 1024 * 1024
)

// Option batcher option
type Option func(*options)

type options struct {
	logger              *zap.Logger
	txn                 Transaction
	readPoint           *hlc.ReadPoint
	sink                ErrorSink
	executor            *stop.Stopper
	forceConsistentRead bool
	allowFollowerReads  bool
	combineErrors       bool
	allowLocalCalls     bool
	maxBufferSize       uint64
}

func (opts *options) adjust() {
	opts.logger = log.Adjust(opts.logger).Named("batcher")
	if opts.sink == nil {
		opts.sink = NewErrorCollector()
	}
	if opts.maxBufferSize == 0 {
		opts.maxBufferSize = defaultMaxBufferSize
	}
}

// WithLogger set the logger
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) { opts.logger = logger }
}

// WithTransaction attach a transaction, the batcher asks it to prepare the
// ops before the first rpc is dispatched
func WithTransaction(txn Transaction) Option {
	return func(opts *options) { opts.txn = txn }
}

// WithReadPoint attach the read point advanced by response hybrid times
func WithReadPoint(readPoint *hlc.ReadPoint) Option {
	return func(opts *options) { opts.readPoint = readPoint }
}

// WithErrorSink set the sink receiving per-op failures, defaults to an
// ErrorCollector
func WithErrorSink(sink ErrorSink) Option {
	return func(opts *options) { opts.sink = sink }
}

// WithCallbackExecutor set the stopper the terminal flush callback is
// handed off to; the callback runs inline when the handoff fails
func WithCallbackExecutor(executor *stop.Stopper) Option {
	return func(opts *options) { opts.executor = executor }
}

// WithForceConsistentRead require a consistent read point even for batches
// that fit a single command
func WithForceConsistentRead(value bool) Option {
	return func(opts *options) { opts.forceConsistentRead = value }
}

// WithAllowFollowerReads group follower-safe reads as consistent-prefix
// reads served by any replica
func WithAllowFollowerReads(value bool) Option {
	return func(opts *options) { opts.allowFollowerReads = value }
}

// WithCombineErrors combine per-op failures into the terminal batch status
func WithCombineErrors(value bool) Option {
	return func(opts *options) { opts.combineErrors = value }
}

// WithAllowLocalCalls allow the final run of a flush to execute
// synchronously on the calling thread
func WithAllowLocalCalls(value bool) Option {
	return func(opts *options) { opts.allowLocalCalls = value }
}

// WithMaxBufferSize cap the bytes buffered by the batch, used by the
// session layer to back-pressure Add
func WithMaxBufferSize(value uint64) Option {
	return func(opts *options) { opts.maxBufferSize = value }
}
