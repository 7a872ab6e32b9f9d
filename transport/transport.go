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
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fagongzi/goetty/codec"
	"github.com/fagongzi/goetty/codec/length"
	"github.com/fagongzi/util/hack"
	"github.com/matrixorigin/cubeclient/client"
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"go.uber.org/zap"
)

var (
	// ErrNoAvailableStore the shard has no store to dispatch to, typically
	// the route cache does not know the leader yet
	ErrNoAvailableStore = errors.New("no available store")

	errStopped = errors.New("transport has been stopped")
)

const (
	defaultMaxBodySize      = 1024 * 1024 * 16
	defaultMaxSidecarSlices = 16
)

// LocalHandler executes a command on the calling goroutine, used for ops
// whose destination store lives in the same process.
type LocalHandler func(interface{}) (interface{}, error)

// Option transport option
type Option func(*options)

type options struct {
	logger           *zap.Logger
	maxBodySize      int
	maxSidecarSlices int
	localAddr        string
	localHandler     LocalHandler
}

func (opts *options) adjust() {
	opts.logger = log.Adjust(opts.logger).Named("transport")
	if opts.maxBodySize == 0 {
		opts.maxBodySize = defaultMaxBodySize
	}
	if opts.maxSidecarSlices == 0 {
		opts.maxSidecarSlices = defaultMaxSidecarSlices
	}
}

// WithLogger set the logger
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) { opts.logger = logger }
}

// WithMaxBodySize set the max message body size
func WithMaxBodySize(value int) Option {
	return func(opts *options) { opts.maxBodySize = value }
}

// WithMaxSidecarSlices set the max sidecar-returning ops per rpc
func WithMaxSidecarSlices(value int) Option {
	return func(opts *options) { opts.maxSidecarSlices = value }
}

// WithLocalStore set the in-process store; runs whose final destination is
// the local store execute synchronously on the calling goroutine when the
// batcher allows it
func WithLocalStore(addr string, handler LocalHandler) Option {
	return func(opts *options) {
		opts.localAddr = addr
		opts.localHandler = handler
	}
}

// Transport implements client.RpcTransport over per-store connections.
// Requests to the same store share one connection with a queued write loop;
// responses are matched back to their rpc by request id.
type Transport struct {
	logger  *zap.Logger
	opts    options
	encoder codec.Encoder
	decoder codec.Decoder

	pendings sync.Map // request id -> *pendingRpc

	mu struct {
		sync.RWMutex
		backends map[string]*backend
		stopped  bool
	}
}

// NewTransport create a transport
func NewTransport(opts ...Option) *Transport {
	t := &Transport{}
	for _, opt := range opts {
		opt(&t.opts)
	}
	t.opts.adjust()
	t.logger = t.opts.logger

	v := &rpcCodec{}
	t.encoder, t.decoder = length.NewWithSize(v, v, 0, 0, 0, t.opts.maxBodySize)
	t.mu.backends = make(map[string]*backend)
	return t
}

// Stop close every backend connection. Only safe once every batch using
// the transport settled.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mu.stopped {
		return
	}
	t.mu.stopped = true
	for addr, bc := range t.mu.backends {
		bc.close()
		delete(t.mu.backends, addr)
	}
}

// WriteRpc implements client.RpcTransport
func (t *Transport) WriteRpc(data *client.AsyncRpcData) client.AsyncRpc {
	return newWriteRpc(t, data)
}

// ReadRpc implements client.RpcTransport
func (t *Transport) ReadRpc(data *client.AsyncRpcData, consistency rpcpb.ConsistencyLevel) client.AsyncRpc {
	return newReadRpc(t, data, consistency)
}

// MaxSidecarSlices implements client.RpcTransport
func (t *Transport) MaxSidecarSlices() int {
	return t.opts.maxSidecarSlices
}

type pendingRpc struct {
	complete func(interface{}, error)
}

// dispatch send the message to the store, the completion fires with the
// matched response or the failure. Failures before the send complete
// inline on the calling goroutine.
func (t *Transport) dispatch(id []byte, addr string, msg interface{}, allowLocal bool, complete func(interface{}, error)) {
	if addr == "" {
		complete(nil, errors.Wrapf(ErrNoAvailableStore, "request %x", id))
		return
	}

	if allowLocal && t.opts.localHandler != nil && addr == t.opts.localAddr {
		complete(t.opts.localHandler(msg))
		return
	}

	t.pendings.Store(hack.SliceToString(id), &pendingRpc{complete: complete})
	if err := t.forwardToBackend(addr, queuedRequest{id: id, msg: msg}); err != nil {
		t.failPending(id, err)
	}
}

func (t *Transport) forwardToBackend(addr string, req queuedRequest) error {
	bc := t.getBackend(addr)
	if bc == nil {
		t.mu.Lock()
		if t.mu.stopped {
			t.mu.Unlock()
			return errStopped
		}

		bc = t.mu.backends[addr]
		if bc == nil {
			bc = newBackend(t, addr)
			t.mu.backends[addr] = bc
		}
		t.mu.Unlock()
	}

	return bc.dispatch(req)
}

func (t *Transport) getBackend(addr string) *backend {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mu.backends[addr]
}

// onResponse route a decoded response back to its rpc.
func (t *Transport) onResponse(id []byte, msg interface{}) {
	key := hack.SliceToString(id)
	v, ok := t.pendings.Load(key)
	if !ok {
		if ce := t.logger.Check(zap.DebugLevel, "response skipped"); ce != nil {
			ce.Write(log.RequestIDField(id),
				log.ReasonField("missing pending rpc"))
		}
		return
	}
	t.pendings.Delete(key)
	v.(*pendingRpc).complete(msg, nil)
}

func (t *Transport) failPending(id []byte, err error) {
	key := hack.SliceToString(id)
	v, ok := t.pendings.Load(key)
	if !ok {
		return
	}
	t.pendings.Delete(key)
	v.(*pendingRpc).complete(nil, err)
}
