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
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fagongzi/goetty"
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"github.com/matrixorigin/cubeclient/util/task"
	"go.uber.org/zap"
)

var (
	errConnect            = errors.New("not connected")
	defaultConnectTimeout = time.Second * 10
)

type queuedRequest struct {
	id  []byte
	msg interface{}
}

// backend one connection to a store, with a queued write loop and a read
// loop matching responses back through the transport.
type backend struct {
	sync.Mutex

	transport *Transport
	addr      string
	logger    *zap.Logger
	conn      goetty.IOSession
	reqs      *task.Queue
}

func newBackend(t *Transport, addr string) *backend {
	bc := &backend{
		transport: t,
		addr:      addr,
		logger:    t.logger.With(zap.String("remote", addr)),
		conn:      goetty.NewIOSession(goetty.WithCodec(t.encoder, t.decoder)),
		reqs:      task.New(32),
	}

	bc.writeLoop()
	return bc
}

func (bc *backend) dispatch(req queuedRequest) error {
	if !bc.checkConnect() {
		return errConnect
	}

	return bc.reqs.Put(req)
}

func (bc *backend) close() {
	for _, item := range bc.reqs.Dispose() {
		if req, ok := item.(queuedRequest); ok {
			bc.transport.failPending(req.id, errStopped)
		}
	}
	bc.conn.Close()
}

func (bc *backend) checkConnect() bool {
	if bc == nil {
		return false
	}

	if bc.conn.Connected() {
		return true
	}

	bc.Lock()
	defer bc.Unlock()

	if bc.conn.Connected() {
		return true
	}

	ok, err := bc.conn.Connect(bc.addr, defaultConnectTimeout)
	if err != nil {
		bc.logger.Error("fail to connect to backend",
			zap.Error(err))
		return false
	}

	bc.readLoop()
	return ok
}

func (bc *backend) writeLoop() {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				bc.logger.Error("backend write loop failed, restart later",
					zap.Any("err", err))
				bc.writeLoop()
			}
		}()

		batch := int64(16)
		bc.logger.Info("backend write loop started")

		items := make([]interface{}, batch)
		for {
			n, err := bc.reqs.Get(batch, items)
			if err != nil {
				// queue disposed at close
				bc.logger.Info("backend write loop stopped")
				return
			}

			for i := int64(0); i < n; i++ {
				req := items[i].(queuedRequest)
				if ce := bc.logger.Check(zap.DebugLevel, "send request"); ce != nil {
					ce.Write(log.RequestIDField(req.id))
				}
				bc.conn.Write(req.msg)
			}

			if err := bc.conn.Flush(); err != nil {
				for i := int64(0); i < n; i++ {
					if req, ok := items[i].(queuedRequest); ok {
						bc.transport.failPending(req.id, err)
					}
				}
			}
		}
	}()
}

func (bc *backend) readLoop() {
	go func() {
		bc.logger.Info("backend read loop started")

		for {
			data, err := bc.conn.Read()
			if err != nil {
				bc.logger.Info("backend read loop stopped")
				bc.conn.Close()
				return
			}

			switch msg := data.(type) {
			case *rpcpb.WriteResponse:
				if ce := bc.logger.Check(zap.DebugLevel, "receive response"); ce != nil {
					ce.Write(log.RequestIDField(msg.ID))
				}
				bc.transport.onResponse(msg.ID, msg)
			case *rpcpb.ReadResponse:
				if ce := bc.logger.Check(zap.DebugLevel, "receive response"); ce != nil {
					ce.Write(log.RequestIDField(msg.ID))
				}
				bc.transport.onResponse(msg.ID, msg)
			default:
				bc.logger.Error("skip unknown message",
					zap.Any("message", data))
			}
		}
	}()
}
