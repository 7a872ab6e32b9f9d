package main

import (
	"flag"
	"fmt"
	"sync"

	"github.com/matrixorigin/cubeclient/client"
	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/hlc"
	"github.com/matrixorigin/cubeclient/meta"
	"github.com/matrixorigin/cubeclient/router"
	"github.com/matrixorigin/cubeclient/rpcpb"
	"github.com/matrixorigin/cubeclient/transport"
	"github.com/matrixorigin/cubeclient/util/stop"
	"go.uber.org/zap"
)

var (
	keys = flag.Int("keys", 8, "number of keys to write and read back")
)

// memStore a tiny in-process shard server backing the local transport
// handler, enough to see a batch flow end to end.
type memStore struct {
	sync.Mutex
	data map[string][]byte
	ht   hlc.HybridTime
}

func (s *memStore) handle(msg interface{}) (interface{}, error) {
	s.Lock()
	defer s.Unlock()

	s.ht++
	switch req := msg.(type) {
	case *rpcpb.WriteRequest:
		for _, row := range req.Rows {
			s.data[string(row)] = row
		}
		return &rpcpb.WriteResponse{
			ID:                   req.ID,
			ShardID:              req.ShardID,
			PropagatedHybridTime: s.ht,
		}, nil
	case *rpcpb.ReadRequest:
		resp := &rpcpb.ReadResponse{
			ID:                   req.ID,
			ShardID:              req.ShardID,
			PropagatedHybridTime: s.ht,
			UsedReadTime:         s.ht,
		}
		for _, row := range req.Rows {
			resp.Sidecars = append(resp.Sidecars, s.data[string(row)])
		}
		return resp, nil
	}
	return nil, fmt.Errorf("unknown request %T", msg)
}

func main() {
	flag.Parse()

	logger := log.GetDefaultZapLogger()
	store := &memStore{data: make(map[string][]byte)}

	r := router.NewRouter(logger)
	defer r.Stop()
	r.UpsertShard(meta.Shard{
		ID:     1,
		Group:  1,
		End:    []byte("m"),
		Leader: meta.Store{ID: 100, ClientAddress: "local"},
	})
	r.UpsertShard(meta.Shard{
		ID:     2,
		Group:  1,
		Start:  []byte("m"),
		Leader: meta.Store{ID: 100, ClientAddress: "local"},
	})

	tr := transport.NewTransport(
		transport.WithLogger(logger),
		transport.WithLocalStore("local", store.handle))
	defer tr.Stop()

	executor := stop.NewStopper("flush-callbacks", stop.WithLogger(logger))
	defer executor.Stop()

	table := &client.Table{Name: "example", Group: 1}
	readPoint := hlc.NewReadPoint()

	sink := client.NewErrorCollector()
	b := client.NewBatcher(r, tr,
		client.WithLogger(logger),
		client.WithErrorSink(sink),
		client.WithReadPoint(readPoint),
		client.WithCallbackExecutor(executor))

	for i := 0; i < *keys; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		if err := b.Add(client.NewKVWrite(table, key, key)); err != nil {
			logger.Fatal("fail to add write", zap.Error(err))
		}
	}

	c := make(chan error, 1)
	if err := b.FlushAsync(func(err error) {
		c <- err
	}); err != nil {
		logger.Fatal("fail to flush", zap.Error(err))
	}
	if err := <-c; err != nil {
		for _, opErr := range sink.Errors() {
			logger.Error("op failed",
				zap.String("op", opErr.Op.String()),
				zap.Error(opErr.Err))
		}
		logger.Fatal("flush failed", zap.Error(err))
	}
	logger.Info("writes flushed",
		zap.Int("keys", *keys),
		zap.Uint64("read-point", uint64(readPoint.Now())))

	b = client.NewBatcher(r, tr,
		client.WithLogger(logger),
		client.WithErrorSink(sink),
		client.WithReadPoint(readPoint),
		client.WithCallbackExecutor(executor))
	for i := 0; i < *keys; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		if err := b.Add(client.NewKVRead(table, key, key)); err != nil {
			logger.Fatal("fail to add read", zap.Error(err))
		}
	}
	if err := b.FlushAsync(func(err error) {
		c <- err
	}); err != nil {
		logger.Fatal("fail to flush", zap.Error(err))
	}
	if err := <-c; err != nil {
		logger.Fatal("flush failed", zap.Error(err))
	}

	logger.Info("reads flushed",
		zap.Uint64("read-point", uint64(readPoint.Now())))
	fmt.Println("done")
}
