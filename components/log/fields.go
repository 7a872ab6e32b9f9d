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

package log

import (
	"bytes"
	"encoding/hex"

	"github.com/fagongzi/util/format"
	"github.com/fagongzi/util/hack"
	"github.com/matrixorigin/cubeclient/meta"
	"go.uber.org/zap"
)

// ReasonField returns zap.StringField
func ReasonField(why string) zap.Field {
	return zap.String("reason", why)
}

// ShardIDField returns zap.Uint64Field
func ShardIDField(id uint64) zap.Field {
	return zap.Uint64("shard-id", id)
}

// StoreIDField returns zap.Uint64Field
func StoreIDField(id uint64) zap.Field {
	return zap.Uint64("store-id", id)
}

// GroupField returns zap.Uint64Field
func GroupField(group uint64) zap.Field {
	return zap.Uint64("group", group)
}

// SequenceField returns zap.Int field for an op sequence number
func SequenceField(seq int) zap.Field {
	return zap.Int("sequence", seq)
}

// OpCountField returns zap.IntField
func OpCountField(count int) zap.Field {
	return zap.Int("op-count", count)
}

// RowIndexField returns zap.Uint32Field
func RowIndexField(index uint32) zap.Field {
	return zap.Uint32("row-index", index)
}

// RequestIDField returns zap.StringField, use hex.EncodeToString as string value
func RequestIDField(data []byte) zap.Field {
	if len(data) == 0 {
		return zap.String("request-id", "")
	}
	return zap.String("request-id", hex.EncodeToString(data))
}

// HexField returns zap.StringField, use hex.EncodeToString as string value
func HexField(key string, data []byte) zap.Field {
	if len(data) == 0 {
		return zap.String(key, "")
	}
	return zap.String(key, hex.EncodeToString(data))
}

// ListenAddressField return address field
func ListenAddressField(address string) zap.Field {
	return zap.String("listen-address", address)
}

// ShardField return formated shard zap string field
func ShardField(key string, shard *meta.Shard) zap.Field {
	if shard == nil {
		return zap.String(key, "")
	}

	var info bytes.Buffer
	appendShard(shard, &info)
	return zap.String(key, hack.SliceToString(info.Bytes()))
}

func appendShard(shard *meta.Shard, info *bytes.Buffer) {
	info.WriteString("shard-id: ")
	info.WriteString(format.Uint64ToString(shard.ID))

	info.WriteString(", shard-group: ")
	info.WriteString(format.Uint64ToString(shard.Group))

	info.WriteString(", shard-epoch: ")
	info.WriteString(format.Uint64ToString(shard.Epoch.Version))
	info.WriteString("/")
	info.WriteString(format.Uint64ToString(shard.Epoch.ConfVer))

	info.WriteString(", shard-range: [")
	info.WriteString(hex.EncodeToString(shard.Start))
	info.WriteString(", ")
	info.WriteString(hex.EncodeToString(shard.End))
	info.WriteString(")")

	info.WriteString(", leader-store: ")
	info.WriteString(format.Uint64ToString(shard.Leader.ID))
	info.WriteString("/")
	info.WriteString(shard.Leader.ClientAddress)
}
