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
	"time"

	"github.com/matrixorigin/cubeclient/meta"
)

// ShardLocator resolves the shard that currently owns a partition key. The
// resolution is asynchronous, fn is invoked with either the shard or the
// failure once the lookup settles. Lookups may settle in any order and
// after the batch has been aborted; lateness is absorbed by the abort path,
// cancellation is not required.
type ShardLocator interface {
	LookupByKey(table *Table, partitionKey []byte, deadline time.Time, fn func(*meta.Shard, error))
}
