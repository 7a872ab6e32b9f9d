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

package uuid

import (
	"github.com/google/uuid"
)

// UUID a v4 uuid
type UUID struct {
	value uuid.UUID
}

// NewV4 returns a random uuid
func NewV4() UUID {
	return UUID{value: uuid.New()}
}

// Bytes returns the uuid as a byte slice
func (u UUID) Bytes() []byte {
	v := u.value
	return v[:]
}

// String returns the canonical string form
func (u UUID) String() string {
	return u.value.String()
}
