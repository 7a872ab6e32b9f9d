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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCollector(t *testing.T) {
	c := NewErrorCollector()
	assert.Equal(t, 0, c.Count())

	op1 := newTestWrite([]byte("a"))
	op2 := newTestWrite([]byte("b"))
	c.AddError(op1, errors.New("e1"))
	c.AddError(op2, errors.New("e2"))
	assert.Equal(t, 2, c.Count())

	opErrors := c.Errors()
	assert.Equal(t, 2, len(opErrors))
	assert.Same(t, op1, opErrors[0].Op)
	assert.Same(t, op2, opErrors[1].Op)

	// taking the errors drains the collector
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.Errors())
}
