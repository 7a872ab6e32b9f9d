// Copyright 2021 MatrixOrigin.
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

package stop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunTask(t *testing.T) {
	s := NewStopper("test")
	c := make(chan struct{})
	assert.NoError(t, s.RunTask(func(ctx context.Context) {
		close(c)
	}))

	select {
	case <-c:
	case <-time.After(time.Second):
		assert.Fail(t, "task not run")
	}
	_, err := s.Stop()
	assert.NoError(t, err)
}

func TestRunTaskAfterStopped(t *testing.T) {
	s := NewStopper("test")
	_, err := s.Stop()
	assert.NoError(t, err)
	assert.Equal(t, ErrUnavailable, s.RunTask(func(ctx context.Context) {}))
}

func TestStopCancelsRunningTasks(t *testing.T) {
	s := NewStopper("test")
	started := make(chan struct{})
	cancelled := make(chan struct{})
	assert.NoError(t, s.RunNamedTask("wait-cancel", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))

	<-started
	tasks, err := s.Stop()
	assert.NoError(t, err)
	assert.Empty(t, tasks)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		assert.Fail(t, "task not cancelled")
	}
}

func TestStopTimeoutReturnsTaskNames(t *testing.T) {
	s := NewStopper("test")
	stuck := make(chan struct{})
	defer close(stuck)
	assert.NoError(t, s.RunNamedTask("stuck-task", func(ctx context.Context) {
		<-stuck
	}))

	tasks, err := s.StopWithTimeout(time.Millisecond * 10)
	assert.Error(t, err)
	assert.Equal(t, []string{"stuck-task"}, tasks)
}
