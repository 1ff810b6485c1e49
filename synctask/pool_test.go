// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package synctask

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStaticWorkerPool_Success(t *testing.T) {
	tests := []struct {
		name           string
		priorityWorker uint32
		normalWorker   uint32
	}{
		{"valid_workers", 5, 10},
		{"zero_normal_worker", 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pool, err := NewStaticWorkerPool(tc.priorityWorker, tc.normalWorker)
			assert.NoError(t, err)
			assert.NotNil(t, pool)
			pool.Stop()
		})
	}
}

func TestNewStaticWorkerPool_Failure(t *testing.T) {
	pool, err := NewStaticWorkerPool(0, 0)
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestPool_GoRunsTaskToCompletion(t *testing.T) {
	pool, err := NewStaticWorkerPool(1, 4)
	require.NoError(t, err)
	defer pool.Stop()

	task := NewTask(func(ctx context.Context) (int32, error) {
		return 42, nil
	}, nil)

	require.NoError(t, pool.Go(context.Background(), task))
	result, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, int32(42), result)
	assert.Equal(t, StateDone, task.State())
}

func TestPool_SyncopSuspendsAndResumes(t *testing.T) {
	pool, err := NewStaticWorkerPool(0, 2)
	require.NoError(t, err)
	defer pool.Stop()

	cond := pool.NewCond()
	started := make(chan struct{})

	task := NewTask(func(ctx context.Context) (int32, error) {
		close(started)
		v, err := Syncop(ctx, cond, func(done func(result any, err error)) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				done(int32(7), nil)
			}()
		})
		if err != nil {
			return 0, err
		}
		return v.(int32), nil
	}, nil)

	require.NoError(t, pool.Go(context.Background(), task))
	<-started
	result, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, int32(7), result)
}

func TestPool_ShutdownInterruptsWaiters(t *testing.T) {
	pool, err := NewStaticWorkerPool(0, 2)
	require.NoError(t, err)

	cond := pool.NewCond()
	errCh := make(chan error, 1)

	task := NewTask(func(ctx context.Context) (int32, error) {
		_, err := Syncop(ctx, cond, func(done func(result any, err error)) {
			// Never calls done: simulates an op whose completion is
			// preempted by pool shutdown.
		})
		errCh <- err
		return 0, err
	}, nil)

	require.NoError(t, pool.Go(context.Background(), task))
	time.Sleep(5 * time.Millisecond)
	pool.Shutdown()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("task did not observe shutdown interruption")
	}
	pool.Drain()
}

func TestPool_InFlightTracksSubmittedTasks(t *testing.T) {
	pool, err := NewStaticWorkerPool(0, 2)
	require.NoError(t, err)
	defer pool.Stop()

	assert.Equal(t, int64(0), pool.InFlight())

	release := make(chan struct{})
	started := make(chan struct{})
	task := NewTask(func(ctx context.Context) (int32, error) {
		close(started)
		<-release
		return 0, nil
	}, nil)

	require.NoError(t, pool.Go(context.Background(), task))
	<-started
	assert.Equal(t, int64(1), pool.InFlight())

	close(release)
	_, err = task.Result()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return pool.InFlight() == 0
	}, time.Second, time.Millisecond)
}

func TestCond_WakeReleasesAllWaiters(t *testing.T) {
	pool, err := NewStaticWorkerPool(0, 4)
	require.NoError(t, err)
	defer pool.Stop()

	cond := pool.NewCond()
	const waiters = 5
	returned := make(chan error, waiters)

	for i := 0; i < waiters; i++ {
		go func() {
			returned <- Wait(context.Background(), cond)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	cond.Wake()

	for i := 0; i < waiters; i++ {
		select {
		case err := <-returned:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiter never woke")
		}
	}
}
