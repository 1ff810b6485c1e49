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
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool is the fixed-size scheduler for cooperative tasks: a priority
// lane (graph migration, upcall delivery) and a normal lane (POSIX
// fops), each bounded independently, matching
// internal/workerpool.NewStaticWorkerPool's (priorityWorkers,
// normalWorkers uint32) split. Unlike the teacher's pool, which hands
// each submitted function a bare goroutine slot, Pool additionally
// threads a *Task through the goroutine's context so Wait/Wake can
// identify the suspending caller.
type Pool struct {
	priority *semaphore.Weighted
	normal   *semaphore.Weighted

	shuttingDown atomic.Bool
	shutdown     chan struct{}
	closeOnce    sync.Once

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewStaticWorkerPool creates a Pool with priorityWorkers concurrent
// priority-lane slots and normalWorkers concurrent normal-lane slots.
// At least one of the two must be non-zero.
func NewStaticWorkerPool(priorityWorkers, normalWorkers uint32) (*Pool, error) {
	if priorityWorkers == 0 && normalWorkers == 0 {
		return nil, fmt.Errorf("synctask: at least one of priorityWorkers, normalWorkers must be non-zero")
	}
	p := &Pool{shutdown: make(chan struct{})}
	if priorityWorkers > 0 {
		p.priority = semaphore.NewWeighted(int64(priorityWorkers))
	}
	if normalWorkers > 0 {
		p.normal = semaphore.NewWeighted(int64(normalWorkers))
	}
	return p, nil
}

// Priority submits a task to the bounded priority lane, blocking until
// a slot is free or ctx is canceled. Used for graph migration and
// upcall-drain tasks, which must not starve behind a backlog of
// ordinary POSIX fops.
func (p *Pool) Priority(ctx context.Context, t *Task) error {
	return p.submit(ctx, p.priority, t)
}

// Go submits a task to the normal lane, blocking until a slot is free
// or ctx is canceled. This is the path ordinary "syncop" helpers use.
func (p *Pool) Go(ctx context.Context, t *Task) error {
	return p.submit(ctx, p.normal, t)
}

func (p *Pool) submit(ctx context.Context, sem *semaphore.Weighted, t *Task) error {
	if p.shuttingDown.Load() {
		return ErrInterrupted
	}
	if sem == nil {
		return fmt.Errorf("synctask: pool has no workers for this lane")
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	t.pool = p
	p.wg.Add(1)
	p.inFlight.Add(1)
	go func() {
		defer sem.Release(1)
		defer p.wg.Done()
		defer p.inFlight.Add(-1)
		t.run(WithTask(ctx, t))
	}()
	return nil
}

// InFlight reports the number of tasks currently submitted and not yet
// finished, across both lanes (spec §2.5 statedump "task queue depth").
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// NewCond creates a suspension point bound to this pool, so that pool
// shutdown wakes every task waiting on it.
func (p *Pool) NewCond() *Cond { return newCond(p) }

// Shutdown sets the pool's interrupt flag and wakes every Wait call in
// progress; per the spec, in-flight network operations continue to
// completion, but the task observes Wait returning ErrInterrupted
// instead of its signal. Shutdown does not wait for running tasks to
// finish; call Wait (on the pool, via Drain) for that.
func (p *Pool) Shutdown() {
	p.shuttingDown.Store(true)
	p.closeOnce.Do(func() { close(p.shutdown) })
}

// Drain blocks until every task submitted via Go/Priority has
// completed running. Intended for fini()-style teardown once
// Shutdown has been called and no new tasks will be submitted.
func (p *Pool) Drain() { p.wg.Wait() }

// Stop is an alias for Shutdown followed by Drain, matching the
// teacher pool's single-call Stop() cleanup idiom used by callers that
// don't need to separate "stop accepting" from "wait for quiescence".
func (p *Pool) Stop() {
	p.Shutdown()
	p.Drain()
}
