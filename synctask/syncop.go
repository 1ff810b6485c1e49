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
	"sync"
)

// AsyncOp issues an asynchronous operation into the translator graph
// and must arrange for done to be invoked exactly once, from any
// goroutine, when the operation completes.
type AsyncOp func(done func(result any, err error))

// Syncop wraps an AsyncOp into a call that blocks the current task (or,
// from a non-task caller, the current goroutine) until the operation's
// callback fires, returning its result. This is the "synchronous
// operation helper" the spec describes: issue the op, mark the task
// waiting, suspend on cond; the op's completion callback stores the
// result and wakes cond, and the worker resumes exactly here with the
// stored result.
//
// cond may be shared by unrelated concurrent waiters (e.g. every
// Syncop call against one Fs uses the same per-context cond), so a
// Wake does not necessarily mean this call's op has completed; Syncop
// loops on Wait until its own result has actually been stored.
//
// The translator layer is responsible for timeouts (a registered timer
// firing the completion callback with a Timeout error); Syncop itself
// never times out on its own.
func Syncop(ctx context.Context, cond *Cond, op AsyncOp) (any, error) {
	var mu sync.Mutex
	var result any
	var opErr error
	done := false

	// Subscribe before issuing the op: op's callback may run synchronously
	// or on another goroutine immediately, and it calls cond.Wake() on
	// completion -- subscribing first guarantees that Wake always finds
	// this waiter already registered, closing the lost-wakeup window that
	// would otherwise exist between "issue op" and "start waiting".
	ch, err := cond.subscribe()
	if err != nil {
		return nil, err
	}

	op(func(r any, err error) {
		mu.Lock()
		result, opErr, done = r, err, true
		mu.Unlock()
		cond.Wake()
	})

	for {
		mu.Lock()
		if done {
			mu.Unlock()
			return result, opErr
		}
		mu.Unlock()

		if t := CurrentTask(ctx); t != nil {
			t.state.Store(int32(StateWaiting))
		}
		waitErr := waitOnChannel(ctx, cond, ch)
		if t := CurrentTask(ctx); t != nil {
			t.state.Store(int32(StateRunning))
		}

		mu.Lock()
		if done {
			mu.Unlock()
			return result, opErr
		}
		mu.Unlock()
		if waitErr != nil {
			return nil, waitErr
		}
		// Spurious wake from an unrelated waiter on a shared cond: the
		// channel has already delivered its single buffered signal and
		// will never fire again, so resubscribe before waiting again.
		ch, err = cond.subscribe()
		if err != nil {
			return nil, err
		}
	}
}
