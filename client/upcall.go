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

package client

import (
	"context"
	"sync"

	"github.com/distfs/govfs/common"
	"github.com/distfs/govfs/inode"
	"github.com/distfs/govfs/synctask"
)

// UpcallMask is a bitmask of upcall event classes an application
// subscribes to (spec §6 "upcall_register(mask, cb, data)"; recognized
// bits are InodeInvalidate, RecallLease, Any).
type UpcallMask uint32

const (
	UpcallInodeInvalidate UpcallMask = 1 << iota
	UpcallRecallLease
	UpcallAny UpcallMask = ^UpcallMask(0)
)

// UpcallEvent names the server-pushed notification class.
type UpcallEvent int

const (
	EventInodeInvalidate UpcallEvent = iota
	EventRecallLease
)

func (e UpcallEvent) mask() UpcallMask {
	switch e {
	case EventInodeInvalidate:
		return UpcallInodeInvalidate
	case EventRecallLease:
		return UpcallRecallLease
	default:
		return 0
	}
}

// Upcall is one decoded server-pushed notification (spec §4.8), queued
// under Fs.upcall_mutex until a drain task delivers it.
type Upcall struct {
	Event UpcallEvent
	GFID  inode.GFID
	// LeaseID identifies which lease a RecallLease event targets; zero
	// for InodeInvalidate.
	LeaseID [16]byte
}

// UpcallCallback is invoked once per matching Upcall, outside the
// upcall mutex, with the Object the GFID resolved to (newly created if
// none existed but the active graph's table holds the GFID's inode;
// nil if the table does not hold it either) and the caller-supplied
// opaque data pointer from UpcallRegister.
type UpcallCallback func(u Upcall, obj *Object, data any)

type upcallSub struct {
	mask UpcallMask
	cb   UpcallCallback
	data any
}

// upcallState is Fs's upcall subsystem: a mutex-guarded pending list
// (spec's Fs.upcall_list) plus the current subscription table,
// modeled on gcsproxy/listing_proxy.go's pattern of appending
// server-observed changes under a dedicated mutex for a later drain
// pass, generalized from "new GCS objects/subdirectories" to "upcall
// entries".
type upcallState struct {
	mu      sync.Mutex
	pending common.Queue[Upcall]
	subs    []upcallSub
}

func (u *upcallState) init() {
	u.pending = common.NewLinkedListQueue[Upcall]()
}

// UpcallRegister subscribes cb to event classes named by mask (spec
// §6 "upcall_register(mask, cb, data)"). Returns a token usable with
// UpcallUnregister.
func (fs *Fs) UpcallRegister(mask UpcallMask, cb UpcallCallback, data any) int {
	fs.upcall.mu.Lock()
	defer fs.upcall.mu.Unlock()
	fs.upcall.subs = append(fs.upcall.subs, upcallSub{mask: mask, cb: cb, data: data})
	return len(fs.upcall.subs) - 1
}

// UpcallUnregister drops the subscription returned by UpcallRegister.
func (fs *Fs) UpcallUnregister(token int) {
	fs.upcall.mu.Lock()
	defer fs.upcall.mu.Unlock()
	if token < 0 || token >= len(fs.upcall.subs) {
		return
	}
	fs.upcall.subs[token].cb = nil
}

// DeliverUpcall is the entry point a network/transport layer calls
// once it has decoded a server-pushed notification into an Upcall
// (spec §4.8: "The poller thread receives an encoded upcall; it
// decodes it into an Upcall entry, appends it under Fs.upcall_mutex to
// Fs.upcall_list, and schedules a cooperative task to drain the
// list"). Scoped out of this module's wire-level transport (spec §1
// non-goals), DeliverUpcall is the seam a real poller would call
// through.
func (fs *Fs) DeliverUpcall(ctx context.Context, u Upcall) error {
	fs.upcall.mu.Lock()
	fs.upcall.pending.Push(u)
	fs.upcall.mu.Unlock()

	task := synctask.NewTask(func(taskCtx context.Context) (int32, error) {
		fs.drainUpcalls(taskCtx)
		return 0, nil
	}, nil)
	return fs.pool.Go(ctx, task)
}

// drainUpcalls pops every pending entry under the upcall mutex,
// resolves each to an Object (registering a fresh one if no Object
// exists but the active graph's table holds the GFID's inode, and
// passing nil otherwise), and invokes matching callbacks outside the
// mutex, per spec §4.8's drain protocol.
func (fs *Fs) drainUpcalls(ctx context.Context) {
	var batch []Upcall
	fs.upcall.mu.Lock()
	for !fs.upcall.pending.IsEmpty() {
		batch = append(batch, fs.upcall.pending.Pop())
	}
	subs := append([]upcallSub(nil), fs.upcall.subs...)
	fs.upcall.mu.Unlock()

	for _, u := range batch {
		var in *inode.Inode
		if g := fs.graphs.Active(); g != nil {
			in, _ = g.Table.Get(u.GFID)
		}
		objs := fs.objects.lookup(u.GFID, in)

		for _, sub := range subs {
			if sub.cb == nil || sub.mask&u.Event.mask() == 0 {
				continue
			}
			if len(objs) == 0 {
				sub.cb(u, nil, sub.data)
				continue
			}
			for _, obj := range objs {
				sub.cb(u, obj, sub.data)
			}
		}
	}
}
