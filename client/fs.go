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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/distfs/govfs/cfg"
	"github.com/distfs/govfs/common"
	"github.com/distfs/govfs/ec"
	"github.com/distfs/govfs/graph"
	"github.com/distfs/govfs/inode"
	"github.com/distfs/govfs/internal/logger"
	"github.com/distfs/govfs/synctask"
)

// Fs is the process-wide handle to one mounted volume (spec §3
// "Filesystem context"). Grounded on fs/fs.go's fileSystem struct:
// same three-section layout (Dependencies / Constant data / Mutable
// state) and GUARDED_BY(mu) annotation discipline, generalized from
// "one GCS bucket" to "one translator graph generation set".
type Fs struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock  timeutil.Clock
	pool   *synctask.Pool
	codec  *ec.Codec
	metric common.MetricHandle
	log    *slog.Logger

	/////////////////////////
	// Constant data
	/////////////////////////

	volname string
	cfg     cfg.GraphConfig

	/////////////////////////
	// Mutable state
	/////////////////////////

	// mu protects every field below: graph slots (via graphs), the
	// open FD list, the upcall list, the wait queue, pin_refcnt, and
	// the init/ret/err triple (spec §5 "Locking discipline"). It must
	// never be held across a network operation -- helpers that need to
	// call one while logically holding state drop mu, perform the op,
	// and reacquire it.
	mu sync.Mutex

	// graphs holds the active/next/migration-in-progress/old graph
	// generations. Its own internal mutex is independent of mu;
	// Set.Promote is called with mu NOT held, since first-lookup is a
	// network operation.
	graphs *graph.Set

	cond *synctask.Cond // signaled on init-complete and on migration-complete

	// GUARDED_BY(mu)
	initialized bool
	// GUARDED_BY(mu)
	initErr error

	// GUARDED_BY(mu)
	openFDs map[*inode.Fd]struct{}

	// GUARDED_BY(mu)
	cwd *inode.Inode

	// pinRefcnt guards fini() from racing a concurrent active-graph
	// access; SPEC_FULL.md §4's "glfs_active_subvol locking dance".
	// GUARDED_BY(mu)
	pinRefcnt int64
	// GUARDED_BY(mu)
	finalizing bool

	upcall upcallState

	// objects is the GFID-addressed registry of outstanding Objects,
	// consulted by upcall delivery to map a server-reported GFID back
	// to the handle(s) an application is holding (spec §4.8).
	objects *objectTable

	shutdownOnce sync.Once
}

// New creates an Fs for volname, wired to pool for cooperative task
// scheduling, codec for stripe encode/decode, and clk for testable
// timing (spec §3 "created by a new(volname) constructor"). The
// filesystem is not yet usable until Init completes.
func New(volname string, gcfg cfg.GraphConfig, pool *synctask.Pool, codec *ec.Codec, metric common.MetricHandle, clk timeutil.Clock, log *slog.Logger) *Fs {
	if log == nil {
		log = slog.Default()
	}
	graphSet := graph.NewSet(log)
	fs := &Fs{
		clock:   clk,
		pool:    pool,
		codec:   codec,
		metric:  metric,
		log:     log,
		volname: volname,
		cfg:     gcfg,
		graphs:  graphSet,
		openFDs: make(map[*inode.Fd]struct{}),
		objects: newObjectTable(),
	}
	fs.cond = pool.NewCond()
	fs.upcall.init()
	return fs
}

// Init promotes the first graph generation, blocking on its first
// lookup, and marks it used (child-up) once that succeeds. The first
// generation must already have been staged into fs's graph set
// (typically by a graph.Poller's first PollOnce) before Init is
// called; if none is staged, Init returns an error at once instead of
// waiting for one.
func (fs *Fs) Init(ctx context.Context) error {
	if err := fs.graphs.Promote(ctx, fs, fs); err != nil {
		fs.mu.Lock()
		fs.initErr = err
		fs.mu.Unlock()
		return err
	}

	active := fs.graphs.Active()
	if active == nil {
		err := fmt.Errorf("client: init: no graph became active")
		fs.mu.Lock()
		fs.initErr = err
		fs.mu.Unlock()
		return err
	}
	active.MarkUsed()

	fs.mu.Lock()
	fs.initialized = true
	fs.cwd = active.Table.Root()
	fs.mu.Unlock()
	fs.cond.Wake()
	return nil
}

// Graphs returns the Set fs promotes staged generations from. A caller
// running its own graph.Poller against this Fs (rather than letting Fs
// fetch its own volfile) passes this Set to graph.NewPoller so
// Poller.PollOnce/Run stage directly into the generations Init and
// activeSubvol will promote.
func (fs *Fs) Graphs() *graph.Set {
	return fs.graphs
}

// Fini tears down fs: it drains all in-flight tasks and issues a
// synchronous parent-down to the active graph before freeing pools
// (spec §3). Fini blocks until no operation holds a reference to the
// active graph (pinRefcnt reaches zero). It neither waits for nor
// tears down a draining old graph.
func (fs *Fs) Fini(ctx context.Context) error {
	fs.mu.Lock()
	fs.finalizing = true
	for fs.pinRefcnt > 0 {
		fs.mu.Unlock()
		time.Sleep(time.Millisecond)
		fs.mu.Lock()
	}
	active := fs.graphs.Active()
	fs.mu.Unlock()

	fs.shutdownOnce.Do(func() { fs.pool.Shutdown() })
	fs.pool.Drain()

	if active == nil {
		return nil
	}
	frame := frameFromContext(ctx)
	if _, err := active.Top.Forward(ctx, frame, graph.OpParentDown, nil); err != nil {
		return fmt.Errorf("client: fini: parent-down failed: %w", err)
	}
	return active.Top.Fini()
}

// activeSubvol returns a pinned reference to the currently active
// graph, running any pending migration first (spec §4.6 step 2:
// "Acquire a reference on the active graph via active_subvol(), which
// internally performs any pending migration"). The caller must call
// the returned release function exactly once, regardless of the
// operation's outcome.
func (fs *Fs) activeSubvol(ctx context.Context) (*graph.Graph, func(), error) {
	fs.mu.Lock()
	if !fs.initialized {
		fs.mu.Unlock()
		return nil, nil, ErrNotInitialized
	}
	fs.mu.Unlock()

	if fs.graphs.HasPending() {
		start := fs.monotonicNow()
		if err := fs.graphs.Promote(ctx, fs, fs); err != nil {
			fs.log.Warn("client: migration aborted", "err", err)
		} else {
			fs.metric.MigrationDuration(ctx, float64(fs.monotonicNow().Sub(start).Milliseconds()), nil)
			fs.cond.Wake()
		}
	}

	g := fs.graphs.Active()
	if g == nil {
		return nil, nil, ErrNotInitialized
	}

	fs.mu.Lock()
	fs.pinRefcnt++
	fs.mu.Unlock()
	g.Wind()

	release := func() {
		fs.mu.Lock()
		fs.pinRefcnt--
		fs.mu.Unlock()

		if g.Unwind() == 0 && g.State() == graph.StateOld {
			if reaped, err := fs.graphs.ReapOld(context.Background(), frameFromContext(ctx)); err != nil {
				fs.log.Warn("client: old graph teardown failed", "err", err)
			} else if reaped {
				fs.log.Info("client: old graph reaped")
			}
		}
	}
	return g, release, nil
}

func (fs *Fs) monotonicNow() time.Time { return fs.clock.Now() }

// FirstLookup implements graph.Lookuper: a Lookup on g's root with the
// canonical all-zero-plus-1 GFID (spec §4.4 step 3).
func (fs *Fs) FirstLookup(ctx context.Context, g *graph.Graph) error {
	frame := frameFromContext(ctx)
	_, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpLookup, graph.LookupArgs{Parent: inode.RootGFID, Name: "."})
		done(r, err)
	})
	return err
}

// LookupByName implements inode.Lookuper against the currently active
// graph's top translator.
func (fs *Fs) LookupByName(ctx context.Context, parent inode.GFID, name string) (inode.GFID, inode.Type, inode.Iatt, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return inode.GFID{}, 0, inode.Iatt{}, err
	}
	defer release()

	frame := frameFromContext(ctx)
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpLookup, graph.LookupArgs{Parent: parent, Name: name})
		done(r, err)
	})
	if err != nil {
		if errors.Is(err, inode.ErrNotFound) {
			return inode.GFID{}, 0, inode.Iatt{}, inode.ErrLookupMiss
		}
		return inode.GFID{}, 0, inode.Iatt{}, fs.translateStaleHandle(g, err)
	}
	reply := res.(graph.LookupReply)
	return reply.GFID, reply.Type, reply.Attr, nil
}

// LookupByGFID implements inode.Lookuper's nameless refresh lookup.
func (fs *Fs) LookupByGFID(ctx context.Context, gfid inode.GFID) (inode.Type, inode.Iatt, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return 0, inode.Iatt{}, err
	}
	defer release()

	frame := frameFromContext(ctx)
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpStat, gfid)
		done(r, err)
	})
	if err != nil {
		return 0, inode.Iatt{}, fs.translateStaleHandle(g, err)
	}
	reply := res.(graph.StatReply)
	return reply.Type, reply.Attr, nil
}

// ReadLink implements inode.Lookuper's symlink-target fetch.
func (fs *Fs) ReadLink(ctx context.Context, gfid inode.GFID) (string, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	frame := frameFromContext(ctx)
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpReadLink, gfid)
		done(r, err)
	})
	if err != nil {
		return "", fs.translateStaleHandle(g, err)
	}
	return res.(string), nil
}

// translateStaleHandle bumps the stale-handle retry metric whenever
// the graph reports inode.ErrStaleHandle, so graph-level retries stay
// observable (SPEC_FULL.md §3's "migration duration, stale-handle
// retry count" graph metric bullet), then passes the error through
// unchanged for the resolver's own retry loop to act on.
func (fs *Fs) translateStaleHandle(g *graph.Graph, err error) error {
	if errors.Is(err, inode.ErrStaleHandle) {
		fs.metric.StaleHandleRetryCount(context.Background(), 1, []common.MetricAttr{{Key: "generation", Value: fmt.Sprint(g.Generation)}})
		logger.DefaultCounters.IncStaleRetry()
	}
	return err
}

// resolver returns a resolver bound to the active graph's table. The
// caller already holds a pinned reference to g (via activeSubvol).
func (fs *Fs) resolver(g *graph.Graph) *inode.Resolver {
	return inode.NewResolver(g.Table, fs)
}

// Cwd returns the current working directory inode.
func (fs *Fs) Cwd() *inode.Inode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cwd
}

// Chdir changes the current working directory to the inode resolved
// at path.
func (fs *Fs) Chdir(ctx context.Context, path string) error {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return err
	}
	defer release()

	loc, _, err := fs.resolver(g).Resolve(ctx, fs.Cwd(), path, true)
	if err != nil {
		return err
	}
	if loc.Inode == nil || loc.Inode.Type != inode.TypeDirectory {
		return ErrNotDir
	}
	fs.mu.Lock()
	fs.cwd = loc.Inode
	fs.mu.Unlock()
	return nil
}
