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

	"golang.org/x/sys/unix"

	"github.com/distfs/govfs/graph"
	"github.com/distfs/govfs/inode"
	"github.com/distfs/govfs/synctask"
)

// Every POSIX-shaped entry point below follows the seven-step shape
// named in spec §4.6:
//   1. validate the context is initialized;
//   2. acquire a pinned reference to the active graph (activeSubvol);
//   3. resolve inputs to a Loc/Fd, migrating a stale FD on demand;
//   4. issue the op through Syncop;
//   5. StaleHandle is retried (up to inode.DefaultRevalCount) only
//      inside the resolver's lookups in step 3; an op issued in step 4
//      that fails with StaleHandle is not retried;
//   6. update the inode table on success;
//   7. release the graph reference (deferred via activeSubvol's
//      release closure).
// Grounded on fs/fs.go's per-FUSE-op handler methods (CreateFile,
// Unlink, ReadFile, WriteFile, OpenDir/ReadDir, ReadSymlink),
// generalized from FUSE op structs to direct Go return values since
// this module's application interface is POSIX-shaped, not a FUSE
// driver (spec §1 non-goals).

// Create implements spec §4.6's "create(path, flags, mode)": resolve
// with follow-symlink semantics, enforce O_EXCL if the basename
// exists, and issue Create or Open depending on whether it already
// does. Returns a new Fd bound to the active graph.
func (fs *Fs) Create(ctx context.Context, path string, flags int, mode uint32) (*inode.Fd, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	loc, _, err := fs.resolver(g).Resolve(ctx, fs.Cwd(), path, true)
	if errors.Is(err, inode.ErrLookupMiss) {
		loc.Inode = nil
	} else if err != nil {
		return nil, err
	}

	if loc.Inode != nil && flags&unix.O_EXCL != 0 {
		return nil, ErrExist
	}
	if loc.Parent == nil {
		return nil, ErrInvalid
	}

	frame := frameFromContext(ctx)
	var gfid inode.GFID
	var typ inode.Type
	var attr inode.Iatt

	if loc.Inode == nil {
		hint := inode.NewGFID()
		res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
			r, err := g.Top.Forward(ctx, frame, graph.OpCreate, graph.CreateArgs{
				Parent: loc.Parent.GFID, Name: loc.Name, Mode: mode, Flags: flags, GFIDHint: hint,
			})
			done(r, err)
		})
		if err != nil {
			return nil, err
		}
		reply := res.(graph.CreateReply)
		gfid, typ, attr = reply.GFID, reply.Type, reply.Attr
	} else {
		gfid, typ, attr = loc.Inode.GFID, loc.Inode.Type, loc.Inode.Attr()
		res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
			r, err := g.Top.Forward(ctx, frame, graph.OpOpen, graph.OpenArgs{GFID: gfid, Flags: flags})
			done(r, err)
		})
		if err != nil {
			return nil, err
		}
		_ = res
	}

	child, _ := g.Table.GetOrCreate(gfid, typ)
	child.Lock()
	child.Type = typ
	child.SetAttr(attr)
	child.Unlock()
	g.Table.Link(loc.Parent, child, loc.Name)

	fd := inode.NewFd(child, g.Generation, flags)
	fs.mu.Lock()
	fs.openFDs[fd] = struct{}{}
	fs.mu.Unlock()
	return fd, nil
}

// Rename implements spec §4.6's rename contract: resolve both sides,
// fail IsDir if exactly one side is a directory, then atomically
// update the dentry table.
func (fs *Fs) Rename(ctx context.Context, oldPath, newPath string) error {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return err
	}
	defer release()

	oldLoc, _, err := fs.resolver(g).Resolve(ctx, fs.Cwd(), oldPath, false)
	if err != nil {
		return err
	}
	if oldLoc.Inode == nil {
		return ErrInvalid
	}
	newLoc, _, err := fs.resolver(g).Resolve(ctx, fs.Cwd(), newPath, false)
	if err != nil && !errors.Is(err, inode.ErrLookupMiss) {
		return err
	}
	if newLoc.Inode != nil && (oldLoc.Inode.Type == inode.TypeDirectory) != (newLoc.Inode.Type == inode.TypeDirectory) {
		return ErrIsDir
	}

	frame := frameFromContext(ctx)
	_, err = synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpRename, graph.RenameArgs{
			OldParent: oldLoc.Parent.GFID, OldName: oldLoc.Name,
			NewParent: newLoc.Parent.GFID, NewName: newLoc.Name,
		})
		done(r, err)
	})
	if err != nil {
		return err
	}

	g.Table.Rename(oldLoc.Parent, newLoc.Parent, oldLoc.Inode, oldLoc.Name, newLoc.Name)
	return nil
}

// Unlink implements unlink/rmdir (spec §4.6): resolve, issue Unlink or
// Rmdir, and on success drop the dentry.
func (fs *Fs) Unlink(ctx context.Context, path string, dir bool) error {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return err
	}
	defer release()

	loc, _, err := fs.resolver(g).Resolve(ctx, fs.Cwd(), path, false)
	if err != nil {
		return err
	}
	if loc.Inode == nil {
		return ErrInvalid
	}

	op := graph.OpUnlink
	if dir {
		op = graph.OpRmdir
	}
	frame := frameFromContext(ctx)
	_, err = synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, op, graph.UnlinkArgs{Parent: loc.Parent.GFID, Name: loc.Name})
		done(r, err)
	})
	if err != nil {
		return err
	}
	g.Table.Unlink(loc.Parent, loc.Inode, loc.Name)
	return nil
}

// ReadV implements spec §4.6's readv: issue ReadV and advance the FD
// offset by the number of bytes actually returned.
func (fs *Fs) ReadV(ctx context.Context, fd *inode.Fd, size int) ([]byte, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := fs.migrateFDIfStale(ctx, fd, g); err != nil {
		return nil, err
	}

	frame := frameFromContext(ctx)
	off := fd.Offset()
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpReadV, graph.ReadVArgs{GFID: fd.Inode.GFID, Size: size, Offset: off})
		done(r, err)
	})
	if err != nil {
		return nil, err
	}
	data := res.([]byte)
	fd.Advance(int64(len(data)))
	return data, nil
}

// WriteV implements spec §4.6's writev: on a short write, advance by
// the requested size rather than the bytes actually accepted
// (spec: "matches legacy behavior").
func (fs *Fs) WriteV(ctx context.Context, fd *inode.Fd, data []byte) (int, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := fs.migrateFDIfStale(ctx, fd, g); err != nil {
		return 0, err
	}

	frame := frameFromContext(ctx)
	off := fd.Offset()
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpWriteV, graph.WriteVArgs{GFID: fd.Inode.GFID, Data: data, Offset: off})
		done(r, err)
	})
	if err != nil {
		return 0, err
	}
	reply := res.(graph.WriteVReply)
	fd.Advance(int64(len(data)))
	return reply.Written, nil
}

// ReadDirP implements spec §4.6's readdir/readdirp entry cache: serve
// from fd's cached page if offset matches, else refresh.
func (fs *Fs) ReadDirP(ctx context.Context, fd *inode.Fd, offset uint64) ([]inode.DirEntry, error) {
	cur := fd.DirCursor()
	if cur.Offset == offset && cur.Entries != nil {
		return cur.Entries, nil
	}

	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	frame := frameFromContext(ctx)
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpReadDirP, graph.ReadDirPArgs{GFID: fd.Inode.GFID, Offset: offset})
		done(r, err)
	})
	if err != nil {
		return nil, err
	}
	entries := res.([]inode.DirEntry)
	fd.SetDirCursor(inode.DirCursor{Offset: offset, Entries: entries})
	return entries, nil
}

// Lk implements spec §4.6's fcntl(F_SETLK|F_SETLKW): issue Lk and, on
// success, record the lock in the FD's local lock context so a future
// migration can reinject it via lockinfo.
func (fs *Fs) Lk(ctx context.Context, fd *inode.Fd, cmd int, lock inode.Lock) error {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return err
	}
	defer release()

	frame := frameFromContext(ctx)
	_, err = synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpLk, graph.LkArgs{GFID: fd.Inode.GFID, Cmd: cmd, Lock: lock})
		done(r, err)
	})
	if err != nil {
		return err
	}
	fd.AddLock(lock)
	return nil
}

// StatFs implements spec §4.6's statfs: resolve path, issue StatFs,
// pass struct statvfs unchanged.
func (fs *Fs) StatFs(ctx context.Context, path string) (graph.StatFs, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return graph.StatFs{}, err
	}
	defer release()

	loc, _, err := fs.resolver(g).Resolve(ctx, fs.Cwd(), path, true)
	if err != nil {
		return graph.StatFs{}, err
	}

	frame := frameFromContext(ctx)
	res, err := synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpStatFs, graph.StatFsArgs{GFID: loc.GFID})
		done(r, err)
	})
	if err != nil {
		return graph.StatFs{}, err
	}
	return res.(graph.StatFs), nil
}

// SetAttr implements chmod/chown/utimens and their wrappers, per spec
// §4.6's per-operation specifics (setattr/fsetattr).
func (fs *Fs) SetAttr(ctx context.Context, gfid inode.GFID, attr inode.Iatt, validMask uint32) error {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return err
	}
	defer release()

	frame := frameFromContext(ctx)
	_, err = synctask.Syncop(ctx, fs.cond, func(done func(result any, err error)) {
		r, err := g.Top.Forward(ctx, frame, graph.OpSetAttr, graph.SetAttrArgs{GFID: gfid, Attr: attr, ValidMask: validMask})
		done(r, err)
	})
	if err != nil {
		return err
	}
	if in, ok := g.Table.Get(gfid); ok {
		in.Lock()
		in.SetAttr(attr)
		in.Unlock()
	}
	return nil
}

// Close releases fd: it drops it from the open-FD table used by
// migration's fan-out and marks it closed so any in-flight async op
// observing the stale state does not act on it (spec §3 "a state enum
// ... used to tolerate application-initiated close racing with
// in-flight async operations").
func (fs *Fs) Close(fd *inode.Fd) {
	fd.Close()
	fs.mu.Lock()
	delete(fs.openFDs, fd)
	fs.mu.Unlock()
}

// migrateFDIfStale performs an on-demand per-FD migration (spec
// §4.6 step 3: "If the FD's graph is older than the active graph,
// perform a per-FD migration, but for one FD on demand") for the one
// FD a caller is about to operate on, rather than waiting for the
// next full Promote to sweep every open FD.
func (fs *Fs) migrateFDIfStale(ctx context.Context, fd *inode.Fd, active *graph.Graph) error {
	if fd.GraphID == active.Generation {
		return nil
	}
	return fs.migrateOneFD(ctx, fd, fs.graphs.Old(), active)
}

// asyncResult is the completion payload delivered to an async
// operation's callback (spec §4.6 "the completion callback translates
// the task's return value into op_ret/op_errno").
type asyncResult struct {
	N    int
	Data []byte
	Err  error
}

// AsyncCallback receives an async operation's outcome and the opaque
// data pointer the caller supplied at submission time.
type AsyncCallback func(n int, data []byte, err error, userData any)

// readAsync schedules a ReadV as a cooperative task and invokes cb on
// completion (spec §4.6 "Async operations"), rather than blocking the
// calling goroutine the way ReadV does via Syncop.
func (fs *Fs) readAsync(ctx context.Context, fd *inode.Fd, size int, cb AsyncCallback, userData any) error {
	task := synctask.NewTask(func(taskCtx context.Context) (int32, error) {
		data, err := fs.ReadV(taskCtx, fd, size)
		res := asyncResult{Data: data, Err: err}
		if err == nil {
			res.N = len(data)
		}
		cb(res.N, res.Data, res.Err, userData)
		if err != nil {
			return -1, err
		}
		return int32(res.N), nil
	}, nil)
	return fs.pool.Go(ctx, task)
}

// ReadAsync is the exported entry point for read_async (spec §4.6).
func (fs *Fs) ReadAsync(ctx context.Context, fd *inode.Fd, size int, cb AsyncCallback, userData any) error {
	return fs.readAsync(ctx, fd, size, cb, userData)
}

// WriteAsync is the exported entry point for write_async.
func (fs *Fs) WriteAsync(ctx context.Context, fd *inode.Fd, data []byte, cb AsyncCallback, userData any) error {
	task := synctask.NewTask(func(taskCtx context.Context) (int32, error) {
		n, err := fs.WriteV(taskCtx, fd, data)
		cb(n, nil, err, userData)
		if err != nil {
			return -1, err
		}
		return int32(n), nil
	}, nil)
	return fs.pool.Go(ctx, task)
}

// FsyncAsync is the exported entry point for fsync_async/
// fdatasync_async.
func (fs *Fs) FsyncAsync(ctx context.Context, fd *inode.Fd, cb AsyncCallback, userData any) error {
	task := synctask.NewTask(func(taskCtx context.Context) (int32, error) {
		g, release, err := fs.activeSubvol(taskCtx)
		if err != nil {
			cb(0, nil, err, userData)
			return -1, err
		}
		defer release()
		frame := frameFromContext(taskCtx)
		_, err = synctask.Syncop(taskCtx, fs.cond, func(done func(result any, err error)) {
			r, err := g.Top.Forward(taskCtx, frame, graph.OpFsync, fd.Inode.GFID)
			done(r, err)
		})
		cb(0, nil, err, userData)
		if err != nil {
			return -1, err
		}
		return 0, nil
	}, nil)
	return fs.pool.Go(ctx, task)
}

// FallocateAsync is the exported entry point for
// fallocate_async/discard_async/zerofill_async, distinguished by op.
func (fs *Fs) FallocateAsync(ctx context.Context, fd *inode.Fd, op graph.Op, mode uint32, offset, length int64, cb AsyncCallback, userData any) error {
	task := synctask.NewTask(func(taskCtx context.Context) (int32, error) {
		g, release, err := fs.activeSubvol(taskCtx)
		if err != nil {
			cb(0, nil, err, userData)
			return -1, err
		}
		defer release()
		frame := frameFromContext(taskCtx)
		_, err = synctask.Syncop(taskCtx, fs.cond, func(done func(result any, err error)) {
			r, err := g.Top.Forward(taskCtx, frame, op, graph.FallocateArgs{GFID: fd.Inode.GFID, Mode: mode, Offset: offset, Length: length})
			done(r, err)
		})
		cb(0, nil, err, userData)
		if err != nil {
			return -1, err
		}
		return 0, nil
	}, nil)
	return fs.pool.Go(ctx, task)
}

// FtruncateAsync is the exported entry point for ftruncate_async.
func (fs *Fs) FtruncateAsync(ctx context.Context, fd *inode.Fd, size int64, cb AsyncCallback, userData any) error {
	task := synctask.NewTask(func(taskCtx context.Context) (int32, error) {
		g, release, err := fs.activeSubvol(taskCtx)
		if err != nil {
			cb(0, nil, err, userData)
			return -1, err
		}
		defer release()
		frame := frameFromContext(taskCtx)
		_, err = synctask.Syncop(taskCtx, fs.cond, func(done func(result any, err error)) {
			r, err := g.Top.Forward(taskCtx, frame, graph.OpTruncate, graph.SetAttrArgs{GFID: fd.Inode.GFID, Attr: inode.Iatt{Size: size}, ValidMask: unix.STATX_SIZE})
			done(r, err)
		})
		cb(0, nil, err, userData)
		if err != nil {
			return -1, err
		}
		return 0, nil
	}, nil)
	return fs.pool.Go(ctx, task)
}

