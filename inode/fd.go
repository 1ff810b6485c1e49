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

package inode

import "sync"

// FdState is an Fd's lifecycle state, used to tolerate
// application-initiated close racing with in-flight async operations.
type FdState int

const (
	FdInit FdState = iota
	FdOpen
	FdClosed
)

// Lock is one byte-range lock the client believes it holds on an Fd,
// the unit recovered across a graph migration via the lockinfo xattr
// (spec §4.4 step 4c).
type Lock struct {
	Start  int64
	Length int64 // 0 means "to EOF"
	Type   int16 // F_RDLCK / F_WRLCK, matching fcntl's flock.l_type encoding
	Owner  uint64
}

// DirCursor is a readdir positioning cursor: the offset to resume
// from and a cached page of entries starting there.
type DirCursor struct {
	Offset  uint64
	Entries []DirEntry
}

// DirEntry is one cached readdir result.
type DirEntry struct {
	Name   string
	GFID   GFID
	Offset uint64
	Iatt   Iatt // populated only for readdirplus
}

// Fd represents one open handle, bound to a specific Graph generation
// through Inode. Byte-range locks, the lease id, and the local lock
// context are exactly the state the spec requires be carried across a
// migration (§3 "File descriptor (Fd)", §4.4 step 4).
type Fd struct {
	mu sync.Mutex

	Inode    *Inode
	GraphID  uint64
	Flags    int
	offset   int64
	locks    []Lock
	LeaseID  [16]byte
	State    FdState
	ctx      map[string]any
	dirCur   DirCursor
}

// NewFd creates an Fd bound to in on the given graph generation, with
// the given open flags.
func NewFd(in *Inode, graphID uint64, flags int) *Fd {
	return &Fd{Inode: in, GraphID: graphID, Flags: flags, State: FdOpen, ctx: make(map[string]any)}
}

// Offset returns the current sequential read/write offset.
func (fd *Fd) Offset() int64 {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.offset
}

// Advance moves the offset forward by n bytes (spec §4.6: "advance the
// FD offset by the number of bytes actually copied", except writev's
// documented legacy short-write exception, applied by the caller
// choosing n).
func (fd *Fd) Advance(n int64) {
	fd.mu.Lock()
	fd.offset += n
	fd.mu.Unlock()
}

// Seek sets the offset directly, used by seekdir/lseek-style entry
// points.
func (fd *Fd) Seek(off int64) {
	fd.mu.Lock()
	fd.offset = off
	fd.mu.Unlock()
}

// AddLock records a byte-range lock the client now believes it holds.
func (fd *Fd) AddLock(l Lock) {
	fd.mu.Lock()
	fd.locks = append(fd.locks, l)
	fd.mu.Unlock()
}

// RemoveLock drops a previously recorded lock matching owner+range, on
// an unlock.
func (fd *Fd) RemoveLock(owner uint64, start, length int64) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	for i, l := range fd.locks {
		if l.Owner == owner && l.Start == start && l.Length == length {
			fd.locks = append(fd.locks[:i], fd.locks[i+1:]...)
			return
		}
	}
}

// Locks returns a snapshot of the locks this Fd believes it holds,
// used to serialize the lockinfo xattr during migration.
func (fd *Fd) Locks() []Lock {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	out := make([]Lock, len(fd.locks))
	copy(out, fd.locks)
	return out
}

// SetLocks replaces the lock set wholesale, used when injecting
// lockinfo recovered from the old graph into a freshly migrated Fd.
func (fd *Fd) SetLocks(locks []Lock) {
	fd.mu.Lock()
	fd.locks = append([]Lock(nil), locks...)
	fd.mu.Unlock()
}

// SetCtx stores translator-private state under key.
func (fd *Fd) SetCtx(key string, v any) {
	fd.mu.Lock()
	fd.ctx[key] = v
	fd.mu.Unlock()
}

// Ctx retrieves translator-private state stored under key.
func (fd *Fd) Ctx(key string) (any, bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	v, ok := fd.ctx[key]
	return v, ok
}

// DirCursor returns the current readdir cursor.
func (fd *Fd) DirCursor() DirCursor {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.dirCur
}

// SetDirCursor replaces the readdir cursor, refreshed on a cache miss.
func (fd *Fd) SetDirCursor(c DirCursor) {
	fd.mu.Lock()
	fd.dirCur = c
	fd.mu.Unlock()
}

// Close transitions the Fd to FdClosed. Safe to call concurrently with
// an in-flight async operation observing the prior state; callers
// check State before acting on a completion to tolerate the race the
// spec calls out ("a state enum ... used to tolerate
// application-initiated close racing with in-flight async
// operations").
func (fd *Fd) Close() {
	fd.mu.Lock()
	fd.State = FdClosed
	fd.mu.Unlock()
}
