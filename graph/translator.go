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

// Package graph implements the translator graph: construction from a
// volfile, the Staged/Next/MigrationInProgress/Active/Old/Dead
// lifecycle, and the inode/FD migration protocol run when a new graph
// is promoted to active.
package graph

import "context"

// Event identifies a notification passed between translators and the
// graph (child-up, child-down, parent-down).
type Event int

const (
	EventChildUp Event = iota
	EventChildDown
	EventParentDown
)

// Op identifies a forward-path fop a Translator processes; the core
// only needs to name operations, not interpret their arguments, since
// translator internals are an explicit non-goal of this module.
type Op string

// Common op names issued by the POSIX pipeline and resolver.
const (
	OpLookup    Op = "lookup"
	OpCreate    Op = "create"
	OpOpen      Op = "open"
	OpOpenDir   Op = "opendir"
	OpReadV     Op = "readv"
	OpWriteV    Op = "writev"
	OpFlush     Op = "flush"
	OpFsync     Op = "fsync"
	OpStat      Op = "stat"
	OpSetAttr   Op = "setattr"
	OpUnlink    Op = "unlink"
	OpRmdir     Op = "rmdir"
	OpMkdir     Op = "mkdir"
	OpMknod     Op = "mknod"
	OpRename    Op = "rename"
	OpLink      Op = "link"
	OpSymlink   Op = "symlink"
	OpReadLink  Op = "readlink"
	OpGetXattr  Op = "getxattr"
	OpSetXattr  Op = "setxattr"
	OpRemoveXattr Op = "removexattr"
	OpStatFs    Op = "statfs"
	OpLk        Op = "lk"
	OpReadDirP  Op = "readdirp"
	OpTruncate  Op = "truncate"
	OpFallocate Op = "fallocate"
	OpDiscard   Op = "discard"
	OpZerofill  Op = "zerofill"
	OpParentDown Op = "parent-down"
)

// Frame carries the per-call identity the spec's supplemental section
// describes threading through every forward call: the calling
// application thread's fsuid/fsgid/fsgroups/pid, set via the
// setfsuid-family entry points.
type Frame struct {
	UID    uint32
	GID    uint32
	Groups []uint32
	PID    int32
	LeaseID [16]byte
}

// Result is the generic outcome of a translator forward call. Concrete
// callers type-assert Value to the shape they expect (an Iatt, a byte
// count, an xattr blob, ...); the graph layer itself never interprets
// it, matching the spec's framing of "op_ret/op_errno" plus opaque
// payload.
type Result struct {
	Value any
	Errno error
}

// Translator is the capability set every node in the graph must
// implement: descend the graph on the forward path, receive
// lifecycle/topology events, and manage init/teardown of its private
// state. No translator in this module traps forget/release/
// releasedir events.
type Translator interface {
	Name() string
	Forward(ctx context.Context, frame Frame, op Op, args any) (Result, error)
	Notify(event Event, data any) error
	Init() error
	Fini() error
}
