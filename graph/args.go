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

package graph

import "github.com/distfs/govfs/inode"

// This file names the args/result shapes the client package and any
// Translator (NullFS included) agree on for Forward calls, per spec
// §4.6's "Issue the synchronous op through a syncop helper". The
// graph layer itself never interprets these -- Result.Value is opaque
// to it -- but fixing the shapes here means every Translator
// implementation, real or test double, speaks the same contract.

// OpenArgs requests an Open (file) or OpenDir (directory) on gfid.
type OpenArgs struct {
	GFID  inode.GFID
	Flags int
}

// CreateArgs requests a Create of name under Parent, or Mkdir/Mknod/
// Symlink depending on which Op it accompanies. GFIDHint is the
// gfid-req the resolver generated for the new name (spec §6: "GFID
// hint xattr key on create: literal gfid-req").
type CreateArgs struct {
	Parent   inode.GFID
	Name     string
	Mode     uint32
	Flags    int
	Target   string // symlink target, only for OpSymlink
	GFIDHint inode.GFID
}

// CreateReply is the new entry's identity and attributes.
type CreateReply struct {
	GFID inode.GFID
	Type inode.Type
	Attr inode.Iatt
}

// UnlinkArgs names a dentry to remove (unlink or rmdir).
type UnlinkArgs struct {
	Parent inode.GFID
	Name   string
}

// RenameArgs names a dentry move (spec §4.6 rename contract).
type RenameArgs struct {
	OldParent inode.GFID
	OldName   string
	NewParent inode.GFID
	NewName   string
}

// ReadVArgs requests size bytes starting at Offset.
type ReadVArgs struct {
	GFID   inode.GFID
	Size   int
	Offset int64
}

// WriteVArgs writes Data starting at Offset.
type WriteVArgs struct {
	GFID   inode.GFID
	Data   []byte
	Offset int64
}

// WriteVReply reports how many bytes were actually written.
type WriteVReply struct {
	Written int
}

// SetAttrArgs requests an attribute change; ValidMask names which
// fields of Attr the caller actually set (the unix.STATX_* bit
// layout, reused rather than inventing a parallel one).
type SetAttrArgs struct {
	GFID      inode.GFID
	Attr      inode.Iatt
	ValidMask uint32
}

// ReadDirPArgs requests a page of directory entries starting at
// Offset.
type ReadDirPArgs struct {
	GFID   inode.GFID
	Offset uint64
}

// LkArgs requests a byte-range lock operation (spec: "issue Lk; on
// success, record the lock in the FD's local lock context").
type LkArgs struct {
	GFID inode.GFID
	Cmd  int
	Lock inode.Lock
}

// XattrArgs sets an extended attribute (also used to carry the
// lockinfo blob during FD migration, spec §4.4 step 4c).
type XattrArgs struct {
	GFID  inode.GFID
	Key   string
	Value []byte
}

// XattrGetArgs requests an extended attribute's value.
type XattrGetArgs struct {
	GFID inode.GFID
	Key  string
}

// RemoveXattrArgs names an extended attribute to remove.
type RemoveXattrArgs struct {
	GFID inode.GFID
	Key  string
}

// StatFs mirrors the subset of struct statvfs the core passes through
// unchanged (spec §4.6: "pass struct statvfs unchanged").
type StatFs struct {
	Blocks, BFree, BAvail uint64
	Files, FFree          uint64
	BSize, Frsize         uint64
	NameMax               uint64
}

// StatFsArgs requests volume-wide statistics, scoped by gfid since a
// real deployment may shard statvfs by the subvolume a path resolves
// into.
type StatFsArgs struct {
	GFID inode.GFID
}

// FallocateArgs covers fallocate/discard/zerofill, which share the
// same (gfid, mode, offset, length) shape; Op distinguishes which one
// a given call names.
type FallocateArgs struct {
	GFID   inode.GFID
	Mode   uint32
	Offset int64
	Length int64
}
