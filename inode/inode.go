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

import (
	"sync"
	"time"
)

// Type is the on-server object kind an Inode represents.
type Type int

const (
	TypeUnknown Type = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
	TypeBlockDev
	TypeCharDev
	TypeFIFO
	TypeSocket
)

// Iatt mirrors the subset of struct stat/iatt fields the core must
// stamp into application output buffers after a successful operation.
type Iatt struct {
	GFID  GFID
	Ino   uint64
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  int64
	Blocks int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// dentry is one child-name -> child-inode binding owned by a parent
// Inode, generalizing lookupCount's single-parent-name assumption to
// the spec's "set of dentries" (a server object may have multiple
// hardlinks).
type dentry struct {
	parent *Inode
	name   string
}

// Inode represents one on-server object bound to a specific Graph
// generation. External synchronization is required for field access;
// callers lock via the embedded mutex, matching fs/inode's
// "external synchronization required" discipline.
type Inode struct {
	sync.Mutex

	GFID       GFID
	Type       Type
	GraphID    uint64 // generation id of the Graph this inode is bound to
	dentries   []dentry
	children   map[string]*Inode // valid when Type == TypeDirectory: name -> child
	attr       Iatt
	NeedsLookup bool

	// Per-translator private state, keyed by translator name; analogous
	// to inode_ctx in the reference implementation.
	ctx map[string]any

	lookup lookupCount
}

// newInode allocates an inode bound to graphID, wired so that its
// lookup count reaching zero calls forget.
func newInode(gfid GFID, typ Type, graphID uint64, forget func()) *Inode {
	in := &Inode{
		GFID:    gfid,
		Type:    typ,
		GraphID: graphID,
		ctx:     make(map[string]any),
	}
	in.lookup.destroy = forget
	return in
}

// IncLookup increments the inode's reference count. Requires the inode
// table lock or the inode's own lock, per the caller's choice of
// external synchronization.
func (in *Inode) IncLookup() { in.lookup.Inc() }

// DecLookup decrements the inode's reference count by n, returning
// true if the count reached zero and the inode was forgotten.
func (in *Inode) DecLookup(n uint64) bool { return in.lookup.Dec(n) }

// SetCtx stores translator-private state under key.
func (in *Inode) SetCtx(key string, v any) { in.ctx[key] = v }

// Ctx retrieves translator-private state stored under key.
func (in *Inode) Ctx(key string) (any, bool) { v, ok := in.ctx[key]; return v, ok }

// Attr returns the cached attributes last stamped by a successful
// operation.
func (in *Inode) Attr() Iatt { return in.attr }

// SetAttr overwrites the cached attributes, used after a Lookup/Stat
// style op returns fresh ones.
func (in *Inode) SetAttr(a Iatt) { in.attr = a }

// linkDentry records that name under parent resolves to in. A second
// link under a different (parent, name) records an additional hard
// link; re-linking the same (parent, name) pair is a no-op. Reports
// whether a new binding was actually added.
func (in *Inode) linkDentry(parent *Inode, name string) bool {
	for _, d := range in.dentries {
		if d.parent == parent && d.name == name {
			return false
		}
	}
	in.dentries = append(in.dentries, dentry{parent: parent, name: name})
	return true
}

// unlinkDentry removes the (parent, name) binding, if present.
func (in *Inode) unlinkDentry(parent *Inode, name string) {
	for i, d := range in.dentries {
		if d.parent == parent && d.name == name {
			in.dentries = append(in.dentries[:i], in.dentries[i+1:]...)
			return
		}
	}
}

// lookupChild returns the child cached under name, if any.
func (in *Inode) lookupChild(name string) (*Inode, bool) {
	if in.children == nil {
		return nil, false
	}
	c, ok := in.children[name]
	return c, ok
}

// setChild records name -> child under a directory inode.
func (in *Inode) setChild(name string, child *Inode) {
	if in.children == nil {
		in.children = make(map[string]*Inode)
	}
	in.children[name] = child
}

// removeChild drops the name -> child binding under a directory inode.
func (in *Inode) removeChild(name string) {
	delete(in.children, name)
}

// ParentName returns the first recorded (parent, name) binding, used
// by the resolver for "." re-parenting (spec §4.5: re-parent loc to
// parent.parent with the dentry name that bound parent to its
// parent). An inode linked under several hard links returns whichever
// was recorded first; any would be resolution-consistent.
func (in *Inode) ParentName() (*Inode, string, bool) {
	if len(in.dentries) == 0 {
		return nil, "", false
	}
	d := in.dentries[0]
	return d.parent, d.name, true
}
