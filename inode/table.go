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

// Table is one Graph generation's inode table: every Inode known to
// that graph, indexed by GFID. Spec: "Inode tables have their own
// internal locking and may be called with no mutex held" -- Table
// holds its own mutex independent of any Fs-level context mutex.
type Table struct {
	mu      sync.Mutex
	byGFID  map[GFID]*Inode
	graphID uint64
}

// NewTable creates an empty inode table for the given graph
// generation id, pre-seeded with the root inode (GFID all-zero-plus-1,
// per spec §6's GFID wire contract).
func NewTable(graphID uint64) *Table {
	t := &Table{byGFID: make(map[GFID]*Inode), graphID: graphID}
	root := newInode(RootGFID, TypeDirectory, graphID, func() {})
	root.IncLookup() // the root is never forgotten
	t.byGFID[RootGFID] = root
	return t
}

// Root returns the table's root inode.
func (t *Table) Root() *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byGFID[RootGFID]
}

// Get returns the inode known by gfid, if any, without affecting its
// lookup count.
func (t *Table) Get(gfid GFID) (*Inode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byGFID[gfid]
	return in, ok
}

// GetOrCreate returns the existing inode for gfid, or creates one of
// the given type if none exists yet (spec §4.5: "if miss, allocate a
// fresh inode with a newly generated target GFID"). The caller must
// still IncLookup if it intends to hold a reference.
func (t *Table) GetOrCreate(gfid GFID, typ Type) (in *Inode, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if in, ok := t.byGFID[gfid]; ok {
		return in, false
	}
	in = newInode(gfid, typ, t.graphID, func() { t.forget(gfid) })
	t.byGFID[gfid] = in
	return in, true
}

// forget removes gfid from the table; called by an Inode's
// lookupCount once its count reaches zero. gfid == RootGFID is never
// removed since the root's lookup count is never decremented to zero
// in ordinary operation.
func (t *Table) forget(gfid GFID) {
	if gfid == RootGFID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byGFID, gfid)
}

// Link records that name under parent resolves to child, and bumps
// child's lookup count once on behalf of the new dentry (mirrors the
// teacher's explicit-dir link discipline of pairing a dentry with a
// lookup reference).
func (t *Table) Link(parent, child *Inode, name string) {
	child.Lock()
	if child.linkDentry(parent, name) {
		child.IncLookup()
	}
	child.Unlock()

	parent.Lock()
	parent.setChild(name, child)
	parent.Unlock()
}

// Unlink removes the (parent, name) dentry, decrementing child's
// lookup count by one; if that drops the count to zero, child is
// forgotten and purged from the table.
func (t *Table) Unlink(parent, child *Inode, name string) (forgotten bool) {
	child.Lock()
	child.unlinkDentry(parent, name)
	forgotten = child.DecLookup(1)
	child.Unlock()

	parent.Lock()
	parent.removeChild(name)
	parent.Unlock()
	return
}

// Rename moves a dentry (child and each parent are locked in turn,
// not together): unlinks (oldParent, oldName) and
// links (newParent, newName) to the same child, per spec §4.6's
// rename contract ("old_parent.unlink(old_name);
// new_parent.link(new_name, inode)"). If newName already names a
// different inode under newParent in the table, the caller is
// responsible for having already unlinked/forgotten it (rename-over
// semantics happen at the translator layer, not here).
func (t *Table) Rename(oldParent, newParent, child *Inode, oldName, newName string) {
	child.Lock()
	child.unlinkDentry(oldParent, oldName)
	child.linkDentry(newParent, newName)
	child.Unlock()

	oldParent.Lock()
	oldParent.removeChild(oldName)
	oldParent.Unlock()
	newParent.Lock()
	newParent.setChild(newName, child)
	newParent.Unlock()
}

// Len reports how many inodes the table currently holds (statedump
// use).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byGFID)
}
