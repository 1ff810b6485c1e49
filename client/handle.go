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

	"github.com/distfs/govfs/inode"
)

// Object lets an application hold a (GFID, Inode) pair across
// operations, surviving graph switches (spec §4.7). Grounded on
// fs/fs.go's handle table (map[fuseops.HandleID]interface{}),
// generalized from an opaque handle ID to a GFID-addressed struct
// since the target has no kernel-assigned handle numbering to
// preserve.
type Object struct {
	mu    sync.Mutex
	gfid  inode.GFID
	inode *inode.Inode
}

// objectTable is the process-wide registry of outstanding Objects,
// keyed by GFID so upcall delivery can map a server-reported GFID
// back to the handle(s) an application is holding on it.
type objectTable struct {
	mu     sync.Mutex
	byGFID map[inode.GFID][]*Object
}

func newObjectTable() *objectTable {
	return &objectTable{byGFID: make(map[inode.GFID][]*Object)}
}

func (t *objectTable) register(o *Object) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byGFID[o.gfid] = append(t.byGFID[o.gfid], o)
}

func (t *objectTable) unregister(o *Object) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.byGFID[o.gfid]
	for i, v := range list {
		if v == o {
			t.byGFID[o.gfid] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(t.byGFID[o.gfid]) == 0 {
		delete(t.byGFID, o.gfid)
	}
}

// lookup returns the Objects currently registered against gfid, or
// creates a fresh one bound to in if none exist yet (spec §4.8:
// "mapping GFIDs to Object handles, creating new ones if the inode is
// known").
func (t *objectTable) lookup(gfid inode.GFID, in *inode.Inode) []*Object {
	t.mu.Lock()
	existing := t.byGFID[gfid]
	t.mu.Unlock()
	if len(existing) > 0 {
		return existing
	}
	if in == nil {
		return nil
	}
	o := &Object{gfid: gfid, inode: in}
	t.register(o)
	return []*Object{o}
}

// newObject wraps in as an Object the application can hold past the
// call that produced it, and registers it so upcalls against its GFID
// can find it later.
func (fs *Fs) newObject(in *inode.Inode) *Object {
	o := &Object{gfid: in.GFID, inode: in}
	fs.objects.register(o)
	return o
}

// Close does nothing: dropping o from the upcall-addressable object
// table is done by Fs.ReleaseObject. Neither affects the underlying
// inode's lookup count; that is managed by whatever FD or dentry link
// produced it.
func (o *Object) Close() {
	// unregister is performed by the owning Fs via ReleaseObject, since
	// Object itself holds no back-reference to its table.
}

// ReleaseObject drops o from fs's object table.
func (fs *Fs) ReleaseObject(o *Object) {
	fs.objects.unregister(o)
}

// GFID returns the identity o refers to; stable across graph
// generations even as ResolveInode's returned *inode.Inode changes.
func (o *Object) GFID() inode.GFID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gfid
}

// ResolveInode returns an Inode bound to the currently active graph
// generation (spec §4.7 "resolve_inode"):
//   - Fast path: o.inode is already bound to the active graph.
//   - Slow path: a nameless Lookup by GFID refreshes o.inode and always
//     replaces it; a concurrent delete of the object is not checked for.
//     A lookup error is returned to the caller as is.
func (fs *Fs) ResolveInode(ctx context.Context, o *Object) (*inode.Inode, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	o.mu.Lock()
	cur := o.inode
	o.mu.Unlock()

	if cur != nil && cur.GraphID == g.Generation {
		return cur, nil
	}

	typ, attr, err := fs.LookupByGFID(ctx, o.GFID())
	if err != nil {
		return nil, err
	}
	fresh, _ := g.Table.GetOrCreate(o.GFID(), typ)
	fresh.Lock()
	fresh.Type = typ
	fresh.SetAttr(attr)
	fresh.Unlock()

	o.mu.Lock()
	o.inode = fresh
	o.mu.Unlock()
	return fresh, nil
}

// HResolveSymlink implements spec §4.7's "h_resolve_symlink": if o's
// inode is a symlink, follows it via ReadLink and re-resolves the
// target against the active graph's root, returning a new Object (or
// nil if the target does not exist).
func (fs *Fs) HResolveSymlink(ctx context.Context, o *Object) (*Object, error) {
	in, err := fs.ResolveInode(ctx, o)
	if err != nil {
		return nil, err
	}
	if in.Type != inode.TypeSymlink {
		return o, nil
	}

	target, err := fs.ReadLink(ctx, o.GFID())
	if err != nil {
		return nil, err
	}

	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	loc, _, err := fs.resolver(g).Resolve(ctx, g.Table.Root(), target, true)
	if err != nil {
		return nil, err
	}
	if loc.Inode == nil {
		return nil, nil
	}
	return fs.newObject(loc.Inode), nil
}

// HLookupAt resolves path relative to base (or the root if base is
// nil) and returns an Object for the result, per spec §4.7's handle
// construction entry points (the Go analog of h_lookupat/
// glfs_h_lookupat).
func (fs *Fs) HLookupAt(ctx context.Context, base *Object, path string, follow bool) (*Object, error) {
	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	cwd := g.Table.Root()
	if base != nil {
		in, err := fs.ResolveInode(ctx, base)
		if err != nil {
			return nil, err
		}
		cwd = in
	}

	loc, _, err := fs.resolver(g).Resolve(ctx, cwd, path, follow)
	if err != nil {
		return nil, err
	}
	if loc.Inode == nil {
		return nil, inode.ErrNotFound
	}
	return fs.newObject(loc.Inode), nil
}

// HExtractHandle serializes o's GFID into the wire form an
// application can persist and later pass to HCreateFromHandle (spec
// §6 glfs_h_extract_handle/glfs_h_create_from_handle analog); the
// GFID's 16 raw bytes are the entire wire representation.
func (o *Object) HExtractHandle() []byte {
	g := o.GFID()
	return g[:]
}

// HCreateFromHandle rebuilds an Object from bytes previously produced
// by HExtractHandle, validating the referenced GFID still resolves on
// the active graph.
func (fs *Fs) HCreateFromHandle(ctx context.Context, handle []byte) (*Object, error) {
	gfid, err := inode.GFIDFromBytes(handle)
	if err != nil {
		return nil, err
	}
	typ, attr, err := fs.LookupByGFID(ctx, gfid)
	if err != nil {
		return nil, err
	}

	g, release, err := fs.activeSubvol(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	in, _ := g.Table.GetOrCreate(gfid, typ)
	in.Lock()
	in.Type = typ
	in.SetAttr(attr)
	in.Unlock()
	return fs.newObject(in), nil
}
