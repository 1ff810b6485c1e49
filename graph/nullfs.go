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

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/distfs/govfs/inode"
)

// nullfsEntry is one file or directory in NullFS's in-memory tree.
type nullfsEntry struct {
	gfid     inode.GFID
	typ      inode.Type
	attr     inode.Iatt
	target   string // symlink target
	children map[string]*nullfsEntry
}

// NullFS is a minimal in-memory Translator: no leaf xlator
// (replication/distribution/erasure-coding brick fan-out) logic, just
// enough of the forward-path contract to answer lookups and stats
// against a fixed tree built at construction time. It is the default
// bottom-of-stack placeholder named in spec §1's non-goals ("no leaf
// translator implementations beyond the capability interface the core
// requires") and doubles as the translator double used throughout this
// module's tests.
type NullFS struct {
	mu   sync.Mutex
	root *nullfsEntry
}

// NewNullFS builds a NullFS rooted at an empty directory.
func NewNullFS() *NullFS {
	return &NullFS{
		root: &nullfsEntry{
			gfid:     inode.RootGFID,
			typ:      inode.TypeDirectory,
			attr:     inode.Iatt{GFID: inode.RootGFID, Mode: 0755, Nlink: 2},
			children: map[string]*nullfsEntry{},
		},
	}
}

// Mkdir adds an in-memory directory at parent/name, for test setup.
func (n *NullFS) Mkdir(parentGFID inode.GFID, name string) (inode.GFID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	parent, ok := n.find(n.root, parentGFID)
	if !ok {
		return inode.GFID{}, fmt.Errorf("nullfs: unknown parent %s", parentGFID)
	}
	gfid := inode.NewGFID()
	parent.children[name] = &nullfsEntry{
		gfid:     gfid,
		typ:      inode.TypeDirectory,
		attr:     inode.Iatt{GFID: gfid, Mode: 0755, Nlink: 2, Mtime: time.Now()},
		children: map[string]*nullfsEntry{},
	}
	return gfid, nil
}

// Touch adds an in-memory regular file at parent/name with the given
// size, for test setup.
func (n *NullFS) Touch(parentGFID inode.GFID, name string, size int64) (inode.GFID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	parent, ok := n.find(n.root, parentGFID)
	if !ok {
		return inode.GFID{}, fmt.Errorf("nullfs: unknown parent %s", parentGFID)
	}
	gfid := inode.NewGFID()
	parent.children[name] = &nullfsEntry{
		gfid: gfid,
		typ:  inode.TypeRegular,
		attr: inode.Iatt{GFID: gfid, Mode: 0644, Nlink: 1, Size: size, Mtime: time.Now()},
	}
	return gfid, nil
}

// Symlink adds an in-memory symlink at parent/name pointing at target,
// for test setup.
func (n *NullFS) Symlink(parentGFID inode.GFID, name, target string) (inode.GFID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	parent, ok := n.find(n.root, parentGFID)
	if !ok {
		return inode.GFID{}, fmt.Errorf("nullfs: unknown parent %s", parentGFID)
	}
	gfid := inode.NewGFID()
	parent.children[name] = &nullfsEntry{
		gfid:   gfid,
		typ:    inode.TypeSymlink,
		attr:   inode.Iatt{GFID: gfid, Mode: 0777, Nlink: 1, Size: int64(len(target)), Mtime: time.Now()},
		target: target,
	}
	return gfid, nil
}

func (n *NullFS) find(from *nullfsEntry, gfid inode.GFID) (*nullfsEntry, bool) {
	if from.gfid == gfid {
		return from, true
	}
	for _, c := range from.children {
		if found, ok := n.find(c, gfid); ok {
			return found, true
		}
	}
	return nil, false
}

func (n *NullFS) Name() string { return "nullfs" }

func (n *NullFS) Forward(ctx context.Context, frame Frame, op Op, args any) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch op {
	case OpLookup:
		req, ok := args.(LookupArgs)
		if !ok {
			return Result{}, fmt.Errorf("nullfs: bad lookup args")
		}
		parent, ok := n.find(n.root, req.Parent)
		if !ok || parent.typ != inode.TypeDirectory {
			return Result{}, inode.ErrNotFound
		}
		child, ok := parent.children[req.Name]
		if !ok {
			return Result{}, inode.ErrNotFound
		}
		return Result{Value: LookupReply{GFID: child.gfid, Type: child.typ, Attr: child.attr}}, nil

	case OpStat:
		gfid, ok := args.(inode.GFID)
		if !ok {
			return Result{}, fmt.Errorf("nullfs: bad stat args")
		}
		entry, ok := n.find(n.root, gfid)
		if !ok {
			return Result{}, inode.ErrNotFound
		}
		return Result{Value: StatReply{Type: entry.typ, Attr: entry.attr}}, nil

	case OpReadLink:
		gfid, ok := args.(inode.GFID)
		if !ok {
			return Result{}, fmt.Errorf("nullfs: bad readlink args")
		}
		entry, ok := n.find(n.root, gfid)
		if !ok || entry.typ != inode.TypeSymlink {
			return Result{}, inode.ErrNotFound
		}
		return Result{Value: entry.target}, nil

	case OpParentDown:
		return Result{}, nil

	default:
		return Result{}, fmt.Errorf("nullfs: unsupported op %q", op)
	}
}

func (n *NullFS) Notify(event Event, data any) error { return nil }
func (n *NullFS) Init() error                        { return nil }
func (n *NullFS) Fini() error                         { return nil }

// LookupArgs/LookupReply are the args/value shapes NullFS and
// client.Fs agree on for OpLookup; a real brick-RPC translator would
// decode/encode these across the wire instead.
type LookupArgs struct {
	Parent inode.GFID
	Name   string
}

type LookupReply struct {
	GFID inode.GFID
	Type inode.Type
	Attr inode.Iatt
}

// StatReply is the args/value shape NullFS and client.Fs agree on for
// OpStat (a nameless Lookup by GFID, spec §4.5/§4.7).
type StatReply struct {
	Type inode.Type
	Attr inode.Iatt
}
