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
	"context"
	"errors"
	"strings"
)

// Lookuper is the graph-facing dependency the resolver issues network
// lookups through; implemented by the graph/client layer so that this
// package stays free of any dependency on the translator graph itself.
type Lookuper interface {
	// LookupByName resolves (parent, name) against the server, returning
	// the child's identity. A miss that the server genuinely reports as
	// "no such entry" must be distinguished by the implementation from a
	// transient/stale error; see ErrLookupMiss below.
	LookupByName(ctx context.Context, parent GFID, name string) (GFID, Type, Iatt, error)

	// LookupByGFID performs a nameless lookup used to refresh an
	// inode's attributes or to validate it still exists on the current
	// graph generation.
	LookupByGFID(ctx context.Context, gfid GFID) (Type, Iatt, error)

	// ReadLink returns a symlink's target path.
	ReadLink(ctx context.Context, gfid GFID) (string, error)
}

// ErrLookupMiss is returned by a Lookuper to report a definitive "this
// name does not exist" (as opposed to ErrStaleHandle, which is
// retryable).
var ErrLookupMiss = errors.New("inode: lookup miss")

// Resolver maps pathnames to Loc+Iatt pairs against one Graph
// generation's inode Table, per spec §4.5.
type Resolver struct {
	table *Table
	lu    Lookuper
}

// NewResolver builds a Resolver over table, issuing lookups through lu.
func NewResolver(table *Table, lu Lookuper) *Resolver {
	return &Resolver{table: table, lu: lu}
}

// Resolve maps path (absolute, or relative to cwd if not starting with
// "/") into a Loc and the target's attributes. follow requests that a
// trailing symlink be followed to its target rather than returned as
// itself (lstat vs. stat semantics).
func (r *Resolver) Resolve(ctx context.Context, cwd *Inode, path string, follow bool) (Loc, Iatt, error) {
	return r.resolveDepth(ctx, cwd, path, follow, 0)
}

func (r *Resolver) resolveDepth(ctx context.Context, cwd *Inode, path string, follow bool, depth int) (Loc, Iatt, error) {
	if depth > MaxSymlinkDepth {
		return Loc{}, Iatt{}, ErrTooManySymlinks
	}

	parent := cwd
	if strings.HasPrefix(path, "/") {
		parent = r.table.Root()
	}
	components := splitPath(path)
	if len(components) == 0 {
		// "" or "/": resolves to the starting directory itself.
		return Loc{Inode: parent, GFID: parent.GFID}, parent.Attr(), nil
	}

	var loc Loc
	var attr Iatt
	for i, name := range components {
		last := i == len(components)-1
		var err error
		loc, attr, err = r.step(ctx, parent, name)
		if err != nil {
			return Loc{}, Iatt{}, err
		}

		if loc.Inode == nil {
			// Intermediate component missing: only tolerated on the final
			// component (the basename may legitimately not exist yet, e.g.
			// for create()).
			if !last {
				return Loc{}, Iatt{}, ErrNotFound
			}
			return loc, attr, nil
		}

		if loc.Inode.Type == TypeSymlink && (!last || follow) {
			target, err := r.lu.ReadLink(ctx, loc.Inode.GFID)
			if err != nil {
				return Loc{}, Iatt{}, err
			}
			symParent := parent
			if strings.HasPrefix(target, "/") {
				symParent = r.table.Root()
			}
			rest := strings.Join(components[i+1:], "/")
			joined := target
			if rest != "" {
				joined = target + "/" + rest
			}
			return r.resolveDepth(ctx, symParent, joined, follow, depth+1)
		}

		if !last {
			if loc.Inode.Type != TypeDirectory {
				return Loc{}, Iatt{}, ErrNotDir
			}
			parent = loc.Inode
		}
	}

	return loc, attr, nil
}

// step resolves a single pathname component against parent, handling
// "." and ".." per spec §4.5 and retrying ErrStaleHandle up to
// DefaultRevalCount times.
func (r *Resolver) step(ctx context.Context, parent *Inode, name string) (Loc, Iatt, error) {
	switch name {
	case ".":
		if parent.GFID.IsRoot() {
			return Loc{Inode: parent, GFID: parent.GFID}, parent.Attr(), nil
		}
		gp, dname, ok := parent.ParentName()
		loc := Loc{Inode: parent, GFID: parent.GFID}
		if ok {
			loc.Parent = gp
			loc.Name = dname
		}
		typ, attr, err := r.lookupWithRetry(ctx, func() (Type, Iatt, error) {
			return r.lu.LookupByGFID(ctx, parent.GFID)
		})
		if err != nil {
			return Loc{}, Iatt{}, err
		}
		parent.Lock()
		parent.Type = typ
		parent.SetAttr(attr)
		parent.Unlock()
		return loc, attr, nil

	case "..":
		gp, _, ok := parent.ParentName()
		if !ok {
			gp = r.table.Root()
		}
		return Loc{Inode: gp, GFID: gp.GFID}, gp.Attr(), nil

	default:
		parent.Lock()
		existing, hit := parent.lookupChild(name)
		parent.Unlock()
		if hit {
			return Loc{Parent: parent, Name: name, Inode: existing, GFID: existing.GFID}, existing.Attr(), nil
		}

		gfid, typ, attr, err := r.lookupByNameWithRetry(ctx, parent.GFID, name)
		if errors.Is(err, ErrLookupMiss) {
			return Loc{Parent: parent, Name: name}, Iatt{}, nil
		}
		if err != nil {
			return Loc{}, Iatt{}, err
		}

		child, _ := r.table.GetOrCreate(gfid, typ)
		r.table.Link(parent, child, name)
		child.Lock()
		child.Type = typ
		child.SetAttr(attr)
		child.Unlock()
		return Loc{Parent: parent, Name: name, Inode: child, GFID: gfid}, attr, nil
	}
}

func (r *Resolver) lookupWithRetry(ctx context.Context, fn func() (Type, Iatt, error)) (Type, Iatt, error) {
	var lastErr error
	for attempt := 0; attempt <= DefaultRevalCount; attempt++ {
		typ, attr, err := fn()
		if err == nil {
			return typ, attr, nil
		}
		lastErr = err
		if !errors.Is(err, ErrStaleHandle) {
			return Type(0), Iatt{}, err
		}
	}
	return Type(0), Iatt{}, lastErr
}

func (r *Resolver) lookupByNameWithRetry(ctx context.Context, parent GFID, name string) (GFID, Type, Iatt, error) {
	var lastErr error
	for attempt := 0; attempt <= DefaultRevalCount; attempt++ {
		gfid, typ, attr, err := r.lu.LookupByName(ctx, parent, name)
		if err == nil {
			return gfid, typ, attr, nil
		}
		lastErr = err
		if !errors.Is(err, ErrStaleHandle) {
			return GFID{}, Type(0), Iatt{}, err
		}
	}
	return GFID{}, Type(0), Iatt{}, lastErr
}

func splitPath(path string) []string {
	var out []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
