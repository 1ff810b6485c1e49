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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookuper is an in-memory Lookuper backing a small fixed directory
// tree, for exercising the resolver without a real translator graph.
type fakeLookuper struct {
	byParentName map[GFID]map[string]GFID
	types        map[GFID]Type
	attrs        map[GFID]Iatt
	symlinks     map[GFID]string
	staleOnce    map[GFID]bool // if true, the next LookupByGFID call fails StaleHandle once
}

func newFakeLookuper() *fakeLookuper {
	return &fakeLookuper{
		byParentName: map[GFID]map[string]GFID{},
		types:        map[GFID]Type{},
		attrs:        map[GFID]Iatt{},
		symlinks:     map[GFID]string{},
		staleOnce:    map[GFID]bool{},
	}
}

func (f *fakeLookuper) addChild(parent GFID, name string, gfid GFID, typ Type) {
	if f.byParentName[parent] == nil {
		f.byParentName[parent] = map[string]GFID{}
	}
	f.byParentName[parent][name] = gfid
	f.types[gfid] = typ
	f.attrs[gfid] = Iatt{GFID: gfid}
}

func (f *fakeLookuper) LookupByName(ctx context.Context, parent GFID, name string) (GFID, Type, Iatt, error) {
	children, ok := f.byParentName[parent]
	if !ok {
		return GFID{}, 0, Iatt{}, ErrLookupMiss
	}
	gfid, ok := children[name]
	if !ok {
		return GFID{}, 0, Iatt{}, ErrLookupMiss
	}
	return gfid, f.types[gfid], f.attrs[gfid], nil
}

func (f *fakeLookuper) LookupByGFID(ctx context.Context, gfid GFID) (Type, Iatt, error) {
	if f.staleOnce[gfid] {
		f.staleOnce[gfid] = false
		return 0, Iatt{}, ErrStaleHandle
	}
	typ, ok := f.types[gfid]
	if !ok && gfid != RootGFID {
		return 0, Iatt{}, ErrLookupMiss
	}
	return typ, f.attrs[gfid], nil
}

func (f *fakeLookuper) ReadLink(ctx context.Context, gfid GFID) (string, error) {
	target, ok := f.symlinks[gfid]
	if !ok {
		return "", ErrLookupMiss
	}
	return target, nil
}

func gfidFor(n byte) GFID {
	var g GFID
	g[15] = n
	return g
}

func TestResolver_ResolvesNestedPath(t *testing.T) {
	table := NewTable(1)
	lu := newFakeLookuper()

	dirA := gfidFor(2)
	fileB := gfidFor(3)
	lu.addChild(RootGFID, "a", dirA, TypeDirectory)
	lu.addChild(dirA, "b", fileB, TypeRegular)

	r := NewResolver(table, lu)
	loc, attr, err := r.Resolve(context.Background(), table.Root(), "/a/b", false)
	require.NoError(t, err)
	require.NotNil(t, loc.Inode)
	assert.Equal(t, fileB, loc.GFID)
	assert.Equal(t, fileB, attr.GFID)
	assert.Equal(t, "b", loc.Name)
}

func TestResolver_DotDotAtRootStaysAtRoot(t *testing.T) {
	table := NewTable(1)
	lu := newFakeLookuper()
	r := NewResolver(table, lu)

	loc, _, err := r.Resolve(context.Background(), table.Root(), "/..", false)
	require.NoError(t, err)
	assert.Equal(t, RootGFID, loc.GFID)
}

func TestResolver_MissingBasenameReturnsParentOnly(t *testing.T) {
	table := NewTable(1)
	lu := newFakeLookuper()
	r := NewResolver(table, lu)

	loc, _, err := r.Resolve(context.Background(), table.Root(), "/missing", false)
	require.NoError(t, err)
	assert.Nil(t, loc.Inode)
	assert.Equal(t, "missing", loc.Name)
	assert.NotNil(t, loc.Parent)
}

func TestResolver_MissingIntermediateComponentFails(t *testing.T) {
	table := NewTable(1)
	lu := newFakeLookuper()
	r := NewResolver(table, lu)

	_, _, err := r.Resolve(context.Background(), table.Root(), "/nope/child", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_FollowsSymlink(t *testing.T) {
	table := NewTable(1)
	lu := newFakeLookuper()

	target := gfidFor(4)
	link := gfidFor(5)
	lu.addChild(RootGFID, "real", target, TypeRegular)
	lu.addChild(RootGFID, "link", link, TypeSymlink)
	lu.symlinks[link] = "/real"

	r := NewResolver(table, lu)
	loc, _, err := r.Resolve(context.Background(), table.Root(), "/link", true)
	require.NoError(t, err)
	assert.Equal(t, target, loc.GFID)
}

func TestResolver_StaleHandleRetriesThenSucceeds(t *testing.T) {
	table := NewTable(1)
	lu := newFakeLookuper()
	dirA := gfidFor(2)
	lu.addChild(RootGFID, "a", dirA, TypeDirectory)
	lu.staleOnce[dirA] = true

	r := NewResolver(table, lu)
	// Resolve /a/. which issues a LookupByGFID(dirA) that fails once with
	// ErrStaleHandle before DefaultRevalCount retries succeed.
	_, _, err := r.Resolve(context.Background(), table.Root(), "/a/.", false)
	require.NoError(t, err)
}

func TestTable_LinkUnlinkForgets(t *testing.T) {
	table := NewTable(1)
	root := table.Root()
	child, created := table.GetOrCreate(gfidFor(9), TypeRegular)
	require.True(t, created)

	table.Link(root, child, "x")
	assert.Equal(t, 2, table.Len())

	forgotten := table.Unlink(root, child, "x")
	assert.True(t, forgotten)
	assert.Equal(t, 1, table.Len())

	_, stillThere := table.Get(gfidFor(9))
	assert.False(t, stillThere)
}
