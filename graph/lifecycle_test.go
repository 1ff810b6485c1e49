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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranslator struct {
	name          string
	parentDownHit bool
	finiHit       bool
}

func (f *fakeTranslator) Name() string { return f.name }
func (f *fakeTranslator) Forward(ctx context.Context, frame Frame, op Op, args any) (Result, error) {
	if op == OpParentDown {
		f.parentDownHit = true
	}
	return Result{}, nil
}
func (f *fakeTranslator) Notify(event Event, data any) error { return nil }
func (f *fakeTranslator) Init() error                        { return nil }
func (f *fakeTranslator) Fini() error                         { f.finiHit = true; return nil }

type fakeLookuper struct{ fail bool }

func (f *fakeLookuper) FirstLookup(ctx context.Context, g *Graph) error {
	if f.fail {
		return errors.New("boom")
	}
	g.MarkUsed()
	return nil
}

type fakeFDMigrator struct {
	migrateCalls int
	cwdCalls     int
	sawOldGraph  *Graph
}

func (f *fakeFDMigrator) MigrateFDs(ctx context.Context, oldGraph, newGraph *Graph) error {
	f.migrateCalls++
	f.sawOldGraph = oldGraph
	return nil
}
func (f *fakeFDMigrator) RefreshCwd(ctx context.Context, newGraph *Graph) error {
	f.cwdCalls++
	return nil
}

func TestSet_PromoteWithNoPendingIsNoop(t *testing.T) {
	s := NewSet(nil)
	err := s.Promote(context.Background(), &fakeLookuper{}, &fakeFDMigrator{})
	require.NoError(t, err)
	assert.Nil(t, s.Active())
}

func TestSet_PromoteSucceeds(t *testing.T) {
	s := NewSet(nil)
	g1 := New(1, &fakeTranslator{name: "g1"})
	s.Stage(g1)
	assert.True(t, s.HasPending())

	fdm := &fakeFDMigrator{}
	require.NoError(t, s.Promote(context.Background(), &fakeLookuper{}, fdm))

	assert.Equal(t, g1, s.Active())
	assert.Equal(t, StateActive, g1.State())
	assert.Equal(t, 1, fdm.migrateCalls)
	assert.Equal(t, 1, fdm.cwdCalls)
	assert.Nil(t, fdm.sawOldGraph, "first-ever promotion has no prior active graph")
	assert.False(t, s.HasPending())
}

func TestSet_PromoteDemotesPreviousActiveToOld(t *testing.T) {
	s := NewSet(nil)
	g1 := New(1, &fakeTranslator{name: "g1"})
	s.Stage(g1)
	require.NoError(t, s.Promote(context.Background(), &fakeLookuper{}, &fakeFDMigrator{}))

	g2 := New(2, &fakeTranslator{name: "g2"})
	s.Stage(g2)
	fdm := &fakeFDMigrator{}
	require.NoError(t, s.Promote(context.Background(), &fakeLookuper{}, fdm))

	assert.Equal(t, g2, s.Active())
	assert.Equal(t, StateOld, g1.State())
	assert.True(t, g1.Switched())
	assert.Equal(t, g1, fdm.sawOldGraph, "FDMigrator must see the demoted graph to recover lock state from it")
}

func TestSet_PromoteFailsFirstLookupLeavesActiveUntouched(t *testing.T) {
	s := NewSet(nil)
	g1 := New(1, &fakeTranslator{name: "g1"})
	s.Stage(g1)
	require.NoError(t, s.Promote(context.Background(), &fakeLookuper{}, &fakeFDMigrator{}))

	g2 := New(2, &fakeTranslator{name: "g2"})
	s.Stage(g2)
	err := s.Promote(context.Background(), &fakeLookuper{fail: true}, &fakeFDMigrator{})
	require.Error(t, err)

	assert.Equal(t, g1, s.Active())
	assert.Equal(t, StateDead, g2.State())
}

func TestSet_ReapOldWaitsForWindsThenParentDown(t *testing.T) {
	s := NewSet(nil)
	g1 := New(1, &fakeTranslator{name: "g1"})
	s.Stage(g1)
	require.NoError(t, s.Promote(context.Background(), &fakeLookuper{}, &fakeFDMigrator{}))

	g1.Wind()
	g2 := New(2, &fakeTranslator{name: "g2"})
	s.Stage(g2)
	require.NoError(t, s.Promote(context.Background(), &fakeLookuper{}, &fakeFDMigrator{}))

	reaped, err := s.ReapOld(context.Background(), Frame{})
	require.NoError(t, err)
	assert.False(t, reaped, "winds still outstanding, must not reap yet")

	g1.Unwind()
	reaped, err = s.ReapOld(context.Background(), Frame{})
	require.NoError(t, err)
	assert.True(t, reaped)
	assert.Equal(t, StateDead, g1.State())
	assert.True(t, g1.Top.(*fakeTranslator).parentDownHit)
	assert.True(t, g1.Top.(*fakeTranslator).finiHit)
}
