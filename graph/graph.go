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
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/distfs/govfs/inode"
)

// State is one of the six states a Graph moves through over its
// lifetime (spec §4.4).
type State int

const (
	StateStaged State = iota
	StateNext
	StateMigrationInProgress
	StateActive
	StateOld
	StateDead
)

func (s State) String() string {
	switch s {
	case StateStaged:
		return "staged"
	case StateNext:
		return "next"
	case StateMigrationInProgress:
		return "migration_in_progress"
	case StateActive:
		return "active"
	case StateOld:
		return "old"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Graph is a rooted translator graph built from one volfile
// generation. Essential attributes per spec §3: a UUID, a monotonic
// generation id, a top translator, an inode table, a used flag, a
// switched flag, and a winds counter.
type Graph struct {
	UUID       uuid.UUID
	Generation uint64
	Top        Translator
	Table      *inode.Table

	state    atomic.Int32
	used     atomic.Bool
	switched atomic.Bool
	winds    atomic.Int64
}

// New builds a Graph rooted at top, for the given monotonic generation
// id, staged (not yet wired into any Fs graph slot).
func New(generation uint64, top Translator) *Graph {
	g := &Graph{
		UUID:       uuid.New(),
		Generation: generation,
		Top:        top,
		Table:      inode.NewTable(generation),
	}
	g.state.Store(int32(StateStaged))
	return g
}

// State returns the graph's current lifecycle state.
func (g *Graph) State() State { return State(g.state.Load()) }

func (g *Graph) setState(s State) { g.state.Store(int32(s)) }

// Used reports whether the graph's root has signaled child-up.
func (g *Graph) Used() bool { return g.used.Load() }

// MarkUsed records that the root translator has signaled child-up;
// called by client.Fs.Init once the first graph has been promoted.
func (g *Graph) MarkUsed() { g.used.Store(true) }

// Switched reports whether this graph has been superseded and must
// never be promoted back to active.
func (g *Graph) Switched() bool { return g.switched.Load() }

// Wind increments the in-flight-operation refcount, taken under the
// owning Fs's context mutex at reference-acquire time per spec §5.
func (g *Graph) Wind() { g.winds.Add(1) }

// Unwind decrements the in-flight-operation refcount; it is the
// caller's responsibility (the Fs layer) to check whether the result
// reaching zero on an Old graph should enqueue ParentDown. Returns the
// post-decrement value.
func (g *Graph) Unwind() int64 { return g.winds.Add(-1) }

// Winds returns the current in-flight-operation count.
func (g *Graph) Winds() int64 { return g.winds.Load() }

// CanTeardown reports the spec's invariant "winds == 0 implies the
// graph may be torn down".
func (g *Graph) CanTeardown() bool { return g.winds.Load() == 0 }
