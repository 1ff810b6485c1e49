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
	"log/slog"
	"sync"

	"github.com/distfs/govfs/internal/logger"
)

// FDMigrator performs step 4 of the migration protocol (spec §4.4) for
// every open Fd known to the owning Fs. It is implemented by the
// client package, which alone knows about open file descriptors;
// Set calls back into it without taking any lock of its own, exactly
// as the spec requires ("the context mutex must not be held across a
// network operation").
type FDMigrator interface {
	// MigrateFDs carries every open Fd from oldGraph to newGraph. oldGraph
	// is the graph being demoted (nil on the very first promotion, when
	// there is no prior active graph to recover lock state from).
	MigrateFDs(ctx context.Context, oldGraph, newGraph *Graph) error
	RefreshCwd(ctx context.Context, newGraph *Graph) error
}

// Lookuper performs the "first lookup" of step 3: a Lookup on the new
// graph's root with the canonical all-zero-plus-1 GFID.
type Lookuper interface {
	FirstLookup(ctx context.Context, g *Graph) error
}

// Set holds the up-to-four graph generations an Fs may reference at
// once (spec §3): active, next, migration_in_progress, and a single
// old graph draining to zero winds. Real deployments only ever see
// one old graph at a time in steady state, since a second migration
// cannot begin while migration_in_progress is occupied.
type Set struct {
	mu sync.Mutex

	active              *Graph
	next                *Graph
	migrationInProgress *Graph
	old                 *Graph

	log *slog.Logger
}

// NewSet creates an empty graph set.
func NewSet(log *slog.Logger) *Set {
	if log == nil {
		log = slog.Default()
	}
	return &Set{log: log}
}

// Active returns the currently serving graph, or nil if none has been
// promoted yet.
func (s *Set) Active() *Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Old returns the draining previous-active graph, or nil if none is
// currently demoted (steady state, or more than one promotion has
// elapsed since the caller's FD was last migrated).
func (s *Set) Old() *Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.old
}

// Stage records g as the Next graph, following a GraphNew notification
// from the poller thread (spec: "Staged -> Next on GraphNew
// notification").
func (s *Set) Stage(g *Graph) {
	g.setState(StateNext)
	s.mu.Lock()
	s.next = g
	s.mu.Unlock()
}

// HasPending reports whether a Next graph is staged and awaiting
// promotion; active_subvol() calls this at the start of every
// operation to decide whether to run Promote first.
func (s *Set) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next != nil
}

// Promote runs the full migration protocol (spec §4.4 steps 1-6) if a
// Next graph is staged; a no-op otherwise. lu performs the first
// lookup; fdm migrates open FDs and the cwd. The context mutex
// equivalent here is Set's own mu, held only across steps 1 and 6 as
// the spec requires -- never across step 3's network call.
func (s *Set) Promote(ctx context.Context, lu Lookuper, fdm FDMigrator) error {
	s.mu.Lock()
	next := s.next
	if next == nil {
		s.mu.Unlock()
		return nil
	}
	old := s.active
	s.next = nil
	s.migrationInProgress = next
	s.mu.Unlock()

	next.setState(StateMigrationInProgress)

	if err := lu.FirstLookup(ctx, next); err != nil {
		s.mu.Lock()
		s.migrationInProgress = nil
		s.mu.Unlock()
		next.setState(StateDead)
		s.log.Warn("graph migration aborted: first lookup failed",
			"graph", next.UUID, "generation", next.Generation, "err", err)
		return fmt.Errorf("graph: first lookup on generation %d failed: %w", next.Generation, err)
	}

	if err := fdm.MigrateFDs(ctx, old, next); err != nil {
		s.log.Warn("graph migration: some FDs failed to migrate",
			"graph", next.UUID, "err", err)
		logger.DefaultCounters.IncMigrationWarning()
	}
	if err := fdm.RefreshCwd(ctx, next); err != nil {
		s.log.Warn("graph migration: cwd refresh failed",
			"graph", next.UUID, "err", err)
		logger.DefaultCounters.IncMigrationWarning()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.setState(StateOld)
		s.active.switched.Store(true)
		s.old = s.active
	}
	next.setState(StateActive)
	s.active = next
	s.migrationInProgress = nil

	s.log.Info("graph promoted to active", "graph", next.UUID, "generation", next.Generation)
	return nil
}

// ReapOld tears down the draining old graph once its winds counter has
// reached zero, issuing a synchronous ParentDown first (spec: "Old ->
// Dead when its winds counter reaches zero; implementer must issue a
// synchronous ParentDown event down the old graph before freeing
// it"). Returns true if the old graph was reaped.
func (s *Set) ReapOld(ctx context.Context, frame Frame) (bool, error) {
	s.mu.Lock()
	old := s.old
	if old == nil || !old.CanTeardown() {
		s.mu.Unlock()
		return false, nil
	}
	s.old = nil
	s.mu.Unlock()

	if _, err := old.Top.Forward(ctx, frame, OpParentDown, nil); err != nil {
		return false, fmt.Errorf("graph: parent-down on generation %d: %w", old.Generation, err)
	}
	old.setState(StateDead)
	if err := old.Top.Fini(); err != nil {
		s.log.Warn("graph teardown: translator fini failed", "graph", old.UUID, "err", err)
		logger.DefaultCounters.IncBackgroundError()
	}
	return true, nil
}

// GraphSnapshot is one generation's statedump-relevant summary.
type GraphSnapshot struct {
	UUID       string
	Generation uint64
	State      State
	Winds      int64
	Used       bool
	InodeCount int
}

func snapshotOf(g *Graph) GraphSnapshot {
	return GraphSnapshot{
		UUID:       g.UUID.String(),
		Generation: g.Generation,
		State:      g.State(),
		Winds:      g.Winds(),
		Used:       g.Used(),
		InodeCount: g.Table.Len(),
	}
}

// Snapshot returns a statedump-friendly summary of every generation
// slot Set currently holds (spec §2.5: "graph generations, winds
// counters"). A nil *GraphSnapshot in place of a pointer would require
// callers to nil-check graph.Graph itself; returning *GraphSnapshot
// per slot lets an empty slot render as absent without exposing Set's
// internal locking to the statedump renderer.
func (s *Set) Snapshot() (active, next, migrating, old *GraphSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		v := snapshotOf(s.active)
		active = &v
	}
	if s.next != nil {
		v := snapshotOf(s.next)
		next = &v
	}
	if s.migrationInProgress != nil {
		v := snapshotOf(s.migrationInProgress)
		migrating = &v
	}
	if s.old != nil {
		v := snapshotOf(s.old)
		old = &v
	}
	return
}
