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

	"github.com/distfs/govfs/graph"
)

// Identity is the per-call credential snapshot threaded through every
// syncop (spec §6's setfsuid/setfsgid/setfsgroups/setfsleaseid/
// setfspid setters; SPEC_FULL.md §4 "per-thread identity"). The
// reference implementation keeps this in thread-local storage; Go
// goroutines have no equivalent, so this module carries it on
// context.Context instead of inventing thread-local state, the same
// way any other per-call value (deadline, cancellation) already
// travels through a call chain.
type Identity struct {
	UID     uint32
	GID     uint32
	Groups  []uint32
	PID     int32
	LeaseID [16]byte
}

type identityKey struct{}

// WithIdentity returns a context carrying id, replacing the current
// POSIX-call frame's effective uid/gid/groups/pid/lease id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the Identity attached to ctx, or the zero
// value (root-equivalent, no groups, no lease) if none was set.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// frameFromContext builds the graph.Frame a syncop call threads down into
// Translator.Forward, snapshotting ctx's identity at the call site
// (SPEC_FULL.md §4: "every syncop call carries a Frame ... snapshot
// taken at the call site, not just a setter with no consumer").
func frameFromContext(ctx context.Context) graph.Frame {
	id := IdentityFrom(ctx)
	return graph.Frame{
		UID:     id.UID,
		GID:     id.GID,
		Groups:  id.Groups,
		PID:     id.PID,
		LeaseID: id.LeaseID,
	}
}
