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

// Package inode implements the in-memory inode table, file descriptor
// table, and pathname resolver that bind application-visible objects
// to a translator graph generation.
package inode

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GFID is the 16-byte globally unique identifier the wire protocol
// uses to name an on-server object, independent of any path.
type GFID [16]byte

// RootGFID is the canonical identifier of a volume's root directory,
// "00000000-0000-0000-0000-000000000001".
var RootGFID = GFID{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}

// NewGFID generates a fresh random GFID, used as a "gfid-req" hint when
// resolution allocates a fresh inode for a name the server doesn't yet
// know (spec.md §4.5's "allocate a fresh inode with a newly generated
// target GFID").
func NewGFID() GFID {
	var g GFID
	copy(g[:], uuid.New()[:])
	return g
}

// String renders a GFID the way the wire protocol's companion tools
// print one: lower-case hex with dashes in UUID grouping.
func (g GFID) String() string {
	u, err := uuid.FromBytes(g[:])
	if err != nil {
		return hex.EncodeToString(g[:])
	}
	return u.String()
}

// IsRoot reports whether g names the volume root.
func (g GFID) IsRoot() bool { return g == RootGFID }

// IsZero reports whether g is the all-zero GFID, used to mark "not yet
// assigned" (e.g. a Loc with no inode and no gfid-req hint issued yet).
func (g GFID) IsZero() bool { return g == GFID{} }

// GFIDFromBytes reconstructs a GFID from its raw 16-byte wire form,
// the inverse of GFID's natural byte-slice representation (spec §6:
// "GFID hint xattr key on create: literal gfid-req, 16-byte binary
// value"); used to rebuild a handle previously serialized by
// Object.HExtractHandle.
func GFIDFromBytes(b []byte) (GFID, error) {
	if len(b) != 16 {
		return GFID{}, fmt.Errorf("inode: gfid must be 16 bytes, got %d", len(b))
	}
	var g GFID
	copy(g[:], b)
	return g, nil
}

// ParseGFID parses a canonical UUID-shaped string into a GFID.
func ParseGFID(s string) (GFID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GFID{}, fmt.Errorf("inode: invalid gfid %q: %w", s, err)
	}
	var g GFID
	copy(g[:], u[:])
	return g, nil
}
