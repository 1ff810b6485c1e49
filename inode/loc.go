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

import "fmt"

// Loc is the result of resolving a pathname or handle: a parent
// inode, a child name, the target inode (if it exists), and the
// target's GFID. Invariant (enforced by Valid): either Inode != nil,
// or both Parent != nil and Name != "".
type Loc struct {
	Parent *Inode
	Name   string
	Inode  *Inode
	GFID   GFID
}

// Valid reports whether loc satisfies the spec's Loc invariant.
func (loc Loc) Valid() bool {
	if loc.Inode != nil {
		return loc.GFID == loc.Inode.GFID
	}
	return loc.Parent != nil && loc.Name != ""
}

// String renders loc for diagnostics.
func (loc Loc) String() string {
	if loc.Inode != nil {
		return fmt.Sprintf("<gfid=%s>", loc.GFID)
	}
	return fmt.Sprintf("<parent=%s name=%q>", loc.Parent.GFID, loc.Name)
}
