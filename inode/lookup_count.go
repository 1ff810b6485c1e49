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

// lookupCount implements the spec's "reference count (shared: lifetime
// = longest holder among dentries, open FDs, and active operations)":
// destroy runs once, when the count returns to zero. External
// synchronization is required, same as the teacher's fs/inode variant
// this is generalized from -- here destroy has no error return since
// forgetting an Inode (purging it from its InodeTable) cannot fail.
type lookupCount struct {
	count   uint64
	destroy func()
}

func (lc *lookupCount) Inc() {
	lc.count++
}

func (lc *lookupCount) Dec(n uint64) (destroyed bool) {
	if n > lc.count {
		panic(fmt.Sprintf("inode: lookup count underflow: dec %d, have %d", n, lc.count))
	}
	lc.count -= n
	if lc.count == 0 {
		if lc.destroy != nil {
			lc.destroy()
		}
		destroyed = true
	}
	return
}
