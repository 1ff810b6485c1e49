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

package ec

import "sync"

// matrixCacheEntry is one node of the cache's intrusive LRU list,
// grounded on internal/lrucache's map-plus-doubly-linked-list shape
// (cache_test.go), repurposed to key on a brick-participation bitmask
// instead of an object name.
type matrixCacheEntry struct {
	mask   uint64
	inv    *Matrix
	refs   int
	prev   *matrixCacheEntry
	next   *matrixCacheEntry
	zombie bool // set on eviction; only entries with refs == 0 are evicted
}

// MatrixCache is an LRU of inverse decode matrices keyed by the bitmask
// of participating bricks (spec: "Maintain an LRU of inverse matrices
// keyed by brick-participation bitmask"). A zero-sized cache (max == 0)
// never retains anything: every lookup computes a fresh matrix and the
// caller's release simply drops it.
type MatrixCache struct {
	mu   sync.Mutex
	max  int
	byID map[uint64]*matrixCacheEntry
	head *matrixCacheEntry // MRU
	tail *matrixCacheEntry // LRU
}

// NewMatrixCache creates a cache holding at most max inverse matrices.
// max == 0 disables caching entirely.
func NewMatrixCache(max int) *MatrixCache {
	return &MatrixCache{max: max, byID: make(map[uint64]*matrixCacheEntry)}
}

func (c *MatrixCache) unlink(e *matrixCacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *MatrixCache) pushFront(e *matrixCacheEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

// Release is returned by Get and must be called exactly once when the
// caller is done reading the matrix.
type Release func()

// Get returns the inverse matrix for mask, computing it with build if
// it is not already cached. The returned Release must be invoked when
// the caller is finished using the matrix; only after refs drop to
// zero may an evicted ("zombie") entry actually be discarded, matching
// the spec's "LRU matrix is reclaimed only after its active decode
// refcount reaches zero."
func (c *MatrixCache) Get(mask uint64, build func() (*Matrix, error)) (*Matrix, Release, error) {
	if c.max == 0 {
		m, err := build()
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}

	c.mu.Lock()
	if e, ok := c.byID[mask]; ok {
		c.unlink(e)
		c.pushFront(e)
		e.refs++
		c.mu.Unlock()
		return e.inv, func() { c.release(e) }, nil
	}
	c.mu.Unlock()

	m, err := build()
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced us to build the same mask.
	if e, ok := c.byID[mask]; ok {
		c.unlink(e)
		c.pushFront(e)
		e.refs++
		return e.inv, func() { c.release(e) }, nil
	}

	e := &matrixCacheEntry{mask: mask, inv: m, refs: 1}
	c.byID[mask] = e
	c.pushFront(e)

	for len(c.byID) > c.max {
		victim := c.tail
		for victim != nil && victim.refs > 0 {
			victim = victim.prev
		}
		if victim == nil {
			break // every cached entry is in use; stay over max until a later insertion finds an unreferenced entry
		}
		victim.zombie = true
		c.unlink(victim)
		delete(c.byID, victim.mask)
	}

	return e.inv, func() { c.release(e) }, nil
}

func (c *MatrixCache) release(e *matrixCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.zombie {
		// Already unlinked and removed from byID at eviction time; nothing
		// left to do but let it be garbage collected.
	}
}

// Len reports how many matrices are currently cached (test/statedump use).
func (c *MatrixCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
