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

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randChunks(rng *rand.Rand, n, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, size)
		rng.Read(out[i])
	}
	return out
}

func emptyChunks(n, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, size)
	}
	return out
}

// TestCodec_EncodeDecodeRoundTrip is spec.md's end-to-end scenario 5:
// fragments=4, redundancy=2, drop any 2, decode, result equals the
// original bit-for-bit.
func TestCodec_EncodeDecodeRoundTrip(t *testing.T) {
	cd, err := NewCodec(4, 2, 16)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	data := randChunks(rng, 4, ChunkSize)

	coded := emptyChunks(cd.Total(), ChunkSize)
	require.NoError(t, cd.Encode(data, coded))

	// Drop any two fragments; try every surviving-4-of-6 combination.
	for drop1 := 0; drop1 < 6; drop1++ {
		for drop2 := drop1 + 1; drop2 < 6; drop2++ {
			var rowIdx []int
			var mask uint64
			var frags [][]byte
			for i := 0; i < 6; i++ {
				if i == drop1 || i == drop2 {
					continue
				}
				rowIdx = append(rowIdx, i)
				mask |= 1 << uint(i)
				frags = append(frags, coded[i])
			}

			out := emptyChunks(4, ChunkSize)
			require.NoErrorf(t, cd.Decode(mask, rowIdx, frags, out), "drop %d,%d", drop1, drop2)
			for i := range data {
				assert.Equalf(t, data[i], out[i], "chunk %d, drop %d,%d", i, drop1, drop2)
			}
		}
	}
}

func TestCodec_DecodeCanonicalSetIsIdentity(t *testing.T) {
	cd, err := NewCodec(4, 2, 16)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	data := randChunks(rng, 4, ChunkSize)
	coded := emptyChunks(cd.Total(), ChunkSize)
	require.NoError(t, cd.Encode(data, coded))

	rowIdx := []int{0, 1, 2, 3}
	var mask uint64 = 0b1111
	out := emptyChunks(4, ChunkSize)
	require.NoError(t, cd.Decode(mask, rowIdx, coded[:4], out))
	assert.Equal(t, data, out)
	// No inverse matrix should have been cached for the identity case.
	assert.Equal(t, 0, cd.cache.Len())
}

func TestNewCodec_RejectsOversizedSplit(t *testing.T) {
	_, err := NewCodec(200, 100, 0)
	assert.Error(t, err)
}

func TestMatrixCache_ZeroSizeNeverCaches(t *testing.T) {
	f, err := NewField(DefaultPoly)
	require.NoError(t, err)
	enc := encodingMatrix(f, 4, 6)

	c := NewMatrixCache(0)
	calls := 0
	build := func() (*Matrix, error) {
		calls++
		return enc.submatrix([]int{1, 2, 3, 4}).invert()
	}

	_, rel1, err := c.Get(0xABC, build)
	require.NoError(t, err)
	rel1()
	_, rel2, err := c.Get(0xABC, build)
	require.NoError(t, err)
	rel2()

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}
