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

// TestMulProgram_MatchesGenericOracle checks, for every field element,
// that the bitsliced MulProgram produces byte-identical output to the
// portable table-driven reference over a random WordSize-aligned block
// -- the invariant spec.md calls out explicitly ("applying MulProgram(v)
// to a 512-byte block produces the same bytes as the portable reference").
func TestMulProgram_MatchesGenericOracle(t *testing.T) {
	f := newTestField(t)
	rng := rand.New(rand.NewSource(1))

	src := make([]byte, ChunkSize)
	rng.Read(src)

	for v := 0; v < FieldSize; v++ {
		prog := GenerateProgram(f, byte(v))

		got := make([]byte, ChunkSize)
		require.NoError(t, prog.MulAdd(got, src))

		want := make([]byte, ChunkSize)
		require.NoError(t, GenericMulAdd(f, byte(v), want, src))

		assert.Equalf(t, want, got, "value=%d", v)
	}
}

func TestMulProgram_ZeroLeavesDstUnchanged(t *testing.T) {
	f := newTestField(t)
	src := make([]byte, WordSize)
	for i := range src {
		src[i] = byte(i*37 + 5)
	}
	dst := make([]byte, WordSize)
	for i := range dst {
		dst[i] = 0xAA
	}

	prog := GenerateProgram(f, 0)
	require.NoError(t, prog.MulAdd(dst, src))
	// MulAdd XORs in value*src; value==0 must leave dst unchanged.
	for i := range dst {
		assert.Equal(t, byte(0xAA), dst[i])
	}
}

func TestMulProgram_AccumulatesAcrossCalls(t *testing.T) {
	f := newTestField(t)
	rng := rand.New(rand.NewSource(2))

	a := make([]byte, WordSize)
	b := make([]byte, WordSize)
	rng.Read(a)
	rng.Read(b)

	dst := make([]byte, WordSize)
	require.NoError(t, GenerateProgram(f, 3).MulAdd(dst, a))
	require.NoError(t, GenerateProgram(f, 7).MulAdd(dst, b))

	want := make([]byte, WordSize)
	require.NoError(t, GenericMulAdd(f, 3, want, a))
	require.NoError(t, GenericMulAdd(f, 7, want, b))

	assert.Equal(t, want, dst)
}
