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
	"fmt"
	"sync"
)

// Codec encodes a stripe of Fragments data chunks into
// Fragments+Redundancy coded fragments and decodes any Fragments
// surviving fragments back into the original data, over GF(2^Bits).
//
// Grounded on ec-method.c (ec_method_matrix_init/encode/decode) and
// ec-galois.h; the matrix cache is ec.MatrixCache (cache.go).
type Codec struct {
	field      *Field
	Fragments  int
	Redundancy int
	enc        *Matrix // (Fragments+Redundancy) x Fragments systematic encoding matrix
	cache      *MatrixCache

	progMu sync.Mutex
	progs  [FieldSize]*MulProgram // lazily generated, indexed by field element
}

// NewCodec builds a codec for the given (fragments, redundancy) split.
// fragments+redundancy must not exceed FieldSize-1 (255): a Vandermonde
// construction over GF(2^8) cannot provide more than 255 distinct
// non-zero evaluation points, so beyond that bound some pair of rows
// would be forced to collide and the resulting sub-matrices would not
// all be invertible. matrixCacheSize bounds the decode matrix LRU (0
// disables caching).
func NewCodec(fragments, redundancy, matrixCacheSize int) (*Codec, error) {
	if fragments < 1 {
		return nil, fmt.Errorf("ec: fragments must be >= 1, got %d", fragments)
	}
	if redundancy < 0 {
		return nil, fmt.Errorf("ec: redundancy must be >= 0, got %d", redundancy)
	}
	if fragments+redundancy > FieldSize-1 {
		return nil, fmt.Errorf("ec: fragments+redundancy (%d) exceeds GF(2^%d) capacity of %d",
			fragments+redundancy, Bits, FieldSize-1)
	}

	f, err := NewField(DefaultPoly)
	if err != nil {
		return nil, err
	}

	n := fragments + redundancy
	return &Codec{
		field:      f,
		Fragments:  fragments,
		Redundancy: redundancy,
		enc:        encodingMatrix(f, fragments, n),
		cache:      NewMatrixCache(matrixCacheSize),
	}, nil
}

// program returns the cached MulProgram for v, generating it on first
// use. At most FieldSize-1 distinct programs ever exist for a Codec.
func (cd *Codec) program(v byte) *MulProgram {
	if v == 0 {
		return nil
	}
	cd.progMu.Lock()
	defer cd.progMu.Unlock()
	if cd.progs[v] == nil {
		cd.progs[v] = GenerateProgram(cd.field, v)
	}
	return cd.progs[v]
}

// applyCoeff computes dst ^= value*src, using the bitsliced MulProgram
// for the WordSize-aligned prefix of the buffers and the portable
// byte-wise fallback for any trailing partial word.
func (cd *Codec) applyCoeff(value byte, dst, src []byte) error {
	if value == 0 {
		return nil
	}
	aligned := len(src) - len(src)%WordSize
	if aligned > 0 {
		if err := cd.program(value).MulAdd(dst[:aligned], src[:aligned]); err != nil {
			return err
		}
	}
	if aligned < len(src) {
		if err := GenericMulAdd(cd.field, value, dst[aligned:], src[aligned:]); err != nil {
			return err
		}
	}
	return nil
}

// Encode splits data (Fragments equal-length chunks) into Total()
// coded fragments written into out (Total() equal-length buffers, each
// the same length as every data chunk, pre-allocated by the caller).
// Rows 0..Fragments-1 of out are the data chunks verbatim (systematic
// code); rows Fragments..Total()-1 are parity computed via the
// Vandermonde rows of the encoding matrix.
func (cd *Codec) Encode(data [][]byte, out [][]byte) error {
	if len(data) != cd.Fragments {
		return fmt.Errorf("ec: Encode expected %d data chunks, got %d", cd.Fragments, len(data))
	}
	if len(out) != cd.Total() {
		return fmt.Errorf("ec: Encode expected %d output fragments, got %d", cd.Total(), len(out))
	}
	size := len(data[0])
	for i, d := range data {
		if len(d) != size {
			return fmt.Errorf("ec: data chunk %d has length %d, want %d", i, len(d), size)
		}
	}
	for i, o := range out {
		if len(o) != size {
			return fmt.Errorf("ec: output fragment %d has length %d, want %d", i, len(o), size)
		}
		for j := range o {
			o[j] = 0
		}
	}

	for r := 0; r < cd.Total(); r++ {
		for c := 0; c < cd.Fragments; c++ {
			if err := cd.applyCoeff(cd.enc.at(r, c), out[r], data[c]); err != nil {
				return fmt.Errorf("ec: encode row %d col %d: %w", r, c, err)
			}
		}
	}
	return nil
}

// Total returns Fragments+Redundancy, the number of coded fragments.
func (cd *Codec) Total() int { return cd.Fragments + cd.Redundancy }

// Decode reconstructs the original Fragments data chunks from exactly
// Fragments surviving coded fragments. rowIdx names, in ascending
// order, which output rows (0..Total()-1) of the encoding matrix each
// entry of fragments corresponds to; mask is the bitmask of the same
// rows, used as the matrix-cache key. out must hold Fragments
// pre-allocated buffers the same length as each fragment.
func (cd *Codec) Decode(mask uint64, rowIdx []int, fragments [][]byte, out [][]byte) error {
	if len(rowIdx) != cd.Fragments || len(fragments) != cd.Fragments {
		return fmt.Errorf("ec: Decode needs exactly %d fragments, got %d rows / %d buffers",
			cd.Fragments, len(rowIdx), len(fragments))
	}
	if len(out) != cd.Fragments {
		return fmt.Errorf("ec: Decode expected %d output chunks, got %d", cd.Fragments, len(out))
	}
	size := len(fragments[0])
	for i, frag := range fragments {
		if len(frag) != size {
			return fmt.Errorf("ec: fragment %d has length %d, want %d", i, len(frag), size)
		}
	}

	sub := cd.enc.submatrix(rowIdx)
	if sub.IsIdentity() {
		// The mask names exactly the canonical data bricks in order: no
		// inversion needed, decode is the identity.
		for i := range out {
			if len(out[i]) != size {
				return fmt.Errorf("ec: output chunk %d has length %d, want %d", i, len(out[i]), size)
			}
			copy(out[i], fragments[i])
		}
		return nil
	}

	inv, release, err := cd.cache.Get(mask, sub.invert)
	if err != nil {
		return fmt.Errorf("ec: decode matrix for mask %#x: %w", mask, err)
	}
	defer release()

	for i := range out {
		if len(out[i]) != size {
			return fmt.Errorf("ec: output chunk %d has length %d, want %d", i, len(out[i]), size)
		}
		for j := range out[i] {
			out[i][j] = 0
		}
	}

	for r := 0; r < cd.Fragments; r++ {
		for c := 0; c < cd.Fragments; c++ {
			if err := cd.applyCoeff(inv.at(r, c), out[r], fragments[c]); err != nil {
				return fmt.Errorf("ec: decode row %d col %d: %w", r, c, err)
			}
		}
	}
	return nil
}
