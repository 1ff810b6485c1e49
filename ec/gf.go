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

// Package ec implements Galois-field arithmetic and the Vandermonde-based
// erasure coding used to stripe stripe data across bricks.
//
// Grounded on xlators/cluster/ec/src/ec-galois.h and ec-method.c from
// original_source/: the field is GF(2^Bits) with a caller-chosen
// irreducible polynomial, represented by log/antilog tables, and the
// stripe codec built on top is a systematic Vandermonde code (data rows
// are identity, parity rows are computed).
package ec

import "fmt"

// Bits is the field width this package supports. The bitsliced multiply
// program generator in program.go is specific to 8-bit field elements
// (one byte per symbol, matching the "gf8_muladd" naming in
// ec-code-c.h), so Field is not parameterized over it.
const Bits = 8

// FieldSize is the number of elements in GF(2^Bits).
const FieldSize = 1 << Bits

// DefaultPoly is the irreducible polynomial used by the reference
// GlusterFS EC translator (x^8 + x^4 + x^3 + x^2 + 1, i.e. 0x11d with the
// leading bit implicit).
const DefaultPoly = 0x1d

// Field is a Galois field GF(2^Bits) with precomputed log/antilog
// tables for O(1) multiplication, division and exponentiation.
type Field struct {
	poly uint32
	exp  [2*FieldSize - 1]byte // exp[i] = generator^i, doubled to avoid modulo in Mul
	log  [FieldSize]int16      // log[v] = i such that generator^i == v; log[0] unused
}

// NewField builds the log/exp tables for GF(2^Bits) using the given
// reduction polynomial (only the low Bits bits are significant; the
// implicit leading term x^Bits is assumed). mod must describe an
// irreducible polynomial or the resulting tables will not form a field
// -- this function does not attempt to verify irreducibility, matching
// ec_gf_prepare's contract that the caller supplies a valid polynomial.
func NewField(mod uint32) (*Field, error) {
	if mod == 0 || mod >= FieldSize {
		return nil, fmt.Errorf("ec: invalid reduction polynomial %#x for GF(2^%d)", mod, Bits)
	}

	f := &Field{poly: mod}
	for i := range f.log {
		f.log[i] = -1
	}

	x := 1
	for i := 0; i < FieldSize-1; i++ {
		f.exp[i] = byte(x)
		if f.log[x] < 0 {
			f.log[x] = int16(i)
		}
		x <<= 1
		if x&FieldSize != 0 {
			x ^= FieldSize | int(mod)
		}
	}
	// Duplicate the table past FieldSize-1 so Mul can add logs without a
	// modulo reduction.
	for i := FieldSize - 1; i < len(f.exp); i++ {
		f.exp[i] = f.exp[i-(FieldSize-1)]
	}

	return f, nil
}

// Add is GF(2^Bits) addition, which is just XOR.
func (f *Field) Add(a, b byte) byte { return a ^ b }

// Mul multiplies two field elements.
func (f *Field) Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[int(f.log[a])+int(f.log[b])]
}

// ErrDivideByZero is returned by Div when the divisor is zero.
var ErrDivideByZero = fmt.Errorf("ec: division by zero")

// Div divides a by b. It fails with ErrDivideByZero when b == 0.
func (f *Field) Div(a, b byte) (byte, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	if a == 0 {
		return 0, nil
	}
	diff := int(f.log[a]) - int(f.log[b])
	if diff < 0 {
		diff += FieldSize - 1
	}
	return f.exp[diff], nil
}

// Exp raises a to the e-th power. Exp(0, 0) == 1 by convention, matching
// the field's multiplicative identity; Exp(a, 0) == 1 for a != 0.
func (f *Field) Exp(a byte, e int) byte {
	if e == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	l := (int(f.log[a]) * e) % (FieldSize - 1)
	if l < 0 {
		l += FieldSize - 1
	}
	return f.exp[l]
}

// MulTable returns the 256-entry multiplication-by-v table, used both by
// the generic byte-wise fallback path and by program generation.
func (f *Field) MulTable(v byte) [FieldSize]byte {
	var t [FieldSize]byte
	for x := 0; x < FieldSize; x++ {
		t[x] = f.Mul(byte(x), v)
	}
	return t
}
