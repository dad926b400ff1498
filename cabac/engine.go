// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cabac implements the H.264 context-adaptive binary
// arithmetic decoding engine: the 1024-context-variable state table,
// the decode_decision/decode_bypass/decode_terminate primitives, and
// context initialisation for I/SI slices.
package cabac

import "github.com/cnotch/h264nal/bits"

// NumContexts is the number of context variables the standard defines
// (spec.md §3 CABAC engine state).
const NumContexts = 1024

// rangeLPS is Table 9-44: for each of 64 pStateIdx values, the LPS
// sub-range selected by the two-bit quantised codIRange index. Shared
// verbatim with HEVC's arithmetic engine, which inherits it from the
// same JVT-era design.
var rangeLPS = [64][4]uint8{
	{128, 176, 208, 240}, {128, 167, 197, 227}, {128, 158, 187, 216}, {123, 150, 178, 205},
	{116, 142, 169, 195}, {111, 135, 160, 185}, {105, 128, 152, 175}, {100, 122, 144, 166},
	{95, 116, 137, 158}, {90, 110, 130, 150}, {85, 104, 123, 142}, {81, 99, 117, 135},
	{77, 94, 111, 128}, {73, 89, 105, 122}, {69, 85, 100, 116}, {66, 80, 95, 110},
	{62, 76, 90, 104}, {59, 72, 86, 99}, {56, 69, 81, 94}, {53, 65, 77, 89},
	{51, 62, 73, 85}, {48, 59, 69, 80}, {46, 56, 66, 76}, {43, 53, 63, 72},
	{41, 50, 59, 69}, {39, 48, 56, 65}, {37, 45, 54, 62}, {35, 43, 51, 59},
	{33, 41, 48, 56}, {32, 39, 46, 53}, {30, 37, 43, 50}, {29, 35, 41, 48},
	{27, 33, 39, 45}, {26, 31, 37, 43}, {24, 30, 35, 41}, {23, 28, 33, 39},
	{22, 27, 32, 37}, {21, 26, 30, 35}, {20, 24, 29, 33}, {19, 23, 27, 31},
	{18, 22, 26, 30}, {17, 21, 25, 28}, {16, 20, 23, 27}, {15, 19, 22, 25},
	{14, 18, 21, 24}, {14, 17, 20, 23}, {13, 16, 19, 22}, {12, 15, 18, 21},
	{12, 14, 17, 20}, {11, 14, 16, 19}, {11, 13, 15, 18}, {10, 12, 15, 17},
	{10, 12, 14, 16}, {9, 11, 13, 15}, {9, 11, 12, 14}, {8, 10, 12, 14},
	{8, 9, 11, 13}, {7, 9, 11, 12}, {7, 9, 10, 12}, {7, 8, 10, 11},
	{6, 8, 9, 11}, {6, 7, 9, 10}, {6, 7, 8, 9}, {2, 2, 2, 2},
}

// transIdxLPS is Table 9-45's LPS-branch state transition.
var transIdxLPS = [64]uint8{
	0, 0, 1, 2, 2, 4, 4, 5, 6, 7, 8, 9, 9, 11, 11, 12,
	13, 13, 15, 15, 16, 16, 18, 18, 19, 19, 21, 21, 22, 22, 23, 24,
	24, 25, 26, 26, 27, 27, 28, 29, 29, 30, 30, 30, 31, 32, 32, 33,
	33, 33, 34, 34, 35, 35, 35, 36, 36, 36, 37, 37, 37, 38, 38, 63,
}

// transIdxMPS is Table 9-45's MPS-branch state transition.
var transIdxMPS = [64]uint8{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32,
	33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48,
	49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 62, 63,
}

// Context is one of the 1024 context variables (spec.md §3).
type Context struct {
	PStateIdx uint8
	ValMPS    uint8
}

// Engine holds the arithmetic decoding registers and the read cursor
// into slice data. It does not own the context table; callers pass a
// *Context per decode call so an engine can be reused across
// differently-initialised contexts sets between slices.
type Engine struct {
	r         *bits.Reader
	codIRange uint32
	codIOffset uint32
}

// NewEngine initialises the arithmetic engine from the current
// position of r: codIRange = 510, codIOffset = read_bits(9).
func NewEngine(r *bits.Reader) (*Engine, bool) {
	v, ok := r.ReadBits(9)
	if !ok {
		return nil, false
	}
	return &Engine{r: r, codIRange: 510, codIOffset: v}, true
}

// CodIRange exposes the current range register, primarily for testing
// Invariant 7 ([256,510] after every renormalisation).
func (e *Engine) CodIRange() uint32 { return e.codIRange }

// Reader exposes the underlying bit cursor, for the rare syntax
// elements (pcm_sample_luma/chroma) that bypass the arithmetic decoder
// entirely and read raw bits directly, per 9.3.1.2's I_PCM handling.
func (e *Engine) Reader() *bits.Reader { return e.r }

func (e *Engine) renormalize() bool {
	for e.codIRange < 256 {
		bit, ok := e.r.ReadBit()
		if !ok {
			return false
		}
		e.codIRange <<= 1
		e.codIOffset = (e.codIOffset << 1) | uint32(bit)
	}
	return true
}

// DecodeDecision decodes one regular (context-coded) bin (9.3.3.2.1).
func (e *Engine) DecodeDecision(ctx *Context) (bin uint8, ok bool) {
	qIdx := (e.codIRange >> 6) & 3
	lps := uint32(rangeLPS[ctx.PStateIdx][qIdx])
	e.codIRange -= lps

	if e.codIOffset >= e.codIRange {
		bin = 1 - ctx.ValMPS
		e.codIOffset -= e.codIRange
		e.codIRange = lps
		if ctx.PStateIdx == 0 {
			ctx.ValMPS = 1 - ctx.ValMPS
		}
		ctx.PStateIdx = transIdxLPS[ctx.PStateIdx]
	} else {
		bin = ctx.ValMPS
		ctx.PStateIdx = transIdxMPS[ctx.PStateIdx]
	}

	if !e.renormalize() {
		return 0, false
	}
	return bin, true
}

// DecodeBypass decodes one bypass (equiprobable) bin (9.3.3.2.3).
func (e *Engine) DecodeBypass() (bin uint8, ok bool) {
	b, rok := e.r.ReadBit()
	if !rok {
		return 0, false
	}
	e.codIOffset = (e.codIOffset << 1) | uint32(b)
	if e.codIOffset >= e.codIRange {
		e.codIOffset -= e.codIRange
		return 1, true
	}
	return 0, true
}

// DecodeTerminate decodes the terminating bin used for end_of_slice
// and PCM escape (9.3.3.2.4). A returned bin of 1 ends the syntax
// element loop without renormalising, per the standard.
func (e *Engine) DecodeTerminate() (bin uint8, ok bool) {
	e.codIRange -= 2
	if e.codIOffset >= e.codIRange {
		return 1, true
	}
	if !e.renormalize() {
		return 0, false
	}
	return 0, true
}
