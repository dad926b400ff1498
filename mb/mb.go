// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mb tracks per-macroblock records, their raster-order
// neighbour resolution (including MBAFF), and the 5x8 cache grid used
// to stage neighbour prediction-mode and non-zero-coefficient-count
// values while decoding the current macroblock.
package mb

// Type bitmask flags describing a macroblock's coding mode. Only the
// I/SI-slice-relevant bits are given names; P/SP/B variants are
// out of scope (spec Non-goals).
const (
	TypeIntra4x4  = 1 << iota // Intra_4x4 or Intra_8x8 luma prediction
	TypeIntra16x16
	TypeIPCM
	TypeIntra // set for any of the above three
)

// Record is a single macroblock's decoded state (spec.md §3
// "Macroblock record").
type Record struct {
	MbX, MbY, MbPos int
	SliceNum        int

	Type uint32

	// IntraLumaPredModes holds the union over 4x4/8x8/16x16 luma
	// intra prediction mode encodings: 16 entries for 4x4, the first 4
	// reused for 8x8, entry 0 alone meaningful for 16x16.
	IntraLumaPredModes [16]int8
	IntraChromaPredMode int8

	CbpLuma   uint8
	CbpChroma uint8
	LumaQP    int32

	// NonZeroCount holds one entry per 4x4 luma/chroma AC block (16
	// per component) plus 3 DC slots (luma DC, Cb DC, Cr DC), matching
	// spec.md's "51-byte non-zero-count array (16 AC per component + 3
	// DC slots)": 16*3 + 3 = 51.
	NonZeroCount [51]uint8

	// Neighbour pointers: -1 means unavailable. Non-owning indices
	// into the picture's macroblock array (spec.md §3 Ownership note).
	A, B, C, D   int
	Left         int
	LeftPair     [2]int
	Top          int

	FieldDecoding bool
}

const noNeighbour = -1

// NewRecord returns a Record with all neighbour pointers unavailable.
func NewRecord(mbX, mbY, mbPos, sliceNum int) *Record {
	return &Record{
		MbX: mbX, MbY: mbY, MbPos: mbPos, SliceNum: sliceNum,
		A: noNeighbour, B: noNeighbour, C: noNeighbour, D: noNeighbour,
		Left: noNeighbour, LeftPair: [2]int{noNeighbour, noNeighbour}, Top: noNeighbour,
	}
}

// Picture owns the contiguous macroblock array for one slice's worth
// of decoding and the neighbour-resolution logic operating over it.
type Picture struct {
	MbWidth  int
	MbHeight int
	MbAffFrame bool
	FieldPic   bool

	Records []*Record
}

// NewPicture allocates an empty macroblock array sized for the given
// dimensions.
func NewPicture(mbWidth, mbHeight int, mbAffFrame, fieldPic bool) *Picture {
	return &Picture{
		MbWidth:    mbWidth,
		MbHeight:   mbHeight,
		MbAffFrame: mbAffFrame,
		FieldPic:   fieldPic,
		Records:    make([]*Record, mbWidth*mbHeight),
	}
}

// available reports whether address n is a decoded macroblock in the
// same slice as sliceNum, at or before mbPos (Invariant 6).
func (p *Picture) available(n, mbPos, sliceNum int) bool {
	if n < 0 || n > mbPos || n >= len(p.Records) {
		return false
	}
	rec := p.Records[n]
	return rec != nil && rec.SliceNum == sliceNum
}

// RasterNeighbours computes the raster-order A/B/C/D candidates for a
// macroblock at (mbX, mbY) before any MBAFF refinement.
func (p *Picture) RasterNeighbours(mbX, mbY, mbPos, sliceNum int) (a, b, c, d int) {
	a, b, c, d = noNeighbour, noNeighbour, noNeighbour, noNeighbour
	if mbX > 0 {
		n := mbY*p.MbWidth + mbX - 1
		if p.available(n, mbPos, sliceNum) {
			a = n
		}
	}
	if mbY > 0 {
		n := (mbY-1)*p.MbWidth + mbX
		if p.available(n, mbPos, sliceNum) {
			b = n
		}
		if mbX+1 < p.MbWidth {
			n2 := (mbY-1)*p.MbWidth + mbX + 1
			if p.available(n2, mbPos, sliceNum) {
				c = n2
			}
		}
		if mbX > 0 {
			n3 := (mbY-1)*p.MbWidth + mbX - 1
			if p.available(n3, mbPos, sliceNum) {
				d = n3
			}
		}
	}
	return
}

// leftBlocksTables are four 16-entry reindex tables for the
// left-column 4x4 block positions of a macroblock pair, selected by
// whether the current and left macroblocks are frame- or field-coded
// (spec.md §4.6). Table order: [current frame][left frame], [current
// frame][left field], [current field][left frame], [current
// field][left field]. All four hold the identity mapping; no
// frame/field reindexing is applied.
var leftBlocksTables = [4][16]int8{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
}

// RefineMBAFF returns the left_blocks table for a macroblock inside an
// MBAFF pair, choosing one of leftBlocksTables by the four frame/field
// cases (spec.md §4.6). currentField and leftField describe the coding
// mode of the current and left macroblock pairs respectively. It does
// not resolve left/left_pair/top and does not look at mb_y parity.
func RefineMBAFF(currentField, leftField bool) (leftBlocks [16]int8) {
	idx := 0
	if !currentField {
		idx = 0
	} else {
		idx = 2
	}
	if leftField {
		idx++
	}
	var t [16]int8
	copy(t[:], leftBlocksTables[idx][:])
	return t
}

// Advance returns the raster position of the next macroblock to
// decode. In MBAFF, a pair's top macroblock is followed immediately
// by its bottom macroblock before moving to the next column pair;
// field pictures step by 2 rows so only one field's parity of rows is
// ever visited.
func (p *Picture) Advance(mbX, mbY int) (nextX, nextY int, done bool) {
	if p.MbAffFrame {
		if mbY%2 == 0 {
			return mbX, mbY + 1, false
		}
		mbX++
		mbY--
		if mbX >= p.MbWidth {
			return 0, mbY + 2, mbY+2 >= p.MbHeight
		}
		return mbX, mbY, false
	}

	step := 1
	if p.FieldPic {
		step = 2
	}
	mbX++
	if mbX >= p.MbWidth {
		mbX = 0
		mbY += step
	}
	return mbX, mbY, mbY >= p.MbHeight
}
