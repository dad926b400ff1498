// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRasterNeighbours_Invariant6 checks that every non-null neighbour
// pointer addresses a macroblock strictly before mbPos in the same
// slice.
func TestRasterNeighbours_Invariant6(t *testing.T) {
	p := NewPicture(4, 3, false, false)
	for i := range p.Records {
		p.Records[i] = NewRecord(i%4, i/4, i, 0)
	}

	for mbPos := 0; mbPos < len(p.Records); mbPos++ {
		mbX, mbY := mbPos%4, mbPos/4
		a, b, c, d := p.RasterNeighbours(mbX, mbY, mbPos, 0)
		for _, n := range []int{a, b, c, d} {
			if n == noNeighbour {
				continue
			}
			assert.Less(t, n, mbPos)
			assert.GreaterOrEqual(t, n, 0)
		}
	}
}

// TestRasterNeighbours_DifferentSliceUnavailable checks that a
// macroblock in a different slice is never reported as a neighbour.
func TestRasterNeighbours_DifferentSliceUnavailable(t *testing.T) {
	p := NewPicture(4, 2, false, false)
	for i := range p.Records {
		slice := 0
		if i >= 4 {
			slice = 1
		}
		p.Records[i] = NewRecord(i%4, i/4, i, slice)
	}

	// mb 4 (0,1) is in slice 1; its top neighbour mb 0 is slice 0.
	a, b, _, _ := p.RasterNeighbours(0, 1, 4, 1)
	assert.Equal(t, noNeighbour, a)
	assert.Equal(t, noNeighbour, b)
}

// TestRasterNeighbours_LeftEdgeHasNoA checks column 0 has no left
// neighbour.
func TestRasterNeighbours_LeftEdgeHasNoA(t *testing.T) {
	p := NewPicture(4, 2, false, false)
	for i := range p.Records {
		p.Records[i] = NewRecord(i%4, i/4, i, 0)
	}
	a, _, _, _ := p.RasterNeighbours(0, 1, 4, 0)
	assert.Equal(t, noNeighbour, a)
}

// TestAdvance_RasterOrder walks a small picture and confirms it
// terminates after visiting every macroblock exactly once.
func TestAdvance_RasterOrder(t *testing.T) {
	p := NewPicture(3, 2, false, false)
	x, y := 0, 0
	visited := 0
	for {
		visited++
		var done bool
		x, y, done = p.Advance(x, y)
		if done {
			break
		}
	}
	assert.Equal(t, p.MbWidth*p.MbHeight, visited)
}

// TestAdvance_FieldPicStepsByTwoRows checks the field-picture stride.
func TestAdvance_FieldPicStepsByTwoRows(t *testing.T) {
	p := NewPicture(2, 4, false, true)
	_, y, _ := p.Advance(1, 0)
	assert.Equal(t, 2, y)
}
