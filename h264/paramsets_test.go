// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestComputeChromaQPTables_S5 hand-verifies the exact scenario from
// the chroma-QP clamp: bit_depth_luma_minus8=0, chroma_qp_index_offset=+4,
// q=50 -> base[0][min(54,51)] = base[0][51] = 39.
func TestComputeChromaQPTables_S5(t *testing.T) {
	sps := &SPS{BitDepthLumaMinus8: 0}
	pps := &PPS{ChromaQpIndexOffset: 4, SecondChromaQpIndexOffset: 4}

	tables := ComputeChromaQPTables(sps, pps)
	assert.Equal(t, uint8(39), tables.Table[0][50])
}

// TestComputeChromaQPTables_IdentityBelow30 checks Invariant 4's
// identity region.
func TestComputeChromaQPTables_IdentityBelow30(t *testing.T) {
	sps := &SPS{BitDepthLumaMinus8: 0}
	pps := &PPS{}
	tables := ComputeChromaQPTables(sps, pps)
	for q := 0; q < 30; q++ {
		assert.Equal(t, uint8(q), tables.Table[0][q])
	}
}

// TestComputeChromaQPTables_ClampsNegativeOffset ensures negative
// offsets clamp qPI to 0 rather than wrapping.
func TestComputeChromaQPTables_ClampsNegativeOffset(t *testing.T) {
	sps := &SPS{BitDepthLumaMinus8: 0}
	pps := &PPS{ChromaQpIndexOffset: -12, SecondChromaQpIndexOffset: -12}
	tables := ComputeChromaQPTables(sps, pps)
	assert.Equal(t, uint8(0), tables.Table[0][0])
}

// TestComputeDimensions_Invariant5 checks mb_num/width/height.
func TestComputeDimensions_Invariant5(t *testing.T) {
	sps := &SPS{
		PicWidthInMbsMinus1:        79, // 80 mbs wide
		PicHeightInMapUnitsMinus1:  44, // 45 map units
		FrameMbsOnlyFlag:           1,
	}
	dims := ComputeDimensions(sps)
	assert.Equal(t, 80, dims.MbWidth)
	assert.Equal(t, 45, dims.MbHeight)
	assert.Equal(t, 80*45, dims.MbNum)
	assert.Equal(t, 80*16, dims.Width)
	assert.Equal(t, 45*16, dims.Height)
}

// TestComputeDimensions_FieldsFoldFrameMbsOnly checks that a
// frame_mbs_only_flag=0 SPS doubles the map-unit height into mb_height.
func TestComputeDimensions_FieldsFoldFrameMbsOnly(t *testing.T) {
	sps := &SPS{
		PicWidthInMbsMinus1:       19,
		PicHeightInMapUnitsMinus1: 9, // 10 map units
		FrameMbsOnlyFlag:          0,
	}
	dims := ComputeDimensions(sps)
	assert.Equal(t, 20, dims.MbHeight)
}

// TestActivate_RejectsUnknownPPS checks Invariant 8's activation-time
// half: an unresolved reference never mutates ActiveSPS/ActivePPS.
func TestActivate_RejectsUnknownPPS(t *testing.T) {
	p := NewParamSets()
	sh := &SliceHeader{PicParameterSetID: 3}
	err := p.Activate(sh)
	assert.Error(t, err)
	assert.Nil(t, p.ActiveSPS)
	assert.Nil(t, p.ActivePPS)
}

// TestActivate_RecomputesOnlyOnChange verifies Dimensions are left
// untouched when the same PPS/SPS pair activates twice.
func TestActivate_RecomputesOnlyOnChange(t *testing.T) {
	p := NewParamSets()
	sps := &SPS{Valid: true, SeqParameterSetID: 0, PicWidthInMbsMinus1: 9, PicHeightInMapUnitsMinus1: 9, FrameMbsOnlyFlag: 1}
	pps := &PPS{Valid: true, PicParameterSetID: 0, SeqParameterSetID: 0}
	p.PutSPS(sps)
	p.PutPPS(pps)

	sh := &SliceHeader{PicParameterSetID: 0}
	assert.NoError(t, p.Activate(sh))
	dims1 := p.Dimensions
	assert.NoError(t, p.Activate(sh))
	assert.Equal(t, dims1, p.Dimensions)
}

// TestDequant4x4V_MatchesSpecTable pins the literal 6x3 table quoted in
// spec.md §4.4: {10,13,16; 11,14,18; 13,16,20; 14,18,23; 16,20,25; 18,23,29}.
func TestDequant4x4V_MatchesSpecTable(t *testing.T) {
	want := [6][3]int32{
		{10, 13, 16},
		{11, 14, 18},
		{13, 16, 20},
		{14, 18, 23},
		{16, 20, 25},
		{18, 23, 29},
	}
	assert.Equal(t, want, dequant4x4V)
}

// TestDequant4x4Pos_RoutesToSpecColumns checks that the doubly-even,
// odd/odd, and remaining position categories land on the v[qp%6]
// column the standard assigns them (columns 0, 2, and 1 respectively
// once the table itself is stored in spec.md's literal column order).
func TestDequant4x4Pos_RoutesToSpecColumns(t *testing.T) {
	// (0,0), (0,2), (2,0), (2,2) -> column 0 (value 10 at qp%6==0)
	for _, idx := range []int{0, 2, 8, 10} {
		assert.Equal(t, 0, dequant4x4Pos(idx))
	}
	// (1,1), (1,3), (3,1), (3,3) -> column 2 (value 16 at qp%6==0)
	for _, idx := range []int{5, 7, 13, 15} {
		assert.Equal(t, 2, dequant4x4Pos(idx))
	}
	// everything else -> column 1 (value 13 at qp%6==0)
	for _, idx := range []int{1, 3, 4, 6, 9, 11, 12, 14} {
		assert.Equal(t, 1, dequant4x4Pos(idx))
	}
}
