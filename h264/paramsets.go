// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

// ParamSets owns the SPS/PPS tables and the state derived from the
// currently active parameter sets: dimensions, chroma-QP tables, and
// dequantisation coefficient tables. Only the parser that owns it
// mutates it; nothing here is safe for concurrent use.
type ParamSets struct {
	sps [MaxSpsCount]*SPS
	pps [MaxPpsCount]*PPS

	ActiveSPS *SPS
	ActivePPS *PPS

	Dimensions Dimensions
	ChromaQP   ChromaQPTables
	Dequant    DequantTables
}

// NewParamSets returns an empty parameter-set table.
func NewParamSets() *ParamSets {
	return &ParamSets{}
}

// PutSPS stores a successfully decoded SPS, keyed by its own id. A
// range violation while decoding never reaches here: the caller only
// stores a Valid SPS.
func (p *ParamSets) PutSPS(sps *SPS) {
	p.sps[sps.SeqParameterSetID] = sps
}

// PutPPS stores a successfully decoded PPS, keyed by its own id.
func (p *ParamSets) PutPPS(pps *PPS) {
	p.pps[pps.PicParameterSetID] = pps
}

// SPSByID looks up a stored SPS, or nil.
func (p *ParamSets) SPSByID(id uint8) *SPS {
	if int(id) >= len(p.sps) {
		return nil
	}
	return p.sps[id]
}

// PPSByID looks up a stored PPS, or nil.
func (p *ParamSets) PPSByID(id uint8) *PPS {
	if int(id) >= len(p.pps) {
		return nil
	}
	return p.pps[id]
}

// SPSTable exposes the SPS store as a map for callers (e.g. slice
// header decoding) that expect map-like lookup semantics.
func (p *ParamSets) SPSTable() map[uint8]*SPS {
	m := make(map[uint8]*SPS, MaxSpsCount)
	for i, sps := range p.sps {
		if sps != nil {
			m[uint8(i)] = sps
		}
	}
	return m
}

// PPSTable exposes the PPS store as a map, mirroring SPSTable.
func (p *ParamSets) PPSTable() map[uint8]*PPS {
	m := make(map[uint8]*PPS, MaxPpsCount)
	for i, pps := range p.pps {
		if pps != nil {
			m[uint8(i)] = pps
		}
	}
	return m
}

// Activate pins the PPS (and, through it, the SPS) referenced by a
// decoded slice header as the active parameter sets, recomputing
// dimensions, chroma-QP tables, and dequantisation tables whenever the
// SPS id or PPS id actually changes. Returns ErrNoActiveSPS if the
// referenced PPS or its SPS is not stored or not valid.
func (p *ParamSets) Activate(sh *SliceHeader) error {
	pps := p.PPSByID(sh.PicParameterSetID)
	if pps == nil || !pps.Valid {
		return ErrNoActiveSPS
	}
	sps := p.SPSByID(pps.SeqParameterSetID)
	if sps == nil || !sps.Valid {
		return ErrNoActiveSPS
	}

	spsChanged := p.ActiveSPS == nil || p.ActiveSPS.SeqParameterSetID != sps.SeqParameterSetID
	ppsChanged := p.ActivePPS == nil || p.ActivePPS.PicParameterSetID != pps.PicParameterSetID

	p.ActiveSPS = sps
	p.ActivePPS = pps

	if spsChanged || ppsChanged {
		p.Dimensions = ComputeDimensions(sps)
		p.ChromaQP = ComputeChromaQPTables(sps, pps)
		p.Dequant = ComputeDequantTables(sps, pps)
	}
	return nil
}

// Dimensions is the picture geometry derived from the active SPS
// (7.4.2.1.1).
type Dimensions struct {
	MbWidth  int
	MbHeight int
	MbNum    int
	Width    int
	Height   int
}

// ComputeDimensions derives Dimensions from an SPS (Invariant 5:
// mb_num = mb_width * mb_height; width = 16*mb_width; height already
// folds in frame_mbs_only_flag through mb_height).
func ComputeDimensions(sps *SPS) Dimensions {
	mbWidth := int(sps.PicWidthInMbsMinus1) + 1
	frameHeightInMbs := (2 - int(sps.FrameMbsOnlyFlag)) * (int(sps.PicHeightInMapUnitsMinus1) + 1)
	return Dimensions{
		MbWidth:  mbWidth,
		MbHeight: frameHeightInMbs,
		MbNum:    mbWidth * frameHeightInMbs,
		Width:    mbWidth * 16,
		Height:   frameHeightInMbs * 16,
	}
}

// ChromaQPTables holds the two derived chroma-QP mapping tables (index
// 0: cb via chroma_qp_index_offset, index 1: cr via
// second_chroma_qp_index_offset), each indexed by luma QP' in
// [0, 51+6*bit_depth_luma_minus8].
type ChromaQPTables struct {
	Table [2][]uint8
}

// chromaQPBase is Table 8-15's flattening curve for qPI in [30,51]
// (below 30 the mapping is the identity). The same curve is used for
// every bit depth: there is no separate table for
// bit_depth_luma_minus8 > 0.
var chromaQPBase = [22]uint8{
	29, 30, 31, 32, 32, 33, 34, 34, 35, 35,
	36, 36, 37, 37, 37, 38, 38, 38, 39, 39,
	39, 39,
}

// chromaQP maps qPI (already clamped into the extended range) to QPc
// per Table 8-15: identity below 30, then the standard's flattening
// curve up to 51. Any qPI above 51 is treated as 51, so it maps to 39.
func chromaQP(qPI int) uint8 {
	if qPI < 30 {
		return uint8(qPI)
	}
	if qPI > 51 {
		qPI = 51
	}
	return chromaQPBase[qPI-30]
}

// ComputeChromaQPTables builds the two per-offset chroma-QP tables
// (Invariant 4). q ranges over [0, 51+6*bit_depth_luma_minus8]; the
// table output is chroma_qp(clamp(q+offset, 0, 51+6*bit_depth_luma_minus8)).
func ComputeChromaQPTables(sps *SPS, pps *PPS) ChromaQPTables {
	maxQ := 51 + 6*int(sps.BitDepthLumaMinus8)
	offsets := [2]int{int(pps.ChromaQpIndexOffset), int(pps.SecondChromaQpIndexOffset)}

	var out ChromaQPTables
	for i := 0; i < 2; i++ {
		table := make([]uint8, maxQ+1)
		for q := 0; q <= maxQ; q++ {
			qPI := q + offsets[i]
			if qPI < 0 {
				qPI = 0
			} else if qPI > maxQ {
				qPI = maxQ
			}
			table[q] = chromaQP(qPI)
		}
		out.Table[i] = table
	}
	return out
}

// dequant4x4V and dequant8x8V are the standard's v[qp%6][...] tables
// used to derive level_scale (8.5.9, Table for normAdjust4x4 /
// normAdjust8x8).
var dequant4x4V = [6][3]int32{
	{10, 13, 16},
	{11, 14, 18},
	{13, 16, 20},
	{14, 18, 23},
	{16, 20, 25},
	{18, 23, 29},
}

var dequant8x8V = [6][6]int32{
	{20, 18, 32, 19, 25, 24},
	{22, 19, 35, 21, 28, 26},
	{26, 23, 42, 24, 33, 31},
	{28, 25, 45, 26, 35, 33},
	{32, 28, 51, 30, 40, 38},
	{36, 32, 58, 34, 46, 43},
}

// dequant4x4Pos maps a 4x4 raster position to one of the three v
// columns (position (0,0),(0,2),(2,0),(2,2) use column 0; odd,odd
// positions use column 2; the rest use column 1), matching the column
// order {10,13,16} quoted in spec.md §4.4 with column 0 the
// doubly-even value, column 2 the odd,odd value, column 1 everything
// else.
func dequant4x4Pos(idx int) int {
	x, y := idx%4, idx/4
	switch {
	case x%2 == 0 && y%2 == 0:
		return 0
	case x%2 == 1 && y%2 == 1:
		return 2
	default:
		return 1
	}
}

// dequant8x8Pos maps an 8x8 raster position to one of the six v
// columns per the standard's m[i][j] pattern.
func dequant8x8Pos(idx int) int {
	x, y := idx%8, idx/8
	switch {
	case x%4 == 0 && y%4 == 0:
		return 0
	case x%2 == 1 && y%2 == 1:
		return 1
	case x%4 == 2 && y%4 == 2:
		return 2
	case (x%4 == 0 && y%2 == 1) || (x%2 == 1 && y%4 == 0):
		return 3
	case (x%4 == 0 && y%4 == 2) || (x%4 == 2 && y%4 == 0):
		return 4
	default:
		return 5
	}
}

// LevelScaleTable is a single derived dequantisation table: 52
// (or 52+6*n) QP rows, each a slice of per-position multipliers.
type LevelScaleTable struct {
	Rows [][]int32
}

// DequantTables holds the six 4x4 and six 8x8 derived tables,
// deduplicated by identity when two scaling lists are byte-identical.
type DequantTables struct {
	Table4x4 [6]*LevelScaleTable
	Table8x8 [6]*LevelScaleTable
}

// ComputeDequantTables derives level-scale tables for every QP and
// every one of the SPS/PPS's twelve scaling lists (8.5.9), sharing a
// single backing table between lists with identical content.
func ComputeDequantTables(sps *SPS, pps *PPS) DequantTables {
	m := pps.ScalingMatrices
	if pps.PicScalingMatrixPresentFlag == 0 && pps.Transform8x8ModeFlag == 0 {
		m = sps.ScalingMatrices
	}

	maxQ := 51 + 6*int(sps.BitDepthLumaMinus8)
	bypassQP0 := sps.QpprimeYZeroTransformBypassFlag == 1

	var out DequantTables
	cache4 := map[[16]int8]*LevelScaleTable{}
	for i := 0; i < 6; i++ {
		list := m.List4x4[i]
		if t, ok := cache4[list]; ok {
			out.Table4x4[i] = t
			continue
		}
		t := buildLevelScale4x4(list[:], maxQ, bypassQP0)
		cache4[list] = t
		out.Table4x4[i] = t
	}

	cache8 := map[[64]int8]*LevelScaleTable{}
	for i := 0; i < 6; i++ {
		list := m.List8x8[i]
		if t, ok := cache8[list]; ok {
			out.Table8x8[i] = t
			continue
		}
		t := buildLevelScale8x8(list[:], maxQ, bypassQP0)
		cache8[list] = t
		out.Table8x8[i] = t
	}

	return out
}

func buildLevelScale4x4(list []int8, maxQ int, bypassQP0 bool) *LevelScaleTable {
	t := &LevelScaleTable{Rows: make([][]int32, maxQ+1)}
	for qp := 0; qp <= maxQ; qp++ {
		row := make([]int32, 16)
		if qp == 0 && bypassQP0 {
			for i := range row {
				row[i] = 1 << 6
			}
			t.Rows[qp] = row
			continue
		}
		vRow := dequant4x4V[qp%6]
		shift := qp / 6
		for i := 0; i < 16; i++ {
			row[i] = int32(list[i]) * vRow[dequant4x4Pos(i)] << uint(shift)
		}
		t.Rows[qp] = row
	}
	return t
}

func buildLevelScale8x8(list []int8, maxQ int, bypassQP0 bool) *LevelScaleTable {
	t := &LevelScaleTable{Rows: make([][]int32, maxQ+1)}
	for qp := 0; qp <= maxQ; qp++ {
		row := make([]int32, 64)
		if qp == 0 && bypassQP0 {
			for i := range row {
				row[i] = 1 << 6
			}
			t.Rows[qp] = row
			continue
		}
		vRow := dequant8x8V[qp%6]
		shift := qp / 6
		for i := 0; i < 64; i++ {
			row[i] = int32(list[i]) * vRow[dequant8x8Pos(i)] << uint(shift)
		}
		t.Rows[qp] = row
	}
	return t
}
