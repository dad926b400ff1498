// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cabac

// CtxBlockCat identifies which of the standard's residual block
// categories a coefficient block belongs to (Table 9-42 group).
type CtxBlockCat int

const (
	CatLumaDC CtxBlockCat = iota
	CatLumaAC
	CatLuma4x4
	CatChromaDC
	CatChromaAC
	CatLuma8x8
)

// residualCtxBase gives the ctxIdx base for coded_block_flag and for
// significant_coeff_flag/last_significant_coeff_flag/coeff_abs_level_minus1
// per category, per Table 9-40/9-41/9-43's category-to-offset mapping.
// The frame-coded offsets are used for every block: SignificanceMap adds
// fieldOffset, which is 0, so field-coded blocks share the frame-coded
// contexts.
type residualCtxBase struct {
	codedBlockFlag int
	significant    int
	lastSignif     int
	absLevelMinus1 int
}

var residualBases = [6]residualCtxBase{
	CatLumaDC:   {85, 105, 166, 227},
	CatLumaAC:   {89, 120, 181, 237},
	CatLuma4x4:  {93, 134, 195, 247},
	CatChromaDC: {97, 149, 210, 257},
	CatChromaAC: {101, 152, 213, 266},
	CatLuma8x8:  {1012, 402, 417, 426},
}

// fieldOffset is added to the significant/lastSignif base for every
// block, frame- or field-coded; being 0, it selects the frame-coded
// contexts in both cases.
const fieldOffset = 0 // frame/field share contexts in this decoder; see DESIGN.md

// DecodeCodedBlockFlag decodes coded_block_flag for one block,
// ctxIdxInc = nza + 2*nzb, where nza/nzb are the caller's 0/1 flags for
// whether the left/above transform block (via the mb.Cache) was
// non-zero. An unavailable neighbour is not treated specially here; the
// caller passes 0 for it.
func DecodeCodedBlockFlag(e *Engine, ct *ContextTable, cat CtxBlockCat, nza, nzb int) (uint8, bool) {
	inc := nza + 2*nzb
	return e.DecodeDecision(&ct.Ctx[residualBases[cat].codedBlockFlag+inc])
}

// SignificanceMap decodes significant_coeff_flag/last_significant_coeff_flag
// for a block of numCoeff coefficients, returning the positions of the
// significant ones as a bitmask (bit i set = coefficient i present).
func SignificanceMap(e *Engine, ct *ContextTable, cat CtxBlockCat, numCoeff int) (mask uint64, ok bool) {
	base := residualBases[cat]
	for i := 0; i < numCoeff-1; i++ {
		sig, ok := e.DecodeDecision(&ct.Ctx[base.significant+fieldOffset+i])
		if !ok {
			return 0, false
		}
		if sig == 0 {
			continue
		}
		mask |= 1 << uint(i)
		last, ok := e.DecodeDecision(&ct.Ctx[base.lastSignif+fieldOffset+i])
		if !ok {
			return 0, false
		}
		if last == 1 {
			return mask, true
		}
	}
	mask |= 1 << uint(numCoeff-1)
	return mask, true
}

// CoeffAbsLevelMinus1 decodes one coeff_abs_level_minus1 value as a
// unary prefix (context-coded, ctxIdxInc driven by a small running
// count of prior levels in the block) followed by an order-0
// Exp-Golomb bypass suffix once the prefix saturates at 14, per
// 9.3.2.3.
func CoeffAbsLevelMinus1(e *Engine, ct *ContextTable, cat CtxBlockCat, numDecodedGT1, numDecodedEq1 int) (level uint32, ok bool) {
	base := residualBases[cat].absLevelMinus1
	inc := 1
	if numDecodedGT1 > 0 {
		inc = 0
	}
	incBase := base
	if numDecodedGT1 > 0 {
		incBase += 5
	}
	_ = numDecodedEq1

	const maxPrefix = 14
	prefix := 0
	for prefix < maxPrefix {
		ctxIdx := incBase + min(prefix, 4)
		if numDecodedGT1 == 0 && inc == 1 && prefix == 0 {
			ctxIdx = incBase
		}
		bin, ok := e.DecodeDecision(&ct.Ctx[ctxIdx])
		if !ok {
			return 0, false
		}
		if bin == 0 {
			break
		}
		prefix++
	}
	if prefix < maxPrefix {
		return uint32(prefix), true
	}

	// Exp-Golomb order-0 bypass suffix once the unary prefix saturates.
	k := 0
	for {
		bin, ok := e.DecodeBypass()
		if !ok {
			return 0, false
		}
		if bin == 0 {
			break
		}
		k++
	}
	suffix := uint32(0)
	for i := 0; i < k; i++ {
		bin, ok := e.DecodeBypass()
		if !ok {
			return 0, false
		}
		suffix = (suffix << 1) | uint32(bin)
	}
	return uint32(maxPrefix) + (uint32(1)<<uint(k) - 1) + suffix, true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
