// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cabac

import "github.com/cnotch/h264nal/mb"

// ctxIdxInc offsets for the I/SI-slice syntax elements this decoder
// implements (9.3.3.1.1, spec.md §4.7's table).
const (
	ctxMbFieldDecodingFlag = 70
	ctxMbTypeSI            = 0
	ctxMbTypeI             = 3
	ctxTransformSize8x8    = 399
	ctxCbpLuma             = 73
	ctxCbpChroma           = 77
	ctxMbQpDelta           = 60
	ctxPrevIntraPredMode   = 68
	ctxRemIntraPredMode    = 69
	ctxIntraChromaPredMode = 64
)

// pcmTerminate is the mb_type value the standard reserves for I_PCM,
// reached via decode_terminate rather than the regular mb_type tree.
const pcmTerminate = 25

// neighbourIntraFlag reports whether a neighbour macroblock exists,
// belongs to the same slice, and is field/intra as required by a
// ctxIdxInc condition. rec is nil when the neighbour is unavailable.
func neighbourIntraFlag(rec *mb.Record, cond func(*mb.Record) bool) int {
	if rec == nil {
		return 0
	}
	if cond(rec) {
		return 1
	}
	return 0
}

// DecodeMbFieldDecodingFlag decodes mb_field_decoding_flag for the top
// macroblock of an MBAFF pair (ctxIdxInc from A/B's own flag).
func DecodeMbFieldDecodingFlag(e *Engine, ct *ContextTable, a, b *mb.Record) (uint8, bool) {
	inc := neighbourIntraFlag(a, func(r *mb.Record) bool { return r.FieldDecoding }) +
		neighbourIntraFlag(b, func(r *mb.Record) bool { return r.FieldDecoding })
	return e.DecodeDecision(&ct.Ctx[ctxMbFieldDecodingFlag+inc])
}

// DecodeMbTypeI decodes mb_type for an I slice. bin0 (ctxIdx 3..5,
// neighbour-conditioned) selects I_NxN vs. I_16x16-or-PCM; a
// decode_terminate bin then escapes to I_PCM (mb_type 25). The
// remaining I_16x16 bins are NOT a uniform truncated-unary walk: per
// Table 9-36/Table 7-11, mb_type = 1 + pred_mode + 4*cbp_chroma +
// 12*cbp_luma, where cbp_luma is a single FL bin (ctxIdx 6), cbp_chroma
// is a 1-2 bin truncated-unary string over {0,1,2} (ctxIdx 7, then 8),
// and pred_mode is two FL bins with weights 2 and 1 (ctxIdx 9, 10).
func DecodeMbTypeI(e *Engine, ct *ContextTable, a, b *mb.Record) (mbType uint32, isPCM bool, ok bool) {
	inc := neighbourIntraFlag(a, func(r *mb.Record) bool { return r.Type&mb.TypeIntra4x4 == 0 }) +
		neighbourIntraFlag(b, func(r *mb.Record) bool { return r.Type&mb.TypeIntra4x4 == 0 })

	bin0, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeI+inc])
	if !ok {
		return 0, false, false
	}
	if bin0 == 0 {
		return 0, false, true // I_NxN
	}

	term, ok := e.DecodeTerminate()
	if !ok {
		return 0, false, false
	}
	if term == 1 {
		return pcmTerminate, true, true
	}

	cbpLumaBit, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeI+3])
	if !ok {
		return 0, false, false
	}

	cbpChromaBit1, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeI+4])
	if !ok {
		return 0, false, false
	}
	cbpChroma := uint32(0)
	if cbpChromaBit1 != 0 {
		cbpChromaBit2, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeI+5])
		if !ok {
			return 0, false, false
		}
		if cbpChromaBit2 != 0 {
			cbpChroma = 2
		} else {
			cbpChroma = 1
		}
	}

	predBit1, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeI+6])
	if !ok {
		return 0, false, false
	}
	predBit2, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeI+7])
	if !ok {
		return 0, false, false
	}

	mbType = 1 + 2*uint32(predBit1) + uint32(predBit2) + 4*cbpChroma
	if cbpLumaBit != 0 {
		mbType += 12
	}
	return mbType, false, true
}

// DecodeMbTypeSI decodes the leading SI-vs-I switching bin (ctxIdx 0)
// before falling through to the I mb_type tree.
func DecodeMbTypeSI(e *Engine, ct *ContextTable, a, b *mb.Record) (isSI bool, ok bool) {
	inc := neighbourIntraFlag(a, func(r *mb.Record) bool { return r.Type != 0 }) +
		neighbourIntraFlag(b, func(r *mb.Record) bool { return r.Type != 0 })
	bin, ok := e.DecodeDecision(&ct.Ctx[ctxMbTypeSI+inc])
	if !ok {
		return false, false
	}
	return bin == 0, true
}

// DecodeTransformSize8x8Flag decodes transform_size_8x8_flag.
func DecodeTransformSize8x8Flag(e *Engine, ct *ContextTable, a, b *mb.Record) (uint8, bool) {
	inc := neighbourIntraFlag(a, func(r *mb.Record) bool { return r.Type&mb.TypeIntra4x4 != 0 }) +
		neighbourIntraFlag(b, func(r *mb.Record) bool { return r.Type&mb.TypeIntra4x4 != 0 })
	return e.DecodeDecision(&ct.Ctx[ctxTransformSize8x8+inc])
}

// DecodePrevIntraPredModeFlag / DecodeRemIntraPredMode implement the
// per-4x4/8x8-block luma intra prediction mode syntax.
func DecodePrevIntraPredModeFlag(e *Engine, ct *ContextTable) (uint8, bool) {
	return e.DecodeDecision(&ct.Ctx[ctxPrevIntraPredMode])
}

func DecodeRemIntraPredMode(e *Engine, ct *ContextTable) (mode uint8, ok bool) {
	for i := 0; i < 3; i++ {
		bin, ok := e.DecodeDecision(&ct.Ctx[ctxRemIntraPredMode])
		if !ok {
			return 0, false
		}
		mode |= bin << uint(i)
	}
	return mode, true
}

// PredictedIntraMode returns min(left, top) per the standard's
// predIntra4x4PredMode, treating an unavailable neighbour (-1) as DC
// (mode 2) under constrained intra prediction.
func PredictedIntraMode(left, top int8) int8 {
	if left < 0 {
		left = 2
	}
	if top < 0 {
		top = 2
	}
	if left < top {
		return left
	}
	return top
}

// DecodeIntraChromaPredMode decodes intra_chroma_pred_mode as a
// truncated unary string (max 3 ones) over a single incrementing
// ctxIdx base.
func DecodeIntraChromaPredMode(e *Engine, ct *ContextTable, a, b *mb.Record) (mode uint8, ok bool) {
	inc := neighbourIntraFlag(a, func(r *mb.Record) bool { return r.IntraChromaPredMode != 0 }) +
		neighbourIntraFlag(b, func(r *mb.Record) bool { return r.IntraChromaPredMode != 0 })
	bin, ok := e.DecodeDecision(&ct.Ctx[ctxIntraChromaPredMode+inc])
	if !ok || bin == 0 {
		return 0, ok
	}
	for mode = 1; mode < 3; mode++ {
		bin, ok := e.DecodeDecision(&ct.Ctx[ctxIntraChromaPredMode+3])
		if !ok {
			return 0, false
		}
		if bin == 0 {
			break
		}
	}
	return mode, true
}

// DecodeCbpLuma decodes the four coded_block_pattern luma bits, one
// per 8x8 luma subblock, ctxIdxInc driven by the left/top 8x8's own
// cbp bit (cbp_a/cbp_b in the standard's notation). cbpA/cbpB hold the
// four cbp luma bits of macroblocks A/B, each -1 when that neighbour is
// unavailable; a left/top 8x8 inside the current macroblock uses the bit
// already decoded here (9.3.3.1.1.4: an unavailable neighbour
// contributes condTermFlagN=0, the same as a neighbour whose bit is 1 —
// only an available neighbour with bit 0 increments).
func DecodeCbpLuma(e *Engine, ct *ContextTable, cbpA, cbpB [4]int) (cbp uint8, ok bool) {
	for i := 0; i < 4; i++ {
		left, top := cbpA[i^1], cbpB[i^2]
		if i&1 != 0 {
			left = int(cbp>>uint(i-1)) & 1
		}
		if i&2 != 0 {
			top = int(cbp>>uint(i-2)) & 1
		}
		inc := 0
		if left == 0 {
			inc++
		}
		if top == 0 {
			inc += 2
		}
		bin, ok := e.DecodeDecision(&ct.Ctx[ctxCbpLuma+inc])
		if !ok {
			return 0, false
		}
		if bin != 0 {
			cbp |= 1 << uint(i)
		}
	}
	return cbp, true
}

// DecodeCbpChroma decodes coded_block_pattern's chroma part as a
// two-stage decision tree (0 = no chroma residual, 1 = DC only, 2 =
// DC+AC), ctxIdxInc from the neighbours' own chroma cbp value.
func DecodeCbpChroma(e *Engine, ct *ContextTable, cbpA, cbpB int) (cbp uint8, ok bool) {
	inc := 0
	if cbpA > 0 {
		inc++
	}
	if cbpB > 0 {
		inc += 2
	}
	bin, ok := e.DecodeDecision(&ct.Ctx[ctxCbpChroma+inc])
	if !ok || bin == 0 {
		return 0, ok
	}
	inc2 := 4
	if cbpA > 1 {
		inc2++
	}
	if cbpB > 1 {
		inc2 += 2
	}
	bin2, ok := e.DecodeDecision(&ct.Ctx[ctxCbpChroma+inc2])
	if !ok {
		return 0, false
	}
	if bin2 == 0 {
		return 1, true
	}
	return 2, true
}

// DecodeMbQpDelta decodes mb_qp_delta as a truncated unary string,
// ctxIdxInc 1 when the previously decoded macroblock's delta was
// non-zero, else 0; bins beyond the first always use ctxIdx 2 or 3
// depending on how many prior ones bins were seen.
func DecodeMbQpDelta(e *Engine, ct *ContextTable, lastNonZero bool) (delta int32, ok bool) {
	inc := 0
	if lastNonZero {
		inc = 1
	}
	bin, ok := e.DecodeDecision(&ct.Ctx[ctxMbQpDelta+inc])
	if !ok || bin == 0 {
		return 0, ok
	}
	count := 1
	for {
		idx := ctxMbQpDelta + 2
		if count > 1 {
			idx = ctxMbQpDelta + 3
		}
		bin, ok := e.DecodeDecision(&ct.Ctx[idx])
		if !ok {
			return 0, false
		}
		if bin == 0 {
			break
		}
		count++
	}
	// se(v)-style mapping: codeNum -> signed delta.
	if count%2 == 1 {
		delta = int32((count + 1) / 2)
	} else {
		delta = -int32(count / 2)
	}
	return delta, true
}
