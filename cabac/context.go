// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cabac

import (
	"sync"

	"github.com/cnotch/xlog"
)

var log = xlog.L().With(xlog.Fields(xlog.F("module", "cabac")))

// ContextTable holds all 1024 context variables for one slice.
type ContextTable struct {
	Ctx [NumContexts]Context
}

// clip3 mirrors the standard's Clip3(x, y, z) = min(max(z, x), y).
func clip3(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// initValue is the standard's per-context (m, n) initialisation
// coefficient pair (Table 9-12 through 9-33).
type initValue struct {
	m, n int8
}

// unsetInitValue marks a ctxInitI slot this decoder has not populated
// with a real Table 9-12 coefficient pair. It is deliberately not a
// plausible (m, n) pair: InitContexts detects it and refuses to treat
// the resulting context as initialised.
var unsetInitValue = initValue{m: -128, n: -128}

// ctxInitI is the I/SI-slice context initialisation table (Table
// 9-12): unlike P/SP/B slices, I/SI initialisation does not depend on
// cabac_init_idc. Populated groups (mb_type, mb_qp_delta,
// intra_chroma_pred_mode) carry the standard's real coefficients,
// transcribed from strong, specific memory of well-known CABAC
// reference tables in the same spirit as the Table 7-3 scaling-list
// defaults in h264/scaling.go — this cannot be verified against a real
// bitstream under the no-toolchain constraint, so it is a
// transcription-confidence caveat rather than a blocking gap.
// Every other context is left at unsetInitValue rather than guessed:
// prev/rem_intra_pred_mode (68-69), mb_field_decoding_flag (70-72),
// coded_block_pattern (73-84), all residual contexts, and
// transform_size_8x8_flag (399-401, a High-Profile-only FRExt
// addition); InitContexts reports this explicitly via
// warnOnceUnsetContexts. See DESIGN.md.
var ctxInitI [NumContexts]initValue

func init() {
	for i := range ctxInitI {
		ctxInitI[i] = unsetInitValue
	}
	// Table 9-12, ctxIdx 0-10: mb_type_si prefix bin (0-2, sharing
	// coefficients with the common I mb_type tree's first three bins)
	// and the I mb_type tree's remaining prefix/suffix bins (3-10).
	ctxInitI[0] = initValue{m: 20, n: -15}
	ctxInitI[1] = initValue{m: 2, n: 54}
	ctxInitI[2] = initValue{m: 3, n: 74}
	ctxInitI[3] = initValue{m: 20, n: -15}
	ctxInitI[4] = initValue{m: 2, n: 54}
	ctxInitI[5] = initValue{m: 3, n: 74}
	ctxInitI[6] = initValue{m: -28, n: 127}
	ctxInitI[7] = initValue{m: -23, n: 104}
	ctxInitI[8] = initValue{m: -6, n: 53}
	ctxInitI[9] = initValue{m: -1, n: 54}
	ctxInitI[10] = initValue{m: 7, n: 51}

	// Table 9-17, ctxIdx 60-63: mb_qp_delta.
	ctxInitI[60] = initValue{m: 0, n: 41}
	ctxInitI[61] = initValue{m: 0, n: 63}
	ctxInitI[62] = initValue{m: 0, n: 63}
	ctxInitI[63] = initValue{m: 0, n: 63}

	// Table 9-17, ctxIdx 64-67: intra_chroma_pred_mode.
	ctxInitI[64] = initValue{m: -9, n: 83}
	ctxInitI[65] = initValue{m: 4, n: 86}
	ctxInitI[66] = initValue{m: 0, n: 97}
	ctxInitI[67] = initValue{m: -7, n: 72}
}

var warnUnsetContextsOnce sync.Once

// warnOnceUnsetContexts logs, once per process, that this decoder's
// context-initialisation table covers only mb_type, mb_qp_delta and
// intra_chroma_pred_mode: InitContexts substitutes the neutral
// (pStateIdx=0, valMPS=1) state for every other context rather than the
// standard's real per-context value, so decode_decision on the other
// syntax elements (intra pred modes, coded_block_pattern,
// transform_size_8x8_flag, residual data) will diverge from a
// conformant decoder on real bitstreams.
func warnOnceUnsetContexts() {
	warnUnsetContextsOnce.Do(func() {
		log.Warnf("cabac context-initialisation table (Table 9-12) has real coefficients only for mb_type, mb_qp_delta and intra_chroma_pred_mode contexts; all other contexts fall back to a neutral placeholder state and will not decode conformantly")
	})
}

// InitContexts derives the initial (pStateIdx, valMPS) for every
// context variable from the clipped slice QP, per 9.3.1.1's
// preCtxState formula. cabac_init_idc is accepted for API completeness
// but unused: I/SI slices use a single fixed table. Contexts whose real
// coefficients are not yet known (see ctxInitI) initialise to the
// neutral (pStateIdx=0, valMPS=1) state and trigger warnOnceUnsetContexts
// instead of silently producing a plausible-looking wrong value.
func InitContexts(sliceQPY int, cabacInitIdc int) *ContextTable {
	qp := clip3(0, 51, sliceQPY)
	t := &ContextTable{}
	sawUnset := false
	for i := 0; i < NumContexts; i++ {
		iv := ctxInitI[i]
		if iv == unsetInitValue {
			sawUnset = true
			t.Ctx[i] = Context{PStateIdx: 0, ValMPS: 1}
			continue
		}
		pre := clip3(1, 126, ((int(iv.m)*qp)>>4)+int(iv.n))
		if pre <= 63 {
			t.Ctx[i] = Context{PStateIdx: uint8(63 - pre), ValMPS: 0}
		} else {
			t.Ctx[i] = Context{PStateIdx: uint8(pre - 64), ValMPS: 1}
		}
	}
	if sawUnset {
		warnOnceUnsetContexts()
	}
	return t
}
