// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"github.com/cnotch/h264nal/bits"
	"github.com/cnotch/h264nal/cabac"
	"github.com/cnotch/h264nal/h264"
	"github.com/cnotch/h264nal/mb"
)

// intra16x16Table maps mb_type (1..24) to (predMode, cbpChroma, cbpLuma)
// per the standard's Table 7-11: predMode cycles fastest, then
// cbpChroma, then a cbpLuma jump from 0 to 15 at mb_type 13.
func intra16x16Table(mbType uint32) (predMode int8, cbpChroma, cbpLuma uint8) {
	n := mbType - 1
	predMode = int8(n % 4)
	cbpChroma = uint8((n / 4) % 3)
	if n >= 12 {
		cbpLuma = 15
	}
	return
}

// sliceDecoder holds the per-slice state threaded through the
// macroblock loop: the arithmetic engine, its context table, the
// picture's macroblock array, and the neighbour-value caches that
// feed ctxIdxInc derivation and predicted mode computation.
type sliceDecoder struct {
	e  *cabac.Engine
	ct *cabac.ContextTable

	sh  *h264.SliceHeader
	pic *mb.Picture

	modeCache *mb.Cache

	// Non-zero-count caches, one per component: chroma has its own
	// 4-block (4:2:0) or 8-block layout distinct from luma's 16, so
	// sharing one Cache across components would alias unrelated blocks.
	nzCacheLuma *mb.Cache
	nzCacheCb   *mb.Cache
	nzCacheCr   *mb.Cache

	sliceNum   int
	lastQPDeltaNonZero bool
	qpY                int32
}

// decodeIntraSlice runs the CABAC macroblock loop for an I/SI slice
// starting at first_mb_in_slice, per spec.md §4.7's macroblock decode
// path. It stops at the first decode_terminate=1 (end_of_slice_flag)
// or engine underrun, and never attempts inverse transform, intra
// prediction, or any other pixel reconstruction: those are out of
// scope, this loop only recovers the per-macroblock syntax record.
func (d *Decoder) decodeIntraSlice(sh *h264.SliceHeader) {
	if d.picture.MbAffFrame {
		log.Warnf("mbaff picture: macroblock-pair neighbour derivation (mb/mb.go's RefineMBAFF) is not implemented, refusing to decode this slice's CABAC data rather than resolve ctxIdxInc against the wrong neighbours")
		return
	}

	r := bits.NewReader(d.sliceRBSP)
	if !r.SeekBits(int64(sh.SliceDataBytePos)*8 + int64(sh.SliceDataBitOffset)) {
		log.Warnf("slice data cursor out of range")
		return
	}
	e, ok := cabac.NewEngine(r)
	if !ok {
		log.Warnf("cabac engine init failed: insufficient slice data")
		return
	}

	qp := clip3i(0, 51+6*int(sh.SPS.BitDepthLumaMinus8), 26+int(sh.PPS.PicInitQpMinus26)+int(sh.SliceQpDelta))
	sd := &sliceDecoder{
		e:           e,
		ct:          cabac.InitContexts(qp, int(sh.CabacInitIdc)),
		sh:          sh,
		pic:         d.picture,
		modeCache:   mb.NewCache(),
		nzCacheLuma: mb.NewCache(),
		nzCacheCb:   mb.NewCache(),
		nzCacheCr:   mb.NewCache(),
		sliceNum:    d.sliceCount,
		qpY:         int32(qp),
	}

	mbX := int(sh.FirstMbInSlice) % d.picture.MbWidth
	mbY := int(sh.FirstMbInSlice) / d.picture.MbWidth

	for {
		mbPos := mbY*d.picture.MbWidth + mbX
		if mbPos < 0 || mbPos >= len(d.picture.Records) {
			break
		}

		rec := mb.NewRecord(mbX, mbY, mbPos, sd.sliceNum)
		rec.A, rec.B, rec.C, rec.D = d.picture.RasterNeighbours(mbX, mbY, mbPos, sd.sliceNum)
		rec.Left, rec.Top = rec.A, rec.B

		if !sd.decodeMacroblock(rec) {
			break
		}
		d.picture.Records[mbPos] = rec

		end, ok := e.DecodeTerminate()
		if !ok {
			break
		}
		if end == 1 {
			break
		}

		nx, ny, done := d.picture.Advance(mbX, mbY)
		mbX, mbY = nx, ny
		if done {
			break
		}
	}
}

func clip3i(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func neighbourAt(pic *mb.Picture, n int) *mb.Record {
	if n < 0 || n >= len(pic.Records) {
		return nil
	}
	return pic.Records[n]
}

// decodeMacroblock decodes one macroblock's syntax elements into rec.
// It returns false on any engine underrun, at which point the slice
// loop stops as if end_of_slice_flag had been reached.
func (sd *sliceDecoder) decodeMacroblock(rec *mb.Record) bool {
	// decodeIntraSlice refuses to run this loop at all for MBAFF
	// pictures (mb/mb.go's leftBlocksTables/RefineMBAFF neighbour
	// derivation is not implemented), so mb_field_decoding_flag and its
	// per-pair FieldDecoding inheritance never need to be decoded here.
	a := neighbourAt(sd.pic, rec.A)
	b := neighbourAt(sd.pic, rec.B)

	isSI := sd.sh.SliceType == h264.SliceTypeSI
	if isSI {
		si, ok := cabac.DecodeMbTypeSI(sd.e, sd.ct, a, b)
		if !ok {
			return false
		}
		if si {
			// SI-slice mb_type 0 (Intra_4x4-only variant); handled the
			// same as I_NxN below.
			return sd.decodeAsINxN(rec, a, b)
		}
	}

	mbType, isPCM, ok := cabac.DecodeMbTypeI(sd.e, sd.ct, a, b)
	if !ok {
		return false
	}
	if isPCM {
		return sd.decodeIPCM(rec)
	}
	if mbType == 0 {
		return sd.decodeAsINxN(rec, a, b)
	}
	return sd.decodeAsI16x16(rec, a, b, mbType)
}

// decodeIPCM handles I_PCM: it byte-aligns, skips the raw sample
// payload, and leaves the CABAC engine in the reinitialised state the
// standard requires after pcm_sample data (9.3.1.2), driven directly
// off the underlying bit reader rather than the arithmetic decoder.
func (sd *sliceDecoder) decodeIPCM(rec *mb.Record) bool {
	rec.Type = mb.TypeIPCM | mb.TypeIntra
	dims := struct{ w, h, chromaW, chromaH int }{16, 16, 0, 0}
	sps := sd.sh.SPS
	if sps.ChromaArrayType() != 0 {
		subW, subH := 2, 2
		if sps.ChromaFormatIdc == 2 {
			subH = 1
		} else if sps.ChromaFormatIdc == 3 {
			subW, subH = 1, 1
		}
		dims.chromaW = 16 / subW
		dims.chromaH = 16 / subH
	}
	bitDepthY := 8 + int(sps.BitDepthLumaMinus8)
	sampleBits := dims.w*dims.h*bitDepthY + 2*dims.chromaW*dims.chromaH*bitDepthY

	r := sd.e.Reader()
	for r.BitOffset() != 0 {
		if _, ok := r.ReadBit(); !ok {
			return false
		}
	}
	for i := 0; i < sampleBits; i++ {
		if _, ok := r.ReadBit(); !ok {
			return false
		}
	}
	ne, ok := cabac.NewEngine(r)
	if !ok {
		return false
	}
	sd.e = ne
	sd.lastQPDeltaNonZero = false
	rec.CbpLuma, rec.CbpChroma = 0x0f, 2
	for i := range rec.NonZeroCount {
		rec.NonZeroCount[i] = 16
	}
	return true
}

func (sd *sliceDecoder) decodeAsI16x16(rec *mb.Record, a, b *mb.Record, mbType uint32) bool {
	predMode, cbpChroma, cbpLuma := intra16x16Table(mbType)
	rec.Type = mb.TypeIntra16x16 | mb.TypeIntra
	rec.IntraLumaPredModes[0] = predMode
	rec.CbpLuma = cbpLuma
	rec.CbpChroma = cbpChroma

	chroma, ok := sd.decodeChromaAndQP(rec, a, b)
	if !ok {
		return false
	}
	rec.IntraChromaPredMode = chroma

	if !sd.decodeMbQpDelta(rec) {
		return false
	}
	if !sd.decodeResidual(rec, cbpLuma, cbpChroma, false) {
		return false
	}
	return true
}

func (sd *sliceDecoder) decodeAsINxN(rec *mb.Record, a, b *mb.Record) bool {
	rec.Type = mb.TypeIntra4x4 | mb.TypeIntra

	transform8x8 := uint8(0)
	if sd.sh.PPS.Transform8x8ModeFlag == 1 {
		t, ok := cabac.DecodeTransformSize8x8Flag(sd.e, sd.ct, a, b)
		if !ok {
			return false
		}
		transform8x8 = t
	}

	// nBlocks iterates the luma4x4BlkIdx sequence; for transform_8x8 each
	// 8x8 partition's mode is decoded at its top-left 4x4 index (0,4,8,12)
	// per the standard's block numbering and cached in all four of its
	// 4x4 cells, so the same PredictedIntraMode derivation off left/top
	// neighbours works unmodified.
	nBlocks := 16
	step := 1
	if transform8x8 == 1 {
		nBlocks = 4
		step = 4
	}
	for n := 0; n < nBlocks; n++ {
		i := n * step
		predFlag, ok := cabac.DecodePrevIntraPredModeFlag(sd.e, sd.ct)
		if !ok {
			return false
		}
		left := sd.modeCache.Left(i)
		top := sd.modeCache.Top(i)
		predicted := cabac.PredictedIntraMode(cacheToMode(left), cacheToMode(top))

		var mode int8
		if predFlag == 1 {
			mode = predicted
		} else {
			rem, ok := cabac.DecodeRemIntraPredMode(sd.e, sd.ct)
			if !ok {
				return false
			}
			m := int8(rem)
			if m >= predicted {
				m++
			}
			mode = m
		}
		rec.IntraLumaPredModes[n] = mode
		for j := 0; j < step; j++ {
			sd.modeCache.Set(i+j, byte(mode))
		}
	}

	chroma, ok := sd.decodeChromaAndQP(rec, a, b)
	if !ok {
		return false
	}
	rec.IntraChromaPredMode = chroma

	cbpA := [4]int{-1, -1, -1, -1}
	cbpB := [4]int{-1, -1, -1, -1}
	if a != nil {
		for i := 0; i < 4; i++ {
			cbpA[i] = int((a.CbpLuma >> uint(i)) & 1)
		}
	}
	if b != nil {
		for i := 0; i < 4; i++ {
			cbpB[i] = int((b.CbpLuma >> uint(i)) & 1)
		}
	}
	cbpLuma, ok := cabac.DecodeCbpLuma(sd.e, sd.ct, cbpA, cbpB)
	if !ok {
		return false
	}
	cbpChromaA, cbpChromaB := 0, 0
	if a != nil {
		cbpChromaA = int(a.CbpChroma)
	}
	if b != nil {
		cbpChromaB = int(b.CbpChroma)
	}
	cbpChroma, ok := cabac.DecodeCbpChroma(sd.e, sd.ct, cbpChromaA, cbpChromaB)
	if !ok {
		return false
	}
	rec.CbpLuma = cbpLuma
	rec.CbpChroma = cbpChroma

	if cbpLuma != 0 || cbpChroma != 0 {
		if !sd.decodeMbQpDelta(rec) {
			return false
		}
	} else {
		sd.lastQPDeltaNonZero = false
	}

	return sd.decodeResidual(rec, cbpLuma, cbpChroma, transform8x8 == 1)
}

// cacheToMode converts a mode-cache byte back to a signed prediction
// mode, treating the cache's unavailable marker (0xff) as -1.
func cacheToMode(v byte) int8 {
	if v == 0xff {
		return -1
	}
	return int8(v)
}

func (sd *sliceDecoder) decodeChromaAndQP(rec *mb.Record, a, b *mb.Record) (int8, bool) {
	if rec.Type&mb.TypeIntra == 0 {
		return 0, true
	}
	mode, ok := cabac.DecodeIntraChromaPredMode(sd.e, sd.ct, a, b)
	if !ok {
		return 0, false
	}
	return int8(mode), true
}

func (sd *sliceDecoder) decodeMbQpDelta(rec *mb.Record) bool {
	delta, ok := cabac.DecodeMbQpDelta(sd.e, sd.ct, sd.lastQPDeltaNonZero)
	if !ok {
		return false
	}
	sd.lastQPDeltaNonZero = delta != 0
	qpBdOffsetY := int32(6 * sd.sh.SPS.BitDepthLumaMinus8)
	sd.qpY = ((sd.qpY+delta+52+2*qpBdOffsetY)%(52+qpBdOffsetY)) - qpBdOffsetY
	rec.LumaQP = sd.qpY
	return true
}

// decodeResidual decodes the coded_block_flag/significance
// map/coeff_abs_level_minus1 syntax for every present transform
// block, recording only each block's count of significant coefficients
// in rec.NonZeroCount (luma at 0-15, Cb at 16-31, Cr at 32-47; the DC
// slots are not written): the level values themselves feed dequantisation
// and inverse transform, which are out of scope. is8x8 selects the
// I_NxN transform_size_8x8_flag=1 layout, where each set luma cbp bit
// covers a single 64-coefficient 8x8 block (category Luma8x8) instead
// of four 4x4 blocks.
func (sd *sliceDecoder) decodeResidual(rec *mb.Record, cbpLuma, cbpChroma uint8, is8x8 bool) bool {
	nzCaches := [3]*mb.Cache{sd.nzCacheLuma, sd.nzCacheCb, sd.nzCacheCr}
	for _, cache := range nzCaches {
		cache.Reset()
	}
	hasLumaDC := !is8x8 && rec.Type&mb.TypeIntra16x16 != 0
	if hasLumaDC {
		if !sd.decodeBlock(rec, cabac.CatLumaDC, nil, -1, 16) {
			return false
		}
	}
	if is8x8 {
		for i8x8 := 0; i8x8 < 4; i8x8++ {
			if cbpLuma&(1<<uint(i8x8)) == 0 {
				continue
			}
			if !sd.decodeBlock(rec, cabac.CatLuma8x8, sd.nzCacheLuma, i8x8*4, 64) {
				return false
			}
		}
	} else {
		for i8x8 := 0; i8x8 < 4; i8x8++ {
			if cbpLuma&(1<<uint(i8x8)) == 0 {
				continue
			}
			for i := 0; i < 4; i++ {
				blk := i8x8*4 + i
				cat := cabac.CatLuma4x4
				numCoeff := 16
				if hasLumaDC {
					cat = cabac.CatLumaAC
					numCoeff = 15
				}
				if !sd.decodeBlock(rec, cat, sd.nzCacheLuma, blk, numCoeff) {
					return false
				}
			}
		}
	}
	chromaCaches := [2]*mb.Cache{sd.nzCacheCb, sd.nzCacheCr}
	if cbpChroma >= 1 {
		for c := 0; c < 2; c++ {
			if !sd.decodeBlock(rec, cabac.CatChromaDC, nil, -1, 4) {
				return false
			}
		}
	}
	if cbpChroma == 2 {
		for c := 0; c < 2; c++ {
			for i := 0; i < 4; i++ {
				if !sd.decodeBlock(rec, cabac.CatChromaAC, chromaCaches[c], i, 15) {
					return false
				}
			}
		}
	}
	for c, cache := range nzCaches {
		for i := 0; i < 16; i++ {
			if v := cache.Get(i); v != 0xff {
				rec.NonZeroCount[c*16+i] = v
			}
		}
	}
	return true
}

// decodeBlock decodes one transform block's coded_block_flag and, if
// set, its significance map and coefficient magnitudes, updating the
// component-specific non-zero-count cache. blk4x4 is -1 for DC
// blocks, which have no per-block cache entry in this model; cache is
// nil in that case.
func (sd *sliceDecoder) decodeBlock(rec *mb.Record, cat cabac.CtxBlockCat, cache *mb.Cache, blk4x4 int, numCoeff int) bool {
	nza, nzb := 0, 0
	if blk4x4 >= 0 {
		left := cache.Left(blk4x4)
		top := cache.Top(blk4x4)
		if left != 0xff && left != 0 {
			nza = 1
		}
		if top != 0xff && top != 0 {
			nzb = 1
		}
	}

	cbf, ok := cabac.DecodeCodedBlockFlag(sd.e, sd.ct, cat, nza, nzb)
	if !ok {
		return false
	}
	if cbf == 0 {
		if blk4x4 >= 0 {
			cache.Set(blk4x4, 0)
		}
		return true
	}

	mask, ok := cabac.SignificanceMap(sd.e, sd.ct, cat, numCoeff)
	if !ok {
		return false
	}

	numGT1, numEq1 := 0, 0
	total := 0
	for i := 0; i < numCoeff; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		level, ok := cabac.CoeffAbsLevelMinus1(sd.e, sd.ct, cat, numGT1, numEq1)
		if !ok {
			return false
		}
		if level > 0 {
			numGT1++
		} else {
			numEq1++
		}
		if _, ok := sd.e.DecodeBypass(); !ok { // coeff_sign_flag
			return false
		}
		total++
	}

	if blk4x4 >= 0 {
		v := byte(total)
		if v == 0 {
			v = 1 // coded_block_flag was set; record as non-zero regardless
		}
		cache.Set(blk4x4, v)
	}
	return true
}
