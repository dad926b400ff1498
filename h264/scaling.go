// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "github.com/cnotch/h264nal/bits"

// ScalingMatrices holds the six 4x4 and six 8x8 scaling lists a
// sequence or picture parameter set may carry (Table 7-2). Index
// order follows the standard. For 4x4: 0=Intra Y, 1=Intra Cb,
// 2=Intra Cr, 3=Inter Y, 4=Inter Cb, 5=Inter Cr. For 8x8: 0=Intra Y,
// 1=Inter Y, 2=Intra Cb, 3=Inter Cb, 4=Intra Cr, 5=Inter Cr; the 8x8
// Cb/Cr entries (indices 2-5) only exist when chroma_format_idc == 3.
type ScalingMatrices struct {
	Present4x4 [6]bool
	List4x4    [6][16]int8

	Present8x8 [6]bool
	List8x8    [6][64]int8
}

// Table 7-3 default scaling lists.
var default4x4Intra = [16]int8{6, 13, 13, 20, 20, 20, 28, 28, 28, 28, 32, 32, 32, 37, 37, 42}
var default4x4Inter = [16]int8{10, 14, 14, 20, 20, 20, 24, 24, 24, 24, 27, 27, 27, 30, 30, 34}

var default8x8Intra = [64]int8{
	6, 10, 10, 13, 11, 13, 16, 16, 16, 16, 18, 18, 18, 18, 18, 23,
	23, 23, 23, 23, 23, 25, 25, 25, 25, 25, 25, 25, 27, 27, 27, 27,
	27, 27, 27, 27, 29, 29, 29, 29, 29, 29, 29, 29, 31, 31, 31, 31,
	31, 31, 31, 33, 33, 33, 33, 33, 33, 36, 36, 36, 36, 36, 38, 38,
}
var default8x8Inter = [64]int8{
	9, 13, 13, 15, 13, 15, 17, 17, 17, 17, 19, 19, 19, 19, 19, 21,
	21, 21, 21, 21, 21, 22, 22, 22, 22, 22, 22, 22, 24, 24, 24, 24,
	24, 24, 24, 24, 25, 25, 25, 25, 25, 25, 25, 25, 27, 27, 27, 27,
	27, 27, 27, 28, 28, 28, 28, 28, 28, 30, 30, 30, 30, 30, 32, 32,
}

var flat16 = [16]int8{
	16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16,
}
var flat64 = func() (f [64]int8) {
	for i := range f {
		f[i] = 16
	}
	return
}()

// decodeScalingList reads a single scaling_list() syntax structure
// (8.5.9 / 7.3.2.1.1.1). It returns useDefault=true when the first
// delta_scale brings the scale to zero; the caller substitutes the
// standard default list in that case. A zero reached at a later entry
// stops reading and repeats the last scale for the remaining entries.
func decodeScalingList(fr *fieldReader, size int) (list []int8, useDefault bool, err error) {
	list = make([]int8, size)
	lastScale := int32(8)
	nextScale := int32(8)
	for i := 0; i < size; i++ {
		if nextScale != 0 {
			deltaScale, e := fr.se("delta_scale")
			if e != nil {
				return nil, false, e
			}
			nextScale = (lastScale + deltaScale + 256) % 256
			if i == 0 && nextScale == 0 {
				useDefault = true
			}
		}
		if nextScale == 0 {
			list[i] = int8(lastScale)
		} else {
			list[i] = int8(nextScale)
		}
		lastScale = int32(list[i])
	}
	return list, useDefault, nil
}

// applyFallbackSPS fills in absent SPS-level scaling lists following
// the fall-back rule A of Table 7-2: an absent list falls back to the
// standard default the first time it is needed for its Y/Cb/Cr and
// Intra/Inter category, and to the immediately preceding list (Cb
// falls back to Y, Cr falls back to Cb) thereafter.
func applyFallbackSPS(m *ScalingMatrices, chromaFormatIdc uint8) {
	fallback4(m, default4x4Intra, default4x4Inter)
	if chromaFormatIdc == 3 {
		fallback8(m, 6, default8x8Intra, default8x8Inter)
	} else {
		fallback8(m, 2, default8x8Intra, default8x8Inter)
	}
}

// applyFallbackPPS fills in absent PPS-level scaling lists following
// fall-back rule B: an absent list falls back to the *active SPS's*
// corresponding list (which is itself always fully resolved) rather
// than to the standard default.
func applyFallbackPPS(m *ScalingMatrices, sps *ScalingMatrices, chromaFormatIdc uint8) {
	for i := 0; i < 6; i++ {
		if !m.Present4x4[i] {
			m.List4x4[i] = sps.List4x4[i]
		}
	}
	n8 := 2
	if chromaFormatIdc == 3 {
		n8 = 6
	}
	for i := 0; i < n8; i++ {
		if !m.Present8x8[i] {
			m.List8x8[i] = sps.List8x8[i]
		}
	}
}

func fallback4(m *ScalingMatrices, defIntra, defInter [16]int8) {
	// index 0: Intra Y falls back to the default.
	if !m.Present4x4[0] {
		m.List4x4[0] = defIntra
	}
	// index 1,2: Intra Cb/Cr fall back to the previous list.
	for i := 1; i <= 2; i++ {
		if !m.Present4x4[i] {
			m.List4x4[i] = m.List4x4[i-1]
		}
	}
	// index 3: Inter Y falls back to the default.
	if !m.Present4x4[3] {
		m.List4x4[3] = defInter
	}
	for i := 4; i <= 5; i++ {
		if !m.Present4x4[i] {
			m.List4x4[i] = m.List4x4[i-1]
		}
	}
}

func fallback8(m *ScalingMatrices, n int, defIntra, defInter [64]int8) {
	for i := 0; i < n; i++ {
		if m.Present8x8[i] {
			continue
		}
		switch {
		case i == 0:
			m.List8x8[i] = defIntra
		case i == 1:
			m.List8x8[i] = defInter
		default:
			m.List8x8[i] = m.List8x8[i-2]
		}
	}
}

// decodeSeqScalingMatrix reads seq_scaling_matrix() (7.3.2.1.1.1),
// applying useDefault substitution and fallback rule A.
func decodeSeqScalingMatrix(fr *fieldReader, r *bits.Reader, chromaFormatIdc uint8) (*ScalingMatrices, error) {
	m := &ScalingMatrices{}
	maxI := 8
	if chromaFormatIdc == 3 {
		maxI = 12
	}
	for i := 0; i < maxI; i++ {
		present, err := fr.flag("seq_scaling_list_present_flag")
		if err != nil {
			return nil, err
		}
		if present == 0 {
			continue
		}
		if i < 6 {
			list, useDefault, err := decodeScalingList(fr, 16)
			if err != nil {
				return nil, err
			}
			m.Present4x4[i] = true
			if useDefault {
				if i < 3 {
					m.List4x4[i] = default4x4Intra
				} else {
					m.List4x4[i] = default4x4Inter
				}
			} else {
				copy(m.List4x4[i][:], list)
			}
		} else {
			idx := i - 6
			list, useDefault, err := decodeScalingList(fr, 64)
			if err != nil {
				return nil, err
			}
			m.Present8x8[idx] = true
			if useDefault {
				if idx%2 == 0 {
					m.List8x8[idx] = default8x8Intra
				} else {
					m.List8x8[idx] = default8x8Inter
				}
			} else {
				copy(m.List8x8[idx][:], list)
			}
		}
	}
	applyFallbackSPS(m, chromaFormatIdc)
	return m, nil
}

// decodePicScalingMatrix reads pic_scaling_matrix() (7.3.2.2),
// applying useDefault substitution and fallback rule B against the
// active SPS's already-resolved matrices.
func decodePicScalingMatrix(fr *fieldReader, transform8x8 bool, chromaFormatIdc uint8, sps *ScalingMatrices) (*ScalingMatrices, error) {
	m := &ScalingMatrices{}
	maxI := 6
	if transform8x8 {
		if chromaFormatIdc == 3 {
			maxI = 12
		} else {
			maxI = 8
		}
	}
	for i := 0; i < maxI; i++ {
		present, err := fr.flag("pic_scaling_list_present_flag")
		if err != nil {
			return nil, err
		}
		if present == 0 {
			continue
		}
		if i < 6 {
			list, useDefault, err := decodeScalingList(fr, 16)
			if err != nil {
				return nil, err
			}
			m.Present4x4[i] = true
			if useDefault {
				if i < 3 {
					m.List4x4[i] = default4x4Intra
				} else {
					m.List4x4[i] = default4x4Inter
				}
			} else {
				copy(m.List4x4[i][:], list)
			}
		} else {
			idx := i - 6
			list, useDefault, err := decodeScalingList(fr, 64)
			if err != nil {
				return nil, err
			}
			m.Present8x8[idx] = true
			if useDefault {
				if idx%2 == 0 {
					m.List8x8[idx] = default8x8Intra
				} else {
					m.List8x8[idx] = default8x8Inter
				}
			} else {
				copy(m.List8x8[idx][:], list)
			}
		}
	}
	applyFallbackPPS(m, sps, chromaFormatIdc)
	return m, nil
}
