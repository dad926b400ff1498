// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"errors"

	"github.com/cnotch/h264nal/bits"
)

// Slice types (7.4.3), before the "% 5" reduction the standard allows
// for the second occurrence in a picture.
const (
	SliceTypeP  = 0
	SliceTypeB  = 1
	SliceTypeI  = 2
	SliceTypeSP = 3
	SliceTypeSI = 4
)

// ErrNoActiveSPS is returned when a slice header references a PPS
// whose SPS back-reference cannot be resolved.
var ErrNoActiveSPS = errors.New("h264: pps references unknown or invalid sps")

// RefPicListModification is a single ref_pic_list_modification()
// entry (7.3.3.1).
type RefPicListModification struct {
	Idc   uint32
	Value uint32
}

// PredWeight is one entry of a pred_weight_table() list (7.3.3.2).
type PredWeight struct {
	LumaWeightFlag   uint8
	LumaWeight       int32
	LumaOffset       int32
	ChromaWeightFlag uint8
	ChromaWeight     [2]int32
	ChromaOffset     [2]int32
}

// MMCO is a single memory_management_control_operation entry
// (7.3.3.3).
type MMCO struct {
	Op                       uint32
	DifferenceOfPicNumsMinus1 uint32
	LongTermPicNum           uint32
	LongTermFrameIdx         uint32
	MaxLongTermFrameIdxPlus1 uint32
}

// SliceHeader is a decoded slice_header() (7.3.3).
type SliceHeader struct {
	Valid bool

	FirstMbInSlice uint32
	SliceType      uint8 // reduced modulo 5
	PicParameterSetID uint8

	ColourPlaneID uint8

	FrameNum uint32

	FieldPicFlag  uint8
	BottomFieldFlag uint8

	IdrPicID uint32

	PicOrderCntLsb           uint32
	DeltaPicOrderCntBottom   int32
	DeltaPicOrderCnt         [2]int32

	RedundantPicCnt uint8

	DirectSpatialMvPredFlag uint8

	NumRefIdxActiveOverrideFlag  uint8
	NumRefIdxL0ActiveMinus1      uint8
	NumRefIdxL1ActiveMinus1      uint8

	RefPicListModificationL0 []RefPicListModification
	RefPicListModificationL1 []RefPicListModification

	LumaLog2WeightDenom   uint8
	ChromaLog2WeightDenom uint8
	PredWeightsL0         []PredWeight
	PredWeightsL1         []PredWeight

	NoOutputOfPriorPicsFlag uint8
	LongTermReferenceFlag   uint8
	AdaptiveRefPicMarkingModeFlag uint8
	MMCOs                   []MMCO

	CabacInitIdc uint8

	SliceQpDelta int32

	SpForSwitchFlag  uint8
	SliceQsDelta     int32

	DisableDeblockingFilterIdc uint8
	SliceAlphaC0OffsetDiv2     int32
	SliceBetaOffsetDiv2        int32

	SliceGroupChangeCycle uint32

	// SPS/PPS resolved during decode, needed by the caller to size the
	// picture and drive CABAC context initialisation.
	SPS *SPS
	PPS *PPS

	// SliceDataBytePos/SliceDataBitOffset record the RBSP offset
	// immediately after the header, i.e. the slice-data handle.
	SliceDataBytePos   int
	SliceDataBitOffset int
}

// IsIntra reports whether SliceType (after %5 reduction) is I or SI.
func (sh *SliceHeader) IsIntra() bool {
	t := sh.SliceType % 5
	return t == SliceTypeI || t == SliceTypeSI
}

func isBSlice(t uint8) bool  { return t%5 == SliceTypeB }
func isPSlice(t uint8) bool  { return t%5 == SliceTypeP }
func isSPSlice(t uint8) bool { return t%5 == SliceTypeSP }
func isSISlice(t uint8) bool { return t%5 == SliceTypeSI }

// DecodeSliceHeader parses a slice_header() from an IDR or non-IDR
// slice NAL. ppsTable/spsTable are used to resolve the active
// parameter sets; nalUnitType and nalRefIdc come from the NAL header,
// as several fields' presence depends on them.
func DecodeSliceHeader(rbsp []byte, nalUnitType, nalRefIdc uint8, ppsTable map[uint8]*PPS, spsTable map[uint8]*SPS) (*SliceHeader, error) {
	r := bits.NewReader(rbsp)
	fr := &fieldReader{r: r}
	sh := &SliceHeader{}

	isIdr := nalUnitType == NalIdrSlice

	var err error
	if sh.FirstMbInSlice, err = fr.ue("first_mb_in_slice"); err != nil {
		return nil, err
	}

	rawType, err := fr.ue8("slice_type")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("slice_type", int64(rawType), 0, 9); err != nil {
		return nil, err
	}
	sh.SliceType = rawType % 5

	ppsID, err := fr.ue8("pic_parameter_set_id")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("pic_parameter_set_id", int64(ppsID), 0, 255); err != nil {
		return nil, err
	}
	sh.PicParameterSetID = ppsID

	pps, ok := ppsTable[ppsID]
	if !ok || !pps.Valid {
		return nil, ErrNoActiveSPS
	}
	sps, ok := spsTable[pps.SeqParameterSetID]
	if !ok || !sps.Valid {
		return nil, ErrNoActiveSPS
	}
	sh.PPS = pps
	sh.SPS = sps

	if sps.SeparateColourPlaneFlag == 1 {
		if sh.ColourPlaneID, err = fr.u8(2, "colour_plane_id"); err != nil {
			return nil, err
		}
	}

	frameNumBits := int(sps.Log2MaxFrameNumMinus4) + 4
	fn, err := fr.u(frameNumBits, "frame_num")
	if err != nil {
		return nil, err
	}
	sh.FrameNum = fn

	if sps.FrameMbsOnlyFlag == 0 {
		if sh.FieldPicFlag, err = fr.flag("field_pic_flag"); err != nil {
			return nil, err
		}
		if sh.FieldPicFlag == 1 {
			if sh.BottomFieldFlag, err = fr.flag("bottom_field_flag"); err != nil {
				return nil, err
			}
		}
	}

	if isIdr {
		if sh.IdrPicID, err = fr.ue("idr_pic_id"); err != nil {
			return nil, err
		}
	}

	if sps.PicOrderCntType == 0 {
		lsbBits := int(sps.Log2MaxPicOrderCntLsbMinus4) + 4
		if sh.PicOrderCntLsb, err = fr.u(lsbBits, "pic_order_cnt_lsb"); err != nil {
			return nil, err
		}
		if pps.BottomFieldPicOrderInFramePresent == 1 && sh.FieldPicFlag == 0 {
			if sh.DeltaPicOrderCntBottom, err = fr.se("delta_pic_order_cnt_bottom"); err != nil {
				return nil, err
			}
		}
	} else if sps.PicOrderCntType == 1 && sps.DeltaPicOrderAlwaysZeroFlag == 0 {
		if sh.DeltaPicOrderCnt[0], err = fr.se("delta_pic_order_cnt[0]"); err != nil {
			return nil, err
		}
		if pps.BottomFieldPicOrderInFramePresent == 1 && sh.FieldPicFlag == 0 {
			if sh.DeltaPicOrderCnt[1], err = fr.se("delta_pic_order_cnt[1]"); err != nil {
				return nil, err
			}
		}
	}

	if pps.RedundantPicCntPresentFlag == 1 {
		v, err := fr.ue8("redundant_pic_cnt")
		if err != nil {
			return nil, err
		}
		if err := rangeCheck("redundant_pic_cnt", int64(v), 0, 127); err != nil {
			return nil, err
		}
		sh.RedundantPicCnt = v
	}

	if isBSlice(sh.SliceType) {
		if sh.DirectSpatialMvPredFlag, err = fr.flag("direct_spatial_mv_pred_flag"); err != nil {
			return nil, err
		}
	}

	sh.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
	sh.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
	if isPSlice(sh.SliceType) || isSPSlice(sh.SliceType) || isBSlice(sh.SliceType) {
		if sh.NumRefIdxActiveOverrideFlag, err = fr.flag("num_ref_idx_active_override_flag"); err != nil {
			return nil, err
		}
		if sh.NumRefIdxActiveOverrideFlag == 1 {
			if sh.NumRefIdxL0ActiveMinus1, err = fr.ue8("num_ref_idx_l0_active_minus1"); err != nil {
				return nil, err
			}
			if isBSlice(sh.SliceType) {
				if sh.NumRefIdxL1ActiveMinus1, err = fr.ue8("num_ref_idx_l1_active_minus1"); err != nil {
					return nil, err
				}
			}
		}
	}

	if !isISlice(sh.SliceType) && !isSISlice(sh.SliceType) {
		if sh.RefPicListModificationL0, err = decodeRefPicListModification(fr); err != nil {
			return nil, err
		}
	}
	if isBSlice(sh.SliceType) {
		if sh.RefPicListModificationL1, err = decodeRefPicListModification(fr); err != nil {
			return nil, err
		}
	}

	if (pps.WeightedPredFlag == 1 && (isPSlice(sh.SliceType) || isSPSlice(sh.SliceType))) ||
		(pps.WeightedBipredIdc == 1 && isBSlice(sh.SliceType)) {
		if err = decodePredWeightTable(fr, sh, sps); err != nil {
			return nil, err
		}
	}

	if nalRefIdc != 0 {
		if isIdr {
			if sh.NoOutputOfPriorPicsFlag, err = fr.flag("no_output_of_prior_pics_flag"); err != nil {
				return nil, err
			}
			if sh.LongTermReferenceFlag, err = fr.flag("long_term_reference_flag"); err != nil {
				return nil, err
			}
		} else {
			if sh.AdaptiveRefPicMarkingModeFlag, err = fr.flag("adaptive_ref_pic_marking_mode_flag"); err != nil {
				return nil, err
			}
			if sh.AdaptiveRefPicMarkingModeFlag == 1 {
				for {
					op, err := fr.ue("memory_management_control_operation")
					if err != nil {
						return nil, err
					}
					if op == 0 {
						break
					}
					m := MMCO{Op: op}
					switch op {
					case 1, 3:
						if m.DifferenceOfPicNumsMinus1, err = fr.ue("difference_of_pic_nums_minus1"); err != nil {
							return nil, err
						}
						if op == 3 {
							if m.LongTermFrameIdx, err = fr.ue("long_term_frame_idx"); err != nil {
								return nil, err
							}
						}
					case 2:
						if m.LongTermPicNum, err = fr.ue("long_term_pic_num"); err != nil {
							return nil, err
						}
					case 4:
						if m.MaxLongTermFrameIdxPlus1, err = fr.ue("max_long_term_frame_idx_plus1"); err != nil {
							return nil, err
						}
					case 6:
						if m.LongTermFrameIdx, err = fr.ue("long_term_frame_idx"); err != nil {
							return nil, err
						}
					}
					sh.MMCOs = append(sh.MMCOs, m)
					if len(sh.MMCOs) > MaxMmcoCount {
						return nil, &RangeError{Field: "memory_management_control_operation", Value: int64(len(sh.MMCOs)), Min: 0, Max: MaxMmcoCount}
					}
				}
			}
		}
	}

	if pps.EntropyCodingModeFlag == 1 && !isISlice(sh.SliceType) && !isSISlice(sh.SliceType) {
		if sh.CabacInitIdc, err = fr.ue8("cabac_init_idc"); err != nil {
			return nil, err
		}
		if err := rangeCheck("cabac_init_idc", int64(sh.CabacInitIdc), 0, 2); err != nil {
			return nil, err
		}
	}

	sqd, err := fr.se("slice_qp_delta")
	if err != nil {
		return nil, err
	}
	bitDepthLumaMinus8 := int64(sps.BitDepthLumaMinus8)
	minQpDelta := -26 - 6*bitDepthLumaMinus8 - int64(pps.PicInitQpMinus26)
	maxQpDelta := 25 - int64(pps.PicInitQpMinus26)
	if err := rangeCheck("slice_qp_delta", int64(sqd), minQpDelta, maxQpDelta); err != nil {
		return nil, err
	}
	sh.SliceQpDelta = sqd

	if isSPSlice(sh.SliceType) || isSISlice(sh.SliceType) {
		if isSPSlice(sh.SliceType) {
			if sh.SpForSwitchFlag, err = fr.flag("sp_for_switch_flag"); err != nil {
				return nil, err
			}
		}
		if sh.SliceQsDelta, err = fr.se("slice_qs_delta"); err != nil {
			return nil, err
		}
	}

	if pps.DeblockingFilterControlPresentFlag == 1 {
		if sh.DisableDeblockingFilterIdc, err = fr.ue8("disable_deblocking_filter_idc"); err != nil {
			return nil, err
		}
		if sh.DisableDeblockingFilterIdc != 1 {
			if sh.SliceAlphaC0OffsetDiv2, err = fr.se("slice_alpha_c0_offset_div2"); err != nil {
				return nil, err
			}
			if sh.SliceBetaOffsetDiv2, err = fr.se("slice_beta_offset_div2"); err != nil {
				return nil, err
			}
		}
	}

	if pps.NumSliceGroupsMinus1 > 0 && pps.SliceGroupMapType >= 3 && pps.SliceGroupMapType <= 5 {
		picSizeInMapUnits := (int(sps.PicWidthInMbsMinus1) + 1) * (int(sps.PicHeightInMapUnitsMinus1) + 1)
		changeRate := int(pps.SliceGroupChangeRateMinus1) + 1
		n := ceilLog2(picSizeInMapUnits/changeRate + 1)
		v, err := fr.u(n, "slice_group_change_cycle")
		if err != nil {
			return nil, err
		}
		sh.SliceGroupChangeCycle = v
	}

	sh.SliceDataBytePos = r.BytePos()
	sh.SliceDataBitOffset = r.BitOffset()

	sh.Valid = true
	return sh, nil
}

func isISlice(t uint8) bool { return t%5 == SliceTypeI }

func decodeRefPicListModification(fr *fieldReader) ([]RefPicListModification, error) {
	flag, err := fr.flag("ref_pic_list_modification_flag")
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	var mods []RefPicListModification
	for {
		idc, err := fr.ue("modification_of_pic_nums_idc")
		if err != nil {
			return nil, err
		}
		if idc == 3 {
			break
		}
		var val uint32
		if idc == 0 || idc == 1 {
			val, err = fr.ue("abs_diff_pic_num_minus1")
		} else if idc == 2 {
			val, err = fr.ue("long_term_pic_num")
		}
		if err != nil {
			return nil, err
		}
		mods = append(mods, RefPicListModification{Idc: idc, Value: val})
		if len(mods) > MaxRplmCount {
			return nil, &RangeError{Field: "modification_of_pic_nums_idc", Value: int64(len(mods)), Min: 0, Max: MaxRplmCount}
		}
	}
	return mods, nil
}

func decodePredWeightTable(fr *fieldReader, sh *SliceHeader, sps *SPS) error {
	var err error
	if sh.LumaLog2WeightDenom, err = fr.ue8("luma_log2_weight_denom"); err != nil {
		return err
	}
	if sps.ChromaArrayType() != 0 {
		if sh.ChromaLog2WeightDenom, err = fr.ue8("chroma_log2_weight_denom"); err != nil {
			return err
		}
	}

	n0 := int(sh.NumRefIdxL0ActiveMinus1) + 1
	sh.PredWeightsL0, err = decodeWeightList(fr, n0, sh, sps)
	if err != nil {
		return err
	}
	if isBSlice(sh.SliceType) {
		n1 := int(sh.NumRefIdxL1ActiveMinus1) + 1
		sh.PredWeightsL1, err = decodeWeightList(fr, n1, sh, sps)
		if err != nil {
			return err
		}
	}
	return nil
}

func decodeWeightList(fr *fieldReader, n int, sh *SliceHeader, sps *SPS) ([]PredWeight, error) {
	list := make([]PredWeight, n)
	for i := 0; i < n; i++ {
		w := &list[i]
		var err error
		if w.LumaWeightFlag, err = fr.flag("luma_weight_l_flag"); err != nil {
			return nil, err
		}
		if w.LumaWeightFlag == 1 {
			if w.LumaWeight, err = fr.se("luma_weight_l"); err != nil {
				return nil, err
			}
			if w.LumaOffset, err = fr.se("luma_offset_l"); err != nil {
				return nil, err
			}
		} else {
			w.LumaWeight = 1 << sh.LumaLog2WeightDenom
		}
		if sps.ChromaArrayType() != 0 {
			if w.ChromaWeightFlag, err = fr.flag("chroma_weight_l_flag"); err != nil {
				return nil, err
			}
			if w.ChromaWeightFlag == 1 {
				for j := 0; j < 2; j++ {
					if w.ChromaWeight[j], err = fr.se("chroma_weight_l"); err != nil {
						return nil, err
					}
					if w.ChromaOffset[j], err = fr.se("chroma_offset_l"); err != nil {
						return nil, err
					}
				}
			} else {
				w.ChromaWeight[0] = 1 << sh.ChromaLog2WeightDenom
				w.ChromaWeight[1] = 1 << sh.ChromaLog2WeightDenom
			}
		}
	}
	return list, nil
}
