// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "github.com/cnotch/h264nal/bits"

// PPS is a decoded picture parameter set (7.3.2.2).
type PPS struct {
	Valid bool

	PicParameterSetID uint8
	SeqParameterSetID uint8

	EntropyCodingModeFlag               uint8
	BottomFieldPicOrderInFramePresent   uint8
	NumSliceGroupsMinus1                uint8
	SliceGroupMapType                   uint8
	RunLengthMinus1                     [MaxSliceGroups]uint32
	TopLeft                             [MaxSliceGroups]uint32
	BottomRight                         [MaxSliceGroups]uint32
	SliceGroupChangeDirectionFlag       uint8
	SliceGroupChangeRateMinus1          uint32
	PicSizeInMapUnitsMinus1             uint32
	SliceGroupID                        []uint8

	NumRefIdxL0DefaultActiveMinus1 uint8
	NumRefIdxL1DefaultActiveMinus1 uint8

	WeightedPredFlag  uint8
	WeightedBipredIdc uint8

	PicInitQpMinus26 int8
	PicInitQsMinus26 int8
	ChromaQpIndexOffset int8

	DeblockingFilterControlPresentFlag uint8
	ConstrainedIntraPredFlag           uint8
	RedundantPicCntPresentFlag         uint8

	// Extensions present only when more_rbsp_data() indicates trailing
	// data (pic_parameter_set_extension, 7.3.2.2).
	Transform8x8ModeFlag         uint8
	PicScalingMatrixPresentFlag  uint8
	ScalingMatrices              ScalingMatrices
	SecondChromaQpIndexOffset    int8
}

// DecodePPS parses a PPS RBSP against the given active SPS (needed for
// bit_depth_luma_minus8-dependent range checks and scaling-matrix
// fallback). sps may be nil; in that case the PPS is fully parsed but
// bit-depth-dependent range checks use bit_depth_luma_minus8=0.
func DecodePPS(rbsp []byte, sps *SPS) (*PPS, error) {
	r := bits.NewReader(rbsp)
	fr := &fieldReader{r: r}
	pps := &PPS{}

	var err error
	id, err := fr.ue8("pic_parameter_set_id")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("pic_parameter_set_id", int64(id), 0, 255); err != nil {
		return nil, err
	}
	pps.PicParameterSetID = id

	spsID, err := fr.ue8("seq_parameter_set_id")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("seq_parameter_set_id", int64(spsID), 0, 31); err != nil {
		return nil, err
	}
	pps.SeqParameterSetID = spsID

	if pps.EntropyCodingModeFlag, err = fr.flag("entropy_coding_mode_flag"); err != nil {
		return nil, err
	}
	if pps.BottomFieldPicOrderInFramePresent, err = fr.flag("bottom_field_pic_order_in_frame_present_flag"); err != nil {
		return nil, err
	}

	if pps.NumSliceGroupsMinus1, err = fr.ue8("num_slice_groups_minus1"); err != nil {
		return nil, err
	}
	if err := rangeCheck("num_slice_groups_minus1", int64(pps.NumSliceGroupsMinus1), 0, MaxSliceGroups-1); err != nil {
		return nil, err
	}

	if pps.NumSliceGroupsMinus1 > 0 {
		if pps.SliceGroupMapType, err = fr.ue8("slice_group_map_type"); err != nil {
			return nil, err
		}
		if err := rangeCheck("slice_group_map_type", int64(pps.SliceGroupMapType), 0, 6); err != nil {
			return nil, err
		}
		switch pps.SliceGroupMapType {
		case 0:
			for i := 0; i <= int(pps.NumSliceGroupsMinus1); i++ {
				if pps.RunLengthMinus1[i], err = fr.ue("run_length_minus1"); err != nil {
					return nil, err
				}
			}
		case 2:
			for i := 0; i < int(pps.NumSliceGroupsMinus1); i++ {
				if pps.TopLeft[i], err = fr.ue("top_left"); err != nil {
					return nil, err
				}
				if pps.BottomRight[i], err = fr.ue("bottom_right"); err != nil {
					return nil, err
				}
			}
		case 3, 4, 5:
			if pps.SliceGroupChangeDirectionFlag, err = fr.flag("slice_group_change_direction_flag"); err != nil {
				return nil, err
			}
			if pps.SliceGroupChangeRateMinus1, err = fr.ue("slice_group_change_rate_minus1"); err != nil {
				return nil, err
			}
		case 6:
			if pps.PicSizeInMapUnitsMinus1, err = fr.ue("pic_size_in_map_units_minus1"); err != nil {
				return nil, err
			}
			n := int(pps.PicSizeInMapUnitsMinus1) + 1
			pps.SliceGroupID = make([]uint8, n)
			bitsPerID := ceilLog2(int(pps.NumSliceGroupsMinus1) + 1)
			for i := 0; i < n; i++ {
				v, e := fr.u(bitsPerID, "slice_group_id")
				if e != nil {
					return nil, e
				}
				pps.SliceGroupID[i] = uint8(v)
			}
		}
	}

	if pps.NumRefIdxL0DefaultActiveMinus1, err = fr.ue8("num_ref_idx_l0_default_active_minus1"); err != nil {
		return nil, err
	}
	if err := rangeCheck("num_ref_idx_l0_default_active_minus1", int64(pps.NumRefIdxL0DefaultActiveMinus1), 0, 31); err != nil {
		return nil, err
	}
	if pps.NumRefIdxL1DefaultActiveMinus1, err = fr.ue8("num_ref_idx_l1_default_active_minus1"); err != nil {
		return nil, err
	}
	if err := rangeCheck("num_ref_idx_l1_default_active_minus1", int64(pps.NumRefIdxL1DefaultActiveMinus1), 0, 31); err != nil {
		return nil, err
	}

	if pps.WeightedPredFlag, err = fr.flag("weighted_pred_flag"); err != nil {
		return nil, err
	}
	if pps.WeightedBipredIdc, err = fr.u8(2, "weighted_bipred_idc"); err != nil {
		return nil, err
	}

	qpMinus26, err := fr.se8("pic_init_qp_minus26")
	if err != nil {
		return nil, err
	}
	bitDepthLumaMinus8 := 0
	if sps != nil {
		bitDepthLumaMinus8 = int(sps.BitDepthLumaMinus8)
	}
	if err := rangeCheck("pic_init_qp_minus26", int64(qpMinus26), int64(-26-6*bitDepthLumaMinus8), 25); err != nil {
		return nil, err
	}
	pps.PicInitQpMinus26 = qpMinus26

	if pps.PicInitQsMinus26, err = fr.se8("pic_init_qs_minus26"); err != nil {
		return nil, err
	}
	if err := rangeCheck("pic_init_qs_minus26", int64(pps.PicInitQsMinus26), -26, 25); err != nil {
		return nil, err
	}

	cqoi, err := fr.se8("chroma_qp_index_offset")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("chroma_qp_index_offset", int64(cqoi), -12, 12); err != nil {
		return nil, err
	}
	pps.ChromaQpIndexOffset = cqoi
	pps.SecondChromaQpIndexOffset = cqoi // absent -> equals chroma_qp_index_offset

	if pps.DeblockingFilterControlPresentFlag, err = fr.flag("deblocking_filter_control_present_flag"); err != nil {
		return nil, err
	}
	if pps.ConstrainedIntraPredFlag, err = fr.flag("constrained_intra_pred_flag"); err != nil {
		return nil, err
	}
	if pps.RedundantPicCntPresentFlag, err = fr.flag("redundant_pic_cnt_present_flag"); err != nil {
		return nil, err
	}

	if r.MoreRBSPData() {
		if pps.Transform8x8ModeFlag, err = fr.flag("transform_8x8_mode_flag"); err != nil {
			return nil, err
		}
		if pps.PicScalingMatrixPresentFlag, err = fr.flag("pic_scaling_matrix_present_flag"); err != nil {
			return nil, err
		}
		chromaFormatIdc := uint8(1)
		var spsMatrices *ScalingMatrices
		if sps != nil {
			chromaFormatIdc = sps.ChromaFormatIdc
			spsMatrices = &sps.ScalingMatrices
		} else {
			flat := &ScalingMatrices{}
			fillFlatScalingMatrices(flat)
			spsMatrices = flat
		}
		if pps.PicScalingMatrixPresentFlag == 1 {
			m, err := decodePicScalingMatrix(fr, pps.Transform8x8ModeFlag == 1, chromaFormatIdc, spsMatrices)
			if err != nil {
				return nil, err
			}
			pps.ScalingMatrices = *m
		} else {
			pps.ScalingMatrices = *spsMatrices
		}
		sqoi, err := fr.se8("second_chroma_qp_index_offset")
		if err != nil {
			return nil, err
		}
		if err := rangeCheck("second_chroma_qp_index_offset", int64(sqoi), -12, 12); err != nil {
			return nil, err
		}
		pps.SecondChromaQpIndexOffset = sqoi
	} else {
		spsMatrices := &ScalingMatrices{}
		if sps != nil {
			*spsMatrices = sps.ScalingMatrices
		} else {
			fillFlatScalingMatrices(spsMatrices)
		}
		pps.ScalingMatrices = *spsMatrices
	}

	pps.Valid = true
	return pps, nil
}

// ceilLog2 returns Ceil(Log2(n)) as used for slice_group_id field
// widths (7.4.2.2).
func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	bits := 0
	v := n - 1
	for v > 0 {
		bits++
		v >>= 1
	}
	return bits
}
