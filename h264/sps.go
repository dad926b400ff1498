// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "github.com/cnotch/h264nal/bits"

// HRD holds hrd_parameters() (E.1.2).
type HRD struct {
	CpbCntMinus1 uint8
	BitRateScale uint8
	CpbSizeScale uint8

	BitRateValueMinus1 [MaxCpbCnt]uint32
	CpbSizeValueMinus1 [MaxCpbCnt]uint32
	CbrFlag            [MaxCpbCnt]uint8

	InitialCpbRemovalDelayLengthMinus1 uint8
	CpbRemovalDelayLengthMinus1        uint8
	DpbOutputDelayLengthMinus1         uint8
	TimeOffsetLength                   uint8
}

func (h *HRD) decode(fr *fieldReader) error {
	v, err := fr.ue8("cpb_cnt_minus1")
	if err != nil {
		return err
	}
	if err := rangeCheck("cpb_cnt_minus1", int64(v), 0, 31); err != nil {
		return err
	}
	h.CpbCntMinus1 = v

	if h.BitRateScale, err = fr.u8(4, "bit_rate_scale"); err != nil {
		return err
	}
	if h.CpbSizeScale, err = fr.u8(4, "cpb_size_scale"); err != nil {
		return err
	}
	for i := 0; i <= int(h.CpbCntMinus1); i++ {
		if h.BitRateValueMinus1[i], err = fr.ue("bit_rate_value_minus1"); err != nil {
			return err
		}
		if h.CpbSizeValueMinus1[i], err = fr.ue("cpb_size_value_minus1"); err != nil {
			return err
		}
		if h.CbrFlag[i], err = fr.flag("cbr_flag"); err != nil {
			return err
		}
	}
	if h.InitialCpbRemovalDelayLengthMinus1, err = fr.u8(5, "initial_cpb_removal_delay_length_minus1"); err != nil {
		return err
	}
	if h.CpbRemovalDelayLengthMinus1, err = fr.u8(5, "cpb_removal_delay_length_minus1"); err != nil {
		return err
	}
	if h.DpbOutputDelayLengthMinus1, err = fr.u8(5, "dpb_output_delay_length_minus1"); err != nil {
		return err
	}
	if h.TimeOffsetLength, err = fr.u8(5, "time_offset_length"); err != nil {
		return err
	}
	return nil
}

// VUI holds vui_parameters() (Annex E.1.1).
type VUI struct {
	AspectRatioInfoPresentFlag uint8
	AspectRatioIdc             uint8
	SarWidth                   uint16
	SarHeight                  uint16

	OverscanInfoPresentFlag uint8
	OverscanAppropriateFlag uint8

	VideoSignalTypePresentFlag   uint8
	VideoFormat                  uint8
	VideoFullRangeFlag           uint8
	ColourDescriptionPresentFlag uint8
	ColourPrimaries              uint8
	TransferCharacteristics      uint8
	MatrixCoefficients           uint8

	ChromaLocInfoPresentFlag       uint8
	ChromaSampleLocTypeTopField    uint8
	ChromaSampleLocTypeBottomField uint8

	TimingInfoPresentFlag uint8
	NumUnitsInTick        uint32
	TimeScale             uint32
	FixedFrameRateFlag    uint8

	NalHrdParametersPresentFlag uint8
	NalHrdParameters            HRD
	VclHrdParametersPresentFlag uint8
	VclHrdParameters            HRD
	LowDelayHrdFlag             uint8

	PicStructPresentFlag uint8

	BitstreamRestrictionFlag           uint8
	MotionVectorsOverPicBoundariesFlag uint8
	MaxBytesPerPicDenom                uint8
	MaxBitsPerMbDenom                  uint8
	Log2MaxMvLengthHorizontal          uint8
	Log2MaxMvLengthVertical            uint8
	MaxNumReorderFrames                uint8
	MaxDecFrameBuffering               uint8
}

func (vui *VUI) decode(fr *fieldReader) (err error) {
	if vui.AspectRatioInfoPresentFlag, err = fr.flag("aspect_ratio_info_present_flag"); err != nil {
		return err
	}
	if vui.AspectRatioInfoPresentFlag == 1 {
		if vui.AspectRatioIdc, err = fr.u8(8, "aspect_ratio_idc"); err != nil {
			return err
		}
		if vui.AspectRatioIdc == 255 {
			if vui.SarWidth, err = fr.u16(16, "sar_width"); err != nil {
				return err
			}
			if vui.SarHeight, err = fr.u16(16, "sar_height"); err != nil {
				return err
			}
		}
	}

	if vui.OverscanInfoPresentFlag, err = fr.flag("overscan_info_present_flag"); err != nil {
		return err
	}
	if vui.OverscanInfoPresentFlag == 1 {
		if vui.OverscanAppropriateFlag, err = fr.flag("overscan_appropriate_flag"); err != nil {
			return err
		}
	}

	if vui.VideoSignalTypePresentFlag, err = fr.flag("video_signal_type_present_flag"); err != nil {
		return err
	}
	if vui.VideoSignalTypePresentFlag == 1 {
		if vui.VideoFormat, err = fr.u8(3, "video_format"); err != nil {
			return err
		}
		if vui.VideoFullRangeFlag, err = fr.flag("video_full_range_flag"); err != nil {
			return err
		}
		if vui.ColourDescriptionPresentFlag, err = fr.flag("colour_description_present_flag"); err != nil {
			return err
		}
		if vui.ColourDescriptionPresentFlag == 1 {
			if vui.ColourPrimaries, err = fr.u8(8, "colour_primaries"); err != nil {
				return err
			}
			if vui.TransferCharacteristics, err = fr.u8(8, "transfer_characteristics"); err != nil {
				return err
			}
			if vui.MatrixCoefficients, err = fr.u8(8, "matrix_coefficients"); err != nil {
				return err
			}
		}
	} else {
		vui.VideoFormat = 5
		vui.ColourPrimaries = 2
		vui.TransferCharacteristics = 2
		vui.MatrixCoefficients = 2
	}

	if vui.ChromaLocInfoPresentFlag, err = fr.flag("chroma_loc_info_present_flag"); err != nil {
		return err
	}
	if vui.ChromaLocInfoPresentFlag == 1 {
		if vui.ChromaSampleLocTypeTopField, err = fr.ue8("chroma_sample_loc_type_top_field"); err != nil {
			return err
		}
		if vui.ChromaSampleLocTypeBottomField, err = fr.ue8("chroma_sample_loc_type_bottom_field"); err != nil {
			return err
		}
	}

	if vui.TimingInfoPresentFlag, err = fr.flag("timing_info_present_flag"); err != nil {
		return err
	}
	if vui.TimingInfoPresentFlag == 1 {
		if vui.NumUnitsInTick, err = fr.u32("num_units_in_tick"); err != nil {
			return err
		}
		if vui.TimeScale, err = fr.u32("time_scale"); err != nil {
			return err
		}
		if vui.FixedFrameRateFlag, err = fr.flag("fixed_frame_rate_flag"); err != nil {
			return err
		}
	}

	if vui.NalHrdParametersPresentFlag, err = fr.flag("nal_hrd_parameters_present_flag"); err != nil {
		return err
	}
	if vui.NalHrdParametersPresentFlag == 1 {
		if err = vui.NalHrdParameters.decode(fr); err != nil {
			return err
		}
	}
	if vui.VclHrdParametersPresentFlag, err = fr.flag("vcl_hrd_parameters_present_flag"); err != nil {
		return err
	}
	if vui.VclHrdParametersPresentFlag == 1 {
		if err = vui.VclHrdParameters.decode(fr); err != nil {
			return err
		}
	}
	if vui.NalHrdParametersPresentFlag == 1 || vui.VclHrdParametersPresentFlag == 1 {
		if vui.LowDelayHrdFlag, err = fr.flag("low_delay_hrd_flag"); err != nil {
			return err
		}
	}

	if vui.PicStructPresentFlag, err = fr.flag("pic_struct_present_flag"); err != nil {
		return err
	}

	if vui.BitstreamRestrictionFlag, err = fr.flag("bitstream_restriction_flag"); err != nil {
		return err
	}
	if vui.BitstreamRestrictionFlag == 1 {
		if vui.MotionVectorsOverPicBoundariesFlag, err = fr.flag("motion_vectors_over_pic_boundaries_flag"); err != nil {
			return err
		}
		if vui.MaxBytesPerPicDenom, err = fr.ue8("max_bytes_per_pic_denom"); err != nil {
			return err
		}
		if vui.MaxBitsPerMbDenom, err = fr.ue8("max_bits_per_mb_denom"); err != nil {
			return err
		}
		if vui.Log2MaxMvLengthHorizontal, err = fr.ue8("log2_max_mv_length_horizontal"); err != nil {
			return err
		}
		if vui.Log2MaxMvLengthVertical, err = fr.ue8("log2_max_mv_length_vertical"); err != nil {
			return err
		}
		if vui.MaxNumReorderFrames, err = fr.ue8("max_num_reorder_frames"); err != nil {
			return err
		}
		if vui.MaxDecFrameBuffering, err = fr.ue8("max_dec_frame_buffering"); err != nil {
			return err
		}
	} else {
		vui.MaxNumReorderFrames = MaxDpbFrames
		vui.MaxDecFrameBuffering = MaxDpbFrames
	}

	return nil
}

// SPS is a decoded sequence parameter set (7.3.2.1.1).
type SPS struct {
	Valid bool

	ProfileIdc         uint8
	ConstraintSet0Flag uint8
	ConstraintSet1Flag uint8
	ConstraintSet2Flag uint8
	ConstraintSet3Flag uint8
	ConstraintSet4Flag uint8
	ConstraintSet5Flag uint8
	LevelIdc           uint8

	SeqParameterSetID uint8

	ChromaFormatIdc                 uint8
	SeparateColourPlaneFlag         uint8
	BitDepthLumaMinus8              uint8
	BitDepthChromaMinus8            uint8
	QpprimeYZeroTransformBypassFlag uint8

	SeqScalingMatrixPresentFlag uint8
	ScalingMatrices             ScalingMatrices

	Log2MaxFrameNumMinus4          uint8
	PicOrderCntType                uint8
	Log2MaxPicOrderCntLsbMinus4    uint8
	DeltaPicOrderAlwaysZeroFlag    uint8
	OffsetForNonRefPic             int32
	OffsetForTopToBottomField      int32
	NumRefFramesInPicOrderCntCycle uint8
	OffsetForRefFrame              [256]int32

	MaxNumRefFrames           uint8
	GapsInFrameNumAllowedFlag uint8

	PicWidthInMbsMinus1       uint16
	PicHeightInMapUnitsMinus1 uint16

	FrameMbsOnlyFlag         uint8
	MbAdaptiveFrameFieldFlag uint8
	Direct8x8InferenceFlag   uint8

	FrameCroppingFlag     uint8
	FrameCropLeftOffset   uint16
	FrameCropRightOffset  uint16
	FrameCropTopOffset    uint16
	FrameCropBottomOffset uint16

	VuiParametersPresentFlag uint8
	Vui                      VUI
}

// ChromaArrayType returns ChromaArrayType as defined in 7.4.2.1.1: 0
// when separate_colour_plane_flag is set, chroma_format_idc otherwise.
func (sps *SPS) ChromaArrayType() uint8 {
	if sps.SeparateColourPlaneFlag == 1 {
		return 0
	}
	return sps.ChromaFormatIdc
}

func isHighProfile(profileIdc uint8) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	default:
		return false
	}
}

// DecodeSPS parses an SPS RBSP (payload after the NAL header byte).
// On any error the returned SPS is nil; parsers never return a
// partially-populated structure.
func DecodeSPS(rbsp []byte) (*SPS, error) {
	r := bits.NewReader(rbsp)
	fr := &fieldReader{r: r}
	sps := &SPS{}

	var err error
	if sps.ProfileIdc, err = fr.u8(8, "profile_idc"); err != nil {
		return nil, err
	}
	if sps.ConstraintSet0Flag, err = fr.flag("constraint_set0_flag"); err != nil {
		return nil, err
	}
	if sps.ConstraintSet1Flag, err = fr.flag("constraint_set1_flag"); err != nil {
		return nil, err
	}
	if sps.ConstraintSet2Flag, err = fr.flag("constraint_set2_flag"); err != nil {
		return nil, err
	}
	if sps.ConstraintSet3Flag, err = fr.flag("constraint_set3_flag"); err != nil {
		return nil, err
	}
	if sps.ConstraintSet4Flag, err = fr.flag("constraint_set4_flag"); err != nil {
		return nil, err
	}
	if sps.ConstraintSet5Flag, err = fr.flag("constraint_set5_flag"); err != nil {
		return nil, err
	}
	if _, err = fr.u8(2, "reserved_zero_2bits"); err != nil {
		return nil, err
	}
	if sps.LevelIdc, err = fr.u8(8, "level_idc"); err != nil {
		return nil, err
	}

	id, err := fr.ue8("seq_parameter_set_id")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("seq_parameter_set_id", int64(id), 0, 31); err != nil {
		return nil, err
	}
	sps.SeqParameterSetID = id

	if isHighProfile(sps.ProfileIdc) {
		if sps.ChromaFormatIdc, err = fr.ue8("chroma_format_idc"); err != nil {
			return nil, err
		}
		if err := rangeCheck("chroma_format_idc", int64(sps.ChromaFormatIdc), 0, 3); err != nil {
			return nil, err
		}
		if sps.ChromaFormatIdc == 3 {
			if sps.SeparateColourPlaneFlag, err = fr.flag("separate_colour_plane_flag"); err != nil {
				return nil, err
			}
		}
		if sps.BitDepthLumaMinus8, err = fr.ue8("bit_depth_luma_minus8"); err != nil {
			return nil, err
		}
		if err := rangeCheck("bit_depth_luma_minus8", int64(sps.BitDepthLumaMinus8), 0, 6); err != nil {
			return nil, err
		}
		if sps.BitDepthChromaMinus8, err = fr.ue8("bit_depth_chroma_minus8"); err != nil {
			return nil, err
		}
		if err := rangeCheck("bit_depth_chroma_minus8", int64(sps.BitDepthChromaMinus8), 0, 6); err != nil {
			return nil, err
		}
		if sps.QpprimeYZeroTransformBypassFlag, err = fr.flag("qpprime_y_zero_transform_bypass_flag"); err != nil {
			return nil, err
		}
		if sps.SeqScalingMatrixPresentFlag, err = fr.flag("seq_scaling_matrix_present_flag"); err != nil {
			return nil, err
		}
		if sps.SeqScalingMatrixPresentFlag == 1 {
			m, err := decodeSeqScalingMatrix(fr, r, sps.ChromaFormatIdc)
			if err != nil {
				return nil, err
			}
			sps.ScalingMatrices = *m
		} else {
			fillFlatScalingMatrices(&sps.ScalingMatrices)
		}
	} else {
		sps.ChromaFormatIdc = 1
		fillFlatScalingMatrices(&sps.ScalingMatrices)
	}

	if sps.Log2MaxFrameNumMinus4, err = fr.ue8("log2_max_frame_num_minus4"); err != nil {
		return nil, err
	}
	if err := rangeCheck("log2_max_frame_num_minus4", int64(sps.Log2MaxFrameNumMinus4), 0, 12); err != nil {
		return nil, err
	}

	if sps.PicOrderCntType, err = fr.ue8("pic_order_cnt_type"); err != nil {
		return nil, err
	}
	if err := rangeCheck("pic_order_cnt_type", int64(sps.PicOrderCntType), 0, 2); err != nil {
		return nil, err
	}

	switch sps.PicOrderCntType {
	case 0:
		if sps.Log2MaxPicOrderCntLsbMinus4, err = fr.ue8("log2_max_pic_order_cnt_lsb_minus4"); err != nil {
			return nil, err
		}
		if err := rangeCheck("log2_max_pic_order_cnt_lsb_minus4", int64(sps.Log2MaxPicOrderCntLsbMinus4), 0, 12); err != nil {
			return nil, err
		}
	case 1:
		if sps.DeltaPicOrderAlwaysZeroFlag, err = fr.flag("delta_pic_order_always_zero_flag"); err != nil {
			return nil, err
		}
		if sps.OffsetForNonRefPic, err = fr.se("offset_for_non_ref_pic"); err != nil {
			return nil, err
		}
		if sps.OffsetForTopToBottomField, err = fr.se("offset_for_top_to_bottom_field"); err != nil {
			return nil, err
		}
		if sps.NumRefFramesInPicOrderCntCycle, err = fr.ue8("num_ref_frames_in_pic_order_cnt_cycle"); err != nil {
			return nil, err
		}
		if err := rangeCheck("num_ref_frames_in_pic_order_cnt_cycle", int64(sps.NumRefFramesInPicOrderCntCycle), 0, 255); err != nil {
			return nil, err
		}
		for i := 0; i < int(sps.NumRefFramesInPicOrderCntCycle); i++ {
			if sps.OffsetForRefFrame[i], err = fr.se("offset_for_ref_frame"); err != nil {
				return nil, err
			}
		}
	}

	if sps.MaxNumRefFrames, err = fr.ue8("max_num_ref_frames"); err != nil {
		return nil, err
	}
	if err := rangeCheck("max_num_ref_frames", int64(sps.MaxNumRefFrames), 0, MaxDpbFrames); err != nil {
		return nil, err
	}

	if sps.GapsInFrameNumAllowedFlag, err = fr.flag("gaps_in_frame_num_value_allowed_flag"); err != nil {
		return nil, err
	}

	if sps.PicWidthInMbsMinus1, err = fr.ue16("pic_width_in_mbs_minus1"); err != nil {
		return nil, err
	}
	if err := rangeCheck("pic_width_in_mbs_minus1", int64(sps.PicWidthInMbsMinus1), 0, MaxMbWidth-1); err != nil {
		return nil, err
	}

	if sps.PicHeightInMapUnitsMinus1, err = fr.ue16("pic_height_in_map_units_minus1"); err != nil {
		return nil, err
	}
	if err := rangeCheck("pic_height_in_map_units_minus1", int64(sps.PicHeightInMapUnitsMinus1), 0, MaxMbHeight-1); err != nil {
		return nil, err
	}

	if sps.FrameMbsOnlyFlag, err = fr.flag("frame_mbs_only_flag"); err != nil {
		return nil, err
	}
	if sps.FrameMbsOnlyFlag == 0 {
		if sps.MbAdaptiveFrameFieldFlag, err = fr.flag("mb_adaptive_frame_field_flag"); err != nil {
			return nil, err
		}
	}

	if sps.Direct8x8InferenceFlag, err = fr.flag("direct_8x8_inference_flag"); err != nil {
		return nil, err
	}

	if sps.FrameCroppingFlag, err = fr.flag("frame_cropping_flag"); err != nil {
		return nil, err
	}
	if sps.FrameCroppingFlag == 1 {
		if sps.FrameCropLeftOffset, err = fr.ue16("frame_crop_left_offset"); err != nil {
			return nil, err
		}
		if sps.FrameCropRightOffset, err = fr.ue16("frame_crop_right_offset"); err != nil {
			return nil, err
		}
		if sps.FrameCropTopOffset, err = fr.ue16("frame_crop_top_offset"); err != nil {
			return nil, err
		}
		if sps.FrameCropBottomOffset, err = fr.ue16("frame_crop_bottom_offset"); err != nil {
			return nil, err
		}
	}

	if sps.VuiParametersPresentFlag, err = fr.flag("vui_parameters_present_flag"); err != nil {
		return nil, err
	}
	if sps.VuiParametersPresentFlag == 1 {
		if err = sps.Vui.decode(fr); err != nil {
			return nil, err
		}
	} else {
		sps.Vui.MaxNumReorderFrames = MaxDpbFrames
		sps.Vui.MaxDecFrameBuffering = MaxDpbFrames
	}

	sps.Valid = true
	return sps, nil
}

func fillFlatScalingMatrices(m *ScalingMatrices) {
	for i := 0; i < 6; i++ {
		m.List4x4[i] = flat16
	}
	for i := 0; i < 6; i++ {
		m.List8x8[i] = flat64
	}
}

// Width returns the SPS's cropped luma width in samples (7.4.2.1.1).
func (sps *SPS) Width() int {
	w := (int(sps.PicWidthInMbsMinus1) + 1) * 16
	cropUnitX := 1
	if sps.ChromaArrayType() != 0 {
		cropUnitX = subWidthC(sps.ChromaFormatIdc)
	}
	return w - cropUnitX*(int(sps.FrameCropLeftOffset)+int(sps.FrameCropRightOffset))
}

// Height returns the SPS's cropped luma height in samples.
func (sps *SPS) Height() int {
	frameHeightInMbs := (2 - int(sps.FrameMbsOnlyFlag)) * (int(sps.PicHeightInMapUnitsMinus1) + 1)
	h := frameHeightInMbs * 16
	cropUnitY := 2 - int(sps.FrameMbsOnlyFlag)
	if sps.ChromaArrayType() != 0 {
		cropUnitY *= subHeightC(sps.ChromaFormatIdc)
	}
	return h - cropUnitY*(int(sps.FrameCropTopOffset)+int(sps.FrameCropBottomOffset))
}

func subWidthC(chromaFormatIdc uint8) int {
	switch chromaFormatIdc {
	case 1, 2:
		return 2
	default:
		return 1
	}
}

func subHeightC(chromaFormatIdc uint8) int {
	switch chromaFormatIdc {
	case 1:
		return 2
	default:
		return 1
	}
}

// FrameRate returns the derived frame rate in Hz, or 0 if the VUI
// timing_info is absent.
func (sps *SPS) FrameRate() float64 {
	if sps.Vui.NumUnitsInTick == 0 {
		return 0
	}
	return float64(sps.Vui.TimeScale) / float64(sps.Vui.NumUnitsInTick*2)
}
