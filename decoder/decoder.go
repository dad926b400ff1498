// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package decoder wires the NAL framer, syntax parsers, parameter-set
// tables, macroblock neighbour engine, and CABAC decoder behind a
// single pull-driven Feed/Parse front end.
package decoder

import (
	"github.com/cnotch/h264nal/h264"
	"github.com/cnotch/h264nal/mb"
	"github.com/cnotch/h264nal/nal"
	"github.com/cnotch/xlog"
)

// Status reports the outcome of one Parse call, mirroring spec.md
// §4.8's failure semantics.
type Status int

const (
	NeedBytes Status = iota
	NalUnitSkipped
	NalUnitCorrupted
	SPSParsed
	PPSParsed
	AUDParsed
	SEIParsed
	SliceParsed
)

func (s Status) String() string {
	switch s {
	case NeedBytes:
		return "NEED_BYTES"
	case NalUnitSkipped:
		return "NAL_UNIT_SKIPPED"
	case NalUnitCorrupted:
		return "NAL_UNIT_CORRUPTED"
	case SPSParsed:
		return "SPS_PARSED"
	case PPSParsed:
		return "PPS_PARSED"
	case AUDParsed:
		return "AUD_PARSED"
	case SEIParsed:
		return "SEI_PARSED"
	case SliceParsed:
		return "SLICE_PARSED"
	default:
		return "UNKNOWN"
	}
}

var log = xlog.L().With(xlog.Fields(xlog.F("module", "decoder")))

// Decoder owns the NAL scanner, parameter-set tables, and current
// picture's macroblock grid. It is single-threaded and pull-driven:
// callers Feed bytes as they arrive and call Parse until it reports
// NeedBytes.
type Decoder struct {
	scanner *nal.Scanner
	params  *h264.ParamSets

	LastSPS *h264.SPS
	LastPPS *h264.PPS
	LastAUD *h264.AUD
	LastSEI *h264.SEI
	LastSliceHeader *h264.SliceHeader

	picture *mb.Picture

	// sliceRBSP holds the header-stripped RBSP bytes of the slice
	// currently being decoded, so decodeIntraSlice can seek a fresh
	// bits.Reader to SliceDataBytePos/SliceDataBitOffset.
	sliceRBSP []byte
	sliceCount int
}

// New returns a Decoder with a NAL scanner buffer of the given
// initial capacity (config.NalBufferSize by convention).
func New(nalBufferSize int) *Decoder {
	return &Decoder{
		scanner: nal.NewScanner(nalBufferSize),
		params:  h264.NewParamSets(),
	}
}

// Feed appends newly-arrived Annex B bytes.
func (d *Decoder) Feed(data []byte) {
	d.scanner.Feed(data)
}

// Parse advances the decoder by at most one NAL unit.
func (d *Decoder) Parse() Status {
	unit, ok := d.scanner.Next()
	if !ok {
		return NeedBytes
	}
	return d.parseUnit(unit)
}

func (d *Decoder) parseUnit(unit nal.Unit) Status {
	if len(unit.Payload) == 0 {
		return NalUnitSkipped
	}
	header := nal.DecodeHeader(unit.Payload[0])

	rbsp, err := nal.DecodeRBSP(unit.Payload)
	if err != nil {
		log.Warnf("rbsp decode failed for nal_unit_type=%d: %v", header.Type, err)
		return NalUnitCorrupted
	}

	switch header.Type {
	case h264.NalSps:
		sps, err := h264.DecodeSPS(rbsp[1:])
		if err != nil {
			log.Warnf("sps decode failed: %v", err)
			return NalUnitCorrupted
		}
		d.params.PutSPS(sps)
		d.LastSPS = sps
		return SPSParsed

	case h264.NalPps:
		// DecodePPS needs the referenced SPS up front for
		// bit-depth-dependent range checks, but seq_parameter_set_id is
		// only known after decoding. Decode once with nil to learn it,
		// then decode again against the stored SPS with that id, if any;
		// if that second decode fails, the first result is kept.
		// Activation does not re-validate the PPS.
		pps, err := h264.DecodePPS(rbsp[1:], nil)
		if err != nil {
			log.Warnf("pps decode failed: %v", err)
			return NalUnitCorrupted
		}
		if sps := d.params.SPSByID(pps.SeqParameterSetID); sps != nil {
			if pps2, err2 := h264.DecodePPS(rbsp[1:], sps); err2 == nil {
				pps = pps2
			}
		}
		d.params.PutPPS(pps)
		d.LastPPS = pps
		return PPSParsed

	case h264.NalAud:
		aud, err := h264.DecodeAUD(rbsp[1:])
		if err != nil {
			log.Warnf("aud decode failed: %v", err)
			return NalUnitCorrupted
		}
		d.LastAUD = aud
		return AUDParsed

	case h264.NalSei:
		sei, err := h264.DecodeSEI(rbsp[1:])
		if err != nil {
			log.Warnf("sei decode failed: %v", err)
			return NalUnitCorrupted
		}
		d.LastSEI = sei
		return SEIParsed

	case h264.NalSlice, h264.NalIdrSlice:
		return d.parseSlice(rbsp, header)

	default:
		return NalUnitSkipped
	}
}

func (d *Decoder) parseSlice(rbsp []byte, header nal.Header) Status {
	sh, err := h264.DecodeSliceHeader(rbsp[1:], header.Type, header.RefIdc,
		d.params.PPSTable(), d.params.SPSTable())
	if err != nil {
		log.Warnf("slice header decode failed: %v", err)
		return NalUnitCorrupted
	}

	if err := d.params.Activate(sh); err != nil {
		log.Warnf("parameter set activation failed: %v", err)
		return NalUnitCorrupted
	}

	d.LastSliceHeader = sh

	dims := d.params.Dimensions
	if d.picture == nil || d.picture.MbWidth != dims.MbWidth || d.picture.MbHeight != dims.MbHeight {
		d.picture = mb.NewPicture(dims.MbWidth, dims.MbHeight, sh.SPS.MbAdaptiveFrameFieldFlag != 0, sh.FieldPicFlag != 0)
		d.sliceCount = 0
	}

	if sh.FirstMbInSlice == 0 {
		d.sliceCount++
	}

	if sh.PPS.EntropyCodingModeFlag == 1 && sh.IsIntra() {
		d.sliceRBSP = rbsp[1:]
		d.decodeIntraSlice(sh)
	}

	return SliceParsed
}

// Reset discards all buffered bytes and parameter-set state.
func (d *Decoder) Reset() {
	d.scanner.Reset()
	d.params = h264.NewParamSets()
	d.LastSPS, d.LastPPS = nil, nil
	d.picture = nil
}
