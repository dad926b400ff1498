// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"fmt"

	"github.com/cnotch/xlog"
)

var log = xlog.L().With(xlog.Fields(xlog.F("module", "h264")))

// Status is the outcome of parsing one NAL unit.
type Status int

// NAL unit parsing outcomes.
const (
	NeedBytes Status = iota
	NalUnitSkipped
	NalUnitCorrupted
	SpsParsed
	PpsParsed
	AudParsed
	SeiParsed
	SliceHeaderParsed
)

func (s Status) String() string {
	switch s {
	case NeedBytes:
		return "NEED_BYTES"
	case NalUnitSkipped:
		return "NAL_UNIT_SKIPPED"
	case NalUnitCorrupted:
		return "NAL_UNIT_CORRUPTED"
	case SpsParsed:
		return "SPS_PARSED"
	case PpsParsed:
		return "PPS_PARSED"
	case AudParsed:
		return "AUD_PARSED"
	case SeiParsed:
		return "SEI_PARSED"
	case SliceHeaderParsed:
		return "SLICE_HEADER_PARSED"
	default:
		return "UNKNOWN"
	}
}

// RangeError describes a single field that failed the range check the
// standard imposes on it. Parsers abandon the current NAL unit on the
// first RangeError: earlier field writes to the destination structure
// are discarded by never marking it Valid.
type RangeError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("h264: field %q value %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

func rangeCheck(field string, value, min, max int64) error {
	if value < min || value > max {
		log.Warnf("field %q value %d out of range [%d, %d]", field, value, min, max)
		return &RangeError{Field: field, Value: value, Min: min, Max: max}
	}
	return nil
}

// ErrEOS is returned by a syntax parser when the underlying bit
// reader ran out of bits inside a mandatory field.
type ErrEOS struct {
	Field string
}

func (e *ErrEOS) Error() string {
	return fmt.Sprintf("h264: end of stream while reading mandatory field %q", e.Field)
}

// ErrMisaligned is returned when a byte-aligned read is attempted with
// a non-zero bit cursor; per the error taxonomy this is a parser logic
// error and is always surfaced as corruption of the current NAL unit.
type ErrMisaligned struct {
	Field string
}

func (e *ErrMisaligned) Error() string {
	return fmt.Sprintf("h264: misaligned bit cursor reading field %q", e.Field)
}
