// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nal implements Annex B start-code framing and RBSP
// (raw byte sequence payload) decapsulation for H.264 elementary
// streams. It has no knowledge of the syntax structures carried inside
// a NAL unit; it only recovers NAL-unit boundaries and strips
// emulation-prevention bytes.
package nal

import (
	"errors"

	"github.com/cnotch/h264nal/bits"
	"github.com/cnotch/xlog"
)

var log = xlog.L().With(xlog.Fields(xlog.F("module", "nal")))

// ErrForbiddenPattern is returned by DecodeRBSP when the payload
// contains a byte sequence that Annex B forbids from ever appearing
// inside a NAL unit.
var ErrForbiddenPattern = errors.New("nal: forbidden 00 00 0x pattern in payload")

// Header is the one-byte NAL unit header.
type Header struct {
	ForbiddenZeroBit uint8
	RefIdc           uint8 // nal_ref_idc, 2 bits
	Type             uint8 // nal_unit_type, 5 bits
}

// DecodeHeader splits the leading NAL header byte.
func DecodeHeader(b byte) Header {
	return Header{
		ForbiddenZeroBit: (b >> 7) & 1,
		RefIdc:           (b >> 5) & 3,
		Type:             b & 0x1f,
	}
}

// Unit is a single delimited, still-encapsulated NAL unit as found in
// the byte stream: Payload includes the header byte and has not yet
// had emulation-prevention bytes removed.
type Unit struct {
	Payload []byte
}

// Scanner locates start-code-delimited NAL units inside an
// append-only byte buffer. It is restartable: Feed can be called
// repeatedly as more bytes arrive, and Next returns ok=false (NEED_BYTES)
// until a complete unit is available.
type Scanner struct {
	fb *bits.FlatBuffer
}

// NewScanner returns a Scanner with the given initial buffer capacity.
func NewScanner(capacity int) *Scanner {
	return &Scanner{fb: bits.NewFlatBuffer(capacity)}
}

// Feed appends newly-arrived bytes to the internal buffer.
func (s *Scanner) Feed(data []byte) {
	s.fb.Append(data)
}

// findStartCode locates the payload start (the byte right after a
// "00 00 01" prefix) in buf.
func findStartCode(buf []byte) int {
	zeros := 0
	for i, b := range buf {
		switch {
		case b == 0x00:
			zeros++
		case b == 0x01 && zeros >= 2:
			return i + 1
		default:
			zeros = 0
		}
	}
	return -1
}

// Next extracts the next fully-delimited NAL unit (header byte plus
// encapsulated payload, start code stripped).
func (s *Scanner) Next() (Unit, bool) {
	buf := s.fb.Unread()

	start := findStartCode(buf)
	if start < 0 {
		return Unit{}, false
	}

	end := findNextPrefix(buf[start:])
	if end < 0 {
		// No terminating start code yet in the buffered bytes.
		return Unit{}, false
	}

	payload := make([]byte, end)
	copy(payload, buf[start:start+end])
	s.fb.Advance(start + end)
	return Unit{Payload: payload}, true
}

// findNextPrefix returns the length of buf up to (excluding) the next
// start-code-prefix candidate ("00 00 00" or "00 00 01"), or -1 if
// none is present yet.
func findNextPrefix(buf []byte) int {
	zeros := 0
	for i, b := range buf {
		if b == 0x00 {
			zeros++
			if zeros >= 3 {
				return i - 2
			}
			continue
		}
		if b == 0x01 && zeros >= 2 {
			return i - 2
		}
		zeros = 0
	}
	return -1
}

// Flush extracts a trailing NAL unit that runs to the end of the
// buffered bytes without a following start code (end of stream, or
// the caller otherwise knows no more bytes are coming for this unit).
func (s *Scanner) Flush() (Unit, bool) {
	buf := s.fb.Unread()
	start := findStartCode(buf)
	if start < 0 || start >= len(buf) {
		return Unit{}, false
	}
	payload := make([]byte, len(buf)-start)
	copy(payload, buf[start:])
	s.fb.Advance(len(buf))
	return Unit{Payload: payload}, true
}

// Reset discards all buffered bytes.
func (s *Scanner) Reset() {
	s.fb.Reset()
}

// DecodeRBSP copies a NAL unit's payload bytes (header byte included)
// into an RBSP buffer, removing emulation-prevention bytes: any 0x03
// byte immediately following two consecutive 0x00 bytes is dropped.
//
// Two conditions abort decoding:
//   - "00 00" followed by a byte < 0x03: forbidden, since the encoder
//     must always escape such a byte with 0x03.
//   - "00 00 03" followed by a byte > 0x03, unless the 0x03 is the
//     very last byte of the NAL unit, in which case it is a
//     cabac_zero_word tail marker: the final 0x03 is discarded and
//     the RBSP output ends "00 00".
func DecodeRBSP(nalPayload []byte) ([]byte, error) {
	out := make([]byte, 0, len(nalPayload))
	zeros := 0
	for i := 0; i < len(nalPayload); i++ {
		b := nalPayload[i]
		if zeros >= 2 && b == 0x03 {
			if i == len(nalPayload)-1 {
				zeros = 0
				continue
			}
			if nalPayload[i+1] > 0x03 {
				log.Warnf("forbidden 00 00 03 %#x pattern at offset %d, discarding NAL unit", nalPayload[i+1], i)
				return nil, ErrForbiddenPattern
			}
			zeros = 0
			continue
		}
		if zeros >= 2 && b < 0x03 {
			log.Warnf("forbidden 00 00 %#x pattern at offset %d, discarding NAL unit", b, i)
			return nil, ErrForbiddenPattern
		}

		out = append(out, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out, nil
}
