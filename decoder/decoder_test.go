// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"testing"

	"github.com/cnotch/h264nal/h264"
	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "NEED_BYTES", NeedBytes.String())
	assert.Equal(t, "SPS_PARSED", SPSParsed.String())
	assert.Equal(t, "SLICE_PARSED", SliceParsed.String())
	assert.Equal(t, "UNKNOWN", Status(99).String())
}

func TestDecoder_Parse_NeedBytesOnEmpty(t *testing.T) {
	d := New(4096)
	assert.Equal(t, NeedBytes, d.Parse())
}

func TestDecoder_Parse_SkipsShortNalUnit(t *testing.T) {
	d := New(4096)
	// A start code with no payload byte following it never becomes a
	// deliverable unit until the next start code (or Flush) arrives, so
	// this still reports NeedBytes rather than NalUnitSkipped.
	d.Feed([]byte{0x00, 0x00, 0x00, 0x01})
	assert.Equal(t, NeedBytes, d.Parse())
}

func TestDecoder_Reset_ClearsParameterSets(t *testing.T) {
	d := New(4096)
	d.LastSPS = &h264.SPS{Valid: true}
	d.Reset()
	assert.Nil(t, d.LastSPS)
	assert.Equal(t, NeedBytes, d.Parse())
}
