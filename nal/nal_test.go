// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeRBSP_RemovesEmulationByte(t *testing.T) {
	in := []byte{0x67, 0x42, 0x00, 0x1F, 0x00, 0x00, 0x03, 0x00, 0x28}
	want := []byte{0x67, 0x42, 0x00, 0x1F, 0x00, 0x00, 0x00, 0x28}

	got, err := DecodeRBSP(in)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRBSP_ForbiddenPattern(t *testing.T) {
	_, err := DecodeRBSP([]byte{0x67, 0x00, 0x00, 0x02})
	assert.Equal(t, ErrForbiddenPattern, err)
}

func TestDecodeRBSP_CabacZeroWordTail(t *testing.T) {
	in := []byte{0x67, 0x00, 0x00, 0x03}
	want := []byte{0x67, 0x00, 0x00}

	got, err := DecodeRBSP(in)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRBSP_EscapeFollowedByLargeByte(t *testing.T) {
	_, err := DecodeRBSP([]byte{0x00, 0x00, 0x03, 0x04})
	assert.Equal(t, ErrForbiddenPattern, err)
}

func TestScanner_FourByteStartCode(t *testing.T) {
	s := NewScanner(64)
	s.Feed([]byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1F})
	unit, ok := s.Flush()
	assert.True(t, ok)
	assert.Equal(t, byte(0x67), unit.Payload[0])
}

func TestScanner_TwoUnits(t *testing.T) {
	s := NewScanner(64)
	s.Feed([]byte{0x00, 0x00, 0x01, 0x67, 0x00, 0x00, 0x01, 0x68})

	unit, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, []byte{0x67}, unit.Payload)
	assert.Equal(t, uint8(7), DecodeHeader(unit.Payload[0]).Type)

	unit, ok = s.Flush()
	assert.True(t, ok)
	assert.Equal(t, []byte{0x68}, unit.Payload)
	assert.Equal(t, uint8(8), DecodeHeader(unit.Payload[0]).Type)
}

func TestScanner_NeedsMoreBytes(t *testing.T) {
	s := NewScanner(64)
	s.Feed([]byte{0x00, 0x00, 0x01, 0x67, 0x42})
	_, ok := s.Next()
	assert.False(t, ok)

	s.Feed([]byte{0x00, 0x00, 0x01, 0x68})
	unit, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, []byte{0x67, 0x42}, unit.Payload)
}

func TestDecodeHeader(t *testing.T) {
	h := DecodeHeader(0x67) // 0110 0111
	assert.Equal(t, uint8(0), h.ForbiddenZeroBit)
	assert.Equal(t, uint8(3), h.RefIdc)
	assert.Equal(t, uint8(7), h.Type)
}
