// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cabac

import (
	"testing"

	"github.com/cnotch/h264nal/bits"
	"github.com/stretchr/testify/assert"
)

// TestEngine_CodIRangeStaysInBounds decodes a long run of decisions
// against a fixed context and checks Invariant 7: codIRange stays in
// [256, 510] after every renormalisation.
func TestEngine_CodIRangeStaysInBounds(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i*37 + 11)
	}
	r := bits.NewReader(data)
	e, ok := NewEngine(r)
	assert.True(t, ok)

	ctx := &Context{PStateIdx: 0, ValMPS: 0}
	for i := 0; i < 500; i++ {
		_, ok := e.DecodeDecision(ctx)
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, e.CodIRange(), uint32(256))
		assert.LessOrEqual(t, e.CodIRange(), uint32(510))
	}
}

// TestEngine_InitialState checks the exact initialisation values from
// spec.md §4.7: codIRange = 510, codIOffset = read_bits(9).
func TestEngine_InitialState(t *testing.T) {
	// 9 bits: 1 0000 0000 -> 0x100 = 256.
	data := []byte{0x80, 0x00}
	r := bits.NewReader(data)
	e, ok := NewEngine(r)
	assert.True(t, ok)
	assert.Equal(t, uint32(510), e.codIRange)
	assert.Equal(t, uint32(256), e.codIOffset)
}

// TestEngine_DecodeBypass_EOSReported checks that running out of bits
// during a bypass decode is reported rather than silently returning a
// zero bin.
func TestEngine_DecodeBypass_EOSReported(t *testing.T) {
	data := []byte{0xff, 0xff}
	r := bits.NewReader(data)
	e, ok := NewEngine(r)
	assert.True(t, ok)
	for i := 0; i < 100; i++ {
		if _, ok := e.DecodeBypass(); !ok {
			return
		}
	}
	t.Fatal("expected EOS within 100 bypass decodes from a 2-byte source")
}
