// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bitString(s string) []byte {
	// s is a string of '0'/'1' characters, padded with zero bits to a
	// byte boundary.
	n := (len(s) + 7) / 8 * 8
	buf := make([]byte, n/8)
	for i, c := range s {
		if c == '1' {
			buf[i>>3] |= 1 << uint(7-i&7)
		}
	}
	return buf
}

func TestReader_ReadBits(t *testing.T) {
	r := NewReader([]byte{0xb5}) // 1011 0101
	v, ok := r.ReadBits(4)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xb), v)

	v, ok = r.ReadBits(4)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x5), v)

	_, ok = r.ReadBits(1)
	assert.False(t, ok)
	assert.Equal(t, EOS, r.Status())
}

func TestReader_ReadBits_FailurePreservesPosition(t *testing.T) {
	r := NewReader([]byte{0xff})
	r.ReadBits(4)
	before := r.BitPos()
	_, ok := r.ReadBits(8)
	assert.False(t, ok)
	assert.Equal(t, before, r.BitPos())
}

func TestReader_ReadU8_RequiresAlignment(t *testing.T) {
	r := NewReader([]byte{0xff, 0x00})
	r.ReadBits(1)
	_, ok := r.ReadU8()
	assert.False(t, ok)
	assert.Equal(t, Misaligned, r.Status())
}

func TestReader_ExpGolombU_S1(t *testing.T) {
	cases := []struct {
		bits string
		want uint32
	}{
		{"1", 0},
		{"010", 1},
		{"011", 2},
		{"00100", 3},
		{"00111", 6},
		{"0001000", 7},
	}
	for _, c := range cases {
		r := NewReader(bitString(c.bits))
		got, ok := r.ReadExpGolombU()
		assert.True(t, ok, c.bits)
		assert.Equal(t, c.want, got, c.bits)
	}
}

func TestReader_ExpGolombS_S2(t *testing.T) {
	cases := []struct {
		bits string
		want int32
	}{
		{"1", 0},
		{"010", 1},
		{"011", -1},
		{"00100", 2},
		{"00101", -2},
		{"00110", 3},
	}
	for _, c := range cases {
		r := NewReader(bitString(c.bits))
		got, ok := r.ReadExpGolombS()
		assert.True(t, ok, c.bits)
		assert.Equal(t, c.want, got, c.bits)
	}
}

func TestReader_ExpGolombU_RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 2, 3, 6, 7, 8, 15, 16, 255, 256, 1 << 20}
	for _, v := range values {
		k := 0
		for (uint64(1)<<uint(k+1))-1 <= uint64(v) {
			k++
		}
		m := v + 1 - (1 << uint(k))

		buf := make([]byte, 0, 8)
		var bitbuf uint64
		var nbits int
		push := func(val uint32, w int) {
			bitbuf = bitbuf<<uint(w) | uint64(val)
			nbits += w
			for nbits >= 8 {
				nbits -= 8
				buf = append(buf, byte(bitbuf>>uint(nbits)))
			}
		}
		push(0, k) // k leading zero bits
		push(1, 1) // the terminating one bit
		if k > 0 {
			push(m, k)
		}
		if nbits > 0 {
			buf = append(buf, byte(bitbuf<<uint(8-nbits)))
		}

		r := NewReader(buf)
		got, ok := r.ReadExpGolombU()
		assert.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestReader_MoreRBSPData(t *testing.T) {
	// A single stop bit with zero padding to the byte boundary: no more data.
	r := NewReader([]byte{0x80})
	r.ReadBits(0)
	assert.False(t, r.MoreRBSPData())

	// Real data followed by the stop bit and padding.
	r = NewReader([]byte{0xAC, 0x80})
	assert.True(t, r.MoreRBSPData())
	r.ReadBits(8)
	assert.False(t, r.MoreRBSPData())
}

func TestReader_Peek_DoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0xAB})
	v, ok := r.PeekBits(8)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xAB), v)
	assert.Equal(t, int64(0), r.BitPos())
}

func TestReader_SeekBits(t *testing.T) {
	r := NewReader([]byte{0xb5, 0x0f}) // 1011 0101  0000 1111
	assert.True(t, r.SeekBits(9))
	v, ok := r.ReadBits(4)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1), v) // bits 9..12: "0001"

	assert.False(t, r.SeekBits(-1))
	assert.False(t, r.SeekBits(17))
	assert.True(t, r.SeekBits(16))
	_, ok = r.ReadBit()
	assert.False(t, ok)
}

func TestFlatBuffer_AppendAdvanceCompact(t *testing.T) {
	fb := NewFlatBuffer(4)
	fb.Append([]byte{1, 2, 3})
	fb.SetBookmark(1) // bookmark at absolute offset 1
	fb.Advance(2)
	assert.Equal(t, []byte{3}, fb.Unread())

	off, ok := fb.Bookmark()
	assert.True(t, ok)
	assert.Equal(t, -1, off) // bookmark precedes read cursor by one byte

	fb.Append([]byte{4, 5, 6, 7, 8})
	fb.Compact()
	assert.Equal(t, []byte{3, 4, 5, 6, 7, 8}, fb.Unread())
}
