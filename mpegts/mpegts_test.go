// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func packet(pid uint16) []byte {
	p := make([]byte, 188)
	p[0] = SyncByte
	p[1] = byte(pid >> 8)
	p[2] = byte(pid)
	p[3] = 0x10 // adaptation_field_control = 01 (payload only)
	return p
}

// TestDemuxer_S6_SyncGainedThenTenSynchronized reproduces the S6
// scenario: 11 valid 188-byte packets yield one SYNC_GAINED and ten
// SYNCHRONIZED statuses.
func TestDemuxer_S6_SyncGainedThenTenSynchronized(t *testing.T) {
	d := NewDemuxer(4096)
	var stream []byte
	for i := 0; i < 11; i++ {
		stream = append(stream, packet(0x100)...)
	}
	d.Feed(stream)

	var statuses []Status
	for i := 0; i < 11; i++ {
		statuses = append(statuses, d.Parse())
	}

	gained, synced := 0, 0
	for _, s := range statuses {
		switch s {
		case SyncGained:
			gained++
		case Synchronized:
			synced++
		}
	}
	assert.Equal(t, 1, gained)
	assert.Equal(t, 10, synced)
}

// TestDemuxer_S6_SyncLostOnBadByte first establishes sync with a clean
// run, then feeds a 5th subsequent packet whose sync byte was
// corrupted and checks SYNC_LOST is reported for that packet.
func TestDemuxer_S6_SyncLostOnBadByte(t *testing.T) {
	d := NewDemuxer(4096)
	var stream []byte
	for i := 0; i < 10; i++ {
		stream = append(stream, packet(0x100)...)
	}
	d.Feed(stream)
	for i := 0; i < 10; i++ {
		d.Parse()
	}

	var bad []byte
	for i := 0; i < 5; i++ {
		p := packet(0x100)
		if i == 4 {
			p[0] = 0x48
		}
		bad = append(bad, p...)
	}
	d.Feed(bad)

	sawLost := false
	for i := 0; i < 5; i++ {
		if d.Parse() == SyncLost {
			sawLost = true
			break
		}
	}
	assert.True(t, sawLost)
}

func TestDecodePacketHeader_PID(t *testing.T) {
	p := packet(0x1ABC)
	hdr := DecodePacketHeader(p)
	assert.Equal(t, uint16(0x1ABC)&0x1fff, hdr.PID)
}

func TestHasPCR_False_WhenAdaptationFieldAbsent(t *testing.T) {
	p := packet(0x100)
	assert.False(t, HasPCR(p))
}
