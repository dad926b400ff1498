// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mpegts demultiplexes an MPEG-2 Transport Stream, recovering
// PES-framed elementary-stream bytes from a possibly unsynchronised
// packet stream. It has no knowledge of the H.264 syntax carried
// inside the recovered PES payloads.
package mpegts

import (
	"github.com/cnotch/h264nal/bits"
	"github.com/cnotch/xlog"
)

var log = xlog.L().With(xlog.Fields(xlog.F("module", "mpegts")))

// SyncByte is the fixed leading byte of every TS packet.
const SyncByte = 0x47

// candidatePacketSizes are probed in order; 188 is by far the common
// case, 204/208 carry a trailing Reed-Solomon FEC block that is
// simply skipped as extra packet length.
var candidatePacketSizes = []int{188, 204, 208}

// syncPacketsRequired is how many consecutive 0x47 bytes at a
// candidate stride must be observed before that stride is accepted.
const syncPacketsRequired = 10

// Status is the outcome of one Parse call.
type Status int

const (
	NeedBytes Status = iota
	NotSynchronized
	SyncGained
	Synchronized
	SyncLost
	TransportRateDetected
)

func (s Status) String() string {
	switch s {
	case NeedBytes:
		return "NEED_BYTES"
	case NotSynchronized:
		return "NOT_SYNCHRONIZED"
	case SyncGained:
		return "SYNC_GAINED"
	case Synchronized:
		return "SYNCHRONIZED"
	case SyncLost:
		return "SYNC_LOST"
	case TransportRateDetected:
		return "TRANSPORT_RATE_DETECTED"
	default:
		return "UNKNOWN"
	}
}

const invalidPID = 0x1fff

// transportRateEstimator tracks a PCR window on a single PID and
// derives packets/second once two PCR samples on that PID have been
// observed.
type transportRateEstimator struct {
	pcrPID      uint16
	havePID     bool
	pcr1        uint64
	pcr2        uint64
	haveFirst   bool
	packetCount uint64
	rate        uint64
}

func (e *transportRateEstimator) reset() {
	*e = transportRateEstimator{}
}

// calculate feeds one TS packet's worth of PCR bookkeeping. It returns
// true when a new rate has just been computed.
func (e *transportRateEstimator) calculate(pid uint16, pcr uint64, hasPCR bool) bool {
	if !hasPCR {
		e.packetCount++
		return false
	}
	if !e.havePID {
		e.pcrPID = pid
		e.havePID = true
	}
	if pid != e.pcrPID {
		return false
	}
	if !e.haveFirst {
		e.pcr1 = pcr
		e.haveFirst = true
		e.packetCount = 0
		return false
	}
	if pcr < e.pcr1 {
		// Restart the window; PCR must be monotonic within it.
		e.pcr1 = pcr
		e.packetCount = 0
		return false
	}
	e.pcr2 = pcr
	e.packetCount++
	delta := e.pcr2 - e.pcr1
	if delta == 0 {
		return false
	}
	e.rate = e.packetCount * 27000000 / delta
	e.pcr1 = e.pcr2
	e.packetCount = 0
	return true
}

// PacketHeader is the fixed 4-byte TS packet header (2.4.3.2).
type PacketHeader struct {
	TransportErrorIndicator    bool
	PayloadUnitStartIndicator  bool
	TransportPriority          bool
	PID                        uint16
	TransportScramblingControl uint8
	AdaptationFieldControl     uint8
	ContinuityCounter          uint8
}

// DecodePacketHeader reads the 4-byte header from the start of a TS
// packet.
func DecodePacketHeader(tsp []byte) PacketHeader {
	return PacketHeader{
		TransportErrorIndicator:   tsp[1]&0x80 != 0,
		PayloadUnitStartIndicator: tsp[1]&0x40 != 0,
		TransportPriority:         tsp[1]&0x20 != 0,
		PID:                       (uint16(tsp[1])<<8 | uint16(tsp[2])) & 0x1fff,
		TransportScramblingControl: (tsp[3] >> 6) & 3,
		AdaptationFieldControl:     (tsp[3] >> 4) & 3,
		ContinuityCounter:          tsp[3] & 0xf,
	}
}

// HasPCR reports whether the adaptation field carries a PCR, matching
// the standard's flag chain: adaptation field present, non-zero
// length, PCR flag set.
func HasPCR(tsp []byte) bool {
	return tsp[3]&0x20 != 0 && tsp[4] != 0 && tsp[5]&0x10 != 0
}

// PCR decodes the 6-byte program_clock_reference field starting at
// tsp[6], in 27MHz clock ticks.
func PCR(tsp []byte) uint64 {
	base := (uint64(tsp[6])<<24 | uint64(tsp[7])<<16 | uint64(tsp[8])<<8 | uint64(tsp[9]))<<8 | uint64(tsp[10])
	base >>= 7
	ext := (uint64(tsp[10])<<8 | uint64(tsp[11])) & 0x1ff
	return 1 + base*300 + ext
}

// payloadOffset returns the offset of the payload within a TS packet
// given its adaptation_field_control.
func payloadOffset(tsp []byte) int {
	afc := (tsp[3] >> 4) & 3
	switch afc {
	case 1: // payload only
		return 4
	case 2: // adaptation field only, no payload
		return len(tsp)
	case 3: // adaptation field followed by payload
		adaptationLength := int(tsp[4])
		return 4 + 1 + adaptationLength
	default: // reserved
		return len(tsp)
	}
}

// pesHeader captures the fixed prefix of a PES header preceding the
// elementary stream payload (Table 2-21, video stream ids 0xE0-0xEF).
type pesHeader struct {
	StreamID uint8
}

// PESPayload strips a PES header from a payload_unit_start_indicator
// packet's payload, returning the elementary-stream bytes that
// follow. ok is false if the bytes don't yet contain a complete
// header (need more bytes) or don't look like a video PES packet.
func PESPayload(payload []byte) (data []byte, ok bool) {
	if len(payload) < 9 {
		return nil, false
	}
	if payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return nil, false
	}
	streamID := payload[3]
	if streamID < 0xE0 || streamID > 0xEF {
		return nil, false
	}
	if payload[6]&0xC0 != 0x80 {
		return nil, false
	}
	headerDataLength := int(payload[8])
	start := 9 + headerDataLength
	if start > len(payload) {
		return nil, false
	}
	return payload[start:], true
}

// Demuxer recovers PES payloads from a possibly unsynchronised TS
// packet stream. It is a pull-driven state machine: Feed appends
// bytes, Parse advances the state machine by at most one packet and
// reports what happened.
type Demuxer struct {
	fb *bits.FlatBuffer

	synchronized bool
	packetSize   int

	rate transportRateEstimator

	// VideoPID is the PID this demuxer follows for PES reassembly; 0
	// means "not yet determined", pinned to the first PUSI video
	// packet's PID.
	VideoPID uint16
	havePID  bool

	// Output accumulates elementary-stream bytes recovered from PES
	// payloads on VideoPID, ready for the caller to hand to an Annex-B
	// scanner.
	Output []byte
}

// NewDemuxer returns a Demuxer with the given internal buffer
// capacity.
func NewDemuxer(capacity int) *Demuxer {
	return &Demuxer{fb: bits.NewFlatBuffer(capacity)}
}

// SetVideoPID pins the PID this demuxer follows for PES reassembly
// before the first packet arrives, for callers (the CLI's -t flag)
// that already know which PID carries video. Calling this after
// Reset takes precedence over auto-pinning to the first PUSI PID.
func (d *Demuxer) SetVideoPID(pid uint16) {
	d.VideoPID = pid
	d.havePID = true
}

// Feed appends newly-arrived bytes.
func (d *Demuxer) Feed(data []byte) {
	d.fb.Append(data)
}

// Reset discards all state, returning the demuxer to
// NOT_SYNCHRONIZED.
func (d *Demuxer) Reset() {
	d.fb.Reset()
	d.synchronized = false
	d.packetSize = 0
	d.rate.reset()
	d.havePID = false
	d.Output = nil
}

// Parse advances the state machine by at most one TS packet.
func (d *Demuxer) Parse() Status {
	if !d.synchronized {
		return d.waitingForSync()
	}
	return d.synchronizedStep()
}

// waitingForSync probes each candidate packet size for a run of
// syncPacketsRequired consecutive sync bytes at that stride, starting
// from the first 0x47 in the buffer.
func (d *Demuxer) waitingForSync() Status {
	buf := d.fb.Unread()

	start := -1
	for i, b := range buf {
		if b == SyncByte {
			start = i
			break
		}
	}
	if start < 0 {
		// Keep only the last byte in case it's a lone leading 0x47
		// candidate split across Feed calls; otherwise this buffer has
		// no useful bytes.
		if len(buf) > 0 {
			d.fb.Advance(len(buf) - 1)
		}
		return NeedBytes
	}
	if start > 0 {
		d.fb.Advance(start)
		buf = d.fb.Unread()
	}

	for _, size := range candidatePacketSizes {
		if size*(syncPacketsRequired-1) >= len(buf) {
			continue
		}
		ok := true
		for i := 0; i < syncPacketsRequired; i++ {
			off := i * size
			if off >= len(buf) || buf[off] != SyncByte {
				ok = false
				break
			}
		}
		if ok {
			d.packetSize = size
			d.synchronized = true
			d.fb.Advance(size)
			log.Infof("sync acquired at packet size %d", size)
			return SyncGained
		}
	}

	// Not enough buffered bytes to confirm any candidate yet; more
	// bytes might complete the run, but if the buffer is already
	// larger than the biggest candidate window we can conclude no
	// candidate will validate at this origin and should skip forward.
	maxWindow := candidatePacketSizes[len(candidatePacketSizes)-1] * syncPacketsRequired
	if len(buf) >= maxWindow {
		d.fb.Advance(1)
		log.Warnf("no candidate packet size validated in a %d-byte window, skipping forward", maxWindow)
		return NotSynchronized
	}
	return NeedBytes
}

// synchronizedStep consumes one packet of the locked-in size, or
// declares SyncLost and restarts if the sync byte has drifted.
func (d *Demuxer) synchronizedStep() Status {
	buf := d.fb.Unread()
	if len(buf) < d.packetSize {
		return NeedBytes
	}
	if buf[0] != SyncByte {
		log.Warnf("sync byte drift at locked packet size %d, resynchronizing", d.packetSize)
		d.synchronized = false
		d.packetSize = 0
		d.rate.reset()
		return SyncLost
	}

	tsp := buf[:188]
	if len(tsp) < 188 {
		return NeedBytes
	}

	hdr := DecodePacketHeader(tsp)
	rateDetected := false
	if hdr.PID != invalidPID && hdr.AdaptationFieldControl != 0 {
		hasPCR := hdr.AdaptationFieldControl >= 2 && HasPCR(tsp)
		var pcr uint64
		if hasPCR {
			pcr = PCR(tsp)
		}
		rateDetected = d.rate.calculate(hdr.PID, pcr, hasPCR)
	}

	off := payloadOffset(tsp)
	if off < len(tsp) && hdr.AdaptationFieldControl&1 != 0 {
		payload := tsp[off:]
		if hdr.PayloadUnitStartIndicator && (!d.havePID || hdr.PID == d.VideoPID) {
			if es, ok := PESPayload(payload); ok {
				d.VideoPID = hdr.PID
				d.havePID = true
				d.Output = append(d.Output, es...)
			}
		} else if d.havePID && hdr.PID == d.VideoPID {
			d.Output = append(d.Output, payload...)
		}
	}

	d.fb.Advance(d.packetSize)
	if rateDetected {
		return TransportRateDetected
	}
	return Synchronized
}
