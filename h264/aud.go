// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"github.com/cnotch/h264nal/bits"
	"github.com/cnotch/h264nal/config"
)

// AUD is a decoded access unit delimiter (7.3.2.4).
type AUD struct {
	Valid         bool
	PrimaryPicType uint8
}

// DecodeAUD parses an access_unit_delimiter_rbsp().
func DecodeAUD(rbsp []byte) (*AUD, error) {
	r := bits.NewReader(rbsp)
	fr := &fieldReader{r: r}
	aud := &AUD{}

	v, err := fr.u8(3, "primary_pic_type")
	if err != nil {
		return nil, err
	}
	if err := rangeCheck("primary_pic_type", int64(v), 0, 7); err != nil {
		return nil, err
	}
	aud.PrimaryPicType = v
	aud.Valid = true
	return aud, nil
}

// SEIMessage is a single sei_payload() entry: payload_type and
// payload_size are the accumulated ff_byte chains, and Payload holds
// up to config.SeiMaxPayload() of the raw bytes (23.2 defers interpretation
// of message content, which is out of scope here).
type SEIMessage struct {
	PayloadType uint32
	PayloadSize uint32
	Payload     []byte
}

// SEI is a decoded supplemental enhancement information NAL: a
// sequence of sei_message() entries terminated by rbsp_trailing_bits.
type SEI struct {
	Valid    bool
	Messages []SEIMessage
}

// DecodeSEI parses an sei_rbsp() as a sequence of sei_message()
// structures. At most config.SeiMaxPayload() raw payload bytes are
// retained per message; interpretation of SEI payload semantics is out
// of scope, so only enough is kept to let a caller inspect small
// messages.
func DecodeSEI(rbsp []byte) (*SEI, error) {
	r := bits.NewReader(rbsp)
	fr := &fieldReader{r: r}
	sei := &SEI{}

	for r.MoreRBSPData() {
		var payloadType uint32
		for {
			b, err := fr.u8(8, "last_payload_type_byte")
			if err != nil {
				return nil, err
			}
			payloadType += uint32(b)
			if b != 0xff {
				break
			}
		}

		var payloadSize uint32
		for {
			b, err := fr.u8(8, "last_payload_size_byte")
			if err != nil {
				return nil, err
			}
			payloadSize += uint32(b)
			if b != 0xff {
				break
			}
		}

		n := payloadSize
		if maxPayload := uint32(config.SeiMaxPayload()); n > maxPayload {
			n = maxPayload
		}
		payload := make([]byte, n)
		for i := uint32(0); i < payloadSize; i++ {
			b, err := fr.u8(8, "sei_payload_byte")
			if err != nil {
				return nil, err
			}
			if i < n {
				payload[i] = b
			}
		}

		sei.Messages = append(sei.Messages, SEIMessage{
			PayloadType: payloadType,
			PayloadSize: payloadSize,
			Payload:     payload,
		})
	}

	sei.Valid = true
	return sei, nil
}
