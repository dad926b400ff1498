// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "github.com/cnotch/h264nal/bits"

// fieldReader wraps a bits.Reader with the diagnostic name of the field
// currently being decoded, so that a failing read can be reported as
// ErrEOS/ErrMisaligned against the syntax element the standard names it
// after, rather than a bare bit position.
type fieldReader struct {
	r *bits.Reader
}

func (fr *fieldReader) u(n int, name string) (uint32, error) {
	v, ok := fr.r.ReadBits(n)
	if !ok {
		return 0, readErr(fr.r, name)
	}
	return v, nil
}

func (fr *fieldReader) u8(n int, name string) (uint8, error) {
	v, err := fr.u(n, name)
	return uint8(v), err
}

func (fr *fieldReader) u16(n int, name string) (uint16, error) {
	v, err := fr.u(n, name)
	return uint16(v), err
}

func (fr *fieldReader) u32(name string) (uint32, error) {
	return fr.u(32, name)
}

func (fr *fieldReader) flag(name string) (uint8, error) {
	v, ok := fr.r.ReadBit()
	if !ok {
		return 0, readErr(fr.r, name)
	}
	return v, nil
}

func (fr *fieldReader) ue(name string) (uint32, error) {
	v, ok := fr.r.ReadExpGolombU()
	if !ok {
		return 0, readErr(fr.r, name)
	}
	return v, nil
}

func (fr *fieldReader) ue8(name string) (uint8, error) {
	v, err := fr.ue(name)
	return uint8(v), err
}

func (fr *fieldReader) ue16(name string) (uint16, error) {
	v, err := fr.ue(name)
	return uint16(v), err
}

func (fr *fieldReader) se(name string) (int32, error) {
	v, ok := fr.r.ReadExpGolombS()
	if !ok {
		return 0, readErr(fr.r, name)
	}
	return v, nil
}

func (fr *fieldReader) se8(name string) (int8, error) {
	v, err := fr.se(name)
	return int8(v), err
}

func readErr(r *bits.Reader, name string) error {
	if r.Status() == bits.Misaligned {
		log.Warnf("misaligned bit cursor reading field %q", name)
		return &ErrMisaligned{Field: name}
	}
	log.Warnf("end of stream while reading mandatory field %q", name)
	return &ErrEOS{Field: name}
}
