// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

// FlatBuffer is an append-only byte region with a read cursor and a single
// optional bookmark. It backs the restartable parsers: bytes are appended
// as they arrive off the wire and consumed as complete syntax structures
// are decoded, without ever moving already-read data until Compact is
// called.
//
// Invariant: 0 <= read <= write <= len(buf).
type FlatBuffer struct {
	buf      []byte
	read     int
	write    int
	bookmark int // absolute offset, -1 if unset
}

// NewFlatBuffer returns a FlatBuffer with the given initial capacity.
func NewFlatBuffer(capacity int) *FlatBuffer {
	return &FlatBuffer{
		buf:      make([]byte, capacity),
		bookmark: -1,
	}
}

// Reset clears the cursor, bookmark and write position, keeping the
// underlying storage.
func (f *FlatBuffer) Reset() {
	f.read = 0
	f.write = 0
	f.bookmark = -1
}

// Append copies data into the buffer, growing or compacting it first
// if necessary.
func (f *FlatBuffer) Append(data []byte) {
	if len(data) > f.writeAvailable() {
		f.Compact()
	}
	if len(data) > f.writeAvailable() {
		f.grow(len(data) - f.writeAvailable())
	}
	f.write += copy(f.buf[f.write:], data)
}

// Compact slides the unread window (and anything from the bookmark
// onward, if a bookmark is set) to the origin of the backing array.
// The bookmark's absolute offset is preserved across the slide, since
// callers store it as an offset rather than a pointer.
func (f *FlatBuffer) Compact() {
	start := f.read
	if f.bookmark >= 0 && f.bookmark < start {
		start = f.bookmark
	}
	if start == 0 {
		return
	}
	n := copy(f.buf, f.buf[start:f.write])
	f.write = n
	f.read -= start
	if f.bookmark >= 0 {
		f.bookmark -= start
	}
}

func (f *FlatBuffer) grow(minExtra int) {
	newCap := len(f.buf) * 2
	if newCap-len(f.buf) < minExtra {
		newCap = len(f.buf) + minExtra
	}
	if newCap < 64 {
		newCap = 64
	}
	nb := make([]byte, newCap)
	copy(nb, f.buf[:f.write])
	f.buf = nb
}

func (f *FlatBuffer) writeAvailable() int {
	return len(f.buf) - f.write
}

// Unread returns the slice of bytes between the read cursor and the
// write cursor. The slice aliases the buffer and is only valid until
// the next Append/Compact/Advance call.
func (f *FlatBuffer) Unread() []byte {
	return f.buf[f.read:f.write]
}

// Len returns the number of unread bytes currently buffered.
func (f *FlatBuffer) Len() int {
	return f.write - f.read
}

// Advance moves the read cursor forward by n bytes. n must not exceed
// Len().
func (f *FlatBuffer) Advance(n int) {
	f.read += n
}

// SetBookmark records the current read cursor position (or an
// explicit absolute offset relative to the start of Unread data,
// via offsetFromRead) as the buffer's single bookmark.
func (f *FlatBuffer) SetBookmark(offsetFromRead int) {
	f.bookmark = f.read + offsetFromRead
}

// ClearBookmark removes any bookmark.
func (f *FlatBuffer) ClearBookmark() {
	f.bookmark = -1
}

// Bookmark returns the bookmark's offset relative to the current read
// cursor, and whether a bookmark is set.
func (f *FlatBuffer) Bookmark() (offsetFromRead int, ok bool) {
	if f.bookmark < 0 {
		return 0, false
	}
	return f.bookmark - f.read, true
}
