package chidb

import "encoding/binary"

// getUint8 reads a single byte. It exists alongside getUint16/getUint32
// purely so callers reading a page header never have to remember which
// width a given field is by eye.
func getUint8(b []byte) uint8 { return b[0] }

func putUint8(b []byte, v uint8) { b[0] = v }

func getUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

func getUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// varint32Width is the fixed on-disk width of a chidb varint32: unlike a
// general-purpose LEB128 varint, chidb always spends exactly 4 bytes on a
// key or data-size field so that cell layouts have a constant size.
const varint32Width = 4

// EncodeVarint32Into writes v into buf[:4] using chidb's fixed-width
// varint32 encoding: the first three bytes each carry 7 bits of value with
// the high bit set as a continuation flag, and the fourth byte carries the
// low 8 bits, unmasked (its high bit is plain data, not a continuation
// flag). This holds values below 2^29 (3*7+8 = 29 significant bits); the
// top three bits of v are not stored.
func EncodeVarint32Into(buf []byte, v uint32) {
	_ = buf[3]
	buf[0] = byte((v>>22)&0x7f) | 0x80
	buf[1] = byte((v>>15)&0x7f) | 0x80
	buf[2] = byte((v>>8)&0x7f) | 0x80
	buf[3] = byte(v)
}

// DecodeVarint32 reads a 4-byte chidb varint32 from buf[:4].
func DecodeVarint32(buf []byte) uint32 {
	_ = buf[3]
	var v uint32
	v |= uint32(buf[0]&0x7f) << 22
	v |= uint32(buf[1]&0x7f) << 15
	v |= uint32(buf[2]&0x7f) << 8
	v |= uint32(buf[3])
	return v
}
