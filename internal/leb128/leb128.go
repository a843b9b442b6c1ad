// Package leb128 encodes and decodes the LEB128 varints used throughout the
// WebAssembly binary format for indices, immediates and section sizes.
package leb128

import (
	"fmt"
	"io"
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return encodeUvarint(uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte { return encodeUvarint(v) }

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte { return encodeVarint(int64(v)) }

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte { return encodeVarint(v) }

func encodeUvarint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeVarint(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 uint32 from the front of b, reporting
// the number of bytes consumed.
func LoadUint32(b []byte) (v uint32, num uint64, err error) {
	v64, num, err := loadUvarint(b, 32)
	return uint32(v64), num, err
}

// LoadUint64 decodes an unsigned LEB128 uint64 from the front of b.
func LoadUint64(b []byte) (v uint64, num uint64, err error) {
	return loadUvarint(b, 64)
}

// LoadInt32 decodes a signed LEB128 int32 from the front of b.
func LoadInt32(b []byte) (v int32, num uint64, err error) {
	v64, num, err := loadVarint(b, 32)
	return int32(v64), num, err
}

// LoadInt64 decodes a signed LEB128 int64 from the front of b.
func LoadInt64(b []byte) (v int64, num uint64, err error) {
	return loadVarint(b, 64)
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 (used for Wasm block
// type immediates, which reserve one extra bit over ValueType encodings)
// from r, sign-extended into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (v int64, num uint64, err error) {
	return decodeVarintReader(r, 33)
}

// ReadUint32 decodes an unsigned LEB128 uint32 one byte at a time from r,
// for callers streaming a section whose total length isn't known up front.
func ReadUint32(r io.ByteReader) (v uint32, num uint64, err error) {
	v64, num, err := decodeUvarintReader(r, 32)
	return uint32(v64), num, err
}

// ReadInt32 decodes a signed LEB128 int32 one byte at a time from r.
func ReadInt32(r io.ByteReader) (v int32, num uint64, err error) {
	v64, num, err := decodeVarintReader(r, 32)
	return int32(v64), num, err
}

// ReadInt64 decodes a signed LEB128 int64 one byte at a time from r.
func ReadInt64(r io.ByteReader) (v int64, num uint64, err error) {
	return decodeVarintReader(r, 64)
}

func decodeUvarintReader(r io.ByteReader, size int) (v uint64, num uint64, err error) {
	var shift uint
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, num, err
		}
		num++
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, num, nil
		}
		shift += 7
		if shift > uint(size)+7 {
			return 0, num, fmt.Errorf("leb128: too many bytes decoding uint%d", size)
		}
	}
}

func loadUvarint(b []byte, size int) (v uint64, num uint64, err error) {
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			if shift+7 < uint(size) {
				return v, uint64(i + 1), nil
			}
			// Final byte: any bits above `size` must be zero.
			if v>>uint(size) != 0 {
				return 0, 0, fmt.Errorf("leb128: overflow decoding uint%d", size)
			}
			return v, uint64(i + 1), nil
		}
		shift += 7
		if shift > 70 {
			return 0, 0, fmt.Errorf("leb128: too many bytes decoding uint%d", size)
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

func loadVarint(b []byte, size int) (v int64, num uint64, err error) {
	var shift uint
	var c byte
	var i int
	for i = 0; i < len(b); i++ {
		c = b[i]
		v |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
		if shift > 70 {
			return 0, 0, fmt.Errorf("leb128: too many bytes decoding int%d", size)
		}
	}
	if i == len(b) && (len(b) == 0 || b[len(b)-1]&0x80 != 0) {
		return 0, 0, io.ErrUnexpectedEOF
	}
	if shift < 64 && c&0x40 != 0 {
		v |= -1 << shift
	}
	if shift > uint(size) {
		// The high bits beyond size must match the sign we just filled in.
		extra := v >> uint(size-1)
		if extra != 0 && extra != -1 {
			return 0, 0, fmt.Errorf("leb128: overflow decoding int%d", size)
		}
	}
	return v, uint64(i + 1), nil
}

func decodeVarintReader(r io.ByteReader, size int) (v int64, num uint64, err error) {
	var shift uint
	var c byte
	for {
		c, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		num++
		v |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
		if shift > 70 {
			return 0, 0, fmt.Errorf("leb128: too many bytes decoding int%d", size)
		}
	}
	if shift < 64 && c&0x40 != 0 {
		v |= -1 << shift
	}
	return v, num, nil
}
