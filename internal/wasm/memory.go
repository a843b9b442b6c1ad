package wasm

import (
	"encoding/binary"
	"math"

	mmap "github.com/edsrzf/mmap-go"
)

const (
	// MemoryPageSize is the number of bytes in one Wasm linear memory page.
	MemoryPageSize = 65536
	// MemoryMaxPages is the hard ceiling on a single memory's page count, per
	// the WebAssembly 1.0 spec (a 4GiB address space).
	MemoryMaxPages = 65536
)

// MemoryInstance is live linear memory. Its backing bytes are an anonymous
// mmap reservation rather than a plain Go slice: wasmium reserves the
// memory's declared maximum (or MemoryMaxPages, if unbounded) up front and
// only moves a "live window" boundary on Grow, so growth never reallocates
// or copies, and the region is invisible to the Go garbage collector. This
// is the same "reserve with mmap, extend in place" technique used for
// executable JIT buffers; here it backs a plain read/write data page
// instead of code.
type MemoryInstance struct {
	region    mmap.MMap
	sizeBytes uint32
	maxPages  uint32
}

// NewMemoryInstance reserves a memory instance for t, with an initial live
// size of t.Min pages.
func NewMemoryInstance(t *MemoryType) (*MemoryInstance, error) {
	max := uint32(MemoryMaxPages)
	if t.Max != nil {
		max = *t.Max
	}
	reserveBytes := int(max) * MemoryPageSize
	if reserveBytes == 0 {
		reserveBytes = MemoryPageSize // mmap requires a non-zero length.
	}
	region, err := mmap.MapRegion(nil, reserveBytes, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	return &MemoryInstance{
		region:    region,
		sizeBytes: t.Min * MemoryPageSize,
		maxPages:  max,
	}, nil
}

// Close releases the underlying mapping.
func (m *MemoryInstance) Close() error { return m.region.Unmap() }

// Size returns the live size in bytes.
func (m *MemoryInstance) Size() uint32 { return m.sizeBytes }

// PageSize returns the live size in pages.
func (m *MemoryInstance) PageSize() uint32 { return m.sizeBytes / MemoryPageSize }

// Grow extends the live window by deltaPages pages, returning the previous
// page count, or false if that would exceed the configured maximum. The
// reservation made at NewMemoryInstance already covers the maximum, so this
// never reallocates.
func (m *MemoryInstance) Grow(deltaPages uint32) (previousPages uint32, ok bool) {
	previousPages = m.PageSize()
	newPages := previousPages + deltaPages
	if deltaPages > 0 && (newPages < previousPages || newPages > m.maxPages) {
		return 0, false
	}
	m.sizeBytes = newPages * MemoryPageSize
	return previousPages, true
}

func (m *MemoryInstance) inBounds(offset, size uint32) bool {
	ea := uint64(offset) + uint64(size)
	return ea <= uint64(m.sizeBytes)
}

// ReadByte reads a single byte at offset.
func (m *MemoryInstance) ReadByte(offset uint32) (byte, bool) {
	if !m.inBounds(offset, 1) {
		return 0, false
	}
	return m.region[offset], true
}

// ReadUint16Le reads a little-endian uint16 at offset.
func (m *MemoryInstance) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.inBounds(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.region[offset:]), true
}

// ReadUint32Le reads a little-endian uint32 at offset.
func (m *MemoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.inBounds(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.region[offset:]), true
}

// ReadUint64Le reads a little-endian uint64 at offset.
func (m *MemoryInstance) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.inBounds(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.region[offset:]), true
}

// ReadFloat32Le reads a 32-bit IEEE-754 little-endian float at offset,
// preserving the exact bit pattern including any NaN payload.
func (m *MemoryInstance) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

// ReadFloat64Le reads a 64-bit IEEE-754 little-endian float at offset,
// preserving the exact bit pattern including any NaN payload.
func (m *MemoryInstance) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

// Read returns a write-through view of byteCount bytes at offset. Zero-length
// reads are in-bounds iff offset <= size, matching the spec's zero-length
// access rule.
func (m *MemoryInstance) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.inBounds(offset, byteCount) {
		return nil, false
	}
	return m.region[offset : offset+byteCount : offset+byteCount], true
}

// WriteByte writes a single byte at offset.
func (m *MemoryInstance) WriteByte(offset uint32, v byte) bool {
	if !m.inBounds(offset, 1) {
		return false
	}
	m.region[offset] = v
	return true
}

// WriteUint16Le writes a little-endian uint16 at offset.
func (m *MemoryInstance) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.inBounds(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.region[offset:], v)
	return true
}

// WriteUint32Le writes a little-endian uint32 at offset.
func (m *MemoryInstance) WriteUint32Le(offset uint32, v uint32) bool {
	if !m.inBounds(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.region[offset:], v)
	return true
}

// WriteUint64Le writes a little-endian uint64 at offset.
func (m *MemoryInstance) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.inBounds(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.region[offset:], v)
	return true
}

// WriteFloat32Le writes a 32-bit IEEE-754 little-endian float at offset,
// preserving the exact bit pattern including any NaN payload.
func (m *MemoryInstance) WriteFloat32Le(offset uint32, v float32) bool {
	return m.WriteUint32Le(offset, math.Float32bits(v))
}

// WriteFloat64Le writes a 64-bit IEEE-754 little-endian float at offset,
// preserving the exact bit pattern including any NaN payload.
func (m *MemoryInstance) WriteFloat64Le(offset uint32, v float64) bool {
	return m.WriteUint64Le(offset, math.Float64bits(v))
}

// Write writes v at offset.
func (m *MemoryInstance) Write(offset uint32, v []byte) bool {
	if !m.inBounds(offset, uint32(len(v))) {
		return false
	}
	copy(m.region[offset:], v)
	return true
}
