package umbra3d

import (
	"encoding/binary"
	"math"
)

// BufferUsage hints how a hardware buffer's contents will change, letting a
// render system place it appropriately.
type BufferUsage int

const (
	BufferUsageStatic           BufferUsage = 1
	BufferUsageDynamic          BufferUsage = 2
	BufferUsageWriteOnly        BufferUsage = 4
	BufferUsageStaticWriteOnly  BufferUsage = BufferUsageStatic | BufferUsageWriteOnly
	BufferUsageDynamicWriteOnly BufferUsage = BufferUsageDynamic | BufferUsageWriteOnly
)

// LockOption selects the access a buffer lock grants.
type LockOption int

const (
	// LockNormal allows reading and writing the locked range.
	LockNormal LockOption = iota
	// LockDiscard invalidates the whole buffer; the caller must rewrite
	// everything it reads back. Only meaningful on dynamic buffers.
	LockDiscard
	// LockReadOnly promises the caller will not write the locked range.
	LockReadOnly
	// LockNoOverwrite promises the caller will not touch any region it has
	// already drawn from this frame, allowing appends without a stall.
	LockNoOverwrite
)

// hardwareBuffer is the shared lock bookkeeping of vertex and index buffers.
type hardwareBuffer struct {
	usage      BufferUsage
	data       []byte
	locked     bool
	lockStart  int
	lockLength int
}

// Lock grants access to length bytes starting at offset. A buffer can hold
// only one lock at a time.
func (buffer *hardwareBuffer) Lock(offset, length int, option LockOption) ([]byte, error) {
	if buffer.locked {
		return nil, newError(ErrInvalidState, "buffer is already locked")
	}
	if offset < 0 || length < 0 || offset+length > len(buffer.data) {
		return nil, newError(ErrInvalidArgument, "lock range [%d, %d) outside buffer of %d bytes", offset, offset+length, len(buffer.data))
	}
	if option == LockDiscard && buffer.usage&BufferUsageDynamic == 0 {
		return nil, newError(ErrInvalidArgument, "discard lock requires a dynamic buffer")
	}
	buffer.locked = true
	buffer.lockStart = offset
	buffer.lockLength = length
	return buffer.data[offset : offset+length], nil
}

// Unlock releases the buffer's lock.
func (buffer *hardwareBuffer) Unlock() error {
	if !buffer.locked {
		return newError(ErrInvalidState, "buffer is not locked")
	}
	buffer.locked = false
	return nil
}

// IsLocked reports whether the buffer currently holds a lock.
func (buffer *hardwareBuffer) IsLocked() bool { return buffer.locked }

// SizeInBytes returns the buffer's total size.
func (buffer *hardwareBuffer) SizeInBytes() int { return len(buffer.data) }

// Usage returns the buffer's usage hint.
func (buffer *hardwareBuffer) Usage() BufferUsage { return buffer.usage }

// WriteData copies source into the buffer at offset, outside any lock.
func (buffer *hardwareBuffer) WriteData(offset int, source []byte) error {
	if buffer.locked {
		return newError(ErrInvalidState, "cannot write to a locked buffer")
	}
	if offset < 0 || offset+len(source) > len(buffer.data) {
		return newError(ErrInvalidArgument, "write range [%d, %d) outside buffer of %d bytes", offset, offset+len(source), len(buffer.data))
	}
	copy(buffer.data[offset:], source)
	return nil
}

// ReadData copies length bytes at offset out of the buffer.
func (buffer *hardwareBuffer) ReadData(offset, length int) ([]byte, error) {
	if buffer.locked {
		return nil, newError(ErrInvalidState, "cannot read from a locked buffer")
	}
	if offset < 0 || length < 0 || offset+length > len(buffer.data) {
		return nil, newError(ErrInvalidArgument, "read range [%d, %d) outside buffer of %d bytes", offset, offset+length, len(buffer.data))
	}
	out := make([]byte, length)
	copy(out, buffer.data[offset:])
	return out, nil
}

// HardwareVertexBuffer holds vertex data as a flat byte array of fixed-size
// vertices.
type HardwareVertexBuffer struct {
	hardwareBuffer
	vertexSize  int
	numVertices int
}

// NewHardwareVertexBuffer allocates a buffer for numVertices vertices of
// vertexSize bytes each.
func NewHardwareVertexBuffer(vertexSize, numVertices int, usage BufferUsage) *HardwareVertexBuffer {
	return &HardwareVertexBuffer{
		hardwareBuffer: hardwareBuffer{usage: usage, data: make([]byte, vertexSize*numVertices)},
		vertexSize:     vertexSize,
		numVertices:    numVertices,
	}
}

// VertexSize returns the size of one vertex in bytes.
func (buffer *HardwareVertexBuffer) VertexSize() int { return buffer.vertexSize }

// NumVertices returns the buffer's vertex capacity.
func (buffer *HardwareVertexBuffer) NumVertices() int { return buffer.numVertices }

// Clone returns a deep copy of the buffer with the usage provided.
func (buffer *HardwareVertexBuffer) Clone(usage BufferUsage) *HardwareVertexBuffer {
	out := NewHardwareVertexBuffer(buffer.vertexSize, buffer.numVertices, usage)
	copy(out.data, buffer.data)
	return out
}

// IndexType is the width of the indices in a HardwareIndexBuffer.
type IndexType int

const (
	IndexType16 IndexType = iota // 16-bit indices
	IndexType32                  // 32-bit indices
)

// Size returns the width in bytes of one index.
func (indexType IndexType) Size() int {
	if indexType == IndexType32 {
		return 4
	}
	return 2
}

// HardwareIndexBuffer holds triangle (or line / point) indices.
type HardwareIndexBuffer struct {
	hardwareBuffer
	indexType  IndexType
	numIndexes int
}

// NewHardwareIndexBuffer allocates a buffer for numIndexes indices of the
// width given.
func NewHardwareIndexBuffer(indexType IndexType, numIndexes int, usage BufferUsage) *HardwareIndexBuffer {
	return &HardwareIndexBuffer{
		hardwareBuffer: hardwareBuffer{usage: usage, data: make([]byte, indexType.Size()*numIndexes)},
		indexType:      indexType,
		numIndexes:     numIndexes,
	}
}

// Type returns the width of the buffer's indices.
func (buffer *HardwareIndexBuffer) Type() IndexType { return buffer.indexType }

// NumIndexes returns the buffer's index capacity.
func (buffer *HardwareIndexBuffer) NumIndexes() int { return buffer.numIndexes }

// Index returns the index at position i, regardless of width.
func (buffer *HardwareIndexBuffer) Index(i int) uint32 {
	if buffer.indexType == IndexType32 {
		return binary.LittleEndian.Uint32(buffer.data[i*4:])
	}
	return uint32(binary.LittleEndian.Uint16(buffer.data[i*2:]))
}

// SetIndex stores value at position i, regardless of width.
func (buffer *HardwareIndexBuffer) SetIndex(i int, value uint32) {
	if buffer.indexType == IndexType32 {
		binary.LittleEndian.PutUint32(buffer.data[i*4:], value)
		return
	}
	binary.LittleEndian.PutUint16(buffer.data[i*2:], uint16(value))
}

// Clone returns a deep copy of the buffer with the usage provided.
func (buffer *HardwareIndexBuffer) Clone(usage BufferUsage) *HardwareIndexBuffer {
	out := NewHardwareIndexBuffer(buffer.indexType, buffer.numIndexes, usage)
	copy(out.data, buffer.data)
	return out
}

// getFloat32 and putFloat32 read and write little-endian float32 values in
// raw buffer bytes.
func getFloat32(data []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}

func putFloat32(data []byte, value float32) {
	binary.LittleEndian.PutUint32(data, math.Float32bits(value))
}
