package umbra3d

import (
	"math"
	"sort"
)

// VertexElementSemantic says what a vertex element means.
type VertexElementSemantic int

const (
	SemanticPosition VertexElementSemantic = 1 + iota
	SemanticBlendWeights
	SemanticBlendIndices
	SemanticNormal
	SemanticDiffuse
	SemanticSpecular
	SemanticTexCoord
	SemanticBinormal
	SemanticTangent
)

// VertexElementType is the storage format of a vertex element.
type VertexElementType int

const (
	VETFloat1 VertexElementType = iota
	VETFloat2
	VETFloat3
	VETFloat4
	VETColor
	VETShort2
	VETShort4
	VETUByte4
)

// Size returns the element type's size in bytes.
func (vet VertexElementType) Size() int {
	switch vet {
	case VETFloat1:
		return 4
	case VETFloat2:
		return 8
	case VETFloat3:
		return 12
	case VETFloat4:
		return 16
	case VETColor:
		return 4
	case VETShort2:
		return 4
	case VETShort4:
		return 8
	case VETUByte4:
		return 4
	}
	return 0
}

// VertexElement locates one semantic within a vertex buffer: the buffer
// binding it reads from, its byte offset within each vertex, and its format.
type VertexElement struct {
	Source   uint16 // The vertex buffer binding index
	Offset   int    // Byte offset within one vertex
	Type     VertexElementType
	Semantic VertexElementSemantic
	Index    uint16 // Distinguishes repeated semantics, e.g. texcoord sets
}

// Size returns the element's size in bytes.
func (element VertexElement) Size() int { return element.Type.Size() }

// VertexDeclaration lists the elements making up a vertex format, across any
// number of buffer sources.
type VertexDeclaration struct {
	elements []VertexElement
}

// NewVertexDeclaration returns an empty declaration.
func NewVertexDeclaration() *VertexDeclaration {
	return &VertexDeclaration{}
}

// AddElement appends an element and returns it.
func (declaration *VertexDeclaration) AddElement(source uint16, offset int, vet VertexElementType, semantic VertexElementSemantic, index uint16) VertexElement {
	element := VertexElement{Source: source, Offset: offset, Type: vet, Semantic: semantic, Index: index}
	declaration.elements = append(declaration.elements, element)
	return element
}

// Elements returns the declaration's elements in declaration order.
func (declaration *VertexDeclaration) Elements() []VertexElement {
	return declaration.elements
}

// FindElementBySemantic returns the first element with the semantic and
// semantic index given.
func (declaration *VertexDeclaration) FindElementBySemantic(semantic VertexElementSemantic, index uint16) (VertexElement, bool) {
	for _, element := range declaration.elements {
		if element.Semantic == semantic && element.Index == index {
			return element, true
		}
	}
	return VertexElement{}, false
}

// VertexSize returns the size in bytes of one vertex in the source provided.
func (declaration *VertexDeclaration) VertexSize(source uint16) int {
	size := 0
	for _, element := range declaration.elements {
		if element.Source == source {
			size += element.Size()
		}
	}
	return size
}

// Sources returns the distinct buffer sources the declaration references,
// ascending.
func (declaration *VertexDeclaration) Sources() []uint16 {
	seen := map[uint16]struct{}{}
	var sources []uint16
	for _, element := range declaration.elements {
		if _, ok := seen[element.Source]; !ok {
			seen[element.Source] = struct{}{}
			sources = append(sources, element.Source)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// Clone returns a copy of the declaration.
func (declaration *VertexDeclaration) Clone() *VertexDeclaration {
	out := NewVertexDeclaration()
	out.elements = append(out.elements, declaration.elements...)
	return out
}

// VertexBufferBinding maps buffer source indices to the vertex buffers
// holding their data.
type VertexBufferBinding struct {
	bindings map[uint16]*HardwareVertexBuffer
}

// NewVertexBufferBinding returns an empty binding set.
func NewVertexBufferBinding() *VertexBufferBinding {
	return &VertexBufferBinding{bindings: map[uint16]*HardwareVertexBuffer{}}
}

// SetBinding binds the buffer to the source index given.
func (binding *VertexBufferBinding) SetBinding(source uint16, buffer *HardwareVertexBuffer) {
	binding.bindings[source] = buffer
}

// Binding returns the buffer bound to the source index given.
func (binding *VertexBufferBinding) Binding(source uint16) (*HardwareVertexBuffer, error) {
	buffer, ok := binding.bindings[source]
	if !ok {
		return nil, newError(ErrItemNotFound, "no vertex buffer bound to source %d", source)
	}
	return buffer, nil
}

// Bindings returns the underlying binding map.
func (binding *VertexBufferBinding) Bindings() map[uint16]*HardwareVertexBuffer {
	return binding.bindings
}

// Clone returns a copy of the binding set. Buffers are shared unless deep is
// set.
func (binding *VertexBufferBinding) Clone(deep bool) *VertexBufferBinding {
	out := NewVertexBufferBinding()
	for source, buffer := range binding.bindings {
		if deep {
			out.bindings[source] = buffer.Clone(buffer.Usage())
		} else {
			out.bindings[source] = buffer
		}
	}
	return out
}

// VertexData is a complete vertex stream: a format declaration, the buffers
// bound to its sources, and the range of vertices in use.
type VertexData struct {
	Declaration *VertexDeclaration
	Binding     *VertexBufferBinding
	Start       int // First vertex in use
	Count       int // Number of vertices in use
}

// NewVertexData returns an empty VertexData with a fresh declaration and
// binding set.
func NewVertexData() *VertexData {
	return &VertexData{
		Declaration: NewVertexDeclaration(),
		Binding:     NewVertexBufferBinding(),
	}
}

// Clone returns a copy of the VertexData. Buffers are shared unless deep is
// set, in which case their contents are copied too.
func (data *VertexData) Clone(deep bool) *VertexData {
	if data == nil {
		return nil
	}
	return &VertexData{
		Declaration: data.Declaration.Clone(),
		Binding:     data.Binding.Clone(deep),
		Start:       data.Start,
		Count:       data.Count,
	}
}

// PositionAt returns the position of vertex i (relative to Start) read
// through the declaration's position element.
func (data *VertexData) PositionAt(i int) (Vector, error) {
	element, ok := data.Declaration.FindElementBySemantic(SemanticPosition, 0)
	if !ok {
		return Vector{}, newError(ErrItemNotFound, "vertex data has no position element")
	}
	buffer, err := data.Binding.Binding(element.Source)
	if err != nil {
		return Vector{}, err
	}
	base := (data.Start+i)*buffer.VertexSize() + element.Offset
	return NewVector(
		float64(getFloat32(buffer.data[base:])),
		float64(getFloat32(buffer.data[base+4:])),
		float64(getFloat32(buffer.data[base+8:])),
	), nil
}

// SetPositionAt writes the position of vertex i (relative to Start) through
// the declaration's position element.
func (data *VertexData) SetPositionAt(i int, position Vector) error {
	element, ok := data.Declaration.FindElementBySemantic(SemanticPosition, 0)
	if !ok {
		return newError(ErrItemNotFound, "vertex data has no position element")
	}
	buffer, err := data.Binding.Binding(element.Source)
	if err != nil {
		return err
	}
	base := (data.Start+i)*buffer.VertexSize() + element.Offset
	putFloat32(buffer.data[base:], float32(position.X))
	putFloat32(buffer.data[base+4:], float32(position.Y))
	putFloat32(buffer.data[base+8:], float32(position.Z))
	return nil
}

// NormalAt reads the normal of vertex i (relative to Start) through the
// declaration's normal element.
func (data *VertexData) NormalAt(i int) (Vector, error) {
	element, ok := data.Declaration.FindElementBySemantic(SemanticNormal, 0)
	if !ok {
		return Vector{}, newError(ErrItemNotFound, "vertex data has no normal element")
	}
	buffer, err := data.Binding.Binding(element.Source)
	if err != nil {
		return Vector{}, err
	}
	base := (data.Start+i)*buffer.VertexSize() + element.Offset
	return NewVector(
		float64(getFloat32(buffer.data[base:])),
		float64(getFloat32(buffer.data[base+4:])),
		float64(getFloat32(buffer.data[base+8:])),
	), nil
}

// SetNormalAt writes the normal of vertex i (relative to Start) through the
// declaration's normal element.
func (data *VertexData) SetNormalAt(i int, normal Vector) error {
	element, ok := data.Declaration.FindElementBySemantic(SemanticNormal, 0)
	if !ok {
		return newError(ErrItemNotFound, "vertex data has no normal element")
	}
	buffer, err := data.Binding.Binding(element.Source)
	if err != nil {
		return err
	}
	base := (data.Start+i)*buffer.VertexSize() + element.Offset
	putFloat32(buffer.data[base:], float32(normal.X))
	putFloat32(buffer.data[base+4:], float32(normal.Y))
	putFloat32(buffer.data[base+8:], float32(normal.Z))
	return nil
}

// UVAt reads texture coordinate set index of vertex i (relative to Start).
func (data *VertexData) UVAt(i int, index uint16) (float64, float64, error) {
	element, ok := data.Declaration.FindElementBySemantic(SemanticTexCoord, index)
	if !ok {
		return 0, 0, newError(ErrItemNotFound, "vertex data has no texture coordinate element")
	}
	buffer, err := data.Binding.Binding(element.Source)
	if err != nil {
		return 0, 0, err
	}
	base := (data.Start+i)*buffer.VertexSize() + element.Offset
	return float64(getFloat32(buffer.data[base:])), float64(getFloat32(buffer.data[base+4:])), nil
}

// SetUVAt writes texture coordinate set index of vertex i (relative to
// Start).
func (data *VertexData) SetUVAt(i int, index uint16, u, v float64) error {
	element, ok := data.Declaration.FindElementBySemantic(SemanticTexCoord, index)
	if !ok {
		return newError(ErrItemNotFound, "vertex data has no texture coordinate element")
	}
	buffer, err := data.Binding.Binding(element.Source)
	if err != nil {
		return err
	}
	base := (data.Start+i)*buffer.VertexSize() + element.Offset
	putFloat32(buffer.data[base:], float32(u))
	putFloat32(buffer.data[base+4:], float32(v))
	return nil
}

// Bounds computes the axis-aligned box and bounding radius of the vertex
// positions in use.
func (data *VertexData) Bounds() (AxisAlignedBox, float64) {
	box := NewBoxNull()
	radiusSq := 0.0
	for i := 0; i < data.Count; i++ {
		position, err := data.PositionAt(i)
		if err != nil {
			return box, 0
		}
		box = box.MergePoint(position)
		if m := position.MagnitudeSquared(); m > radiusSq {
			radiusSq = m
		}
	}
	return box, math.Sqrt(radiusSq)
}

// IndexData is a range of indices within an index buffer.
type IndexData struct {
	Buffer *HardwareIndexBuffer
	Start  int
	Count  int
}

// NewIndexData returns an IndexData covering the whole buffer provided.
func NewIndexData(buffer *HardwareIndexBuffer) *IndexData {
	return &IndexData{Buffer: buffer, Count: buffer.NumIndexes()}
}

// Clone returns a copy of the IndexData. The buffer is shared unless deep is
// set.
func (data *IndexData) Clone(deep bool) *IndexData {
	if data == nil {
		return nil
	}
	out := &IndexData{Buffer: data.Buffer, Start: data.Start, Count: data.Count}
	if deep && data.Buffer != nil {
		out.Buffer = data.Buffer.Clone(data.Buffer.Usage())
	}
	return out
}
