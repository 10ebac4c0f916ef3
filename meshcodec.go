package umbra3d

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"sort"
)

// Mesh files are a flat stream of chunks. Every chunk starts with a 16-bit
// id and a 32-bit byte length covering the whole chunk, header included,
// all little-endian. Unknown chunk ids are skipped on read, so the format
// can grow without breaking older readers.
const (
	chunkFileHeader uint16 = 0x1000

	chunkMesh                  uint16 = 0x3000
	chunkSubMesh               uint16 = 0x4000
	chunkSubMeshBoneAssignment uint16 = 0x4100
	chunkGeometry              uint16 = 0x5000
	chunkGeometryElement       uint16 = 0x5110
	chunkGeometryBuffer        uint16 = 0x5200
	chunkIndexes               uint16 = 0x5300
	chunkSkeletonLink          uint16 = 0x6000
	chunkMeshBoneAssignment    uint16 = 0x6100
	chunkMeshLod               uint16 = 0x8000
	chunkMeshLodUsage          uint16 = 0x8100
	chunkMeshLodFaceList       uint16 = 0x8110
	chunkMeshBounds            uint16 = 0x9000
	chunkSubMeshName           uint16 = 0xA100
	chunkPose                  uint16 = 0xB000
	chunkAnimation             uint16 = 0xC000
	chunkAnimationMorphTrack   uint16 = 0xC100
	chunkAnimationPoseTrack    uint16 = 0xC110
)

const meshCodecVersion = "[UmbraMesh_v1.0]"

// chunk header: id (2) + length (4).
const chunkHeaderSize = 6

type chunkEncoder struct {
	buf bytes.Buffer
}

func (enc *chunkEncoder) u16(v uint16) {
	var raw [2]byte
	binary.LittleEndian.PutUint16(raw[:], v)
	enc.buf.Write(raw[:])
}

func (enc *chunkEncoder) u32(v uint32) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], v)
	enc.buf.Write(raw[:])
}

func (enc *chunkEncoder) f32(v float32) {
	var raw [4]byte
	putFloat32(raw[:], v)
	enc.buf.Write(raw[:])
}

func (enc *chunkEncoder) f64(v float64) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v))
	enc.buf.Write(raw[:])
}

func (enc *chunkEncoder) bool(v bool) {
	if v {
		enc.buf.WriteByte(1)
	} else {
		enc.buf.WriteByte(0)
	}
}

func (enc *chunkEncoder) str(s string) {
	enc.u32(uint32(len(s)))
	enc.buf.WriteString(s)
}

func (enc *chunkEncoder) vec(v Vector) {
	enc.f32(float32(v.X))
	enc.f32(float32(v.Y))
	enc.f32(float32(v.Z))
}

// chunk writes a complete child chunk into this encoder's stream.
func (enc *chunkEncoder) chunk(id uint16, body *chunkEncoder) {
	enc.u16(id)
	enc.u32(uint32(chunkHeaderSize + body.buf.Len()))
	enc.buf.Write(body.buf.Bytes())
}

type chunkDecoder struct {
	data []byte
	pos  int
	err  error
}

func (dec *chunkDecoder) fail(format string, args ...any) {
	if dec.err == nil {
		dec.err = newError(ErrInvalidState, format, args...)
	}
}

func (dec *chunkDecoder) take(n int) []byte {
	if dec.err != nil {
		return nil
	}
	if dec.pos+n > len(dec.data) {
		dec.fail("mesh data truncated at byte %d", dec.pos)
		return nil
	}
	out := dec.data[dec.pos : dec.pos+n]
	dec.pos += n
	return out
}

func (dec *chunkDecoder) u16() uint16 {
	raw := dec.take(2)
	if raw == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(raw)
}

func (dec *chunkDecoder) u32() uint32 {
	raw := dec.take(4)
	if raw == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(raw)
}

func (dec *chunkDecoder) f32() float32 {
	raw := dec.take(4)
	if raw == nil {
		return 0
	}
	return getFloat32(raw)
}

func (dec *chunkDecoder) f64() float64 {
	raw := dec.take(8)
	if raw == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(raw))
}

func (dec *chunkDecoder) bool() bool {
	raw := dec.take(1)
	return raw != nil && raw[0] != 0
}

func (dec *chunkDecoder) str() string {
	n := int(dec.u32())
	raw := dec.take(n)
	if raw == nil {
		return ""
	}
	return string(raw)
}

func (dec *chunkDecoder) vec() Vector {
	return NewVector(float64(dec.f32()), float64(dec.f32()), float64(dec.f32()))
}

func (dec *chunkDecoder) remaining() bool {
	return dec.err == nil && dec.pos < len(dec.data)
}

// nextChunk reads one chunk header and returns its id plus a decoder over
// its body.
func (dec *chunkDecoder) nextChunk() (uint16, *chunkDecoder) {
	id := dec.u16()
	length := int(dec.u32())
	if dec.err != nil {
		return 0, nil
	}
	if length < chunkHeaderSize {
		dec.fail("chunk %#04x declares impossible length %d", id, length)
		return 0, nil
	}
	body := dec.take(length - chunkHeaderSize)
	if body == nil {
		return 0, nil
	}
	return id, &chunkDecoder{data: body}
}

// EncodeMesh writes the mesh as a chunked binary stream. The mesh's name is
// not stored; the caller names the mesh again on decode.
func EncodeMesh(w io.Writer, mesh *Mesh) error {
	if mesh == nil {
		return newError(ErrInvalidArgument, "cannot encode a nil mesh")
	}
	var root chunkEncoder

	var header chunkEncoder
	header.str(meshCodecVersion)
	root.chunk(chunkFileHeader, &header)

	var body chunkEncoder

	if mesh.SharedVertexData != nil {
		geometry := encodeGeometry(mesh.SharedVertexData)
		body.chunk(chunkGeometry, geometry)
	}

	for _, subMesh := range mesh.subMeshes {
		body.chunk(chunkSubMesh, encodeSubMesh(subMesh))
	}

	var bounds chunkEncoder
	bounds.vec(mesh.bounds.Min)
	bounds.vec(mesh.bounds.Max)
	bounds.f32(float32(mesh.boundRadius))
	body.chunk(chunkMeshBounds, &bounds)

	if mesh.skeletonName != "" {
		var link chunkEncoder
		link.str(mesh.skeletonName)
		body.chunk(chunkSkeletonLink, &link)
	}

	for _, assignment := range mesh.SharedBoneAssignments() {
		body.chunk(chunkMeshBoneAssignment, encodeBoneAssignment(assignment))
	}

	if len(mesh.lodLevels) > 1 {
		body.chunk(chunkMeshLod, encodeLodLevels(mesh))
	}

	names := make([]string, 0, len(mesh.subMeshNames))
	for name := range mesh.subMeshNames {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var entry chunkEncoder
		entry.str(name)
		entry.u16(uint16(mesh.subMeshNames[name]))
		body.chunk(chunkSubMeshName, &entry)
	}

	for _, pose := range mesh.poses {
		body.chunk(chunkPose, encodePose(pose))
	}

	animationNames := make([]string, 0, len(mesh.animations))
	for name := range mesh.animations {
		animationNames = append(animationNames, name)
	}
	sort.Strings(animationNames)
	for _, name := range animationNames {
		body.chunk(chunkAnimation, encodeVertexAnimation(mesh.animations[name]))
	}

	root.chunk(chunkMesh, &body)

	_, err := w.Write(root.buf.Bytes())
	if err != nil {
		return wrapError(ErrInternal, err, "writing mesh data")
	}
	return nil
}

func encodeGeometry(data *VertexData) *chunkEncoder {
	var geometry chunkEncoder
	geometry.u32(uint32(data.Count))
	geometry.u32(uint32(data.Start))

	for _, element := range data.Declaration.Elements() {
		var raw chunkEncoder
		raw.u16(element.Source)
		raw.u16(uint16(element.Offset))
		raw.u16(uint16(element.Type))
		raw.u16(uint16(element.Semantic))
		raw.u16(element.Index)
		geometry.chunk(chunkGeometryElement, &raw)
	}

	sources := make([]uint16, 0, len(data.Binding.Bindings()))
	for source := range data.Binding.Bindings() {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	for _, source := range sources {
		buffer := data.Binding.Bindings()[source]
		var raw chunkEncoder
		raw.u16(source)
		raw.u16(uint16(buffer.VertexSize()))
		raw.u32(uint32(buffer.NumVertices()))
		raw.buf.Write(buffer.data)
		geometry.chunk(chunkGeometryBuffer, &raw)
	}
	return &geometry
}

func encodeIndexData(data *IndexData) *chunkEncoder {
	var raw chunkEncoder
	raw.u32(uint32(data.Count))
	raw.u32(uint32(data.Start))
	raw.bool(data.Buffer.Type() == IndexType32)
	raw.u32(uint32(data.Buffer.NumIndexes()))
	raw.buf.Write(data.Buffer.data)
	return &raw
}

func encodeSubMesh(subMesh *SubMesh) *chunkEncoder {
	var body chunkEncoder
	body.str(subMesh.MaterialName)
	body.bool(subMesh.UseSharedVertices)
	body.u16(uint16(subMesh.Topology))

	if subMesh.IndexData != nil && subMesh.IndexData.Buffer != nil {
		body.chunk(chunkIndexes, encodeIndexData(subMesh.IndexData))
	}
	if !subMesh.UseSharedVertices && subMesh.VertexData != nil {
		body.chunk(chunkGeometry, encodeGeometry(subMesh.VertexData))
	}
	for _, assignment := range subMesh.BoneAssignments() {
		body.chunk(chunkSubMeshBoneAssignment, encodeBoneAssignment(assignment))
	}
	return &body
}

func encodeBoneAssignment(assignment VertexBoneAssignment) *chunkEncoder {
	var body chunkEncoder
	body.u32(assignment.VertexIndex)
	body.u16(assignment.BoneIndex)
	body.f32(float32(assignment.Weight))
	return &body
}

func encodeLodLevels(mesh *Mesh) *chunkEncoder {
	var body chunkEncoder
	body.u16(uint16(len(mesh.lodLevels)))
	for level := 1; level < len(mesh.lodLevels); level++ {
		usage := mesh.lodLevels[level]
		var entry chunkEncoder
		entry.f64(usage.UserValue)
		entry.str(usage.ManualName)
		if usage.ManualName == "" {
			for _, subMesh := range mesh.subMeshes {
				if level-1 < len(subMesh.lodFaceLists) && subMesh.lodFaceLists[level-1] != nil {
					entry.chunk(chunkMeshLodFaceList, encodeIndexData(subMesh.lodFaceLists[level-1]))
				} else {
					// Hold the slot so face lists stay aligned with submeshes.
					var empty chunkEncoder
					empty.u32(0)
					empty.u32(0)
					empty.bool(false)
					empty.u32(0)
					entry.chunk(chunkMeshLodFaceList, &empty)
				}
			}
		}
		body.chunk(chunkMeshLodUsage, &entry)
	}
	return &body
}

func encodePose(pose *Pose) *chunkEncoder {
	var body chunkEncoder
	body.str(pose.Name)
	body.u16(pose.Target)
	body.u32(uint32(len(pose.Offsets)))
	indexes := make([]uint32, 0, len(pose.Offsets))
	for index := range pose.Offsets {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	for _, index := range indexes {
		body.u32(index)
		body.vec(pose.Offsets[index])
	}
	return &body
}

func encodeVertexAnimation(animation *VertexAnimation) *chunkEncoder {
	var body chunkEncoder
	body.str(animation.name)
	body.f64(animation.length)
	for _, track := range animation.tracks {
		if track.Type == VertexAnimationMorph {
			var raw chunkEncoder
			raw.u16(track.Target)
			raw.u32(uint32(len(track.morphKeyFrames)))
			for _, keyFrame := range track.morphKeyFrames {
				raw.f64(keyFrame.Time)
				raw.u32(uint32(len(keyFrame.Positions)))
				for _, position := range keyFrame.Positions {
					raw.vec(position)
				}
			}
			body.chunk(chunkAnimationMorphTrack, &raw)
		} else {
			var raw chunkEncoder
			raw.u16(track.Target)
			raw.u32(uint32(len(track.poseKeyFrames)))
			for _, keyFrame := range track.poseKeyFrames {
				raw.f64(keyFrame.Time)
				raw.u32(uint32(len(keyFrame.PoseRefs)))
				for _, ref := range keyFrame.PoseRefs {
					raw.u16(uint16(ref.PoseIndex))
					raw.f32(float32(ref.Influence))
				}
			}
			body.chunk(chunkAnimationPoseTrack, &raw)
		}
	}
	return &body
}

// DecodeMesh reads a chunked binary stream written by EncodeMesh, giving
// the result the name provided.
func DecodeMesh(r io.Reader, name string) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(ErrInternal, err, "reading mesh data")
	}
	dec := &chunkDecoder{data: data}

	id, header := dec.nextChunk()
	if dec.err != nil {
		return nil, dec.err
	}
	if id != chunkFileHeader {
		return nil, newError(ErrInvalidState, "mesh data does not start with a header chunk (got %#04x)", id)
	}
	version := header.str()
	if header.err != nil {
		return nil, header.err
	}
	if version != meshCodecVersion {
		return nil, newError(ErrInvalidState, "unsupported mesh format version %q", version)
	}

	id, body := dec.nextChunk()
	if dec.err != nil {
		return nil, dec.err
	}
	if id != chunkMesh {
		return nil, newError(ErrInvalidState, "expected a mesh chunk, got %#04x", id)
	}

	mesh := NewMesh(name)
	if err := decodeMeshBody(body, mesh); err != nil {
		return nil, err
	}
	return mesh, nil
}

func decodeMeshBody(body *chunkDecoder, mesh *Mesh) error {
	// Pending detail levels; applied after submeshes exist.
	type pendingLod struct {
		userValue  float64
		manualName string
		faceLists  []*IndexData
	}
	var pendingLods []pendingLod

	for body.remaining() {
		id, chunk := body.nextChunk()
		if body.err != nil {
			return body.err
		}
		switch id {
		case chunkGeometry:
			data, err := decodeGeometry(chunk)
			if err != nil {
				return err
			}
			mesh.SharedVertexData = data

		case chunkSubMesh:
			if err := decodeSubMesh(chunk, mesh); err != nil {
				return err
			}

		case chunkMeshBounds:
			min := chunk.vec()
			max := chunk.vec()
			radius := float64(chunk.f32())
			if chunk.err != nil {
				return chunk.err
			}
			mesh.SetBounds(NewBox(min, max), radius)

		case chunkSkeletonLink:
			mesh.skeletonName = chunk.str()

		case chunkMeshBoneAssignment:
			assignment, err := decodeBoneAssignment(chunk)
			if err != nil {
				return err
			}
			mesh.AddSharedBoneAssignment(assignment)

		case chunkMeshLod:
			count := int(chunk.u16())
			for chunk.remaining() {
				usageID, usage := chunk.nextChunk()
				if chunk.err != nil {
					return chunk.err
				}
				if usageID != chunkMeshLodUsage {
					continue
				}
				pending := pendingLod{userValue: usage.f64(), manualName: usage.str()}
				for usage.remaining() {
					faceID, face := usage.nextChunk()
					if usage.err != nil {
						return usage.err
					}
					if faceID != chunkMeshLodFaceList {
						continue
					}
					indexData, err := decodeIndexData(face)
					if err != nil {
						return err
					}
					pending.faceLists = append(pending.faceLists, indexData)
				}
				pendingLods = append(pendingLods, pending)
			}
			if count != len(pendingLods)+1 {
				logger.Warn("mesh detail level count mismatch", "mesh", mesh.name, "declared", count, "found", len(pendingLods)+1)
			}

		case chunkSubMeshName:
			subName := chunk.str()
			index := int(chunk.u16())
			if chunk.err != nil {
				return chunk.err
			}
			if index >= len(mesh.subMeshes) {
				return newError(ErrInvalidState, "submesh name %q references missing submesh %d", subName, index)
			}
			mesh.subMeshNames[subName] = index

		case chunkPose:
			if err := decodePose(chunk, mesh); err != nil {
				return err
			}

		case chunkAnimation:
			if err := decodeVertexAnimation(chunk, mesh); err != nil {
				return err
			}

		default:
			// Unknown chunk, skip.
		}
	}

	for level, pending := range pendingLods {
		if err := mesh.AddManualLodLevel(pending.userValue, pending.manualName); err != nil {
			return err
		}
		if pending.manualName != "" {
			continue
		}
		if len(pending.faceLists) != len(mesh.subMeshes) {
			return newError(ErrInvalidState, "detail level %d has %d face lists for %d submeshes",
				level+1, len(pending.faceLists), len(mesh.subMeshes))
		}
		for i, faceList := range pending.faceLists {
			if faceList.Buffer == nil || faceList.Count == 0 {
				continue
			}
			if err := mesh.subMeshes[i].SetLodFaceList(level+1, faceList); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeGeometry(chunk *chunkDecoder) (*VertexData, error) {
	data := NewVertexData()
	data.Count = int(chunk.u32())
	data.Start = int(chunk.u32())

	for chunk.remaining() {
		id, child := chunk.nextChunk()
		if chunk.err != nil {
			return nil, chunk.err
		}
		switch id {
		case chunkGeometryElement:
			source := child.u16()
			offset := int(child.u16())
			elementType := VertexElementType(child.u16())
			semantic := VertexElementSemantic(child.u16())
			index := child.u16()
			if child.err != nil {
				return nil, child.err
			}
			data.Declaration.AddElement(source, offset, elementType, semantic, index)

		case chunkGeometryBuffer:
			source := child.u16()
			vertexSize := int(child.u16())
			numVertices := int(child.u32())
			if child.err != nil {
				return nil, child.err
			}
			raw := child.take(vertexSize * numVertices)
			if child.err != nil {
				return nil, child.err
			}
			buffer := NewHardwareVertexBuffer(vertexSize, numVertices, BufferUsageStaticWriteOnly)
			copy(buffer.data, raw)
			data.Binding.SetBinding(source, buffer)
		}
	}
	return data, nil
}

func decodeIndexData(chunk *chunkDecoder) (*IndexData, error) {
	count := int(chunk.u32())
	start := int(chunk.u32())
	is32 := chunk.bool()
	numIndexes := int(chunk.u32())
	if chunk.err != nil {
		return nil, chunk.err
	}
	indexType := IndexType16
	if is32 {
		indexType = IndexType32
	}
	buffer := NewHardwareIndexBuffer(indexType, numIndexes, BufferUsageStaticWriteOnly)
	raw := chunk.take(indexType.Size() * numIndexes)
	if chunk.err != nil {
		return nil, chunk.err
	}
	copy(buffer.data, raw)
	data := NewIndexData(buffer)
	data.Count = count
	data.Start = start
	return data, nil
}

func decodeSubMesh(chunk *chunkDecoder, mesh *Mesh) error {
	subMesh := mesh.CreateSubMesh()
	subMesh.MaterialName = chunk.str()
	subMesh.UseSharedVertices = chunk.bool()
	subMesh.Topology = PrimitiveTopology(chunk.u16())
	if chunk.err != nil {
		return chunk.err
	}

	for chunk.remaining() {
		id, child := chunk.nextChunk()
		if chunk.err != nil {
			return chunk.err
		}
		switch id {
		case chunkIndexes:
			indexData, err := decodeIndexData(child)
			if err != nil {
				return err
			}
			subMesh.IndexData = indexData

		case chunkGeometry:
			data, err := decodeGeometry(child)
			if err != nil {
				return err
			}
			subMesh.VertexData = data

		case chunkSubMeshBoneAssignment:
			assignment, err := decodeBoneAssignment(child)
			if err != nil {
				return err
			}
			subMesh.AddBoneAssignment(assignment)
		}
	}
	return nil
}

func decodeBoneAssignment(chunk *chunkDecoder) (VertexBoneAssignment, error) {
	assignment := VertexBoneAssignment{
		VertexIndex: chunk.u32(),
		BoneIndex:   chunk.u16(),
		Weight:      float64(chunk.f32()),
	}
	return assignment, chunk.err
}

func decodePose(chunk *chunkDecoder, mesh *Mesh) error {
	name := chunk.str()
	target := chunk.u16()
	count := int(chunk.u32())
	if chunk.err != nil {
		return chunk.err
	}
	pose := mesh.CreatePose(name, target)
	for i := 0; i < count; i++ {
		index := chunk.u32()
		offset := chunk.vec()
		if chunk.err != nil {
			return chunk.err
		}
		pose.AddVertexOffset(index, offset)
	}
	return nil
}

func decodeVertexAnimation(chunk *chunkDecoder, mesh *Mesh) error {
	name := chunk.str()
	length := chunk.f64()
	if chunk.err != nil {
		return chunk.err
	}
	animation, err := mesh.CreateVertexAnimation(name, length)
	if err != nil {
		return err
	}
	for chunk.remaining() {
		id, child := chunk.nextChunk()
		if chunk.err != nil {
			return chunk.err
		}
		switch id {
		case chunkAnimationMorphTrack:
			target := child.u16()
			keyFrames := int(child.u32())
			track := animation.CreateTrack(target, VertexAnimationMorph)
			for i := 0; i < keyFrames; i++ {
				time := child.f64()
				positionCount := int(child.u32())
				positions := make([]Vector, positionCount)
				for j := range positions {
					positions[j] = child.vec()
				}
				if child.err != nil {
					return child.err
				}
				track.CreateMorphKeyFrame(time, positions)
			}

		case chunkAnimationPoseTrack:
			target := child.u16()
			keyFrames := int(child.u32())
			track := animation.CreateTrack(target, VertexAnimationPose)
			for i := 0; i < keyFrames; i++ {
				time := child.f64()
				refCount := int(child.u32())
				refs := make([]PoseRef, refCount)
				for j := range refs {
					refs[j] = PoseRef{PoseIndex: int(child.u16()), Influence: float64(child.f32())}
				}
				if child.err != nil {
					return child.err
				}
				track.CreatePoseKeyFrame(time, refs)
			}
		}
	}
	return nil
}
