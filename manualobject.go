package umbra3d

// ManualObject builds geometry procedurally. Call Begin, feed vertices with
// Position and its companions, then End to close a section; each section
// becomes one Renderable with its own material. ConvertToMesh turns the
// result into a reusable Mesh.
type ManualObject struct {
	MovableBase

	sections []*ManualObjectSection

	current *ManualObjectSection

	// Pending vertex components. Position starts a new vertex; the others
	// modify the vertex most recently started.
	positions []Vector
	normals   []Vector
	texCoords [][2]float64
	colors    []Color
	indices   []uint32

	anyNormals   bool
	anyTexCoords bool
	anyColors    bool

	localBounds AxisAlignedBox
	boundRadius float64

	estimatedVertices int
	estimatedIndices  int
}

var _ MovableObject = (*ManualObject)(nil)

// NewManualObject creates an empty manual object.
func NewManualObject(name string) *ManualObject {
	object := &ManualObject{localBounds: NewBoxNull()}
	object.initMovable(object, name)
	return object
}

// MovableType identifies the object as manual geometry.
func (object *ManualObject) MovableType() string { return "ManualObject" }

// TypeFlags returns the query type mask bit for entity-like objects.
func (object *ManualObject) TypeFlags() uint32 { return TypeMaskEntity }

// EstimateVertexCount reserves space for the section about to be built.
func (object *ManualObject) EstimateVertexCount(count int) { object.estimatedVertices = count }

// EstimateIndexCount reserves space for the section about to be built.
func (object *ManualObject) EstimateIndexCount(count int) { object.estimatedIndices = count }

// Begin opens a new section rendering with the material and topology
// provided. Sections cannot nest.
func (object *ManualObject) Begin(materialName string, topology PrimitiveTopology) error {
	if object.current != nil {
		return newError(ErrInvalidState, "manual object %q already has an open section", object.Name())
	}
	object.current = &ManualObjectSection{
		parent:       object,
		materialName: materialName,
		topology:     topology,
	}
	object.positions = make([]Vector, 0, object.estimatedVertices)
	object.normals = object.normals[:0]
	object.texCoords = object.texCoords[:0]
	object.colors = object.colors[:0]
	object.indices = make([]uint32, 0, object.estimatedIndices)
	object.anyNormals = false
	object.anyTexCoords = false
	object.anyColors = false
	return nil
}

// Position starts a new vertex at the point provided.
func (object *ManualObject) Position(position Vector) error {
	if object.current == nil {
		return newError(ErrInvalidState, "manual object %q has no open section", object.Name())
	}
	object.positions = append(object.positions, position)
	object.normals = append(object.normals, Vector{})
	object.texCoords = append(object.texCoords, [2]float64{})
	object.colors = append(object.colors, ColorWhite())
	object.localBounds = object.localBounds.MergePoint(position)
	if length := position.Magnitude(); length > object.boundRadius {
		object.boundRadius = length
	}
	return nil
}

// Normal sets the current vertex's normal.
func (object *ManualObject) Normal(normal Vector) error {
	if object.current == nil || len(object.positions) == 0 {
		return newError(ErrInvalidState, "manual object %q has no vertex to set a normal on", object.Name())
	}
	object.normals[len(object.normals)-1] = normal
	object.anyNormals = true
	return nil
}

// TextureCoord sets the current vertex's texture coordinates.
func (object *ManualObject) TextureCoord(u, v float64) error {
	if object.current == nil || len(object.positions) == 0 {
		return newError(ErrInvalidState, "manual object %q has no vertex to set texture coordinates on", object.Name())
	}
	object.texCoords[len(object.texCoords)-1] = [2]float64{u, v}
	object.anyTexCoords = true
	return nil
}

// Color sets the current vertex's diffuse color.
func (object *ManualObject) Color(color Color) error {
	if object.current == nil || len(object.positions) == 0 {
		return newError(ErrInvalidState, "manual object %q has no vertex to set a color on", object.Name())
	}
	object.colors[len(object.colors)-1] = color
	object.anyColors = true
	return nil
}

// Index appends one index into the section's vertices.
func (object *ManualObject) Index(index uint32) error {
	if object.current == nil {
		return newError(ErrInvalidState, "manual object %q has no open section", object.Name())
	}
	object.indices = append(object.indices, index)
	return nil
}

// Triangle appends three indices.
func (object *ManualObject) Triangle(a, b, c uint32) error {
	if err := object.Index(a); err != nil {
		return err
	}
	if err := object.Index(b); err != nil {
		return err
	}
	return object.Index(c)
}

// Quad appends two triangles covering the four corners, wound a b c / a c d.
func (object *ManualObject) Quad(a, b, c, d uint32) error {
	if err := object.Triangle(a, b, c); err != nil {
		return err
	}
	return object.Triangle(a, c, d)
}

// End closes the open section, baking its vertex and index buffers.
func (object *ManualObject) End() (*ManualObjectSection, error) {
	if object.current == nil {
		return nil, newError(ErrInvalidState, "manual object %q has no open section", object.Name())
	}
	section := object.current
	object.current = nil

	if len(object.positions) == 0 {
		// Discard empty sections.
		return nil, newError(ErrInvalidState, "manual object %q section ended with no vertices", object.Name())
	}

	for _, index := range object.indices {
		if int(index) >= len(object.positions) {
			return nil, newError(ErrInvalidArgument, "manual object %q index %d out of range (%d vertices)",
				object.Name(), index, len(object.positions))
		}
	}

	section.build(object)
	object.sections = append(object.sections, section)
	return section, nil
}

// Clear removes every section, returning the object to its empty state.
func (object *ManualObject) Clear() {
	object.sections = object.sections[:0]
	object.current = nil
	object.localBounds = NewBoxNull()
	object.boundRadius = 0
}

// Sections returns the closed sections in build order.
func (object *ManualObject) Sections() []*ManualObjectSection { return object.sections }

// SectionCount returns the number of closed sections.
func (object *ManualObject) SectionCount() int { return len(object.sections) }

// BoundingBox returns the bounds of every vertex fed in so far.
func (object *ManualObject) BoundingBox() AxisAlignedBox { return object.localBounds }

// BoundingRadius returns the object's bounding radius.
func (object *ManualObject) BoundingRadius() float64 { return object.boundRadius }

// UpdateRenderQueue queues every closed section.
func (object *ManualObject) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	for _, section := range object.sections {
		queue.AddRenderable(section, object.RenderQueueGroup(), object.RenderQueuePriority())
	}
}

// VisitRenderables visits every closed section.
func (object *ManualObject) VisitRenderables(visitor func(Renderable)) {
	for _, section := range object.sections {
		visitor(section)
	}
}

// ConvertToMesh bakes the closed sections into a Mesh, one submesh per
// section, and adds it to the library provided.
func (object *ManualObject) ConvertToMesh(library *Library, name string) (*Mesh, error) {
	if object.current != nil {
		return nil, newError(ErrInvalidState, "manual object %q still has an open section", object.Name())
	}
	if len(object.sections) == 0 {
		return nil, newError(ErrInvalidState, "manual object %q has no sections to convert", object.Name())
	}
	mesh := NewMesh(name)
	for _, section := range object.sections {
		subMesh := mesh.CreateSubMesh()
		subMesh.MaterialName = section.materialName
		subMesh.UseSharedVertices = false
		subMesh.Topology = section.topology
		subMesh.VertexData = section.vertexData.Clone(true)
		if section.indexData != nil {
			subMesh.IndexData = section.indexData.Clone(true)
		}
	}
	mesh.SetBounds(object.localBounds, object.boundRadius)
	if library != nil {
		if err := library.AddMesh(mesh); err != nil {
			return nil, err
		}
	}
	return mesh, nil
}

// ManualObjectSection is one closed Begin/End block: a fixed vertex and
// index buffer under one material.
type ManualObjectSection struct {
	RenderableBase

	parent       *ManualObject
	materialName string
	material     *Material
	topology     PrimitiveTopology

	vertexData *VertexData
	indexData  *IndexData
}

var _ Renderable = (*ManualObjectSection)(nil)

// build lays the pending vertex components into an interleaved buffer.
// Only the components actually supplied get elements.
func (section *ManualObjectSection) build(object *ManualObject) {
	declaration := NewVertexDeclaration()
	offset := 0
	declaration.AddElement(0, offset, VETFloat3, SemanticPosition, 0)
	offset += 12
	normalOffset, texOffset, colorOffset := -1, -1, -1
	if object.anyNormals {
		declaration.AddElement(0, offset, VETFloat3, SemanticNormal, 0)
		normalOffset = offset
		offset += 12
	}
	if object.anyColors {
		declaration.AddElement(0, offset, VETFloat4, SemanticDiffuse, 0)
		colorOffset = offset
		offset += 16
	}
	if object.anyTexCoords {
		declaration.AddElement(0, offset, VETFloat2, SemanticTexCoord, 0)
		texOffset = offset
		offset += 8
	}
	vertexSize := offset

	buffer := NewHardwareVertexBuffer(vertexSize, len(object.positions), BufferUsageStaticWriteOnly)
	for i := range object.positions {
		raw := buffer.data[i*vertexSize : (i+1)*vertexSize]
		putFloat32(raw[0:], float32(object.positions[i].X))
		putFloat32(raw[4:], float32(object.positions[i].Y))
		putFloat32(raw[8:], float32(object.positions[i].Z))
		if normalOffset >= 0 {
			putFloat32(raw[normalOffset:], float32(object.normals[i].X))
			putFloat32(raw[normalOffset+4:], float32(object.normals[i].Y))
			putFloat32(raw[normalOffset+8:], float32(object.normals[i].Z))
		}
		if colorOffset >= 0 {
			putFloat32(raw[colorOffset:], object.colors[i].R)
			putFloat32(raw[colorOffset+4:], object.colors[i].G)
			putFloat32(raw[colorOffset+8:], object.colors[i].B)
			putFloat32(raw[colorOffset+12:], object.colors[i].A)
		}
		if texOffset >= 0 {
			putFloat32(raw[texOffset:], float32(object.texCoords[i][0]))
			putFloat32(raw[texOffset+4:], float32(object.texCoords[i][1]))
		}
	}

	section.vertexData = &VertexData{
		Declaration: declaration,
		Binding:     NewVertexBufferBinding(),
		Count:       len(object.positions),
	}
	section.vertexData.Binding.SetBinding(0, buffer)

	if len(object.indices) > 0 {
		indexType := IndexType16
		if len(object.positions) > staticGeometryMaxVertices {
			indexType = IndexType32
		}
		indexBuffer := NewHardwareIndexBuffer(indexType, len(object.indices), BufferUsageStaticWriteOnly)
		for i, index := range object.indices {
			indexBuffer.SetIndex(i, index)
		}
		section.indexData = NewIndexData(indexBuffer)
	}
}

// MaterialName returns the material name the section renders with.
func (section *ManualObjectSection) MaterialName() string { return section.materialName }

// Material resolves the section's material from the creator's library.
func (section *ManualObjectSection) Material() *Material {
	if section.material == nil && section.parent.creator != nil {
		section.material = section.parent.creator.Library().Material(section.materialName)
	}
	return section.material
}

// RenderOperation fills op with the section's geometry.
func (section *ManualObjectSection) RenderOperation(op *RenderOperation) {
	op.VertexData = section.vertexData
	op.IndexData = section.indexData
	op.UseIndexes = section.indexData != nil
	op.Topology = section.topology
	op.NumInstances = 1
}

// WorldTransforms appends the parent node's transform.
func (section *ManualObjectSection) WorldTransforms(dst []Matrix4) []Matrix4 {
	if node := section.parent.ParentNode(); node != nil {
		return append(dst, node.FullTransform())
	}
	return append(dst, NewMatrix4())
}

// SquaredViewDepth returns the squared camera distance to the parent node.
func (section *ManualObjectSection) SquaredViewDepth(camera *Camera) float64 {
	if node := section.parent.ParentNode(); node != nil {
		return node.DerivedPosition().DistanceSquared(camera.DerivedPosition())
	}
	return 0
}

// Lights returns the lights affecting the parent object.
func (section *ManualObjectSection) Lights() LightList { return section.parent.QueryLights() }

// CastsShadows reports whether the parent object casts shadows.
func (section *ManualObjectSection) CastsShadows() bool { return section.parent.CastShadows() }

type manualObjectFactory struct{}

func (manualObjectFactory) Type() string { return "ManualObject" }

func (manualObjectFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	object := NewManualObject(name)
	object.setCreator(creator)
	return object, nil
}
