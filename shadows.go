package umbra3d

import "sort"

// EdgeTriangle is one triangle of an edge list, with its face normal plane
// for light-facing tests.
type EdgeTriangle struct {
	Indexes [3]uint32
	Plane   Plane
}

// Edge is one shared or border edge between triangles. Triangles[1] is
// present only when Degenerate is false.
type Edge struct {
	Vertexes   [2]uint32
	Triangles  [2]int
	Degenerate bool // A border edge owned by a single triangle
}

// EdgeData is the connectivity a mesh detail level needs for silhouette
// extraction: its triangles with face planes, and the unique edges between
// them. Vertex indices are rebased into one space spanning every distinct
// vertex set of the mesh, so submeshes with private vertex data never alias.
type EdgeData struct {
	Triangles []EdgeTriangle
	Edges     []Edge

	// vertexPositions holds the object-space position behind each rebased
	// index.
	vertexPositions []Vector

	// triangleLightFacing is scratch state filled per light by
	// updateTriangleLightFacing.
	triangleLightFacing []bool
}

// VertexPosition returns the object-space position behind the rebased index
// given.
func (edgeData *EdgeData) VertexPosition(index uint32) (Vector, bool) {
	if int(index) >= len(edgeData.vertexPositions) {
		return Vector{}, false
	}
	return edgeData.vertexPositions[index], true
}

// updateTriangleLightFacing classifies every triangle as facing the light
// position (w=1 for point and spot lights, w=0 for directional).
func (edgeData *EdgeData) updateTriangleLightFacing(lightPosition Vector) {
	if cap(edgeData.triangleLightFacing) < len(edgeData.Triangles) {
		edgeData.triangleLightFacing = make([]bool, len(edgeData.Triangles))
	}
	edgeData.triangleLightFacing = edgeData.triangleLightFacing[:len(edgeData.Triangles)]
	for i, triangle := range edgeData.Triangles {
		if lightPosition.W == 0 {
			// Directional: the position is a direction toward the light.
			edgeData.triangleLightFacing[i] = triangle.Plane.Normal.Dot(lightPosition) > 0
		} else {
			edgeData.triangleLightFacing[i] = triangle.Plane.Distance(NewVector(lightPosition.X, lightPosition.Y, lightPosition.Z)) > 0
		}
	}
}

// SilhouetteEdges returns the edges separating light-facing from non-facing
// triangles for the light position given, the boundary a shadow volume
// extrudes from.
func (edgeData *EdgeData) SilhouetteEdges(lightPosition Vector) []Edge {
	edgeData.updateTriangleLightFacing(lightPosition)
	var silhouette []Edge
	for _, edge := range edgeData.Edges {
		facing0 := edgeData.triangleLightFacing[edge.Triangles[0]]
		if edge.Degenerate {
			if facing0 {
				silhouette = append(silhouette, edge)
			}
			continue
		}
		if facing0 != edgeData.triangleLightFacing[edge.Triangles[1]] {
			silhouette = append(silhouette, edge)
		}
	}
	return silhouette
}

// buildEdgeData constructs the edge connectivity of the mesh's triangle
// submeshes at the detail level given. Each distinct vertex set gets its own
// index base, so two submeshes with private buffers never share an edge;
// submeshes on the mesh's shared vertices still do.
func buildEdgeData(mesh *Mesh, level int) *EdgeData {
	builder := newEdgeDataBuilder()
	bases := map[*VertexData]uint32{}

	for _, subMesh := range mesh.SubMeshes() {
		if subMesh.Topology.Base() != TopologyTriangleList {
			continue
		}
		geometry := subMesh.geometry()
		indexData := subMesh.indexDataForLod(level)
		if geometry == nil || indexData == nil || indexData.Buffer == nil {
			continue
		}
		base, seen := bases[geometry]
		if !seen {
			positions := make([]Vector, geometry.Count)
			for v := 0; v < geometry.Count; v++ {
				position, err := geometry.PositionAt(v)
				if err != nil {
					position = Vector{}
				}
				positions[v] = position
			}
			base = builder.addVertexSet(positions)
			bases[geometry] = base
		}
		for i := 0; i+2 < indexData.Count; i += 3 {
			builder.addTriangle(
				base+indexData.Buffer.Index(indexData.Start+i),
				base+indexData.Buffer.Index(indexData.Start+i+1),
				base+indexData.Buffer.Index(indexData.Start+i+2))
		}
	}
	return builder.finish()
}

// edgeDataBuilder accumulates triangle connectivity across geometry sets,
// rebasing each set's indices into one shared vertex space.
type edgeDataBuilder struct {
	edgeData *EdgeData
	edgeMap  map[[2]uint32]int
}

func newEdgeDataBuilder() *edgeDataBuilder {
	return &edgeDataBuilder{edgeData: &EdgeData{}, edgeMap: map[[2]uint32]int{}}
}

// addVertexSet appends a geometry set's positions and returns the index base
// assigned to it.
func (builder *edgeDataBuilder) addVertexSet(positions []Vector) uint32 {
	base := uint32(len(builder.edgeData.vertexPositions))
	builder.edgeData.vertexPositions = append(builder.edgeData.vertexPositions, positions...)
	return base
}

// addTriangle records one triangle by rebased indices, deriving its face
// plane and pairing up edges shared with earlier triangles.
func (builder *edgeDataBuilder) addTriangle(i0, i1, i2 uint32) {
	edgeData := builder.edgeData
	p0, ok0 := edgeData.VertexPosition(i0)
	p1, ok1 := edgeData.VertexPosition(i1)
	p2, ok2 := edgeData.VertexPosition(i2)
	if !ok0 || !ok1 || !ok2 {
		return
	}
	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	if normal.IsZero() {
		return
	}
	normal = normal.Unit()
	triangleIndex := len(edgeData.Triangles)
	edgeData.Triangles = append(edgeData.Triangles, EdgeTriangle{
		Indexes: [3]uint32{i0, i1, i2},
		Plane:   Plane{Normal: normal, D: -normal.Dot(p0)},
	})
	for _, pair := range [3][2]uint32{{i0, i1}, {i1, i2}, {i2, i0}} {
		key := pair
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		if existing, ok := builder.edgeMap[key]; ok {
			edgeData.Edges[existing].Triangles[1] = triangleIndex
			edgeData.Edges[existing].Degenerate = false
			continue
		}
		builder.edgeMap[key] = len(edgeData.Edges)
		edgeData.Edges = append(edgeData.Edges, Edge{
			Vertexes:   pair,
			Triangles:  [2]int{triangleIndex, triangleIndex},
			Degenerate: true,
		})
	}
}

// finish orders the edge list and returns the built connectivity.
func (builder *edgeDataBuilder) finish() *EdgeData {
	edgeData := builder.edgeData
	sort.SliceStable(edgeData.Edges, func(i, j int) bool {
		if edgeData.Edges[i].Vertexes[0] != edgeData.Edges[j].Vertexes[0] {
			return edgeData.Edges[i].Vertexes[0] < edgeData.Edges[j].Vertexes[0]
		}
		return edgeData.Edges[i].Vertexes[1] < edgeData.Edges[j].Vertexes[1]
	})
	return edgeData
}

// ShadowRenderable is the extruded shadow volume geometry a caster produces
// for one light.
type ShadowRenderable struct {
	RenderableBase

	caster   ShadowCaster
	light    *Light
	vertices []Vector
	material *Material
}

var _ Renderable = (*ShadowRenderable)(nil)

// Material returns the shadow volume material, shared by all volumes.
func (shadow *ShadowRenderable) Material() *Material { return shadow.material }

// RenderOperation fills op with the volume's triangle soup. Shadow volumes
// are re-extruded per light, so the vertex data is transient.
func (shadow *ShadowRenderable) RenderOperation(op *RenderOperation) {
	data := NewVertexData()
	data.Declaration.AddElement(0, 0, VETFloat3, SemanticPosition, 0)
	buffer := NewHardwareVertexBuffer(12, len(shadow.vertices), BufferUsageDynamicWriteOnly)
	data.Binding.SetBinding(0, buffer)
	data.Count = len(shadow.vertices)
	for i, vertex := range shadow.vertices {
		if err := data.SetPositionAt(i, vertex); err != nil {
			break
		}
	}
	op.VertexData = data
	op.IndexData = nil
	op.UseIndexes = false
	op.Topology = TopologyTriangleList
	op.NumInstances = 1
}

// WorldTransforms appends identity; volume vertices are built in world
// space.
func (shadow *ShadowRenderable) WorldTransforms(dst []Matrix4) []Matrix4 {
	return append(dst, NewMatrix4())
}

// SquaredViewDepth returns zero; volumes render in their own passes and are
// not depth sorted.
func (shadow *ShadowRenderable) SquaredViewDepth(camera *Camera) float64 { return 0 }

// Lights returns only the light the volume belongs to.
func (shadow *ShadowRenderable) Lights() LightList { return LightList{shadow.light} }

// CastsShadows reports false; shadow volumes never cast shadows themselves.
func (shadow *ShadowRenderable) CastsShadows() bool { return false }

// VertexCount returns the number of world-space vertices in the volume.
func (shadow *ShadowRenderable) VertexCount() int { return len(shadow.vertices) }

// ShadowCaster is implemented by movables that can produce stencil shadow
// volumes.
type ShadowCaster interface {
	// ShadowVolumeRenderables extrudes the caster's silhouette away from the
	// light by extrusionDistance and returns the resulting volumes.
	ShadowVolumeRenderables(light *Light, extrusionDistance float64) []*ShadowRenderable
	// ShadowVolumeBounds returns the world box enclosing the caster's
	// extruded volume for the light.
	ShadowVolumeBounds(light *Light, extrusionDistance float64) AxisAlignedBox
}

var _ ShadowCaster = (*Entity)(nil)

// lightPositionFor returns the light's position in the caster's object
// space, with W=0 flagging a directional light.
func lightPositionFor(light *Light, worldTransform Matrix4) Vector {
	inverse := worldTransform.Inverted()
	if light.Type() == LightDirectional {
		direction := inverse.MultVecDirection(light.DerivedDirection().Invert())
		return Vector{X: direction.X, Y: direction.Y, Z: direction.Z, W: 0}
	}
	position := inverse.MultVec(light.DerivedPosition())
	return Vector{X: position.X, Y: position.Y, Z: position.Z, W: 1}
}

// extrusionDirection returns the world-space direction to push a vertex away
// from the light.
func extrusionDirection(light *Light, worldVertex Vector) Vector {
	if light.Type() == LightDirectional {
		return light.DerivedDirection()
	}
	return worldVertex.Sub(light.DerivedPosition()).Unit()
}

// extrudeShadowVolume refills shadow's vertex soup for the light: silhouette
// quads extruded away from the light by extrusionDistance, plus light and
// dark caps from the light-facing triangles. The cached vertex slice is
// truncated and refilled instead of reallocated.
func extrudeShadowVolume(shadow *ShadowRenderable, edgeData *EdgeData, worldTransform Matrix4, light *Light, extrusionDistance float64) {
	shadow.vertices = shadow.vertices[:0]

	objectSpaceLight := lightPositionFor(light, worldTransform)
	silhouette := edgeData.SilhouetteEdges(objectSpaceLight)
	if len(silhouette) == 0 {
		return
	}

	worldPosition := func(index uint32) (Vector, bool) {
		position, ok := edgeData.VertexPosition(index)
		if !ok {
			return Vector{}, false
		}
		return worldTransform.MultVec(position), true
	}
	extrude := func(vertex Vector) Vector {
		return vertex.Add(extrusionDirection(light, vertex).Scale(extrusionDistance))
	}

	for _, edge := range silhouette {
		v0, ok0 := worldPosition(edge.Vertexes[0])
		v1, ok1 := worldPosition(edge.Vertexes[1])
		if !ok0 || !ok1 {
			continue
		}
		e0 := extrude(v0)
		e1 := extrude(v1)
		// Two triangles per silhouette quad.
		shadow.vertices = append(shadow.vertices, v0, v1, e1, v0, e1, e0)
	}

	// Light cap: the light-facing triangles in place. Dark cap: the same
	// triangles pushed to the far end of the volume, wound the other way so
	// they face outward.
	for i, triangle := range edgeData.Triangles {
		if !edgeData.triangleLightFacing[i] {
			continue
		}
		v0, ok0 := worldPosition(triangle.Indexes[0])
		v1, ok1 := worldPosition(triangle.Indexes[1])
		v2, ok2 := worldPosition(triangle.Indexes[2])
		if !ok0 || !ok1 || !ok2 {
			continue
		}
		shadow.vertices = append(shadow.vertices, v0, v1, v2)
		shadow.vertices = append(shadow.vertices, extrude(v0), extrude(v2), extrude(v1))
	}
}

// extrudeShadowBounds returns the world box merged with a copy of itself
// pushed away from the light by extrusionDistance.
func extrudeShadowBounds(box AxisAlignedBox, light *Light, extrusionDistance float64) AxisAlignedBox {
	if box.Extent != ExtentFinite {
		return box
	}
	var direction Vector
	if light.Type() == LightDirectional {
		direction = light.DerivedDirection()
	} else {
		direction = box.Center().Sub(light.DerivedPosition()).Unit()
	}
	shift := direction.Scale(extrusionDistance)
	extruded := NewBox(box.Min.Add(shift), box.Max.Add(shift))
	return box.Merge(extruded)
}

// ShadowVolumeRenderables builds the entity's shadow volume for the light,
// caching the volume per light across frames.
func (entity *Entity) ShadowVolumeRenderables(light *Light, extrusionDistance float64) []*ShadowRenderable {
	edgeData := entity.mesh.EdgeList(entity.meshLodIndex)
	if edgeData == nil || len(edgeData.Triangles) == 0 {
		return nil
	}
	worldTransform := NewMatrix4()
	if node := entity.ParentNode(); node != nil {
		worldTransform = node.FullTransform()
	}

	shadow := entity.shadowRenderables[light]
	if shadow == nil {
		shadow = &ShadowRenderable{caster: entity, light: light, material: shadowVolumeMaterial}
		if entity.shadowRenderables == nil {
			entity.shadowRenderables = map[*Light]*ShadowRenderable{}
		}
		entity.shadowRenderables[light] = shadow
	}
	extrudeShadowVolume(shadow, edgeData, worldTransform, light, extrusionDistance)
	if len(shadow.vertices) == 0 {
		return nil
	}
	return []*ShadowRenderable{shadow}
}

// ShadowVolumeBounds returns the world box of the entity merged with its
// volume extruded by extrusionDistance.
func (entity *Entity) ShadowVolumeBounds(light *Light, extrusionDistance float64) AxisAlignedBox {
	return extrudeShadowBounds(entity.WorldBoundingBox(true), light, extrusionDistance)
}

var _ ShadowCaster = (*StaticRegion)(nil)

// ShadowCaster exposes the region's shadow-volume support.
func (region *StaticRegion) ShadowCaster() ShadowCaster { return region }

// edgeData builds edge connectivity over the region's full-detail buckets on
// first use. Each bucket's baked vertices form their own index space.
func (region *StaticRegion) edgeData() *EdgeData {
	if region.edges != nil {
		return region.edges
	}
	if len(region.lodBuckets) == 0 {
		return nil
	}
	builder := newEdgeDataBuilder()
	for _, materialBucket := range region.lodBuckets[0].materialBuckets() {
		for _, bucket := range materialBucket.buckets {
			base := builder.addVertexSet(bucket.positions)
			for i := 0; i+2 < len(bucket.indices); i += 3 {
				builder.addTriangle(
					base+bucket.indices[i],
					base+bucket.indices[i+1],
					base+bucket.indices[i+2])
			}
		}
	}
	region.edges = builder.finish()
	return region.edges
}

// ShadowVolumeRenderables builds the region's shadow volume for the light
// from its baked full-detail geometry.
func (region *StaticRegion) ShadowVolumeRenderables(light *Light, extrusionDistance float64) []*ShadowRenderable {
	edgeData := region.edgeData()
	if edgeData == nil || len(edgeData.Triangles) == 0 {
		return nil
	}
	worldTransform := NewMatrix4()
	if node := region.ParentNode(); node != nil {
		worldTransform = node.FullTransform()
	}

	shadow := region.shadowRenderables[light]
	if shadow == nil {
		shadow = &ShadowRenderable{caster: region, light: light, material: shadowVolumeMaterial}
		if region.shadowRenderables == nil {
			region.shadowRenderables = map[*Light]*ShadowRenderable{}
		}
		region.shadowRenderables[light] = shadow
	}
	extrudeShadowVolume(shadow, edgeData, worldTransform, light, extrusionDistance)
	if len(shadow.vertices) == 0 {
		return nil
	}
	return []*ShadowRenderable{shadow}
}

// ShadowVolumeBounds returns the region's world box merged with its volume
// extruded by extrusionDistance.
func (region *StaticRegion) ShadowVolumeBounds(light *Light, extrusionDistance float64) AxisAlignedBox {
	return extrudeShadowBounds(region.WorldBoundingBox(true), light, extrusionDistance)
}

// ShadowCaster returns the entity itself.
func (entity *Entity) ShadowCaster() ShadowCaster { return entity }

// shadowVolumeMaterial is the single state block shadow volumes render with:
// no depth writes and no framebuffer color.
var shadowVolumeMaterial = func() *Material {
	material := NewMaterial("Umbra/ShadowVolume")
	pass := material.CreateTechnique().CreatePass()
	pass.Lighting = false
	pass.DepthWrite = false
	pass.CullMode = CullNone
	return material
}()

// prepareShadowVolumes finds the shadow casters relevant to each frustum
// light and queues their volumes, tracking the caster count in the frame
// statistics.
func (manager *SceneManager) prepareShadowVolumes(camera *Camera) {
	for _, light := range manager.lightsAffectingFrustum {
		casters := manager.shadowCastersForLight(light, camera)
		for _, caster := range casters {
			extrusion := manager.shadowDirLightExtrudeDistance
			if light.Type() != LightDirectional {
				extrusion = light.AttenuationRange()
			}
			for _, shadow := range caster.ShadowVolumeRenderables(light, extrusion) {
				manager.renderQueue.AddRenderable(shadow, RenderQueueMain, 1)
			}
			manager.stats.ShadowCasters++
		}
	}
}

// shadowCastersForLight returns the shadow-casting movables whose extruded
// volumes could touch the camera's frustum, ordered by type then name so
// volume generation is stable frame to frame.
func (manager *SceneManager) shadowCastersForLight(light *Light, camera *Camera) []ShadowCaster {
	var candidates []MovableObject
	for _, byName := range manager.movables {
		for _, object := range byName {
			candidates = append(candidates, object)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MovableType() != candidates[j].MovableType() {
			return candidates[i].MovableType() < candidates[j].MovableType()
		}
		return candidates[i].Name() < candidates[j].Name()
	})

	var casters []ShadowCaster
	for _, object := range candidates {
		if !object.CastShadows() || !object.IsVisible() || !object.IsInScene() {
			continue
		}
		caster := object.ShadowCaster()
		if caster == nil {
			continue
		}
		if light.Type() != LightDirectional && !light.AffectsBox(object.WorldBoundingBox(true)) {
			continue
		}
		extrusion := manager.shadowDirLightExtrudeDistance
		if light.Type() != LightDirectional {
			extrusion = light.AttenuationRange()
		}
		if !camera.IsBoxVisible(caster.ShadowVolumeBounds(light, extrusion)) {
			continue
		}
		casters = append(casters, caster)
	}
	return casters
}
