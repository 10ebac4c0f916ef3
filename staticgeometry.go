package umbra3d

import (
	"math"
	"sort"
)

// Vertex counts above this force a new GeometryBucket, keeping every bucket
// addressable with 16-bit indices.
const staticGeometryMaxVertices = 65535

// StaticGeometry bakes many entities into a few large world-space batches.
// Entities are queued with their transforms, then Build carves space into
// regions and merges everything in a region by detail level and material.
// The input entities are not modified; destroy or hide them separately.
type StaticGeometry struct {
	creator *SceneManager
	name    string

	regionSize Vector
	origin     Vector

	queued []queuedSubMesh

	regions map[uint32]*StaticRegion

	built bool

	castShadows bool
	visible     bool
	queueGroup  RenderQueueGroupID
}

type queuedSubMesh struct {
	subMesh   *SubMesh
	material  string
	transform Matrix4
	center    Vector
	lodValues []float64
}

// NewStaticGeometry is created through SceneManager.CreateStaticGeometry.
func newStaticGeometry(creator *SceneManager, name string) *StaticGeometry {
	return &StaticGeometry{
		creator:    creator,
		name:       name,
		regionSize: NewVector(1000, 1000, 1000),
		regions:    map[uint32]*StaticRegion{},
		visible:    true,
		queueGroup: RenderQueueMain,
	}
}

// Name returns the batch's name.
func (static *StaticGeometry) Name() string { return static.name }

// SetRegionSize sets the world-space size of one region. Must be called
// before Build.
func (static *StaticGeometry) SetRegionSize(size Vector) error {
	if static.built {
		return newError(ErrInvalidState, "region size cannot change after %q is built", static.name)
	}
	static.regionSize = size
	return nil
}

// RegionSize returns the world-space size of one region.
func (static *StaticGeometry) RegionSize() Vector { return static.regionSize }

// SetOrigin sets the world-space origin the region grid is anchored to.
func (static *StaticGeometry) SetOrigin(origin Vector) error {
	if static.built {
		return newError(ErrInvalidState, "origin cannot change after %q is built", static.name)
	}
	static.origin = origin
	return nil
}

// SetCastShadows sets whether the baked regions cast shadows.
func (static *StaticGeometry) SetCastShadows(casts bool) { static.castShadows = casts }

// SetVisible shows or hides every region.
func (static *StaticGeometry) SetVisible(visible bool) {
	static.visible = visible
	for _, region := range static.regions {
		region.SetVisible(visible)
	}
}

// SetRenderQueueGroup sets the queue group baked regions render in.
func (static *StaticGeometry) SetRenderQueueGroup(group RenderQueueGroupID) {
	static.queueGroup = group
	for _, region := range static.regions {
		region.SetRenderQueueGroup(group)
	}
}

// AddEntity queues the entity's submeshes at the world transform provided.
func (static *StaticGeometry) AddEntity(entity *Entity, position Vector, orientation Quaternion, scale Vector) error {
	if static.built {
		return newError(ErrInvalidState, "cannot add to %q after it is built", static.name)
	}
	mesh := entity.Mesh()
	transform := NewMatrix4TRS(position, orientation, scale)

	var lodValues []float64
	for level := 1; level < mesh.LodLevelCount(); level++ {
		usage, err := mesh.LodLevel(level)
		if err == nil {
			lodValues = append(lodValues, usage.UserValue)
		}
	}

	for _, subEntity := range entity.SubEntities() {
		subMesh := subEntity.SubMesh()
		if subMesh.geometry() == nil || subMesh.IndexData == nil {
			continue
		}
		center := transform.MultVec(mesh.Bounds().Center())
		static.queued = append(static.queued, queuedSubMesh{
			subMesh:   subMesh,
			material:  subEntity.MaterialName(),
			transform: transform,
			center:    center,
			lodValues: lodValues,
		})
	}
	return nil
}

// AddSceneNode queues every entity attached to the node and its children at
// their current world transforms.
func (static *StaticGeometry) AddSceneNode(sceneNode *SceneNode) error {
	for _, object := range sceneNode.AttachedObjects() {
		if entity, ok := object.(*Entity); ok {
			err := static.AddEntity(entity, sceneNode.DerivedPosition(), sceneNode.DerivedOrientation(), sceneNode.DerivedScale())
			if err != nil {
				return err
			}
		}
	}
	for i := 0; i < sceneNode.ChildCount(); i++ {
		if child := sceneNode.ChildSceneNode(i); child != nil {
			if err := static.AddSceneNode(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// regionIndex packs the region grid coordinates of the point into one
// stable key: 10 bits per axis, biased by half the range.
func (static *StaticGeometry) regionIndex(point Vector) uint32 {
	offset := point.Sub(static.origin)
	x := uint32(int32(math.Floor(offset.X/static.regionSize.X)) + 512)
	y := uint32(int32(math.Floor(offset.Y/static.regionSize.Y)) + 512)
	z := uint32(int32(math.Floor(offset.Z/static.regionSize.Z)) + 512)
	return x<<20 | y<<10 | z
}

// Build bakes everything queued into regions. Building twice requires a
// Reset in between. The result is deterministic for a given queue order.
func (static *StaticGeometry) Build() error {
	if static.built {
		return newError(ErrInvalidState, "%q is already built", static.name)
	}
	for _, queued := range static.queued {
		index := static.regionIndex(queued.center)
		region, ok := static.regions[index]
		if !ok {
			region = newStaticRegion(static, index)
			static.regions[index] = region
		}
		region.assign(queued)
	}

	indexes := make([]uint32, 0, len(static.regions))
	for index := range static.regions {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for _, index := range indexes {
		region := static.regions[index]
		if err := region.build(); err != nil {
			return err
		}
		node, err := static.creator.RootSceneNode().CreateChildSceneNode(region.Name() + "/Node")
		if err != nil {
			return err
		}
		node.SetPosition(region.centre)
		if err := node.AttachObject(region); err != nil {
			return err
		}
	}
	static.built = true
	return nil
}

// Reset destroys every built region but keeps the queued submeshes, so
// Build can run again over the same input.
func (static *StaticGeometry) Reset() {
	static.destroyRegions()
	static.built = false
}

// Destroy removes every region from the scene and clears the queue.
func (static *StaticGeometry) Destroy() {
	static.destroyRegions()
	static.queued = static.queued[:0]
	static.built = false
}

func (static *StaticGeometry) destroyRegions() {
	for index, region := range static.regions {
		if node := region.ParentNode(); node != nil {
			_ = node.DetachObject(region)
			if static.creator != nil {
				_ = static.creator.DestroySceneNode(node.Name())
			}
		}
		delete(static.regions, index)
	}
}

// Regions returns the built regions in stable index order.
func (static *StaticGeometry) Regions() []*StaticRegion {
	indexes := make([]uint32, 0, len(static.regions))
	for index := range static.regions {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	out := make([]*StaticRegion, 0, len(indexes))
	for _, index := range indexes {
		out = append(out, static.regions[index])
	}
	return out
}

// StaticRegion is one cell of a StaticGeometry batch: a movable holding the
// merged geometry of everything whose center fell inside the cell, bucketed
// by detail level.
type StaticRegion struct {
	MovableBase

	parent *StaticGeometry
	index  uint32

	assigned []queuedSubMesh

	lodValues  []float64
	lodBuckets []*StaticLodBucket

	centre      Vector
	localBounds AxisAlignedBox
	boundRadius float64

	currentLod int

	edges             *EdgeData
	shadowRenderables map[*Light]*ShadowRenderable
}

var _ MovableObject = (*StaticRegion)(nil)

func newStaticRegion(parent *StaticGeometry, index uint32) *StaticRegion {
	region := &StaticRegion{
		parent:      parent,
		index:       index,
		localBounds: NewBoxNull(),
	}
	region.initMovable(region, parent.name+"/Region_"+itoa(int(index)))
	region.castShadows = parent.castShadows
	region.visible = parent.visible
	region.queueGroup = parent.queueGroup
	return region
}

// MovableType identifies the object as a static-geometry region.
func (region *StaticRegion) MovableType() string { return "StaticGeometry" }

// TypeFlags returns the query type mask bit for static geometry.
func (region *StaticRegion) TypeFlags() uint32 { return TypeMaskStaticGeometry }

func (region *StaticRegion) assign(queued queuedSubMesh) {
	region.assigned = append(region.assigned, queued)
	for _, value := range queued.lodValues {
		found := false
		for _, existing := range region.lodValues {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			region.lodValues = append(region.lodValues, value)
		}
	}
}

func (region *StaticRegion) build() error {
	sort.Float64s(region.lodValues)

	// World bounds of the assigned geometry determine the region's centre,
	// so the baked vertices can be stored relative to it.
	worldBounds := NewBoxNull()
	for _, queued := range region.assigned {
		geometry := queued.subMesh.geometry()
		for i := 0; i < geometry.Count; i++ {
			position, err := geometry.PositionAt(i)
			if err != nil {
				return err
			}
			worldBounds = worldBounds.MergePoint(queued.transform.MultVec(position))
		}
	}
	region.centre = worldBounds.Center()
	region.localBounds = NewBox(worldBounds.Min.Sub(region.centre), worldBounds.Max.Sub(region.centre))
	region.boundRadius = region.localBounds.Radius()

	levels := len(region.lodValues) + 1
	for level := 0; level < levels; level++ {
		bucket := &StaticLodBucket{parent: region, lodIndex: level}
		if level > 0 {
			bucket.lodValue = region.lodValues[level-1]
		}
		for _, queued := range region.assigned {
			if err := bucket.assign(queued, region.centre); err != nil {
				return err
			}
		}
		region.lodBuckets = append(region.lodBuckets, bucket)
	}
	return nil
}

// BoundingBox returns the region's centre-relative bounds.
func (region *StaticRegion) BoundingBox() AxisAlignedBox { return region.localBounds }

// BoundingRadius returns the region's bounding radius.
func (region *StaticRegion) BoundingRadius() float64 { return region.boundRadius }

// LodBuckets returns the region's detail buckets, full detail first.
func (region *StaticRegion) LodBuckets() []*StaticLodBucket { return region.lodBuckets }

// NotifyCamera picks the region's detail bucket from the camera distance.
func (region *StaticRegion) NotifyCamera(camera *Camera) {
	region.MovableBase.NotifyCamera(camera)
	distance := region.WorldBoundingSphere(true).Center.Distance(camera.LodCamera().DerivedPosition())
	region.currentLod = 0
	for level := 1; level < len(region.lodBuckets); level++ {
		if region.lodBuckets[level].lodValue <= distance {
			region.currentLod = level
		}
	}
}

// UpdateRenderQueue queues the geometry buckets of the current detail
// level.
func (region *StaticRegion) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	if region.currentLod >= len(region.lodBuckets) {
		return
	}
	for _, materialBucket := range region.lodBuckets[region.currentLod].materialBuckets() {
		for _, geometryBucket := range materialBucket.buckets {
			queue.AddRenderable(geometryBucket, region.RenderQueueGroup(), region.RenderQueuePriority())
		}
	}
}

// VisitRenderables visits every geometry bucket of every detail level.
func (region *StaticRegion) VisitRenderables(visitor func(Renderable)) {
	for _, lodBucket := range region.lodBuckets {
		for _, materialBucket := range lodBucket.materialBuckets() {
			for _, geometryBucket := range materialBucket.buckets {
				visitor(geometryBucket)
			}
		}
	}
}

// StaticLodBucket holds one detail level of a region, split by material and
// vertex format.
type StaticLodBucket struct {
	parent   *StaticRegion
	lodIndex int
	lodValue float64

	byKey map[staticBucketKey]*StaticMaterialBucket
	order []staticBucketKey
}

// staticBucketKey separates baked geometry by material and by which vertex
// semantics it carries, so differing declarations never merge into one draw.
type staticBucketKey struct {
	material string
	format   staticVertexFormat
}

type staticVertexFormat struct {
	normals bool
	uvs     bool
}

func staticFormatOf(geometry *VertexData) staticVertexFormat {
	_, normals := geometry.Declaration.FindElementBySemantic(SemanticNormal, 0)
	_, uvs := geometry.Declaration.FindElementBySemantic(SemanticTexCoord, 0)
	return staticVertexFormat{normals: normals, uvs: uvs}
}

func (lodBucket *StaticLodBucket) assign(queued queuedSubMesh, centre Vector) error {
	if lodBucket.byKey == nil {
		lodBucket.byKey = map[staticBucketKey]*StaticMaterialBucket{}
	}
	key := staticBucketKey{material: queued.material, format: staticFormatOf(queued.subMesh.geometry())}
	materialBucket, ok := lodBucket.byKey[key]
	if !ok {
		materialBucket = &StaticMaterialBucket{parent: lodBucket, materialName: queued.material, format: key.format}
		lodBucket.byKey[key] = materialBucket
		lodBucket.order = append(lodBucket.order, key)
	}
	return materialBucket.bake(queued, centre, lodBucket.lodIndex)
}

// materialBuckets returns the bucket's material buckets in first-seen
// order.
func (lodBucket *StaticLodBucket) materialBuckets() []*StaticMaterialBucket {
	out := make([]*StaticMaterialBucket, 0, len(lodBucket.order))
	for _, key := range lodBucket.order {
		out = append(out, lodBucket.byKey[key])
	}
	return out
}

// StaticMaterialBucket merges all geometry sharing one material and vertex
// format in one detail level, splitting into GeometryBuckets at the vertex
// limit.
type StaticMaterialBucket struct {
	parent       *StaticLodBucket
	materialName string
	format       staticVertexFormat
	buckets      []*StaticGeometryBucket
}

// MaterialName returns the material every bucket renders with.
func (materialBucket *StaticMaterialBucket) MaterialName() string {
	return materialBucket.materialName
}

// Buckets returns the material's geometry buckets.
func (materialBucket *StaticMaterialBucket) Buckets() []*StaticGeometryBucket {
	return materialBucket.buckets
}

// bake transforms the queued submesh into region-relative space and appends
// it to the current geometry bucket, opening a new bucket when the vertex
// limit would be crossed. Only the vertices the index range references move
// into the bucket.
func (materialBucket *StaticMaterialBucket) bake(queued queuedSubMesh, centre Vector, lodIndex int) error {
	geometry := queued.subMesh.geometry()
	indexData := queued.subMesh.indexDataForLod(lodIndex)
	if geometry == nil || indexData == nil || indexData.Buffer == nil {
		return nil
	}

	current := materialBucket.currentBucket()

	// Vertex subset: remap only the vertices this index range uses.
	remap := map[uint32]uint32{}
	used := 0
	for i := 0; i < indexData.Count; i++ {
		index := indexData.Buffer.Index(indexData.Start + i)
		if _, ok := remap[index]; !ok {
			used++
			remap[index] = 0
		}
	}
	if len(current.positions)+used > staticGeometryMaxVertices {
		current = materialBucket.newBucket()
	}

	for key := range remap {
		delete(remap, key)
	}
	for i := 0; i < indexData.Count; i++ {
		index := indexData.Buffer.Index(indexData.Start + i)
		mapped, ok := remap[index]
		if !ok {
			position, err := geometry.PositionAt(int(index))
			if err != nil {
				return err
			}
			baked := queued.transform.MultVec(position).Sub(centre)
			mapped = uint32(len(current.positions))
			current.positions = append(current.positions, baked)
			if materialBucket.format.normals {
				normal, err := geometry.NormalAt(int(index))
				if err != nil {
					return err
				}
				rotated := queued.transform.MultVecDirection(normal)
				if !rotated.IsZero() {
					rotated = rotated.Unit()
				}
				current.normals = append(current.normals, rotated)
			}
			if materialBucket.format.uvs {
				u, v, err := geometry.UVAt(int(index), 0)
				if err != nil {
					return err
				}
				current.uvs = append(current.uvs, [2]float64{u, v})
			}
			remap[index] = mapped
		}
		current.indices = append(current.indices, mapped)
	}
	return nil
}

func (materialBucket *StaticMaterialBucket) currentBucket() *StaticGeometryBucket {
	if len(materialBucket.buckets) == 0 {
		return materialBucket.newBucket()
	}
	return materialBucket.buckets[len(materialBucket.buckets)-1]
}

func (materialBucket *StaticMaterialBucket) newBucket() *StaticGeometryBucket {
	bucket := &StaticGeometryBucket{parent: materialBucket}
	materialBucket.buckets = append(materialBucket.buckets, bucket)
	return bucket
}

// StaticGeometryBucket is one baked draw: region-relative positions, with
// normals and texture coordinates when the source carried them, under one
// material and 16-bit-addressable indices.
type StaticGeometryBucket struct {
	RenderableBase

	parent *StaticMaterialBucket

	positions []Vector
	normals   []Vector
	uvs       [][2]float64
	indices   []uint32

	// Built lazily from the baked arrays on first render.
	vertexData *VertexData
	indexData  *IndexData
}

var _ Renderable = (*StaticGeometryBucket)(nil)

// VertexCount returns the number of baked vertices.
func (bucket *StaticGeometryBucket) VertexCount() int { return len(bucket.positions) }

// IndexCount returns the number of baked indices.
func (bucket *StaticGeometryBucket) IndexCount() int { return len(bucket.indices) }

// Material resolves the bucket's material from the creator's library.
func (bucket *StaticGeometryBucket) Material() *Material {
	creator := bucket.parent.parent.parent.parent.creator
	if creator == nil {
		return nil
	}
	return creator.Library().Material(bucket.parent.materialName)
}

func (bucket *StaticGeometryBucket) buildBuffers() {
	format := bucket.parent.format
	data := NewVertexData()
	offset := 0
	data.Declaration.AddElement(0, offset, VETFloat3, SemanticPosition, 0)
	offset += 12
	if format.normals {
		data.Declaration.AddElement(0, offset, VETFloat3, SemanticNormal, 0)
		offset += 12
	}
	if format.uvs {
		data.Declaration.AddElement(0, offset, VETFloat2, SemanticTexCoord, 0)
		offset += 8
	}
	vertexBuffer := NewHardwareVertexBuffer(offset, len(bucket.positions), BufferUsageStaticWriteOnly)
	data.Binding.SetBinding(0, vertexBuffer)
	data.Count = len(bucket.positions)
	for i, position := range bucket.positions {
		if err := data.SetPositionAt(i, position); err != nil {
			return
		}
		if format.normals {
			if err := data.SetNormalAt(i, bucket.normals[i]); err != nil {
				return
			}
		}
		if format.uvs {
			if err := data.SetUVAt(i, 0, bucket.uvs[i][0], bucket.uvs[i][1]); err != nil {
				return
			}
		}
	}
	indexBuffer := NewHardwareIndexBuffer(IndexType16, len(bucket.indices), BufferUsageStaticWriteOnly)
	for i, index := range bucket.indices {
		indexBuffer.SetIndex(i, index)
	}
	bucket.vertexData = data
	bucket.indexData = NewIndexData(indexBuffer)
}

// RenderOperation fills op with the bucket's baked triangles.
func (bucket *StaticGeometryBucket) RenderOperation(op *RenderOperation) {
	if bucket.vertexData == nil {
		bucket.buildBuffers()
	}
	op.VertexData = bucket.vertexData
	op.IndexData = bucket.indexData
	op.UseIndexes = true
	op.Topology = TopologyTriangleList
	op.NumInstances = 1
}

// WorldTransforms appends the owning region's node transform.
func (bucket *StaticGeometryBucket) WorldTransforms(dst []Matrix4) []Matrix4 {
	region := bucket.parent.parent.parent
	if node := region.ParentNode(); node != nil {
		return append(dst, node.FullTransform())
	}
	return append(dst, NewMatrix4())
}

// SquaredViewDepth returns the squared camera distance to the owning
// region's centre.
func (bucket *StaticGeometryBucket) SquaredViewDepth(camera *Camera) float64 {
	region := bucket.parent.parent.parent
	return region.WorldBoundingSphere(true).Center.DistanceSquared(camera.DerivedPosition())
}

// Lights returns the lights affecting the owning region.
func (bucket *StaticGeometryBucket) Lights() LightList {
	return bucket.parent.parent.parent.QueryLights()
}

// CastsShadows reports whether the owning region casts shadows.
func (bucket *StaticGeometryBucket) CastsShadows() bool {
	return bucket.parent.parent.parent.CastShadows()
}

// CreateStaticGeometry creates an empty named batch. Duplicate names fail.
func (manager *SceneManager) CreateStaticGeometry(name string) (*StaticGeometry, error) {
	if manager.staticGeometry == nil {
		manager.staticGeometry = map[string]*StaticGeometry{}
	}
	if _, taken := manager.staticGeometry[name]; taken {
		return nil, newError(ErrDuplicateItem, "static geometry %q already exists", name)
	}
	static := newStaticGeometry(manager, name)
	manager.staticGeometry[name] = static
	return static, nil
}

// StaticGeometry returns the batch named name.
func (manager *SceneManager) StaticGeometry(name string) (*StaticGeometry, error) {
	static, ok := manager.staticGeometry[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "no static geometry named %q", name)
	}
	return static, nil
}

// DestroyStaticGeometry destroys the batch named name and its regions.
func (manager *SceneManager) DestroyStaticGeometry(name string) error {
	static, ok := manager.staticGeometry[name]
	if !ok {
		return newError(ErrItemNotFound, "no static geometry named %q", name)
	}
	static.Destroy()
	delete(manager.staticGeometry, name)
	return nil
}
