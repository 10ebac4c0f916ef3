package umbra3d

import "math"

// Entity is an instance of a Mesh placed in the scene: one SubEntity per
// SubMesh, a private skeleton pose, animation states, detail-level
// selection, and bone attachments.
type Entity struct {
	MovableBase

	mesh *Mesh

	subEntities []*SubEntity

	animationStates *AnimationStateSet

	skeletonInstance *SkeletonInstance

	// Entities sharing this entity's skeleton instance, including itself.
	// Nil when the instance is unshared.
	sharedSkeletonEntities []*Entity

	boneMatrices []Matrix4

	// lastAnimationCounter is the animation state change counter when
	// UpdateAnimation last ran, so unchanged states re-apply for free.
	lastAnimationCounter uint64
	animationDirty       bool

	// Mesh detail-level selection.
	meshLodIndex  int
	meshLodFactor float64
	minMeshLod    int
	maxMeshLod    int

	// lodEntities instances the replacement meshes of manual detail levels,
	// created on first use and keyed by level.
	lodEntities map[int]*Entity

	// Material detail-level bias, applied per SubEntity.
	materialLodFactor float64

	// softwareSkinning poses skinned vertices on the CPU during animation
	// updates; when off, the renderable exposes one blend matrix per bone
	// for the render system to skin instead.
	softwareSkinning bool

	// childObjects holds movables attached to bones, keyed by name.
	childObjects map[string]MovableObject
	tagPoints    map[string]*TagPoint

	// shadowRenderables caches one reusable shadow volume per light.
	shadowRenderables map[*Light]*ShadowRenderable

	displaySkeleton bool
}

var _ MovableObject = (*Entity)(nil)

// NewEntity creates an Entity instancing the mesh provided: one SubEntity
// per SubMesh, and a private skeleton instance when the mesh is skinned.
func NewEntity(name string, mesh *Mesh) (*Entity, error) {
	if mesh == nil {
		return nil, newError(ErrInvalidArgument, "cannot create entity %q from a nil mesh", name)
	}
	entity := &Entity{
		mesh:              mesh,
		animationStates:   NewAnimationStateSet(),
		meshLodFactor:     1,
		maxMeshLod:        mesh.LodLevelCount() - 1,
		materialLodFactor: 1,
		softwareSkinning:  true,
		childObjects:      map[string]MovableObject{},
		tagPoints:         map[string]*TagPoint{},
		animationDirty:    true,
	}
	entity.initMovable(entity, name)

	for _, subMesh := range mesh.SubMeshes() {
		entity.subEntities = append(entity.subEntities, newSubEntity(entity, subMesh))
	}

	if mesh.HasSkeleton() && mesh.Skeleton() != nil {
		entity.skeletonInstance = NewSkeletonInstance(mesh.Skeleton())
		entity.skeletonInstance.initAnimationStates(entity.animationStates)
	}
	for animName, animation := range mesh.VertexAnimations() {
		if !entity.animationStates.HasState(animName) {
			if _, err := entity.animationStates.CreateState(animName, 0, animation.Length()); err != nil {
				return nil, err
			}
		}
	}
	entity.lastAnimationCounter = entity.animationStates.DirtyCounter() - 1
	return entity, nil
}

// MovableType identifies the object as an entity to factories and queries.
func (entity *Entity) MovableType() string { return "Entity" }

// TypeFlags returns the query type mask bit for entities.
func (entity *Entity) TypeFlags() uint32 { return TypeMaskEntity }

// Mesh returns the mesh the entity instances.
func (entity *Entity) Mesh() *Mesh { return entity.mesh }

// SubEntities returns the entity's subentities, parallel to the mesh's
// submeshes.
func (entity *Entity) SubEntities() []*SubEntity { return entity.subEntities }

// SubEntity returns the subentity at the index given, or nil if out of
// range.
func (entity *Entity) SubEntity(index int) *SubEntity {
	if index < 0 || index >= len(entity.subEntities) {
		return nil
	}
	return entity.subEntities[index]
}

// SubEntityByName returns the subentity matching the named submesh.
func (entity *Entity) SubEntityByName(name string) (*SubEntity, error) {
	index, err := entity.mesh.SubMeshIndex(name)
	if err != nil {
		return nil, err
	}
	return entity.subEntities[index], nil
}

// SetMaterialName sets every subentity's material by name.
func (entity *Entity) SetMaterialName(name string) {
	for _, subEntity := range entity.subEntities {
		subEntity.SetMaterialName(name)
	}
}

// HasSkeleton reports whether the entity carries a skeleton instance.
func (entity *Entity) HasSkeleton() bool { return entity.skeletonInstance != nil }

// Skeleton returns the entity's skeleton instance, or nil.
func (entity *Entity) Skeleton() *SkeletonInstance { return entity.skeletonInstance }

// AnimationStates returns the entity's animation states, covering both
// skeletal and vertex animations.
func (entity *Entity) AnimationStates() *AnimationStateSet { return entity.animationStates }

// AnimationState returns the state for the animation named name.
func (entity *Entity) AnimationState(name string) (*AnimationState, error) {
	return entity.animationStates.State(name)
}

// BoneMatrices returns the blend matrices from the last animation update,
// in bone handle order.
func (entity *Entity) BoneMatrices() []Matrix4 { return entity.boneMatrices }

// SetSoftwareSkinning selects where skinned vertices are posed: on the CPU
// during animation updates, or by the render system from per-bone blend
// matrices.
func (entity *Entity) SetSoftwareSkinning(software bool) {
	entity.softwareSkinning = software
	entity.animationDirty = true
}

// SoftwareSkinning reports whether skinned vertices are posed on the CPU.
func (entity *Entity) SoftwareSkinning() bool { return entity.softwareSkinning }

// SetDisplaySkeleton toggles debug rendering of the posed skeleton.
func (entity *Entity) SetDisplaySkeleton(display bool) { entity.displaySkeleton = display }

// DisplaySkeleton reports whether the posed skeleton is debug-rendered.
func (entity *Entity) DisplaySkeleton() bool { return entity.displaySkeleton }

// SetMeshLodBias biases mesh detail selection: factor scales the detail
// value, and the chosen level is clamped to [minLevel, maxLevel].
func (entity *Entity) SetMeshLodBias(factor float64, minLevel, maxLevel int) error {
	if factor <= 0 {
		return newError(ErrInvalidArgument, "detail bias factor must be positive, got %v", factor)
	}
	entity.meshLodFactor = factor
	entity.minMeshLod = minLevel
	entity.maxMeshLod = maxLevel
	return nil
}

// SetMaterialLodBias biases material detail selection for every subentity.
func (entity *Entity) SetMaterialLodBias(factor float64) error {
	if factor <= 0 {
		return newError(ErrInvalidArgument, "detail bias factor must be positive, got %v", factor)
	}
	entity.materialLodFactor = factor
	return nil
}

// MeshLodIndex returns the mesh detail level chosen by the last camera
// notification.
func (entity *Entity) MeshLodIndex() int { return entity.meshLodIndex }

// manualLodEntity returns the entity instancing the manual replacement mesh
// of the detail level given, creating it on first use. Nil when the level
// swaps index data instead of meshes.
func (entity *Entity) manualLodEntity(level int) *Entity {
	if level <= 0 {
		return nil
	}
	usage, err := entity.mesh.LodLevel(level)
	if err != nil || usage.manualMesh == nil {
		return nil
	}
	if lod, ok := entity.lodEntities[level]; ok {
		return lod
	}
	lod, err := NewEntity(entity.Name()+"/Lod"+itoa(level), usage.manualMesh)
	if err != nil {
		logger.Warn("creating manual detail entity failed", "entity", entity.Name(), "level", level, "error", err)
		return nil
	}
	lod.setCreator(entity.Creator())
	lod.notifyAttached(entity.parentNode, entity.parentIsTagPoint)
	if entity.lodEntities == nil {
		entity.lodEntities = map[int]*Entity{}
	}
	entity.lodEntities[level] = lod
	return lod
}

// notifyAttached forwards attachment changes to the manual detail entities
// so their renderables resolve the same node transform.
func (entity *Entity) notifyAttached(node *SceneNode, tagPoint bool) {
	entity.MovableBase.notifyAttached(node, tagPoint)
	for _, lod := range entity.lodEntities {
		lod.notifyAttached(node, tagPoint)
	}
}

// BoundingBox returns the mesh's local bounding box.
func (entity *Entity) BoundingBox() AxisAlignedBox {
	return entity.mesh.Bounds()
}

// BoundingRadius returns the mesh's local bounding radius.
func (entity *Entity) BoundingRadius() float64 {
	return entity.mesh.BoundRadius()
}

// NotifyCamera runs the base culling bookkeeping, then picks the mesh and
// material detail levels for the frame from the camera's distance.
func (entity *Entity) NotifyCamera(camera *Camera) {
	entity.MovableBase.NotifyCamera(camera)

	lodCamera := camera.LodCamera()
	distance := entity.WorldBoundingSphere(true).Center.Distance(lodCamera.DerivedPosition())
	biased := distance * entity.meshLodFactor

	index := entity.mesh.LodIndex(biased)
	entity.meshLodIndex = clamp(index, entity.minMeshLod, entity.maxMeshLod)

	for _, subEntity := range entity.subEntities {
		subEntity.chooseMaterialLod(distance * entity.materialLodFactor)
	}
}

// hasVertexAnimation reports whether the mesh carries morph or pose
// animation.
func (entity *Entity) hasVertexAnimation() bool {
	return entity.mesh.HasVertexAnimation()
}

// UpdateAnimation brings the entity's pose up to date with its animation
// states. Calling it again with unchanged states does no work.
func (entity *Entity) UpdateAnimation() {
	if !entity.HasSkeleton() && !entity.hasVertexAnimation() {
		return
	}
	counter := entity.animationStates.DirtyCounter()
	if counter == entity.lastAnimationCounter && !entity.animationDirty {
		return
	}

	if entity.skeletonInstance != nil {
		entity.skeletonInstance.applyAnimationStates(entity.animationStates)
		entity.boneMatrices = entity.skeletonInstance.BoneMatrices(entity.boneMatrices[:0])
	}

	if entity.hasVertexAnimation() {
		entity.applyVertexAnimation()
	}

	if entity.skeletonInstance != nil && entity.softwareSkinning {
		for _, subEntity := range entity.subEntities {
			if subEntity.subMesh.HasBoneAssignments() {
				subEntity.softwareSkeletalBlend(entity.boneMatrices)
			}
		}
	}

	entity.lastAnimationCounter = counter
	entity.animationDirty = false
}

// applyVertexAnimation rebuilds each animated subentity's software vertex
// buffer: morph tracks interpolate whole position sets, pose tracks blend
// sparse offsets, both scaled by their state weights.
func (entity *Entity) applyVertexAnimation() {
	for _, subEntity := range entity.subEntities {
		subEntity.resetSoftwareVertexAnimation()
	}
	for _, state := range entity.animationStates.EnabledStates() {
		animation, err := entity.mesh.VertexAnimation(state.Name())
		if err != nil {
			continue
		}
		for _, track := range animation.Tracks() {
			subEntity := entity.subEntityForTarget(track.Target)
			if subEntity == nil {
				continue
			}
			subEntity.applyVertexTrack(track, state.TimePosition(), state.Weight())
		}
	}
	for _, subEntity := range entity.subEntities {
		subEntity.commitSoftwareVertexAnimation()
	}
}

// subEntityForTarget maps a vertex track target index to the subentity
// rendering that geometry. Shared geometry (target 0) is not supported per
// subentity and maps to the first shared-vertices subentity.
func (entity *Entity) subEntityForTarget(target uint16) *SubEntity {
	if target == 0 {
		for _, subEntity := range entity.subEntities {
			if subEntity.subMesh.UseSharedVertices {
				return subEntity
			}
		}
		return nil
	}
	return entity.SubEntity(int(target) - 1)
}

// ShareSkeletonInstanceWith makes the entity pose with the other entity's
// skeleton instance and animation states. Both meshes must link the same
// skeleton definition.
func (entity *Entity) ShareSkeletonInstanceWith(other *Entity) error {
	if entity.skeletonInstance == nil || other.skeletonInstance == nil {
		return newError(ErrInvalidArgument, "both entities must be skinned to share a skeleton instance")
	}
	if entity.mesh.SkeletonName() != other.mesh.SkeletonName() {
		return newError(ErrInvalidArgument,
			"entity %q (skeleton %q) cannot share a skeleton instance with entity %q (skeleton %q)",
			entity.Name(), entity.mesh.SkeletonName(), other.Name(), other.mesh.SkeletonName())
	}
	if entity.sharedSkeletonEntities != nil {
		entity.StopSharingSkeletonInstance()
	}
	entity.skeletonInstance = other.skeletonInstance
	entity.animationStates = other.animationStates
	entity.animationDirty = true

	if other.sharedSkeletonEntities == nil {
		other.sharedSkeletonEntities = []*Entity{other}
	}
	other.sharedSkeletonEntities = append(other.sharedSkeletonEntities, entity)
	entity.sharedSkeletonEntities = other.sharedSkeletonEntities
	for _, shared := range other.sharedSkeletonEntities {
		shared.sharedSkeletonEntities = other.sharedSkeletonEntities
	}
	return nil
}

// StopSharingSkeletonInstance restores a private skeleton instance and
// animation state set to the entity.
func (entity *Entity) StopSharingSkeletonInstance() {
	if entity.sharedSkeletonEntities == nil {
		return
	}
	remaining := make([]*Entity, 0, len(entity.sharedSkeletonEntities)-1)
	for _, shared := range entity.sharedSkeletonEntities {
		if shared != entity {
			remaining = append(remaining, shared)
		}
	}
	if len(remaining) == 1 {
		remaining[0].sharedSkeletonEntities = nil
	} else {
		for _, shared := range remaining {
			shared.sharedSkeletonEntities = remaining
		}
	}
	entity.sharedSkeletonEntities = nil

	entity.skeletonInstance = NewSkeletonInstance(entity.mesh.Skeleton())
	states := NewAnimationStateSet()
	entity.skeletonInstance.initAnimationStates(states)
	entity.animationStates.CopyMatchingState(states)
	entity.animationStates = states
	entity.animationDirty = true
}

// SharesSkeletonInstance reports whether the entity's skeleton instance is
// shared with other entities.
func (entity *Entity) SharesSkeletonInstance() bool {
	return entity.sharedSkeletonEntities != nil
}

// AttachObjectToBone hangs the movable object off the named bone with the
// local offsets provided. An object still attached to a scene node is
// detached from it first, with a warning.
func (entity *Entity) AttachObjectToBone(boneName string, object MovableObject, offsetOrientation Quaternion, offsetPosition Vector) (*TagPoint, error) {
	if entity.skeletonInstance == nil {
		return nil, newError(ErrInvalidState, "entity %q has no skeleton to attach to", entity.Name())
	}
	if object.AttachedToTagPoint() {
		return nil, newError(ErrInvalidState, "object %q is already attached to a bone", object.Name())
	}
	if object.IsAttached() {
		logger.Warn("detaching object from its scene node to bone-attach it", "object", object.Name(), "entity", entity.Name())
		if node := object.ParentNode(); node != nil {
			if err := node.DetachObject(object); err != nil {
				return nil, err
			}
		}
	}
	if _, taken := entity.childObjects[object.Name()]; taken {
		return nil, newError(ErrDuplicateItem, "an object named %q is already attached to entity %q", object.Name(), entity.Name())
	}
	tagPoint, err := entity.skeletonInstance.createTagPoint(boneName, offsetOrientation, offsetPosition)
	if err != nil {
		return nil, err
	}
	tagPoint.parentEntity = entity
	tagPoint.child = object
	entity.childObjects[object.Name()] = object
	entity.tagPoints[object.Name()] = tagPoint
	object.notifyAttached(entity.ParentNode(), true)
	object.setParentTagPoint(tagPoint)
	return tagPoint, nil
}

// DetachObjectFromBone detaches the bone attachment named name and returns
// it.
func (entity *Entity) DetachObjectFromBone(name string) (MovableObject, error) {
	object, ok := entity.childObjects[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "no object named %q attached to entity %q", name, entity.Name())
	}
	tagPoint := entity.tagPoints[name]
	entity.skeletonInstance.freeTagPoint(tagPoint)
	delete(entity.childObjects, name)
	delete(entity.tagPoints, name)
	object.setParentTagPoint(nil)
	object.notifyAttached(nil, false)
	return object, nil
}

// DetachAllObjectsFromBone detaches every bone attachment.
func (entity *Entity) DetachAllObjectsFromBone() {
	for name := range entity.childObjects {
		if _, err := entity.DetachObjectFromBone(name); err != nil {
			logger.Error("detaching bone attachment failed", "object", name, "error", err)
		}
	}
}

// ChildObjects returns the entity's bone attachments keyed by name.
func (entity *Entity) ChildObjects() map[string]MovableObject { return entity.childObjects }

// UpdateRenderQueue updates animation if needed and queues every visible
// subentity, then the bone attachments. Detail levels with a manual
// replacement mesh queue that mesh's entity instead.
func (entity *Entity) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	if entity.HasSkeleton() || entity.hasVertexAnimation() {
		entity.UpdateAnimation()
	}
	display := entity
	if lod := entity.manualLodEntity(entity.meshLodIndex); lod != nil {
		display = lod
	}
	for _, subEntity := range display.subEntities {
		if subEntity.Visible() {
			queue.AddRenderable(subEntity, entity.RenderQueueGroup(), entity.RenderQueuePriority())
		}
	}
	for _, object := range entity.childObjects {
		if object.Visible() {
			object.UpdateRenderQueue(queue, camera)
		}
	}
}

// VisitRenderables visits every subentity.
func (entity *Entity) VisitRenderables(visitor func(Renderable)) {
	for _, subEntity := range entity.subEntities {
		visitor(subEntity)
	}
}

// Clone creates an independent entity on the same mesh, copying material
// choices and animation state.
func (entity *Entity) Clone(name string) (*Entity, error) {
	out, err := NewEntity(name, entity.mesh)
	if err != nil {
		return nil, err
	}
	out.setCreator(entity.Creator())
	for i, subEntity := range entity.subEntities {
		out.subEntities[i].materialName = subEntity.materialName
		out.subEntities[i].material = subEntity.material
		out.subEntities[i].visible = subEntity.visible
	}
	entity.animationStates.CopyMatchingState(out.animationStates)
	return out, nil
}

// SubEntity renders one submesh of one entity: the submesh geometry, the
// entity's transforms, and a per-instance material choice.
type SubEntity struct {
	RenderableBase

	parent  *Entity
	subMesh *SubMesh

	materialName string
	material     *Material

	visible bool

	materialLodIndex uint16

	// Software vertex animation working set, built on first use.
	animVertexData *VertexData
	basePositions  []Vector
	blendPositions []Vector

	cachedCamera      *Camera
	cachedCameraFrame uint64
	cachedViewDepth   float64
}

var _ Renderable = (*SubEntity)(nil)

func newSubEntity(parent *Entity, subMesh *SubMesh) *SubEntity {
	subEntity := &SubEntity{
		parent:  parent,
		subMesh: subMesh,
		visible: true,
	}
	subEntity.materialName = subMesh.MaterialName
	return subEntity
}

// Parent returns the entity the subentity belongs to.
func (subEntity *SubEntity) Parent() *Entity { return subEntity.parent }

// SubMesh returns the submesh the subentity renders.
func (subEntity *SubEntity) SubMesh() *SubMesh { return subEntity.subMesh }

// MaterialName returns the subentity's material name.
func (subEntity *SubEntity) MaterialName() string { return subEntity.materialName }

// SetMaterialName switches the subentity's material, resolving it from the
// creator's library when possible.
func (subEntity *SubEntity) SetMaterialName(name string) {
	subEntity.materialName = name
	subEntity.material = nil
	if creator := subEntity.parent.Creator(); creator != nil {
		subEntity.material = creator.Library().Material(name)
	}
}

// SetMaterial pins an explicit material on the subentity.
func (subEntity *SubEntity) SetMaterial(material *Material) {
	subEntity.material = material
	if material != nil {
		subEntity.materialName = material.Name
	}
}

// Material returns the subentity's resolved material, consulting the
// creator's library lazily.
func (subEntity *SubEntity) Material() *Material {
	if subEntity.material == nil && subEntity.materialName != "" {
		if creator := subEntity.parent.Creator(); creator != nil {
			subEntity.material = creator.Library().Material(subEntity.materialName)
		}
	}
	return subEntity.material
}

// Visible returns whether the subentity renders.
func (subEntity *SubEntity) Visible() bool { return subEntity.visible }

// SetVisible shows or hides the subentity.
func (subEntity *SubEntity) SetVisible(visible bool) { subEntity.visible = visible }

// MaterialLodIndex returns the material detail level chosen by the last
// camera notification.
func (subEntity *SubEntity) MaterialLodIndex() uint16 { return subEntity.materialLodIndex }

func (subEntity *SubEntity) chooseMaterialLod(value float64) {
	material := subEntity.Material()
	if material == nil {
		subEntity.materialLodIndex = 0
		return
	}
	subEntity.materialLodIndex = material.LodIndex(value)
}

// geometry returns the vertex data the subentity renders with, preferring
// the software-animated copy when present.
func (subEntity *SubEntity) geometry() *VertexData {
	if subEntity.animVertexData != nil {
		return subEntity.animVertexData
	}
	return subEntity.subMesh.geometry()
}

// ensureAnimationBuffers builds the software animation working set on first
// use: a private vertex data copy, the base positions, and the blend
// accumulator seeded from them.
func (subEntity *SubEntity) ensureAnimationBuffers() bool {
	if subEntity.animVertexData != nil {
		return true
	}
	source := subEntity.subMesh.geometry()
	if source == nil {
		return false
	}
	subEntity.animVertexData = source.Clone(true)
	subEntity.basePositions = make([]Vector, source.Count)
	for i := 0; i < source.Count; i++ {
		position, err := source.PositionAt(i)
		if err != nil {
			subEntity.animVertexData = nil
			return false
		}
		subEntity.basePositions[i] = position
	}
	subEntity.blendPositions = make([]Vector, source.Count)
	copy(subEntity.blendPositions, subEntity.basePositions)
	return true
}

// resetSoftwareVertexAnimation restores base positions into the blend
// accumulator.
func (subEntity *SubEntity) resetSoftwareVertexAnimation() {
	if !subEntity.ensureAnimationBuffers() {
		return
	}
	copy(subEntity.blendPositions, subEntity.basePositions)
}

// applyVertexTrack folds one vertex track sample into the blend accumulator.
func (subEntity *SubEntity) applyVertexTrack(track *VertexAnimationTrack, time, weight float64) {
	if subEntity.blendPositions == nil {
		return
	}
	switch track.Type {
	case VertexAnimationMorph:
		sampled := track.samplePositions(subEntity.basePositions, time, weight)
		for i := range subEntity.blendPositions {
			delta := sampled[i].Sub(subEntity.basePositions[i])
			subEntity.blendPositions[i] = subEntity.blendPositions[i].Add(delta)
		}
	case VertexAnimationPose:
		influences := track.samplePoseInfluences(time, weight)
		for poseIndex, influence := range influences {
			pose := subEntity.parent.Mesh().Pose(poseIndex)
			if pose == nil || influence == 0 {
				continue
			}
			pose.apply(subEntity.blendPositions, influence)
		}
	}
}

// commitSoftwareVertexAnimation writes the blend accumulator into the
// animated vertex buffer.
func (subEntity *SubEntity) commitSoftwareVertexAnimation() {
	if subEntity.animVertexData == nil {
		return
	}
	for i, position := range subEntity.blendPositions {
		if err := subEntity.animVertexData.SetPositionAt(i, position); err != nil {
			return
		}
	}
}

// softwareSkeletalBlend writes the skinned pose into the animated vertex
// buffer: each vertex is the weighted sum of its bone blend matrices applied
// to its current (vertex-animated or base) position.
func (subEntity *SubEntity) softwareSkeletalBlend(boneMatrices []Matrix4) {
	if len(boneMatrices) == 0 || !subEntity.ensureAnimationBuffers() {
		return
	}
	posed := make([]Vector, len(subEntity.blendPositions))
	weights := make([]float64, len(subEntity.blendPositions))
	for _, assignment := range subEntity.subMesh.BoneAssignments() {
		vertex := int(assignment.VertexIndex)
		bone := int(assignment.BoneIndex)
		if vertex >= len(posed) || bone >= len(boneMatrices) {
			continue
		}
		moved := boneMatrices[bone].MultVec(subEntity.blendPositions[vertex])
		posed[vertex] = posed[vertex].Add(moved.Scale(assignment.Weight))
		weights[vertex] += assignment.Weight
	}
	for i := range posed {
		// Unassigned vertices keep their unskinned position.
		if weights[i] == 0 {
			posed[i] = subEntity.blendPositions[i]
		}
		if err := subEntity.animVertexData.SetPositionAt(i, posed[i]); err != nil {
			return
		}
	}
}

// RenderOperation fills op with the subentity's geometry at the entity's
// current mesh detail level.
func (subEntity *SubEntity) RenderOperation(op *RenderOperation) {
	op.VertexData = subEntity.geometry()
	op.IndexData = subEntity.subMesh.indexDataForLod(subEntity.parent.meshLodIndex)
	op.Topology = subEntity.subMesh.Topology
	op.UseIndexes = op.IndexData != nil && op.IndexData.Count > 0
	op.NumInstances = 1
}

// WorldTransforms appends the entity's world transform, or one blend matrix
// per bone for skinned geometry the render system poses itself.
func (subEntity *SubEntity) WorldTransforms(dst []Matrix4) []Matrix4 {
	entity := subEntity.parent
	if entity.HasSkeleton() && !entity.softwareSkinning &&
		subEntity.subMesh.HasBoneAssignments() && len(entity.boneMatrices) > 0 {
		return append(dst, entity.boneMatrices...)
	}
	if node := entity.ParentNode(); node != nil {
		return append(dst, node.FullTransform())
	}
	return append(dst, NewMatrix4())
}

// SquaredViewDepth returns the squared distance from the camera to the
// entity's node, cached per camera per frame.
func (subEntity *SubEntity) SquaredViewDepth(camera *Camera) float64 {
	frame := uint64(0)
	if creator := subEntity.parent.Creator(); creator != nil {
		frame = creator.FrameCount()
	}
	if subEntity.cachedCamera == camera && subEntity.cachedCameraFrame == frame {
		return subEntity.cachedViewDepth
	}
	depth := math.Inf(1)
	if node := subEntity.parent.ParentNode(); node != nil {
		depth = node.DerivedPosition().DistanceSquared(camera.DerivedPosition())
	}
	subEntity.cachedCamera = camera
	subEntity.cachedCameraFrame = frame
	subEntity.cachedViewDepth = depth
	return depth
}

// Lights returns the lights affecting the parent entity.
func (subEntity *SubEntity) Lights() LightList {
	return subEntity.parent.QueryLights()
}

// CastsShadows reports whether the parent entity casts shadows.
func (subEntity *SubEntity) CastsShadows() bool {
	return subEntity.parent.CastShadows()
}

// entityFactory creates Entities for a SceneManager from the "mesh"
// creation parameter.
type entityFactory struct{}

func (entityFactory) Type() string { return "Entity" }

func (entityFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	meshName, ok := params["mesh"]
	if !ok {
		return nil, newError(ErrInvalidArgument, "entity creation requires a \"mesh\" parameter")
	}
	mesh := creator.Library().Mesh(meshName)
	if mesh == nil {
		return nil, newError(ErrItemNotFound, "mesh %q not found in library", meshName)
	}
	entity, err := NewEntity(name, mesh)
	if err != nil {
		return nil, err
	}
	entity.setCreator(creator)
	return entity, nil
}
