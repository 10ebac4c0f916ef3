package umbra3d

import "strconv"

// InstancedEntity is one instance rendered by an InstanceBatch. Attach it
// to a SceneNode like any other object; the batch reads its transform at
// render time. An instance can instead share another instance's transform,
// useful for attachments that must follow a master object exactly.
type InstancedEntity struct {
	MovableBase

	batch *InstanceBatch
	index int

	inUse bool

	// Transform used when the instance is not attached to a node.
	position    Vector
	orientation Quaternion
	scale       Vector

	transformMaster *InstancedEntity
	transformShared []*InstancedEntity
}

var _ MovableObject = (*InstancedEntity)(nil)

// MovableType identifies the object as a batch instance.
func (instance *InstancedEntity) MovableType() string { return "InstancedEntity" }

// TypeFlags returns the query type mask bit for instanced geometry.
func (instance *InstancedEntity) TypeFlags() uint32 { return TypeMaskInstanceBatch }

// Batch returns the batch that renders this instance.
func (instance *InstancedEntity) Batch() *InstanceBatch { return instance.batch }

// SetPosition sets the instance's position, used while it is not attached
// to a node.
func (instance *InstancedEntity) SetPosition(position Vector) {
	instance.position = position
	instance.batch.boundsDirty = true
}

// Position returns the instance's detached position.
func (instance *InstancedEntity) Position() Vector { return instance.position }

// SetOrientation sets the instance's detached orientation.
func (instance *InstancedEntity) SetOrientation(orientation Quaternion) {
	instance.orientation = orientation
	instance.batch.boundsDirty = true
}

// SetScale sets the instance's detached scale.
func (instance *InstancedEntity) SetScale(scale Vector) {
	instance.scale = scale
	instance.batch.boundsDirty = true
}

// ShareTransformWith makes this instance follow the master's transform
// exactly. Both must belong to the same batch. Sharing with nil is an
// error; use StopSharingTransform.
func (instance *InstancedEntity) ShareTransformWith(master *InstancedEntity) error {
	if master == nil {
		return newError(ErrInvalidArgument, "cannot share a transform with a nil instance")
	}
	if master == instance {
		return newError(ErrInvalidArgument, "instance cannot share a transform with itself")
	}
	if master.batch != instance.batch {
		return newError(ErrInvalidArgument, "instances belong to different batches (%q and %q)",
			instance.batch.Name(), master.batch.Name())
	}
	if master.transformMaster != nil {
		return newError(ErrInvalidState, "master instance already shares a transform itself")
	}
	if instance.transformMaster != nil {
		instance.StopSharingTransform()
	}
	instance.transformMaster = master
	master.transformShared = append(master.transformShared, instance)
	instance.batch.boundsDirty = true
	return nil
}

// StopSharingTransform returns the instance to its own transform.
func (instance *InstancedEntity) StopSharingTransform() {
	master := instance.transformMaster
	if master == nil {
		return
	}
	instance.transformMaster = nil
	for i, shared := range master.transformShared {
		if shared == instance {
			master.transformShared = append(master.transformShared[:i], master.transformShared[i+1:]...)
			break
		}
	}
	instance.batch.boundsDirty = true
}

// SharesTransform reports whether the instance follows another instance.
func (instance *InstancedEntity) SharesTransform() bool { return instance.transformMaster != nil }

func (instance *InstancedEntity) fullTransform() Matrix4 {
	if instance.transformMaster != nil {
		return instance.transformMaster.fullTransform()
	}
	if node := instance.ParentNode(); node != nil {
		return node.FullTransform()
	}
	return NewMatrix4TRS(instance.position, instance.orientation, instance.scale)
}

func (instance *InstancedEntity) derivedPosition() Vector {
	if instance.transformMaster != nil {
		return instance.transformMaster.derivedPosition()
	}
	if node := instance.ParentNode(); node != nil {
		return node.DerivedPosition()
	}
	return instance.position
}

// BoundingBox returns the batch mesh's bounds; the batch handles culling
// for all its instances.
func (instance *InstancedEntity) BoundingBox() AxisAlignedBox {
	return instance.batch.mesh.Bounds()
}

// BoundingRadius returns the batch mesh's bounding radius.
func (instance *InstancedEntity) BoundingRadius() float64 {
	return instance.batch.mesh.BoundRadius()
}

func (instance *InstancedEntity) notifyMoved() {
	instance.MovableBase.notifyMoved()
	instance.batch.boundsDirty = true
}

// UpdateRenderQueue does nothing; the owning batch queues the geometry.
func (instance *InstancedEntity) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {}

// VisitRenderables does nothing; the owning batch holds the Renderable.
func (instance *InstancedEntity) VisitRenderables(visitor func(Renderable)) {}

// InstanceBatch renders many copies of one mesh in a single draw. The
// batch is culled as a whole, with bounds covering every live instance.
type InstanceBatch struct {
	MovableBase
	RenderableBase

	mesh         *Mesh
	subMeshIndex int
	materialName string
	material     *Material

	instances []*InstancedEntity
	freeList  []int

	localBounds AxisAlignedBox
	boundRadius float64
	boundsDirty bool
}

var _ MovableObject = (*InstanceBatch)(nil)
var _ Renderable = (*InstanceBatch)(nil)

// NewInstanceBatch creates a batch of size instances of the mesh's submesh.
// Every instance starts unused; claim them with CreateInstancedEntity.
func NewInstanceBatch(name string, mesh *Mesh, subMeshIndex, size int) (*InstanceBatch, error) {
	if mesh == nil {
		return nil, newError(ErrInvalidArgument, "instance batch %q needs a mesh", name)
	}
	if subMeshIndex < 0 || subMeshIndex >= len(mesh.SubMeshes()) {
		return nil, newError(ErrInvalidArgument, "mesh %q has no submesh %d", mesh.Name(), subMeshIndex)
	}
	if size < 1 {
		return nil, newError(ErrInvalidArgument, "instance batch %q needs room for at least one instance", name)
	}
	batch := &InstanceBatch{
		mesh:         mesh,
		subMeshIndex: subMeshIndex,
		materialName: mesh.SubMeshes()[subMeshIndex].MaterialName,
		localBounds:  NewBoxNull(),
		boundsDirty:  true,
	}
	batch.initMovable(batch, name)
	batch.instances = make([]*InstancedEntity, size)
	batch.freeList = make([]int, 0, size)
	for i := size - 1; i >= 0; i-- {
		instance := &InstancedEntity{
			batch:       batch,
			index:       i,
			orientation: NewQuaternionIdentity(),
			scale:       NewVector(1, 1, 1),
		}
		instance.initMovable(instance, name+"/Instance"+itoa(i))
		batch.instances[i] = instance
		batch.freeList = append(batch.freeList, i)
	}
	return batch, nil
}

// MovableType identifies the object as an instance batch.
func (batch *InstanceBatch) MovableType() string { return "InstanceBatch" }

// TypeFlags returns the query type mask bit for instanced geometry.
func (batch *InstanceBatch) TypeFlags() uint32 { return TypeMaskInstanceBatch }

// Mesh returns the mesh the batch instances.
func (batch *InstanceBatch) Mesh() *Mesh { return batch.mesh }

// Capacity returns the total number of instance slots.
func (batch *InstanceBatch) Capacity() int { return len(batch.instances) }

// UsedCapacity returns the number of claimed instances.
func (batch *InstanceBatch) UsedCapacity() int { return len(batch.instances) - len(batch.freeList) }

// SetMaterialName overrides the material the batch renders with.
func (batch *InstanceBatch) SetMaterialName(name string) {
	batch.materialName = name
	batch.material = nil
}

// CreateInstancedEntity claims a free instance slot. The batch being full
// is an ErrInvalidState.
func (batch *InstanceBatch) CreateInstancedEntity() (*InstancedEntity, error) {
	if len(batch.freeList) == 0 {
		return nil, newError(ErrInvalidState, "instance batch %q is full (%d instances)",
			batch.Name(), len(batch.instances))
	}
	index := batch.freeList[len(batch.freeList)-1]
	batch.freeList = batch.freeList[:len(batch.freeList)-1]
	instance := batch.instances[index]
	instance.inUse = true
	instance.setCreator(batch.creator)
	batch.boundsDirty = true
	return instance, nil
}

// RemoveInstancedEntity returns the instance's slot to the batch. The
// instance is detached from its node and stops sharing transforms both
// ways.
func (batch *InstanceBatch) RemoveInstancedEntity(instance *InstancedEntity) error {
	if instance == nil || instance.batch != batch {
		return newError(ErrInvalidArgument, "instance does not belong to batch %q", batch.Name())
	}
	if !instance.inUse {
		return newError(ErrInvalidState, "instance %q is not in use", instance.Name())
	}
	instance.StopSharingTransform()
	for len(instance.transformShared) > 0 {
		instance.transformShared[0].StopSharingTransform()
	}
	if node := instance.ParentNode(); node != nil {
		_ = node.DetachObject(instance)
	}
	instance.inUse = false
	instance.position = Vector{}
	instance.orientation = NewQuaternionIdentity()
	instance.scale = NewVector(1, 1, 1)
	batch.freeList = append(batch.freeList, instance.index)
	batch.boundsDirty = true
	return nil
}

// ActiveInstances returns the claimed instances in slot order.
func (batch *InstanceBatch) ActiveInstances() []*InstancedEntity {
	out := make([]*InstancedEntity, 0, batch.UsedCapacity())
	for _, instance := range batch.instances {
		if instance.inUse {
			out = append(out, instance)
		}
	}
	return out
}

// NotifyInstancesMoved marks the batch bounds stale after moving instances
// directly.
func (batch *InstanceBatch) NotifyInstancesMoved() { batch.boundsDirty = true }

func (batch *InstanceBatch) updateBounds() {
	meshBounds := batch.mesh.Bounds()
	bounds := NewBoxNull()
	for _, instance := range batch.instances {
		if !instance.inUse {
			continue
		}
		bounds = bounds.Merge(meshBounds.Transform(instance.fullTransform()))
	}
	batch.localBounds = bounds
	batch.boundRadius = bounds.Radius()
	batch.boundsDirty = false
	batch.worldBoxDirty = true
	batch.worldSphereDirty = true
}

// BoundingBox returns bounds covering every claimed instance, in batch
// space. The batch is expected to sit on an untransformed node, so these
// are effectively world bounds.
func (batch *InstanceBatch) BoundingBox() AxisAlignedBox {
	if batch.boundsDirty {
		batch.updateBounds()
	}
	return batch.localBounds
}

// BoundingRadius returns the batch's bounding radius.
func (batch *InstanceBatch) BoundingRadius() float64 {
	if batch.boundsDirty {
		batch.updateBounds()
	}
	return batch.boundRadius
}

// UpdateRenderQueue queues the batch if any instance is claimed.
func (batch *InstanceBatch) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	if batch.UsedCapacity() == 0 {
		return
	}
	queue.AddRenderable(batch, batch.RenderQueueGroup(), batch.RenderQueuePriority())
}

// VisitRenderables visits the batch itself.
func (batch *InstanceBatch) VisitRenderables(visitor func(Renderable)) {
	visitor(batch)
}

// Material resolves the batch's material from the creator's library.
func (batch *InstanceBatch) Material() *Material {
	if batch.material == nil && batch.creator != nil && batch.materialName != "" {
		batch.material = batch.creator.Library().Material(batch.materialName)
	}
	return batch.material
}

// RenderOperation fills op with the instanced submesh, one hardware
// instance per claimed slot.
func (batch *InstanceBatch) RenderOperation(op *RenderOperation) {
	subMesh := batch.mesh.SubMeshes()[batch.subMeshIndex]
	op.VertexData = subMesh.geometry()
	op.IndexData = subMesh.IndexData
	op.UseIndexes = subMesh.IndexData != nil
	op.Topology = subMesh.Topology
	op.NumInstances = batch.UsedCapacity()
}

// WorldTransforms appends one matrix per claimed instance, in slot order.
func (batch *InstanceBatch) WorldTransforms(dst []Matrix4) []Matrix4 {
	for _, instance := range batch.instances {
		if instance.inUse {
			dst = append(dst, instance.fullTransform())
		}
	}
	return dst
}

// SquaredViewDepth returns the squared camera distance to the batch
// bounds' center.
func (batch *InstanceBatch) SquaredViewDepth(camera *Camera) float64 {
	return batch.BoundingBox().Center().DistanceSquared(camera.DerivedPosition())
}

// Lights returns the lights affecting the batch.
func (batch *InstanceBatch) Lights() LightList { return batch.QueryLights() }

// CastsShadows reports whether the batch casts shadows.
func (batch *InstanceBatch) CastsShadows() bool { return batch.CastShadows() }

type instanceBatchFactory struct{}

func (instanceBatchFactory) Type() string { return "InstanceBatch" }

func (instanceBatchFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	meshName, ok := params["mesh"]
	if !ok {
		return nil, newError(ErrInvalidArgument, "instance batch %q needs a 'mesh' parameter", name)
	}
	mesh := creator.Library().Mesh(meshName)
	if mesh == nil {
		return nil, newError(ErrItemNotFound, "no mesh named %q for instance batch %q", meshName, name)
	}
	subMeshIndex := 0
	if value, ok := params["submesh"]; ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, wrapError(ErrInvalidArgument, err, "bad submesh %q for instance batch %q", value, name)
		}
		subMeshIndex = parsed
	}
	size := 32
	if value, ok := params["size"]; ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, wrapError(ErrInvalidArgument, err, "bad size %q for instance batch %q", value, name)
		}
		size = parsed
	}
	batch, err := NewInstanceBatch(name, mesh, subMeshIndex, size)
	if err != nil {
		return nil, err
	}
	batch.setCreator(creator)
	return batch, nil
}
