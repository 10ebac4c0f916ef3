package umbra3d

import "sort"

// SkeletonBlendMode controls how multiple enabled skeletal animations
// combine on one skeleton.
type SkeletonBlendMode int

const (
	// BlendAverage scales each animation by weight / totalWeight so the
	// result never over-rotates.
	BlendAverage SkeletonBlendMode = iota
	// BlendCumulative applies each animation at its raw weight.
	BlendCumulative
)

// Bone is a joint in a skeleton: a Node with a saved binding pose and the
// inverse bind transform used to build blend matrices.
type Bone struct {
	Node

	handle uint16

	creator *Skeleton

	manuallyControlled bool

	// Binding pose, captured by SetBindingPose.
	bindPosition    Vector
	bindOrientation Quaternion
	bindScale       Vector

	// Inverse of the bone's derived binding transform, so offset transforms
	// can move vertices from bind space to posed space.
	bindDerivedInversePosition    Vector
	bindDerivedInverseOrientation Quaternion
	bindDerivedInverseScale       Vector
}

func newBone(creator *Skeleton, handle uint16, name string) *Bone {
	bone := &Bone{handle: handle, creator: creator}
	// Bones are numbered by their handle within the owning skeleton.
	bone.Node = *newNode(name, uint64(handle)+1)
	bone.Node.owner = bone
	return bone
}

// Handle returns the bone's numeric handle within its skeleton.
func (bone *Bone) Handle() uint16 { return bone.handle }

// SetManuallyControlled excludes the bone from animation so code can drive
// it directly.
func (bone *Bone) SetManuallyControlled(controlled bool) {
	bone.manuallyControlled = controlled
}

// IsManuallyControlled reports whether animation skips the bone.
func (bone *Bone) IsManuallyControlled() bool { return bone.manuallyControlled }

// CreateChildBone creates a child bone through the skeleton and parents it
// under this bone.
func (bone *Bone) CreateChildBone(name string) (*Bone, error) {
	child, err := bone.creator.CreateBone(name)
	if err != nil {
		return nil, err
	}
	if err := bone.Node.AddChild(&child.Node); err != nil {
		return nil, err
	}
	return child, nil
}

// ChildBone returns the child at the index given as a Bone, or nil.
func (bone *Bone) ChildBone(index int) *Bone {
	child := bone.Node.Child(index)
	if child == nil {
		return nil
	}
	owner, _ := child.owner.(*Bone)
	return owner
}

// SetBindingPose captures the bone's current transform as its binding pose
// and computes the inverse bind transform.
func (bone *Bone) SetBindingPose() {
	bone.bindPosition = bone.Position()
	bone.bindOrientation = bone.Orientation()
	bone.bindScale = bone.Scale()

	bone.bindDerivedInverseScale = vectorOne.DivideComp(bone.DerivedScale())
	bone.bindDerivedInverseOrientation = bone.DerivedOrientation().Inverse()
	bone.bindDerivedInversePosition = bone.DerivedPosition().Invert()
}

// Reset restores the bone's transform to the captured binding pose.
func (bone *Bone) Reset() {
	bone.SetPosition(bone.bindPosition)
	bone.SetOrientation(bone.bindOrientation)
	bone.SetScale(bone.bindScale)
}

// OffsetTransform returns the matrix turning bind-space vertex positions
// into this bone's current pose.
func (bone *Bone) OffsetTransform() Matrix4 {
	scale := bone.DerivedScale().MultComp(bone.bindDerivedInverseScale)
	rotate := bone.DerivedOrientation().Mult(bone.bindDerivedInverseOrientation)
	translate := bone.DerivedPosition().Add(rotate.MultVec(scale.MultComp(bone.bindDerivedInversePosition)))
	return NewMatrix4TRS(translate, rotate, scale)
}

// Skeleton is a named bone hierarchy plus its skeletal animations. Entities
// never use a Skeleton directly; they instantiate it through a
// SkeletonInstance so each entity poses independently.
type Skeleton struct {
	name string

	bonesByHandle map[uint16]*Bone
	bonesByName   map[string]*Bone
	boneOrder     []uint16
	nextHandle    uint16

	rootBones []*Bone
	rootDirty bool

	blendMode SkeletonBlendMode

	animations map[string]*Animation
}

// NewSkeleton creates an empty skeleton with the name given.
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{
		name:          name,
		bonesByHandle: map[uint16]*Bone{},
		bonesByName:   map[string]*Bone{},
		animations:    map[string]*Animation{},
	}
}

// Name returns the skeleton's name.
func (skeleton *Skeleton) Name() string { return skeleton.name }

// BlendMode returns how simultaneous animations combine.
func (skeleton *Skeleton) BlendMode() SkeletonBlendMode { return skeleton.blendMode }

// SetBlendMode sets how simultaneous animations combine.
func (skeleton *Skeleton) SetBlendMode(mode SkeletonBlendMode) { skeleton.blendMode = mode }

// CreateBone creates a bone with the next free handle. An empty name
// auto-names the bone from its handle.
func (skeleton *Skeleton) CreateBone(name string) (*Bone, error) {
	return skeleton.CreateBoneWithHandle(name, skeleton.nextHandle)
}

// CreateBoneWithHandle creates a bone with an explicit handle. Handles and
// names must be unique within the skeleton.
func (skeleton *Skeleton) CreateBoneWithHandle(name string, handle uint16) (*Bone, error) {
	if _, taken := skeleton.bonesByHandle[handle]; taken {
		return nil, newError(ErrDuplicateItem, "skeleton %q already has a bone with handle %d", skeleton.name, handle)
	}
	if name != "" {
		if _, taken := skeleton.bonesByName[name]; taken {
			return nil, newError(ErrDuplicateItem, "skeleton %q already has a bone named %q", skeleton.name, name)
		}
	}
	bone := newBone(skeleton, handle, name)
	skeleton.bonesByHandle[handle] = bone
	skeleton.bonesByName[bone.Name()] = bone
	skeleton.boneOrder = append(skeleton.boneOrder, handle)
	if handle >= skeleton.nextHandle {
		skeleton.nextHandle = handle + 1
	}
	skeleton.rootDirty = true
	return bone, nil
}

// BoneCount returns the number of bones.
func (skeleton *Skeleton) BoneCount() int { return len(skeleton.bonesByHandle) }

// Bone returns the bone with the handle given.
func (skeleton *Skeleton) Bone(handle uint16) (*Bone, error) {
	bone, ok := skeleton.bonesByHandle[handle]
	if !ok {
		return nil, newError(ErrItemNotFound, "skeleton %q has no bone with handle %d", skeleton.name, handle)
	}
	return bone, nil
}

// BoneByName returns the bone named name.
func (skeleton *Skeleton) BoneByName(name string) (*Bone, error) {
	bone, ok := skeleton.bonesByName[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "skeleton %q has no bone named %q", skeleton.name, name)
	}
	return bone, nil
}

// Bones returns the skeleton's bones in handle order.
func (skeleton *Skeleton) Bones() []*Bone {
	handles := append([]uint16{}, skeleton.boneOrder...)
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	bones := make([]*Bone, 0, len(handles))
	for _, handle := range handles {
		bones = append(bones, skeleton.bonesByHandle[handle])
	}
	return bones
}

// RootBones returns the bones with no parent. Most skeletons have exactly
// one.
func (skeleton *Skeleton) RootBones() []*Bone {
	if skeleton.rootDirty {
		skeleton.rootBones = skeleton.rootBones[:0]
		for _, bone := range skeleton.Bones() {
			if bone.Parent() == nil {
				skeleton.rootBones = append(skeleton.rootBones, bone)
			}
		}
		skeleton.rootDirty = false
	}
	return skeleton.rootBones
}

// SetBindingPose captures every bone's current transform as the skeleton's
// binding pose.
func (skeleton *Skeleton) SetBindingPose() {
	skeleton.updatePose()
	for _, bone := range skeleton.bonesByHandle {
		bone.SetBindingPose()
	}
}

// Reset restores every bone, except manually controlled ones, to the binding
// pose.
func (skeleton *Skeleton) Reset() {
	for _, bone := range skeleton.bonesByHandle {
		if !bone.manuallyControlled {
			bone.Reset()
		}
	}
}

func (skeleton *Skeleton) updatePose() {
	for _, root := range skeleton.RootBones() {
		root.Update(true, true)
	}
}

// CreateAnimation creates a skeletal animation of the length given, in
// seconds.
func (skeleton *Skeleton) CreateAnimation(name string, length float64) (*Animation, error) {
	if _, taken := skeleton.animations[name]; taken {
		return nil, newError(ErrDuplicateItem, "skeleton %q already has an animation named %q", skeleton.name, name)
	}
	animation := NewAnimation(name, length)
	skeleton.animations[name] = animation
	return animation, nil
}

// Animation returns the skeletal animation named name.
func (skeleton *Skeleton) Animation(name string) (*Animation, error) {
	animation, ok := skeleton.animations[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "skeleton %q has no animation named %q", skeleton.name, name)
	}
	return animation, nil
}

// Animations returns the skeleton's animations keyed by name.
func (skeleton *Skeleton) Animations() map[string]*Animation {
	return skeleton.animations
}

// initAnimationStates fills the set provided with one disabled state per
// animation.
func (skeleton *Skeleton) initAnimationStates(states *AnimationStateSet) {
	states.RemoveAll()
	for name, animation := range skeleton.animations {
		states.CreateState(name, 0, animation.Length())
	}
}

// SkeletonInstance is one entity's private copy of a skeleton's bone
// hierarchy. Animation definitions stay shared with the master skeleton;
// only the pose is per-instance.
type SkeletonInstance struct {
	Skeleton

	master *Skeleton

	tagPoints []*TagPoint
	nextTagID int
}

// NewSkeletonInstance clones the master skeleton's bone hierarchy and
// binding pose into a new instance.
func NewSkeletonInstance(master *Skeleton) *SkeletonInstance {
	instance := &SkeletonInstance{master: master}
	instance.Skeleton = *NewSkeleton(master.Name())
	instance.Skeleton.blendMode = master.blendMode
	instance.Skeleton.animations = master.animations

	for _, root := range master.RootBones() {
		instance.cloneBoneTree(nil, root)
	}
	instance.Skeleton.SetBindingPose()
	return instance
}

func (instance *SkeletonInstance) cloneBoneTree(parent *Bone, source *Bone) {
	bone, err := instance.Skeleton.CreateBoneWithHandle(source.Name(), source.Handle())
	if err != nil {
		logger.Error("skeleton instance could not clone bone", "bone", source.Name(), "error", err)
		return
	}
	bone.SetPosition(source.Position())
	bone.SetOrientation(source.Orientation())
	bone.SetScale(source.Scale())
	bone.manuallyControlled = source.manuallyControlled
	if parent != nil {
		if err := parent.Node.AddChild(&bone.Node); err != nil {
			logger.Error("skeleton instance could not parent bone", "bone", source.Name(), "error", err)
		}
	}
	for i := 0; i < source.ChildCount(); i++ {
		if child := source.ChildBone(i); child != nil {
			instance.cloneBoneTree(bone, child)
		}
	}
}

// Master returns the skeleton this instance was created from.
func (instance *SkeletonInstance) Master() *Skeleton { return instance.master }

// BoneMatrices computes one offset transform per bone, in handle order,
// appending into dst.
func (instance *SkeletonInstance) BoneMatrices(dst []Matrix4) []Matrix4 {
	instance.updatePose()
	for _, bone := range instance.Bones() {
		dst = append(dst, bone.OffsetTransform())
	}
	return dst
}

// applyAnimationStates poses the instance from the enabled states provided:
// reset to binding pose, then blend each enabled animation per the
// skeleton's blend mode.
func (instance *SkeletonInstance) applyAnimationStates(states *AnimationStateSet) {
	instance.Reset()

	totalWeight := 0.0
	if instance.blendMode == BlendAverage {
		for _, state := range states.EnabledStates() {
			if _, ok := instance.animations[state.Name()]; ok {
				totalWeight += state.Weight()
			}
		}
	}

	for _, state := range states.EnabledStates() {
		animation, ok := instance.animations[state.Name()]
		if !ok {
			continue
		}
		weight := state.Weight()
		if instance.blendMode == BlendAverage && totalWeight > 1 {
			weight /= totalWeight
		}
		animation.ApplyToSkeleton(&instance.Skeleton, state.TimePosition(), weight)
	}
}

// createTagPoint creates a tag point on the bone named boneName with the
// local offsets provided.
func (instance *SkeletonInstance) createTagPoint(boneName string, offsetOrientation Quaternion, offsetPosition Vector) (*TagPoint, error) {
	bone, err := instance.BoneByName(boneName)
	if err != nil {
		return nil, err
	}
	instance.nextTagID++
	tagPoint := newTagPoint(instance.nextTagID, bone)
	tagPoint.SetPosition(offsetPosition)
	tagPoint.SetOrientation(offsetOrientation)
	if err := bone.Node.AddChild(&tagPoint.Node); err != nil {
		return nil, err
	}
	instance.tagPoints = append(instance.tagPoints, tagPoint)
	return tagPoint, nil
}

func (instance *SkeletonInstance) freeTagPoint(tagPoint *TagPoint) {
	for i, existing := range instance.tagPoints {
		if existing == tagPoint {
			instance.tagPoints = append(instance.tagPoints[:i], instance.tagPoints[i+1:]...)
			break
		}
	}
	if parent := tagPoint.Node.Parent(); parent != nil {
		_ = parent.RemoveChild(&tagPoint.Node)
	}
}

// TagPoint hangs a movable object off a skeleton bone, composing the parent
// entity's node transform with the bone's posed transform so attachments
// follow animation.
type TagPoint struct {
	Node

	bone         *Bone
	parentEntity *Entity
	child        MovableObject

	// InheritParentEntityOrientation and Scale control whether the entity
	// node's orientation and scale carry into the attachment.
	InheritParentEntityOrientation bool
	InheritParentEntityScale       bool
}

func newTagPoint(id int, bone *Bone) *TagPoint {
	tagPoint := &TagPoint{
		bone:                           bone,
		InheritParentEntityOrientation: true,
		InheritParentEntityScale:       true,
	}
	tagPoint.Node = *newNode("TagPoint_"+bone.Name()+"_"+itoa(id), uint64(id)+1)
	tagPoint.Node.owner = tagPoint
	return tagPoint
}

// Bone returns the bone the tag point rides.
func (tagPoint *TagPoint) Bone() *Bone { return tagPoint.bone }

// ParentEntity returns the entity the tag point belongs to.
func (tagPoint *TagPoint) ParentEntity() *Entity { return tagPoint.parentEntity }

// ChildObject returns the attached movable object.
func (tagPoint *TagPoint) ChildObject() MovableObject { return tagPoint.child }

// FullWorldTransform composes the owning entity's node transform with the
// tag point's bone-space transform.
func (tagPoint *TagPoint) FullWorldTransform() Matrix4 {
	boneSpace := tagPoint.FullTransform()
	if tagPoint.parentEntity == nil || tagPoint.parentEntity.ParentNode() == nil {
		return boneSpace
	}
	parentNode := tagPoint.parentEntity.ParentNode()
	entityTransform := parentNode.FullTransform()
	if !tagPoint.InheritParentEntityOrientation || !tagPoint.InheritParentEntityScale {
		position := parentNode.DerivedPosition()
		orientation := parentNode.DerivedOrientation()
		scale := parentNode.DerivedScale()
		if !tagPoint.InheritParentEntityOrientation {
			orientation = NewQuaternionIdentity()
		}
		if !tagPoint.InheritParentEntityScale {
			scale = vectorOne
		}
		entityTransform = NewMatrix4TRS(position, orientation, scale)
	}
	return boneSpace.Mult(entityTransform)
}
