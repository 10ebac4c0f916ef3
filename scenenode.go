package umbra3d

// SceneNode is a Node belonging to a SceneManager's hierarchy, able to carry
// movable objects. Its world bounding box is the merge of the world boxes of
// everything attached to it, recomputed whenever the node's derived
// transform changes.
type SceneNode struct {
	Node

	creator *SceneManager

	attachments []MovableObject

	worldBounds      AxisAlignedBox
	worldBoundsDirty bool

	// Auto tracking: when target is set, the node reorients every frame to
	// look at target's position plus offset, along localDirection.
	autoTrackTarget   *SceneNode
	autoTrackOffset   Vector
	autoTrackLocalDir Vector

	showBoundingBox bool
}

func newSceneNode(creator *SceneManager, name string) *SceneNode {
	sceneNode := &SceneNode{
		creator:          creator,
		worldBounds:      NewBoxNull(),
		worldBoundsDirty: true,
	}
	var id uint64
	if creator != nil {
		id = creator.allocateNodeID()
	}
	sceneNode.Node = *newNode(name, id)
	sceneNode.Node.owner = sceneNode
	sceneNode.Node.updatedHook = sceneNode.onTransformUpdated
	return sceneNode
}

func (sceneNode *SceneNode) onTransformUpdated() {
	sceneNode.markBoundsDirty()
	for _, object := range sceneNode.attachments {
		object.notifyMoved()
	}
}

// markBoundsDirty invalidates the cached world bounds of the node and every
// ancestor, since ancestor bounds include descendant bounds.
func (sceneNode *SceneNode) markBoundsDirty() {
	for node := sceneNode; node != nil; node = node.ParentSceneNode() {
		node.worldBoundsDirty = true
	}
}

// Creator returns the SceneManager the node belongs to.
func (sceneNode *SceneNode) Creator() *SceneManager {
	return sceneNode.creator
}

// ParentSceneNode returns the node's parent as a SceneNode, or nil at the
// root.
func (sceneNode *SceneNode) ParentSceneNode() *SceneNode {
	parent := sceneNode.Node.Parent()
	if parent == nil {
		return nil
	}
	owner, _ := parent.owner.(*SceneNode)
	return owner
}

// IsInSceneGraph reports whether the node is reachable from its scene's root
// node, and so participates in rendering.
func (sceneNode *SceneNode) IsInSceneGraph() bool {
	if sceneNode.creator == nil {
		return false
	}
	return sceneNode.Node.Root() == &sceneNode.creator.RootSceneNode().Node
}

// CreateChildSceneNode creates a SceneNode named name (or auto-named if
// empty), adds it as a child, and returns it. Adding fails only on a sibling
// name collision.
func (sceneNode *SceneNode) CreateChildSceneNode(name string) (*SceneNode, error) {
	child := newSceneNode(sceneNode.creator, name)
	if err := sceneNode.Node.AddChild(&child.Node); err != nil {
		return nil, err
	}
	if sceneNode.creator != nil {
		sceneNode.creator.registerSceneNode(child)
	}
	return child, nil
}

// ChildSceneNode returns the child at the index provided as a SceneNode, or
// nil if out of range.
func (sceneNode *SceneNode) ChildSceneNode(index int) *SceneNode {
	child := sceneNode.Node.Child(index)
	if child == nil {
		return nil
	}
	owner, _ := child.owner.(*SceneNode)
	return owner
}

// AttachObject attaches the movable object provided to the node. An object
// can be attached to only one node at a time, and names must be unique among
// the node's attachments.
func (sceneNode *SceneNode) AttachObject(object MovableObject) error {
	if object.IsAttached() {
		return newError(ErrInvalidState, "object %q is already attached to a node", object.Name())
	}
	for _, existing := range sceneNode.attachments {
		if existing.Name() == object.Name() {
			return newError(ErrDuplicateItem, "an object named %q is already attached to node %q", object.Name(), sceneNode.Name())
		}
	}
	sceneNode.attachments = append(sceneNode.attachments, object)
	object.notifyAttached(sceneNode, false)
	sceneNode.markBoundsDirty()
	return nil
}

// DetachObject detaches the movable object provided from the node.
func (sceneNode *SceneNode) DetachObject(object MovableObject) error {
	for i, existing := range sceneNode.attachments {
		if existing == object {
			sceneNode.attachments = append(sceneNode.attachments[:i], sceneNode.attachments[i+1:]...)
			object.notifyAttached(nil, false)
			sceneNode.markBoundsDirty()
			return nil
		}
	}
	return newError(ErrItemNotFound, "object %q is not attached to node %q", object.Name(), sceneNode.Name())
}

// DetachObjectByName detaches and returns the attachment named name.
func (sceneNode *SceneNode) DetachObjectByName(name string) (MovableObject, error) {
	for _, object := range sceneNode.attachments {
		if object.Name() == name {
			return object, sceneNode.DetachObject(object)
		}
	}
	return nil, newError(ErrItemNotFound, "no object named %q attached to node %q", name, sceneNode.Name())
}

// DetachAllObjects detaches every attachment from the node.
func (sceneNode *SceneNode) DetachAllObjects() {
	for _, object := range sceneNode.attachments {
		object.notifyAttached(nil, false)
	}
	sceneNode.attachments = sceneNode.attachments[:0]
	sceneNode.markBoundsDirty()
}

// AttachedObjects returns the node's attachments in attachment order.
func (sceneNode *SceneNode) AttachedObjects() []MovableObject {
	return sceneNode.attachments
}

// AttachedObjectCount returns the number of objects attached to the node.
func (sceneNode *SceneNode) AttachedObjectCount() int {
	return len(sceneNode.attachments)
}

// AttachedObject returns the attachment named name, or an error if absent.
func (sceneNode *SceneNode) AttachedObject(name string) (MovableObject, error) {
	for _, object := range sceneNode.attachments {
		if object.Name() == name {
			return object, nil
		}
	}
	return nil, newError(ErrItemNotFound, "no object named %q attached to node %q", name, sceneNode.Name())
}

// WorldBounds returns the merged world bounding box of everything attached
// to the node and to its descendants. Attachments with null local bounds
// contribute nothing, so a subtree with no renderable content has a null
// box.
func (sceneNode *SceneNode) WorldBounds() AxisAlignedBox {
	if sceneNode.worldBoundsDirty {
		sceneNode.worldBounds = NewBoxNull()
		for _, object := range sceneNode.attachments {
			sceneNode.worldBounds = sceneNode.worldBounds.Merge(object.WorldBoundingBox(true))
		}
		for i := 0; i < sceneNode.ChildCount(); i++ {
			if child := sceneNode.ChildSceneNode(i); child != nil {
				sceneNode.worldBounds = sceneNode.worldBounds.Merge(child.WorldBounds())
			}
		}
		sceneNode.worldBoundsDirty = false
	}
	return sceneNode.worldBounds
}

// SetAutoTracking makes the node reorient itself every frame to look at the
// target node's derived position plus offset. localDirection is the node's
// local axis to point at the target; pass nil target to stop tracking.
func (sceneNode *SceneNode) SetAutoTracking(target *SceneNode, offset, localDirection Vector) {
	sceneNode.autoTrackTarget = target
	sceneNode.autoTrackOffset = offset
	if localDirection.IsZero() {
		localDirection = vectorNegUnitZ
	}
	sceneNode.autoTrackLocalDir = localDirection
	if sceneNode.creator != nil {
		sceneNode.creator.notifyAutoTrackingSceneNode(sceneNode, target != nil)
	}
}

// AutoTrackTarget returns the node the node is tracking, or nil.
func (sceneNode *SceneNode) AutoTrackTarget() *SceneNode {
	return sceneNode.autoTrackTarget
}

func (sceneNode *SceneNode) updateAutoTracking() {
	if sceneNode.autoTrackTarget == nil {
		return
	}
	target := sceneNode.autoTrackTarget.DerivedPosition().Add(sceneNode.autoTrackOffset)
	sceneNode.LookAt(target, TransformWorld, sceneNode.autoTrackLocalDir)
}

// SetShowBoundingBox toggles debug rendering of the node's world bounds.
func (sceneNode *SceneNode) SetShowBoundingBox(show bool) {
	sceneNode.showBoundingBox = show
}

// ShowBoundingBox reports whether the node's world bounds are debug-rendered.
func (sceneNode *SceneNode) ShowBoundingBox() bool {
	return sceneNode.showBoundingBox
}

// RemoveAndDestroyChild removes the child scene node provided, detaches
// everything under it, and unregisters the subtree from the creator.
func (sceneNode *SceneNode) RemoveAndDestroyChild(child *SceneNode) error {
	if err := sceneNode.Node.RemoveChild(&child.Node); err != nil {
		return err
	}
	child.destroySubtree()
	return nil
}

func (sceneNode *SceneNode) destroySubtree() {
	for i := sceneNode.ChildCount() - 1; i >= 0; i-- {
		if child := sceneNode.ChildSceneNode(i); child != nil {
			child.destroySubtree()
		}
	}
	sceneNode.DetachAllObjects()
	sceneNode.SetAutoTracking(nil, vectorZero, vectorNegUnitZ)
	if sceneNode.creator != nil {
		sceneNode.creator.unregisterSceneNode(sceneNode)
	}
}

// findVisibleObjects walks the subtree, queueing every visible attachment
// whose world bounds pass the camera's frustum test, and recursing into
// children whose merged bounds are at least partially visible.
func (sceneNode *SceneNode) findVisibleObjects(camera *Camera, queue *RenderQueue, visibleBounds bool, onlyShadowCasters bool) {
	sceneNode.updateAutoTracking()
	for _, object := range sceneNode.attachments {
		sceneNode.queueAttachment(object, camera, queue, visibleBounds, onlyShadowCasters)
	}
	for i := 0; i < sceneNode.ChildCount(); i++ {
		child := sceneNode.ChildSceneNode(i)
		if child == nil {
			continue
		}
		child.findVisibleObjects(camera, queue, visibleBounds, onlyShadowCasters)
	}
}

// queueAttachment culls and queues one attachment. A panicking attachment is
// skipped for the frame with a warning; the traversal continues.
func (sceneNode *SceneNode) queueAttachment(object MovableObject, camera *Camera, queue *RenderQueue, visibleBounds bool, onlyShadowCasters bool) {
	defer func() {
		if cause := recover(); cause != nil {
			logger.Warn("attachment misbehaved, skipping it this frame",
				"object", object.Name(), "node", sceneNode.Name(), "cause", cause)
		}
	}()
	if !object.IsVisible() {
		return
	}
	if object.VisibilityFlags()&sceneNode.creator.visibilityMask == 0 {
		return
	}
	if onlyShadowCasters && !object.CastShadows() {
		return
	}
	box := object.WorldBoundingBox(true)
	if camera.VisibilityOfBox(box) == VisibilityNone {
		return
	}
	object.NotifyCamera(camera)
	if !object.IsVisible() {
		// NotifyCamera can retire the object for this frame via the far
		// distance, minimum pixel size, or a listener veto.
		return
	}
	object.UpdateRenderQueue(queue, camera)
	if visibleBounds {
		camera.noteVisibleBounds(box)
	}
	sceneNode.creator.stats.VisibleObjects++
}
