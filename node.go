package umbra3d

import (
	"strconv"
	"strings"
)

// TransformSpace determines the space a translation or rotation operates in.
type TransformSpace int

const (
	TransformLocal  TransformSpace = iota // Relative to the node's own orientation
	TransformParent                       // Relative to the node's parent
	TransformWorld                        // Relative to world space
)

// NodeListener receives notifications about changes to a Node. Callbacks fire
// after the internal state change but before control returns to the caller.
type NodeListener interface {
	// NodeUpdated is called when the Node's derived transform has been recomputed.
	NodeUpdated(node *Node)
	// NodeAttached is called when the Node gains a parent.
	NodeAttached(node *Node)
	// NodeDetached is called when the Node loses its parent.
	NodeDetached(node *Node)
}

// Node represents a named position, orientation, and scale in a transform
// tree. A Node caches its parent-composed ("derived") transform and only
// recomputes it when it or an ancestor has been mutated since the last
// update. SceneNode and Bone build on Node.
type Node struct {
	id       uint64
	name     string
	parent   *Node
	children []*Node

	position    Vector
	orientation Quaternion
	scale       Vector

	inheritOrientation bool
	inheritScale       bool

	derivedPosition    Vector
	derivedOrientation Quaternion
	derivedScale       Vector

	cachedTransform      Matrix4
	cachedTransformDirty bool

	// needParentUpdate notes that the derived values are stale because this
	// node or an ancestor moved. childrenNotified guards the one-time walk
	// that marks descendants stale.
	needParentUpdate bool
	childrenNotified bool

	yawFixed     bool
	yawFixedAxis Vector

	listener NodeListener

	// updatedHook lets a wrapping type (SceneNode, Bone) react to derived
	// transform recomputation without virtual dispatch.
	updatedHook func()

	// owner points back to the wrapping type, if any, so hierarchy traversal
	// can recover the SceneNode or Bone a plain *Node belongs to.
	owner any
}

// newNode builds a Node with the id provided. IDs come from the owning
// registry (the SceneManager for scene nodes, the Skeleton for bones and tag
// points) so separate scenes never share counter state.
func newNode(name string, id uint64) *Node {
	node := &Node{
		id:                 id,
		name:               name,
		orientation:        NewQuaternionIdentity(),
		scale:              vectorOne,
		derivedOrientation: NewQuaternionIdentity(),
		derivedScale:       vectorOne,
		inheritOrientation: true,
		inheritScale:       true,
		cachedTransform:    NewMatrix4(),
		needParentUpdate:   true,
	}
	if name == "" {
		node.name = "Unnamed_" + strconv.FormatUint(node.id, 10)
	}
	return node
}

// ID returns the Node's ID, unique within its owning registry.
func (node *Node) ID() uint64 {
	return node.id
}

// Name returns the Node's name.
func (node *Node) Name() string {
	return node.name
}

// Parent returns the Node's parent, or nil if it is unparented.
func (node *Node) Parent() *Node {
	return node.parent
}

// SetListener sets the NodeListener notified about this Node's changes.
func (node *Node) SetListener(listener NodeListener) {
	node.listener = listener
}

// Listener returns the NodeListener registered on this Node, if any.
func (node *Node) Listener() NodeListener {
	return node.listener
}

// Position returns the Node's local position (relative to its parent).
func (node *Node) Position() Vector {
	return node.position
}

// SetPosition sets the Node's local position (relative to its parent).
func (node *Node) SetPosition(position Vector) {
	node.position = position
	node.markDirty()
}

// Orientation returns the Node's local orientation (relative to its parent).
func (node *Node) Orientation() Quaternion {
	return node.orientation
}

// SetOrientation sets the Node's local orientation (relative to its parent).
// The Quaternion provided is normalized.
func (node *Node) SetOrientation(orientation Quaternion) {
	node.orientation = orientation.Unit()
	node.markDirty()
}

// ResetOrientation resets the Node's local orientation to identity.
func (node *Node) ResetOrientation() {
	node.orientation = NewQuaternionIdentity()
	node.markDirty()
}

// Scale returns the Node's local scale (relative to its parent).
func (node *Node) Scale() Vector {
	return node.scale
}

// SetScale sets the Node's local scale (relative to its parent).
func (node *Node) SetScale(scale Vector) {
	node.scale = scale
	node.markDirty()
}

// SetInheritOrientation sets whether the Node combines its parent's
// orientation into its derived orientation (on by default).
func (node *Node) SetInheritOrientation(inherit bool) {
	node.inheritOrientation = inherit
	node.markDirty()
}

// InheritOrientation returns whether the Node inherits its parent's orientation.
func (node *Node) InheritOrientation() bool {
	return node.inheritOrientation
}

// SetInheritScale sets whether the Node combines its parent's scale into its
// derived scale (on by default).
func (node *Node) SetInheritScale(inherit bool) {
	node.inheritScale = inherit
	node.markDirty()
}

// InheritScale returns whether the Node inherits its parent's scale.
func (node *Node) InheritScale() bool {
	return node.inheritScale
}

// SetFixedYawAxis fixes the axis used for yaw rotations (and for keeping a
// level horizon during SetDirection / LookAt). By default yaw uses the
// Node's local Y axis.
func (node *Node) SetFixedYawAxis(fixed bool, axis Vector) {
	node.yawFixed = fixed
	node.yawFixedAxis = axis.Unit()
}

// Translate moves the Node by the offset provided, interpreted in the
// TransformSpace given.
func (node *Node) Translate(offset Vector, space TransformSpace) {
	switch space {
	case TransformLocal:
		node.position = node.position.Add(node.orientation.MultVec(offset))
	case TransformParent:
		node.position = node.position.Add(offset)
	case TransformWorld:
		if node.parent != nil {
			parentInv := node.parent.DerivedOrientation().Inverse().MultVec(offset)
			node.position = node.position.Add(parentInv.DivideComp(node.parent.DerivedScale()))
		} else {
			node.position = node.position.Add(offset)
		}
	}
	node.markDirty()
}

// Rotate rotates the Node by the Quaternion provided, interpreted in the
// TransformSpace given.
func (node *Node) Rotate(rotation Quaternion, space TransformSpace) {
	rotation = rotation.Unit()
	switch space {
	case TransformLocal:
		node.orientation = node.orientation.Mult(rotation).Unit()
	case TransformParent:
		node.orientation = rotation.Mult(node.orientation).Unit()
	case TransformWorld:
		derived := node.DerivedOrientation()
		node.orientation = node.orientation.Mult(derived.Inverse()).Mult(rotation).Mult(derived).Unit()
	}
	node.markDirty()
}

// RotateAxisAngle rotates the Node around the axis provided by the angle in
// radians, interpreted in the TransformSpace given.
func (node *Node) RotateAxisAngle(axis Vector, angle float64, space TransformSpace) {
	node.Rotate(NewQuaternionAxisAngle(axis, angle), space)
}

// Yaw rotates the Node around its yaw axis (local Y, or the fixed yaw axis
// if one is set) by the angle in radians.
func (node *Node) Yaw(angle float64, space TransformSpace) {
	axis := vectorUnitY
	if node.yawFixed {
		axis = node.yawFixedAxis
	}
	node.RotateAxisAngle(axis, angle, space)
}

// Pitch rotates the Node around its local X axis by the angle in radians.
func (node *Node) Pitch(angle float64, space TransformSpace) {
	node.RotateAxisAngle(vectorUnitX, angle, space)
}

// Roll rotates the Node around its local Z axis by the angle in radians.
func (node *Node) Roll(angle float64, space TransformSpace) {
	node.RotateAxisAngle(vectorUnitZ, angle, space)
}

// SetDirection points the Node's localDirection axis (conventionally -Z) at
// the direction provided, interpreted in the TransformSpace given. If a fixed
// yaw axis is set, the Node keeps a level horizon around it; otherwise the
// shortest-arc rotation from the current direction is used.
func (node *Node) SetDirection(direction Vector, space TransformSpace, localDirection Vector) {

	if direction.IsZero() {
		return
	}

	localDirection = localDirection.Unit()

	// Express the target direction in world space.
	var targetDir Vector
	switch space {
	case TransformLocal:
		targetDir = node.DerivedOrientation().MultVec(direction)
	case TransformParent:
		if node.inheritOrientation && node.parent != nil {
			targetDir = node.parent.DerivedOrientation().MultVec(direction)
		} else {
			targetDir = direction
		}
	case TransformWorld:
		targetDir = direction
	}
	targetDir = targetDir.Unit()

	var targetOrientation Quaternion

	if node.yawFixed {
		xVec := node.yawFixedAxis.Cross(targetDir)
		if xVec.MagnitudeSquared() < 1e-12 {
			// Looking along the yaw axis; pick any perpendicular.
			xVec = targetDir.Perpendicular()
		}
		xVec = xVec.Unit()
		yVec := targetDir.Cross(xVec).Unit()
		targetOrientation = newQuaternionFromAxes(xVec, yVec, targetDir.Invert())
		if !localDirection.Equals(vectorNegUnitZ) {
			targetOrientation = targetOrientation.Mult(NewQuaternionRotationTo(localDirection, vectorNegUnitZ))
		}
	} else {
		currentOrient := node.DerivedOrientation()
		currentDir := currentOrient.MultVec(localDirection)
		if currentDir.Add(targetDir).MagnitudeSquared() < 1e-12 {
			// 180 degree turn; rotate around the current up axis to avoid
			// an ill-defined shortest arc.
			targetOrientation = currentOrient.Mult(NewQuaternionAxisAngle(vectorUnitY, 3.14159265358979)).Unit()
		} else {
			targetOrientation = NewQuaternionRotationTo(currentDir, targetDir).Mult(currentOrient).Unit()
		}
	}

	// Convert back to a local orientation.
	if node.parent != nil && node.inheritOrientation {
		node.orientation = node.parent.DerivedOrientation().Inverse().Mult(targetOrientation).Unit()
	} else {
		node.orientation = targetOrientation
	}
	node.markDirty()
}

// LookAt points the Node's localDirection axis (conventionally -Z) at the
// target point provided, interpreted in the TransformSpace given.
func (node *Node) LookAt(target Vector, space TransformSpace, localDirection Vector) {
	var origin Vector
	switch space {
	case TransformWorld:
		origin = node.DerivedPosition()
	case TransformParent:
		origin = node.position
	case TransformLocal:
		origin = vectorZero
	}
	node.SetDirection(target.Sub(origin), space, localDirection)
}

func newQuaternionFromAxes(x, y, z Vector) Quaternion {
	mat := NewMatrix4()
	mat.SetRow(0, Vector{x.X, x.Y, x.Z, 0})
	mat.SetRow(1, Vector{y.X, y.Y, y.Z, 0})
	mat.SetRow(2, Vector{z.X, z.Y, z.Z, 0})
	return NewQuaternionFromMatrix(mat)
}

// markDirty flags this Node's derived values as stale and, on the first
// transition, marks every descendant stale as well.
func (node *Node) markDirty() {
	node.needParentUpdate = true
	node.cachedTransformDirty = true
	if !node.childrenNotified {
		node.childrenNotified = true
		for _, child := range node.children {
			child.markDirty()
		}
	}
}

// NeedsUpdate returns whether the Node's cached derived values are stale.
func (node *Node) NeedsUpdate() bool {
	return node.needParentUpdate
}

// updateFromParent recomputes the derived position, orientation, and scale by
// composing the parent's derived values with this Node's local values,
// honoring the inheritance flags.
func (node *Node) updateFromParent() {

	if node.parent != nil {

		if node.parent.needParentUpdate {
			node.parent.updateFromParent()
		}

		parentOrient := node.parent.derivedOrientation
		parentScale := node.parent.derivedScale

		if node.inheritOrientation {
			node.derivedOrientation = parentOrient.Mult(node.orientation).Unit()
		} else {
			node.derivedOrientation = node.orientation
		}

		if node.inheritScale {
			node.derivedScale = parentScale.MultComp(node.scale)
		} else {
			node.derivedScale = node.scale
		}

		if node.inheritOrientation {
			node.derivedPosition = node.parent.derivedPosition.Add(parentOrient.MultVec(parentScale.MultComp(node.position)))
		} else {
			node.derivedPosition = node.parent.derivedPosition.Add(parentScale.MultComp(node.position))
		}

	} else {
		node.derivedPosition = node.position
		node.derivedOrientation = node.orientation
		node.derivedScale = node.scale
	}

	node.needParentUpdate = false
	node.cachedTransformDirty = true

	if node.listener != nil {
		node.listener.NodeUpdated(node)
	}
	if node.updatedHook != nil {
		node.updatedHook()
	}
}

// DerivedPosition returns the Node's world-space position, recomputing it if stale.
func (node *Node) DerivedPosition() Vector {
	if node.needParentUpdate {
		node.updateFromParent()
	}
	return node.derivedPosition
}

// DerivedOrientation returns the Node's world-space orientation, recomputing it if stale.
func (node *Node) DerivedOrientation() Quaternion {
	if node.needParentUpdate {
		node.updateFromParent()
	}
	return node.derivedOrientation
}

// DerivedScale returns the Node's world-space scale, recomputing it if stale.
func (node *Node) DerivedScale() Vector {
	if node.needParentUpdate {
		node.updateFromParent()
	}
	return node.derivedScale
}

// FullTransform returns the Node's world transform as a Matrix4, composed
// from the derived position, orientation, and scale. The result is cached
// until the Node or an ancestor moves.
func (node *Node) FullTransform() Matrix4 {
	if node.needParentUpdate {
		node.updateFromParent()
	}
	if node.cachedTransformDirty {
		node.cachedTransform = NewMatrix4TRS(node.derivedPosition, node.derivedOrientation, node.derivedScale)
		node.cachedTransformDirty = false
	}
	return node.cachedTransform
}

// ConvertWorldToLocalPosition converts a world-space position into this
// Node's local space.
func (node *Node) ConvertWorldToLocalPosition(worldPos Vector) Vector {
	return node.DerivedOrientation().Inverse().MultVec(worldPos.Sub(node.DerivedPosition())).DivideComp(node.DerivedScale())
}

// ConvertLocalToWorldPosition converts a position in this Node's local space
// into world space.
func (node *Node) ConvertLocalToWorldPosition(localPos Vector) Vector {
	return node.DerivedOrientation().MultVec(localPos.MultComp(node.DerivedScale())).Add(node.DerivedPosition())
}

// Update resolves this Node's derived transform if it is stale (or if
// parentChanged forces it) and optionally cascades to every child.
func (node *Node) Update(cascadeChildren, parentChanged bool) {

	changed := false
	if node.needParentUpdate || parentChanged {
		node.updateFromParent()
		changed = true
	}

	if cascadeChildren {
		for _, child := range node.children {
			child.Update(true, changed)
		}
	}

	node.childrenNotified = false
}

// Children returns the Node's children in insertion order. The returned
// slice is a copy.
func (node *Node) Children() []*Node {
	return append(make([]*Node, 0, len(node.children)), node.children...)
}

// ChildCount returns the number of direct children of this Node.
func (node *Node) ChildCount() int {
	return len(node.children)
}

// Child returns the child Node at the index provided.
func (node *Node) Child(index int) *Node {
	return node.children[index]
}

// ChildByName returns the direct child with the name provided, or nil if none
// matches.
func (node *Node) ChildByName(name string) *Node {
	for _, child := range node.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// AddChild parents the child Node provided to this Node. A child already
// parented elsewhere is detached first. Sibling names must be unique.
func (node *Node) AddChild(child *Node) error {

	if child == node {
		return newError(ErrInvalidArgument, "node %q cannot be its own child", node.name)
	}
	if node.ChildByName(child.name) != nil {
		return newError(ErrDuplicateItem, "node %q already has a child named %q", node.name, child.name)
	}

	if child.parent != nil {
		child.parent.RemoveChild(child)
	}

	child.parent = node
	node.children = append(node.children, child)
	child.markDirty()

	if child.listener != nil {
		child.listener.NodeAttached(child)
	}
	return nil
}

// RemoveChild detaches the child Node provided from this Node. Removing a
// node that is not a child fails with an item-not-found error.
func (node *Node) RemoveChild(child *Node) error {

	for i, c := range node.children {
		if c == child {
			node.children = append(node.children[:i], node.children[i+1:]...)
			child.parent = nil
			child.markDirty()
			if child.listener != nil {
				child.listener.NodeDetached(child)
			}
			return nil
		}
	}
	return newError(ErrItemNotFound, "node %q is not a child of %q", child.name, node.name)
}

// RemoveAllChildren detaches every child from this Node.
func (node *Node) RemoveAllChildren() {
	for _, child := range node.children {
		child.parent = nil
		child.markDirty()
		if child.listener != nil {
			child.listener.NodeDetached(child)
		}
	}
	node.children = node.children[:0]
}

// Root returns the root of the tree this Node belongs to.
func (node *Node) Root() *Node {
	root := node
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Get searches the Node's hierarchy using a path of names separated by
// forward slashes, relative to the calling Node; ".." steps up to the parent.
func (node *Node) Get(path string) *Node {

	current := node
	for _, part := range strings.Split(path, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == ".." {
			current = current.parent
		} else {
			current = current.ChildByName(part)
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// HierarchyAsString returns a string displaying the hierarchy of this Node
// and all recursive children, with derived positions; useful to debug the
// layout of a node tree.
func (node *Node) HierarchyAsString() string {

	var printNode func(n *Node, level int) string

	printNode = func(n *Node, level int) string {
		str := strings.Repeat("    |", level)
		if level > 0 {
			str += "-"
		}
		wp := n.DerivedPosition()
		str += " " + n.name + " : [" +
			strconv.FormatFloat(wp.X, 'f', 2, 64) + ", " +
			strconv.FormatFloat(wp.Y, 'f', 2, 64) + ", " +
			strconv.FormatFloat(wp.Z, 'f', 2, 64) + "]\n"
		for _, child := range n.children {
			str += printNode(child, level+1)
		}
		return str
	}

	return printNode(node, 0)
}
