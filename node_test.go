package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeFullTransformComposesAlongPath(t *testing.T) {
	root := newNode("Root", 1)
	middle := newNode("Middle", 2)
	leaf := newNode("Leaf", 3)
	require.NoError(t, root.AddChild(middle))
	require.NoError(t, middle.AddChild(leaf))

	root.SetPosition(NewVector(10, 0, 0))
	middle.SetPosition(NewVector(0, 5, 0))
	middle.SetOrientation(NewQuaternionAxisAngle(NewVector(0, 1, 0), ToRadians(90)))
	middle.SetScale(NewVector(2, 2, 2))
	leaf.SetPosition(NewVector(1, 0, 0))

	root.Update(true, false)

	expected := NewMatrix4TRS(leaf.Position(), leaf.Orientation(), leaf.Scale()).
		Mult(NewMatrix4TRS(middle.Position(), middle.Orientation(), middle.Scale())).
		Mult(NewMatrix4TRS(root.Position(), root.Orientation(), root.Scale()))

	assert.True(t, leaf.FullTransform().Equals(expected),
		"full transform %v != composed %v", leaf.FullTransform(), expected)
}

func TestNodeDirtyPropagatesToDescendants(t *testing.T) {
	root := newNode("Root", 1)
	child := newNode("Child", 2)
	grandChild := newNode("GrandChild", 3)
	require.NoError(t, root.AddChild(child))
	require.NoError(t, child.AddChild(grandChild))

	root.Update(true, false)
	require.False(t, grandChild.NeedsUpdate())

	root.SetPosition(NewVector(0, 0, 7))
	assert.True(t, child.NeedsUpdate())
	assert.True(t, grandChild.NeedsUpdate())

	root.Update(true, false)
	assert.False(t, child.NeedsUpdate())
	assert.False(t, grandChild.NeedsUpdate())
	assert.Equal(t, NewVector(0, 0, 7), grandChild.DerivedPosition())
}

func TestChildDerivedPositionFollowsParentYaw(t *testing.T) {
	parent := newNode("A", 1)
	child := newNode("B", 2)
	require.NoError(t, parent.AddChild(child))

	parent.SetPosition(NewVector(10, 0, 0))
	child.SetPosition(NewVector(0, 5, 0))
	parent.Yaw(ToRadians(90), TransformLocal)
	parent.Update(true, false)

	// A yaw around Y leaves a child on the Y axis where it was.
	assert.True(t, child.DerivedPosition().Equals(NewVector(10, 5, 0)),
		"derived position %v", child.DerivedPosition())

	child.SetPosition(NewVector(0, 0, 5))
	parent.Update(true, false)

	// Rotating +90 degrees about Y carries local +Z onto +X.
	assert.True(t, child.DerivedPosition().Equals(NewVector(15, 0, 0)),
		"derived position %v", child.DerivedPosition())
}

func TestNodeInheritFlags(t *testing.T) {
	parent := newNode("Parent", 1)
	child := newNode("Child", 2)
	require.NoError(t, parent.AddChild(child))

	parent.SetScale(NewVector(3, 3, 3))
	parent.SetOrientation(NewQuaternionAxisAngle(NewVector(1, 0, 0), ToRadians(90)))

	parent.Update(true, false)
	assert.True(t, child.DerivedScale().Equals(NewVector(3, 3, 3)))

	child.SetInheritScale(false)
	child.SetInheritOrientation(false)
	parent.Update(true, false)

	assert.True(t, child.DerivedScale().Equals(NewVector(1, 1, 1)))
	assert.True(t, child.DerivedOrientation().Equals(NewQuaternionIdentity()))
}

func TestNodeTranslateSpaces(t *testing.T) {
	parent := newNode("Parent", 1)
	child := newNode("Child", 2)
	require.NoError(t, parent.AddChild(child))

	parent.SetOrientation(NewQuaternionAxisAngle(NewVector(0, 1, 0), ToRadians(90)))
	parent.Update(true, false)

	child.Translate(NewVector(0, 0, -1), TransformWorld)
	parent.Update(true, false)
	assert.True(t, child.DerivedPosition().Equals(NewVector(0, 0, -1)),
		"world-space translate landed at %v", child.DerivedPosition())

	child.SetPosition(vectorZero)
	child.Translate(NewVector(0, 0, -1), TransformParent)
	parent.Update(true, false)

	// Parent-space -Z maps through the parent's yaw onto world -X.
	assert.True(t, child.DerivedPosition().Equals(NewVector(-1, 0, 0)),
		"parent-space translate landed at %v", child.DerivedPosition())
}

func TestNodeRemoveChildDetaches(t *testing.T) {
	parent := newNode("Parent", 1)
	child := newNode("Child", 2)
	require.NoError(t, parent.AddChild(child))
	require.Error(t, parent.AddChild(child))

	require.NoError(t, parent.RemoveChild(child))
	assert.Nil(t, child.Parent())
	require.Error(t, parent.RemoveChild(child))

	// A detached node can be reattached elsewhere.
	other := newNode("Other", 3)
	require.NoError(t, other.AddChild(child))
	assert.Same(t, other, child.Parent())
}
