package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceBatchCapacity(t *testing.T) {
	mesh := newTriangleMesh(t, "Blade")
	batch, err := NewInstanceBatch("Grass", mesh, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Capacity())
	assert.Equal(t, 0, batch.UsedCapacity())

	var instances []*InstancedEntity
	for i := 0; i < 3; i++ {
		instance, err := batch.CreateInstancedEntity()
		require.NoError(t, err)
		instances = append(instances, instance)
	}
	assert.Equal(t, 3, batch.UsedCapacity())

	_, err = batch.CreateInstancedEntity()
	assert.True(t, IsKind(err, ErrInvalidState))

	// Removing one frees its slot for reuse.
	require.NoError(t, batch.RemoveInstancedEntity(instances[1]))
	assert.Equal(t, 2, batch.UsedCapacity())
	_, err = batch.CreateInstancedEntity()
	require.NoError(t, err)
	assert.Equal(t, 3, batch.UsedCapacity())
}

func TestInstanceBatchBoundsFollowInstances(t *testing.T) {
	mesh := newTriangleMesh(t, "Blade")
	batch, err := NewInstanceBatch("Grass", mesh, 0, 4)
	require.NoError(t, err)

	near, err := batch.CreateInstancedEntity()
	require.NoError(t, err)
	near.SetPosition(NewVector(0, 0, 0))

	far, err := batch.CreateInstancedEntity()
	require.NoError(t, err)
	far.SetPosition(NewVector(100, 0, 0))

	bounds := batch.BoundingBox()
	require.Equal(t, ExtentFinite, bounds.Extent)
	assert.True(t, bounds.ContainsPoint(NewVector(0, 0, 0)))
	assert.True(t, bounds.ContainsPoint(NewVector(100, 0, 0)))

	// Moving an instance re-expands the bounds on the next read.
	far.SetPosition(NewVector(200, 0, 0))
	bounds = batch.BoundingBox()
	assert.True(t, bounds.ContainsPoint(NewVector(200, 0, 0)))
	assert.False(t, bounds.ContainsPoint(NewVector(300, 0, 0)))
}

func TestInstancedEntityTransformSharing(t *testing.T) {
	mesh := newTriangleMesh(t, "Blade")
	batch, err := NewInstanceBatch("Grass", mesh, 0, 4)
	require.NoError(t, err)

	master, err := batch.CreateInstancedEntity()
	require.NoError(t, err)
	master.SetPosition(NewVector(5, 0, 0))

	follower, err := batch.CreateInstancedEntity()
	require.NoError(t, err)
	follower.SetPosition(NewVector(-5, 0, 0))

	require.NoError(t, follower.ShareTransformWith(master))
	assert.True(t, follower.SharesTransform())
	assert.True(t, follower.fullTransform().Equals(master.fullTransform()))

	// Sharing is not allowed to chain and is not reflexive.
	third, err := batch.CreateInstancedEntity()
	require.NoError(t, err)
	assert.True(t, IsKind(third.ShareTransformWith(follower), ErrInvalidState))
	assert.True(t, IsKind(master.ShareTransformWith(master), ErrInvalidArgument))

	follower.StopSharingTransform()
	assert.False(t, follower.SharesTransform())
	assert.True(t, follower.derivedPosition().Equals(NewVector(-5, 0, 0)))
}

func TestShareTransformRejectsOtherBatch(t *testing.T) {
	mesh := newTriangleMesh(t, "Blade")
	first, err := NewInstanceBatch("FirstBatch", mesh, 0, 2)
	require.NoError(t, err)
	second, err := NewInstanceBatch("SecondBatch", mesh, 0, 2)
	require.NoError(t, err)

	a, err := first.CreateInstancedEntity()
	require.NoError(t, err)
	b, err := second.CreateInstancedEntity()
	require.NoError(t, err)

	assert.True(t, IsKind(a.ShareTransformWith(b), ErrInvalidArgument))
}

func TestInstanceBatchWorldTransformsPerInstance(t *testing.T) {
	mesh := newTriangleMesh(t, "Blade")
	batch, err := NewInstanceBatch("Grass", mesh, 0, 3)
	require.NoError(t, err)

	positions := []Vector{NewVector(1, 0, 0), NewVector(2, 0, 0)}
	for _, position := range positions {
		instance, err := batch.CreateInstancedEntity()
		require.NoError(t, err)
		instance.SetPosition(position)
	}

	transforms := batch.WorldTransforms(nil)
	require.Len(t, transforms, 2)
	for i, transform := range transforms {
		translation, _, _ := transform.Decompose()
		assert.True(t, translation.Equals(positions[i]), "instance %d at %v", i, translation)
	}
}

func TestNewInstanceBatchValidatesArguments(t *testing.T) {
	mesh := newTriangleMesh(t, "Blade")

	_, err := NewInstanceBatch("Bad", mesh, 5, 2)
	assert.True(t, IsKind(err, ErrInvalidArgument))

	_, err = NewInstanceBatch("Bad", mesh, 0, 0)
	assert.True(t, IsKind(err, ErrInvalidArgument))

	_, err = NewInstanceBatch("Bad", nil, 0, 2)
	assert.True(t, IsKind(err, ErrInvalidArgument))
}
