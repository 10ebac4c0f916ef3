package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitySubEntitiesMirrorSubMeshes(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")
	entity, err := manager.CreateEntityFromMesh("Tri", mesh)
	require.NoError(t, err)

	require.Len(t, entity.SubEntities(), 1)
	sub := entity.SubEntity(0)
	require.NotNil(t, sub)
	assert.Equal(t, "BaseWhite", sub.MaterialName())
	assert.Nil(t, entity.SubEntity(5))
}

func TestSkinnedEntityAnimates(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")
	entity, err := manager.CreateEntityFromMesh("Figure", mesh)
	require.NoError(t, err)
	require.True(t, entity.HasSkeleton())

	state, err := entity.AnimationState("Run")
	require.NoError(t, err)
	state.SetEnabled(true)

	entity.UpdateAnimation()
	rest := append([]Matrix4{}, entity.BoneMatrices()...)
	require.Len(t, rest, 2)

	state.AddTime(0.5)
	entity.UpdateAnimation()
	posed := entity.BoneMatrices()
	require.Len(t, posed, 2)

	// The root bone is untracked and stays at rest; the arm moves.
	assert.True(t, posed[0].Equals(rest[0]))
	assert.False(t, posed[1].Equals(rest[1]))
}

func TestUpdateAnimationSkipsWhenStatesUnchanged(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")
	entity, err := manager.CreateEntityFromMesh("Figure", mesh)
	require.NoError(t, err)

	state, err := entity.AnimationState("Run")
	require.NoError(t, err)
	state.SetEnabled(true)
	state.AddTime(0.25)

	entity.UpdateAnimation()
	firstCounter := entity.lastAnimationCounter
	first := append([]Matrix4{}, entity.BoneMatrices()...)

	// A second update with untouched states is a no-op.
	entity.UpdateAnimation()
	assert.Equal(t, firstCounter, entity.lastAnimationCounter)
	for i, matrix := range entity.BoneMatrices() {
		assert.True(t, matrix.Equals(first[i]), "bone %d moved without a state change", i)
	}

	// Touching a state makes the next update recompute.
	state.AddTime(0.25)
	entity.UpdateAnimation()
	assert.NotEqual(t, firstCounter, entity.lastAnimationCounter)
	assert.False(t, entity.BoneMatrices()[1].Equals(first[1]))
}

func TestSharedSkeletonInstancePosesTogether(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")

	leader, err := manager.CreateEntityFromMesh("Leader", mesh)
	require.NoError(t, err)
	follower, err := manager.CreateEntityFromMesh("Follower", mesh)
	require.NoError(t, err)

	require.NoError(t, follower.ShareSkeletonInstanceWith(leader))
	assert.True(t, leader.SharesSkeletonInstance())
	assert.True(t, follower.SharesSkeletonInstance())
	assert.Same(t, leader.Skeleton(), follower.Skeleton())

	state, err := leader.AnimationState("Run")
	require.NoError(t, err)
	state.SetEnabled(true)
	state.SetTimePosition(0.5)

	leader.UpdateAnimation()
	follower.UpdateAnimation()

	leaderBones := leader.BoneMatrices()
	followerBones := follower.BoneMatrices()
	require.Len(t, followerBones, len(leaderBones))
	for i := range leaderBones {
		assert.True(t, leaderBones[i].Equals(followerBones[i]), "bone %d differs between sharing entities", i)
	}

	follower.StopSharingSkeletonInstance()
	assert.False(t, follower.SharesSkeletonInstance())
	assert.False(t, leader.SharesSkeletonInstance())
	assert.NotSame(t, leader.Skeleton(), follower.Skeleton())

	// The restored private state keeps the shared pose's settings.
	restored, err := follower.AnimationState("Run")
	require.NoError(t, err)
	assert.True(t, restored.Enabled())
	assert.InDelta(t, 0.5, restored.TimePosition(), 1e-9)
}

func TestShareSkeletonRequiresMatchingSkeleton(t *testing.T) {
	manager := NewSceneManager("Test")
	skinnedMesh, _ := newSkinnedMesh(t, "Figure")
	plainMesh := newTriangleMesh(t, "Prop")

	skinned, err := manager.CreateEntityFromMesh("Skinned", skinnedMesh)
	require.NoError(t, err)
	plain, err := manager.CreateEntityFromMesh("Plain", plainMesh)
	require.NoError(t, err)

	err = plain.ShareSkeletonInstanceWith(skinned)
	assert.True(t, IsKind(err, ErrInvalidArgument))
}

func TestAttachObjectToBone(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")
	entity, err := manager.CreateEntityFromMesh("Figure", mesh)
	require.NoError(t, err)

	prop, err := manager.CreateEntityFromMesh("Sword", newTriangleMesh(t, "Sword"))
	require.NoError(t, err)

	tagPoint, err := entity.AttachObjectToBone("Arm", prop, NewQuaternionIdentity(), NewVector(0, 0, 0))
	require.NoError(t, err)
	require.NotNil(t, tagPoint)
	assert.True(t, prop.AttachedToTagPoint())

	_, err = entity.AttachObjectToBone("NoSuchBone", prop, NewQuaternionIdentity(), NewVector(0, 0, 0))
	assert.Error(t, err)

	detached, err := entity.DetachObjectFromBone("Sword")
	require.NoError(t, err)
	assert.Equal(t, "Sword", detached.Name())
	assert.False(t, prop.AttachedToTagPoint())
}

func TestSoftwareSkinningPosesVertices(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")
	entity, err := manager.CreateEntityFromMesh("Figure", mesh)
	require.NoError(t, err)
	require.True(t, entity.SoftwareSkinning())
	sub := entity.SubEntity(0)

	state, err := entity.AnimationState("Run")
	require.NoError(t, err)
	state.SetEnabled(true)
	state.AddTime(0.5)
	entity.UpdateAnimation()

	base := []Vector{NewVector(-0.5, -0.5, 0), NewVector(0.5, -0.5, 0), NewVector(0, 0.5, 0)}
	geometry := sub.geometry()
	require.NotNil(t, geometry)
	require.NotSame(t, mesh.SubMeshes()[0].VertexData, geometry)

	// Vertices bound to the untracked root stay put; the arm vertex follows
	// its bone's blend matrix.
	for _, i := range []int{0, 2} {
		position, err := geometry.PositionAt(i)
		require.NoError(t, err)
		assert.True(t, position.Equals(base[i]), "vertex %d moved without its bone", i)
	}
	armVertex, err := geometry.PositionAt(1)
	require.NoError(t, err)
	expected := entity.BoneMatrices()[1].MultVec(base[1])
	assert.True(t, armVertex.Equals(expected))
	assert.False(t, armVertex.Equals(base[1]))
}

func TestBoneAttachmentFollowsBonePose(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")
	entity, err := manager.CreateEntityFromMesh("Figure", mesh)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Figure/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(entity))

	prop, err := manager.CreateEntityFromMesh("Sword", newTriangleMesh(t, "Sword"))
	require.NoError(t, err)
	_, err = entity.AttachObjectToBone("Arm", prop, NewQuaternionIdentity(), NewVector(0, 0, 0))
	require.NoError(t, err)

	rest := prop.WorldBoundingBox(true)

	state, err := entity.AnimationState("Run")
	require.NoError(t, err)
	state.SetEnabled(true)
	state.AddTime(0.5)
	entity.UpdateAnimation()

	posed := prop.WorldBoundingBox(true)
	assert.Greater(t, posed.Min.Y, rest.Min.Y,
		"posing the bone should carry the attachment upward")
}

func TestAttachObjectToBoneDetachesFromSceneNode(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh, _ := newSkinnedMesh(t, "Figure")
	entity, err := manager.CreateEntityFromMesh("Figure", mesh)
	require.NoError(t, err)

	prop, err := manager.CreateEntityFromMesh("Sword", newTriangleMesh(t, "Sword"))
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Sword/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(prop))

	_, err = entity.AttachObjectToBone("Arm", prop, NewQuaternionIdentity(), NewVector(0, 0, 0))
	require.NoError(t, err)
	assert.True(t, prop.AttachedToTagPoint())
	assert.Empty(t, node.AttachedObjects())
}

func TestManualLodLevelSwapsRenderedMesh(t *testing.T) {
	manager := NewSceneManager("Test")
	low := newTriangleMesh(t, "Hut/Low")
	require.NoError(t, manager.Library().AddMesh(low))

	high := newTriangleMesh(t, "Hut")
	require.NoError(t, high.AddManualLodLevel(40, "Hut/Low"))
	require.NoError(t, manager.Library().AddMesh(high))

	entity, err := manager.CreateEntityFromMesh("Hut", high)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Hut/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(entity))
	camera := newTestCamera(t, manager, "Main")
	manager.RootSceneNode().Update(true, false)

	collect := func() []Renderable {
		queue := NewRenderQueue()
		entity.NotifyCamera(camera)
		entity.UpdateRenderQueue(queue, camera)
		var out []Renderable
		queue.Visit(func(group *RenderQueueGroup) {
			group.Visit(func(renderable Renderable) { out = append(out, renderable) })
		})
		return out
	}

	// Close up, the entity's own subentities render.
	near := collect()
	require.Len(t, near, 1)
	assert.Same(t, entity.SubEntity(0), near[0])

	// Past the detail value, the replacement mesh's subentities render.
	node.SetPosition(NewVector(0, 0, -100))
	manager.RootSceneNode().Update(true, false)
	far := collect()
	require.Len(t, far, 1)
	assert.Equal(t, 1, entity.MeshLodIndex())
	assert.NotSame(t, entity.SubEntity(0), far[0])
	lodSub, ok := far[0].(*SubEntity)
	require.True(t, ok)
	assert.Same(t, low, lodSub.SubMesh().Parent())
}

func TestSetMeshLodBiasValidatesFactor(t *testing.T) {
	manager := NewSceneManager("Test")
	entity, err := manager.CreateEntityFromMesh("Tri", newTriangleMesh(t, "Triangle"))
	require.NoError(t, err)

	assert.True(t, IsKind(entity.SetMeshLodBias(0, 0, 99), ErrInvalidArgument))
	assert.True(t, IsKind(entity.SetMaterialLodBias(-1), ErrInvalidArgument))
	assert.NoError(t, entity.SetMeshLodBias(2, 0, 3))
}
