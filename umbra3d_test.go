package umbra3d

import (
	"github.com/stretchr/testify/require"
	"testing"
)

// newTriangleMesh builds a one-submesh mesh holding a single triangle on
// the XY plane, for tests that need real geometry without a file.
func newTriangleMesh(t *testing.T, name string) *Mesh {
	t.Helper()

	mesh := NewMesh(name)
	subMesh := mesh.CreateSubMesh()
	subMesh.MaterialName = "BaseWhite"
	subMesh.UseSharedVertices = false

	data := NewVertexData()
	data.Declaration.AddElement(0, 0, VETFloat3, SemanticPosition, 0)
	buffer := NewHardwareVertexBuffer(12, 3, BufferUsageStaticWriteOnly)
	data.Binding.SetBinding(0, buffer)
	data.Count = 3
	subMesh.VertexData = data

	positions := []Vector{
		NewVector(-0.5, -0.5, 0),
		NewVector(0.5, -0.5, 0),
		NewVector(0, 0.5, 0),
	}
	for i, position := range positions {
		require.NoError(t, data.SetPositionAt(i, position))
	}

	indexBuffer := NewHardwareIndexBuffer(IndexType16, 3, BufferUsageStaticWriteOnly)
	for i := 0; i < 3; i++ {
		indexBuffer.SetIndex(i, uint32(i))
	}
	subMesh.IndexData = NewIndexData(indexBuffer)

	mesh.SetBounds(NewBox(NewVector(-0.5, -0.5, 0), NewVector(0.5, 0.5, 0)), 0)
	return mesh
}

// newSkinnedMesh builds a triangle mesh with a two-bone skeleton and a
// one-second animation rotating the root bone's child.
func newSkinnedMesh(t *testing.T, name string) (*Mesh, *Skeleton) {
	t.Helper()

	mesh := newTriangleMesh(t, name)

	skeleton := NewSkeleton(name + "/Skeleton")
	root, err := skeleton.CreateBoneWithHandle("Root", 0)
	require.NoError(t, err)
	arm, err := skeleton.CreateBoneWithHandle("Arm", 1)
	require.NoError(t, err)
	arm.Node.SetPosition(NewVector(0, 1, 0))
	require.NoError(t, root.Node.AddChild(&arm.Node))
	skeleton.SetBindingPose()

	animation, err := skeleton.CreateAnimation("Run", 1)
	require.NoError(t, err)
	track, err := animation.CreateNodeTrack(1)
	require.NoError(t, err)
	track.CreateKeyFrame(0)
	last := track.CreateKeyFrame(1)
	last.Translate = NewVector(0, 1, 0)
	last.Rotation = NewQuaternionAxisAngle(NewVector(0, 0, 1), ToRadians(90))

	for i := 0; i < 3; i++ {
		mesh.SubMeshes()[0].AddBoneAssignment(VertexBoneAssignment{
			VertexIndex: uint32(i),
			BoneIndex:   uint16(i % 2),
			Weight:      1,
		})
	}

	mesh.SetSkeleton(skeleton)
	return mesh, skeleton
}

// newTestCamera builds a camera without backing textures, positioned at the
// world origin looking down -Z through a scene node.
func newTestCamera(t *testing.T, manager *SceneManager, name string) *Camera {
	t.Helper()
	camera, err := manager.CreateCamera(name, 0, 0)
	require.NoError(t, err)
	camera.SetAspectRatio(1)
	node, err := manager.RootSceneNode().CreateChildSceneNode(name + "/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(camera))
	return camera
}
