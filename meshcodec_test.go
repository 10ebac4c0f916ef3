package umbra3d

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshCodecRoundTripIsByteIdentical(t *testing.T) {
	mesh := newTriangleMesh(t, "Original")

	var first bytes.Buffer
	require.NoError(t, EncodeMesh(&first, mesh))

	decoded, err := DecodeMesh(bytes.NewReader(first.Bytes()), "Decoded")
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, EncodeMesh(&second, decoded))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestMeshCodecPreservesGeometry(t *testing.T) {
	mesh := newTriangleMesh(t, "Original")

	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, mesh))
	decoded, err := DecodeMesh(&buf, "Decoded")
	require.NoError(t, err)

	require.Len(t, decoded.SubMeshes(), 1)
	sub := decoded.SubMeshes()[0]
	assert.Equal(t, "BaseWhite", sub.MaterialName)
	require.NotNil(t, sub.VertexData)
	assert.Equal(t, 3, sub.VertexData.Count)

	original := mesh.SubMeshes()[0].VertexData
	for i := 0; i < 3; i++ {
		want, err := original.PositionAt(i)
		require.NoError(t, err)
		got, err := sub.VertexData.PositionAt(i)
		require.NoError(t, err)
		assert.True(t, got.Equals(want), "vertex %d: got %v want %v", i, got, want)
	}

	require.NotNil(t, sub.IndexData)
	assert.Equal(t, 3, sub.IndexData.Count)

	assert.True(t, decoded.Bounds().Min.Equals(mesh.Bounds().Min))
	assert.True(t, decoded.Bounds().Max.Equals(mesh.Bounds().Max))
	assert.InDelta(t, mesh.BoundRadius(), decoded.BoundRadius(), 1e-4)
}

func TestMeshCodecPreservesSkeletonAndAssignments(t *testing.T) {
	mesh, _ := newSkinnedMesh(t, "Figure")

	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, mesh))
	decoded, err := DecodeMesh(&buf, "Decoded")
	require.NoError(t, err)

	assert.Equal(t, mesh.SkeletonName(), decoded.SkeletonName())

	originalAssignments := mesh.SubMeshes()[0].BoneAssignments()
	decodedAssignments := decoded.SubMeshes()[0].BoneAssignments()
	require.Len(t, decodedAssignments, len(originalAssignments))
	for i, assignment := range originalAssignments {
		assert.Equal(t, assignment.VertexIndex, decodedAssignments[i].VertexIndex)
		assert.Equal(t, assignment.BoneIndex, decodedAssignments[i].BoneIndex)
		assert.InDelta(t, assignment.Weight, decodedAssignments[i].Weight, 1e-6)
	}
}

func TestMeshCodecPreservesSubMeshNameTable(t *testing.T) {
	mesh := NewMesh("Original")
	for _, name := range []string{"Hull", "Turret", "Tracks"} {
		subMesh, err := mesh.CreateSubMeshNamed(name)
		require.NoError(t, err)
		subMesh.MaterialName = name + "Material"
		subMesh.UseSharedVertices = false
	}
	mesh.SetBounds(NewBox(NewVector(-1, -1, -1), NewVector(1, 1, 1)), 0)

	var first bytes.Buffer
	require.NoError(t, EncodeMesh(&first, mesh))
	decoded, err := DecodeMesh(bytes.NewReader(first.Bytes()), "Decoded")
	require.NoError(t, err)

	// The name table survives a re-encode byte for byte.
	var second bytes.Buffer
	require.NoError(t, EncodeMesh(&second, decoded))
	assert.Equal(t, first.Bytes(), second.Bytes())

	for name, wantIndex := range map[string]int{"Hull": 0, "Turret": 1, "Tracks": 2} {
		index, err := decoded.SubMeshIndex(name)
		require.NoError(t, err)
		assert.Equal(t, wantIndex, index)
	}
	_, err = decoded.SubMeshIndex("Cannon")
	assert.True(t, IsKind(err, ErrItemNotFound))
}

func TestDecodeMeshRejectsGarbage(t *testing.T) {
	_, err := DecodeMesh(bytes.NewReader([]byte("not a mesh file")), "Bad")
	assert.Error(t, err)

	_, err = DecodeMesh(bytes.NewReader(nil), "Empty")
	assert.Error(t, err)
}

func TestEncodeMeshRejectsNil(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeMesh(&buf, nil)
	assert.True(t, IsKind(err, ErrInvalidArgument))
}
