package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualObjectBuildsSections(t *testing.T) {
	object := NewManualObject("Tri")

	// Vertices need an open section.
	assert.Error(t, object.Position(NewVector(0, 0, 0)))

	require.NoError(t, object.Begin("Flat", TopologyTriangleList))
	require.NoError(t, object.Position(NewVector(-1, 0, 0)))
	require.NoError(t, object.Normal(NewVector(0, 0, 1)))
	require.NoError(t, object.TextureCoord(0, 0))
	require.NoError(t, object.Position(NewVector(1, 0, 0)))
	require.NoError(t, object.Position(NewVector(0, 2, 0)))
	require.NoError(t, object.Triangle(0, 1, 2))

	// Sections cannot nest.
	assert.Error(t, object.Begin("Flat", TopologyTriangleList))

	section, err := object.End()
	require.NoError(t, err)
	assert.Equal(t, "Flat", section.MaterialName())
	assert.Equal(t, 1, object.SectionCount())

	bounds := object.BoundingBox()
	assert.True(t, bounds.ContainsPoint(NewVector(-1, 0, 0)))
	assert.True(t, bounds.ContainsPoint(NewVector(0, 2, 0)))
	assert.InDelta(t, 2, object.BoundingRadius(), 1e-9)
}

func TestManualObjectEndValidatesIndices(t *testing.T) {
	object := NewManualObject("Bad")
	require.NoError(t, object.Begin("Flat", TopologyTriangleList))
	require.NoError(t, object.Position(NewVector(0, 0, 0)))
	require.NoError(t, object.Triangle(0, 1, 2))

	_, err := object.End()
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidArgument))
}

func TestManualObjectEndRejectsEmptySection(t *testing.T) {
	object := NewManualObject("Empty")
	require.NoError(t, object.Begin("Flat", TopologyTriangleList))
	_, err := object.End()
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidState))
}

func TestManualObjectConvertToMesh(t *testing.T) {
	object := NewManualObject("Quad")
	require.NoError(t, object.Begin("Checker", TopologyTriangleList))
	for _, position := range []Vector{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1},
	} {
		require.NoError(t, object.Position(position))
	}
	require.NoError(t, object.Quad(0, 1, 2, 3))
	_, err := object.End()
	require.NoError(t, err)

	library := NewLibrary()
	mesh, err := object.ConvertToMesh(library, "QuadMesh")
	require.NoError(t, err)
	assert.Same(t, mesh, library.Mesh("QuadMesh"))

	require.Equal(t, 1, mesh.SubMeshCount())
	subMesh := mesh.SubMesh(0)
	assert.Equal(t, "Checker", subMesh.MaterialName)
	assert.Equal(t, 4, subMesh.VertexData.Count)
	// A quad bakes to two triangles.
	assert.Equal(t, 6, subMesh.IndexData.Count)
	assert.True(t, mesh.Bounds().ContainsPoint(NewVector(-1, -1, 0)))
}

func TestManualObjectConvertRequiresClosedSections(t *testing.T) {
	object := NewManualObject("Open")
	_, err := object.ConvertToMesh(nil, "Nothing")
	assert.True(t, IsKind(err, ErrInvalidState))

	require.NoError(t, object.Begin("Flat", TopologyTriangleList))
	require.NoError(t, object.Position(NewVector(0, 0, 0)))
	_, err = object.ConvertToMesh(nil, "StillOpen")
	assert.True(t, IsKind(err, ErrInvalidState))
}

func TestNewPlaneMeshGeometry(t *testing.T) {
	mesh, err := NewPlaneMesh("Ground", 10, 20, 2, 4, "Grass")
	require.NoError(t, err)
	require.Equal(t, 1, mesh.SubMeshCount())

	subMesh := mesh.SubMesh(0)
	assert.Equal(t, "Grass", subMesh.MaterialName)
	assert.Equal(t, 3*5, subMesh.VertexData.Count)
	assert.Equal(t, 2*4*6, subMesh.IndexData.Count)

	bounds := mesh.Bounds()
	assert.True(t, bounds.Min.Equals(NewVector(-5, 0, -10)))
	assert.True(t, bounds.Max.Equals(NewVector(5, 0, 10)))

	_, err = NewPlaneMesh("Bad", -1, 20, 2, 4, "Grass")
	assert.True(t, IsKind(err, ErrInvalidArgument))
	_, err = NewPlaneMesh("Bad", 10, 20, 0, 4, "Grass")
	assert.True(t, IsKind(err, ErrInvalidArgument))
}

func TestNewCubeMeshGeometry(t *testing.T) {
	mesh, err := NewCubeMesh("Crate", 2, "Wood")
	require.NoError(t, err)

	subMesh := mesh.SubMesh(0)
	// Six faces with four vertices each so normals stay per-face.
	assert.Equal(t, 24, subMesh.VertexData.Count)
	assert.Equal(t, 36, subMesh.IndexData.Count)

	bounds := mesh.Bounds()
	assert.True(t, bounds.Min.Equals(NewVector(-1, -1, -1)))
	assert.True(t, bounds.Max.Equals(NewVector(1, 1, 1)))

	_, err = NewCubeMesh("Bad", 0, "Wood")
	assert.True(t, IsKind(err, ErrInvalidArgument))
}

func TestNewSphereMeshGeometry(t *testing.T) {
	rings, segments := 8, 12
	mesh, err := NewSphereMesh("Ball", 3, rings, segments, "Rubber")
	require.NoError(t, err)

	subMesh := mesh.SubMesh(0)
	assert.Equal(t, (rings+1)*(segments+1), subMesh.VertexData.Count)

	// Every vertex sits on the sphere's surface.
	for i := 0; i < subMesh.VertexData.Count; i++ {
		position, err := subMesh.VertexData.PositionAt(i)
		require.NoError(t, err)
		assert.InDelta(t, 3, position.Magnitude(), 1e-6)
	}
	assert.InDelta(t, 3, mesh.BoundRadius(), 1e-6)

	_, err = NewSphereMesh("Bad", 3, 1, 12, "Rubber")
	assert.True(t, IsKind(err, ErrInvalidArgument))
}
