package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShadowCubeMesh(t *testing.T, name string) *Mesh {
	t.Helper()
	mesh, err := NewCubeMesh(name, 2, "BaseWhite")
	require.NoError(t, err)
	mesh.AutoBuildEdgeLists = true
	return mesh
}

func TestEdgeListConnectivity(t *testing.T) {
	mesh := newShadowCubeMesh(t, "Cube")
	edgeData := mesh.EdgeList(0)
	require.NotNil(t, edgeData)

	// Twelve triangles, five unique edges per face (the faces do not share
	// vertices, so face borders stay degenerate).
	assert.Len(t, edgeData.Triangles, 12)
	assert.Len(t, edgeData.Edges, 30)

	degenerate := 0
	for _, edge := range edgeData.Edges {
		if edge.Degenerate {
			degenerate++
		}
	}
	assert.Equal(t, 24, degenerate)
}

func TestEdgeListKeepsPrivateVertexSetsApart(t *testing.T) {
	// Two submeshes with private vertex buffers both index vertices 0..2;
	// their edges must not pair up just because the raw indices collide.
	mesh := NewMesh("Pair")
	for s := 0; s < 2; s++ {
		subMesh := mesh.CreateSubMesh()
		subMesh.MaterialName = "BaseWhite"
		subMesh.UseSharedVertices = false

		data := NewVertexData()
		data.Declaration.AddElement(0, 0, VETFloat3, SemanticPosition, 0)
		buffer := NewHardwareVertexBuffer(12, 3, BufferUsageStaticWriteOnly)
		data.Binding.SetBinding(0, buffer)
		data.Count = 3
		subMesh.VertexData = data

		offset := float64(s * 10)
		require.NoError(t, data.SetPositionAt(0, NewVector(offset, 0, 0)))
		require.NoError(t, data.SetPositionAt(1, NewVector(offset+1, 0, 0)))
		require.NoError(t, data.SetPositionAt(2, NewVector(offset, 1, 0)))

		indexBuffer := NewHardwareIndexBuffer(IndexType16, 3, BufferUsageStaticWriteOnly)
		for i := 0; i < 3; i++ {
			indexBuffer.SetIndex(i, uint32(i))
		}
		subMesh.IndexData = NewIndexData(indexBuffer)
	}
	mesh.AutoBuildEdgeLists = true

	edgeData := mesh.EdgeList(0)
	require.NotNil(t, edgeData)
	require.Len(t, edgeData.Triangles, 2)
	require.Len(t, edgeData.Edges, 6)
	for _, edge := range edgeData.Edges {
		assert.True(t, edge.Degenerate)
	}

	// The rebased indices resolve to each submesh's own positions.
	position, ok := edgeData.VertexPosition(edgeData.Triangles[1].Indexes[0])
	require.True(t, ok)
	assert.InDelta(t, 10, position.X, 1e-9)
}

func TestEdgeListIsLazyAndOptIn(t *testing.T) {
	mesh, err := NewCubeMesh("Plain", 2, "BaseWhite")
	require.NoError(t, err)
	assert.Nil(t, mesh.EdgeList(0))
	assert.Nil(t, mesh.EdgeList(5))

	mesh.AutoBuildEdgeLists = true
	first := mesh.EdgeList(0)
	require.NotNil(t, first)
	assert.Same(t, first, mesh.EdgeList(0))
}

func TestSilhouetteEdgesSeparateFacingTriangles(t *testing.T) {
	mesh := newShadowCubeMesh(t, "Cube")
	edgeData := mesh.EdgeList(0)
	require.NotNil(t, edgeData)

	// A directional light from +Z: only the +Z face's triangles face it, so
	// the silhouette is that face's four border edges.
	silhouette := edgeData.SilhouetteEdges(Vector{Z: 1})
	assert.Len(t, silhouette, 4)
	for _, edge := range silhouette {
		assert.True(t, edge.Degenerate)
	}

	// A point light in front of the cube produces the same silhouette.
	silhouette = edgeData.SilhouetteEdges(Vector{Z: 5, W: 1})
	assert.Len(t, silhouette, 4)
}

func TestEntityShadowVolumeExtrusion(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newShadowCubeMesh(t, "Cube")
	entity, err := manager.CreateEntityFromMesh("Caster", mesh)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Caster/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(entity))

	sun, err := manager.CreateLight("Sun")
	require.NoError(t, err)
	sun.SetType(LightDirectional)
	sun.SetDirection(NewVector(0, 0, -1))
	require.NoError(t, manager.RootSceneNode().AttachObject(sun))
	manager.RootSceneNode().Update(true, false)

	shadows := entity.ShadowVolumeRenderables(sun, 10)
	require.Len(t, shadows, 1)
	// Four silhouette quads of two triangles each, plus light and dark caps
	// over the two light-facing triangles.
	assert.Equal(t, 36, shadows[0].VertexCount())

	// Re-extruding for the same light reuses the cached renderable.
	again := entity.ShadowVolumeRenderables(sun, 10)
	require.Len(t, again, 1)
	assert.Same(t, shadows[0], again[0])
	assert.Equal(t, 36, again[0].VertexCount())

	bounds := entity.ShadowVolumeBounds(sun, 10)
	assert.InDelta(t, -11, bounds.Min.Z, 1e-9)
	assert.InDelta(t, 1, bounds.Max.Z, 1e-9)
}

func TestRenderSceneQueuesShadowVolumes(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")

	mesh := newShadowCubeMesh(t, "Cube")
	entity, err := manager.CreateEntityFromMesh("Caster", mesh)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Caster/Node")
	require.NoError(t, err)
	node.SetPosition(NewVector(0, 0, -10))
	require.NoError(t, node.AttachObject(entity))

	sun, err := manager.CreateLight("Sun")
	require.NoError(t, err)
	sun.SetType(LightDirectional)
	sun.SetDirection(NewVector(0, 0, -1))
	require.NoError(t, manager.RootSceneNode().AttachObject(sun))

	manager.SetShadowTechnique(ShadowTechniqueStencilAdditive)
	manager.SetShadowDirectionalLightExtrusionDistance(50)
	manager.RenderScene(camera)

	assert.Equal(t, 1, manager.Statistics().ShadowCasters)
	// One subentity plus one shadow volume renderable.
	assert.Equal(t, 2, manager.RenderQueue().Count())

	manager.SetShadowTechnique(ShadowTechniqueNone)
	manager.RenderScene(camera)
	assert.Equal(t, 0, manager.Statistics().ShadowCasters)
	assert.Equal(t, 1, manager.RenderQueue().Count())
}
