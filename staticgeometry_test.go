package umbra3d

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticGeometryPartitionsByRegion(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")

	static, err := manager.CreateStaticGeometry("Terrain")
	require.NoError(t, err)
	require.NoError(t, static.SetRegionSize(NewVector(100, 100, 100)))

	identity := NewQuaternionIdentity()
	one := NewVector(1, 1, 1)
	for i, x := range []float64{-150, -120, 0, 20, 150} {
		entity, err := manager.CreateEntityFromMesh(fmt.Sprintf("Rock%d", i), mesh)
		require.NoError(t, err)
		require.NoError(t, static.AddEntity(entity, NewVector(x, 0, 0), identity, one))
	}

	require.NoError(t, static.Build())

	// X positions -150 and -120 share a cell, 0 and 20 share a cell, and 150
	// gets its own: three regions at a 100-unit region size.
	regions := static.Regions()
	require.Len(t, regions, 3)

	total := 0
	for _, region := range regions {
		require.Len(t, region.LodBuckets(), 1)
		for _, materialBucket := range region.LodBuckets()[0].materialBuckets() {
			assert.Equal(t, "BaseWhite", materialBucket.MaterialName())
			for _, bucket := range materialBucket.Buckets() {
				total += bucket.VertexCount()
			}
		}
	}
	assert.Equal(t, 15, total)

	// Each region hangs off its own scene node at the region centre.
	for _, region := range regions {
		require.NotNil(t, region.ParentNode())
	}
}

func TestStaticGeometryRebuildIsDeterministic(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")

	static, err := manager.CreateStaticGeometry("Terrain")
	require.NoError(t, err)
	require.NoError(t, static.SetRegionSize(NewVector(100, 100, 100)))

	identity := NewQuaternionIdentity()
	one := NewVector(1, 1, 1)
	for i, x := range []float64{-150, 0, 150} {
		entity, err := manager.CreateEntityFromMesh(fmt.Sprintf("Rock%d", i), mesh)
		require.NoError(t, err)
		require.NoError(t, static.AddEntity(entity, NewVector(x, 0, 0), identity, one))
	}

	snapshot := func() []string {
		var names []string
		for _, region := range static.Regions() {
			names = append(names, region.Name())
		}
		return names
	}

	require.NoError(t, static.Build())
	first := snapshot()
	require.Len(t, first, 3)

	// Building again without a reset fails.
	err = static.Build()
	require.True(t, IsKind(err, ErrInvalidState))

	// Reset keeps the queue, so a rebuild reproduces the same regions.
	static.Reset()
	require.NoError(t, static.Build())
	assert.Equal(t, first, snapshot())

	// Destroy drops the queue entirely.
	static.Destroy()
	require.NoError(t, static.Build())
	assert.Empty(t, static.Regions())
}

func TestStaticGeometryAddAfterBuildFails(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")

	static, err := manager.CreateStaticGeometry("Props")
	require.NoError(t, err)
	entity, err := manager.CreateEntityFromMesh("Crate", mesh)
	require.NoError(t, err)
	require.NoError(t, static.AddEntity(entity, NewVector(0, 0, 0), NewQuaternionIdentity(), NewVector(1, 1, 1)))
	require.NoError(t, static.Build())

	err = static.AddEntity(entity, NewVector(5, 0, 0), NewQuaternionIdentity(), NewVector(1, 1, 1))
	assert.True(t, IsKind(err, ErrInvalidState))
}

func newPanelMesh(t *testing.T, manager *SceneManager, name string) *Mesh {
	t.Helper()

	builder := NewManualObject(name)
	require.NoError(t, builder.Begin("BaseWhite", TopologyTriangleList))
	require.NoError(t, builder.Position(NewVector(0, 0, 0)))
	require.NoError(t, builder.Normal(NewVector(0, 0, 1)))
	require.NoError(t, builder.TextureCoord(0, 0))
	require.NoError(t, builder.Position(NewVector(1, 0, 0)))
	require.NoError(t, builder.Normal(NewVector(0, 0, 1)))
	require.NoError(t, builder.TextureCoord(1, 0))
	require.NoError(t, builder.Position(NewVector(0, 1, 0)))
	require.NoError(t, builder.Normal(NewVector(0, 0, 1)))
	require.NoError(t, builder.TextureCoord(0, 1))
	require.NoError(t, builder.Triangle(0, 1, 2))
	_, err := builder.End()
	require.NoError(t, err)
	mesh, err := builder.ConvertToMesh(manager.Library(), name)
	require.NoError(t, err)
	return mesh
}

func TestStaticGeometryBakeCarriesNormalsAndUVs(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newPanelMesh(t, manager, "Panel")

	entity, err := manager.CreateEntityFromMesh("Panel", mesh)
	require.NoError(t, err)

	static, err := manager.CreateStaticGeometry("Props")
	require.NoError(t, err)
	tilt := NewQuaternionAxisAngle(NewVector(1, 0, 0), math.Pi/2)
	require.NoError(t, static.AddEntity(entity, NewVector(0, 0, 0), tilt, NewVector(1, 1, 1)))
	require.NoError(t, static.Build())

	regions := static.Regions()
	require.Len(t, regions, 1)
	materialBuckets := regions[0].LodBuckets()[0].materialBuckets()
	require.Len(t, materialBuckets, 1)
	require.Len(t, materialBuckets[0].Buckets(), 1)

	var op RenderOperation
	materialBuckets[0].Buckets()[0].RenderOperation(&op)
	require.NotNil(t, op.VertexData)
	require.Equal(t, 3, op.VertexData.Count)

	// The baked declaration keeps normals and texture coordinates: normals
	// rotated with the queued transform, UVs verbatim.
	normal, err := op.VertexData.NormalAt(0)
	require.NoError(t, err)
	assert.InDelta(t, 0, normal.Z, 1e-6)
	assert.InDelta(t, 1, math.Abs(normal.Y), 1e-6)
	u, v, err := op.VertexData.UVAt(2, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, u, 1e-6)
	assert.InDelta(t, 1, v, 1e-6)
}

func TestStaticGeometryKeepsVertexFormatsApart(t *testing.T) {
	manager := NewSceneManager("Test")
	panel := newPanelMesh(t, manager, "Panel")
	plain := newTriangleMesh(t, "Plain")

	first, err := manager.CreateEntityFromMesh("First", panel)
	require.NoError(t, err)
	second, err := manager.CreateEntityFromMesh("Second", plain)
	require.NoError(t, err)

	static, err := manager.CreateStaticGeometry("Props")
	require.NoError(t, err)
	identity := NewQuaternionIdentity()
	one := NewVector(1, 1, 1)
	require.NoError(t, static.AddEntity(first, NewVector(0, 0, 0), identity, one))
	require.NoError(t, static.AddEntity(second, NewVector(1, 0, 0), identity, one))
	require.NoError(t, static.Build())

	// Both submeshes use BaseWhite, but only one carries normals and UVs, so
	// they land in separate buckets rather than merging declarations.
	regions := static.Regions()
	require.Len(t, regions, 1)
	materialBuckets := regions[0].LodBuckets()[0].materialBuckets()
	require.Len(t, materialBuckets, 2)
	for _, materialBucket := range materialBuckets {
		assert.Equal(t, "BaseWhite", materialBucket.MaterialName())
	}
}

func TestStaticRegionCastsShadowVolumes(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newShadowCubeMesh(t, "Cube")
	entity, err := manager.CreateEntityFromMesh("Block", mesh)
	require.NoError(t, err)

	static, err := manager.CreateStaticGeometry("Walls")
	require.NoError(t, err)
	static.SetCastShadows(true)
	require.NoError(t, static.AddEntity(entity, NewVector(0, 0, 0), NewQuaternionIdentity(), NewVector(1, 1, 1)))
	require.NoError(t, static.Build())

	sun, err := manager.CreateLight("Sun")
	require.NoError(t, err)
	sun.SetType(LightDirectional)
	sun.SetDirection(NewVector(0, 0, -1))
	require.NoError(t, manager.RootSceneNode().AttachObject(sun))
	manager.RootSceneNode().Update(true, false)

	regions := static.Regions()
	require.Len(t, regions, 1)
	region := regions[0]
	assert.True(t, region.CastShadows())
	require.Same(t, region, region.ShadowCaster())

	shadows := region.ShadowVolumeRenderables(sun, 10)
	require.Len(t, shadows, 1)
	// Same volume shape as an entity casting the cube: four silhouette quads
	// plus light and dark caps.
	assert.Equal(t, 36, shadows[0].VertexCount())

	again := region.ShadowVolumeRenderables(sun, 10)
	require.Len(t, again, 1)
	assert.Same(t, shadows[0], again[0])

	bounds := region.ShadowVolumeBounds(sun, 10)
	assert.InDelta(t, -11, bounds.Min.Z, 1e-9)
	assert.InDelta(t, 1, bounds.Max.Z, 1e-9)
}

func TestStaticGeometryRegistry(t *testing.T) {
	manager := NewSceneManager("Test")

	static, err := manager.CreateStaticGeometry("Terrain")
	require.NoError(t, err)

	_, err = manager.CreateStaticGeometry("Terrain")
	assert.True(t, IsKind(err, ErrDuplicateItem))

	found, err := manager.StaticGeometry("Terrain")
	require.NoError(t, err)
	assert.Same(t, static, found)

	require.NoError(t, manager.DestroyStaticGeometry("Terrain"))
	_, err = manager.StaticGeometry("Terrain")
	assert.True(t, IsKind(err, ErrItemNotFound))
}
