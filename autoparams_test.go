package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildShadedScene returns a camera and two subentity renderables placed at
// different world positions, with the scene graph brought up to date.
func buildShadedScene(t *testing.T) (*SceneManager, *Camera, Renderable, Renderable) {
	t.Helper()
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)

	mesh := newTriangleMesh(t, "Triangle")
	place := func(name string, position Vector) Renderable {
		entity, err := manager.CreateEntityFromMesh(name, mesh)
		require.NoError(t, err)
		node, err := manager.RootSceneNode().CreateChildSceneNode(name + "/Node")
		require.NoError(t, err)
		node.SetPosition(position)
		require.NoError(t, node.AttachObject(entity))
		return entity.SubEntity(0)
	}
	first := place("First", NewVector(2, 3, -4))
	second := place("Second", NewVector(-7, 0, -20))
	manager.RootSceneNode().Update(true, false)
	return manager, camera, first, second
}

func TestWorldViewMatrixComposition(t *testing.T) {
	_, camera, renderable, other := buildShadedScene(t)

	source := NewAutoParamDataSource()
	source.SetCurrentCamera(camera)
	source.SetCurrentRenderable(renderable)

	world := renderable.WorldTransforms(nil)[0]
	expected := world.Mult(camera.ViewMatrix())
	assert.True(t, source.WorldViewMatrix().Equals(expected))
	assert.True(t, source.WorldViewProjMatrix().Equals(expected.Mult(camera.ProjectionMatrix())))

	// Swapping the renderable invalidates the cached composites.
	source.SetCurrentRenderable(other)
	otherWorld := other.WorldTransforms(nil)[0]
	otherExpected := otherWorld.Mult(camera.ViewMatrix())
	assert.True(t, source.WorldViewMatrix().Equals(otherExpected))
	assert.False(t, source.WorldViewMatrix().Equals(expected))
}

func TestAutoParamSetterOrderIrrelevant(t *testing.T) {
	_, camera, renderable, _ := buildShadedScene(t)

	fog := FogSettings{Mode: FogLinear, Color: NewColor(0.5, 0.5, 0.5, 1), Start: 10, End: 90}
	ambient := NewColor(0.1, 0.2, 0.3, 1)

	forward := NewAutoParamDataSource()
	forward.SetCurrentCamera(camera)
	forward.SetCurrentRenderable(renderable)
	forward.SetAmbientLight(ambient)
	forward.SetFog(fog)
	forward.SetElapsedTime(2)

	reversed := NewAutoParamDataSource()
	reversed.SetElapsedTime(2)
	reversed.SetFog(fog)
	reversed.SetAmbientLight(ambient)
	reversed.SetCurrentRenderable(renderable)
	reversed.SetCurrentCamera(camera)

	assert.True(t, forward.WorldViewProjMatrix().Equals(reversed.WorldViewProjMatrix()))
	assert.True(t, forward.WorldMatrix().Equals(reversed.WorldMatrix()))
	assert.Equal(t, forward.CameraPosition(), reversed.CameraPosition())
}

func TestUpdateAutoConstantsResolvesBindings(t *testing.T) {
	manager, camera, renderable, _ := buildShadedScene(t)

	light, err := manager.CreateLight("Key")
	require.NoError(t, err)
	light.SetType(LightPoint)
	light.SetPosition(NewVector(0, 10, 0))
	light.SetDiffuse(NewColor(1, 0.5, 0.25, 1))
	node, err := manager.RootSceneNode().CreateChildSceneNode("Key/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(light))
	manager.RootSceneNode().Update(true, false)

	source := NewAutoParamDataSource()
	source.SetCurrentCamera(camera)
	source.SetCurrentRenderable(renderable)
	source.SetCurrentLights(LightList{light})
	source.SetAmbientLight(NewColor(0.2, 0.2, 0.2, 1))
	source.SetFog(FogSettings{Mode: FogLinear, Start: 10, End: 60})
	source.SetElapsedTime(3)

	params := NewGpuProgramParameters()
	params.SetNamedAutoConstant("worldViewProj", ACTWorldViewProjMatrix, 0)
	params.SetNamedAutoConstant("ambient", ACTAmbientLightColor, 0)
	params.SetNamedAutoConstant("lightDiffuse0", ACTLightDiffuseColor, 0)
	params.SetNamedAutoConstant("lightDiffuse1", ACTLightDiffuseColor, 1)
	params.SetNamedAutoConstant("fogParams", ACTFogParams, 0)
	params.SetNamedAutoConstantReal("time", ACTTime, 0.5)
	require.Equal(t, 6, params.AutoConstantCount())

	params.UpdateAutoConstants(source)

	matrix, ok := params.NamedConstant("worldViewProj")
	require.True(t, ok)
	assert.Len(t, matrix, 16)

	ambient, ok := params.NamedConstant("ambient")
	require.True(t, ok)
	assert.Equal(t, []float32{0.2, 0.2, 0.2, 1}, ambient)

	diffuse, ok := params.NamedConstant("lightDiffuse0")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0.5, 0.25, 1}, diffuse)

	// Bindings past the light list fall back to black.
	missing, ok := params.NamedConstant("lightDiffuse1")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0, 1}, missing)

	fogParams, ok := params.NamedConstant("fogParams")
	require.True(t, ok)
	require.Len(t, fogParams, 4)
	assert.InDelta(t, 10, fogParams[1], 1e-6)
	assert.InDelta(t, 60, fogParams[2], 1e-6)
	assert.InDelta(t, 0.02, fogParams[3], 1e-6)

	scaled, ok := params.NamedConstant("time")
	require.True(t, ok)
	require.Len(t, scaled, 1)
	assert.InDelta(t, 1.5, scaled[0], 1e-6)
}

func TestCameraRelativeRenderingRebasesWorld(t *testing.T) {
	manager, camera, renderable, _ := buildShadedScene(t)
	camera.ParentNode().SetPosition(NewVector(100, 20, 30))
	manager.RootSceneNode().Update(true, false)

	absolute := NewAutoParamDataSource()
	absolute.SetCurrentCamera(camera)
	absolute.SetCurrentRenderable(renderable)

	relative := NewAutoParamDataSource()
	relative.SetCameraRelativeRendering(true)
	relative.SetCurrentCamera(camera)
	relative.SetCurrentRenderable(renderable)

	// The rebased world matrix shifts by the camera position and the camera
	// sits at the origin of rendering space.
	world := renderable.WorldTransforms(nil)[0]
	rebased := relative.WorldMatrix()
	assert.InDelta(t, world[3][0]-100, rebased[3][0], 1e-9)
	assert.InDelta(t, world[3][1]-20, rebased[3][1], 1e-9)
	assert.InDelta(t, world[3][2]-30, rebased[3][2], 1e-9)
	assert.True(t, relative.CameraPosition().IsZero())

	// Rebasing cancels out of the composed world-view matrix.
	assert.True(t, relative.WorldViewMatrix().Equals(absolute.WorldViewMatrix()))
}

func TestUpdateAutoConstantsResolvesFrameStateBindings(t *testing.T) {
	_, camera, renderable, _ := buildShadedScene(t)

	source := NewAutoParamDataSource()
	source.SetCurrentCamera(camera)
	source.SetCurrentRenderable(renderable)
	source.SetViewportSize(640, 360)
	source.SetTextureSize(1, 256, 128)
	source.SetShadowDepthRange(1, 51)
	source.SetElapsedTime(2)
	source.SetFrameTime(0.25)

	params := NewGpuProgramParameters()
	params.SetNamedAutoConstant("worldT", ACTTransposeWorldMatrix, 0)
	params.SetNamedAutoConstant("viewport", ACTViewportSize, 0)
	params.SetNamedAutoConstant("texSize", ACTTextureSize, 1)
	params.SetNamedAutoConstant("invTexSize", ACTInverseTextureSize, 1)
	params.SetNamedAutoConstant("shadowDepth", ACTShadowDepthRange, 0)
	params.SetNamedAutoConstantReal("frameTime", ACTFrameTime, 1)
	params.UpdateAutoConstants(source)

	// Transposing moves the world translation row into the last column.
	transposed, ok := params.NamedConstant("worldT")
	require.True(t, ok)
	world := renderable.WorldTransforms(nil)[0]
	assert.InDelta(t, world[3][0], float64(transposed[3]), 1e-6)
	assert.InDelta(t, world[3][1], float64(transposed[7]), 1e-6)
	assert.InDelta(t, world[3][2], float64(transposed[11]), 1e-6)

	viewport, ok := params.NamedConstant("viewport")
	require.True(t, ok)
	assert.Equal(t, []float32{640, 360, 1.0 / 640, 1.0 / 360}, viewport)

	texSize, ok := params.NamedConstant("texSize")
	require.True(t, ok)
	assert.Equal(t, []float32{256, 128, 1, 1}, texSize)

	invTexSize, ok := params.NamedConstant("invTexSize")
	require.True(t, ok)
	assert.Equal(t, []float32{1.0 / 256, 1.0 / 128, 1, 1}, invTexSize)

	shadowDepth, ok := params.NamedConstant("shadowDepth")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 51, 50, 0.02}, shadowDepth)

	frameTime, ok := params.NamedConstant("frameTime")
	require.True(t, ok)
	assert.Equal(t, []float32{0.25}, frameTime)
}

func TestGpuProgramParametersClone(t *testing.T) {
	params := NewGpuProgramParameters()
	params.SetNamedConstantFloat("shininess", 32)
	params.SetNamedAutoConstant("world", ACTWorldMatrix, 0)

	clone := params.Clone()
	clone.SetNamedConstantFloat("shininess", 64)

	original, _ := params.NamedConstant("shininess")
	changed, _ := clone.NamedConstant("shininess")
	assert.Equal(t, float32(32), original[0])
	assert.Equal(t, float32(64), changed[0])
	assert.Equal(t, 1, clone.AutoConstantCount())
}
