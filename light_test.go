package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLightFactoryAppliesCreationParameters(t *testing.T) {
	manager := NewSceneManager("Test")

	object, err := manager.CreateMovableObject("Lamp", "Light", NameValueMap{
		"type":                  "spot",
		"diffuse":               "1 0.5 0.25",
		"specular":              "0.2 0.4 0.6",
		"position":              "1 2 3",
		"direction":             "0 -1 0",
		"range":                 "200",
		"attenuation_constant":  "0.5",
		"attenuation_linear":    "0.05",
		"attenuation_quadratic": "0.001",
		"spot_inner":            "20",
		"spot_outer":            "45",
		"spot_falloff":          "2",
		"power_scale":           "1.5",
		"cast_shadows":          "true",
	})
	require.NoError(t, err)
	light, ok := object.(*Light)
	require.True(t, ok)

	assert.Equal(t, LightSpot, light.Type())
	assert.Equal(t, NewColor(1, 0.5, 0.25, 1), light.Diffuse())
	assert.Equal(t, NewColor(0.2, 0.4, 0.6, 1), light.Specular())
	assert.Equal(t, NewVector(1, 2, 3), light.Position())
	assert.InDelta(t, -1, light.Direction().Y, 1e-9)
	assert.InDelta(t, 200, light.AttenuationRange(), 1e-9)
	assert.InDelta(t, 0.5, light.AttenuationConstant(), 1e-9)
	assert.InDelta(t, 0.05, light.AttenuationLinear(), 1e-9)
	assert.InDelta(t, 0.001, light.AttenuationQuadratic(), 1e-9)
	assert.InDelta(t, degToRad(20), light.SpotInnerAngle(), 1e-9)
	assert.InDelta(t, degToRad(45), light.SpotOuterAngle(), 1e-9)
	assert.InDelta(t, 2, light.SpotFalloff(), 1e-9)
	assert.InDelta(t, 1.5, light.PowerScale(), 1e-9)
	assert.True(t, light.CastShadows())

	// Unset parameters keep the light's defaults.
	plain, err := manager.CreateMovableObject("Plain", "Light", nil)
	require.NoError(t, err)
	assert.Equal(t, LightPoint, plain.(*Light).Type())
	assert.Equal(t, ColorWhite(), plain.(*Light).Diffuse())

	_, err = manager.CreateMovableObject("Bad", "Light", NameValueMap{"diffuse": "1 0"})
	assert.True(t, IsKind(err, ErrInvalidArgument))
}

func TestLightListOrdersDirectionalFirstThenNearest(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(1000)

	attach := func(name string, configure func(light *Light)) *Light {
		light, err := manager.CreateLight(name)
		require.NoError(t, err)
		configure(light)
		node, err := manager.RootSceneNode().CreateChildSceneNode(name + "/Node")
		require.NoError(t, err)
		require.NoError(t, node.AttachObject(light))
		return light
	}

	attach("FarPoint", func(light *Light) {
		light.SetType(LightPoint)
		light.SetPosition(NewVector(0, 0, -50))
		light.SetAttenuation(1000, 1, 0, 0)
	})
	attach("Sun", func(light *Light) {
		light.SetType(LightDirectional)
		light.SetDirection(NewVector(0, -1, 0))
	})
	attach("NearPoint", func(light *Light) {
		light.SetType(LightPoint)
		light.SetPosition(NewVector(0, 0, -12))
		light.SetAttenuation(1000, 1, 0, 0)
	})

	entity, err := manager.CreateEntityFromMesh("Target", newTriangleMesh(t, "Triangle"))
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Target/Node")
	require.NoError(t, err)
	node.SetPosition(NewVector(0, 0, -10))
	require.NoError(t, node.AttachObject(entity))

	manager.RenderScene(camera)

	list := manager.lightsAffectingObject(entity)
	require.Len(t, list, 3)
	assert.Equal(t, "Sun", list[0].Name())
	assert.Equal(t, "NearPoint", list[1].Name())
	assert.Equal(t, "FarPoint", list[2].Name())
}

func TestLightMaskFiltersLights(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(1000)

	light, err := manager.CreateLight("Masked")
	require.NoError(t, err)
	light.SetType(LightDirectional)
	light.SetLightMask(0b0010)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Masked/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(light))

	entity, err := manager.CreateEntityFromMesh("Target", newTriangleMesh(t, "Triangle"))
	require.NoError(t, err)
	target, err := manager.RootSceneNode().CreateChildSceneNode("Target/Node")
	require.NoError(t, err)
	target.SetPosition(NewVector(0, 0, -10))
	require.NoError(t, target.AttachObject(entity))

	manager.RenderScene(camera)

	entity.SetLightMask(0b0001)
	assert.Empty(t, manager.lightsAffectingObject(entity))

	entity.SetLightMask(0b0010)
	assert.Len(t, manager.lightsAffectingObject(entity), 1)
}

func TestPointLightOutsideFrustumIsIgnored(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)

	light, err := manager.CreateLight("BehindCamera")
	require.NoError(t, err)
	light.SetType(LightPoint)
	light.SetPosition(NewVector(0, 0, 500))
	light.SetAttenuation(10, 1, 0, 0)
	node, err := manager.RootSceneNode().CreateChildSceneNode("BehindCamera/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(light))

	manager.RenderScene(camera)
	assert.Empty(t, manager.LightsAffectingFrustum())
}

func TestLightInfluenceSphere(t *testing.T) {
	light := NewLight("Point")
	light.SetType(LightPoint)
	light.SetPosition(NewVector(5, 0, 0))
	light.SetAttenuation(10, 1, 0, 0)

	sphere := light.InfluenceSphere()
	assert.True(t, sphere.ContainsPoint(NewVector(5, 0, 0)))
	assert.True(t, light.AffectsBox(NewBox(NewVector(10, -1, -1), NewVector(12, 1, 1))))
	assert.False(t, light.AffectsBox(NewBox(NewVector(50, -1, -1), NewVector(52, 1, 1))))
}
