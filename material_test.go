package umbra3d

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialTransparencyFollowsSceneBlend(t *testing.T) {
	material := NewMaterial("Glass")
	// No techniques yet, nothing to render.
	assert.Nil(t, material.BestTechnique(0))
	assert.False(t, material.IsTransparent())

	pass := material.CreateTechnique().CreatePass()
	assert.False(t, material.IsTransparent())
	assert.Equal(t, SceneBlendReplace, pass.SceneBlend)

	pass.SceneBlend = SceneBlendAlpha
	assert.True(t, pass.IsTransparent())
	assert.True(t, material.IsTransparent())
}

func TestMaterialBestTechniqueFallsBack(t *testing.T) {
	material := NewMaterial("Terrain")
	high := material.CreateTechnique()
	high.CreatePass()
	low := material.CreateTechnique()
	low.LodIndex = 2
	low.CreatePass()

	assert.Same(t, high, material.BestTechnique(0))
	// No technique serves index 1; the nearest lower-detail one wins.
	assert.Same(t, high, material.BestTechnique(1))
	assert.Same(t, low, material.BestTechnique(2))
	assert.Same(t, low, material.BestTechnique(3))
}

func TestMaterialLodIndexFromValues(t *testing.T) {
	material := NewMaterial("Rock")
	material.SetLodValues([]float64{200, 50})

	// Values are kept sorted regardless of the order handed in.
	assert.Equal(t, []float64{50, 200}, material.LodValues())
	assert.Equal(t, uint16(0), material.LodIndex(10))
	assert.Equal(t, uint16(1), material.LodIndex(120))
	assert.Equal(t, uint16(2), material.LodIndex(500))
}

func TestMaterialCloneIsDeep(t *testing.T) {
	material := NewMaterialSimple("Crate", nil)
	material.Properties.Set("hardness", 3)
	pass := material.BestTechnique(0).Pass(0)
	pass.SceneBlend = SceneBlendAdd

	clone := material.Clone()
	require.Len(t, clone.Techniques(), 1)
	clonedPass := clone.BestTechnique(0).Pass(0)
	assert.Equal(t, SceneBlendAdd, clonedPass.SceneBlend)

	// Mutating the clone leaves the original untouched.
	clonedPass.SceneBlend = SceneBlendReplace
	clone.Properties.Set("hardness", 9)
	assert.Equal(t, SceneBlendAdd, pass.SceneBlend)
	value, _ := material.Properties.Get("hardness")
	assert.Equal(t, 3, value)
}

func TestTextureUnitAnimationWraps(t *testing.T) {
	unit := NewTextureUnit("Caustics", nil)
	unit.ScrollSpeedU = 0.75
	unit.RotateSpeed = 1

	unit.UpdateAnimation(1)
	u, v, rotate := unit.TextureTransform()
	assert.InDelta(t, 0.75, u, 1e-9)
	assert.InDelta(t, 0, v, 1e-9)
	assert.InDelta(t, 1, rotate, 1e-9)

	// Scroll wraps into [0, 1); rotation accumulates.
	unit.UpdateAnimation(1)
	u, _, rotate = unit.TextureTransform()
	assert.InDelta(t, 0.5, u, 1e-9)
	assert.InDelta(t, 2, rotate, 1e-9)
}

func TestLibraryRejectsDuplicateMaterials(t *testing.T) {
	library := NewLibrary()
	require.NoError(t, library.AddMaterial(NewMaterial("Stone")))
	err := library.AddMaterial(NewMaterial("Stone"))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrDuplicateItem))
	assert.NotNil(t, library.Material("Stone"))
	assert.Nil(t, library.Material("Missing"))
}

func TestFogFactorByMode(t *testing.T) {
	none := FogSettings{}
	assert.Equal(t, 0.0, none.FactorAt(1000))

	linear := FogSettings{Mode: FogLinear, Start: 10, End: 60}
	assert.Equal(t, 0.0, linear.FactorAt(5))
	assert.InDelta(t, 0.5, linear.FactorAt(35), 1e-9)
	assert.Equal(t, 1.0, linear.FactorAt(90))

	exp := FogSettings{Mode: FogExp, Density: 0.1}
	assert.InDelta(t, 1-math.Exp(-1), exp.FactorAt(10), 1e-9)

	exp2 := FogSettings{Mode: FogExp2, Density: 0.1}
	assert.InDelta(t, 1-math.Exp(-1), exp2.FactorAt(10), 1e-9)
}

func TestSceneManagerFog(t *testing.T) {
	manager := NewSceneManager("Test")
	assert.Equal(t, FogNone, manager.Fog().Mode)

	manager.SetFog(FogLinear, NewColor(0.5, 0.5, 0.5, 1), 0, 10, 60)
	fog := manager.Fog()
	assert.Equal(t, FogLinear, fog.Mode)
	assert.Equal(t, 10.0, fog.Start)
	assert.Equal(t, 60.0, fog.End)
}
