package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillboardSetPoolAndBounds(t *testing.T) {
	set := NewBillboardSet("Sparks", 2)
	set.SetDefaultDimensions(2, 2)

	first := set.CreateBillboard(NewVector(0, 0, 0))
	require.NotNil(t, first)
	second := set.CreateBillboard(NewVector(10, 0, 0))
	require.NotNil(t, second)
	assert.Equal(t, 2, set.BillboardCount())

	// The pool is exhausted.
	assert.Nil(t, set.CreateBillboard(NewVector(20, 0, 0)))

	bounds := set.BoundingBox()
	require.Equal(t, ExtentFinite, bounds.Extent)
	assert.True(t, bounds.ContainsPoint(NewVector(0, 0, 0)))
	assert.True(t, bounds.ContainsPoint(NewVector(10, 0, 0)))

	set.RemoveBillboard(first)
	assert.Equal(t, 1, set.BillboardCount())
	third := set.CreateBillboard(NewVector(5, 0, 0))
	assert.NotNil(t, third)

	set.Clear()
	assert.Equal(t, 0, set.BillboardCount())
}

func TestBillboardOwnDimensions(t *testing.T) {
	set := NewBillboardSet("Sparks", 4)
	set.SetDefaultDimensions(1, 1)

	billboard := set.CreateBillboard(NewVector(0, 0, 0))
	require.NotNil(t, billboard)
	assert.False(t, billboard.HasOwnDimensions())

	billboard.SetDimensions(3, 5)
	assert.True(t, billboard.HasOwnDimensions())

	billboard.ResetDimensions()
	assert.False(t, billboard.HasOwnDimensions())
}

func TestBillboardTextureStacksAndSlices(t *testing.T) {
	set := NewBillboardSet("Atlas", 4)
	require.NoError(t, set.SetTextureStacksAndSlices(2, 2))

	assert.Error(t, set.SetTextureStacksAndSlices(0, 2))
	assert.Error(t, set.SetTextureStacksAndSlices(2, -1))
}

func TestParticleSystemSpawnsAndExpires(t *testing.T) {
	system := NewParticleSystem("Smoke", 10)
	system.Settings.SpawnRate = 0.5
	system.Settings.SpawnCount = 1
	system.Settings.Lifetime.Set(1, 1)

	// Two seconds at one spawn per half second.
	for i := 0; i < 4; i++ {
		system.Update(0.5)
	}
	count := system.ParticleCount()
	assert.Greater(t, count, 0)
	assert.LessOrEqual(t, count, 4)

	// With emission off every particle ages out.
	system.SetEmitting(false)
	for i := 0; i < 6; i++ {
		system.Update(0.5)
	}
	assert.Equal(t, 0, system.ParticleCount())
	assert.Equal(t, 0, system.BillboardSet().BillboardCount())
}

func TestParticleSystemRespectsQuota(t *testing.T) {
	system := NewParticleSystem("Burst", 3)
	system.Settings.SpawnRate = 0.1
	system.Settings.SpawnCount = 5
	system.Settings.Lifetime.Set(100, 100)

	for i := 0; i < 10; i++ {
		system.Update(0.1)
	}
	assert.Equal(t, 3, system.ParticleCount())
}

func TestParticleSystemClear(t *testing.T) {
	system := NewParticleSystem("Dust", 5)
	system.Settings.SpawnRate = 0.1
	system.Settings.Lifetime.Set(100, 100)
	system.Update(0.2)
	require.Greater(t, system.ParticleCount(), 0)

	system.Clear()
	assert.Equal(t, 0, system.ParticleCount())
	assert.Equal(t, 0, system.BillboardSet().BillboardCount())
}

func TestParticleSystemClone(t *testing.T) {
	system := NewParticleSystem("Fire", 8)
	system.Settings.SpawnRate = 0.25
	system.Settings.Friction = 2
	system.Settings.Lifetime.Set(2, 3)

	clone := system.Clone("Fire2")
	assert.Equal(t, "Fire2", clone.Name())
	assert.Equal(t, 8, clone.Quota())
	assert.Equal(t, 0.25, clone.Settings.SpawnRate)
	assert.Equal(t, 2.0, clone.Settings.Friction)

	// Settings are deep-copied.
	clone.Settings.Lifetime.Set(9, 9)
	assert.NotEqual(t, system.Settings.Lifetime.Value(), clone.Settings.Lifetime.Value())
}

func TestColorCurveInterpolates(t *testing.T) {
	curve := NewColorCurve()
	curve.Add(NewColor(1, 0, 0, 1), 0)
	curve.Add(NewColor(0, 0, 1, 0), 1)

	start := curve.Value(0)
	assert.InDelta(t, 1, float64(start.R), 1e-6)

	mid := curve.Value(0.5)
	assert.InDelta(t, 0.5, float64(mid.R), 1e-6)
	assert.InDelta(t, 0.5, float64(mid.B), 1e-6)
	assert.InDelta(t, 0.5, float64(mid.A), 1e-6)
}

func TestNumberAndVectorRanges(t *testing.T) {
	number := NewNumberRange(5)
	assert.Equal(t, 5.0, number.Value())
	number.Set(3, 7)
	for i := 0; i < 20; i++ {
		value := number.Value()
		assert.GreaterOrEqual(t, value, 3.0)
		assert.LessOrEqual(t, value, 7.0)
	}

	vector := NewVectorRange()
	assert.True(t, vector.Value().IsZero())
	vector.SetAll(2)
	assert.True(t, vector.Value().Equals(NewVector(2, 2, 2)))
}
