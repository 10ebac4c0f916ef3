package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxMergeIdentityAndAbsorption(t *testing.T) {
	finite := NewBox(NewVector(-1, -2, -3), NewVector(4, 5, 6))
	null := NewBoxNull()
	infinite := NewBoxInfinite()

	// Null is the merge identity.
	assert.Equal(t, finite, finite.Merge(null))
	assert.Equal(t, finite, null.Merge(finite))
	assert.Equal(t, ExtentNull, null.Merge(null).Extent)

	// Infinite absorbs everything.
	assert.Equal(t, ExtentInfinite, finite.Merge(infinite).Extent)
	assert.Equal(t, ExtentInfinite, infinite.Merge(finite).Extent)
	assert.Equal(t, ExtentInfinite, infinite.Merge(null).Extent)
}

func TestBoxMergeCommutativeAssociative(t *testing.T) {
	a := NewBox(NewVector(0, 0, 0), NewVector(1, 1, 1))
	b := NewBox(NewVector(-2, 0.5, 0), NewVector(0.5, 3, 0.5))
	c := NewBox(NewVector(5, 5, 5), NewVector(6, 6, 6))

	assert.Equal(t, a.Merge(b), b.Merge(a))
	assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
}

func TestBoxIntersectsSymmetric(t *testing.T) {
	a := NewBox(NewVector(0, 0, 0), NewVector(2, 2, 2))
	b := NewBox(NewVector(1, 1, 1), NewVector(3, 3, 3))
	c := NewBox(NewVector(10, 10, 10), NewVector(11, 11, 11))

	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a))
	assert.False(t, a.Intersects(c))
	assert.False(t, c.Intersects(a))

	// Null intersects nothing; infinite intersects any non-null box.
	assert.False(t, NewBoxNull().Intersects(a))
	assert.False(t, a.Intersects(NewBoxNull()))
	assert.True(t, NewBoxInfinite().Intersects(a))
	assert.True(t, a.Intersects(NewBoxInfinite()))
}

func TestBoxMergePoint(t *testing.T) {
	box := NewBoxNull()
	box = box.MergePoint(NewVector(1, 2, 3))
	require.Equal(t, ExtentFinite, box.Extent)
	assert.Equal(t, NewVector(1, 2, 3), box.Min)
	assert.Equal(t, NewVector(1, 2, 3), box.Max)

	box = box.MergePoint(NewVector(-1, 5, 0))
	assert.Equal(t, NewVector(-1, 2, 0), box.Min)
	assert.Equal(t, NewVector(1, 5, 3), box.Max)
}

func TestBoxTransformStaysConservative(t *testing.T) {
	box := NewBox(NewVector(-1, -1, -1), NewVector(1, 1, 1))
	rotated := box.Transform(NewQuaternionAxisAngle(NewVector(0, 1, 0), ToRadians(45)).ToMatrix4())

	// Every original corner must land inside the transformed box.
	for _, corner := range box.Corners() {
		moved := NewQuaternionAxisAngle(NewVector(0, 1, 0), ToRadians(45)).MultVec(corner)
		assert.True(t, rotated.ContainsPoint(moved), "corner %v escaped to %v", corner, moved)
	}
}

func TestRayIntersectsBoxFromInside(t *testing.T) {
	box := NewBox(NewVector(-1, -1, -1), NewVector(1, 1, 1))
	ray := NewRay(NewVector(0, 0, 0), NewVector(0, 0, -1))

	hit, distance := ray.IntersectsBox(box)
	require.True(t, hit)
	assert.Equal(t, 0.0, distance)
}

func TestRayIntersectsBoxFromOutside(t *testing.T) {
	box := NewBox(NewVector(-1, -1, -1), NewVector(1, 1, 1))

	hit, distance := NewRay(NewVector(0, 0, 5), NewVector(0, 0, -1)).IntersectsBox(box)
	require.True(t, hit)
	assert.InDelta(t, 4.0, distance, 1e-9)

	hit, _ = NewRay(NewVector(0, 0, 5), NewVector(0, 0, 1)).IntersectsBox(box)
	assert.False(t, hit)
}

func TestRayIntersectsSphere(t *testing.T) {
	sphere := Sphere{Center: NewVector(0, 0, -10), Radius: 2}

	hit, distance := NewRay(NewVector(0, 0, 0), NewVector(0, 0, -1)).IntersectsSphere(sphere)
	require.True(t, hit)
	assert.InDelta(t, 8.0, distance, 1e-9)

	hit, distance = NewRay(sphere.Center, NewVector(1, 0, 0)).IntersectsSphere(sphere)
	require.True(t, hit)
	assert.Equal(t, 0.0, distance)
}
