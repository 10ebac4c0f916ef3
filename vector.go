package umbra3d

import (
	"math"
	"strconv"
)

// Vector represents a 3D point or direction. The W component is used when a
// Vector passes through a 4x4 matrix transform and is otherwise 0.
type Vector struct {
	X, Y, Z, W float64
}

// NewVector creates a new Vector with the x, y, and z components provided.
func NewVector(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

var (
	vectorZero  = Vector{}
	vectorUnitX = Vector{X: 1}
	vectorUnitY = Vector{Y: 1}
	vectorUnitZ = Vector{Z: 1}
	vectorOne   = Vector{X: 1, Y: 1, Z: 1}

	// negativeUnitZ is the conventional "forward" direction for cameras and
	// spotlights.
	vectorNegUnitZ = Vector{Z: -1}
)

// Add returns the sum of the calling Vector and the other Vector provided.
func (vec Vector) Add(other Vector) Vector {
	vec.X += other.X
	vec.Y += other.Y
	vec.Z += other.Z
	return vec
}

// Sub returns the difference between the calling Vector and the other Vector provided.
func (vec Vector) Sub(other Vector) Vector {
	vec.X -= other.X
	vec.Y -= other.Y
	vec.Z -= other.Z
	return vec
}

// Scale returns the calling Vector multiplied by the scalar provided.
func (vec Vector) Scale(scalar float64) Vector {
	vec.X *= scalar
	vec.Y *= scalar
	vec.Z *= scalar
	return vec
}

// Divide returns the calling Vector divided by the scalar provided.
func (vec Vector) Divide(scalar float64) Vector {
	vec.X /= scalar
	vec.Y /= scalar
	vec.Z /= scalar
	return vec
}

// Invert returns the negation of the calling Vector.
func (vec Vector) Invert() Vector {
	vec.X = -vec.X
	vec.Y = -vec.Y
	vec.Z = -vec.Z
	return vec
}

// MultComp multiplies the calling Vector componentwise by the other Vector provided.
func (vec Vector) MultComp(other Vector) Vector {
	vec.X *= other.X
	vec.Y *= other.Y
	vec.Z *= other.Z
	return vec
}

// DivideComp divides the calling Vector componentwise by the other Vector provided.
func (vec Vector) DivideComp(other Vector) Vector {
	vec.X /= other.X
	vec.Y /= other.Y
	vec.Z /= other.Z
	return vec
}

// Dot returns the dot product of the calling Vector and the other Vector provided.
func (vec Vector) Dot(other Vector) float64 {
	return vec.X*other.X + vec.Y*other.Y + vec.Z*other.Z
}

// Cross returns the cross product of the calling Vector and the other Vector provided.
func (vec Vector) Cross(other Vector) Vector {
	return Vector{
		X: vec.Y*other.Z - vec.Z*other.Y,
		Y: vec.Z*other.X - vec.X*other.Z,
		Z: vec.X*other.Y - vec.Y*other.X,
	}
}

// Magnitude returns the length of the Vector.
func (vec Vector) Magnitude() float64 {
	return math.Sqrt(vec.MagnitudeSquared())
}

// MagnitudeSquared returns the squared length of the Vector; this is faster
// than Magnitude() as it avoids the square root, and suffices for comparisons.
func (vec Vector) MagnitudeSquared() float64 {
	return vec.X*vec.X + vec.Y*vec.Y + vec.Z*vec.Z
}

// Distance returns the distance from the calling Vector to the other Vector provided.
func (vec Vector) Distance(other Vector) float64 {
	return vec.Sub(other).Magnitude()
}

// DistanceSquared returns the squared distance from the calling Vector to the
// other Vector provided.
func (vec Vector) DistanceSquared(other Vector) float64 {
	return vec.Sub(other).MagnitudeSquared()
}

// Unit returns the Vector normalized to a length of 1. A zero-length Vector
// is returned unchanged.
func (vec Vector) Unit() Vector {
	l := vec.Magnitude()
	if l < 1e-12 {
		return vec
	}
	return vec.Divide(l)
}

// Equals returns whether the calling Vector matches the other Vector provided
// to within a small epsilon.
func (vec Vector) Equals(other Vector) bool {
	const eps = 1e-9
	return math.Abs(vec.X-other.X) < eps && math.Abs(vec.Y-other.Y) < eps && math.Abs(vec.Z-other.Z) < eps
}

// IsZero returns whether every component of the Vector is zero.
func (vec Vector) IsZero() bool {
	return vec.X == 0 && vec.Y == 0 && vec.Z == 0
}

// Lerp linearly interpolates from the calling Vector to the other Vector by
// the percentage provided (0-1).
func (vec Vector) Lerp(other Vector, percent float64) Vector {
	return vec.Add(other.Sub(vec).Scale(percent))
}

// Angle returns the angle in radians between the calling Vector and the other
// Vector provided.
func (vec Vector) Angle(other Vector) float64 {
	d := vec.Unit().Dot(other.Unit())
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

// Perpendicular returns an arbitrary vector perpendicular to the calling
// Vector.
func (vec Vector) Perpendicular() Vector {
	perp := vec.Cross(vectorUnitX)
	if perp.MagnitudeSquared() < 1e-12 {
		perp = vec.Cross(vectorUnitY)
	}
	return perp.Unit()
}

// Min returns the componentwise minimum of the calling Vector and the other
// Vector provided.
func (vec Vector) Min(other Vector) Vector {
	return Vector{
		X: math.Min(vec.X, other.X),
		Y: math.Min(vec.Y, other.Y),
		Z: math.Min(vec.Z, other.Z),
	}
}

// Max returns the componentwise maximum of the calling Vector and the other
// Vector provided.
func (vec Vector) Max(other Vector) Vector {
	return Vector{
		X: math.Max(vec.X, other.X),
		Y: math.Max(vec.Y, other.Y),
		Z: math.Max(vec.Z, other.Z),
	}
}

func (vec Vector) String() string {
	return "{" + strconv.FormatFloat(vec.X, 'f', -1, 64) + ", " +
		strconv.FormatFloat(vec.Y, 'f', -1, 64) + ", " +
		strconv.FormatFloat(vec.Z, 'f', -1, 64) + "}"
}
