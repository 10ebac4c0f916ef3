package umbra3d

import "math"

// Extent indicates how much space an AxisAlignedBox covers.
type Extent int

const (
	ExtentNull     Extent = iota // The box contains nothing
	ExtentFinite                 // The box has a normal, finite extent
	ExtentInfinite               // The box covers all of space
)

// AxisAlignedBox represents an axis-aligned bounding box. A box is either
// null (contains nothing), finite (a normal min/max extent), or infinite
// (covers everything); Min and Max are only meaningful while finite.
type AxisAlignedBox struct {
	Extent   Extent
	Min, Max Vector
}

// NewBox returns a finite AxisAlignedBox spanning the min and max corners provided.
func NewBox(min, max Vector) AxisAlignedBox {
	return AxisAlignedBox{Extent: ExtentFinite, Min: min, Max: max}
}

// NewBoxNull returns a null AxisAlignedBox (one containing nothing).
func NewBoxNull() AxisAlignedBox {
	return AxisAlignedBox{Extent: ExtentNull}
}

// NewBoxInfinite returns an infinite AxisAlignedBox (one covering all of space).
func NewBoxInfinite() AxisAlignedBox {
	return AxisAlignedBox{Extent: ExtentInfinite}
}

// IsNull returns whether the box contains nothing.
func (box AxisAlignedBox) IsNull() bool {
	return box.Extent == ExtentNull
}

// IsFinite returns whether the box has a normal, finite extent.
func (box AxisAlignedBox) IsFinite() bool {
	return box.Extent == ExtentFinite
}

// IsInfinite returns whether the box covers all of space.
func (box AxisAlignedBox) IsInfinite() bool {
	return box.Extent == ExtentInfinite
}

// Center returns the center point of a finite box.
func (box AxisAlignedBox) Center() Vector {
	return box.Min.Add(box.Max).Scale(0.5)
}

// Size returns the dimensions of a finite box.
func (box AxisAlignedBox) Size() Vector {
	return box.Max.Sub(box.Min)
}

// HalfSize returns half the dimensions of a finite box.
func (box AxisAlignedBox) HalfSize() Vector {
	return box.Size().Scale(0.5)
}

// Radius returns the radius of the sphere centered on the box's center that
// contains the whole (finite) box.
func (box AxisAlignedBox) Radius() float64 {
	if !box.IsFinite() {
		return 0
	}
	return box.HalfSize().Magnitude()
}

// Merge returns the smallest box containing both the calling box and the
// other box provided. A null box is the identity for Merge and an infinite
// box absorbs everything; the operation is associative and commutative.
func (box AxisAlignedBox) Merge(other AxisAlignedBox) AxisAlignedBox {

	if box.IsInfinite() || other.IsInfinite() {
		return NewBoxInfinite()
	}
	if box.IsNull() {
		return other
	}
	if other.IsNull() {
		return box
	}

	return NewBox(box.Min.Min(other.Min), box.Max.Max(other.Max))
}

// MergePoint returns the box extended to contain the point provided.
func (box AxisAlignedBox) MergePoint(point Vector) AxisAlignedBox {
	switch box.Extent {
	case ExtentNull:
		return NewBox(point, point)
	case ExtentInfinite:
		return box
	}
	return NewBox(box.Min.Min(point), box.Max.Max(point))
}

// Intersects returns whether the calling box and the other box provided
// overlap. The test is symmetric.
func (box AxisAlignedBox) Intersects(other AxisAlignedBox) bool {

	if box.IsNull() || other.IsNull() {
		return false
	}
	if box.IsInfinite() || other.IsInfinite() {
		return true
	}

	if box.Max.X < other.Min.X || box.Max.Y < other.Min.Y || box.Max.Z < other.Min.Z {
		return false
	}
	if box.Min.X > other.Max.X || box.Min.Y > other.Max.Y || box.Min.Z > other.Max.Z {
		return false
	}
	return true
}

// Intersection returns the overlapping region of the two boxes, or a null
// box if they do not overlap.
func (box AxisAlignedBox) Intersection(other AxisAlignedBox) AxisAlignedBox {

	if box.IsNull() || other.IsNull() {
		return NewBoxNull()
	}
	if box.IsInfinite() {
		return other
	}
	if other.IsInfinite() {
		return box
	}

	min := box.Min.Max(other.Min)
	max := box.Max.Min(other.Max)

	if min.X <= max.X && min.Y <= max.Y && min.Z <= max.Z {
		return NewBox(min, max)
	}
	return NewBoxNull()
}

// IntersectsSphere returns whether the box and the sphere provided overlap.
func (box AxisAlignedBox) IntersectsSphere(sphere Sphere) bool {

	if box.IsNull() {
		return false
	}
	if box.IsInfinite() {
		return true
	}

	// Distance from the sphere center to the closest point on the box.
	closest := sphere.Center.Max(box.Min).Min(box.Max)
	return closest.DistanceSquared(sphere.Center) <= sphere.Radius*sphere.Radius
}

// ContainsPoint returns whether the point provided lies within the box.
func (box AxisAlignedBox) ContainsPoint(point Vector) bool {
	switch box.Extent {
	case ExtentNull:
		return false
	case ExtentInfinite:
		return true
	}
	return point.X >= box.Min.X && point.X <= box.Max.X &&
		point.Y >= box.Min.Y && point.Y <= box.Max.Y &&
		point.Z >= box.Min.Z && point.Z <= box.Max.Z
}

// Contains returns whether the other box lies entirely within the calling box.
func (box AxisAlignedBox) Contains(other AxisAlignedBox) bool {
	if other.IsNull() || box.IsInfinite() {
		return true
	}
	if box.IsNull() || other.IsInfinite() {
		return false
	}
	return box.ContainsPoint(other.Min) && box.ContainsPoint(other.Max)
}

// Corners returns the eight corner points of a finite box.
func (box AxisAlignedBox) Corners() [8]Vector {
	min, max := box.Min, box.Max
	return [8]Vector{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
	}
}

// Transform returns the axis-aligned box containing the calling box after the
// affine transform provided. Null and infinite boxes pass through unchanged.
func (box AxisAlignedBox) Transform(matrix Matrix4) AxisAlignedBox {

	if !box.IsFinite() {
		return box
	}

	center := box.Center()
	half := box.HalfSize()

	newCenter := matrix.MultVec(center)

	// Project the half-size onto the absolute value of the rotation/scale rows.
	newHalf := Vector{
		X: math.Abs(matrix[0][0])*half.X + math.Abs(matrix[1][0])*half.Y + math.Abs(matrix[2][0])*half.Z,
		Y: math.Abs(matrix[0][1])*half.X + math.Abs(matrix[1][1])*half.Y + math.Abs(matrix[2][1])*half.Z,
		Z: math.Abs(matrix[0][2])*half.X + math.Abs(matrix[1][2])*half.Y + math.Abs(matrix[2][2])*half.Z,
	}

	return NewBox(newCenter.Sub(newHalf), newCenter.Add(newHalf))
}

// Volume returns the volume of a finite box.
func (box AxisAlignedBox) Volume() float64 {
	if !box.IsFinite() {
		return 0
	}
	size := box.Size()
	return size.X * size.Y * size.Z
}

// Scaled returns the box scaled componentwise about the origin.
func (box AxisAlignedBox) Scaled(scale Vector) AxisAlignedBox {
	if !box.IsFinite() {
		return box
	}
	min := box.Min.MultComp(scale)
	max := box.Max.MultComp(scale)
	return NewBox(min.Min(max), min.Max(max))
}

func (box AxisAlignedBox) String() string {
	switch box.Extent {
	case ExtentNull:
		return "AxisAlignedBox(null)"
	case ExtentInfinite:
		return "AxisAlignedBox(infinite)"
	}
	return "AxisAlignedBox(" + box.Min.String() + " - " + box.Max.String() + ")"
}
