package umbra3d

// Plane represents a plane in 3D space in constant-normal form: a point p is
// on the plane when Normal.Dot(p) + D == 0. The normal points toward the
// plane's positive side.
type Plane struct {
	Normal Vector
	D      float64
}

// NewPlane returns a Plane with the given unit normal passing through the point provided.
func NewPlane(normal, point Vector) Plane {
	normal = normal.Unit()
	return Plane{Normal: normal, D: -normal.Dot(point)}
}

// PlaneSide indicates which side of a Plane something lies on.
type PlaneSide int

const (
	PlaneSideNone     PlaneSide = iota // The object straddles the plane
	PlaneSidePositive                  // The object lies fully on the positive (normal) side
	PlaneSideNegative                  // The object lies fully on the negative side
)

// Normalized returns the Plane scaled so its normal has unit length.
func (plane Plane) Normalized() Plane {
	l := plane.Normal.Magnitude()
	if l == 0 {
		return plane
	}
	plane.Normal = plane.Normal.Divide(l)
	plane.D /= l
	return plane
}

// Distance returns the signed distance from the point provided to the Plane;
// positive results lie on the same side as the normal.
func (plane Plane) Distance(point Vector) float64 {
	return plane.Normal.Dot(point) + plane.D
}

// SideOfPoint returns which side of the Plane the point provided lies on.
func (plane Plane) SideOfPoint(point Vector) PlaneSide {
	d := plane.Distance(point)
	if d > 0 {
		return PlaneSidePositive
	}
	if d < 0 {
		return PlaneSideNegative
	}
	return PlaneSideNone
}

// SideOfBox returns which side of the Plane the box provided lies on, or
// PlaneSideNone if the box straddles the plane. Infinite boxes always
// straddle; null boxes report the negative side.
func (plane Plane) SideOfBox(box AxisAlignedBox) PlaneSide {

	if box.IsNull() {
		return PlaneSideNegative
	}
	if box.IsInfinite() {
		return PlaneSideNone
	}

	center := box.Center()
	half := box.HalfSize()

	dist := plane.Distance(center)

	// Project the half-size onto the plane normal ("p-vertex" distance).
	maxDist := abs(plane.Normal.X)*half.X + abs(plane.Normal.Y)*half.Y + abs(plane.Normal.Z)*half.Z

	if dist > maxDist {
		return PlaneSidePositive
	}
	if dist < -maxDist {
		return PlaneSideNegative
	}
	return PlaneSideNone
}

// IntersectsSphere returns whether the sphere provided touches the Plane.
func (plane Plane) IntersectsSphere(sphere Sphere) bool {
	return abs(plane.Distance(sphere.Center)) <= sphere.Radius
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// PlaneBoundedVolume represents a convex volume bounded by a set of planes,
// with normals pointing inward (toward the contained space).
type PlaneBoundedVolume struct {
	Planes []Plane
}

// IntersectsBox returns whether any part of the box provided lies inside the volume.
func (volume PlaneBoundedVolume) IntersectsBox(box AxisAlignedBox) bool {

	if box.IsNull() {
		return false
	}
	if box.IsInfinite() {
		return true
	}

	for _, plane := range volume.Planes {
		if plane.SideOfBox(box) == PlaneSideNegative {
			return false
		}
	}
	return true
}

// IntersectsSphere returns whether any part of the sphere provided lies inside the volume.
func (volume PlaneBoundedVolume) IntersectsSphere(sphere Sphere) bool {
	for _, plane := range volume.Planes {
		if plane.Distance(sphere.Center) < -sphere.Radius {
			return false
		}
	}
	return true
}

// ContainsPoint returns whether the point provided lies inside the volume.
func (volume PlaneBoundedVolume) ContainsPoint(point Vector) bool {
	for _, plane := range volume.Planes {
		if plane.Distance(point) < 0 {
			return false
		}
	}
	return true
}
