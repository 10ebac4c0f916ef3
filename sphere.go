package umbra3d

// Sphere represents a bounding sphere.
type Sphere struct {
	Center Vector
	Radius float64
}

// NewSphere returns a new Sphere with the center and radius provided.
func NewSphere(center Vector, radius float64) Sphere {
	return Sphere{Center: center, Radius: radius}
}

// Intersects returns whether the calling Sphere and the other Sphere provided overlap.
func (sphere Sphere) Intersects(other Sphere) bool {
	r := sphere.Radius + other.Radius
	return sphere.Center.DistanceSquared(other.Center) <= r*r
}

// IntersectsBox returns whether the Sphere and the box provided overlap.
func (sphere Sphere) IntersectsBox(box AxisAlignedBox) bool {
	return box.IntersectsSphere(sphere)
}

// ContainsPoint returns whether the point provided lies within the Sphere.
func (sphere Sphere) ContainsPoint(point Vector) bool {
	return sphere.Center.DistanceSquared(point) <= sphere.Radius*sphere.Radius
}
