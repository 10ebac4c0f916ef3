package umbra3d

import "math"

// Ray represents a ray starting at an origin and extending infinitely in a
// (unit) direction.
type Ray struct {
	Origin    Vector
	Direction Vector
}

// NewRay returns a new Ray with the origin and direction provided; the
// direction is normalized.
func NewRay(origin, direction Vector) Ray {
	return Ray{Origin: origin, Direction: direction.Unit()}
}

// Point returns the point along the Ray at the distance provided.
func (ray Ray) Point(distance float64) Vector {
	return ray.Origin.Add(ray.Direction.Scale(distance))
}

// IntersectsBox returns whether the Ray hits the box provided, and the
// distance along the Ray to the hit. An origin inside the box hits at
// distance 0.
func (ray Ray) IntersectsBox(box AxisAlignedBox) (bool, float64) {

	if box.IsNull() {
		return false, 0
	}
	if box.IsInfinite() {
		return true, 0
	}

	if box.ContainsPoint(ray.Origin) {
		return true, 0
	}

	tMin := math.Inf(-1)
	tMax := math.Inf(1)

	origin := [3]float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
	dir := [3]float64{ray.Direction.X, ray.Direction.Y, ray.Direction.Z}
	min := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	max := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}

	for axis := 0; axis < 3; axis++ {

		if math.Abs(dir[axis]) < 1e-12 {
			// Parallel to the slab; miss unless the origin lies within it.
			if origin[axis] < min[axis] || origin[axis] > max[axis] {
				return false, 0
			}
			continue
		}

		inv := 1.0 / dir[axis]
		t1 := (min[axis] - origin[axis]) * inv
		t2 := (max[axis] - origin[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)

		if tMin > tMax {
			return false, 0
		}
	}

	if tMax < 0 {
		return false, 0
	}
	if tMin < 0 {
		tMin = 0
	}
	return true, tMin
}

// IntersectsSphere returns whether the Ray hits the sphere provided, and the
// distance along the Ray to the hit. An origin inside the sphere hits at
// distance 0.
func (ray Ray) IntersectsSphere(sphere Sphere) (bool, float64) {

	toCenter := sphere.Center.Sub(ray.Origin)

	if toCenter.MagnitudeSquared() <= sphere.Radius*sphere.Radius {
		return true, 0
	}

	proj := toCenter.Dot(ray.Direction)
	if proj < 0 {
		return false, 0
	}

	distSq := toCenter.MagnitudeSquared() - proj*proj
	radSq := sphere.Radius * sphere.Radius
	if distSq > radSq {
		return false, 0
	}

	return true, proj - math.Sqrt(radSq-distSq)
}

// IntersectsPlane returns whether the Ray hits the plane provided, and the
// distance along the Ray to the hit.
func (ray Ray) IntersectsPlane(plane Plane) (bool, float64) {

	denom := plane.Normal.Dot(ray.Direction)
	if math.Abs(denom) < 1e-12 {
		return false, 0
	}

	t := -plane.Distance(ray.Origin) / denom
	if t < 0 {
		return false, 0
	}
	return true, t
}
