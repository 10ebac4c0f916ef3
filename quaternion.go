package umbra3d

import "math"

// Quaternion represents a rotation. Engine code keeps Quaternions normalized;
// functions that could denormalize one (accumulating many multiplications, for
// example) should call Unit() on the result.
type Quaternion struct {
	X, Y, Z, W float64
}

// NewQuaternion creates a new Quaternion with the components provided.
func NewQuaternion(x, y, z, w float64) Quaternion {
	return Quaternion{x, y, z, w}
}

// NewQuaternionIdentity returns the identity (no rotation) Quaternion.
func NewQuaternionIdentity() Quaternion {
	return Quaternion{0, 0, 0, 1}
}

// NewQuaternionAxisAngle creates a Quaternion representing a rotation of the
// given angle in radians around the axis provided.
func NewQuaternionAxisAngle(axis Vector, angle float64) Quaternion {
	axis = axis.Unit()
	s := math.Sin(angle / 2)
	return Quaternion{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(angle / 2),
	}
}

// Mult returns the composition of the calling Quaternion with the other
// Quaternion provided; the result rotates by other first, then by the caller.
func (quat Quaternion) Mult(other Quaternion) Quaternion {
	return Quaternion{
		X: quat.W*other.X + quat.X*other.W + quat.Y*other.Z - quat.Z*other.Y,
		Y: quat.W*other.Y + quat.Y*other.W + quat.Z*other.X - quat.X*other.Z,
		Z: quat.W*other.Z + quat.Z*other.W + quat.X*other.Y - quat.Y*other.X,
		W: quat.W*other.W - quat.X*other.X - quat.Y*other.Y - quat.Z*other.Z,
	}
}

// MultVec rotates the Vector provided by the calling Quaternion.
func (quat Quaternion) MultVec(vec Vector) Vector {
	qv := Vector{X: quat.X, Y: quat.Y, Z: quat.Z}
	uv := qv.Cross(vec)
	uuv := qv.Cross(uv)
	return vec.Add(uv.Scale(2 * quat.W)).Add(uuv.Scale(2))
}

// Dot returns the dot product of the calling Quaternion and the other Quaternion provided.
func (quat Quaternion) Dot(other Quaternion) float64 {
	return quat.X*other.X + quat.Y*other.Y + quat.Z*other.Z + quat.W*other.W
}

// Magnitude returns the length of the Quaternion.
func (quat Quaternion) Magnitude() float64 {
	return math.Sqrt(quat.Dot(quat))
}

// Unit returns the Quaternion normalized to a length of 1.
func (quat Quaternion) Unit() Quaternion {
	m := quat.Magnitude()
	if m < 1e-12 {
		return NewQuaternionIdentity()
	}
	quat.X /= m
	quat.Y /= m
	quat.Z /= m
	quat.W /= m
	return quat
}

// Inverse returns the inverse rotation of the calling (unit) Quaternion.
func (quat Quaternion) Inverse() Quaternion {
	quat.X = -quat.X
	quat.Y = -quat.Y
	quat.Z = -quat.Z
	return quat
}

// Negated returns the Quaternion with every component negated (the same
// rotation, on the other cover of the rotation group).
func (quat Quaternion) Negated() Quaternion {
	return Quaternion{-quat.X, -quat.Y, -quat.Z, -quat.W}
}

// Equals returns whether the calling Quaternion matches the other Quaternion
// provided to within a small epsilon.
func (quat Quaternion) Equals(other Quaternion) bool {
	const eps = 1e-9
	return math.Abs(quat.X-other.X) < eps && math.Abs(quat.Y-other.Y) < eps &&
		math.Abs(quat.Z-other.Z) < eps && math.Abs(quat.W-other.W) < eps
}

// XAxis returns the local X axis (right) of the rotation the Quaternion represents.
func (quat Quaternion) XAxis() Vector {
	return quat.MultVec(vectorUnitX)
}

// YAxis returns the local Y axis (up) of the rotation the Quaternion represents.
func (quat Quaternion) YAxis() Vector {
	return quat.MultVec(vectorUnitY)
}

// ZAxis returns the local Z axis of the rotation the Quaternion represents.
// Note that "forward" is conventionally -Z.
func (quat Quaternion) ZAxis() Vector {
	return quat.MultVec(vectorUnitZ)
}

// ToMatrix4 converts the Quaternion into a rotation Matrix4.
func (quat Quaternion) ToMatrix4() Matrix4 {
	x, y, z, w := quat.X, quat.Y, quat.Z, quat.W

	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	mat := NewMatrix4()

	mat[0][0] = 1 - 2*(yy+zz)
	mat[0][1] = 2 * (xy + wz)
	mat[0][2] = 2 * (xz - wy)

	mat[1][0] = 2 * (xy - wz)
	mat[1][1] = 1 - 2*(xx+zz)
	mat[1][2] = 2 * (yz + wx)

	mat[2][0] = 2 * (xz + wy)
	mat[2][1] = 2 * (yz - wx)
	mat[2][2] = 1 - 2*(xx+yy)

	return mat
}

// NewQuaternionFromMatrix creates a Quaternion from the rotation portion of
// the Matrix4 provided. The matrix must be orthonormal (no scaling).
func NewQuaternionFromMatrix(mat Matrix4) Quaternion {

	trace := mat[0][0] + mat[1][1] + mat[2][2]

	var quat Quaternion

	if trace > 0 {
		s := math.Sqrt(trace+1) * 2
		quat.W = s / 4
		quat.X = (mat[1][2] - mat[2][1]) / s
		quat.Y = (mat[2][0] - mat[0][2]) / s
		quat.Z = (mat[0][1] - mat[1][0]) / s
	} else if mat[0][0] > mat[1][1] && mat[0][0] > mat[2][2] {
		s := math.Sqrt(1+mat[0][0]-mat[1][1]-mat[2][2]) * 2
		quat.W = (mat[1][2] - mat[2][1]) / s
		quat.X = s / 4
		quat.Y = (mat[1][0] + mat[0][1]) / s
		quat.Z = (mat[2][0] + mat[0][2]) / s
	} else if mat[1][1] > mat[2][2] {
		s := math.Sqrt(1+mat[1][1]-mat[0][0]-mat[2][2]) * 2
		quat.W = (mat[2][0] - mat[0][2]) / s
		quat.X = (mat[1][0] + mat[0][1]) / s
		quat.Y = s / 4
		quat.Z = (mat[2][1] + mat[1][2]) / s
	} else {
		s := math.Sqrt(1+mat[2][2]-mat[0][0]-mat[1][1]) * 2
		quat.W = (mat[0][1] - mat[1][0]) / s
		quat.X = (mat[2][0] + mat[0][2]) / s
		quat.Y = (mat[2][1] + mat[1][2]) / s
		quat.Z = s / 4
	}

	return quat.Unit()
}

// NewQuaternionRotationTo returns the shortest-arc rotation carrying the from
// direction onto the to direction. Both vectors are normalized internally.
func NewQuaternionRotationTo(from, to Vector) Quaternion {

	from = from.Unit()
	to = to.Unit()

	d := from.Dot(to)

	if d >= 1.0-1e-9 {
		return NewQuaternionIdentity()
	}

	if d < -1.0+1e-9 {
		// Opposite directions; rotate 180 degrees around any perpendicular axis.
		return NewQuaternionAxisAngle(from.Perpendicular(), math.Pi)
	}

	axis := from.Cross(to)
	s := math.Sqrt((1 + d) * 2)
	inv := 1 / s
	return Quaternion{
		X: axis.X * inv,
		Y: axis.Y * inv,
		Z: axis.Z * inv,
		W: s / 2,
	}.Unit()
}

// Slerp spherically interpolates from the calling Quaternion to the other
// Quaternion by the percentage provided (0-1), always taking the shortest path.
func (quat Quaternion) Slerp(other Quaternion, percent float64) Quaternion {

	if percent <= 0 {
		return quat
	} else if percent >= 1 {
		return other
	}

	d := quat.Dot(other)

	if d < 0 {
		other = other.Negated()
		d = -d
	}

	if d >= 1.0-1e-9 {
		// Nearly parallel; fall back to normalized lerp.
		return Quaternion{
			X: quat.X + (other.X-quat.X)*percent,
			Y: quat.Y + (other.Y-quat.Y)*percent,
			Z: quat.Z + (other.Z-quat.Z)*percent,
			W: quat.W + (other.W-quat.W)*percent,
		}.Unit()
	}

	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	ratioA := math.Sin((1-percent)*theta) / sinTheta
	ratioB := math.Sin(percent*theta) / sinTheta

	return Quaternion{
		X: quat.X*ratioA + other.X*ratioB,
		Y: quat.Y*ratioA + other.Y*ratioB,
		Z: quat.Z*ratioA + other.Z*ratioB,
		W: quat.W*ratioA + other.W*ratioB,
	}
}
