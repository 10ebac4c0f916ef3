package umbra3d

import (
	"fmt"
	"math"
	"strings"
)

// Matrix4 represents a 4x4 matrix, used for transform composition and
// projection. Matrices are row-major and compose in row-vector convention:
// a point v is transformed as v * M, and A.Mult(B) applies A first, then B.
// Affine transforms carry their translation in row 3.
type Matrix4 [4][4]float64

// NewMatrix4 returns a new identity Matrix4.
func NewMatrix4() Matrix4 {
	return Matrix4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// NewMatrix4Translate returns a Matrix4 translating by the x, y, and z values provided.
func NewMatrix4Translate(x, y, z float64) Matrix4 {
	mat := NewMatrix4()
	mat[3][0] = x
	mat[3][1] = y
	mat[3][2] = z
	return mat
}

// NewMatrix4Scale returns a Matrix4 scaling by the x, y, and z values provided.
func NewMatrix4Scale(x, y, z float64) Matrix4 {
	mat := NewMatrix4()
	mat[0][0] = x
	mat[1][1] = y
	mat[2][2] = z
	return mat
}

// NewMatrix4Rotate returns a Matrix4 rotating around the given axis by the
// angle provided in radians.
func NewMatrix4Rotate(axis Vector, angle float64) Matrix4 {
	return NewQuaternionAxisAngle(axis, angle).ToMatrix4()
}

// NewMatrix4TRS composes a transform Matrix4 from the position, orientation,
// and scale provided, applying scale first, then rotation, then translation.
func NewMatrix4TRS(position Vector, orientation Quaternion, scale Vector) Matrix4 {
	mat := orientation.ToMatrix4()

	mat[0][0] *= scale.X
	mat[0][1] *= scale.X
	mat[0][2] *= scale.X

	mat[1][0] *= scale.Y
	mat[1][1] *= scale.Y
	mat[1][2] *= scale.Y

	mat[2][0] *= scale.Z
	mat[2][1] *= scale.Z
	mat[2][2] *= scale.Z

	mat[3][0] = position.X
	mat[3][1] = position.Y
	mat[3][2] = position.Z

	return mat
}

// Mult returns the product of the calling Matrix4 and the other Matrix4; the
// result applies the caller's transform first, then the other's.
func (matrix Matrix4) Mult(other Matrix4) Matrix4 {
	var out Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = matrix[i][0]*other[0][j] + matrix[i][1]*other[1][j] + matrix[i][2]*other[2][j] + matrix[i][3]*other[3][j]
		}
	}
	return out
}

// MultVec transforms the Vector provided as a point (W assumed to be 1),
// returning the transformed Vector.
func (matrix Matrix4) MultVec(vec Vector) Vector {
	return Vector{
		X: matrix[0][0]*vec.X + matrix[1][0]*vec.Y + matrix[2][0]*vec.Z + matrix[3][0],
		Y: matrix[0][1]*vec.X + matrix[1][1]*vec.Y + matrix[2][1]*vec.Z + matrix[3][1],
		Z: matrix[0][2]*vec.X + matrix[1][2]*vec.Y + matrix[2][2]*vec.Z + matrix[3][2],
	}
}

// MultVecDirection transforms the Vector provided as a direction, ignoring
// any translation in the matrix.
func (matrix Matrix4) MultVecDirection(vec Vector) Vector {
	return Vector{
		X: matrix[0][0]*vec.X + matrix[1][0]*vec.Y + matrix[2][0]*vec.Z,
		Y: matrix[0][1]*vec.X + matrix[1][1]*vec.Y + matrix[2][1]*vec.Z,
		Z: matrix[0][2]*vec.X + matrix[1][2]*vec.Y + matrix[2][2]*vec.Z,
	}
}

// MultVecW transforms the Vector provided as a 4D point using the input
// Vector's W component, returning a full 4D result (used for projection).
func (matrix Matrix4) MultVecW(vec Vector) Vector {
	w := vec.W
	if w == 0 {
		w = 1
	}
	return Vector{
		X: matrix[0][0]*vec.X + matrix[1][0]*vec.Y + matrix[2][0]*vec.Z + matrix[3][0]*w,
		Y: matrix[0][1]*vec.X + matrix[1][1]*vec.Y + matrix[2][1]*vec.Z + matrix[3][1]*w,
		Z: matrix[0][2]*vec.X + matrix[1][2]*vec.Y + matrix[2][2]*vec.Z + matrix[3][2]*w,
		W: matrix[0][3]*vec.X + matrix[1][3]*vec.Y + matrix[2][3]*vec.Z + matrix[3][3]*w,
	}
}

// Row returns the indexed row of the Matrix4 as a Vector.
func (matrix Matrix4) Row(index int) Vector {
	return Vector{matrix[index][0], matrix[index][1], matrix[index][2], matrix[index][3]}
}

// Column returns the indexed column of the Matrix4 as a Vector.
func (matrix Matrix4) Column(index int) Vector {
	return Vector{matrix[0][index], matrix[1][index], matrix[2][index], matrix[3][index]}
}

// SetRow sets the indexed row of the Matrix4 from the Vector provided.
func (matrix *Matrix4) SetRow(index int, vec Vector) {
	matrix[index][0] = vec.X
	matrix[index][1] = vec.Y
	matrix[index][2] = vec.Z
	matrix[index][3] = vec.W
}

// Translation returns the translation component of an affine Matrix4.
func (matrix Matrix4) Translation() Vector {
	return Vector{X: matrix[3][0], Y: matrix[3][1], Z: matrix[3][2]}
}

// Transposed returns the transpose of the Matrix4.
func (matrix Matrix4) Transposed() Matrix4 {
	var out Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = matrix[j][i]
		}
	}
	return out
}

// IsAffine returns whether the Matrix4 is affine (its projection column is
// {0, 0, 0, 1}).
func (matrix Matrix4) IsAffine() bool {
	return matrix[0][3] == 0 && matrix[1][3] == 0 && matrix[2][3] == 0 && matrix[3][3] == 1
}

// InvertedAffine returns the inverse of an affine Matrix4. This is cheaper
// than a general inversion; the caller must ensure IsAffine() holds.
func (matrix Matrix4) InvertedAffine() Matrix4 {

	m00, m01, m02 := matrix[0][0], matrix[0][1], matrix[0][2]
	m10, m11, m12 := matrix[1][0], matrix[1][1], matrix[1][2]
	m20, m21, m22 := matrix[2][0], matrix[2][1], matrix[2][2]

	det := m00*(m11*m22-m12*m21) - m01*(m10*m22-m12*m20) + m02*(m10*m21-m11*m20)
	invDet := 1.0 / det

	var out Matrix4

	out[0][0] = (m11*m22 - m12*m21) * invDet
	out[0][1] = (m02*m21 - m01*m22) * invDet
	out[0][2] = (m01*m12 - m02*m11) * invDet

	out[1][0] = (m12*m20 - m10*m22) * invDet
	out[1][1] = (m00*m22 - m02*m20) * invDet
	out[1][2] = (m02*m10 - m00*m12) * invDet

	out[2][0] = (m10*m21 - m11*m20) * invDet
	out[2][1] = (m01*m20 - m00*m21) * invDet
	out[2][2] = (m00*m11 - m01*m10) * invDet

	t := matrix.Translation()
	out[3][0] = -(t.X*out[0][0] + t.Y*out[1][0] + t.Z*out[2][0])
	out[3][1] = -(t.X*out[0][1] + t.Y*out[1][1] + t.Z*out[2][1])
	out[3][2] = -(t.X*out[0][2] + t.Y*out[1][2] + t.Z*out[2][2])
	out[3][3] = 1

	return out
}

// Inverted returns the inverse of the Matrix4, such that
// matrix.Mult(matrix.Inverted()) is the identity. Affine matrices take the
// cheaper affine path automatically.
func (matrix Matrix4) Inverted() Matrix4 {

	if matrix.IsAffine() {
		return matrix.InvertedAffine()
	}

	// General inversion via cofactor expansion over the flattened matrix.
	var m [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i*4+j] = matrix[i][j]
		}
	}

	var inv [16]float64

	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 {
		return NewMatrix4()
	}
	det = 1.0 / det

	var out Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = inv[i*4+j] * det
		}
	}
	return out
}

// Decompose breaks an affine Matrix4 down into its translation, scale, and
// rotation, in that return order.
func (matrix Matrix4) Decompose() (Vector, Vector, Quaternion) {

	position := matrix.Translation()

	scale := Vector{
		X: matrix.Row(0).Magnitude(),
		Y: matrix.Row(1).Magnitude(),
		Z: matrix.Row(2).Magnitude(),
	}

	// A negative determinant means one axis is mirrored.
	det := matrix[0][0]*(matrix[1][1]*matrix[2][2]-matrix[1][2]*matrix[2][1]) -
		matrix[0][1]*(matrix[1][0]*matrix[2][2]-matrix[1][2]*matrix[2][0]) +
		matrix[0][2]*(matrix[1][0]*matrix[2][1]-matrix[1][1]*matrix[2][0])
	if det < 0 {
		scale.X = -scale.X
	}

	rotMat := matrix
	if scale.X != 0 {
		rotMat[0][0] /= scale.X
		rotMat[0][1] /= scale.X
		rotMat[0][2] /= scale.X
	}
	if scale.Y != 0 {
		rotMat[1][0] /= scale.Y
		rotMat[1][1] /= scale.Y
		rotMat[1][2] /= scale.Y
	}
	if scale.Z != 0 {
		rotMat[2][0] /= scale.Z
		rotMat[2][1] /= scale.Z
		rotMat[2][2] /= scale.Z
	}

	return position, scale, NewQuaternionFromMatrix(rotMat)
}

// Equals returns whether the calling Matrix4 matches the other Matrix4
// provided to within a small epsilon per element.
func (matrix Matrix4) Equals(other Matrix4) bool {
	const eps = 1e-9
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(matrix[i][j]-other[i][j]) > eps {
				return false
			}
		}
	}
	return true
}

// IsIdentity returns whether the Matrix4 is the identity matrix.
func (matrix Matrix4) IsIdentity() bool {
	return matrix.Equals(NewMatrix4())
}

// NewProjectionPerspective returns a perspective projection Matrix4 with
// fovY in degrees. If far <= 0, the far plane is placed at infinity.
func NewProjectionPerspective(fovY, near, far, aspectRatio float64) Matrix4 {

	t := 1.0 / math.Tan(fovY*math.Pi/360)

	var mat Matrix4
	mat[0][0] = t / aspectRatio
	mat[1][1] = t
	mat[2][3] = -1

	if far <= 0 {
		// Infinite far plane.
		mat[2][2] = -1
		mat[3][2] = -2 * near
	} else {
		mat[2][2] = (far + near) / (near - far)
		mat[3][2] = (2 * far * near) / (near - far)
	}

	return mat
}

// NewProjectionOrthographic returns an orthographic projection Matrix4 with
// the clip volume boundaries provided.
func NewProjectionOrthographic(near, far, left, right, bottom, top float64) Matrix4 {
	mat := NewMatrix4()
	mat[0][0] = 2 / (right - left)
	mat[1][1] = 2 / (top - bottom)
	mat[2][2] = -2 / (far - near)
	mat[3][0] = -(right + left) / (right - left)
	mat[3][1] = -(top + bottom) / (top - bottom)
	mat[3][2] = -(far + near) / (far - near)
	return mat
}

func (matrix Matrix4) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, "%v", matrix[i])
		if i < 3 {
			b.WriteString(", ")
		}
	}
	b.WriteString("}")
	return b.String()
}
