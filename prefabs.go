package umbra3d

import "math"

// Prefab mesh builders. These construct common shapes through a ManualObject
// so the generated meshes carry full position, normal, and texture
// coordinate data.

// NewPlaneMesh builds a flat mesh on the XZ plane, centered on the origin
// and facing +Y, with the world-unit dimensions and subdivision counts
// given.
func NewPlaneMesh(name string, width, depth float64, segmentsX, segmentsZ int, materialName string) (*Mesh, error) {
	if width <= 0 || depth <= 0 {
		return nil, newError(ErrInvalidArgument, "plane %q needs positive dimensions", name)
	}
	if segmentsX < 1 || segmentsZ < 1 {
		return nil, newError(ErrInvalidArgument, "plane %q needs at least one segment per axis", name)
	}

	object := NewManualObject(name + "/Builder")
	object.EstimateVertexCount((segmentsX + 1) * (segmentsZ + 1))
	object.EstimateIndexCount(segmentsX * segmentsZ * 6)
	if err := object.Begin(materialName, TopologyTriangleList); err != nil {
		return nil, err
	}

	for z := 0; z <= segmentsZ; z++ {
		for x := 0; x <= segmentsX; x++ {
			fx := float64(x) / float64(segmentsX)
			fz := float64(z) / float64(segmentsZ)
			object.Position(NewVector((fx-0.5)*width, 0, (fz-0.5)*depth))
			object.Normal(NewVector(0, 1, 0))
			object.TextureCoord(fx, fz)
		}
	}

	stride := uint32(segmentsX + 1)
	for z := 0; z < segmentsZ; z++ {
		for x := 0; x < segmentsX; x++ {
			corner := uint32(z)*stride + uint32(x)
			object.Triangle(corner, corner+stride, corner+1)
			object.Triangle(corner+1, corner+stride, corner+stride+1)
		}
	}

	if _, err := object.End(); err != nil {
		return nil, err
	}
	return object.ConvertToMesh(nil, name)
}

// NewCubeMesh builds an axis-aligned cube centered on the origin with the
// edge length given. Each face has its own four vertices so normals and
// texture coordinates stay per-face.
func NewCubeMesh(name string, size float64, materialName string) (*Mesh, error) {
	if size <= 0 {
		return nil, newError(ErrInvalidArgument, "cube %q needs a positive size", name)
	}

	object := NewManualObject(name + "/Builder")
	object.EstimateVertexCount(24)
	object.EstimateIndexCount(36)
	if err := object.Begin(materialName, TopologyTriangleList); err != nil {
		return nil, err
	}

	half := size / 2
	faces := []struct {
		normal Vector
		right  Vector
		up     Vector
	}{
		{NewVector(0, 0, 1), NewVector(1, 0, 0), NewVector(0, 1, 0)},
		{NewVector(0, 0, -1), NewVector(-1, 0, 0), NewVector(0, 1, 0)},
		{NewVector(1, 0, 0), NewVector(0, 0, -1), NewVector(0, 1, 0)},
		{NewVector(-1, 0, 0), NewVector(0, 0, 1), NewVector(0, 1, 0)},
		{NewVector(0, 1, 0), NewVector(1, 0, 0), NewVector(0, 0, -1)},
		{NewVector(0, -1, 0), NewVector(1, 0, 0), NewVector(0, 0, 1)},
	}

	for faceIndex, face := range faces {
		center := face.normal.Scale(half)
		for corner := 0; corner < 4; corner++ {
			u := float64(corner%2)*2 - 1
			v := float64(corner/2)*2 - 1
			position := center.Add(face.right.Scale(u * half)).Add(face.up.Scale(v * half))
			object.Position(position)
			object.Normal(face.normal)
			object.TextureCoord((u+1)/2, (1-v)/2)
		}
		base := uint32(faceIndex * 4)
		object.Triangle(base, base+1, base+2)
		object.Triangle(base+1, base+3, base+2)
	}

	if _, err := object.End(); err != nil {
		return nil, err
	}
	return object.ConvertToMesh(nil, name)
}

// NewSphereMesh builds a UV sphere centered on the origin with the radius
// and ring/segment counts given.
func NewSphereMesh(name string, radius float64, rings, segments int, materialName string) (*Mesh, error) {
	if radius <= 0 {
		return nil, newError(ErrInvalidArgument, "sphere %q needs a positive radius", name)
	}
	if rings < 2 || segments < 3 {
		return nil, newError(ErrInvalidArgument, "sphere %q needs at least 2 rings and 3 segments", name)
	}

	object := NewManualObject(name + "/Builder")
	object.EstimateVertexCount((rings + 1) * (segments + 1))
	object.EstimateIndexCount(rings * segments * 6)
	if err := object.Begin(materialName, TopologyTriangleList); err != nil {
		return nil, err
	}

	for ring := 0; ring <= rings; ring++ {
		polar := math.Pi * float64(ring) / float64(rings)
		y := math.Cos(polar)
		ringRadius := math.Sin(polar)
		for segment := 0; segment <= segments; segment++ {
			azimuth := 2 * math.Pi * float64(segment) / float64(segments)
			normal := NewVector(ringRadius*math.Cos(azimuth), y, ringRadius*math.Sin(azimuth))
			object.Position(normal.Scale(radius))
			object.Normal(normal)
			object.TextureCoord(float64(segment)/float64(segments), float64(ring)/float64(rings))
		}
	}

	stride := uint32(segments + 1)
	for ring := 0; ring < rings; ring++ {
		for segment := 0; segment < segments; segment++ {
			corner := uint32(ring)*stride + uint32(segment)
			object.Triangle(corner, corner+1, corner+stride)
			object.Triangle(corner+1, corner+stride+1, corner+stride)
		}
	}

	if _, err := object.End(); err != nil {
		return nil, err
	}
	return object.ConvertToMesh(nil, name)
}
