package umbra3d

import (
	"sort"
	"strconv"
)

// BillboardType controls how a set's billboards orient themselves.
type BillboardType int

const (
	// BillboardPoint billboards always face the camera fully.
	BillboardPoint BillboardType = iota
	// BillboardOrientedCommon billboards rotate around the set's common
	// direction only.
	BillboardOrientedCommon
	// BillboardOrientedSelf billboards rotate around their own direction only.
	BillboardOrientedSelf
	// BillboardPerpendicularCommon billboards face the set's common direction,
	// ignoring the camera.
	BillboardPerpendicularCommon
	// BillboardPerpendicularSelf billboards face their own direction, ignoring
	// the camera.
	BillboardPerpendicularSelf
)

// BillboardOrigin places a billboard's position within its quad.
type BillboardOrigin int

const (
	BillboardOriginCenter BillboardOrigin = iota
	BillboardOriginTopLeft
	BillboardOriginTopCenter
	BillboardOriginTopRight
	BillboardOriginCenterLeft
	BillboardOriginCenterRight
	BillboardOriginBottomLeft
	BillboardOriginBottomCenter
	BillboardOriginBottomRight
)

// Billboard is one camera-facing quad in a BillboardSet.
type Billboard struct {
	Position Vector
	// Direction is used by the self-oriented billboard types.
	Direction Vector
	Color     Color
	// Rotation spins the quad around its facing axis, in radians.
	Rotation float64

	width, height float64
	ownDimensions bool
	texCoordIndex int
}

// SetDimensions gives the billboard its own size instead of the set's
// default.
func (billboard *Billboard) SetDimensions(width, height float64) {
	billboard.width = width
	billboard.height = height
	billboard.ownDimensions = true
}

// HasOwnDimensions reports whether the billboard overrides the set's
// default size.
func (billboard *Billboard) HasOwnDimensions() bool { return billboard.ownDimensions }

// ResetDimensions returns the billboard to the set's default size.
func (billboard *Billboard) ResetDimensions() { billboard.ownDimensions = false }

// SetTexCoordIndex selects which of the set's texture coordinate rects the
// billboard uses.
func (billboard *Billboard) SetTexCoordIndex(index int) { billboard.texCoordIndex = index }

// FloatRect is an axis-aligned rectangle in texture space.
type FloatRect struct {
	Left, Top, Right, Bottom float64
}

// BillboardSet renders a pool of camera-facing quads under one material.
// The whole set is a single Renderable; its geometry is regenerated each
// frame for the camera it was last notified of.
type BillboardSet struct {
	MovableBase
	RenderableBase

	billboards []*Billboard
	poolSize   int

	defaultWidth  float64
	defaultHeight float64

	billboardType   BillboardType
	origin          BillboardOrigin
	commonDirection Vector
	commonUp        Vector

	texCoordRects []FloatRect

	materialName string
	material     *Material

	sortByDepth     bool
	worldSpace      bool
	boundsAutoSized bool

	localBounds AxisAlignedBox
	boundRadius float64
	boundsDirty bool

	currentCamera *Camera

	vertexData *VertexData
	indexData  *IndexData
	geomDirty  bool
}

var _ MovableObject = (*BillboardSet)(nil)
var _ Renderable = (*BillboardSet)(nil)

// NewBillboardSet creates an empty set with room for poolSize billboards.
func NewBillboardSet(name string, poolSize int) *BillboardSet {
	set := &BillboardSet{
		poolSize:        poolSize,
		defaultWidth:    100,
		defaultHeight:   100,
		commonDirection: NewVector(0, 0, 1),
		commonUp:        NewVector(0, 1, 0),
		texCoordRects:   []FloatRect{{0, 0, 1, 1}},
		localBounds:     NewBoxNull(),
		boundsAutoSized: true,
		geomDirty:       true,
	}
	set.initMovable(set, name)
	set.castShadows = false
	return set
}

// MovableType identifies the object as a billboard set.
func (set *BillboardSet) MovableType() string { return "BillboardSet" }

// TypeFlags returns the query type mask bit for billboard sets and the
// effects built on them.
func (set *BillboardSet) TypeFlags() uint32 { return TypeMaskBillboardSet }

// SetDefaultDimensions sets the size billboards without their own
// dimensions render at.
func (set *BillboardSet) SetDefaultDimensions(width, height float64) {
	set.defaultWidth = width
	set.defaultHeight = height
	set.boundsDirty = true
}

// DefaultDimensions returns the set's default billboard size.
func (set *BillboardSet) DefaultDimensions() (width, height float64) {
	return set.defaultWidth, set.defaultHeight
}

// SetBillboardType sets how the set's billboards orient themselves.
func (set *BillboardSet) SetBillboardType(billboardType BillboardType) {
	set.billboardType = billboardType
	set.geomDirty = true
}

// BillboardType returns how the set's billboards orient themselves.
func (set *BillboardSet) BillboardType() BillboardType { return set.billboardType }

// SetBillboardOrigin places billboard positions within their quads.
func (set *BillboardSet) SetBillboardOrigin(origin BillboardOrigin) {
	set.origin = origin
	set.geomDirty = true
}

// SetCommonDirection sets the axis the common-oriented types use.
func (set *BillboardSet) SetCommonDirection(direction Vector) {
	set.commonDirection = direction.Unit()
	set.geomDirty = true
}

// SetCommonUp sets the up vector the perpendicular types use.
func (set *BillboardSet) SetCommonUp(up Vector) {
	set.commonUp = up.Unit()
	set.geomDirty = true
}

// SetSortingEnabled sorts billboards far-to-near before building geometry,
// which transparent materials need.
func (set *BillboardSet) SetSortingEnabled(enabled bool) { set.sortByDepth = enabled }

// SetBillboardsInWorldSpace treats billboard positions as world-space
// coordinates, skipping the parent node's transform at render time.
func (set *BillboardSet) SetBillboardsInWorldSpace(worldSpace bool) {
	set.worldSpace = worldSpace
	set.geomDirty = true
}

// SetMaterialName sets the material the whole set renders with.
func (set *BillboardSet) SetMaterialName(name string) {
	set.materialName = name
	set.material = nil
}

// MaterialName returns the material name the set renders with.
func (set *BillboardSet) MaterialName() string { return set.materialName }

// Material resolves the set's material from the creator's library.
func (set *BillboardSet) Material() *Material {
	if set.material == nil && set.creator != nil && set.materialName != "" {
		set.material = set.creator.Library().Material(set.materialName)
	}
	return set.material
}

// SetTextureCoordRects replaces the set's texture coordinate rects.
// Billboards index into them with SetTexCoordIndex.
func (set *BillboardSet) SetTextureCoordRects(rects []FloatRect) {
	if len(rects) == 0 {
		rects = []FloatRect{{0, 0, 1, 1}}
	}
	set.texCoordRects = rects
	set.geomDirty = true
}

// SetTextureStacksAndSlices divides the texture into a stacks x slices grid
// of coordinate rects, row-major.
func (set *BillboardSet) SetTextureStacksAndSlices(stacks, slices int) error {
	if stacks < 1 || slices < 1 {
		return newError(ErrInvalidArgument, "texture grid must be at least 1x1, got %dx%d", stacks, slices)
	}
	rects := make([]FloatRect, 0, stacks*slices)
	for row := 0; row < stacks; row++ {
		for col := 0; col < slices; col++ {
			rects = append(rects, FloatRect{
				Left:   float64(col) / float64(slices),
				Top:    float64(row) / float64(stacks),
				Right:  float64(col+1) / float64(slices),
				Bottom: float64(row+1) / float64(stacks),
			})
		}
	}
	set.texCoordRects = rects
	set.geomDirty = true
	return nil
}

// CreateBillboard adds a billboard at the position provided. Nil is
// returned once the pool is full.
func (set *BillboardSet) CreateBillboard(position Vector) *Billboard {
	if set.poolSize > 0 && len(set.billboards) >= set.poolSize {
		return nil
	}
	billboard := &Billboard{
		Position:  position,
		Direction: NewVector(0, 0, 1),
		Color:     ColorWhite(),
	}
	set.billboards = append(set.billboards, billboard)
	set.boundsDirty = true
	set.geomDirty = true
	return billboard
}

// RemoveBillboard removes the billboard from the set.
func (set *BillboardSet) RemoveBillboard(billboard *Billboard) {
	for i, existing := range set.billboards {
		if existing == billboard {
			set.billboards = append(set.billboards[:i], set.billboards[i+1:]...)
			set.boundsDirty = true
			set.geomDirty = true
			return
		}
	}
}

// Clear removes every billboard.
func (set *BillboardSet) Clear() {
	set.billboards = set.billboards[:0]
	set.boundsDirty = true
	set.geomDirty = true
}

// BillboardCount returns the number of live billboards.
func (set *BillboardSet) BillboardCount() int { return len(set.billboards) }

// Billboards returns the set's live billboards.
func (set *BillboardSet) Billboards() []*Billboard { return set.billboards }

// SetPoolSize caps the number of live billboards; zero is unlimited.
func (set *BillboardSet) SetPoolSize(size int) { set.poolSize = size }

// SetBounds fixes the set's local bounds instead of deriving them from the
// billboards.
func (set *BillboardSet) SetBounds(box AxisAlignedBox, radius float64) {
	set.localBounds = box
	set.boundRadius = radius
	set.boundsAutoSized = false
	set.boundsDirty = false
}

// NotifyBillboardsChanged marks geometry and bounds stale after directly
// mutating billboard fields.
func (set *BillboardSet) NotifyBillboardsChanged() {
	set.boundsDirty = true
	set.geomDirty = true
}

func (set *BillboardSet) updateBounds() {
	if !set.boundsAutoSized {
		return
	}
	bounds := NewBoxNull()
	maxHalf := 0.0
	for _, billboard := range set.billboards {
		bounds = bounds.MergePoint(billboard.Position)
		width, height := set.defaultWidth, set.defaultHeight
		if billboard.ownDimensions {
			width, height = billboard.width, billboard.height
		}
		if half := maxFloat(width, height) * 0.5; half > maxHalf {
			maxHalf = half
		}
	}
	if !bounds.IsNull() {
		pad := NewVector(maxHalf, maxHalf, maxHalf)
		bounds = NewBox(bounds.Min.Sub(pad), bounds.Max.Add(pad))
	}
	set.localBounds = bounds
	set.boundRadius = bounds.Radius()
	set.boundsDirty = false
}

// BoundingBox returns the set's local bounds.
func (set *BillboardSet) BoundingBox() AxisAlignedBox {
	if set.boundsDirty {
		set.updateBounds()
	}
	return set.localBounds
}

// BoundingRadius returns the set's bounding radius.
func (set *BillboardSet) BoundingRadius() float64 {
	if set.boundsDirty {
		set.updateBounds()
	}
	return set.boundRadius
}

// NotifyCamera records the camera the next geometry build faces.
func (set *BillboardSet) NotifyCamera(camera *Camera) {
	set.MovableBase.NotifyCamera(camera)
	set.currentCamera = camera
	set.geomDirty = true
}

// UpdateRenderQueue queues the whole set as one Renderable.
func (set *BillboardSet) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	if len(set.billboards) == 0 {
		return
	}
	queue.AddRenderable(set, set.RenderQueueGroup(), set.RenderQueuePriority())
}

// VisitRenderables visits the set itself.
func (set *BillboardSet) VisitRenderables(visitor func(Renderable)) {
	visitor(set)
}

// billboardAxes returns the right and up vectors of one billboard's quad in
// local space, for the camera recorded at NotifyCamera.
func (set *BillboardSet) billboardAxes(billboard *Billboard) (right, up Vector) {
	var cameraDir, cameraUp Vector
	if set.currentCamera != nil {
		inverse := set.worldOrientation().Inverse()
		cameraDir = inverse.MultVec(set.currentCamera.DerivedDirection())
		cameraUp = inverse.MultVec(set.currentCamera.DerivedOrientation().YAxis())
	} else {
		cameraDir = NewVector(0, 0, -1)
		cameraUp = NewVector(0, 1, 0)
	}

	switch set.billboardType {
	case BillboardPoint:
		right = cameraDir.Cross(cameraUp).Unit()
		up = right.Cross(cameraDir).Unit()
	case BillboardOrientedCommon:
		up = set.commonDirection
		right = cameraDir.Cross(up)
		if right.IsZero() {
			right = NewVector(1, 0, 0)
		}
		right = right.Unit()
	case BillboardOrientedSelf:
		up = billboard.Direction.Unit()
		right = cameraDir.Cross(up)
		if right.IsZero() {
			right = NewVector(1, 0, 0)
		}
		right = right.Unit()
	case BillboardPerpendicularCommon:
		right = set.commonUp.Cross(set.commonDirection).Unit()
		up = set.commonDirection.Cross(right).Unit()
	case BillboardPerpendicularSelf:
		direction := billboard.Direction.Unit()
		right = set.commonUp.Cross(direction).Unit()
		up = direction.Cross(right).Unit()
	}

	if billboard.Rotation != 0 {
		axis := right.Cross(up).Unit()
		spin := NewQuaternionAxisAngle(axis, billboard.Rotation)
		right = spin.MultVec(right)
		up = spin.MultVec(up)
	}
	return right, up
}

func (set *BillboardSet) worldOrientation() Quaternion {
	if set.worldSpace {
		return NewQuaternionIdentity()
	}
	if node := set.ParentNode(); node != nil {
		return node.DerivedOrientation()
	}
	return NewQuaternionIdentity()
}

// originOffsets returns how far each corner sits from the billboard
// position, in half-size units along right (x) and up (y).
func (set *BillboardSet) originOffsets() (left, right, top, bottom float64) {
	switch set.origin {
	case BillboardOriginCenter:
		return -0.5, 0.5, 0.5, -0.5
	case BillboardOriginTopLeft:
		return 0, 1, 0, -1
	case BillboardOriginTopCenter:
		return -0.5, 0.5, 0, -1
	case BillboardOriginTopRight:
		return -1, 0, 0, -1
	case BillboardOriginCenterLeft:
		return 0, 1, 0.5, -0.5
	case BillboardOriginCenterRight:
		return -1, 0, 0.5, -0.5
	case BillboardOriginBottomLeft:
		return 0, 1, 1, 0
	case BillboardOriginBottomCenter:
		return -0.5, 0.5, 1, 0
	case BillboardOriginBottomRight:
		return -1, 0, 1, 0
	}
	return -0.5, 0.5, 0.5, -0.5
}

// billboardVertexSize: position (12) + color (16) + texcoord (8).
const billboardVertexSize = 36

func (set *BillboardSet) buildGeometry() {
	order := make([]*Billboard, len(set.billboards))
	copy(order, set.billboards)
	if set.sortByDepth && set.currentCamera != nil {
		inverse := set.worldOrientation().Inverse()
		cameraPosition := inverse.MultVec(set.currentCamera.DerivedPosition())
		sort.SliceStable(order, func(i, j int) bool {
			return order[i].Position.DistanceSquared(cameraPosition) > order[j].Position.DistanceSquared(cameraPosition)
		})
	}

	data := NewVertexData()
	data.Declaration.AddElement(0, 0, VETFloat3, SemanticPosition, 0)
	data.Declaration.AddElement(0, 12, VETFloat4, SemanticDiffuse, 0)
	data.Declaration.AddElement(0, 28, VETFloat2, SemanticTexCoord, 0)
	vertexBuffer := NewHardwareVertexBuffer(billboardVertexSize, len(order)*4, BufferUsageDynamicWriteOnly)
	data.Binding.SetBinding(0, vertexBuffer)
	data.Count = len(order) * 4

	indexBuffer := NewHardwareIndexBuffer(IndexType16, len(order)*6, BufferUsageDynamicWriteOnly)

	offsetLeft, offsetRight, offsetTop, offsetBottom := set.originOffsets()

	for i, billboard := range order {
		width, height := set.defaultWidth, set.defaultHeight
		if billboard.ownDimensions {
			width, height = billboard.width, billboard.height
		}
		right, up := set.billboardAxes(billboard)

		rect := set.texCoordRects[0]
		if billboard.texCoordIndex >= 0 && billboard.texCoordIndex < len(set.texCoordRects) {
			rect = set.texCoordRects[billboard.texCoordIndex]
		}

		// Corner order: top-left, top-right, bottom-left, bottom-right.
		corners := [4]Vector{
			billboard.Position.Add(right.Scale(offsetLeft * width)).Add(up.Scale(offsetTop * height)),
			billboard.Position.Add(right.Scale(offsetRight * width)).Add(up.Scale(offsetTop * height)),
			billboard.Position.Add(right.Scale(offsetLeft * width)).Add(up.Scale(offsetBottom * height)),
			billboard.Position.Add(right.Scale(offsetRight * width)).Add(up.Scale(offsetBottom * height)),
		}
		texCoords := [4][2]float64{
			{rect.Left, rect.Top},
			{rect.Right, rect.Top},
			{rect.Left, rect.Bottom},
			{rect.Right, rect.Bottom},
		}
		for corner := 0; corner < 4; corner++ {
			base := (i*4 + corner) * billboardVertexSize
			raw := vertexBuffer.data[base : base+billboardVertexSize]
			putFloat32(raw[0:], float32(corners[corner].X))
			putFloat32(raw[4:], float32(corners[corner].Y))
			putFloat32(raw[8:], float32(corners[corner].Z))
			putFloat32(raw[12:], billboard.Color.R)
			putFloat32(raw[16:], billboard.Color.G)
			putFloat32(raw[20:], billboard.Color.B)
			putFloat32(raw[24:], billboard.Color.A)
			putFloat32(raw[28:], float32(texCoords[corner][0]))
			putFloat32(raw[32:], float32(texCoords[corner][1]))
		}

		first := uint32(i * 4)
		indexes := [6]uint32{first, first + 2, first + 1, first + 1, first + 2, first + 3}
		for j, index := range indexes {
			indexBuffer.SetIndex(i*6+j, index)
		}
	}

	set.vertexData = data
	set.indexData = NewIndexData(indexBuffer)
	set.geomDirty = false
}

// RenderOperation fills op with the set's quads, rebuilt for the current
// camera if anything changed.
func (set *BillboardSet) RenderOperation(op *RenderOperation) {
	if set.geomDirty || set.vertexData == nil {
		set.buildGeometry()
	}
	op.VertexData = set.vertexData
	op.IndexData = set.indexData
	op.UseIndexes = true
	op.Topology = TopologyTriangleList
	op.NumInstances = 1
}

// WorldTransforms appends the parent node's transform, or identity when
// the billboards live in world space.
func (set *BillboardSet) WorldTransforms(dst []Matrix4) []Matrix4 {
	if node := set.ParentNode(); node != nil && !set.worldSpace {
		return append(dst, node.FullTransform())
	}
	return append(dst, NewMatrix4())
}

// SquaredViewDepth returns the squared camera distance to the set's node.
func (set *BillboardSet) SquaredViewDepth(camera *Camera) float64 {
	if node := set.ParentNode(); node != nil {
		return node.DerivedPosition().DistanceSquared(camera.DerivedPosition())
	}
	return 0
}

// Lights returns the lights affecting the set.
func (set *BillboardSet) Lights() LightList { return set.QueryLights() }

// CastsShadows returns false; billboards do not cast stencil shadows.
func (set *BillboardSet) CastsShadows() bool { return false }

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

type billboardSetFactory struct{}

func (billboardSetFactory) Type() string { return "BillboardSet" }

func (billboardSetFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	poolSize := 20
	if value, ok := params["poolSize"]; ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, wrapError(ErrInvalidArgument, err, "bad poolSize %q for billboard set %q", value, name)
		}
		poolSize = parsed
	}
	set := NewBillboardSet(name, poolSize)
	set.setCreator(creator)
	return set, nil
}
