package umbra3d

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Visibility is the result of testing a volume against a Frustum.
type Visibility int

const (
	VisibilityNone    Visibility = iota // Entirely outside the frustum
	VisibilityPartial                   // Straddling at least one frustum plane
	VisibilityFull                      // Entirely inside the frustum
)

// ProjectionType distinguishes perspective from orthographic cameras.
type ProjectionType int

const (
	ProjectionPerspective ProjectionType = iota
	ProjectionOrthographic
)

// FrustumPlane indexes the six planes of a Frustum.
type FrustumPlane int

const (
	FrustumPlaneNear FrustumPlane = iota
	FrustumPlaneFar
	FrustumPlaneLeft
	FrustumPlaneRight
	FrustumPlaneTop
	FrustumPlaneBottom
)

// Frustum is a camera's viewing volume: the projection parameters plus the
// six world-space planes extracted from the view-projection matrix. Planes
// face inward, so a point inside the frustum has a positive distance to all
// of them.
type Frustum struct {
	projectionType ProjectionType

	fovY        float64 // Vertical field of view, degrees (perspective)
	aspect      float64
	nearDist    float64
	farDist     float64 // <= 0 means an infinite far plane
	orthoHeight float64

	planes      [6]Plane
	planesDirty bool

	projMatrix      Matrix4
	projMatrixDirty bool
}

func newFrustumDefaults() Frustum {
	return Frustum{
		fovY:            45,
		aspect:          4.0 / 3.0,
		nearDist:        0.1,
		farDist:         1000,
		orthoHeight:     100,
		planesDirty:     true,
		projMatrixDirty: true,
	}
}

// ProjectionType returns whether the frustum is perspective or orthographic.
func (frustum *Frustum) ProjectionType() ProjectionType { return frustum.projectionType }

// SetProjectionType switches between perspective and orthographic projection.
func (frustum *Frustum) SetProjectionType(projectionType ProjectionType) {
	frustum.projectionType = projectionType
	frustum.invalidateProjection()
}

// FOVy returns the vertical field of view in degrees.
func (frustum *Frustum) FOVy() float64 { return frustum.fovY }

// SetFOVy sets the vertical field of view in degrees.
func (frustum *Frustum) SetFOVy(degrees float64) {
	frustum.fovY = degrees
	frustum.invalidateProjection()
}

// AspectRatio returns the frustum's width / height ratio.
func (frustum *Frustum) AspectRatio() float64 { return frustum.aspect }

// SetAspectRatio sets the frustum's width / height ratio.
func (frustum *Frustum) SetAspectRatio(aspect float64) {
	frustum.aspect = aspect
	frustum.invalidateProjection()
}

// NearClipDistance returns the near plane distance.
func (frustum *Frustum) NearClipDistance() float64 { return frustum.nearDist }

// SetNearClipDistance sets the near plane distance. It must be positive.
func (frustum *Frustum) SetNearClipDistance(distance float64) {
	if distance <= 0 {
		logger.Warn("ignoring non-positive near clip distance", "distance", distance)
		return
	}
	frustum.nearDist = distance
	frustum.invalidateProjection()
}

// FarClipDistance returns the far plane distance; zero or negative means an
// infinite far plane.
func (frustum *Frustum) FarClipDistance() float64 { return frustum.farDist }

// SetFarClipDistance sets the far plane distance. Zero or a negative value
// selects an infinite far plane.
func (frustum *Frustum) SetFarClipDistance(distance float64) {
	frustum.farDist = distance
	frustum.invalidateProjection()
}

// OrthoWindowHeight returns the world-space height of the orthographic view.
func (frustum *Frustum) OrthoWindowHeight() float64 { return frustum.orthoHeight }

// SetOrthoWindowHeight sets the world-space height of the orthographic view;
// the width follows from the aspect ratio.
func (frustum *Frustum) SetOrthoWindowHeight(height float64) {
	frustum.orthoHeight = height
	frustum.invalidateProjection()
}

func (frustum *Frustum) invalidateProjection() {
	frustum.projMatrixDirty = true
	frustum.planesDirty = true
}

// ProjectionMatrix returns the frustum's projection matrix, rebuilding it if
// any projection parameter changed.
func (frustum *Frustum) ProjectionMatrix() Matrix4 {
	if frustum.projMatrixDirty {
		switch frustum.projectionType {
		case ProjectionPerspective:
			frustum.projMatrix = NewProjectionPerspective(frustum.fovY, frustum.nearDist, frustum.farDist, frustum.aspect)
		case ProjectionOrthographic:
			h := frustum.orthoHeight / 2
			w := h * frustum.aspect
			frustum.projMatrix = NewProjectionOrthographic(frustum.nearDist, frustum.farDist, -w, w, -h, h)
		}
		frustum.projMatrixDirty = false
	}
	return frustum.projMatrix
}

// updatePlanes re-extracts the six world-space planes from the combined
// view-projection matrix provided. With row vectors the clip-space
// inequalities -w <= x', x' <= w and so on each resolve to a column
// combination of the matrix.
func (frustum *Frustum) updatePlanes(viewProj Matrix4) {
	extract := func(sign float64, axis int) Plane {
		p := Plane{
			Normal: NewVector(
				viewProj[0][3]+sign*viewProj[0][axis],
				viewProj[1][3]+sign*viewProj[1][axis],
				viewProj[2][3]+sign*viewProj[2][axis],
			),
			D: viewProj[3][3] + sign*viewProj[3][axis],
		}
		return p.Normalized()
	}
	frustum.planes[FrustumPlaneLeft] = extract(1, 0)
	frustum.planes[FrustumPlaneRight] = extract(-1, 0)
	frustum.planes[FrustumPlaneBottom] = extract(1, 1)
	frustum.planes[FrustumPlaneTop] = extract(-1, 1)
	frustum.planes[FrustumPlaneNear] = extract(1, 2)
	frustum.planes[FrustumPlaneFar] = extract(-1, 2)
	frustum.planesDirty = false
}

// Camera is the viewpoint scenes are rendered from: a Frustum positioned by
// the scene node it is attached to, plus the textures rendering resolves
// into. The camera's world position and orientation come entirely from its
// parent node.
type Camera struct {
	MovableBase
	Frustum

	viewMatrix      Matrix4
	viewMatrixDirty bool

	// lodCamera, if set, stands in for this camera in all distance-based
	// detail decisions, letting one camera drive detail while another views.
	lodCamera *Camera

	width  int
	height int

	colorTexture *ebiten.Image
	depthTexture *ebiten.Image

	// visibleBounds accumulates the world boxes of everything found visible
	// during the camera's last culling pass.
	visibleBounds AxisAlignedBox

	windowedVisibility bool // When false, culling treats everything as visible
}

var _ MovableObject = (*Camera)(nil)

// NewCamera creates a Camera rendering at the resolution given, with a
// default perspective projection.
func NewCamera(name string, width, height int) *Camera {
	camera := &Camera{
		Frustum:            newFrustumDefaults(),
		viewMatrixDirty:    true,
		windowedVisibility: true,
		visibleBounds:      NewBoxNull(),
	}
	camera.initMovable(camera, name)
	camera.Resize(width, height)
	if height > 0 {
		camera.SetAspectRatio(float64(width) / float64(height))
	}
	return camera
}

// MovableType identifies the object as a camera to factories and queries.
func (camera *Camera) MovableType() string { return "Camera" }

// TypeFlags returns the query type mask bit for cameras.
func (camera *Camera) TypeFlags() uint32 { return TypeMaskCamera }

// Resize replaces the camera's backing textures with new ones at the width
// and height provided. The old textures are disposed.
func (camera *Camera) Resize(width, height int) {
	if camera.colorTexture != nil {
		if w, h := camera.colorTexture.Size(); w == width && h == height {
			return
		}
		camera.colorTexture.Dispose()
		camera.depthTexture.Dispose()
	}
	camera.width = width
	camera.height = height
	if width > 0 && height > 0 {
		camera.colorTexture = ebiten.NewImage(width, height)
		camera.depthTexture = ebiten.NewImage(width, height)
	}
}

// Size returns the pixel resolution of the camera's backing textures.
func (camera *Camera) Size() (width, height int) {
	return camera.width, camera.height
}

// ColorTexture returns the texture the camera's renders resolve color into.
func (camera *Camera) ColorTexture() *ebiten.Image { return camera.colorTexture }

// DepthTexture returns the texture the camera's renders resolve depth into.
func (camera *Camera) DepthTexture() *ebiten.Image { return camera.depthTexture }

// SetLodCamera makes the camera provided stand in for this one in all
// distance-based detail decisions. Pass nil to restore the default.
func (camera *Camera) SetLodCamera(lodCamera *Camera) {
	camera.lodCamera = lodCamera
}

// LodCamera returns the camera used for distance-based detail decisions,
// which is the camera itself unless overridden by SetLodCamera.
func (camera *Camera) LodCamera() *Camera {
	if camera.lodCamera != nil {
		return camera.lodCamera
	}
	return camera
}

// SetCullingEnabled toggles frustum culling. When disabled, every visibility
// test reports full visibility.
func (camera *Camera) SetCullingEnabled(enabled bool) {
	camera.windowedVisibility = enabled
}

// PixelDisplayRatio returns the fraction of the viewport height that one
// world unit covers at unit distance, used to convert projected sizes to
// pixels for minimum-pixel-size culling.
func (camera *Camera) PixelDisplayRatio() float64 {
	if camera.height == 0 {
		return 0
	}
	if camera.projectionType == ProjectionOrthographic {
		return camera.orthoHeight / float64(camera.height)
	}
	return 2 * math.Tan(degToRad(camera.fovY)/2) / float64(camera.height)
}

func (camera *Camera) notifyMoved() {
	camera.viewMatrixDirty = true
	camera.planesDirty = true
	camera.MovableBase.notifyMoved()
}

// DerivedPosition returns the camera's position in world space.
func (camera *Camera) DerivedPosition() Vector {
	if node := camera.ParentNode(); node != nil {
		return node.DerivedPosition()
	}
	return vectorZero
}

// DerivedOrientation returns the camera's orientation in world space.
func (camera *Camera) DerivedOrientation() Quaternion {
	if node := camera.ParentNode(); node != nil {
		return node.DerivedOrientation()
	}
	return NewQuaternionIdentity()
}

// DerivedDirection returns the direction the camera looks along in world
// space, which is its node's local -Z axis.
func (camera *Camera) DerivedDirection() Vector {
	return camera.DerivedOrientation().MultVec(vectorNegUnitZ)
}

// ViewMatrix returns the camera's world-to-view matrix, rebuilding it if the
// camera's node moved.
func (camera *Camera) ViewMatrix() Matrix4 {
	if camera.viewMatrixDirty {
		// The inverse of the node's rigid transform, ignoring its scale.
		position := camera.DerivedPosition()
		rot := camera.DerivedOrientation().Inverse().ToMatrix4()
		trans := NewMatrix4Translate(-position.X, -position.Y, -position.Z)
		camera.viewMatrix = trans.Mult(rot)
		camera.viewMatrixDirty = false
	}
	return camera.viewMatrix
}

// ViewProjectionMatrix returns the combined world-to-clip matrix.
func (camera *Camera) ViewProjectionMatrix() Matrix4 {
	return camera.ViewMatrix().Mult(camera.ProjectionMatrix())
}

func (camera *Camera) updatePlanesIfNeeded() {
	if camera.planesDirty {
		camera.updatePlanes(camera.ViewProjectionMatrix())
	}
}

// WorldPlane returns the world-space frustum plane requested.
func (camera *Camera) WorldPlane(plane FrustumPlane) Plane {
	camera.updatePlanesIfNeeded()
	return camera.planes[plane]
}

// VisibilityOfBox classifies the world-space box against the frustum.
// Null boxes are never visible; infinite boxes are always partially visible.
func (camera *Camera) VisibilityOfBox(box AxisAlignedBox) Visibility {
	if !camera.windowedVisibility {
		return VisibilityFull
	}
	switch box.Extent {
	case ExtentNull:
		return VisibilityNone
	case ExtentInfinite:
		return VisibilityPartial
	}
	camera.updatePlanesIfNeeded()
	visibility := VisibilityFull
	for i := range camera.planes {
		if camera.farDist <= 0 && FrustumPlane(i) == FrustumPlaneFar {
			continue
		}
		switch camera.planes[i].SideOfBox(box) {
		case PlaneSideNegative:
			return VisibilityNone
		case PlaneSideNone:
			visibility = VisibilityPartial
		}
	}
	return visibility
}

// VisibilityOfSphere classifies the world-space sphere against the frustum.
func (camera *Camera) VisibilityOfSphere(sphere Sphere) Visibility {
	if !camera.windowedVisibility {
		return VisibilityFull
	}
	camera.updatePlanesIfNeeded()
	visibility := VisibilityFull
	for i := range camera.planes {
		if camera.farDist <= 0 && FrustumPlane(i) == FrustumPlaneFar {
			continue
		}
		distance := camera.planes[i].Distance(sphere.Center)
		if distance < -sphere.Radius {
			return VisibilityNone
		}
		if distance < sphere.Radius {
			visibility = VisibilityPartial
		}
	}
	return visibility
}

// IsBoxVisible reports whether any part of the world-space box is inside the
// frustum.
func (camera *Camera) IsBoxVisible(box AxisAlignedBox) bool {
	return camera.VisibilityOfBox(box) != VisibilityNone
}

// IsSphereVisible reports whether any part of the world-space sphere is
// inside the frustum.
func (camera *Camera) IsSphereVisible(sphere Sphere) bool {
	return camera.VisibilityOfSphere(sphere) != VisibilityNone
}

// IsPointVisible reports whether the world-space point is inside the
// frustum.
func (camera *Camera) IsPointVisible(point Vector) bool {
	if !camera.windowedVisibility {
		return true
	}
	camera.updatePlanesIfNeeded()
	for i := range camera.planes {
		if camera.farDist <= 0 && FrustumPlane(i) == FrustumPlaneFar {
			continue
		}
		if camera.planes[i].SideOfPoint(point) == PlaneSideNegative {
			return false
		}
	}
	return true
}

// CameraToViewportRay returns the world-space ray through the viewport
// position given, where x and y are in [0, 1] with (0, 0) the top left.
func (camera *Camera) CameraToViewportRay(x, y float64) Ray {
	inverseVP := camera.ViewProjectionMatrix().Inverted()
	nx := 2*x - 1
	ny := 1 - 2*y
	unproject := func(z float64) Vector {
		v := inverseVP.MultVecW(Vector{X: nx, Y: ny, Z: z, W: 1})
		if v.W != 0 {
			v = v.Scale(1 / v.W)
		}
		return NewVector(v.X, v.Y, v.Z)
	}
	near := unproject(-1)
	mid := unproject(0)
	return NewRay(near, mid.Sub(near))
}

// resetVisibleBounds clears the accumulated bounds before a culling pass.
func (camera *Camera) resetVisibleBounds() {
	camera.visibleBounds = NewBoxNull()
}

func (camera *Camera) noteVisibleBounds(box AxisAlignedBox) {
	camera.visibleBounds = camera.visibleBounds.Merge(box)
}

// VisibleBounds returns the merged world bounds of everything the camera
// found visible in its last culling pass.
func (camera *Camera) VisibleBounds() AxisAlignedBox {
	return camera.visibleBounds
}

// BoundingBox returns a degenerate local box at the camera's origin; cameras
// occupy no space in the scene.
func (camera *Camera) BoundingBox() AxisAlignedBox {
	return NewBoxNull()
}

// BoundingRadius returns the camera's nominal bounding radius.
func (camera *Camera) BoundingRadius() float64 { return 0 }

// UpdateRenderQueue is a no-op; cameras render scenes, not themselves.
func (camera *Camera) UpdateRenderQueue(queue *RenderQueue, cam *Camera) {}

// VisitRenderables is a no-op; cameras own no renderables.
func (camera *Camera) VisitRenderables(visitor func(Renderable)) {}

// cameraFactory creates Cameras for a SceneManager.
type cameraFactory struct{}

func (cameraFactory) Type() string { return "Camera" }

func (cameraFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	camera := NewCamera(name, 0, 0)
	camera.setCreator(creator)
	return camera, nil
}
