package umbra3d

import "math"

// Type masks identifying the built-in movable categories, used by scene
// queries to narrow results by kind.
const (
	TypeMaskEntity uint32 = 1 << (31 - iota)
	TypeMaskLight
	TypeMaskCamera
	TypeMaskStaticGeometry
	TypeMaskInstanceBatch
	TypeMaskBillboardSet
	TypeMaskParticleSystem
	TypeMaskUser uint32 = 0x0000FFFF
)

// MovableObject is the interface all scene attachments fulfill: anything that
// can be attached to a SceneNode, culled against a camera, and asked to push
// Renderables into the RenderQueue.
type MovableObject interface {
	// Name returns the object's name, unique per movable type within its SceneManager.
	Name() string
	// MovableType returns the type string of the factory that created this object.
	MovableType() string
	// TypeFlags returns the type mask used by scene queries to filter by kind.
	TypeFlags() uint32
	// Creator returns the SceneManager that created this object, if any.
	Creator() *SceneManager

	// ParentNode returns the SceneNode this object is attached to, or nil.
	ParentNode() *SceneNode
	// IsAttached returns whether this object is attached to a SceneNode or TagPoint.
	IsAttached() bool
	// IsInScene returns whether this object is attached and its node chain
	// reaches a scene root.
	IsInScene() bool
	// AttachedToTagPoint returns whether this object hangs off a bone
	// TagPoint rather than a regular SceneNode.
	AttachedToTagPoint() bool

	// BoundingBox returns the object's bounds in local space.
	BoundingBox() AxisAlignedBox
	// BoundingRadius returns the radius of the object's local bounding sphere.
	BoundingRadius() float64
	// WorldBoundingBox returns the object's bounds in world space; when derive
	// is true the cached value is recomputed from the current transform.
	WorldBoundingBox(derive bool) AxisAlignedBox
	// WorldBoundingSphere returns the object's bounding sphere in world
	// space; when derive is true the cached value is recomputed.
	WorldBoundingSphere(derive bool) Sphere

	// NotifyCamera is called once per frame, per camera, before the object is
	// asked for renderables; implementations use it for distance activation
	// and LOD selection.
	NotifyCamera(camera *Camera)
	// UpdateRenderQueue pushes the object's Renderables for this frame into
	// the queue provided.
	UpdateRenderQueue(queue *RenderQueue, camera *Camera)
	// VisitRenderables calls the visitor for every Renderable this object
	// could emit.
	VisitRenderables(visitor func(renderable Renderable))

	// Visible returns the object's own visibility switch.
	Visible() bool
	// SetVisible shows or hides the object.
	SetVisible(visible bool)
	// IsVisible returns whether the object should render this frame: it is
	// visible, within rendering distance, and large enough on screen.
	IsVisible() bool

	CastShadows() bool
	SetCastShadows(casts bool)
	// ShadowCaster returns the object's shadow-caster capability, or nil if
	// the object cannot produce shadow volumes.
	ShadowCaster() ShadowCaster

	QueryFlags() uint32
	SetQueryFlags(flags uint32)
	VisibilityFlags() uint32
	SetVisibilityFlags(flags uint32)
	LightMask() uint32
	SetLightMask(mask uint32)

	// RenderingDistance returns the distance beyond which the object is not
	// rendered (0 means unlimited).
	RenderingDistance() float64
	SetRenderingDistance(distance float64)
	// MinPixelSize returns the screen size in pixels below which the object
	// is not rendered (0 disables the check).
	MinPixelSize() float64
	SetMinPixelSize(pixels float64)

	RenderQueueGroup() RenderQueueGroupID
	SetRenderQueueGroup(group RenderQueueGroupID)
	RenderQueuePriority() uint16
	SetRenderQueuePriority(priority uint16)

	// QueryLights returns the lights affecting this object, cached per frame.
	QueryLights() LightList

	SetListener(listener MovableObjectListener)
	MovableListener() MovableObjectListener

	// Properties returns the object's user property map.
	Properties() *Properties

	notifyAttached(node *SceneNode, tagPoint bool)
	notifyMoved()
	setCreator(creator *SceneManager)
	setParentTagPoint(tagPoint *TagPoint)
}

// MovableObjectListener receives notifications about a MovableObject.
// ObjectRendering may return false to skip rendering the object for one
// frame; ObjectQueryLights may supply a custom light list.
type MovableObjectListener interface {
	ObjectAttached(object MovableObject, node *SceneNode)
	ObjectDetached(object MovableObject, node *SceneNode)
	ObjectMoved(object MovableObject)
	ObjectRendering(object MovableObject, camera *Camera) bool
	ObjectQueryLights(object MovableObject) (LightList, bool)
	ObjectDestroyed(object MovableObject)
}

// NameValueMap carries string creation parameters for movable-object factories.
type NameValueMap map[string]string

// MovableObjectFactory creates movable objects of one registered type.
type MovableObjectFactory interface {
	// Type returns the type string this factory is registered under.
	Type() string
	// CreateInstance creates a movable with the name provided; params may be
	// nil. The recognized parameter keys are specific to each type.
	CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error)
}

// MovableBase carries the state and behavior shared by every movable object.
// Concrete movables embed it and pass themselves as the owner so the base can
// reach their local bounds.
type MovableBase struct {
	owner   MovableObject
	name    string
	creator *SceneManager

	parentNode       *SceneNode
	parentIsTagPoint bool
	parentTagPoint   *TagPoint

	visible           bool
	castShadows       bool
	debugDisplay      bool
	renderingDistance float64
	minPixelSize      float64

	queryFlags      uint32
	visibilityFlags uint32
	lightMask       uint32

	queueGroup    RenderQueueGroupID
	queuePriority uint16

	worldBox         AxisAlignedBox
	worldBoxDirty    bool
	worldSphere      Sphere
	worldSphereDirty bool

	beyondFarDistance bool
	renderingDisabled bool

	lightList        LightList
	lightListUpdated uint64

	listener MovableObjectListener
	props    *Properties
}

func (base *MovableBase) initMovable(owner MovableObject, name string) {
	base.owner = owner
	base.name = name
	base.visible = true
	base.castShadows = true
	base.queryFlags = 0xFFFFFFFF
	base.visibilityFlags = 0xFFFFFFFF
	base.lightMask = 0xFFFFFFFF
	base.queueGroup = RenderQueueMain
	base.worldBoxDirty = true
	base.worldSphereDirty = true
	base.props = NewProperties()
}

// Name returns the object's name.
func (base *MovableBase) Name() string {
	return base.name
}

// Creator returns the SceneManager this object was created through, if any.
func (base *MovableBase) Creator() *SceneManager {
	return base.creator
}

func (base *MovableBase) setCreator(creator *SceneManager) {
	base.creator = creator
}

// ParentNode returns the SceneNode this object is attached to, or nil.
func (base *MovableBase) ParentNode() *SceneNode {
	return base.parentNode
}

// IsAttached returns whether this object is attached to a SceneNode or TagPoint.
func (base *MovableBase) IsAttached() bool {
	return base.parentNode != nil
}

// IsInScene returns whether this object is attached and its node chain
// reaches a scene root.
func (base *MovableBase) IsInScene() bool {
	return base.parentNode != nil && base.parentNode.IsInSceneGraph()
}

// AttachedToTagPoint returns whether this object hangs off a bone TagPoint
// rather than a regular SceneNode.
func (base *MovableBase) AttachedToTagPoint() bool {
	return base.parentIsTagPoint
}

// setParentTagPoint records the tag point whose bone pose positions this
// object in the world.
func (base *MovableBase) setParentTagPoint(tagPoint *TagPoint) {
	base.parentTagPoint = tagPoint
	base.worldBoxDirty = true
	base.worldSphereDirty = true
}

func (base *MovableBase) notifyAttached(node *SceneNode, tagPoint bool) {
	prev := base.parentNode
	base.parentNode = node
	base.parentIsTagPoint = tagPoint
	base.worldBoxDirty = true
	base.worldSphereDirty = true
	if base.listener != nil {
		if node != nil {
			base.listener.ObjectAttached(base.owner, node)
		} else if prev != nil {
			base.listener.ObjectDetached(base.owner, prev)
		}
	}
}

func (base *MovableBase) notifyMoved() {
	base.worldBoxDirty = true
	base.worldSphereDirty = true
	base.lightListUpdated = 0
	if base.listener != nil {
		base.listener.ObjectMoved(base.owner)
	}
}

// Visible returns the object's own visibility switch.
func (base *MovableBase) Visible() bool {
	return base.visible
}

// SetVisible shows or hides the object.
func (base *MovableBase) SetVisible(visible bool) {
	base.visible = visible
}

// IsVisible returns whether the object should render this frame.
func (base *MovableBase) IsVisible() bool {
	return base.visible && !base.beyondFarDistance && !base.renderingDisabled
}

// CastShadows returns whether the object contributes to shadow passes.
func (base *MovableBase) CastShadows() bool {
	return base.castShadows
}

// SetCastShadows sets whether the object contributes to shadow passes.
func (base *MovableBase) SetCastShadows(casts bool) {
	base.castShadows = casts
}

// ShadowCaster returns nil; movables with shadow-volume support override this.
func (base *MovableBase) ShadowCaster() ShadowCaster {
	return nil
}

// SetDebugDisplay enables debug-display rendering (bounds wireframes) for
// this object.
func (base *MovableBase) SetDebugDisplay(enabled bool) {
	base.debugDisplay = enabled
}

// DebugDisplay returns whether debug-display rendering is enabled.
func (base *MovableBase) DebugDisplay() bool {
	return base.debugDisplay
}

// QueryFlags returns the object's scene-query mask.
func (base *MovableBase) QueryFlags() uint32 {
	return base.queryFlags
}

// SetQueryFlags sets the object's scene-query mask.
func (base *MovableBase) SetQueryFlags(flags uint32) {
	base.queryFlags = flags
}

// VisibilityFlags returns the object's visibility mask, tested against the
// SceneManager's visibility mask during culling.
func (base *MovableBase) VisibilityFlags() uint32 {
	return base.visibilityFlags
}

// SetVisibilityFlags sets the object's visibility mask.
func (base *MovableBase) SetVisibilityFlags(flags uint32) {
	base.visibilityFlags = flags
}

// LightMask returns the mask matched against each Light's mask when
// resolving the object's light list.
func (base *MovableBase) LightMask() uint32 {
	return base.lightMask
}

// SetLightMask sets the object's light mask and invalidates its light list.
func (base *MovableBase) SetLightMask(mask uint32) {
	base.lightMask = mask
	base.lightListUpdated = 0
}

// RenderingDistance returns the distance beyond which the object is not
// rendered (0 means unlimited).
func (base *MovableBase) RenderingDistance() float64 {
	return base.renderingDistance
}

// SetRenderingDistance sets the distance beyond which the object is not rendered.
func (base *MovableBase) SetRenderingDistance(distance float64) {
	base.renderingDistance = distance
}

// MinPixelSize returns the screen size in pixels below which the object is
// not rendered.
func (base *MovableBase) MinPixelSize() float64 {
	return base.minPixelSize
}

// SetMinPixelSize sets the screen size in pixels below which the object is
// not rendered.
func (base *MovableBase) SetMinPixelSize(pixels float64) {
	base.minPixelSize = pixels
}

// RenderQueueGroup returns the queue this object's renderables are pushed into.
func (base *MovableBase) RenderQueueGroup() RenderQueueGroupID {
	return base.queueGroup
}

// SetRenderQueueGroup assigns the queue this object's renderables are pushed into.
func (base *MovableBase) SetRenderQueueGroup(group RenderQueueGroupID) {
	base.queueGroup = group
}

// RenderQueuePriority returns the priority within the object's queue group.
func (base *MovableBase) RenderQueuePriority() uint16 {
	return base.queuePriority
}

// SetRenderQueuePriority sets the priority within the object's queue group.
func (base *MovableBase) SetRenderQueuePriority(priority uint16) {
	base.queuePriority = priority
}

// SetListener sets the MovableObjectListener notified about this object.
func (base *MovableBase) SetListener(listener MovableObjectListener) {
	base.listener = listener
}

// MovableListener returns the MovableObjectListener registered on this object.
func (base *MovableBase) MovableListener() MovableObjectListener {
	return base.listener
}

// Properties returns the object's user property map.
func (base *MovableBase) Properties() *Properties {
	return base.props
}

// WorldBoundingBox returns the object's bounds in world space, recomputing
// the cache when derive is true or the object has moved.
func (base *MovableBase) WorldBoundingBox(derive bool) AxisAlignedBox {
	if derive || base.worldBoxDirty {
		box := base.owner.BoundingBox()
		if base.parentTagPoint != nil {
			box = box.Transform(base.parentTagPoint.FullWorldTransform())
		} else if base.parentNode != nil {
			box = box.Transform(base.parentNode.FullTransform())
		}
		base.worldBox = box
		base.worldBoxDirty = false
	}
	return base.worldBox
}

// WorldBoundingSphere returns the object's bounding sphere in world space,
// recomputing the cache when derive is true or the object has moved.
func (base *MovableBase) WorldBoundingSphere(derive bool) Sphere {
	if derive || base.worldSphereDirty {
		radius := base.owner.BoundingRadius()
		center := vectorZero
		if base.parentTagPoint != nil {
			translation, scale, _ := base.parentTagPoint.FullWorldTransform().Decompose()
			radius *= math.Max(math.Abs(scale.X), math.Max(math.Abs(scale.Y), math.Abs(scale.Z)))
			center = translation
		} else if base.parentNode != nil {
			scale := base.parentNode.DerivedScale()
			radius *= math.Max(math.Abs(scale.X), math.Max(math.Abs(scale.Y), math.Abs(scale.Z)))
			center = base.parentNode.DerivedPosition()
		}
		base.worldSphere = NewSphere(center, radius)
		base.worldSphereDirty = false
	}
	return base.worldSphere
}

// NotifyCamera computes whether the object lies beyond its rendering
// distance or below its minimum on-screen size for the camera provided.
func (base *MovableBase) NotifyCamera(camera *Camera) {

	lodCamera := camera.LodCamera()

	base.beyondFarDistance = false

	if base.renderingDistance > 0 {
		radius := base.owner.BoundingRadius()
		maxDist := base.renderingDistance + radius
		distSq := base.WorldBoundingSphere(true).Center.DistanceSquared(lodCamera.DerivedPosition())
		if distSq > maxDist*maxDist {
			base.beyondFarDistance = true
		}
	}

	if !base.beyondFarDistance && base.minPixelSize > 0 {

		pixelRatio := camera.PixelDisplayRatio()
		threshold := base.minPixelSize * pixelRatio
		sphere := base.WorldBoundingSphere(true)
		distSq := sphere.Center.DistanceSquared(lodCamera.DerivedPosition())

		// Median projected size of the bounding sphere, squared.
		if distSq > 0 {
			sizeSq := sphere.Radius * sphere.Radius / distSq
			if sizeSq < threshold*threshold {
				base.beyondFarDistance = true
			}
		}
	}

	base.renderingDisabled = false
	if base.listener != nil && !base.listener.ObjectRendering(base.owner, camera) {
		base.renderingDisabled = true
	}
}

// QueryLights returns the lights affecting this object. The listener may
// supply the list; otherwise the SceneManager resolves it, with results
// cached per frame and invalidated when the object moves.
func (base *MovableBase) QueryLights() LightList {

	if base.listener != nil {
		if list, ok := base.listener.ObjectQueryLights(base.owner); ok {
			return list
		}
	}

	if base.creator == nil {
		return nil
	}

	frame := base.creator.FrameCount()
	if base.lightListUpdated != frame {
		base.lightListUpdated = frame
		base.lightList = base.creator.lightsAffectingObject(base.owner)
	}
	return base.lightList
}

// detachAndDestroy notifies listeners and severs the node link; called by
// the SceneManager when destroying a movable.
func (base *MovableBase) detachAndDestroy() {
	if base.parentNode != nil {
		base.parentNode.DetachObject(base.owner)
	}
	if base.listener != nil {
		base.listener.ObjectDestroyed(base.owner)
	}
}
