package umbra3d

import (
	"fmt"
	"sort"
	"time"
)

// ShadowTechnique selects how a SceneManager renders shadows.
type ShadowTechnique int

const (
	ShadowTechniqueNone              ShadowTechnique = iota
	ShadowTechniqueStencilModulative                 // Stencil volumes darkening shadowed areas
	ShadowTechniqueStencilAdditive                   // Stencil volumes masking per-light additive passes
)

// RenderSystem receives the drawing work RenderScene produces: the sorted
// renderables of each queue group, in order, with their resolved passes.
type RenderSystem interface {
	// BeginFrame is called once per RenderScene before any renderables.
	BeginFrame(camera *Camera)
	// Render draws one renderable with the pass provided.
	Render(renderable Renderable, pass *Pass, camera *Camera)
	// EndFrame is called once per RenderScene after all renderables.
	EndFrame(camera *Camera)
}

// RenderStatistics reports what the last RenderScene call did.
type RenderStatistics struct {
	VisibleObjects  int
	RenderedBatches int
	ShadowCasters   int
	FrameTime       time.Duration
}

// SceneManager owns one scene: the node hierarchy, the movable objects in
// it, the lights, and the per-frame culling and queueing that turns the
// scene into ordered rendering work.
type SceneManager struct {
	name string

	rootNode *SceneNode

	// sceneNodes indexes every node created through the manager by name.
	sceneNodes map[string]*SceneNode

	// movables indexes objects by type string, then name.
	movables  map[string]map[string]MovableObject
	factories map[string]MovableObjectFactory

	autoTracking map[*SceneNode]struct{}

	staticGeometry map[string]*StaticGeometry

	library *Library

	renderQueue  *RenderQueue
	renderSystem RenderSystem

	queueListeners []RenderQueueListener

	lightsAffectingFrustum LightList
	lightsDirty            bool

	animationStates *AnimationStateSet

	frameCount     uint64
	visibilityMask uint32

	shadowTechnique               ShadowTechnique
	shadowFarDistance             float64
	shadowDirLightExtrudeDistance float64

	ambientLight Color
	fog          FogSettings

	displaySceneNodes bool
	showBoundingBoxes bool

	stats RenderStatistics

	autoParams  *AutoParamDataSource
	created     time.Time
	lastElapsed float64

	// nameIndex drives the per-type automatic object names.
	nameIndex map[string]uint64

	// nextNodeID feeds scene node IDs; each manager numbers its own nodes.
	nextNodeID uint64
}

func (manager *SceneManager) allocateNodeID() uint64 {
	manager.nextNodeID++
	return manager.nextNodeID
}

// NewSceneManager creates an empty scene with the standard object factories
// registered.
func NewSceneManager(name string) *SceneManager {
	manager := &SceneManager{
		name:                          name,
		sceneNodes:                    map[string]*SceneNode{},
		movables:                      map[string]map[string]MovableObject{},
		factories:                     map[string]MovableObjectFactory{},
		autoTracking:                  map[*SceneNode]struct{}{},
		library:                       NewLibrary(),
		renderQueue:                   NewRenderQueue(),
		animationStates:               NewAnimationStateSet(),
		lightsDirty:                   true,
		visibilityMask:                0xFFFFFFFF,
		shadowDirLightExtrudeDistance: 10000,
		ambientLight:                  NewColor(0, 0, 0, 1),
		autoParams:                    NewAutoParamDataSource(),
		created:                       time.Now(),
		nameIndex:                     map[string]uint64{},
	}
	manager.rootNode = newSceneNode(manager, "Umbra/SceneRoot")
	manager.sceneNodes[manager.rootNode.Name()] = manager.rootNode
	for _, factory := range []MovableObjectFactory{
		lightFactory{}, cameraFactory{}, entityFactory{}, billboardSetFactory{},
		particleSystemFactory{}, manualObjectFactory{}, instanceBatchFactory{},
	} {
		manager.factories[factory.Type()] = factory
	}
	return manager
}

// Name returns the scene manager's name.
func (manager *SceneManager) Name() string { return manager.name }

// Library returns the resource library the manager loads meshes, materials
// and skeletons from.
func (manager *SceneManager) Library() *Library { return manager.library }

// SetLibrary replaces the manager's resource library.
func (manager *SceneManager) SetLibrary(library *Library) { manager.library = library }

// RootSceneNode returns the root of the scene hierarchy. The root cannot be
// moved or destroyed; create children under it instead.
func (manager *SceneManager) RootSceneNode() *SceneNode { return manager.rootNode }

// FrameCount returns the number of RenderScene calls completed, used to
// expire per-frame caches.
func (manager *SceneManager) FrameCount() uint64 { return manager.frameCount }

// RenderQueue returns the manager's render queue.
func (manager *SceneManager) RenderQueue() *RenderQueue { return manager.renderQueue }

// SetRenderSystem sets the sink RenderScene delivers its ordered drawing
// work to. Without one, RenderScene still culls, sorts, and updates state.
func (manager *SceneManager) SetRenderSystem(renderSystem RenderSystem) {
	manager.renderSystem = renderSystem
}

// AddRenderQueueListener registers a listener notified around each queue
// group during RenderScene.
func (manager *SceneManager) AddRenderQueueListener(listener RenderQueueListener) {
	manager.queueListeners = append(manager.queueListeners, listener)
}

// RemoveRenderQueueListener unregisters a queue listener.
func (manager *SceneManager) RemoveRenderQueueListener(listener RenderQueueListener) {
	for i, l := range manager.queueListeners {
		if l == listener {
			manager.queueListeners = append(manager.queueListeners[:i], manager.queueListeners[i+1:]...)
			return
		}
	}
}

// SetAmbientLight sets the scene-wide ambient light color.
func (manager *SceneManager) SetAmbientLight(color Color) { manager.ambientLight = color }

// AmbientLight returns the scene-wide ambient light color.
func (manager *SceneManager) AmbientLight() Color { return manager.ambientLight }

// SetCameraRelativeRendering rebases shader world matrices to the camera
// position every frame, keeping float precision near the viewer in very
// large scenes.
func (manager *SceneManager) SetCameraRelativeRendering(enabled bool) {
	manager.autoParams.SetCameraRelativeRendering(enabled)
}

// CameraRelativeRendering reports whether world matrices are rebased to the
// camera position.
func (manager *SceneManager) CameraRelativeRendering() bool {
	return manager.autoParams.CameraRelativeRendering()
}

// SetVisibilityMask sets the mask ANDed against each object's visibility
// flags during culling; objects with no overlap are skipped.
func (manager *SceneManager) SetVisibilityMask(mask uint32) { manager.visibilityMask = mask }

// VisibilityMask returns the scene's visibility mask.
func (manager *SceneManager) VisibilityMask() uint32 { return manager.visibilityMask }

// SetShadowTechnique selects how shadows are rendered, or disables them.
func (manager *SceneManager) SetShadowTechnique(technique ShadowTechnique) {
	manager.shadowTechnique = technique
}

// ShadowTechnique returns the active shadow technique.
func (manager *SceneManager) ShadowTechnique() ShadowTechnique { return manager.shadowTechnique }

// SetShadowFarDistance caps how far from the camera shadows are rendered;
// zero means unlimited.
func (manager *SceneManager) SetShadowFarDistance(distance float64) {
	manager.shadowFarDistance = distance
}

// SetShadowDirectionalLightExtrusionDistance sets how far shadow volumes for
// directional lights are extruded.
func (manager *SceneManager) SetShadowDirectionalLightExtrusionDistance(distance float64) {
	manager.shadowDirLightExtrudeDistance = distance
}

// SetDisplaySceneNodes toggles debug rendering of every node's axes.
func (manager *SceneManager) SetDisplaySceneNodes(display bool) {
	manager.displaySceneNodes = display
}

// ShowBoundingBoxes toggles debug rendering of every visible object's world
// bounding box.
func (manager *SceneManager) ShowBoundingBoxes(show bool) {
	manager.showBoundingBoxes = show
}

// Statistics returns what the last RenderScene call did.
func (manager *SceneManager) Statistics() RenderStatistics { return manager.stats }

// nextAutoName returns "<type>N" with a per-type running counter, skipping
// names already taken.
func (manager *SceneManager) nextAutoName(movableType string) string {
	for {
		manager.nameIndex[movableType]++
		name := fmt.Sprintf("%s%d", movableType, manager.nameIndex[movableType])
		if _, taken := manager.movables[movableType][name]; !taken {
			return name
		}
	}
}

func (manager *SceneManager) registerSceneNode(sceneNode *SceneNode) {
	manager.sceneNodes[sceneNode.Name()] = sceneNode
}

func (manager *SceneManager) unregisterSceneNode(sceneNode *SceneNode) {
	delete(manager.sceneNodes, sceneNode.Name())
	delete(manager.autoTracking, sceneNode)
}

// SceneNode returns the node named name, or an error if the manager has no
// such node.
func (manager *SceneManager) SceneNode(name string) (*SceneNode, error) {
	sceneNode, ok := manager.sceneNodes[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "scene node %q not found", name)
	}
	return sceneNode, nil
}

// HasSceneNode reports whether the manager has a node named name.
func (manager *SceneManager) HasSceneNode(name string) bool {
	_, ok := manager.sceneNodes[name]
	return ok
}

// CreateSceneNode creates a free-standing SceneNode that is not yet in the
// hierarchy; add it under an existing node to include it in rendering.
func (manager *SceneManager) CreateSceneNode(name string) (*SceneNode, error) {
	if name == "" {
		name = manager.nextAutoName("SceneNode")
	}
	if _, taken := manager.sceneNodes[name]; taken {
		return nil, newError(ErrDuplicateItem, "a scene node named %q already exists", name)
	}
	sceneNode := newSceneNode(manager, name)
	manager.registerSceneNode(sceneNode)
	return sceneNode, nil
}

// DestroySceneNode removes the node named name from the hierarchy, detaches
// its attachments, and destroys its subtree. The root cannot be destroyed.
func (manager *SceneManager) DestroySceneNode(name string) error {
	sceneNode, err := manager.SceneNode(name)
	if err != nil {
		return err
	}
	if sceneNode == manager.rootNode {
		return newError(ErrInvalidArgument, "the root scene node cannot be destroyed")
	}
	if parent := sceneNode.ParentSceneNode(); parent != nil {
		return parent.RemoveAndDestroyChild(sceneNode)
	}
	sceneNode.destroySubtree()
	return nil
}

func (manager *SceneManager) notifyAutoTrackingSceneNode(sceneNode *SceneNode, tracking bool) {
	if tracking {
		manager.autoTracking[sceneNode] = struct{}{}
	} else {
		delete(manager.autoTracking, sceneNode)
	}
}

// RegisterMovableFactory registers a factory for a user-defined movable
// type. Registering over an existing type fails.
func (manager *SceneManager) RegisterMovableFactory(factory MovableObjectFactory) error {
	if _, taken := manager.factories[factory.Type()]; taken {
		return newError(ErrDuplicateItem, "a factory for movable type %q is already registered", factory.Type())
	}
	manager.factories[factory.Type()] = factory
	return nil
}

// CreateMovableObject creates an object of the registered type provided. An
// empty name draws from the type's automatic name sequence.
func (manager *SceneManager) CreateMovableObject(name, movableType string, params NameValueMap) (MovableObject, error) {
	factory, ok := manager.factories[movableType]
	if !ok {
		return nil, newError(ErrItemNotFound, "no factory registered for movable type %q", movableType)
	}
	if name == "" {
		name = manager.nextAutoName(movableType)
	}
	if _, taken := manager.movables[movableType][name]; taken {
		return nil, newError(ErrDuplicateItem, "a %s named %q already exists", movableType, name)
	}
	object, err := factory.CreateInstance(name, manager, params)
	if err != nil {
		return nil, err
	}
	object.setCreator(manager)
	if manager.movables[movableType] == nil {
		manager.movables[movableType] = map[string]MovableObject{}
	}
	manager.movables[movableType][name] = object
	return object, nil
}

// MovableObject returns the object of the type and name provided.
func (manager *SceneManager) MovableObject(name, movableType string) (MovableObject, error) {
	object, ok := manager.movables[movableType][name]
	if !ok {
		return nil, newError(ErrItemNotFound, "no %s named %q", movableType, name)
	}
	return object, nil
}

// DestroyMovableObject detaches the object of the type and name provided and
// removes it from the manager.
func (manager *SceneManager) DestroyMovableObject(name, movableType string) error {
	object, err := manager.MovableObject(name, movableType)
	if err != nil {
		return err
	}
	if node := object.ParentNode(); node != nil {
		if err := node.DetachObject(object); err != nil {
			return err
		}
	}
	delete(manager.movables[movableType], name)
	if _, ok := object.(*Light); ok {
		manager.lightsDirty = true
	}
	return nil
}

// MovableObjects iterates over every object of the type provided.
func (manager *SceneManager) MovableObjects(movableType string, visit func(MovableObject)) {
	for _, object := range manager.movables[movableType] {
		visit(object)
	}
}

// CreateLight creates and registers a point Light.
func (manager *SceneManager) CreateLight(name string) (*Light, error) {
	object, err := manager.CreateMovableObject(name, "Light", nil)
	if err != nil {
		return nil, err
	}
	manager.lightsDirty = true
	return object.(*Light), nil
}

// Light returns the light named name.
func (manager *SceneManager) Light(name string) (*Light, error) {
	object, err := manager.MovableObject(name, "Light")
	if err != nil {
		return nil, err
	}
	return object.(*Light), nil
}

// CreateCamera creates and registers a Camera rendering at the resolution
// provided.
func (manager *SceneManager) CreateCamera(name string, width, height int) (*Camera, error) {
	if name == "" {
		name = manager.nextAutoName("Camera")
	}
	if _, taken := manager.movables["Camera"][name]; taken {
		return nil, newError(ErrDuplicateItem, "a Camera named %q already exists", name)
	}
	camera := NewCamera(name, width, height)
	camera.setCreator(manager)
	if manager.movables["Camera"] == nil {
		manager.movables["Camera"] = map[string]MovableObject{}
	}
	manager.movables["Camera"][name] = camera
	return camera, nil
}

// Camera returns the camera named name.
func (manager *SceneManager) Camera(name string) (*Camera, error) {
	object, err := manager.MovableObject(name, "Camera")
	if err != nil {
		return nil, err
	}
	return object.(*Camera), nil
}

// CreateEntity creates an Entity instancing the mesh named meshName from the
// manager's library.
func (manager *SceneManager) CreateEntity(name, meshName string) (*Entity, error) {
	mesh := manager.library.Mesh(meshName)
	if mesh == nil {
		return nil, newError(ErrItemNotFound, "mesh %q not found in library", meshName)
	}
	return manager.CreateEntityFromMesh(name, mesh)
}

// CreateEntityFromMesh creates an Entity instancing the mesh provided.
func (manager *SceneManager) CreateEntityFromMesh(name string, mesh *Mesh) (*Entity, error) {
	if mesh == nil {
		return nil, newError(ErrInvalidArgument, "cannot create an entity from a nil mesh")
	}
	if name == "" {
		name = manager.nextAutoName("Entity")
	}
	if _, taken := manager.movables["Entity"][name]; taken {
		return nil, newError(ErrDuplicateItem, "an Entity named %q already exists", name)
	}
	entity, err := NewEntity(name, mesh)
	if err != nil {
		return nil, err
	}
	entity.setCreator(manager)
	if manager.movables["Entity"] == nil {
		manager.movables["Entity"] = map[string]MovableObject{}
	}
	manager.movables["Entity"][name] = entity
	return entity, nil
}

// Entity returns the entity named name.
func (manager *SceneManager) Entity(name string) (*Entity, error) {
	object, err := manager.MovableObject(name, "Entity")
	if err != nil {
		return nil, err
	}
	return object.(*Entity), nil
}

// AnimationStates returns the scene-level animation state set, used for
// node animations created through the manager.
func (manager *SceneManager) AnimationStates() *AnimationStateSet {
	return manager.animationStates
}

// updateSceneGraph brings every cached derived transform up to date and
// applies auto tracking before culling reads the hierarchy.
func (manager *SceneManager) updateSceneGraph() {
	for sceneNode := range manager.autoTracking {
		// The target must be current before the tracker reorients.
		if sceneNode.autoTrackTarget != nil {
			sceneNode.autoTrackTarget.Update(false, false)
		}
		sceneNode.updateAutoTracking()
	}
	manager.rootNode.Update(true, false)
}

// findLightsAffectingFrustum collects the lights whose influence reaches the
// camera's frustum, in a deterministic order.
func (manager *SceneManager) findLightsAffectingFrustum(camera *Camera) {
	manager.lightsAffectingFrustum = manager.lightsAffectingFrustum[:0]
	for _, object := range manager.movables["Light"] {
		light := object.(*Light)
		if !light.IsVisible() || !light.IsInScene() {
			continue
		}
		if light.Type() != LightDirectional && !camera.IsSphereVisible(light.InfluenceSphere()) {
			continue
		}
		manager.lightsAffectingFrustum = append(manager.lightsAffectingFrustum, light)
	}
	sort.Slice(manager.lightsAffectingFrustum, func(i, j int) bool {
		return manager.lightsAffectingFrustum[i].Name() < manager.lightsAffectingFrustum[j].Name()
	})
	manager.lightsDirty = false
}

// LightsAffectingFrustum returns the lights collected by the last frame's
// light search. The slice is reused between frames.
func (manager *SceneManager) LightsAffectingFrustum() LightList {
	return manager.lightsAffectingFrustum
}

// lightsAffectingObject returns the frustum lights that can influence the
// object, sorted directional-first then by distance to the object.
func (manager *SceneManager) lightsAffectingObject(object MovableObject) LightList {
	box := object.WorldBoundingBox(true)
	list := make(LightList, 0, len(manager.lightsAffectingFrustum))
	for _, light := range manager.lightsAffectingFrustum {
		if light.LightMask()&object.LightMask() == 0 {
			continue
		}
		if light.AffectsBox(box) {
			list = append(list, light)
		}
	}
	list.sortForPoint(object.WorldBoundingSphere(false).Center)
	return list
}

// FindVisibleObjects runs the culling traversal for the camera, filling the
// render queue. RenderScene calls this; it is exposed for tests and tooling.
func (manager *SceneManager) FindVisibleObjects(camera *Camera, onlyShadowCasters bool) {
	manager.renderQueue.Clear()
	camera.resetVisibleBounds()
	manager.rootNode.findVisibleObjects(camera, manager.renderQueue, true, onlyShadowCasters)
}

// RenderScene performs one full frame for the camera: scene-graph update,
// light search, culling, queue sorting, shadow volume preparation, and
// delivery of the ordered work to the render system.
func (manager *SceneManager) RenderScene(camera *Camera) {
	start := time.Now()
	manager.frameCount++
	manager.stats = RenderStatistics{}

	manager.updateSceneGraph()
	manager.findLightsAffectingFrustum(camera)
	manager.FindVisibleObjects(camera, false)

	if manager.shadowTechnique != ShadowTechniqueNone {
		manager.prepareShadowVolumes(camera)
	}

	manager.renderQueue.Visit(func(group *RenderQueueGroup) {
		group.Sort(camera)
	})

	if manager.renderSystem != nil {
		manager.renderVisibleObjects(camera)
	}

	manager.stats.FrameTime = time.Since(start)
}

// renderVisibleObjects walks the sorted queue, firing group listeners and
// handing each renderable and pass to the render system.
func (manager *SceneManager) renderVisibleObjects(camera *Camera) {
	manager.autoParams.SetCurrentCamera(camera)
	manager.autoParams.SetAmbientLight(manager.ambientLight)
	manager.autoParams.SetFog(manager.fog)
	elapsed := time.Since(manager.created).Seconds()
	manager.autoParams.SetElapsedTime(elapsed)
	manager.autoParams.SetFrameTime(elapsed - manager.lastElapsed)
	manager.lastElapsed = elapsed
	manager.renderSystem.BeginFrame(camera)
	manager.renderQueue.Visit(func(group *RenderQueueGroup) {
		skip := false
		for _, listener := range manager.queueListeners {
			if listener.RenderQueueStarted(group.ID()) {
				skip = true
			}
		}
		if !skip {
			group.Visit(func(renderable Renderable) {
				manager.renderSingle(renderable, camera)
			})
		}
		for _, listener := range manager.queueListeners {
			listener.RenderQueueEnded(group.ID())
		}
	})
	manager.renderSystem.EndFrame(camera)
}

func (manager *SceneManager) renderSingle(renderable Renderable, camera *Camera) {
	material := renderable.Material()
	if material == nil {
		return
	}
	technique := material.BestTechnique(0)
	if technique == nil {
		return
	}
	manager.autoParams.SetCurrentRenderable(renderable)
	manager.autoParams.SetCurrentLights(renderable.Lights())
	for _, pass := range technique.Passes() {
		if pass.vertexParams != nil {
			pass.vertexParams.UpdateAutoConstants(manager.autoParams)
		}
		if pass.fragmentParams != nil {
			pass.fragmentParams.UpdateAutoConstants(manager.autoParams)
		}
		manager.renderSystem.Render(renderable, pass, camera)
		manager.stats.RenderedBatches++
	}
}
