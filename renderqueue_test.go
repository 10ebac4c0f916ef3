package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildQueueRenderables returns labelled subentity renderables placed in a
// scene, one per entry, with the scene graph brought up to date.
func buildQueueRenderables(t *testing.T, positions map[string]Vector) (*SceneManager, *Camera, map[string]Renderable) {
	t.Helper()
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")

	mesh := newTriangleMesh(t, "Triangle")
	renderables := map[string]Renderable{}
	for name, position := range positions {
		entity, err := manager.CreateEntityFromMesh(name, mesh)
		require.NoError(t, err)
		node, err := manager.RootSceneNode().CreateChildSceneNode(name + "/Node")
		require.NoError(t, err)
		node.SetPosition(position)
		require.NoError(t, node.AttachObject(entity))
		renderables[name] = entity.SubEntity(0)
	}
	manager.RootSceneNode().Update(true, false)
	return manager, camera, renderables
}

func queueOrder(queue *RenderQueue, labels map[Renderable]string) []string {
	var order []string
	queue.Visit(func(group *RenderQueueGroup) {
		group.Visit(func(renderable Renderable) {
			order = append(order, labels[renderable])
		})
	})
	return order
}

func TestRenderQueueGroupsAndPrioritiesOrderVisits(t *testing.T) {
	_, _, renderables := buildQueueRenderables(t, map[string]Vector{
		"Overlay": {}, "Late": {}, "Early": {},
	})

	queue := NewRenderQueue()
	queue.AddRenderable(renderables["Overlay"], RenderQueueOverlay, 0)
	queue.AddRenderable(renderables["Late"], RenderQueueMain, 200)
	queue.AddRenderable(renderables["Early"], RenderQueueMain, 50)

	labels := map[Renderable]string{
		renderables["Overlay"]: "Overlay",
		renderables["Late"]:    "Late",
		renderables["Early"]:   "Early",
	}
	// Groups ascend, then priorities ascend within each group.
	assert.Equal(t, []string{"Early", "Late", "Overlay"}, queueOrder(queue, labels))

	queue.Clear()
	assert.Equal(t, 0, queue.Count())
}

func TestRenderQueueDefaultGroup(t *testing.T) {
	_, _, renderables := buildQueueRenderables(t, map[string]Vector{"Only": {}})

	queue := NewRenderQueue()
	assert.Equal(t, RenderQueueMain, queue.DefaultGroup())
	queue.AddRenderableDefault(renderables["Only"])
	assert.Equal(t, 1, queue.Group(RenderQueueMain).Count())

	queue.SetDefaultGroup(RenderQueueOverlay)
	queue.AddRenderableDefault(renderables["Only"])
	assert.Equal(t, 1, queue.Group(RenderQueueOverlay).Count())
}

func TestRenderQueueDepthSortModes(t *testing.T) {
	_, camera, renderables := buildQueueRenderables(t, map[string]Vector{
		"Near": NewVector(0, 0, -4),
		"Far":  NewVector(0, 0, -20),
	})
	labels := map[Renderable]string{
		renderables["Near"]: "Near",
		renderables["Far"]:  "Far",
	}

	queue := NewRenderQueue()
	queue.AddRenderable(renderables["Far"], RenderQueueMain, 100)
	queue.AddRenderable(renderables["Near"], RenderQueueMain, 100)

	group := queue.Group(RenderQueueMain)
	group.SetSortMode(SortAscendingDepth)
	group.Sort(camera)
	assert.Equal(t, []string{"Near", "Far"}, queueOrder(queue, labels))

	group.SetSortMode(SortDescendingDepth)
	group.Sort(camera)
	assert.Equal(t, []string{"Far", "Near"}, queueOrder(queue, labels))
}

func TestRenderQueueMaterialGroupingIsStable(t *testing.T) {
	_, camera, renderables := buildQueueRenderables(t, map[string]Vector{
		"A": {}, "B": {}, "C": {},
	})
	stone := NewMaterialSimple("Stone", nil)
	brick := NewMaterialSimple("Brick", nil)
	renderables["A"].(*SubEntity).SetMaterial(stone)
	renderables["B"].(*SubEntity).SetMaterial(brick)
	renderables["C"].(*SubEntity).SetMaterial(stone)
	labels := map[Renderable]string{
		renderables["A"]: "A",
		renderables["B"]: "B",
		renderables["C"]: "C",
	}

	queue := NewRenderQueue()
	for _, name := range []string{"A", "B", "C"} {
		queue.AddRenderable(renderables[name], RenderQueueMain, 100)
	}

	group := queue.Group(RenderQueueMain)
	group.SetSortMode(SortNone)
	group.Sort(camera)
	// Brick sorts before Stone; the two Stone renderables keep their
	// insertion order.
	assert.Equal(t, []string{"B", "A", "C"}, queueOrder(queue, labels))
}

type recordingRenderSystem struct {
	begun    int
	ended    int
	rendered int
}

func (system *recordingRenderSystem) BeginFrame(camera *Camera) { system.begun++ }
func (system *recordingRenderSystem) Render(renderable Renderable, pass *Pass, camera *Camera) {
	system.rendered++
}
func (system *recordingRenderSystem) EndFrame(camera *Camera) { system.ended++ }

type skippingQueueListener struct {
	skip    RenderQueueGroupID
	started []RenderQueueGroupID
	ended   []RenderQueueGroupID
}

func (listener *skippingQueueListener) RenderQueueStarted(group RenderQueueGroupID) bool {
	listener.started = append(listener.started, group)
	return group == listener.skip
}

func (listener *skippingQueueListener) RenderQueueEnded(group RenderQueueGroupID) {
	listener.ended = append(listener.ended, group)
}

func TestRenderSceneFiresQueueListeners(t *testing.T) {
	manager, camera, renderables := buildQueueRenderables(t, map[string]Vector{
		"World":   NewVector(0, 0, -5),
		"Overlay": NewVector(0, 0, -5),
	})
	renderables["World"].(*SubEntity).SetMaterial(NewMaterialSimple("World", nil))
	renderables["Overlay"].(*SubEntity).SetMaterial(NewMaterialSimple("Overlay", nil))
	renderables["Overlay"].(*SubEntity).Parent().SetRenderQueueGroup(RenderQueueOverlay)

	system := &recordingRenderSystem{}
	manager.SetRenderSystem(system)
	listener := &skippingQueueListener{skip: RenderQueueOverlay}
	manager.AddRenderQueueListener(listener)

	manager.RenderScene(camera)

	assert.Equal(t, 1, system.begun)
	assert.Equal(t, 1, system.ended)
	// The overlay group was skipped, so only the world entity rendered.
	assert.Equal(t, 1, system.rendered)
	assert.Contains(t, listener.started, RenderQueueMain)
	assert.Contains(t, listener.started, RenderQueueOverlay)
	assert.Equal(t, len(listener.started), len(listener.ended))

	manager.RemoveRenderQueueListener(listener)
	manager.RenderScene(camera)
	assert.Equal(t, 2, len(listener.started))
}
