package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachDetachLifecycle(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")
	entity, err := manager.CreateEntityFromMesh("Crate", mesh)
	require.NoError(t, err)

	node, err := manager.RootSceneNode().CreateChildSceneNode("CrateNode")
	require.NoError(t, err)

	require.False(t, entity.IsAttached())
	require.NoError(t, node.AttachObject(entity))
	assert.True(t, entity.IsAttached())
	assert.True(t, entity.IsInScene())
	assert.Same(t, node, entity.ParentNode())

	// Attaching an already-attached object is an error.
	other, err := manager.RootSceneNode().CreateChildSceneNode("Other")
	require.NoError(t, err)
	err = other.AttachObject(entity)
	assert.True(t, IsKind(err, ErrInvalidState))

	// Destroying the node detaches the object cleanly and it can be
	// reattached elsewhere.
	require.NoError(t, manager.DestroySceneNode("CrateNode"))
	assert.False(t, entity.IsAttached())
	require.NoError(t, other.AttachObject(entity))
	assert.Same(t, other, entity.ParentNode())
}

func TestAttachNameCollision(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")

	first, err := manager.CreateEntityFromMesh("Dup", mesh)
	require.NoError(t, err)
	second, err := NewEntity("Dup", mesh)
	require.NoError(t, err)

	node, err := manager.RootSceneNode().CreateChildSceneNode("Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(first))

	err = node.AttachObject(second)
	require.True(t, IsKind(err, ErrDuplicateItem))

	// The failed attach left the node unchanged.
	assert.Equal(t, 1, node.AttachedObjectCount())
	assert.False(t, second.IsAttached())
}

func TestSceneNodeWorldBounds(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")
	entity, err := manager.CreateEntityFromMesh("Tri", mesh)
	require.NoError(t, err)

	node, err := manager.RootSceneNode().CreateChildSceneNode("TriNode")
	require.NoError(t, err)
	node.SetPosition(NewVector(100, 0, 0))
	require.NoError(t, node.AttachObject(entity))
	manager.RootSceneNode().Update(true, false)

	bounds := node.WorldBounds()
	require.Equal(t, ExtentFinite, bounds.Extent)
	assert.True(t, bounds.ContainsPoint(NewVector(100, 0, 0)))
	assert.False(t, bounds.ContainsPoint(NewVector(0, 0, 0)))
}

func TestSceneNodeWorldBoundsIncludeDescendants(t *testing.T) {
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")
	entity, err := manager.CreateEntityFromMesh("Tri", mesh)
	require.NoError(t, err)

	parent, err := manager.RootSceneNode().CreateChildSceneNode("Parent")
	require.NoError(t, err)
	child, err := parent.CreateChildSceneNode("Child")
	require.NoError(t, err)
	child.SetPosition(NewVector(50, 0, 0))
	require.NoError(t, child.AttachObject(entity))
	manager.RootSceneNode().Update(true, false)

	// The parent carries nothing itself; its bounds come from the child.
	bounds := parent.WorldBounds()
	require.Equal(t, ExtentFinite, bounds.Extent)
	assert.True(t, bounds.ContainsPoint(NewVector(50, 0, 0)))

	// Moving the child refreshes the parent's cached bounds.
	child.SetPosition(NewVector(-50, 0, 0))
	manager.RootSceneNode().Update(true, false)
	bounds = parent.WorldBounds()
	assert.True(t, bounds.ContainsPoint(NewVector(-50, 0, 0)))
	assert.False(t, bounds.ContainsPoint(NewVector(50, 0, 0)))
}

func TestSceneNodeNameRegistry(t *testing.T) {
	manager := NewSceneManager("Test")

	node, err := manager.CreateSceneNode("Named")
	require.NoError(t, err)
	assert.True(t, manager.HasSceneNode("Named"))

	_, err = manager.CreateSceneNode("Named")
	assert.True(t, IsKind(err, ErrDuplicateItem))

	found, err := manager.SceneNode("Named")
	require.NoError(t, err)
	assert.Same(t, node, found)

	require.NoError(t, manager.DestroySceneNode("Named"))
	assert.False(t, manager.HasSceneNode("Named"))
	_, err = manager.SceneNode("Named")
	assert.True(t, IsKind(err, ErrItemNotFound))
}

func TestNodeFilterSearch(t *testing.T) {
	manager := NewSceneManager("Test")
	root := manager.RootSceneNode()

	enemies, err := root.CreateChildSceneNode("Enemies")
	require.NoError(t, err)
	for _, name := range []string{"Enemy_A", "Enemy_B", "Bystander"} {
		_, err = enemies.CreateChildSceneNode(name)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, root.Search().Count())
	assert.Equal(t, 2, root.Search().ByName("Enemy_").Count())
	assert.Equal(t, 2, root.Search().ByRegex(`^Enemy_[A-Z]$`).Count())

	first := root.Search().ByName("Bystander").First()
	require.NotNil(t, first)
	assert.Equal(t, "Bystander", first.Name())

	// MaxDepth 0 only sees direct children of the start node.
	filter := root.Search()
	filter.MaxDepth = 0
	assert.Equal(t, 1, filter.Count())
}

func TestTreeWatcherReportsChanges(t *testing.T) {
	manager := NewSceneManager("Test")
	root := manager.RootSceneNode()

	var added, removed []string
	watcher := NewTreeWatcher(root, func(node *SceneNode) {
		added = append(added, node.Name())
	})
	watcher.OnRemove = func(node *SceneNode) {
		removed = append(removed, node.Name())
	}

	_, err := root.CreateChildSceneNode("First")
	require.NoError(t, err)
	watcher.Update()
	assert.Equal(t, []string{"First"}, added)

	_, err = root.CreateChildSceneNode("Second")
	require.NoError(t, err)
	watcher.Update()
	assert.Equal(t, []string{"First", "Second"}, added)

	require.NoError(t, manager.DestroySceneNode("Second"))
	watcher.Update()
	assert.Equal(t, []string{"Second"}, removed)
}

// panickingMovable blows up when asked for its renderables.
type panickingMovable struct {
	MovableBase
}

func newPanickingMovable(name string) *panickingMovable {
	movable := &panickingMovable{}
	movable.initMovable(movable, name)
	return movable
}

func (movable *panickingMovable) MovableType() string { return "Panicking" }
func (movable *panickingMovable) TypeFlags() uint32   { return TypeMaskEntity }
func (movable *panickingMovable) BoundingBox() AxisAlignedBox {
	return NewBox(NewVector(-1, -1, -1), NewVector(1, 1, 1))
}
func (movable *panickingMovable) BoundingRadius() float64 { return 1 }
func (movable *panickingMovable) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	panic("broken attachment")
}
func (movable *panickingMovable) VisitRenderables(visitor func(Renderable)) {}

func TestTraversalContainsMisbehavingAttachment(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")

	mesh := newTriangleMesh(t, "Triangle")
	entity, err := manager.CreateEntityFromMesh("Healthy", mesh)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Healthy/Node")
	require.NoError(t, err)
	node.SetPosition(NewVector(0, 0, -5))
	require.NoError(t, node.AttachObject(entity))

	broken, err := manager.RootSceneNode().CreateChildSceneNode("Broken/Node")
	require.NoError(t, err)
	broken.SetPosition(NewVector(0, 0, -5))
	require.NoError(t, broken.AttachObject(newPanickingMovable("Broken")))

	// The broken attachment is skipped for the frame; the healthy entity
	// still reaches the queue.
	manager.RenderScene(camera)
	assert.Equal(t, 1, manager.RenderQueue().Count())
}

func TestSceneNodeIDsArePerManager(t *testing.T) {
	first := NewSceneManager("First")
	second := NewSceneManager("Second")

	a, err := first.RootSceneNode().CreateChildSceneNode("A")
	require.NoError(t, err)
	b, err := second.RootSceneNode().CreateChildSceneNode("B")
	require.NoError(t, err)

	// Each manager numbers its own nodes, so parallel scenes assign the same
	// IDs instead of draining a shared counter.
	assert.Equal(t, a.ID(), b.ID())

	c, err := first.RootSceneNode().CreateChildSceneNode("C")
	require.NoError(t, err)
	assert.Equal(t, a.ID()+1, c.ID())
}
