package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrustumClassifiesBoxes(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)
	manager.RootSceneNode().Update(true, false)

	// A unit box ten units down the view axis sits well inside the frustum.
	near := NewBox(NewVector(-0.5, -0.5, -10), NewVector(0.5, 0.5, -9))
	assert.Equal(t, VisibilityFull, camera.VisibilityOfBox(near))

	// Entirely beyond the far plane.
	far := NewBox(NewVector(-0.5, -0.5, -102), NewVector(0.5, 0.5, -101))
	assert.Equal(t, VisibilityNone, camera.VisibilityOfBox(far))

	// Straddling the far plane.
	straddling := NewBox(NewVector(-0.5, -0.5, -102), NewVector(0.5, 0.5, -99))
	assert.Equal(t, VisibilityPartial, camera.VisibilityOfBox(straddling))

	// Behind the camera.
	behind := NewBox(NewVector(-0.5, -0.5, 9), NewVector(0.5, 0.5, 10))
	assert.Equal(t, VisibilityNone, camera.VisibilityOfBox(behind))

	assert.Equal(t, VisibilityNone, camera.VisibilityOfBox(NewBoxNull()))
	assert.Equal(t, VisibilityPartial, camera.VisibilityOfBox(NewBoxInfinite()))
}

func TestFrustumClassifiesSpheresAndPoints(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)
	manager.RootSceneNode().Update(true, false)

	assert.True(t, camera.IsSphereVisible(NewSphere(NewVector(0, 0, -50), 1)))
	assert.False(t, camera.IsSphereVisible(NewSphere(NewVector(0, 0, 50), 1)))
	assert.True(t, camera.IsPointVisible(NewVector(0, 0, -10)))
	assert.False(t, camera.IsPointVisible(NewVector(0, 0, -101)))
}

func TestCullingFillsRenderQueueWithVisibleOnly(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)

	mesh := newTriangleMesh(t, "Triangle")
	place := func(name string, position Vector) {
		entity, err := manager.CreateEntityFromMesh(name, mesh)
		require.NoError(t, err)
		node, err := manager.RootSceneNode().CreateChildSceneNode(name + "/Node")
		require.NoError(t, err)
		node.SetPosition(position)
		require.NoError(t, node.AttachObject(entity))
	}
	place("InView", NewVector(0, 0, -10))
	place("BehindCamera", NewVector(0, 0, 10))
	place("PastFarPlane", NewVector(0, 0, -500))

	manager.RenderScene(camera)
	assert.Equal(t, 1, manager.RenderQueue().Count())

	// With culling disabled everything reaches the queue.
	camera.SetCullingEnabled(false)
	manager.RenderScene(camera)
	assert.Equal(t, 3, manager.RenderQueue().Count())
}

func TestCameraToViewportRay(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)
	manager.RootSceneNode().Update(true, false)

	// The center of the viewport looks straight down the view axis.
	ray := camera.CameraToViewportRay(0.5, 0.5)
	assert.InDelta(t, 0, ray.Direction.X, 1e-6)
	assert.InDelta(t, 0, ray.Direction.Y, 1e-6)
	assert.InDelta(t, -1, ray.Direction.Z, 1e-6)

	// The top edge tilts upward, the left edge leftward.
	up := camera.CameraToViewportRay(0.5, 0)
	assert.Greater(t, up.Direction.Y, 0.0)
	left := camera.CameraToViewportRay(0, 0.5)
	assert.Less(t, left.Direction.X, 0.0)
}

func TestCameraVisibleBoundsAccumulate(t *testing.T) {
	manager := NewSceneManager("Test")
	camera := newTestCamera(t, manager, "Main")
	camera.SetFOVy(90)
	camera.SetNearClipDistance(1)
	camera.SetFarClipDistance(100)

	mesh := newTriangleMesh(t, "Triangle")
	entity, err := manager.CreateEntityFromMesh("Target", mesh)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Target/SceneNode")
	require.NoError(t, err)
	node.SetPosition(NewVector(3, 0, -10))
	require.NoError(t, node.AttachObject(entity))

	manager.RenderScene(camera)
	bounds := camera.VisibleBounds()
	require.Equal(t, ExtentFinite, bounds.Extent)
	assert.True(t, bounds.ContainsPoint(NewVector(3, 0, -10)))
}
