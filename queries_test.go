package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildQueryScene places triangle entities at the positions given, keyed by
// name, and updates the scene graph.
func buildQueryScene(t *testing.T, positions map[string]Vector) *SceneManager {
	t.Helper()
	manager := NewSceneManager("Test")
	mesh := newTriangleMesh(t, "Triangle")
	for name, position := range positions {
		entity, err := manager.CreateEntityFromMesh(name, mesh)
		require.NoError(t, err)
		node, err := manager.RootSceneNode().CreateChildSceneNode(name + "/Node")
		require.NoError(t, err)
		node.SetPosition(position)
		require.NoError(t, node.AttachObject(entity))
	}
	manager.RootSceneNode().Update(true, false)
	return manager
}

func names(movables []MovableObject) []string {
	out := make([]string, 0, len(movables))
	for _, object := range movables {
		out = append(out, object.Name())
	}
	return out
}

func TestRayQuerySortsAndCapsResults(t *testing.T) {
	// Two unit-ish triangles straddle the ray origin symmetrically, plus a
	// farther one and one off to the side.
	manager := buildQueryScene(t, map[string]Vector{
		"Left":  NewVector(-1.5, 0, 0),
		"Right": NewVector(1.5, 0, 0),
		"Far":   NewVector(10, 0, 0),
		"Off":   NewVector(0, 50, 0),
	})

	// Shooting +X from the origin reaches Right at its near face and Far;
	// shooting from between them reports both near faces at distance 1.
	query := manager.CreateRayQuery(NewRay(NewVector(-3, 0, 0), NewVector(1, 0, 0)))
	query.SetSortByDistance(true, 2)
	results := query.Execute()
	require.Len(t, results, 2)
	assert.Equal(t, "Left", results[0].Object.Name())
	assert.Equal(t, "Right", results[1].Object.Name())
	assert.InDelta(t, 1, results[0].Distance, 1e-9)
	assert.InDelta(t, 4, results[1].Distance, 1e-9)

	// Without the cap every hit along the ray comes back, still sorted.
	query.SetSortByDistance(true, 0)
	results = query.Execute()
	require.Len(t, results, 3)
	assert.Equal(t, "Far", results[2].Object.Name())
}

func TestRayQueryReportsSymmetricDistances(t *testing.T) {
	manager := buildQueryScene(t, map[string]Vector{
		"Ahead":  NewVector(1.5, 0, 0),
		"Behind": NewVector(-1.5, 0, 0),
	})

	// Both bounding boxes start one unit from the origin along their
	// directions. Probing each in turn reports the same entry distance.
	forward := manager.CreateRayQuery(NewRay(NewVector(0, 0, 0), NewVector(1, 0, 0)))
	forward.SetSortByDistance(true, 2)
	ahead := forward.Execute()
	require.Len(t, ahead, 1)

	backward := manager.CreateRayQuery(NewRay(NewVector(0, 0, 0), NewVector(-1, 0, 0)))
	backward.SetSortByDistance(true, 2)
	behind := backward.Execute()
	require.Len(t, behind, 1)

	assert.InDelta(t, 1, ahead[0].Distance, 1e-9)
	assert.InDelta(t, 1, behind[0].Distance, 1e-9)
}

func TestAABBQueryFindsContainedObjects(t *testing.T) {
	manager := buildQueryScene(t, map[string]Vector{
		"Inside":  NewVector(0, 0, 0),
		"Edge":    NewVector(5, 0, 0),
		"Outside": NewVector(50, 0, 0),
	})

	query := manager.CreateAABBQuery(NewBox(NewVector(-6, -6, -6), NewVector(6, 6, 6)))
	result := query.Execute()
	assert.Equal(t, []string{"Edge", "Inside"}, names(result.Movables))
}

func TestSphereQueryRespectsQueryMask(t *testing.T) {
	manager := buildQueryScene(t, map[string]Vector{
		"Tagged": NewVector(0, 0, 0),
		"Plain":  NewVector(2, 0, 0),
	})

	tagged, err := manager.Entity("Tagged")
	require.NoError(t, err)
	tagged.SetQueryFlags(0b0100)
	plain, err := manager.Entity("Plain")
	require.NoError(t, err)
	plain.SetQueryFlags(0b0010)

	query := manager.CreateSphereQuery(NewSphere(NewVector(0, 0, 0), 10))
	query.SetQueryMask(0b0100)
	result := query.Execute()
	assert.Equal(t, []string{"Tagged"}, names(result.Movables))
}

func TestQueryListenerStopsEarly(t *testing.T) {
	manager := buildQueryScene(t, map[string]Vector{
		"A": NewVector(0, 0, 0),
		"B": NewVector(1, 0, 0),
		"C": NewVector(2, 0, 0),
	})

	// Returning false from the listener ends the walk after the first match;
	// the remaining candidates are never visited.
	query := manager.CreateAABBQuery(NewBox(NewVector(-10, -10, -10), NewVector(10, 10, 10)))
	var visited []string
	query.ExecuteWithListener(func(object MovableObject) bool {
		visited = append(visited, object.Name())
		return false
	})
	assert.Equal(t, []string{"A"}, visited)

	// Keeping the listener going reproduces Execute's collected result.
	visited = visited[:0]
	query.ExecuteWithListener(func(object MovableObject) bool {
		visited = append(visited, object.Name())
		return true
	})
	assert.Equal(t, names(query.Execute().Movables), visited)

	// Ray queries stream entries in candidate order with distances attached.
	ray := manager.CreateRayQuery(NewRay(NewVector(-5, 0, 0), NewVector(1, 0, 0)))
	var first *RaySceneQueryResultEntry
	ray.ExecuteWithListener(func(entry RaySceneQueryResultEntry) bool {
		first = &entry
		return false
	})
	require.NotNil(t, first)
	assert.Equal(t, "A", first.Object.Name())
}

func TestIntersectionQueryPairsOverlappingBounds(t *testing.T) {
	manager := buildQueryScene(t, map[string]Vector{
		"A": NewVector(0, 0, 0),
		"B": NewVector(0.5, 0, 0),
		"C": NewVector(30, 0, 0),
	})

	pairs := manager.CreateIntersectionQuery().Execute()
	require.Len(t, pairs, 1)
	assert.Equal(t, "A", pairs[0].First.Name())
	assert.Equal(t, "B", pairs[0].Second.Name())
}
