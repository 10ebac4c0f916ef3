package umbra3d

import "sort"

// sortedMovables visits every registered object in stable (type, name)
// order, so query results come back deterministically.
func (manager *SceneManager) sortedMovables(visit func(MovableObject)) {
	manager.sortedMovablesUntil(func(object MovableObject) bool {
		visit(object)
		return true
	})
}

// sortedMovablesUntil is sortedMovables with early termination: visiting
// stops as soon as visit returns false.
func (manager *SceneManager) sortedMovablesUntil(visit func(MovableObject) bool) {
	types := make([]string, 0, len(manager.movables))
	for movableType := range manager.movables {
		types = append(types, movableType)
	}
	sort.Strings(types)
	for _, movableType := range types {
		byName := manager.movables[movableType]
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !visit(byName[name]) {
				return
			}
		}
	}
}

// sceneQueryBase carries the mask filtering shared by every query type.
type sceneQueryBase struct {
	manager *SceneManager

	queryMask uint32
	typeMask  uint32
}

func newSceneQueryBase(manager *SceneManager) sceneQueryBase {
	return sceneQueryBase{
		manager:   manager,
		queryMask: 0xFFFFFFFF,
		typeMask:  0xFFFFFFFF,
	}
}

// SetQueryMask filters candidates by their query flags; an object passes
// when the masks share a bit.
func (query *sceneQueryBase) SetQueryMask(mask uint32) { query.queryMask = mask }

// QueryMask returns the query flag filter.
func (query *sceneQueryBase) QueryMask() uint32 { return query.queryMask }

// SetQueryTypeMask filters candidates by object type bits.
func (query *sceneQueryBase) SetQueryTypeMask(mask uint32) { query.typeMask = mask }

// QueryTypeMask returns the type bit filter.
func (query *sceneQueryBase) QueryTypeMask() uint32 { return query.typeMask }

// accepts applies the standard candidate filter: attached to the scene,
// and passing both masks.
func (query *sceneQueryBase) accepts(object MovableObject) bool {
	if !object.IsInScene() {
		return false
	}
	if object.QueryFlags()&query.queryMask == 0 {
		return false
	}
	if object.TypeFlags()&query.typeMask == 0 {
		return false
	}
	return true
}

// SceneQueryResult holds the objects a region query matched, in stable
// order.
type SceneQueryResult struct {
	Movables []MovableObject
}

// AxisAlignedBoxSceneQuery finds objects whose world bounds intersect a
// box.
type AxisAlignedBoxSceneQuery struct {
	sceneQueryBase
	box AxisAlignedBox
}

// CreateAABBQuery creates a query over the box provided.
func (manager *SceneManager) CreateAABBQuery(box AxisAlignedBox) *AxisAlignedBoxSceneQuery {
	return &AxisAlignedBoxSceneQuery{sceneQueryBase: newSceneQueryBase(manager), box: box}
}

// SetBox changes the queried region.
func (query *AxisAlignedBoxSceneQuery) SetBox(box AxisAlignedBox) { query.box = box }

// Box returns the queried region.
func (query *AxisAlignedBoxSceneQuery) Box() AxisAlignedBox { return query.box }

// Execute runs the query and collects every match.
func (query *AxisAlignedBoxSceneQuery) Execute() SceneQueryResult {
	var result SceneQueryResult
	query.ExecuteWithListener(func(object MovableObject) bool {
		result.Movables = append(result.Movables, object)
		return true
	})
	return result
}

// ExecuteWithListener feeds matches to listener one at a time, in the stable
// candidate order; returning false stops the query early.
func (query *AxisAlignedBoxSceneQuery) ExecuteWithListener(listener func(MovableObject) bool) {
	query.manager.sortedMovablesUntil(func(object MovableObject) bool {
		if !query.accepts(object) {
			return true
		}
		if query.box.Intersects(object.WorldBoundingBox(true)) {
			return listener(object)
		}
		return true
	})
}

// SphereSceneQuery finds objects whose world bounds intersect a sphere.
type SphereSceneQuery struct {
	sceneQueryBase
	sphere Sphere
}

// CreateSphereQuery creates a query over the sphere provided.
func (manager *SceneManager) CreateSphereQuery(sphere Sphere) *SphereSceneQuery {
	return &SphereSceneQuery{sceneQueryBase: newSceneQueryBase(manager), sphere: sphere}
}

// SetSphere changes the queried region.
func (query *SphereSceneQuery) SetSphere(sphere Sphere) { query.sphere = sphere }

// Sphere returns the queried region.
func (query *SphereSceneQuery) Sphere() Sphere { return query.sphere }

// Execute runs the query and collects every match.
func (query *SphereSceneQuery) Execute() SceneQueryResult {
	var result SceneQueryResult
	query.ExecuteWithListener(func(object MovableObject) bool {
		result.Movables = append(result.Movables, object)
		return true
	})
	return result
}

// ExecuteWithListener feeds matches to listener one at a time, in the stable
// candidate order; returning false stops the query early.
func (query *SphereSceneQuery) ExecuteWithListener(listener func(MovableObject) bool) {
	query.manager.sortedMovablesUntil(func(object MovableObject) bool {
		if !query.accepts(object) {
			return true
		}
		if query.sphere.Intersects(object.WorldBoundingSphere(true)) {
			return listener(object)
		}
		return true
	})
}

// PlaneBoundedVolumeQuery finds objects whose world bounds intersect any of
// a set of convex volumes.
type PlaneBoundedVolumeQuery struct {
	sceneQueryBase
	volumes []PlaneBoundedVolume
}

// CreatePlaneBoundedVolumeQuery creates a query over the volumes provided.
func (manager *SceneManager) CreatePlaneBoundedVolumeQuery(volumes []PlaneBoundedVolume) *PlaneBoundedVolumeQuery {
	return &PlaneBoundedVolumeQuery{sceneQueryBase: newSceneQueryBase(manager), volumes: volumes}
}

// SetVolumes changes the queried volumes.
func (query *PlaneBoundedVolumeQuery) SetVolumes(volumes []PlaneBoundedVolume) {
	query.volumes = volumes
}

// Execute runs the query and collects every match.
func (query *PlaneBoundedVolumeQuery) Execute() SceneQueryResult {
	var result SceneQueryResult
	query.ExecuteWithListener(func(object MovableObject) bool {
		result.Movables = append(result.Movables, object)
		return true
	})
	return result
}

// ExecuteWithListener feeds matches to listener one at a time, in the stable
// candidate order; returning false stops the query early.
func (query *PlaneBoundedVolumeQuery) ExecuteWithListener(listener func(MovableObject) bool) {
	query.manager.sortedMovablesUntil(func(object MovableObject) bool {
		if !query.accepts(object) {
			return true
		}
		box := object.WorldBoundingBox(true)
		for _, volume := range query.volumes {
			if volume.IntersectsBox(box) {
				return listener(object)
			}
		}
		return true
	})
}

// RaySceneQueryResultEntry is one hit from a ray query.
type RaySceneQueryResultEntry struct {
	// Distance along the ray to the object's world bounds.
	Distance float64
	Object   MovableObject
}

// RaySceneQuery finds objects whose world bounds a ray passes through.
type RaySceneQuery struct {
	sceneQueryBase
	ray Ray

	sortByDistance bool
	maxResults     int
}

// CreateRayQuery creates a query along the ray provided.
func (manager *SceneManager) CreateRayQuery(ray Ray) *RaySceneQuery {
	return &RaySceneQuery{sceneQueryBase: newSceneQueryBase(manager), ray: ray}
}

// SetRay changes the queried ray.
func (query *RaySceneQuery) SetRay(ray Ray) { query.ray = ray }

// Ray returns the queried ray.
func (query *RaySceneQuery) Ray() Ray { return query.ray }

// SetSortByDistance sorts hits near-to-far and optionally caps the result
// count; maxResults of zero keeps every hit.
func (query *RaySceneQuery) SetSortByDistance(sort bool, maxResults int) {
	query.sortByDistance = sort
	query.maxResults = maxResults
}

// Execute runs the query and collects every hit.
func (query *RaySceneQuery) Execute() []RaySceneQueryResultEntry {
	var results []RaySceneQueryResultEntry
	query.ExecuteWithListener(func(entry RaySceneQueryResultEntry) bool {
		results = append(results, entry)
		return true
	})
	if query.sortByDistance {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Distance < results[j].Distance
		})
		if query.maxResults > 0 && len(results) > query.maxResults {
			results = results[:query.maxResults]
		}
	}
	return results
}

// ExecuteWithListener feeds hits to listener one at a time, in the stable
// candidate order rather than by distance; returning false stops the query
// early.
func (query *RaySceneQuery) ExecuteWithListener(listener func(RaySceneQueryResultEntry) bool) {
	query.manager.sortedMovablesUntil(func(object MovableObject) bool {
		if !query.accepts(object) {
			return true
		}
		hit, distance := query.ray.IntersectsBox(object.WorldBoundingBox(true))
		if hit {
			return listener(RaySceneQueryResultEntry{Distance: distance, Object: object})
		}
		return true
	})
}

// SceneQueryMovableObjectPair is two objects whose world bounds overlap.
type SceneQueryMovableObjectPair struct {
	First, Second MovableObject
}

// IntersectionSceneQuery finds every pair of objects whose world bounds
// overlap. Each pair appears once, ordered by the stable candidate order.
type IntersectionSceneQuery struct {
	sceneQueryBase
}

// CreateIntersectionQuery creates an object-pair intersection query.
func (manager *SceneManager) CreateIntersectionQuery() *IntersectionSceneQuery {
	return &IntersectionSceneQuery{sceneQueryBase: newSceneQueryBase(manager)}
}

// Execute runs the query and collects every pair.
func (query *IntersectionSceneQuery) Execute() []SceneQueryMovableObjectPair {
	var pairs []SceneQueryMovableObjectPair
	query.ExecuteWithListener(func(pair SceneQueryMovableObjectPair) bool {
		pairs = append(pairs, pair)
		return true
	})
	return pairs
}

// ExecuteWithListener feeds overlapping pairs to listener one at a time, in
// the stable candidate order; returning false stops the query early.
func (query *IntersectionSceneQuery) ExecuteWithListener(listener func(SceneQueryMovableObjectPair) bool) {
	var candidates []MovableObject
	query.manager.sortedMovables(func(object MovableObject) {
		if query.accepts(object) {
			candidates = append(candidates, object)
		}
	})

	for i := 0; i < len(candidates); i++ {
		boxA := candidates[i].WorldBoundingBox(true)
		if boxA.IsNull() {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			boxB := candidates[j].WorldBoundingBox(true)
			if boxB.IsNull() {
				continue
			}
			if boxA.Intersects(boxB) {
				if !listener(SceneQueryMovableObjectPair{First: candidates[i], Second: candidates[j]}) {
					return
				}
			}
		}
	}
}
