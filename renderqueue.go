package umbra3d

import "sort"

// RenderQueueGroupID identifies one of the broad rendering stages objects can
// be assigned to. Groups render in ascending numeric order.
type RenderQueueGroupID uint8

const (
	RenderQueueBackground RenderQueueGroupID = 0  // Rendered first, behind everything
	RenderQueueSkiesEarly RenderQueueGroupID = 5  // Sky domes/boxes rendered before the world
	RenderQueue1          RenderQueueGroupID = 10 // Spare groups for ordering user geometry
	RenderQueue2          RenderQueueGroupID = 20
	RenderQueue3          RenderQueueGroupID = 30
	RenderQueue4          RenderQueueGroupID = 40
	RenderQueueMain       RenderQueueGroupID = 50 // The default group for world geometry
	RenderQueue6          RenderQueueGroupID = 60
	RenderQueue7          RenderQueueGroupID = 70
	RenderQueue8          RenderQueueGroupID = 80
	RenderQueue9          RenderQueueGroupID = 90
	RenderQueueSkiesLate  RenderQueueGroupID = 95  // Sky geometry rendered after the world
	RenderQueueOverlay    RenderQueueGroupID = 100 // Overlays, rendered last
	RenderQueueMax        RenderQueueGroupID = 105
)

// QueueSortMode determines how a render-queue group orders its renderables
// before they are drawn.
type QueueSortMode int

const (
	SortNone            QueueSortMode = iota // Insertion order, grouped by material
	SortAscendingDepth                       // Nearest first
	SortDescendingDepth                      // Farthest first (for translucents)
)

// RenderQueueListener is notified as each render-queue group is processed.
// RenderQueueStarted may return true to skip the whole group for this frame.
type RenderQueueListener interface {
	RenderQueueStarted(group RenderQueueGroupID) (skip bool)
	RenderQueueEnded(group RenderQueueGroupID)
}

type priorityGroup struct {
	priority    uint16
	renderables []Renderable
}

// sortByMaterial stable-sorts the group's renderables by material identity,
// preserving insertion order within a material. This minimizes render-state
// churn without reordering draws that share state.
func (group *priorityGroup) sortByMaterial() {
	sort.SliceStable(group.renderables, func(i, j int) bool {
		return materialSortKey(group.renderables[i].Material()) < materialSortKey(group.renderables[j].Material())
	})
}

func (group *priorityGroup) sortByDepth(camera *Camera, ascending bool) {
	sort.SliceStable(group.renderables, func(i, j int) bool {
		di := group.renderables[i].SquaredViewDepth(camera)
		dj := group.renderables[j].SquaredViewDepth(camera)
		if ascending {
			return di < dj
		}
		return di > dj
	})
}

func materialSortKey(material *Material) string {
	if material == nil {
		return ""
	}
	return material.Name
}

// RenderQueueGroup holds the renderables queued for one RenderQueueGroupID,
// bucketed by priority.
type RenderQueueGroup struct {
	id         RenderQueueGroupID
	sortMode   QueueSortMode
	priorities map[uint16]*priorityGroup
	order      []uint16
	orderDirty bool
}

func newRenderQueueGroup(id RenderQueueGroupID) *RenderQueueGroup {
	return &RenderQueueGroup{
		id:         id,
		priorities: map[uint16]*priorityGroup{},
	}
}

// ID returns the group's RenderQueueGroupID.
func (group *RenderQueueGroup) ID() RenderQueueGroupID {
	return group.id
}

// SetSortMode sets how the group's renderables are ordered before drawing.
func (group *RenderQueueGroup) SetSortMode(mode QueueSortMode) {
	group.sortMode = mode
}

// SortMode returns the group's sort mode.
func (group *RenderQueueGroup) SortMode() QueueSortMode {
	return group.sortMode
}

func (group *RenderQueueGroup) add(renderable Renderable, priority uint16) {
	bucket, ok := group.priorities[priority]
	if !ok {
		bucket = &priorityGroup{priority: priority}
		group.priorities[priority] = bucket
		group.orderDirty = true
	}
	bucket.renderables = append(bucket.renderables, renderable)
}

func (group *RenderQueueGroup) clear() {
	for _, bucket := range group.priorities {
		bucket.renderables = bucket.renderables[:0]
	}
}

// sortedPriorities returns the group's priorities in ascending order.
func (group *RenderQueueGroup) sortedPriorities() []uint16 {
	if group.orderDirty {
		group.order = group.order[:0]
		for p := range group.priorities {
			group.order = append(group.order, p)
		}
		sort.Slice(group.order, func(i, j int) bool { return group.order[i] < group.order[j] })
		group.orderDirty = false
	}
	return group.order
}

// Sort orders every priority bucket according to the group's sort mode, with
// camera-dependent depth for the depth modes.
func (group *RenderQueueGroup) Sort(camera *Camera) {
	for _, priority := range group.sortedPriorities() {
		bucket := group.priorities[priority]
		switch group.sortMode {
		case SortNone:
			bucket.sortByMaterial()
		case SortAscendingDepth:
			bucket.sortByDepth(camera, true)
		case SortDescendingDepth:
			bucket.sortByDepth(camera, false)
		}
	}
}

// Visit calls the visitor for every renderable in the group, in ascending
// priority order and then the order established by the last Sort.
func (group *RenderQueueGroup) Visit(visitor func(renderable Renderable)) {
	for _, priority := range group.sortedPriorities() {
		for _, renderable := range group.priorities[priority].renderables {
			visitor(renderable)
		}
	}
}

// Count returns the number of renderables queued in the group.
func (group *RenderQueueGroup) Count() int {
	n := 0
	for _, bucket := range group.priorities {
		n += len(bucket.renderables)
	}
	return n
}

// RenderQueue is the per-frame ordered buffer of renderables, bucketed by
// group id and priority. It is cleared and repopulated every frame by the
// culling traversal.
type RenderQueue struct {
	groups          [RenderQueueMax + 1]*RenderQueueGroup
	defaultGroup    RenderQueueGroupID
	defaultPriority uint16
}

// NewRenderQueue returns a new, empty RenderQueue.
func NewRenderQueue() *RenderQueue {
	return &RenderQueue{
		defaultGroup:    RenderQueueMain,
		defaultPriority: 100,
	}
}

// Group returns the RenderQueueGroup for the id provided, creating it on
// first use.
func (queue *RenderQueue) Group(id RenderQueueGroupID) *RenderQueueGroup {
	if queue.groups[id] == nil {
		queue.groups[id] = newRenderQueueGroup(id)
	}
	return queue.groups[id]
}

// AddRenderable queues the renderable into the group and priority provided.
func (queue *RenderQueue) AddRenderable(renderable Renderable, group RenderQueueGroupID, priority uint16) {
	if group > RenderQueueMax {
		group = RenderQueueMax
	}
	queue.Group(group).add(renderable, priority)
}

// AddRenderableDefault queues the renderable into the queue's default group
// and priority.
func (queue *RenderQueue) AddRenderableDefault(renderable Renderable) {
	queue.AddRenderable(renderable, queue.defaultGroup, queue.defaultPriority)
}

// SetDefaultGroup sets the group used by AddRenderableDefault.
func (queue *RenderQueue) SetDefaultGroup(group RenderQueueGroupID) {
	queue.defaultGroup = group
}

// DefaultGroup returns the group used by AddRenderableDefault.
func (queue *RenderQueue) DefaultGroup() RenderQueueGroupID {
	return queue.defaultGroup
}

// Clear empties every group, keeping the allocated buckets for reuse.
func (queue *RenderQueue) Clear() {
	for _, group := range queue.groups {
		if group != nil {
			group.clear()
		}
	}
}

// Visit calls the visitor for every populated group in ascending group order.
func (queue *RenderQueue) Visit(visitor func(group *RenderQueueGroup)) {
	for id := range queue.groups {
		if queue.groups[id] != nil {
			visitor(queue.groups[id])
		}
	}
}

// Count returns the total number of renderables queued.
func (queue *RenderQueue) Count() int {
	n := 0
	for _, group := range queue.groups {
		if group != nil {
			n += group.Count()
		}
	}
	return n
}
