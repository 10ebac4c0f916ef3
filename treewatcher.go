package umbra3d

// TreeWatcher reports scene nodes appearing under or disappearing from a
// subtree between Update calls. It is useful for attaching game logic to
// objects as they enter a scene.
type TreeWatcher struct {
	root *SceneNode

	// Filter narrows which nodes are watched; when nil every node in the
	// subtree is watched.
	Filter func(node *SceneNode) bool

	// OnAdd fires once for each watched node newly present since the last
	// Update.
	OnAdd func(node *SceneNode)

	// OnRemove fires once for each watched node gone since the last Update.
	OnRemove func(node *SceneNode)

	previous map[*SceneNode]struct{}
}

// NewTreeWatcher creates a watcher over the subtree rooted at root. The
// first Update reports every existing node as added.
func NewTreeWatcher(root *SceneNode, onAdd func(node *SceneNode)) *TreeWatcher {
	return &TreeWatcher{
		root:     root,
		OnAdd:    onAdd,
		previous: map[*SceneNode]struct{}{},
	}
}

// Update re-scans the subtree, firing OnAdd and OnRemove for the changes
// since the previous call.
func (watcher *TreeWatcher) Update() {
	if watcher.root == nil {
		return
	}

	current := map[*SceneNode]struct{}{}
	filter := watcher.root.Search()
	if watcher.Filter != nil {
		filter.ByFunc(watcher.Filter)
	}
	filter.ForEach(func(node *SceneNode) bool {
		current[node] = struct{}{}
		if _, existed := watcher.previous[node]; !existed && watcher.OnAdd != nil {
			watcher.OnAdd(node)
		}
		return true
	})

	if watcher.OnRemove != nil {
		for node := range watcher.previous {
			if _, still := current[node]; !still {
				watcher.OnRemove(node)
			}
		}
	}

	watcher.previous = current
}
