package umbra3d

import (
	"regexp"
	"sort"
	"strings"
)

// NodeFilter is a chain of predicates executed over a scene node's subtree
// to collect matching nodes. Filters run lazily when a terminal call
// (Nodes, First, Count, ForEach) executes the search.
type NodeFilter struct {
	start   *SceneNode
	filters []func(*SceneNode) bool

	// MaxDepth limits how deep below the start node the search goes; a
	// negative value searches the whole subtree.
	MaxDepth int

	sortByDistanceTo Vector
	sortByDistance   bool
}

// Search starts a NodeFilter over the node's subtree, excluding the node
// itself.
func (sceneNode *SceneNode) Search() *NodeFilter {
	return &NodeFilter{start: sceneNode, MaxDepth: -1}
}

// ByFunc adds an arbitrary predicate to the filter chain.
func (filter *NodeFilter) ByFunc(predicate func(*SceneNode) bool) *NodeFilter {
	filter.filters = append(filter.filters, predicate)
	return filter
}

// ByName keeps nodes whose name contains the substring given.
func (filter *NodeFilter) ByName(substring string) *NodeFilter {
	return filter.ByFunc(func(node *SceneNode) bool {
		return strings.Contains(node.Name(), substring)
	})
}

// ByRegex keeps nodes whose name matches the regular expression given. An
// invalid expression matches nothing.
func (filter *NodeFilter) ByRegex(expression string) *NodeFilter {
	compiled, err := regexp.Compile(expression)
	return filter.ByFunc(func(node *SceneNode) bool {
		if err != nil {
			return false
		}
		return compiled.MatchString(node.Name())
	})
}

// ByAttachedType keeps nodes with at least one attached object whose type
// flags intersect the mask given.
func (filter *NodeFilter) ByAttachedType(typeMask uint32) *NodeFilter {
	return filter.ByFunc(func(node *SceneNode) bool {
		for _, object := range node.AttachedObjects() {
			if object.TypeFlags()&typeMask != 0 {
				return true
			}
		}
		return false
	})
}

// WithAttachments keeps nodes that have at least one attached object.
func (filter *NodeFilter) WithAttachments() *NodeFilter {
	return filter.ByFunc(func(node *SceneNode) bool {
		return node.AttachedObjectCount() > 0
	})
}

// SortByDistance makes terminal calls return nodes ordered near to far from
// the world point given.
func (filter *NodeFilter) SortByDistance(point Vector) *NodeFilter {
	filter.sortByDistance = true
	filter.sortByDistanceTo = point
	return filter
}

func (filter *NodeFilter) matches(node *SceneNode) bool {
	for _, predicate := range filter.filters {
		if !predicate(node) {
			return false
		}
	}
	return true
}

func (filter *NodeFilter) collect(node *SceneNode, depth int, visit func(*SceneNode) bool) bool {
	if filter.MaxDepth >= 0 && depth > filter.MaxDepth {
		return true
	}
	for i := 0; i < node.ChildCount(); i++ {
		child := node.ChildSceneNode(i)
		if child == nil {
			continue
		}
		if filter.matches(child) && !visit(child) {
			return false
		}
		if !filter.collect(child, depth+1, visit) {
			return false
		}
	}
	return true
}

// ForEach runs the search, calling visit for every matching node in
// traversal order. Returning false from visit stops the search.
func (filter *NodeFilter) ForEach(visit func(*SceneNode) bool) {
	filter.collect(filter.start, 0, visit)
}

// Nodes runs the search and returns every matching node.
func (filter *NodeFilter) Nodes() []*SceneNode {
	var out []*SceneNode
	filter.collect(filter.start, 0, func(node *SceneNode) bool {
		out = append(out, node)
		return true
	})
	if filter.sortByDistance {
		sort.SliceStable(out, func(i, j int) bool {
			di := out[i].DerivedPosition().Sub(filter.sortByDistanceTo).MagnitudeSquared()
			dj := out[j].DerivedPosition().Sub(filter.sortByDistanceTo).MagnitudeSquared()
			return di < dj
		})
	}
	return out
}

// First runs the search and returns the first matching node, or nil when
// nothing matches.
func (filter *NodeFilter) First() *SceneNode {
	if filter.sortByDistance {
		nodes := filter.Nodes()
		if len(nodes) == 0 {
			return nil
		}
		return nodes[0]
	}
	var found *SceneNode
	filter.collect(filter.start, 0, func(node *SceneNode) bool {
		found = node
		return false
	})
	return found
}

// Count runs the search and returns how many nodes match.
func (filter *NodeFilter) Count() int {
	count := 0
	filter.collect(filter.start, 0, func(node *SceneNode) bool {
		count++
		return true
	})
	return count
}
