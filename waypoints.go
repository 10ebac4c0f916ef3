package umbra3d

// Waypoint is one point in a WaypointGraph, connected bidirectionally to
// its neighbors.
type Waypoint struct {
	graph    *WaypointGraph
	name     string
	position Vector

	connections []*Waypoint
	prevLink    *Waypoint
}

// Name returns the waypoint's name.
func (point *Waypoint) Name() string { return point.name }

// Position returns the waypoint's world position.
func (point *Waypoint) Position() Vector { return point.position }

// SetPosition moves the waypoint.
func (point *Waypoint) SetPosition(position Vector) { point.position = position }

// Connections returns the waypoints connected to this one.
func (point *Waypoint) Connections() []*Waypoint { return point.connections }

// IsConnected reports whether the other waypoint is directly connected to
// this one.
func (point *Waypoint) IsConnected(other *Waypoint) bool {
	for _, connection := range point.connections {
		if connection == other {
			return true
		}
	}
	return false
}

// Connect links the two waypoints in both directions. Connecting waypoints
// from different graphs is an error.
func (point *Waypoint) Connect(other *Waypoint) error {
	if other == nil || other == point {
		return newError(ErrInvalidArgument, "waypoint %q cannot connect to itself or nil", point.name)
	}
	if point.graph != other.graph {
		return newError(ErrInvalidArgument, "waypoints %q and %q belong to different graphs", point.name, other.name)
	}
	if !point.IsConnected(other) {
		point.connections = append(point.connections, other)
	}
	if !other.IsConnected(point) {
		other.connections = append(other.connections, point)
	}
	return nil
}

// Disconnect removes the link between the two waypoints in both directions.
func (point *Waypoint) Disconnect(other *Waypoint) {
	point.connections = removeWaypoint(point.connections, other)
	other.connections = removeWaypoint(other.connections, point)
}

func removeWaypoint(list []*Waypoint, target *Waypoint) []*Waypoint {
	for i, point := range list {
		if point == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// WaypointGraph is a set of connected waypoints that paths can be searched
// through.
type WaypointGraph struct {
	name   string
	points []*Waypoint
	byName map[string]*Waypoint
}

// NewWaypointGraph creates an empty waypoint graph.
func NewWaypointGraph(name string) *WaypointGraph {
	return &WaypointGraph{name: name, byName: map[string]*Waypoint{}}
}

// Name returns the graph's name.
func (graph *WaypointGraph) Name() string { return graph.name }

// CreateWaypoint adds a named waypoint at the world position given.
func (graph *WaypointGraph) CreateWaypoint(name string, position Vector) (*Waypoint, error) {
	if _, taken := graph.byName[name]; taken {
		return nil, newError(ErrDuplicateItem, "graph %q already has a waypoint named %q", graph.name, name)
	}
	point := &Waypoint{graph: graph, name: name, position: position}
	graph.points = append(graph.points, point)
	graph.byName[name] = point
	return point, nil
}

// Waypoint returns the waypoint named name.
func (graph *WaypointGraph) Waypoint(name string) (*Waypoint, error) {
	point, ok := graph.byName[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "graph %q has no waypoint named %q", graph.name, name)
	}
	return point, nil
}

// Waypoints returns every waypoint in creation order.
func (graph *WaypointGraph) Waypoints() []*Waypoint { return graph.points }

// FindPath searches the graph breadth-first for a route from one waypoint
// to another and returns it as a Path through the waypoints' positions,
// including both endpoints. It returns an error when the points are not
// connected or belong to other graphs.
func (graph *WaypointGraph) FindPath(from, to *Waypoint) (*Path, error) {
	if from == nil || to == nil || from.graph != graph || to.graph != graph {
		return nil, newError(ErrInvalidArgument, "path endpoints must belong to graph %q", graph.name)
	}

	for _, point := range graph.points {
		point.prevLink = nil
	}

	queue := []*Waypoint{from}
	visited := map[*Waypoint]struct{}{from: {}}
	found := from == to

	for len(queue) > 0 && !found {
		next := queue[0]
		queue = queue[1:]

		for _, connection := range next.connections {
			if _, seen := visited[connection]; seen {
				continue
			}
			visited[connection] = struct{}{}
			connection.prevLink = next
			if connection == to {
				found = true
				break
			}
			queue = append(queue, connection)
		}
	}

	if !found {
		return nil, newError(ErrItemNotFound, "no route from waypoint %q to %q", from.name, to.name)
	}

	// Walk the links back from the goal, then reverse.
	var reversed []*Waypoint
	for point := to; point != nil; point = point.prevLink {
		reversed = append(reversed, point)
	}
	path := NewPath(graph.name + "/" + from.name + "-" + to.name)
	for i := len(reversed) - 1; i >= 0; i-- {
		path.AddPoint(reversed[i].position)
	}
	return path, nil
}
