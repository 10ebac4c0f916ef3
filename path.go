package umbra3d

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Path is an ordered list of world-space waypoints, optionally closed into
// a loop.
type Path struct {
	name   string
	points []Vector
	Closed bool
}

// NewPath creates a Path through the points given, in order.
func NewPath(name string, points ...Vector) *Path {
	return &Path{name: name, points: append([]Vector{}, points...)}
}

// Name returns the path's name.
func (path *Path) Name() string { return path.name }

// AddPoint appends a waypoint to the path.
func (path *Path) AddPoint(point Vector) {
	path.points = append(path.points, point)
}

// Points returns the path's waypoints in order.
func (path *Path) Points() []Vector {
	return path.points
}

// HopCount returns the number of segments in the path, counting the closing
// segment when the path is closed.
func (path *Path) HopCount() int {
	if len(path.points) < 2 {
		return 0
	}
	hops := len(path.points) - 1
	if path.Closed {
		hops++
	}
	return hops
}

// Length returns the total world-space distance the path covers.
func (path *Path) Length() float64 {
	if len(path.points) < 2 {
		return 0
	}
	distance := 0.0
	for i := 1; i < len(path.points); i++ {
		distance += path.points[i].Sub(path.points[i-1]).Magnitude()
	}
	if path.Closed {
		distance += path.points[0].Sub(path.points[len(path.points)-1]).Magnitude()
	}
	return distance
}

// PositionAt returns the world position the fraction given along the path,
// weighted by distance rather than point count. The fraction is clamped to
// [0, 1].
func (path *Path) PositionAt(fraction float64) Vector {
	if len(path.points) == 0 {
		return vectorZero
	}
	if len(path.points) == 1 {
		return path.points[0]
	}

	fraction = clamp(fraction, 0, 1)

	points := path.points
	if path.Closed {
		points = append(append(make([]Vector, 0, len(path.points)+1), path.points...), path.points[0])
	}

	totalLength := path.Length()
	if totalLength == 0 {
		return points[0]
	}

	remaining := fraction
	for i := 0; i < len(points)-1; i++ {
		segment := points[i+1].Sub(points[i])
		segmentFraction := segment.Magnitude() / totalLength
		if remaining > segmentFraction {
			remaining -= segmentFraction
			continue
		}
		if segmentFraction == 0 {
			return points[i]
		}
		return points[i].Add(segment.Scale(remaining / segmentFraction))
	}
	return points[len(points)-1]
}

// Clone duplicates the path and its waypoints.
func (path *Path) Clone() *Path {
	clone := NewPath(path.name, path.points...)
	clone.Closed = path.Closed
	return clone
}

// PathFollower moves a scene node along a Path over a fixed duration,
// optionally eased. Update advances it; the follower positions the node
// each call.
type PathFollower struct {
	path *Path
	node *SceneNode

	tween    *gween.Tween
	duration float64
	easing   ease.TweenFunc
	loop     bool
	finished bool
}

// NewPathFollower creates a follower moving the node given along the path
// over the duration given, in seconds, with linear pacing.
func NewPathFollower(path *Path, node *SceneNode, duration float64) *PathFollower {
	follower := &PathFollower{
		path:     path,
		node:     node,
		duration: duration,
		easing:   ease.Linear,
	}
	follower.Restart()
	return follower
}

// SetEasing replaces the follower's pacing function.
func (follower *PathFollower) SetEasing(easing ease.TweenFunc) {
	follower.easing = easing
	follower.Restart()
}

// SetLoop makes the follower restart from the beginning when it reaches the
// end of the path.
func (follower *PathFollower) SetLoop(loop bool) {
	follower.loop = loop
}

// Restart rewinds the follower to the start of the path.
func (follower *PathFollower) Restart() {
	follower.tween = gween.New(0, 1, float32(follower.duration), follower.easing)
	follower.finished = false
}

// Finished reports whether the follower has reached the end of the path.
func (follower *PathFollower) Finished() bool { return follower.finished }

// Update advances the follower by the time step given, in seconds, and
// repositions its node. It returns true when the end of the path was
// reached this step.
func (follower *PathFollower) Update(dt float64) bool {
	if follower.finished || follower.node == nil || follower.path == nil {
		return false
	}
	fraction, done := follower.tween.Update(float32(dt))
	follower.node.SetPosition(follower.path.PositionAt(float64(fraction)))
	if done {
		if follower.loop {
			follower.Restart()
		} else {
			follower.finished = true
		}
		return true
	}
	return false
}
