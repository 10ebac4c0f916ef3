package umbra3d

import (
	"math"
	"sort"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// AnimationInterpolation selects how values between keyframes are computed.
type AnimationInterpolation int

const (
	InterpolationLinear AnimationInterpolation = iota
	InterpolationSpline
)

// TransformKeyFrame is one sampled transform on a node animation track.
type TransformKeyFrame struct {
	Time      float64
	Translate Vector
	Rotation  Quaternion
	Scale     Vector
}

// NodeAnimationTrack animates one node (a bone or a scene node) over time
// with transform keyframes.
type NodeAnimationTrack struct {
	parent *Animation

	// Handle identifies the target bone when the animation is applied to a
	// skeleton.
	Handle uint16

	keyFrames []*TransformKeyFrame

	// associatedNode is the target when the animation is applied directly
	// rather than through a skeleton.
	associatedNode *Node
}

// CreateKeyFrame adds a keyframe at the time given, keeping keyframes in
// time order. New keyframes start at the identity transform.
func (track *NodeAnimationTrack) CreateKeyFrame(time float64) *TransformKeyFrame {
	keyFrame := &TransformKeyFrame{
		Time:     time,
		Rotation: NewQuaternionIdentity(),
		Scale:    vectorOne,
	}
	index := sort.Search(len(track.keyFrames), func(i int) bool { return track.keyFrames[i].Time > time })
	track.keyFrames = append(track.keyFrames, nil)
	copy(track.keyFrames[index+1:], track.keyFrames[index:])
	track.keyFrames[index] = keyFrame
	return keyFrame
}

// KeyFrames returns the track's keyframes in time order.
func (track *NodeAnimationTrack) KeyFrames() []*TransformKeyFrame {
	return track.keyFrames
}

// SetAssociatedNode targets the track at a node for direct application.
func (track *NodeAnimationTrack) SetAssociatedNode(node *Node) {
	track.associatedNode = node
}

// AssociatedNode returns the track's direct target node, or nil.
func (track *NodeAnimationTrack) AssociatedNode() *Node {
	return track.associatedNode
}

// keyFramesAt finds the keyframes bracketing time and the blend factor
// between them.
func (track *NodeAnimationTrack) keyFramesAt(time float64) (k1, k2 *TransformKeyFrame, t float64) {
	n := len(track.keyFrames)
	if n == 0 {
		return nil, nil, 0
	}
	index := sort.Search(n, func(i int) bool { return track.keyFrames[i].Time > time })
	if index == 0 {
		return track.keyFrames[0], track.keyFrames[0], 0
	}
	if index == n {
		return track.keyFrames[n-1], track.keyFrames[n-1], 0
	}
	k1 = track.keyFrames[index-1]
	k2 = track.keyFrames[index]
	span := k2.Time - k1.Time
	if span > 0 {
		t = (time - k1.Time) / span
	}
	return k1, k2, t
}

// InterpolatedKeyFrame samples the track at the time given.
func (track *NodeAnimationTrack) InterpolatedKeyFrame(time float64) TransformKeyFrame {
	k1, k2, t := track.keyFramesAt(time)
	if k1 == nil {
		return TransformKeyFrame{Rotation: NewQuaternionIdentity(), Scale: vectorOne}
	}
	if k1 == k2 {
		return *k1
	}
	return TransformKeyFrame{
		Time:      time,
		Translate: k1.Translate.Lerp(k2.Translate, t),
		Rotation:  k1.Rotation.Slerp(k2.Rotation, t),
		Scale:     k1.Scale.Lerp(k2.Scale, t),
	}
}

// Apply blends the track's sampled transform into the node provided at the
// weight given. Translation and scale blend linearly; rotation applies a
// weight-scaled slerp from identity.
func (track *NodeAnimationTrack) Apply(node *Node, time, weight float64) {
	if node == nil || len(track.keyFrames) == 0 || weight == 0 {
		return
	}
	sample := track.InterpolatedKeyFrame(time)

	node.Translate(sample.Translate.Scale(weight), TransformParent)

	rotation := NewQuaternionIdentity().Slerp(sample.Rotation, weight)
	node.Rotate(rotation, TransformLocal)

	scale := sample.Scale
	if weight != 1 {
		scale = vectorOne.Lerp(scale, weight)
	}
	node.SetScale(node.Scale().MultComp(scale))
}

// Animation is a named, timed set of node tracks, applied to a skeleton's
// bones by handle or to free nodes directly.
type Animation struct {
	name   string
	length float64

	interpolation AnimationInterpolation

	nodeTracks map[uint16]*NodeAnimationTrack
	trackOrder []uint16
}

// NewAnimation creates an empty animation of the length given, in seconds.
func NewAnimation(name string, length float64) *Animation {
	return &Animation{
		name:       name,
		length:     length,
		nodeTracks: map[uint16]*NodeAnimationTrack{},
	}
}

// Name returns the animation's name.
func (animation *Animation) Name() string { return animation.name }

// Length returns the animation's duration in seconds.
func (animation *Animation) Length() float64 { return animation.length }

// SetInterpolation sets how the animation's tracks interpolate.
func (animation *Animation) SetInterpolation(interpolation AnimationInterpolation) {
	animation.interpolation = interpolation
}

// CreateNodeTrack adds a track targeting the bone handle given.
func (animation *Animation) CreateNodeTrack(handle uint16) (*NodeAnimationTrack, error) {
	if _, taken := animation.nodeTracks[handle]; taken {
		return nil, newError(ErrDuplicateItem, "animation %q already has a track for handle %d", animation.name, handle)
	}
	track := &NodeAnimationTrack{parent: animation, Handle: handle}
	animation.nodeTracks[handle] = track
	animation.trackOrder = append(animation.trackOrder, handle)
	return track, nil
}

// NodeTrack returns the track targeting the bone handle given.
func (animation *Animation) NodeTrack(handle uint16) (*NodeAnimationTrack, error) {
	track, ok := animation.nodeTracks[handle]
	if !ok {
		return nil, newError(ErrItemNotFound, "animation %q has no track for handle %d", animation.name, handle)
	}
	return track, nil
}

// NodeTracks iterates the animation's tracks in creation order.
func (animation *Animation) NodeTracks(visit func(*NodeAnimationTrack)) {
	for _, handle := range animation.trackOrder {
		visit(animation.nodeTracks[handle])
	}
}

// ApplyToSkeleton blends the animation into the skeleton's bones at the time
// and weight given. Manually controlled bones are skipped.
func (animation *Animation) ApplyToSkeleton(skeleton *Skeleton, time, weight float64) {
	for _, handle := range animation.trackOrder {
		bone, err := skeleton.Bone(handle)
		if err != nil || bone.IsManuallyControlled() {
			continue
		}
		animation.nodeTracks[handle].Apply(&bone.Node, time, weight)
	}
}

// ApplyToAssociatedNodes blends the animation into each track's associated
// node at the time and weight given.
func (animation *Animation) ApplyToAssociatedNodes(time, weight float64) {
	for _, handle := range animation.trackOrder {
		track := animation.nodeTracks[handle]
		track.Apply(track.associatedNode, time, weight)
	}
}

// VertexAnimationType distinguishes morph (whole-buffer interpolation) from
// pose (blended sparse offsets) animation.
type VertexAnimationType int

const (
	VertexAnimationMorph VertexAnimationType = iota
	VertexAnimationPose
)

// Pose is a named sparse set of vertex position offsets targeting one
// geometry set of a mesh.
type Pose struct {
	Name string

	// Target selects the geometry: 0 for shared geometry, i+1 for submesh i.
	Target uint16

	Offsets map[uint32]Vector
}

// AddVertexOffset records the offset for the vertex index given.
func (pose *Pose) AddVertexOffset(index uint32, offset Vector) {
	pose.Offsets[index] = offset
}

// apply adds the pose's offsets, scaled by influence, into the position
// accumulator provided.
func (pose *Pose) apply(positions []Vector, influence float64) {
	for index, offset := range pose.Offsets {
		if int(index) < len(positions) {
			positions[index] = positions[index].Add(offset.Scale(influence))
		}
	}
}

// MorphKeyFrame is a full replacement position buffer at one time.
type MorphKeyFrame struct {
	Time      float64
	Positions []Vector
}

// PoseRef is one pose's contribution within a pose keyframe.
type PoseRef struct {
	PoseIndex int
	Influence float64
}

// PoseKeyFrame blends a set of poses at one time.
type PoseKeyFrame struct {
	Time     float64
	PoseRefs []PoseRef
}

// VertexAnimationTrack animates one geometry set of a mesh, by morph
// keyframes or by pose blends.
type VertexAnimationTrack struct {
	// Target selects the geometry: 0 for shared geometry, i+1 for submesh i.
	Target uint16

	Type VertexAnimationType

	morphKeyFrames []*MorphKeyFrame
	poseKeyFrames  []*PoseKeyFrame
}

// CreateMorphKeyFrame adds a morph keyframe at the time given.
func (track *VertexAnimationTrack) CreateMorphKeyFrame(time float64, positions []Vector) *MorphKeyFrame {
	keyFrame := &MorphKeyFrame{Time: time, Positions: positions}
	track.morphKeyFrames = append(track.morphKeyFrames, keyFrame)
	sort.SliceStable(track.morphKeyFrames, func(i, j int) bool {
		return track.morphKeyFrames[i].Time < track.morphKeyFrames[j].Time
	})
	return keyFrame
}

// CreatePoseKeyFrame adds a pose keyframe at the time given.
func (track *VertexAnimationTrack) CreatePoseKeyFrame(time float64, refs []PoseRef) *PoseKeyFrame {
	keyFrame := &PoseKeyFrame{Time: time, PoseRefs: refs}
	track.poseKeyFrames = append(track.poseKeyFrames, keyFrame)
	sort.SliceStable(track.poseKeyFrames, func(i, j int) bool {
		return track.poseKeyFrames[i].Time < track.poseKeyFrames[j].Time
	})
	return keyFrame
}

// samplePositions computes the track's morph positions at the time given,
// scaled toward the base positions by weight.
func (track *VertexAnimationTrack) samplePositions(base []Vector, time, weight float64) []Vector {
	n := len(track.morphKeyFrames)
	if n == 0 {
		return base
	}
	index := sort.Search(n, func(i int) bool { return track.morphKeyFrames[i].Time > time })
	var from, to *MorphKeyFrame
	t := 0.0
	switch {
	case index == 0:
		from, to = track.morphKeyFrames[0], track.morphKeyFrames[0]
	case index == n:
		from, to = track.morphKeyFrames[n-1], track.morphKeyFrames[n-1]
	default:
		from, to = track.morphKeyFrames[index-1], track.morphKeyFrames[index]
		if span := to.Time - from.Time; span > 0 {
			t = (time - from.Time) / span
		}
	}
	out := make([]Vector, len(base))
	for i := range out {
		target := base[i]
		if i < len(from.Positions) && i < len(to.Positions) {
			target = from.Positions[i].Lerp(to.Positions[i], t)
		}
		out[i] = base[i].Lerp(target, weight)
	}
	return out
}

// samplePoseInfluences returns the blended pose influences at the time
// given, scaled by weight. Influences interpolate between bracketing
// keyframes, so a pose absent from one side fades toward zero.
func (track *VertexAnimationTrack) samplePoseInfluences(time, weight float64) map[int]float64 {
	influences := map[int]float64{}
	n := len(track.poseKeyFrames)
	if n == 0 {
		return influences
	}
	index := sort.Search(n, func(i int) bool { return track.poseKeyFrames[i].Time > time })
	var from, to *PoseKeyFrame
	t := 0.0
	switch {
	case index == 0:
		from, to = track.poseKeyFrames[0], track.poseKeyFrames[0]
	case index == n:
		from, to = track.poseKeyFrames[n-1], track.poseKeyFrames[n-1]
	default:
		from, to = track.poseKeyFrames[index-1], track.poseKeyFrames[index]
		if span := to.Time - from.Time; span > 0 {
			t = (time - from.Time) / span
		}
	}
	for _, ref := range from.PoseRefs {
		influences[ref.PoseIndex] += ref.Influence * (1 - t)
	}
	for _, ref := range to.PoseRefs {
		influences[ref.PoseIndex] += ref.Influence * t
	}
	for poseIndex := range influences {
		influences[poseIndex] *= weight
	}
	return influences
}

// VertexAnimation is a named, timed set of vertex tracks belonging to a
// mesh.
type VertexAnimation struct {
	name   string
	length float64

	tracks []*VertexAnimationTrack
}

func newVertexAnimation(name string, length float64) *VertexAnimation {
	return &VertexAnimation{name: name, length: length}
}

// Name returns the animation's name.
func (animation *VertexAnimation) Name() string { return animation.name }

// Length returns the animation's duration in seconds.
func (animation *VertexAnimation) Length() float64 { return animation.length }

// CreateTrack adds a vertex track of the type given targeting the geometry
// index provided.
func (animation *VertexAnimation) CreateTrack(target uint16, animationType VertexAnimationType) *VertexAnimationTrack {
	track := &VertexAnimationTrack{Target: target, Type: animationType}
	animation.tracks = append(animation.tracks, track)
	return track
}

// Tracks returns the animation's vertex tracks.
func (animation *VertexAnimation) Tracks() []*VertexAnimationTrack {
	return animation.tracks
}

// AnimationState is the playable handle of one animation on one consumer:
// its time position, weight, enabled flag, and looping. Weight changes can
// be eased over time with FadeTo.
type AnimationState struct {
	parent *AnimationStateSet

	name    string
	timePos float64
	length  float64
	weight  float64
	enabled bool
	loop    bool

	fade *gween.Tween
}

// Name returns the state's animation name.
func (state *AnimationState) Name() string { return state.name }

// Length returns the animation's duration in seconds.
func (state *AnimationState) Length() float64 { return state.length }

// TimePosition returns the current playback position in seconds.
func (state *AnimationState) TimePosition() float64 { return state.timePos }

// SetTimePosition sets the playback position, clamping or wrapping per the
// loop setting.
func (state *AnimationState) SetTimePosition(time float64) {
	if state.loop && state.length > 0 {
		time = math.Mod(time, state.length)
		if time < 0 {
			time += state.length
		}
	} else {
		time = clamp(time, 0, state.length)
	}
	if time != state.timePos {
		state.timePos = time
		state.markDirty()
	}
}

// AddTime advances playback by offset seconds, advancing any weight fade by
// the same amount.
func (state *AnimationState) AddTime(offset float64) {
	if state.fade != nil {
		weight, finished := state.fade.Update(float32(offset))
		state.setWeightInternal(float64(weight))
		if finished {
			state.fade = nil
		}
	}
	state.SetTimePosition(state.timePos + offset)
}

// HasEnded reports whether a non-looping state has played to its end.
func (state *AnimationState) HasEnded() bool {
	return !state.loop && state.timePos >= state.length
}

// Weight returns the state's blend weight.
func (state *AnimationState) Weight() float64 { return state.weight }

// SetWeight sets the state's blend weight immediately, cancelling any fade.
func (state *AnimationState) SetWeight(weight float64) {
	state.fade = nil
	state.setWeightInternal(weight)
}

func (state *AnimationState) setWeightInternal(weight float64) {
	if weight != state.weight {
		state.weight = weight
		state.markDirty()
	}
}

// FadeTo eases the state's weight to target over duration seconds, driven
// by subsequent AddTime calls.
func (state *AnimationState) FadeTo(target, duration float64) {
	if duration <= 0 {
		state.SetWeight(target)
		return
	}
	state.fade = gween.New(float32(state.weight), float32(target), float32(duration), ease.Linear)
}

// Enabled returns whether the state contributes to animation.
func (state *AnimationState) Enabled() bool { return state.enabled }

// SetEnabled turns the state's contribution on or off.
func (state *AnimationState) SetEnabled(enabled bool) {
	if enabled != state.enabled {
		state.enabled = enabled
		if state.parent != nil {
			state.parent.notifyEnabled(state, enabled)
		}
		state.markDirty()
	}
}

// Loop returns whether playback wraps at the animation's end.
func (state *AnimationState) Loop() bool { return state.loop }

// SetLoop sets whether playback wraps at the animation's end.
func (state *AnimationState) SetLoop(loop bool) { state.loop = loop }

func (state *AnimationState) markDirty() {
	if state.parent != nil {
		state.parent.dirtyCounter++
	}
}

// copySettingsFrom copies playback state, leaving identity and parent alone.
func (state *AnimationState) copySettingsFrom(other *AnimationState) {
	state.timePos = other.timePos
	state.weight = other.weight
	state.loop = other.loop
	state.SetEnabled(other.enabled)
	state.markDirty()
}

// AnimationStateSet owns the animation states of one consumer (an entity or
// a scene). A change counter lets consumers skip re-applying unchanged
// states.
type AnimationStateSet struct {
	states       map[string]*AnimationState
	enabledOrder []*AnimationState

	dirtyCounter uint64
}

// NewAnimationStateSet returns an empty state set.
func NewAnimationStateSet() *AnimationStateSet {
	return &AnimationStateSet{states: map[string]*AnimationState{}}
}

// CreateState adds a state for the animation named name. Duplicate names
// fail.
func (set *AnimationStateSet) CreateState(name string, timePos, length float64) (*AnimationState, error) {
	if _, taken := set.states[name]; taken {
		return nil, newError(ErrDuplicateItem, "an animation state named %q already exists", name)
	}
	state := &AnimationState{parent: set, name: name, timePos: timePos, length: length, weight: 1, loop: true}
	set.states[name] = state
	set.dirtyCounter++
	return state, nil
}

// State returns the state named name.
func (set *AnimationStateSet) State(name string) (*AnimationState, error) {
	state, ok := set.states[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "no animation state named %q", name)
	}
	return state, nil
}

// HasState reports whether a state named name exists.
func (set *AnimationStateSet) HasState(name string) bool {
	_, ok := set.states[name]
	return ok
}

// RemoveState removes the state named name.
func (set *AnimationStateSet) RemoveState(name string) {
	if state, ok := set.states[name]; ok {
		set.notifyEnabled(state, false)
		delete(set.states, name)
		set.dirtyCounter++
	}
}

// RemoveAll removes every state.
func (set *AnimationStateSet) RemoveAll() {
	set.states = map[string]*AnimationState{}
	set.enabledOrder = set.enabledOrder[:0]
	set.dirtyCounter++
}

// States returns the set's states keyed by name.
func (set *AnimationStateSet) States() map[string]*AnimationState {
	return set.states
}

// EnabledStates returns the enabled states in the order they were enabled.
func (set *AnimationStateSet) EnabledStates() []*AnimationState {
	return set.enabledOrder
}

// DirtyCounter returns a counter incremented on every state change, for
// change detection.
func (set *AnimationStateSet) DirtyCounter() uint64 { return set.dirtyCounter }

func (set *AnimationStateSet) notifyEnabled(state *AnimationState, enabled bool) {
	for i, existing := range set.enabledOrder {
		if existing == state {
			if !enabled {
				set.enabledOrder = append(set.enabledOrder[:i], set.enabledOrder[i+1:]...)
			}
			return
		}
	}
	if enabled {
		set.enabledOrder = append(set.enabledOrder, state)
	}
}

// CopyMatchingState copies playback settings into target for every state
// name both sets share.
func (set *AnimationStateSet) CopyMatchingState(target *AnimationStateSet) {
	for name, state := range set.states {
		if targetState, ok := target.states[name]; ok {
			targetState.copySettingsFrom(state)
		}
	}
}
