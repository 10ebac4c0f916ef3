package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnimationStateLoopingAndClamping(t *testing.T) {
	set := NewAnimationStateSet()
	state, err := set.CreateState("Walk", 0, 2)
	require.NoError(t, err)
	require.True(t, state.Loop())

	state.AddTime(2.5)
	assert.InDelta(t, 0.5, state.TimePosition(), 1e-9)
	assert.False(t, state.HasEnded())

	state.SetLoop(false)
	state.SetTimePosition(0)
	state.AddTime(5)
	assert.InDelta(t, 2, state.TimePosition(), 1e-9)
	assert.True(t, state.HasEnded())

	state.SetTimePosition(-1)
	assert.InDelta(t, 0, state.TimePosition(), 1e-9)
}

func TestAnimationStateFadeTo(t *testing.T) {
	set := NewAnimationStateSet()
	state, err := set.CreateState("Run", 0, 10)
	require.NoError(t, err)
	require.InDelta(t, 1, state.Weight(), 1e-9)

	state.FadeTo(0, 2)
	assert.InDelta(t, 1, state.Weight(), 1e-9)

	state.AddTime(1)
	assert.InDelta(t, 0.5, state.Weight(), 1e-4)

	state.AddTime(1)
	assert.InDelta(t, 0, state.Weight(), 1e-4)

	// A finished fade no longer moves the weight.
	state.AddTime(1)
	assert.InDelta(t, 0, state.Weight(), 1e-4)

	// A zero-duration fade applies immediately.
	state.FadeTo(0.75, 0)
	assert.InDelta(t, 0.75, state.Weight(), 1e-9)

	// SetWeight cancels a running fade.
	state.FadeTo(0, 5)
	state.SetWeight(0.3)
	state.AddTime(1)
	assert.InDelta(t, 0.3, state.Weight(), 1e-9)
}

func TestAnimationStateSetTracksEnabledOrder(t *testing.T) {
	set := NewAnimationStateSet()
	walk, err := set.CreateState("Walk", 0, 1)
	require.NoError(t, err)
	run, err := set.CreateState("Run", 0, 1)
	require.NoError(t, err)

	_, err = set.CreateState("Walk", 0, 1)
	assert.True(t, IsKind(err, ErrDuplicateItem))

	run.SetEnabled(true)
	walk.SetEnabled(true)
	enabled := set.EnabledStates()
	require.Len(t, enabled, 2)
	assert.Equal(t, "Run", enabled[0].Name())
	assert.Equal(t, "Walk", enabled[1].Name())

	run.SetEnabled(false)
	enabled = set.EnabledStates()
	require.Len(t, enabled, 1)
	assert.Equal(t, "Walk", enabled[0].Name())
}

func TestAnimationStateChangesBumpDirtyCounter(t *testing.T) {
	set := NewAnimationStateSet()
	state, err := set.CreateState("Idle", 0, 4)
	require.NoError(t, err)

	before := set.DirtyCounter()
	state.SetEnabled(true)
	state.AddTime(1)
	state.SetWeight(0.5)
	assert.Greater(t, set.DirtyCounter(), before)

	// Writing the same values again changes nothing.
	unchanged := set.DirtyCounter()
	state.SetEnabled(true)
	state.SetWeight(0.5)
	state.SetTimePosition(1)
	assert.Equal(t, unchanged, set.DirtyCounter())
}

func TestNodeTrackInterpolation(t *testing.T) {
	animation := NewAnimation("Slide", 2)
	track, err := animation.CreateNodeTrack(0)
	require.NoError(t, err)

	first := track.CreateKeyFrame(0)
	first.Scale = NewVector(1, 1, 1)
	last := track.CreateKeyFrame(2)
	last.Translate = NewVector(10, 0, 0)
	last.Scale = NewVector(1, 1, 1)

	mid := track.InterpolatedKeyFrame(1)
	assert.True(t, mid.Translate.Equals(NewVector(5, 0, 0)))

	start := track.InterpolatedKeyFrame(0)
	assert.True(t, start.Translate.Equals(NewVector(0, 0, 0)))

	end := track.InterpolatedKeyFrame(2)
	assert.True(t, end.Translate.Equals(NewVector(10, 0, 0)))
}

func TestSkeletonAnimationPosesBones(t *testing.T) {
	_, skeleton := newSkinnedMesh(t, "Figure")

	instance := NewSkeletonInstance(skeleton)
	states := NewAnimationStateSet()
	instance.initAnimationStates(states)

	state, err := states.State("Run")
	require.NoError(t, err)
	state.SetEnabled(true)

	// A looping state wraps the exact clip length back to the start, so the
	// end pose is only reachable with looping off.
	state.SetLoop(false)
	state.SetTimePosition(1)
	assert.InDelta(t, 1, state.TimePosition(), 1e-9)
	assert.True(t, state.HasEnded())

	instance.applyAnimationStates(states)
	matrices := instance.BoneMatrices(nil)
	require.Len(t, matrices, 2)

	// The arm keyframe at the end of the clip translates by (0, 1, 0) on
	// top of the bind position.
	arm, err := instance.BoneByName("Arm")
	require.NoError(t, err)
	assert.True(t, arm.Node.Position().Equals(NewVector(0, 2, 0)))
}

func TestAnimationStateEndOfClip(t *testing.T) {
	set := NewAnimationStateSet()
	state, err := set.CreateState("Run", 0, 1)
	require.NoError(t, err)

	// Looping wraps the exact clip length back to the start.
	state.SetTimePosition(1)
	assert.InDelta(t, 0, state.TimePosition(), 1e-9)
	assert.False(t, state.HasEnded())

	// Without looping the position clamps and the state ends.
	state.SetLoop(false)
	state.SetTimePosition(2.5)
	assert.InDelta(t, 1, state.TimePosition(), 1e-9)
	assert.True(t, state.HasEnded())
}
