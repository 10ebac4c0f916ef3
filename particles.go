package umbra3d

import (
	"math/rand"
	"sort"
	"strconv"
)

// NumberRange is a scalar range that random particle parameters are drawn
// from.
type NumberRange struct {
	Min, Max float64
}

// NewNumberRange returns a range fixed at value.
func NewNumberRange(value float64) *NumberRange {
	return &NumberRange{Min: value, Max: value}
}

// Set sets the range's bounds.
func (numberRange *NumberRange) Set(min, max float64) {
	numberRange.Min = min
	numberRange.Max = max
}

// Value returns a random value from within the range.
func (numberRange *NumberRange) Value() float64 {
	return numberRange.Min + (numberRange.Max-numberRange.Min)*rand.Float64()
}

// Clone duplicates the range.
func (numberRange *NumberRange) Clone() *NumberRange {
	clone := *numberRange
	return &clone
}

// VectorRange is a per-axis range that random particle vectors are drawn
// from.
type VectorRange struct {
	// Uniform draws one random number for all three axes instead of one per
	// axis.
	Uniform  bool
	Min, Max Vector
}

// NewVectorRange returns a zero range.
func NewVectorRange() *VectorRange {
	return &VectorRange{}
}

// SetAll fixes every axis of the range at value.
func (vectorRange *VectorRange) SetAll(value float64) {
	vectorRange.Min = NewVector(value, value, value)
	vectorRange.Max = vectorRange.Min
}

// SetAxes fixes the range at the vector provided.
func (vectorRange *VectorRange) SetAxes(x, y, z float64) {
	vectorRange.Min = NewVector(x, y, z)
	vectorRange.Max = vectorRange.Min
}

// SetRanges sets every axis to span min to max.
func (vectorRange *VectorRange) SetRanges(min, max float64) {
	vectorRange.Min = NewVector(min, min, min)
	vectorRange.Max = NewVector(max, max, max)
}

// Value returns a random vector from within the range.
func (vectorRange *VectorRange) Value() Vector {
	if vectorRange.Uniform {
		random := rand.Float64()
		return vectorRange.Min.Add(vectorRange.Max.Sub(vectorRange.Min).Scale(random))
	}
	span := vectorRange.Max.Sub(vectorRange.Min)
	return vectorRange.Min.Add(NewVector(span.X*rand.Float64(), span.Y*rand.Float64(), span.Z*rand.Float64()))
}

// Clone duplicates the range.
func (vectorRange *VectorRange) Clone() *VectorRange {
	clone := *vectorRange
	return &clone
}

// ColorCurvePoint is one keyed color in a ColorCurve.
type ColorCurvePoint struct {
	Color      Color
	Percentage float64
}

// ColorCurve maps a particle's life percentage to a color.
type ColorCurve struct {
	Points []ColorCurvePoint
}

// NewColorCurve creates an empty color curve.
func NewColorCurve() *ColorCurve {
	return &ColorCurve{}
}

// Add keys the color at the life percentage provided (0 to 1).
func (curve *ColorCurve) Add(color Color, percentage float64) {
	curve.Points = append(curve.Points, ColorCurvePoint{Color: color, Percentage: percentage})
	sort.SliceStable(curve.Points, func(i, j int) bool {
		return curve.Points[i].Percentage < curve.Points[j].Percentage
	})
}

// Value returns the curve's color at the life percentage provided, blending
// between the bracketing points.
func (curve *ColorCurve) Value(percentage float64) Color {
	if len(curve.Points) == 0 {
		return ColorWhite()
	}
	if percentage <= curve.Points[0].Percentage {
		return curve.Points[0].Color
	}
	for i := 0; i < len(curve.Points)-1; i++ {
		from, to := curve.Points[i], curve.Points[i+1]
		if percentage >= from.Percentage && percentage <= to.Percentage {
			span := to.Percentage - from.Percentage
			if span <= 0 {
				return to.Color
			}
			return from.Color.Lerp(to.Color, float32((percentage-from.Percentage)/span))
		}
	}
	return curve.Points[len(curve.Points)-1].Color
}

// Clone duplicates the curve.
func (curve *ColorCurve) Clone() *ColorCurve {
	clone := &ColorCurve{Points: make([]ColorCurvePoint, len(curve.Points))}
	copy(clone.Points, curve.Points)
	return clone
}

// Particle is one live particle in a ParticleSystem.
type Particle struct {
	system *ParticleSystem

	billboard *Billboard

	Velocity     Vector
	Acceleration Vector
	Growth       float64
	Spin         float64

	Life     float64
	Lifetime float64
}

// LifePercentage returns how far through its lifetime the particle is, 0
// to 1.
func (particle *Particle) LifePercentage() float64 {
	if particle.Lifetime <= 0 {
		return 1
	}
	return clamp(particle.Life/particle.Lifetime, 0, 1)
}

func (particle *Particle) update(dt float64) {
	particle.Life += dt

	particle.Velocity = particle.Velocity.Add(particle.Acceleration.Scale(dt))

	if friction := particle.system.Settings.Friction; friction > 0 {
		speed := particle.Velocity.Magnitude()
		if speed <= friction*dt {
			particle.Velocity = Vector{}
		} else {
			particle.Velocity = particle.Velocity.Scale((speed - friction*dt) / speed)
		}
	}

	particle.billboard.Position = particle.billboard.Position.Add(particle.Velocity.Scale(dt))

	if particle.Growth != 0 {
		width := particle.billboard.width + particle.Growth*dt
		height := particle.billboard.height + particle.Growth*dt
		if width <= 0 || height <= 0 {
			particle.Life = particle.Lifetime
		} else {
			particle.billboard.SetDimensions(width, height)
		}
	}

	particle.billboard.Rotation += particle.Spin * dt

	if move := particle.system.Settings.MovementFunction; move != nil {
		move(particle)
	}

	if curve := particle.system.Settings.ColorCurve; curve != nil && len(curve.Points) > 0 {
		particle.billboard.Color = curve.Value(particle.LifePercentage())
	}

	if particle.Life >= particle.Lifetime {
		particle.system.remove(particle)
	}
}

// ParticleSystemSettings drives spawning and per-particle behavior.
type ParticleSystemSettings struct {
	// SpawnRate is the time between spawns, in seconds.
	SpawnRate float64
	// SpawnCount is how many particles spawn at once.
	SpawnCount int
	Lifetime   *NumberRange

	Velocity     *VectorRange
	Acceleration *VectorRange
	SpawnOffset  *VectorRange
	// Size spans the edge length particles start at.
	Size *NumberRange
	// Growth is added to both particle dimensions per second.
	Growth *NumberRange
	// Spin is the particle roll speed range, radians per second.
	Spin     *NumberRange
	Friction float64

	// MovementFunction is called for each particle every update, after the
	// standard movement is applied.
	MovementFunction func(particle *Particle)

	ColorCurve *ColorCurve
}

// NewParticleSystemSettings returns settings that spawn one short-lived,
// stationary particle per second.
func NewParticleSystemSettings() *ParticleSystemSettings {
	return &ParticleSystemSettings{
		SpawnRate:  1,
		SpawnCount: 1,
		Lifetime:   NewNumberRange(1),

		Velocity:     NewVectorRange(),
		Acceleration: NewVectorRange(),
		SpawnOffset:  NewVectorRange(),
		Size:         NewNumberRange(1),
		Growth:       NewNumberRange(0),
		Spin:         NewNumberRange(0),

		ColorCurve: NewColorCurve(),
	}
}

// Clone duplicates the settings.
func (settings *ParticleSystemSettings) Clone() *ParticleSystemSettings {
	return &ParticleSystemSettings{
		SpawnRate:  settings.SpawnRate,
		SpawnCount: settings.SpawnCount,
		Lifetime:   settings.Lifetime.Clone(),

		Velocity:     settings.Velocity.Clone(),
		Acceleration: settings.Acceleration.Clone(),
		SpawnOffset:  settings.SpawnOffset.Clone(),
		Size:         settings.Size.Clone(),
		Growth:       settings.Growth.Clone(),
		Spin:         settings.Spin.Clone(),
		Friction:     settings.Friction,

		MovementFunction: settings.MovementFunction,

		ColorCurve: settings.ColorCurve.Clone(),
	}
}

// ParticleSystem spawns, ages, and recycles particles, rendering them
// through an internal BillboardSet. Update must be called once per tick.
type ParticleSystem struct {
	MovableBase

	Settings *ParticleSystemSettings

	billboards *BillboardSet

	living   []*Particle
	dead     []*Particle
	toRemove []*Particle

	spawnTimer float64
	emitting   bool
}

var _ MovableObject = (*ParticleSystem)(nil)

// NewParticleSystem creates an empty, emitting system with room for quota
// particles.
func NewParticleSystem(name string, quota int) *ParticleSystem {
	system := &ParticleSystem{
		Settings:   NewParticleSystemSettings(),
		billboards: NewBillboardSet(name+"/Billboards", quota),
		emitting:   true,
	}
	// Particles move in world space; the set must not reapply the node
	// transform.
	system.billboards.SetBillboardsInWorldSpace(true)
	system.initMovable(system, name)
	system.castShadows = false
	return system
}

// MovableType identifies the object as a particle system.
func (system *ParticleSystem) MovableType() string { return "ParticleSystem" }

// TypeFlags returns the query type mask bit for effects.
func (system *ParticleSystem) TypeFlags() uint32 { return TypeMaskParticleSystem }

// SetMaterialName sets the material the particles render with.
func (system *ParticleSystem) SetMaterialName(name string) {
	system.billboards.SetMaterialName(name)
}

// SetEmitting starts or stops spawning; live particles still age out.
func (system *ParticleSystem) SetEmitting(emitting bool) { system.emitting = emitting }

// IsEmitting reports whether the system spawns new particles.
func (system *ParticleSystem) IsEmitting() bool { return system.emitting }

// ParticleCount returns the number of live particles.
func (system *ParticleSystem) ParticleCount() int { return len(system.living) }

// Quota returns the maximum number of live particles.
func (system *ParticleSystem) Quota() int { return system.billboards.poolSize }

// BillboardSet exposes the set the particles render through, for facing and
// texture configuration.
func (system *ParticleSystem) BillboardSet() *BillboardSet { return system.billboards }

func (system *ParticleSystem) setCreator(creator *SceneManager) {
	system.MovableBase.setCreator(creator)
	system.billboards.setCreator(creator)
}

func (system *ParticleSystem) notifyAttached(node *SceneNode, tagPoint bool) {
	system.MovableBase.notifyAttached(node, tagPoint)
	system.billboards.notifyAttached(node, tagPoint)
}

// Update ages every particle and spawns new ones. dt is in seconds.
func (system *ParticleSystem) Update(dt float64) {
	if system.emitting {
		system.spawnTimer -= dt
		for system.spawnTimer <= 0 {
			for i := 0; i < system.Settings.SpawnCount; i++ {
				system.spawn()
			}
			system.spawnTimer += system.Settings.SpawnRate
			if system.Settings.SpawnRate <= 0 {
				system.spawnTimer = 0
				break
			}
		}
	}

	for _, particle := range system.living {
		particle.update(dt)
	}

	for _, particle := range system.toRemove {
		for i, living := range system.living {
			if living == particle {
				system.living = append(system.living[:i], system.living[i+1:]...)
				system.dead = append(system.dead, particle)
				system.billboards.RemoveBillboard(particle.billboard)
				break
			}
		}
	}
	system.toRemove = system.toRemove[:0]

	system.billboards.NotifyBillboardsChanged()
}

// Clear removes every live particle immediately.
func (system *ParticleSystem) Clear() {
	system.dead = append(system.dead, system.living...)
	system.living = system.living[:0]
	system.toRemove = system.toRemove[:0]
	system.billboards.Clear()
}

// spawn brings one particle to life, recycling a dead one when possible.
// The spawn position is the system's node, offset by the settings' range.
func (system *ParticleSystem) spawn() {
	origin := Vector{}
	if node := system.ParentNode(); node != nil {
		origin = node.DerivedPosition()
	}
	position := origin.Add(system.Settings.SpawnOffset.Value())

	billboard := system.billboards.CreateBillboard(position)
	if billboard == nil {
		return
	}

	var particle *Particle
	if len(system.dead) > 0 {
		particle = system.dead[len(system.dead)-1]
		system.dead = system.dead[:len(system.dead)-1]
	} else {
		particle = &Particle{system: system}
	}
	particle.billboard = billboard

	size := system.Settings.Size.Value()
	billboard.SetDimensions(size, size)
	billboard.Rotation = 0
	billboard.Color = ColorWhite()

	particle.Life = 0
	particle.Lifetime = system.Settings.Lifetime.Value()
	particle.Velocity = system.Settings.Velocity.Value()
	particle.Acceleration = system.Settings.Acceleration.Value()
	particle.Growth = system.Settings.Growth.Value()
	particle.Spin = system.Settings.Spin.Value()

	system.living = append(system.living, particle)
}

func (system *ParticleSystem) remove(particle *Particle) {
	system.toRemove = append(system.toRemove, particle)
}

// BoundingBox returns the bounds of the live particles, node-relative.
func (system *ParticleSystem) BoundingBox() AxisAlignedBox {
	world := system.billboards.BoundingBox()
	if world.IsNull() {
		return world
	}
	if node := system.ParentNode(); node != nil {
		return world.Transform(node.FullTransform().Inverted())
	}
	return world
}

// BoundingRadius returns the bounding radius of the live particles.
func (system *ParticleSystem) BoundingRadius() float64 {
	return system.BoundingBox().Radius()
}

// NotifyCamera forwards the camera to the billboard set for facing.
func (system *ParticleSystem) NotifyCamera(camera *Camera) {
	system.MovableBase.NotifyCamera(camera)
	system.billboards.NotifyCamera(camera)
}

// UpdateRenderQueue queues the live particles.
func (system *ParticleSystem) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {
	if len(system.living) == 0 {
		return
	}
	queue.AddRenderable(system.billboards, system.RenderQueueGroup(), system.RenderQueuePriority())
}

// VisitRenderables visits the billboard set.
func (system *ParticleSystem) VisitRenderables(visitor func(Renderable)) {
	visitor(system.billboards)
}

// Clone duplicates the system's settings and quota; live particles are not
// copied.
func (system *ParticleSystem) Clone(name string) *ParticleSystem {
	clone := NewParticleSystem(name, system.billboards.poolSize)
	clone.Settings = system.Settings.Clone()
	clone.emitting = system.emitting
	clone.billboards.SetMaterialName(system.billboards.MaterialName())
	clone.billboards.SetBillboardType(system.billboards.BillboardType())
	if system.creator != nil {
		clone.setCreator(system.creator)
	}
	return clone
}

type particleSystemFactory struct{}

func (particleSystemFactory) Type() string { return "ParticleSystem" }

func (particleSystemFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	quota := 100
	if value, ok := params["quota"]; ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, wrapError(ErrInvalidArgument, err, "bad quota %q for particle system %q", value, name)
		}
		quota = parsed
	}
	system := NewParticleSystem(name, quota)
	system.setCreator(creator)
	return system, nil
}
