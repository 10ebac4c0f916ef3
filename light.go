package umbra3d

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// LightType distinguishes the supported light sources.
type LightType int

const (
	LightPoint       LightType = iota // Radiates equally in all directions from a position
	LightDirectional                  // Parallel rays from an infinitely distant source
	LightSpot                         // A cone of light from a position along a direction
)

func (lightType LightType) String() string {
	switch lightType {
	case LightPoint:
		return "point"
	case LightDirectional:
		return "directional"
	case LightSpot:
		return "spot"
	}
	return "unknown"
}

// Light is a light source attached to the scene graph. Its effective
// position and direction derive from the node it is attached to; the local
// position and direction act as offsets within that node's space.
type Light struct {
	MovableBase

	lightType LightType

	diffuse  Color
	specular Color

	position  Vector
	direction Vector

	// Attenuation: lighting is scaled by 1 / (c + l*d + q*d*d) and cut off
	// entirely beyond range.
	attenuationRange     float64
	attenuationConstant  float64
	attenuationLinear    float64
	attenuationQuadratic float64

	spotInner   float64 // Full inner cone angle, radians
	spotOuter   float64 // Full outer cone angle, radians
	spotFalloff float64

	powerScale float64

	derivedPosition  Vector
	derivedDirection Vector
	derivedDirty     bool

	tempSquaredDist float64
}

var _ MovableObject = (*Light)(nil)

// NewLight creates a point light with white diffuse and specular color and a
// generous default range.
func NewLight(name string) *Light {
	light := &Light{
		lightType:           LightPoint,
		diffuse:             ColorWhite(),
		specular:            ColorWhite(),
		direction:           vectorUnitZ,
		attenuationRange:    100000,
		attenuationConstant: 1,
		spotInner:           degToRad(30),
		spotOuter:           degToRad(40),
		spotFalloff:         1,
		powerScale:          1,
		derivedDirty:        true,
	}
	light.initMovable(light, name)
	return light
}

// MovableType identifies the object as a light to factories and queries.
func (light *Light) MovableType() string { return "Light" }

// TypeFlags returns the query type mask bit for lights.
func (light *Light) TypeFlags() uint32 { return TypeMaskLight }

// Type returns the light's LightType.
func (light *Light) Type() LightType { return light.lightType }

// SetType changes the light's LightType.
func (light *Light) SetType(lightType LightType) {
	light.lightType = lightType
}

// Diffuse returns the light's diffuse color.
func (light *Light) Diffuse() Color { return light.diffuse }

// SetDiffuse sets the light's diffuse color.
func (light *Light) SetDiffuse(color Color) { light.diffuse = color }

// Specular returns the light's specular color.
func (light *Light) Specular() Color { return light.specular }

// SetSpecular sets the light's specular color.
func (light *Light) SetSpecular(color Color) { light.specular = color }

// Position returns the light's position relative to its parent node.
func (light *Light) Position() Vector { return light.position }

// SetPosition sets the light's position relative to its parent node.
func (light *Light) SetPosition(position Vector) {
	light.position = position
	light.derivedDirty = true
}

// Direction returns the light's direction relative to its parent node.
func (light *Light) Direction() Vector { return light.direction }

// SetDirection sets the light's direction relative to its parent node. The
// vector is normalized.
func (light *Light) SetDirection(direction Vector) {
	light.direction = direction.Unit()
	light.derivedDirty = true
}

// SetAttenuation sets the light's range and distance falloff coefficients.
func (light *Light) SetAttenuation(rng, constant, linear, quadratic float64) {
	light.attenuationRange = rng
	light.attenuationConstant = constant
	light.attenuationLinear = linear
	light.attenuationQuadratic = quadratic
}

// AttenuationRange returns the distance beyond which the light has no effect.
func (light *Light) AttenuationRange() float64 { return light.attenuationRange }

// AttenuationConstant returns the constant attenuation coefficient.
func (light *Light) AttenuationConstant() float64 { return light.attenuationConstant }

// AttenuationLinear returns the linear attenuation coefficient.
func (light *Light) AttenuationLinear() float64 { return light.attenuationLinear }

// AttenuationQuadratic returns the quadratic attenuation coefficient.
func (light *Light) AttenuationQuadratic() float64 { return light.attenuationQuadratic }

// SetSpotRange sets the spot light's full inner and outer cone angles, in
// radians, and the falloff exponent between them.
func (light *Light) SetSpotRange(inner, outer, falloff float64) {
	light.spotInner = inner
	light.spotOuter = outer
	light.spotFalloff = falloff
}

// SpotInnerAngle returns the spot light's full inner cone angle in radians.
func (light *Light) SpotInnerAngle() float64 { return light.spotInner }

// SpotOuterAngle returns the spot light's full outer cone angle in radians.
func (light *Light) SpotOuterAngle() float64 { return light.spotOuter }

// SpotFalloff returns the spot light's falloff exponent.
func (light *Light) SpotFalloff() float64 { return light.spotFalloff }

// PowerScale returns the scale applied to the light's color when shading.
func (light *Light) PowerScale() float64 { return light.powerScale }

// SetPowerScale sets the scale applied to the light's color when shading,
// for HDR-style intensity control.
func (light *Light) SetPowerScale(scale float64) { light.powerScale = scale }

// DerivedPosition returns the light's position in world space.
func (light *Light) DerivedPosition() Vector {
	light.updateDerived()
	return light.derivedPosition
}

// DerivedDirection returns the light's direction in world space.
func (light *Light) DerivedDirection() Vector {
	light.updateDerived()
	return light.derivedDirection
}

func (light *Light) updateDerived() {
	if !light.derivedDirty {
		return
	}
	if node := light.ParentNode(); node != nil {
		light.derivedPosition = node.DerivedOrientation().MultVec(light.position.MultComp(node.DerivedScale())).Add(node.DerivedPosition())
		light.derivedDirection = node.DerivedOrientation().MultVec(light.direction).Unit()
	} else {
		light.derivedPosition = light.position
		light.derivedDirection = light.direction
	}
	light.derivedDirty = false
}

func (light *Light) notifyMoved() {
	light.derivedDirty = true
	light.MovableBase.notifyMoved()
}

// BoundingBox returns a local box spanning the light's attenuation range.
// Directional lights are unbounded and return an infinite box.
func (light *Light) BoundingBox() AxisAlignedBox {
	if light.lightType == LightDirectional {
		return NewBoxInfinite()
	}
	r := light.attenuationRange
	return NewBox(light.position.Sub(NewVector(r, r, r)), light.position.Add(NewVector(r, r, r)))
}

// BoundingRadius returns the light's local bounding radius.
func (light *Light) BoundingRadius() float64 {
	if light.lightType == LightDirectional {
		return math.Inf(1)
	}
	return light.attenuationRange
}

// InfluenceSphere returns the world-space sphere within which the light can
// affect geometry. Meaningless for directional lights.
func (light *Light) InfluenceSphere() Sphere {
	return Sphere{Center: light.DerivedPosition(), Radius: light.attenuationRange}
}

// AffectsBox reports whether the light can influence geometry inside the
// world-space box provided.
func (light *Light) AffectsBox(box AxisAlignedBox) bool {
	if light.lightType == LightDirectional {
		return true
	}
	return light.InfluenceSphere().IntersectsBox(box)
}

// UpdateRenderQueue is a no-op; lights contribute to shading, not geometry.
func (light *Light) UpdateRenderQueue(queue *RenderQueue, camera *Camera) {}

// VisitRenderables is a no-op; lights own no renderables.
func (light *Light) VisitRenderables(visitor func(Renderable)) {}

// tempSquaredDist holds the camera distance computed during light sorting
// for the frame, so sorting need not recompute it.
func (light *Light) setTempSquaredDist(reference Vector) {
	if light.lightType == LightDirectional {
		light.tempSquaredDist = 0
		return
	}
	light.tempSquaredDist = light.DerivedPosition().DistanceSquared(reference)
}

// LightList is a set of lights ordered for shading: directional lights
// first, then the rest by increasing distance from a reference point.
type LightList []*Light

// sortForPoint orders the list for shading geometry near the point provided.
// The sort is stable so equally distant lights keep discovery order.
func (list LightList) sortForPoint(point Vector) {
	for _, light := range list {
		light.setTempSquaredDist(point)
	}
	sort.SliceStable(list, func(i, j int) bool {
		di, dj := list[i], list[j]
		if (di.lightType == LightDirectional) != (dj.lightType == LightDirectional) {
			return di.lightType == LightDirectional
		}
		return di.tempSquaredDist < dj.tempSquaredDist
	})
}

// lightFactory creates Lights for a SceneManager. The creation parameters
// mirror the Light setters: "type" ("point", "directional", "spot"),
// "diffuse" and "specular" ("r g b"), "position" and "direction" ("x y z"),
// "range", "attenuation_constant", "attenuation_linear",
// "attenuation_quadratic", "spot_inner" and "spot_outer" (degrees),
// "spot_falloff", "power_scale" and "cast_shadows".
type lightFactory struct{}

func (lightFactory) Type() string { return "Light" }

// parseParamFloats reads a space-separated list of want floats from the
// parameter named key. The second return is false when the key is absent.
func parseParamFloats(params NameValueMap, key string, want int) ([]float64, bool, error) {
	raw, ok := params[key]
	if !ok {
		return nil, false, nil
	}
	fields := strings.Fields(raw)
	if len(fields) != want {
		return nil, false, newError(ErrInvalidArgument, "parameter %q wants %d values, got %q", key, want, raw)
	}
	out := make([]float64, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, false, wrapError(ErrInvalidArgument, err, "invalid value in parameter %q", key)
		}
		out[i] = value
	}
	return out, true, nil
}

func parseParamFloat(params NameValueMap, key string, fallback float64) (float64, error) {
	values, ok, err := parseParamFloats(params, key, 1)
	if err != nil || !ok {
		return fallback, err
	}
	return values[0], nil
}

func (lightFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	light := NewLight(name)
	light.setCreator(creator)
	if t, ok := params["type"]; ok {
		switch t {
		case "point":
			light.SetType(LightPoint)
		case "directional":
			light.SetType(LightDirectional)
		case "spot":
			light.SetType(LightSpot)
		default:
			return nil, newError(ErrInvalidArgument, "unknown light type %q", t)
		}
	}

	if values, ok, err := parseParamFloats(params, "diffuse", 3); err != nil {
		return nil, err
	} else if ok {
		light.SetDiffuse(NewColor(float32(values[0]), float32(values[1]), float32(values[2]), 1))
	}
	if values, ok, err := parseParamFloats(params, "specular", 3); err != nil {
		return nil, err
	} else if ok {
		light.SetSpecular(NewColor(float32(values[0]), float32(values[1]), float32(values[2]), 1))
	}
	if values, ok, err := parseParamFloats(params, "position", 3); err != nil {
		return nil, err
	} else if ok {
		light.SetPosition(NewVector(values[0], values[1], values[2]))
	}
	if values, ok, err := parseParamFloats(params, "direction", 3); err != nil {
		return nil, err
	} else if ok {
		light.SetDirection(NewVector(values[0], values[1], values[2]))
	}

	rng, err := parseParamFloat(params, "range", light.attenuationRange)
	if err != nil {
		return nil, err
	}
	constant, err := parseParamFloat(params, "attenuation_constant", light.attenuationConstant)
	if err != nil {
		return nil, err
	}
	linear, err := parseParamFloat(params, "attenuation_linear", light.attenuationLinear)
	if err != nil {
		return nil, err
	}
	quadratic, err := parseParamFloat(params, "attenuation_quadratic", light.attenuationQuadratic)
	if err != nil {
		return nil, err
	}
	light.SetAttenuation(rng, constant, linear, quadratic)

	inner, err := parseParamFloat(params, "spot_inner", radToDeg(light.spotInner))
	if err != nil {
		return nil, err
	}
	outer, err := parseParamFloat(params, "spot_outer", radToDeg(light.spotOuter))
	if err != nil {
		return nil, err
	}
	falloff, err := parseParamFloat(params, "spot_falloff", light.spotFalloff)
	if err != nil {
		return nil, err
	}
	light.SetSpotRange(degToRad(inner), degToRad(outer), falloff)

	scale, err := parseParamFloat(params, "power_scale", light.powerScale)
	if err != nil {
		return nil, err
	}
	light.SetPowerScale(scale)

	if casts, ok := params["cast_shadows"]; ok {
		enabled, err := strconv.ParseBool(casts)
		if err != nil {
			return nil, wrapError(ErrInvalidArgument, err, "invalid cast_shadows value %q", casts)
		}
		light.SetCastShadows(enabled)
	}
	return light, nil
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
