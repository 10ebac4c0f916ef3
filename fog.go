package umbra3d

import "math"

// FogMode selects how fog density grows with distance from the camera.
type FogMode int

const (
	FogNone   FogMode = iota
	FogExp            // Density grows exponentially with distance
	FogExp2           // Density grows exponentially with squared distance
	FogLinear         // Density ramps linearly between a start and end distance
)

// FogSettings is the scene-wide fog state: the blend color plus the
// parameters of whichever mode is active.
type FogSettings struct {
	Mode    FogMode
	Color   Color
	Density float64 // Exponential modes
	Start   float64 // Linear mode, world units from the camera
	End     float64 // Linear mode, world units from the camera
}

// FactorAt returns how much fog covers a point at the camera distance
// given: 0 is unfogged, 1 is fully fog colored.
func (fog FogSettings) FactorAt(distance float64) float64 {
	switch fog.Mode {
	case FogExp:
		return 1 - math.Exp(-fog.Density*distance)
	case FogExp2:
		d := fog.Density * distance
		return 1 - math.Exp(-d*d)
	case FogLinear:
		if fog.End <= fog.Start {
			return 0
		}
		return clamp((distance-fog.Start)/(fog.End-fog.Start), 0, 1)
	}
	return 0
}

// SetFog sets the scene-wide fog. FogNone disables it; density applies to
// the exponential modes and start/end to linear fog.
func (manager *SceneManager) SetFog(mode FogMode, color Color, density, start, end float64) {
	manager.fog = FogSettings{Mode: mode, Color: color, Density: density, Start: start, End: end}
}

// Fog returns the scene-wide fog settings.
func (manager *SceneManager) Fog() FogSettings {
	return manager.fog
}
