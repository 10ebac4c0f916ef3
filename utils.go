package umbra3d

import (
	"math"
	"strconv"
)

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return math.Pi * degrees / 180
}

// ToDegrees converts radians to degrees.
func ToDegrees(radians float64) float64 {
	return radians / math.Pi * 180
}

func clamp[V float64 | float32 | int](value, lo, hi V) V {
	if value < lo {
		return lo
	} else if value > hi {
		return hi
	}
	return value
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
