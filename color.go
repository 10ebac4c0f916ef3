package umbra3d

import "image/color"

// A Color represents a color with R, G, B, and A components, each expected
// to range from 0 to 1.
type Color struct {
	R, G, B, A float32
}

// NewColor returns a new Color, with the provided R, G, B, and A components
// expected to range from 0 to 1.
func NewColor(r, g, b, a float32) Color {
	return Color{r, g, b, a}
}

// ColorWhite returns an opaque white Color.
func ColorWhite() Color {
	return Color{1, 1, 1, 1}
}

// ColorBlack returns an opaque black Color.
func ColorBlack() Color {
	return Color{0, 0, 0, 1}
}

// Add returns the Color with the other Color's components added to the
// caller's (alpha excluded).
func (c Color) Add(other Color) Color {
	c.R += other.R
	c.G += other.G
	c.B += other.B
	return c
}

// MultiplyScalarRGB returns the Color with its R, G, and B components
// multiplied by the scalar provided.
func (c Color) MultiplyScalarRGB(scalar float32) Color {
	c.R *= scalar
	c.G *= scalar
	c.B *= scalar
	return c
}

// Multiply returns the componentwise product of the calling Color and the
// other Color provided.
func (c Color) Multiply(other Color) Color {
	c.R *= other.R
	c.G *= other.G
	c.B *= other.B
	c.A *= other.A
	return c
}

// Lerp linearly interpolates from the calling Color to the other Color by the
// percentage provided (0-1).
func (c Color) Lerp(other Color, percent float32) Color {
	c.R += (other.R - c.R) * percent
	c.G += (other.G - c.G) * percent
	c.B += (other.B - c.B) * percent
	c.A += (other.A - c.A) * percent
	return c
}

func clampComponent(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamped returns the Color with every component clamped to the 0-1 range.
func (c Color) Clamped() Color {
	c.R = clampComponent(c.R)
	c.G = clampComponent(c.G)
	c.B = clampComponent(c.B)
	c.A = clampComponent(c.A)
	return c
}

// ToNRGBA64 converts the Color into a color.NRGBA64 for use with the image
// and ebiten packages.
func (c Color) ToNRGBA64() color.NRGBA64 {
	c = c.Clamped()
	return color.NRGBA64{
		R: uint16(c.R * 65535),
		G: uint16(c.G * 65535),
		B: uint16(c.B * 65535),
		A: uint16(c.A * 65535),
	}
}
