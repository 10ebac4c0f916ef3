package umbra3d

import (
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// TextAlign selects horizontal alignment of text lines in a TextTexture.
type TextAlign int

const (
	TextAlignLeft   TextAlign = iota // Lines hug the left edge of the texture
	TextAlignCenter                  // Lines are centered horizontally
	TextAlignRight                   // Lines hug the right edge of the texture
)

// TextTexture renders strings into a texture for use as a material's
// texture unit. Changing the text or its styling redraws the texture.
type TextTexture struct {
	texture *ebiten.Image

	face      font.Face
	alignment TextAlign
	fgColor   Color
	bgColor   Color
	fillBG    bool

	setText    string
	parsedText []string

	lineHeightMultiplier float64
}

// NewTextTexture creates a text rendering surface of the pixel dimensions
// given, drawing white text with a transparent background in a basic
// bitmap font.
func NewTextTexture(width, height int) *TextTexture {
	return &TextTexture{
		texture:              ebiten.NewImage(width, height),
		face:                 basicfont.Face7x13,
		fgColor:              ColorWhite(),
		bgColor:              NewColor(0, 0, 0, 1),
		lineHeightMultiplier: 1,
	}
}

// Texture returns the backing texture holding the rendered text.
func (tex *TextTexture) Texture() *ebiten.Image { return tex.texture }

// Text returns the currently displayed string.
func (tex *TextTexture) Text() string { return tex.setText }

// SetFont replaces the font face and redraws.
func (tex *TextTexture) SetFont(face font.Face) *TextTexture {
	if tex.face != face {
		tex.face = face
		tex.reparse()
	}
	return tex
}

// SetAlignment sets the horizontal alignment and redraws.
func (tex *TextTexture) SetAlignment(alignment TextAlign) *TextTexture {
	if tex.alignment != alignment {
		tex.alignment = alignment
		tex.redraw()
	}
	return tex
}

// SetColors sets the foreground color, plus whether and how the background
// fills, and redraws.
func (tex *TextTexture) SetColors(foreground, background Color, fillBackground bool) *TextTexture {
	tex.fgColor = foreground
	tex.bgColor = background
	tex.fillBG = fillBackground
	tex.redraw()
	return tex
}

// SetLineHeight scales the spacing between lines and redraws.
func (tex *TextTexture) SetLineHeight(multiplier float64) *TextTexture {
	if multiplier > 0 && tex.lineHeightMultiplier != multiplier {
		tex.lineHeightMultiplier = multiplier
		tex.redraw()
	}
	return tex
}

// SetText replaces the displayed string, wrapping words that would run past
// the texture's right edge, and redraws.
func (tex *TextTexture) SetText(value string) *TextTexture {
	if tex.setText != value {
		tex.setText = value
		tex.reparse()
	}
	return tex
}

// CreateMaterial builds an unlit material displaying the text texture.
func (tex *TextTexture) CreateMaterial(name string) *Material {
	material := NewMaterial(name)
	pass := material.CreateTechnique().CreatePass()
	pass.Lighting = false
	pass.SceneBlend = SceneBlendAlpha
	pass.AddTextureUnit(name, tex.texture)
	return material
}

// reparse splits the text into lines that fit the texture width, then
// redraws.
func (tex *TextTexture) reparse() {
	textureWidth := tex.texture.Bounds().Dx()

	// Words too close to the right edge wrap early.
	safetyMargin := textureWidth / 10

	var parsed []string
	for _, line := range strings.Split(tex.setText, "\n") {
		words := strings.SplitAfter(line, " ")
		runningWidth := 0
		wordIndex := 0
		for i, word := range words {
			wordWidth := text.BoundString(tex.face, word).Dx()
			runningWidth += wordWidth
			if runningWidth >= textureWidth-safetyMargin && i > wordIndex {
				parsed = append(parsed, strings.TrimRight(strings.Join(words[wordIndex:i], ""), " "))
				runningWidth = wordWidth
				wordIndex = i
			}
		}
		parsed = append(parsed, strings.TrimRight(strings.Join(words[wordIndex:], ""), " "))
	}
	tex.parsedText = parsed
	tex.redraw()
}

// redraw repaints the backing texture from the parsed lines.
func (tex *TextTexture) redraw() {
	if tex.texture == nil {
		return
	}

	if tex.fillBG {
		tex.texture.Fill(tex.bgColor.ToNRGBA64())
	} else {
		tex.texture.Clear()
	}

	lineMargin := 2
	lineHeight := int(float64(tex.face.Metrics().Height.Ceil()+lineMargin) * tex.lineHeightMultiplier)
	ascent := tex.face.Metrics().Ascent.Ceil()
	textureWidth := tex.texture.Bounds().Dx()

	for lineIndex, line := range tex.parsedText {
		measure := text.BoundString(tex.face, line)

		x := -measure.Min.X
		switch tex.alignment {
		case TextAlignCenter:
			x = textureWidth/2 - measure.Dx()/2
		case TextAlignRight:
			x = textureWidth - measure.Dx()
		}

		baseline := ascent
		if -measure.Min.Y > baseline {
			baseline = -measure.Min.Y
		}
		y := baseline + lineIndex*lineHeight

		text.Draw(tex.texture, line, tex.face, x, y, tex.fgColor.ToNRGBA64())
	}
}

// Dispose releases the backing texture. The TextTexture cannot draw after
// this.
func (tex *TextTexture) Dispose() {
	if tex.texture != nil {
		tex.texture.Dispose()
		tex.texture = nil
	}
}
