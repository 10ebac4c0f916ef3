package umbra3d

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

// WireframeRenderSystem draws the render queue's output as projected
// wireframe lines into the camera's color texture. There is no depth
// testing or shading; it exists to see what the culling and queueing
// passes actually produced.
type WireframeRenderSystem struct {
	// LineColor is used for renderables whose pass has no diffuse color.
	LineColor Color

	// ClearColor fills the camera's color texture at the start of each frame.
	ClearColor Color

	// UsePassColor draws each renderable with its pass's diffuse color
	// instead of LineColor.
	UsePassColor bool

	drawnLines       int
	drawnRenderables int

	transforms []Matrix4

	textTexture *ebiten.Image
}

var _ RenderSystem = (*WireframeRenderSystem)(nil)

// NewWireframeRenderSystem creates a WireframeRenderSystem with green lines
// on a near-black background.
func NewWireframeRenderSystem() *WireframeRenderSystem {
	return &WireframeRenderSystem{
		LineColor:  NewColor(0, 1, 0, 1),
		ClearColor: NewColor(0.05, 0.05, 0.05, 1),
	}
}

// DrawnLines returns how many lines the last frame drew.
func (system *WireframeRenderSystem) DrawnLines() int { return system.drawnLines }

// DrawnRenderables returns how many renderables the last frame drew.
func (system *WireframeRenderSystem) DrawnRenderables() int { return system.drawnRenderables }

// BeginFrame clears the camera's color texture and resets the frame's
// counters.
func (system *WireframeRenderSystem) BeginFrame(camera *Camera) {
	system.drawnLines = 0
	system.drawnRenderables = 0
	if screen := camera.ColorTexture(); screen != nil {
		screen.Fill(system.ClearColor.ToNRGBA64())
	}
}

// Render draws one renderable's edges. Only list topologies are handled;
// strips and fans are skipped.
func (system *WireframeRenderSystem) Render(renderable Renderable, pass *Pass, camera *Camera) {
	screen := camera.ColorTexture()
	if screen == nil {
		return
	}

	var op RenderOperation
	renderable.RenderOperation(&op)
	if op.VertexData == nil {
		return
	}

	lineColor := system.LineColor
	if system.UsePassColor && pass != nil {
		lineColor = pass.Diffuse
	}
	c := lineColor.ToNRGBA64()

	width, height := camera.Size()
	viewProj := camera.ViewProjectionMatrix()

	system.transforms = renderable.WorldTransforms(system.transforms[:0])
	if len(system.transforms) == 0 {
		system.transforms = append(system.transforms, NewMatrix4())
	}

	drew := false
	for _, world := range system.transforms {

		worldViewProj := world.Mult(viewProj)

		// project maps a model-space vertex to pixels, reporting false for
		// vertices behind the near plane.
		project := func(v Vector) (float64, float64, bool) {
			clip := worldViewProj.MultVecW(v)
			if clip.W <= 0 {
				return 0, 0, false
			}
			nx := clip.X / clip.W
			ny := clip.Y / clip.W
			return (nx + 1) / 2 * float64(width), (1 - ny) / 2 * float64(height), true
		}

		vertexAt := func(i int) (Vector, bool) {
			if op.UseIndexes {
				i = int(op.IndexData.Buffer.Index(op.IndexData.Start + i))
			}
			position, err := op.VertexData.PositionAt(i)
			if err != nil {
				return Vector{}, false
			}
			return position, true
		}

		count := op.VertexData.Count
		if op.UseIndexes {
			count = op.IndexData.Count
		}

		drawLine := func(a, b Vector) {
			x0, y0, visible0 := project(a)
			x1, y1, visible1 := project(b)
			if !visible0 || !visible1 {
				return
			}
			ebitenutil.DrawLine(screen, x0, y0, x1, y1, c)
			system.drawnLines++
			drew = true
		}

		switch op.Topology.Base() {
		case TopologyTriangleList:
			for i := 0; i+2 < count; i += 3 {
				v0, ok0 := vertexAt(i)
				v1, ok1 := vertexAt(i + 1)
				v2, ok2 := vertexAt(i + 2)
				if !ok0 || !ok1 || !ok2 {
					return
				}
				drawLine(v0, v1)
				drawLine(v1, v2)
				drawLine(v2, v0)
			}
		case TopologyLineList:
			for i := 0; i+1 < count; i += 2 {
				v0, ok0 := vertexAt(i)
				v1, ok1 := vertexAt(i + 1)
				if !ok0 || !ok1 {
					return
				}
				drawLine(v0, v1)
			}
		case TopologyLineStrip:
			for i := 0; i+1 < count; i++ {
				v0, ok0 := vertexAt(i)
				v1, ok1 := vertexAt(i + 1)
				if !ok0 || !ok1 {
					return
				}
				drawLine(v0, v1)
			}
		case TopologyPointList:
			for i := 0; i < count; i++ {
				v, ok := vertexAt(i)
				if !ok {
					return
				}
				if x, y, visible := project(v); visible {
					ebitenutil.DrawCircle(screen, x, y, 2, c)
					drew = true
				}
			}
		}
	}

	if drew {
		system.drawnRenderables++
	}
}

// EndFrame is a no-op for the wireframe system.
func (system *WireframeRenderSystem) EndFrame(camera *Camera) {}

// DrawBox draws the world-space box's edges into the camera's color texture.
func (system *WireframeRenderSystem) DrawBox(camera *Camera, box AxisAlignedBox, lineColor Color) {
	screen := camera.ColorTexture()
	if screen == nil || box.Extent != ExtentFinite {
		return
	}
	c := lineColor.ToNRGBA64()
	width, height := camera.Size()
	viewProj := camera.ViewProjectionMatrix()

	corners := box.Corners()
	projected := make([][2]float64, len(corners))
	visible := make([]bool, len(corners))
	for i, corner := range corners {
		clip := viewProj.MultVecW(corner)
		if clip.W <= 0 {
			continue
		}
		projected[i] = [2]float64{
			(clip.X/clip.W + 1) / 2 * float64(width),
			(1 - clip.Y/clip.W) / 2 * float64(height),
		}
		visible[i] = true
	}

	for _, edge := range boxEdges {
		a, b := edge[0], edge[1]
		if visible[a] && visible[b] {
			ebitenutil.DrawLine(screen, projected[a][0], projected[a][1], projected[b][0], projected[b][1], c)
		}
	}
}

// boxEdges indexes pairs of AxisAlignedBox.Corners forming the box's twelve
// edges.
var boxEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// DrawText draws debug text at the pixel position given, with a black
// outline for readability.
func (system *WireframeRenderSystem) DrawText(screen *ebiten.Image, textString string, posX, posY float64, textColor Color) {

	size := text.BoundString(basicfont.Face7x13, textString).Size()

	if system.textTexture == nil || size.X > system.textTexture.Bounds().Dx() || size.Y+13 > system.textTexture.Bounds().Dy() {
		system.textTexture = ebiten.NewImage(size.X, size.Y+13)
	}

	system.textTexture.Clear()

	opt := &ebiten.DrawImageOptions{}
	opt.GeoM.Translate(0, 13)
	text.DrawWithOptions(system.textTexture, textString, basicfont.Face7x13, opt)

	outline := &ebiten.DrawImageOptions{}
	outline.ColorScale.Scale(0, 0, 0, 1)
	for y := -1; y < 2; y++ {
		for x := -1; x < 2; x++ {
			if x == 0 && y == 0 {
				continue
			}
			outline.GeoM.Reset()
			outline.GeoM.Translate(posX+float64(x), posY+float64(y))
			screen.DrawImage(system.textTexture, outline)
		}
	}

	main := &ebiten.DrawImageOptions{}
	main.GeoM.Translate(posX, posY)
	main.ColorScale.ScaleWithColor(textColor.ToNRGBA64())
	screen.DrawImage(system.textTexture, main)
}
