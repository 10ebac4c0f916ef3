package umbra3d

import (
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
)

// PolygonMode controls how a Pass rasterizes its triangles.
type PolygonMode int

const (
	PolygonModePoints PolygonMode = iota
	PolygonModeWireframe
	PolygonModeSolid
)

// SceneBlendType is a shorthand for the common framebuffer blend setups.
type SceneBlendType int

const (
	SceneBlendReplace  SceneBlendType = iota // Overwrite the framebuffer
	SceneBlendAdd                            // Add to the framebuffer
	SceneBlendModulate                       // Multiply with the framebuffer
	SceneBlendAlpha                          // Blend by the source alpha
)

// CompareFunc is the comparison used for depth testing.
type CompareFunc int

const (
	CompareAlwaysFail CompareFunc = iota
	CompareAlwaysPass
	CompareLess
	CompareLessEqual
	CompareEqual
	CompareNotEqual
	CompareGreaterEqual
	CompareGreater
)

// CullingMode controls which triangle winding a Pass discards.
type CullingMode int

const (
	CullNone      CullingMode = iota
	CullClockwise             // The default; discards faces turned away from the camera
	CullCounterClockwise
)

// TextureUnit is a single texture binding on a Pass, with an optional
// scroll / rotate animation applied to its UVs every frame.
type TextureUnit struct {
	Name    string
	Texture *ebiten.Image // The texture bound to the unit

	// UV animation, in texture units (scroll) and radians (rotate) per second.
	ScrollSpeedU float64
	ScrollSpeedV float64
	RotateSpeed  float64

	scrollU float64
	scrollV float64
	rotate  float64
}

// NewTextureUnit returns a TextureUnit bound to the texture provided.
func NewTextureUnit(name string, texture *ebiten.Image) *TextureUnit {
	return &TextureUnit{Name: name, Texture: texture}
}

// UpdateAnimation advances the unit's UV animation by the elapsed time, in
// seconds. Scroll offsets wrap into [0, 1).
func (unit *TextureUnit) UpdateAnimation(elapsed float64) {
	unit.scrollU = wrapUnit(unit.scrollU + unit.ScrollSpeedU*elapsed)
	unit.scrollV = wrapUnit(unit.scrollV + unit.ScrollSpeedV*elapsed)
	unit.rotate += unit.RotateSpeed * elapsed
}

// TextureTransform returns the unit's current UV offset and rotation.
func (unit *TextureUnit) TextureTransform() (scrollU, scrollV, rotate float64) {
	return unit.scrollU, unit.scrollV, unit.rotate
}

// Clone duplicates the TextureUnit. The texture itself is shared.
func (unit *TextureUnit) Clone() *TextureUnit {
	newUnit := *unit
	return &newUnit
}

func wrapUnit(v float64) float64 {
	v -= float64(int(v))
	if v < 0 {
		v++
	}
	return v
}

// Pass is a single rendering pass of a Technique: the fixed-function state
// plus the texture units and shader parameters used for one draw of each
// renderable using the material.
type Pass struct {
	parent *Technique
	index  int

	Name string

	// Fixed-function surface properties.
	Lighting  bool
	Ambient   Color
	Diffuse   Color
	Specular  Color
	Emissive  Color
	Shininess float32

	SceneBlend  SceneBlendType
	DepthCheck  bool
	DepthWrite  bool
	DepthFunc   CompareFunc
	CullMode    CullingMode
	PolygonMode PolygonMode

	// MaxLights caps how many lights are handed to this pass per renderable.
	MaxLights int

	textureUnits []*TextureUnit

	vertexParams   *GpuProgramParameters
	fragmentParams *GpuProgramParameters
}

func newPass(parent *Technique, index int) *Pass {
	return &Pass{
		parent:      parent,
		index:       index,
		Lighting:    true,
		Ambient:     NewColor(1, 1, 1, 1),
		Diffuse:     NewColor(1, 1, 1, 1),
		Specular:    NewColor(0, 0, 0, 1),
		Emissive:    NewColor(0, 0, 0, 1),
		SceneBlend:  SceneBlendReplace,
		DepthCheck:  true,
		DepthWrite:  true,
		DepthFunc:   CompareLessEqual,
		CullMode:    CullClockwise,
		PolygonMode: PolygonModeSolid,
		MaxLights:   8,
	}
}

// Index returns the pass's position within its Technique.
func (pass *Pass) Index() int {
	return pass.index
}

// Technique returns the pass's parent Technique.
func (pass *Pass) Technique() *Technique {
	return pass.parent
}

// IsTransparent reports whether the pass blends with the framebuffer, which
// routes its renderables through depth-sorted transparent rendering.
func (pass *Pass) IsTransparent() bool {
	return pass.SceneBlend != SceneBlendReplace
}

// AddTextureUnit appends a texture unit to the pass and returns it.
func (pass *Pass) AddTextureUnit(name string, texture *ebiten.Image) *TextureUnit {
	unit := NewTextureUnit(name, texture)
	pass.textureUnits = append(pass.textureUnits, unit)
	return unit
}

// TextureUnits returns the pass's texture units in binding order.
func (pass *Pass) TextureUnits() []*TextureUnit {
	return pass.textureUnits
}

// VertexParameters returns the pass's vertex program parameters, creating
// them on first use.
func (pass *Pass) VertexParameters() *GpuProgramParameters {
	if pass.vertexParams == nil {
		pass.vertexParams = NewGpuProgramParameters()
	}
	return pass.vertexParams
}

// FragmentParameters returns the pass's fragment program parameters, creating
// them on first use.
func (pass *Pass) FragmentParameters() *GpuProgramParameters {
	if pass.fragmentParams == nil {
		pass.fragmentParams = NewGpuProgramParameters()
	}
	return pass.fragmentParams
}

// UpdateAutoParameters resolves every auto-bound constant on the pass against
// the frame state in the source provided.
func (pass *Pass) UpdateAutoParameters(source *AutoParamDataSource) {
	if pass.vertexParams != nil {
		pass.vertexParams.UpdateAutoConstants(source)
	}
	if pass.fragmentParams != nil {
		pass.fragmentParams.UpdateAutoConstants(source)
	}
}

func (pass *Pass) clone(parent *Technique) *Pass {
	newPass := *pass
	newPass.parent = parent
	newPass.textureUnits = make([]*TextureUnit, 0, len(pass.textureUnits))
	for _, unit := range pass.textureUnits {
		newPass.textureUnits = append(newPass.textureUnits, unit.Clone())
	}
	if pass.vertexParams != nil {
		newPass.vertexParams = pass.vertexParams.Clone()
	}
	if pass.fragmentParams != nil {
		newPass.fragmentParams = pass.fragmentParams.Clone()
	}
	return &newPass
}

// Technique is one way of rendering a Material: an ordered list of passes,
// optionally restricted to a detail-level range.
type Technique struct {
	parent *Material

	Name       string
	SchemeName string

	// LodIndex is the material detail level this technique serves; 0 is the
	// highest detail. Multiple techniques may share an index.
	LodIndex uint16

	passes []*Pass
}

func newTechnique(parent *Material) *Technique {
	return &Technique{parent: parent, SchemeName: "Default"}
}

// Material returns the technique's parent Material.
func (technique *Technique) Material() *Material {
	return technique.parent
}

// CreatePass appends a new Pass with default state and returns it.
func (technique *Technique) CreatePass() *Pass {
	pass := newPass(technique, len(technique.passes))
	technique.passes = append(technique.passes, pass)
	return pass
}

// Passes returns the technique's passes in rendering order.
func (technique *Technique) Passes() []*Pass {
	return technique.passes
}

// Pass returns the pass at the index provided, or nil if out of range.
func (technique *Technique) Pass(index int) *Pass {
	if index < 0 || index >= len(technique.passes) {
		return nil
	}
	return technique.passes[index]
}

// IsTransparent reports whether any pass of the technique blends with the
// framebuffer.
func (technique *Technique) IsTransparent() bool {
	for _, pass := range technique.passes {
		if pass.IsTransparent() {
			return true
		}
	}
	return false
}

func (technique *Technique) clone(parent *Material) *Technique {
	newTechnique := *technique
	newTechnique.parent = parent
	newTechnique.passes = make([]*Pass, 0, len(technique.passes))
	for _, pass := range technique.passes {
		newTechnique.passes = append(newTechnique.passes, pass.clone(&newTechnique))
	}
	return &newTechnique
}

// Material describes how renderables using it are drawn: one or more
// techniques, each a list of passes, selected by material detail level.
type Material struct {
	library *Library // The Library the Material was loaded from, if any

	Name string

	ReceiveShadows           bool
	TransparencyCastsShadows bool

	// Properties carries auxiliary data loaded from file custom properties or
	// set through code.
	Properties *Properties

	techniques []*Technique

	// lodValues are the user values (typically distances) at which the
	// material steps down a detail level. Sorted ascending; detail index i+1
	// begins at lodValues[i].
	lodValues []float64
}

// NewMaterial creates an empty Material with the name given. A material with
// no techniques is not renderable until one is added.
func NewMaterial(name string) *Material {
	return &Material{
		Name:           name,
		ReceiveShadows: true,
		Properties:     NewProperties(),
	}
}

// NewMaterialSimple creates a Material with a single technique and pass,
// optionally textured. This covers the common case of plain lit geometry.
func NewMaterialSimple(name string, texture *ebiten.Image) *Material {
	material := NewMaterial(name)
	pass := material.CreateTechnique().CreatePass()
	if texture != nil {
		pass.AddTextureUnit(name, texture)
	}
	return material
}

// Library returns the Library the Material was loaded from, or nil if it was
// created through code.
func (material *Material) Library() *Library {
	return material.library
}

// CreateTechnique appends a new empty Technique and returns it.
func (material *Material) CreateTechnique() *Technique {
	technique := newTechnique(material)
	material.techniques = append(material.techniques, technique)
	return technique
}

// Techniques returns the material's techniques in declaration order.
func (material *Material) Techniques() []*Technique {
	return material.techniques
}

// Technique returns the technique at the index provided, or nil if out of
// range.
func (material *Material) Technique(index int) *Technique {
	if index < 0 || index >= len(material.techniques) {
		return nil
	}
	return material.techniques[index]
}

// BestTechnique returns the technique serving the material detail index
// provided, falling back to the nearest lower-detail technique and finally to
// the first technique declared.
func (material *Material) BestTechnique(lodIndex uint16) *Technique {
	var best *Technique
	for _, technique := range material.techniques {
		if technique.LodIndex == lodIndex {
			return technique
		}
		if technique.LodIndex < lodIndex && (best == nil || technique.LodIndex > best.LodIndex) {
			best = technique
		}
	}
	if best == nil && len(material.techniques) > 0 {
		best = material.techniques[0]
	}
	return best
}

// SetLodValues sets the user values at which the material drops a detail
// level. Values are sorted ascending.
func (material *Material) SetLodValues(values []float64) {
	material.lodValues = append(material.lodValues[:0], values...)
	sort.Float64s(material.lodValues)
}

// LodValues returns the material's detail thresholds, ascending.
func (material *Material) LodValues() []float64 {
	return material.lodValues
}

// LodIndex returns the material detail index for the biased user value
// provided: 0 below the first threshold, then one more per threshold passed.
func (material *Material) LodIndex(value float64) uint16 {
	index := sort.SearchFloat64s(material.lodValues, value)
	return uint16(index)
}

// IsTransparent reports whether the material's highest-detail technique
// blends with the framebuffer.
func (material *Material) IsTransparent() bool {
	technique := material.BestTechnique(0)
	return technique != nil && technique.IsTransparent()
}

// Clone duplicates the Material, its techniques, passes and parameters.
// Textures are shared between the clones.
func (material *Material) Clone() *Material {
	newMaterial := NewMaterial(material.Name)
	newMaterial.library = material.library
	newMaterial.ReceiveShadows = material.ReceiveShadows
	newMaterial.TransparencyCastsShadows = material.TransparencyCastsShadows
	newMaterial.Properties = material.Properties.Clone()
	newMaterial.lodValues = append([]float64{}, material.lodValues...)
	for _, technique := range material.techniques {
		newMaterial.techniques = append(newMaterial.techniques, technique.clone(newMaterial))
	}
	return newMaterial
}
