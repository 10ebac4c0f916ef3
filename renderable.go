package umbra3d

import "sort"

// PrimitiveTopology describes how a RenderOperation's vertices are assembled
// into primitives.
type PrimitiveTopology int

const (
	TopologyPointList PrimitiveTopology = 1 + iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
	TopologyPatch1Control
	TopologyPatch2Control
	TopologyPatch3Control

	// TopologyAdjacencyFlag marks a topology variant carrying adjacency
	// information for geometry programs.
	TopologyAdjacencyFlag PrimitiveTopology = 1 << 8
)

// Base returns the topology with any adjacency flag stripped.
func (topology PrimitiveTopology) Base() PrimitiveTopology {
	return topology &^ TopologyAdjacencyFlag
}

// RenderOperation describes one draw: the vertex and optional index data to
// source, the primitive topology, and an instance count.
type RenderOperation struct {
	VertexData   *VertexData
	IndexData    *IndexData
	Topology     PrimitiveTopology
	UseIndexes   bool
	NumInstances int
}

// Renderable is one unit of work for the render queue: geometry plus
// material plus world transform state. Renderables are owned by the
// MovableObject that emits them and live only as long as it does.
type Renderable interface {
	// Material returns the material used to draw this Renderable.
	Material() *Material
	// RenderOperation fills op with the geometry to draw.
	RenderOperation(op *RenderOperation)
	// WorldTransforms appends this Renderable's world matrices to the slice
	// provided (more than one appears for hardware-skinned or instanced draws).
	WorldTransforms(transforms []Matrix4) []Matrix4
	// SquaredViewDepth returns the squared distance from the camera used for
	// depth sorting.
	SquaredViewDepth(camera *Camera) float64
	// Lights returns the lights affecting this Renderable, in shading order.
	Lights() LightList
	// CastsShadows returns whether geometry from this Renderable should
	// contribute to shadow passes.
	CastsShadows() bool

	// UseIdentityProjection returns whether this Renderable bypasses the
	// camera's projection matrix (for pre-projected geometry like overlays).
	UseIdentityProjection() bool
	// UseIdentityView returns whether this Renderable bypasses the camera's
	// view matrix.
	UseIdentityView() bool
	// PolygonModeOverrideable returns whether the camera's polygon-mode
	// override (wireframe and point debug modes) applies to this Renderable.
	PolygonModeOverrideable() bool

	// CustomParameter returns the custom shader parameter stored at the
	// index provided, if set.
	CustomParameter(index uint32) (Vector, bool)
}

type customParam struct {
	index uint32
	value Vector
}

// RenderableBase carries the per-renderable flags and the custom parameter
// map shared by every Renderable implementation. The parameter map is a flat
// sorted slice; typical sizes are under eight entries, where a slice with
// binary search beats a tree or hash map.
type RenderableBase struct {
	identityProjection bool
	identityView       bool
	polygonModeFixed   bool
	customParams       []customParam
}

// SetCustomParameter stores a custom shader parameter at the index provided;
// auto-constant bindings of class "custom" read it back during parameter fill.
func (base *RenderableBase) SetCustomParameter(index uint32, value Vector) {
	i := sort.Search(len(base.customParams), func(i int) bool {
		return base.customParams[i].index >= index
	})
	if i < len(base.customParams) && base.customParams[i].index == index {
		base.customParams[i].value = value
		return
	}
	base.customParams = append(base.customParams, customParam{})
	copy(base.customParams[i+1:], base.customParams[i:])
	base.customParams[i] = customParam{index: index, value: value}
}

// CustomParameter returns the custom shader parameter stored at the index
// provided, if set.
func (base *RenderableBase) CustomParameter(index uint32) (Vector, bool) {
	i := sort.Search(len(base.customParams), func(i int) bool {
		return base.customParams[i].index >= index
	})
	if i < len(base.customParams) && base.customParams[i].index == index {
		return base.customParams[i].value, true
	}
	return Vector{}, false
}

// RemoveCustomParameter removes the custom shader parameter at the index provided.
func (base *RenderableBase) RemoveCustomParameter(index uint32) {
	i := sort.Search(len(base.customParams), func(i int) bool {
		return base.customParams[i].index >= index
	})
	if i < len(base.customParams) && base.customParams[i].index == index {
		base.customParams = append(base.customParams[:i], base.customParams[i+1:]...)
	}
}

// SetUseIdentityProjection sets whether this Renderable bypasses the
// camera's projection matrix.
func (base *RenderableBase) SetUseIdentityProjection(use bool) {
	base.identityProjection = use
}

// UseIdentityProjection returns whether this Renderable bypasses the
// camera's projection matrix.
func (base *RenderableBase) UseIdentityProjection() bool {
	return base.identityProjection
}

// SetUseIdentityView sets whether this Renderable bypasses the camera's view matrix.
func (base *RenderableBase) SetUseIdentityView(use bool) {
	base.identityView = use
}

// UseIdentityView returns whether this Renderable bypasses the camera's view matrix.
func (base *RenderableBase) UseIdentityView() bool {
	return base.identityView
}

// SetPolygonModeOverrideable sets whether the camera's polygon-mode override
// applies to this Renderable.
func (base *RenderableBase) SetPolygonModeOverrideable(overrideable bool) {
	base.polygonModeFixed = !overrideable
}

// PolygonModeOverrideable returns whether the camera's polygon-mode override
// applies to this Renderable.
func (base *RenderableBase) PolygonModeOverrideable() bool {
	return !base.polygonModeFixed
}

// CastsShadows returns false by default; shadow-casting Renderables override it.
func (base *RenderableBase) CastsShadows() bool {
	return false
}
