package umbra3d

import "math"

// AutoConstantType enumerates the frame, object and light state a shader
// parameter can be automatically bound to.
type AutoConstantType int

const (
	ACTWorldMatrix AutoConstantType = iota
	ACTInverseWorldMatrix
	ACTTransposeWorldMatrix
	ACTViewMatrix
	ACTInverseViewMatrix
	ACTTransposeViewMatrix
	ACTProjectionMatrix
	ACTTransposeProjectionMatrix
	ACTViewProjMatrix
	ACTWorldViewMatrix
	ACTInverseWorldViewMatrix
	ACTWorldViewProjMatrix
	ACTTransposeWorldViewProjMatrix
	ACTCameraPosition
	ACTCameraPositionObjectSpace
	ACTViewportSize       // width, height, 1/width, 1/height
	ACTTextureSize        // extra selects the texture unit
	ACTInverseTextureSize // extra selects the texture unit
	ACTShadowDepthRange   // near, far, far-near, 1/(far-near)
	ACTAmbientLightColor
	ACTLightPosition      // extra selects the light index
	ACTLightDirection     // extra selects the light index
	ACTLightDiffuseColor  // extra selects the light index
	ACTLightSpecularColor // extra selects the light index
	ACTLightAttenuation   // extra selects the light index
	ACTLightPowerScale    // extra selects the light index
	ACTFogColor
	ACTFogParams // density, linear start, linear end, 1 / (end - start)
	ACTTime      // fdata scales elapsed time
	ACTSinTime   // fdata scales elapsed time
	ACTCosTime   // fdata scales elapsed time
	ACTFrameTime // fdata scales the last frame's duration
	ACTCustom    // extra selects the renderable custom parameter
)

// AutoParamDataSource gathers the state auto-bound shader parameters read:
// the current renderable, camera, lights, ambient color, and time. Derived
// matrices are computed lazily and cached until their inputs change. With
// camera-relative rendering on, world matrices are rebased to the camera
// position, so vertices near the camera keep full float precision in huge
// scenes.
type AutoParamDataSource struct {
	renderable Renderable
	camera     *Camera
	lights     LightList

	ambient Color
	fog     FogSettings

	worldMatrices []Matrix4

	worldView          Matrix4
	worldViewDirty     bool
	worldViewProj      Matrix4
	worldViewProjDirty bool
	inverseWorld       Matrix4
	inverseWorldDirty  bool

	cameraRelative         bool
	cameraRelativePosition Vector

	viewportSize Vector
	textureSizes []Vector

	shadowDepthNear float64
	shadowDepthFar  float64

	elapsedTime float64
	frameTime   float64
}

// NewAutoParamDataSource returns an empty data source.
func NewAutoParamDataSource() *AutoParamDataSource {
	return &AutoParamDataSource{}
}

// SetCurrentRenderable makes the renderable provided the source of world
// matrices and custom parameters.
func (source *AutoParamDataSource) SetCurrentRenderable(renderable Renderable) {
	source.renderable = renderable
	source.worldMatrices = renderable.WorldTransforms(source.worldMatrices[:0])
	if source.cameraRelative {
		for i := range source.worldMatrices {
			source.worldMatrices[i][3][0] -= source.cameraRelativePosition.X
			source.worldMatrices[i][3][1] -= source.cameraRelativePosition.Y
			source.worldMatrices[i][3][2] -= source.cameraRelativePosition.Z
		}
	}
	source.worldViewDirty = true
	source.worldViewProjDirty = true
	source.inverseWorldDirty = true
}

// SetCurrentCamera makes the camera provided the source of view and
// projection matrices.
func (source *AutoParamDataSource) SetCurrentCamera(camera *Camera) {
	source.camera = camera
	if source.cameraRelative && camera != nil {
		source.cameraRelativePosition = camera.DerivedPosition()
	}
	source.worldViewDirty = true
	source.worldViewProjDirty = true
}

// SetCameraRelativeRendering toggles rebasing world space to the camera
// position. Takes effect for cameras and renderables set afterwards.
func (source *AutoParamDataSource) SetCameraRelativeRendering(enabled bool) {
	source.cameraRelative = enabled
	if !enabled {
		source.cameraRelativePosition = vectorZero
	}
}

// CameraRelativeRendering reports whether world space is rebased to the
// camera position.
func (source *AutoParamDataSource) CameraRelativeRendering() bool {
	return source.cameraRelative
}

// SetCurrentLights sets the lights visible to light-indexed bindings.
func (source *AutoParamDataSource) SetCurrentLights(lights LightList) {
	source.lights = lights
}

// SetAmbientLight sets the scene ambient color.
func (source *AutoParamDataSource) SetAmbientLight(color Color) {
	source.ambient = color
}

// SetFog sets the scene fog read by fog bindings.
func (source *AutoParamDataSource) SetFog(fog FogSettings) {
	source.fog = fog
}

// SetElapsedTime sets the running time in seconds read by time bindings.
func (source *AutoParamDataSource) SetElapsedTime(seconds float64) {
	source.elapsedTime = seconds
}

// SetFrameTime sets the last frame's duration in seconds.
func (source *AutoParamDataSource) SetFrameTime(seconds float64) {
	source.frameTime = seconds
}

// SetViewportSize sets the pixel dimensions read by viewport bindings.
func (source *AutoParamDataSource) SetViewportSize(width, height float64) {
	source.viewportSize = NewVector(width, height, 0)
}

// ViewportSize returns (width, height, 1/width, 1/height) of the current
// viewport.
func (source *AutoParamDataSource) ViewportSize() Vector {
	size := Vector{X: source.viewportSize.X, Y: source.viewportSize.Y}
	if size.X > 0 {
		size.Z = 1 / size.X
	}
	if size.Y > 0 {
		size.W = 1 / size.Y
	}
	return size
}

// SetTextureSize records the pixel dimensions of the texture bound to the
// unit given.
func (source *AutoParamDataSource) SetTextureSize(unit int, width, height float64) {
	if unit < 0 {
		return
	}
	for len(source.textureSizes) <= unit {
		source.textureSizes = append(source.textureSizes, Vector{})
	}
	source.textureSizes[unit] = NewVector(width, height, 1)
}

// TextureSize returns (width, height, depth, 1) of the texture bound to the
// unit given, or zeros when nothing is recorded there.
func (source *AutoParamDataSource) TextureSize(unit int) Vector {
	if unit < 0 || unit >= len(source.textureSizes) {
		return vectorZero
	}
	size := source.textureSizes[unit]
	size.W = 1
	return size
}

// SetShadowDepthRange sets the near and far depth of the current shadow
// projection.
func (source *AutoParamDataSource) SetShadowDepthRange(near, far float64) {
	source.shadowDepthNear = near
	source.shadowDepthFar = far
}

// ShadowDepthRange returns (near, far, far-near, 1/(far-near)) of the
// current shadow projection.
func (source *AutoParamDataSource) ShadowDepthRange() Vector {
	depth := source.shadowDepthFar - source.shadowDepthNear
	scale := 0.0
	if depth > 0 {
		scale = 1 / depth
	}
	return Vector{X: source.shadowDepthNear, Y: source.shadowDepthFar, Z: depth, W: scale}
}

// WorldMatrix returns the current renderable's first world matrix.
func (source *AutoParamDataSource) WorldMatrix() Matrix4 {
	if len(source.worldMatrices) == 0 {
		return NewMatrix4()
	}
	return source.worldMatrices[0]
}

// WorldMatrices returns every world matrix of the current renderable; more
// than one for skinned geometry.
func (source *AutoParamDataSource) WorldMatrices() []Matrix4 {
	return source.worldMatrices
}

// InverseWorldMatrix returns the inverse of the current world matrix.
func (source *AutoParamDataSource) InverseWorldMatrix() Matrix4 {
	if source.inverseWorldDirty {
		source.inverseWorld = source.WorldMatrix().Inverted()
		source.inverseWorldDirty = false
	}
	return source.inverseWorld
}

// ViewMatrix returns the current camera's view matrix.
func (source *AutoParamDataSource) ViewMatrix() Matrix4 {
	if source.camera == nil {
		return NewMatrix4()
	}
	if source.renderable != nil && source.renderable.UseIdentityView() {
		return NewMatrix4()
	}
	view := source.camera.ViewMatrix()
	if source.cameraRelative {
		// World space is rebased to the camera, so the view transform
		// carries no translation.
		view[3][0] = 0
		view[3][1] = 0
		view[3][2] = 0
	}
	return view
}

// ProjectionMatrix returns the current camera's projection matrix.
func (source *AutoParamDataSource) ProjectionMatrix() Matrix4 {
	if source.camera == nil {
		return NewMatrix4()
	}
	if source.renderable != nil && source.renderable.UseIdentityProjection() {
		return NewMatrix4()
	}
	return source.camera.ProjectionMatrix()
}

// WorldViewMatrix returns world × view for the current renderable.
func (source *AutoParamDataSource) WorldViewMatrix() Matrix4 {
	if source.worldViewDirty {
		source.worldView = source.WorldMatrix().Mult(source.ViewMatrix())
		source.worldViewDirty = false
	}
	return source.worldView
}

// WorldViewProjMatrix returns world × view × projection for the current
// renderable.
func (source *AutoParamDataSource) WorldViewProjMatrix() Matrix4 {
	if source.worldViewProjDirty {
		source.worldViewProj = source.WorldViewMatrix().Mult(source.ProjectionMatrix())
		source.worldViewProjDirty = false
	}
	return source.worldViewProj
}

// CameraPosition returns the current camera's position in rendering space:
// the world position normally, the origin under camera-relative rendering.
func (source *AutoParamDataSource) CameraPosition() Vector {
	if source.camera == nil {
		return vectorZero
	}
	return source.camera.DerivedPosition().Sub(source.cameraRelativePosition)
}

// CameraPositionObjectSpace returns the camera position in the current
// renderable's object space.
func (source *AutoParamDataSource) CameraPositionObjectSpace() Vector {
	return source.InverseWorldMatrix().MultVec(source.CameraPosition())
}

// Light returns the light at the index given, or a black placeholder beyond
// the list so shaders degrade gracefully.
func (source *AutoParamDataSource) Light(index int) *Light {
	if index < 0 || index >= len(source.lights) {
		return nil
	}
	return source.lights[index]
}

// GpuProgramParameters holds a program's named constants plus the automatic
// bindings resolved against an AutoParamDataSource every frame.
type GpuProgramParameters struct {
	floatConstants map[string][]float32
	autoConstants  []autoConstantBinding
}

type autoConstantBinding struct {
	name   string
	acType AutoConstantType
	extra  uint32
	fdata  float64
}

// NewGpuProgramParameters returns an empty parameter set.
func NewGpuProgramParameters() *GpuProgramParameters {
	return &GpuProgramParameters{floatConstants: map[string][]float32{}}
}

// SetNamedConstantFloat sets a scalar constant.
func (params *GpuProgramParameters) SetNamedConstantFloat(name string, value float32) {
	params.floatConstants[name] = []float32{value}
}

// SetNamedConstantVector sets a 4-float constant from a Vector.
func (params *GpuProgramParameters) SetNamedConstantVector(name string, value Vector) {
	params.floatConstants[name] = []float32{float32(value.X), float32(value.Y), float32(value.Z), float32(value.W)}
}

// SetNamedConstantColor sets a 4-float constant from a Color.
func (params *GpuProgramParameters) SetNamedConstantColor(name string, value Color) {
	params.floatConstants[name] = []float32{value.R, value.G, value.B, value.A}
}

// SetNamedConstantMatrix sets a 16-float constant from a Matrix4, row major.
func (params *GpuProgramParameters) SetNamedConstantMatrix(name string, value Matrix4) {
	out := make([]float32, 0, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out = append(out, float32(value[i][j]))
		}
	}
	params.floatConstants[name] = out
}

// NamedConstant returns the raw floats of the constant named name.
func (params *GpuProgramParameters) NamedConstant(name string) ([]float32, bool) {
	value, ok := params.floatConstants[name]
	return value, ok
}

// SetNamedAutoConstant binds the constant named name to the automatic value
// given; extra selects a light index or custom parameter where the type
// needs one.
func (params *GpuProgramParameters) SetNamedAutoConstant(name string, acType AutoConstantType, extra uint32) {
	params.autoConstants = append(params.autoConstants, autoConstantBinding{name: name, acType: acType, extra: extra, fdata: 1})
}

// SetNamedAutoConstantReal binds a time-based automatic value scaled by
// factor.
func (params *GpuProgramParameters) SetNamedAutoConstantReal(name string, acType AutoConstantType, factor float64) {
	params.autoConstants = append(params.autoConstants, autoConstantBinding{name: name, acType: acType, fdata: factor})
}

// AutoConstantCount returns the number of automatic bindings.
func (params *GpuProgramParameters) AutoConstantCount() int {
	return len(params.autoConstants)
}

// Clone duplicates the parameter set.
func (params *GpuProgramParameters) Clone() *GpuProgramParameters {
	out := NewGpuProgramParameters()
	for name, value := range params.floatConstants {
		out.floatConstants[name] = append([]float32{}, value...)
	}
	out.autoConstants = append(out.autoConstants, params.autoConstants...)
	return out
}

// UpdateAutoConstants resolves every automatic binding from the frame state
// in source, writing the results into the named constants.
func (params *GpuProgramParameters) UpdateAutoConstants(source *AutoParamDataSource) {
	for _, binding := range params.autoConstants {
		switch binding.acType {
		case ACTWorldMatrix:
			params.SetNamedConstantMatrix(binding.name, source.WorldMatrix())
		case ACTInverseWorldMatrix:
			params.SetNamedConstantMatrix(binding.name, source.InverseWorldMatrix())
		case ACTTransposeWorldMatrix:
			params.SetNamedConstantMatrix(binding.name, source.WorldMatrix().Transposed())
		case ACTViewMatrix:
			params.SetNamedConstantMatrix(binding.name, source.ViewMatrix())
		case ACTInverseViewMatrix:
			params.SetNamedConstantMatrix(binding.name, source.ViewMatrix().Inverted())
		case ACTTransposeViewMatrix:
			params.SetNamedConstantMatrix(binding.name, source.ViewMatrix().Transposed())
		case ACTProjectionMatrix:
			params.SetNamedConstantMatrix(binding.name, source.ProjectionMatrix())
		case ACTTransposeProjectionMatrix:
			params.SetNamedConstantMatrix(binding.name, source.ProjectionMatrix().Transposed())
		case ACTViewProjMatrix:
			params.SetNamedConstantMatrix(binding.name, source.ViewMatrix().Mult(source.ProjectionMatrix()))
		case ACTWorldViewMatrix:
			params.SetNamedConstantMatrix(binding.name, source.WorldViewMatrix())
		case ACTInverseWorldViewMatrix:
			params.SetNamedConstantMatrix(binding.name, source.WorldViewMatrix().Inverted())
		case ACTWorldViewProjMatrix:
			params.SetNamedConstantMatrix(binding.name, source.WorldViewProjMatrix())
		case ACTTransposeWorldViewProjMatrix:
			params.SetNamedConstantMatrix(binding.name, source.WorldViewProjMatrix().Transposed())
		case ACTViewportSize:
			params.SetNamedConstantVector(binding.name, source.ViewportSize())
		case ACTTextureSize:
			params.SetNamedConstantVector(binding.name, source.TextureSize(int(binding.extra)))
		case ACTInverseTextureSize:
			size := source.TextureSize(int(binding.extra))
			inverse := Vector{W: 1}
			if size.X > 0 {
				inverse.X = 1 / size.X
			}
			if size.Y > 0 {
				inverse.Y = 1 / size.Y
			}
			if size.Z > 0 {
				inverse.Z = 1 / size.Z
			}
			params.SetNamedConstantVector(binding.name, inverse)
		case ACTShadowDepthRange:
			params.SetNamedConstantVector(binding.name, source.ShadowDepthRange())
		case ACTCameraPosition:
			params.SetNamedConstantVector(binding.name, source.CameraPosition())
		case ACTCameraPositionObjectSpace:
			params.SetNamedConstantVector(binding.name, source.CameraPositionObjectSpace())
		case ACTAmbientLightColor:
			params.SetNamedConstantColor(binding.name, source.ambient)
		case ACTLightPosition:
			if light := source.Light(int(binding.extra)); light != nil {
				params.SetNamedConstantVector(binding.name, light.DerivedPosition())
			} else {
				params.SetNamedConstantVector(binding.name, vectorZero)
			}
		case ACTLightDirection:
			if light := source.Light(int(binding.extra)); light != nil {
				params.SetNamedConstantVector(binding.name, light.DerivedDirection())
			} else {
				params.SetNamedConstantVector(binding.name, vectorUnitZ)
			}
		case ACTLightDiffuseColor:
			if light := source.Light(int(binding.extra)); light != nil {
				params.SetNamedConstantColor(binding.name, light.Diffuse())
			} else {
				params.SetNamedConstantColor(binding.name, NewColor(0, 0, 0, 1))
			}
		case ACTLightSpecularColor:
			if light := source.Light(int(binding.extra)); light != nil {
				params.SetNamedConstantColor(binding.name, light.Specular())
			} else {
				params.SetNamedConstantColor(binding.name, NewColor(0, 0, 0, 1))
			}
		case ACTLightAttenuation:
			if light := source.Light(int(binding.extra)); light != nil {
				params.SetNamedConstantVector(binding.name, Vector{
					X: light.AttenuationRange(),
					Y: light.AttenuationConstant(),
					Z: light.AttenuationLinear(),
					W: light.AttenuationQuadratic(),
				})
			} else {
				params.SetNamedConstantVector(binding.name, vectorZero)
			}
		case ACTLightPowerScale:
			if light := source.Light(int(binding.extra)); light != nil {
				params.SetNamedConstantFloat(binding.name, float32(light.PowerScale()))
			} else {
				params.SetNamedConstantFloat(binding.name, 0)
			}
		case ACTFogColor:
			params.SetNamedConstantColor(binding.name, source.fog.Color)
		case ACTFogParams:
			scale := 0.0
			if source.fog.End > source.fog.Start {
				scale = 1 / (source.fog.End - source.fog.Start)
			}
			params.SetNamedConstantVector(binding.name, Vector{
				X: source.fog.Density,
				Y: source.fog.Start,
				Z: source.fog.End,
				W: scale,
			})
		case ACTTime:
			params.SetNamedConstantFloat(binding.name, float32(source.elapsedTime*binding.fdata))
		case ACTSinTime:
			params.SetNamedConstantFloat(binding.name, float32(math.Sin(source.elapsedTime*binding.fdata)))
		case ACTCosTime:
			params.SetNamedConstantFloat(binding.name, float32(math.Cos(source.elapsedTime*binding.fdata)))
		case ACTFrameTime:
			params.SetNamedConstantFloat(binding.name, float32(source.frameTime*binding.fdata))
		case ACTCustom:
			if source.renderable != nil {
				if value, ok := source.renderable.CustomParameter(binding.extra); ok {
					params.SetNamedConstantVector(binding.name, value)
				}
			}
		}
	}
}
