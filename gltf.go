package umbra3d

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// GLTFLoadOptions alters how a glTF file is turned into a Library.
type GLTFLoadOptions struct {
	// BuildEdgeLists enables silhouette edge construction on the loaded
	// meshes, needed for stencil shadows.
	BuildEdgeLists bool

	// DefaultLighting sets whether loaded materials respond to lights.
	DefaultLighting bool
}

// DefaultGLTFLoadOptions creates an instance of GLTFLoadOptions with some
// sensible defaults.
func DefaultGLTFLoadOptions() *GLTFLoadOptions {
	return &GLTFLoadOptions{
		BuildEdgeLists:  true,
		DefaultLighting: true,
	}
}

// LoadGLTFFile loads a .gltf or .glb file from the filepath given,
// returning a Library of its meshes, materials, skeletons, and animations.
// Passing nil for loadOptions loads with defaults.
func LoadGLTFFile(path string, loadOptions *GLTFLoadOptions) (*Library, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError(ErrItemNotFound, err, "reading %q", path)
	}
	return LoadGLTFData(fileData, loadOptions)
}

// boneRef locates one glTF joint node inside a built skeleton.
type boneRef struct {
	skeleton *Skeleton
	bone     *Bone
}

// LoadGLTFData loads a .gltf or .glb file from the byte data given.
func LoadGLTFData(data []byte, loadOptions *GLTFLoadOptions) (*Library, error) {
	decoder := gltf.NewDecoder(bytes.NewReader(data))
	doc := gltf.NewDocument()
	if err := decoder.Decode(doc); err != nil {
		return nil, wrapError(ErrInvalidState, err, "decoding glTF data")
	}

	if loadOptions == nil {
		loadOptions = DefaultGLTFLoadOptions()
	}

	library := NewLibrary()

	images := make([]*ebiten.Image, len(doc.Images))
	for i, gltfImage := range doc.Images {
		if gltfImage.BufferView == nil {
			// External images are not fetched here.
			logger.Warn("skipping external glTF image", "uri", gltfImage.URI)
			continue
		}
		imageData, err := modeler.ReadBufferView(doc, doc.BufferViews[*gltfImage.BufferView])
		if err != nil {
			return nil, wrapError(ErrInvalidState, err, "reading glTF image %d", i)
		}
		img, _, err := image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, wrapError(ErrInvalidState, err, "decoding glTF image %d", i)
		}
		images[i] = ebiten.NewImageFromImage(img)
	}

	for i, gltfMat := range doc.Materials {
		name := gltfMat.Name
		if name == "" {
			name = "Material_" + itoa(i)
		}
		material := NewMaterial(name)
		pass := material.CreateTechnique().CreatePass()
		pass.Lighting = loadOptions.DefaultLighting

		color := gltfMat.PBRMetallicRoughness.BaseColorFactor
		pass.Diffuse = NewColor(float32(color[0]), float32(color[1]), float32(color[2]), float32(color[3]))
		pass.Ambient = pass.Diffuse

		if gltfMat.DoubleSided {
			pass.CullMode = CullNone
		}

		switch gltfMat.AlphaMode {
		case gltf.AlphaBlend:
			pass.SceneBlend = SceneBlendAlpha
		case gltf.AlphaMask:
			// No fixed-function alpha test here; treat cutout as blended.
			pass.SceneBlend = SceneBlendAlpha
		}

		if texture := gltfMat.PBRMetallicRoughness.BaseColorTexture; texture != nil {
			source := doc.Textures[texture.Index].Source
			if source != nil && images[*source] != nil {
				pass.AddTextureUnit(name, images[*source])
			}
		}

		if err := library.AddMaterial(material); err != nil {
			return nil, err
		}
	}

	// Skeletons come from skins; bone handles follow joint order.
	boneRefs := map[int]boneRef{}
	skeletons := make([]*Skeleton, len(doc.Skins))
	for skinIndex, skin := range doc.Skins {
		name := skin.Name
		if name == "" {
			name = "Skeleton_" + itoa(skinIndex)
		}
		skeleton := NewSkeleton(name)

		jointSet := map[int]*Bone{}
		for jointOrder, nodeIndex := range skin.Joints {
			node := doc.Nodes[nodeIndex]
			boneName := node.Name
			if boneName == "" {
				boneName = "Bone_" + itoa(jointOrder)
			}
			bone, err := skeleton.CreateBoneWithHandle(boneName, uint16(jointOrder))
			if err != nil {
				return nil, err
			}
			applyNodeTransform(node, &bone.Node)
			jointSet[int(nodeIndex)] = bone
			boneRefs[int(nodeIndex)] = boneRef{skeleton: skeleton, bone: bone}
		}

		for _, nodeIndex := range skin.Joints {
			bone := jointSet[int(nodeIndex)]
			for _, childIndex := range doc.Nodes[nodeIndex].Children {
				if child, isJoint := jointSet[int(childIndex)]; isJoint {
					if err := bone.Node.AddChild(&child.Node); err != nil {
						return nil, err
					}
				}
			}
		}

		skeleton.SetBindingPose()
		skeletons[skinIndex] = skeleton
		if err := library.AddSkeleton(skeleton); err != nil {
			return nil, err
		}
	}

	// poseIndexes[meshIndex][subMeshIndex][targetIndex] locates the Pose a
	// morph target was imported as, for wiring weight animations.
	poseIndexes := map[int][][]int{}

	meshes := make([]*Mesh, len(doc.Meshes))
	for meshIndex, gltfMesh := range doc.Meshes {
		name := gltfMesh.Name
		if name == "" {
			name = "Mesh_" + itoa(meshIndex)
		}
		mesh := NewMesh(name)
		mesh.AutoBuildEdgeLists = loadOptions.BuildEdgeLists
		bounds := NewBoxNull()
		boundRadius := 0.0

		targetNames := morphTargetNames(gltfMesh.Extras)

		for primIndex, primitive := range gltfMesh.Primitives {
			subMesh := mesh.CreateSubMesh()
			subMesh.UseSharedVertices = false
			if primitive.Material != nil {
				material := doc.Materials[*primitive.Material]
				if material.Name != "" {
					subMesh.MaterialName = material.Name
				} else {
					subMesh.MaterialName = "Material_" + itoa(int(*primitive.Material))
				}
			}

			positions, err := modeler.ReadPosition(doc, doc.Accessors[primitive.Attributes[gltf.POSITION]], nil)
			if err != nil {
				return nil, wrapError(ErrInvalidState, err, "reading positions of mesh %q primitive %d", name, primIndex)
			}

			var normals [][3]float32
			if accessor, exists := primitive.Attributes[gltf.NORMAL]; exists {
				normals, err = modeler.ReadNormal(doc, doc.Accessors[accessor], nil)
				if err != nil {
					return nil, wrapError(ErrInvalidState, err, "reading normals of mesh %q primitive %d", name, primIndex)
				}
			}

			var texCoords [][2]float32
			if accessor, exists := primitive.Attributes[gltf.TEXCOORD_0]; exists {
				texCoords, err = modeler.ReadTextureCoord(doc, doc.Accessors[accessor], nil)
				if err != nil {
					return nil, wrapError(ErrInvalidState, err, "reading texture coordinates of mesh %q primitive %d", name, primIndex)
				}
			}

			subMesh.VertexData = buildVertexData(positions, normals, texCoords)

			for _, position := range positions {
				point := NewVector(float64(position[0]), float64(position[1]), float64(position[2]))
				bounds = bounds.MergePoint(point)
				if length := point.Magnitude(); length > boundRadius {
					boundRadius = length
				}
			}

			if primitive.Indices != nil {
				indices, err := modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
				if err != nil {
					return nil, wrapError(ErrInvalidState, err, "reading indices of mesh %q primitive %d", name, primIndex)
				}
				subMesh.IndexData = buildIndexData(indices, len(positions))
			} else {
				sequential := make([]uint32, len(positions))
				for i := range sequential {
					sequential[i] = uint32(i)
				}
				subMesh.IndexData = buildIndexData(sequential, len(positions))
			}

			if jointAccessor, exists := primitive.Attributes[gltf.JOINTS_0]; exists {
				joints, err := modeler.ReadJoints(doc, doc.Accessors[jointAccessor], nil)
				if err != nil {
					return nil, wrapError(ErrInvalidState, err, "reading joints of mesh %q primitive %d", name, primIndex)
				}
				weights, err := modeler.ReadWeights(doc, doc.Accessors[primitive.Attributes[gltf.WEIGHTS_0]], nil)
				if err != nil {
					return nil, wrapError(ErrInvalidState, err, "reading weights of mesh %q primitive %d", name, primIndex)
				}
				for vertex := range joints {
					for influence := 0; influence < 4; influence++ {
						weight := float64(weights[vertex][influence])
						if weight <= 0 {
							continue
						}
						subMesh.AddBoneAssignment(VertexBoneAssignment{
							VertexIndex: uint32(vertex),
							BoneIndex:   joints[vertex][influence],
							Weight:      weight,
						})
					}
				}
			}

			// Morph targets become poses with sparse vertex offsets.
			var targetPoses []int
			for targetIndex, target := range primitive.Targets {
				accessor, exists := target[gltf.POSITION]
				if !exists {
					continue
				}
				deltas, err := modeler.ReadPosition(doc, doc.Accessors[accessor], nil)
				if err != nil {
					return nil, wrapError(ErrInvalidState, err, "reading morph target %d of mesh %q", targetIndex, name)
				}
				poseName := name + "_target_" + itoa(targetIndex)
				if targetIndex < len(targetNames) {
					poseName = targetNames[targetIndex]
				}
				pose := mesh.CreatePose(poseName, uint16(primIndex+1))
				for vertex, delta := range deltas {
					offset := NewVector(float64(delta[0]), float64(delta[1]), float64(delta[2]))
					if !offset.IsZero() {
						pose.AddVertexOffset(uint32(vertex), offset)
					}
				}
				targetPoses = append(targetPoses, len(mesh.Poses())-1)
			}
			if len(targetPoses) > 0 {
				poseIndexes[meshIndex] = append(poseIndexes[meshIndex], targetPoses)
			} else {
				poseIndexes[meshIndex] = append(poseIndexes[meshIndex], nil)
			}
		}

		mesh.SetBounds(bounds, boundRadius)
		meshes[meshIndex] = mesh
		if err := library.AddMesh(mesh); err != nil {
			return nil, err
		}
	}

	// Nodes bind meshes to skins.
	for _, node := range doc.Nodes {
		if node.Mesh != nil && node.Skin != nil {
			meshes[int(*node.Mesh)].SetSkeleton(skeletons[int(*node.Skin)])
		}
	}

	for animIndex, gltfAnim := range doc.Animations {
		name := gltfAnim.Name
		if name == "" {
			name = "Animation_" + itoa(animIndex)
		}
		if err := loadAnimation(doc, gltfAnim, name, boneRefs, meshes, poseIndexes); err != nil {
			return nil, err
		}
	}

	return library, nil
}

// applyNodeTransform copies a glTF node's local transform onto a Node.
func applyNodeTransform(gltfNode *gltf.Node, node *Node) {
	matrix := NewMatrix4()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			// glTF matrices are column-major; flip into row-vector form.
			matrix[i][j] = float64(gltfNode.Matrix[i*4+j])
		}
	}
	if !matrix.IsIdentity() {
		position, scale, rotation := matrix.Decompose()
		node.SetPosition(position)
		node.SetScale(scale)
		node.SetOrientation(rotation)
		return
	}
	node.SetPosition(NewVector(float64(gltfNode.Translation[0]), float64(gltfNode.Translation[1]), float64(gltfNode.Translation[2])))
	node.SetScale(NewVector(float64(gltfNode.Scale[0]), float64(gltfNode.Scale[1]), float64(gltfNode.Scale[2])))
	node.SetOrientation(NewQuaternion(float64(gltfNode.Rotation[0]), float64(gltfNode.Rotation[1]), float64(gltfNode.Rotation[2]), float64(gltfNode.Rotation[3])))
}

// buildVertexData interleaves the attribute arrays read from a primitive.
func buildVertexData(positions [][3]float32, normals [][3]float32, texCoords [][2]float32) *VertexData {
	data := NewVertexData()
	offset := 0
	data.Declaration.AddElement(0, offset, VETFloat3, SemanticPosition, 0)
	offset += 12
	normalOffset, texOffset := -1, -1
	if len(normals) > 0 {
		data.Declaration.AddElement(0, offset, VETFloat3, SemanticNormal, 0)
		normalOffset = offset
		offset += 12
	}
	if len(texCoords) > 0 {
		data.Declaration.AddElement(0, offset, VETFloat2, SemanticTexCoord, 0)
		texOffset = offset
		offset += 8
	}
	vertexSize := offset

	buffer := NewHardwareVertexBuffer(vertexSize, len(positions), BufferUsageStaticWriteOnly)
	for i, position := range positions {
		raw := buffer.data[i*vertexSize : (i+1)*vertexSize]
		putFloat32(raw[0:], position[0])
		putFloat32(raw[4:], position[1])
		putFloat32(raw[8:], position[2])
		if normalOffset >= 0 {
			putFloat32(raw[normalOffset:], normals[i][0])
			putFloat32(raw[normalOffset+4:], normals[i][1])
			putFloat32(raw[normalOffset+8:], normals[i][2])
		}
		if texOffset >= 0 {
			putFloat32(raw[texOffset:], texCoords[i][0])
			putFloat32(raw[texOffset+4:], texCoords[i][1])
		}
	}

	data.Binding.SetBinding(0, buffer)
	data.Count = len(positions)
	return data
}

func buildIndexData(indices []uint32, vertexCount int) *IndexData {
	indexType := IndexType16
	if vertexCount > staticGeometryMaxVertices {
		indexType = IndexType32
	}
	buffer := NewHardwareIndexBuffer(indexType, len(indices), BufferUsageStaticWriteOnly)
	for i, index := range indices {
		buffer.SetIndex(i, index)
	}
	return NewIndexData(buffer)
}

// morphTargetNames pulls the conventional "targetNames" list from a mesh's
// extras, if present.
func morphTargetNames(extras any) []string {
	dataMap, isMap := extras.(map[string]interface{})
	if !isMap {
		return nil
	}
	rawNames, exists := dataMap["targetNames"]
	if !exists {
		return nil
	}
	rawList, isList := rawNames.([]interface{})
	if !isList {
		return nil
	}
	names := make([]string, 0, len(rawList))
	for _, raw := range rawList {
		if s, isString := raw.(string); isString {
			names = append(names, s)
		}
	}
	return names
}

// loadAnimation converts one glTF animation: joint channels become bone
// tracks on the joint's skeleton, and weight channels become pose tracks on
// the target mesh. Keyframe transforms are stored relative to the binding
// pose.
func loadAnimation(doc *gltf.Document, gltfAnim *gltf.Animation, name string, boneRefs map[int]boneRef, meshes []*Mesh, poseIndexes map[int][][]int) error {
	// Bone keyframes accumulate across the translation, rotation, and scale
	// channels of one node.
	type trackKey struct {
		skeleton *Skeleton
		handle   uint16
	}
	frames := map[trackKey]map[float64]*TransformKeyFrame{}
	tracks := map[trackKey]*NodeAnimationTrack{}

	keyFrameAt := func(ref boneRef, time float64) (*TransformKeyFrame, error) {
		key := trackKey{skeleton: ref.skeleton, handle: ref.bone.Handle()}
		track, ok := tracks[key]
		if !ok {
			animation, err := ref.skeleton.Animation(name)
			if err != nil {
				animation, err = ref.skeleton.CreateAnimation(name, 0)
				if err != nil {
					return nil, err
				}
			}
			track, err = animation.CreateNodeTrack(ref.bone.Handle())
			if err != nil {
				return nil, err
			}
			tracks[key] = track
			frames[key] = map[float64]*TransformKeyFrame{}
		}
		keyFrame, ok := frames[key][time]
		if !ok {
			keyFrame = track.CreateKeyFrame(time)
			frames[key][time] = keyFrame
		}
		return keyFrame, nil
	}

	maxTime := 0.0
	touchedSkeletons := map[*Skeleton]struct{}{}

	for _, channel := range gltfAnim.Channels {
		if channel.Target.Node == nil {
			continue
		}
		nodeIndex := int(*channel.Target.Node)
		sampler := gltfAnim.Samplers[channel.Sampler]

		inputRaw, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Input], nil)
		if err != nil {
			return wrapError(ErrInvalidState, err, "reading animation %q input", name)
		}
		inputData, ok := inputRaw.([]float32)
		if !ok {
			return newError(ErrInvalidState, "animation %q has a non-scalar time input", name)
		}
		for _, t := range inputData {
			if float64(t) > maxTime {
				maxTime = float64(t)
			}
		}

		outputRaw, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Output], nil)
		if err != nil {
			return wrapError(ErrInvalidState, err, "reading animation %q output", name)
		}

		switch channel.Target.Path {
		case gltf.TRSTranslation:
			ref, isBone := boneRefs[nodeIndex]
			if !isBone {
				continue
			}
			outputData := outputRaw.([][3]float32)
			for i, t := range inputData {
				keyFrame, err := keyFrameAt(ref, float64(t))
				if err != nil {
					return err
				}
				sampled := NewVector(float64(outputData[i][0]), float64(outputData[i][1]), float64(outputData[i][2]))
				keyFrame.Translate = sampled.Sub(ref.bone.bindPosition)
			}
			touchedSkeletons[ref.skeleton] = struct{}{}

		case gltf.TRSRotation:
			ref, isBone := boneRefs[nodeIndex]
			if !isBone {
				continue
			}
			outputData := outputRaw.([][4]float32)
			for i, t := range inputData {
				keyFrame, err := keyFrameAt(ref, float64(t))
				if err != nil {
					return err
				}
				sampled := NewQuaternion(float64(outputData[i][0]), float64(outputData[i][1]), float64(outputData[i][2]), float64(outputData[i][3]))
				keyFrame.Rotation = ref.bone.bindOrientation.Inverse().Mult(sampled)
			}
			touchedSkeletons[ref.skeleton] = struct{}{}

		case gltf.TRSScale:
			ref, isBone := boneRefs[nodeIndex]
			if !isBone {
				continue
			}
			outputData := outputRaw.([][3]float32)
			for i, t := range inputData {
				keyFrame, err := keyFrameAt(ref, float64(t))
				if err != nil {
					return err
				}
				sampled := NewVector(float64(outputData[i][0]), float64(outputData[i][1]), float64(outputData[i][2]))
				keyFrame.Scale = sampled.DivideComp(ref.bone.bindScale)
			}
			touchedSkeletons[ref.skeleton] = struct{}{}

		case gltf.TRSWeights:
			node := doc.Nodes[nodeIndex]
			if node.Mesh == nil {
				continue
			}
			meshIndex := int(*node.Mesh)
			mesh := meshes[meshIndex]
			weightData, ok := outputRaw.([]float32)
			if !ok {
				continue
			}
			if err := loadWeightAnimation(mesh, name, inputData, weightData, poseIndexes[meshIndex], maxTime); err != nil {
				return err
			}
		}
	}

	for skeleton := range touchedSkeletons {
		if animation, err := skeleton.Animation(name); err == nil {
			animation.length = maxTime
		}
	}
	return nil
}

// loadWeightAnimation turns a morph weight channel into pose tracks, one
// per submesh that has morph targets.
func loadWeightAnimation(mesh *Mesh, name string, times []float32, weights []float32, subMeshPoses [][]int, length float64) error {
	if len(times) == 0 || len(subMeshPoses) == 0 {
		return nil
	}
	targetCount := len(weights) / len(times)
	if targetCount == 0 {
		return nil
	}

	animation, err := mesh.VertexAnimation(name)
	if err != nil {
		animation, err = mesh.CreateVertexAnimation(name, length)
		if err != nil {
			return err
		}
	}
	animation.length = length

	for subIndex, poses := range subMeshPoses {
		if len(poses) == 0 {
			continue
		}
		track := animation.CreateTrack(uint16(subIndex+1), VertexAnimationPose)
		for frame, t := range times {
			refs := make([]PoseRef, 0, len(poses))
			for targetIndex, poseIndex := range poses {
				if targetIndex >= targetCount {
					break
				}
				refs = append(refs, PoseRef{
					PoseIndex: poseIndex,
					Influence: float64(weights[frame*targetCount+targetIndex]),
				})
			}
			track.CreatePoseKeyFrame(float64(t), refs)
		}
	}
	return nil
}
