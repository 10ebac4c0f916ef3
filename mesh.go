package umbra3d

import "sort"

// VertexBoneAssignment ties one vertex to one skeleton bone with a blend
// weight.
type VertexBoneAssignment struct {
	VertexIndex uint32
	BoneIndex   uint16
	Weight      float64
}

// maxBlendWeights is the most bones that may influence one vertex; extra
// assignments are dropped, keeping the heaviest.
const maxBlendWeights = 4

// SubMesh is one part of a Mesh with a single material: its geometry, or a
// view onto the mesh's shared geometry, plus its bone assignments.
type SubMesh struct {
	parent *Mesh

	MaterialName string

	// UseSharedVertices selects the parent mesh's shared vertex data instead
	// of the submesh's own.
	UseSharedVertices bool

	VertexData *VertexData
	IndexData  *IndexData

	Topology PrimitiveTopology

	boneAssignments      []VertexBoneAssignment
	boneAssignmentsDirty bool

	// lodFaceLists holds one replacement IndexData per generated mesh detail
	// level, index 0 being detail level 1.
	lodFaceLists []*IndexData
}

// Parent returns the Mesh the submesh belongs to.
func (subMesh *SubMesh) Parent() *Mesh { return subMesh.parent }

// AddBoneAssignment records a bone influence for a vertex. Assignments take
// effect, normalized and capped, when the mesh is next compiled.
func (subMesh *SubMesh) AddBoneAssignment(assignment VertexBoneAssignment) {
	subMesh.boneAssignments = append(subMesh.boneAssignments, assignment)
	subMesh.boneAssignmentsDirty = true
}

// ClearBoneAssignments removes every bone assignment from the submesh.
func (subMesh *SubMesh) ClearBoneAssignments() {
	subMesh.boneAssignments = subMesh.boneAssignments[:0]
	subMesh.boneAssignmentsDirty = true
}

// BoneAssignments returns the submesh's bone assignments, compiling them
// first if they changed.
func (subMesh *SubMesh) BoneAssignments() []VertexBoneAssignment {
	if subMesh.boneAssignmentsDirty {
		subMesh.boneAssignments = compileBoneAssignments(subMesh.boneAssignments)
		subMesh.boneAssignmentsDirty = false
	}
	return subMesh.boneAssignments
}

// HasBoneAssignments reports whether the submesh is skinned.
func (subMesh *SubMesh) HasBoneAssignments() bool {
	return len(subMesh.boneAssignments) > 0
}

// geometry returns the vertex data the submesh renders with.
func (subMesh *SubMesh) geometry() *VertexData {
	if subMesh.UseSharedVertices {
		return subMesh.parent.SharedVertexData
	}
	return subMesh.VertexData
}

// indexDataForLod returns the submesh's index data at the mesh detail level
// given, falling back to full detail where no generated level exists.
func (subMesh *SubMesh) indexDataForLod(level int) *IndexData {
	if level > 0 && level-1 < len(subMesh.lodFaceLists) && subMesh.lodFaceLists[level-1] != nil {
		return subMesh.lodFaceLists[level-1]
	}
	return subMesh.IndexData
}

// SetLodFaceList installs the replacement index data for generated mesh
// detail level (1-based).
func (subMesh *SubMesh) SetLodFaceList(level int, indexData *IndexData) error {
	if level < 1 {
		return newError(ErrInvalidArgument, "detail level %d is not a reduced level", level)
	}
	for len(subMesh.lodFaceLists) < level {
		subMesh.lodFaceLists = append(subMesh.lodFaceLists, nil)
	}
	subMesh.lodFaceLists[level-1] = indexData
	return nil
}

func (subMesh *SubMesh) clone(parent *Mesh) *SubMesh {
	out := &SubMesh{
		parent:            parent,
		MaterialName:      subMesh.MaterialName,
		UseSharedVertices: subMesh.UseSharedVertices,
		VertexData:        subMesh.VertexData.Clone(true),
		IndexData:         subMesh.IndexData.Clone(true),
		Topology:          subMesh.Topology,
	}
	out.boneAssignments = append(out.boneAssignments, subMesh.boneAssignments...)
	out.boneAssignmentsDirty = subMesh.boneAssignmentsDirty
	for _, lod := range subMesh.lodFaceLists {
		out.lodFaceLists = append(out.lodFaceLists, lod.Clone(true))
	}
	return out
}

// compileBoneAssignments normalizes per-vertex weights to sum to one and
// caps each vertex at maxBlendWeights influences, keeping the heaviest.
func compileBoneAssignments(assignments []VertexBoneAssignment) []VertexBoneAssignment {
	byVertex := map[uint32][]VertexBoneAssignment{}
	for _, assignment := range assignments {
		byVertex[assignment.VertexIndex] = append(byVertex[assignment.VertexIndex], assignment)
	}
	capped := false
	out := make([]VertexBoneAssignment, 0, len(assignments))
	for _, group := range byVertex {
		if len(group) > maxBlendWeights {
			sort.SliceStable(group, func(i, j int) bool { return group[i].Weight > group[j].Weight })
			group = group[:maxBlendWeights]
			capped = true
		}
		total := 0.0
		for _, assignment := range group {
			total += assignment.Weight
		}
		if total > 0 {
			for i := range group {
				group[i].Weight /= total
			}
		}
		out = append(out, group...)
	}
	if capped {
		logger.Warn("vertex bone assignments exceeded the blend weight limit; weakest influences dropped", "limit", maxBlendWeights)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VertexIndex != out[j].VertexIndex {
			return out[i].VertexIndex < out[j].VertexIndex
		}
		return out[i].Weight > out[j].Weight
	})
	return out
}

// MeshLodUsage describes one detail level of a Mesh: the user value at which
// it activates and, for manual levels, the replacement mesh to render.
type MeshLodUsage struct {
	// UserValue is the detail value (typically a distance) at which this
	// level takes over. Level 0 always has the lowest value.
	UserValue float64

	// ManualName names a replacement mesh for the level; empty for generated
	// levels that swap index data instead.
	ManualName string

	manualMesh *Mesh
}

// Mesh is the shape an Entity instances: optionally shared geometry, a set
// of submeshes, a skeleton link, morph animation data, and detail levels.
type Mesh struct {
	name string

	SharedVertexData *VertexData

	subMeshes []*SubMesh

	// subMeshNames maps optional submesh names to indices.
	subMeshNames map[string]int

	bounds      AxisAlignedBox
	boundRadius float64

	skeletonName string
	skeleton     *Skeleton

	sharedBoneAssignments      []VertexBoneAssignment
	sharedBoneAssignmentsDirty bool

	// animations holds the mesh's vertex (morph and pose) animations.
	animations map[string]*VertexAnimation
	poses      []*Pose

	lodLevels []MeshLodUsage

	// AutoBuildEdgeLists enables silhouette edge list construction for
	// stencil shadows when the mesh is prepared.
	AutoBuildEdgeLists bool

	edgeLists []*EdgeData
}

// NewMesh creates an empty Mesh with the name given and a single full-detail
// level.
func NewMesh(name string) *Mesh {
	return &Mesh{
		name:         name,
		subMeshNames: map[string]int{},
		bounds:       NewBoxNull(),
		animations:   map[string]*VertexAnimation{},
		lodLevels:    []MeshLodUsage{{}},
	}
}

// Name returns the mesh's name.
func (mesh *Mesh) Name() string { return mesh.name }

// CreateSubMesh appends a new SubMesh and returns it.
func (mesh *Mesh) CreateSubMesh() *SubMesh {
	subMesh := &SubMesh{parent: mesh, Topology: TopologyTriangleList}
	mesh.subMeshes = append(mesh.subMeshes, subMesh)
	return subMesh
}

// CreateSubMeshNamed appends a new named SubMesh and returns it. Names must
// be unique within the mesh.
func (mesh *Mesh) CreateSubMeshNamed(name string) (*SubMesh, error) {
	if _, taken := mesh.subMeshNames[name]; taken {
		return nil, newError(ErrDuplicateItem, "mesh %q already has a submesh named %q", mesh.name, name)
	}
	subMesh := mesh.CreateSubMesh()
	mesh.subMeshNames[name] = len(mesh.subMeshes) - 1
	return subMesh, nil
}

// SubMeshes returns the mesh's submeshes in creation order.
func (mesh *Mesh) SubMeshes() []*SubMesh { return mesh.subMeshes }

// SubMeshCount returns the number of submeshes.
func (mesh *Mesh) SubMeshCount() int { return len(mesh.subMeshes) }

// SubMesh returns the submesh at the index given, or nil if out of range.
func (mesh *Mesh) SubMesh(index int) *SubMesh {
	if index < 0 || index >= len(mesh.subMeshes) {
		return nil
	}
	return mesh.subMeshes[index]
}

// SubMeshIndex returns the index of the submesh named name.
func (mesh *Mesh) SubMeshIndex(name string) (int, error) {
	index, ok := mesh.subMeshNames[name]
	if !ok {
		return 0, newError(ErrItemNotFound, "mesh %q has no submesh named %q", mesh.name, name)
	}
	return index, nil
}

// SetBounds sets the mesh's local bounding box and radius. A radius of zero
// or less derives the radius from the box corners.
func (mesh *Mesh) SetBounds(box AxisAlignedBox, radius float64) {
	mesh.bounds = box
	if radius > 0 {
		mesh.boundRadius = radius
		return
	}
	if box.Extent == ExtentFinite {
		mesh.boundRadius = box.Min.Magnitude()
		if r := box.Max.Magnitude(); r > mesh.boundRadius {
			mesh.boundRadius = r
		}
	}
}

// UpdateBounds recomputes the mesh's bounds from every vertex stream it
// owns.
func (mesh *Mesh) UpdateBounds() {
	box := NewBoxNull()
	radius := 0.0
	note := func(data *VertexData) {
		if data == nil {
			return
		}
		b, r := data.Bounds()
		box = box.Merge(b)
		if r > radius {
			radius = r
		}
	}
	note(mesh.SharedVertexData)
	for _, subMesh := range mesh.subMeshes {
		if !subMesh.UseSharedVertices {
			note(subMesh.VertexData)
		}
	}
	mesh.bounds = box
	mesh.boundRadius = radius
}

// Bounds returns the mesh's local bounding box.
func (mesh *Mesh) Bounds() AxisAlignedBox { return mesh.bounds }

// BoundRadius returns the mesh's local bounding radius.
func (mesh *Mesh) BoundRadius() float64 { return mesh.boundRadius }

// SetSkeletonName links the mesh to the skeleton named name in its library.
func (mesh *Mesh) SetSkeletonName(name string) {
	mesh.skeletonName = name
}

// SkeletonName returns the linked skeleton's name, or empty.
func (mesh *Mesh) SkeletonName() string { return mesh.skeletonName }

// HasSkeleton reports whether the mesh links to a skeleton.
func (mesh *Mesh) HasSkeleton() bool {
	return mesh.skeletonName != "" || mesh.skeleton != nil
}

// SetSkeleton attaches the resolved skeleton to the mesh.
func (mesh *Mesh) SetSkeleton(skeleton *Skeleton) {
	mesh.skeleton = skeleton
	if skeleton != nil {
		mesh.skeletonName = skeleton.Name()
	}
}

// Skeleton returns the mesh's resolved skeleton, or nil.
func (mesh *Mesh) Skeleton() *Skeleton { return mesh.skeleton }

// AddSharedBoneAssignment records a bone influence for a shared-geometry
// vertex.
func (mesh *Mesh) AddSharedBoneAssignment(assignment VertexBoneAssignment) {
	mesh.sharedBoneAssignments = append(mesh.sharedBoneAssignments, assignment)
	mesh.sharedBoneAssignmentsDirty = true
}

// SharedBoneAssignments returns the compiled bone assignments for the shared
// geometry.
func (mesh *Mesh) SharedBoneAssignments() []VertexBoneAssignment {
	if mesh.sharedBoneAssignmentsDirty {
		mesh.sharedBoneAssignments = compileBoneAssignments(mesh.sharedBoneAssignments)
		mesh.sharedBoneAssignmentsDirty = false
	}
	return mesh.sharedBoneAssignments
}

// CreateVertexAnimation creates a morph or pose animation on the mesh.
func (mesh *Mesh) CreateVertexAnimation(name string, length float64) (*VertexAnimation, error) {
	if _, taken := mesh.animations[name]; taken {
		return nil, newError(ErrDuplicateItem, "mesh %q already has an animation named %q", mesh.name, name)
	}
	animation := newVertexAnimation(name, length)
	mesh.animations[name] = animation
	return animation, nil
}

// VertexAnimation returns the mesh animation named name.
func (mesh *Mesh) VertexAnimation(name string) (*VertexAnimation, error) {
	animation, ok := mesh.animations[name]
	if !ok {
		return nil, newError(ErrItemNotFound, "mesh %q has no animation named %q", mesh.name, name)
	}
	return animation, nil
}

// VertexAnimations returns the mesh's animations keyed by name.
func (mesh *Mesh) VertexAnimations() map[string]*VertexAnimation {
	return mesh.animations
}

// HasVertexAnimation reports whether the mesh carries morph or pose
// animation.
func (mesh *Mesh) HasVertexAnimation() bool { return len(mesh.animations) > 0 }

// CreatePose adds a named pose (a sparse set of vertex offsets) targeting
// the geometry index given, 0 meaning shared geometry and i+1 submesh i.
func (mesh *Mesh) CreatePose(name string, target uint16) *Pose {
	pose := &Pose{Name: name, Target: target, Offsets: map[uint32]Vector{}}
	mesh.poses = append(mesh.poses, pose)
	return pose
}

// Poses returns the mesh's poses in creation order.
func (mesh *Mesh) Poses() []*Pose { return mesh.poses }

// Pose returns the pose at the index given, or nil if out of range.
func (mesh *Mesh) Pose(index int) *Pose {
	if index < 0 || index >= len(mesh.poses) {
		return nil
	}
	return mesh.poses[index]
}

// LodLevelCount returns the number of detail levels, including full detail.
func (mesh *Mesh) LodLevelCount() int { return len(mesh.lodLevels) }

// LodLevel returns the usage record for the detail level given.
func (mesh *Mesh) LodLevel(level int) (MeshLodUsage, error) {
	if level < 0 || level >= len(mesh.lodLevels) {
		return MeshLodUsage{}, newError(ErrInvalidArgument, "mesh %q has no detail level %d", mesh.name, level)
	}
	return mesh.lodLevels[level], nil
}

// AddManualLodLevel appends a detail level that swaps in the named mesh
// above the user value provided. Values must arrive ascending.
func (mesh *Mesh) AddManualLodLevel(userValue float64, meshName string) error {
	last := mesh.lodLevels[len(mesh.lodLevels)-1]
	if userValue <= last.UserValue {
		return newError(ErrInvalidArgument, "detail values must increase; %v does not follow %v", userValue, last.UserValue)
	}
	mesh.lodLevels = append(mesh.lodLevels, MeshLodUsage{UserValue: userValue, ManualName: meshName})
	return nil
}

// AddGeneratedLodLevel appends a detail level driven by reduced index data
// installed per submesh with SetLodFaceList.
func (mesh *Mesh) AddGeneratedLodLevel(userValue float64) error {
	return mesh.AddManualLodLevel(userValue, "")
}

// LodIndex returns the detail level for the biased user value given: the
// highest level whose user value does not exceed it.
func (mesh *Mesh) LodIndex(value float64) int {
	index := 0
	for i := 1; i < len(mesh.lodLevels); i++ {
		if mesh.lodLevels[i].UserValue <= value {
			index = i
		}
	}
	return index
}

// resolveManualLod resolves the manual level meshes against the library
// provided.
func (mesh *Mesh) resolveManualLod(library *Library) {
	for i := range mesh.lodLevels {
		if name := mesh.lodLevels[i].ManualName; name != "" {
			mesh.lodLevels[i].manualMesh = library.Mesh(name)
			if mesh.lodLevels[i].manualMesh == nil {
				logger.Warn("manual detail level references a missing mesh", "mesh", mesh.name, "level", i, "manual", name)
			}
		}
	}
}

// EdgeList returns the silhouette edge data for the detail level given,
// building it on first use when AutoBuildEdgeLists is set.
func (mesh *Mesh) EdgeList(level int) *EdgeData {
	for len(mesh.edgeLists) < len(mesh.lodLevels) {
		mesh.edgeLists = append(mesh.edgeLists, nil)
	}
	if level < 0 || level >= len(mesh.edgeLists) {
		return nil
	}
	if mesh.edgeLists[level] == nil && mesh.AutoBuildEdgeLists {
		mesh.edgeLists[level] = buildEdgeData(mesh, level)
	}
	return mesh.edgeLists[level]
}

// Clone returns a deep copy of the mesh under the new name provided.
func (mesh *Mesh) Clone(name string) *Mesh {
	out := NewMesh(name)
	out.SharedVertexData = mesh.SharedVertexData.Clone(true)
	for _, subMesh := range mesh.subMeshes {
		out.subMeshes = append(out.subMeshes, subMesh.clone(out))
	}
	for subName, index := range mesh.subMeshNames {
		out.subMeshNames[subName] = index
	}
	out.bounds = mesh.bounds
	out.boundRadius = mesh.boundRadius
	out.skeletonName = mesh.skeletonName
	out.skeleton = mesh.skeleton
	out.sharedBoneAssignments = append(out.sharedBoneAssignments, mesh.sharedBoneAssignments...)
	out.sharedBoneAssignmentsDirty = mesh.sharedBoneAssignmentsDirty
	for animName, animation := range mesh.animations {
		out.animations[animName] = animation
	}
	out.poses = append(out.poses, mesh.poses...)
	out.lodLevels = append([]MeshLodUsage{}, mesh.lodLevels...)
	out.AutoBuildEdgeLists = mesh.AutoBuildEdgeLists
	return out
}
