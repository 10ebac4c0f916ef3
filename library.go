package umbra3d

// Library is a collection of loadable resources — meshes, materials and
// skeletons — as created through code or loaded from a glTF file. Scene
// managers resolve resource names against their Library.
type Library struct {
	Meshes    map[string]*Mesh
	Materials map[string]*Material
	Skeletons map[string]*Skeleton
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{
		Meshes:    map[string]*Mesh{},
		Materials: map[string]*Material{},
		Skeletons: map[string]*Skeleton{},
	}
}

// Mesh returns the mesh named name, or nil.
func (lib *Library) Mesh(name string) *Mesh {
	return lib.Meshes[name]
}

// Material returns the material named name, or nil.
func (lib *Library) Material(name string) *Material {
	return lib.Materials[name]
}

// Skeleton returns the skeleton named name, or nil.
func (lib *Library) Skeleton(name string) *Skeleton {
	return lib.Skeletons[name]
}

// AddMesh registers the mesh under its name, resolving its skeleton link and
// manual detail levels against the library. Registering over an existing
// name fails.
func (lib *Library) AddMesh(mesh *Mesh) error {
	if _, taken := lib.Meshes[mesh.Name()]; taken {
		return newError(ErrDuplicateItem, "library already has a mesh named %q", mesh.Name())
	}
	lib.Meshes[mesh.Name()] = mesh
	if mesh.SkeletonName() != "" && mesh.Skeleton() == nil {
		if skeleton := lib.Skeleton(mesh.SkeletonName()); skeleton != nil {
			mesh.SetSkeleton(skeleton)
		} else {
			logger.Warn("mesh links to a skeleton the library does not hold", "mesh", mesh.Name(), "skeleton", mesh.SkeletonName())
		}
	}
	mesh.resolveManualLod(lib)
	return nil
}

// AddMaterial registers the material under its name. Registering over an
// existing name fails.
func (lib *Library) AddMaterial(material *Material) error {
	if _, taken := lib.Materials[material.Name]; taken {
		return newError(ErrDuplicateItem, "library already has a material named %q", material.Name)
	}
	material.library = lib
	lib.Materials[material.Name] = material
	return nil
}

// AddSkeleton registers the skeleton under its name, relinking any meshes
// waiting for it. Registering over an existing name fails.
func (lib *Library) AddSkeleton(skeleton *Skeleton) error {
	if _, taken := lib.Skeletons[skeleton.Name()]; taken {
		return newError(ErrDuplicateItem, "library already has a skeleton named %q", skeleton.Name())
	}
	lib.Skeletons[skeleton.Name()] = skeleton
	for _, mesh := range lib.Meshes {
		if mesh.SkeletonName() == skeleton.Name() && mesh.Skeleton() == nil {
			mesh.SetSkeleton(skeleton)
		}
	}
	return nil
}

// Merge moves every resource of other into the library, skipping (with a
// warning) any name already taken.
func (lib *Library) Merge(other *Library) {
	for _, skeleton := range other.Skeletons {
		if err := lib.AddSkeleton(skeleton); err != nil {
			logger.Warn("skipping library skeleton on merge", "skeleton", skeleton.Name(), "error", err)
		}
	}
	for _, material := range other.Materials {
		if err := lib.AddMaterial(material); err != nil {
			logger.Warn("skipping library material on merge", "material", material.Name, "error", err)
		}
	}
	for _, mesh := range other.Meshes {
		if err := lib.AddMesh(mesh); err != nil {
			logger.Warn("skipping library mesh on merge", "mesh", mesh.Name(), "error", err)
		}
	}
}
