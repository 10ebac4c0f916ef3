package umbra3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovableFactoryCreation(t *testing.T) {
	manager := NewSceneManager("Test")

	object, err := manager.CreateMovableObject("Sparks", "BillboardSet", NameValueMap{"poolSize": "5"})
	require.NoError(t, err)
	set, ok := object.(*BillboardSet)
	require.True(t, ok)
	assert.Equal(t, "Sparks", set.Name())
	for i := 0; i < 5; i++ {
		require.NotNil(t, set.CreateBillboard(Vector{}))
	}
	assert.Nil(t, set.CreateBillboard(Vector{}))

	_, err = manager.CreateMovableObject("Sparks", "BillboardSet", nil)
	assert.True(t, IsKind(err, ErrDuplicateItem))

	_, err = manager.CreateMovableObject("X", "Teleporter", nil)
	assert.True(t, IsKind(err, ErrItemNotFound))

	_, err = manager.CreateMovableObject("Bad", "ParticleSystem", NameValueMap{"quota": "many"})
	assert.True(t, IsKind(err, ErrInvalidArgument))
}

func TestMovableFactoryAutoNames(t *testing.T) {
	manager := NewSceneManager("Test")

	first, err := manager.CreateMovableObject("", "ParticleSystem", nil)
	require.NoError(t, err)
	second, err := manager.CreateMovableObject("", "ParticleSystem", nil)
	require.NoError(t, err)
	assert.Equal(t, "ParticleSystem1", first.Name())
	assert.Equal(t, "ParticleSystem2", second.Name())

	found, err := manager.MovableObject("ParticleSystem2", "ParticleSystem")
	require.NoError(t, err)
	assert.Same(t, second, found)
}

func TestDestroyMovableObjectDetaches(t *testing.T) {
	manager := NewSceneManager("Test")

	object, err := manager.CreateMovableObject("Dust", "BillboardSet", nil)
	require.NoError(t, err)
	node, err := manager.RootSceneNode().CreateChildSceneNode("Dust/Node")
	require.NoError(t, err)
	require.NoError(t, node.AttachObject(object))

	require.NoError(t, manager.DestroyMovableObject("Dust", "BillboardSet"))
	assert.Equal(t, 0, node.AttachedObjectCount())
	assert.False(t, object.IsAttached())

	_, err = manager.MovableObject("Dust", "BillboardSet")
	assert.True(t, IsKind(err, ErrItemNotFound))
}

type turretFactory struct{}

func (turretFactory) Type() string { return "Turret" }

func (turretFactory) CreateInstance(name string, creator *SceneManager, params NameValueMap) (MovableObject, error) {
	set := NewBillboardSet(name, 1)
	set.setCreator(creator)
	return set, nil
}

func TestRegisterMovableFactory(t *testing.T) {
	manager := NewSceneManager("Test")
	require.NoError(t, manager.RegisterMovableFactory(turretFactory{}))

	err := manager.RegisterMovableFactory(turretFactory{})
	assert.True(t, IsKind(err, ErrDuplicateItem))

	object, err := manager.CreateMovableObject("", "Turret", nil)
	require.NoError(t, err)
	assert.Equal(t, "Turret1", object.Name())
}
