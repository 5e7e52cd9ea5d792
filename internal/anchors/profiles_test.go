package anchors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	priors, err := ByName("voc")
	require.NoError(t, err)
	assert.Len(t, priors, 8732)

	priors, err = ByName("efficientdet-d1")
	require.NoError(t, err)
	assert.Len(t, priors, 76725)
}

func TestByNameUnknown(t *testing.T) {
	for _, name := range []string{"", "yolo", "efficientdet-d9", "efficientdet-dx", "VOC"} {
		_, err := ByName(name)
		require.ErrorIs(t, err, ErrUnknownProfile, "name %q", name)
	}
}

func TestNamesAreBuiltin(t *testing.T) {
	names := Names()
	require.Len(t, names, 9)
	for _, name := range names {
		assert.True(t, IsBuiltin(name), name)
		_, err := ByName(name)
		assert.NoError(t, err, name)
	}
	assert.False(t, IsBuiltin("imagenet"))
}

func TestVOCClassNames(t *testing.T) {
	names := VOCClassNames()
	require.Len(t, names, 21)
	assert.Equal(t, "background", names[0])
	assert.Equal(t, "tvmonitor", names[20])
}
