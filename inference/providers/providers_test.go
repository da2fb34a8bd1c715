package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for _, b := range Backends {
		c := DefaultConfig()
		c.Backend = b
		assert.NoError(t, c.Validate(), b)
	}

	c := DefaultConfig()
	c.Backend = "tpu"
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.IntraOpThreads = -1
	assert.Error(t, c.Validate())
}

func TestOpenVINOOptionsToMap(t *testing.T) {
	m := DefaultOpenVINOOptions().ToMap()
	assert.Equal(t, "CPU", m["device_type"])
	assert.Equal(t, "FP32", m["precision"])
	assert.Equal(t, "false", m["disable_dynamic_shapes"])
	_, ok := m["num_of_threads"]
	assert.False(t, ok)

	o := DefaultOpenVINOOptions()
	o.NumOfThreads = 4
	require.Contains(t, o.ToMap(), "num_of_threads")
	assert.Equal(t, "4", o.ToMap()["num_of_threads"])
}

func TestGetSharedLibPath(t *testing.T) {
	assert.NotEmpty(t, GetSharedLibPath())
}
