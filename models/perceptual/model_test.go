package perceptual

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifference(t *testing.T) {
	o := DefaultOptions()
	o.Path = "vgg19.onnx"
	o.Width, o.Height = 2, 1
	runner := &test.Runner{Outputs: [][]float32{{0.5, 3}}}
	m := NewModelWithRunner(o, runner)

	a, err := tensors.NewVolume(3, 1, 2, make([]float32, 6))
	require.NoError(t, err)
	b, err := tensors.NewVolume(3, 1, 2, []float32{1, 1, 1, 1, 1, 1})
	require.NoError(t, err)

	diff, err := m.Difference(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 3}, diff.Data)
	require.Len(t, runner.Calls[0], 2)
	assert.Equal(t, b.Data(), runner.Calls[0][1])

	require.NoError(t, m.Close())
	assert.True(t, runner.Closed)
}
