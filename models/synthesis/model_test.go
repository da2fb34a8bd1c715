package synthesis

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-anomaly/models/model"
	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/nvr-ai/go-anomaly/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeFeedsLabelsInstanceAndImage(t *testing.T) {
	o := DefaultOptions()
	o.Path = "synthesis.onnx"
	o.Width, o.Height = 2, 2
	generated := []float32{-1, 1, 0, 0.5, -1, 1, 0, 0.5, -1, 1, 0, 0.5}
	runner := &test.Runner{Outputs: [][]float32{generated}}
	m := NewModelWithRunner(o, runner)

	label := tensors.NewLabelMap(2, 2)
	label.Data = []int{7, 35, 26, 7}
	img, err := tensors.NewVolume(3, 2, 2, make([]float32, 12))
	require.NoError(t, err)

	out, err := m.Synthesize(context.Background(), model.SynthesisInput{
		Label:    label,
		Instance: label.Clone(),
		Image:    img,
	})
	require.NoError(t, err)
	assert.Equal(t, generated, out.Data())

	require.Len(t, runner.Calls, 1)
	call := runner.Calls[0]
	require.Len(t, call, 3)
	assert.Equal(t, []float32{7, 35, 26, 7}, call[0])
	assert.Equal(t, call[0], call[1])
	assert.Len(t, call[2], 12)
}

func TestSynthesizeRejectsMisalignedLabels(t *testing.T) {
	o := DefaultOptions()
	o.Path = "synthesis.onnx"
	o.Width, o.Height = 2, 2
	m := NewModelWithRunner(o, &test.Runner{})

	img, err := tensors.NewVolume(3, 2, 2, make([]float32, 12))
	require.NoError(t, err)
	_, err = m.Synthesize(context.Background(), model.SynthesisInput{
		Label:    tensors.NewLabelMap(4, 2),
		Instance: tensors.NewLabelMap(2, 2),
		Image:    img,
	})
	assert.True(t, errors.Is(err, tensors.ErrShapeMismatch))
}
