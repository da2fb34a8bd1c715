package evaluation

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKnownValues(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		classes []bool
		want    Metrics
	}{
		{
			name:    "perfect",
			scores:  []float64{0.1, 0.2, 0.8, 0.9},
			classes: []bool{false, false, true, true},
			want:    Metrics{AP: 1, FPR95: 0, AUROC: 1, Pixels: 4},
		},
		{
			name:    "one inversion",
			scores:  []float64{0.1, 0.4, 0.35, 0.8},
			classes: []bool{false, false, true, true},
			want:    Metrics{AP: 5.0 / 6, FPR95: 0.5, AUROC: 0.75, Pixels: 4},
		},
		{
			name:    "inverted",
			scores:  []float64{0.9, 0.8, 0.2, 0.1},
			classes: []bool{false, false, true, true},
			want:    Metrics{AP: 5.0 / 12, FPR95: 1, AUROC: 0, Pixels: 4},
		},
		{
			name:    "all tied",
			scores:  []float64{0.5, 0.5, 0.5, 0.5},
			classes: []bool{false, true, false, true},
			want:    Metrics{AP: 0.5, FPR95: 1, AUROC: 0.5, Pixels: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.scores, tt.classes)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.AP, got.AP, 1e-9)
			assert.InDelta(t, tt.want.FPR95, got.FPR95, 1e-9)
			assert.InDelta(t, tt.want.AUROC, got.AUROC, 1e-9)
			assert.Equal(t, tt.want.Pixels, got.Pixels)
		})
	}
}

func TestComputeDoesNotReorderInput(t *testing.T) {
	scores := []float64{0.9, 0.1}
	_, err := Compute(scores, []bool{true, false})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)
}

func TestComputeNeedsBothClasses(t *testing.T) {
	_, err := Compute([]float64{0.1, 0.2}, []bool{true, true})
	assert.Error(t, err)
	_, err = Compute([]float64{0.1}, []bool{true, false})
	assert.Error(t, err)
}

func TestAccumulatorSkipsVoid(t *testing.T) {
	score, err := tensors.NewPlaneFrom(3, 2, []float32{0.9, 0.1, 0.99, 0.2, 0.8, 0.05})
	require.NoError(t, err)
	mask := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(mask.Pix, []uint8{1, 0, Void, 0, 1, 0})

	var acc Accumulator
	require.NoError(t, acc.Add(score, mask))
	assert.Equal(t, 5, acc.Len())

	m, err := acc.Compute()
	require.NoError(t, err)
	assert.InDelta(t, 1, m.AUROC, 1e-9)
	assert.Equal(t, "AP 100.00%  FPR@95%TPR 0.00%  AUROC 100.00%", m.String())
}

func TestAccumulatorRejectsBadMasks(t *testing.T) {
	var acc Accumulator
	score := tensors.NewPlane(2, 2)

	err := acc.Add(score, image.NewGray(image.Rect(0, 0, 3, 2)))
	assert.True(t, errors.Is(err, tensors.ErrShapeMismatch))

	mask := image.NewGray(image.Rect(0, 0, 2, 2))
	mask.Pix[3] = 7
	assert.Error(t, acc.Add(score, mask))
}
