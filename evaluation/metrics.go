// Package evaluation - Pixel-level anomaly detection metrics: average precision,
// FPR at 95% TPR and AUROC.
package evaluation

import (
	"fmt"
	"image"

	"github.com/nvr-ai/go-anomaly/tensors"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

const (
	// Normal marks in-distribution pixels in a ground-truth mask.
	Normal = 0
	// Anomalous marks anomaly pixels.
	Anomalous = 1
	// Void marks pixels excluded from evaluation.
	Void = 255
)

// TargetTPR is the recall at which the false positive rate is reported.
const TargetTPR = 0.95

// Metrics are the benchmark figures, each in [0, 1].
type Metrics struct {
	AP     float64 `json:"ap"`
	FPR95  float64 `json:"fpr_at_95_tpr"`
	AUROC  float64 `json:"auroc"`
	Pixels int     `json:"pixels"`
}

// String formats the metrics as percentages.
func (m Metrics) String() string {
	return fmt.Sprintf("AP %.2f%%  FPR@95%%TPR %.2f%%  AUROC %.2f%%",
		100*m.AP, 100*m.FPR95, 100*m.AUROC)
}

// Accumulator collects scored pixels across images.
type Accumulator struct {
	scores  []float64
	classes []bool
}

// Add appends every non-void pixel of one image.
//
// Arguments:
//   - score: The anomaly score map.
//   - mask: The ground truth at the same size; 0 normal, 1 anomalous, 255 void.
//
// Returns:
//   - error: ErrShapeMismatch (wrapped) on a size mismatch, or an error on an unknown
//     mask value.
func (a *Accumulator) Add(score *tensors.Plane, mask *image.Gray) error {
	if score == nil || mask == nil {
		return errors.New("score and mask are required")
	}
	b := mask.Bounds()
	if err := score.CheckSize("score", b.Dx(), b.Dy()); err != nil {
		return err
	}
	for y := 0; y < b.Dy(); y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()]
		for x, v := range row {
			switch v {
			case Void:
				continue
			case Normal, Anomalous:
				a.scores = append(a.scores, float64(score.At(x, y)))
				a.classes = append(a.classes, v == Anomalous)
			default:
				return errors.Errorf("mask value %d at (%d, %d) is not 0, 1 or 255", v, x, y)
			}
		}
	}
	return nil
}

// Len returns the number of collected pixels.
func (a *Accumulator) Len() int {
	return len(a.scores)
}

// Compute evaluates the collected pixels.
//
// Returns:
//   - Metrics: AP, FPR@95%TPR and AUROC.
//   - error: An error when either class is absent.
func (a *Accumulator) Compute() (Metrics, error) {
	return Compute(a.scores, a.classes)
}

// Compute evaluates scores against binary ground truth. Higher scores mean anomalous.
//
// Arguments:
//   - scores: One score per pixel; not modified.
//   - classes: True for anomalous pixels.
//
// Returns:
//   - Metrics: AP, FPR@95%TPR and AUROC.
//   - error: An error on a length mismatch or when either class is absent.
func Compute(scores []float64, classes []bool) (Metrics, error) {
	if len(scores) != len(classes) {
		return Metrics{}, errors.Errorf("%d scores for %d labels", len(scores), len(classes))
	}
	positives := 0
	for _, c := range classes {
		if c {
			positives++
		}
	}
	if positives == 0 || positives == len(classes) {
		return Metrics{}, errors.Errorf("need both classes, got %d anomalous of %d pixels",
			positives, len(classes))
	}

	// stat.ROC needs ascending scores.
	y := append([]float64(nil), scores...)
	idx := make([]int, len(y))
	floats.Argsort(y, idx)
	sorted := make([]bool, len(classes))
	for i, j := range idx {
		sorted[i] = classes[j]
	}

	tpr, fpr, _ := stat.ROC(nil, y, sorted, nil)

	return Metrics{
		AP:     averagePrecision(y, sorted, positives),
		FPR95:  fprAtTPR(tpr, fpr, TargetTPR),
		AUROC:  integrate.Trapezoidal(fpr, tpr),
		Pixels: len(y),
	}, nil
}

// averagePrecision is Σ (R_k - R_{k-1}) P_k over descending score thresholds, with
// tied scores forming one threshold.
func averagePrecision(ascending []float64, classes []bool, positives int) float64 {
	var ap float64
	tp, fp := 0, 0
	prevRecall := 0.0
	for i := len(ascending) - 1; i >= 0; {
		j := i
		for ; j >= 0 && ascending[j] == ascending[i]; j-- {
			if classes[j] {
				tp++
			} else {
				fp++
			}
		}
		recall := float64(tp) / float64(positives)
		precision := float64(tp) / float64(tp+fp)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		i = j
	}
	return ap
}

// fprAtTPR returns the false positive rate at the first operating point whose true
// positive rate reaches target.
func fprAtTPR(tpr, fpr []float64, target float64) float64 {
	for i, t := range tpr {
		if t >= target {
			return fpr[i]
		}
	}
	return 1
}
