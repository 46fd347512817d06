package trainer

import (
	"math"
	"testing"

	"github.com/go-logr/logr"

	"github.com/atmosml/tendlearn/griddata"
	"github.com/atmosml/tendlearn/tabular"
)

// syntheticFrames builds aligned single-axis frames with n rows where the
// target is a linear function of the feature: y = 2x with x in [0, 1).
func syntheticFrames(t *testing.T, n int) (*tabular.Frame, *tabular.Frame) {
	t.Helper()
	lon := make([]float64, n)
	xData := make([]float64, n)
	yData := make([]float64, n)
	for i := 0; i < n; i++ {
		lon[i] = float64(i)
		xData[i] = float64(i) / float64(n)
		yData[i] = 2 * xData[i]
	}
	ds := &griddata.Dataset{
		Path:   "synthetic.nc",
		Axes:   []string{"lon"},
		Coords: map[string][]float64{"lon": lon},
		Vars: map[string]*griddata.Variable{
			"x": {Name: "x", Dims: []string{"lon"}, Shape: []int{n}, Data: xData},
			"y": {Name: "y", Dims: []string{"lon"}, Shape: []int{n}, Data: yData},
		},
	}
	features, err := tabular.FromDataset(ds, []string{"x"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	targets, err := tabular.FromDataset(ds, []string{"y"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	return features, targets
}

// TestTrainerRunSynthetic runs the full training boundary against the real
// simplego backend on a tiny linear dataset: an unbounded shuffled training
// stream, two single-pass scoring streams, a few periods of SGD. The run
// must complete and report one finite RMSE per period for both curves.
func TestTrainerRunSynthetic(t *testing.T) {
	features, targets := syntheticFrames(t, 64)

	training, err := tabular.NewBatches(tabular.BatchConfig{
		Name:          "training",
		Features:      features,
		Targets:       targets,
		FeatureVars:   []string{"x"},
		TargetVars:    []string{"y"},
		BatchSize:     8,
		Shuffle:       true,
		ShuffleBuffer: 16,
		Seed:          7,
	})
	if err != nil {
		t.Fatalf("NewBatches(training) error: %v", err)
	}
	score := func(name string) *tabular.Batches {
		b, err := tabular.NewBatches(tabular.BatchConfig{
			Name:        name,
			Features:    features,
			Targets:     targets,
			FeatureVars: []string{"x"},
			TargetVars:  []string{"y"},
			BatchSize:   32,
			Repeat:      1,
		})
		if err != nil {
			t.Fatalf("NewBatches(%s) error: %v", name, err)
		}
		return b
	}

	const periods = 4
	tr, err := New(logr.Discard(), Config{
		HiddenLayers: []int{4},
		LearningRate: 0.01,
		Steps:        40,
		Periods:      periods,
	}, 1)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	res, err := tr.Run(training, score("training-score"), score("validation-score"))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.TrainingRMSE) != periods {
		t.Fatalf("got %d training RMSE values, want %d", len(res.TrainingRMSE), periods)
	}
	if len(res.ValidationRMSE) != periods {
		t.Fatalf("got %d validation RMSE values, want %d", len(res.ValidationRMSE), periods)
	}
	for i := 0; i < periods; i++ {
		for _, rmse := range []float64{res.TrainingRMSE[i], res.ValidationRMSE[i]} {
			if math.IsNaN(rmse) || math.IsInf(rmse, 0) || rmse < 0 {
				t.Fatalf("period %d: non-finite or negative RMSE %v", i, rmse)
			}
			// Targets live in [0, 2); anything beyond this bound means the
			// optimizer diverged rather than trained.
			if rmse > 10 {
				t.Fatalf("period %d: RMSE %v, training diverged", i, rmse)
			}
		}
	}
}

func TestTrainerConfigValidation(t *testing.T) {
	if _, err := New(logr.Discard(), Config{}, 0); err == nil {
		t.Fatal("expected error for non-positive target dimension")
	}
	if _, err := New(logr.Discard(), Config{Periods: -1}, 3); err == nil {
		t.Fatal("expected error for negative periods")
	}
	if _, err := New(logr.Discard(), Config{Steps: 10, Periods: 20}, 3); err == nil {
		t.Fatal("expected error for fewer steps than periods")
	}
}
