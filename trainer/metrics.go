package trainer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMSE returns the root-mean-squared-error between predictions and targets:
// sqrt(mean((p_i - t_i)^2)). The two slices must have equal, non-zero
// length. RMSE of a vector against itself is 0.
func RMSE(predictions, targets []float64) (float64, error) {
	if len(predictions) != len(targets) {
		return 0, fmt.Errorf("predictions and targets have different lengths: %d vs %d",
			len(predictions), len(targets))
	}
	if len(predictions) == 0 {
		return 0, fmt.Errorf("cannot compute RMSE of empty vectors")
	}
	// Distance with L2 norm is sqrt(sum((p-t)^2)).
	return floats.Distance(predictions, targets, 2) / math.Sqrt(float64(len(predictions))), nil
}
