package trainer

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// modelGraph builds the feed-forward regressor: one dense ReLU layer per
// configured hidden width, then a linear output layer with one unit per
// target variable. inputs[0] is shaped [batch, featureDim]; the returned
// node is [batch, targetDim].
func (t *Trainer) modelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec // The pipeline feeds a single fixed dataset shape.
	x := inputs[0]
	ctx = ctx.In("model")
	for i, width := range t.cfg.HiddenLayers {
		x = layers.DenseWithBias(ctx.Inf("hidden_%d", i), x, width)
		x = activations.Relu(x)
	}
	x = layers.DenseWithBias(ctx.In("output"), x, t.targetDim)
	return []*Node{x}
}
