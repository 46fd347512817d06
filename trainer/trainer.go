// Package trainer drives the external gomlx estimator over the prepared
// batch sequences: it builds the feed-forward regressor, runs mini-batch SGD
// in periods, and scores training and validation RMSE after each period.
//
// The package owns only the boundary: model construction, optimization,
// batching execution and loss computation all happen inside gomlx.
package trainer

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"

	"github.com/atmosml/tendlearn/tabular"
)

// Config holds the estimator hyperparameters.
type Config struct {
	// HiddenLayers lists the width of each hidden layer, in order. Empty
	// means a linear model.
	HiddenLayers []int

	// LearningRate for SGD. Defaults to 0.001.
	LearningRate float64

	// ClipStep bounds the magnitude of each optimizer step, the safeguard
	// against gradient blow-up during training. Defaults to 5.0; negative
	// disables clipping.
	ClipStep float64

	// Steps is the total number of training steps, spread evenly over
	// Periods. Defaults: 500 steps, 20 periods.
	Steps   int
	Periods int
}

// Result holds the per-period loss curves.
type Result struct {
	TrainingRMSE   []float64
	ValidationRMSE []float64
}

// Trainer wraps a gomlx backend, context and training loop for one model.
type Trainer struct {
	cfg       Config
	targetDim int
	logger    logr.Logger

	backend   backends.Backend
	ctx       *context.Context
	loop      *train.Loop
	inference *context.Exec
}

// New creates a trainer for a regressor with targetDim outputs. The model
// variables live in a fresh gomlx context; they are created on the first
// training step.
func New(logger logr.Logger, cfg Config, targetDim int) (*Trainer, error) {
	if targetDim <= 0 {
		return nil, fmt.Errorf("target dimension must be positive, got %d", targetDim)
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.ClipStep == 0 {
		cfg.ClipStep = 5.0
	}
	if cfg.Steps == 0 {
		cfg.Steps = 500
	}
	if cfg.Periods == 0 {
		cfg.Periods = 20
	}
	if cfg.Periods < 1 {
		return nil, fmt.Errorf("periods must be positive, got %d", cfg.Periods)
	}
	if cfg.Steps < cfg.Periods {
		return nil, fmt.Errorf("steps (%d) must be at least the number of periods (%d)", cfg.Steps, cfg.Periods)
	}

	backend, err := simplego.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create gomlx backend: %w", err)
	}

	ctx := context.New()
	ctx.SetParam(optimizers.ParamOptimizer, "sgd")
	ctx.SetParam(optimizers.ParamLearningRate, cfg.LearningRate)
	if cfg.ClipStep > 0 {
		ctx.SetParam(optimizers.ParamClipStepByValue, cfg.ClipStep)
	}

	t := &Trainer{
		cfg:       cfg,
		targetDim: targetDim,
		logger:    logger,
		backend:   backend,
		ctx:       ctx,
	}
	gomlxTrainer := train.NewTrainer(backend, ctx, t.modelGraph,
		losses.MeanSquaredError,
		optimizers.FromContext(ctx),
		nil, // trainMetrics
		nil) // evalMetrics
	t.loop = train.NewLoop(gomlxTrainer)
	return t, nil
}

// Run trains for the configured number of steps, pausing after each period
// to score RMSE on the full training and validation sets. training must be
// an unbounded shuffled sequence; trainScore and valScore must be ordered
// single-pass sequences over their full subsets. Metric lines go to stdout;
// anything gomlx panics with is converted into an error for the caller to
// log and exit on.
func (t *Trainer) Run(training, trainScore, valScore *tabular.Batches) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("training failed: %v", r)
		}
	}()

	stepsPerPeriod := t.cfg.Steps / t.cfg.Periods
	res = &Result{
		TrainingRMSE:   make([]float64, 0, t.cfg.Periods),
		ValidationRMSE: make([]float64, 0, t.cfg.Periods),
	}

	fmt.Println("Training model...")
	fmt.Println("RMSE (on training data):")
	for period := 0; period < t.cfg.Periods; period++ {
		// Train from the prior state; variables persist in the context.
		if _, err := t.loop.RunSteps(training, stepsPerPeriod); err != nil {
			return nil, fmt.Errorf("training failed at period %d: %w", period, err)
		}

		trainRMSE, err := t.score(trainScore)
		if err != nil {
			return nil, fmt.Errorf("failed to score training set at period %d: %w", period, err)
		}
		valRMSE, err := t.score(valScore)
		if err != nil {
			return nil, fmt.Errorf("failed to score validation set at period %d: %w", period, err)
		}

		fmt.Printf("  period %02d : %0.2f\n", period, trainRMSE)
		t.logger.V(1).Info("period complete",
			"period", period, "trainingRMSE", trainRMSE, "validationRMSE", valRMSE)

		res.TrainingRMSE = append(res.TrainingRMSE, trainRMSE)
		res.ValidationRMSE = append(res.ValidationRMSE, valRMSE)
	}
	fmt.Println("Model training finished.")
	fmt.Printf("Final RMSE (on training data):   %0.2f\n", res.TrainingRMSE[len(res.TrainingRMSE)-1])
	fmt.Printf("Final RMSE (on validation data): %0.2f\n", res.ValidationRMSE[len(res.ValidationRMSE)-1])
	return res, nil
}

// score runs one ordered pass over the sequence, collecting predictions
// row-for-row against the labels, and returns the RMSE over all target
// columns flattened together.
func (t *Trainer) score(ds *tabular.Batches) (float64, error) {
	if t.inference == nil {
		// Built lazily: the model variables must exist before the context
		// can be reused for inference.
		exec, err := context.NewExec(t.backend, t.ctx.Reuse(),
			func(ctx *context.Context, input *graph.Node) *graph.Node {
				return t.modelGraph(ctx, nil, []*graph.Node{input})[0]
			})
		if err != nil {
			return 0, fmt.Errorf("failed to build inference executor: %w", err)
		}
		t.inference = exec
	}

	ds.Reset()
	preds := make([]float64, 0, ds.Rows()*t.targetDim)
	targets := make([]float64, 0, ds.Rows()*t.targetDim)
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		outs, err := t.inference.Exec(inputs[0])
		if err != nil {
			return 0, fmt.Errorf("inference failed: %w", err)
		}
		preds = appendWidened(preds, tensors.CopyFlatData[float32](outs[0]))
		targets = appendWidened(targets, tensors.CopyFlatData[float32](labels[0]))
	}
	return RMSE(preds, targets)
}

func appendWidened(dst []float64, src []float32) []float64 {
	for _, v := range src {
		dst = append(dst, float64(v))
	}
	return dst
}
