// Command tendlearn trains a feed-forward neural network to predict
// atmospheric time-tendency forcings from climate-model flow variables.
//
// It loads two NetCDF datasets (flow variables and tendency forcings),
// tabularizes them over their shared coordinates, splits by longitude into
// training/validation/testing subsets, and trains a gomlx regressor with
// mini-batch SGD, printing training RMSE per period and the final training
// and validation RMSE.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"

	"github.com/atmosml/tendlearn/griddata"
	"github.com/atmosml/tendlearn/tabular"
	"github.com/atmosml/tendlearn/trainer"
)

// The physical variables the pipeline depends on. Features come from the
// flow dataset, targets from the tendency-forcing dataset; both share the
// same coordinate variables.
var (
	featureVars = []string{"PS", "T", "U", "V"}
	targetVars  = []string{"PTTEND", "PUTEND", "PVTEND"}
	coordVars   = []string{"time", "lev", "lat", "lon"}
)

type options struct {
	flows         string
	tendencies    string
	layers        string
	steps         int
	periods       int
	batchSize     int
	scoreBatch    int
	learningRate  float64
	clipStep      float64
	shuffleBuffer int
	seed          int64
	plot          string
}

func main() {
	var opts options
	flag.StringVar(&opts.flows, "flows", "", "NetCDF file containing flow variables (required)")
	flag.StringVar(&opts.tendencies, "tendencies", "", "NetCDF file containing time tendency forcing variables (required)")
	flag.StringVar(&opts.layers, "layers", "", "comma-separated hidden layer widths, e.g. '64,32' (empty = linear model)")
	flag.IntVar(&opts.steps, "steps", 500, "total number of training steps, spread evenly over periods")
	flag.IntVar(&opts.periods, "periods", 20, "number of periods; loss metrics are reported after each")
	flag.IntVar(&opts.batchSize, "batch-size", 10, "training batch size")
	flag.IntVar(&opts.scoreBatch, "score-batch", 4096, "batch size used when scoring the full subsets")
	flag.Float64Var(&opts.learningRate, "learning-rate", 0.001, "SGD learning rate")
	flag.Float64Var(&opts.clipStep, "clip-step", 5.0, "optimizer step clipping bound (negative disables)")
	flag.IntVar(&opts.shuffleBuffer, "shuffle-buffer", tabular.DefaultShuffleBuffer, "size of the shuffle reservoir in rows")
	flag.Int64Var(&opts.seed, "seed", 0, "seed for batch shuffling (0 = time-based)")
	flag.StringVar(&opts.plot, "plot", "", "if set, write an RMSE-vs-period PNG to this path")
	klog.InitFlags(nil)
	flag.Parse()

	logger := klog.Background()
	if err := run(logger, opts); err != nil {
		logger.Error(err, "failed to complete")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func run(logger logr.Logger, opts options) error {
	start := time.Now()
	logger.Info("start", "time", start.Format(time.DateTime))

	if opts.flows == "" || opts.tendencies == "" {
		flag.Usage()
		return fmt.Errorf("both -flows and -tendencies are required")
	}
	hidden, err := parseLayers(opts.layers)
	if err != nil {
		return fmt.Errorf("invalid -layers value %q: %w", opts.layers, err)
	}

	// Load only the variables the pipeline consumes; anything else in the
	// files is never read.
	flows, err := griddata.Load(opts.flows, featureVars, coordVars)
	if err != nil {
		return err
	}
	logger.Info("loaded flow dataset", "path", opts.flows,
		"time", flows.AxisLen("time"), "lev", flows.AxisLen("lev"),
		"lat", flows.AxisLen("lat"), "lon", flows.AxisLen("lon"))

	tendencies, err := griddata.Load(opts.tendencies, targetVars, coordVars)
	if err != nil {
		return err
	}
	logger.Info("loaded tendency dataset", "path", opts.tendencies,
		"time", tendencies.AxisLen("time"), "lev", tendencies.AxisLen("lev"),
		"lat", tendencies.AxisLen("lat"), "lon", tendencies.AxisLen("lon"))

	features, err := tabular.FromDataset(flows, featureVars)
	if err != nil {
		return err
	}
	targets, err := tabular.FromDataset(tendencies, targetVars)
	if err != nil {
		return err
	}
	if err := tabular.CheckAligned(features, targets); err != nil {
		return fmt.Errorf("flow and tendency datasets are misaligned: %w", err)
	}

	// Split along longitude: every other longitude trains, the remaining
	// quarters validate and test.
	trainIdx, valIdx, testIdx := tabular.LongitudeSplit(features.AxisLen("lon"))
	subsets := make(map[string][2]*tabular.Frame, 3)
	for _, s := range []struct {
		name    string
		indices []int
	}{
		{"training", trainIdx},
		{"validation", valIdx},
		{"testing", testIdx},
	} {
		f, err := features.Subset("lon", s.indices)
		if err != nil {
			return fmt.Errorf("failed to select %s features: %w", s.name, err)
		}
		t, err := targets.Subset("lon", s.indices)
		if err != nil {
			return fmt.Errorf("failed to select %s targets: %w", s.name, err)
		}
		subsets[s.name] = [2]*tabular.Frame{f, t}
		logger.Info("split subset", "name", s.name, "longitudes", len(s.indices), "rows", f.Rows())
	}

	training, err := tabular.NewBatches(tabular.BatchConfig{
		Name:          "training",
		Features:      subsets["training"][0],
		Targets:       subsets["training"][1],
		FeatureVars:   featureVars,
		TargetVars:    targetVars,
		BatchSize:     opts.batchSize,
		Shuffle:       true,
		ShuffleBuffer: opts.shuffleBuffer,
		Seed:          opts.seed,
	})
	if err != nil {
		return err
	}
	trainScore, err := tabular.NewBatches(tabular.BatchConfig{
		Name:        "training-score",
		Features:    subsets["training"][0],
		Targets:     subsets["training"][1],
		FeatureVars: featureVars,
		TargetVars:  targetVars,
		BatchSize:   opts.scoreBatch,
		Repeat:      1,
	})
	if err != nil {
		return err
	}
	valScore, err := tabular.NewBatches(tabular.BatchConfig{
		Name:        "validation-score",
		Features:    subsets["validation"][0],
		Targets:     subsets["validation"][1],
		FeatureVars: featureVars,
		TargetVars:  targetVars,
		BatchSize:   opts.scoreBatch,
		Repeat:      1,
	})
	if err != nil {
		return err
	}

	t, err := trainer.New(logger, trainer.Config{
		HiddenLayers: hidden,
		LearningRate: opts.learningRate,
		ClipStep:     opts.clipStep,
		Steps:        opts.steps,
		Periods:      opts.periods,
	}, len(targetVars))
	if err != nil {
		return err
	}
	res, err := t.Run(training, trainScore, valScore)
	if err != nil {
		return err
	}

	if opts.plot != "" {
		if err := trainer.PlotRMSE(opts.plot, res); err != nil {
			return err
		}
		logger.Info("wrote loss plot", "path", opts.plot)
	}

	end := time.Now()
	logger.Info("end", "time", end.Format(time.DateTime), "elapsed", end.Sub(start).String())
	return nil
}

// parseLayers parses a comma-separated list of positive hidden layer widths.
func parseLayers(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	widths := make([]int, 0, len(parts))
	for _, part := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid layer width %q", part)
		}
		if w <= 0 {
			return nil, fmt.Errorf("layer width must be positive, got %d", w)
		}
		widths = append(widths, w)
	}
	return widths, nil
}
