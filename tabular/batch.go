package tabular

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// DefaultShuffleBuffer is the number of rows the shuffle reservoir holds
// when BatchConfig.ShuffleBuffer is zero.
const DefaultShuffleBuffer = 10000

// BatchConfig describes one batch-producing sequence over a pair of aligned
// feature and target frames. Everything the sequence needs is named here
// explicitly rather than captured in closures, so the same construction can
// be reused for the shuffled training stream and the ordered scoring passes.
type BatchConfig struct {
	// Name identifies the sequence in training-loop output.
	Name string

	// Features and Targets are the aligned frames to draw rows from.
	Features *Frame
	Targets  *Frame

	// FeatureVars and TargetVars give the column order of the emitted
	// feature and label tensors.
	FeatureVars []string
	TargetVars  []string

	// BatchSize is the maximum rows per batch; the last batch of an epoch
	// may be short.
	BatchSize int

	// Shuffle randomizes row order independently per epoch using a bounded
	// reservoir of ShuffleBuffer rows. With a buffer smaller than the row
	// count the randomization is approximate, trading shuffle quality for
	// memory; every row still appears exactly once per completed epoch.
	Shuffle       bool
	ShuffleBuffer int

	// Repeat is the number of full passes over the rows before the sequence
	// ends. Zero means repeat indefinitely; the consumer must stop pulling.
	Repeat int

	// Seed for the shuffle reservoir. Zero selects a time-based seed.
	Seed int64
}

// Batches is a lazy, restartable sequence of (feature, label) tensor batches
// over two aligned frames. It implements the gomlx train.Dataset interface:
// Yield produces the next batch, returning io.EOF once the configured number
// of passes is complete, and Reset restarts the sequence from scratch.
type Batches struct {
	name      string
	features  []float32 // rows × featureDim, row-major
	targets   []float32 // rows × targetDim, row-major
	rows      int
	featDim   int
	targetDim int

	batchSize int
	shuffle   bool
	bufSize   int
	repeat    int
	rng       *rand.Rand

	// Epoch iteration state.
	next       int   // next row index not yet placed in the reservoir
	buf        []int // shuffle reservoir; unused when shuffle is off
	epochsDone int
	finished   bool
}

// NewBatches validates the configuration and materializes the feature and
// target matrices in column order. Feature and target frames must have the
// same number of rows; a mismatch is a hard error since batching misaligned
// tables would silently corrupt training.
func NewBatches(cfg BatchConfig) (*Batches, error) {
	if cfg.Features == nil || cfg.Targets == nil {
		return nil, fmt.Errorf("batch config %q: features and targets are required", cfg.Name)
	}
	if cfg.Features.Rows() != cfg.Targets.Rows() {
		return nil, fmt.Errorf("batch config %q: feature rows %d != target rows %d",
			cfg.Name, cfg.Features.Rows(), cfg.Targets.Rows())
	}
	if cfg.Features.Rows() == 0 {
		return nil, fmt.Errorf("batch config %q: no rows", cfg.Name)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch config %q: batch size must be positive, got %d", cfg.Name, cfg.BatchSize)
	}
	if cfg.Repeat < 0 {
		return nil, fmt.Errorf("batch config %q: repeat must be >= 0, got %d", cfg.Name, cfg.Repeat)
	}

	features, err := flatten(cfg.Features, cfg.FeatureVars)
	if err != nil {
		return nil, fmt.Errorf("batch config %q: %w", cfg.Name, err)
	}
	targets, err := flatten(cfg.Targets, cfg.TargetVars)
	if err != nil {
		return nil, fmt.Errorf("batch config %q: %w", cfg.Name, err)
	}

	bufSize := cfg.ShuffleBuffer
	if bufSize <= 0 {
		bufSize = DefaultShuffleBuffer
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	b := &Batches{
		name:      cfg.Name,
		features:  features,
		targets:   targets,
		rows:      cfg.Features.Rows(),
		featDim:   len(cfg.FeatureVars),
		targetDim: len(cfg.TargetVars),
		batchSize: cfg.BatchSize,
		shuffle:   cfg.Shuffle,
		bufSize:   bufSize,
		repeat:    cfg.Repeat,
		rng:       rand.New(rand.NewSource(seed)),
	}
	b.startEpoch()
	return b, nil
}

// flatten assembles a row-major float32 matrix from the named columns.
func flatten(f *Frame, vars []string) ([]float32, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("no variables named")
	}
	cols := make([][]float64, len(vars))
	for i, name := range vars {
		col := f.Column(name)
		if col == nil {
			return nil, fmt.Errorf("frame has no column %q", name)
		}
		cols[i] = col
	}
	out := make([]float32, f.Rows()*len(vars))
	for r := 0; r < f.Rows(); r++ {
		for i, col := range cols {
			out[r*len(vars)+i] = float32(col[r])
		}
	}
	return out, nil
}

// Name implements train.Dataset.
func (b *Batches) Name() string { return b.name }

// Rows returns the number of rows per epoch.
func (b *Batches) Rows() int { return b.rows }

// startEpoch resets within-epoch state and primes the shuffle reservoir.
func (b *Batches) startEpoch() {
	b.next = 0
	if !b.shuffle {
		b.buf = nil
		return
	}
	n := b.bufSize
	if n > b.rows {
		n = b.rows
	}
	b.buf = b.buf[:0]
	for ; b.next < n; b.next++ {
		b.buf = append(b.buf, b.next)
	}
}

// nextIndex returns the next row of the current epoch, or ok=false when the
// epoch is exhausted. With shuffling on, a uniformly chosen reservoir slot
// is emitted and refilled from the remaining sequential rows, which is the
// bounded-buffer approximation of a full permutation.
func (b *Batches) nextIndex() (int, bool) {
	if !b.shuffle {
		if b.next >= b.rows {
			return 0, false
		}
		i := b.next
		b.next++
		return i, true
	}
	if len(b.buf) == 0 {
		return 0, false
	}
	j := b.rng.Intn(len(b.buf))
	i := b.buf[j]
	if b.next < b.rows {
		b.buf[j] = b.next
		b.next++
	} else {
		b.buf[j] = b.buf[len(b.buf)-1]
		b.buf = b.buf[:len(b.buf)-1]
	}
	return i, true
}

// Yield implements train.Dataset. It returns the next (features, labels)
// batch as tensors shaped [batch, featureDim] and [batch, targetDim].
// Batches never span an epoch boundary, so the last batch of an epoch may
// hold fewer than BatchSize rows. Once the configured number of passes has
// completed, Yield returns io.EOF until Reset is called.
func (b *Batches) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if b.finished {
		return nil, nil, nil, io.EOF
	}

	idx := make([]int, 0, b.batchSize)
	for len(idx) < b.batchSize {
		i, ok := b.nextIndex()
		if ok {
			idx = append(idx, i)
			continue
		}
		b.epochsDone++
		if b.repeat > 0 && b.epochsDone >= b.repeat {
			b.finished = true
			break
		}
		b.startEpoch()
		if len(idx) > 0 {
			break
		}
	}
	if len(idx) == 0 {
		return nil, nil, nil, io.EOF
	}

	featBatch := make([]float32, len(idx)*b.featDim)
	targetBatch := make([]float32, len(idx)*b.targetDim)
	for k, i := range idx {
		copy(featBatch[k*b.featDim:(k+1)*b.featDim], b.features[i*b.featDim:(i+1)*b.featDim])
		copy(targetBatch[k*b.targetDim:(k+1)*b.targetDim], b.targets[i*b.targetDim:(i+1)*b.targetDim])
	}
	inputs = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(featBatch, len(idx), b.featDim)}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(targetBatch, len(idx), b.targetDim)}
	return nil, inputs, labels, nil
}

// Reset implements train.Dataset, restarting the sequence for another run
// over the configured number of passes.
func (b *Batches) Reset() {
	b.epochsDone = 0
	b.finished = false
	b.startEpoch()
}
