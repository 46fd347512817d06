// Package tabular flattens gridded datasets into flat coordinate-indexed
// tables and prepares them for model training: longitude-stride splitting
// into training/validation/testing subsets, and batched iteration compatible
// with gomlx training loops.
package tabular

import (
	"fmt"

	"github.com/atmosml/tendlearn/griddata"
)

// Axis is one coordinate dimension of a Frame.
type Axis struct {
	Name   string
	Values []float64
}

// Frame is a flat table with one row per coordinate tuple and one column per
// variable. Rows are ordered lexicographically over the axes in declared
// order, with the last axis innermost, so two frames built independently
// from datasets sharing the same coordinates stay aligned row-for-row.
type Frame struct {
	axes    []Axis
	columns []string
	data    map[string][]float64
	rows    int
}

// FromDataset tabularizes the named variables of a gridded dataset. Each row
// corresponds to one tuple over the full product of the dataset's coordinate
// axes; a variable that lacks an axis (e.g. surface pressure has no vertical
// level) is broadcast across it. Row order is deterministic: lexicographic
// over the dataset's axes in declared order.
func FromDataset(ds *griddata.Dataset, vars []string) (*Frame, error) {
	if len(ds.Axes) == 0 {
		return nil, fmt.Errorf("dataset %s has no coordinate axes", ds.Path)
	}
	f := &Frame{
		axes:    make([]Axis, len(ds.Axes)),
		columns: make([]string, 0, len(vars)),
		data:    make(map[string][]float64, len(vars)),
		rows:    1,
	}
	for i, name := range ds.Axes {
		f.axes[i] = Axis{Name: name, Values: ds.Coords[name]}
		f.rows *= len(ds.Coords[name])
	}

	for _, name := range vars {
		v, ok := ds.Vars[name]
		if !ok {
			return nil, fmt.Errorf("required variable %q not found in %s", name, ds.Path)
		}
		col, err := broadcast(v, f.axes, f.rows)
		if err != nil {
			return nil, fmt.Errorf("failed to tabularize %q from %s: %w", name, ds.Path, err)
		}
		f.columns = append(f.columns, name)
		f.data[name] = col
	}
	return f, nil
}

// broadcast expands a variable over the full axis product. For each frame
// axis the variable's flat-index stride is precomputed; axes the variable
// does not have get stride 0, which is what broadcasts it.
func broadcast(v *griddata.Variable, axes []Axis, rows int) ([]float64, error) {
	// Stride of each of the variable's own dimensions, row-major.
	ownStride := make(map[string]int, len(v.Dims))
	stride := 1
	for i := len(v.Dims) - 1; i >= 0; i-- {
		ownStride[v.Dims[i]] = stride
		stride *= v.Shape[i]
	}
	if stride != len(v.Data) {
		return nil, fmt.Errorf("variable has %d values but shape %v implies %d", len(v.Data), v.Shape, stride)
	}

	axisStride := make([]int, len(axes))
	for i, ax := range axes {
		axisStride[i] = ownStride[ax.Name] // 0 when the variable lacks the axis
	}

	col := make([]float64, rows)
	idx := make([]int, len(axes))
	src := 0
	for r := 0; r < rows; r++ {
		col[r] = v.Data[src]
		// Advance the mixed-radix counter, innermost axis first.
		for k := len(axes) - 1; k >= 0; k-- {
			idx[k]++
			src += axisStride[k]
			if idx[k] < len(axes[k].Values) {
				break
			}
			src -= idx[k] * axisStride[k]
			idx[k] = 0
		}
	}
	return col, nil
}

// Rows returns the number of rows in the frame.
func (f *Frame) Rows() int { return f.rows }

// Columns returns the column names in declared order.
func (f *Frame) Columns() []string { return f.columns }

// Column returns the values of the named column, or nil if absent. The
// returned slice is the frame's backing storage and must not be modified.
func (f *Frame) Column(name string) []float64 { return f.data[name] }

// Axes returns the frame's coordinate axes in declared order.
func (f *Frame) Axes() []Axis { return f.axes }

// AxisLen returns the cardinality of the named axis, or 0 if absent.
func (f *Frame) AxisLen(name string) int {
	for _, ax := range f.axes {
		if ax.Name == name {
			return len(ax.Values)
		}
	}
	return 0
}

// Subset returns a new frame keeping only the given index positions along
// the named axis, in the given order. Row ordering of the result follows the
// same lexicographic rule as the original.
func (f *Frame) Subset(axis string, indices []int) (*Frame, error) {
	axisPos := -1
	for i, ax := range f.axes {
		if ax.Name == axis {
			axisPos = i
			break
		}
	}
	if axisPos < 0 {
		return nil, fmt.Errorf("frame has no axis %q", axis)
	}
	axisLen := len(f.axes[axisPos].Values)
	for _, idx := range indices {
		if idx < 0 || idx >= axisLen {
			return nil, fmt.Errorf("index %d out of range [0, %d) on axis %q", idx, axisLen, axis)
		}
	}

	outer, inner := 1, 1
	for i, ax := range f.axes {
		if i < axisPos {
			outer *= len(ax.Values)
		} else if i > axisPos {
			inner *= len(ax.Values)
		}
	}

	out := &Frame{
		axes:    make([]Axis, len(f.axes)),
		columns: f.columns,
		data:    make(map[string][]float64, len(f.columns)),
		rows:    outer * len(indices) * inner,
	}
	copy(out.axes, f.axes)
	vals := make([]float64, len(indices))
	for k, idx := range indices {
		vals[k] = f.axes[axisPos].Values[idx]
	}
	out.axes[axisPos] = Axis{Name: axis, Values: vals}

	for _, name := range f.columns {
		src := f.data[name]
		dst := make([]float64, out.rows)
		for o := 0; o < outer; o++ {
			for k, idx := range indices {
				copy(dst[(o*len(indices)+k)*inner:(o*len(indices)+k+1)*inner],
					src[(o*axisLen+idx)*inner:(o*axisLen+idx+1)*inner])
			}
		}
		out.data[name] = dst
	}
	return out, nil
}

// CheckAligned verifies that two frames share identical coordinate axes:
// same names in the same order, same lengths, same coordinate values. Rows
// of aligned frames correspond to the same physical coordinate tuple, which
// is what keeps features and targets paired during training. Misalignment is
// a fatal error, never something to paper over: training on silently
// misaligned rows corrupts the model without any visible failure.
func CheckAligned(a, b *Frame) error {
	if len(a.axes) != len(b.axes) {
		return fmt.Errorf("frames have different axis counts: %d vs %d", len(a.axes), len(b.axes))
	}
	for i := range a.axes {
		axA, axB := a.axes[i], b.axes[i]
		if axA.Name != axB.Name {
			return fmt.Errorf("axis %d differs: %q vs %q", i, axA.Name, axB.Name)
		}
		if len(axA.Values) != len(axB.Values) {
			return fmt.Errorf("axis %q has %d values in one frame and %d in the other",
				axA.Name, len(axA.Values), len(axB.Values))
		}
		for j := range axA.Values {
			if axA.Values[j] != axB.Values[j] {
				return fmt.Errorf("axis %q coordinate %d differs: %v vs %v",
					axA.Name, j, axA.Values[j], axB.Values[j])
			}
		}
	}
	if a.rows != b.rows {
		return fmt.Errorf("frames have different row counts: %d vs %d", a.rows, b.rows)
	}
	return nil
}
