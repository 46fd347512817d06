// Package griddata loads gridded climate-model output from NetCDF files into
// in-memory labeled arrays.
//
// A Dataset holds a set of named coordinate axes (e.g. time, lev, lat, lon)
// and a set of value variables, each defined over some subset of those axes.
// Variables are immutable once loaded. Loading is allow-list driven: only the
// variables a caller names are read, which keeps the memory footprint bounded
// to what the pipeline actually consumes.
package griddata

import "fmt"

// Variable is a named floating-point array over a fixed coordinate shape.
// Data is stored row-major in the order given by Dims.
type Variable struct {
	Name  string
	Dims  []string
	Shape []int
	Data  []float64
}

// Len returns the total number of elements in the variable.
func (v *Variable) Len() int {
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	return n
}

// Dataset is a collection of named variables sharing a set of coordinate
// axes. Axes preserves the order in which coordinate variables were declared
// at load time; that order is the canonical axis order every downstream
// consumer relies on.
type Dataset struct {
	// Path of the source file, kept for error messages.
	Path string

	// Axes lists coordinate variable names in declared order.
	Axes []string

	// Coords maps an axis name to its 1-D coordinate values.
	Coords map[string][]float64

	// Vars maps a variable name to its loaded array.
	Vars map[string]*Variable
}

// AxisLen returns the cardinality of the named coordinate axis, or 0 if the
// dataset has no such axis.
func (d *Dataset) AxisLen(name string) int {
	return len(d.Coords[name])
}

// Select returns a dataset containing only the named value variables and
// coordinate variables, dropping everything else. A named variable that is
// absent is a configuration error, not a silent omission: every retained
// variable is required by a downstream stage, so absence must surface before
// training starts.
func (d *Dataset) Select(valueVars, coordVars []string) (*Dataset, error) {
	out := &Dataset{
		Path:   d.Path,
		Axes:   make([]string, 0, len(coordVars)),
		Coords: make(map[string][]float64, len(coordVars)),
		Vars:   make(map[string]*Variable, len(valueVars)),
	}
	for _, name := range coordVars {
		vals, ok := d.Coords[name]
		if !ok {
			return nil, fmt.Errorf("required coordinate variable %q not found in %s", name, d.Path)
		}
		out.Axes = append(out.Axes, name)
		out.Coords[name] = vals
	}
	for _, name := range valueVars {
		v, ok := d.Vars[name]
		if !ok {
			return nil, fmt.Errorf("required variable %q not found in %s", name, d.Path)
		}
		for _, dim := range v.Dims {
			if _, ok := out.Coords[dim]; !ok {
				return nil, fmt.Errorf("variable %q in %s has dimension %q outside the selected coordinate axes %v",
					name, d.Path, dim, coordVars)
			}
		}
		out.Vars[name] = v
	}
	return out, nil
}
