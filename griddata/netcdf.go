package griddata

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
)

// Load opens a NetCDF file read-only and reads the named value variables and
// 1-D coordinate variables into an immutable Dataset. Variables not named are
// never read. A missing file is a fatal I/O error; a missing variable is a
// named configuration error so callers can tell which input is wrong.
func Load(path string, valueVars, coordVars []string) (*Dataset, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	ds := &Dataset{
		Path:   path,
		Axes:   make([]string, 0, len(coordVars)),
		Coords: make(map[string][]float64, len(coordVars)),
		Vars:   make(map[string]*Variable, len(valueVars)),
	}

	for _, name := range coordVars {
		v, err := nc.Var(name)
		if err != nil {
			return nil, fmt.Errorf("required coordinate variable %q not found in %s: %w", name, path, err)
		}
		dims, err := v.Dims()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimensions of %q in %s: %w", name, path, err)
		}
		if len(dims) != 1 {
			return nil, fmt.Errorf("coordinate variable %q in %s is %d-dimensional, expected 1-D", name, path, len(dims))
		}
		length, err := dims[0].Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get length of %q in %s: %w", name, path, err)
		}
		vals, err := readValues(v, int(length))
		if err != nil {
			return nil, fmt.Errorf("failed to read coordinate variable %q from %s: %w", name, path, err)
		}
		ds.Axes = append(ds.Axes, name)
		ds.Coords[name] = vals
	}

	for _, name := range valueVars {
		v, err := nc.Var(name)
		if err != nil {
			return nil, fmt.Errorf("required variable %q not found in %s: %w", name, path, err)
		}
		dims, err := v.Dims()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimensions of %q in %s: %w", name, path, err)
		}
		gv := &Variable{
			Name:  name,
			Dims:  make([]string, len(dims)),
			Shape: make([]int, len(dims)),
		}
		total := 1
		for i, dim := range dims {
			dimName, err := dim.Name()
			if err != nil {
				return nil, fmt.Errorf("failed to get dimension name of %q in %s: %w", name, path, err)
			}
			if _, ok := ds.Coords[dimName]; !ok {
				return nil, fmt.Errorf("variable %q in %s has dimension %q outside the selected coordinate axes %v",
					name, path, dimName, coordVars)
			}
			length, err := dim.Len()
			if err != nil {
				return nil, fmt.Errorf("failed to get length of dimension %q of %q in %s: %w", dimName, name, path, err)
			}
			if int(length) != len(ds.Coords[dimName]) {
				return nil, fmt.Errorf("variable %q in %s: dimension %q has length %d but coordinate has %d values",
					name, path, dimName, length, len(ds.Coords[dimName]))
			}
			gv.Dims[i] = dimName
			gv.Shape[i] = int(length)
			total *= int(length)
		}
		gv.Data, err = readValues(v, total)
		if err != nil {
			return nil, fmt.Errorf("failed to read variable %q from %s: %w", name, path, err)
		}
		if fv, ok := fillValue(v); ok {
			maskFill(gv.Data, fv)
		}
		ds.Vars[name] = gv
	}

	return ds, nil
}

// fillValue returns the variable's _FillValue or missing_value attribute
// if present as a float64.
func fillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if a == (netcdf.Attr{}) {
			continue
		}
		n, err := a.Len()
		if err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, 1)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, 1)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
	}
	return 0, false
}

// maskFill replaces fill-value sentinels with NaN so missing cells cannot
// pass for physical values downstream.
func maskFill(data []float64, fill float64) {
	for i, v := range data {
		if v == fill {
			data[i] = math.NaN()
		}
	}
}

// readValues reads n elements from a NetCDF variable as float64, widening
// from the narrower numeric types climate-model output commonly uses.
func readValues(v netcdf.Var, n int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, n)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}
