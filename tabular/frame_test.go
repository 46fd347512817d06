package tabular

import (
	"strings"
	"testing"

	"github.com/atmosml/tendlearn/griddata"
)

// testGrid builds a small dataset where every value encodes its own
// coordinate indices, so tabularized rows can be checked positionally.
// T spans all four axes; PS lacks the lev axis and must be broadcast.
func testGrid() *griddata.Dataset {
	nTime, nLev, nLat, nLon := 2, 3, 2, 4
	ds := &griddata.Dataset{
		Path: "test.nc",
		Axes: []string{"time", "lev", "lat", "lon"},
		Coords: map[string][]float64{
			"time": {0, 1},
			"lev":  {1000, 900, 800},
			"lat":  {-45, 45},
			"lon":  {0, 90, 180, 270},
		},
		Vars: map[string]*griddata.Variable{},
	}

	tData := make([]float64, nTime*nLev*nLat*nLon)
	i := 0
	for it := 0; it < nTime; it++ {
		for il := 0; il < nLev; il++ {
			for ia := 0; ia < nLat; ia++ {
				for io := 0; io < nLon; io++ {
					tData[i] = float64(it*1000 + il*100 + ia*10 + io)
					i++
				}
			}
		}
	}
	ds.Vars["T"] = &griddata.Variable{
		Name: "T", Dims: []string{"time", "lev", "lat", "lon"},
		Shape: []int{nTime, nLev, nLat, nLon}, Data: tData,
	}

	psData := make([]float64, nTime*nLat*nLon)
	i = 0
	for it := 0; it < nTime; it++ {
		for ia := 0; ia < nLat; ia++ {
			for io := 0; io < nLon; io++ {
				psData[i] = float64(it*1000 + ia*10 + io)
				i++
			}
		}
	}
	ds.Vars["PS"] = &griddata.Variable{
		Name: "PS", Dims: []string{"time", "lat", "lon"},
		Shape: []int{nTime, nLat, nLon}, Data: psData,
	}
	return ds
}

func TestFromDatasetRowOrderAndBroadcast(t *testing.T) {
	f, err := FromDataset(testGrid(), []string{"PS", "T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	if f.Rows() != 2*3*2*4 {
		t.Fatalf("expected %d rows, got %d", 2*3*2*4, f.Rows())
	}

	tCol := f.Column("T")
	psCol := f.Column("PS")
	r := 0
	for it := 0; it < 2; it++ {
		for il := 0; il < 3; il++ {
			for ia := 0; ia < 2; ia++ {
				for io := 0; io < 4; io++ {
					wantT := float64(it*1000 + il*100 + ia*10 + io)
					if tCol[r] != wantT {
						t.Fatalf("row %d: T = %v, want %v", r, tCol[r], wantT)
					}
					// PS has no lev axis: the same surface value must
					// repeat across all levels.
					wantPS := float64(it*1000 + ia*10 + io)
					if psCol[r] != wantPS {
						t.Fatalf("row %d: PS = %v, want %v", r, psCol[r], wantPS)
					}
					r++
				}
			}
		}
	}
}

func TestFromDatasetDeterministic(t *testing.T) {
	ds := testGrid()
	a, err := FromDataset(ds, []string{"PS", "T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	b, err := FromDataset(ds, []string{"PS", "T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	if err := CheckAligned(a, b); err != nil {
		t.Fatalf("frames from the same dataset are misaligned: %v", err)
	}
	for _, name := range []string{"PS", "T"} {
		colA, colB := a.Column(name), b.Column(name)
		for i := range colA {
			if colA[i] != colB[i] {
				t.Fatalf("column %q differs at row %d: %v vs %v", name, i, colA[i], colB[i])
			}
		}
	}
}

func TestFromDatasetMissingVariable(t *testing.T) {
	_, err := FromDataset(testGrid(), []string{"PS", "PTTEND"})
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
	if !strings.Contains(err.Error(), `"PTTEND"`) {
		t.Fatalf("error should name the missing variable, got: %v", err)
	}
}

func TestSubsetLongitude(t *testing.T) {
	f, err := FromDataset(testGrid(), []string{"PS", "T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}

	sub, err := f.Subset("lon", []int{0, 2})
	if err != nil {
		t.Fatalf("Subset error: %v", err)
	}
	if sub.Rows() != 2*3*2*2 {
		t.Fatalf("expected %d rows, got %d", 2*3*2*2, sub.Rows())
	}
	if got := sub.AxisLen("lon"); got != 2 {
		t.Fatalf("expected lon axis length 2, got %d", got)
	}

	tCol := sub.Column("T")
	r := 0
	for it := 0; it < 2; it++ {
		for il := 0; il < 3; il++ {
			for ia := 0; ia < 2; ia++ {
				for _, io := range []int{0, 2} {
					want := float64(it*1000 + il*100 + ia*10 + io)
					if tCol[r] != want {
						t.Fatalf("row %d: T = %v, want %v", r, tCol[r], want)
					}
					r++
				}
			}
		}
	}
}

func TestSubsetOutOfRange(t *testing.T) {
	f, err := FromDataset(testGrid(), []string{"T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	if _, err := f.Subset("lon", []int{0, 4}); err == nil {
		t.Fatal("expected error for out-of-range longitude index")
	}
	if _, err := f.Subset("height", []int{0}); err == nil {
		t.Fatal("expected error for unknown axis")
	}
}

func TestCheckAlignedDetectsMismatch(t *testing.T) {
	ds := testGrid()
	a, err := FromDataset(ds, []string{"T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}

	// Same shape, different longitude coordinates.
	other := testGrid()
	other.Coords["lon"] = []float64{0, 90, 180, 271}
	b, err := FromDataset(other, []string{"T"})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	if err := CheckAligned(a, b); err == nil {
		t.Fatal("expected misalignment error for differing coordinates")
	} else if !strings.Contains(err.Error(), "lon") {
		t.Fatalf("error should name the mismatched axis, got: %v", err)
	}

	// Different cardinality.
	c, err := a.Subset("lon", []int{0, 1})
	if err != nil {
		t.Fatalf("Subset error: %v", err)
	}
	if err := CheckAligned(a, c); err == nil {
		t.Fatal("expected misalignment error for differing axis lengths")
	}
}
