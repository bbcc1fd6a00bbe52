package reference

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// testTable builds a small grid filled with a smooth positive function
// of the node indices.
func testTable(t *testing.T) *Table {
	t.Helper()
	const nK, nC, nH = 4, 3, 2
	data := make([]float32, 2*nK*nC*nH)
	for ih := 0; ih < nH; ih++ {
		for ic := 0; ic < nC; ic++ {
			for ik := 0; ik < nK; ik++ {
				base := math.Exp(-float64(ik)) * (1.0 + 0.1*float64(ic)) *
					(1.0 + 0.01*float64(ih))
				idx := 2 * ((ih*nC+ic)*nK + ik)
				data[idx] = float32(base * 0.56)   // mu+
				data[idx+1] = float32(base * 0.44) // mu-
			}
		}
	}
	tab, err := NewTable(nK, nC, nH, 1.0, 1e3, 0.0, 1.0, 0.0, 9e3, data)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tab
}

// nodeQuery returns the (height, elevation, energy) landing exactly on
// the given grid node.
func nodeQuery(tab *Table, ik, ic, ih int) (height, elevation, energy float64) {
	nK, nC, nH := tab.Shape()
	kMin, kMax := tab.EnergyRange()
	hMin, hMax := tab.HeightRange()

	energy = kMin * math.Exp(math.Log(kMax/kMin)*float64(ik)/float64(nK-1))
	c := tab.cMin + (tab.cMax-tab.cMin)*float64(ic)/float64(nC-1)
	elevation = 90.0 - math.Acos(c)*180.0/math.Pi
	height = hMin
	if nH > 1 {
		height = hMin + (hMax-hMin)*float64(ih)/float64(nH-1)
	}
	return height, elevation, energy
}

func TestTableExactAtNodes(t *testing.T) {
	tab := testTable(t)
	nK, nC, nH := tab.Shape()
	for ih := 0; ih < nH; ih++ {
		for ic := 0; ic < nC; ic++ {
			for ik := 0; ik < nK; ik++ {
				height, elevation, energy := nodeQuery(tab, ik, ic, ih)
				f := tab.Flux(height, elevation, energy)
				want := tab.at(ik, ic, ih, 0) + tab.at(ik, ic, ih, 1)
				if rel := math.Abs(f.Value-want) / want; rel > 1e-5 {
					t.Errorf("node (%d,%d,%d): got %v, want %v", ik, ic, ih, f.Value, want)
				}
			}
		}
	}
}

func TestTableCornerFromFile(t *testing.T) {
	tab := testTable(t)

	path := filepath.Join(t.TempDir(), "flux.table")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tab.Write(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	loaded, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	// The corner at minimum energy, cos(zenith) and altitude must
	// reproduce the stored flux pair exactly.
	height, elevation, energy := nodeQuery(loaded, 0, 0, 0)
	got := loaded.Flux(height, elevation, energy)
	want0 := loaded.at(0, 0, 0, 0)
	want1 := loaded.at(0, 0, 0, 1)
	sum := want0 + want1
	if rel := math.Abs(got.Value-sum) / sum; rel > 1e-6 {
		t.Errorf("corner value: got %v, want %v", got.Value, sum)
	}
	wantAsym := (want0 - want1) / sum
	if math.Abs(got.Asymmetry-wantAsym) > 1e-6 {
		t.Errorf("corner asymmetry: got %v, want %v", got.Asymmetry, wantAsym)
	}
}

func TestTableOutOfDomain(t *testing.T) {
	tab := testTable(t)
	tests := []struct {
		name                      string
		height, elevation, energy float64
	}{
		{"energy below", 0, 45, 0.5},
		{"energy above", 0, 45, 2e3},
		{"below horizon", 0, -10, 10},
		{"height above", 1e4, 45, 10},
		{"height below", -100, 45, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f := tab.Flux(tt.height, tt.elevation, tt.energy); f.Value != 0 {
				t.Errorf("got %v, want 0", f.Value)
			}
		})
	}
}

func TestTableMalformedFile(t *testing.T) {
	tab := testTable(t)
	var buf bytes.Buffer
	if err := tab.Write(&buf); err != nil {
		t.Fatal(err)
	}
	short := buf.Bytes()[:buf.Len()-7]
	if _, err := ReadTable(bytes.NewReader(short)); !errors.Is(err, ErrTableFormat) {
		t.Errorf("short read: got %v, want ErrTableFormat", err)
	}
}

func TestTableLogBlending(t *testing.T) {
	// Between nodes of an exponential falloff, log-space blending
	// reproduces the exponential exactly.
	tab := testTable(t)
	_, elevation, _ := nodeQuery(tab, 0, 0, 0)
	kMin, kMax := tab.EnergyRange()
	nK, _, _ := tab.Shape()
	dlk := math.Log(kMax/kMin) / float64(nK-1)

	// Half way between the first two energy nodes.
	energy := kMin * math.Exp(0.5*dlk)
	got := tab.Flux(0, elevation, energy)
	want := math.Sqrt((tab.at(0, 0, 0, 0) + tab.at(0, 0, 0, 1)) *
		(tab.at(1, 0, 0, 0) + tab.at(1, 0, 0, 1)))
	if rel := math.Abs(got.Value-want) / want; rel > 1e-3 {
		t.Errorf("mid-bin value: got %v, want %v", got.Value, want)
	}
}
