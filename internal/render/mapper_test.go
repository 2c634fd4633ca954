// SPDX-License-Identifier: MIT
package render

import (
	"math"
	"testing"
)

const testFFTSize = 4096

func newTestMapper(t testing.TB, skew float64) *Mapper {
	t.Helper()
	m, err := NewMapper(MapperOptions{Size: testFFTSize, Skew: skew, MinDB: -100, MaxDB: 0})
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	return m
}

func TestNewMapperErrors(t *testing.T) {
	tests := []struct {
		name string
		opts MapperOptions
	}{
		{"Size not power of two", MapperOptions{Size: 1000, Skew: 0.2, MinDB: -100}},
		{"Zero skew", MapperOptions{Size: 1024, Skew: 0, MinDB: -100}},
		{"Skew above one", MapperOptions{Size: 1024, Skew: 1.5, MinDB: -100}},
		{"Inverted range", MapperOptions{Size: 1024, Skew: 0.2, MinDB: 0, MaxDB: -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMapper(tt.opts); err == nil {
				t.Errorf("NewMapper(%+v) expected error", tt.opts)
			}
		})
	}
}

func TestIntensity(t *testing.T) {
	m := newTestMapper(t, 0.2)
	n := float64(testFFTSize)

	tests := []struct {
		name string
		mag  float64
		want float64
	}{
		{"Silence", 0, 0},
		{"Negative", -1, 0},
		{"Full scale", n, 1},
		{"Above ceiling", 10 * n, 1},
		{"At floor", n * 1e-5, 0},
		{"Below floor", n * 1e-7, 0},
		{"Half way", n * math.Pow(10, -2.5), 0.5},
		{"NaN", math.NaN(), 0},
		{"Positive infinity", math.Inf(1), 1},
		{"Negative infinity", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Intensity(tt.mag)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Intensity(%v) = %v, want %v", tt.mag, got, tt.want)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Errorf("Intensity(%v) is not finite", tt.mag)
			}
		})
	}
}

func TestIntensityDegenerateRange(t *testing.T) {
	m, err := NewMapper(MapperOptions{Size: 1024, Skew: 0.2, MinDB: -20, MaxDB: -20})
	if err != nil {
		t.Fatal(err)
	}
	for _, mag := range []float64{0, 1, 1024, 1e9} {
		if got := m.Intensity(mag); got != 0 {
			t.Errorf("Intensity(%v) = %v with an empty range, want 0", mag, got)
		}
	}
}

func TestMapColumnSilence(t *testing.T) {
	m := newTestMapper(t, 0.2)
	dst := make([]float64, 512)
	m.MapColumn(dst, make([]float64, testFFTSize/2+1))
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("row %d = %v, want 0 for silence", i, v)
		}
	}
}

func TestMapColumnFlatSpectrum(t *testing.T) {
	m := newTestMapper(t, 0.2)
	dst := make([]float64, 512)

	for _, level := range []float64{1, 0.01 * testFFTSize, testFFTSize} {
		spectrum := make([]float64, testFFTSize/2+1)
		for i := range spectrum {
			spectrum[i] = level
		}
		m.MapColumn(dst, spectrum)
		for i, v := range dst {
			if v != dst[0] {
				t.Fatalf("flat spectrum %v: row %d = %v, row 0 = %v", level, i, v, dst[0])
			}
		}
	}

	// A flat spectrum at the transform gain sits at 0 dB.
	if dst[0] != 1 {
		t.Errorf("flat full-scale spectrum = %v, want 1", dst[0])
	}
}

func TestMapColumnFourPointFlat(t *testing.T) {
	m, err := NewMapper(MapperOptions{Size: 4, Skew: 0.2, MinDB: -100, MaxDB: 0})
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, 4)
	m.MapColumn(dst, []float64{1, 1, 1})

	// Unit magnitudes sit 20*log10(4) dB below the transform gain.
	want := (100 - 20*math.Log10(4)) / 100
	for i, v := range dst {
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("row %d = %v, want %v", i, v, want)
		}
	}
}

func TestMapColumnNonFinite(t *testing.T) {
	m := newTestMapper(t, 0.2)
	spectrum := make([]float64, testFFTSize/2+1)
	for i := range spectrum {
		switch i % 3 {
		case 0:
			spectrum[i] = math.NaN()
		case 1:
			spectrum[i] = math.Inf(1)
		default:
			spectrum[i] = math.Inf(-1)
		}
	}
	dst := make([]float64, 64)
	m.MapColumn(dst, spectrum)
	for i, v := range dst {
		if math.IsNaN(v) || v < 0 || v > 1 {
			t.Errorf("row %d = %v, want a value in [0, 1]", i, v)
		}
	}
}

func TestMapColumnShortSpectrum(t *testing.T) {
	m := newTestMapper(t, 0.2)
	dst := make([]float64, 64)
	m.MapColumn(dst, []float64{testFFTSize, testFFTSize})
	if dst[0] != 1 {
		t.Errorf("row 0 = %v, want 1", dst[0])
	}
	if dst[len(dst)-1] != 0 {
		t.Errorf("top row past the spectrum = %v, want 0", dst[len(dst)-1])
	}
}

func TestBinForRow(t *testing.T) {
	m := newTestMapper(t, 0.2)
	const height = 512

	if got := m.BinForRow(0, height); got != 0 {
		t.Errorf("BinForRow(0) = %d, want 0", got)
	}
	prev := 0
	for row := range height {
		bin := m.BinForRow(row, height)
		if bin < prev {
			t.Fatalf("BinForRow not monotonic at row %d: %d < %d", row, bin, prev)
		}
		if bin > testFFTSize/2 {
			t.Fatalf("BinForRow(%d) = %d out of range", row, bin)
		}
		prev = bin
	}

	// Skew widens the low end: the bottom half of the rows covers far more
	// than half of the rows' worth of low bins.
	if mid := m.BinForRow(height/2, height); mid >= testFFTSize/4 {
		t.Errorf("BinForRow(mid) = %d, expected below %d with skew 0.2", mid, testFFTSize/4)
	}
}

func TestBinForRowLinear(t *testing.T) {
	m := newTestMapper(t, 1)
	const height = 256
	for row := range height {
		// exp(log(x)) may round just below x.
		want := row * (testFFTSize / 2) / height
		if got := m.BinForRow(row, height); absInt(got-want) > 1 {
			t.Fatalf("BinForRow(%d) = %d, want %d", row, got, want)
		}
	}
}

func TestPeakRow(t *testing.T) {
	m := newTestMapper(t, 0.2)
	const height = 512

	for _, bin := range []int{5, 50, 200, 400} {
		spectrum := make([]float64, testFFTSize/2+1)
		for b := bin - 2; b <= bin+2; b++ {
			spectrum[b] = testFFTSize
		}
		dst := make([]float64, height)
		m.MapColumn(dst, spectrum)

		row := m.RowForBin(bin, height)
		lit := false
		for r := max(0, row-1); r <= min(height-1, row+1); r++ {
			if dst[r] == 1 {
				lit = true
			}
		}
		if !lit {
			t.Errorf("bin %d: no lit row within 1 of row %d", bin, row)
		}
	}
}

func TestRowForBinInverse(t *testing.T) {
	m := newTestMapper(t, 0.2)
	const height = 512
	for row := range height {
		bin := m.BinForRow(row, height)
		back := m.RowForBin(bin, height)
		if m.BinForRow(back, height) != bin && absInt(back-row) > 2 {
			t.Fatalf("RowForBin(BinForRow(%d)) = %d", row, back)
		}
	}
	if got := m.RowForBin(-5, height); got != 0 {
		t.Errorf("RowForBin(-5) = %d, want 0", got)
	}
	if got := m.RowForBin(testFFTSize, height); got != height-1 {
		t.Errorf("RowForBin(past end) = %d, want %d", got, height-1)
	}
}

func TestMapColumnHotPath(t *testing.T) {
	m := newTestMapper(t, 0.2)
	spectrum := make([]float64, testFFTSize/2+1)
	for i := range spectrum {
		spectrum[i] = float64(i)
	}
	dst := make([]float64, 512)

	allocs := testing.AllocsPerRun(100, func() {
		m.MapColumn(dst, spectrum)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in MapColumn, got %.1f", allocs)
	}
}

func BenchmarkMapColumn(b *testing.B) {
	m := newTestMapper(b, 0.2)
	spectrum := make([]float64, testFFTSize/2+1)
	dst := make([]float64, 512)
	b.ReportAllocs()
	for b.Loop() {
		m.MapColumn(dst, spectrum)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
