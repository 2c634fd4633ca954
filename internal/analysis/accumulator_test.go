// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync"
	"testing"

	"spectro/internal/fft"
	"spectro/pkg/synth"
)

const (
	testSize       = 1024
	testHop        = 256
	testSampleRate = 44100
)

func newTestAccumulator(t testing.TB, size, hop int, mode ChannelMode) *Accumulator {
	t.Helper()
	acc, err := NewAccumulator(Options{Size: size, Hop: hop, Mode: mode, Window: fft.Hann, Backend: fft.Gonum})
	if err != nil {
		t.Fatalf("NewAccumulator() error = %v", err)
	}
	return acc
}

func pushN(acc *Accumulator, n int) {
	for range n {
		acc.Push(0.25)
	}
}

func TestNewAccumulatorErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"Size not power of two", Options{Size: 1000, Hop: 100}},
		{"Size too small", Options{Size: 2, Hop: 1}},
		{"Zero hop", Options{Size: 1024, Hop: 0}},
		{"Hop beyond size", Options{Size: 1024, Hop: 2048}},
		{"Bad backend", Options{Size: 1024, Hop: 512, Backend: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAccumulator(tt.opts); err == nil {
				t.Errorf("NewAccumulator(%+v) expected error", tt.opts)
			}
		})
	}
}

func TestFewerThanSizeNeverCompletes(t *testing.T) {
	acc := newTestAccumulator(t, testSize, testHop, Mono)
	pushN(acc, testSize-1)

	if acc.Completed() != 0 || acc.Ready() {
		t.Errorf("completed %d windows (ready=%v) before %d samples", acc.Completed(), acc.Ready(), testSize)
	}

	acc.Push(0)
	if acc.Completed() != 1 || !acc.Ready() {
		t.Errorf("expected first window at sample %d, completed=%d", testSize, acc.Completed())
	}
}

func TestHopCompletionCount(t *testing.T) {
	tests := []struct {
		name    string
		hop     int
		samples int
		want    uint64
	}{
		{"Sliding hop, one window", testHop, testSize, 1},
		{"Sliding hop, k hops", testHop, testSize + 7*testHop, 8},
		{"Sliding hop, partial hop", testHop, testSize + 7*testHop + testHop - 1, 8},
		{"No overlap", testSize, 3 * testSize, 3},
		{"No overlap, partial", testSize, 3*testSize - 1, 2},
		{"Hop of one", 1, testSize + 9, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newTestAccumulator(t, testSize, tt.hop, Mono)
			for range tt.samples {
				acc.Push(0.1)
				acc.Consume() // Drain immediately so nothing is dropped.
			}
			if got := acc.Completed(); got != tt.want {
				t.Errorf("Completed() = %d, want %d", got, tt.want)
			}
			if acc.Dropped() != 0 {
				t.Errorf("Dropped() = %d, want 0", acc.Dropped())
			}
		})
	}
}

func TestDropWhileUnconsumed(t *testing.T) {
	acc := newTestAccumulator(t, testSize, testHop, Mono)
	toneBin := 40
	tone := synth.GenerateSineWave(testSize, testSampleRate,
		fft.FrequencyForBin(toneBin, testSize, testSampleRate))

	for _, s := range tone {
		acc.Push(s)
	}
	if !acc.Ready() {
		t.Fatal("expected first window to be ready")
	}

	// Three more windows of silence complete while the flag is still set.
	pushN(acc, 3*testHop)
	if acc.Completed() != 4 || acc.Dropped() != 3 {
		t.Errorf("completed=%d dropped=%d, want 4 and 3", acc.Completed(), acc.Dropped())
	}

	// The pending spectrum is still the tone; silence did not overwrite it.
	spectrum := acc.Spectrum(0)
	if peak := synth.FindPeakBin(spectrum, 0, len(spectrum)-1); peak != toneBin {
		t.Errorf("pending spectrum peak = %d, want %d", peak, toneBin)
	}

	acc.Consume()
	pushN(acc, testHop)
	if !acc.Ready() || acc.Dropped() != 3 {
		t.Errorf("expected a fresh window after Consume, ready=%v dropped=%d", acc.Ready(), acc.Dropped())
	}
}

func TestRingUnrolledOldestFirst(t *testing.T) {
	const size, hop = 16, 4
	acc, err := NewAccumulator(Options{Size: size, Hop: hop, Window: fft.Rectangular})
	if err != nil {
		t.Fatal(err)
	}

	for i := range size + hop {
		acc.Push(float32(i))
		if acc.Ready() && i < size+hop-1 {
			acc.Consume()
		}
	}

	// A rectangular window is all ones, so the analysed block still holds
	// the raw samples: the last 16 pushed, oldest first.
	for i := range size {
		if want := float64(hop + i); acc.block[i] != want {
			t.Fatalf("block[%d] = %v, want %v", i, acc.block[i], want)
		}
	}
	for i := size; i < len(acc.block); i++ {
		if acc.block[i] != 0 {
			t.Fatalf("zero padding overwritten at %d: %v", i, acc.block[i])
		}
	}
}

func TestStereoChannelsIndependent(t *testing.T) {
	acc := newTestAccumulator(t, testSize, testSize, Stereo)
	if acc.Channels() != 2 {
		t.Fatalf("Channels() = %d, want 2", acc.Channels())
	}

	left := synth.GenerateSineWave(testSize, testSampleRate, fft.FrequencyForBin(10, testSize, testSampleRate))
	right := synth.GenerateSineWave(testSize, testSampleRate, fft.FrequencyForBin(100, testSize, testSampleRate))
	acc.WriteInterleaved(synth.Interleave(left, right), 2)

	if !acc.Ready() {
		t.Fatal("expected window after one full block")
	}
	if peak := synth.FindPeakBin(acc.Spectrum(0), 0, testSize/2); peak != 10 {
		t.Errorf("left peak = %d, want 10", peak)
	}
	if peak := synth.FindPeakBin(acc.Spectrum(1), 0, testSize/2); peak != 100 {
		t.Errorf("right peak = %d, want 100", peak)
	}
}

func TestStereoDuplicatesMonoInput(t *testing.T) {
	acc := newTestAccumulator(t, testSize, testSize, Stereo)
	tone := synth.GenerateSineWave(testSize, testSampleRate, fft.FrequencyForBin(33, testSize, testSampleRate))
	acc.WriteInterleaved(tone, 1)

	l, r := acc.Spectrum(0), acc.Spectrum(1)
	for i := range l {
		if l[i] != r[i] {
			t.Fatalf("bin %d differs: %v vs %v", i, l[i], r[i])
		}
	}
}

func TestMonoMixDown(t *testing.T) {
	acc, err := NewAccumulator(Options{Size: 16, Hop: 16, Mode: Mono, Window: fft.Rectangular})
	if err != nil {
		t.Fatal(err)
	}

	in := make([]float32, 32)
	for i := 0; i < len(in); i += 2 {
		in[i], in[i+1] = 1, 0.5
	}
	acc.WriteInterleaved(in, 2)

	// The mix is (1 + 0.5) / 2 on every sample; DC bin of a rectangular
	// window sums N of them.
	if got, want := acc.Spectrum(0)[0], 16*0.75; math.Abs(got-want) > 1e-9 {
		t.Errorf("DC magnitude = %v, want %v", got, want)
	}
}

func TestWriteInterleavedIgnoresPartialFrame(t *testing.T) {
	acc := newTestAccumulator(t, 16, 16, Mono)
	acc.WriteInterleaved(make([]float32, 33), 2) // 16 frames + 1 stray sample
	if acc.Completed() != 1 {
		t.Errorf("Completed() = %d, want 1", acc.Completed())
	}
	acc.WriteInterleaved(make([]float32, 4), 0)
	if acc.Completed() != 1 {
		t.Errorf("zero-channel write changed state")
	}
}

func TestPrepareFrameRate(t *testing.T) {
	acc := newTestAccumulator(t, 4096, 512, Mono)
	if acc.SampleRate() != 0 {
		t.Errorf("SampleRate() before Prepare = %v, want 0", acc.SampleRate())
	}
	acc.Prepare(48000)
	if acc.SampleRate() != 48000 || acc.FrameRate() != 93.75 {
		t.Errorf("SampleRate=%v FrameRate=%v, want 48000 and 93.75", acc.SampleRate(), acc.FrameRate())
	}
}

func TestParseChannelMode(t *testing.T) {
	if m, err := ParseChannelMode("stereo"); err != nil || m != Stereo {
		t.Errorf("ParseChannelMode(stereo) = %v, %v", m, err)
	}
	if m, err := ParseChannelMode("mono"); err != nil || m != Mono {
		t.Errorf("ParseChannelMode(mono) = %v, %v", m, err)
	}
	if _, err := ParseChannelMode("quad"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if Stereo.String() != "stereo" || Mono.String() != "mono" {
		t.Error("unexpected ChannelMode strings")
	}
}

func TestWriteInterleavedHotPath(t *testing.T) {
	acc := newTestAccumulator(t, testSize, testHop, Stereo)
	block := synth.Interleave(
		synth.GenerateComplexWave(512, testSampleRate),
		synth.GenerateSineWave(512, testSampleRate, 1000),
	)

	// Warm up past the first window so every run crosses a boundary.
	for range 4 {
		acc.WriteInterleaved(block, 2)
		acc.Consume()
	}

	allocs := testing.AllocsPerRun(100, func() {
		acc.WriteInterleaved(block, 2)
		acc.Consume()
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in WriteInterleaved, got %.1f", allocs)
	}
}

// TestConcurrentHandoff runs a producer and a consumer on separate
// goroutines; run with -race to check the flag handshake.
func TestConcurrentHandoff(t *testing.T) {
	acc := newTestAccumulator(t, 256, 64, Stereo)
	block := synth.Interleave(
		synth.GenerateSineWave(128, testSampleRate, 440),
		synth.GenerateSineWave(128, testSampleRate, 880),
	)

	const blocks = 2000
	done := make(chan struct{})
	var consumed int
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if !acc.Ready() {
				continue
			}
			for ch := range acc.Channels() {
				for _, m := range acc.Spectrum(ch) {
					_ = m
				}
			}
			consumed++
			acc.Consume()
		}
	}()

	for range blocks {
		acc.WriteInterleaved(block, 2)
	}
	close(done)
	wg.Wait()

	want := uint64(1 + (blocks*128-256)/64)
	if acc.Completed() != want {
		t.Errorf("Completed() = %d, want %d", acc.Completed(), want)
	}
	if uint64(consumed)+acc.Dropped() > acc.Completed() {
		t.Errorf("consumed %d + dropped %d exceeds completed %d", consumed, acc.Dropped(), acc.Completed())
	}
}

func BenchmarkWriteInterleaved(b *testing.B) {
	acc := newTestAccumulator(b, 4096, 512, Stereo)
	block := synth.Interleave(
		synth.GenerateComplexWave(512, testSampleRate),
		synth.GenerateComplexWave(512, testSampleRate),
	)

	b.ReportAllocs()
	for b.Loop() {
		acc.WriteInterleaved(block, 2)
		acc.Consume()
	}
}
