// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"spectro/pkg/synth"
)

func TestSynthSourceNext(t *testing.T) {
	sweep := synth.NewSweep(8192, 100, 1000, 1)
	src := NewSynthSource(sweep, 2, 256, func([]float32) {})

	block := src.Next()
	if len(block) != 512 {
		t.Fatalf("block length = %d, want 512", len(block))
	}
	for i := 0; i < len(block); i += 2 {
		if block[i] != block[i+1] {
			t.Fatalf("frame %d channels differ: %v != %v", i/2, block[i], block[i+1])
		}
	}
	if want := 31250 * time.Microsecond; src.Interval() != want {
		t.Errorf("Interval() = %s, want %s", src.Interval(), want)
	}
}

func TestSynthSourceDelivers(t *testing.T) {
	var blocks atomic.Int32
	sweep := synth.NewSweep(48000, 100, 1000, 1)
	src := NewSynthSource(sweep, 1, 48, func(b []float32) {
		if len(b) == 48 {
			blocks.Add(1)
		}
	})

	src.Start()
	src.Start() // Ignored while running.
	deadline := time.Now().Add(2 * time.Second)
	for blocks.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	src.Stop()
	src.Stop()

	got := blocks.Load()
	if got < 5 {
		t.Fatalf("delivered %d blocks, want at least 5", got)
	}
	time.Sleep(5 * time.Millisecond)
	if blocks.Load() != got {
		t.Error("blocks delivered after Stop")
	}
}

func TestEngineStartSynth(t *testing.T) {
	acc := &captureProcessor{}
	cfg := testAudioConfig()
	cfg.SampleRate = 48000
	cfg.FramesPerBuffer = 48
	e, err := NewEngine(cfg, acc)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.StartSynth(synth.NewSweep(48000, 100, 1000, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.StartSynth(synth.NewSweep(48000, 100, 1000, 1)); err == nil {
		t.Error("expected error starting a second synth")
	}
	deadline := time.Now().Add(2 * time.Second)
	for e.Blocks() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if e.Blocks() < 3 {
		t.Errorf("Blocks() = %d, want at least 3", e.Blocks())
	}
}
