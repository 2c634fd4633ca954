// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spectro/pkg/synth"

	"github.com/go-audio/wav"
)

func TestRecordingRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "take.wav")
	e := newTestEngine(t, &captureProcessor{})

	if err := e.StartRecording(filename, 16); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if !e.Recording() {
		t.Fatal("Recording() = false after start")
	}

	block := synth.Interleave(
		synth.GenerateSineWave(testFrameSize, testSampleRate, 440),
		synth.GenerateSineWave(testFrameSize, testSampleRate, 440),
	)
	for range 4 {
		e.Process(block)
		time.Sleep(time.Millisecond) // Let the writer keep up.
	}

	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if e.Recording() {
		t.Error("Recording() = true after stop")
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}
	if dec.NumChans != 2 || dec.BitDepth != 16 || dec.SampleRate != testSampleRate {
		t.Errorf("header = %d ch, %d bit, %d Hz", dec.NumChans, dec.BitDepth, dec.SampleRate)
	}
	if len(buf.Data) != 4*len(block) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), 4*len(block))
	}
	// Sample 10 of the left channel, rescaled.
	got := float64(buf.Data[20]) / 32767
	if d := got - float64(block[20]); d > 1e-3 || d < -1e-3 {
		t.Errorf("sample = %v, want %v", got, block[20])
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		desc          string
		filename      string
		bitDepth      int
		errorContains string
	}{
		{"Invalid path", "/nonexistent/path/file.wav", 16, "no such file"},
		{"Bad bit depth", filepath.Join(dir, "bad.wav"), 12, "unsupported bit depth"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			e := newTestEngine(t, &captureProcessor{})
			err := e.StartRecording(tt.filename, tt.bitDepth)
			if err == nil {
				e.StopRecording()
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestRecordingAlreadyRecording(t *testing.T) {
	e := newTestEngine(t, &captureProcessor{})
	dir := t.TempDir()
	if err := e.StartRecording(filepath.Join(dir, "a.wav"), 24); err != nil {
		t.Fatal(err)
	}
	defer e.StopRecording()
	if err := e.StartRecording(filepath.Join(dir, "b.wav"), 24); err == nil || !strings.Contains(err.Error(), "already recording") {
		t.Errorf("expected already recording error, got %v", err)
	}
}

func TestStopWhenNotRecording(t *testing.T) {
	e := newTestEngine(t, &captureProcessor{})
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording() error = %v", err)
	}
}

func TestCloseEngineWithRecording(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "close.wav")
	e := newTestEngine(t, &captureProcessor{})
	if err := e.StartRecording(filename, 32); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}
	if e.Recording() {
		t.Error("Engine should not be recording after Close()")
	}
	if _, err := os.Stat(filename); err != nil {
		t.Errorf("recording file missing: %v", err)
	}
}

func TestRecordingFilename(t *testing.T) {
	got := RecordingFilename("out", time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	if want := filepath.Join("out", "spectro-20250304-050607.wav"); got != want {
		t.Errorf("RecordingFilename() = %q, want %q", got, want)
	}
}
