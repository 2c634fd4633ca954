// SPDX-License-Identifier: MIT
/*
Package audio connects host audio to the analysis pipeline:
  - PortAudio capture with a float32 callback
  - A synthetic sweep source paced like a device, for demos
  - An optional input gate
  - WAV recording off the callback thread
  - Streaming file decoders for offline rendering

Thread Safety:
  - The callback only copies, gates and forwards pre-allocated buffers
  - Recording hands blocks to a writer goroutine without waiting
  - Gate settings must be changed before the stream starts
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"spectro/internal/analysis"
	"spectro/internal/config"
	applog "spectro/internal/log"
	"spectro/pkg/synth"

	"github.com/gordonklaus/portaudio"
)

var logEngine = applog.With("Engine")

// Engine owns the input stream and forwards every block to an
// AudioProcessor.
type Engine struct {
	cfg  config.AudioConfig
	proc analysis.AudioProcessor
	gate *Gate

	// Audio input handling.
	inputBuffer  []float32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	synth        *SynthSource

	recorder atomic.Pointer[Recorder]
	blocks   atomic.Uint64
}

// NewEngine creates an engine feeding proc. No device is opened until
// StartInputStream.
func NewEngine(cfg config.AudioConfig, proc analysis.AudioProcessor) (*Engine, error) {
	if proc == nil {
		return nil, errors.New("engine: audio processor cannot be nil")
	}
	if cfg.InputChannels < 1 || cfg.FramesPerBuffer < 1 {
		return nil, fmt.Errorf("engine: invalid stream shape %d channels x %d frames", cfg.InputChannels, cfg.FramesPerBuffer)
	}
	return &Engine{
		cfg:         cfg,
		proc:        proc,
		gate:        NewGate(cfg.GateThreshold),
		inputBuffer: make([]float32, cfg.FramesPerBuffer*cfg.InputChannels),
	}, nil
}

// StartInputStream opens the configured PortAudio input device and starts
// capturing. PortAudio must be initialised.
func (e *Engine) StartInputStream() error {
	device, err := InputDevice(e.cfg.InputDevice)
	if err != nil {
		return err
	}
	e.inputDevice = device
	if e.cfg.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.cfg.InputChannels,
			Device:   device,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("opening input stream on %s: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting input stream: %w", err)
	}
	e.inputStream = stream
	logEngine.Infof("Capturing from %s (%d ch, %.0f Hz, %d frames, latency %s)",
		device.Name, e.cfg.InputChannels, e.cfg.SampleRate, e.cfg.FramesPerBuffer, e.inputLatency)
	return nil
}

// StartSynth feeds a synthetic sweep through the same callback path,
// paced at the configured sample rate.
func (e *Engine) StartSynth(sweep *synth.Sweep) error {
	if e.synth != nil {
		return errors.New("engine: synth already running")
	}
	e.synth = NewSynthSource(sweep, e.cfg.InputChannels, e.cfg.FramesPerBuffer, e.Process)
	e.synth.Start()
	logEngine.Infof("Generating %.0f-%.0f Hz sweep (%d ch, %.0f Hz)", sweep.Low, sweep.High, e.cfg.InputChannels, sweep.SampleRate)
	return nil
}

// StopInputStream stops whichever input is running.
func (e *Engine) StopInputStream() error {
	if e.synth != nil {
		e.synth.Stop()
		e.synth = nil
	}
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the PortAudio callback.
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.Process(in)
}

// Process handles one interleaved host block. It runs on the audio thread:
// pre-allocated buffers only, no locks, no allocation.
func (e *Engine) Process(in []float32) {
	buf := e.inputBuffer
	if len(in) < len(buf) {
		buf = buf[:len(in)]
	}
	n := copy(buf, in)
	buf = buf[:n]

	e.gate.Apply(buf)
	e.proc.WriteInterleaved(buf, e.cfg.InputChannels)

	if r := e.recorder.Load(); r != nil {
		r.write(buf)
	}
	e.blocks.Add(1)
}

// Gate returns the input gate.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// Blocks returns the number of host blocks processed.
func (e *Engine) Blocks() uint64 {
	return e.blocks.Load()
}

// Channels returns the captured channel count.
func (e *Engine) Channels() int {
	return e.cfg.InputChannels
}

// SampleRate returns the stream sample rate.
func (e *Engine) SampleRate() float64 {
	return e.cfg.SampleRate
}

// Close stops recording and the input stream.
func (e *Engine) Close() error {
	return errors.Join(e.StopRecording(), e.StopInputStream())
}
