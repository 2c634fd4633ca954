// SPDX-License-Identifier: MIT
package audio

import (
	"sync"
	"time"

	"spectro/pkg/synth"
)

// SynthSource paces a sweep into a callback one host block at a time, as a
// device would.
type SynthSource struct {
	sweep    *synth.Sweep
	channels int
	buf      []float32
	interval time.Duration
	callback func([]float32)

	mu       sync.Mutex
	doneChan chan struct{}
	wg       sync.WaitGroup
}

// NewSynthSource delivers frames-sized blocks of channels interleaved
// samples to callback.
func NewSynthSource(sweep *synth.Sweep, channels, frames int, callback func([]float32)) *SynthSource {
	channels = max(channels, 1)
	frames = max(frames, 1)
	return &SynthSource{
		sweep:    sweep,
		channels: channels,
		buf:      make([]float32, frames*channels),
		interval: time.Duration(float64(frames) / sweep.SampleRate * float64(time.Second)),
		callback: callback,
	}
}

// Next fills and returns the next block. The slice is reused.
func (s *SynthSource) Next() []float32 {
	s.sweep.Fill(s.buf, s.channels)
	return s.buf
}

// Start begins delivery on a new goroutine. A running source ignores it.
func (s *SynthSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doneChan != nil {
		return
	}
	done := make(chan struct{})
	s.doneChan = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.callback(s.Next())
			case <-done:
				return
			}
		}
	}()
}

// Stop halts delivery and waits for the goroutine.
func (s *SynthSource) Stop() {
	s.mu.Lock()
	if s.doneChan == nil {
		s.mu.Unlock()
		return
	}
	close(s.doneChan)
	s.doneChan = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// Interval returns the time between blocks.
func (s *SynthSource) Interval() time.Duration {
	return s.interval
}
