// SPDX-License-Identifier: MIT
//
// Package scheduler drives the consumer side of the spectrogram. A ticker
// goroutine polls the analysis frame flag; when a spectrum set is waiting it
// maps every channel, scrolls one column into the raster, releases the flag
// and asks each display to redisplay.
package scheduler

import (
	"errors"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"spectro/internal/analysis"
	applog "spectro/internal/log"
	"spectro/internal/render"
)

const (
	// MinRefreshHz and MaxRefreshHz bound the derived tick rate.
	MinRefreshHz = 30.0
	MaxRefreshHz = 1000.0
	// fallbackRefreshHz is used when the frame rate is unknown.
	fallbackRefreshHz = 60.0
)

// Display is redrawn after each appended column. Redisplay runs on the
// scheduler goroutine, serialised with raster updates, and must not block.
type Display interface {
	Redisplay(frame *render.Frame)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(frame *render.Frame)

func (f DisplayFunc) Redisplay(frame *render.Frame) { f(frame) }

// Options configures a Scheduler.
type Options struct {
	Source   analysis.FrameSource
	Mapper   *render.Mapper
	Palette  render.Palette
	Raster   *render.Raster
	Interval time.Duration
	Displays []Display
	Now      func() time.Time // Defaults to time.Now.
}

// Scheduler owns the raster and every consumer-side buffer.
type Scheduler struct {
	source   analysis.FrameSource
	mapper   *render.Mapper
	palette  render.Palette
	raster   *render.Raster
	displays []Display
	interval time.Duration
	now      func() time.Time

	levels [][]float64
	column []color.RGBA
	frame  render.Frame

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	ticks  atomic.Uint64
	frames atomic.Uint64
}

// New validates opts and allocates the per-channel level buffers.
func New(opts Options) (*Scheduler, error) {
	var errs []error
	if opts.Source == nil {
		errs = append(errs, errors.New("scheduler: frame source cannot be nil"))
	}
	if opts.Mapper == nil {
		errs = append(errs, errors.New("scheduler: mapper cannot be nil"))
	}
	if opts.Palette == nil {
		errs = append(errs, errors.New("scheduler: palette cannot be nil"))
	}
	if opts.Raster == nil {
		errs = append(errs, errors.New("scheduler: raster cannot be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = IntervalFor(0, 0, 0)
		applog.Warnf("Scheduler: Invalid interval provided, defaulting to %s", interval)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		source:   opts.Source,
		mapper:   opts.Mapper,
		palette:  opts.Palette,
		raster:   opts.Raster,
		displays: opts.Displays,
		interval: interval,
		now:      now,
		column:   make([]color.RGBA, opts.Raster.Height()),
	}
	for _, h := range render.ChannelHeights(opts.Raster.Height(), opts.Source.Channels()) {
		s.levels = append(s.levels, make([]float64, h))
	}
	s.frame = render.Frame{Levels: s.levels, Column: s.column, Raster: s.raster}
	return s, nil
}

// AddDisplay registers d. It must be called before Start.
func (s *Scheduler) AddDisplay(d Display) {
	s.displays = append(s.displays, d)
}

// Tick runs one consumer step. It returns false straight away when no
// spectrum set is waiting. Tick must not run concurrently with itself.
func (s *Scheduler) Tick() bool {
	s.ticks.Add(1)
	if !s.source.Ready() {
		return false
	}

	for ch, dst := range s.levels {
		s.mapper.MapColumn(dst, s.source.Spectrum(ch))
	}
	// Levels are copies; the producer may reuse its spectra from here.
	s.source.Consume()

	render.StackColumn(s.column, s.levels, s.palette)
	s.raster.AppendColumn(s.column)

	s.frame.Seq = s.frames.Add(1)
	s.frame.Time = s.now()
	for _, d := range s.displays {
		d.Redisplay(&s.frame)
	}
	return true
}

// Start launches the ticker goroutine. Calling Start while running is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		applog.Warnf("Scheduler: Start called but already running.")
		return
	}
	s.ticker = time.NewTicker(s.interval)
	s.doneChan = make(chan struct{})
	s.stopOnce = sync.Once{}

	ticker := s.ticker
	doneChan := s.doneChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		applog.Infof("Scheduler: Refresh goroutine started (Interval: %s)", s.interval)
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-doneChan:
				applog.Debugf("Scheduler: Refresh goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for the goroutine to exit. Safe to call
// more than once.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return nil
	}
	s.stopOnce.Do(func() {
		close(s.doneChan)
		s.ticker.Stop()
		s.ticker = nil
	})
	s.mu.Unlock()

	s.wg.Wait()
	applog.Infof("Scheduler: Stopped after %d frames (%d ticks).", s.frames.Load(), s.ticks.Load())
	return nil
}

// Close implements io.Closer.
func (s *Scheduler) Close() error {
	return s.Stop()
}

// Running reports whether the ticker goroutine is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// Frames returns the number of columns appended.
func (s *Scheduler) Frames() uint64 {
	return s.frames.Load()
}

// Ticks returns the number of Tick calls, idle ones included.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Raster returns the raster the scheduler scrolls.
func (s *Scheduler) Raster() *render.Raster {
	return s.raster
}

// IntervalFor picks the tick period. A positive refreshHz is used as given
// (capped at MaxRefreshHz); otherwise the scheduler ticks at twice the
// analysis frame rate sampleRate/hop, kept within [MinRefreshHz,
// MaxRefreshHz].
func IntervalFor(sampleRate float64, hop int, refreshHz float64) time.Duration {
	hz := refreshHz
	switch {
	case hz > 0:
		hz = min(hz, MaxRefreshHz)
	case sampleRate > 0 && hop > 0:
		hz = max(MinRefreshHz, min(2*sampleRate/float64(hop), MaxRefreshHz))
	default:
		hz = fallbackRefreshHz
	}
	return time.Duration(float64(time.Second) / hz)
}
