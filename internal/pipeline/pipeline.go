// SPDX-License-Identifier: MIT
//
// Package pipeline assembles the spectrogram from a configuration: the
// sample accumulator on the producer side, and the mapper, palette, raster,
// scheduler and displays on the consumer side.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"spectro/internal/analysis"
	"spectro/internal/config"
	"spectro/internal/fft"
	applog "spectro/internal/log"
	"spectro/internal/render"
	"spectro/internal/scheduler"
	"spectro/internal/transport"
	"spectro/internal/transport/udp"
)

var logPipe = applog.With("Pipeline")

// Pipeline is one accumulator feeding one scheduler.
type Pipeline struct {
	cfg         *config.Config
	Accumulator *analysis.Accumulator
	Mapper      *render.Mapper
	Palette     render.Palette
	Raster      *render.Raster
	Scheduler   *scheduler.Scheduler

	displays []transport.Display
}

// New builds a pipeline for a stream at sampleRate. now stamps frames and
// may be nil to use the wall clock.
func New(cfg *config.Config, sampleRate float64, now func() time.Time) (*Pipeline, error) {
	window, err := fft.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}
	mode, err := analysis.ParseChannelMode(cfg.Analysis.ChannelMode)
	if err != nil {
		return nil, err
	}

	acc, err := analysis.NewAccumulator(analysis.Options{
		Size:    cfg.Analysis.FFTSize,
		Hop:     cfg.Analysis.HopSize,
		Mode:    mode,
		Window:  window,
		Backend: fft.Backend(cfg.Analysis.Backend),
	})
	if err != nil {
		return nil, fmt.Errorf("creating accumulator: %w", err)
	}
	acc.Prepare(sampleRate)

	d := cfg.Display
	mapper, err := render.NewMapper(render.MapperOptions{
		Size:  cfg.Analysis.FFTSize,
		Skew:  d.SkewFactor,
		MinDB: d.MinDB,
		MaxDB: d.MaxDB,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mapper: %w", err)
	}
	palette, err := render.ParsePalette(d.Palette, d.Hue)
	if err != nil {
		return nil, err
	}
	raster, err := render.NewRaster(d.Width, d.Height)
	if err != nil {
		return nil, fmt.Errorf("creating raster: %w", err)
	}

	interval := scheduler.IntervalFor(sampleRate, cfg.Analysis.HopSize, d.RefreshHz)
	sched, err := scheduler.New(scheduler.Options{
		Source:   acc,
		Mapper:   mapper,
		Palette:  palette,
		Raster:   raster,
		Interval: interval,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	logPipe.Infof("N=%d hop=%d (%.2f frames/s) %s %s, %dx%d raster, tick %s",
		acc.Size(), acc.Hop(), acc.FrameRate(), mode, window, d.Width, d.Height, interval)
	return &Pipeline{
		cfg:         cfg,
		Accumulator: acc,
		Mapper:      mapper,
		Palette:     palette,
		Raster:      raster,
		Scheduler:   sched,
	}, nil
}

// AddDisplay registers d with the scheduler and closes it with the
// pipeline. It must be called before the scheduler starts.
func (p *Pipeline) AddDisplay(d transport.Display) {
	p.Scheduler.AddDisplay(d)
	p.displays = append(p.displays, d)
}

// AddNetworkDisplays creates the websocket and UDP displays that are
// enabled in the configuration, plus a debug logging display.
func (p *Pipeline) AddNetworkDisplays() error {
	t := p.cfg.Transport

	if applog.Enabled(applog.LevelDebug) {
		p.AddDisplay(transport.NewLoggingDisplay(int(max(1, p.Accumulator.FrameRate()))))
	}

	if t.WebSocketEnabled {
		ws := transport.NewWebSocketDisplay(t.WebSocketAddr, t.SnapshotInterval)
		if err := ws.Start(); err != nil {
			ws.Close()
			return fmt.Errorf("starting websocket display: %w", err)
		}
		p.AddDisplay(ws)
		logPipe.Infof("Spectrogram at http://%s/", ws.Addr())
	}

	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return fmt.Errorf("creating UDP sender: %w", err)
		}
		pub, err := udp.NewPublisher(sender, t.UDPSendInterval)
		if err != nil {
			sender.Close()
			return err
		}
		p.AddDisplay(pub)
	}
	return nil
}

// Close stops the scheduler and closes every display.
func (p *Pipeline) Close() error {
	errs := []error{p.Scheduler.Close()}
	for i := len(p.displays) - 1; i >= 0; i-- {
		errs = append(errs, p.displays[i].Close())
	}
	p.displays = nil
	return errors.Join(errs...)
}

// Stats summarises a run.
type Stats struct {
	Blocks    uint64 // Host blocks delivered, 0 offline.
	Completed uint64 // Analysis windows completed.
	Dropped   uint64 // Windows dropped on an unconsumed flag.
	Frames    uint64 // Columns appended to the raster.
}

func (p *Pipeline) stats(blocks uint64) Stats {
	return Stats{
		Blocks:    blocks,
		Completed: p.Accumulator.Completed(),
		Dropped:   p.Accumulator.Dropped(),
		Frames:    p.Scheduler.Frames(),
	}
}
