// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"spectro/internal/audio"
	"spectro/internal/config"
	"spectro/internal/tui"
	"spectro/pkg/build"
	"spectro/pkg/synth"
)

// Demo sweep shape.
const (
	demoLowHz    = 40
	demoPeriod   = 8 * time.Second
	demoHighFrac = 0.45 // Of the sample rate.
)

// terminalFPS caps frames sent to the terminal display.
const terminalFPS = 30

// Run captures from the configured device, or a synthetic sweep in demo
// mode, until ctx is done or the terminal display is quit.
func Run(ctx context.Context, cfg *config.Config) (Stats, error) {
	if cfg.Analysis.Backend == config.BackendGoDSP {
		return Stats{}, errors.New("the go-dsp backend allocates on every window and can only render offline")
	}

	p, err := New(cfg, cfg.Audio.SampleRate, nil)
	if err != nil {
		return Stats{}, err
	}
	defer p.Close()
	if err := p.AddNetworkDisplays(); err != nil {
		return Stats{}, err
	}

	var term *tui.Display
	if cfg.TUI {
		term = tui.NewDisplay(terminalFPS)
		p.AddDisplay(term)
	}

	engine, err := audio.NewEngine(cfg.Audio, p.Accumulator)
	if err != nil {
		return Stats{}, err
	}
	defer engine.Close()

	p.Scheduler.Start()

	if cfg.Demo {
		sr := cfg.Audio.SampleRate
		sweep := synth.NewSweep(sr, demoLowHz, sr*demoHighFrac, demoPeriod.Seconds())
		if err := engine.StartSynth(sweep); err != nil {
			return Stats{}, err
		}
	} else {
		if err := audio.Initialize(); err != nil {
			return Stats{}, err
		}
		defer audio.Terminate()
		if err := engine.StartInputStream(); err != nil {
			return Stats{}, err
		}
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			return Stats{}, fmt.Errorf("creating recording directory: %w", err)
		}
		filename := audio.RecordingFilename(cfg.Recording.OutputDir, time.Now())
		if err := engine.StartRecording(filename, cfg.Recording.BitDepth); err != nil {
			return Stats{}, err
		}
	}

	if term != nil {
		title := fmt.Sprintf("%s %s", build.GetBuildFlags().Name, build.GetBuildFlags().Version)
		if err := tui.RunSpectrogram(title, term); err != nil {
			return Stats{}, err
		}
	} else {
		<-ctx.Done()
	}

	// Stop the producer before the consumer.
	if err := engine.Close(); err != nil {
		logPipe.Errorf("Error closing audio engine: %v", err)
	}
	stats := p.stats(engine.Blocks())
	logPipe.Infof("Stopped: %d blocks, %d windows, %d dropped, %d columns",
		stats.Blocks, stats.Completed, stats.Dropped, stats.Frames)
	return stats, nil
}
