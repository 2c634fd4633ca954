// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"spectro/cmd"
	"spectro/internal/audio"
	"spectro/internal/config"
	"spectro/internal/log"
	"spectro/internal/pipeline"
	"spectro/internal/tui"
	"spectro/pkg/build"
)

// main is the entry point for the spectrogram.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and the configuration file
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - The audio callback fills the sample accumulator
//   - The refresh scheduler draws columns and feeds the displays
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the input, then the scheduler and displays
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Unstamped builds keep their development defaults.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	// Limit OS threads for real-time audio processing:
	// - One thread for the audio callback (time-critical)
	// - One thread for the scheduler, displays and I/O
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg == nil {
		return // --help or --version
	}
	log.SetLevel(cfg.ResolvedLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

// execute runs the requested command, or the live spectrogram.
func execute(ctx context.Context, cfg *config.Config) error {
	switch cfg.Command {
	case config.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case config.CommandDevices:
		sel, err := tui.StartDeviceListUI()
		if err != nil || sel == nil {
			return err
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		cfg.Audio.InputChannels = max(1, sel.Channels)
		cfg.TUI = true
		if err := cfg.Validate(); err != nil {
			return err
		}
		log.Infof("Starting on %s at %.0f Hz", sel.Name, sel.SampleRate)

	case config.CommandRender:
		_, err := pipeline.Render(ctx, cfg, cfg.Args[0], cfg.Args[1])
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================
	_, err := pipeline.Run(ctx, cfg)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	return err
}
