// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"spectro/internal/audio"
	"spectro/internal/config"
)

// Feed runs dec through the pipeline on the calling goroutine. Samples are
// pushed one hop at a time and every completed window is drawn before the
// next push, so offline rendering never drops a window.
func (p *Pipeline) Feed(ctx context.Context, dec audio.Decoder) (Stats, error) {
	channels := dec.Channels()
	if channels < 1 {
		return Stats{}, fmt.Errorf("decoder reports %d channels", channels)
	}
	buf := make([]float32, p.Accumulator.Hop()*channels)

	for {
		if err := ctx.Err(); err != nil {
			return p.stats(0), err
		}
		n, err := dec.Read(buf)
		if n > 0 {
			p.Accumulator.WriteInterleaved(buf[:n], channels)
			p.Scheduler.Tick()
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.stats(0), fmt.Errorf("decoding: %w", err)
		}
	}
	return p.stats(0), nil
}

// streamClock stamps frames with the stream position rather than the wall
// clock, so throttled displays behave as they would live.
type streamClock struct {
	start   time.Time
	samples func() uint64
	rate    float64
}

func (c streamClock) now() time.Time {
	return c.start.Add(time.Duration(float64(c.samples()) / c.rate * float64(time.Second)))
}

// Render draws the whole of the file at in into a PNG at out.
func Render(ctx context.Context, cfg *config.Config, in, out string) (Stats, error) {
	dec, err := audio.OpenFile(in)
	if err != nil {
		return Stats{}, err
	}
	defer dec.Close()

	var p *Pipeline
	clock := streamClock{
		start: time.Now(),
		rate:  dec.SampleRate(),
		samples: func() uint64 {
			return p.Accumulator.Completed() * uint64(p.Accumulator.Hop())
		},
	}
	p, err = New(cfg, dec.SampleRate(), clock.now)
	if err != nil {
		return Stats{}, err
	}
	defer p.Close()
	if err := p.AddNetworkDisplays(); err != nil {
		return Stats{}, err
	}

	logPipe.Infof("Rendering %s (%d ch, %.0f Hz)", in, dec.Channels(), dec.SampleRate())
	stats, err := p.Feed(ctx, dec)
	if err != nil {
		return stats, err
	}

	f, err := os.Create(out)
	if err != nil {
		return stats, err
	}
	if err := p.Raster.WritePNG(f); err != nil {
		f.Close()
		return stats, err
	}
	if err := f.Close(); err != nil {
		return stats, err
	}
	logPipe.Infof("Wrote %s: %d columns from %d windows", out, stats.Frames, stats.Completed)
	return stats, nil
}
