// SPDX-License-Identifier: MIT
package transport

import (
	applog "spectro/internal/log"
	"spectro/internal/render"
)

var logDisplay = applog.With("LoggingDisplay")

// LoggingDisplay logs a one-line summary of every Nth frame at debug level.
type LoggingDisplay struct {
	every  uint64
	frames uint64
}

// NewLoggingDisplay logs one frame in every. Values below 1 log every frame.
func NewLoggingDisplay(every int) *LoggingDisplay {
	if every < 1 {
		every = 1
	}
	logDisplay.Debugf("Logging every %d frames", every)
	return &LoggingDisplay{every: uint64(every)}
}

// Redisplay logs the frame when its turn comes.
func (d *LoggingDisplay) Redisplay(frame *render.Frame) {
	d.frames++
	if frame.Seq%d.every != 0 || !applog.Enabled(applog.LevelDebug) {
		return
	}
	for ch, levels := range frame.Levels {
		row, peak := peakRow(levels)
		logDisplay.Debugf("Frame %d ch %d: peak %.2f at row %d", frame.Seq, ch, peak, row)
	}
}

// Frames returns the number of frames seen.
func (d *LoggingDisplay) Frames() uint64 {
	return d.frames
}

// Close is a no-op.
func (d *LoggingDisplay) Close() error {
	logDisplay.Debugf("Close called after %d frames.", d.frames)
	return nil
}

func peakRow(levels []float64) (int, float64) {
	row, peak := 0, 0.0
	for i, v := range levels {
		if v > peak {
			row, peak = i, v
		}
	}
	return row, peak
}

var _ Display = (*LoggingDisplay)(nil)
