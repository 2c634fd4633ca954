// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"os"
	"strings"
	"testing"

	applog "spectro/internal/log"
	"spectro/internal/render"
)

func TestLoggingDisplay(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	prev := applog.GetLevel()
	applog.SetLevel(applog.LevelDebug)
	t.Cleanup(func() {
		applog.SetOutput(os.Stderr)
		applog.SetLevel(prev)
	})

	d := NewLoggingDisplay(2)
	levels := [][]float64{{0.1, 0.8, 0.2}}
	for seq := uint64(1); seq <= 4; seq++ {
		d.Redisplay(&render.Frame{Seq: seq, Levels: levels})
	}

	out := buf.String()
	if strings.Contains(out, "Frame 1 ") || strings.Contains(out, "Frame 3 ") {
		t.Errorf("odd frames should be skipped:\n%s", out)
	}
	if !strings.Contains(out, "Frame 2 ch 0: peak 0.80 at row 1") {
		t.Errorf("missing frame 2 summary:\n%s", out)
	}
	if d.Frames() != 4 {
		t.Errorf("Frames() = %d, want 4", d.Frames())
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
