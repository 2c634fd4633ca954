// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "spectro/internal/log"
	"spectro/internal/render"
	"spectro/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/harmonica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

var logTUI = applog.With("TUI")

// Rows kept free for the title and help lines.
const chromeRows = 4

// Snapshot is the raster resampled to the terminal. Each cell shows two
// pixels, so Pixels holds Width x 2*Height colours, row-major from the top.
type Snapshot struct {
	Seq    uint64
	Width  int
	Height int
	Pixels []color.RGBA
	Peak   float64 // Loudest row of channel 0, 0 at the top, 1 at the bottom.
}

type frameMsg struct{ snap *Snapshot }

// Display resamples frames for a running bubbletea program. It throttles to
// its frame rate so the terminal is not flooded at the scheduler rate. One
// goroutine delivers snapshots in order; while it is busy only the newest
// pending snapshot is kept.
type Display struct {
	cols     atomic.Int32
	rows     atomic.Int32
	interval time.Duration
	last     time.Time

	attached atomic.Bool
	latest   chan *Snapshot
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	sent     atomic.Uint64
	replaced atomic.Uint64
}

// NewDisplay returns a display sending at most fps frames per second.
func NewDisplay(fps int) *Display {
	if fps < 1 {
		fps = 30
	}
	d := &Display{
		interval: time.Second / time.Duration(fps),
		latest:   make(chan *Snapshot, 1),
		done:     make(chan struct{}),
	}
	d.cols.Store(80)
	d.rows.Store(24 - chromeRows)
	return d
}

// Attach starts delivery to p.
func (d *Display) Attach(p *tea.Program) {
	d.attach(p.Send)
}

func (d *Display) attach(send func(tea.Msg)) {
	if !d.attached.CompareAndSwap(false, true) {
		return
	}
	d.wg.Add(1)
	go d.deliver(send)
}

func (d *Display) deliver(send func(tea.Msg)) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case snap := <-d.latest:
			send(frameMsg{snap})
		}
	}
}

// Resize sets the cell grid that frames are resampled to.
func (d *Display) Resize(cols, rows int) {
	d.cols.Store(int32(max(cols, 1)))
	d.rows.Store(int32(max(rows, 1)))
}

// Redisplay snapshots the raster when the frame interval has passed.
func (d *Display) Redisplay(frame *render.Frame) {
	if !d.attached.Load() || frame.Raster == nil {
		return
	}
	if !d.last.IsZero() && frame.Time.Sub(d.last) < d.interval {
		return
	}
	d.last = frame.Time

	snap := Resample(frame, int(d.cols.Load()), int(d.rows.Load()))
	select {
	case d.latest <- snap:
	default:
		// Only Redisplay fills the slot, so after draining it the send succeeds.
		select {
		case <-d.latest:
			d.replaced.Add(1)
		default:
		}
		d.latest <- snap
	}
	d.sent.Add(1)
}

// Sent returns the number of snapshots queued for the program.
func (d *Display) Sent() uint64 {
	return d.sent.Load()
}

// Replaced returns the number of queued snapshots superseded before delivery.
func (d *Display) Replaced() uint64 {
	return d.replaced.Load()
}

// Close stops delivery and waits for the delivery goroutine.
func (d *Display) Close() error {
	d.once.Do(func() {
		d.attached.Store(false)
		close(d.done)
		d.wg.Wait()
	})
	return nil
}

var _ transport.Display = (*Display)(nil)

// Resample copies frame's raster into a cols x rows cell snapshot by
// nearest-pixel sampling.
func Resample(frame *render.Frame, cols, rows int) *Snapshot {
	r := frame.Raster
	cols, rows = max(cols, 1), max(rows, 1)
	snap := &Snapshot{
		Seq:    frame.Seq,
		Width:  cols,
		Height: rows,
		Pixels: make([]color.RGBA, cols*rows*2),
	}
	w, h := r.Width(), r.Height()
	for y := range rows * 2 {
		sy := y * h / (rows * 2)
		for x := range cols {
			snap.Pixels[y*cols+x] = r.At(x*w/cols, sy)
		}
	}

	if len(frame.Levels) > 0 && len(frame.Levels[0]) > 0 {
		best, peak := 0, -1.0
		for i, v := range frame.Levels[0] {
			if v > peak {
				best, peak = i, v
			}
		}
		// Channel 0 occupies the bottom rows, lowest frequency last.
		snap.Peak = (float64(h-1-best) + 0.5) / float64(h)
	}
	return snap
}

// SpectrogramModel draws the latest snapshot with upper-half-block cells
// and a spring-smoothed marker on the loudest row.
type SpectrogramModel struct {
	title   string
	display *Display
	snap    *Snapshot
	paused  bool
	width   int
	height  int

	spring  harmonica.Spring
	peak    float64
	peakVel float64
	frames  int
}

// NewSpectrogramModel creates the model. Resizes are forwarded to d, which
// may be nil.
func NewSpectrogramModel(title string, d *Display) SpectrogramModel {
	return SpectrogramModel{
		title:   title,
		display: d,
		spring:  harmonica.NewSpring(harmonica.FPS(30), 6.0, 0.6),
		peak:    1,
	}
}

// Init implements tea.Model.
func (m SpectrogramModel) Init() tea.Cmd {
	return nil
}

// Update handles frames, resizes and keys.
func (m SpectrogramModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.display != nil {
			m.display.Resize(msg.Width-1, msg.Height-chromeRows)
		}

	case frameMsg:
		if m.paused {
			return m, nil
		}
		m.snap = msg.snap
		m.frames++
		m.peak, m.peakVel = m.spring.Update(m.peak, m.peakVel, msg.snap.Peak)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			logTUI.Debugf("Quit after %d frames", m.frames)
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
		}
	}
	return m, nil
}

// View renders the UI
func (m SpectrogramModel) View() string {
	title := titleStyle.Render(m.title)
	status := "Paused"
	if !m.paused {
		status = "Live"
	}
	help := infoStyle.Render(fmt.Sprintf("%s • frame %d • space: Pause • q: Quit", status, m.frames))

	if m.snap == nil {
		return fmt.Sprintf("%s\n\nWaiting for audio...\n\n%s", title, help)
	}
	return fmt.Sprintf("%s\n%s\n%s", title, m.renderCells(), help)
}

// renderCells draws each cell as an upper half block: foreground is the
// top pixel, background the bottom one.
func (m SpectrogramModel) renderCells() string {
	s := m.snap
	marker := int(clampUnit(m.peak) * float64(s.Height))
	marker = min(marker, s.Height-1)

	var sb strings.Builder
	for row := range s.Height {
		if row > 0 {
			sb.WriteByte('\n')
		}
		top := s.Pixels[2*row*s.Width : (2*row+1)*s.Width]
		bottom := s.Pixels[(2*row+1)*s.Width : (2*row+2)*s.Width]
		for x := range s.Width {
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hex(top[x]))).
				Background(lipgloss.Color(hex(bottom[x]))).
				Render("▀"))
		}
		if row == marker {
			sb.WriteString(highlightStyle.Render("◀"))
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// Peak returns the smoothed marker position, 0 at the top.
func (m SpectrogramModel) Peak() float64 {
	return m.peak
}

// Paused reports whether new frames are ignored.
func (m SpectrogramModel) Paused() bool {
	return m.paused
}

func hex(c color.RGBA) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

func clampUnit(v float64) float64 {
	return max(0, min(v, 1))
}

// RunSpectrogram runs the terminal display until the user quits. The
// display is attached for the lifetime of the program.
func RunSpectrogram(title string, d *Display) error {
	p := tea.NewProgram(NewSpectrogramModel(title, d), tea.WithAltScreen())
	d.Attach(p)
	defer d.Close()
	_, err := p.Run()
	return err
}
