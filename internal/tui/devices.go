// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"slices"
	"strings"

	"spectro/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Rates offered on the configuration screen, besides the device default.
var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// listDevices is swapped out by tests.
var listDevices = audio.GetDevices

// Selection is the device, rate and channel count confirmed on the
// configuration screen.
type Selection struct {
	DeviceID   int
	Name       string
	SampleRate float64
	Channels   int
}

// DeviceListModel lists the input devices and lets the user pick a sample
// rate and channel count for one of them.
type DeviceListModel struct {
	devices  []audio.Device // Input-capable only.
	cursor   int
	viewport viewport.Model
	ready    bool
	err      error

	activeScreen       ScreenType
	rates              []float64
	rateIndex          int
	selectedSampleRate float64
	channels           int

	selection *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a new device list model
func NewDeviceListModel() DeviceListModel {
	return DeviceListModel{activeScreen: ListScreen}
}

// Init fetches the devices.
func (m DeviceListModel) Init() tea.Cmd {
	return func() tea.Msg {
		devices, err := listDevices()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-chromeRows, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}

	case devicesMsg:
		m.devices = slices.DeleteFunc(slices.Clone(msg.devices), func(d audio.Device) bool {
			return d.MaxInputChannels < 1
		})
		m.cursor = 0

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		var done bool
		if m.activeScreen == ListScreen {
			m = m.updateList(msg)
		} else {
			m, done = m.updateConfig(msg)
		}
		if done {
			return m, tea.Quit
		}
	}

	m.refresh()
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DeviceListModel) updateList(msg tea.KeyMsg) DeviceListModel {
	switch {
	case key.Matches(msg, keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, keys.Down):
		m.cursor = max(min(m.cursor+1, len(m.devices)-1), 0)
	case key.Matches(msg, keys.Select):
		if len(m.devices) == 0 {
			break
		}
		device := m.devices[m.cursor]
		m.rates = slices.Clone(commonSampleRates)
		if !slices.Contains(m.rates, device.DefaultSampleRate) && device.DefaultSampleRate > 0 {
			m.rates = append(m.rates, device.DefaultSampleRate)
			slices.Sort(m.rates)
		}
		m.rateIndex = max(slices.Index(m.rates, device.DefaultSampleRate), 0)
		m.selectedSampleRate = m.rates[m.rateIndex]
		m.channels = min(device.MaxInputChannels, 2)
		m.activeScreen = ConfigScreen
	}
	return m
}

// updateConfig reports true once the selection is confirmed.
func (m DeviceListModel) updateConfig(msg tea.KeyMsg) (DeviceListModel, bool) {
	device := m.devices[m.cursor]
	switch {
	case key.Matches(msg, keys.Back):
		m.activeScreen = ListScreen
	case key.Matches(msg, keys.Up):
		m.rateIndex = max(m.rateIndex-1, 0)
	case key.Matches(msg, keys.Down):
		m.rateIndex = min(m.rateIndex+1, len(m.rates)-1)
	case key.Matches(msg, keys.Left, keys.Right):
		if device.MaxInputChannels > 1 {
			m.channels = 3 - m.channels // Toggle mono and stereo.
		}
	case key.Matches(msg, keys.Select):
		m.selection = &Selection{
			DeviceID:   device.ID,
			Name:       device.Name,
			SampleRate: m.selectedSampleRate,
			Channels:   m.channels,
		}
		return m, true
	}
	m.selectedSampleRate = m.rates[m.rateIndex]
	return m, false
}

// refresh renders the active screen into the viewport.
func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	title, help := "Audio Device List", "↑/↓: Navigate • Enter: Configure • q: Quit"
	if m.activeScreen == ConfigScreen {
		title, help = "Device Configuration", "↑/↓: Sample Rate • ←/→: Channels • Enter: Start • Esc: Back • q: Quit"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", titleStyle.Render(title), m.viewport.View(), infoStyle.Render(help))
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s (%s)\n    %d in, %d out, %.0f Hz default\n",
			d.ID, d.Name, d.Kind(), d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	d := m.devices[m.cursor]

	var sb strings.Builder
	fmt.Fprintf(&sb, "Configure Device: %s\n\nSample Rate:\n", d.Name)
	for i, rate := range m.rates {
		marker := " "
		if i == m.rateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz", marker, rate)
		if rate == d.DefaultSampleRate {
			line += dimStyle.Render(" (default)")
		}
		if i == m.rateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}

	mode := "mono"
	if m.channels == 2 {
		mode = "stereo"
	}
	fmt.Fprintf(&sb, "\nChannels: %s\n", lipgloss.NewStyle().Bold(true).Render(mode))
	return sb.String()
}

// Selected returns the confirmed selection, or nil if the user quit.
func (m DeviceListModel) Selected() *Selection {
	return m.selection
}

// StartDeviceListUI runs the device browser and returns the device the
// user chose to start the spectrogram on, if any.
func StartDeviceListUI() (*Selection, error) {
	final, err := tea.NewProgram(NewDeviceListModel(), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(DeviceListModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}
