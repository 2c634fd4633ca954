// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spectro/internal/log"
	"spectro/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio input settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Sample accumulation and FFT settings.
	Display   DisplayConfig   `yaml:"display"`   // Frequency mapping, raster and refresh settings.
	Recording RecordingConfig `yaml:"recording"` // Input recording settings.
	Transport TransportConfig `yaml:"transport"` // Network display sinks.

	// Set from the command line only.
	Command string   `yaml:"-"` // One-off command to execute instead of the live view.
	Args    []string `yaml:"-"` // Positional arguments of Command.
	Demo    bool     `yaml:"-"` // Feed a synthetic sweep instead of a device.
	TUI     bool     `yaml:"-"` // Draw the spectrogram in the terminal.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per host callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low input latency.
	InputChannels   int     `yaml:"input_channels"`    // Channels to capture (1 or 2).
	GateThreshold   float64 `yaml:"gate_threshold"`    // Peak below which a block is analysed as silence, 0 disables.
}

// AnalysisConfig holds settings for the sample accumulator and spectral analyzer.
type AnalysisConfig struct {
	FFTSize     int    `yaml:"fft_size"`     // Transform size N, a power of two.
	HopSize     int    `yaml:"hop_size"`     // New samples between analysed windows (N for no overlap).
	Window      string `yaml:"window"`       // Window function name (e.g., "Hann", "Hamming").
	Backend     string `yaml:"backend"`      // "gonum" (real-time safe) or "go-dsp" (offline only).
	ChannelMode string `yaml:"channel_mode"` // "mono" mixes to one channel, "stereo" stacks two.
}

// DisplayConfig holds settings for the frequency mapper, raster and refresh scheduler.
type DisplayConfig struct {
	Width      int     `yaml:"width"`       // Raster columns (frames of history).
	Height     int     `yaml:"height"`      // Raster rows.
	SkewFactor float64 `yaml:"skew_factor"` // Log-frequency skew exponent in (0, 1].
	MinDB      float64 `yaml:"min_db"`      // Intensity floor in dB.
	MaxDB      float64 `yaml:"max_db"`      // Intensity ceiling in dB.
	Hue        float64 `yaml:"hue"`         // Palette hue in [0, 1).
	Palette    string  `yaml:"palette"`     // "hsv", "gray" or "heat".
	RefreshHz  float64 `yaml:"refresh_hz"`  // Scheduler tick rate, 0 to derive it.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the input stream to WAV.
	OutputDir string `yaml:"output_dir"` // Directory for recorded files.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// TransportConfig holds settings for sending frames over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve columns on /ws and snapshots on /spectrogram.png.
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address, e.g. ":8080".
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`  // Minimum time between PNG snapshots.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Publish column intensities over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target "host:port".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Minimum time between packets, 0 for every column.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
		},
		Analysis: AnalysisConfig{
			FFTSize:     DefaultFFTSize,
			HopSize:     DefaultHopSize,
			Window:      DefaultWindow,
			Backend:     DefaultBackend,
			ChannelMode: DefaultChannelMode,
		},
		Display: DisplayConfig{
			Width:      DefaultWidth,
			Height:     DefaultHeight,
			SkewFactor: DefaultSkewFactor,
			MinDB:      DefaultMinDB,
			MaxDB:      DefaultMaxDB,
			Hue:        DefaultHue,
			Palette:    DefaultPalette,
			RefreshHz:  DefaultRefreshHz,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingOutputDir,
			BitDepth:  DefaultRecordingBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			SnapshotInterval: DefaultSnapshotInterval,
			UDPTargetAddress: DefaultUDPTargetAddress,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("spectro.yaml", "config.yaml"). If no file is found, it
// uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"spectro.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every setting the pipeline treats as a construction-time
// precondition and reports all violations at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, v ...any) {
		errs = append(errs, fmt.Errorf(format, v...))
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		fail("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		fail("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		fail("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels != 1 && a.InputChannels != 2 {
		fail("audio.input_channels must be 1 or 2, got %d", a.InputChannels)
	}
	if a.GateThreshold < 0 || a.GateThreshold >= 1 {
		fail("audio.gate_threshold must be in [0, 1), got %g", a.GateThreshold)
	}
	if a.InputDevice < MinDeviceID {
		fail("audio.input_device %d is invalid", a.InputDevice)
	}

	an := c.Analysis
	if !bitint.IsPowerOfTwo(an.FFTSize) || an.FFTSize < MinFFTSize || an.FFTSize > MaxFFTSize {
		fail("analysis.fft_size must be a power of two in [%d, %d], got %d", MinFFTSize, MaxFFTSize, an.FFTSize)
	}
	if an.HopSize < 1 || an.HopSize > an.FFTSize {
		fail("analysis.hop_size must be in [1, fft_size], got %d", an.HopSize)
	}
	switch an.Backend {
	case BackendGonum, BackendGoDSP:
	default:
		fail("analysis.backend %q is not one of %s, %s", an.Backend, BackendGonum, BackendGoDSP)
	}
	switch an.ChannelMode {
	case ChannelModeMono, ChannelModeStereo:
	default:
		fail("analysis.channel_mode %q is not one of %s, %s", an.ChannelMode, ChannelModeMono, ChannelModeStereo)
	}

	d := c.Display
	if d.Width < 1 || d.Width > MaxRasterSize || d.Height < 2 || d.Height > MaxRasterSize {
		fail("display size %dx%d outside [1..%d]x[2..%d]", d.Width, d.Height, MaxRasterSize, MaxRasterSize)
	}
	if d.SkewFactor <= 0 || d.SkewFactor > 1 {
		fail("display.skew_factor must be in (0, 1], got %g", d.SkewFactor)
	}
	if d.MaxDB <= d.MinDB {
		fail("display.max_db (%g) must exceed display.min_db (%g)", d.MaxDB, d.MinDB)
	}
	if d.Hue < 0 || d.Hue >= 1 {
		fail("display.hue must be in [0, 1), got %g", d.Hue)
	}
	switch strings.ToLower(d.Palette) {
	case "hsv", "gray", "grey", "heat":
	default:
		fail("display.palette %q is not one of hsv, gray, heat", d.Palette)
	}
	if d.RefreshHz < 0 || d.RefreshHz > MaxRefreshHz {
		fail("display.refresh_hz must be in [0, %d], got %g", MaxRefreshHz, d.RefreshHz)
	}

	r := c.Recording
	if r.Enabled {
		switch r.BitDepth {
		case 16, 24, 32:
		default:
			fail("recording.bit_depth must be 16, 24 or 32, got %d", r.BitDepth)
		}
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddr == "" {
		fail("transport.websocket_addr must be set when the websocket display is enabled")
	}
	if t.SnapshotInterval < 0 || t.UDPSendInterval < 0 {
		fail("transport intervals must not be negative")
	}
	if t.UDPEnabled && !strings.Contains(t.UDPTargetAddress, ":") {
		fail("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
	}

	return errors.Join(errs...)
}

// ResolvedLevel returns the configured log level, forced to debug when Debug is set.
func (c *Config) ResolvedLevel() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// applyEnvOverrides lets ENV_* variables override file and default values.
// Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	boolEnv := func(name string, dst *bool) {
		if val, ok := os.LookupEnv(name); ok {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
				log.Debugf("Config: overriding from %s: %v", name, b)
			} else {
				log.Warnf("Config: ignoring %s=%q: %v", name, val, err)
			}
		}
	}
	intEnv := func(name string, dst *int) {
		if val, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
				log.Debugf("Config: overriding from %s: %d", name, n)
			} else {
				log.Warnf("Config: ignoring %s=%q: %v", name, val, err)
			}
		}
	}
	stringEnv := func(name string, dst *string) {
		if val, ok := os.LookupEnv(name); ok {
			*dst = val
			log.Debugf("Config: overriding from %s: %s", name, val)
		}
	}

	boolEnv("ENV_DEBUG", &c.Debug)
	stringEnv("ENV_LOG_LEVEL", &c.LogLevel)
	intEnv("ENV_INPUT_DEVICE", &c.Audio.InputDevice)
	intEnv("ENV_FFT_SIZE", &c.Analysis.FFTSize)
	intEnv("ENV_HOP_SIZE", &c.Analysis.HopSize)
	stringEnv("ENV_CHANNEL_MODE", &c.Analysis.ChannelMode)
	boolEnv("ENV_WEBSOCKET_ENABLED", &c.Transport.WebSocketEnabled)
	stringEnv("ENV_WEBSOCKET_ADDR", &c.Transport.WebSocketAddr)
	boolEnv("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	stringEnv("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
}
