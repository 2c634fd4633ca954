// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the spectrogram engine: a 4096-point FFT advanced
// by a 512-sample hop, drawn into a 512x512 raster at up to 1000 ticks a second.
const (
	// Audio input
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultSampleRate      = 44100       // Hz
	DefaultFramesPerBuffer = 512         // Host block size
	DefaultInputChannels   = 2           // Stereo capture
	DefaultLowLatency      = false

	// Analysis
	DefaultFFTSize     = 4096
	DefaultHopSize     = 512
	DefaultWindow      = "Hann"
	DefaultBackend     = BackendGonum
	DefaultChannelMode = ChannelModeStereo

	// Display
	DefaultWidth      = 512
	DefaultHeight     = 512
	DefaultSkewFactor = 0.2
	DefaultMinDB      = -100.0
	DefaultMaxDB      = 0.0
	DefaultHue        = 0.5 // Cyan, as a 0-1 fraction of the colour wheel
	DefaultPalette    = "hsv"
	DefaultRefreshHz  = 0 // Derive from sample rate and hop

	// Transport
	DefaultWebSocketAddr      = ":8080"
	DefaultSnapshotInterval   = 250 * time.Millisecond
	DefaultUDPTargetAddress   = "127.0.0.1:9090"
	DefaultRecordingBitDepth  = 16
	DefaultRecordingOutputDir = "./recordings"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MinFFTSize      = 4
	MaxFFTSize      = 1 << 16
	MaxRasterSize   = 8192 // Either raster dimension
	MaxRefreshHz    = 1000
)

// Transform backends accepted in analysis.backend.
const (
	BackendGonum = "gonum"
	BackendGoDSP = "go-dsp"
)

// Channel policies accepted in analysis.channel_mode.
const (
	ChannelModeMono   = "mono"
	ChannelModeStereo = "stereo"
)

// Commands that run instead of the live spectrogram.
const (
	CommandList    = "list"
	CommandDevices = "devices"
	CommandRender  = "render"
)
