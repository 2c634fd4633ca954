// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"

	"spectro/internal/config"
	"spectro/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ParseArgs parses os.Args into a validated configuration.
func ParseArgs() (*config.Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	// Flags write into flagValues; only the ones set on the command line are
	// copied over the loaded configuration.
	flagValues := config.Default()
	var (
		configPath string
		options    *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), flagValues, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			options = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandList
			return nil
		},
	})

	// Device browser
	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Browse audio devices and start the spectrogram on one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandDevices
			return nil
		},
	})

	// Offline rendering
	rootCmd.AddCommand(&cobra.Command{
		Use:   "render <input> <output.png>",
		Short: "Render an audio file (wav, mp3, flac, ogg) to a PNG spectrogram",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandRender
			options.Args = args
			return nil
		},
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML configuration file")

	// Audio Device Configuration
	flags.IntVarP(&flagValues.Audio.InputDevice, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&flagValues.Audio.InputChannels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	flags.Float64VarP(&flagValues.Audio.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&flagValues.Audio.FramesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&flagValues.Audio.LowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	flags.Float64Var(&flagValues.Audio.GateThreshold, "gate", 0,
		"Treat blocks whose peak is below this level as silence (0 disables)")

	// Analysis Configuration
	flags.IntVarP(&flagValues.Analysis.FFTSize, "fft-size", "n", config.DefaultFFTSize,
		"FFT size N, a power of two")
	flags.IntVar(&flagValues.Analysis.HopSize, "hop", config.DefaultHopSize,
		"Samples between analysed windows")
	flags.StringVar(&flagValues.Analysis.Window, "window", config.DefaultWindow,
		"Window function (Hann, Hamming, Blackman, BlackmanHarris, FlatTop, ...)")
	flags.StringVar(&flagValues.Analysis.Backend, "backend", config.DefaultBackend,
		"FFT backend: gonum, or go-dsp for offline rendering")
	flags.StringVarP(&flagValues.Analysis.ChannelMode, "mode", "m", config.DefaultChannelMode,
		"Channel mode: mono mixes down, stereo stacks both channels")

	// Display Configuration
	flags.IntVar(&flagValues.Display.Width, "width", config.DefaultWidth, "Raster width in columns")
	flags.IntVar(&flagValues.Display.Height, "height", config.DefaultHeight, "Raster height in rows")
	flags.Float64Var(&flagValues.Display.SkewFactor, "skew", config.DefaultSkewFactor,
		"Frequency skew in (0, 1]; smaller values give low frequencies more rows")
	flags.Float64Var(&flagValues.Display.MinDB, "min-db", config.DefaultMinDB, "Intensity floor in dB")
	flags.Float64Var(&flagValues.Display.MaxDB, "max-db", config.DefaultMaxDB, "Intensity ceiling in dB")
	flags.Float64Var(&flagValues.Display.Hue, "hue", config.DefaultHue, "Palette hue in [0, 1)")
	flags.StringVar(&flagValues.Display.Palette, "palette", config.DefaultPalette, "Palette: hsv, gray or heat")
	flags.Float64Var(&flagValues.Display.RefreshHz, "refresh", config.DefaultRefreshHz,
		"Refresh rate in Hz (0 derives it from the sample rate and hop)")

	// Display Sinks
	flags.StringVar(&flagValues.Transport.WebSocketAddr, "ws", config.DefaultWebSocketAddr,
		"Serve the spectrogram over websocket on this address")
	flags.StringVar(&flagValues.Transport.UDPTargetAddress, "udp", config.DefaultUDPTargetAddress,
		"Publish column intensities over UDP to host:port")
	flags.BoolVar(&flagValues.TUI, "tui", false, "Draw the spectrogram in the terminal")
	flags.BoolVar(&flagValues.Demo, "demo", false, "Analyse a synthetic sweep instead of an audio device")

	// Recording Configuration
	flags.BoolVarP(&flagValues.Recording.Enabled, "record", "r", false,
		"Record audio from the specified input device")
	flags.StringVarP(&flagValues.Recording.OutputDir, "output", "o", config.DefaultRecordingOutputDir,
		"Directory for recordings, named spectro-YYYYMMDD-HHMMSS.wav")

	// Debug Configuration
	flags.BoolVarP(&flagValues.Debug, "verbose", "v", false, "Show verbose output")

	// Execute the CLI. A nil slice would make cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options == nil {
		// --help or --version
		return nil, nil
	}
	return options, nil
}

// applyFlags copies every flag set on the command line from src into dst.
func applyFlags(flags *pflag.FlagSet, src, dst *config.Config) {
	setters := map[string]func(){
		"device":            func() { dst.Audio.InputDevice = src.Audio.InputDevice },
		"channels":          func() { dst.Audio.InputChannels = src.Audio.InputChannels },
		"sample-rate":       func() { dst.Audio.SampleRate = src.Audio.SampleRate },
		"frames-per-buffer": func() { dst.Audio.FramesPerBuffer = src.Audio.FramesPerBuffer },
		"low-latency":       func() { dst.Audio.LowLatency = src.Audio.LowLatency },
		"gate":              func() { dst.Audio.GateThreshold = src.Audio.GateThreshold },
		"fft-size":          func() { dst.Analysis.FFTSize = src.Analysis.FFTSize },
		"hop":               func() { dst.Analysis.HopSize = src.Analysis.HopSize },
		"window":            func() { dst.Analysis.Window = src.Analysis.Window },
		"backend":           func() { dst.Analysis.Backend = src.Analysis.Backend },
		"mode":              func() { dst.Analysis.ChannelMode = src.Analysis.ChannelMode },
		"width":             func() { dst.Display.Width = src.Display.Width },
		"height":            func() { dst.Display.Height = src.Display.Height },
		"skew":              func() { dst.Display.SkewFactor = src.Display.SkewFactor },
		"min-db":            func() { dst.Display.MinDB = src.Display.MinDB },
		"max-db":            func() { dst.Display.MaxDB = src.Display.MaxDB },
		"hue":               func() { dst.Display.Hue = src.Display.Hue },
		"palette":           func() { dst.Display.Palette = src.Display.Palette },
		"refresh":           func() { dst.Display.RefreshHz = src.Display.RefreshHz },
		"ws": func() {
			dst.Transport.WebSocketEnabled = true
			dst.Transport.WebSocketAddr = src.Transport.WebSocketAddr
		},
		"udp": func() {
			dst.Transport.UDPEnabled = true
			dst.Transport.UDPTargetAddress = src.Transport.UDPTargetAddress
		},
		"tui":     func() { dst.TUI = src.TUI },
		"demo":    func() { dst.Demo = src.Demo },
		"record":  func() { dst.Recording.Enabled = src.Recording.Enabled },
		"output":  func() { dst.Recording.OutputDir = src.Recording.OutputDir },
		"verbose": func() { dst.Debug = src.Debug },
	}
	flags.Visit(func(f *pflag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set()
		}
	})
}
