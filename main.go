package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gordonklaus/portaudio"
)

// These can be overridden with ldflags:
// go build -ldflags "-X main.version=1.2.3 -X main.commit=abcd123 -X main.date=2026-01-02T03:04:05Z"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Tunables --------------------

const (
	defaultSampleRate = 44100
	defaultChannels   = 2

	// defaultTailMargin keeps the input stream open after the last MIDI event
	// so the acoustic decay of the final notes is not cut off.
	defaultTailMargin = 3 * time.Second

	defaultCooldownPlayMin = 15
	defaultCooldownRestMin = 3

	// exitInterrupted is returned when an operator interrupt tears down a
	// session mid-capture.
	exitInterrupted = 130
)

const banner = `
 ________  ___  ________  ________   ________
|\   __  \|\  \|\   __  \|\   ___  \|\   __  \
\ \  \|\  \ \  \ \  \|\  \ \  \\ \  \ \  \|\  \
 \ \   ____\ \  \ \   __  \ \  \\ \  \ \  \\\  \
  \ \  \___|\ \  \ \  \ \  \ \  \\ \  \ \  \\\  \
   \ \__\    \ \__\ \__\ \__\ \__\\ \__\ \_______\
    \|__|     \|__|\|__|\|__|\|__| \|__|\|_______|
 ________  ________  ________  _________  ___  ___  ________  _______
|\   ____\|\   __  \|\   __  \|\___   ___\\  \|\  \|\   __  \|\  ___ \
\ \  \___|\ \  \|\  \ \  \|\  \|___ \  \_\ \  \\\  \ \  \|\  \ \   __/|
 \ \  \    \ \   __  \ \   ____\   \ \  \ \ \  \\\  \ \   _  _\ \  \_|/__
  \ \  \____\ \  \ \  \ \  \___|    \ \  \ \ \  \\\  \ \  \\  \\ \  \_|\ \
   \ \_______\ \__\ \__\ \__\        \ \__\ \ \_______\ \__\\ _\\ \_______\
    \|_______|\|__|\|__|\|__|         \|__|  \|_______|\|__|\|__|\|_______|`

// -------------------- Entry point --------------------

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runRunCmd(os.Args[2:])
	case "capture":
		runCaptureCmd(os.Args[2:])
	case "devices":
		runDevicesCmd(os.Args[2:])
	case "postprocess":
		runPostprocessCmd(os.Args[2:])
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("piano-capture - MIDI playback with synchronized audio capture")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  piano-capture <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run          play every MIDI file under a root and record one WAV per file")
	fmt.Println("  capture      play a single MIDI file and record one WAV")
	fmt.Println("  devices      list MIDI output ports and audio input devices")
	fmt.Println("  postprocess  mix down / trim captured WAVs with ffmpeg")
	fmt.Println("  version      print version information")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  piano-capture devices")
	fmt.Println("  piano-capture run -midi-root ./scores -audio-root ./takes -port 'Disklavier' -device 3")
	fmt.Println("  piano-capture capture -in a.mid -out a.wav -port 'Disklavier' -device 3 -channel-map 2,3 -channels 2")
	fmt.Println("  piano-capture postprocess -audio-root ./takes -output-root ./mix -weights 0,0,0.8,0.8,0.1,0.1")
}

func printVersion() {
	fmt.Printf("piano-capture %s (commit %s, built %s)\n", version, commit, date)
}

// -------------------- run --------------------

func runRunCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	midiRoot := fs.String("midi-root", "", "root directory of MIDI files to play (recursive)")
	audioRoot := fs.String("audio-root", "", "root directory for WAV output, mirroring the MIDI tree")
	port := fs.String("port", "", "MIDI output port name (exact match, then substring)")
	device := fs.Int("device", -1, "input audio device index (see 'piano-capture devices')")
	sampleRate := fs.Int("sample-rate", defaultSampleRate, "sample rate for both the input stream and the WAV files")
	channels := fs.Int("channels", defaultChannels, "number of channels to record")
	channelMap := fs.String("channel-map", "", "comma-separated input channel indices to record; length must equal -channels")
	suffix := fs.String("suffix", "", "suffix inserted before .wav on every output file")
	tail := fs.Duration("tail", defaultTailMargin, "how long to keep recording after the last MIDI event")
	coolPlay := fs.Float64("cooldown-play", defaultCooldownPlayMin, "minutes of playback before a mandatory rest")
	coolRest := fs.Float64("cooldown-rest", defaultCooldownRestMin, "minutes to rest once the playback window is exceeded")
	realtime := fs.Bool("realtime", true, "request realtime scheduling for the process")
	debug := fs.Bool("debug", false, "enable debug logging")

	_ = fs.Parse(args)
	initLogger(*debug)

	if *midiRoot == "" || *audioRoot == "" || *port == "" || *device < 0 {
		fmt.Fprintln(os.Stderr, "run: -midi-root, -audio-root, -port and -device are required")
		fs.Usage()
		os.Exit(2)
	}

	chmap, err := parseChannelMap(*channelMap)
	if err != nil {
		logger.Error("run: invalid -channel-map", "err", err)
		os.Exit(1)
	}
	if err := validateChannelMap(*channels, chmap); err != nil {
		logger.Error("run: invalid channel configuration", "err", err)
		os.Exit(1)
	}
	cool, err := newCooldown(*coolPlay, *coolRest)
	if err != nil {
		logger.Error("run: invalid cooldown parameters", "err", err)
		os.Exit(1)
	}

	fmt.Println(banner)
	fmt.Println()
	fmt.Println("(To exit, press Ctrl+C)")
	fmt.Println()

	if *realtime {
		if err := enableRealtime(); err != nil {
			logger.Warn("run: realtime scheduling unavailable", "err", err)
		} else {
			logger.Info("run: realtime scheduling enabled")
		}
	}

	cfg := batchConfig{
		midiRoot:    *midiRoot,
		audioRoot:   *audioRoot,
		portName:    *port,
		audioDevice: *device,
		sampleRate:  *sampleRate,
		numChannels: *channels,
		channelMap:  chmap,
		suffix:      *suffix,
		tailMargin:  *tail,
	}
	os.Exit(doRun(cfg, cool))
}

// doRun owns the resources that must be released before the process exits;
// os.Exit is only called by the caller once the defers here have run.
func doRun(cfg batchConfig, cool *cooldown) int {
	if err := portaudio.Initialize(); err != nil {
		logger.Error("run: portaudio init failed", "err", err)
		return 1
	}
	defer portaudio.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &batchRunner{
		cfg:        cfg,
		cool:       cool,
		open:       deviceOpeners(cfg.portName, cfg.audioDevice),
		runSession: captureOne,
	}
	if err := r.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run: interrupted, batch aborted")
			return exitInterrupted
		}
		logger.Error("run: batch failed", "err", err)
		return 1
	}
	return 0
}

// -------------------- capture --------------------

func runCaptureCmd(args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)

	in := fs.String("in", "", "MIDI file to play")
	out := fs.String("out", "", "WAV file to write")
	port := fs.String("port", "", "MIDI output port name (exact match, then substring)")
	device := fs.Int("device", -1, "input audio device index")
	sampleRate := fs.Int("sample-rate", defaultSampleRate, "sample rate for both the input stream and the WAV file")
	channels := fs.Int("channels", defaultChannels, "number of channels to record")
	channelMap := fs.String("channel-map", "", "comma-separated input channel indices to record; length must equal -channels")
	tail := fs.Duration("tail", defaultTailMargin, "how long to keep recording after the last MIDI event")
	debug := fs.Bool("debug", false, "enable debug logging")

	_ = fs.Parse(args)
	initLogger(*debug)

	if *in == "" || *out == "" || *port == "" || *device < 0 {
		fmt.Fprintln(os.Stderr, "capture: -in, -out, -port and -device are required")
		fs.Usage()
		os.Exit(2)
	}

	chmap, err := parseChannelMap(*channelMap)
	if err != nil {
		logger.Error("capture: invalid -channel-map", "err", err)
		os.Exit(1)
	}
	if err := validateChannelMap(*channels, chmap); err != nil {
		logger.Error("capture: invalid channel configuration", "err", err)
		os.Exit(1)
	}

	desc := sessionDescriptor{
		sourcePath:  *in,
		destPath:    *out,
		sampleRate:  *sampleRate,
		numChannels: *channels,
		channelMap:  chmap,
		tailMargin:  *tail,
	}
	os.Exit(doCapture(desc, *port, *device))
}

func doCapture(desc sessionDescriptor, portName string, device int) int {
	if err := portaudio.Initialize(); err != nil {
		logger.Error("capture: portaudio init failed", "err", err)
		return 1
	}
	defer portaudio.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := captureOne(ctx, desc, deviceOpeners(portName, device)); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("capture: interrupted, session torn down")
			return exitInterrupted
		}
		logger.Error("capture: session failed", "err", err)
		return 1
	}
	return 0
}

// -------------------- devices --------------------

func runDevicesCmd(args []string) {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)
	initLogger(*debug)

	names, err := listOutPorts()
	if err != nil {
		logger.Error("devices: listing MIDI outputs failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("MIDI output ports:")
	if len(names) == 0 {
		fmt.Println("  (none)")
	}
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}

	if err := portaudio.Initialize(); err != nil {
		logger.Error("devices: portaudio init failed", "err", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		logger.Error("devices: listing audio devices failed", "err", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println("Audio input devices:")
	found := false
	for i, d := range devs {
		if d.MaxInputChannels == 0 {
			continue
		}
		found = true
		fmt.Printf("  [%d] %s (%d in, %.0f Hz)\n", i, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	if !found {
		fmt.Println("  (none)")
	}
}

// -------------------- postprocess --------------------

func runPostprocessCmd(args []string) {
	fs := flag.NewFlagSet("postprocess", flag.ExitOnError)

	audioRoot := fs.String("audio-root", "", "root directory of captured WAV files")
	outputRoot := fs.String("output-root", "", "root directory for processed output, mirroring the input tree")
	sampleRate := fs.Int("sample-rate", defaultSampleRate, "output sample rate")
	offsetMS := fs.Int("offset-ms", defaultOffsetMS, "leading trim in milliseconds (fixed MIDI-to-audio delay)")
	weights := fs.String("weights", defaultChannelWeights, "comma-separated per-channel weights for the mono mixdown")
	stereo := fs.Bool("stereo", false, "produce stereo output instead of a mono mixdown")
	c0Weights := fs.String("stereo-c0-weights", "", "comma-separated per-channel weights for the left output channel")
	c1Weights := fs.String("stereo-c1-weights", "", "comma-separated per-channel weights for the right output channel")
	overwrite := fs.Bool("overwrite", false, "reprocess files whose output already exists")
	debug := fs.Bool("debug", false, "enable debug logging")

	_ = fs.Parse(args)
	initLogger(*debug)

	if *audioRoot == "" || *outputRoot == "" {
		fmt.Fprintln(os.Stderr, "postprocess: -audio-root and -output-root are required")
		fs.Usage()
		os.Exit(2)
	}

	cfg := postprocessConfig{
		audioRoot:  *audioRoot,
		outputRoot: *outputRoot,
		sampleRate: *sampleRate,
		offsetMS:   *offsetMS,
		stereo:     *stereo,
		overwrite:  *overwrite,
	}
	var err error
	if cfg.channelWeights, err = parseWeights(*weights); err != nil {
		logger.Error("postprocess: invalid -weights", "err", err)
		os.Exit(1)
	}
	if cfg.stereoC0, err = parseWeights(*c0Weights); err != nil {
		logger.Error("postprocess: invalid -stereo-c0-weights", "err", err)
		os.Exit(1)
	}
	if cfg.stereoC1, err = parseWeights(*c1Weights); err != nil {
		logger.Error("postprocess: invalid -stereo-c1-weights", "err", err)
		os.Exit(1)
	}
	// Weight lists are validated here, before any transcode starts.
	if _, err := panFilter(cfg); err != nil {
		logger.Error("postprocess: invalid mixdown configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runPostprocess(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(exitInterrupted)
		}
		logger.Error("postprocess: failed", "err", err)
		os.Exit(1)
	}
}
