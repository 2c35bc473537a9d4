package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/faiface/beep/wav"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/equalizer"
)

// runRender applies a gain vector to a WAV file.
func runRender(args []string, s stdio) int {
	fs := newFlagSet("eqbridge render")

	var common commonFlags
	common.register(fs)

	var (
		in     = fs.String("in", "", "Input WAV file")
		out    = fs.String("out", "", "Output WAV file")
		preset = fs.String("preset", "", "Built-in preset: flat|bass|treble|vshape")
	)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}
	if *in == "" || *out == "" {
		return usageError(s.err, errors.New("render needs --in and --out"))
	}

	cfg, err := loadConfig(common, fs, config.FlagOverrides{})
	if err != nil {
		return usageError(s.err, err)
	}
	logger := setupLogger(cfg, s.err)

	v, err := selectGains(fs, *preset, fs.Args(), logger)
	if err != nil {
		return usageError(s.err, err)
	}
	warnOutOfRange(v, logger)

	if err := renderFile(*in, *out, equalizer.NewState(v)); err != nil {
		fmt.Fprintf(s.err, "render failed: %v\n", err)
		return exitDelivery
	}

	logger.Info("rendered", "in", *in, "out", *out, "gains", v.String())
	return exitOK
}

func renderFile(inPath, outPath string, state *equalizer.State) error {
	in, err := os.Open(config.ExpandPath(inPath))
	if err != nil {
		return err
	}
	defer in.Close()

	src, format, err := openWAV(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", inPath, err)
	}

	out, err := os.Create(config.ExpandPath(outPath))
	if err != nil {
		return err
	}

	eq := equalizer.NewStreamer(src, format.SampleRate, state)
	if err := wav.Encode(out, eq, format); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode %s: %w", outPath, err)
	}
	if err := eq.Err(); err != nil {
		_ = out.Close()
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	return out.Close()
}

// runResponse prints the measured magnitude response of a gain vector.
func runResponse(args []string, s stdio) int {
	fs := newFlagSet("eqbridge response")

	var common commonFlags
	common.register(fs)

	var (
		preset     = fs.String("preset", "", "Built-in preset: flat|bass|treble|vshape")
		sampleRate = fs.Int("sample-rate", config.DefaultSampleRate, "Design sample rate in Hz")
		asJSON     = fs.Bool("json", false, "Print JSON instead of a table")
	)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}

	cfg, err := loadConfig(common, fs, config.FlagOverrides{})
	if err != nil {
		return usageError(s.err, err)
	}
	logger := setupLogger(cfg, s.err)

	rate := cfg.Server.SampleRate
	if fs.Changed("sample-rate") {
		rate = *sampleRate
	}
	if rate <= 0 {
		return usageError(s.err, fmt.Errorf("--sample-rate must be > 0"))
	}

	v, err := selectGains(fs, *preset, fs.Args(), logger)
	if err != nil {
		return usageError(s.err, err)
	}

	points := equalizer.Response(v, float64(rate), 0)

	if *asJSON {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(points); err != nil {
			fmt.Fprintf(s.err, "encode response: %v\n", err)
			return exitDelivery
		}
		return exitOK
	}

	fmt.Fprintf(s.out, "%-10s %10s %12s\n", "BAND", "TARGET", "MEASURED")
	for _, p := range points {
		measured := "n/a"
		if p.Realizable {
			measured = fmt.Sprintf("%+.2f dB", p.Measured)
		}
		fmt.Fprintf(s.out, "%-10s %+7.2f dB %12s\n", formatHz(p.Frequency), p.Gain, measured)
	}
	return exitOK
}

func formatHz(f float64) string {
	if f >= 1000 {
		return fmt.Sprintf("%gkHz", f/1000)
	}
	return fmt.Sprintf("%gHz", f)
}
