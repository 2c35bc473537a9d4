package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
	"github.com/binhminh9527/Equalizer-Agent/internal/logging"
)

// Exit codes
const (
	exitOK       = 0
	exitDelivery = 1
	exitUsage    = 2
)

// errHelp is returned by parseFlags when --help was given.
var errHelp = pflag.ErrHelp

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: error, warn, info, debug")
}

// newFlagSet returns a quiet FlagSet; callers report errors themselves.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false
	return fs
}

// parseFlags parses args after moving numeric positionals (which may start
// with '-') behind a "--" terminator, so "-3" is a gain and not a flag.
func parseFlags(fs *pflag.FlagSet, args []string) error {
	return fs.Parse(reorderArgs(fs, args))
}

// reorderArgs returns flags (with their values) first, then "--", then
// every positional argument in original order.
func reorderArgs(fs *pflag.FlagSet, args []string) []string {
	var flags, positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNumber(arg) {
			positional = append(positional, arg)
			continue
		}

		flags = append(flags, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		if takesValue(fs, arg) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}

	out := make([]string, 0, len(flags)+1+len(positional))
	out = append(out, flags...)
	out = append(out, "--")
	out = append(out, positional...)
	return out
}

// takesValue reports whether a flag token consumes the next argument.
// Unknown flags are left for the parser to reject.
func takesValue(fs *pflag.FlagSet, arg string) bool {
	var f *pflag.Flag
	switch {
	case strings.HasPrefix(arg, "--"):
		f = fs.Lookup(arg[2:])
	case len(arg) == 2:
		f = fs.ShorthandLookup(arg[1:])
	default:
		// Combined shorthands like -cfile carry their value inline.
		return false
	}
	return f != nil && f.NoOptDefVal == ""
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// changed returns p if the named flag was set on the command line.
func changed[T any](fs *pflag.FlagSet, name string, p *T) *T {
	if fs.Changed(name) {
		return p
	}
	return nil
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then command-line overrides, then validation.
func loadConfig(c commonFlags, fs *pflag.FlagSet, o config.FlagOverrides) (config.Config, error) {
	cfg := config.DefaultConfig()
	if c.configPath != "" {
		var err error
		cfg, err = config.LoadFile(config.ExpandPath(c.configPath))
		if err != nil {
			return config.Config{}, err
		}
	}

	o.LogLevel = changed(fs, "log-level", &c.logLevel)
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setupLogger returns a stderr logger; stdout is kept for command output.
func setupLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Setup(level, w)
}

// usageError prints a one-line diagnostic and returns exitUsage.
func usageError(w io.Writer, err error) int {
	fmt.Fprintln(w, "error:", err)
	return exitUsage
}

// handleParseError maps a flag parse error to an exit code.
func handleParseError(s stdio, err error) int {
	if errors.Is(err, errHelp) {
		printUsage(s.out)
		return exitOK
	}
	return usageError(s.err, err)
}

// selectGains picks the vector from --preset or the positional tokens.
// The preset wins when both are present.
func selectGains(fs *pflag.FlagSet, preset string, positional []string, logger *slog.Logger) (gains.Vector, error) {
	if fs.Changed("preset") {
		if len(positional) > 0 {
			logger.Warn("both --preset and positional gains given; using preset", "preset", preset, "ignored", strings.Join(positional, " "))
		}
		return gains.ResolvePreset(preset)
	}

	v, err := gains.ParseGains(positional)
	if err != nil {
		return gains.Vector{}, fmt.Errorf("provide exactly %d gains or use --preset: %w", gains.NumBands, err)
	}
	return v, nil
}

// warnOutOfRange logs bands outside the advisory range. They are still
// sent as given.
func warnOutOfRange(v gains.Vector, logger *slog.Logger) {
	idx := v.OutOfRange()
	if len(idx) == 0 {
		return
	}
	bands := make([]string, len(idx))
	for i, b := range idx {
		bands[i] = fmt.Sprintf("%s=%g", gains.BandLabels[b], v[b])
	}
	logger.Warn("gains outside advisory range",
		"bands", strings.Join(bands, " "),
		"min_db", gains.MinDB,
		"max_db", gains.MaxDB)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
