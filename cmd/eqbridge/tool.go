package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
	"github.com/binhminh9527/Equalizer-Agent/internal/ipc"
	"github.com/binhminh9527/Equalizer-Agent/internal/tool"
)

// toolFlags are shared by the tool and shell commands.
type toolFlags struct {
	common      commonFlags
	host        *string
	port        *int
	callTimeout *float64
	toolLog     *string
}

func registerToolFlags(fs *pflag.FlagSet) *toolFlags {
	t := &toolFlags{}
	t.common.register(fs)
	t.host = fs.String("host", config.DefaultHost, "Server host")
	t.port = fs.Int("port", config.DefaultPort, "Server port")
	t.callTimeout = fs.Float64("call-timeout", config.DefaultCallTimeoutSeconds, "Whole-call budget in seconds")
	t.toolLog = fs.String("tool-log", "", "Append every invocation to this file")
	return t
}

// build loads config and assembles the tool. The returned closer flushes
// the invocation log.
func (t *toolFlags) build(fs *pflag.FlagSet, s stdio) (*tool.SetGains, *slog.Logger, io.Closer, error) {
	cfg, err := loadConfig(t.common, fs, config.FlagOverrides{
		Host:               changed(fs, "host", t.host),
		Port:               changed(fs, "port", t.port),
		CallTimeoutSeconds: changed(fs, "call-timeout", t.callTimeout),
		ToolLogFile:        changed(fs, "tool-log", t.toolLog),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ValidateTool(); err != nil {
		return nil, nil, nil, err
	}
	logger := setupLogger(cfg, s.err)

	invocations, closer := tool.OpenInvocationLog(cfg.Tool.LogFile)
	client := ipc.NewClient(cfg.IPCClient(), logger)

	sg := tool.NewSetGains(client, logger,
		tool.WithCallTimeout(cfg.CallTimeout()),
		tool.WithInvocationLog(invocations))
	return sg, logger, closer, nil
}

// runTool invokes the agent tool once. It exits 0 whatever the outcome;
// the result text is the tool's answer.
func runTool(args []string, s stdio) int {
	fs := newFlagSet("eqbridge tool")
	tf := registerToolFlags(fs)
	rawJSON := fs.String("json", "", `Raw tool arguments, e.g. '{"gains": "bass"}'`)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}

	sg, _, closer, err := tf.build(fs, s)
	if err != nil {
		return usageError(s.err, err)
	}
	defer closer.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var out string
	if fs.Changed("json") {
		out, _ = sg.Call(ctx, *rawJSON)
	} else {
		out = sg.Invoke(ctx, strings.Join(fs.Args(), " "))
	}
	fmt.Fprintln(s.out, out)
	return exitOK
}

const shellHelp = `Enter a preset (flat, bass, treble, vshape) or 10 gains in dB.
Commands: help, presets, quit`

// runShell reads commands interactively and sends each through the tool.
func runShell(args []string, s stdio) int {
	fs := newFlagSet("eqbridge shell")
	tf := registerToolFlags(fs)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}

	sg, logger, closer, err := tf.build(fs, s)
	if err != nil {
		return usageError(s.err, err)
	}
	defer closer.Close()

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("presets"),
		readline.PcItem("quit"),
	}
	for _, name := range gains.PresetNames() {
		items = append(items, readline.PcItem(name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eq> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           s.in,
		Stdout:          s.out,
		Stderr:          s.err,
	})
	if err != nil {
		logger.Error("failed to start shell", "error", err)
		return exitDelivery
	}
	defer rl.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintln(rl.Stdout(), shellHelp)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return exitOK
			}
			continue
		}
		if err != nil {
			return exitOK
		}

		out, quit := shellLine(ctx, sg, line)
		if out != "" {
			fmt.Fprintln(rl.Stdout(), out)
		}
		if quit {
			return exitOK
		}
	}
}

// shellLine handles one line of shell input.
func shellLine(ctx context.Context, sg *tool.SetGains, line string) (string, bool) {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return "", false
	case "quit", "exit":
		return "", true
	case "help", "?":
		return shellHelp, false
	case "presets":
		var b strings.Builder
		for i, name := range gains.PresetNames() {
			v, _ := gains.ResolvePreset(name)
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%-7s %s", name, v.Encode())
		}
		return b.String(), false
	}
	return sg.Invoke(ctx, line), false
}
