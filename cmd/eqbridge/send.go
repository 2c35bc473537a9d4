package main

import (
	"fmt"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/ipc"
)

// runSend is the default command: deliver one vector and report the reply.
func runSend(args []string, s stdio) int {
	fs := newFlagSet("eqbridge")

	var common commonFlags
	common.register(fs)

	var (
		preset  = fs.String("preset", "", "Built-in preset: flat|bass|treble|vshape")
		host    = fs.String("host", config.DefaultHost, "Server host")
		port    = fs.Int("port", config.DefaultPort, "Server port")
		timeout = fs.Float64("timeout", config.DefaultTimeoutSeconds, "Socket budget in seconds")
	)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}

	cfg, err := loadConfig(common, fs, config.FlagOverrides{
		Host:           changed(fs, "host", host),
		Port:           changed(fs, "port", port),
		TimeoutSeconds: changed(fs, "timeout", timeout),
	})
	if err != nil {
		return usageError(s.err, err)
	}
	logger := setupLogger(cfg, s.err)

	// Codec errors stop here, before any network I/O.
	v, err := selectGains(fs, *preset, fs.Args(), logger)
	if err != nil {
		return usageError(s.err, err)
	}
	warnOutOfRange(v, logger)

	ctx, cancel := signalContext()
	defer cancel()

	client := ipc.NewClient(cfg.IPCClient(), logger)
	resp, err := client.Send(ctx, v)
	if err != nil {
		fmt.Fprintf(s.err, "Failed to send gains: %v\n", err)
		return exitDelivery
	}

	fmt.Fprintf(s.out, "Server response: %s\n", resp)
	fmt.Fprintf(s.out, "Sent gains: %s\n", v.Encode())
	return exitOK
}
