package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/statews"
)

// runWatch prints every gains update from a server's state feed.
func runWatch(args []string, s stdio) int {
	fs := newFlagSet("eqbridge watch")

	var common commonFlags
	common.register(fs)

	var (
		wsURL = fs.String("url", "", "State feed websocket URL (default ws://<client.host>:<server.state_port>/ws)")
		once  = fs.Bool("once", false, "Print the current gains and exit")
	)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}

	cfg, err := loadConfig(common, fs, config.FlagOverrides{})
	if err != nil {
		return usageError(s.err, err)
	}
	logger := setupLogger(cfg, s.err)

	url := *wsURL
	if url == "" {
		if cfg.Server.StatePort == 0 {
			return usageError(s.err, fmt.Errorf("state feed disabled (server.state_port is 0); pass --url"))
		}
		url = "ws://" + net.JoinHostPort(cfg.Client.Host, strconv.Itoa(cfg.Server.StatePort)) + statews.PathWS
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Debug("connecting to state feed", "url", url)

	err = statews.Watch(ctx, url, func(msg statews.Message) error {
		d, err := msg.Gains()
		if err != nil {
			logger.Warn("ignoring undecodable state message", "type", msg.Type, "error", err)
			return nil
		}
		fmt.Fprintf(s.out, "[%s] v%d %s\n", msg.Type, d.Version, d.Gains)

		if *once && msg.Type == statews.TypeStateInit {
			return statews.ErrStop
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(s.err, "watch failed: %v\n", err)
		return exitDelivery
	}
	return exitOK
}
