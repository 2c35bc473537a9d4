package main

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/binhminh9527/Equalizer-Agent/internal/config"
	"github.com/binhminh9527/Equalizer-Agent/internal/equalizer"
	"github.com/binhminh9527/Equalizer-Agent/internal/gains"
	"github.com/binhminh9527/Equalizer-Agent/internal/ipc"
	"github.com/binhminh9527/Equalizer-Agent/internal/statews"
)

// runServe runs the reference server until SIGINT/SIGTERM.
func runServe(args []string, s stdio) int {
	fs := newFlagSet("eqbridge serve")

	var common commonFlags
	common.register(fs)

	var (
		listenHost = fs.String("listen-host", config.DefaultHost, "Listen address")
		port       = fs.Int("port", config.DefaultPort, "Gain IPC port (0 picks a free port)")
		statePort  = fs.Int("state-port", config.DefaultStatePort, "State feed HTTP port (0 disables)")
		reusePort  = fs.Bool("reuse-port", false, "Set SO_REUSEPORT on the gain IPC socket")
	)

	if err := parseFlags(fs, args); err != nil {
		return handleParseError(s, err)
	}
	if fs.NArg() > 0 {
		return usageError(s.err, fmt.Errorf("serve takes no arguments, got %q", fs.Args()))
	}

	cfg, err := loadConfig(common, fs, config.FlagOverrides{
		ListenHost: changed(fs, "listen-host", listenHost),
		ServerPort: changed(fs, "port", port),
		StatePort:  changed(fs, "state-port", statePort),
		ReusePort:  changed(fs, "reuse-port", reusePort),
	})
	if err != nil {
		return usageError(s.err, err)
	}
	logger := setupLogger(cfg, s.err)

	ctx, cancel := signalContext()
	defer cancel()

	state := equalizer.NewState(gains.Vector{})
	srv := ipc.NewServer(cfg.IPCServer(), state, logger)

	ln, err := srv.Listen(ctx)
	if err != nil {
		logger.Error("failed to start gain IPC server", "error", err)
		return exitDelivery
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})

	if cfg.Server.StatePort != 0 {
		feed := statews.NewServer(state, logger, statews.HubConfig{})
		updates, unsubscribe := state.Subscribe(16)
		defer unsubscribe()

		addr := net.JoinHostPort(cfg.Server.ListenHost, strconv.Itoa(cfg.Server.StatePort))

		g.Go(func() error {
			feed.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			statews.RunBroadcaster(gctx, feed.Hub(), updates, statews.CoalesceWindow, logger)
			return nil
		})
		g.Go(func() error {
			return feed.ListenAndServe(gctx, addr)
		})
	}

	logger.Info("eqbridge server running",
		"addr", ln.Addr().String(),
		"state_port", cfg.Server.StatePort)

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		return exitDelivery
	}

	logger.Info("server stopped")
	return exitOK
}
