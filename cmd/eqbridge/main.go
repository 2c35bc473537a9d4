package main

import (
	"fmt"
	"io"
	"os"
)

const version = "1.0.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "eqbridge v%s\n", version)
	fmt.Fprintln(w, "10-band equalizer gain control over TCP")
}

func printUsage(w io.Writer) {
	printVersion(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  eqbridge [OPTIONS] [GAIN x10]")
	fmt.Fprintln(w, "  eqbridge <subcommand> [OPTIONS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DESCRIPTION:")
	fmt.Fprintln(w, "  Sends one 10-band gain vector (dB, lowest band first) to an equalizer")
	fmt.Fprintln(w, "  server and prints its reply. Bands: 31 62 125 250 500 1k 2k 4k 8k 16k Hz.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  --preset string")
	fmt.Fprintln(w, "        Built-in preset: flat|bass|treble|vshape (wins over positional gains)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --host string")
	fmt.Fprintf(w, "        Server host (default %q)\n", "127.0.0.1")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --port int")
	fmt.Fprintln(w, "        Server port (default 5560)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --timeout float")
	fmt.Fprintln(w, "        Connect + send + receive budget in seconds (default 3.0)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -c, --config string")
	fmt.Fprintln(w, "        YAML config file (all subcommands)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --log-level string")
	fmt.Fprintln(w, "        Log level: error, warn, info, debug (default \"info\")")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --version")
	fmt.Fprintln(w, "        Print version and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  --help")
	fmt.Fprintln(w, "        Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SUBCOMMANDS:")
	fmt.Fprintln(w, "  serve")
	fmt.Fprintln(w, "        Run the reference server and the state feed")
	fmt.Fprintln(w, "        Options: --listen-host, --port, --state-port, --reuse-port")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  watch")
	fmt.Fprintln(w, "        Print gain changes from a running server's state feed")
	fmt.Fprintln(w, "        Options: --url, --once")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  tool <command...>")
	fmt.Fprintln(w, "        Run the set_equalizer_gains agent tool once and print its result")
	fmt.Fprintln(w, "        Options: --json, --host, --port, --call-timeout, --tool-log")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  shell")
	fmt.Fprintln(w, "        Interactive prompt; every line goes through the agent tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  render --in IN.wav --out OUT.wav [--preset NAME | GAIN x10]")
	fmt.Fprintln(w, "        Apply a gain vector to a WAV file offline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  response [--preset NAME | GAIN x10]")
	fmt.Fprintln(w, "        Print the measured filter response at each band center")
	fmt.Fprintln(w, "        Options: --sample-rate, --json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXIT STATUS:")
	fmt.Fprintln(w, "  0  gains delivered")
	fmt.Fprintln(w, "  1  delivery failed (refused, unreachable, timeout)")
	fmt.Fprintln(w, "  2  invalid input (wrong count, non-numeric gain, unknown preset, bad flags)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  # Apply a preset")
	fmt.Fprintln(w, "  eqbridge --preset bass")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Ten explicit gains (negative values are fine)")
	fmt.Fprintln(w, "  eqbridge 0 3 -2 0 5 0 -3 2 0 1")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Local test server with its state feed on :5561")
	fmt.Fprintln(w, "  eqbridge serve --state-port 5561")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # What an agent would call")
	fmt.Fprintln(w, "  eqbridge tool --json '{\"gains\": \"vshape\"}'")
	fmt.Fprintln(w)
}

type subcommand func(args []string, stdio stdio) int

var subcommands = map[string]subcommand{
	"serve":    runServe,
	"watch":    runWatch,
	"tool":     runTool,
	"shell":    runShell,
	"render":   runRender,
	"response": runResponse,
}

// stdio bundles the process streams so commands can be driven from tests.
type stdio struct {
	in  io.ReadCloser
	out io.Writer
	err io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}))
}

func run(args []string, s stdio) int {
	if len(args) > 0 {
		if args[0] == "help" {
			printUsage(s.out)
			return 0
		}
		if cmd, ok := subcommands[args[0]]; ok {
			return cmd(args[1:], s)
		}
	}

	// Version and help apply to the default command only; subcommands
	// handle their own.
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if arg == "--version" {
			printVersion(s.out)
			return 0
		}
		if arg == "--help" || arg == "-h" {
			printUsage(s.out)
			return 0
		}
	}

	return runSend(args, s)
}
