package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/xplane-protocol/xpc-go/pkg/client"
	"github.com/xplane-protocol/xpc-go/pkg/discovery"
	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// console handles interactive mode for xpc-monitor.
type console struct {
	c      *client.Client
	logger *slog.Logger
	rl     *readline.Instance
}

func newConsole(c *client.Client, logger *slog.Logger) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "xpc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{c: c, logger: logger, rl: rl}, nil
}

// Run starts the interactive command loop.
func (con *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer con.rl.Close()

	con.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := con.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(con.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			con.printHelp()

		case "discover":
			con.cmdDiscover(ctx)

		case "sub", "subscribe":
			con.cmdSubscribe(args)

		case "unsub", "unsubscribe":
			con.cmdUnsubscribe(args)

		case "list", "ls":
			con.cmdList()

		case "watch", "w":
			con.cmdWatch()

		case "get", "g":
			con.cmdGet(ctx, args)

		case "set":
			con.cmdSet(args)

		case "cmd", "command":
			con.cmdCommand(args)

		case "pos", "p":
			con.cmdPosition(ctx)

		case "setpos":
			con.cmdSetPosition(args)

		case "pause":
			con.cmdPause(true)

		case "resume":
			con.cmdPause(false)

		case "stats":
			con.cmdStats()

		case "quit", "exit", "q":
			fmt.Fprintln(con.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(con.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (con *console) printHelp() {
	fmt.Fprintln(con.rl.Stdout(), `
Simulator Console Commands:
  Streaming:
    sub <dataref> [freq]     - Subscribe a dataref (default 10 Hz)
    unsub <dataref>          - Unsubscribe a dataref
    list                     - List active subscriptions
    watch                    - Show the latest cached values

  Queries:
    get <dataref>            - Read one dataref synchronously
    pos                      - Fetch the aircraft position record

  Control:
    set <dataref> <value>    - Write a dataref
    cmd <command>            - Trigger a simulator command
    setpos <lat> <lon> <elev> [hdg] [pitch] [roll] - Place the aircraft
    pause | resume           - Pause or resume the simulator

  General:
    discover                 - Find simulator hosts on the local network
    stats                    - Show receive-loop counters
    help                     - Show this help
    quit                     - Exit`)
}

func (con *console) cmdDiscover(ctx context.Context) {
	out := con.rl.Stdout()
	fmt.Fprintln(out, "Scanning for simulator hosts...")

	hosts, err := discovery.Discover(ctx, discovery.Options{}, discovery.DefaultScanTimeout)
	if err != nil {
		fmt.Fprintf(out, "Discovery failed: %v\n", err)
		return
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No hosts found.")
		return
	}
	for i, h := range hosts {
		fmt.Fprintf(out, "  %d. %s\n", i+1, h)
	}
}

func (con *console) cmdSubscribe(args []string) {
	out := con.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: sub <dataref> [frequency-hz]")
		return
	}

	freq := uint32(10)
	if len(args) >= 2 {
		f, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil || f == 0 {
			fmt.Fprintf(out, "Invalid frequency: %s\n", args[1])
			return
		}
		freq = uint32(f)
	}

	if err := con.c.SubscribeDatarefs(client.SubscriptionSpec{Name: args[0], FrequencyHz: freq}); err != nil {
		fmt.Fprintf(out, "Subscribe failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Subscribed %s at %d Hz\n", args[0], freq)
}

func (con *console) cmdUnsubscribe(args []string) {
	out := con.rl.Stdout()
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: unsub <dataref>")
		return
	}
	if err := con.c.UnsubscribeDataref(args[0]); err != nil {
		fmt.Fprintf(out, "Unsubscribe failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Unsubscribed %s\n", args[0])
}

func (con *console) cmdList() {
	out := con.rl.Stdout()
	subs := con.c.Subscriptions()
	if len(subs) == 0 {
		fmt.Fprintln(out, "No active subscriptions.")
		return
	}
	for _, sub := range subs {
		fmt.Fprintf(out, "  [%d] %s @ %d Hz\n", sub.SlotID, sub.Name, sub.FrequencyHz)
	}
}

func (con *console) cmdWatch() {
	out := con.rl.Stdout()
	snapshot := con.c.Snapshot()
	if len(snapshot) == 0 {
		fmt.Fprintln(out, "Cache is empty.")
		return
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := snapshot[name]
		if !entry.Seen {
			fmt.Fprintf(out, "  %-60s (no update yet)\n", name)
			continue
		}
		fmt.Fprintf(out, "  %-60s %12.4f  (%s ago)\n",
			name, entry.Value, time.Since(entry.Timestamp).Round(time.Millisecond))
	}
}

func (con *console) cmdGet(ctx context.Context, args []string) {
	out := con.rl.Stdout()
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: get <dataref>")
		return
	}

	value, err := con.c.GetDataref(ctx, args[0])
	if err != nil {
		fmt.Fprintf(out, "Query failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "%s = %g\n", args[0], value)
}

func (con *console) cmdSet(args []string) {
	out := con.rl.Stdout()
	if len(args) != 2 {
		fmt.Fprintln(out, "Usage: set <dataref> <value>")
		return
	}
	value, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		fmt.Fprintf(out, "Invalid value: %s\n", args[1])
		return
	}
	if err := con.c.SetDataref(args[0], float32(value)); err != nil {
		fmt.Fprintf(out, "Write failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Wrote %s = %g\n", args[0], value)
}

func (con *console) cmdCommand(args []string) {
	out := con.rl.Stdout()
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: cmd <command>")
		return
	}
	if err := con.c.SendCommand(args[0]); err != nil {
		fmt.Fprintf(out, "Command failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Sent %s\n", args[0])
}

func (con *console) cmdPosition(ctx context.Context) {
	out := con.rl.Stdout()
	rec, err := con.c.GetPosition(ctx)
	if err != nil {
		fmt.Fprintf(out, "Query failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "  Position:  %.6f, %.6f  elev %.1f m (%.1f m AGL)\n",
		rec.Latitude, rec.Longitude, rec.Elevation, rec.HeightAGL)
	fmt.Fprintf(out, "  Attitude:  hdg %.1f  pitch %.1f  roll %.1f\n",
		rec.Heading, rec.Pitch, rec.Roll)
	fmt.Fprintf(out, "  Velocity:  vx %.1f  vy %.1f  vz %.1f m/s\n",
		rec.VX, rec.VY, rec.VZ)
}

func (con *console) cmdSetPosition(args []string) {
	out := con.rl.Stdout()
	if len(args) < 3 || len(args) > 6 {
		fmt.Fprintln(out, "Usage: setpos <lat> <lon> <elev> [hdg] [pitch] [roll]")
		return
	}

	values := make([]float64, 6)
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			fmt.Fprintf(out, "Invalid number: %s\n", arg)
			return
		}
		values[i] = v
	}

	pos := wire.PositionSet{
		Latitude:    values[0],
		Longitude:   values[1],
		Elevation:   values[2],
		TrueHeading: float32(values[3]),
		Pitch:       float32(values[4]),
		Roll:        float32(values[5]),
	}
	if err := con.c.SetPosition(pos); err != nil {
		fmt.Fprintf(out, "Position set failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Aircraft placed at %.6f, %.6f elev %.1f m\n",
		pos.Latitude, pos.Longitude, pos.Elevation)
}

func (con *console) cmdPause(paused bool) {
	out := con.rl.Stdout()
	if err := con.c.SetPaused(paused); err != nil {
		fmt.Fprintf(out, "Failed: %v\n", err)
		return
	}
	if paused {
		fmt.Fprintln(out, "Simulator paused")
	} else {
		fmt.Fprintln(out, "Simulator resumed")
	}
}

func (con *console) cmdStats() {
	out := con.rl.Stdout()
	stats := con.c.Stats()
	fmt.Fprintf(out, "  Packets received:      %d\n", stats.PacketsReceived)
	fmt.Fprintf(out, "  Records dispatched:    %d\n", stats.RecordsDispatched)
	fmt.Fprintf(out, "  Late one-shot replies: %d\n", stats.LateOneShotReplies)
	fmt.Fprintf(out, "  Protocol errors:       %d\n", stats.ProtocolErrors)
}
