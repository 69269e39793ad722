// Command xpc-log views and analyzes protocol trace files.
//
// Trace files are created by running xpc-monitor with the -protocol-log
// flag, or by any program that passes a FileLogger to the client.
//
// Usage:
//
//	xpc-log <command> [flags] <file.xlog>
//
// Commands:
//
//	view     View trace file in human-readable format
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	xpc-log view session.xlog
//
//	# View only outgoing datagrams
//	xpc-log view --direction out session.xlog
//
//	# View only RREF traffic
//	xpc-log view --tag RREF session.xlog
//
//	# Show statistics
//	xpc-log stats session.xlog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xplane-protocol/xpc-go/pkg/log"
)

const usage = `xpc-log - Protocol Trace Analyzer

Usage:
  xpc-log <command> [flags] <file.xlog>

Commands:
  view     View trace file in human-readable format
  stats    Show statistics about the trace file

Use "xpc-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `xpc-log view - View trace file in human-readable format

Usage:
  xpc-log view [flags] <file.xlog>

Flags:
`)
		fs.PrintDefaults()
	}

	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (packet, state, error)")
	tag := fs.String("tag", "", "Filter packet events by tag (RREF, DREF, ...)")
	session := fs.String("session", "", "Filter by session ID")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter := log.Filter{SessionID: *session, Tag: strings.ToUpper(*tag)}

	if *direction != "" {
		d, err := parseDirection(*direction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := parseCategory(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}

	if err := view(fs.Arg(0), filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (in, out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "packet":
		return log.CategoryPacket, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (packet, state, error)", s)
	}
}

func view(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			event.Timestamp.Format("15:04:05.000"),
			event.Direction, event.Category, describe(event))
	}
}

func describe(event log.Event) string {
	switch {
	case event.Packet != nil:
		p := event.Packet
		s := fmt.Sprintf("%s %d bytes", p.Tag, p.Size)
		if p.Records > 0 {
			s += fmt.Sprintf(", %d records", p.Records)
		}
		if p.SlotID != nil {
			s += fmt.Sprintf(", slot %d", *p.SlotID)
		}
		return s
	case event.StateChange != nil:
		sc := event.StateChange
		s := fmt.Sprintf("%s -> %s", sc.OldState, sc.NewState)
		if sc.Reason != "" {
			s += " (" + sc.Reason + ")"
		}
		return s
	case event.Error != nil:
		if event.Error.Context != "" {
			return event.Error.Context + ": " + event.Error.Message
		}
		return event.Error.Message
	default:
		return ""
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `xpc-log stats - Show statistics about the trace file

Usage:
  xpc-log stats <file.xlog>

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := stats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func stats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	var (
		total, errors  int
		bytesIn        int
		bytesOut       int
		packetsByTag   = make(map[string]int)
		sessions       = make(map[string]struct{})
		first, last    log.Event
	)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if total == 0 {
			first = event
		}
		last = event
		total++
		sessions[event.SessionID] = struct{}{}

		switch event.Category {
		case log.CategoryError:
			errors++
		case log.CategoryPacket:
			packetsByTag[event.Packet.Tag]++
			if event.Direction == log.DirectionIn {
				bytesIn += event.Packet.Size
			} else {
				bytesOut += event.Packet.Size
			}
		}
	}

	if total == 0 {
		fmt.Fprintln(w, "Trace file is empty.")
		return nil
	}

	fmt.Fprintf(w, "Events:    %d\n", total)
	fmt.Fprintf(w, "Sessions:  %d\n", len(sessions))
	fmt.Fprintf(w, "Duration:  %s\n", last.Timestamp.Sub(first.Timestamp).Round(time.Millisecond))
	fmt.Fprintf(w, "Bytes in:  %d\n", bytesIn)
	fmt.Fprintf(w, "Bytes out: %d\n", bytesOut)
	fmt.Fprintf(w, "Errors:    %d\n", errors)

	tags := make([]string, 0, len(packetsByTag))
	for tag := range packetsByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Fprintln(w, "Packets by tag:")
	for _, tag := range tags {
		fmt.Fprintf(w, "  %-8s %d\n", tag, packetsByTag[tag])
	}
	return nil
}
