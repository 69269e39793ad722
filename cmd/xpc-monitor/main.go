// Command xpc-monitor is an interactive console for a flight simulator's
// UDP protocol interface.
//
// It connects to a running simulator, streams subscribed datarefs into a
// local cache and exposes the full protocol surface as console commands:
// dataref reads and writes, simulator commands, aircraft positioning and
// host discovery.
//
// Usage:
//
//	xpc-monitor [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-host string          Simulator host (default "127.0.0.1")
//	-port int             Simulator UDP port (default 49000)
//	-protocol-log string  Write a protocol event trace to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-fail-fast            Stop on the first framing error
//
// Examples:
//
//	# Connect to a local simulator
//	xpc-monitor
//
//	# Connect to a remote host with a protocol trace
//	xpc-monitor -host 192.168.1.20 -protocol-log session.xlog
//
//	# Start with pre-configured subscriptions
//	xpc-monitor -config monitor.yaml
//
// Interactive Commands:
//
//	discover                 - Find simulator hosts on the local network
//	sub <dataref> [freq]     - Subscribe a dataref (default 10 Hz)
//	unsub <dataref>          - Unsubscribe a dataref
//	list                     - List active subscriptions
//	watch                    - Show the latest cached values
//	get <dataref>            - Read one dataref synchronously
//	set <dataref> <value>    - Write a dataref
//	cmd <command>            - Trigger a simulator command
//	pos                      - Fetch the aircraft position record
//	setpos <lat> <lon> <elev> [hdg] [pitch] [roll] - Place the aircraft
//	pause | resume           - Pause or resume the simulator
//	stats                    - Show receive-loop counters
//	quit                     - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xplane-protocol/xpc-go/pkg/client"
	"github.com/xplane-protocol/xpc-go/pkg/config"
	"github.com/xplane-protocol/xpc-go/pkg/log"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path (YAML)")
		host        = flag.String("host", "", "Simulator host")
		port        = flag.Int("port", 0, "Simulator UDP port")
		protocolLog = flag.String("protocol-log", "", "Write a protocol event trace to this file")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		failFast    = flag.Bool("fail-fast", false, "Stop on the first framing error")
	)
	flag.Parse()

	logger := setupLogging(*logLevel)

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			logger.Error("load config", "error", err)
			os.Exit(1)
		}
	}

	// Flags override file values.
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *failFast {
		cfg.FailFast = true
	}
	if *protocolLog != "" {
		cfg.LogFile = *protocolLog
	}

	protoLogger, closeLog, err := buildProtocolLogger(cfg.LogFile, logger)
	if err != nil {
		logger.Error("open protocol log", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	logger.Info("connecting", "host", cfg.Host, "port", cfg.Port)

	c, err := client.New(client.Options{
		Host:             cfg.Host,
		Port:             cfg.Port,
		QueryTimeout:     cfg.QueryTimeout,
		QueryFrequencyHz: cfg.QueryFrequencyHz,
		FailFast:         cfg.FailFast,
		ProtocolLogger:   protoLogger,
		OnProtocolError: func(err error) {
			logger.Warn("protocol error", "error", err)
		},
	})
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	for _, sub := range cfg.Subscriptions {
		if err := c.SubscribeDatarefs(client.SubscriptionSpec{
			Name:        sub.Dataref,
			FrequencyHz: sub.FrequencyHz,
		}); err != nil {
			logger.Error("subscribe", "dataref", sub.Dataref, "error", err)
			os.Exit(1)
		}
		logger.Info("subscribed", "dataref", sub.Dataref, "frequency_hz", sub.FrequencyHz)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("signal received", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Surface a receive-loop failure even while blocked on the prompt.
	go func() {
		<-c.Done()
		if err := c.Err(); err != nil {
			logger.Error("receive loop stopped", "error", err)
			cancel()
		}
	}()

	console, err := newConsole(c, logger)
	if err != nil {
		logger.Error("start console", "error", err)
		os.Exit(1)
	}
	console.Run(ctx, cancel)
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Unknown log level: %s\n", level)
		os.Exit(1)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildProtocolLogger wires the event trace: a CBOR file when a path is
// given, plus the debug log when it is enabled.
func buildProtocolLogger(path string, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger

	closeFn := func() {}
	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { fl.Close() }
		loggers = append(loggers, fl)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}
