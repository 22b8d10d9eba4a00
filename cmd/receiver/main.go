package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicosta1132/simpleftp/protocol"
	"github.com/sirupsen/logrus"
)

type server interface {
	Serve(ctx context.Context) error
}

func main() {
	port := flag.Int("port", protocol.DefaultPort, "listen port")
	output := flag.String("output", "", "output file, overwritten by every new session")
	scratchDir := flag.String("scratch-dir", "", "directory that keeps every session in its own file")
	loss := flag.Float64("loss", 0, "initial probability of dropping an inbound DATA packet")
	window := flag.Int("window", 64, "initial Selective Repeat receive window")
	seed := flag.Int64("seed", time.Now().UnixNano(), "loss simulator seed")
	mode := flag.String("protocol", "gbn", "ARQ variant: gbn or sr")
	tos := flag.Int("tos", 0, "IPv4 type of service for ACK datagrams")
	ttl := flag.Int("ttl", 0, "IPv4 time to live for ACK datagrams")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	os.Exit(run(*port, *mode, *logLevel, protocol.ReceiverConfig{
		OutputPath:      *output,
		ScratchDir:      *scratchDir,
		LossProbability: *loss,
		WindowSize:      *window,
		Seed:            *seed,
	}, protocol.SocketOptions{TOS: *tos, TTL: *ttl}))
}

func run(port int, mode, logLevel string, config protocol.ReceiverConfig, options protocol.SocketOptions) int {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	protocol.Logger.SetLevel(level)

	connector, err := protocol.ListenUDP(port, options)
	if err != nil {
		return exitCode(err)
	}
	defer connector.Close()

	var receiver server
	switch mode {
	case "gbn":
		receiver, err = protocol.NewGoBackNReceiver(connector, config)
	case "sr":
		receiver, err = protocol.NewSelectiveRepeatReceiver(connector, config)
	default:
		err = &protocol.ConfigError{Field: "protocol", Value: mode, Reason: "must be gbn or sr"}
	}
	if err != nil {
		return exitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	protocol.Logger.WithField("port", port).Info("listening")
	if err := receiver.Serve(ctx); err != nil {
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	protocol.Logger.WithError(err).Error("receiver failed")
	var configErr *protocol.ConfigError
	if errors.As(err, &configErr) {
		return 2
	}
	return 1
}
