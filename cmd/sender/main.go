package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nicosta1132/simpleftp/protocol"
	"github.com/sirupsen/logrus"
)

type fileSender interface {
	Send(ctx context.Context, reader io.Reader) (protocol.TransferStats, error)
}

func main() {
	host := flag.String("host", "127.0.0.1", "receiver host")
	port := flag.Int("port", protocol.DefaultPort, "receiver port")
	path := flag.String("file", "", "file to send (required)")
	mode := flag.String("protocol", "gbn", "ARQ variant: gbn or sr")
	window := flag.Int("window", 64, "window size in segments")
	mss := flag.Int("mss", protocol.DefaultMSS, "maximum segment size in bytes")
	rto := flag.Duration("timeout", protocol.DefaultRetransmissionTimeout, "retransmission timeout")
	ackBuffer := flag.Int("ack-buffer-bytes", 0, "receiver buffer hint in bytes, caps the Selective Repeat window (0 disables)")
	tos := flag.Int("tos", 0, "IPv4 type of service for outgoing datagrams")
	ttl := flag.Int("ttl", 0, "IPv4 time to live for outgoing datagrams")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	os.Exit(run(*host, *port, *path, *mode, *logLevel, protocol.SenderConfig{
		WindowSize:     *window,
		MSS:            *mss,
		Timeout:        *rto,
		AckBufferBytes: *ackBuffer,
	}, protocol.SocketOptions{TOS: *tos, TTL: *ttl}))
}

func run(host string, port int, path, mode, logLevel string, config protocol.SenderConfig, options protocol.SocketOptions) int {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	protocol.Logger.SetLevel(level)

	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		flag.Usage()
		return 2
	}
	remote, err := protocol.CreateUdpAddress(host, port)
	if err != nil {
		return exitCode(err)
	}
	connector, err := protocol.ListenUDP(0, options)
	if err != nil {
		return exitCode(err)
	}
	defer connector.Close()

	var arq fileSender
	switch mode {
	case "gbn":
		arq, err = protocol.NewGoBackNSender(connector, remote, config)
	case "sr":
		arq, err = protocol.NewSelectiveRepeatSender(connector, remote, config)
	default:
		err = &protocol.ConfigError{Field: "protocol", Value: mode, Reason: "must be gbn or sr"}
	}
	if err != nil {
		return exitCode(err)
	}

	file, err := os.Open(path)
	if err != nil {
		return exitCode(err)
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := arq.Send(ctx, file)
	if err != nil {
		return exitCode(err)
	}
	fmt.Println(stats.String())
	protocol.Logger.WithField("retransmissions", stats.Retransmissions).Debug("transfer finished")
	return 0
}

func exitCode(err error) int {
	protocol.Logger.WithError(err).Error("sender failed")
	var configErr *protocol.ConfigError
	if errors.As(err, &configErr) {
		return 2
	}
	return 1
}
