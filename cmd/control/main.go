package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/nicosta1132/simpleftp/protocol"
)

// usage: control [-host h] [-port p] LOSS|WINDOW <value>
func main() {
	host := flag.String("host", "127.0.0.1", "receiver host")
	port := flag.Int("port", protocol.DefaultPort, "receiver port")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] %s|%s <value>\n", os.Args[0], protocol.CommandLoss, protocol.CommandWindow)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	value, err := strconv.ParseFloat(flag.Arg(1), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid value %q: %v\n", flag.Arg(1), err)
		os.Exit(2)
	}

	if err := send(*host, *port, flag.Arg(0), value); err != nil {
		protocol.Logger.WithError(err).Error("control failed")
		var configErr *protocol.ConfigError
		if errors.As(err, &configErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func send(host string, port int, command string, value float64) error {
	remote, err := protocol.CreateUdpAddress(host, port)
	if err != nil {
		return err
	}
	connector, err := protocol.ListenUDP(0, protocol.SocketOptions{})
	if err != nil {
		return err
	}
	defer connector.Close()
	return protocol.SendControl(connector, remote, command, value)
}
