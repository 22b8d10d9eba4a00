package protocol

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var Logger = newLogger()

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return logger
}

var ErrConnectorClosed = errors.New("connector closed")

// Connector is a datagram endpoint. Read blocks until a datagram arrives or
// the deadline passes, in which case it reports the timeout status. A zero
// deadline blocks indefinitely.
type Connector interface {
	Read(buffer []byte, deadline time.Time) (statusCode, int, net.Addr, error)
	Write(buffer []byte, addr net.Addr) (statusCode, int, error)
	Close() error
}

type TransferStats struct {
	Bytes           int
	Segments        int
	Retransmissions int
	Duration        time.Duration
}

// String renders the completion line parsed by the experiment harness.
func (stats TransferStats) String() string {
	return fmt.Sprintf("Transfer complete: %d bytes across %d segments in %.3f s.",
		stats.Bytes, stats.Segments, stats.Duration.Seconds())
}

func hasSegmentTimedOut(seg *segment, rto time.Duration, now time.Time) bool {
	if seg == nil || seg.timestamp.IsZero() {
		return false
	}
	return !now.Before(seg.timestamp.Add(rto))
}

func addressesEqual(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Network() == b.Network() && a.String() == b.String()
}
