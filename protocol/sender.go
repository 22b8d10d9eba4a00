package protocol

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// sender owns the segment set and window bounds of one transfer.
// Invariant: base <= nextSequenceNumber <= min(total, base+window).
type sender struct {
	connector Connector
	remote    net.Addr
	config    SenderConfig
	logger    *logrus.Entry
	now       func() time.Time

	segments           []*segment
	totalBytes         int
	base               uint32
	nextSequenceNumber uint32
	retransmissions    int
}

func newSender(connector Connector, remote net.Addr, config SenderConfig, component string) (*sender, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &sender{
		connector: connector,
		remote:    remote,
		config:    config,
		logger:    Logger.WithField("component", component),
		now:       time.Now,
	}, nil
}

func (s *sender) load(reader io.Reader) error {
	segments, totalBytes, err := createSegments(reader, s.config.MSS)
	if err != nil {
		return err
	}
	s.segments = segments
	s.totalBytes = totalBytes
	s.base = 0
	s.nextSequenceNumber = 0
	s.retransmissions = 0
	return nil
}

func (s *sender) totalSegments() uint32 {
	return uint32(len(s.segments))
}

func (s *sender) isComplete() bool {
	return s.base >= s.totalSegments()
}

// canSend reports whether the next unsent segment fits into window.
func (s *sender) canSend(window int) bool {
	return s.nextSequenceNumber < s.totalSegments() &&
		uint64(s.nextSequenceNumber) < uint64(s.base)+uint64(window)
}

func (s *sender) writeSegment(seg *segment, now time.Time) error {
	if _, _, err := s.connector.Write(seg.buffer, s.remote); err != nil {
		return fmt.Errorf("sending segment %d: %w", seg.getSequenceNumber(), err)
	}
	seg.timestamp = now
	return nil
}

func (s *sender) logTimeout(sequenceNumber uint32) {
	s.logger.WithField("sequence", sequenceNumber).Infof("Timeout, sequence number = %d", sequenceNumber)
}

func (s *sender) stats(start time.Time) TransferStats {
	return TransferStats{
		Bytes:           s.totalBytes,
		Segments:        len(s.segments),
		Retransmissions: s.retransmissions,
		Duration:        s.now().Sub(start),
	}
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
