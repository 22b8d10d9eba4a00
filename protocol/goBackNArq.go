package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/nicosta1132/simpleftp/container"
)

// GoBackNSender keeps up to WindowSize segments in flight under a single
// retransmission timer. On expiry the whole unacknowledged window is resent.
type GoBackNSender struct {
	*sender
	notAckedSegmentQueue *container.Queue[*segment]
	timerStart           time.Time
}

func NewGoBackNSender(connector Connector, remote net.Addr, config SenderConfig) (*GoBackNSender, error) {
	s, err := newSender(connector, remote, config, "gbn-sender")
	if err != nil {
		return nil, err
	}
	return &GoBackNSender{sender: s, notAckedSegmentQueue: container.NewQueue[*segment]()}, nil
}

func (arq *GoBackNSender) Send(ctx context.Context, reader io.Reader) (TransferStats, error) {
	if err := arq.load(reader); err != nil {
		return TransferStats{}, err
	}
	arq.notAckedSegmentQueue = container.NewQueue[*segment]()
	arq.timerStart = time.Time{}

	start := arq.now()
	buffer := make([]byte, maxDatagramSize)
	for !arq.isComplete() {
		if err := ctx.Err(); err != nil {
			return arq.stats(start), err
		}
		if err := arq.writeQueuedSegments(arq.now()); err != nil {
			return arq.stats(start), err
		}

		status, n, _, err := arq.connector.Read(buffer, arq.readDeadline(arq.now()))
		if err != nil {
			return arq.stats(start), fmt.Errorf("waiting for ACK: %w", err)
		}
		now := arq.now()
		if status == success {
			arq.handleAck(buffer[:n], now)
			continue
		}
		if arq.hasTimerExpired(now) {
			if err := arq.retransmitWindow(now); err != nil {
				return arq.stats(start), err
			}
		}
	}
	return arq.stats(start), nil
}

// writeQueuedSegments sends every segment that fits into the window and arms
// the timer if it is not running yet.
func (arq *GoBackNSender) writeQueuedSegments(now time.Time) error {
	for arq.canSend(arq.config.WindowSize) {
		seg := arq.segments[arq.nextSequenceNumber]
		if err := arq.writeSegment(seg, now); err != nil {
			return err
		}
		arq.notAckedSegmentQueue.Enqueue(seg)
		if arq.timerStart.IsZero() {
			arq.timerStart = now
		}
		arq.nextSequenceNumber++
	}
	return nil
}

// readDeadline bounds the wait by the remaining timer and by pollInterval.
func (arq *GoBackNSender) readDeadline(now time.Time) time.Time {
	limit := now.Add(pollInterval)
	if arq.timerStart.IsZero() {
		return limit
	}
	return earliest(arq.timerStart.Add(arq.config.Timeout), limit)
}

func (arq *GoBackNSender) hasTimerExpired(now time.Time) bool {
	return !arq.timerStart.IsZero() && !now.Before(arq.timerStart.Add(arq.config.Timeout))
}

// handleAck slides the window on a cumulative ACK. ACKs below base are stale.
func (arq *GoBackNSender) handleAck(buffer []byte, now time.Time) statusCode {
	ackedSequenceNumber, err := parseAck(buffer)
	if err != nil {
		arq.logger.WithError(err).Debug("ignoring datagram")
		return invalidSegment
	}
	if ackedSequenceNumber < arq.base {
		return duplicateSegment
	}

	newBase := ackedSequenceNumber + 1
	if newBase > arq.nextSequenceNumber {
		newBase = arq.nextSequenceNumber
	}
	arq.notAckedSegmentQueue.DequeueWhile(func(seg *segment) bool {
		return seg.getSequenceNumber() < newBase
	})
	arq.base = newBase

	if arq.base == arq.nextSequenceNumber {
		arq.timerStart = time.Time{}
	} else {
		arq.timerStart = now
	}
	return ackReceived
}

// retransmitWindow resends every segment in [base, nextSequenceNumber).
func (arq *GoBackNSender) retransmitWindow(now time.Time) error {
	if oldest, ok := arq.notAckedSegmentQueue.Peek(); ok {
		arq.logTimeout(oldest.getSequenceNumber())
	}
	var err error
	arq.notAckedSegmentQueue.ForEach(func(seg *segment) {
		if err != nil {
			return
		}
		err = arq.writeSegment(seg, now)
		arq.retransmissions++
	})
	if err != nil {
		return err
	}
	arq.timerStart = now
	return nil
}
