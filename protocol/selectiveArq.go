package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/nicosta1132/simpleftp/container"
	"github.com/sirupsen/logrus"
)

// SelectiveRepeatSender acknowledges and times every segment on its own.
// Only segments whose timer expired are resent.
type SelectiveRepeatSender struct {
	*sender
	window      int
	ackedBitmap *container.Bitmap // bit i belongs to sequence base+i
}

func NewSelectiveRepeatSender(connector Connector, remote net.Addr, config SenderConfig) (*SelectiveRepeatSender, error) {
	s, err := newSender(connector, remote, config, "sr-sender")
	if err != nil {
		return nil, err
	}
	window := config.receiverWindow()
	return &SelectiveRepeatSender{
		sender:      s,
		window:      window,
		ackedBitmap: container.NewBitmap(window),
	}, nil
}

// EffectiveWindow is the requested window capped by the receiver capacity
// derived from AckBufferBytes.
func (arq *SelectiveRepeatSender) EffectiveWindow() int {
	return arq.window
}

func (arq *SelectiveRepeatSender) Send(ctx context.Context, reader io.Reader) (TransferStats, error) {
	if err := arq.load(reader); err != nil {
		return TransferStats{}, err
	}
	arq.ackedBitmap = container.NewBitmap(arq.window)

	if err := arq.writeWindowAdvertisement(); err != nil {
		return TransferStats{}, err
	}

	start := arq.now()
	buffer := make([]byte, maxDatagramSize)
	for !arq.isComplete() {
		if err := ctx.Err(); err != nil {
			return arq.stats(start), err
		}
		if err := arq.writeQueuedSegments(arq.now()); err != nil {
			return arq.stats(start), err
		}

		status, n, _, err := arq.connector.Read(buffer, arq.now().Add(ackPollInterval))
		if err != nil {
			return arq.stats(start), fmt.Errorf("waiting for ACK: %w", err)
		}
		if status == success {
			arq.handleAck(buffer[:n])
		}

		if err := arq.retransmitTimedOutSegments(arq.now()); err != nil {
			return arq.stats(start), err
		}
	}
	return arq.stats(start), nil
}

func (arq *SelectiveRepeatSender) writeWindowAdvertisement() error {
	control := createControlSegment(CommandWindow, float64(arq.window))
	if _, _, err := arq.connector.Write(control.buffer, arq.remote); err != nil {
		return fmt.Errorf("sending window advertisement: %w", err)
	}
	arq.logger.WithFields(logrus.Fields{
		"window":    arq.window,
		"requested": arq.config.WindowSize,
	}).Info("advertised receiver window")
	return nil
}

func (arq *SelectiveRepeatSender) writeQueuedSegments(now time.Time) error {
	for arq.canSend(arq.window) {
		if err := arq.writeSegment(arq.segments[arq.nextSequenceNumber], now); err != nil {
			return err
		}
		arq.nextSequenceNumber++
	}
	return nil
}

func (arq *SelectiveRepeatSender) isAcked(sequenceNumber uint32) bool {
	return arq.ackedBitmap.IsSet(sequenceNumber - arq.base)
}

// handleAck marks one in-flight segment as acknowledged and slides base past
// every contiguous acknowledged segment.
func (arq *SelectiveRepeatSender) handleAck(buffer []byte) statusCode {
	ackedSequenceNumber, err := parseAck(buffer)
	if err != nil {
		arq.logger.WithError(err).Debug("ignoring datagram")
		return invalidSegment
	}
	if ackedSequenceNumber < arq.base || ackedSequenceNumber >= arq.nextSequenceNumber {
		return duplicateSegment
	}

	arq.ackedBitmap.Set(ackedSequenceNumber-arq.base, 1)
	arq.segments[ackedSequenceNumber].timestamp = time.Time{}

	if ackedSequenceNumber == arq.base {
		arq.base += uint32(arq.ackedBitmap.Slide())
	}
	arq.logger.WithFields(logrus.Fields{
		"sequence": ackedSequenceNumber,
		"base":     arq.base,
		"pending":  arq.ackedBitmap.ToNumber(),
	}).Debug("ACK received")
	return ackReceived
}

func (arq *SelectiveRepeatSender) retransmitTimedOutSegments(now time.Time) error {
	for sequenceNumber := arq.base; sequenceNumber < arq.nextSequenceNumber; sequenceNumber++ {
		seg := arq.segments[sequenceNumber]
		if arq.isAcked(sequenceNumber) || !hasSegmentTimedOut(seg, arq.config.Timeout, now) {
			continue
		}
		arq.logTimeout(sequenceNumber)
		if err := arq.writeSegment(seg, now); err != nil {
			return err
		}
		arq.retransmissions++
	}
	return nil
}
