package protocol

import (
	"context"
	"math"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// SelectiveRepeatReceiver buffers out-of-order DATA inside its window and
// acknowledges every accepted segment individually. Window size and loss
// probability can be changed at runtime with CONTROL packets.
type SelectiveRepeatReceiver struct {
	*receiver
	window int
}

func NewSelectiveRepeatReceiver(connector Connector, config ReceiverConfig) (*SelectiveRepeatReceiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newSelectiveRepeatReceiver(connector, newFileSink(config, "sr"), config), nil
}

func newSelectiveRepeatReceiver(connector Connector, sink outputSink, config ReceiverConfig) *SelectiveRepeatReceiver {
	return &SelectiveRepeatReceiver{
		receiver: newReceiver(connector, sink, config, "sr-receiver"),
		window:   config.WindowSize,
	}
}

func (r *SelectiveRepeatReceiver) Serve(ctx context.Context) error {
	r.logger.WithFields(logrus.Fields{
		"loss":   r.loss.probability,
		"window": r.window,
	}).Info("Selective Repeat receiver started")
	return r.serve(ctx, r.handleDatagram)
}

func (r *SelectiveRepeatReceiver) handleDatagram(buffer []byte, addr net.Addr, now time.Time) (statusCode, error) {
	seg, err := createSegment(buffer)
	if err != nil {
		r.logger.WithError(err).Debug("dropping datagram")
		return invalidSegment, nil
	}

	switch seg.getType() {
	case TypeData:
	case TypeControl:
		return r.handleControl(seg), nil
	default:
		return invalidSegment, nil
	}

	sequenceNumber := seg.getSequenceNumber()
	s, err := r.sessions.bind(addr, sequenceNumber, now)
	if err != nil {
		return fail, err
	}

	if r.simulateLoss(sequenceNumber) {
		return lostSegment, nil
	}

	// no ACK for corrupted data, the sender's per-segment timer recovers it
	if !seg.hasValidChecksum() {
		return corruptedSegment, nil
	}

	if sequenceNumber < s.expectedBase {
		r.writeAck(sequenceNumber, addr)
		return duplicateSegment, nil
	}

	if uint64(sequenceNumber) >= uint64(s.expectedBase)+uint64(r.window) {
		r.writeLastInOrderAck(s, addr)
		return outOfWindow, nil
	}

	status := success
	if _, ok := s.reorderBuffer[sequenceNumber]; ok {
		status = duplicateSegment
	} else {
		s.reorderBuffer[sequenceNumber] = append([]byte(nil), seg.data...)
	}
	r.writeAck(sequenceNumber, addr)

	if err := r.deliverInOrder(s); err != nil {
		return fail, err
	}
	return status, nil
}

// deliverInOrder writes every buffered segment contiguous with the session's
// expected base.
func (r *SelectiveRepeatReceiver) deliverInOrder(s *session) error {
	for {
		data, ok := s.reorderBuffer[s.expectedBase]
		if !ok {
			return nil
		}
		delete(s.reorderBuffer, s.expectedBase)
		if err := s.deliver(data); err != nil {
			return err
		}
	}
}

func (r *SelectiveRepeatReceiver) handleControl(seg *segment) statusCode {
	command, ok := r.parseControlSegment(seg)
	if !ok {
		return invalidSegment
	}
	switch command.command {
	case CommandLoss:
		return r.applyLoss(command.value)
	case CommandWindow:
		window := 1
		if command.value > math.MaxInt32 {
			window = math.MaxInt32
		} else if command.value > 1 {
			window = int(command.value)
		}
		r.window = window
		r.logger.WithField("window", window).Info("updated receiver window size")
		return controlApplied
	default:
		r.logger.WithField("command", command.command).Warn("ignoring unsupported control command")
		return invalidSegment
	}
}
