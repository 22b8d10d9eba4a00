package protocol

import (
	"context"
	"net"
	"time"
)

// GoBackNReceiver accepts DATA strictly in order and answers with cumulative
// ACKs. Out-of-order segments are never buffered.
type GoBackNReceiver struct {
	*receiver
}

func NewGoBackNReceiver(connector Connector, config ReceiverConfig) (*GoBackNReceiver, error) {
	if config.WindowSize == 0 {
		config.WindowSize = 1
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newGoBackNReceiver(connector, newFileSink(config, "gbn"), config), nil
}

func newGoBackNReceiver(connector Connector, sink outputSink, config ReceiverConfig) *GoBackNReceiver {
	return &GoBackNReceiver{receiver: newReceiver(connector, sink, config, "gbn-receiver")}
}

func (r *GoBackNReceiver) Serve(ctx context.Context) error {
	r.logger.WithField("loss", r.loss.probability).Info("Go-back-N receiver started")
	return r.serve(ctx, r.handleDatagram)
}

func (r *GoBackNReceiver) handleDatagram(buffer []byte, addr net.Addr, now time.Time) (statusCode, error) {
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

	if !seg.hasValidChecksum() {
		// a corrupted first segment draws no answer; the sender's timer recovers
		r.writeLastInOrderAck(s, addr)
		return corruptedSegment, nil
	}

	switch {
	case sequenceNumber == s.expectedBase:
		if err := s.deliver(seg.data); err != nil {
			return fail, err
		}
		r.writeAck(sequenceNumber, addr)
		return success, nil
	case sequenceNumber < s.expectedBase:
		r.writeAck(sequenceNumber, addr)
		return duplicateSegment, nil
	default:
		r.writeLastInOrderAck(s, addr)
		return outOfWindow, nil
	}
}

func (r *GoBackNReceiver) handleControl(seg *segment) statusCode {
	command, ok := r.parseControlSegment(seg)
	if !ok {
		return invalidSegment
	}
	if command.command == CommandLoss {
		return r.applyLoss(command.value)
	}
	r.logger.WithField("command", command.command).Warn("ignoring unsupported control command")
	return invalidSegment
}
