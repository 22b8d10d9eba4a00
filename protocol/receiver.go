package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

type datagramHandler func(buffer []byte, addr net.Addr, now time.Time) (statusCode, error)

// receiver holds what both ARQ receivers share: the socket, the single live
// session and the loss simulator.
type receiver struct {
	connector Connector
	sessions  *sessionManager
	loss      *lossSimulator
	logger    *logrus.Entry
	now       func() time.Time
}

func newReceiver(connector Connector, sink outputSink, config ReceiverConfig, component string) *receiver {
	logger := Logger.WithField("component", component)
	return &receiver{
		connector: connector,
		sessions:  newSessionManager(sink, logger),
		loss:      newLossSimulator(config.LossProbability, config.Seed),
		logger:    logger,
		now:       time.Now,
	}
}

// serve processes datagrams until ctx is cancelled. The active session output
// is closed on return.
func (r *receiver) serve(ctx context.Context, handle datagramHandler) (err error) {
	defer func() {
		if closeErr := r.sessions.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing session output: %w", closeErr)
		}
	}()

	buffer := make([]byte, maxDatagramSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		status, n, addr, readErr := r.connector.Read(buffer, time.Now().Add(pollInterval))
		if readErr != nil {
			if errors.Is(readErr, ErrConnectorClosed) && ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading datagram: %w", readErr)
		}
		if status == timeout {
			continue
		}
		if _, err := handle(buffer[:n], addr, r.now()); err != nil {
			return err
		}
	}
}

func (r *receiver) writeAck(sequenceNumber uint32, addr net.Addr) {
	ack := createAckSegment(sequenceNumber)
	if _, _, err := r.connector.Write(ack.buffer, addr); err != nil {
		r.logger.WithError(err).WithField("sequence", sequenceNumber).Warn("sending ACK")
	}
}

// writeLastInOrderAck repeats the ACK for the newest delivered segment, if
// there is one.
func (r *receiver) writeLastInOrderAck(s *session, addr net.Addr) {
	if s.hasDelivered() {
		r.writeAck(s.expectedBase-1, addr)
	}
}

func (r *receiver) simulateLoss(sequenceNumber uint32) bool {
	if !r.loss.shouldDrop() {
		return false
	}
	r.logger.WithField("sequence", sequenceNumber).Infof("Packet loss, sequence number = %d", sequenceNumber)
	return true
}

func (r *receiver) applyLoss(value float64) statusCode {
	if err := validateLossProbability(value); err != nil {
		r.logger.WithField("loss", value).Warn("ignoring out-of-range loss probability")
		return invalidSegment
	}
	r.loss.probability = value
	r.logger.WithField("loss", value).Info("updated loss probability")
	return controlApplied
}

func (r *receiver) parseControlSegment(seg *segment) (controlCommand, bool) {
	command, err := parseControlPayload(seg.data)
	if err != nil {
		r.logger.WithError(err).Warn("ignoring invalid control payload")
		return controlCommand{}, false
	}
	return command, true
}
