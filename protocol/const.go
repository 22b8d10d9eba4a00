package protocol

import "time"

const (
	TypeData    uint16 = 0x5555
	TypeAck     uint16 = 0xAAAA
	TypeControl uint16 = 0xCCCC
)

const (
	HeaderLength = 8
	DefaultMSS   = 500
	DefaultPort  = 7735

	// largest UDP payload minus our header
	MaxMSS = 65507 - HeaderLength

	maxDatagramSize = 65535
)

const (
	CommandLoss   = "LOSS"
	CommandWindow = "WINDOW"
)

type statusCode int

const (
	success statusCode = iota
	fail
	ackReceived
	invalidSegment
	corruptedSegment
	lostSegment
	duplicateSegment
	outOfWindow
	controlApplied
	timeout
)

var statusNames = map[statusCode]string{
	success:          "success",
	fail:             "fail",
	ackReceived:      "ackReceived",
	invalidSegment:   "invalidSegment",
	corruptedSegment: "corruptedSegment",
	lostSegment:      "lostSegment",
	duplicateSegment: "duplicateSegment",
	outOfWindow:      "outOfWindow",
	controlApplied:   "controlApplied",
	timeout:          "timeout",
}

func (code statusCode) String() string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "unknown"
}

type Position struct {
	Start int
	End   int
}

var SequenceNumberPosition = Position{0, 4}
var ChecksumPosition = Position{4, 6}
var TypePosition = Position{6, 8}

var DefaultRetransmissionTimeout = 200 * time.Millisecond

// A restarted sender is only recognized after this much silence.
var sessionIdleThreshold = time.Second

// Upper bound on a single blocking read so loops can notice cancellation.
var pollInterval = 100 * time.Millisecond

// Selective-Repeat senders wait at most this long for one ACK per iteration.
var ackPollInterval = 50 * time.Millisecond
