package protocol

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

func init() {
	Logger.SetLevel(logrus.WarnLevel)
}

func testAddress(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

type datagram struct {
	data []byte
	addr net.Addr
}

// channelConnector is one end of an in-memory datagram link. Writes never
// block; a full channel drops the datagram like a congested network would.
type channelConnector struct {
	local     net.Addr
	in        chan datagram
	out       chan datagram
	closed    chan struct{}
	closeOnce sync.Once
}

func newChannelConnectorPair(alpha, beta net.Addr) (*channelConnector, *channelConnector) {
	alphaToBeta, betaToAlpha := make(chan datagram, 1024), make(chan datagram, 1024)
	return &channelConnector{local: alpha, in: betaToAlpha, out: alphaToBeta, closed: make(chan struct{})},
		&channelConnector{local: beta, in: alphaToBeta, out: betaToAlpha, closed: make(chan struct{})}
}

func (connector *channelConnector) Close() error {
	connector.closeOnce.Do(func() { close(connector.closed) })
	return nil
}

func (connector *channelConnector) Write(buffer []byte, addr net.Addr) (statusCode, int, error) {
	select {
	case connector.out <- datagram{data: append([]byte(nil), buffer...), addr: connector.local}:
	default:
	}
	return success, len(buffer), nil
}

func (connector *channelConnector) Read(buffer []byte, deadline time.Time) (statusCode, int, net.Addr, error) {
	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case d := <-connector.in:
		n := copy(buffer, d.data)
		return success, n, d.addr, nil
	case <-expired:
		return timeout, 0, nil, nil
	case <-connector.closed:
		return fail, 0, nil, ErrConnectorClosed
	}
}

// recordingConnector keeps every written datagram and never delivers any.
type recordingConnector struct {
	mutex   sync.Mutex
	written []datagram
}

func (connector *recordingConnector) Close() error {
	return nil
}

func (connector *recordingConnector) Write(buffer []byte, addr net.Addr) (statusCode, int, error) {
	connector.mutex.Lock()
	defer connector.mutex.Unlock()
	connector.written = append(connector.written, datagram{data: append([]byte(nil), buffer...), addr: addr})
	return success, len(buffer), nil
}

func (connector *recordingConnector) Read(buffer []byte, deadline time.Time) (statusCode, int, net.Addr, error) {
	time.Sleep(time.Until(deadline))
	return timeout, 0, nil, nil
}

func (connector *recordingConnector) take() []datagram {
	connector.mutex.Lock()
	defer connector.mutex.Unlock()
	result := connector.written
	connector.written = nil
	return result
}

// ackedSequenceNumbers decodes the ACKs among the recorded datagrams.
func (connector *recordingConnector) ackedSequenceNumbers() []uint32 {
	result := []uint32{}
	for _, d := range connector.take() {
		if sequenceNumber, err := parseAck(d.data); err == nil {
			result = append(result, sequenceNumber)
		}
	}
	return result
}

// segmentManipulator sits between a sender and its link and drops or corrupts
// chosen DATA segments exactly once.
type segmentManipulator struct {
	mutex         sync.Mutex
	toDropOnce    map[uint32]bool
	toCorruptOnce map[uint32]bool
	extension     Connector
}

func newSegmentManipulator(extension Connector) *segmentManipulator {
	return &segmentManipulator{
		toDropOnce:    make(map[uint32]bool),
		toCorruptOnce: make(map[uint32]bool),
		extension:     extension,
	}
}

func (manipulator *segmentManipulator) DropOnce(sequenceNumber uint32) {
	manipulator.mutex.Lock()
	defer manipulator.mutex.Unlock()
	manipulator.toDropOnce[sequenceNumber] = true
}

func (manipulator *segmentManipulator) CorruptOnce(sequenceNumber uint32) {
	manipulator.mutex.Lock()
	defer manipulator.mutex.Unlock()
	manipulator.toCorruptOnce[sequenceNumber] = true
}

func (manipulator *segmentManipulator) Close() error {
	return manipulator.extension.Close()
}

func (manipulator *segmentManipulator) Read(buffer []byte, deadline time.Time) (statusCode, int, net.Addr, error) {
	return manipulator.extension.Read(buffer, deadline)
}

func (manipulator *segmentManipulator) Write(buffer []byte, addr net.Addr) (statusCode, int, error) {
	seg, err := createSegment(buffer)
	if err != nil || !seg.isType(TypeData) {
		return manipulator.extension.Write(buffer, addr)
	}
	sequenceNumber := seg.getSequenceNumber()

	manipulator.mutex.Lock()
	drop := manipulator.toDropOnce[sequenceNumber]
	corrupt := manipulator.toCorruptOnce[sequenceNumber]
	delete(manipulator.toDropOnce, sequenceNumber)
	delete(manipulator.toCorruptOnce, sequenceNumber)
	manipulator.mutex.Unlock()

	if drop {
		return success, len(buffer), nil
	}
	if corrupt && len(buffer) > HeaderLength {
		damaged := append([]byte(nil), buffer...)
		damaged[HeaderLength] ^= 0x01
		return manipulator.extension.Write(damaged, addr)
	}
	return manipulator.extension.Write(buffer, addr)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// memorySink keeps every session's output in memory.
type memorySink struct {
	mutex    sync.Mutex
	sessions []*bytes.Buffer
}

func (sink *memorySink) Open(sessionNumber int) (io.WriteCloser, string, error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	buffer := &bytes.Buffer{}
	sink.sessions = append(sink.sessions, buffer)
	return nopWriteCloser{buffer}, "memory", nil
}

func (sink *memorySink) count() int {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	return len(sink.sessions)
}

func (sink *memorySink) session(index int) string {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if index >= len(sink.sessions) {
		return ""
	}
	return sink.sessions[index].String()
}

func dataSegment(sequenceNumber uint32, payload string) []byte {
	return createDataSegment(sequenceNumber, []byte(payload)).buffer
}

func corruptedDataSegment(sequenceNumber uint32, payload string) []byte {
	buffer := dataSegment(sequenceNumber, payload)
	buffer[HeaderLength] ^= 0xFF
	return buffer
}

func patternPayload(size int) []byte {
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}
