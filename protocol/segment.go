package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSegmentTooShort  = errors.New("segment shorter than header")
	ErrNotAck           = errors.New("segment is not a valid ACK")
	ErrNotControl       = errors.New("segment is not a CONTROL packet")
	ErrMalformedControl = errors.New("malformed control payload")
)

type segment struct {
	buffer    []byte
	data      []byte
	timestamp time.Time
}

func bytesToUint32(buffer []byte) uint32 {
	return binary.BigEndian.Uint32(buffer)
}

func bytesToUint16(buffer []byte) uint16 {
	return binary.BigEndian.Uint16(buffer)
}

func (seg *segment) getSequenceNumber() uint32 {
	return bytesToUint32(seg.buffer[SequenceNumberPosition.Start:SequenceNumberPosition.End])
}

func (seg *segment) getChecksum() uint16 {
	return bytesToUint16(seg.buffer[ChecksumPosition.Start:ChecksumPosition.End])
}

func (seg *segment) getType() uint16 {
	return bytesToUint16(seg.buffer[TypePosition.Start:TypePosition.End])
}

func (seg *segment) isType(segmentType uint16) bool {
	return seg.getType() == segmentType
}

func (seg *segment) hasValidChecksum() bool {
	return checksum(seg.data) == seg.getChecksum()
}

// checksum is the 16-bit one's complement of the one's complement sum of the
// payload read as big-endian words. An odd trailing byte is the high byte of a
// zero padded word.
func checksum(payload []byte) uint16 {
	var total uint32
	index := 0
	for ; index+1 < len(payload); index += 2 {
		total += uint32(payload[index])<<8 | uint32(payload[index+1])
		total = (total & 0xFFFF) + (total >> 16)
	}
	if index < len(payload) {
		total += uint32(payload[index]) << 8
		total = (total & 0xFFFF) + (total >> 16)
	}
	return ^uint16(total)
}

func setHeader(buffer []byte, sequenceNumber uint32, sum uint16, segmentType uint16) {
	binary.BigEndian.PutUint32(buffer[SequenceNumberPosition.Start:SequenceNumberPosition.End], sequenceNumber)
	binary.BigEndian.PutUint16(buffer[ChecksumPosition.Start:ChecksumPosition.End], sum)
	binary.BigEndian.PutUint16(buffer[TypePosition.Start:TypePosition.End], segmentType)
}

func createTypedSegment(sequenceNumber uint32, sum uint16, segmentType uint16, data []byte) *segment {
	buffer := make([]byte, HeaderLength+len(data))
	setHeader(buffer, sequenceNumber, sum, segmentType)
	copy(buffer[HeaderLength:], data)
	return &segment{
		buffer: buffer,
		data:   buffer[HeaderLength:],
	}
}

func createDataSegment(sequenceNumber uint32, data []byte) *segment {
	return createTypedSegment(sequenceNumber, checksum(data), TypeData, data)
}

func createAckSegment(sequenceNumber uint32) *segment {
	return createTypedSegment(sequenceNumber, 0, TypeAck, nil)
}

func createControlSegment(command string, value float64) *segment {
	payload := command + " " + strconv.FormatFloat(value, 'f', -1, 64)
	return createTypedSegment(0, 0, TypeControl, []byte(payload))
}

// createSegment decodes a received datagram. The segment aliases buffer.
func createSegment(buffer []byte) (*segment, error) {
	if len(buffer) < HeaderLength {
		return nil, ErrSegmentTooShort
	}
	return &segment{
		buffer: buffer,
		data:   buffer[HeaderLength:],
	}, nil
}

func parseAck(buffer []byte) (uint32, error) {
	seg, err := createSegment(buffer)
	if err != nil {
		return 0, err
	}
	if !seg.isType(TypeAck) || seg.getChecksum() != 0 {
		return 0, ErrNotAck
	}
	return seg.getSequenceNumber(), nil
}

type controlCommand struct {
	command string
	value   float64
}

func parseControlPayload(payload []byte) (controlCommand, error) {
	fields := strings.Fields(string(payload))
	if len(fields) != 2 {
		return controlCommand{}, fmt.Errorf("%w: %q", ErrMalformedControl, payload)
	}
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return controlCommand{}, fmt.Errorf("%w: %q", ErrMalformedControl, payload)
	}
	return controlCommand{command: fields[0], value: value}, nil
}

func parseControl(buffer []byte) (controlCommand, error) {
	seg, err := createSegment(buffer)
	if err != nil {
		return controlCommand{}, err
	}
	if !seg.isType(TypeControl) {
		return controlCommand{}, ErrNotControl
	}
	return parseControlPayload(seg.data)
}

// createSegments splits the input into DATA segments of at most mss bytes,
// numbered densely from 0. It returns the total number of payload bytes.
func createSegments(reader io.Reader, mss int) ([]*segment, int, error) {
	var result []*segment
	total := 0
	chunk := make([]byte, mss)
	for sequenceNumber := uint32(0); ; sequenceNumber++ {
		n, err := io.ReadFull(reader, chunk)
		if n > 0 {
			result = append(result, createDataSegment(sequenceNumber, chunk[:n]))
			total += n
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return result, total, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading segment %d: %w", sequenceNumber, err)
		}
	}
}
