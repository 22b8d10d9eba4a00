package protocol

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint16(0xFFFF), checksum(nil))
	assert.Equal(t, uint16(0x0DFB), checksum([]byte{0x00, 0x01, 0xF2, 0x03}))
	assert.Equal(t, uint16(0x220D), checksum([]byte{0x00, 0x01, 0xF2, 0x03, 0xF4, 0xF5, 0xF6, 0xF7}))
	// odd length pads the last byte on the right
	assert.Equal(t, uint16(0xFEFF), checksum([]byte{0x01}))
	// end-around carry
	assert.Equal(t, uint16(0xFFFE), checksum([]byte{0xFF, 0xFF, 0x00, 0x01}))
}

func TestChecksumDetectsSingleBitFlips(t *testing.T) {
	payload := []byte("The quick brown fox jumps over the lazy dog")
	original := checksum(payload)
	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			damaged := append([]byte(nil), payload...)
			damaged[i] ^= 1 << bit
			assert.NotEqual(t, original, checksum(damaged), "byte %d bit %d", i, bit)
		}
	}
}

func TestCreateDataSegment(t *testing.T) {
	seg := createDataSegment(42, []byte("payload"))
	assert.Len(t, seg.buffer, HeaderLength+7)
	assert.Equal(t, []byte{0, 0, 0, 42}, seg.buffer[0:4])
	assert.Equal(t, []byte{0x55, 0x55}, seg.buffer[6:8])

	decoded, err := createSegment(seg.buffer)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), decoded.getSequenceNumber())
	assert.Equal(t, TypeData, decoded.getType())
	assert.Equal(t, "payload", string(decoded.data))
	assert.True(t, decoded.hasValidChecksum())
}

func TestCorruptedSegmentFailsChecksum(t *testing.T) {
	seg, err := createSegment(corruptedDataSegment(3, "payload"))
	require.NoError(t, err)
	assert.False(t, seg.hasValidChecksum())
}

func TestEmptyDataSegment(t *testing.T) {
	seg, err := createSegment(dataSegment(0, ""))
	require.NoError(t, err)
	assert.Empty(t, seg.data)
	assert.True(t, seg.hasValidChecksum())
}

func TestCreateSegmentTooShort(t *testing.T) {
	_, err := createSegment([]byte{0, 0, 0, 1, 0, 0, 0x55})
	assert.ErrorIs(t, err, ErrSegmentTooShort)
}

func TestParseAck(t *testing.T) {
	ack := createAckSegment(7)
	assert.Len(t, ack.buffer, HeaderLength)
	assert.Equal(t, []byte{0, 0, 0, 7, 0, 0, 0xAA, 0xAA}, ack.buffer)

	sequenceNumber, err := parseAck(ack.buffer)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), sequenceNumber)
}

func TestParseAckRejectsInvalid(t *testing.T) {
	nonZeroChecksum := createAckSegment(7).buffer
	nonZeroChecksum[ChecksumPosition.Start] = 1

	_, err := parseAck(nonZeroChecksum)
	assert.ErrorIs(t, err, ErrNotAck)
	_, err = parseAck(dataSegment(7, "x"))
	assert.ErrorIs(t, err, ErrNotAck)
	_, err = parseAck([]byte{0, 0})
	assert.ErrorIs(t, err, ErrSegmentTooShort)
}

func TestControlSegment(t *testing.T) {
	seg := createControlSegment(CommandWindow, 8)
	assert.Equal(t, TypeControl, seg.getType())
	assert.Equal(t, "WINDOW 8", string(seg.data))

	command, err := parseControl(seg.buffer)
	require.NoError(t, err)
	assert.Equal(t, controlCommand{command: CommandWindow, value: 8}, command)

	command, err = parseControl(createControlSegment(CommandLoss, 0.25).buffer)
	require.NoError(t, err)
	assert.Equal(t, controlCommand{command: CommandLoss, value: 0.25}, command)
}

func TestParseControlPayload(t *testing.T) {
	command, err := parseControlPayload([]byte("  LOSS\t0.5 "))
	require.NoError(t, err)
	assert.Equal(t, CommandLoss, command.command)
	assert.Equal(t, 0.5, command.value)

	for _, payload := range []string{"", "LOSS", "LOSS abc", "LOSS 0.1 0.2", "WINDOW NaN", "WINDOW +Inf"} {
		_, err := parseControlPayload([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedControl, payload)
	}
}

func TestParseControlRejectsOtherTypes(t *testing.T) {
	_, err := parseControl(createAckSegment(0).buffer)
	assert.ErrorIs(t, err, ErrNotControl)
}

func TestCreateSegments(t *testing.T) {
	payload := patternPayload(2050)
	segments, total, err := createSegments(bytes.NewReader(payload), 500)
	require.NoError(t, err)
	assert.Equal(t, 2050, total)
	require.Len(t, segments, 5)

	var joined []byte
	for i, seg := range segments {
		assert.Equal(t, uint32(i), seg.getSequenceNumber())
		assert.True(t, seg.hasValidChecksum())
		joined = append(joined, seg.data...)
	}
	assert.Len(t, segments[4].data, 50)
	assert.Equal(t, payload, joined)
}

func TestCreateSegmentsExactMultiple(t *testing.T) {
	segments, total, err := createSegments(bytes.NewReader(patternPayload(1000)), 500)
	require.NoError(t, err)
	assert.Equal(t, 1000, total)
	assert.Len(t, segments, 2)
}

func TestCreateSegmentsEmptyInput(t *testing.T) {
	segments, total, err := createSegments(bytes.NewReader(nil), 500)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, segments)
}

func TestCreateSegmentsReadError(t *testing.T) {
	failure := errors.New("disk on fire")
	_, _, err := createSegments(iotest.ErrReader(failure), 500)
	assert.ErrorIs(t, err, failure)
}
