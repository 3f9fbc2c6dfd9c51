package protocol

import "errors"

// Wire format, host and board symmetric:
//
//	STX | length | type | payload... | crc16 hi | crc16 lo
//
// length counts the type byte plus the payload, so an empty message is
// length 1. The CRC covers length, type and payload. There is no
// sequence number and no ack: the link is a command/reply channel, and
// reply-carrying requests are matched by a tag byte inside the
// payload.

const (
	// STX opens every frame.
	STX = 0xA5

	// MaxPayload bounds a payload so length fits one byte.
	MaxPayload = 254

	// frameOverhead is STX, length and the CRC trailer.
	frameOverhead = 4
)

// ErrPayloadTooLarge reports a payload over MaxPayload.
var ErrPayloadTooLarge = errors.New("payload too large for one frame")

// Frame is one decoded message.
type Frame struct {
	Type    MsgType
	Payload []byte
}

// AppendFrame appends the encoded frame to dst and returns the
// extended slice.
func AppendFrame(dst []byte, t MsgType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, STX, byte(len(payload)+1), byte(t))
	dst = append(dst, payload...)
	crc := CRC16(dst[start+1:])
	return append(dst, byte(crc>>8), byte(crc)), nil
}

// Scanner extracts frames from a byte stream. Feed it reads as they
// arrive and drain Next until it reports false. Garbage between
// frames, a corrupt length or a CRC mismatch shifts the scan forward
// to the next STX candidate; Dropped counts the discarded bytes.
type Scanner struct {
	buf     []byte
	dropped int
}

// Feed appends stream bytes to the scan buffer.
func (s *Scanner) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next complete frame. ok is false when the buffer
// holds no complete frame yet. The payload is a copy, valid after
// further Feeds.
func (s *Scanner) Next() (f Frame, ok bool) {
	for {
		// Scan to the next frame start.
		i := 0
		for i < len(s.buf) && s.buf[i] != STX {
			i++
		}
		s.dropped += i
		s.buf = s.buf[i:]

		if len(s.buf) < frameOverhead {
			return Frame{}, false
		}
		length := int(s.buf[1])
		if length < 1 || length > MaxPayload+1 {
			s.skipOne()
			continue
		}
		total := frameOverhead + length
		if len(s.buf) < total {
			return Frame{}, false
		}
		want := uint16(s.buf[total-2])<<8 | uint16(s.buf[total-1])
		if CRC16(s.buf[1:total-2]) != want {
			s.skipOne()
			continue
		}

		f = Frame{
			Type:    MsgType(s.buf[2]),
			Payload: append([]byte(nil), s.buf[3:total-2]...),
		}
		s.buf = s.buf[total:]
		return f, true
	}
}

// skipOne drops the current STX so the scan can hunt for the next one.
func (s *Scanner) skipOne() {
	s.buf = s.buf[1:]
	s.dropped++
}

// Dropped returns the number of bytes discarded while resynchronizing.
func (s *Scanner) Dropped() int { return s.dropped }
