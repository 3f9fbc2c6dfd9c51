package protocol

// Version is the protocol revision. Hello carries it in both
// directions; a mismatch is a handshake failure.
const Version = 1

// MsgType identifies a message. Replies set the high bit of the
// request they answer.
type MsgType byte

const (
	MsgHello        MsgType = 0x01
	MsgSetMode      MsgType = 0x02
	MsgWrite        MsgType = 0x03
	MsgPulse        MsgType = 0x04
	MsgRead         MsgType = 0x05
	MsgCaptureCfg   MsgType = 0x06
	MsgCaptureRead  MsgType = 0x07
	MsgCaptureReset MsgType = 0x08
	MsgAnalogCfg    MsgType = 0x09
	MsgAnalogRead   MsgType = 0x0A
	MsgPWMCfg       MsgType = 0x0B
	MsgPWMSet       MsgType = 0x0C
	MsgPWMOff       MsgType = 0x0D

	MsgHelloReply   MsgType = MsgHello | ReplyBit
	MsgReadReply    MsgType = MsgRead | ReplyBit
	MsgCaptureReply MsgType = MsgCaptureRead | ReplyBit
	MsgAnalogReply  MsgType = MsgAnalogRead | ReplyBit

	// MsgError answers any request the board rejected: payload is the
	// request's tag (0 for untagged requests) and an error code.
	MsgError MsgType = 0x7F | ReplyBit
)

// ReplyBit marks board-to-host replies.
const ReplyBit MsgType = 0x80

// Channel modes for MsgSetMode.
const (
	ModeInput         byte = 0
	ModeInputPullUp   byte = 1
	ModeInputPullDown byte = 2
	ModeOutputLow     byte = 3
	ModeOutputHigh    byte = 4
)

// Error codes carried by MsgError.
const (
	ErrCodeBadChannel byte = 1
	ErrCodeBadMode    byte = 2
	ErrCodeBadMessage byte = 3
	ErrCodeNoResource byte = 4
)

// Payload layouts. Byte fields are single bytes, numbers are LEB128
// varints, strings run to the end of the payload.
//
//	MsgHello        version
//	MsgHelloReply   version, board id string
//	MsgSetMode      channel, mode
//	MsgWrite        channel, level (0|1)
//	MsgPulse        channel, microseconds
//	MsgRead         tag, channel
//	MsgReadReply    tag, level (0|1)
//	MsgCaptureCfg   channel
//	MsgCaptureRead  tag, channel
//	MsgCaptureReply tag, pulse count, last width in microseconds
//	MsgCaptureReset channel
//	MsgAnalogCfg    channel
//	MsgAnalogRead   tag, channel
//	MsgAnalogReply  tag, millivolts
//	MsgPWMCfg       channel, frequency in Hz
//	MsgPWMSet       channel, duty scaled to 0..65535
//	MsgPWMOff       channel
//	MsgError        tag, code
