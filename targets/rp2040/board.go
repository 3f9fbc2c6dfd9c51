//go:build rp2040 || rp2350

package main

import (
	"machine"

	"rover/protocol"
)

// The pico family routes GPIO 0 through 29 to the pads.
const numChannels = 30

// Pulses at or under this width are timed inline; longer ones are
// scheduled and finished from the main loop.
const maxInlinePulseUs = 1000

type ioMode uint8

const (
	modeUnused ioMode = iota
	modeInput
	modeOutput
	modePWM
	modeAnalog
	modeCapture
)

type channelState struct {
	mode    ioMode
	pwm     pwmOutput
	analog  analogInput
	capture *captureUnit

	pulseActive bool
	pulseEnd    uint32
}

// board decodes host frames, drives the pins and writes replies.
type board struct {
	scanner  protocol.Scanner
	channels [numChannels]channelState
	scratch  []byte
}

func newBoard() *board {
	return &board{scratch: make([]byte, 0, 64)}
}

func (b *board) handle(f protocol.Frame) {
	switch f.Type {
	case protocol.MsgHello:
		b.handleHello()
	case protocol.MsgSetMode:
		b.handleSetMode(f.Payload)
	case protocol.MsgWrite:
		b.handleWrite(f.Payload)
	case protocol.MsgPulse:
		b.handlePulse(f.Payload)
	case protocol.MsgRead:
		b.handleRead(f.Payload)
	case protocol.MsgCaptureCfg:
		b.handleCaptureCfg(f.Payload)
	case protocol.MsgCaptureRead:
		b.handleCaptureRead(f.Payload)
	case protocol.MsgCaptureReset:
		b.handleCaptureReset(f.Payload)
	case protocol.MsgAnalogCfg:
		b.handleAnalogCfg(f.Payload)
	case protocol.MsgAnalogRead:
		b.handleAnalogRead(f.Payload)
	case protocol.MsgPWMCfg:
		b.handlePWMCfg(f.Payload)
	case protocol.MsgPWMSet:
		b.handlePWMSet(f.Payload)
	case protocol.MsgPWMOff:
		b.handlePWMOff(f.Payload)
	default:
		b.sendError(0, protocol.ErrCodeBadMessage)
	}
}

// tick finishes scheduled pulses and collects completed echo captures.
func (b *board) tick() {
	now := micros()
	for i := range b.channels {
		st := &b.channels[i]
		if st.pulseActive && elapsed(now, st.pulseEnd) {
			machine.Pin(i).Low()
			st.pulseActive = false
		}
		if st.mode == modeCapture && st.capture != nil {
			st.capture.drain()
		}
	}
}

func (b *board) handleHello() {
	reply := append([]byte{protocol.Version}, boardID...)
	b.send(protocol.MsgHelloReply, reply)
}

func (b *board) handleSetMode(payload []byte) {
	if len(payload) < 2 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	ch, mode := payload[0], payload[1]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	pin := machine.Pin(ch)
	switch mode {
	case protocol.ModeInput:
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		st.mode = modeInput
	case protocol.ModeInputPullUp:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		st.mode = modeInput
	case protocol.ModeInputPullDown:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
		st.mode = modeInput
	case protocol.ModeOutputLow:
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
		st.mode = modeOutput
	case protocol.ModeOutputHigh:
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.High()
		st.mode = modeOutput
	default:
		b.sendError(0, protocol.ErrCodeBadMode)
		return
	}
	st.pulseActive = false
}

func (b *board) handleWrite(payload []byte) {
	if len(payload) < 2 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	ch, level := payload[0], payload[1]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modeOutput {
		b.sendError(0, protocol.ErrCodeBadMode)
		return
	}
	// An explicit write overrides a pulse in flight.
	st.pulseActive = false
	machine.Pin(ch).Set(level != 0)
}

func (b *board) handlePulse(payload []byte) {
	ch, us, ok := channelAndUvarint(payload)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	st, chOK := b.channel(ch)
	if !chOK {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modeOutput {
		b.sendError(0, protocol.ErrCodeBadMode)
		return
	}
	if us == 0 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}

	pin := machine.Pin(ch)
	if us <= maxInlinePulseUs {
		// Short pulses are timed inline for a crisp width. A 10us
		// rangefinder trigger cannot wait for the next loop pass.
		pin.High()
		deadline := micros() + us
		for !elapsed(micros(), deadline) {
		}
		pin.Low()
		st.pulseActive = false
		return
	}
	pin.High()
	st.pulseEnd = micros() + us
	st.pulseActive = true
}

func (b *board) handleRead(payload []byte) {
	if len(payload) < 2 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	tag, ch := payload[0], payload[1]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(tag, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modeInput && st.mode != modeOutput {
		b.sendError(tag, protocol.ErrCodeBadMode)
		return
	}
	level := byte(0)
	if machine.Pin(ch).Get() {
		level = 1
	}
	b.send(protocol.MsgReadReply, []byte{tag, level})
}

func (b *board) handleCaptureCfg(payload []byte) {
	if len(payload) < 1 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	ch := payload[0]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode == modeCapture {
		return
	}
	capture, ok := newCapture(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeNoResource)
		return
	}
	st.capture = capture
	st.mode = modeCapture
}

func (b *board) handleCaptureRead(payload []byte) {
	if len(payload) < 2 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	tag, ch := payload[0], payload[1]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(tag, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modeCapture || st.capture == nil {
		b.sendError(tag, protocol.ErrCodeBadMode)
		return
	}
	st.capture.drain()
	reply := protocol.AppendUvarint([]byte{tag}, st.capture.count)
	reply = protocol.AppendUvarint(reply, st.capture.lastWidthUs)
	b.send(protocol.MsgCaptureReply, reply)
}

func (b *board) handleCaptureReset(payload []byte) {
	if len(payload) < 1 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	ch := payload[0]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modeCapture || st.capture == nil {
		b.sendError(0, protocol.ErrCodeBadMode)
		return
	}
	st.capture.reset()
}

func (b *board) handleAnalogCfg(payload []byte) {
	if len(payload) < 1 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	ch := payload[0]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	in, adcOK := configureAnalog(ch)
	if !adcOK {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	st.analog = in
	st.mode = modeAnalog
}

func (b *board) handleAnalogRead(payload []byte) {
	if len(payload) < 2 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	tag, ch := payload[0], payload[1]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(tag, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modeAnalog {
		b.sendError(tag, protocol.ErrCodeBadMode)
		return
	}
	reply := protocol.AppendUvarint([]byte{tag}, st.analog.readMilliVolts())
	b.send(protocol.MsgAnalogReply, reply)
}

func (b *board) handlePWMCfg(payload []byte) {
	ch, freq, ok := channelAndUvarint(payload)
	if !ok || freq == 0 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	st, chOK := b.channel(ch)
	if !chOK {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	out, err := configurePWM(ch, freq)
	if err != nil {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	st.pwm = out
	st.mode = modePWM
}

func (b *board) handlePWMSet(payload []byte) {
	ch, duty, ok := channelAndUvarint(payload)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	st, chOK := b.channel(ch)
	if !chOK {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modePWM {
		b.sendError(0, protocol.ErrCodeBadMode)
		return
	}
	st.pwm.setDuty(duty)
}

func (b *board) handlePWMOff(payload []byte) {
	if len(payload) < 1 {
		b.sendError(0, protocol.ErrCodeBadMessage)
		return
	}
	ch := payload[0]
	st, ok := b.channel(ch)
	if !ok {
		b.sendError(0, protocol.ErrCodeBadChannel)
		return
	}
	if st.mode != modePWM {
		b.sendError(0, protocol.ErrCodeBadMode)
		return
	}
	st.pwm.disable()
	st.mode = modeUnused
}

func (b *board) channel(ch byte) (*channelState, bool) {
	if int(ch) >= numChannels {
		return nil, false
	}
	return &b.channels[ch], true
}

func (b *board) send(t protocol.MsgType, payload []byte) {
	frame, err := protocol.AppendFrame(b.scratch[:0], t, payload)
	if err != nil {
		return
	}
	b.scratch = frame
	USBWriteBytes(frame)
}

func (b *board) sendError(tag, code byte) {
	b.send(protocol.MsgError, []byte{tag, code})
}

// channelAndUvarint splits a payload of one channel byte followed by a
// varint argument.
func channelAndUvarint(payload []byte) (byte, uint32, bool) {
	rest := payload
	ch, err := protocol.ReadByte(&rest)
	if err != nil {
		return 0, 0, false
	}
	v, err := protocol.ReadUvarint(&rest)
	if err != nil {
		return 0, 0, false
	}
	return ch, v, true
}
