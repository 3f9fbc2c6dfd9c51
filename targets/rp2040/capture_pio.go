//go:build rp2040

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"device/rp"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Echo pulse width capture on PIO. Timing the echo line in software
// would tie up the main loop for tens of milliseconds per ping; a
// state machine watches the line instead and hands back one word per
// completed pulse.

// buildCaptureProgram returns the echo timing program for one GPIO.
// The wait instructions address the pin absolutely, so the program is
// built per channel and its jump targets require loading at origin 0.
//
// The machine idles until a rising edge, then decrements X in a two
// cycle loop while the line stays high, and pushes the loop count when
// the line drops. At a 1MHz state machine clock each count is 2us of
// pulse width.
func buildCaptureProgram(gpio byte) []uint16 {
	g := uint16(gpio) & 0x1f
	return []uint16{
		0x2000 | g, // 0: wait 0 gpio N   ; line idle
		0x2080 | g, // 1: wait 1 gpio N   ; rising edge
		0xa02b,     // 2: mov x, ~null    ; x = 0xffffffff
		0x0044,     // 3: jmp x--, 4      ; count one turn
		0x00c3,     // 4: jmp pin, 3      ; still high, keep counting
		0xa0c9,     // 5: mov isr, ~x     ; turns counted
		0x8020,     // 6: push block
		0x0000,     // 7: jmp 0           ; wait for the next pulse
	}
}

const captureOrigin = 0 // absolute jump addresses

// pioStateMachine is one state machine's register window. Machines sit
// six registers apart in the block.
type pioStateMachine struct {
	CLKDIV    volatile.Register32
	EXECCTRL  volatile.Register32
	SHIFTCTRL volatile.Register32
	ADDR      volatile.Register32
	INSTR     volatile.Register32
	PINCTRL   volatile.Register32
}

func smRegisters(pio *rp.PIO0_Type, smNum uint8) *pioStateMachine {
	base := uintptr(unsafe.Pointer(&pio.SM0_CLKDIV)) + uintptr(smNum)*unsafe.Sizeof(pioStateMachine{})
	return (*pioStateMachine)(unsafe.Pointer(base))
}

// captureUnit is an armed echo channel: state machine 0 of one PIO
// block running the capture program for a single GPIO.
type captureUnit struct {
	pio   *rp.PIO0_Type
	smNum uint8
	rxf   *volatile.Register32

	count       uint32
	lastWidthUs uint32
}

// Each program addresses its GPIO absolutely and loads at origin 0, so
// a block serves exactly one capture channel.
var capturePIOUsed [2]bool

// newCapture arms pulse capture on a GPIO, claiming the first free PIO
// block. Reports false when both blocks are taken.
func newCapture(gpio byte) (*captureUnit, bool) {
	for pioNum := uint8(0); pioNum < 2; pioNum++ {
		if capturePIOUsed[pioNum] {
			continue
		}
		c, err := setupCapture(pioNum, gpio)
		if err != nil {
			continue
		}
		capturePIOUsed[pioNum] = true
		return c, true
	}
	return nil, false
}

func setupCapture(pioNum uint8, gpio byte) (*captureUnit, error) {
	var pioHW *rp2pio.PIO
	var raw *rp.PIO0_Type
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
		raw = rp.PIO0
	} else {
		pioHW = rp2pio.PIO1
		raw = rp.PIO1
	}

	const smNum = 0
	sm := pioHW.StateMachine(smNum)
	sm.TryClaim()

	program := buildCaptureProgram(gpio)
	offset, err := pioHW.AddProgram(program, captureOrigin)
	if err != nil {
		return nil, err
	}

	// The state machine only watches the line; a pulldown keeps it
	// quiet while the sensor is idle.
	machine.Pin(gpio).Configure(machine.PinConfig{Mode: machine.PinInputPulldown})

	cfg := rp2pio.DefaultStateMachineConfig()
	// 125MHz system clock down to 1MHz for the state machine.
	cfg.SetClkDivIntFrac(125, 0)

	sm.Init(offset, cfg)

	// Point jmp pin at the echo line. The config wrapper does not
	// reach this field, so patch EXECCTRL before enabling.
	regs := smRegisters(raw, smNum)
	execctrl := regs.EXECCTRL.Get()
	execctrl &^= rp.PIO0_SM0_EXECCTRL_JMP_PIN_Msk
	execctrl |= uint32(gpio) << rp.PIO0_SM0_EXECCTRL_JMP_PIN_Pos
	regs.EXECCTRL.Set(execctrl)

	sm.SetEnabled(true)

	rxf := (*volatile.Register32)(unsafe.Pointer(uintptr(unsafe.Pointer(&raw.RXF0)) + uintptr(smNum)*4))
	return &captureUnit{pio: raw, smNum: smNum, rxf: rxf}, nil
}

// drain collects completed pulses from the RX FIFO. Each word is one
// pulse; both of its edges count, and the width is the loop count
// times two microseconds.
func (c *captureUnit) drain() {
	for !c.pio.FSTAT.HasBits(1 << (c.smNum + rp.PIO0_FSTAT_RXEMPTY_Pos)) {
		word := c.rxf.Get()
		c.count += 2
		c.lastWidthUs = word * 2
	}
}

// reset clears the counters. The state machine keeps running, so a
// pulse in flight still completes and counts afterwards.
func (c *captureUnit) reset() {
	c.drain()
	c.count = 0
	c.lastWidthUs = 0
}
