// Package sim provides an in-process implementation of the hal driver
// interfaces. It backs unit tests, the simulated example robot and the
// console's sim mode: robot code runs against it unchanged, and tests
// script input levels, voltages and pulse captures from the outside.
package sim

import (
	"sync"
	"time"

	"rover/hal"
)

// NumChannels is the size of the simulated channel bank.
const NumChannels = 32

type pinMode uint8

const (
	modeUnset pinMode = iota
	modeInput
	modeOutput
	modeAnalog
	modePulse
	modePWM
)

type pin struct {
	mode       pinMode
	pull       hal.Pull
	level      bool
	voltage    float64
	pulseCount int
	pulseWidth time.Duration
	fired      []time.Duration
	duty       float64
	freqHz     uint32
}

// IO is a simulated IO board. The zero value is not usable; create one
// with New. All methods are safe for concurrent use.
type IO struct {
	mu   sync.Mutex
	pins [NumChannels]pin
}

// New returns a simulated board with every channel unconfigured.
func New() *IO {
	return &IO{}
}

func (io *IO) pin(ch hal.Channel) (*pin, error) {
	if int(ch) >= NumChannels {
		return nil, hal.ErrBadChannel
	}
	return &io.pins[ch], nil
}

// ConfigureInput configures ch as a digital input.
func (io *IO) ConfigureInput(ch hal.Channel, pull hal.Pull) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	p.mode = modeInput
	p.pull = pull
	return nil
}

// ConfigureOutput configures ch as a digital output at the given level.
func (io *IO) ConfigureOutput(ch hal.Channel, initial bool) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	p.mode = modeOutput
	p.level = initial
	return nil
}

// Set drives a configured output channel.
func (io *IO) Set(ch hal.Channel, level bool) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	if p.mode != modeOutput {
		return hal.ErrNotConfigured
	}
	p.level = level
	return nil
}

// Get reads a configured input channel.
func (io *IO) Get(ch hal.Channel) (bool, error) {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return false, err
	}
	if p.mode != modeInput {
		return false, hal.ErrNotConfigured
	}
	return p.level, nil
}

// Pulse records a fired pulse on an output channel. The simulation
// completes it immediately; the recorded durations are available
// through Pulses.
func (io *IO) Pulse(ch hal.Channel, d time.Duration) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	if p.mode != modeOutput {
		return hal.ErrNotConfigured
	}
	p.fired = append(p.fired, d)
	return nil
}

// ConfigurePulseCapture arms pulse capture on ch.
func (io *IO) ConfigurePulseCapture(ch hal.Channel) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	p.mode = modePulse
	p.pulseCount = 0
	p.pulseWidth = 0
	return nil
}

// PulseCount returns the scripted capture count.
func (io *IO) PulseCount(ch hal.Channel) (int, error) {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return 0, err
	}
	if p.mode != modePulse {
		return 0, hal.ErrNotConfigured
	}
	return p.pulseCount, nil
}

// LastPulseWidth returns the scripted capture width.
func (io *IO) LastPulseWidth(ch hal.Channel) (time.Duration, error) {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return 0, err
	}
	if p.mode != modePulse {
		return 0, hal.ErrNotConfigured
	}
	return p.pulseWidth, nil
}

// ResetPulse clears the capture state of ch.
func (io *IO) ResetPulse(ch hal.Channel) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	if p.mode != modePulse {
		return hal.ErrNotConfigured
	}
	p.pulseCount = 0
	p.pulseWidth = 0
	return nil
}

// ConfigureAnalog claims ch for analog input.
func (io *IO) ConfigureAnalog(ch hal.Channel) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	p.mode = modeAnalog
	return nil
}

// ReadVoltage returns the scripted voltage of ch.
func (io *IO) ReadVoltage(ch hal.Channel) (float64, error) {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return 0, err
	}
	if p.mode != modeAnalog {
		return 0, hal.ErrNotConfigured
	}
	return p.voltage, nil
}

// ConfigurePWM claims ch for PWM at the given carrier frequency.
func (io *IO) ConfigurePWM(ch hal.Channel, freqHz uint32) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	p.mode = modePWM
	p.freqHz = freqHz
	p.duty = 0
	return nil
}

// SetDuty sets the duty cycle of ch, clamped to [0, 1].
func (io *IO) SetDuty(ch hal.Channel, duty float64) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	if p.mode != modePWM {
		return hal.ErrNotConfigured
	}
	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}
	p.duty = duty
	return nil
}

// DisablePWM stops the carrier on ch and releases the line.
func (io *IO) DisablePWM(ch hal.Channel) error {
	io.mu.Lock()
	defer io.mu.Unlock()
	p, err := io.pin(ch)
	if err != nil {
		return err
	}
	if p.mode != modePWM {
		return hal.ErrNotConfigured
	}
	p.duty = 0
	p.level = false
	return nil
}

// group implements hal.PinGroup over a locked IO.
type group struct {
	io  *IO
	chs []hal.Channel
}

func (g *group) SetOutputMode() {
	for _, ch := range g.chs {
		g.io.pins[ch].mode = modeOutput
	}
}

func (g *group) SetInputMode() {
	for _, ch := range g.chs {
		g.io.pins[ch].mode = modeInput
	}
}

func (g *group) SetAllHigh() {
	for _, ch := range g.chs {
		g.io.pins[ch].level = true
	}
}

func (g *group) SetAllLow() {
	for _, ch := range g.chs {
		g.io.pins[ch].level = false
	}
}

func (g *group) Get(i int) bool {
	return g.io.pins[g.chs[i]].level
}

// WithPins runs fn against chs while holding the board lock. fn must
// not call back into the IO through any other method.
func (io *IO) WithPins(chs []hal.Channel, fn func(hal.PinGroup)) error {
	for _, ch := range chs {
		if int(ch) >= NumChannels {
			return hal.ErrBadChannel
		}
	}
	io.mu.Lock()
	defer io.mu.Unlock()
	fn(&group{io: io, chs: chs})
	return nil
}

// SetInputLevel scripts the level an input channel reads. Test hook.
func (io *IO) SetInputLevel(ch hal.Channel, level bool) {
	io.mu.Lock()
	defer io.mu.Unlock()
	if int(ch) < NumChannels {
		io.pins[ch].level = level
	}
}

// OutputLevel reports the level robot code last drove on ch. Test hook.
func (io *IO) OutputLevel(ch hal.Channel) bool {
	io.mu.Lock()
	defer io.mu.Unlock()
	if int(ch) >= NumChannels {
		return false
	}
	return io.pins[ch].level
}

// SetVoltage scripts the voltage an analog channel reads. Test hook.
func (io *IO) SetVoltage(ch hal.Channel, volts float64) {
	io.mu.Lock()
	defer io.mu.Unlock()
	if int(ch) < NumChannels {
		io.pins[ch].voltage = volts
	}
}

// SetPulseResult scripts a pulse capture: the count and the width the
// next reads will see. Test hook.
func (io *IO) SetPulseResult(ch hal.Channel, count int, width time.Duration) {
	io.mu.Lock()
	defer io.mu.Unlock()
	if int(ch) < NumChannels {
		io.pins[ch].pulseCount = count
		io.pins[ch].pulseWidth = width
	}
}

// Pulses returns the pulses robot code fired on ch, oldest first. Test
// hook.
func (io *IO) Pulses(ch hal.Channel) []time.Duration {
	io.mu.Lock()
	defer io.mu.Unlock()
	if int(ch) >= NumChannels {
		return nil
	}
	return append([]time.Duration(nil), io.pins[ch].fired...)
}

// Duty reports the duty cycle robot code last set on ch. Test hook.
func (io *IO) Duty(ch hal.Channel) float64 {
	io.mu.Lock()
	defer io.mu.Unlock()
	if int(ch) >= NumChannels {
		return 0
	}
	return io.pins[ch].duty
}
