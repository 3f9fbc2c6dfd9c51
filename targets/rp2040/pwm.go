//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// Wire duty values are 16 bit, 0 fully off and 65535 fully on.
const pwmWireMax = 65535

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type so
// slices can be kept behind one interface.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// pwmOutput is a configured slice channel driving one GPIO.
type pwmOutput struct {
	slice   pwmPeripheral
	channel uint8
}

// configurePWM sets up hardware PWM on a GPIO at the given frequency.
// GPIO pin N belongs to slice (N >> 1) & 7; both pins of a slice share
// one period, so reconfiguring one retunes its neighbor too.
func configurePWM(pin byte, freqHz uint32) (pwmOutput, error) {
	slice := pwmSliceFor(pin)

	period := uint64(1000000000) / uint64(freqHz)
	err := slice.Configure(machine.PWMConfig{Period: period})
	if err != nil {
		return pwmOutput{}, err
	}

	channel, err := slice.Channel(machine.Pin(pin))
	if err != nil {
		return pwmOutput{}, err
	}
	return pwmOutput{slice: slice, channel: channel}, nil
}

// setDuty scales a wire duty value to the slice's top counter.
func (o pwmOutput) setDuty(value uint32) {
	if value > pwmWireMax {
		value = pwmWireMax
	}
	top := o.slice.Top()
	o.slice.Set(o.channel, uint32(uint64(value)*uint64(top)/pwmWireMax))
}

// disable drives the channel low. TinyGo has no way to hand the pin
// back to GPIO mode, so duty zero is as far as off goes.
func (o pwmOutput) disable() {
	o.slice.Set(o.channel, 0)
}

// pwmSliceFor returns the peripheral for a GPIO's slice. The pico
// family has 8 slices, PWM0 through PWM7.
func pwmSliceFor(pin byte) pwmPeripheral {
	switch (pin >> 1) & 0x7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
