//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// ADC reference in millivolts. The pico family ties ADC_VREF to the
// 3.3V rail.
const adcRefMilliVolt = 3300

var adcReady bool

// analogInput wraps one of the four external ADC channels.
type analogInput struct {
	adc machine.ADC
}

// configureAnalog claims the converter input muxed onto a GPIO. Only
// GPIO 26 through 29 reach the ADC; anything else reports false.
func configureAnalog(pin byte) (analogInput, bool) {
	var p machine.Pin
	switch pin {
	case 26:
		p = machine.ADC0
	case 27:
		p = machine.ADC1
	case 28:
		p = machine.ADC2
	case 29:
		p = machine.ADC3
	default:
		return analogInput{}, false
	}

	if !adcReady {
		machine.InitADC()
		adcReady = true
	}

	in := analogInput{adc: machine.ADC{Pin: p}}
	if err := in.adc.Configure(machine.ADCConfig{}); err != nil {
		return analogInput{}, false
	}
	return in, true
}

// readMilliVolts samples the channel and scales the result against the
// reference rail. Get returns the 12-bit conversion left justified to
// 16 bits, so full scale is 0xffff.
func (in analogInput) readMilliVolts() uint32 {
	raw := uint32(in.adc.Get())
	return raw * adcRefMilliVolt / 0xffff
}
