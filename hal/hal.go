// Package hal defines the driver interfaces robot code uses to reach
// digital, analog, counter and PWM hardware. Implementations live
// elsewhere: hal/sim provides an in-process simulation, host/iolink
// drives a real IO board over a serial link, and TinyGo targets can
// implement them directly on chip. Robot code receives drivers as
// plain values; nothing in this package holds global state.
package hal

import "errors"

// Channel identifies a logical IO channel. The mapping from channel to
// physical pin belongs to the driver implementation.
type Channel uint8

// Pull selects the input bias for a digital input channel.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

var (
	// ErrBadChannel reports a channel outside the driver's range.
	ErrBadChannel = errors.New("channel out of range")
	// ErrNotConfigured reports use of a channel before configuration,
	// or in a mode it was not configured for.
	ErrNotConfigured = errors.New("channel not configured")
)
