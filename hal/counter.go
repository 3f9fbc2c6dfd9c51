package hal

import "time"

// CounterDriver captures pulses on digital input channels. The usual
// customer is an ultrasonic rangefinder timing its echo line.
type CounterDriver interface {
	// ConfigurePulseCapture arms pulse-width capture on a channel. The
	// capture records every complete high pulse seen on the line.
	ConfigurePulseCapture(ch Channel) error

	// PulseCount returns the number of edges recorded since the last
	// reset. A pulse contributes both of its edges once it completes;
	// a pulse still in flight contributes nothing.
	PulseCount(ch Channel) (int, error)

	// LastPulseWidth returns the width of the most recent complete
	// pulse. Zero when nothing has been captured yet.
	LastPulseWidth(ch Channel) (time.Duration, error)

	// ResetPulse clears the capture count and the stored width.
	ResetPulse(ch Channel) error
}
