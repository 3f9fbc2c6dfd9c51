package hal

import "time"

// DIODriver is the abstract digital IO interface robot code uses.
type DIODriver interface {
	// ConfigureInput configures a channel as a digital input with the
	// given bias.
	ConfigureInput(ch Channel, pull Pull) error

	// ConfigureOutput configures a channel as a digital output driving
	// the given initial level.
	ConfigureOutput(ch Channel, initial bool) error

	// Set drives an output channel high (true) or low (false).
	Set(ch Channel, level bool) error

	// Get reads the current level of an input channel.
	Get(ch Channel) (bool, error)

	// Pulse drives an output channel high for the given duration and
	// returns without waiting for the pulse to finish.
	Pulse(ch Channel, d time.Duration) error
}
