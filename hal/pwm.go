package hal

// PWMDriver drives PWM output channels, typically motor controllers.
type PWMDriver interface {
	// ConfigurePWM claims a channel for PWM output at the given carrier
	// frequency.
	ConfigurePWM(ch Channel, freqHz uint32) error

	// SetDuty sets the duty cycle, clamped to [0, 1].
	SetDuty(ch Channel, duty float64) error

	// DisablePWM stops the carrier and releases the line low.
	DisablePWM(ch Channel) error
}
