package hal

// AnalogDriver reads analog input channels as voltages.
type AnalogDriver interface {
	// ConfigureAnalog claims a channel for analog input.
	ConfigureAnalog(ch Channel) error

	// ReadVoltage samples the channel and returns volts.
	ReadVoltage(ch Channel) (float64, error)
}
