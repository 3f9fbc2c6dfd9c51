// Package sensors provides robot sensor abstractions on top of the hal
// driver interfaces: an ultrasonic rangefinder with a shared ping
// scheduler, integrating and adapted gyros, and linear digital filters.
// Everything that produces a process-variable number implements
// PIDSource so controllers and commands can consume sensors
// interchangeably.
package sensors

// SourceType selects which quantity a PIDSource query asks for.
type SourceType uint8

const (
	// Displacement asks for an absolute quantity: a distance, an angle.
	Displacement SourceType = iota
	// Rate asks for the first derivative: a speed, an angular rate.
	Rate
)

// PIDSource is a sensor readable as a process variable. Implementations
// return their best current value for the asked quantity and 0 for a
// quantity they cannot measure.
type PIDSource interface {
	PIDGet(which SourceType) float64
}
