package sensors

import (
	"fmt"
	"time"

	"rover/hal"
)

// Gyro is a single-axis heading sensor.
type Gyro interface {
	// Angle returns the accumulated heading in degrees. Continuous:
	// full turns keep adding, the value does not wrap at 360.
	Angle() float64

	// Rate returns the angular rate in degrees per second.
	Rate() float64

	// Reset zeroes the accumulated heading.
	Reset()
}

// GyroSource adapts a Gyro to the PIDSource interface: displacement
// queries read the angle, rate queries read the rate.
type GyroSource struct {
	g Gyro
}

// NewGyroSource wraps g.
func NewGyroSource(g Gyro) *GyroSource {
	return &GyroSource{g: g}
}

// PIDGet implements PIDSource.
func (s *GyroSource) PIDGet(which SourceType) float64 {
	if which == Rate {
		return s.g.Rate()
	}
	return s.g.Angle()
}

// defaultVoltsPerDegreePerSecond matches the common analog gyro parts.
const defaultVoltsPerDegreePerSecond = 0.007

// AnalogGyro integrates an analog rate gyro into a heading. It does
// not sample on its own: call Update from a periodic hook, typically
// the owning subsystem's Periodic, passing the current time.
type AnalogGyro struct {
	analog      hal.AnalogDriver
	ch          hal.Channel
	sensitivity float64
	deadband    float64

	center   float64
	angle    float64
	rate     float64
	lastSeen time.Time
}

// NewAnalogGyro claims ch for analog input. Call Calibrate with the
// robot still before trusting the heading.
func NewAnalogGyro(analog hal.AnalogDriver, ch hal.Channel) (*AnalogGyro, error) {
	if err := analog.ConfigureAnalog(ch); err != nil {
		return nil, fmt.Errorf("gyro channel %d: %w", ch, err)
	}
	return &AnalogGyro{
		analog:      analog,
		ch:          ch,
		sensitivity: defaultVoltsPerDegreePerSecond,
	}, nil
}

// SetSensitivity sets the gyro scale in volts per degree per second.
func (g *AnalogGyro) SetSensitivity(voltsPerDegPerSec float64) {
	g.sensitivity = voltsPerDegPerSec
}

// SetDeadband sets the voltage offset below which readings count as
// zero rate, suppressing drift from a slightly off center value.
func (g *AnalogGyro) SetDeadband(volts float64) {
	g.deadband = volts
}

// Calibrate samples the channel n times and takes the average as the
// zero-rate center voltage. The robot must not rotate while this runs.
func (g *AnalogGyro) Calibrate(n int) error {
	if n <= 0 {
		n = 1
	}
	var sum float64
	for i := 0; i < n; i++ {
		v, err := g.analog.ReadVoltage(g.ch)
		if err != nil {
			return fmt.Errorf("gyro calibrate: %w", err)
		}
		sum += v
	}
	g.center = sum / float64(n)
	g.angle = 0
	g.rate = 0
	g.lastSeen = time.Time{}
	return nil
}

// Update samples the channel and integrates the rate over the time
// since the previous call. The first call after a reset only seeds the
// clock.
func (g *AnalogGyro) Update(now time.Time) error {
	v, err := g.analog.ReadVoltage(g.ch)
	if err != nil {
		return fmt.Errorf("gyro update: %w", err)
	}
	offset := v - g.center
	if offset < g.deadband && offset > -g.deadband {
		offset = 0
	}
	g.rate = offset / g.sensitivity
	if !g.lastSeen.IsZero() {
		g.angle += g.rate * now.Sub(g.lastSeen).Seconds()
	}
	g.lastSeen = now
	return nil
}

// Angle returns the integrated heading in degrees.
func (g *AnalogGyro) Angle() float64 { return g.angle }

// Rate returns the rate from the last Update in degrees per second.
func (g *AnalogGyro) Rate() float64 { return g.rate }

// Reset zeroes the heading. The center calibration is kept.
func (g *AnalogGyro) Reset() {
	g.angle = 0
	g.rate = 0
	g.lastSeen = time.Time{}
}
