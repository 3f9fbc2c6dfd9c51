package sensors

import (
	"fmt"
	"sync"
	"time"

	"rover/hal"
)

// Unit selects the unit ranges are reported in.
type Unit uint8

const (
	Inches Unit = iota
	Millimeters
)

const (
	// pingDuration is the trigger pulse an HC-SR04 class sensor needs.
	pingDuration = 10 * time.Microsecond

	// speedOfSoundInchesPerSec is 1130 ft/s at room temperature.
	speedOfSoundInchesPerSec = 1130.0 * 12.0

	mmPerInch = 25.4
)

// pingInterval is the settle time between round-robin pings, long
// enough for the slowest echo to come back before the next sensor
// fires. Shortened by tests.
var pingInterval = 100 * time.Millisecond

var (
	sensorsMu sync.Mutex
	sensors   []*Ultrasonic
	autoStop  chan struct{}
	autoDone  chan struct{}
)

// Ultrasonic is a ping/echo rangefinder: a digital output triggers the
// ping, a pulse capture times the echo. Multiple sensors share the
// package round-robin so their pings never overlap; see
// SetAutomaticMode.
type Ultrasonic struct {
	dio     hal.DIODriver
	counter hal.CounterDriver
	pingCh  hal.Channel
	echoCh  hal.Channel
	unit    Unit

	mu      sync.Mutex
	enabled bool
}

// NewUltrasonic configures the ping output and the echo capture and
// registers the sensor with the package round-robin.
func NewUltrasonic(dio hal.DIODriver, pingCh hal.Channel, counter hal.CounterDriver, echoCh hal.Channel, unit Unit) (*Ultrasonic, error) {
	if err := dio.ConfigureOutput(pingCh, false); err != nil {
		return nil, fmt.Errorf("ultrasonic ping channel %d: %w", pingCh, err)
	}
	if err := counter.ConfigurePulseCapture(echoCh); err != nil {
		return nil, fmt.Errorf("ultrasonic echo channel %d: %w", echoCh, err)
	}
	u := &Ultrasonic{
		dio:     dio,
		counter: counter,
		pingCh:  pingCh,
		echoCh:  echoCh,
		unit:    unit,
		enabled: true,
	}
	sensorsMu.Lock()
	sensors = append(sensors, u)
	sensorsMu.Unlock()
	return u, nil
}

// Ping clears the previous capture and fires a single trigger pulse.
// Not needed when the automatic mode is on.
func (u *Ultrasonic) Ping() error {
	if err := u.counter.ResetPulse(u.echoCh); err != nil {
		return fmt.Errorf("ultrasonic reset capture: %w", err)
	}
	if err := u.dio.Pulse(u.pingCh, pingDuration); err != nil {
		return fmt.Errorf("ultrasonic ping: %w", err)
	}
	return nil
}

// RangeValid reports whether the last ping produced an echo. A
// completed echo pulse records both of its edges, so a real echo
// means a count above one.
func (u *Ultrasonic) RangeValid() bool {
	count, err := u.counter.PulseCount(u.echoCh)
	if err != nil {
		return false
	}
	return count > 1
}

// RangeInches returns the measured distance in inches, or 0 while no
// valid echo has been captured.
func (u *Ultrasonic) RangeInches() float64 {
	if !u.RangeValid() {
		return 0
	}
	width, err := u.counter.LastPulseWidth(u.echoCh)
	if err != nil {
		return 0
	}
	// The echo time covers the round trip.
	return width.Seconds() * speedOfSoundInchesPerSec / 2
}

// RangeMM returns the measured distance in millimeters, or 0 while no
// valid echo has been captured.
func (u *Ultrasonic) RangeMM() float64 {
	return u.RangeInches() * mmPerInch
}

// PIDGet returns the range in the sensor's configured unit. Rate
// queries report 0; the sensor has no velocity estimate.
func (u *Ultrasonic) PIDGet(which SourceType) float64 {
	if which != Displacement {
		return 0
	}
	if u.unit == Millimeters {
		return u.RangeMM()
	}
	return u.RangeInches()
}

// SetEnabled includes or excludes the sensor from the round-robin.
func (u *Ultrasonic) SetEnabled(v bool) {
	u.mu.Lock()
	u.enabled = v
	u.mu.Unlock()
}

// Enabled reports whether the round-robin pings this sensor.
func (u *Ultrasonic) Enabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.enabled
}

// Close removes the sensor from the round-robin. The hal channels stay
// configured.
func (u *Ultrasonic) Close() {
	sensorsMu.Lock()
	defer sensorsMu.Unlock()
	for i, s := range sensors {
		if s == u {
			sensors = append(sensors[:i], sensors[i+1:]...)
			return
		}
	}
}

// SetAutomaticMode starts or stops the shared ping loop. The loop
// pings every enabled sensor in turn, waiting out the settle interval
// after each, so simultaneous echoes cannot be confused for each
// other. Turning the mode off waits for the loop to finish its current
// ping.
func SetAutomaticMode(on bool) {
	sensorsMu.Lock()
	if on == (autoStop != nil) {
		sensorsMu.Unlock()
		return
	}
	if on {
		autoStop = make(chan struct{})
		autoDone = make(chan struct{})
		go pingLoop(autoStop, autoDone)
		sensorsMu.Unlock()
		return
	}
	stop, done := autoStop, autoDone
	autoStop, autoDone = nil, nil
	sensorsMu.Unlock()
	close(stop)
	<-done
}

// AutomaticMode reports whether the shared ping loop is running.
func AutomaticMode() bool {
	sensorsMu.Lock()
	defer sensorsMu.Unlock()
	return autoStop != nil
}

func pingLoop(stop, done chan struct{}) {
	defer close(done)
	for {
		sensorsMu.Lock()
		batch := make([]*Ultrasonic, 0, len(sensors))
		for _, u := range sensors {
			if u.Enabled() {
				batch = append(batch, u)
			}
		}
		sensorsMu.Unlock()

		if len(batch) == 0 {
			if !settle(stop) {
				return
			}
			continue
		}
		for _, u := range batch {
			_ = u.Ping()
			if !settle(stop) {
				return
			}
		}
	}
}

func settle(stop chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(pingInterval):
		return true
	}
}
