package hal

// PinGroup is a set of digital channels manipulated together while the
// driver's pin lock is held. All operations apply to every channel in
// the group at once.
type PinGroup interface {
	// SetOutputMode switches the whole group to output.
	SetOutputMode()

	// SetInputMode switches the whole group to input.
	SetInputMode()

	// SetAllHigh drives every channel in the group high.
	SetAllHigh()

	// SetAllLow drives every channel in the group low.
	SetAllLow()

	// Get reads channel i of the group.
	Get(i int) bool
}

// DirectDIO is an optional capability for drivers that can hand out
// lock-scoped raw access to a group of digital channels. Callers probe
// for it with a type assertion. The callback runs with the driver's
// pin lock held and must not reach the driver through any other path.
type DirectDIO interface {
	// WithPins runs fn against the given channels under the pin lock.
	WithPins(chs []Channel, fn func(PinGroup)) error
}
