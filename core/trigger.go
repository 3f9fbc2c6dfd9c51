package core

import "fmt"

// Trigger is polled once per enabled tick, before anything else runs.
// Implementations decide what the poll means; the Button helpers below
// cover the usual edge-and-level cases.
type Trigger interface {
	Execute()
}

// Button turns an external boolean signal, typically a joystick button
// or a digital input, into command triggers. Each When/While method
// registers one trigger with the scheduler; triggers registered later
// are polled earlier.
type Button struct {
	sched *Scheduler
	poll  func() bool
}

// NewButton wraps poll as a trigger source on s. The poll function is
// called once per trigger per enabled tick and must not block.
func NewButton(s *Scheduler, poll func() bool) *Button {
	return &Button{sched: s, poll: poll}
}

// Get reads the current signal level.
func (b *Button) Get() bool { return b.poll() }

// WhenPressed schedules cmd on each rising edge.
func (b *Button) WhenPressed(cmd Command) {
	if !b.check(cmd, "WhenPressed") {
		return
	}
	b.sched.AddTrigger(&whenPressed{base: b.base(cmd)})
}

// WhileHeld schedules cmd every tick the signal is high and cancels it
// on the falling edge. The command should be open-ended: once it
// finishes on its own it stays finished and holding the button longer
// does nothing.
func (b *Button) WhileHeld(cmd Command) {
	if !b.check(cmd, "WhileHeld") {
		return
	}
	b.sched.AddTrigger(&whileHeld{base: b.base(cmd)})
}

// WhenReleased schedules cmd on each falling edge.
func (b *Button) WhenReleased(cmd Command) {
	if !b.check(cmd, "WhenReleased") {
		return
	}
	b.sched.AddTrigger(&whenReleased{base: b.base(cmd)})
}

// ToggleWhenPressed starts cmd on a rising edge if it is not running
// and cancels it on a rising edge if it is.
func (b *Button) ToggleWhenPressed(cmd Command) {
	if !b.check(cmd, "ToggleWhenPressed") {
		return
	}
	b.sched.AddTrigger(&toggleWhenPressed{base: b.base(cmd)})
}

// CancelWhenPressed cancels cmd on each rising edge.
func (b *Button) CancelWhenPressed(cmd Command) {
	if !b.check(cmd, "CancelWhenPressed") {
		return
	}
	b.sched.AddTrigger(&cancelWhenPressed{base: b.base(cmd)})
}

// WhenPressedFunc schedules a freshly built command on each rising
// edge. Finished commands cannot run again, so a press-to-repeat
// binding needs a new instance per press; build provides it.
func (b *Button) WhenPressedFunc(build func() Command) {
	if !b.checkBuild(build, "WhenPressedFunc") {
		return
	}
	b.sched.AddTrigger(&whenPressedFactory{base: b.factoryBase(build)})
}

// WhileHeldFunc keeps a built command scheduled while the signal is
// high and cancels it on the falling edge. Unlike WhileHeld, a command
// that finished or was displaced mid-hold is rebuilt, and the next
// press starts over with a fresh instance.
func (b *Button) WhileHeldFunc(build func() Command) {
	if !b.checkBuild(build, "WhileHeldFunc") {
		return
	}
	b.sched.AddTrigger(&whileHeldFactory{base: b.factoryBase(build)})
}

// ToggleWhenPressedFunc starts a freshly built command on a rising edge
// when none is running and cancels the running one otherwise.
func (b *Button) ToggleWhenPressedFunc(build func() Command) {
	if !b.checkBuild(build, "ToggleWhenPressedFunc") {
		return
	}
	b.sched.AddTrigger(&toggleFactory{base: b.factoryBase(build)})
}

func (b *Button) check(cmd Command, what string) bool {
	if cmd == nil {
		b.sched.reportError(fmt.Errorf("%w: %s", ErrNilCommand, what))
		return false
	}
	return true
}

func (b *Button) checkBuild(build func() Command, what string) bool {
	if build == nil {
		b.sched.reportError(fmt.Errorf("%w: %s", ErrNilCommand, what))
		return false
	}
	return true
}

// base seeds the edge state from the live signal so a button already
// held at registration does not fire on the first poll.
func (b *Button) base(cmd Command) buttonTrigger {
	return buttonTrigger{
		sched:       b.sched,
		cmd:         cmd,
		poll:        b.poll,
		pressedLast: b.poll(),
	}
}

type buttonTrigger struct {
	sched       *Scheduler
	cmd         Command
	poll        func() bool
	pressedLast bool
}

// schedule queues the command unless it already finished for good.
func (t *buttonTrigger) schedule() {
	if st := t.cmd.State(); st == Canceled || st == Completed {
		return
	}
	t.sched.Schedule(t.cmd)
}

type whenPressed struct{ base buttonTrigger }

func (t *whenPressed) Execute() {
	if t.base.poll() {
		if !t.base.pressedLast {
			t.base.pressedLast = true
			t.base.schedule()
		}
	} else {
		t.base.pressedLast = false
	}
}

type whileHeld struct{ base buttonTrigger }

func (t *whileHeld) Execute() {
	if t.base.poll() {
		t.base.pressedLast = true
		t.base.schedule()
	} else if t.base.pressedLast {
		t.base.pressedLast = false
		t.base.cmd.Cancel()
	}
}

type whenReleased struct{ base buttonTrigger }

func (t *whenReleased) Execute() {
	if t.base.poll() {
		t.base.pressedLast = true
	} else {
		if t.base.pressedLast {
			t.base.pressedLast = false
			t.base.schedule()
		}
	}
}

type toggleWhenPressed struct{ base buttonTrigger }

func (t *toggleWhenPressed) Execute() {
	if t.base.poll() {
		if !t.base.pressedLast {
			t.base.pressedLast = true
			if t.base.cmd.State() == Running {
				t.base.cmd.Cancel()
			} else {
				t.base.schedule()
			}
		}
	} else {
		t.base.pressedLast = false
	}
}

type cancelWhenPressed struct{ base buttonTrigger }

func (t *cancelWhenPressed) Execute() {
	if t.base.poll() {
		if !t.base.pressedLast {
			t.base.pressedLast = true
			t.base.cmd.Cancel()
		}
	} else {
		t.base.pressedLast = false
	}
}

// factoryBase seeds the edge state the same way base does.
func (b *Button) factoryBase(build func() Command) factoryTrigger {
	return factoryTrigger{
		sched:       b.sched,
		build:       build,
		poll:        b.poll,
		pressedLast: b.poll(),
	}
}

type factoryTrigger struct {
	sched       *Scheduler
	build       func() Command
	poll        func() bool
	pressedLast bool
	current     Command
}

func (t *factoryTrigger) finished() bool {
	if t.current == nil {
		return true
	}
	st := t.current.State()
	return st == Canceled || st == Completed
}

type whenPressedFactory struct{ base factoryTrigger }

func (t *whenPressedFactory) Execute() {
	if t.base.poll() {
		if !t.base.pressedLast {
			t.base.pressedLast = true
			t.base.sched.Schedule(t.base.build())
		}
	} else {
		t.base.pressedLast = false
	}
}

type whileHeldFactory struct{ base factoryTrigger }

func (t *whileHeldFactory) Execute() {
	if t.base.poll() {
		t.base.pressedLast = true
		if t.base.finished() {
			t.base.current = t.base.build()
		}
		t.base.sched.Schedule(t.base.current)
	} else if t.base.pressedLast {
		t.base.pressedLast = false
		if t.base.current != nil {
			t.base.current.Cancel()
			t.base.current = nil
		}
	}
}

type toggleFactory struct{ base factoryTrigger }

func (t *toggleFactory) Execute() {
	if t.base.poll() {
		if !t.base.pressedLast {
			t.base.pressedLast = true
			if !t.base.finished() && t.base.current.State() == Running {
				t.base.current.Cancel()
				t.base.current = nil
			} else {
				t.base.current = t.base.build()
				t.base.sched.Schedule(t.base.current)
			}
		}
	} else {
		t.base.pressedLast = false
	}
}
