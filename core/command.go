package core

import (
	"fmt"
	"sync/atomic"
)

// CommandState tracks where a command is in its lifecycle. Canceled and
// Completed are terminal: a finished command cannot be scheduled again.
type CommandState uint8

const (
	NotScheduled CommandState = iota
	Running
	Canceled
	Completed
)

func (s CommandState) String() string {
	switch s {
	case NotScheduled:
		return "not scheduled"
	case Running:
		return "running"
	case Canceled:
		return "canceled"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Command is one unit of work driven by the Scheduler. It declares the
// subsystems it needs, runs one step per tick, and is told when it has
// been removed.
//
// CommandBase is the canonical implementation. A custom implementation
// must keep the same contract: StartRunning records the scheduler and
// moves to Running, Cancel moves to Canceled and asks that scheduler to
// Remove the command before returning, and Removed fires the end or
// interrupted behavior exactly once.
type Command interface {
	// ID returns the unique id assigned at construction.
	ID() int

	// Name returns the display name used in telemetry.
	Name() string

	// Requirements returns the subsystems this command needs. The
	// returned slice is owned by the command; callers must not mutate it.
	Requirements() []Subsystem

	// Interruptible reports whether another admission may displace this
	// command from its subsystems.
	Interruptible() bool

	// State returns the current lifecycle state.
	State() CommandState

	// StartRunning is invoked by the scheduler once, on admission.
	StartRunning(s *Scheduler)

	// Run executes one step and reports whether the command wants to
	// keep running. The step that reports completion still executes.
	Run() bool

	// Cancel stops the command. By the time it returns the command has
	// released its subsystems and Removed has fired.
	Cancel()

	// Removed is invoked by the scheduler after the command has been
	// taken out of the running set and its subsystems released.
	Removed()
}

var commandIDs atomic.Int64

// CommandBase implements Command with behavior injected through its
// func fields. Fields left nil are skipped; a command with no
// IsFinishedFunc runs until it is canceled or displaced.
//
//	turn := core.NewCommand("Turn90")
//	turn.Requires(drive)
//	turn.ExecuteFunc = func() { drive.Steer(0.4) }
//	turn.IsFinishedFunc = func() bool { return gyro.Angle() >= 90 }
//	turn.EndFunc = func() { drive.Steer(0) }
type CommandBase struct {
	id            int
	name          string
	requirements  []Subsystem
	interruptible bool
	state         CommandState
	initialized   bool
	sched         *Scheduler

	// InitFunc runs once, on the first step after admission.
	InitFunc func()

	// ExecuteFunc runs every step, including the finishing one.
	ExecuteFunc func()

	// IsFinishedFunc is consulted after each step; returning true ends
	// the command normally.
	IsFinishedFunc func() bool

	// EndFunc runs when the command finishes on its own.
	EndFunc func()

	// InterruptedFunc runs when the command is canceled or displaced.
	InterruptedFunc func()
}

// NewCommand returns a command with a fresh id. An empty name becomes
// "Command<id>". Commands start out interruptible.
func NewCommand(name string) *CommandBase {
	id := int(commandIDs.Add(1))
	if name == "" {
		name = fmt.Sprintf("Command%d", id)
	}
	return &CommandBase{id: id, name: name, interruptible: true}
}

// Requires declares that the command needs sub. Must be called before
// the command is scheduled; later calls are reported and ignored.
func (c *CommandBase) Requires(sub Subsystem) {
	if sub == nil {
		return
	}
	if c.state != NotScheduled {
		if c.sched != nil {
			c.sched.reportError(fmt.Errorf("%w: %s", ErrRequirementsLocked, c.name))
		}
		return
	}
	for _, have := range c.requirements {
		if have == sub {
			return
		}
	}
	c.requirements = append(c.requirements, sub)
}

// SetInterruptible controls whether an admission may displace this
// command from its subsystems.
func (c *CommandBase) SetInterruptible(v bool) {
	c.interruptible = v
}

func (c *CommandBase) ID() int                   { return c.id }
func (c *CommandBase) Name() string              { return c.name }
func (c *CommandBase) Requirements() []Subsystem { return c.requirements }
func (c *CommandBase) Interruptible() bool       { return c.interruptible }
func (c *CommandBase) State() CommandState       { return c.state }

// StartRunning records the owning scheduler and enters Running.
func (c *CommandBase) StartRunning(s *Scheduler) {
	c.sched = s
	c.state = Running
}

// Run steps the command: the first call runs InitFunc, every call runs
// ExecuteFunc, then IsFinishedFunc decides whether to continue.
func (c *CommandBase) Run() bool {
	if c.state != Running {
		return false
	}
	if !c.initialized {
		c.initialized = true
		if c.InitFunc != nil {
			c.InitFunc()
		}
	}
	if c.ExecuteFunc != nil {
		c.ExecuteFunc()
	}
	if c.IsFinishedFunc != nil {
		return !c.IsFinishedFunc()
	}
	return true
}

// Cancel takes effect immediately: the command is out of the running
// set, its subsystems are free and InterruptedFunc has fired by the
// time Cancel returns. Canceling a command that is not running is a
// no-op, so double cancels are safe.
func (c *CommandBase) Cancel() {
	if c.state != Running {
		return
	}
	c.state = Canceled
	if c.sched != nil {
		c.sched.Remove(c)
	}
}

// Removed dispatches the end-of-life behavior: InterruptedFunc after a
// cancel, EndFunc after a normal finish. A command that never got its
// first step fires neither.
func (c *CommandBase) Removed() {
	switch c.state {
	case Canceled:
		if c.initialized && c.InterruptedFunc != nil {
			c.InterruptedFunc()
		}
	case Running:
		c.state = Completed
		if c.initialized && c.EndFunc != nil {
			c.EndFunc()
		}
	}
}
