package core

import (
	"fmt"
	"sync"
)

// Scheduler is the cooperative execution engine at the center of the
// framework. An external loop calls Run once per control period; each
// call is one tick. Within a tick the scheduler polls triggers, runs
// every subsystem's periodic hook, steps every running command, admits
// queued commands, fills idle subsystems with their defaults and
// publishes telemetry, in that order.
//
// Run and everything it reaches execute on a single goroutine. Only
// Schedule and AddTrigger may be called from other goroutines; all
// other methods belong to the loop goroutine. A command step that
// blocks stalls the whole tick.
//
// Commands are tracked by id, so a command value and anything wrapping
// it refer to the same running-set entry.
type Scheduler struct {
	pendingMu sync.Mutex
	pending   []Command

	triggerMu sync.Mutex
	triggers  []Trigger

	subsystems []Subsystem
	registered map[Subsystem]bool

	running []Command
	members map[int]Command

	enabled        bool
	adding         bool
	runningChanged bool

	telemetry TelemetryTable
	onError   func(error)
}

// NewScheduler returns an empty, enabled scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		registered: make(map[Subsystem]bool),
		members:    make(map[int]Command),
		enabled:    true,
	}
}

// RegisterSubsystem adds sub to the periodic and default-fill phases.
// Registering a subsystem twice is a no-op.
func (s *Scheduler) RegisterSubsystem(sub Subsystem) {
	if sub == nil {
		s.reportError(fmt.Errorf("%w: register subsystem", ErrNilSubsystem))
		return
	}
	if s.registered[sub] {
		return
	}
	s.registered[sub] = true
	s.subsystems = append(s.subsystems, sub)
}

// AddTrigger appends t to the poll list. Triggers are polled in reverse
// registration order, so the trigger registered last is polled first.
// Safe to call from any goroutine.
func (s *Scheduler) AddTrigger(t Trigger) {
	if t == nil {
		s.reportError(fmt.Errorf("%w: add trigger", ErrNilTrigger))
		return
	}
	s.triggerMu.Lock()
	s.triggers = append(s.triggers, t)
	s.triggerMu.Unlock()
}

// Schedule queues cmd for admission during the next tick's drain phase.
// A command already waiting in the queue is not queued twice. Safe to
// call from any goroutine.
func (s *Scheduler) Schedule(cmd Command) {
	if cmd == nil {
		s.reportError(fmt.Errorf("%w: schedule", ErrNilCommand))
		return
	}
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for _, queued := range s.pending {
		if queued.ID() == cmd.ID() {
			return
		}
	}
	s.pending = append(s.pending, cmd)
}

// SetEnabled gates the trigger poll phase. Disabling does not stop
// subsystem periodic hooks or command stepping; it only silences
// trigger input.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// Enabled reports whether triggers are being polled.
func (s *Scheduler) Enabled() bool { return s.enabled }

// IsScheduled reports whether cmd is in the running set.
func (s *Scheduler) IsScheduled(cmd Command) bool {
	if cmd == nil {
		return false
	}
	_, ok := s.members[cmd.ID()]
	return ok
}

// Running returns a snapshot of the running set in admission order.
func (s *Scheduler) Running() []Command {
	return append([]Command(nil), s.running...)
}

// Run executes one tick. It never panics out of a phase: admission and
// registration problems are reported through the error handler and the
// remaining phases still run.
func (s *Scheduler) Run() {
	// Trigger poll. This is the only phase the enable gate skips:
	// a disabled robot ignores operator input but keeps refreshing
	// sensors and stepping whatever is already running.
	if s.enabled {
		s.triggerMu.Lock()
		for i := len(s.triggers) - 1; i >= 0; i-- {
			s.triggers[i].Execute()
		}
		s.triggerMu.Unlock()
	}

	// Subsystem periodic hooks, in registration order.
	for _, sub := range s.subsystems {
		sub.Periodic()
	}

	// Step every running command. The snapshot keeps iteration valid
	// when a step cancels another running command.
	step := append([]Command(nil), s.running...)
	for _, cmd := range step {
		if _, ok := s.members[cmd.ID()]; !ok {
			continue
		}
		if !cmd.Run() {
			s.remove(cmd)
		}
	}

	// Drain queued additions in enqueue order.
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	for _, cmd := range batch {
		s.processCommandAddition(cmd)
	}

	// Hand idle subsystems their default commands. Defaults get no
	// special privilege; ordinary admission rules apply.
	for _, sub := range s.subsystems {
		if sub.CurrentCommand() == nil {
			s.processCommandAddition(sub.DefaultCommand())
		}
		sub.ConfirmCommand()
	}

	s.publishTelemetry()
}

// processCommandAddition admits cmd into the running set, displacing
// interruptible holders of its required subsystems. Admission is all or
// nothing: one non-interruptible holder rejects the whole admission and
// no requirement changes hands.
func (s *Scheduler) processCommandAddition(cmd Command) {
	if cmd == nil {
		return
	}
	if s.adding {
		s.reportError(fmt.Errorf("%w: can not start %s from a cancellation hook", ErrIncompatibleState, cmd.Name()))
		return
	}
	if _, ok := s.members[cmd.ID()]; ok {
		return
	}
	if st := cmd.State(); st == Canceled || st == Completed {
		s.reportError(fmt.Errorf("%w: %s", ErrCommandFinished, cmd.Name()))
		return
	}

	for _, sub := range cmd.Requirements() {
		if cur := sub.CurrentCommand(); cur != nil && !cur.Interruptible() {
			return
		}
	}

	// Every holder left is interruptible. Displace them, then take
	// ownership. The guard catches a cancellation hook that tries to
	// schedule a replacement while the hand-over is still in flight.
	s.adding = true
	for _, sub := range cmd.Requirements() {
		if cur := sub.CurrentCommand(); cur != nil {
			cur.Cancel()
			s.remove(cur)
		}
		sub.SetCurrentCommand(cmd)
	}
	s.adding = false

	s.running = append(s.running, cmd)
	s.members[cmd.ID()] = cmd
	cmd.StartRunning(s)
	s.runningChanged = true
}

// Remove takes cmd out of the running set, releases its subsystems and
// fires its Removed hook. Removing a command that is not running is a
// no-op. The vacated subsystems stay idle until the next tick's
// default-fill phase.
func (s *Scheduler) Remove(cmd Command) {
	if cmd == nil {
		s.reportError(fmt.Errorf("%w: remove", ErrNilCommand))
		return
	}
	s.remove(cmd)
}

func (s *Scheduler) remove(cmd Command) {
	id := cmd.ID()
	tracked, ok := s.members[id]
	if !ok {
		return
	}
	delete(s.members, id)
	for i, c := range s.running {
		if c.ID() == id {
			s.running = append(s.running[:i], s.running[i+1:]...)
			break
		}
	}
	for _, sub := range tracked.Requirements() {
		if cur := sub.CurrentCommand(); cur != nil && cur.ID() == id {
			sub.SetCurrentCommand(nil)
		}
	}
	s.runningChanged = true
	// The hook runs last so it observes the command fully released.
	tracked.Removed()
}

// RemoveAll removes every running command. Each one gets the ordinary
// removal treatment, subsystem release and Removed hook included.
func (s *Scheduler) RemoveAll() {
	for len(s.running) > 0 {
		s.remove(s.running[0])
	}
}

// ResetAll returns the scheduler to its initial state: running commands
// removed, subsystems and triggers unregistered, the pending queue
// dropped and the telemetry binding detached. Meant for teardown and
// tests, not for use mid-match.
func (s *Scheduler) ResetAll() {
	s.RemoveAll()
	s.subsystems = nil
	s.registered = make(map[Subsystem]bool)
	s.triggerMu.Lock()
	s.triggers = nil
	s.triggerMu.Unlock()
	s.pendingMu.Lock()
	s.pending = nil
	s.pendingMu.Unlock()
	s.telemetry = nil
}
