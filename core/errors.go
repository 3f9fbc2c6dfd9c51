package core

import (
	"errors"
	"log/slog"
)

// Scheduler errors. All of them are non-fatal: they are passed to the
// scheduler's error handler and the tick keeps going.
var (
	// ErrIncompatibleState is reported when an admission is attempted
	// while another admission is still cancelling displaced commands.
	ErrIncompatibleState = errors.New("incompatible scheduler state")

	// ErrCommandFinished is reported when a command in a terminal state
	// is scheduled again. Finished commands stay finished; construct a
	// new one to run the same behavior again.
	ErrCommandFinished = errors.New("command already finished")

	// ErrNilCommand is reported when a nil command is passed to
	// Schedule or Remove.
	ErrNilCommand = errors.New("nil command")

	// ErrNilSubsystem is reported when a nil subsystem is registered.
	ErrNilSubsystem = errors.New("nil subsystem")

	// ErrNilTrigger is reported when a nil trigger is registered.
	ErrNilTrigger = errors.New("nil trigger")

	// ErrNotRequired is returned by SetDefaultCommand when the candidate
	// default does not list the subsystem among its requirements.
	ErrNotRequired = errors.New("default command does not require its subsystem")

	// ErrRequirementsLocked is reported when Requires is called on a
	// command that has already been scheduled.
	ErrRequirementsLocked = errors.New("requirements are locked once running")
)

// SetErrorHandler installs fn as the sink for non-fatal scheduler errors.
// Passing nil restores the default handler, which logs through slog.
func (s *Scheduler) SetErrorHandler(fn func(error)) {
	s.onError = fn
}

func (s *Scheduler) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	slog.Warn("scheduler", "err", err)
}
