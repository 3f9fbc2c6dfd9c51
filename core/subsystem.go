package core

import "fmt"

// Subsystem is a named owner of one hardware resource. At most one
// command holds a subsystem at a time; the scheduler enforces that
// through the current-command accessor pair.
type Subsystem interface {
	// Name identifies the subsystem in telemetry.
	Name() string

	// Periodic is called once per tick, whether or not a command holds
	// the subsystem. It must not block or panic; a failure here stalls
	// robot control.
	Periodic()

	// CurrentCommand returns the command holding the subsystem, or nil.
	CurrentCommand() Command

	// SetCurrentCommand is used by the scheduler to hand the subsystem
	// to a command (or nil to release it).
	SetCurrentCommand(cmd Command)

	// DefaultCommand returns the command to admit when idle, or nil.
	DefaultCommand() Command

	// SetDefaultCommand installs the idle fallback. The command must
	// list this subsystem among its requirements.
	SetDefaultCommand(cmd Command) error

	// ConfirmCommand is called once per tick after admissions settle;
	// it reconciles a changed holder with the telemetry table.
	ConfirmCommand()
}

// SubsystemBase implements Subsystem with per-tick behavior injected
// through PeriodicFunc.
type SubsystemBase struct {
	name       string
	current    Command
	def        Command
	curChanged bool
	table      TelemetryTable

	// PeriodicFunc runs every tick; typically a sensor refresh.
	PeriodicFunc func()

	// DefaultCommandFunc, when set, builds a fresh default command
	// whenever the previous one has finished. Commands cannot be
	// resurrected, so a subsystem that should always fall back to the
	// same behavior needs a new instance each time its default is
	// displaced. The built command must require this subsystem.
	DefaultCommandFunc func() Command
}

// NewSubsystem returns an idle subsystem with the given name.
func NewSubsystem(name string) *SubsystemBase {
	return &SubsystemBase{name: name}
}

func (b *SubsystemBase) Name() string { return b.name }

func (b *SubsystemBase) Periodic() {
	if b.PeriodicFunc != nil {
		b.PeriodicFunc()
	}
}

func (b *SubsystemBase) CurrentCommand() Command { return b.current }

func (b *SubsystemBase) SetCurrentCommand(cmd Command) {
	b.current = cmd
	b.curChanged = true
}

// DefaultCommand returns the idle fallback. A default that reached a
// terminal state is dropped rather than offered for re-admission; with
// DefaultCommandFunc set, a fresh instance replaces it.
func (b *SubsystemBase) DefaultCommand() Command {
	if b.def != nil {
		if st := b.def.State(); st == Canceled || st == Completed {
			b.def = nil
		}
	}
	if b.def == nil && b.DefaultCommandFunc != nil {
		b.def = b.DefaultCommandFunc()
	}
	return b.def
}

// SetDefaultCommand installs cmd as the idle fallback. A nil command
// clears the default. The command must require this subsystem,
// otherwise the default could be admitted without ever owning it.
func (b *SubsystemBase) SetDefaultCommand(cmd Command) error {
	if cmd == nil {
		b.def = nil
		return nil
	}
	for _, req := range cmd.Requirements() {
		if req == Subsystem(b) {
			b.def = cmd
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not require %s", ErrNotRequired, cmd.Name(), b.name)
}

// ConfirmCommand publishes the holder name when it changed since the
// last confirm. Nothing happens without a bound telemetry table.
func (b *SubsystemBase) ConfirmCommand() {
	if !b.curChanged {
		return
	}
	b.curChanged = false
	if b.table == nil {
		return
	}
	holder := ""
	if b.current != nil {
		holder = b.current.Name()
	}
	b.table.SetString("Subsystems/"+b.name, holder)
}

// BindTelemetry points the subsystem at the table ConfirmCommand
// publishes to.
func (b *SubsystemBase) BindTelemetry(t TelemetryTable) {
	b.table = t
}
