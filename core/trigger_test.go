package core

import (
	"errors"
	"testing"
)

// buttonRig is a scheduler plus a settable boolean signal.
type buttonRig struct {
	sched  *Scheduler
	button *Button
	level  bool
}

func newButtonRig() *buttonRig {
	r := &buttonRig{sched: NewScheduler()}
	r.button = NewButton(r.sched, func() bool { return r.level })
	return r
}

func TestWhenPressedFiresOnRisingEdgeOnly(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Shoot")
	r.button.WhenPressed(cmd)

	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected no fire while the button stays low")
	}

	r.level = true
	r.sched.Run()
	if !r.sched.IsScheduled(cmd) {
		t.Error("Expected the rising edge to schedule the command")
	}

	// Holding the button is not another edge.
	r.sched.Run()
	if len(r.sched.Running()) != 1 {
		t.Errorf("Expected a single running command, got %d", len(r.sched.Running()))
	}
}

func TestButtonHeldAtRegistrationDoesNotFire(t *testing.T) {
	r := newButtonRig()
	r.level = true
	cmd := newProbe("Shoot")
	r.button.WhenPressed(cmd)

	r.sched.Run()
	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected the pre-held button to wait for a fresh edge")
	}

	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run()
	if !r.sched.IsScheduled(cmd) {
		t.Error("Expected a release and press to fire")
	}
}

func TestWhileHeldCancelsOnRelease(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Spin")
	r.button.WhileHeld(cmd)

	r.level = true
	r.sched.Run() // admits
	r.sched.Run() // steps, so the interrupted hook is armed

	r.level = false
	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected the falling edge to cancel the command")
	}
	if cmd.State() != Canceled {
		t.Errorf("Expected Canceled, got %v", cmd.State())
	}
	if cmd.interrupts != 1 {
		t.Errorf("Expected one interrupted call, got %d", cmd.interrupts)
	}
}

func TestWhileHeldReleasedBeforeFirstStep(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Spin")
	r.button.WhileHeld(cmd)

	r.level = true
	r.sched.Run() // admitted during this tick, not yet stepped
	r.level = false
	r.sched.Run()

	if cmd.State() != Canceled {
		t.Errorf("Expected Canceled, got %v", cmd.State())
	}
	// Never initialized, so no teardown hook.
	if cmd.interrupts != 0 {
		t.Errorf("Expected no interrupted call before the first step, got %d", cmd.interrupts)
	}
}

func TestWhenReleasedFiresOnFallingEdgeOnly(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Retract")
	r.button.WhenReleased(cmd)

	r.level = true
	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected no fire on press")
	}

	r.level = false
	r.sched.Run()
	if !r.sched.IsScheduled(cmd) {
		t.Error("Expected the falling edge to schedule the command")
	}
}

func TestToggleWhenPressed(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Collect")
	r.button.ToggleWhenPressed(cmd)

	r.level = true
	r.sched.Run()
	if !r.sched.IsScheduled(cmd) {
		t.Fatal("Expected the first press to start the command")
	}
	r.sched.Run() // step so teardown hooks are armed

	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected the second press to cancel the command")
	}
	if cmd.State() != Canceled {
		t.Errorf("Expected Canceled, got %v", cmd.State())
	}

	// Canceled is final: a third press cannot bring the command back.
	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected the finished command to stay finished")
	}
}

func TestWhenPressedFuncBuildsFreshPerPress(t *testing.T) {
	r := newButtonRig()
	var built []*probe
	r.button.WhenPressedFunc(func() Command {
		p := newProbe("Shoot")
		p.IsFinishedFunc = func() bool { return true }
		built = append(built, p)
		return p
	})

	r.sched.Run()
	if len(built) != 0 {
		t.Fatal("Expected no build while the button stays low")
	}

	r.level = true
	r.sched.Run() // press: builds and admits
	r.sched.Run() // one step and done

	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run()

	if len(built) != 2 {
		t.Fatalf("Expected one build per press, got %d", len(built))
	}
	if built[0].State() != Completed {
		t.Errorf("Expected the first instance completed, got %v", built[0].State())
	}
	if built[0].ID() == built[1].ID() {
		t.Error("Expected a distinct instance for the second press")
	}
	if !r.sched.IsScheduled(built[1]) {
		t.Error("Expected the second instance running")
	}
}

func TestWhileHeldFuncRespinsAcrossHolds(t *testing.T) {
	r := newButtonRig()
	var built []*probe
	r.button.WhileHeldFunc(func() Command {
		p := newProbe("Spin")
		built = append(built, p)
		return p
	})

	r.level = true
	r.sched.Run() // builds and admits
	r.sched.Run() // steps, so the interrupted hook is armed

	r.level = false
	r.sched.Run()
	if len(built) != 1 {
		t.Fatalf("Expected a single build for the first hold, got %d", len(built))
	}
	if built[0].State() != Canceled {
		t.Errorf("Expected the release to cancel, got %v", built[0].State())
	}
	if built[0].interrupts != 1 {
		t.Errorf("Expected one interrupted call, got %d", built[0].interrupts)
	}

	r.level = true
	r.sched.Run()
	if len(built) != 2 {
		t.Fatalf("Expected a fresh build for the second hold, got %d", len(built))
	}
	if !r.sched.IsScheduled(built[1]) {
		t.Error("Expected the second instance running")
	}
	if r.sched.IsScheduled(built[0]) {
		t.Error("Expected the canceled instance to stay out")
	}
}

func TestToggleWhenPressedFuncRestartsAfterCancel(t *testing.T) {
	r := newButtonRig()
	var built []*probe
	r.button.ToggleWhenPressedFunc(func() Command {
		p := newProbe("Collect")
		built = append(built, p)
		return p
	})

	r.level = true
	r.sched.Run() // first press starts
	r.sched.Run()

	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run() // second press cancels
	if built[0].State() != Canceled {
		t.Fatalf("Expected Canceled, got %v", built[0].State())
	}

	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run() // third press builds a replacement

	if len(built) != 2 {
		t.Fatalf("Expected a rebuild on the third press, got %d builds", len(built))
	}
	if !r.sched.IsScheduled(built[1]) {
		t.Error("Expected the replacement running")
	}
}

func TestCancelWhenPressed(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Climb")
	r.sched.Schedule(cmd)
	r.sched.Run()
	r.sched.Run()
	r.button.CancelWhenPressed(cmd)

	r.level = true
	r.sched.Run()
	if r.sched.IsScheduled(cmd) {
		t.Error("Expected the press to cancel the command")
	}
	if cmd.interrupts != 1 {
		t.Errorf("Expected one interrupted call, got %d", cmd.interrupts)
	}

	// Another press finds nothing to cancel and stays quiet.
	r.level = false
	r.sched.Run()
	r.level = true
	r.sched.Run()
	if cmd.interrupts != 1 {
		t.Errorf("Expected the repeat press to be a no-op, got %d", cmd.interrupts)
	}
}

func TestTriggerScheduleLandsSameTick(t *testing.T) {
	r := newButtonRig()
	cmd := newProbe("Shoot")
	r.button.WhenPressed(cmd)

	// The poll phase runs before the admission drain, so the press and
	// the admission land in one tick.
	r.level = true
	r.sched.Run()
	if !r.sched.IsScheduled(cmd) {
		t.Error("Expected press and admission in the same tick")
	}
	if cmd.execs != 0 {
		t.Error("Expected the first step to wait for the next tick")
	}
	r.sched.Run()
	if cmd.execs != 1 {
		t.Errorf("Expected exactly one step, got %d", cmd.execs)
	}
}

func TestButtonNilCommandReported(t *testing.T) {
	r := newButtonRig()
	errs := captureErrors(t, r.sched)

	r.button.WhenPressed(nil)
	r.button.WhileHeld(nil)
	r.button.WhenReleased(nil)
	r.button.ToggleWhenPressed(nil)
	r.button.CancelWhenPressed(nil)
	r.button.WhenPressedFunc(nil)
	r.button.WhileHeldFunc(nil)
	r.button.ToggleWhenPressedFunc(nil)

	if len(*errs) != 8 {
		t.Fatalf("Expected 8 reports, got %d", len(*errs))
	}
	for i, err := range *errs {
		if !errors.Is(err, ErrNilCommand) {
			t.Errorf("Report %d: expected ErrNilCommand, got %v", i, err)
		}
	}
}
