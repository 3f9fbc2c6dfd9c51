// Iocheck exercises a flashed IO board from end to end on the bench.
// Jumper the output channel to the input channel; every check runs
// over the real wire protocol, so a pass means the serial link, the
// framing and the pin plumbing all work.
//
//	iocheck -device /dev/ttyACM0 -out 2 -in 3
//	iocheck -device /dev/ttyACM0 -out 2 -in 3 -analog 26 -pwm 4
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rover/hal"
	"rover/host/iolink"
	"rover/host/serial"
)

var (
	device   = flag.String("device", "", "Serial device path (required)")
	baud     = flag.Int("baud", 115200, "Baud rate")
	outCh    = flag.Int("out", 2, "Output channel, jumpered to -in")
	inCh     = flag.Int("in", 3, "Input channel, jumpered to -out")
	analogCh = flag.Int("analog", -1, "Analog channel to sample (optional)")
	pwmCh    = flag.Int("pwm", -1, "PWM channel to smoke-test (optional)")
)

// settle is how long a level gets to propagate through the jumper and
// the board's loop before the read back.
const settle = 20 * time.Millisecond

type bench struct {
	client *iolink.Client
	failed int
}

func main() {
	flag.Parse()
	if *device == "" {
		fmt.Fprintln(os.Stderr, "Error: -device is required")
		flag.Usage()
		os.Exit(2)
	}

	client, err := iolink.Dial(&serial.Config{
		Device: *device, Baud: *baud, ReadTimeout: 100,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	b := &bench{client: client}
	b.checkHello()
	b.checkLoopback(hal.Channel(*outCh), hal.Channel(*inCh))
	b.checkCapture(hal.Channel(*outCh), hal.Channel(*inCh))
	if *analogCh >= 0 {
		b.checkAnalog(hal.Channel(*analogCh))
	}
	if *pwmCh >= 0 {
		b.checkPWM(hal.Channel(*pwmCh))
	}

	if b.failed > 0 {
		fmt.Printf("\n%d check(s) FAILED\n", b.failed)
		os.Exit(1)
	}
	fmt.Println("\nAll checks passed")
}

func (b *bench) pass(name, detail string) {
	fmt.Printf("PASS  %-10s %s\n", name, detail)
}

func (b *bench) fail(name string, err error) {
	b.failed++
	fmt.Printf("FAIL  %-10s %v\n", name, err)
}

func (b *bench) checkHello() {
	id, err := b.client.Hello()
	if err != nil {
		b.fail("hello", err)
		return
	}
	b.pass("hello", id)
}

// checkLoopback drives the output through both levels and reads each
// back through the jumper.
func (b *bench) checkLoopback(out, in hal.Channel) {
	if err := b.client.ConfigureOutput(out, false); err != nil {
		b.fail("loopback", err)
		return
	}
	if err := b.client.ConfigureInput(in, hal.PullNone); err != nil {
		b.fail("loopback", err)
		return
	}
	for _, level := range []bool{true, false, true} {
		if err := b.client.Set(out, level); err != nil {
			b.fail("loopback", err)
			return
		}
		time.Sleep(settle)
		got, err := b.client.Get(in)
		if err != nil {
			b.fail("loopback", err)
			return
		}
		if got != level {
			b.fail("loopback", fmt.Errorf("drove %v on %d, read %v on %d", level, out, got, in))
			return
		}
	}
	if err := b.client.Set(out, false); err != nil {
		b.fail("loopback", err)
		return
	}
	b.pass("loopback", fmt.Sprintf("channel %d -> %d", out, in))
}

// checkCapture fires a known pulse into the jumper and compares the
// captured width against what was sent.
func (b *bench) checkCapture(out, in hal.Channel) {
	const width = 500 * time.Microsecond
	const tolerance = 200 * time.Microsecond

	if err := b.client.ConfigurePulseCapture(in); err != nil {
		b.fail("capture", err)
		return
	}
	if err := b.client.ResetPulse(in); err != nil {
		b.fail("capture", err)
		return
	}
	if err := b.client.Pulse(out, width); err != nil {
		b.fail("capture", err)
		return
	}
	time.Sleep(settle)

	count, err := b.client.PulseCount(in)
	if err != nil {
		b.fail("capture", err)
		return
	}
	if count < 2 {
		b.fail("capture", fmt.Errorf("no complete pulse seen, %d edge(s)", count))
		return
	}
	got, err := b.client.LastPulseWidth(in)
	if err != nil {
		b.fail("capture", err)
		return
	}
	diff := got - width
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		b.fail("capture", fmt.Errorf("sent %v, captured %v", width, got))
		return
	}
	b.pass("capture", fmt.Sprintf("%d edges, width %v", count, got))
}

// checkAnalog just confirms the channel converts and lands inside the
// reference range; the actual value depends on what is wired up.
func (b *bench) checkAnalog(ch hal.Channel) {
	if err := b.client.ConfigureAnalog(ch); err != nil {
		b.fail("analog", err)
		return
	}
	v, err := b.client.ReadVoltage(ch)
	if err != nil {
		b.fail("analog", err)
		return
	}
	if v < 0 || v > 3.4 {
		b.fail("analog", fmt.Errorf("%.3fV outside the reference range", v))
		return
	}
	b.pass("analog", fmt.Sprintf("channel %d reads %.3fV", ch, v))
}

// checkPWM configures a slice, parks it at half duty for a moment and
// shuts it off again. Put a scope or an LED on the pin to eyeball it.
func (b *bench) checkPWM(ch hal.Channel) {
	if err := b.client.ConfigurePWM(ch, 1000); err != nil {
		b.fail("pwm", err)
		return
	}
	if err := b.client.SetDuty(ch, 0.5); err != nil {
		b.fail("pwm", err)
		return
	}
	time.Sleep(500 * time.Millisecond)
	if err := b.client.DisablePWM(ch); err != nil {
		b.fail("pwm", err)
		return
	}
	b.pass("pwm", fmt.Sprintf("channel %d at 1 kHz, half duty", ch))
}
