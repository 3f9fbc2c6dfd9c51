//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"
)

// IO board firmware. The host owns all policy; this loop only decodes
// frames from USB CDC, pokes pins, and answers reads. Nothing here
// blocks for longer than a sub-millisecond pulse.

func main() {
	// Disable the watchdog on boot to clear any state a previous run
	// left behind.
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()

	board := newBoard()
	rx := make([]byte, 1)

	for {
		// Recover from panics so a malformed frame cannot brick the
		// board; the scanner resynchronizes on the next STX.
		func() {
			defer func() {
				_ = recover()
			}()

			for USBAvailable() > 0 {
				b, err := USBRead()
				if err != nil {
					break
				}
				rx[0] = b
				board.scanner.Feed(rx)
			}

			for {
				frame, ok := board.scanner.Next()
				if !ok {
					break
				}
				board.handle(frame)
			}

			// Finish scheduled pulses and collect finished echo
			// captures.
			board.tick()
		}()

		// Yield to the USB stack.
		time.Sleep(50 * time.Microsecond)
	}
}
