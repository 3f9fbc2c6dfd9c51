//go:build rp2350

package main

const (
	boardID = "rover-io rp2350"

	// TIMER0 peripheral base.
	timerBase = 0x400b0000
)
