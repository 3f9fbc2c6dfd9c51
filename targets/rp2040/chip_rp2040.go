//go:build rp2040

package main

const (
	boardID = "rover-io rp2040"

	// TIMER peripheral base.
	timerBase = 0x40054000
)
