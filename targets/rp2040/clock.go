//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"
)

// Raw timer register. The hardware timer counts a 1MHz tick, which is
// exactly the resolution pulse timing needs. timerBase is per chip.
const timerTIMERAWL = timerBase + 0x0C // Raw timer low word

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// micros returns the low 32 bits of the microsecond counter. The word
// wraps after about 71 minutes; deltas stay valid across the wrap as
// long as they are computed with uint32 subtraction.
func micros() uint32 {
	return timerRAWL.Get()
}

// elapsed reports whether deadline has passed, wrap safe.
func elapsed(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}
