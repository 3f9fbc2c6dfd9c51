// Package serial abstracts the byte link to the IO board so the wire
// client can run over a real port or an in-memory pipe.
package serial

import (
	"io"
)

// Port is a byte-stream link to an IO board.
type Port interface {
	io.ReadWriteCloser

	// Flush drops whatever is buffered on the link.
	Flush() error
}

// Config describes how to open a native port.
type Config struct {
	// Device path, "/dev/ttyACM0" or "COM3".
	Device string

	// Baud rate. USB CDC boards ignore it.
	Baud int

	// ReadTimeout in milliseconds; 0 blocks.
	ReadTimeout int
}

// DefaultConfig returns the usual settings for an IO board on device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
