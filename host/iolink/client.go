// Package iolink drives an attached IO board over its serial protocol
// and exposes it through the hal driver interfaces, so robot code and
// commands cannot tell a real board from the simulation. One reader
// goroutine decodes the return stream and hands tagged replies to
// whichever call is waiting for them; fire-and-forget messages (mode,
// write, pulse, PWM) do not wait.
package iolink

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"rover/hal"
	"rover/host/serial"
	"rover/protocol"
)

// DefaultTimeout bounds the wait for a tagged reply.
const DefaultTimeout = 250 * time.Millisecond

var (
	// ErrTimeout reports a reply that never arrived.
	ErrTimeout = errors.New("reply timed out")
	// ErrClosed reports use of a closed client.
	ErrClosed = errors.New("iolink client closed")
	// ErrVersionMismatch reports a board speaking another protocol
	// revision.
	ErrVersionMismatch = errors.New("protocol version mismatch")
	// ErrRejected reports a request the board refused.
	ErrRejected = errors.New("request rejected by board")
)

// Client is a connection to an IO board. Safe for concurrent use.
type Client struct {
	port    serial.Port
	timeout time.Duration

	writeMu sync.Mutex

	tagMu   sync.Mutex
	nextTag byte
	waiters map[byte]chan protocol.Frame

	helloMu sync.Mutex
	helloCh chan protocol.Frame

	closed     chan struct{}
	closeOnce  sync.Once
	closeErr   error
	readerDone chan struct{}
}

// Dial opens the configured serial device and returns a connected
// client. The caller should follow up with Hello to validate the link.
func Dial(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("iolink: %w", err)
	}
	return NewClient(port), nil
}

// NewClient wraps an already open port and starts the reader.
func NewClient(port serial.Port) *Client {
	c := &Client{
		port:       port,
		timeout:    DefaultTimeout,
		nextTag:    1,
		waiters:    make(map[byte]chan protocol.Frame),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetTimeout adjusts the reply wait. Call before issuing requests.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close shuts the port down and joins the reader. Waiting calls fail
// with ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.port.Close()
		<-c.readerDone
	})
	return c.closeErr
}

// Hello performs the handshake: it sends the host protocol version and
// returns the board id from the reply. A version disagreement is an
// error.
func (c *Client) Hello() (string, error) {
	ch := make(chan protocol.Frame, 1)
	c.helloMu.Lock()
	c.helloCh = ch
	c.helloMu.Unlock()
	defer func() {
		c.helloMu.Lock()
		c.helloCh = nil
		c.helloMu.Unlock()
	}()

	if err := c.send(protocol.MsgHello, []byte{protocol.Version}); err != nil {
		return "", err
	}
	select {
	case f := <-ch:
		p := f.Payload
		ver, err := protocol.ReadByte(&p)
		if err != nil {
			return "", fmt.Errorf("hello reply: %w", err)
		}
		if ver != protocol.Version {
			return "", fmt.Errorf("%w: board speaks %d, host speaks %d", ErrVersionMismatch, ver, protocol.Version)
		}
		return string(p), nil
	case <-time.After(c.timeout):
		return "", fmt.Errorf("hello: %w", ErrTimeout)
	case <-c.closed:
		return "", ErrClosed
	}
}

// ConfigureInput implements hal.DIODriver.
func (c *Client) ConfigureInput(ch hal.Channel, pull hal.Pull) error {
	mode := protocol.ModeInput
	switch pull {
	case hal.PullUp:
		mode = protocol.ModeInputPullUp
	case hal.PullDown:
		mode = protocol.ModeInputPullDown
	}
	return c.send(protocol.MsgSetMode, []byte{byte(ch), mode})
}

// ConfigureOutput implements hal.DIODriver.
func (c *Client) ConfigureOutput(ch hal.Channel, initial bool) error {
	mode := protocol.ModeOutputLow
	if initial {
		mode = protocol.ModeOutputHigh
	}
	return c.send(protocol.MsgSetMode, []byte{byte(ch), mode})
}

// Set implements hal.DIODriver.
func (c *Client) Set(ch hal.Channel, level bool) error {
	return c.send(protocol.MsgWrite, []byte{byte(ch), levelByte(level)})
}

// Get implements hal.DIODriver.
func (c *Client) Get(ch hal.Channel) (bool, error) {
	rest, err := c.roundTrip(protocol.MsgRead, []byte{byte(ch)})
	if err != nil {
		return false, err
	}
	b, err := protocol.ReadByte(&rest)
	if err != nil {
		return false, fmt.Errorf("read reply: %w", err)
	}
	return b != 0, nil
}

// Pulse implements hal.DIODriver. The board completes the pulse on its
// own; the call returns as soon as the request is on the wire.
func (c *Client) Pulse(ch hal.Channel, d time.Duration) error {
	usec := uint32(d / time.Microsecond)
	if d > 0 && usec == 0 {
		usec = 1
	}
	return c.send(protocol.MsgPulse, protocol.AppendUvarint([]byte{byte(ch)}, usec))
}

// ConfigurePulseCapture implements hal.CounterDriver.
func (c *Client) ConfigurePulseCapture(ch hal.Channel) error {
	return c.send(protocol.MsgCaptureCfg, []byte{byte(ch)})
}

// PulseCount implements hal.CounterDriver.
func (c *Client) PulseCount(ch hal.Channel) (int, error) {
	count, _, err := c.captureRead(ch)
	return count, err
}

// LastPulseWidth implements hal.CounterDriver.
func (c *Client) LastPulseWidth(ch hal.Channel) (time.Duration, error) {
	_, width, err := c.captureRead(ch)
	return width, err
}

func (c *Client) captureRead(ch hal.Channel) (int, time.Duration, error) {
	rest, err := c.roundTrip(protocol.MsgCaptureRead, []byte{byte(ch)})
	if err != nil {
		return 0, 0, err
	}
	count, err := protocol.ReadUvarint(&rest)
	if err != nil {
		return 0, 0, fmt.Errorf("capture reply: %w", err)
	}
	usec, err := protocol.ReadUvarint(&rest)
	if err != nil {
		return 0, 0, fmt.Errorf("capture reply: %w", err)
	}
	return int(count), time.Duration(usec) * time.Microsecond, nil
}

// ResetPulse implements hal.CounterDriver.
func (c *Client) ResetPulse(ch hal.Channel) error {
	return c.send(protocol.MsgCaptureReset, []byte{byte(ch)})
}

// ConfigureAnalog implements hal.AnalogDriver.
func (c *Client) ConfigureAnalog(ch hal.Channel) error {
	return c.send(protocol.MsgAnalogCfg, []byte{byte(ch)})
}

// ReadVoltage implements hal.AnalogDriver.
func (c *Client) ReadVoltage(ch hal.Channel) (float64, error) {
	rest, err := c.roundTrip(protocol.MsgAnalogRead, []byte{byte(ch)})
	if err != nil {
		return 0, err
	}
	mv, err := protocol.ReadUvarint(&rest)
	if err != nil {
		return 0, fmt.Errorf("analog reply: %w", err)
	}
	return float64(mv) / 1000, nil
}

// ConfigurePWM implements hal.PWMDriver.
func (c *Client) ConfigurePWM(ch hal.Channel, freqHz uint32) error {
	return c.send(protocol.MsgPWMCfg, protocol.AppendUvarint([]byte{byte(ch)}, freqHz))
}

// SetDuty implements hal.PWMDriver.
func (c *Client) SetDuty(ch hal.Channel, duty float64) error {
	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}
	scaled := uint32(duty*65535 + 0.5)
	return c.send(protocol.MsgPWMSet, protocol.AppendUvarint([]byte{byte(ch)}, scaled))
}

// DisablePWM implements hal.PWMDriver.
func (c *Client) DisablePWM(ch hal.Channel) error {
	return c.send(protocol.MsgPWMOff, []byte{byte(ch)})
}

func levelByte(level bool) byte {
	if level {
		return 1
	}
	return 0
}

// send encodes one frame and writes it whole.
func (c *Client) send(t protocol.MsgType, payload []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	frame, err := protocol.AppendFrame(nil, t, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("iolink write: %w", err)
	}
	return c.port.Flush()
}

// roundTrip sends a tagged request and waits for its reply, returning
// the reply payload with the tag stripped.
func (c *Client) roundTrip(t protocol.MsgType, body []byte) ([]byte, error) {
	tag, ch, err := c.claimTag()
	if err != nil {
		return nil, err
	}
	defer c.releaseTag(tag)

	payload := append([]byte{tag}, body...)
	if err := c.send(t, payload); err != nil {
		return nil, err
	}
	select {
	case f := <-ch:
		rest := f.Payload[1:]
		if f.Type == protocol.MsgError {
			return nil, boardError(rest)
		}
		return rest, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("reply for %#02x: %w", byte(t), ErrTimeout)
	case <-c.closed:
		return nil, ErrClosed
	}
}

func boardError(rest []byte) error {
	code, err := protocol.ReadByte(&rest)
	if err != nil {
		return fmt.Errorf("%w: malformed error reply", ErrRejected)
	}
	switch code {
	case protocol.ErrCodeBadChannel:
		return fmt.Errorf("%w: bad channel", ErrRejected)
	case protocol.ErrCodeBadMode:
		return fmt.Errorf("%w: bad mode", ErrRejected)
	case protocol.ErrCodeBadMessage:
		return fmt.Errorf("%w: bad message", ErrRejected)
	case protocol.ErrCodeNoResource:
		return fmt.Errorf("%w: no free resource", ErrRejected)
	default:
		return fmt.Errorf("%w: code %d", ErrRejected, code)
	}
}

// claimTag reserves a tag byte and its reply channel. Tag 0 is left
// to the board for errors on untagged requests.
func (c *Client) claimTag() (byte, chan protocol.Frame, error) {
	c.tagMu.Lock()
	defer c.tagMu.Unlock()
	for i := 0; i < 255; i++ {
		tag := c.nextTag
		c.nextTag++
		if c.nextTag == 0 {
			c.nextTag = 1
		}
		if _, busy := c.waiters[tag]; busy || tag == 0 {
			continue
		}
		ch := make(chan protocol.Frame, 1)
		c.waiters[tag] = ch
		return tag, ch, nil
	}
	return 0, nil, errors.New("iolink: all reply tags in use")
}

func (c *Client) releaseTag(tag byte) {
	c.tagMu.Lock()
	delete(c.waiters, tag)
	c.tagMu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.readerDone)
	var sc protocol.Scanner
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			sc.Feed(buf[:n])
			for {
				f, ok := sc.Next()
				if !ok {
					break
				}
				c.dispatch(f)
			}
		}
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			// Serial reads time out while the line is idle; only a
			// real failure ends the loop.
			if errors.Is(err, io.EOF) {
				time.Sleep(time.Millisecond)
				continue
			}
			slog.Warn("iolink: read failed", "err", err)
			return
		}
	}
}

func (c *Client) dispatch(f protocol.Frame) {
	switch f.Type {
	case protocol.MsgHelloReply:
		c.helloMu.Lock()
		ch := c.helloCh
		c.helloMu.Unlock()
		if ch == nil {
			slog.Warn("iolink: unsolicited hello reply")
			return
		}
		select {
		case ch <- f:
		default:
		}
	case protocol.MsgReadReply, protocol.MsgCaptureReply, protocol.MsgAnalogReply, protocol.MsgError:
		if len(f.Payload) == 0 {
			slog.Warn("iolink: reply without tag", "type", fmt.Sprintf("%#02x", byte(f.Type)))
			return
		}
		tag := f.Payload[0]
		c.tagMu.Lock()
		ch := c.waiters[tag]
		c.tagMu.Unlock()
		if ch == nil {
			slog.Warn("iolink: reply with no waiter", "tag", tag)
			return
		}
		select {
		case ch <- f:
		default:
		}
	default:
		slog.Warn("iolink: unexpected frame", "type", fmt.Sprintf("%#02x", byte(f.Type)))
	}
}
