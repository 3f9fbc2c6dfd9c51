package iolink

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"rover/hal"
	"rover/host/serial"
	"rover/protocol"
)

// board is a scripted IO board on the far end of a serial pipe. It
// records every frame it receives and answers through the reply hook.
type board struct {
	port  serial.Port
	reply func(protocol.Frame) []protocol.Frame

	mu     sync.Mutex
	frames []protocol.Frame

	done chan struct{}
}

func startBoard(port serial.Port, reply func(protocol.Frame) []protocol.Frame) *board {
	b := &board{port: port, reply: reply, done: make(chan struct{})}
	go b.run()
	return b
}

func (b *board) run() {
	defer close(b.done)
	var sc protocol.Scanner
	buf := make([]byte, 256)
	for {
		n, err := b.port.Read(buf)
		if n > 0 {
			sc.Feed(buf[:n])
			for {
				f, ok := sc.Next()
				if !ok {
					break
				}
				b.mu.Lock()
				b.frames = append(b.frames, f)
				b.mu.Unlock()
				if b.reply == nil {
					continue
				}
				for _, r := range b.reply(f) {
					out, err := protocol.AppendFrame(nil, r.Type, r.Payload)
					if err != nil {
						return
					}
					if _, err := b.port.Write(out); err != nil {
						return
					}
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *board) received() []protocol.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Frame(nil), b.frames...)
}

func newRig(t *testing.T, reply func(protocol.Frame) []protocol.Frame) (*Client, *board) {
	t.Helper()
	hostPort, boardPort := serial.Pipe()
	b := startBoard(boardPort, reply)
	c := NewClient(hostPort)
	c.SetTimeout(200 * time.Millisecond)
	t.Cleanup(func() {
		c.Close()
		boardPort.Close()
		<-b.done
	})
	return c, b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestHelloHandshake(t *testing.T) {
	c, b := newRig(t, func(f protocol.Frame) []protocol.Frame {
		if f.Type != protocol.MsgHello {
			return nil
		}
		payload := append([]byte{protocol.Version}, "pico-io v1"...)
		return []protocol.Frame{{Type: protocol.MsgHelloReply, Payload: payload}}
	})

	id, err := c.Hello()
	if err != nil {
		t.Fatalf("Hello failed: %v", err)
	}
	if id != "pico-io v1" {
		t.Errorf("Expected board id %q, got %q", "pico-io v1", id)
	}

	frames := b.received()
	if len(frames) != 1 || frames[0].Type != protocol.MsgHello {
		t.Fatalf("Expected one hello frame, got %v", frames)
	}
	if !bytes.Equal(frames[0].Payload, []byte{protocol.Version}) {
		t.Errorf("Expected hello payload %v, got %v", []byte{protocol.Version}, frames[0].Payload)
	}
}

func TestHelloVersionMismatch(t *testing.T) {
	c, _ := newRig(t, func(f protocol.Frame) []protocol.Frame {
		payload := append([]byte{protocol.Version + 1}, "future board"...)
		return []protocol.Frame{{Type: protocol.MsgHelloReply, Payload: payload}}
	})

	if _, err := c.Hello(); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Expected ErrVersionMismatch, got %v", err)
	}
}

func TestHelloTimeout(t *testing.T) {
	c, _ := newRig(t, nil)
	c.SetTimeout(30 * time.Millisecond)

	if _, err := c.Hello(); !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestGetRoundTrip(t *testing.T) {
	level := byte(1)
	c, _ := newRig(t, func(f protocol.Frame) []protocol.Frame {
		if f.Type != protocol.MsgRead {
			return nil
		}
		tag, ch := f.Payload[0], f.Payload[1]
		if ch != 5 {
			return []protocol.Frame{{Type: protocol.MsgError, Payload: []byte{tag, protocol.ErrCodeBadChannel}}}
		}
		return []protocol.Frame{{Type: protocol.MsgReadReply, Payload: []byte{tag, level}}}
	})

	got, err := c.Get(5)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got {
		t.Error("Expected high level")
	}

	level = 0
	got, err = c.Get(5)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got {
		t.Error("Expected low level")
	}
}

func TestFireAndForgetEncodings(t *testing.T) {
	c, b := newRig(t, nil)

	if err := c.ConfigureInput(3, hal.PullUp); err != nil {
		t.Fatalf("ConfigureInput failed: %v", err)
	}
	if err := c.ConfigureOutput(4, true); err != nil {
		t.Fatalf("ConfigureOutput failed: %v", err)
	}
	if err := c.Set(4, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Pulse(6, 10*time.Microsecond); err != nil {
		t.Fatalf("Pulse failed: %v", err)
	}
	if err := c.ConfigurePWM(2, 1000); err != nil {
		t.Fatalf("ConfigurePWM failed: %v", err)
	}
	if err := c.SetDuty(2, 0.5); err != nil {
		t.Fatalf("SetDuty failed: %v", err)
	}
	if err := c.DisablePWM(2); err != nil {
		t.Fatalf("DisablePWM failed: %v", err)
	}
	if err := c.ConfigurePulseCapture(7); err != nil {
		t.Fatalf("ConfigurePulseCapture failed: %v", err)
	}
	if err := c.ResetPulse(7); err != nil {
		t.Fatalf("ResetPulse failed: %v", err)
	}
	if err := c.ConfigureAnalog(1); err != nil {
		t.Fatalf("ConfigureAnalog failed: %v", err)
	}

	waitFor(t, "all frames to land", func() bool { return len(b.received()) == 10 })

	want := []protocol.Frame{
		{Type: protocol.MsgSetMode, Payload: []byte{3, protocol.ModeInputPullUp}},
		{Type: protocol.MsgSetMode, Payload: []byte{4, protocol.ModeOutputHigh}},
		{Type: protocol.MsgWrite, Payload: []byte{4, 0}},
		{Type: protocol.MsgPulse, Payload: []byte{6, 10}},
		{Type: protocol.MsgPWMCfg, Payload: []byte{2, 0xE8, 0x07}},
		{Type: protocol.MsgPWMSet, Payload: []byte{2, 0x80, 0x80, 0x02}},
		{Type: protocol.MsgPWMOff, Payload: []byte{2}},
		{Type: protocol.MsgCaptureCfg, Payload: []byte{7}},
		{Type: protocol.MsgCaptureReset, Payload: []byte{7}},
		{Type: protocol.MsgAnalogCfg, Payload: []byte{1}},
	}
	got := b.received()
	for i, w := range want {
		if got[i].Type != w.Type {
			t.Errorf("Frame %d: expected type %#02x, got %#02x", i, byte(w.Type), byte(got[i].Type))
		}
		if !bytes.Equal(got[i].Payload, w.Payload) {
			t.Errorf("Frame %d: expected payload %v, got %v", i, w.Payload, got[i].Payload)
		}
	}
}

func TestCaptureRead(t *testing.T) {
	c, _ := newRig(t, func(f protocol.Frame) []protocol.Frame {
		if f.Type != protocol.MsgCaptureRead {
			return nil
		}
		payload := protocol.AppendUvarint([]byte{f.Payload[0]}, 3)
		payload = protocol.AppendUvarint(payload, 1480)
		return []protocol.Frame{{Type: protocol.MsgCaptureReply, Payload: payload}}
	})

	count, err := c.PulseCount(7)
	if err != nil {
		t.Fatalf("PulseCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 pulses, got %d", count)
	}

	width, err := c.LastPulseWidth(7)
	if err != nil {
		t.Fatalf("LastPulseWidth failed: %v", err)
	}
	if width != 1480*time.Microsecond {
		t.Errorf("Expected width 1.48ms, got %v", width)
	}
}

func TestAnalogRead(t *testing.T) {
	c, _ := newRig(t, func(f protocol.Frame) []protocol.Frame {
		if f.Type != protocol.MsgAnalogRead {
			return nil
		}
		payload := protocol.AppendUvarint([]byte{f.Payload[0]}, 3300)
		return []protocol.Frame{{Type: protocol.MsgAnalogReply, Payload: payload}}
	})

	v, err := c.ReadVoltage(1)
	if err != nil {
		t.Fatalf("ReadVoltage failed: %v", err)
	}
	if math.Abs(v-3.3) > 1e-9 {
		t.Errorf("Expected 3.3V, got %v", v)
	}
}

func TestBoardRejectionSurfaced(t *testing.T) {
	c, _ := newRig(t, func(f protocol.Frame) []protocol.Frame {
		if f.Type != protocol.MsgRead {
			return nil
		}
		return []protocol.Frame{{Type: protocol.MsgError, Payload: []byte{f.Payload[0], protocol.ErrCodeBadChannel}}}
	})

	if _, err := c.Get(200); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected, got %v", err)
	}
}

func TestConcurrentRoundTripsRouteByTag(t *testing.T) {
	c, _ := newRig(t, func(f protocol.Frame) []protocol.Frame {
		if f.Type != protocol.MsgRead {
			return nil
		}
		tag, ch := f.Payload[0], f.Payload[1]
		return []protocol.Frame{{Type: protocol.MsgReadReply, Payload: []byte{tag, ch & 1}}}
	})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	levels := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			levels[i], errs[i] = c.Get(hal.Channel(i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if errs[i] != nil {
			t.Fatalf("Get(%d) failed: %v", i, errs[i])
		}
		if want := i%2 == 1; levels[i] != want {
			t.Errorf("Get(%d): expected %v, got %v", i, want, levels[i])
		}
	}
}

func TestRequestAfterCloseFails(t *testing.T) {
	c, _ := newRig(t, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := c.Get(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got %v", err)
	}
	if err := c.Set(1, true); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Set, got %v", err)
	}
	if _, err := c.Hello(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Hello, got %v", err)
	}
}

func TestCloseUnblocksWaiter(t *testing.T) {
	c, _ := newRig(t, nil)
	c.SetTimeout(5 * time.Second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.Close()
	}()

	start := time.Now()
	_, err := c.Get(1)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected Close to unblock the waiter promptly")
	}
}
