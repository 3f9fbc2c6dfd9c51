package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rover/hal"
	"rover/hal/sim"
	"rover/host/config"
	"rover/host/iolink"
	"rover/host/logging"
	"rover/host/serial"
)

var (
	device     = flag.String("device", "", "Serial device path (implies the serial backend)")
	baud       = flag.Int("baud", 0, "Baud rate (0 uses the configured rate)")
	useSim     = flag.Bool("sim", false, "Drive the in-process simulated backend")
	configPath = flag.String("config", "", "Path to a robot config file")
)

// console bundles the driver interfaces of whichever backend is live.
type console struct {
	dio     hal.DIODriver
	counter hal.CounterDriver
	analog  hal.AnalogDriver
	pwm     hal.PWMDriver
	hello   func() (string, error)
	sim     *sim.IO
	closer  func() error

	analogCfg map[hal.Channel]bool
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *useSim {
		cfg.IO.Backend = config.BackendSim
	}
	if *device != "" {
		cfg.IO.Backend = config.BackendSerial
		cfg.IO.Device = *device
	}
	if *baud != 0 {
		cfg.IO.Baud = *baud
	}

	if _, err := logging.Setup(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Rover Host - IO Board Console")
	fmt.Println("=============================")
	fmt.Println()

	con := &console{analogCfg: make(map[hal.Channel]bool)}
	switch cfg.IO.Backend {
	case config.BackendSim:
		io := sim.New()
		con.dio, con.counter, con.analog, con.pwm = io, io, io, io
		con.sim = io
		con.hello = func() (string, error) {
			return fmt.Sprintf("simulated io, %d channels", sim.NumChannels), nil
		}
		con.closer = func() error { return nil }
		fmt.Println("Using the simulated backend")

	case config.BackendSerial:
		fmt.Printf("Connecting to IO board on %s...\n", cfg.IO.Device)
		client, err := iolink.Dial(&serial.Config{
			Device: cfg.IO.Device, Baud: cfg.IO.Baud, ReadTimeout: 100,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
		con.dio, con.counter, con.analog, con.pwm = client, client, client, client
		con.hello = client.Hello
		con.closer = client.Close

		id, err := client.Hello()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Handshake failed: %v\n", err)
			client.Close()
			os.Exit(1)
		}
		fmt.Printf("Connected: %s\n", id)
	}
	defer con.closer()

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "hello":
			id, err := con.hello()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("Board: %s\n", id)

		case "mode":
			if err := con.handleMode(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "set":
			if err := con.handleSet(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "get":
			if err := con.handleGet(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "pulse":
			if err := con.handlePulse(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "capture":
			if err := con.handleCapture(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "analog":
			if err := con.handleAnalog(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "pwm":
			if err := con.handlePWM(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "watch":
			if err := con.handleWatch(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "in":
			if err := con.handleIn(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  hello                      - Query the board id")
	fmt.Println("  mode <ch> <in|inup|indown|out|outhigh>")
	fmt.Println("                             - Configure a channel")
	fmt.Println("  set <ch> <0|1>             - Drive an output")
	fmt.Println("  get <ch>                   - Read an input")
	fmt.Println("  pulse <ch> <usec>          - Fire a positive pulse")
	fmt.Println("  capture <ch> [read|reset]  - Configure, read or reset pulse capture")
	fmt.Println("  analog <ch>                - Read a voltage")
	fmt.Println("  pwm <ch> <freq> <duty>     - Configure PWM and set a 0..1 duty")
	fmt.Println("  pwm <ch> off               - Disable PWM")
	fmt.Println("  watch <ch> [seconds]       - Print input transitions for a while")
	fmt.Println("  in <ch> <0|1>              - Script an input level (sim only)")
	fmt.Println("  quit/exit/q                - Exit the program")
	fmt.Println()
}

func parseChannel(s string) (hal.Channel, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 255 {
		return 0, fmt.Errorf("bad channel %q", s)
	}
	return hal.Channel(n), nil
}

func parseLevel(s string) (bool, error) {
	switch s {
	case "0", "low", "false":
		return false, nil
	case "1", "high", "true":
		return true, nil
	}
	return false, fmt.Errorf("bad level %q (want 0 or 1)", s)
}

func (c *console) handleMode(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mode <ch> <in|inup|indown|out|outhigh>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	switch args[1] {
	case "in":
		return c.dio.ConfigureInput(ch, hal.PullNone)
	case "inup":
		return c.dio.ConfigureInput(ch, hal.PullUp)
	case "indown":
		return c.dio.ConfigureInput(ch, hal.PullDown)
	case "out":
		return c.dio.ConfigureOutput(ch, false)
	case "outhigh":
		return c.dio.ConfigureOutput(ch, true)
	}
	return fmt.Errorf("bad mode %q", args[1])
}

func (c *console) handleSet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set <ch> <0|1>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	level, err := parseLevel(args[1])
	if err != nil {
		return err
	}
	return c.dio.Set(ch, level)
}

func (c *console) handleGet(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <ch>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	level, err := c.dio.Get(ch)
	if err != nil {
		return err
	}
	fmt.Printf("Channel %d: %s\n", ch, levelName(level))
	return nil
}

func (c *console) handlePulse(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: pulse <ch> <usec>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	usec, err := strconv.Atoi(args[1])
	if err != nil || usec <= 0 {
		return fmt.Errorf("bad pulse width %q", args[1])
	}
	return c.dio.Pulse(ch, time.Duration(usec)*time.Microsecond)
}

func (c *console) handleCapture(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: capture <ch> [read|reset]")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if err := c.counter.ConfigurePulseCapture(ch); err != nil {
			return err
		}
		fmt.Printf("Capture armed on channel %d\n", ch)
		return nil
	}
	switch args[1] {
	case "read":
		count, err := c.counter.PulseCount(ch)
		if err != nil {
			return err
		}
		width, err := c.counter.LastPulseWidth(ch)
		if err != nil {
			return err
		}
		fmt.Printf("Channel %d: %d edges, last width %v\n", ch, count, width)
		return nil
	case "reset":
		return c.counter.ResetPulse(ch)
	}
	return fmt.Errorf("bad capture action %q", args[1])
}

func (c *console) handleAnalog(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: analog <ch>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	if !c.analogCfg[ch] {
		if err := c.analog.ConfigureAnalog(ch); err != nil {
			return err
		}
		c.analogCfg[ch] = true
	}
	v, err := c.analog.ReadVoltage(ch)
	if err != nil {
		return err
	}
	fmt.Printf("Channel %d: %.3fV\n", ch, v)
	return nil
}

func (c *console) handlePWM(args []string) error {
	if len(args) == 2 && args[1] == "off" {
		ch, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		return c.pwm.DisablePWM(ch)
	}
	if len(args) != 3 {
		return fmt.Errorf("usage: pwm <ch> <freq> <duty> | pwm <ch> off")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	freq, err := strconv.Atoi(args[1])
	if err != nil || freq <= 0 {
		return fmt.Errorf("bad frequency %q", args[1])
	}
	duty, err := strconv.ParseFloat(args[2], 64)
	if err != nil || duty < 0 || duty > 1 {
		return fmt.Errorf("bad duty %q (want 0..1)", args[2])
	}
	if err := c.pwm.ConfigurePWM(ch, uint32(freq)); err != nil {
		return err
	}
	return c.pwm.SetDuty(ch, duty)
}

func (c *console) handleWatch(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: watch <ch> [seconds]")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	seconds := 5
	if len(args) == 2 {
		seconds, err = strconv.Atoi(args[1])
		if err != nil || seconds <= 0 {
			return fmt.Errorf("bad duration %q", args[1])
		}
	}

	last, err := c.dio.Get(ch)
	if err != nil {
		return err
	}
	fmt.Printf("Watching channel %d for %ds (starts %s)...\n", ch, seconds, levelName(last))
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for time.Now().Before(deadline) {
		level, err := c.dio.Get(ch)
		if err != nil {
			return err
		}
		if level != last {
			fmt.Printf("  %s -> %s\n", levelName(last), levelName(level))
			last = level
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

func (c *console) handleIn(args []string) error {
	if c.sim == nil {
		return fmt.Errorf("only the sim backend can script inputs")
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: in <ch> <0|1>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	level, err := parseLevel(args[1])
	if err != nil {
		return err
	}
	c.sim.SetInputLevel(ch, level)
	return nil
}

func levelName(level bool) string {
	if level {
		return "high"
	}
	return "low"
}
