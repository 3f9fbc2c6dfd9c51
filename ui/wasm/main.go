//go:build js && wasm

// Browser bindings for the IO board wire protocol. Compiled to WASM
// this exposes the frame codec to JavaScript, so a protocol debug page
// can build frames, pick real ones out of a captured byte stream and
// check CRCs without reimplementing any of it.
package main

import (
	"encoding/hex"
	"syscall/js"

	"rover/protocol"
)

// scanner accumulates whatever the page feeds in, typically bytes
// sniffed off the serial link.
var scanner protocol.Scanner

func main() {
	js.Global().Set("roverWasm", js.ValueOf(map[string]interface{}{
		"version":       protocol.Version,
		"crc16":         js.FuncOf(crc16Wrapper),
		"encodeFrame":   js.FuncOf(encodeFrameWrapper),
		"feed":          js.FuncOf(feedWrapper),
		"next":          js.FuncOf(nextWrapper),
		"dropped":       js.FuncOf(droppedWrapper),
		"encodeUvarint": js.FuncOf(encodeUvarintWrapper),
		"decodeUvarint": js.FuncOf(decodeUvarintWrapper),
		"messageName":   js.FuncOf(messageNameWrapper),
	}))

	// Block forever so the exports stay callable.
	select {}
}

func errValue(msg string) interface{} {
	return map[string]interface{}{"error": msg}
}

func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return errValue("crc16 takes one hex string")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return errValue("bad hex: " + err.Error())
	}
	return int(protocol.CRC16(data))
}

func encodeFrameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return errValue("encodeFrame takes a message type and a payload hex string")
	}
	payload, err := hex.DecodeString(args[1].String())
	if err != nil {
		return errValue("bad hex: " + err.Error())
	}
	frame, err := protocol.AppendFrame(nil, protocol.MsgType(args[0].Int()), payload)
	if err != nil {
		return errValue(err.Error())
	}
	return hex.EncodeToString(frame)
}

func feedWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return errValue("feed takes one hex string")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return errValue("bad hex: " + err.Error())
	}
	scanner.Feed(data)
	return nil
}

// nextWrapper returns the next complete frame the scanner has found,
// or null when it needs more bytes.
func nextWrapper(this js.Value, args []js.Value) interface{} {
	frame, ok := scanner.Next()
	if !ok {
		return nil
	}
	return map[string]interface{}{
		"type":    int(frame.Type),
		"name":    messageName(frame.Type),
		"payload": hex.EncodeToString(frame.Payload),
	}
}

func droppedWrapper(this js.Value, args []js.Value) interface{} {
	return scanner.Dropped()
}

func encodeUvarintWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return errValue("encodeUvarint takes one number")
	}
	return hex.EncodeToString(protocol.AppendUvarint(nil, uint32(args[0].Int())))
}

func decodeUvarintWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return errValue("decodeUvarint takes one hex string")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return errValue("bad hex: " + err.Error())
	}
	rest := data
	v, err := protocol.ReadUvarint(&rest)
	if err != nil {
		return errValue(err.Error())
	}
	return map[string]interface{}{
		"value": int(v),
		"size":  len(data) - len(rest),
	}
}

func messageNameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return errValue("messageName takes one number")
	}
	return messageName(protocol.MsgType(args[0].Int()))
}

func messageName(t protocol.MsgType) string {
	switch t {
	case protocol.MsgHello:
		return "hello"
	case protocol.MsgSetMode:
		return "set_mode"
	case protocol.MsgWrite:
		return "write"
	case protocol.MsgPulse:
		return "pulse"
	case protocol.MsgRead:
		return "read"
	case protocol.MsgCaptureCfg:
		return "capture_cfg"
	case protocol.MsgCaptureRead:
		return "capture_read"
	case protocol.MsgCaptureReset:
		return "capture_reset"
	case protocol.MsgAnalogCfg:
		return "analog_cfg"
	case protocol.MsgAnalogRead:
		return "analog_read"
	case protocol.MsgPWMCfg:
		return "pwm_cfg"
	case protocol.MsgPWMSet:
		return "pwm_set"
	case protocol.MsgPWMOff:
		return "pwm_off"
	case protocol.MsgError:
		return "error"
	}
	if t&protocol.ReplyBit != 0 {
		if base := messageName(t &^ protocol.ReplyBit); base != "unknown" {
			return base + "_reply"
		}
	}
	return "unknown"
}
