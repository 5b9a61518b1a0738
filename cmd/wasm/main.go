//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/PulseRate/pkg/pulserate/ppg"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorInvalidConfig
	ErrorNoEstimate
)

// monitor is the single window shared by all exported functions. JavaScript
// calls arrive on one goroutine, so it needs no lock.
var monitor *ppg.Monitor

// Appends one sample or an array of samples.
// Args: (value, timestampMs) or (valuesArray, timestampsArray)
// Returns: {error: number, data: number (window length) | string}
func pulseAppendSample(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: value, timestampMs")
	}

	valueJS, tsJS := args[0], args[1]

	if valueJS.Type() == js.TypeNumber && tsJS.Type() == js.TypeNumber {
		monitor.AppendSample(valueJS.Float(), ppg.Ticks(uint32(tsJS.Int())))
		return makeResponse(monitor.Len())
	}

	if valueJS.Type() != js.TypeObject || tsJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "value and timestampMs must both be numbers or both be arrays")
	}

	length := valueJS.Length()
	if tsJS.Length() != length {
		return makeErrorResponse(ErrorInvalidArgs,
			fmt.Sprintf("values and timestamps differ in length: %d vs %d", length, tsJS.Length()))
	}

	samples := make([]ppg.Sample, length)
	for i := 0; i < length; i++ {
		v, ts := valueJS.Index(i), tsJS.Index(i)
		if v.Type() != js.TypeNumber || ts.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("element %d is not a number", i))
		}
		samples[i] = ppg.Sample{Value: v.Float(), Timestamp: ppg.Ticks(uint32(ts.Int()))}
	}
	// Nothing is appended unless every element parsed
	for _, s := range samples {
		monitor.Append(s)
	}

	return makeResponse(monitor.Len())
}

// Returns: {error: number, data: number (BPM) | string}
func pulseEstimateHeartRate(this js.Value, args []js.Value) interface{} {
	bpm, ok := monitor.EstimateHeartRate()
	if !ok {
		return makeErrorResponse(ErrorNoEstimate, "Not enough signal for an estimate")
	}
	return makeResponse(bpm)
}

// Returns: {error: number, data: [{timestamp, amplitude}]}
func pulseFindPeaks(this js.Value, args []js.Value) interface{} {
	peaks := monitor.FindPeaks()

	peakArray := js.Global().Get("Array").New()
	for i, p := range peaks {
		peakObj := js.Global().Get("Object").New()
		peakObj.Set("timestamp", uint32(p.Timestamp))
		peakObj.Set("amplitude", p.Amplitude)
		peakArray.SetIndex(i, peakObj)
	}
	return makeResponse(peakArray)
}

// Discards the window. With (windowSize, smoothingWindow) it also rebuilds
// the monitor with the new sizes.
// Returns: {error: number, data: {windowSize, smoothingWindow} | string}
func pulseReset(this js.Value, args []js.Value) interface{} {
	if len(args) == 0 {
		monitor.Reset()
		return makeResponse(configObject(monitor.Config()))
	}
	if len(args) < 2 || args[0].Type() != js.TypeNumber || args[1].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "Expected no arguments or 2 numbers: windowSize, smoothingWindow")
	}

	cfg := monitor.Config()
	cfg.WindowSize = args[0].Int()
	cfg.SmoothingWindow = args[1].Int()

	m, err := ppg.NewMonitor(cfg)
	if err != nil {
		return makeErrorResponse(ErrorInvalidConfig, err.Error())
	}
	monitor = m
	return makeResponse(configObject(cfg))
}

func configObject(cfg ppg.Config) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("sampleRate", cfg.SampleRate)
	obj.Set("windowSize", cfg.WindowSize)
	obj.Set("smoothingWindow", cfg.SmoothingWindow)
	return obj
}

func makeResponse(data interface{}) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🔧 PulseRate WASM module initializing...")
	}

	// 3 s at 50 Hz
	m, err := ppg.NewMonitor(ppg.Config{SampleRate: 50, WindowSize: 150, SmoothingWindow: 5})
	if err != nil {
		panic(err)
	}
	monitor = m

	done := make(chan struct{})

	js.Global().Set("pulseAppendSample", js.FuncOf(pulseAppendSample))
	js.Global().Set("pulseEstimateHeartRate", js.FuncOf(pulseEstimateHeartRate))
	js.Global().Set("pulseFindPeaks", js.FuncOf(pulseFindPeaks))
	js.Global().Set("pulseReset", js.FuncOf(pulseReset))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ PulseRate WASM module loaded and ready")
	}

	<-done
}
