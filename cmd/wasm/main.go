//go:build js && wasm
// +build js,wasm

package main

import (
	"syscall/js"
)

// perfgridBeats(matchText, quarterLength, anacrusisOffset[, maxTries])
// Returns: {error: number, data: {csv, quarterLength, ...} | string}
func perfgridBeats(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: matchText, quarterLength, anacrusisOffset")
	}
	if args[0].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "matchText must be a string")
	}
	// null or undefined asks for a guess
	intArg := func(v js.Value) (int, bool) {
		switch v.Type() {
		case js.TypeNumber:
			return v.Int(), true
		case js.TypeNull, js.TypeUndefined:
			return -1, true
		}
		return 0, false
	}
	quarter, ok := intArg(args[1])
	if !ok {
		return makeErrorResponse(ErrorInvalidArgs, "quarterLength must be a number or null")
	}
	offset, ok := intArg(args[2])
	if !ok {
		return makeErrorResponse(ErrorInvalidArgs, "anacrusisOffset must be a number or null")
	}
	maxTries := 0
	if len(args) > 3 && args[3].Type() == js.TypeNumber {
		maxTries = args[3].Int()
	}

	out, code, err := computeBeats(args[0].String(), quarter, offset, maxTries)
	if err != nil {
		return makeErrorResponse(code, err.Error())
	}

	data := js.Global().Get("Object").New()
	data.Set("csv", out.CSV)
	data.Set("quarterLength", out.QuarterLength)
	data.Set("anacrusisOffset", out.AnacrusisOffset)
	data.Set("attempts", out.Attempts)
	data.Set("outcome", out.Outcome)
	data.Set("ignored", out.Ignored)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// perfgridTempo(beatsCSV)
// Returns: {error: number, data: string}
func perfgridTempo(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: beatsCSV")
	}

	csv, code, err := computeTempo(args[0].String())
	if err != nil {
		return makeErrorResponse(code, err.Error())
	}
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", csv)
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
		console.Call("log", "🔧 PerfGrid WASM module initializing...")
	}

	done := make(chan struct{})

	js.Global().Set("perfgridBeats", js.FuncOf(perfgridBeats))
	js.Global().Set("perfgridTempo", js.FuncOf(perfgridTempo))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ PerfGrid WASM module loaded and ready")
	}

	<-done
}
