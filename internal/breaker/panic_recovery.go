package breaker

import (
	"fmt"
	"sync"
)

// logMutex protects fmt.Printf calls from concurrent access.
var logMutex sync.Mutex

// logCallbackPanic logs a panic recovered from a user-supplied callback.
func logCallbackPanic(callbackName, circuitName string, panicValue interface{}) {
	logMutex.Lock()
	defer logMutex.Unlock()

	fmt.Printf("[BREAKER WARNING] circuit %q: %s callback panicked: %v\n",
		circuitName, callbackName, panicValue)
}

// safeMarksCircuits invokes cfg.MarksCircuits with panic recovery. A
// panicking classifier defaults to "mark as failure" — the conservative
// choice, since silently treating an unclassifiable error as success would
// mask real trouble.
func safeMarksCircuits(circuitName string, fn func(error) bool, err error) (marked bool) {
	defer func() {
		if r := recover(); r != nil {
			logCallbackPanic("MarksCircuits", circuitName, r)
			marked = err != nil
		}
	}()
	return fn(err)
}

// safeOnStateChange invokes cfg.OnStateChange with panic recovery. The
// state transition itself has already committed by the time this runs, so
// a panicking callback cannot block or roll it back.
func safeOnStateChange(circuitName string, fn func(string, State, State), from, to State) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logCallbackPanic("OnStateChange", circuitName, r)
		}
	}()
	fn(circuitName, from, to)
}
