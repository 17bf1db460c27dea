package guest

import (
	"runtime/debug"

	"github.com/wippyai/hotswap/abi"
)

// FaultHandler observes faults caught at the module boundary.
type FaultHandler func(op string, recovered any, stack []byte)

// contain runs fn and turns a panic into PanicDetected. Nothing raised
// inside module code unwinds past this frame.
func contain(op string, onFault FaultHandler, fn func() abi.Result) (res abi.Result) {
	defer func() {
		if r := recover(); r != nil {
			if onFault != nil {
				onFault(op, r, debug.Stack())
			}
			res = abi.PanicDetected
		}
	}()
	return fn()
}
