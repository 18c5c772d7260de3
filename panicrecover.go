package webviz

import (
	"fmt"
	"runtime/debug"

	"github.com/op/go-logging"
)

func RecoverToLog(f func(), log *logging.Logger) {
	defer func() {
		if x := recover(); x != nil {
			if log != nil {
				log.Error(fmt.Sprintf("run time panic: %v", x))
				log.Error(string(debug.Stack()))
			}
		}
	}()
	f()
}

//	recoverToError converts a panic into an ordinary error so a panicking
//	handler settles its caller's future instead of killing the endpoint.
//	The stack still goes to the log; only the panic text crosses the wire.
func recoverToError(errp *error, log *logging.Logger) {
	if x := recover(); x != nil {
		if log != nil {
			log.Error(fmt.Sprintf("handler panic: %v", x))
			log.Error(string(debug.Stack()))
		}
		*errp = fmt.Errorf("%v", x)
	}
}
