package webviz

import (
	"fmt"
)

var ErrChannelBound = fmt.Errorf("channel is already bound to an endpoint")
var ErrDuplicateReceiver = fmt.Errorf("a receiver is already registered for this topic")
var ErrReservedTopic = fmt.Errorf("topic is reserved for protocol use")

//	Channel fault while posting a request
type SendError struct {
	error
}

func (err *SendError) Error() string {
	return fmt.Sprintf("SendError: " + err.error.Error())
}

//	Failure reported by the remote handler, carried back as response data.
//	The message is exactly the text of the remote error.
type RemoteError struct {
	Message string
}

func (err *RemoteError) Error() string {
	return err.Message
}
