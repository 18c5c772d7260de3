package webviz

import (
	"sync"
)

const pipeDepth = 64

type pipeMessage struct {
	env         Envelope
	attachments [][]byte
}

//	PipeChannel is one side of an in-process channel pair. Each side delivers
//	to the other side's hook from a single goroutine, so envelopes arrive in
//	post order per direction. Envelopes posted before the receiving side
//	binds are held, not dropped.
type PipeChannel struct {
	sync.Mutex
	peer  *PipeChannel
	hook  Hook
	bound chan struct{}
	inbox chan pipeMessage
}

//	Pipe returns two linked channels: envelopes posted on one are delivered
//	to the hook bound on the other.
func Pipe() (*PipeChannel, *PipeChannel) {
	a := newPipeChannel()
	b := newPipeChannel()
	a.peer, b.peer = b, a
	go RecoverToLog(a.deliver, log)
	go RecoverToLog(b.deliver, log)
	return a, b
}

func newPipeChannel() *PipeChannel {
	return &PipeChannel{
		bound: make(chan struct{}),
		inbox: make(chan pipeMessage, pipeDepth),
	}
}

func (c *PipeChannel) Post(env Envelope, attachments [][]byte) (err error) {
	c.peer.inbox <- pipeMessage{env: env, attachments: attachments}
	return
}

func (c *PipeChannel) Bind(hook Hook) (err error) {
	c.Lock()
	defer c.Unlock()
	if c.hook != nil {
		return ErrChannelBound
	}
	c.hook = hook
	close(c.bound)
	return
}

func (c *PipeChannel) deliver() {
	<-c.bound
	for m := range c.inbox {
		c.hook(m.env, m.attachments)
	}
}
