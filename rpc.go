package webviz

/*
*	Bidirectional request/response correlation over an asynchronous
*	message-passing channel. Either side sends named calls and registers
*	receivers; responses are matched to calls by ID.
 */

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/op/go-logging"
	uuid "github.com/satori/go.uuid"
)

//	Recently settled call IDs kept around to tell a late duplicate response
//	apart from one that was never requested.
const settledIDCacheSize = 256

//	Message pairs a payload value with the transfer attachments that travel
//	alongside it. Attachments are binary buffers that accompany the value
//	without being part of it.
type Message struct {
	Data        interface{}
	Attachments [][]byte
}

//	Handler serves one topic. Returning a nil Message produces a bare
//	response; returning an error (or panicking) rejects the remote caller
//	with the error's text.
type Handler func(req Message) (result *Message, err error)

//	Pending is the future for one outstanding call. It settles exactly once,
//	when the matching response arrives; there is no timeout, so a call whose
//	response never comes stays pending forever. Callers needing deadlines
//	layer them externally, e.g. with Rpc.Call and a context.
type Pending struct {
	Topic string
	ID    uint64

	reply Message
	err   error
	done  chan struct{}
}

//	Done is closed when the call settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

//	Result blocks until the call settles, then returns the remote result or
//	the error the remote handler failed with.
func (p *Pending) Result() (reply Message, err error) {
	<-p.done
	return p.reply, p.err
}

func (p *Pending) settle(reply Message, err error) {
	p.reply = reply
	p.err = err
	close(p.done)
}

//	Rpc is one endpoint of a channel. It takes exclusive ownership of the
//	channel at construction and keeps it for the channel's lifetime.
type Rpc struct {
	sync.Mutex
	channel    Channel
	tag        string
	nextCallID uint64
	pending    map[uint64]*Pending
	receivers  map[string]Handler
	settledIDs *lru.Cache
	log        *logging.Logger
}

//	NewRpc binds an endpoint to channel. It fails with ErrChannelBound if the
//	channel already has an endpoint.
func NewRpc(channel Channel) (r *Rpc, err error) {
	r = &Rpc{
		channel:    channel,
		tag:        uuid.NewV4().String()[:8],
		pending:    map[uint64]*Pending{},
		receivers:  map[string]Handler{},
		settledIDs: lru.New(settledIDCacheSize),
		log:        log,
	}
	err = channel.Bind(r.dispatch)
	if err != nil {
		r = nil
		return
	}
	return
}

//	Send posts a request and returns the Pending future for its response.
//	It never blocks on the remote side; any number of calls may be
//	outstanding at once, each tracked independently by ID.
func (r *Rpc) Send(topic string, data interface{}, attachments ...[]byte) *Pending {
	r.Lock()
	id := r.nextCallID
	r.nextCallID++
	p := &Pending{Topic: topic, ID: id, done: make(chan struct{})}
	r.pending[id] = p
	r.Unlock()

	env := Envelope{Topic: topic, ID: id, Version: CurrentVersion, Payload: OK(data)}
	if err := r.channel.Post(env, attachments); err != nil {
		r.Lock()
		delete(r.pending, id)
		r.Unlock()
		p.settle(Message{}, &SendError{err})
	}
	return p
}

//	Call is the blocking form of Send. The context bounds only the local
//	wait: cancellation abandons the Pending but cannot withdraw the request
//	already posted to the remote side.
func (r *Rpc) Call(ctx context.Context, topic string, data interface{}, attachments ...[]byte) (reply Message, err error) {
	p := r.Send(topic, data, attachments...)
	select {
	case <-p.Done():
		return p.Result()
	case <-ctx.Done():
		err = ctx.Err()
		return
	}
}

//	Receive registers handler for topic. At most one handler may ever be
//	registered per topic; there is no deregistration.
func (r *Rpc) Receive(topic string, handler Handler) (err error) {
	if topic == ResponseTopic {
		return ErrReservedTopic
	}
	r.Lock()
	defer r.Unlock()
	if _, ok := r.receivers[topic]; ok {
		return ErrDuplicateReceiver
	}
	r.receivers[topic] = handler
	return
}

//	dispatch is the channel's inbound hook: every delivered envelope passes
//	through here. It must not panic on a well-formed envelope, whatever the
//	registered handlers do.
func (r *Rpc) dispatch(env Envelope, attachments [][]byte) {
	if env.Version.Major > CurrentVersion.Major {
		r.log.Debug("endpoint", r.tag, "got envelope with newer wire version", env.Version.String())
	}
	if env.Topic == ResponseTopic {
		r.settleCall(env, attachments)
		return
	}

	r.Lock()
	handler, ok := r.receivers[env.Topic]
	r.Unlock()
	if !ok {
		r.respond(env.ID, Failure("no receiver registered for "+env.Topic), nil)
		return
	}

	//	Handlers run as their own continuation so a slow handler never
	//	blocks dispatch of the next inbound envelope.
	go func() {
		result, err := r.invoke(handler, Message{Data: env.Payload.Value, Attachments: attachments})
		if err != nil {
			r.respond(env.ID, Failure(err.Error()), nil)
			return
		}
		if result == nil {
			r.respond(env.ID, Payload{}, nil)
			return
		}
		r.respond(env.ID, OK(result.Data), result.Attachments)
	}()
}

//	invoke folds a handler's synchronous panic and returned error into one
//	failure path, so both look identical to the remote caller.
func (r *Rpc) invoke(handler Handler, req Message) (result *Message, err error) {
	defer recoverToError(&err, r.log)
	result, err = handler(req)
	return
}

func (r *Rpc) respond(id uint64, payload Payload, attachments [][]byte) {
	env := Envelope{Topic: ResponseTopic, ID: id, Version: CurrentVersion, Payload: payload}
	if err := r.channel.Post(env, attachments); err != nil {
		r.log.Error("endpoint", r.tag, "error posting response for call", id, ":", err)
	}
}

//	settleCall is the single settlement point for a Pending: the entry is
//	removed before it fires, so a call settles at most once. A response with
//	no pending entry is logged and dropped.
func (r *Rpc) settleCall(env Envelope, attachments [][]byte) {
	r.Lock()
	p, ok := r.pending[env.ID]
	if ok {
		delete(r.pending, env.ID)
		r.settledIDs.Add(env.ID, nil)
	}
	_, seen := r.settledIDs.Get(env.ID)
	r.Unlock()

	if !ok {
		if seen {
			r.log.Info("endpoint", r.tag, "dropping duplicate response for settled call", env.ID)
		} else {
			r.log.Warning("endpoint", r.tag, "dropping response for unknown call", env.ID)
		}
		return
	}
	if env.Payload.Failed() {
		p.settle(Message{}, &RemoteError{Message: *env.Payload.Error})
		return
	}
	p.settle(Message{Data: env.Payload.Value, Attachments: attachments}, nil)
}
