package webviz

//	Hook receives envelopes delivered by a Channel, in the order the remote
//	side posted them, at most once per posted envelope.
type Hook func(env Envelope, attachments [][]byte)

//	Channel is one side of an asynchronous message-passing link. A Channel
//	delivers each posted envelope to the other side's bound Hook in post
//	order, or not at all if the link goes away first.
//
//	Exactly one Hook may ever be bound: an Rpc endpoint takes exclusive
//	ownership of its channel, and Bind fails with ErrChannelBound if a hook
//	is already installed.
type Channel interface {
	Post(env Envelope, attachments [][]byte) (err error)
	Bind(hook Hook) (err error)
}
