package webviz

import (
	"github.com/blang/semver"
)

//	Wire version carried on every envelope. Bump the major on incompatible
//	envelope changes; the dispatcher logs but does not reject newer majors.
var CurrentVersion = semver.MustParse("1.0.0")

//	ResponseTopic is the reserved topic marking an envelope as the response to
//	a previously sent request. Application topics must not use it.
const ResponseTopic = "$$webviz.response"

//	Envelope is the unit exchanged over a Channel. Topic is either an
//	application-chosen request topic or ResponseTopic; ID correlates a
//	response to the request it answers and is assigned by the requester.
type Envelope struct {
	Topic   string         `json:"topic"`
	ID      uint64         `json:"id"`
	Version semver.Version `json:"v"`
	Payload Payload        `json:"payload"`
}

//	Payload is the data slot of an envelope: either a success carrying a
//	value (possibly nil, for bare responses) or a failure carrying a message.
//	Transfer attachments never ride inside a Payload; they travel as a
//	separate argument through Channel.Post.
type Payload struct {
	Value interface{} `json:"value"`
	Error *string     `json:"error,omitempty"`
}

func OK(value interface{}) Payload {
	return Payload{Value: value}
}

func Failure(message string) Payload {
	return Payload{Error: &message}
}

func (p Payload) Failed() bool {
	return p.Error != nil
}
