// Package rpctransport is the communicator seam between the directory core
// and both the storage management capability and the external service
// adapter: a typed message in, a coded response out, nothing more.
package rpctransport

import "context"

// Code mirrors the small set of outcomes a remote call can report, kept
// independent of any particular wire transport's status codes.
type Code int

const (
	CodeOK Code = iota
	CodeBadRequest
	CodeNotFound
	CodeInternal
	CodeUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeBadRequest:
		return "BAD_REQUEST"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeInternal:
		return "INTERNAL"
	case CodeUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Message is an addressed, typed request. Payload is marshaled according to
// the type registered for Type.
type Message struct {
	Type    string
	Payload any
}

// Response carries back a code, an optional payload, and a human-readable
// error message when Code != CodeOK.
type Response struct {
	Code    Code
	Payload any
	Error   string
}

// Communicator sends a Message to an addressed peer and waits for a
// Response.
type Communicator interface {
	Send(ctx context.Context, address string, msg Message) (Response, error)
	Close() error
}

// Handler processes an inbound Message and produces a Response. Both the
// storage management server and the directory service adapter implement
// this to sit behind a Communicator's listener side.
type Handler interface {
	Handle(ctx context.Context, msg Message) Response
}

// PayloadRegistry maps a message type name to the concrete Go type its
// payload decodes into, so a listener can deserialize before dispatch.
type PayloadRegistry map[string]any

func (r PayloadRegistry) Register(msgType string, zeroValue any) {
	r[msgType] = zeroValue
}
