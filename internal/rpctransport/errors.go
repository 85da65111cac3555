package rpctransport

import "errors"

var (
	ErrUnknownMessageType = errors.New("rpctransport: unknown message type")
	ErrDecodePayload      = errors.New("rpctransport: failed to decode payload")
	ErrEncodePayload      = errors.New("rpctransport: failed to encode payload")
	ErrNoResponse         = errors.New("rpctransport: remote sent no response")
	ErrTransportClosed    = errors.New("rpctransport: transport closed")
)
