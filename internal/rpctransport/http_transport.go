package rpctransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"
)

// wireMessage/wireResponse are the JSON envelopes put on the wire; Payload
// is carried as raw JSON so the receiving side can decode it against its
// own registered type for Type.
type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wireResponse struct {
	Code    int             `json:"code"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HTTPCommunicator is a JSON-over-HTTP Communicator: one POST per Message,
// one JSON body per Response. It is the client side only (Send); the
// listener side is the separate HTTPServer type built by NewHTTPServer.
type HTTPCommunicator struct {
	client *http.Client

	closeOnce sync.Once
	closed    chan struct{}
}

func NewHTTPCommunicator(client *http.Client) *HTTPCommunicator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPCommunicator{client: client, closed: make(chan struct{})}
}

func (c *HTTPCommunicator) Send(ctx context.Context, address string, msg Message) (Response, error) {
	select {
	case <-c.closed:
		return Response{}, ErrTransportClosed
	default:
	}

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrEncodePayload, err)
	}

	body, err := json.Marshal(wireMessage{Type: msg.Type, Payload: payloadBytes})
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrEncodePayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrDecodePayload, err)
	}

	var payload any
	if len(wr.Payload) > 0 {
		if err := json.Unmarshal(wr.Payload, &payload); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrDecodePayload, err)
		}
	}

	return Response{Code: Code(wr.Code), Payload: payload, Error: wr.Error}, nil
}

// Close is idempotent: a transport-observed close and an
// application-observed close may both call it without double-firing side
// effects.
func (c *HTTPCommunicator) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// HTTPServer exposes a Handler over HTTP, decoding each request's payload
// against a PayloadRegistry before dispatch.
type HTTPServer struct {
	handler  Handler
	registry PayloadRegistry
}

func NewHTTPServer(handler Handler, registry PayloadRegistry) *HTTPServer {
	return &HTTPServer{handler: handler, registry: registry}
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var wm wireMessage
	if err := json.NewDecoder(r.Body).Decode(&wm); err != nil {
		writeWireResponse(w, Response{Code: CodeBadRequest, Error: err.Error()})
		return
	}

	payload, err := s.decodePayload(wm)
	if err != nil {
		writeWireResponse(w, Response{Code: CodeBadRequest, Error: err.Error()})
		return
	}

	resp := s.handler.Handle(r.Context(), Message{Type: wm.Type, Payload: payload})
	writeWireResponse(w, resp)
}

func (s *HTTPServer) decodePayload(wm wireMessage) (any, error) {
	zero, ok := s.registry[wm.Type]
	if !ok {
		return nil, ErrUnknownMessageType
	}

	target := reflect.New(reflect.TypeOf(zero)).Interface()
	if len(wm.Payload) > 0 {
		if err := json.Unmarshal(wm.Payload, target); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodePayload, err)
		}
	}
	return reflect.ValueOf(target).Elem().Interface(), nil
}

func writeWireResponse(w http.ResponseWriter, resp Response) {
	payloadBytes, _ := json.Marshal(resp.Payload)
	wr := wireResponse{Code: int(resp.Code), Payload: payloadBytes, Error: resp.Error}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusForCode(resp.Code))
	_ = json.NewEncoder(w).Encode(wr)
}

func httpStatusForCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var _ Communicator = (*HTTPCommunicator)(nil)
