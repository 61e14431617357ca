package hmi

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

// Envelope fields shared by requests and events.
const (
	fieldFunction      = "function"
	fieldCorrelationID = "correlationId"
	fieldParams        = "params"
)

// ErrMalformed is returned for envelopes that cannot be decoded.
var ErrMalformed = errors.New("malformed hmi envelope")

// EncodeRequest renders req as a JSON envelope.
func EncodeRequest(req core.Request) ([]byte, error) {
	params := req.Params
	if params == nil {
		params = core.Payload{}
	}
	s, err := structpb.NewStruct(map[string]any{
		fieldFunction:      string(req.FunctionID),
		fieldCorrelationID: int64(req.CorrelationID),
		fieldParams:        params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.FunctionID, err)
	}
	return protojson.Marshal(s)
}

// DecodeEvent parses an event envelope. Numbers in params decode as float64.
func DecodeEvent(b []byte) (core.Event, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return core.Event{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	m := s.AsMap()

	fn, _ := m[fieldFunction].(string)
	if fn == "" {
		return core.Event{}, fmt.Errorf("%w: missing %s", ErrMalformed, fieldFunction)
	}

	var id core.CorrelationID
	switch v := m[fieldCorrelationID].(type) {
	case nil:
		// Notifications carry no correlation id.
	case float64:
		if v != math.Trunc(v) || v < 0 {
			return core.Event{}, fmt.Errorf("%w: %s %v is not a non-negative integer", ErrMalformed, fieldCorrelationID, v)
		}
		id = core.CorrelationID(v)
	default:
		return core.Event{}, fmt.Errorf("%w: %s has type %T", ErrMalformed, fieldCorrelationID, v)
	}

	params := core.Payload{}
	switch v := m[fieldParams].(type) {
	case nil:
	case map[string]any:
		params = v
	default:
		return core.Event{}, fmt.Errorf("%w: %s must be an object", ErrMalformed, fieldParams)
	}

	return core.Event{FunctionID: core.FunctionID(fn), CorrelationID: id, Payload: params}, nil
}
