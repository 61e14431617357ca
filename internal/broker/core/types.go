package core

import (
	"strings"
)

// Payload is a JSON-shaped parameter tree: map[string]any, []any, string,
// float64, int64, bool or nil. Payloads cross component boundaries only as deep copies.
type Payload = map[string]any

// FunctionID names an RPC, e.g. "RC.SetInteriorVehicleData".
type FunctionID string

// Interface returns the component prefix of the function, e.g. "RC".
func (f FunctionID) Interface() string {
	prefix, _, _ := strings.Cut(string(f), ".")
	return prefix
}

// Method returns the part after the interface prefix, e.g. "SetInteriorVehicleData".
func (f FunctionID) Method() string {
	_, method, found := strings.Cut(string(f), ".")
	if !found {
		return string(f)
	}
	return method
}

// CorrelationID ties an HMI event to the request that caused it.
type CorrelationID int64

// Request is a correlated message sent to an HMI component.
type Request struct {
	FunctionID    FunctionID
	CorrelationID CorrelationID
	Params        Payload
}

// Event is a response or notification received from an HMI component.
type Event struct {
	FunctionID    FunctionID
	CorrelationID CorrelationID
	Payload       Payload
}
