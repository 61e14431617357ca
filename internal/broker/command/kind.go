package command

import (
	"github.com/autopeer-io/hmibroker/internal/broker/capability"
	"github.com/autopeer-io/hmibroker/internal/broker/core"
	"github.com/autopeer-io/hmibroker/internal/broker/resource"
)

// Kind is one mobile RPC the engine can run.
type Kind interface {
	// FunctionID is the mobile function this kind handles.
	FunctionID() core.FunctionID

	// Validate checks the mobile parameters and plans the HMI exchange.
	// Failures wrap ErrInvalidData.
	Validate(params core.Payload) (*Plan, error)

	// Assemble builds the response payload from the collected HMI events.
	Assemble(plan *Plan, events []core.Payload) (core.Payload, error)
}

// Plan is the validated form of a request.
type Plan struct {
	// Module is the lease key, see resource.ModuleKey.
	Module     string
	ModuleType string
	// Operation is passed to the policy checker.
	Operation string
	Mode      resource.AccessMode
	// Target must cooperate and support ModuleType.
	Target      capability.Component
	SubRequests []SubRequest
	// Info is reported with a successful response, e.g. stripped parameters.
	Info string
}

// SubRequest is one HMI request and the number of events that answer it.
type SubRequest struct {
	FunctionID core.FunctionID
	Params     core.Payload
	Expected   int
}
