package core

import (
	"context"
)

// Sender is the outbound port to the HMI.
//
// Correlation ids are reserved before sending so that callers can register
// the expected response before it could possibly arrive.
type Sender interface {
	NextCorrelationID() CorrelationID
	Send(ctx context.Context, req Request) error
}

// Handler is the inbound port fed by the transport.
type Handler interface {
	// OnConnected is called each time the HMI link comes up.
	OnConnected(ctx context.Context)

	// OnHMIEvent delivers one HMI response or notification.
	OnHMIEvent(ctx context.Context, ev Event)

	// OnApplicationDisconnected reports that a mobile application session ended.
	OnApplicationDisconnected(ctx context.Context, appID string)
}

// PolicyChecker decides whether an application may perform an operation on a module.
type PolicyChecker interface {
	IsOperationPermitted(appID, module, operation string) bool
}
