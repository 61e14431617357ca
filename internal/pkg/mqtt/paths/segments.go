package paths

// Topic segments shared by the broker and the HMI bridge.
// Renaming any of them breaks the wire contract with deployed HMI bridges.

// Downstream: Broker -> HMI
const (
	// HMIRequest carries a correlated request to an HMI component.
	// Payload: { "function": "VR.GetLanguage", "correlationId": 7, "params": {...} }
	// Pattern: {root}/hmi/request/{function}
	HMIRequest = "hmi/request"
)

// Upstream: HMI / session layer -> Broker
const (
	// HMIEvent carries a response or notification from an HMI component.
	// Payload: { "function": "VR.GetLanguage", "correlationId": 7, "params": {...} }
	// Pattern: {root}/hmi/event/{function}
	HMIEvent = "hmi/event"

	// AppDisconnected is published by the session layer when a mobile application drops.
	// Pattern: {root}/app/disconnected/{appID}
	AppDisconnected = "app/disconnected"

	// BrokerOnline is the retained broker presence topic, also used as the last will.
	// Payload: { "online": true/false }
	// Pattern: {root}/broker/online/{clientID}
	BrokerOnline = "broker/online"
)
