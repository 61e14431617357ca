package command

import (
	"errors"

	"github.com/autopeer-io/hmibroker/internal/broker/core"
)

// ErrInvalidData is wrapped by every validation failure.
var ErrInvalidData = errors.New("invalid request data")

// ResultCode is the outcome reported to the mobile application.
type ResultCode string

const (
	Success                 ResultCode = "SUCCESS"
	InvalidData             ResultCode = "INVALID_DATA"
	UnsupportedRequest      ResultCode = "UNSUPPORTED_REQUEST"
	Disallowed              ResultCode = "DISALLOWED"
	CapabilityUnavailable   ResultCode = "UNSUPPORTED_RESOURCE"
	ResourceConflict        ResultCode = "IN_USE"
	Timeout                 ResultCode = "TIMED_OUT"
	ApplicationDisconnected ResultCode = "APPLICATION_NOT_REGISTERED"
	Aborted                 ResultCode = "ABORTED"
	GenericError            ResultCode = "GENERIC_ERROR"
)

// Response is the single terminal answer to a mobile request.
type Response struct {
	RequestID  string          `json:"requestId"`
	AppID      string          `json:"appId"`
	FunctionID core.FunctionID `json:"function"`
	Success    bool            `json:"success"`
	ResultCode ResultCode      `json:"resultCode"`
	Info       string          `json:"info,omitempty"`
	Payload    core.Payload    `json:"payload,omitempty"`
}
